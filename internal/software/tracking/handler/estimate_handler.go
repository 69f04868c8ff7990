package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"delivery-track/internal/domain/geo"
)

// --- Request DTO (HTTP boundary) ---

type estimateRequest struct {
	StartLatitude  float64 `json:"start_latitude"`
	StartLongitude float64 `json:"start_longitude"`
	EndLatitude    float64 `json:"end_latitude"`
	EndLongitude   float64 `json:"end_longitude"`
}

// ----- Handler: POST /routes/estimate -----

func (handler *TrackingHTTPHandler) handleEstimate(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		handler.httpError(ctx, w, http.StatusUnsupportedMediaType, "Content-Type must be application/json", nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MiB
	defer r.Body.Close()

	var req estimateRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}

	// bound the whole call, provider timeout included
	ctxWithTimeout, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	res, err := handler.routes.Estimate(ctxWithTimeout,
		geo.Point{Lat: req.StartLatitude, Lng: req.StartLongitude},
		geo.Point{Lat: req.EndLatitude, Lng: req.EndLongitude},
	)
	if err != nil {
		if errors.Is(err, geo.ErrInvalidLatitude) ||
			errors.Is(err, geo.ErrInvalidLongitude) ||
			errors.Is(err, geo.ErrNonFiniteValue) {
			handler.httpError(ctxWithTimeout, w, http.StatusBadRequest, "invalid coordinates", err)
			return
		}
		handler.httpError(ctxWithTimeout, w, http.StatusInternalServerError, "route calculation failed", err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, res)
}
