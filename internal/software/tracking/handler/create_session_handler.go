package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"delivery-track/internal/general/jwt"
	"delivery-track/internal/ports"
)

// --- Request DTO (HTTP boundary) ---

type createSessionRequest struct {
	ReceiverPhone string `json:"receiver_phone"`
}

type createSessionResponse struct {
	sessionResponse
	TrackingLink   string    `json:"tracking_link"`
	TokenExpiresAt time.Time `json:"token_expires_at"`
}

// ----- Handler: POST /deliveries -----

func (handler *TrackingHTTPHandler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		handler.httpError(ctx, w, http.StatusUnsupportedMediaType, "Content-Type must be application/json", nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MiB
	defer r.Body.Close()

	claims := jwt.RequireClaims(r)
	if claims == nil {
		handler.httpError(ctx, w, http.StatusUnauthorized, "missing auth claims", errors.New("no claims"))
		return
	}

	// decode strictly
	var req createSessionRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			handler.httpError(ctx, w, http.StatusRequestEntityTooLarge, "request body too large", err)
			return
		}
		handler.httpError(ctx, w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := handler.svc.CreateSession(ctxWithTimeout, ports.CreateSessionInput{
		DriverID:      claims.Subject,
		ReceiverPhone: req.ReceiverPhone,
	})
	if err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusCreated, createSessionResponse{
		sessionResponse: toSessionResponse(res.Session),
		TrackingLink:    res.TrackingLink,
		TokenExpiresAt:  res.Session.TokenExpiresAt,
	})
}
