package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"delivery-track/internal/domain/session"
	"delivery-track/internal/general/jwt"
	"delivery-track/internal/ports"
)

// ----- Handler: GET /deliveries/{delivery_id} -----

func (handler *TrackingHTTPHandler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	deliveryID := strings.TrimSpace(r.PathValue("delivery_id"))
	if deliveryID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "missing delivery_id in path", nil)
		return
	}

	claims := jwt.RequireClaims(r)
	if claims == nil {
		handler.httpError(ctx, w, http.StatusUnauthorized, "missing auth claims", errors.New("no claims"))
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// Admins read any session; drivers only their own.
	var sess *session.DeliverySession
	var err error
	if claims.Role.IsAdmin() {
		sess, err = handler.svc.GetSession(ctxWithTimeout, deliveryID)
	} else {
		sess, err = handler.svc.GetOwnedSession(ctxWithTimeout, deliveryID, claims.Subject)
	}
	if err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, toSessionResponse(sess))
}

// ----- Handlers: POST /deliveries/{delivery_id}/complete | /cancel -----

// Repeating a terminal transition responds 200 with the unchanged session,
// so retried end-of-delivery requests stay idempotent at the HTTP boundary.
func (handler *TrackingHTTPHandler) handleComplete(w http.ResponseWriter, r *http.Request) {
	handler.handleTransition(w, r, session.StatusCompleted)
}

func (handler *TrackingHTTPHandler) handleCancel(w http.ResponseWriter, r *http.Request) {
	handler.handleTransition(w, r, session.StatusCancelled)
}

func (handler *TrackingHTTPHandler) handleTransition(w http.ResponseWriter, r *http.Request, target session.Status) {
	ctx := handler.withReqID(r.Context(), r)

	deliveryID := strings.TrimSpace(r.PathValue("delivery_id"))
	if deliveryID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "missing delivery_id in path", nil)
		return
	}

	claims := jwt.RequireClaims(r)
	if claims == nil {
		handler.httpError(ctx, w, http.StatusUnauthorized, "missing auth claims", errors.New("no claims"))
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	sess, err := handler.svc.Transition(ctxWithTimeout, ports.TransitionInput{
		SessionID:      deliveryID,
		Target:         target,
		CallerDriverID: claims.Subject,
	})
	if err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, toSessionResponse(sess))
}

// ----- Handler: GET /t/{token} -----

type trackingLinkResponse struct {
	DeliveryID string `json:"delivery_id"`
	Status     string `json:"status"`
}

// handleTrackingLink resolves a receiver tracking link. The response carries
// only what the receiver needs to open a realtime subscription.
func (handler *TrackingHTTPHandler) handleTrackingLink(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	token := strings.TrimSpace(r.PathValue("token"))
	if token == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "missing token in path", nil)
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	sess, err := handler.svc.ResolveTrackingToken(ctxWithTimeout, token)
	if err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, trackingLinkResponse{
		DeliveryID: sess.ID,
		Status:     sess.Status.String(),
	})
}
