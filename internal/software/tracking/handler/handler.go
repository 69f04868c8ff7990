package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"delivery-track/internal/domain/geo"
	"delivery-track/internal/domain/session"
	"delivery-track/internal/domain/user"
	"delivery-track/internal/general/jwt"
	"delivery-track/internal/general/logger"
	"delivery-track/internal/general/websocket"
	"delivery-track/internal/ports"
)

// TrackingHTTPHandler adapts HTTP requests to the session and route services.
type TrackingHTTPHandler struct {
	svc       ports.SessionService
	routes    ports.RouteService
	logger    *logger.Logger
	auth      *jwt.Manager
	websocket *websocket.WebSocket
}

// NewTrackingHTTPHandler wires an HTTP handler around the tracking services.
func NewTrackingHTTPHandler(
	svc ports.SessionService,
	routes ports.RouteService,
	logger *logger.Logger,
	auth *jwt.Manager,
	ws *websocket.WebSocket,
) *TrackingHTTPHandler {
	return &TrackingHTTPHandler{svc: svc, routes: routes, logger: logger, auth: auth, websocket: ws}
}

// RegisterRoutes mounts the tracking endpoints on the provided mux.
func (handler *TrackingHTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /deliveries",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleDriver)(handler.handleCreateSession),
	)
	mux.HandleFunc("GET /deliveries/{delivery_id}",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleDriver, user.RoleAdmin)(handler.handleGetSession),
	)
	mux.HandleFunc("POST /deliveries/{delivery_id}/complete",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleDriver)(handler.handleComplete),
	)
	mux.HandleFunc("POST /deliveries/{delivery_id}/cancel",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleDriver)(handler.handleCancel),
	)

	// Tracking link and route estimation are public by design: the token is
	// the credential for the first, the second holds no state.
	mux.HandleFunc("GET /t/{token}", handler.handleTrackingLink)
	mux.HandleFunc("POST /routes/estimate", handler.handleEstimate)

	// WebSocket performs its own first-frame auth
	mux.HandleFunc("GET /ws/delivery", handler.websocket.Connect)

	mux.HandleFunc("GET /deliveries/health", handler.handleHealth)
	mux.HandleFunc("POST /tokens", handler.handleCreateToken)
}

// ----- session response DTO -----

type positionResponse struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	SpeedKmh  float64   `json:"speed_kmh,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type sessionResponse struct {
	DeliveryID           string            `json:"delivery_id"`
	DriverID             string            `json:"driver_id"`
	ReceiverPhone        string            `json:"receiver_phone"`
	Status               string            `json:"status"`
	CreatedAt            time.Time         `json:"created_at"`
	StartedAt            *time.Time        `json:"started_at,omitempty"`
	CompletedAt          *time.Time        `json:"completed_at,omitempty"`
	CancelledAt          *time.Time        `json:"cancelled_at,omitempty"`
	LastDriverPosition   *positionResponse `json:"last_driver_position,omitempty"`
	LastReceiverPosition *positionResponse `json:"last_receiver_position,omitempty"`
}

func toSessionResponse(s *session.DeliverySession) sessionResponse {
	return sessionResponse{
		DeliveryID:           s.ID,
		DriverID:             s.DriverID,
		ReceiverPhone:        s.ReceiverPhone,
		Status:               s.Status.String(),
		CreatedAt:            s.CreatedAt,
		StartedAt:            s.StartedAt,
		CompletedAt:          s.CompletedAt,
		CancelledAt:          s.CancelledAt,
		LastDriverPosition:   toPositionResponse(s.LastDriverPosition),
		LastReceiverPosition: toPositionResponse(s.LastReceiverPosition),
	}
}

func toPositionResponse(p *geo.Position) *positionResponse {
	if p == nil {
		return nil
	}
	return &positionResponse{
		Latitude:  p.Lat,
		Longitude: p.Lng,
		SpeedKmh:  p.SpeedKmh,
		Timestamp: p.Timestamp,
	}
}

// ----- token minting (testing convenience) -----

type TokenRequest struct {
	UserID string    `json:"user_id"`
	Role   user.Role `json:"role"`
}

type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"user_id"`
	Role      user.Role `json:"role"`
}

// handleCreateToken generates JWT tokens for testing
func (handler *TrackingHTTPHandler) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "user_id is required", nil)
		return
	}
	if !req.Role.Valid() {
		handler.httpError(ctx, w, http.StatusBadRequest, "invalid role", nil)
		return
	}

	tokenString, claims, err := handler.auth.IssueUserToken(req.UserID, req.Role)
	if err != nil {
		handler.httpError(ctx, w, http.StatusInternalServerError, "Failed to generate token", err)
		return
	}

	handler.logger.Info(ctx, "token_generated", "JWT token generated successfully",
		map[string]any{"user_id": req.UserID, "role": req.Role.String()})

	handler.jsonResponse(ctx, w, http.StatusCreated, TokenResponse{
		Token:     tokenString,
		ExpiresAt: claims.ExpiresAt.Time,
		UserID:    req.UserID,
		Role:      req.Role,
	})
}

// handleHealth reports liveness.
func (handler *TrackingHTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	handler.jsonResponse(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

// ----- general helpers -----

// jsonResponse takes any type of data and encode it to HTTP response.
func (handler *TrackingHTTPHandler) jsonResponse(ctx context.Context, w http.ResponseWriter, status int, data any) {
	// encode to buffer first so we can control status on failure
	var buf []byte
	var err error

	if data != nil {
		buf, err = json.Marshal(data)
		if err != nil {
			handler.logger.Error(ctx, "response_encode_failed", "Failed to encode response", err, nil)
			http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
			return
		}
	} else {
		buf = []byte("{}")
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf)
}

// httpError sends a JSON error response with a message.
func (handler *TrackingHTTPHandler) httpError(ctx context.Context, w http.ResponseWriter, status int, msg string, err error) {
	action := "request_failed"
	if status >= 500 {
		action = "http_internal_error"
	} else if status == http.StatusBadRequest {
		action = "validation_failed"
	} else if status == http.StatusUnsupportedMediaType {
		action = "unsupported_media_type"
	}
	handler.logger.Error(ctx, action, msg, err, nil)

	type errBody struct {
		Error string `json:"error"`
	}
	handler.jsonResponse(ctx, w, status, errBody{Error: msg})
}

// serviceError translates a session service error into an HTTP status.
func (handler *TrackingHTTPHandler) serviceError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		handler.httpError(ctx, w, http.StatusNotFound, "delivery session not found", err)
	case errors.Is(err, session.ErrTokenExpired):
		handler.httpError(ctx, w, http.StatusGone, "tracking link has expired", err)
	case errors.Is(err, session.ErrNotEntitled):
		handler.httpError(ctx, w, http.StatusForbidden, "driver has no active entitlement", err)
	case errors.Is(err, session.ErrRoleMismatch):
		handler.httpError(ctx, w, http.StatusForbidden, "caller does not own this delivery", err)
	case errors.Is(err, session.ErrInvalidTransition), errors.Is(err, session.ErrSessionNotActive):
		handler.httpError(ctx, w, http.StatusConflict, "delivery session is in the wrong state", err)
	case errors.Is(err, session.ErrDriverRequired),
		errors.Is(err, session.ErrReceiverPhoneRequired),
		errors.Is(err, user.ErrInvalidRole),
		errors.Is(err, geo.ErrInvalidLatitude),
		errors.Is(err, geo.ErrInvalidLongitude),
		errors.Is(err, geo.ErrNonFiniteValue):
		handler.httpError(ctx, w, http.StatusBadRequest, err.Error(), err)
	default:
		handler.httpError(ctx, w, http.StatusInternalServerError, "internal error", err)
	}
}

// withReqID extracts or generates a request ID and adds it to the context.
func (handler *TrackingHTTPHandler) withReqID(ctx context.Context, r *http.Request) context.Context {
	reqID := r.Header.Get("X-Request-ID")
	if strings.TrimSpace(reqID) == "" {
		reqID = randID()
	}
	return handler.logger.WithRequestID(ctx, reqID)
}

// randID generates a random 24-char hex string suitable for request IDs.
func randID() string {
	var b [12]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
