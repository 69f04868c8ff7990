package ports

import (
	"context"

	"delivery-track/internal/domain/geo"
	"delivery-track/internal/domain/session"
	"delivery-track/internal/domain/user"
)

// ----- Session service -----

// CreateSessionInput carries the driver request to open a tracking session.
type CreateSessionInput struct {
	DriverID      string
	ReceiverPhone string
}

// CreateSessionResult is returned to the driver on successful creation.
type CreateSessionResult struct {
	Session      *session.DeliverySession
	TrackingLink string
}

// TransitionInput requests a status change. CallerDriverID, when non-empty, is
// checked against the session owner before the transition is applied.
type TransitionInput struct {
	SessionID      string
	Target         session.Status
	CallerDriverID string
}

// JoinInput validates a realtime subscription request against a session.
type JoinInput struct {
	SessionID      string
	Role           user.Role
	CallerDriverID string // required for role=DRIVER
	Phone          string // receiver-supplied, checked only in strict mode
}

// RecordPositionInput carries one location observation.
type RecordPositionInput struct {
	SessionID      string
	Role           user.Role
	CallerDriverID string // required for role=DRIVER
	Phone          string // receiver-supplied, checked only in strict mode
	Position       geo.Position
	AccuracyM      float64
}

// SessionService owns the session lifecycle and its authorization rules.
type SessionService interface {
	CreateSession(ctx context.Context, in CreateSessionInput) (CreateSessionResult, error)
	GetOwnedSession(ctx context.Context, sessionID, driverID string) (*session.DeliverySession, error)
	GetSession(ctx context.Context, sessionID string) (*session.DeliverySession, error)
	Transition(ctx context.Context, in TransitionInput) (*session.DeliverySession, error)
	Join(ctx context.Context, in JoinInput) (*session.DeliverySession, error)
	RecordPosition(ctx context.Context, in RecordPositionInput) (*session.DeliverySession, error)
	ResolveTrackingToken(ctx context.Context, token string) (*session.DeliverySession, error)
}

// ----- Route estimation -----

// RouteSource records which strategy produced a route result.
type RouteSource string

const (
	SourceProvider     RouteSource = "provider"
	SourceInterpolated RouteSource = "interpolated"
	SourceSameLocation RouteSource = "same_location"
)

// RouteResult is an ephemeral travel estimate between two points.
type RouteResult struct {
	Polyline   []geo.Point `json:"polyline"`
	DistanceKm float64     `json:"distance_km"`
	EtaMinutes float64     `json:"eta_minutes"`
	Source     RouteSource `json:"source"`
}

// RouteService turns two coordinates into a path, distance and ETA.
type RouteService interface {
	Estimate(ctx context.Context, start, end geo.Point) (RouteResult, error)
}
