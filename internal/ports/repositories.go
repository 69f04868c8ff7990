package ports

import (
	"context"
	"time"

	"delivery-track/internal/domain/geo"
	"delivery-track/internal/domain/session"
	"delivery-track/internal/domain/user"
)

// UnitOfWork interface is used to manage transactions across multiple repository operations.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// SessionRepository defines load/upsert access to delivery sessions. The core
// never enumerates sessions; everything is keyed by id or tracking token.
type SessionRepository interface {
	Create(ctx context.Context, s *session.DeliverySession) error
	GetByID(ctx context.Context, id string) (*session.DeliverySession, error)
	GetByToken(ctx context.Context, token string) (*session.DeliverySession, error)
	UpdateStatus(ctx context.Context, s *session.DeliverySession) error
	UpdatePosition(ctx context.Context, sessionID string, role user.Role, pos geo.Position) error
}

// LocationHistoryRepository archives every accepted position update.
type LocationHistoryRepository interface {
	Archive(ctx context.Context, rec *LocationRecord) error
}

// LocationRecord is one archived position observation.
type LocationRecord struct {
	ID         string
	DeliveryID string
	Role       user.Role
	Latitude   float64
	Longitude  float64
	AccuracyM  float64
	SpeedKmh   float64
	RecordedAt time.Time
}

// EntitlementChecker answers whether a driver may start new sessions. The
// subscription/trial bookkeeping behind it is an external collaborator concern.
type EntitlementChecker interface {
	HasActiveEntitlement(ctx context.Context, driverID string) (bool, error)
}

// EventPublisher pushes fire-and-forget notifications to the message broker.
type EventPublisher interface {
	Publish(exchange, routingKey string, body []byte) error
}
