package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"delivery-track/internal/domain/geo"
	"delivery-track/internal/domain/session"
	"delivery-track/internal/domain/user"
	"delivery-track/internal/ports"

	"github.com/jackc/pgx/v5"
)

// SessionRepo persists delivery sessions using pgx and plain SQL.
type SessionRepo struct{}

// NewSessionRepo constructs a new SessionRepo.
func NewSessionRepo() ports.SessionRepository {
	return &SessionRepo{}
}

const sessionColumns = `
	id, created_at, updated_at, driver_id, receiver_phone,
	tracking_token, token_expires_at, status,
	started_at, completed_at, cancelled_at,
	driver_lat, driver_lng, driver_speed_kmh, driver_position_at,
	receiver_lat, receiver_lng, receiver_position_at`

// Create inserts a new session row.
func (repo *SessionRepo) Create(ctx context.Context, s *session.DeliverySession) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO delivery_sessions (
			id, created_at, updated_at, driver_id, receiver_phone,
			tracking_token, token_expires_at, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		s.ID, s.CreatedAt, s.UpdatedAt, s.DriverID, s.ReceiverPhone,
		s.TrackingToken, s.TokenExpiresAt, s.Status.String(),
	)
	if err != nil {
		return fmt.Errorf("insert delivery session: %w", err)
	}

	return nil
}

// GetByID fetches a session by primary key (uuid).
func (repo *SessionRepo) GetByID(ctx context.Context, id string) (*session.DeliverySession, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, `SELECT`+sessionColumns+` FROM delivery_sessions WHERE id = $1`, id)
	return scanSession(row)
}

// GetByToken fetches a session by its receiver tracking token.
func (repo *SessionRepo) GetByToken(ctx context.Context, token string) (*session.DeliverySession, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, `SELECT`+sessionColumns+` FROM delivery_sessions WHERE tracking_token = $1`, token)
	return scanSession(row)
}

// UpdateStatus persists the status and lifecycle timestamps of s.
func (repo *SessionRepo) UpdateStatus(ctx context.Context, s *session.DeliverySession) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE delivery_sessions
		SET status = $2, started_at = $3, completed_at = $4, cancelled_at = $5, updated_at = $6
		WHERE id = $1
	`, s.ID, s.Status.String(), s.StartedAt, s.CompletedAt, s.CancelledAt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return session.ErrNotFound
	}

	return nil
}

// UpdatePosition overwrites the stored last position for the given role.
func (repo *SessionRepo) UpdatePosition(ctx context.Context, sessionID string, role user.Role, pos geo.Position) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	var query string
	var args []any
	switch role {
	case user.RoleDriver:
		query = `
			UPDATE delivery_sessions
			SET driver_lat = $2, driver_lng = $3, driver_speed_kmh = $4,
			    driver_position_at = $5, updated_at = $5
			WHERE id = $1`
		args = []any{sessionID, pos.Lat, pos.Lng, pos.SpeedKmh, pos.Timestamp}
	case user.RoleReceiver:
		// receiver updates carry no speed column
		query = `
			UPDATE delivery_sessions
			SET receiver_lat = $2, receiver_lng = $3,
			    receiver_position_at = $4, updated_at = $4
			WHERE id = $1`
		args = []any{sessionID, pos.Lat, pos.Lng, pos.Timestamp}
	default:
		return user.ErrInvalidRole
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update session position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return session.ErrNotFound
	}

	return nil
}

// ----- internal helpers -----

func scanSession(row pgx.Row) (*session.DeliverySession, error) {
	var (
		out        session.DeliverySession
		status     string
		driverLat  *float64
		driverLng  *float64
		driverSpd  *float64
		driverAt   *time.Time
		recvLat    *float64
		recvLng    *float64
		receiverAt *time.Time
	)

	err := row.Scan(
		&out.ID, &out.CreatedAt, &out.UpdatedAt, &out.DriverID, &out.ReceiverPhone,
		&out.TrackingToken, &out.TokenExpiresAt, &status,
		&out.StartedAt, &out.CompletedAt, &out.CancelledAt,
		&driverLat, &driverLng, &driverSpd, &driverAt,
		&recvLat, &recvLng, &receiverAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, session.ErrNotFound
		}
		return nil, fmt.Errorf("scan delivery session: %w", err)
	}

	out.Status, err = session.ParseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", out.ID, err)
	}

	if driverLat != nil && driverLng != nil && driverAt != nil {
		pos := geo.Position{Lat: *driverLat, Lng: *driverLng, Timestamp: *driverAt}
		if driverSpd != nil {
			pos.SpeedKmh = *driverSpd
		}
		out.LastDriverPosition = &pos
	}
	if recvLat != nil && recvLng != nil && receiverAt != nil {
		out.LastReceiverPosition = &geo.Position{Lat: *recvLat, Lng: *recvLng, Timestamp: *receiverAt}
	}

	return &out, nil
}
