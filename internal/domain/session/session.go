package session

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"delivery-track/internal/domain/geo"
	"delivery-track/internal/domain/user"
)

// DeliverySession is the domain entity corresponding to the `delivery_sessions` table.
// One session tracks a single driver delivering to a single receiver identified by
// phone number; the receiver holds no account.
type DeliverySession struct {
	// Identity & audit
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time

	// Actors
	DriverID      string
	ReceiverPhone string

	// Receiver access
	TrackingToken  string
	TokenExpiresAt time.Time

	// Core state
	Status Status

	// Lifecycle timestamps
	StartedAt   *time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time

	// Last known positions; overwritten on every accepted update, no history here.
	LastDriverPosition   *geo.Position
	LastReceiverPosition *geo.Position
}

var (
	ErrNotFound              = errors.New("session not found")
	ErrDriverRequired        = errors.New("driver id is required")
	ErrReceiverPhoneRequired = errors.New("receiver phone is required")
	ErrInvalidTransition     = errors.New("invalid session status transition")
	ErrSessionNotActive      = errors.New("session is not accepting updates")
	ErrRoleMismatch          = errors.New("caller does not match the session role")
	ErrNotEntitled           = errors.New("driver has no active entitlement")
	ErrTokenExpired          = errors.New("tracking token has expired")
)

// NewDeliverySession creates a session in PENDING state with a fresh tracking token.
func NewDeliverySession(driverID, receiverPhone string, tokenTTL time.Duration) (*DeliverySession, error) {
	if driverID = strings.TrimSpace(driverID); driverID == "" {
		return nil, ErrDriverRequired
	}
	if receiverPhone = strings.TrimSpace(receiverPhone); receiverPhone == "" {
		return nil, ErrReceiverPhoneRequired
	}

	now := time.Now().UTC()
	return &DeliverySession{
		ID:             uuid.NewString(),
		CreatedAt:      now,
		UpdatedAt:      now,
		DriverID:       driverID,
		ReceiverPhone:  receiverPhone,
		TrackingToken:  NewTrackingToken(),
		TokenExpiresAt: now.Add(tokenTTL),
		Status:         StatusPending,
	}, nil
}

// Activate moves PENDING -> ACTIVE. A no-op when already active.
func (s *DeliverySession) Activate() error {
	if s.Status == StatusActive {
		return nil
	}
	if !s.Status.CanTransitionTo(StatusActive) {
		return ErrInvalidTransition
	}
	now := time.Now().UTC()
	s.StartedAt = &now
	s.setStatus(StatusActive)
	return nil
}

// Complete moves ACTIVE -> COMPLETED. Repeating it is a no-op, not an error:
// flaky clients may send the end-of-delivery signal more than once.
func (s *DeliverySession) Complete() error {
	if s.Status == StatusCompleted {
		return nil
	}
	if !s.Status.CanTransitionTo(StatusCompleted) {
		return ErrInvalidTransition
	}
	now := time.Now().UTC()
	s.CompletedAt = &now
	s.setStatus(StatusCompleted)
	return nil
}

// Cancel moves PENDING/ACTIVE -> CANCELLED, idempotent for repeated cancels.
func (s *DeliverySession) Cancel() error {
	if s.Status == StatusCancelled {
		return nil
	}
	if !s.Status.CanTransitionTo(StatusCancelled) {
		return ErrInvalidTransition
	}
	now := time.Now().UTC()
	s.CancelledAt = &now
	s.setStatus(StatusCancelled)
	return nil
}

// ApplyTransition dispatches to the lifecycle method for the target status.
func (s *DeliverySession) ApplyTransition(target Status) error {
	switch target {
	case StatusActive:
		return s.Activate()
	case StatusCompleted:
		return s.Complete()
	case StatusCancelled:
		return s.Cancel()
	default:
		return ErrInvalidTransition
	}
}

// RecordPosition overwrites the last known position for the given role.
// Positions are only accepted while the session is PENDING or ACTIVE.
func (s *DeliverySession) RecordPosition(role user.Role, pos geo.Position) error {
	if !s.Status.AcceptsPositions() {
		return ErrSessionNotActive
	}
	if err := pos.Point().Validate(); err != nil {
		return err
	}

	switch role {
	case user.RoleDriver:
		p := pos
		s.LastDriverPosition = &p
	case user.RoleReceiver:
		p := pos
		s.LastReceiverPosition = &p
	default:
		return user.ErrInvalidRole
	}
	s.touch()
	return nil
}

// OwnedBy reports whether the given driver identity owns this session.
func (s *DeliverySession) OwnedBy(driverID string) bool {
	return s.DriverID != "" && s.DriverID == strings.TrimSpace(driverID)
}

// TokenExpired reports whether the tracking token is past its expiry.
func (s *DeliverySession) TokenExpired(now time.Time) bool {
	return !s.TokenExpiresAt.IsZero() && now.After(s.TokenExpiresAt)
}

// ----- internal helpers -----

func (s *DeliverySession) setStatus(status Status) {
	s.Status = status
	s.touch()
}

func (s *DeliverySession) touch() {
	s.UpdatedAt = time.Now().UTC()
}
