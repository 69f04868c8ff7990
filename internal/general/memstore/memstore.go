// Package memstore provides in-memory implementations of the ports used by the
// tracking service. It backs unit tests and single-node runs without Postgres;
// the durable pgx implementations live in internal/general/postgres.
package memstore

import (
	"context"
	"sync"
	"time"

	"delivery-track/internal/domain/geo"
	"delivery-track/internal/domain/session"
	"delivery-track/internal/domain/user"
	"delivery-track/internal/ports"
)

// Store keeps sessions, history and entitlements behind a single mutex.
type Store struct {
	mu           sync.RWMutex
	sessions     map[string]*session.DeliverySession
	byToken      map[string]string // tracking token -> session id
	history      []ports.LocationRecord
	entitled     map[string]bool
	entitledByDf bool // default answer for unknown drivers
}

// New creates an empty store where unknown drivers are not entitled.
func New() *Store {
	return &Store{
		sessions: make(map[string]*session.DeliverySession),
		byToken:  make(map[string]string),
		entitled: make(map[string]bool),
	}
}

// NewOpen creates a store where every driver is entitled unless revoked.
func NewOpen() *Store {
	s := New()
	s.entitledByDf = true
	return s
}

// ----- ports.UnitOfWork -----

// WithinTx runs fn directly; the store has no transactions.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// ----- ports.SessionRepository -----

func (s *Store) Create(_ context.Context, sess *session.DeliverySession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sess
	s.sessions[sess.ID] = &cp
	s.byToken[sess.TrackingToken] = sess.ID
	return nil
}

func (s *Store) GetByID(_ context.Context, id string) (*session.DeliverySession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (s *Store) GetByToken(_ context.Context, token string) (*session.DeliverySession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byToken[token]
	if !ok {
		return nil, session.ErrNotFound
	}
	cp := *s.sessions[id]
	return &cp, nil
}

func (s *Store) UpdateStatus(_ context.Context, sess *session.DeliverySession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.sessions[sess.ID]
	if !ok {
		return session.ErrNotFound
	}
	cur.Status = sess.Status
	cur.StartedAt = sess.StartedAt
	cur.CompletedAt = sess.CompletedAt
	cur.CancelledAt = sess.CancelledAt
	cur.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) UpdatePosition(_ context.Context, sessionID string, role user.Role, pos geo.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.sessions[sessionID]
	if !ok {
		return session.ErrNotFound
	}
	p := pos
	switch role {
	case user.RoleDriver:
		cur.LastDriverPosition = &p
	case user.RoleReceiver:
		cur.LastReceiverPosition = &p
	default:
		return user.ErrInvalidRole
	}
	cur.UpdatedAt = time.Now().UTC()
	return nil
}

// ----- ports.LocationHistoryRepository -----

func (s *Store) Archive(_ context.Context, rec *ports.LocationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, *rec)
	return nil
}

// History returns a copy of all archived records (test helper).
func (s *Store) History() []ports.LocationRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ports.LocationRecord, len(s.history))
	copy(out, s.history)
	return out
}

// ----- ports.EntitlementChecker -----

func (s *Store) HasActiveEntitlement(_ context.Context, driverID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.entitled[driverID]; ok {
		return v, nil
	}
	return s.entitledByDf, nil
}

// SetEntitlement overrides the answer for one driver.
func (s *Store) SetEntitlement(driverID string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entitled[driverID] = ok
}

var (
	_ ports.UnitOfWork                = (*Store)(nil)
	_ ports.SessionRepository         = (*Store)(nil)
	_ ports.LocationHistoryRepository = (*Store)(nil)
	_ ports.EntitlementChecker        = (*Store)(nil)
)
