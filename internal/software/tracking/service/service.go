package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"delivery-track/internal/domain/session"
	"delivery-track/internal/general/contracts"
	"delivery-track/internal/general/logger"
	"delivery-track/internal/ports"
)

// Options carries the tunables of the tracking service.
type Options struct {
	BaseLinkURL         string        // prefix for receiver tracking links, e.g. https://host/t
	TokenTTL            time.Duration // tracking token lifetime
	StrictReceiverMatch bool          // enforce receiver phone equality on join/update
}

// trackingService implements ports.SessionService. It owns the session
// lifecycle, the authorization rules, and per-session serialization: all
// mutations of one session go through that session's mutex, while unrelated
// sessions proceed in parallel.
type trackingService struct {
	logger       *logger.Logger
	uow          ports.UnitOfWork
	sessions     ports.SessionRepository
	history      ports.LocationHistoryRepository
	entitlements ports.EntitlementChecker
	pub          ports.EventPublisher // optional; nil disables broker notifications
	opts         Options

	locks sync.Map // session id -> *sync.Mutex
}

// NewTrackingService wires the session service with its collaborators.
func NewTrackingService(
	logger *logger.Logger,
	uow ports.UnitOfWork,
	sessions ports.SessionRepository,
	history ports.LocationHistoryRepository,
	entitlements ports.EntitlementChecker,
	pub ports.EventPublisher,
	opts Options,
) ports.SessionService {
	if opts.TokenTTL == 0 {
		opts.TokenTTL = 24 * time.Hour
	}
	opts.BaseLinkURL = strings.TrimRight(opts.BaseLinkURL, "/")

	return &trackingService{
		logger:       logger,
		uow:          uow,
		sessions:     sessions,
		history:      history,
		entitlements: entitlements,
		pub:          pub,
		opts:         opts,
	}
}

// GetOwnedSession loads a session and verifies the driver owns it.
func (svc *trackingService) GetOwnedSession(ctx context.Context, sessionID, driverID string) (*session.DeliverySession, error) {
	var out *session.DeliverySession
	err := svc.uow.WithinTx(ctx, func(ctx context.Context) error {
		sess, err := svc.sessions.GetByID(ctx, sessionID)
		if err != nil {
			return err
		}
		if !sess.OwnedBy(driverID) {
			return session.ErrRoleMismatch
		}
		out = sess
		return nil
	})
	return out, err
}

// GetSession loads a session without an ownership check. Reserved for admin
// callers; the transport layer gates who may reach it.
func (svc *trackingService) GetSession(ctx context.Context, sessionID string) (*session.DeliverySession, error) {
	var out *session.DeliverySession
	err := svc.uow.WithinTx(ctx, func(ctx context.Context) error {
		sess, err := svc.sessions.GetByID(ctx, sessionID)
		if err != nil {
			return err
		}
		out = sess
		return nil
	})
	return out, err
}

// ----- internal helpers -----

// lockSession acquires the per-session mutex and returns its unlock func.
// Mutexes are created lazily and never removed; one entry per live session id
// is cheap and avoids unlock-vs-delete races.
func (svc *trackingService) lockSession(id string) func() {
	v, _ := svc.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// publishEvent pushes a notification to the broker. Failures are logged and
// swallowed: the broker is a sink, never a gate on the request path.
func (svc *trackingService) publishEvent(ctx context.Context, msg contracts.DeliveryEventMessage) {
	if svc.pub == nil {
		return
	}
	msg.Producer = "tracking-service"
	msg.SentAt = time.Now().UTC()

	body, err := json.Marshal(msg)
	if err != nil {
		svc.logger.Error(ctx, "event_marshal_failed", "Failed to marshal delivery event", err, map[string]any{
			"delivery_id": msg.DeliveryID,
			"type":        msg.Type,
		})
		return
	}
	if err := svc.pub.Publish(contracts.ExchangeDeliveryFanout, "", body); err != nil {
		svc.logger.Error(ctx, "event_publish_failed", "Failed to publish delivery event", err, map[string]any{
			"delivery_id": msg.DeliveryID,
			"type":        msg.Type,
		})
	}
}
