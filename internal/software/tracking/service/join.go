package service

import (
	"context"
	"strings"
	"time"

	"delivery-track/internal/domain/session"
	"delivery-track/internal/domain/user"
	"delivery-track/internal/general/contracts"
	"delivery-track/internal/ports"
)

// Join validates a realtime subscription against the session and promotes
// PENDING sessions to ACTIVE on the first accepted join.
//
// Drivers must own the session. Receivers hold no account: by default any
// caller with the session identifier may observe it (the tracking link is the
// credential), with strict phone matching available as an opt-in.
func (svc *trackingService) Join(ctx context.Context, in ports.JoinInput) (*session.DeliverySession, error) {
	if !in.Role.Valid() || in.Role.IsAdmin() {
		return nil, user.ErrInvalidRole
	}

	unlock := svc.lockSession(in.SessionID)
	defer unlock()

	var out *session.DeliverySession
	var promoted bool
	err := svc.uow.WithinTx(ctx, func(ctx context.Context) error {
		sess, err := svc.sessions.GetByID(ctx, in.SessionID)
		if err != nil {
			return err
		}
		if sess.Status.Terminal() {
			return session.ErrSessionNotActive
		}

		switch in.Role {
		case user.RoleDriver:
			if !sess.OwnedBy(in.CallerDriverID) {
				return session.ErrRoleMismatch
			}
		case user.RoleReceiver:
			if svc.opts.StrictReceiverMatch &&
				strings.TrimSpace(in.Phone) != sess.ReceiverPhone {
				return session.ErrRoleMismatch
			}
		}

		if sess.Status == session.StatusPending {
			if err := sess.Activate(); err != nil {
				return err
			}
			if err := svc.sessions.UpdateStatus(ctx, sess); err != nil {
				return err
			}
			promoted = true
		}

		out = sess
		return nil
	})
	if err != nil {
		return nil, err
	}

	svc.logger.Info(ctx, "session_joined", "Subscriber joined delivery session", map[string]any{
		"delivery_id": out.ID,
		"role":        in.Role.String(),
	})
	if promoted {
		svc.publishEvent(ctx, contracts.DeliveryEventMessage{
			DeliveryID: out.ID,
			Type:       contracts.EventSessionStatus,
			Status:     out.Status.String(),
			Timestamp:  time.Now().UTC(),
		})
	}

	return out, nil
}
