package service

import (
	"context"
	"time"

	"delivery-track/internal/domain/session"
	"delivery-track/internal/general/contracts"
	"delivery-track/internal/ports"
)

// Transition applies a status change under the session's mutex. Repeating a
// terminal transition is a no-op success so duplicate end-of-delivery signals
// from flaky clients never surface as errors.
func (svc *trackingService) Transition(ctx context.Context, in ports.TransitionInput) (*session.DeliverySession, error) {
	unlock := svc.lockSession(in.SessionID)
	defer unlock()

	var out *session.DeliverySession
	var changed bool

	err := svc.uow.WithinTx(ctx, func(ctx context.Context) error {
		sess, err := svc.sessions.GetByID(ctx, in.SessionID)
		if err != nil {
			return err
		}
		if in.CallerDriverID != "" && !sess.OwnedBy(in.CallerDriverID) {
			return session.ErrRoleMismatch
		}

		prev := sess.Status
		if err := sess.ApplyTransition(in.Target); err != nil {
			return err
		}

		changed = sess.Status != prev
		if changed {
			if err := svc.sessions.UpdateStatus(ctx, sess); err != nil {
				return err
			}
		}

		out = sess
		return nil
	})
	if err != nil {
		svc.logger.Error(ctx, "session_transition_failed", "Failed to transition delivery session", err, map[string]any{
			"delivery_id": in.SessionID,
			"target":      in.Target.String(),
		})
		return nil, err
	}

	if changed {
		svc.logger.Info(ctx, "session_transitioned", "Delivery session status changed", map[string]any{
			"delivery_id": out.ID,
			"status":      out.Status.String(),
		})
		svc.publishEvent(ctx, contracts.DeliveryEventMessage{
			DeliveryID: out.ID,
			Type:       contracts.EventSessionStatus,
			Status:     out.Status.String(),
			Timestamp:  time.Now().UTC(),
		})
	}

	return out, nil
}
