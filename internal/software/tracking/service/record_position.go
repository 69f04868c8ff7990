package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"delivery-track/internal/domain/session"
	"delivery-track/internal/domain/user"
	"delivery-track/internal/general/contracts"
	"delivery-track/internal/ports"
)

// RecordPosition stores one location observation: the session's last known
// position is overwritten and the full sample is archived to history. A
// driver update on a PENDING session promotes it to ACTIVE.
func (svc *trackingService) RecordPosition(ctx context.Context, in ports.RecordPositionInput) (*session.DeliverySession, error) {
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

		if err := sess.RecordPosition(in.Role, in.Position); err != nil {
			return err
		}
		if err := svc.sessions.UpdatePosition(ctx, sess.ID, in.Role, in.Position); err != nil {
			return err
		}

		rec := &ports.LocationRecord{
			ID:         uuid.NewString(),
			DeliveryID: sess.ID,
			Role:       in.Role,
			Latitude:   in.Position.Lat,
			Longitude:  in.Position.Lng,
			AccuracyM:  in.AccuracyM,
			SpeedKmh:   in.Position.SpeedKmh,
			RecordedAt: in.Position.Timestamp,
		}
		if err := svc.history.Archive(ctx, rec); err != nil {
			return err
		}

		if sess.Status == session.StatusPending && in.Role.IsDriver() {
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

	eventType := contracts.EventDriverLocation
	if in.Role.IsReceiver() {
		eventType = contracts.EventReceiverLocation
	}
	svc.publishEvent(ctx, contracts.DeliveryEventMessage{
		DeliveryID: out.ID,
		Type:       eventType,
		Role:       in.Role.String(),
		Location:   &contracts.GeoPoint{Lat: in.Position.Lat, Lng: in.Position.Lng},
		SpeedKMH:   in.Position.SpeedKmh,
		Timestamp:  in.Position.Timestamp,
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
