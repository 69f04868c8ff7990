package service

import (
	"context"
	"strings"
	"time"

	"delivery-track/internal/domain/session"
	"delivery-track/internal/general/contracts"
	"delivery-track/internal/ports"
)

// CreateSession opens a new tracking session for an entitled driver and
// returns the session together with the receiver tracking link.
func (svc *trackingService) CreateSession(ctx context.Context, in ports.CreateSessionInput) (ports.CreateSessionResult, error) {
	var out ports.CreateSessionResult

	driverID := strings.TrimSpace(in.DriverID)
	if driverID == "" {
		return out, session.ErrDriverRequired
	}
	if strings.TrimSpace(in.ReceiverPhone) == "" {
		return out, session.ErrReceiverPhoneRequired
	}

	err := svc.uow.WithinTx(ctx, func(ctx context.Context) error {
		// subscription / free-trial gate; billing itself lives elsewhere
		ok, err := svc.entitlements.HasActiveEntitlement(ctx, driverID)
		if err != nil {
			return err
		}
		if !ok {
			return session.ErrNotEntitled
		}

		sess, err := session.NewDeliverySession(driverID, in.ReceiverPhone, svc.opts.TokenTTL)
		if err != nil {
			return err
		}
		if err := svc.sessions.Create(ctx, sess); err != nil {
			return err
		}

		out.Session = sess
		out.TrackingLink = svc.opts.BaseLinkURL + "/" + sess.TrackingToken
		return nil
	})
	if err != nil {
		svc.logger.Error(ctx, "session_create_failed", "Failed to create delivery session", err, map[string]any{
			"driver_id": driverID,
		})
		return ports.CreateSessionResult{}, err
	}

	svc.logger.Info(ctx, "session_created", "Delivery session created", map[string]any{
		"delivery_id": out.Session.ID,
		"driver_id":   driverID,
	})

	svc.publishEvent(ctx, contracts.DeliveryEventMessage{
		DeliveryID: out.Session.ID,
		Type:       contracts.EventSessionCreated,
		Status:     out.Session.Status.String(),
		Timestamp:  time.Now().UTC(),
	})

	return out, nil
}
