package service

import (
	"context"
	"time"

	"delivery-track/internal/domain/session"
)

// ResolveTrackingToken exchanges a tracking link token for the session it
// grants access to. Expired tokens are reported distinctly so the transport
// can signal "gone" rather than "not found".
func (svc *trackingService) ResolveTrackingToken(ctx context.Context, token string) (*session.DeliverySession, error) {
	if !session.ValidTrackingToken(token) {
		return nil, session.ErrNotFound
	}

	var out *session.DeliverySession
	err := svc.uow.WithinTx(ctx, func(ctx context.Context) error {
		sess, err := svc.sessions.GetByToken(ctx, token)
		if err != nil {
			return err
		}
		if sess.TokenExpired(time.Now().UTC()) {
			return session.ErrTokenExpired
		}
		out = sess
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
