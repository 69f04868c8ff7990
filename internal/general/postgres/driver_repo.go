package postgres

import (
	"context"
	"fmt"

	"delivery-track/internal/ports"
)

// DriverRepo reads driver entitlement state using pgx and plain SQL.
// Subscription bookkeeping (payments, trial grants) happens elsewhere; the
// tracking core only asks a yes/no question before opening a session.
type DriverRepo struct{}

// NewDriverRepo constructs a new DriverRepo.
func NewDriverRepo() ports.EntitlementChecker {
	return &DriverRepo{}
}

// HasActiveEntitlement reports whether the driver may start new sessions:
// either the 7-day free trial window is still open, or a paid pass has not expired.
func (repo *DriverRepo) HasActiveEntitlement(ctx context.Context, driverID string) (bool, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return false, err
	}

	var ok bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM drivers
			WHERE id = $1
			  AND (
			        (free_trial_started IS NOT NULL AND free_trial_started > now() - interval '7 days')
			     OR (subscription_until IS NOT NULL AND subscription_until > now())
			  )
		)
	`, driverID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check driver entitlement: %w", err)
	}

	return ok, nil
}
