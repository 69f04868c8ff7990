package postgres

import (
	"context"
	"fmt"

	"delivery-track/internal/ports"
)

// LocationHistoryRepo archives accepted position updates using pgx and plain SQL.
type LocationHistoryRepo struct{}

// NewLocationHistoryRepo constructs a new LocationHistoryRepo.
func NewLocationHistoryRepo() ports.LocationHistoryRepository {
	return &LocationHistoryRepo{}
}

// Archive appends one observation to delivery_locations.
func (repo *LocationHistoryRepo) Archive(ctx context.Context, rec *ports.LocationRecord) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO delivery_locations (
			id, delivery_id, role, latitude, longitude, accuracy_m, speed_kmh, recorded_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		rec.ID, rec.DeliveryID, rec.Role.String(),
		rec.Latitude, rec.Longitude, rec.AccuracyM, rec.SpeedKmh, rec.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("archive delivery location: %w", err)
	}

	return nil
}
