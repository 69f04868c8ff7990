package routing

import (
	"context"

	"delivery-track/internal/domain/geo"
)

// ProviderRoute is a raw route as returned by an external routing provider.
type ProviderRoute struct {
	Polyline        []geo.Point
	DistanceKm      float64
	DurationMinutes float64
}

// Provider fetches a driving route from an external service. Implementations
// must honor ctx cancellation; the estimator bounds every call with a timeout.
type Provider interface {
	FetchRoute(ctx context.Context, start, end geo.Point) (*ProviderRoute, error)
}
