package routing

import (
	"context"
	"time"

	"delivery-track/internal/domain/geo"
	"delivery-track/internal/general/logger"
	"delivery-track/internal/ports"
)

// EstimatorOptions carries the estimator tunables.
type EstimatorOptions struct {
	ProviderTimeout time.Duration // upper bound on one provider call
	AssumedSpeedKmh float64       // speed used for fallback ETA
	FallbackPoints  int           // polyline samples in the fallback path
}

// Estimator implements ports.RouteService. It asks the external provider
// first and degrades to straight-line interpolation when the provider is
// slow, down, or returns an unusable route. Provider trouble is never
// surfaced to the caller; only invalid input is an error.
type Estimator struct {
	logger   *logger.Logger
	provider Provider
	opts     EstimatorOptions
}

// NewEstimator wires the route estimator.
func NewEstimator(logger *logger.Logger, provider Provider, opts EstimatorOptions) *Estimator {
	if opts.ProviderTimeout <= 0 {
		opts.ProviderTimeout = 10 * time.Second
	}
	if opts.AssumedSpeedKmh <= 0 {
		opts.AssumedSpeedKmh = 30
	}
	if opts.FallbackPoints < 2 {
		opts.FallbackPoints = 10
	}
	return &Estimator{logger: logger, provider: provider, opts: opts}
}

// Estimate computes a route between two points.
func (e *Estimator) Estimate(ctx context.Context, start, end geo.Point) (ports.RouteResult, error) {
	if err := start.Validate(); err != nil {
		return ports.RouteResult{}, err
	}
	if err := end.Validate(); err != nil {
		return ports.RouteResult{}, err
	}

	if start.Equal(end) {
		return ports.RouteResult{
			Polyline:   []geo.Point{start},
			DistanceKm: 0,
			EtaMinutes: 0,
			Source:     ports.SourceSameLocation,
		}, nil
	}

	// The straight-line estimate is always available; the provider only
	// replaces it when it returns a usable route in time.
	result := e.fallback(start, end)

	if e.provider != nil {
		callCtx, cancel := context.WithTimeout(ctx, e.opts.ProviderTimeout)
		route, err := e.provider.FetchRoute(callCtx, start, end)
		cancel()
		switch {
		case err != nil:
			e.logger.Debug(ctx, "route_provider_failed", "Routing provider unavailable, falling back", map[string]any{
				"error": err.Error(),
			})
		case len(route.Polyline) < 2:
			e.logger.Debug(ctx, "route_provider_degenerate", "Routing provider returned a degenerate route, falling back", map[string]any{
				"points": len(route.Polyline),
			})
		default:
			result = ports.RouteResult{
				Polyline:   route.Polyline,
				DistanceKm: route.DistanceKm,
				EtaMinutes: route.DurationMinutes,
				Source:     ports.SourceProvider,
			}
		}
	}

	return result, nil
}

// fallback produces a straight-line estimate: evenly interpolated points and
// an ETA assuming a constant average speed.
func (e *Estimator) fallback(start, end geo.Point) ports.RouteResult {
	distanceKm := geo.HaversineMeters(start.Lat, start.Lng, end.Lat, end.Lng) / 1000.0
	return ports.RouteResult{
		Polyline:   geo.Interpolate(start.Lat, start.Lng, end.Lat, end.Lng, e.opts.FallbackPoints),
		DistanceKm: distanceKm,
		EtaMinutes: distanceKm / e.opts.AssumedSpeedKmh * 60.0,
		Source:     ports.SourceInterpolated,
	}
}
