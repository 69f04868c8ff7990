package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"delivery-track/internal/domain/geo"
)

// OSRMProvider queries an OSRM-compatible routing server. The public demo
// server speaks the same API, so the base URL is the only tunable.
type OSRMProvider struct {
	baseURL string
	client  *http.Client
}

// NewOSRMProvider builds a provider against the given OSRM base URL,
// e.g. https://router.project-osrm.org.
func NewOSRMProvider(baseURL string, client *http.Client) *OSRMProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &OSRMProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

type osrmResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
		Distance float64 `json:"distance"` // meters
		Duration float64 `json:"duration"` // seconds
	} `json:"routes"`
}

// FetchRoute asks OSRM for a driving route between two points. OSRM expects
// lon,lat ordering on the wire and returns GeoJSON coordinates the same way.
func (p *OSRMProvider) FetchRoute(ctx context.Context, start, end geo.Point) (*ProviderRoute, error) {
	url := fmt.Sprintf("%s/route/v1/driving/%f,%f;%f,%f?overview=full&geometries=geojson",
		p.baseURL, start.Lng, start.Lat, end.Lng, end.Lat)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build osrm request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("osrm request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("osrm status %d", resp.StatusCode)
	}

	var body osrmResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode osrm response: %w", err)
	}
	if body.Code != "Ok" || len(body.Routes) == 0 {
		return nil, fmt.Errorf("osrm returned no route (code %q)", body.Code)
	}

	route := body.Routes[0]
	polyline := make([]geo.Point, 0, len(route.Geometry.Coordinates))
	for _, c := range route.Geometry.Coordinates {
		if len(c) < 2 {
			continue
		}
		polyline = append(polyline, geo.Point{Lat: c[1], Lng: c[0]})
	}

	return &ProviderRoute{
		Polyline:        polyline,
		DistanceKm:      route.Distance / 1000.0,
		DurationMinutes: route.Duration / 60.0,
	}, nil
}
