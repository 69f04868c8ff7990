package routing_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"delivery-track/internal/domain/geo"
	"delivery-track/internal/software/routing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOSRMProvider_FetchRoute(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"code": "Ok",
			"routes": [{
				"geometry": {"coordinates": [[30.0619,-1.9441],[30.08,-1.955],[30.1044,-1.9706]]},
				"distance": 6200,
				"duration": 840
			}]
		}`))
	}))
	defer srv.Close()

	p := routing.NewOSRMProvider(srv.URL, srv.Client())
	route, err := p.FetchRoute(context.Background(),
		geo.Point{Lat: -1.9441, Lng: 30.0619},
		geo.Point{Lat: -1.9706, Lng: 30.1044},
	)
	require.NoError(t, err)

	// OSRM takes lon,lat pairs on the path
	assert.Contains(t, gotPath, "/route/v1/driving/30.061900,-1.944100;30.104400,-1.970600")
	assert.Contains(t, gotQuery, "geometries=geojson")

	require.Len(t, route.Polyline, 3)
	// coordinates come back lon,lat and must be flipped
	assert.Equal(t, geo.Point{Lat: -1.9441, Lng: 30.0619}, route.Polyline[0])
	assert.Equal(t, 6.2, route.DistanceKm)
	assert.Equal(t, 14.0, route.DurationMinutes)
}

func TestOSRMProvider_NoRoute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":"NoRoute","routes":[]}`))
	}))
	defer srv.Close()

	p := routing.NewOSRMProvider(srv.URL, srv.Client())
	_, err := p.FetchRoute(context.Background(), geo.Point{}, geo.Point{Lat: 1, Lng: 1})
	assert.Error(t, err)
}

func TestOSRMProvider_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	p := routing.NewOSRMProvider(srv.URL, srv.Client())
	_, err := p.FetchRoute(context.Background(), geo.Point{}, geo.Point{Lat: 1, Lng: 1})
	assert.Error(t, err)
}
