package geo

import (
	"errors"
	"math"
	"time"
)

var (
	ErrInvalidLatitude  = errors.New("latitude must be between -90 and 90")
	ErrInvalidLongitude = errors.New("longitude must be between -180 and 180")
	ErrNonFiniteValue   = errors.New("coordinate values must be finite")
)

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate checks that both components are finite and inside valid ranges.
func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) ||
		math.IsNaN(p.Lng) || math.IsInf(p.Lng, 0) {
		return ErrNonFiniteValue
	}
	if p.Lat < -90 || p.Lat > 90 {
		return ErrInvalidLatitude
	}
	if p.Lng < -180 || p.Lng > 180 {
		return ErrInvalidLongitude
	}
	return nil
}

// Equal reports exact equality of both components.
func (p Point) Equal(other Point) bool {
	return p.Lat == other.Lat && p.Lng == other.Lng
}

// Position is a point observed at a moment in time, optionally with speed.
type Position struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	SpeedKmh  float64   `json:"speed_kmh,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Point returns the coordinate part of the position.
func (p Position) Point() Point {
	return Point{Lat: p.Lat, Lng: p.Lng}
}
