package geo

import "math"

// earthRadiusMeters is the mean Earth radius used by the haversine formula.
const earthRadiusMeters = 6371000.0

// HaversineMeters returns the great-circle distance between two coordinates in meters.
func HaversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Asin(math.Sqrt(a))

	return earthRadiusMeters * c
}

// Interpolate returns n points evenly spaced in lat/lng space between start and end.
// The first point is exactly the start and the last exactly the end. n must be >= 2.
func Interpolate(lat1, lng1, lat2, lng2 float64, n int) []Point {
	if n < 2 {
		n = 2
	}

	points := make([]Point, n)
	for i := 0; i < n; i++ {
		t := float64(i) / float64(n-1)
		points[i] = Point{
			Lat: lat1 + (lat2-lat1)*t,
			Lng: lng1 + (lng2-lng1)*t,
		}
	}

	// pin the endpoints to avoid float drift
	points[0] = Point{Lat: lat1, Lng: lng1}
	points[n-1] = Point{Lat: lat2, Lng: lng2}

	return points
}
