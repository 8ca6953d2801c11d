// Package geo holds great-circle helpers for coordinate matching.
package geo

import "math"

const earthRadiusMeters = 6371000.0

// Distance returns the haversine distance in meters.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180.0
	dLon := (lon2 - lon1) * math.Pi / 180.0
	la1 := lat1 * math.Pi / 180.0
	la2 := lat2 * math.Pi / 180.0
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Sin(dLon/2)*math.Sin(dLon/2)*math.Cos(la1)*math.Cos(la2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

// Box is a lat/lng bounding box.
type Box struct {
	MinLat, MaxLat, MinLng, MaxLng float64
}

// BoundingBox returns a box containing every point within radius meters of
// (lat, lng). It over-approximates the circle; callers filter by Distance.
func BoundingBox(lat, lng, radius float64) Box {
	dLat := radius / 111320.0
	cos := math.Cos(lat * math.Pi / 180.0)
	dLng := 180.0
	if cos > 1e-6 {
		dLng = math.Min(radius/(111320.0*cos), 180.0)
	}
	return Box{MinLat: lat - dLat, MaxLat: lat + dLat, MinLng: lng - dLng, MaxLng: lng + dLng}
}

// Contains reports whether (lat, lng) is inside the box.
func (b Box) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}
