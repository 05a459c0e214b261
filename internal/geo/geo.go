package geo

import (
	"fmt"
	"math"

	"github.com/tidwall/geodesic"

	"github.com/example/visit-trip-linker/internal/models"
)

// DistanceFunc returns the distance in meters between two coordinates.
type DistanceFunc func(a, b models.Coord) float64

// Geodesic distance in meters on the WGS-84 ellipsoid.
func Geodesic(a, b models.Coord) float64 {
	var s12 float64
	geodesic.WGS84.Inverse(a.Lat, a.Lon, b.Lat, b.Lon, &s12, nil, nil)
	return s12
}

// Haversine distance in meters on a sphere of mean earth radius.
func Haversine(a, b models.Coord) float64 {
	const R = 6371000.0
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(a.Lat*math.Pi/180)*math.Cos(b.Lat*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return R * c
}

// RoundMeters rounds half to even, matching how the legacy pipeline rounded
// its kilometre distances.
func RoundMeters(m float64) int {
	return int(math.RoundToEven(m))
}

// ByName resolves a configured distance model. Empty selects geodesic.
func ByName(name string) (DistanceFunc, error) {
	switch name {
	case "", "geodesic":
		return Geodesic, nil
	case "haversine":
		return Haversine, nil
	default:
		return nil, fmt.Errorf("unknown distance model %q", name)
	}
}
