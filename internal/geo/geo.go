// Package geo holds coordinate types and great-circle math shared by the
// place search and filtering layers.
package geo

import (
	"math"

	"github.com/rotisserie/eris"
)

const earthRadiusM = 6371000.0

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64
	Lon float64
}

// PointFromLonLat unpacks a [lon, lat] pair (GeoJSON order). This is the only
// place the request wire order is interpreted; everything downstream works
// with named Lat/Lon fields.
func PointFromLonLat(pair [2]float64) Point {
	return Point{Lat: pair[1], Lon: pair[0]}
}

// Validate checks coordinate ranges.
func (p Point) Validate() error {
	if p.Lat < -90 || p.Lat > 90 {
		return eris.Errorf("geo: latitude %.6f out of range", p.Lat)
	}
	if p.Lon < -180 || p.Lon > 180 {
		return eris.Errorf("geo: longitude %.6f out of range", p.Lon)
	}
	return nil
}

// HaversineM returns the great-circle distance between two points in meters.
func HaversineM(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusM * math.Asin(math.Sqrt(h))
}
