// Package geo holds the small amount of geometry shared by routing and the
// exporters: planar point-to-segment projection on the pixel grid and an
// optional georeference for placing the map on the globe.
package geo

import (
	"errors"
	"math"

	"github.com/paulmach/orb"
)

const earthRadiusMeters = 6_371_000.0

// PointToSegment returns the distance from p to segment ab and the
// projection ratio along ab, clamped to [0, 1]. A degenerate segment
// reports ratio 0.
func PointToSegment(p, a, b orb.Point) (dist float64, ratio float64) {
	dx := b[0] - a[0]
	dy := b[1] - a[1]
	lenSq := dx*dx + dy*dy

	var t float64
	if lenSq > 0 {
		t = ((p[0]-a[0])*dx + (p[1]-a[1])*dy) / lenSq
		t = math.Max(0, math.Min(1, t))
	}
	ex := p[0] - (a[0] + t*dx)
	ey := p[1] - (a[1] + t*dy)
	return math.Hypot(ex, ey), t
}

// Interpolate returns the point at ratio t along ab.
func Interpolate(a, b orb.Point, t float64) orb.Point {
	return orb.Point{a[0] + t*(b[0]-a[0]), a[1] + t*(b[1]-a[1])}
}

// Haversine returns the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	lat1r := lat1 * math.Pi / 180
	lat2r := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1r)*math.Cos(lat2r)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Georef places pixel (0, 0) at a coordinate with a fixed ground resolution.
// Pixel x grows east and pixel y grows south. The zero value means the map
// is not georeferenced.
type Georef struct {
	OriginLat      float64 `json:"origin_lat"`
	OriginLon      float64 `json:"origin_lon"`
	MetersPerPixel float64 `json:"meters_per_pixel"`
}

// Enabled reports whether g describes a real placement.
func (g Georef) Enabled() bool { return g.MetersPerPixel > 0 }

// Validate rejects placements that cannot be projected.
func (g Georef) Validate() error {
	if !g.Enabled() {
		return nil
	}
	if math.IsNaN(g.OriginLat) || g.OriginLat <= -90 || g.OriginLat >= 90 {
		return errors.New("georef origin latitude out of range")
	}
	if math.IsNaN(g.OriginLon) || g.OriginLon < -180 || g.OriginLon > 180 {
		return errors.New("georef origin longitude out of range")
	}
	if math.IsInf(g.MetersPerPixel, 0) {
		return errors.New("georef resolution must be finite")
	}
	return nil
}

// LatLon projects a pixel position with an equirectangular approximation,
// which is accurate over the few kilometers a park map covers.
func (g Georef) LatLon(p orb.Point) (lat, lon float64) {
	const degPerRad = 180 / math.Pi
	lat = g.OriginLat - p[1]*g.MetersPerPixel/earthRadiusMeters*degPerRad
	cosLat := math.Cos(g.OriginLat * math.Pi / 180)
	lon = g.OriginLon + p[0]*g.MetersPerPixel/(earthRadiusMeters*cosLat)*degPerRad
	return lat, lon
}

// Project maps p to [lon, lat] when g is enabled and returns p unchanged
// otherwise.
func (g Georef) Project(p orb.Point) orb.Point {
	if !g.Enabled() {
		return p
	}
	lat, lon := g.LatLon(p)
	return orb.Point{lon, lat}
}

// ProjectLine applies Project to every point of ls.
func (g Georef) ProjectLine(ls orb.LineString) orb.LineString {
	out := make(orb.LineString, len(ls))
	for i, p := range ls {
		out[i] = g.Project(p)
	}
	return out
}

// GroundLength returns the length of ls in meters when g is enabled, or in
// pixels otherwise.
func (g Georef) GroundLength(ls orb.LineString) float64 {
	total := 0.0
	for i := 1; i < len(ls); i++ {
		if !g.Enabled() {
			total += math.Hypot(ls[i][0]-ls[i-1][0], ls[i][1]-ls[i-1][1])
			continue
		}
		lat1, lon1 := g.LatLon(ls[i-1])
		lat2, lon2 := g.LatLon(ls[i])
		total += Haversine(lat1, lon1, lat2, lon2)
	}
	return total
}
