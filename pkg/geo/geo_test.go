package geo

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func TestPointToSegment(t *testing.T) {
	tests := []struct {
		name      string
		p, a, b   orb.Point
		wantDist  float64
		wantRatio float64
	}{
		{"perpendicular midpoint", orb.Point{5, 3}, orb.Point{0, 0}, orb.Point{10, 0}, 3, 0.5},
		{"before start", orb.Point{-4, 3}, orb.Point{0, 0}, orb.Point{10, 0}, 5, 0},
		{"past end", orb.Point{13, 4}, orb.Point{0, 0}, orb.Point{10, 0}, 5, 1},
		{"on segment", orb.Point{0, 2}, orb.Point{0, 0}, orb.Point{0, 8}, 0, 0.25},
		{"degenerate", orb.Point{3, 4}, orb.Point{0, 0}, orb.Point{0, 0}, 5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, r := PointToSegment(tt.p, tt.a, tt.b)
			if math.Abs(d-tt.wantDist) > 1e-12 {
				t.Errorf("dist = %v, want %v", d, tt.wantDist)
			}
			if math.Abs(r-tt.wantRatio) > 1e-12 {
				t.Errorf("ratio = %v, want %v", r, tt.wantRatio)
			}
		})
	}
}

func TestInterpolate(t *testing.T) {
	got := Interpolate(orb.Point{0, 0}, orb.Point{4, -2}, 0.25)
	if got != (orb.Point{1, -0.5}) {
		t.Errorf("Interpolate = %v", got)
	}
}

func TestHaversine(t *testing.T) {
	// London to Paris, ~343.5 km.
	got := Haversine(51.5074, -0.1278, 48.8566, 2.3522)
	if diff := math.Abs(got-343_500) / 343_500 * 100; diff > 1 {
		t.Errorf("Haversine = %f m, want ~343500 m (diff %.1f%%)", got, diff)
	}
	if got := Haversine(1.3521, 103.8198, 1.3521, 103.8198); got != 0 {
		t.Errorf("same point = %f, want 0", got)
	}
}

func TestGeorefLatLon(t *testing.T) {
	g := Georef{OriginLat: 36.05, OriginLon: -115.2, MetersPerPixel: 10}

	lat, lon := g.LatLon(orb.Point{0, 0})
	if lat != g.OriginLat || lon != g.OriginLon {
		t.Fatalf("origin = (%v, %v)", lat, lon)
	}

	// Pixel y grows south, pixel x grows east.
	south, _ := g.LatLon(orb.Point{0, 100})
	if south >= g.OriginLat {
		t.Errorf("y+ should move south: %v", south)
	}
	_, east := g.LatLon(orb.Point{100, 0})
	if east <= g.OriginLon {
		t.Errorf("x+ should move east: %v", east)
	}

	// 100 pixels at 10 m/px is about 1 km on the ground in either axis.
	for _, p := range []orb.Point{{100, 0}, {0, 100}} {
		got := g.GroundLength(orb.LineString{{0, 0}, p})
		if math.Abs(got-1000) > 5 {
			t.Errorf("GroundLength to %v = %f m, want ~1000", p, got)
		}
	}
}

func TestGeorefDisabled(t *testing.T) {
	var g Georef
	if g.Enabled() {
		t.Fatal("zero Georef should be disabled")
	}
	p := orb.Point{3, 4}
	if g.Project(p) != p {
		t.Errorf("Project changed %v", p)
	}
	if got := g.GroundLength(orb.LineString{{0, 0}, {3, 4}, {3, 10}}); got != 11 {
		t.Errorf("GroundLength = %v, want 11 pixels", got)
	}
	if err := g.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestGeorefValidate(t *testing.T) {
	bad := []Georef{
		{OriginLat: 91, MetersPerPixel: 1},
		{OriginLon: 200, MetersPerPixel: 1},
		{OriginLat: math.NaN(), MetersPerPixel: 1},
		{MetersPerPixel: math.Inf(1)},
	}
	for _, g := range bad {
		if err := g.Validate(); err == nil {
			t.Errorf("Validate(%+v) = nil, want error", g)
		}
	}
}
