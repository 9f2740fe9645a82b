// Package smooth turns staircased pixel paths into renderable road curves.
//
// The pipeline is relax, decimate, shift right, relax again. Stage order and
// parameters determine the drawn shape, so DefaultParams should only change
// together with the renderer that consumes the output.
package smooth

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/paulmach/orb"
)

// DefaultTolerance is the convergence threshold for Relax.
const DefaultTolerance = 0.0001

// maxRelaxSweeps bounds Relax for parameter choices that do not contract.
const maxRelaxSweeps = 100_000

// ErrInvalidParams is returned by Params.Validate.
var ErrInvalidParams = errors.New("invalid smoothing parameters")

// RelaxParams configures one relaxation pass.
type RelaxParams struct {
	Alpha     float64 `json:"alpha"`     // pull toward the original point
	Beta      float64 `json:"beta"`      // pull toward the neighbor average
	Tolerance float64 `json:"tolerance"` // stop when a sweep moves less than this in total
}

// ShiftParams configures the lateral offset.
type ShiftParams struct {
	Distance   float64 `json:"distance"`
	LookAround int     `json:"look_around"`
	Taper      float64 `json:"taper"`
}

// Params holds the settings for all four stages.
type Params struct {
	First    RelaxParams `json:"first"`
	Decimate float64     `json:"decimate"`
	Shift    ShiftParams `json:"shift"`
	Second   RelaxParams `json:"second"`
}

// DefaultParams returns the production settings.
func DefaultParams() Params {
	return Params{
		First:    RelaxParams{Alpha: 0.3, Beta: 0.3, Tolerance: DefaultTolerance},
		Decimate: 1,
		Shift:    ShiftParams{Distance: 1.5, LookAround: 3, Taper: 3},
		Second:   RelaxParams{Alpha: 0.7, Beta: 0.1, Tolerance: DefaultTolerance},
	}
}

// Validate checks that every parameter is finite and in range.
func (p Params) Validate() error {
	for name, r := range map[string]RelaxParams{"first": p.First, "second": p.Second} {
		if err := r.validate(); err != nil {
			return fmt.Errorf("%w: %s relax pass: %v", ErrInvalidParams, name, err)
		}
	}
	if !finite(p.Decimate) || p.Decimate < 0 {
		return fmt.Errorf("%w: decimate threshold %v", ErrInvalidParams, p.Decimate)
	}
	if !finite(p.Shift.Distance) {
		return fmt.Errorf("%w: shift distance %v", ErrInvalidParams, p.Shift.Distance)
	}
	if p.Shift.LookAround < 0 {
		return fmt.Errorf("%w: look-around %d", ErrInvalidParams, p.Shift.LookAround)
	}
	if !finite(p.Shift.Taper) || p.Shift.Taper < 0 {
		return fmt.Errorf("%w: taper %v", ErrInvalidParams, p.Shift.Taper)
	}
	return nil
}

func (r RelaxParams) validate() error {
	if !finite(r.Alpha) || r.Alpha < 0 || r.Alpha >= 1 {
		return fmt.Errorf("alpha %v not in [0, 1)", r.Alpha)
	}
	if !finite(r.Beta) || r.Beta < 0 || r.Beta >= 1 {
		return fmt.Errorf("beta %v not in [0, 1)", r.Beta)
	}
	if !finite(r.Tolerance) || r.Tolerance <= 0 {
		return fmt.Errorf("tolerance %v must be positive", r.Tolerance)
	}
	return nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// Smooth runs the four-stage pipeline over a raw pixel path. Paths with fewer
// than two points are converted but otherwise returned as-is.
func Smooth(path []image.Point, p Params) orb.LineString {
	points := FromPixels(path)
	if len(points) < 2 {
		return points
	}
	points = Relax(points, p.First.Alpha, p.First.Beta, p.First.Tolerance)
	points = RemoveClosePoints(points, p.Decimate)
	points = ShiftPath(points, p.Shift.Distance, p.Shift.LookAround, p.Shift.Taper)
	points = Relax(points, p.Second.Alpha, p.Second.Beta, p.Second.Tolerance)
	return points
}

// FromPixels converts integer pixel coordinates to a line string.
func FromPixels(path []image.Point) orb.LineString {
	ls := make(orb.LineString, len(path))
	for i, p := range path {
		ls[i] = orb.Point{float64(p.X), float64(p.Y)}
	}
	return ls
}

// Relax returns a smoothed copy of points using Gauss-Seidel sweeps. Each
// interior point is pulled toward its original position by alpha and toward
// the midpoint of its current neighbors by beta. The first two and last two
// points never move. Sweeps repeat until the total movement in one sweep
// drops below tol.
func Relax(points orb.LineString, alpha, beta, tol float64) orb.LineString {
	out := make(orb.LineString, len(points))
	copy(out, points)
	for range maxRelaxSweeps {
		if sweep(points, out, alpha, beta) < tol {
			break
		}
	}
	return out
}

// sweep updates cur in place from index 2 to len-3 and returns the summed
// absolute movement.
func sweep(orig, cur orb.LineString, alpha, beta float64) float64 {
	loss := 0.0
	for i := 2; i < len(orig)-2; i++ {
		c := cur[i]
		prev := cur[i-1]
		next := cur[i+1]

		x := c[0] + alpha*(orig[i][0]-c[0]) + beta*(next[0]+prev[0]-2*c[0])
		y := c[1] + alpha*(orig[i][1]-c[1]) + beta*(next[1]+prev[1]-2*c[1])
		cur[i] = orb.Point{x, y}
		loss += math.Abs(x-c[0]) + math.Abs(y-c[1])
	}
	return loss
}

// RemoveClosePoints drops interior points that lie within thresh of both the
// last kept point and the next original point. The first two and last two
// points are always kept; paths shorter than four points are returned as-is.
func RemoveClosePoints(points orb.LineString, thresh float64) orb.LineString {
	n := len(points)
	if n < 4 {
		return points
	}
	out := make(orb.LineString, 0, n)
	out = append(out, points[0], points[1])
	for i := 2; i < n-2; i++ {
		p := points[i]
		d1 := dist(p, out[len(out)-1])
		d2 := dist(points[i+1], p)
		if d1 > thresh || d2 > thresh {
			out = append(out, p)
		}
	}
	return append(out, points[n-2], points[n-1])
}

// ShiftPath offsets every point to the right of the direction of travel.
//
// The tangent at a point is a weighted sum of the segment vectors within
// lookAround of it, with weight 1-(d/(lookAround+1))^2. The offset ramps
// linearly from zero at either end to the full distance taper points in; a
// taper of zero disables the ramp. A point whose tangent sums to zero is
// left where it is.
func ShiftPath(points orb.LineString, distance float64, lookAround int, taper float64) orb.LineString {
	n := len(points)
	out := make(orb.LineString, n)
	falloff := func(d int) float64 {
		r := float64(d) / float64(lookAround+1)
		return 1 - r*r
	}

	for c, p := range points {
		// Look no further ahead than the path allows, but at least one segment.
		around := max(1, min(lookAround, n-1-c))

		var tx, ty float64
		for i := c - around; i <= c+around; i++ {
			if i <= 0 {
				continue
			}
			if i >= n {
				break
			}
			f := falloff(i - c)
			tx += (points[i][0] - points[i-1][0]) * f
			ty += (points[i][1] - points[i-1][1]) * f
		}

		length := math.Hypot(tx, ty)
		if length == 0 || !finite(length) {
			out[c] = p
			continue
		}
		tx /= length
		ty /= length

		// Unit normal pointing right of travel.
		nx, ny := -ty, tx

		s := distance * taperFactor(c, n, taper)
		out[c] = orb.Point{p[0] + nx*s, p[1] + ny*s}
	}
	return out
}

func taperFactor(idx, n int, taper float64) float64 {
	if taper == 0 {
		return 1
	}
	fromEnd := float64(min(idx, n-1-idx))
	return math.Min(fromEnd/taper, 1)
}

func dist(a, b orb.Point) float64 {
	return math.Hypot(a[0]-b[0], a[1]-b[1])
}
