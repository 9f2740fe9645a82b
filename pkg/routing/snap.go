package routing

import (
	"errors"
	"math"

	"github.com/paulmach/orb"
	"github.com/tidwall/rtree"

	"roadnet/pkg/geo"
	"roadnet/pkg/graph"
)

// DefaultSnapDistance is the default search radius in pixels.
const DefaultSnapDistance = 10.0

// ErrPointTooFar is returned when the query point is too far from any road.
var ErrPointTooFar = errors.New("point too far from road")

// SnapResult represents a point snapped to a smoothed edge.
type SnapResult struct {
	Edge    graph.PathKey
	Segment int       // index of the segment's first vertex in the edge geometry
	Ratio   float64   // 0.0 = at the first vertex, 1.0 = at the second
	Dist    float64   // pixels from the query point to Point
	Point   orb.Point // the snapped position
}

type segRef struct {
	key graph.PathKey
	idx int
}

// Snapper provides nearest-edge snapping over an R-tree of edge segments.
// Both directions of a road are indexed; since they are offset to opposite
// sides, the nearer one is the lane the point is on.
type Snapper struct {
	tr    rtree.RTreeG[segRef]
	paths graph.SmoothedPathTable
}

// NewSnapper indexes every segment of every smoothed edge.
func NewSnapper(paths graph.SmoothedPathTable) *Snapper {
	s := &Snapper{paths: paths}
	for key, ls := range paths {
		for i := 1; i < len(ls); i++ {
			a, b := ls[i-1], ls[i]
			s.tr.Insert(
				[2]float64{math.Min(a[0], b[0]), math.Min(a[1], b[1])},
				[2]float64{math.Max(a[0], b[0]), math.Max(a[1], b[1])},
				segRef{key: key, idx: i - 1},
			)
		}
	}
	return s
}

// Len returns the number of indexed segments.
func (s *Snapper) Len() int { return s.tr.Len() }

// Snap finds the segment nearest to pt. Ties go to the smaller edge key and
// then the earlier segment, so results do not depend on insertion order.
func (s *Snapper) Snap(pt orb.Point, maxDist float64) (SnapResult, error) {
	best := SnapResult{Dist: math.Inf(1)}
	found := false

	s.tr.Nearby(
		func(min, max [2]float64, ref segRef, item bool) float64 {
			if item {
				ls := s.paths[ref.key]
				d, _ := geo.PointToSegment(pt, ls[ref.idx], ls[ref.idx+1])
				return d
			}
			return boxDist(pt, min, max)
		},
		func(_, _ [2]float64, ref segRef, dist float64) bool {
			if dist > best.Dist || dist > maxDist {
				return false
			}
			if found && !less(ref, best) {
				return true
			}
			ls := s.paths[ref.key]
			a, b := ls[ref.idx], ls[ref.idx+1]
			d, ratio := geo.PointToSegment(pt, a, b)
			best = SnapResult{
				Edge:    ref.key,
				Segment: ref.idx,
				Ratio:   ratio,
				Dist:    d,
				Point:   geo.Interpolate(a, b, ratio),
			}
			found = true
			return true
		},
	)

	if !found {
		return SnapResult{}, ErrPointTooFar
	}
	return best, nil
}

func less(ref segRef, r SnapResult) bool {
	a, b := ref.key.String(), r.Edge.String()
	if a != b {
		return a < b
	}
	return ref.idx < r.Segment
}

// boxDist is the distance from p to the nearest point of the box, zero inside.
func boxDist(p orb.Point, min, max [2]float64) float64 {
	dx := math.Max(0, math.Max(min[0]-p[0], p[0]-max[0]))
	dy := math.Max(0, math.Max(min[1]-p[1], p[1]-max[1]))
	return math.Hypot(dx, dy)
}
