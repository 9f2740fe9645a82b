package routing

import (
	"errors"
	"math"
	"testing"

	"github.com/paulmach/orb"

	"roadnet/pkg/graph"
)

func TestSnapNearestLane(t *testing.T) {
	p := buildTestPlanner(t)

	// Just below the gate0--gate1 bulge at (1, 0.5). The reverse edge bulges
	// the other way and is farther.
	res, err := p.Snap(orb.Point{1, 0.8}, DefaultSnapDistance)
	if err != nil {
		t.Fatalf("Snap: %v", err)
	}
	if want := (graph.PathKey{From: "gate0", To: "gate1"}); res.Edge != want {
		t.Errorf("Edge = %s, want %s", res.Edge, want)
	}
	// Both segments touch (1, 0.5); the earlier one wins.
	if res.Segment != 0 || res.Ratio != 1 {
		t.Errorf("Segment = %d, Ratio = %v, want 0, 1", res.Segment, res.Ratio)
	}
	if math.Abs(res.Dist-0.3) > 1e-9 {
		t.Errorf("Dist = %v, want 0.3", res.Dist)
	}
	if res.Point != (orb.Point{1, 0.5}) {
		t.Errorf("Point = %v, want [1 0.5]", res.Point)
	}
}

func TestSnapTooFar(t *testing.T) {
	p := buildTestPlanner(t)
	if _, err := p.Snap(orb.Point{40, 40}, DefaultSnapDistance); !errors.Is(err, ErrPointTooFar) {
		t.Errorf("err = %v, want ErrPointTooFar", err)
	}
}

func TestSnapEmptyIndex(t *testing.T) {
	s := NewSnapper(graph.SmoothedPathTable{})
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}
	if _, err := s.Snap(orb.Point{0, 0}, 100); !errors.Is(err, ErrPointTooFar) {
		t.Errorf("err = %v, want ErrPointTooFar", err)
	}
}

func TestSnapperIndexesEverySegment(t *testing.T) {
	p := buildTestPlanner(t)
	want := 0
	for _, ls := range p.Network().SmoothPaths {
		want += len(ls) - 1
	}
	if got := p.Snapper().Len(); got != want {
		t.Errorf("Len = %d, want %d", got, want)
	}
}
