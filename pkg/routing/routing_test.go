package routing

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"

	"roadnet/pkg/bitmap"
	"roadnet/pkg/graph"
	"roadnet/pkg/network"
	"roadnet/pkg/sensors"
)

// buildTestPlanner builds a network with two separate roads:
//
//	gate0 ---- gate1 ---- gate2
//	###########################
//	camping0 -------- camping1
func buildTestPlanner(t *testing.T) *Planner {
	t.Helper()
	orig := network.Logf
	network.SetLogger(nil)
	t.Cleanup(func() { network.Logf = orig })

	mask, err := bitmap.Parse(
		".....",
		"#####",
		".....",
	)
	if err != nil {
		t.Fatal(err)
	}
	list := []sensors.Sensor{
		{ID: "gate0", X: 0, Y: 0},
		{ID: "gate1", X: 2, Y: 0},
		{ID: "gate2", X: 4, Y: 0},
		{ID: "camping0", X: 0, Y: 2},
		{ID: "camping1", X: 4, Y: 2},
	}
	n, err := network.Build(context.Background(), mask, list, network.DefaultOptions())
	if err != nil {
		t.Fatalf("network.Build: %v", err)
	}
	return NewPlanner(n)
}

func TestMinHeapOrder(t *testing.T) {
	var h MinHeap
	for i, d := range []uint32{50, 10, 40, 20, 30} {
		h.Push(uint32(i), d)
	}
	if h.PeekDist() != 10 {
		t.Fatalf("PeekDist = %d, want 10", h.PeekDist())
	}
	var got []uint32
	for h.Len() > 0 {
		got = append(got, h.Pop().Dist)
	}
	if diff := cmp.Diff([]uint32{10, 20, 30, 40, 50}, got); diff != "" {
		t.Errorf("pop order (-want +got):\n%s", diff)
	}
	h.Push(1, 1)
	h.Reset()
	if h.Len() != 0 {
		t.Error("Reset should empty the heap")
	}
}

func TestShortestPathPrefersFewerSteps(t *testing.T) {
	// 0 -> 1 -> 3 costs 2; 0 -> 2 -> 3 costs 10.
	g := &csr{
		firstOut: []uint32{0, 2, 3, 4, 4},
		head:     []uint32{1, 2, 3, 3},
		weight:   []uint32{1, 5, 1, 5},
	}
	path, dist, err := shortestPath(context.Background(), g, 0, 3)
	if err != nil {
		t.Fatal(err)
	}
	if dist != 2 {
		t.Errorf("dist = %d, want 2", dist)
	}
	if diff := cmp.Diff([]uint32{0, 1, 3}, path); diff != "" {
		t.Errorf("path (-want +got):\n%s", diff)
	}

	// Node 3 has no outgoing edges.
	if path, _, _ := shortestPath(context.Background(), g, 3, 0); path != nil {
		t.Errorf("expected no path, got %v", path)
	}
}

func TestRoute(t *testing.T) {
	p := buildTestPlanner(t)

	res, err := p.Route(context.Background(), "gate0", "gate2")
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if diff := cmp.Diff([]sensors.GateName{"gate0", "gate1", "gate2"}, res.Gates); diff != "" {
		t.Errorf("gates (-want +got):\n%s", diff)
	}
	if res.Steps != 4 {
		t.Errorf("Steps = %d, want 4", res.Steps)
	}
	want := orb.LineString{{0, 0}, {1, 0.5}, {2, 0}, {3, 0.5}, {4, 0}}
	if diff := cmp.Diff(want, res.Geometry); diff != "" {
		t.Errorf("geometry (-want +got):\n%s", diff)
	}
}

func TestRouteDoesNotAliasNetwork(t *testing.T) {
	p := buildTestPlanner(t)
	res, err := p.Route(context.Background(), "gate0", "gate1")
	if err != nil {
		t.Fatal(err)
	}
	res.Geometry[1] = orb.Point{99, 99}
	edge := p.Network().SmoothPaths[graph.PathKey{From: "gate0", To: "gate1"}]
	if edge[1] == (orb.Point{99, 99}) {
		t.Error("route geometry shares memory with the network")
	}
}

func TestRouteErrors(t *testing.T) {
	p := buildTestPlanner(t)

	if _, err := p.Route(context.Background(), "gate0", "camping1"); !errors.Is(err, ErrNoRoute) {
		t.Errorf("disconnected err = %v, want ErrNoRoute", err)
	}
	if _, err := p.Route(context.Background(), "entrance0", "gate1"); !errors.Is(err, sensors.ErrUnknownGate) {
		t.Errorf("unknown gate err = %v, want ErrUnknownGate", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Route(ctx, "gate0", "gate2"); !errors.Is(err, context.Canceled) {
		t.Errorf("canceled err = %v, want context.Canceled", err)
	}
}

func TestRouteSameGate(t *testing.T) {
	p := buildTestPlanner(t)
	res, err := p.Route(context.Background(), "gate1", "gate1")
	if err != nil {
		t.Fatal(err)
	}
	if res.Steps != 0 || len(res.Gates) != 1 {
		t.Errorf("got %+v, want a single-gate route", res)
	}
	if diff := cmp.Diff(orb.LineString{{2, 0}}, res.Geometry); diff != "" {
		t.Errorf("geometry (-want +got):\n%s", diff)
	}
}

func TestTrajectory(t *testing.T) {
	p := buildTestPlanner(t)

	tr, err := p.Trajectory(context.Background(), []sensors.GateName{"gate0", "gate0", "gate2", "camping0"})
	if err != nil {
		t.Fatalf("Trajectory: %v", err)
	}
	if diff := cmp.Diff([]sensors.GateName{"gate0", "gate2", "camping0"}, tr.Gates); diff != "" {
		t.Errorf("gates (-want +got):\n%s", diff)
	}
	wantLegs := []Leg{
		{From: "gate0", To: "gate2", Kind: LegRouted},
		{From: "gate2", To: "camping0", Kind: LegStraight},
	}
	if diff := cmp.Diff(wantLegs, tr.Legs); diff != "" {
		t.Errorf("legs (-want +got):\n%s", diff)
	}
	want := orb.LineString{{0, 0}, {1, 0.5}, {2, 0}, {3, 0.5}, {4, 0}, {0, 2}}
	if diff := cmp.Diff(want, tr.Geometry); diff != "" {
		t.Errorf("geometry (-want +got):\n%s", diff)
	}
}

func TestTrajectoryDirectEdge(t *testing.T) {
	p := buildTestPlanner(t)
	tr, err := p.Trajectory(context.Background(), []sensors.GateName{"camping1", "camping0"})
	if err != nil {
		t.Fatal(err)
	}
	if len(tr.Legs) != 1 || tr.Legs[0].Kind != LegEdge {
		t.Fatalf("legs = %+v, want one direct edge", tr.Legs)
	}
	edge := p.Network().SmoothPaths[graph.PathKey{From: "camping1", To: "camping0"}]
	if diff := cmp.Diff(edge, tr.Geometry); diff != "" {
		t.Errorf("geometry (-edge +got):\n%s", diff)
	}
}

func TestTrajectoryEdgeCases(t *testing.T) {
	p := buildTestPlanner(t)

	tr, err := p.Trajectory(context.Background(), nil)
	if err != nil || len(tr.Geometry) != 0 {
		t.Errorf("empty trip = %+v, %v", tr, err)
	}

	tr, err = p.Trajectory(context.Background(), []sensors.GateName{"gate2", "gate2"})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(orb.LineString{{4, 0}}, tr.Geometry); diff != "" {
		t.Errorf("single visit geometry (-want +got):\n%s", diff)
	}

	if _, err := p.Trajectory(context.Background(), []sensors.GateName{"gate0", "bogus"}); !errors.Is(err, sensors.ErrUnknownGate) {
		t.Errorf("err = %v, want ErrUnknownGate", err)
	}
}
