package routing

import (
	"context"
	"errors"
	"fmt"

	"github.com/paulmach/orb"

	"roadnet/pkg/graph"
	"roadnet/pkg/network"
	"roadnet/pkg/sensors"
)

// ErrNoRoute is returned when no route exists between the two gates.
var ErrNoRoute = errors.New("no route found")

// RouteResult is a route between two gates over the sensor network.
type RouteResult struct {
	Gates    []sensors.GateName
	Steps    int            // raw pixel steps
	Geometry orb.LineString // smoothed edges joined end to end
}

// Router is the interface for route queries.
type Router interface {
	Route(ctx context.Context, from, to sensors.GateName) (*RouteResult, error)
}

// LegKind says how one leg of a trajectory was drawn.
type LegKind string

const (
	LegEdge     LegKind = "edge"     // direct smoothed edge
	LegRouted   LegKind = "routed"   // several edges found by routing
	LegStraight LegKind = "straight" // no path; straight line between sensors
)

// Leg is one consecutive gate pair of a trajectory.
type Leg struct {
	From sensors.GateName `json:"from"`
	To   sensors.GateName `json:"to"`
	Kind LegKind          `json:"kind"`
}

// Trajectory is the drawn path of a trip through a sequence of gates.
type Trajectory struct {
	Gates    []sensors.GateName
	Legs     []Leg
	Geometry orb.LineString
}

// Planner implements Router over a built network.
type Planner struct {
	net     *network.Network
	gates   []sensors.GateName // node index -> gate
	index   map[sensors.GateName]uint32
	g       csr
	snapper *Snapper
}

// NewPlanner indexes n for routing and snapping.
func NewPlanner(n *network.Network) *Planner {
	gates := n.Adjacency.Gates()
	index := make(map[sensors.GateName]uint32, len(gates))
	for i, g := range gates {
		index[g] = uint32(i)
	}

	g := csr{firstOut: make([]uint32, len(gates)+1)}
	for i, from := range gates {
		for _, to := range n.Adjacency[from].AdjacentGates {
			v, ok := index[to]
			if !ok {
				continue
			}
			steps := len(n.Paths[graph.PathKey{From: from, To: to}]) - 1
			g.head = append(g.head, v)
			g.weight = append(g.weight, uint32(max(steps, 1)))
		}
		g.firstOut[i+1] = uint32(len(g.head))
	}

	return &Planner{
		net:     n,
		gates:   gates,
		index:   index,
		g:       g,
		snapper: NewSnapper(n.SmoothPaths),
	}
}

// Network returns the network the planner was built from.
func (p *Planner) Network() *network.Network { return p.net }

// Snapper returns the planner's spatial index.
func (p *Planner) Snapper() *Snapper { return p.snapper }

func (p *Planner) node(g sensors.GateName) (uint32, error) {
	i, ok := p.index[g]
	if !ok {
		return 0, fmt.Errorf("%w: %q", sensors.ErrUnknownGate, g)
	}
	return i, nil
}

// Route finds the path with the fewest pixel steps from one gate to another.
func (p *Planner) Route(ctx context.Context, from, to sensors.GateName) (*RouteResult, error) {
	src, err := p.node(from)
	if err != nil {
		return nil, err
	}
	dst, err := p.node(to)
	if err != nil {
		return nil, err
	}
	if src == dst {
		return &RouteResult{
			Gates:    []sensors.GateName{from},
			Geometry: orb.LineString{p.position(from)},
		}, nil
	}

	nodes, steps, err := shortestPath(ctx, &p.g, src, dst)
	if err != nil {
		return nil, err
	}
	if nodes == nil {
		return nil, fmt.Errorf("%w: %s to %s", ErrNoRoute, from, to)
	}

	res := &RouteResult{Steps: int(steps)}
	for _, v := range nodes {
		res.Gates = append(res.Gates, p.gates[v])
	}
	for i := 1; i < len(res.Gates); i++ {
		key := graph.PathKey{From: res.Gates[i-1], To: res.Gates[i]}
		res.Geometry = join(res.Geometry, p.net.SmoothPaths[key])
	}
	return res, nil
}

// Trajectory draws a trip through gates in visiting order. Repeated
// consecutive gates collapse into one visit. Adjacent gates use their
// smoothed edge, other pairs are routed, and pairs with no route are joined
// by a straight line between the two sensors.
func (p *Planner) Trajectory(ctx context.Context, gates []sensors.GateName) (*Trajectory, error) {
	t := &Trajectory{}
	for _, g := range gates {
		if _, err := p.node(g); err != nil {
			return nil, err
		}
		if n := len(t.Gates); n > 0 && t.Gates[n-1] == g {
			continue
		}
		t.Gates = append(t.Gates, g)
	}
	if len(t.Gates) == 1 {
		t.Geometry = orb.LineString{p.position(t.Gates[0])}
		return t, nil
	}

	for i := 1; i < len(t.Gates); i++ {
		from, to := t.Gates[i-1], t.Gates[i]
		leg := Leg{From: from, To: to}

		var seg orb.LineString
		if edge, ok := p.net.SmoothPaths[graph.PathKey{From: from, To: to}]; ok && len(edge) > 0 {
			leg.Kind = LegEdge
			seg = edge
		} else {
			r, err := p.Route(ctx, from, to)
			switch {
			case err == nil:
				leg.Kind = LegRouted
				seg = r.Geometry
			case errors.Is(err, ErrNoRoute):
				leg.Kind = LegStraight
				seg = orb.LineString{p.position(from), p.position(to)}
			default:
				return nil, err
			}
		}
		t.Legs = append(t.Legs, leg)
		t.Geometry = join(t.Geometry, seg)
	}
	return t, nil
}

// Snap finds the nearest smoothed edge within maxDist pixels of pt.
func (p *Planner) Snap(pt orb.Point, maxDist float64) (SnapResult, error) {
	return p.snapper.Snap(pt, maxDist)
}

func (p *Planner) position(g sensors.GateName) orb.Point {
	node := p.net.Adjacency[g]
	return orb.Point{float64(node.X), float64(node.Y)}
}

// join appends seg to ls, dropping seg's first point when it repeats the
// last point of ls.
func join(ls, seg orb.LineString) orb.LineString {
	if len(ls) > 0 && len(seg) > 0 && ls[len(ls)-1] == seg[0] {
		seg = seg[1:]
	}
	return append(ls, seg...)
}
