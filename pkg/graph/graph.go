package graph

import (
	"image"
	"slices"

	"github.com/paulmach/orb"

	"roadnet/pkg/sensors"
)

// Node is one sensor's entry in the adjacency map.
type Node struct {
	X             int                `json:"x"`
	Y             int                `json:"y"`
	AdjacentGates []sensors.GateName `json:"adjacentGates"` // BFS discovery order
}

// Adjacency holds one entry per sensor, including sensors with no neighbors.
type Adjacency map[sensors.GateName]Node

// PathTable maps a directed edge to its pixel path, source to destination
// inclusive.
type PathTable map[PathKey][]image.Point

// SmoothedPathTable has the same keys as PathTable with smoothed geometry.
type SmoothedPathTable map[PathKey]orb.LineString

// Gates returns the sensors in adj in stable gate order.
func (adj Adjacency) Gates() []sensors.GateName {
	gates := make([]sensors.GateName, 0, len(adj))
	for g := range adj {
		gates = append(gates, g)
	}
	slices.SortFunc(gates, compareGates)
	return gates
}

// Edges returns every directed edge in adj, ordered by source gate and then
// discovery order.
func (adj Adjacency) Edges() []PathKey {
	var keys []PathKey
	for _, from := range adj.Gates() {
		for _, to := range adj[from].AdjacentGates {
			keys = append(keys, PathKey{From: from, To: to})
		}
	}
	return keys
}

// HasEdge reports whether to is listed as adjacent to from.
func (adj Adjacency) HasEdge(from, to sensors.GateName) bool {
	return slices.Contains(adj[from].AdjacentGates, to)
}

// Asymmetries returns directed edges A--B whose reverse B--A is missing.
// Pixel BFS is expected to be symmetric on a 4-connected grid, but a sensor
// sitting on a blocked pixel or a partially blocked portal breaks that.
func Asymmetries(adj Adjacency) []PathKey {
	var out []PathKey
	for _, k := range adj.Edges() {
		if !adj.HasEdge(k.To, k.From) {
			out = append(out, k)
		}
	}
	return out
}

func compareGates(a, b sensors.GateName) int {
	ai, aok := a.Index()
	bi, bok := b.Index()
	switch {
	case aok && bok:
		return int(ai) - int(bi)
	case aok:
		return -1
	case bok:
		return 1
	}
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}
