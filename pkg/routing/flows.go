package routing

import (
	"cmp"
	"slices"

	"roadnet/pkg/graph"
	"roadnet/pkg/sensors"
)

// EdgeFlows counts transitions between consecutive gates across trips. A
// repeated reading at the same gate is not a transition.
func EdgeFlows(trips [][]sensors.GateName) map[graph.PathKey]int {
	flows := make(map[graph.PathKey]int)
	for _, trip := range trips {
		for i := 1; i < len(trip); i++ {
			if trip[i-1] == trip[i] {
				continue
			}
			flows[graph.PathKey{From: trip[i-1], To: trip[i]}]++
		}
	}
	return flows
}

// Flow is one edge count.
type Flow struct {
	Edge  graph.PathKey `json:"edge"`
	Count int           `json:"count"`
}

// RankFlows orders flows by count, busiest first, then by edge key.
func RankFlows(flows map[graph.PathKey]int) []Flow {
	out := make([]Flow, 0, len(flows))
	for k, c := range flows {
		out = append(out, Flow{Edge: k, Count: c})
	}
	slices.SortFunc(out, func(a, b Flow) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Edge.String(), b.Edge.String())
	})
	return out
}
