package main

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"roadnet/pkg/graph"
	osmexport "roadnet/pkg/osm"
	"roadnet/pkg/sensors"
)

// loadAdjacency reads expected adjacency from an id,y,x,adj CSV, or from an
// OSM file written by --osm.
func loadAdjacency(ctx context.Context, path string) (map[sensors.GateName][]sensors.GateName, error) {
	if isOSM(path) {
		res, err := osmexport.ParseFile(ctx, path)
		if err != nil {
			return nil, err
		}
		return res.Adjacency(), nil
	}
	rows, err := sensors.ReadGraphFile(path)
	if err != nil {
		return nil, err
	}
	adj := make(map[sensors.GateName][]sensors.GateName, len(rows))
	for _, r := range rows {
		adj[r.ID] = r.AdjacentGates
	}
	return adj, nil
}

func isOSM(path string) bool {
	return strings.HasSuffix(path, ".osm") || strings.HasSuffix(path, ".pbf")
}

// compareAdjacency reports sensors whose adjacent set differs. Order is
// ignored.
func compareAdjacency(got graph.Adjacency, want map[sensors.GateName][]sensors.GateName) []string {
	var diffs []string
	for _, g := range got.Gates() {
		w, ok := want[g]
		if !ok {
			diffs = append(diffs, fmt.Sprintf("%s: not in reference", g))
			continue
		}
		a := slices.Clone(got[g].AdjacentGates)
		b := slices.Clone(w)
		slices.Sort(a)
		slices.Sort(b)
		if !slices.Equal(a, b) {
			diffs = append(diffs, fmt.Sprintf("%s: built %v, reference %v", g, a, b))
		}
	}
	for g := range want {
		if _, ok := got[g]; !ok {
			diffs = append(diffs, fmt.Sprintf("%s: missing from built network", g))
		}
	}
	slices.Sort(diffs)
	return diffs
}
