// Package export renders a built network in formats other tools can read:
// GeoJSON, OSM XML and a PNG debug plot.
package export

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"roadnet/pkg/geo"
	"roadnet/pkg/graph"
	"roadnet/pkg/network"
)

// GeoJSON builds a FeatureCollection with one Point per sensor followed by
// one LineString per smoothed edge. Coordinates are pixels unless ref is
// enabled, in which case they are [lon, lat].
func GeoJSON(n *network.Network, ref geo.Georef) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for _, s := range n.Sensors {
		f := geojson.NewFeature(ref.Project(orb.Point{float64(s.X), float64(s.Y)}))
		adj := n.Adjacency[s.ID].AdjacentGates
		names := make([]string, len(adj))
		for i, g := range adj {
			names[i] = string(g)
		}
		f.Properties["kind"] = "sensor"
		f.Properties["id"] = string(s.ID)
		f.Properties["type"] = string(s.ID.Type())
		f.Properties["adjacent"] = names
		fc.Append(f)
	}

	for _, k := range n.Adjacency.Edges() {
		if f := EdgeFeature(n, k, ref); f != nil {
			fc.Append(f)
		}
	}
	return fc
}

// EdgeFeature builds a single edge feature, or nil when the edge is unknown.
func EdgeFeature(n *network.Network, k graph.PathKey, ref geo.Georef) *geojson.Feature {
	ls, ok := n.SmoothPaths[k]
	if !ok {
		return nil
	}
	f := geojson.NewFeature(ref.ProjectLine(ls))
	f.Properties["kind"] = "edge"
	f.Properties["from"] = string(k.From)
	f.Properties["to"] = string(k.To)
	f.Properties["raw_length"] = len(n.Paths[k])
	if ref.Enabled() {
		f.Properties["length_m"] = ref.GroundLength(ls)
	}
	return f
}
