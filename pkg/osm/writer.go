package osm

import (
	"encoding/xml"
	"fmt"
	"io"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"

	"roadnet/pkg/geo"
	"roadnet/pkg/network"
)

// Tag keys written on exported objects and read back by Parse.
const (
	TagGate     = "park:gate"
	TagGateType = "park:gate_type"
	TagFrom     = "park:from"
	TagTo       = "park:to"
	TagRawSteps = "park:raw_steps"
)

// Generator is the generator attribute of exported documents.
const Generator = "roadnet"

// fallbackGeoref places an unreferenced map at (0, 0) with one meter per
// pixel so editors can still open the file.
var fallbackGeoref = geo.Georef{MetersPerPixel: 1}

// Document converts a network into an OSM document. Every sensor becomes a
// tagged node and every smoothed edge becomes a way. Sensor nodes are shared
// by all ways touching them; interior shape points get their own nodes. All
// IDs are negative, as for objects not yet uploaded.
func Document(n *network.Network, ref geo.Georef) *osm.OSM {
	if !ref.Enabled() {
		ref = fallbackGeoref
	}
	doc := &osm.OSM{Version: "0.6", Generator: Generator}

	nextNode := osm.NodeID(-1)
	newNode := func(lat, lon float64, tags osm.Tags) osm.NodeID {
		id := nextNode
		nextNode--
		doc.Nodes = append(doc.Nodes, &osm.Node{
			ID:      id,
			Lat:     lat,
			Lon:     lon,
			Visible: true,
			Version: 1,
			Tags:    tags,
		})
		return id
	}

	sensorNode := make(map[string]osm.NodeID, len(n.Sensors))
	for _, s := range n.Sensors {
		lat, lon := ref.LatLon(orb.Point{float64(s.X), float64(s.Y)})
		sensorNode[string(s.ID)] = newNode(lat, lon, osm.Tags{
			{Key: "name", Value: string(s.ID)},
			{Key: TagGate, Value: string(s.ID)},
			{Key: TagGateType, Value: string(s.ID.Type())},
		})
	}

	nextWay := osm.WayID(-1)
	for _, k := range n.Adjacency.Edges() {
		ls, ok := n.SmoothPaths[k]
		if !ok || len(ls) < 2 {
			continue
		}
		nodes := make(osm.WayNodes, 0, len(ls))
		nodes = append(nodes, osm.WayNode{ID: sensorNode[string(k.From)]})
		for _, p := range ls[1 : len(ls)-1] {
			lat, lon := ref.LatLon(p)
			nodes = append(nodes, osm.WayNode{ID: newNode(lat, lon, nil)})
		}
		nodes = append(nodes, osm.WayNode{ID: sensorNode[string(k.To)]})

		doc.Ways = append(doc.Ways, &osm.Way{
			ID:      nextWay,
			Visible: true,
			Version: 1,
			Nodes:   nodes,
			Tags: osm.Tags{
				{Key: "highway", Value: "service"},
				{Key: "oneway", Value: "yes"},
				{Key: TagFrom, Value: string(k.From)},
				{Key: TagTo, Value: string(k.To)},
				{Key: TagRawSteps, Value: fmt.Sprint(len(n.Paths[k]) - 1)},
			},
		})
		nextWay--
	}
	return doc
}

// Write encodes doc as indented OSM XML.
func Write(w io.Writer, doc *osm.OSM) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode osm: %w", err)
	}
	return enc.Flush()
}
