package osm

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/paulmach/osm/osmxml"

	"roadnet/pkg/geo"
	"roadnet/pkg/graph"
	"roadnet/pkg/sensors"
)

// Format selects the OSM encoding.
type Format int

const (
	FormatXML Format = iota
	FormatPBF
)

// FormatFor picks a format from a file name. Anything not ending in .pbf is
// read as XML.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".pbf") {
		return FormatPBF
	}
	return FormatXML
}

// RawEdge is one directed sensor-to-sensor way read back from a file.
type RawEdge struct {
	Key       graph.PathKey
	RawSteps  int       // -1 when the way carries no step count
	Length    float64   // meters along the way
	ShapeLats []float64 // every node, endpoints included
	ShapeLons []float64
}

// Gate is a sensor node read back from a file.
type Gate struct {
	ID       sensors.GateName
	Lat, Lon float64
}

// ParseResult holds the park network found in an OSM file.
type ParseResult struct {
	Gates []Gate
	Edges []RawEdge
}

// Adjacency lists, for each gate, the gates its ways lead to in file order.
func (r *ParseResult) Adjacency() map[sensors.GateName][]sensors.GateName {
	adj := make(map[sensors.GateName][]sensors.GateName, len(r.Gates))
	for _, g := range r.Gates {
		adj[g.ID] = nil
	}
	for _, e := range r.Edges {
		adj[e.Key.From] = append(adj[e.Key.From], e.Key.To)
	}
	return adj
}

// wayInfo holds way data collected during pass 1.
type wayInfo struct {
	Key      graph.PathKey
	RawSteps int
	NodeIDs  []osm.NodeID
}

func newScanner(ctx context.Context, r io.Reader, f Format, pass int) osm.Scanner {
	if f == FormatPBF {
		s := osmpbf.New(ctx, r, 1)
		s.SkipRelations = true
		if pass == 1 {
			s.SkipNodes = true
		} else {
			s.SkipWays = true
		}
		return s
	}
	return osmxml.New(ctx, r)
}

// parseEdgeTags reads the park tags of a way. ok is false for ways that are
// not park edges.
func parseEdgeTags(tags osm.Tags) (key graph.PathKey, steps int, ok bool, err error) {
	from, to := tags.Find(TagFrom), tags.Find(TagTo)
	if from == "" && to == "" {
		return graph.PathKey{}, 0, false, nil
	}
	key, err = graph.ParsePathKey(from + "--" + to)
	if err != nil {
		return graph.PathKey{}, 0, false, err
	}
	steps = -1
	if v := tags.Find(TagRawSteps); v != "" {
		steps, err = strconv.Atoi(v)
		if err != nil {
			return graph.PathKey{}, 0, false, fmt.Errorf("%s=%q: %w", TagRawSteps, v, err)
		}
	}
	return key, steps, true, nil
}

// Parse reads a park network written by Write, or edited from one. Ways
// without park:from/park:to tags are ignored. The reader is consumed twice
// (seeks back to start for the second pass), so it must implement
// io.ReadSeeker.
func Parse(ctx context.Context, rs io.ReadSeeker, f Format) (*ParseResult, error) {
	// Pass 1: ways and the node IDs they reference.
	referenced := make(map[osm.NodeID]struct{})
	var ways []wayInfo

	scanner := newScanner(ctx, rs, f, 1)
	for scanner.Scan() {
		w, ok := scanner.Object().(*osm.Way)
		if !ok {
			continue
		}
		key, steps, isEdge, err := parseEdgeTags(w.Tags)
		if err != nil {
			scanner.Close()
			return nil, fmt.Errorf("way %d: %w", w.ID, err)
		}
		if !isEdge || len(w.Nodes) < 2 {
			continue
		}
		ids := make([]osm.NodeID, len(w.Nodes))
		for i, wn := range w.Nodes {
			ids[i] = wn.ID
			referenced[wn.ID] = struct{}{}
		}
		ways = append(ways, wayInfo{Key: key, RawSteps: steps, NodeIDs: ids})
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, fmt.Errorf("pass 1 (ways): %w", err)
	}
	scanner.Close()

	log.Printf("Pass 1 complete: %d park ways, %d referenced nodes", len(ways), len(referenced))

	// Pass 2: coordinates of referenced nodes, and every gate node.
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek for pass 2: %w", err)
	}

	nodeLat := make(map[osm.NodeID]float64, len(referenced))
	nodeLon := make(map[osm.NodeID]float64, len(referenced))
	var gates []Gate

	scanner = newScanner(ctx, rs, f, 2)
	for scanner.Scan() {
		n, ok := scanner.Object().(*osm.Node)
		if !ok {
			continue
		}
		if name := n.Tags.Find(TagGate); name != "" {
			id, err := sensors.ParseGate(name)
			if err != nil {
				scanner.Close()
				return nil, fmt.Errorf("node %d: %w", n.ID, err)
			}
			gates = append(gates, Gate{ID: id, Lat: n.Lat, Lon: n.Lon})
		}
		if _, needed := referenced[n.ID]; !needed {
			continue
		}
		nodeLat[n.ID] = n.Lat
		nodeLon[n.ID] = n.Lon
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, fmt.Errorf("pass 2 (nodes): %w", err)
	}
	scanner.Close()

	log.Printf("Pass 2 complete: %d gates, %d node coordinates collected", len(gates), len(nodeLat))

	edges := make([]RawEdge, 0, len(ways))
	var skipped int
	for _, w := range ways {
		e := RawEdge{
			Key:       w.Key,
			RawSteps:  w.RawSteps,
			ShapeLats: make([]float64, 0, len(w.NodeIDs)),
			ShapeLons: make([]float64, 0, len(w.NodeIDs)),
		}
		complete := true
		for i, id := range w.NodeIDs {
			lat, ok := nodeLat[id]
			if !ok {
				complete = false
				break
			}
			lon := nodeLon[id]
			if i > 0 {
				e.Length += geo.Haversine(e.ShapeLats[i-1], e.ShapeLons[i-1], lat, lon)
			}
			e.ShapeLats = append(e.ShapeLats, lat)
			e.ShapeLons = append(e.ShapeLons, lon)
		}
		if !complete {
			skipped++
			continue
		}
		edges = append(edges, e)
	}
	if skipped > 0 {
		log.Printf("Warning: skipped %d ways due to missing node coordinates", skipped)
	}

	return &ParseResult{Gates: gates, Edges: edges}, nil
}

// ParseFile opens path and parses it in the format its name implies.
func ParseFile(ctx context.Context, path string) (*ParseResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open osm: %w", err)
	}
	defer f.Close()
	return Parse(ctx, f, FormatFor(path))
}
