// Package network builds the park road network: per-sensor pixel search,
// adjacency, raw paths and smoothed paths.
package network

import (
	"context"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"roadnet/pkg/bitmap"
	"roadnet/pkg/graph"
	"roadnet/pkg/sensors"
	"roadnet/pkg/smooth"
)

// Options controls how a network is built.
type Options struct {
	Workers   int           // concurrent searches; <= 0 means GOMAXPROCS
	Threshold uint8         // map image brightness threshold, used by Load
	Params    smooth.Params // smoothing pipeline settings
}

// DefaultOptions returns the production settings.
func DefaultOptions() Options {
	return Options{
		Threshold: bitmap.DefaultThreshold,
		Params:    smooth.DefaultParams(),
	}
}

// Network is the immutable result of a build.
type Network struct {
	Width       int
	Height      int
	Fingerprint uint32
	Sensors     []sensors.Sensor
	Adjacency   graph.Adjacency
	Paths       graph.PathTable
	SmoothPaths graph.SmoothedPathTable
}

// Stats summarizes a network.
type Stats struct {
	Sensors      int `json:"sensors"`
	Edges        int `json:"edges"`
	Components   int `json:"components"`
	Largest      int `json:"largest_component"`
	Isolated     int `json:"isolated"`
	Asymmetric   int `json:"asymmetric"`
	RawPoints    int `json:"raw_points"`
	SmoothPoints int `json:"smooth_points"`
}

// Build runs a search from every sensor and smooths every discovered path.
// The result does not depend on opts.Workers. Any error aborts the build and
// no partial network is returned.
func Build(ctx context.Context, mask bitmap.Traversable, list []sensors.Sensor, opts Options) (*Network, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := opts.Params.Validate(); err != nil {
		return nil, err
	}
	tracer, err := graph.NewTracer(mask, list)
	if err != nil {
		return nil, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = min(workers, max(len(list), 1))

	start := time.Now()
	traces := make([]*graph.Trace, len(list))
	smoothed := make([]graph.SmoothedPathTable, len(list))

	g, gctx := errgroup.WithContext(ctx)
	next := make(chan int)
	g.Go(func() error {
		defer close(next)
		for i := range list {
			select {
			case next <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for range workers {
		g.Go(func() error {
			scratch := graph.NewScratch(tracer.Pixels())
			for i := range next {
				if err := gctx.Err(); err != nil {
					return err
				}
				tr, err := tracer.Trace(i, scratch)
				if err != nil {
					return fmt.Errorf("trace %s: %w", list[i].ID, err)
				}
				sp := make(graph.SmoothedPathTable, len(tr.Adjacent))
				for _, to := range tr.Adjacent {
					sp[graph.PathKey{From: tr.Source, To: to}] = smooth.Smooth(tr.Paths[to], opts.Params)
				}
				traces[i] = tr
				smoothed[i] = sp
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	n := &Network{
		Width:       mask.Width(),
		Height:      mask.Height(),
		Fingerprint: Fingerprint(mask, list, opts.Params),
		Sensors:     list,
		Adjacency:   make(graph.Adjacency, len(list)),
		Paths:       make(graph.PathTable),
		SmoothPaths: make(graph.SmoothedPathTable),
	}
	visited := 0
	for i, s := range list {
		tr := traces[i]
		visited += tr.Visited
		adj := make([]sensors.GateName, 0, len(tr.Adjacent))
		for _, to := range tr.Adjacent {
			key := graph.PathKey{From: s.ID, To: to}
			adj = append(adj, to)
			n.Paths[key] = tr.Paths[to]
			n.SmoothPaths[key] = smoothed[i][key]
		}
		n.Adjacency[s.ID] = graph.Node{X: s.X, Y: s.Y, AdjacentGates: adj}
		if len(adj) == 0 {
			Logf("network: sensor %s at (%d,%d) reaches no other sensor", s.ID, s.X, s.Y)
		}
	}

	for _, k := range graph.Asymmetries(n.Adjacency) {
		Logf("network: edge %s has no reverse %s", k, k.Reverse())
	}
	st := n.Stats()
	Logf("network: %d sensors, %d edges, %d components, %d pixels visited in %v (%d workers)",
		st.Sensors, st.Edges, st.Components, visited, time.Since(start).Round(time.Millisecond), workers)
	return n, nil
}

// Sensor returns the sensor with the given id.
func (n *Network) Sensor(id sensors.GateName) (sensors.Sensor, bool) {
	for _, s := range n.Sensors {
		if s.ID == id {
			return s, true
		}
	}
	return sensors.Sensor{}, false
}

// Stats computes summary counts.
func (n *Network) Stats() Stats {
	comps := graph.Components(n.Adjacency)
	st := Stats{
		Sensors:    len(n.Sensors),
		Edges:      len(n.Paths),
		Components: len(comps),
		Asymmetric: len(graph.Asymmetries(n.Adjacency)),
	}
	if len(comps) > 0 {
		st.Largest = len(comps[0])
	}
	for _, node := range n.Adjacency {
		if len(node.AdjacentGates) == 0 {
			st.Isolated++
		}
	}
	for _, p := range n.Paths {
		st.RawPoints += len(p)
	}
	for _, p := range n.SmoothPaths {
		st.SmoothPoints += len(p)
	}
	return st
}

// Snapshot converts the network to its on-disk form.
func (n *Network) Snapshot() *graph.Snapshot {
	return &graph.Snapshot{
		Fingerprint: n.Fingerprint,
		Width:       n.Width,
		Height:      n.Height,
		Sensors:     n.Sensors,
		Adjacency:   n.Adjacency,
		Paths:       n.Paths,
		Smooth:      n.SmoothPaths,
	}
}

// FromSnapshot wraps a decoded snapshot.
func FromSnapshot(s *graph.Snapshot) *Network {
	return &Network{
		Width:       s.Width,
		Height:      s.Height,
		Fingerprint: s.Fingerprint,
		Sensors:     s.Sensors,
		Adjacency:   s.Adjacency,
		Paths:       s.Paths,
		SmoothPaths: s.Smooth,
	}
}

type fingerprinter interface {
	Fingerprint() uint32
}

// Fingerprint hashes everything a build depends on: the traversable set, the
// sensor list and the smoothing parameters.
func Fingerprint(mask bitmap.Traversable, list []sensors.Sensor, p smooth.Params) uint32 {
	h := crc32.NewIEEE()
	if fp, ok := mask.(fingerprinter); ok {
		binary.Write(h, binary.LittleEndian, fp.Fingerprint())
	} else {
		w, ht := mask.Width(), mask.Height()
		fmt.Fprintf(h, "%dx%d:", w, ht)
		row := make([]byte, w)
		for y := range ht {
			for x := range w {
				row[x] = 0
				if mask.IsTraversable(x, y) {
					row[x] = 1
				}
			}
			h.Write(row)
		}
	}
	for _, s := range list {
		fmt.Fprintf(h, "%s,%d,%d;", s.ID, s.X, s.Y)
	}
	fmt.Fprintf(h, "%+v", p)
	return h.Sum32()
}
