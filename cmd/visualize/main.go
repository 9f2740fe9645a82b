package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"gonum.org/v1/plot/vg"

	"roadnet/pkg/bitmap"
	"roadnet/pkg/export"
	"roadnet/pkg/graph"
	"roadnet/pkg/network"
	"roadnet/pkg/routing"
	"roadnet/pkg/sensors"
)

var httpClient = &http.Client{Timeout: 15 * time.Second}

// tripList collects repeated -trip flags.
type tripList []string

func (t *tripList) String() string     { return strings.Join(*t, " ") }
func (t *tripList) Set(v string) error { *t = append(*t, v); return nil }

func main() {
	cachePath := flag.String("network", "network.bin", "Path to preprocessed network binary")
	mapPath := flag.String("map", "", "Map image for the road outline (optional)")
	threshold := flag.Uint("threshold", uint(bitmap.DefaultThreshold), "Map brightness threshold")
	output := flag.String("output", "network.png", "Output plot (.png, .svg, .pdf)")
	serverURL := flag.String("server-url", "", "Fetch trajectories from a running server instead of routing locally")
	size := flag.Float64("size", 10, "Plot width and height in inches")
	raw := flag.Bool("raw", true, "Draw raw pixel paths")
	var trips tripList
	flag.Var(&trips, "trip", "Comma-separated gates to draw as a trip (repeatable)")
	flag.Parse()

	snap, err := graph.ReadBinary(*cachePath)
	if err != nil {
		log.Fatalf("Failed to load network: %v", err)
	}
	n := network.FromSnapshot(snap)

	var mask bitmap.Traversable
	if *mapPath != "" {
		m, err := bitmap.Load(*mapPath, uint8(min(*threshold, 255)))
		if err != nil {
			log.Fatalf("Failed to load map: %v", err)
		}
		if m.Width() != n.Width || m.Height() != n.Height {
			log.Printf("WARNING: map is %dx%d, network was built on %dx%d", m.Width(), m.Height(), n.Width, n.Height)
		}
		mask = m
	}

	opts := export.DefaultPlotOptions()
	opts.Width = vg.Length(*size) * vg.Inch
	opts.Height = opts.Width
	opts.Raw = *raw

	p, err := export.NewPlot(n, mask, opts)
	if err != nil {
		log.Fatalf("Failed to plot network: %v", err)
	}

	planner := routing.NewPlanner(n)
	for _, trip := range trips {
		gates, err := parseTrip(trip)
		if err != nil {
			log.Fatalf("Invalid trip %q: %v", trip, err)
		}
		var geom orb.LineString
		if *serverURL != "" {
			geom, err = queryTrajectory(*serverURL, gates)
		} else {
			var tr *routing.Trajectory
			tr, err = planner.Trajectory(context.Background(), gates)
			if tr != nil {
				geom = tr.Geometry
			}
		}
		if err != nil {
			log.Fatalf("Trip %q: %v", trip, err)
		}
		if err := export.AddTrajectory(p, geom, trip); err != nil {
			log.Fatalf("Trip %q: %v", trip, err)
		}
		log.Printf("Trip %s: %d points", trip, len(geom))
	}

	if err := p.Save(opts.Width, opts.Height, *output); err != nil {
		log.Fatalf("Failed to save plot: %v", err)
	}
	log.Printf("Wrote %s", *output)
}

func parseTrip(s string) ([]sensors.GateName, error) {
	var gates []sensors.GateName
	for _, name := range strings.Split(s, ",") {
		g, err := sensors.ParseGate(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		gates = append(gates, g)
	}
	return gates, nil
}

func queryTrajectory(baseURL string, gates []sensors.GateName) (orb.LineString, error) {
	body, _ := json.Marshal(map[string][]sensors.GateName{"gates": gates})

	resp, err := httpClient.Post(strings.TrimSuffix(baseURL, "/")+"/api/v1/trajectory", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &errResp) == nil && errResp.Error != "" {
			return nil, fmt.Errorf("server: %s", errResp.Error)
		}
		return nil, fmt.Errorf("server: HTTP %d", resp.StatusCode)
	}

	var result struct {
		Geometry orb.LineString `json:"geometry"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("parse failed: %w", err)
	}
	return result.Geometry, nil
}

func init() {
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: visualize [--network network.bin] [--map map.bmp] [--output network.png] [--trip gate0,gate3,camping1 ...] [--server-url http://localhost:8080]")
		flag.PrintDefaults()
	}
}
