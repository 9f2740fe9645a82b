package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"roadnet/pkg/api"
	"roadnet/pkg/config"
	"roadnet/pkg/graph"
	"roadnet/pkg/network"
	"roadnet/pkg/routing"
)

func main() {
	configPath := flag.String("config", "", "Path to JSON config file (optional)")
	cachePath := flag.String("network", "", "Path to preprocessed network binary (overrides config)")
	rebuild := flag.Bool("rebuild", false, "Check the cache against the map and sensor files, rebuilding when stale")
	port := flag.Int("port", 0, "HTTP port (overrides config address)")
	corsOrigin := flag.String("cors-origin", "", "CORS allowed origin (empty = same-origin)")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *cachePath != "" {
		cfg.CachePath = *cachePath
	}
	if *port > 0 {
		cfg.Server.Addr = fmt.Sprintf(":%d", *port)
	}
	if *corsOrigin != "" {
		cfg.Server.CORSOrigin = *corsOrigin
	}

	start := time.Now()

	// Load network.
	var n *network.Network
	if *rebuild {
		log.Printf("Loading network from %s and %s (cache %s)...", cfg.MapPath, cfg.SensorsPath, cfg.CachePath)
		n, err = network.LoadCached(context.Background(), cfg.CachePath, cfg.MapPath, cfg.SensorsPath, cfg.Options())
	} else {
		log.Printf("Loading network from %s...", cfg.CachePath)
		var snap *graph.Snapshot
		snap, err = graph.ReadBinary(cfg.CachePath)
		if err == nil {
			n = network.FromSnapshot(snap)
		}
	}
	if err != nil {
		log.Fatalf("Failed to load network: %v", err)
	}
	st := n.Stats()
	log.Printf("Loaded: %d sensors, %d edges, %d components", st.Sensors, st.Edges, st.Components)

	// Build routing graph and spatial index.
	log.Println("Building R-tree spatial index...")
	planner := routing.NewPlanner(n)

	loadTime := time.Since(start)
	log.Printf("Ready in %s", loadTime.Round(time.Millisecond))

	// Setup HTTP server.
	scfg := api.DefaultConfig(cfg.Server.Addr)
	scfg.CORSOrigin = cfg.Server.CORSOrigin
	scfg.RequestTimeout = cfg.Timeout()
	if cfg.Server.MaxConcurrent > 0 {
		scfg.MaxConcurrent = cfg.Server.MaxConcurrent
	}

	metrics, err := api.NewMetrics(nil)
	if err != nil {
		log.Fatalf("Failed to register metrics: %v", err)
	}

	handlers := api.NewHandlers(planner, api.Options{
		Georef:       cfg.Georef,
		SnapDistance: cfg.SnapDistance,
	})
	srv := api.NewServer(scfg, handlers, metrics)

	if err := api.ListenAndServe(srv); err != nil {
		log.Printf("Server stopped: %v", err)
		os.Exit(1)
	}
}
