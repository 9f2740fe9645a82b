package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"roadnet/pkg/config"
	"roadnet/pkg/export"
	"roadnet/pkg/graph"
	"roadnet/pkg/network"
	osmexport "roadnet/pkg/osm"
)

func main() {
	configPath := flag.String("config", "", "Path to JSON config file (optional)")
	mapPath := flag.String("map", "", "Map image (overrides config)")
	sensorsPath := flag.String("sensors", "", "Sensor CSV with header id,y,x (overrides config)")
	output := flag.String("output", "", "Output binary network file (overrides config cache path)")
	workers := flag.Int("workers", 0, "Concurrent searches (0 = config value, or one per CPU)")
	geojsonOut := flag.String("geojson", "", "Also write the network as GeoJSON to this path")
	osmOut := flag.String("osm", "", "Also write the network as OSM XML to this path")
	plotOut := flag.String("plot", "", "Also write a debug plot to this path (.png, .svg, .pdf)")
	verify := flag.String("verify", "", "Compare adjacency against an id,y,x,adj CSV or an .osm/.osm.pbf file")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *mapPath != "" {
		cfg.MapPath = *mapPath
	}
	if *sensorsPath != "" {
		cfg.SensorsPath = *sensorsPath
	}
	if *output != "" {
		cfg.CachePath = *output
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}
	if cfg.MapPath == "" || cfg.SensorsPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: preprocess [--config park.json] --map <map.bmp> --sensors <sensors.csv> [--output network.bin] [--geojson out.geojson] [--osm out.osm] [--plot out.png] [--verify adjacency.csv]")
		os.Exit(1)
	}

	start := time.Now()
	ctx := context.Background()

	// Step 1: Read the map and sensor list.
	log.Printf("Reading %s and %s...", cfg.MapPath, cfg.SensorsPath)
	in, err := network.ReadInputs(ctx, cfg.MapPath, cfg.SensorsPath, cfg.Threshold)
	if err != nil {
		log.Fatalf("Failed to read inputs: %v", err)
	}
	log.Printf("Map %dx%d (%d traversable pixels), %d sensors",
		in.Mask.Width(), in.Mask.Height(), in.Mask.Count(), len(in.Sensors))

	// Step 2: Search from every sensor and smooth every path.
	log.Println("Building network...")
	n, err := network.Build(ctx, in.Mask, in.Sensors, cfg.Options())
	if err != nil {
		log.Fatalf("Failed to build network: %v", err)
	}
	st := n.Stats()
	log.Printf("Largest component: %d sensors (%.1f%%), %d isolated",
		st.Largest, float64(st.Largest)/float64(max(st.Sensors, 1))*100, st.Isolated)

	// Step 3: Serialize to binary.
	log.Printf("Writing binary to %s...", cfg.CachePath)
	if err := graph.WriteBinary(cfg.CachePath, n.Snapshot()); err != nil {
		log.Fatalf("Failed to write binary: %v", err)
	}

	// Step 4: Optional exports.
	if *geojsonOut != "" {
		if err := writeGeoJSON(*geojsonOut, n, cfg); err != nil {
			log.Fatalf("Failed to write GeoJSON: %v", err)
		}
		log.Printf("Wrote %s", *geojsonOut)
	}
	if *osmOut != "" {
		if err := writeOSM(*osmOut, n, cfg); err != nil {
			log.Fatalf("Failed to write OSM: %v", err)
		}
		log.Printf("Wrote %s", *osmOut)
	}
	if *plotOut != "" {
		if err := export.SavePlot(*plotOut, n, in.Mask, export.DefaultPlotOptions()); err != nil {
			log.Fatalf("Failed to write plot: %v", err)
		}
		log.Printf("Wrote %s", *plotOut)
	}

	// Step 5: Optional verification.
	if *verify != "" {
		want, err := loadAdjacency(ctx, *verify)
		if err != nil {
			log.Fatalf("Failed to read %s: %v", *verify, err)
		}
		if diffs := compareAdjacency(n.Adjacency, want); len(diffs) > 0 {
			for _, d := range diffs {
				log.Printf("MISMATCH %s", d)
			}
			log.Fatalf("Verification failed: %d mismatches", len(diffs))
		}
		log.Printf("Verified adjacency of %d sensors against %s", len(want), *verify)
	}

	info, _ := os.Stat(cfg.CachePath)
	elapsed := time.Since(start)
	log.Printf("Done in %s. Output: %s (%.1f KB)", elapsed.Round(time.Millisecond), cfg.CachePath, float64(info.Size())/1024)
}

func writeGeoJSON(path string, n *network.Network, cfg *config.Config) error {
	data, err := export.GeoJSON(n, cfg.Georef).MarshalJSON()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func writeOSM(path string, n *network.Network, cfg *config.Config) error {
	if !cfg.Georef.Enabled() {
		log.Println("WARNING: no georef configured; placing the map at (0, 0) with 1 m per pixel")
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := osmexport.Write(f, osmexport.Document(n, cfg.Georef)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
