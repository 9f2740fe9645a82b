package network

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"roadnet/pkg/bitmap"
	"roadnet/pkg/graph"
	"roadnet/pkg/sensors"
)

// Inputs are the decoded source files of a network.
type Inputs struct {
	Mask    *bitmap.Mask
	Sensors []sensors.Sensor
}

// ReadInputs decodes the map image and the sensor list concurrently.
func ReadInputs(ctx context.Context, mapPath, sensorsPath string, threshold uint8) (*Inputs, error) {
	var in Inputs
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := bitmap.Load(mapPath, threshold)
		if err != nil {
			return fmt.Errorf("load map %s: %w", mapPath, err)
		}
		in.Mask = m
		return nil
	})
	g.Go(func() error {
		list, err := sensors.ReadFile(sensorsPath)
		if err != nil {
			return fmt.Errorf("load sensors %s: %w", sensorsPath, err)
		}
		in.Sensors = list
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &in, nil
}

// Load reads both inputs and builds the network. Callers must wait for it to
// return before querying; there is no partially loaded state.
func Load(ctx context.Context, mapPath, sensorsPath string, opts Options) (*Network, error) {
	in, err := ReadInputs(ctx, mapPath, sensorsPath, opts.Threshold)
	if err != nil {
		return nil, err
	}
	return Build(ctx, in.Mask, in.Sensors, opts)
}

// LoadCached is Load with a snapshot cache at cachePath. A snapshot is reused
// only when its fingerprint matches the current inputs and parameters;
// otherwise the network is rebuilt and the cache rewritten. A cache that
// cannot be written is logged, not returned as an error.
func LoadCached(ctx context.Context, cachePath, mapPath, sensorsPath string, opts Options) (*Network, error) {
	in, err := ReadInputs(ctx, mapPath, sensorsPath, opts.Threshold)
	if err != nil {
		return nil, err
	}
	want := Fingerprint(in.Mask, in.Sensors, opts.Params)

	snap, err := graph.ReadBinary(cachePath)
	switch {
	case err == nil && snap.Fingerprint == want:
		Logf("network: using cached snapshot %s", cachePath)
		return FromSnapshot(snap), nil
	case err == nil:
		Logf("network: %s: %v (have %08x, want %08x)", cachePath, graph.ErrStaleSnapshot, snap.Fingerprint, want)
	case errors.Is(err, os.ErrNotExist):
	default:
		Logf("network: ignoring unreadable cache %s: %v", cachePath, err)
	}

	n, err := Build(ctx, in.Mask, in.Sensors, opts)
	if err != nil {
		return nil, err
	}
	if err := graph.WriteBinary(cachePath, n.Snapshot()); err != nil {
		Logf("network: write cache %s: %v", cachePath, err)
	}
	return n, nil
}
