package network

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"

	"roadnet/pkg/bitmap"
	"roadnet/pkg/graph"
	"roadnet/pkg/sensors"
	"roadnet/pkg/smooth"
)

// quiet mutes the package logger for one test and returns the captured lines.
func quiet(t *testing.T) func() []string {
	t.Helper()
	var mu sync.Mutex
	var lines []string
	orig := Logf
	SetLogger(func(format string, v ...any) {
		mu.Lock()
		defer mu.Unlock()
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	t.Cleanup(func() { Logf = orig })
	return func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), lines...)
	}
}

func openGrid(t *testing.T, w, h int) *bitmap.Mask {
	t.Helper()
	m := bitmap.New(w, h)
	for y := range h {
		for x := range w {
			m.Set(x, y, true)
		}
	}
	return m
}

func TestBuildEndToEnd(t *testing.T) {
	quiet(t)
	list := []sensors.Sensor{
		{ID: "entrance0", X: 0, Y: 0},
		{ID: "entrance1", X: 4, Y: 0},
	}
	n, err := Build(context.Background(), openGrid(t, 5, 5), list, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, graph.Adjacency{
		"entrance0": {X: 0, Y: 0, AdjacentGates: []sensors.GateName{"entrance1"}},
		"entrance1": {X: 4, Y: 0, AdjacentGates: []sensors.GateName{"entrance0"}},
	}, n.Adjacency)

	ab := graph.PathKey{From: "entrance0", To: "entrance1"}
	assert.Equal(t, []image.Point{{0, 0}, {1, 0}, {2, 0}, {3, 0}, {4, 0}}, n.Paths[ab])
	assert.Equal(t, []image.Point{{4, 0}, {3, 0}, {2, 0}, {1, 0}, {0, 0}}, n.Paths[ab.Reverse()])

	want := orb.LineString{{0, 0}, {1, 0.5}, {3, 0.5}, {4, 0}}
	got := n.SmoothPaths[ab]
	require.Len(t, got, len(want))
	for i := range want {
		assert.InDelta(t, want[i][0], got[i][0], 1e-9, "point %d x", i)
		assert.InDelta(t, want[i][1], got[i][1], 1e-9, "point %d y", i)
	}

	// The return trip is offset to the other side.
	back := n.SmoothPaths[ab.Reverse()]
	require.Len(t, back, 4)
	assert.InDelta(t, -0.5, back[1][1], 1e-9)
	assert.InDelta(t, -0.5, back[2][1], 1e-9)
}

func TestBuildBlockedColumn(t *testing.T) {
	quiet(t)
	mask, err := bitmap.Parse(
		"..#..",
		"..#..",
		"..#..",
		"..#..",
		"..#..",
	)
	require.NoError(t, err)
	list := []sensors.Sensor{
		{ID: "entrance0", X: 0, Y: 0},
		{ID: "entrance1", X: 4, Y: 0},
	}
	n, err := Build(context.Background(), mask, list, DefaultOptions())
	require.NoError(t, err)

	for _, s := range list {
		assert.Empty(t, n.Adjacency[s.ID].AdjacentGates, s.ID)
	}
	assert.Empty(t, n.Paths)
	assert.Empty(t, n.SmoothPaths)
	assert.Equal(t, 2, n.Stats().Isolated)
}

// parkFixture is a small map with a loop, a dead end and an isolated sensor.
func parkFixture(t *testing.T) (*bitmap.Mask, []sensors.Sensor) {
	t.Helper()
	mask, err := bitmap.Parse(
		"..........#...",
		".########.#...",
		".#......#.#...",
		".#.####.#.....",
		"...#..........",
		"####.######.##",
		"....#.......##",
	)
	require.NoError(t, err)
	return mask, []sensors.Sensor{
		{ID: "entrance0", X: 0, Y: 0},
		{ID: "gate0", X: 9, Y: 0},
		{ID: "gate1", X: 9, Y: 4},
		{ID: "general-gate0", X: 2, Y: 2},
		{ID: "ranger-stop0", X: 13, Y: 0},
		{ID: "camping0", X: 5, Y: 6},
		{ID: "camping1", X: 0, Y: 6},
	}
}

func TestBuildDeterministicAcrossWorkers(t *testing.T) {
	quiet(t)
	mask, list := parkFixture(t)

	var first *Network
	for _, workers := range []int{1, 2, 3, 8} {
		opts := DefaultOptions()
		opts.Workers = workers
		n, err := Build(context.Background(), mask, list, opts)
		require.NoError(t, err, "workers=%d", workers)
		if first == nil {
			first = n
			continue
		}
		if diff := cmp.Diff(first, n); diff != "" {
			t.Errorf("workers=%d differs from workers=1 (-1 +%d):\n%s", workers, workers, diff)
		}
	}

	require.NotNil(t, first)
	assert.Len(t, first.Adjacency, len(list))
	assert.Empty(t, first.Adjacency["camping1"].AdjacentGates, "camping1 is walled off")
	assert.Len(t, first.Paths, len(first.SmoothPaths))
	for k, p := range first.Paths {
		s := first.SmoothPaths[k]
		require.NotEmpty(t, s, k.String())
		assert.Equal(t, orb.Point{float64(p[0].X), float64(p[0].Y)}, s[0], "%s start", k)
		last := p[len(p)-1]
		assert.Equal(t, orb.Point{float64(last.X), float64(last.Y)}, s[len(s)-1], "%s end", k)
	}
	assert.Zero(t, first.Stats().Asymmetric)
}

func TestBuildCanceled(t *testing.T) {
	quiet(t)
	mask, list := parkFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := Build(ctx, mask, list, DefaultOptions())
	assert.Nil(t, n)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildErrors(t *testing.T) {
	quiet(t)
	mask := openGrid(t, 3, 3)

	_, err := Build(context.Background(), mask, []sensors.Sensor{{ID: "gate0", X: 5, Y: 0}}, DefaultOptions())
	assert.ErrorIs(t, err, graph.ErrSensorOutOfBounds)

	_, err = Build(context.Background(), mask, []sensors.Sensor{{ID: "gate0"}, {ID: "gate1"}}, DefaultOptions())
	assert.ErrorIs(t, err, graph.ErrDuplicateSensor)

	opts := DefaultOptions()
	opts.Params.First.Alpha = 2
	_, err = Build(context.Background(), mask, nil, opts)
	assert.ErrorIs(t, err, smooth.ErrInvalidParams)
}

func TestBuildNoSensors(t *testing.T) {
	quiet(t)
	n, err := Build(context.Background(), openGrid(t, 2, 2), nil, DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, n.Adjacency)
	assert.Equal(t, Stats{}, n.Stats())
}

func TestStats(t *testing.T) {
	quiet(t)
	mask, err := bitmap.Parse(".....")
	require.NoError(t, err)
	list := []sensors.Sensor{
		{ID: "gate0", X: 0, Y: 0},
		{ID: "gate1", X: 2, Y: 0},
		{ID: "gate2", X: 4, Y: 0},
	}
	n, err := Build(context.Background(), mask, list, DefaultOptions())
	require.NoError(t, err)

	st := n.Stats()
	assert.Equal(t, 3, st.Sensors)
	assert.Equal(t, 4, st.Edges)
	assert.Equal(t, 1, st.Components)
	assert.Equal(t, 3, st.Largest)
	assert.Equal(t, 0, st.Isolated)
	assert.Equal(t, 12, st.RawPoints)

	s, ok := n.Sensor("gate1")
	assert.True(t, ok)
	assert.Equal(t, 2, s.X)
	_, ok = n.Sensor("camping0")
	assert.False(t, ok)
}

func TestFingerprint(t *testing.T) {
	mask, list := parkFixture(t)
	p := smooth.DefaultParams()
	base := Fingerprint(mask, list, p)

	assert.Equal(t, base, Fingerprint(mask, list, p))

	moved := append([]sensors.Sensor(nil), list...)
	moved[0].X = 1
	assert.NotEqual(t, base, Fingerprint(mask, moved, p))

	p.Shift.Distance = 2
	assert.NotEqual(t, base, Fingerprint(mask, list, p))
}

// writeInputs writes the park fixture as a BMP and a sensor CSV.
func writeInputs(t *testing.T, dir string) (mapPath, sensorsPath string) {
	t.Helper()
	mask, list := parkFixture(t)

	img := image.NewGray(image.Rect(0, 0, mask.Width(), mask.Height()))
	for y := range mask.Height() {
		for x := range mask.Width() {
			if mask.IsTraversable(x, y) {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	mapPath = filepath.Join(dir, "basemap.bmp")
	f, err := os.Create(mapPath)
	require.NoError(t, err)
	require.NoError(t, bmp.Encode(f, img))
	require.NoError(t, f.Close())

	var b strings.Builder
	b.WriteString("id,y,x\n")
	for _, s := range list {
		fmt.Fprintf(&b, "%s,%d,%d\n", s.ID, s.Y, s.X)
	}
	sensorsPath = filepath.Join(dir, "sensors.csv")
	require.NoError(t, os.WriteFile(sensorsPath, []byte(b.String()), 0o644))
	return mapPath, sensorsPath
}

func TestLoadMatchesBuild(t *testing.T) {
	quiet(t)
	dir := t.TempDir()
	mapPath, sensorsPath := writeInputs(t, dir)

	loaded, err := Load(context.Background(), mapPath, sensorsPath, DefaultOptions())
	require.NoError(t, err)

	mask, list := parkFixture(t)
	built, err := Build(context.Background(), mask, list, DefaultOptions())
	require.NoError(t, err)

	if diff := cmp.Diff(built.Adjacency, loaded.Adjacency); diff != "" {
		t.Errorf("adjacency (-built +loaded):\n%s", diff)
	}
	if diff := cmp.Diff(built.SmoothPaths, loaded.SmoothPaths); diff != "" {
		t.Errorf("smooth paths (-built +loaded):\n%s", diff)
	}
}

func TestLoadMissingInput(t *testing.T) {
	quiet(t)
	dir := t.TempDir()
	mapPath, _ := writeInputs(t, dir)

	_, err := Load(context.Background(), mapPath, filepath.Join(dir, "missing.csv"), DefaultOptions())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadCached(t *testing.T) {
	logs := quiet(t)
	dir := t.TempDir()
	mapPath, sensorsPath := writeInputs(t, dir)
	cache := filepath.Join(dir, "network.bin")

	first, err := LoadCached(context.Background(), cache, mapPath, sensorsPath, DefaultOptions())
	require.NoError(t, err)
	require.FileExists(t, cache)

	second, err := LoadCached(context.Background(), cache, mapPath, sensorsPath, DefaultOptions())
	require.NoError(t, err)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("cached network differs (-built +cached):\n%s", diff)
	}
	assert.True(t, containsLine(logs(), "using cached snapshot"), "second load should hit the cache")

	// Different smoothing parameters invalidate the cache.
	opts := DefaultOptions()
	opts.Params.Shift.Distance = 3
	third, err := LoadCached(context.Background(), cache, mapPath, sensorsPath, opts)
	require.NoError(t, err)
	assert.NotEqual(t, first.Fingerprint, third.Fingerprint)
	assert.True(t, containsLine(logs(), graph.ErrStaleSnapshot.Error()))
}

func TestLoadCachedCorruptFile(t *testing.T) {
	quiet(t)
	dir := t.TempDir()
	mapPath, sensorsPath := writeInputs(t, dir)
	cache := filepath.Join(dir, "network.bin")
	require.NoError(t, os.WriteFile(cache, []byte("garbage"), 0o644))

	n, err := LoadCached(context.Background(), cache, mapPath, sensorsPath, DefaultOptions())
	require.NoError(t, err)
	assert.NotEmpty(t, n.Paths)

	snap, err := graph.ReadBinary(cache)
	require.NoError(t, err, "cache should be rewritten")
	assert.Equal(t, n.Fingerprint, snap.Fingerprint)
}

func containsLine(lines []string, substr string) bool {
	for _, l := range lines {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

func TestSetLoggerNil(t *testing.T) {
	orig := Logf
	defer func() { Logf = orig }()

	SetLogger(nil)
	Logf("muted %d", 1) // must not panic
}
