package graph

import (
	"errors"
	"fmt"
	"image"
	"slices"

	"roadnet/pkg/bitmap"
	"roadnet/pkg/sensors"
)

// noPixel marks a pixel with no predecessor. Pixel index 0 is a real pixel.
const noPixel = ^uint32(0)

var (
	ErrBacktrack         = errors.New("backtrack: predecessor chain broken")
	ErrSensorOutOfBounds = errors.New("sensor outside map bounds")
	ErrDuplicateSensor   = errors.New("duplicate sensor")
	ErrNoSensor          = errors.New("no such sensor")
)

// Trace is the result of one BFS from a source sensor.
type Trace struct {
	Source   sensors.GateName
	Adjacent []sensors.GateName // discovery order
	Paths    map[sensors.GateName][]image.Point
	Visited  int // pixels popped and marked
}

// Scratch holds the per-search arrays. One Scratch must not be used by two
// searches at the same time.
type Scratch struct {
	visited []bool
	prev    []uint32
	queue   []uint32
}

// NewScratch allocates search arrays for a map with n pixels.
func NewScratch(n int) *Scratch {
	s := &Scratch{
		visited: make([]bool, n),
		prev:    make([]uint32, n),
		queue:   make([]uint32, 0, 1024),
	}
	s.reset(n)
	return s
}

func (s *Scratch) reset(n int) {
	if len(s.visited) != n {
		s.visited = make([]bool, n)
		s.prev = make([]uint32, n)
	} else {
		clear(s.visited)
	}
	for i := range s.prev {
		s.prev[i] = noPixel
	}
	s.queue = s.queue[:0]
}

// Tracer runs per-sensor searches over a fixed mask and sensor set.
type Tracer struct {
	mask    bitmap.Traversable
	width   int
	sensors []sensors.Sensor
	at      map[uint32]int // pixel index -> sensor index
}

// NewTracer validates sensor positions against the mask. Every sensor must
// lie inside the image and no two sensors may share a pixel or an ID.
func NewTracer(mask bitmap.Traversable, list []sensors.Sensor) (*Tracer, error) {
	w, h := mask.Width(), mask.Height()
	if uint64(w)*uint64(h) >= uint64(noPixel) {
		return nil, fmt.Errorf("map %dx%d too large", w, h)
	}
	t := &Tracer{
		mask:    mask,
		width:   w,
		sensors: list,
		at:      make(map[uint32]int, len(list)),
	}
	ids := make(map[sensors.GateName]bool, len(list))
	for i, s := range list {
		if s.X < 0 || s.Y < 0 || s.X >= w || s.Y >= h {
			return nil, fmt.Errorf("%w: %s at (%d, %d), map is %dx%d", ErrSensorOutOfBounds, s.ID, s.X, s.Y, w, h)
		}
		if ids[s.ID] {
			return nil, fmt.Errorf("%w: id %s", ErrDuplicateSensor, s.ID)
		}
		ids[s.ID] = true
		px := t.index(s.X, s.Y)
		if j, ok := t.at[px]; ok {
			return nil, fmt.Errorf("%w: %s and %s both at (%d, %d)", ErrDuplicateSensor, list[j].ID, s.ID, s.X, s.Y)
		}
		t.at[px] = i
	}
	return t, nil
}

// Pixels returns the number of pixels a Scratch for this tracer needs.
func (t *Tracer) Pixels() int { return t.width * t.mask.Height() }

func (t *Tracer) index(x, y int) uint32 { return uint32(y*t.width + x) }

func (t *Tracer) point(px uint32) image.Point {
	return image.Point{X: int(px) % t.width, Y: int(px) / t.width}
}

// Trace searches outward from sensor source. Another sensor's pixel ends the
// search along that branch and makes the sensor adjacent. A blocked pixel is
// a dead end, including the start pixel itself.
func (t *Tracer) Trace(source int, s *Scratch) (*Trace, error) {
	if source < 0 || source >= len(t.sensors) {
		return nil, fmt.Errorf("%w: index %d", ErrNoSensor, source)
	}
	if s == nil {
		s = NewScratch(t.Pixels())
	} else {
		s.reset(t.Pixels())
	}

	src := t.sensors[source]
	start := t.index(src.X, src.Y)
	h := t.mask.Height()

	res := &Trace{Source: src.ID, Paths: make(map[sensors.GateName][]image.Point)}
	var found []int

	s.queue = append(s.queue, start)
	for head := 0; head < len(s.queue); head++ {
		px := s.queue[head]
		if s.visited[px] {
			continue
		}
		s.visited[px] = true
		res.Visited++

		p := t.point(px)
		if !t.mask.IsTraversable(p.X, p.Y) {
			continue
		}
		if other, ok := t.at[px]; ok && px != start {
			found = append(found, other)
			continue
		}

		// Left, right, up, down.
		for _, d := range [4]image.Point{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
			nx, ny := p.X+d.X, p.Y+d.Y
			if nx < 0 || ny < 0 || nx >= t.width || ny >= h {
				continue
			}
			n := t.index(nx, ny)
			if s.visited[n] || s.prev[n] != noPixel {
				continue
			}
			s.prev[n] = px
			s.queue = append(s.queue, n)
		}
	}

	for _, i := range found {
		dst := t.sensors[i]
		path, err := t.backtrack(s.prev, start, t.index(dst.X, dst.Y))
		if err != nil {
			return nil, fmt.Errorf("%s--%s: %w", src.ID, dst.ID, err)
		}
		res.Adjacent = append(res.Adjacent, dst.ID)
		res.Paths[dst.ID] = path
	}
	return res, nil
}

// backtrack follows prev from dst to src and returns the path src..dst.
func (t *Tracer) backtrack(prev []uint32, src, dst uint32) ([]image.Point, error) {
	path := []image.Point{t.point(dst)}
	for cur := dst; cur != src; {
		next := prev[cur]
		if next == noPixel || len(path) > len(prev) {
			return nil, fmt.Errorf("%w at %v", ErrBacktrack, t.point(cur))
		}
		cur = next
		path = append(path, t.point(cur))
	}
	slices.Reverse(path)
	return path, nil
}

// TraceFrom runs a single search from sensors[source].
func TraceFrom(mask bitmap.Traversable, list []sensors.Sensor, source int) (*Trace, error) {
	t, err := NewTracer(mask, list)
	if err != nil {
		return nil, err
	}
	return t.Trace(source, nil)
}
