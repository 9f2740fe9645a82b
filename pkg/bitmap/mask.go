package bitmap

import (
	"errors"
	"fmt"
	"hash/crc32"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
)

// DefaultThreshold is the brightest-channel value (0-255) at or above which a
// pixel is traversable.
const DefaultThreshold = 128

// ErrEmptyImage is returned for images with no pixels.
var ErrEmptyImage = errors.New("empty image")

// Traversable is the read-only view of a traversability grid used by path search.
type Traversable interface {
	Width() int
	Height() int
	IsTraversable(x, y int) bool
}

// Mask is a per-pixel traversability grid derived from a map image.
type Mask struct {
	width  int
	height int
	open   []bool // len: width*height, row-major
}

// New creates a mask of the given size with every pixel blocked.
func New(width, height int) *Mask {
	return &Mask{
		width:  width,
		height: height,
		open:   make([]bool, width*height),
	}
}

// FromImage thresholds img: a pixel is traversable iff max(R, G, B) >= threshold.
// The result is indexed from (0, 0) regardless of img's bounds origin.
func FromImage(img image.Image, threshold uint8) (*Mask, error) {
	b := img.Bounds()
	if b.Empty() {
		return nil, ErrEmptyImage
	}
	m := New(b.Dx(), b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			brightest := max(r, g, bl) >> 8
			if brightest >= uint32(threshold) {
				m.open[(y-b.Min.Y)*m.width+(x-b.Min.X)] = true
			}
		}
	}
	return m, nil
}

// Load decodes a BMP, PNG or JPEG file and thresholds it.
func Load(path string, threshold uint8) (*Mask, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open map image: %w", err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode map image: %w", err)
	}
	m, err := FromImage(img, threshold)
	if err != nil {
		return nil, fmt.Errorf("threshold %s image: %w", format, err)
	}
	return m, nil
}

// Parse builds a mask from rows of text where '.' is traversable and any
// other byte is blocked. All rows must have equal length.
func Parse(rows ...string) (*Mask, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, ErrEmptyImage
	}
	m := New(len(rows[0]), len(rows))
	for y, row := range rows {
		if len(row) != m.width {
			return nil, fmt.Errorf("row %d has width %d, want %d", y, len(row), m.width)
		}
		for x := 0; x < len(row); x++ {
			m.open[y*m.width+x] = row[x] == '.'
		}
	}
	return m, nil
}

func (m *Mask) Width() int  { return m.width }
func (m *Mask) Height() int { return m.height }

// IsTraversable reports whether (x, y) is in bounds and open.
func (m *Mask) IsTraversable(x, y int) bool {
	if x < 0 || y < 0 || x >= m.width || y >= m.height {
		return false
	}
	return m.open[y*m.width+x]
}

// Set marks (x, y) open or blocked. Out-of-bounds writes are ignored.
func (m *Mask) Set(x, y int, open bool) {
	if x < 0 || y < 0 || x >= m.width || y >= m.height {
		return
	}
	m.open[y*m.width+x] = open
}

// Count returns the number of traversable pixels.
func (m *Mask) Count() int {
	n := 0
	for _, o := range m.open {
		if o {
			n++
		}
	}
	return n
}

// Fingerprint is a CRC32 over the mask dimensions and contents. It changes
// whenever the traversable set changes.
func (m *Mask) Fingerprint() uint32 {
	h := crc32.NewIEEE()
	fmt.Fprintf(h, "%dx%d:", m.width, m.height)
	row := make([]byte, m.width)
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			row[x] = 0
			if m.open[y*m.width+x] {
				row[x] = 1
			}
		}
		h.Write(row)
	}
	return h.Sum32()
}
