package graph

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"image"
	"io"
	"os"
	"unsafe"

	"github.com/paulmach/orb"

	"roadnet/pkg/sensors"
)

const (
	magicBytes = "RDNETBIN"
	version    = uint32(1)
	maxSensors = 1 << 16
	maxEdges   = 1 << 20
	maxPoints  = 1 << 28
)

// ErrStaleSnapshot is returned when a snapshot was built from different inputs.
var ErrStaleSnapshot = errors.New("snapshot built from different inputs")

// Snapshot is the on-disk form of a built network.
type Snapshot struct {
	Fingerprint uint32 // hash of the inputs the network was built from
	Width       int
	Height      int
	Sensors     []sensors.Sensor
	Adjacency   Adjacency
	Paths       PathTable
	Smooth      SmoothedPathTable
}

type fileHeader struct {
	Magic           [8]byte
	Version         uint32
	Fingerprint     uint32
	Width           uint32
	Height          uint32
	NumSensors      uint32
	NumEdges        uint32
	NumRawPoints    uint32
	NumSmoothPoints uint32
}

// packed is the CSR layout of a snapshot. Edges are grouped by source sensor
// in Sensors order and keep each sensor's adjacency order.
type packed struct {
	gate        []byte // stable gate index per sensor
	sensorX     []int32
	sensorY     []int32
	firstOut    []uint32 // len: sensors+1
	head        []uint32 // len: edges; target sensor index
	rawFirst    []uint32 // len: edges+1
	rawX        []int32
	rawY        []int32
	smoothFirst []uint32 // len: edges+1
	smoothXY    []float64
}

func pack(s *Snapshot) (*packed, error) {
	n := len(s.Sensors)
	p := &packed{
		gate:        make([]byte, n),
		sensorX:     make([]int32, n),
		sensorY:     make([]int32, n),
		firstOut:    make([]uint32, n+1),
		rawFirst:    []uint32{0},
		smoothFirst: []uint32{0},
	}
	pos := make(map[sensors.GateName]uint32, n)
	for i, sn := range s.Sensors {
		gi, ok := sn.ID.Index()
		if !ok {
			return nil, fmt.Errorf("%w: %q", sensors.ErrUnknownGate, sn.ID)
		}
		p.gate[i] = gi
		p.sensorX[i] = int32(sn.X)
		p.sensorY[i] = int32(sn.Y)
		pos[sn.ID] = uint32(i)
	}

	for i, sn := range s.Sensors {
		for _, to := range s.Adjacency[sn.ID].AdjacentGates {
			j, ok := pos[to]
			if !ok {
				return nil, fmt.Errorf("edge %s--%s: target is not a sensor", sn.ID, to)
			}
			key := PathKey{From: sn.ID, To: to}
			p.head = append(p.head, j)

			for _, pt := range s.Paths[key] {
				p.rawX = append(p.rawX, int32(pt.X))
				p.rawY = append(p.rawY, int32(pt.Y))
			}
			p.rawFirst = append(p.rawFirst, uint32(len(p.rawX)))

			for _, pt := range s.Smooth[key] {
				p.smoothXY = append(p.smoothXY, pt[0], pt[1])
			}
			p.smoothFirst = append(p.smoothFirst, uint32(len(p.smoothXY)/2))
		}
		p.firstOut[i+1] = uint32(len(p.head))
	}
	return p, nil
}

func (p *packed) unpack(hdr *fileHeader) (*Snapshot, error) {
	n := int(hdr.NumSensors)
	s := &Snapshot{
		Fingerprint: hdr.Fingerprint,
		Width:       int(hdr.Width),
		Height:      int(hdr.Height),
		Sensors:     make([]sensors.Sensor, n),
		Adjacency:   make(Adjacency, n),
		Paths:       make(PathTable, hdr.NumEdges),
		Smooth:      make(SmoothedPathTable, hdr.NumEdges),
	}
	for i := range n {
		id, err := sensors.GateAt(p.gate[i])
		if err != nil {
			return nil, fmt.Errorf("sensor %d: %w", i, err)
		}
		s.Sensors[i] = sensors.Sensor{ID: id, X: int(p.sensorX[i]), Y: int(p.sensorY[i])}
	}
	for i, sn := range s.Sensors {
		node := Node{X: sn.X, Y: sn.Y, AdjacentGates: []sensors.GateName{}}
		for e := p.firstOut[i]; e < p.firstOut[i+1]; e++ {
			to := s.Sensors[p.head[e]].ID
			node.AdjacentGates = append(node.AdjacentGates, to)
			key := PathKey{From: sn.ID, To: to}

			raw := make([]image.Point, 0, p.rawFirst[e+1]-p.rawFirst[e])
			for k := p.rawFirst[e]; k < p.rawFirst[e+1]; k++ {
				raw = append(raw, image.Point{X: int(p.rawX[k]), Y: int(p.rawY[k])})
			}
			s.Paths[key] = raw

			ls := make(orb.LineString, 0, p.smoothFirst[e+1]-p.smoothFirst[e])
			for k := p.smoothFirst[e]; k < p.smoothFirst[e+1]; k++ {
				ls = append(ls, orb.Point{p.smoothXY[2*k], p.smoothXY[2*k+1]})
			}
			s.Smooth[key] = ls
		}
		if _, dup := s.Adjacency[sn.ID]; dup {
			return nil, fmt.Errorf("%w: id %s", ErrDuplicateSensor, sn.ID)
		}
		s.Adjacency[sn.ID] = node
	}
	return s, nil
}

// WriteBinary serializes a snapshot to path via a temp file and rename.
func WriteBinary(path string, snap *Snapshot) error {
	p, err := pack(snap)
	if err != nil {
		return fmt.Errorf("pack snapshot: %w", err)
	}

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath) // no-op after a successful rename
	}()

	crcWriter := crc32Writer{w: f, hash: crc32.NewIEEE()}
	w := &crcWriter

	hdr := fileHeader{
		Version:         version,
		Fingerprint:     snap.Fingerprint,
		Width:           uint32(snap.Width),
		Height:          uint32(snap.Height),
		NumSensors:      uint32(len(snap.Sensors)),
		NumEdges:        uint32(len(p.head)),
		NumRawPoints:    uint32(len(p.rawX)),
		NumSmoothPoints: uint32(len(p.smoothXY) / 2),
	}
	copy(hdr.Magic[:], magicBytes)
	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	if _, err := w.Write(p.gate); err != nil {
		return fmt.Errorf("write sensor gates: %w", err)
	}
	if err := writeInt32Slice(w, p.sensorX); err != nil {
		return fmt.Errorf("write sensor X: %w", err)
	}
	if err := writeInt32Slice(w, p.sensorY); err != nil {
		return fmt.Errorf("write sensor Y: %w", err)
	}
	if err := writeUint32Slice(w, p.firstOut); err != nil {
		return fmt.Errorf("write FirstOut: %w", err)
	}
	if err := writeUint32Slice(w, p.head); err != nil {
		return fmt.Errorf("write Head: %w", err)
	}
	if err := writeUint32Slice(w, p.rawFirst); err != nil {
		return fmt.Errorf("write RawFirst: %w", err)
	}
	if err := writeInt32Slice(w, p.rawX); err != nil {
		return fmt.Errorf("write RawX: %w", err)
	}
	if err := writeInt32Slice(w, p.rawY); err != nil {
		return fmt.Errorf("write RawY: %w", err)
	}
	if err := writeUint32Slice(w, p.smoothFirst); err != nil {
		return fmt.Errorf("write SmoothFirst: %w", err)
	}
	if err := writeFloat64Slice(w, p.smoothXY); err != nil {
		return fmt.Errorf("write SmoothXY: %w", err)
	}

	checksum := crcWriter.hash.Sum32()
	if err := binary.Write(f, binary.LittleEndian, checksum); err != nil {
		return fmt.Errorf("write CRC32: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// ReadBinary deserializes a snapshot written by WriteBinary.
func ReadBinary(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	crcReader := crc32Reader{r: f, hash: crc32.NewIEEE()}
	r := &crcReader

	var hdr fileHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if string(hdr.Magic[:]) != magicBytes {
		return nil, fmt.Errorf("invalid magic bytes: %q", hdr.Magic)
	}
	if hdr.Version != version {
		return nil, fmt.Errorf("unsupported version: %d", hdr.Version)
	}
	if hdr.NumSensors > maxSensors {
		return nil, fmt.Errorf("NumSensors %d exceeds limit %d", hdr.NumSensors, maxSensors)
	}
	if hdr.NumEdges > maxEdges {
		return nil, fmt.Errorf("NumEdges %d exceeds limit %d", hdr.NumEdges, maxEdges)
	}
	if hdr.NumRawPoints > maxPoints || hdr.NumSmoothPoints > maxPoints {
		return nil, fmt.Errorf("point count exceeds limit %d", maxPoints)
	}

	n, m := int(hdr.NumSensors), int(hdr.NumEdges)
	p := &packed{gate: make([]byte, n)}
	if _, err := io.ReadFull(r, p.gate); err != nil {
		return nil, fmt.Errorf("read sensor gates: %w", err)
	}
	if p.sensorX, err = readInt32Slice(r, n); err != nil {
		return nil, fmt.Errorf("read sensor X: %w", err)
	}
	if p.sensorY, err = readInt32Slice(r, n); err != nil {
		return nil, fmt.Errorf("read sensor Y: %w", err)
	}
	if p.firstOut, err = readUint32Slice(r, n+1); err != nil {
		return nil, fmt.Errorf("read FirstOut: %w", err)
	}
	if p.head, err = readUint32Slice(r, m); err != nil {
		return nil, fmt.Errorf("read Head: %w", err)
	}
	if p.rawFirst, err = readUint32Slice(r, m+1); err != nil {
		return nil, fmt.Errorf("read RawFirst: %w", err)
	}
	if p.rawX, err = readInt32Slice(r, int(hdr.NumRawPoints)); err != nil {
		return nil, fmt.Errorf("read RawX: %w", err)
	}
	if p.rawY, err = readInt32Slice(r, int(hdr.NumRawPoints)); err != nil {
		return nil, fmt.Errorf("read RawY: %w", err)
	}
	if p.smoothFirst, err = readUint32Slice(r, m+1); err != nil {
		return nil, fmt.Errorf("read SmoothFirst: %w", err)
	}
	if p.smoothXY, err = readFloat64Slice(r, 2*int(hdr.NumSmoothPoints)); err != nil {
		return nil, fmt.Errorf("read SmoothXY: %w", err)
	}

	expectedCRC := crcReader.hash.Sum32()
	var storedCRC uint32
	if err := binary.Read(f, binary.LittleEndian, &storedCRC); err != nil {
		return nil, fmt.Errorf("read CRC32: %w", err)
	}
	if storedCRC != expectedCRC {
		return nil, fmt.Errorf("CRC32 mismatch: stored=%08x computed=%08x", storedCRC, expectedCRC)
	}

	if err := validateCSR(p.firstOut, p.head, hdr.NumSensors); err != nil {
		return nil, fmt.Errorf("adjacency CSR invalid: %w", err)
	}
	if err := validateOffsets(p.rawFirst, hdr.NumRawPoints); err != nil {
		return nil, fmt.Errorf("raw path offsets invalid: %w", err)
	}
	if err := validateOffsets(p.smoothFirst, hdr.NumSmoothPoints); err != nil {
		return nil, fmt.Errorf("smooth path offsets invalid: %w", err)
	}
	return p.unpack(&hdr)
}

// validateCSR checks CSR invariants.
func validateCSR(firstOut, head []uint32, numNodes uint32) error {
	if uint32(len(firstOut)) != numNodes+1 {
		return fmt.Errorf("FirstOut length %d != NumSensors+1 %d", len(firstOut), numNodes+1)
	}
	if err := validateOffsets(firstOut, uint32(len(head))); err != nil {
		return err
	}
	for i, h := range head {
		if h >= numNodes {
			return fmt.Errorf("Head[%d]=%d >= NumSensors=%d", i, h, numNodes)
		}
	}
	return nil
}

// validateOffsets checks that offsets start at zero, never decrease and end at total.
func validateOffsets(first []uint32, total uint32) error {
	if len(first) == 0 || first[0] != 0 {
		return errors.New("offsets must start at 0")
	}
	for i := 1; i < len(first); i++ {
		if first[i] < first[i-1] {
			return fmt.Errorf("offsets not monotonic at %d: %d < %d", i, first[i], first[i-1])
		}
	}
	if last := first[len(first)-1]; last != total {
		return fmt.Errorf("last offset %d != count %d", last, total)
	}
	return nil
}

// Zero-copy I/O helpers using unsafe.Slice. The format is little-endian,
// matching every platform the tools are built for.

func writeUint32Slice(w io.Writer, s []uint32) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*4)
	_, err := w.Write(b)
	return err
}

func writeInt32Slice(w io.Writer, s []int32) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*4)
	_, err := w.Write(b)
	return err
}

func writeFloat64Slice(w io.Writer, s []float64) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*8)
	_, err := w.Write(b)
	return err
}

func readUint32Slice(r io.Reader, n int) ([]uint32, error) {
	if n == 0 {
		return nil, nil
	}
	s := make([]uint32, n)
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n*4)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return s, nil
}

func readInt32Slice(r io.Reader, n int) ([]int32, error) {
	if n == 0 {
		return nil, nil
	}
	s := make([]int32, n)
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n*4)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return s, nil
}

func readFloat64Slice(r io.Reader, n int) ([]float64, error) {
	if n == 0 {
		return nil, nil
	}
	s := make([]float64, n)
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n*8)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return s, nil
}

type crc32Hash interface {
	Write([]byte) (int, error)
	Sum32() uint32
}

type crc32Writer struct {
	w    io.Writer
	hash crc32Hash
}

func (cw *crc32Writer) Write(p []byte) (int, error) {
	cw.hash.Write(p)
	return cw.w.Write(p)
}

type crc32Reader struct {
	r    io.Reader
	hash crc32Hash
}

func (cr *crc32Reader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.hash.Write(p[:n])
	}
	return n, err
}
