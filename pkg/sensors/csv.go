package sensors

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrMalformedInput is returned for sensor files that do not match the expected layout.
var ErrMalformedInput = errors.New("malformed sensor input")

var (
	sensorHeader = []string{"id", "y", "x"}
	graphHeader  = []string{"id", "y", "x", "adj"}
)

// GraphRow is one line of a sensor file that carries precomputed adjacency.
type GraphRow struct {
	Sensor
	AdjacentGates []GateName
}

// Read parses a sensor list with header "id,y,x". A trailing "adj" column is
// accepted and ignored.
func Read(r io.Reader) ([]Sensor, error) {
	rows, err := readRows(r, false)
	if err != nil {
		return nil, err
	}
	out := make([]Sensor, len(rows))
	for i, row := range rows {
		out[i] = row.Sensor
	}
	return out, nil
}

// ReadGraph parses a sensor list with header "id,y,x,adj", where adj is a
// space-separated list of adjacent gate names.
func ReadGraph(r io.Reader) ([]GraphRow, error) {
	return readRows(r, true)
}

// ReadFile opens path and parses it with Read.
func ReadFile(path string) ([]Sensor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sensors: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// ReadGraphFile opens path and parses it with ReadGraph.
func ReadGraphFile(path string) ([]GraphRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sensor graph: %w", err)
	}
	defer f.Close()
	return ReadGraph(f)
}

func readRows(r io.Reader, requireAdj bool) ([]GraphRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty file", ErrMalformedInput)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrMalformedInput, err)
	}

	var withAdj bool
	switch {
	case equalFields(header, graphHeader):
		withAdj = true
	case equalFields(header, sensorHeader) && !requireAdj:
	default:
		want := sensorHeader
		if requireAdj {
			want = graphHeader
		}
		return nil, fmt.Errorf("%w: header %q, want %q", ErrMalformedInput, strings.Join(header, ","), strings.Join(want, ","))
	}

	var rows []GraphRow
	seen := make(map[GateName]bool)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
		}
		line, _ := cr.FieldPos(0)
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		if len(rec) != len(header) {
			return nil, fmt.Errorf("%w: line %d: %d columns, want %d", ErrMalformedInput, line, len(rec), len(header))
		}

		row, err := parseRow(rec, withAdj)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if seen[row.ID] {
			return nil, fmt.Errorf("%w: line %d: duplicate gate %s", ErrMalformedInput, line, row.ID)
		}
		seen[row.ID] = true
		rows = append(rows, row)
	}
	return rows, nil
}

func parseRow(rec []string, withAdj bool) (GraphRow, error) {
	id, err := ParseGate(rec[0])
	if err != nil {
		return GraphRow{}, err
	}
	y, err := strconv.Atoi(strings.TrimSpace(rec[1]))
	if err != nil {
		return GraphRow{}, fmt.Errorf("%w: y for %s: %v", ErrMalformedInput, id, err)
	}
	x, err := strconv.Atoi(strings.TrimSpace(rec[2]))
	if err != nil {
		return GraphRow{}, fmt.Errorf("%w: x for %s: %v", ErrMalformedInput, id, err)
	}

	row := GraphRow{Sensor: Sensor{ID: id, X: x, Y: y}}
	if withAdj {
		for _, name := range strings.Fields(rec[3]) {
			g, err := ParseGate(name)
			if err != nil {
				return GraphRow{}, fmt.Errorf("adjacency of %s: %w", id, err)
			}
			row.AdjacentGates = append(row.AdjacentGates, g)
		}
	}
	return row, nil
}

func equalFields(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if strings.TrimSpace(got[i]) != want[i] {
			return false
		}
	}
	return true
}
