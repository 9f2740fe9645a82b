package sensors

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRead(t *testing.T) {
	in := "id,y,x\nentrance0,10,20\ngate3,5,7\n"

	got, err := Read(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	want := []Sensor{
		{ID: "entrance0", X: 20, Y: 10},
		{ID: "gate3", X: 7, Y: 5},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Read mismatch (-want +got):\n%s", diff)
	}
}

func TestReadAcceptsAdjColumn(t *testing.T) {
	in := "id,y,x,adj\nentrance0,10,20,gate3\ngate3,5,7,entrance0\n"

	got, err := Read(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
}

func TestReadGraph(t *testing.T) {
	in := "id,y,x,adj\nentrance0,10,20,gate3 camping1\ngate3,5,7,entrance0\ncamping1,1,1,\n"

	rows, err := ReadGraph(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadGraph: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	want := []GateName{"gate3", "camping1"}
	if diff := cmp.Diff(want, rows[0].AdjacentGates); diff != "" {
		t.Errorf("adjacency mismatch (-want +got):\n%s", diff)
	}
	if len(rows[2].AdjacentGates) != 0 {
		t.Errorf("camping1 adjacency = %v, want empty", rows[2].AdjacentGates)
	}
}

func TestReadErrors(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr error
	}{
		{"empty", "", ErrMalformedInput},
		{"bad header", "name,y,x\nentrance0,1,1\n", ErrMalformedInput},
		{"swapped header", "id,x,y\nentrance0,1,1\n", ErrMalformedInput},
		{"short row", "id,y,x\nentrance0,1\n", ErrMalformedInput},
		{"bad int", "id,y,x\nentrance0,one,1\n", ErrMalformedInput},
		{"unknown gate", "id,y,x\nentrance9,1,1\n", ErrUnknownGate},
		{"duplicate", "id,y,x\ngate1,1,1\ngate1,2,2\n", ErrMalformedInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.in))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestReadGraphRequiresAdjHeader(t *testing.T) {
	_, err := ReadGraph(strings.NewReader("id,y,x\ngate1,1,1\n"))
	if !errors.Is(err, ErrMalformedInput) {
		t.Errorf("err = %v, want ErrMalformedInput", err)
	}
}

func TestReadGraphUnknownAdjacent(t *testing.T) {
	_, err := ReadGraph(strings.NewReader("id,y,x,adj\ngate1,1,1,gate99\n"))
	if !errors.Is(err, ErrUnknownGate) {
		t.Errorf("err = %v, want ErrUnknownGate", err)
	}
}

func TestGateType(t *testing.T) {
	tests := []struct {
		gate GateName
		want GateType
	}{
		{"entrance3", TypeEntrance},
		{"gate8", TypeGate},
		{"general-gate0", TypeGeneralGate},
		{"ranger-stop7", TypeRangerStop},
		{"ranger-base", TypeRangerBase},
		{"camping4", TypeCamping},
	}
	for _, tt := range tests {
		if got := tt.gate.Type(); got != tt.want {
			t.Errorf("%s.Type() = %q, want %q", tt.gate, got, tt.want)
		}
	}
}

func TestGateIndexRoundTrip(t *testing.T) {
	if len(AllGates) != 40 {
		t.Fatalf("len(AllGates) = %d, want 40", len(AllGates))
	}
	for _, g := range AllGates {
		i, ok := g.Index()
		if !ok {
			t.Fatalf("%s has no index", g)
		}
		back, err := GateAt(i)
		if err != nil || back != g {
			t.Errorf("GateAt(%d) = %q, %v; want %q", i, back, err, g)
		}
	}
	if _, err := GateAt(40); !errors.Is(err, ErrUnknownGate) {
		t.Errorf("GateAt(40) err = %v, want ErrUnknownGate", err)
	}
}
