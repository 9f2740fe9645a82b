package sensors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownGate is returned when a gate name is not part of the park's gate set.
var ErrUnknownGate = errors.New("unknown gate")

// GateName identifies a sensor location in the park.
type GateName string

// GateType is the sensor category encoded in a gate name's prefix.
type GateType string

const (
	TypeEntrance    GateType = "entrance"
	TypeGate        GateType = "gate"
	TypeGeneralGate GateType = "general-gate"
	TypeRangerStop  GateType = "ranger-stop"
	TypeRangerBase  GateType = "ranger-base"
	TypeCamping     GateType = "camping"
)

// AllGates lists every gate in its canonical order. The position of a gate in
// this slice is its stable index.
var AllGates = []GateName{
	"entrance0", "entrance1", "entrance2", "entrance3", "entrance4",
	"gate0", "gate1", "gate2", "gate3", "gate4", "gate5", "gate6", "gate7", "gate8",
	"general-gate0", "general-gate1", "general-gate2", "general-gate3",
	"general-gate4", "general-gate5", "general-gate6", "general-gate7",
	"ranger-stop0", "ranger-stop1", "ranger-stop2", "ranger-stop3",
	"ranger-stop4", "ranger-stop5", "ranger-stop6", "ranger-stop7",
	"ranger-base",
	"camping0", "camping1", "camping2", "camping3", "camping4",
	"camping5", "camping6", "camping7", "camping8",
}

var gateIndex = func() map[GateName]uint8 {
	m := make(map[GateName]uint8, len(AllGates))
	for i, g := range AllGates {
		m[g] = uint8(i)
	}
	return m
}()

// ParseGate validates s against the gate set.
func ParseGate(s string) (GateName, error) {
	g := GateName(strings.TrimSpace(s))
	if _, ok := gateIndex[g]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownGate, s)
	}
	return g, nil
}

// Valid reports whether g belongs to the gate set.
func (g GateName) Valid() bool {
	_, ok := gateIndex[g]
	return ok
}

// Index returns the stable index of g, or false for unknown gates.
func (g GateName) Index() (uint8, bool) {
	i, ok := gateIndex[g]
	return i, ok
}

// GateAt returns the gate with stable index i.
func GateAt(i uint8) (GateName, error) {
	if int(i) >= len(AllGates) {
		return "", fmt.Errorf("%w: index %d", ErrUnknownGate, i)
	}
	return AllGates[i], nil
}

// Type strips the trailing digits from the name.
func (g GateName) Type() GateType {
	return GateType(strings.TrimRight(string(g), "0123456789"))
}

// Sensor is a named gate at a fixed pixel position on the park map.
type Sensor struct {
	ID GateName
	X  int
	Y  int
}
