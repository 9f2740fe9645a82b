package graph

import (
	"fmt"
	"strings"

	"roadnet/pkg/sensors"
)

// keySep joins the two gate names in the text form of a PathKey.
const keySep = "--"

// PathKey identifies a directed edge between two sensors. A--B and B--A are
// different keys.
type PathKey struct {
	From sensors.GateName
	To   sensors.GateName
}

// Reverse returns the key for the opposite direction.
func (k PathKey) Reverse() PathKey { return PathKey{From: k.To, To: k.From} }

func (k PathKey) String() string { return string(k.From) + keySep + string(k.To) }

// MarshalText renders the key as "From--To" so it can be used as a JSON map key.
func (k PathKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses "From--To". Both halves must be known gates.
func (k *PathKey) UnmarshalText(b []byte) error {
	key, err := ParsePathKey(string(b))
	if err != nil {
		return err
	}
	*k = key
	return nil
}

// ParsePathKey parses the "From--To" form.
func ParsePathKey(s string) (PathKey, error) {
	from, to, ok := strings.Cut(s, keySep)
	if !ok {
		return PathKey{}, fmt.Errorf("path key %q: missing %q", s, keySep)
	}
	f, err := sensors.ParseGate(from)
	if err != nil {
		return PathKey{}, fmt.Errorf("path key %q: %w", s, err)
	}
	t, err := sensors.ParseGate(to)
	if err != nil {
		return PathKey{}, fmt.Errorf("path key %q: %w", s, err)
	}
	return PathKey{From: f, To: t}, nil
}
