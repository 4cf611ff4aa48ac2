// Package position implements the fixed-length position vector that orders
// hierarchy nodes among their siblings.
//
// Slot i orders siblings at level i+1. A node at level L only uses slots
// [0, L); the remaining slots are always zero. Because the vector has a fixed
// shape, two nodes of a story can be compared (and constrained unique) as a
// plain 5-tuple.
package position

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Size is the number of slots in a position vector (the maximum depth).
const Size = 5

// ErrIndexRange is returned when a level index falls outside [0, Size).
var ErrIndexRange = errors.New("position: level index out of range")

// Position is a node's position vector.
type Position [Size]int

// LevelIndex returns the slot that orders siblings at level.
func LevelIndex(level int) int { return level - 1 }

// ValidIndex reports whether idx addresses a slot.
func ValidIndex(idx int) bool { return idx >= 0 && idx < Size }

// Compare orders a and b by their value at idx only.
//
// Values deeper than idx are ignored; callers must not read anything into a
// zero result beyond "equal at this slot". idx must be a valid index.
func Compare(a, b Position, idx int) int {
	switch {
	case a[idx] < b[idx]:
		return -1
	case a[idx] > b[idx]:
		return 1
	default:
		return 0
	}
}

// CompareAll orders a and b lexicographically over every slot.
func CompareAll(a, b Position) int {
	for i := 0; i < Size; i++ {
		if c := Compare(a, b, i); c != 0 {
			return c
		}
	}
	return 0
}

// Value returns the slot value at idx, or 0 when idx is out of range.
func (p Position) Value(idx int) int {
	if !ValidIndex(idx) {
		return 0
	}
	return p[idx]
}

// With returns a copy of p with slot idx set to value and every deeper slot
// reset to 0.
func (p Position) With(idx, value int) (Position, error) {
	if !ValidIndex(idx) {
		return p, fmt.Errorf("%w: %d", ErrIndexRange, idx)
	}
	out := p
	out[idx] = value
	for i := idx + 1; i < Size; i++ {
		out[i] = 0
	}
	return out, nil
}

// Set returns a copy of p with only slot idx replaced. Deeper slots are kept,
// which is what moving a whole subtree needs.
func (p Position) Set(idx, value int) (Position, error) {
	if !ValidIndex(idx) {
		return p, fmt.Errorf("%w: %d", ErrIndexRange, idx)
	}
	out := p
	out[idx] = value
	return out, nil
}

// HasPrefix reports whether p matches parent on every slot below parentLevel.
func (p Position) HasPrefix(parent Position, parentLevel int) bool {
	for i := 0; i < parentLevel && i < Size; i++ {
		if p[i] != parent[i] {
			return false
		}
	}
	return true
}

// Validate checks that p is well formed for a node at level: slots in use are
// non-negative and unused slots are zero.
func (p Position) Validate(level int) error {
	if level < 1 || level > Size {
		return fmt.Errorf("position: level %d out of range 1..%d", level, Size)
	}
	for i := 0; i < Size; i++ {
		if i < level && p[i] < 0 {
			return fmt.Errorf("position: negative value %d at slot %d", p[i], i)
		}
		if i >= level && p[i] != 0 {
			return fmt.Errorf("position: slot %d must be 0 for level %d (got %d)", i, level, p[i])
		}
	}
	return nil
}

// String renders p as dot separated values, e.g. "1.2.0.0.0".
func (p Position) String() string {
	parts := make([]string, Size)
	for i, v := range p {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ".")
}
