package editor

import "fmt"

// Position says where a moved node lands relative to a reference node.
type Position int

const (
	Before Position = iota // immediately before the reference sibling
	Into                   // last child of the new parent
	After                  // immediately after the reference sibling
)

func (p Position) String() string {
	switch p {
	case Before:
		return "before"
	case Into:
		return "into"
	case After:
		return "after"
	default:
		return fmt.Sprintf("Position(%d)", int(p))
	}
}

// DropPolicy maps the vertical pointer offset within a target row to a
// Position. Offsets below Before (as a fraction of the row height) drop
// before the target, offsets from Before up to After drop into it, and the
// rest drop after it.
type DropPolicy struct {
	Before float64
	After  float64
}

// DefaultDropPolicy splits the row into thirds.
func DefaultDropPolicy() DropPolicy {
	return DropPolicy{Before: 1.0 / 3, After: 2.0 / 3}
}

// Validate checks 0 <= Before <= After <= 1.
func (p DropPolicy) Validate() error {
	if p.Before < 0 || p.After > 1 || p.Before > p.After {
		return fmt.Errorf("editor: drop thresholds %g/%g must satisfy 0 <= before <= after <= 1", p.Before, p.After)
	}
	return nil
}

// Resolve returns the drop position for a pointer offsetY pixels below the
// top of a row rowHeight pixels tall. A degenerate row drops into the
// target.
func (p DropPolicy) Resolve(offsetY, rowHeight float64) Position {
	if rowHeight <= 0 {
		return Into
	}
	switch f := offsetY / rowHeight; {
	case f < p.Before:
		return Before
	case f < p.After:
		return Into
	default:
		return After
	}
}
