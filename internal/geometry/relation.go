package geometry

import "math"

// Relation describes where box a sits horizontally relative to box b.
type Relation string

const (
	Left    Relation = "left"    // a's centre is left of b's
	Right   Relation = "right"   // a's centre is right of b's
	Overlap Relation = "overlap" // centres within tolerance
)

// HorizontalRelation classifies a relative to b by the horizontal offset of
// their centres. Offsets strictly inside tol are Overlap.
func HorizontalRelation(a, b Box, tol float64) Relation {
	ax, bx := Center(a).X, Center(b).X
	switch {
	case math.Abs(ax-bx) < tol:
		return Overlap
	case ax < bx:
		return Left
	default:
		return Right
	}
}
