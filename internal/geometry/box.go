// Package geometry provides the axis-aligned box primitives shared by the
// fault and severity reasoning.
//
// All coordinates are image pixels with the origin at the top-left corner,
// so a larger Y is further down the frame.
package geometry

import (
	"image"
	"math"
)

// iouEpsilon keeps IoU finite for degenerate boxes.
const iouEpsilon = 1e-6

// DefaultTolerance is the horizontal dead band, in pixels, inside which two
// boxes are considered to be in front of or behind each other.
const DefaultTolerance = 20.0

// Box is an axis-aligned rectangle. X1 <= X2 and Y1 <= Y2 for well-formed
// boxes; malformed boxes simply produce zero areas.
type Box struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Point is a pixel position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Width returns the horizontal extent, never negative.
func (b Box) Width() float64 { return math.Max(0, b.X2-b.X1) }

// Height returns the vertical extent, never negative.
func (b Box) Height() float64 { return math.Max(0, b.Y2-b.Y1) }

// Area returns Width*Height.
func (b Box) Area() float64 { return b.Width() * b.Height() }

// Empty reports whether the box covers no pixels.
func (b Box) Empty() bool { return b.Area() == 0 }

// Clamp limits the box to an image of the given size.
func (b Box) Clamp(width, height float64) Box {
	return Box{
		X1: clamp(b.X1, 0, width),
		Y1: clamp(b.Y1, 0, height),
		X2: clamp(b.X2, 0, width),
		Y2: clamp(b.Y2, 0, height),
	}
}

// Image converts the box to an integer rectangle, rounding outwards.
func (b Box) Image() image.Rectangle {
	return image.Rect(
		int(math.Floor(b.X1)), int(math.Floor(b.Y1)),
		int(math.Ceil(b.X2)), int(math.Ceil(b.Y2)),
	)
}

// Center returns the midpoint of the box.
func Center(b Box) Point {
	return Point{X: (b.X1 + b.X2) / 2, Y: (b.Y1 + b.Y2) / 2}
}

// IoU returns the intersection-over-union of a and b. The result is
// symmetric, lies in [0, 1] and is 0 for disjoint or degenerate boxes.
func IoU(a, b Box) float64 {
	iw := math.Max(0, math.Min(a.X2, b.X2)-math.Max(a.X1, b.X1))
	ih := math.Max(0, math.Min(a.Y2, b.Y2)-math.Max(a.Y1, b.Y1))
	inter := iw * ih
	return inter / (a.Area() + b.Area() - inter + iouEpsilon)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
