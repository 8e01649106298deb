// Package geom holds the canvas coordinate helpers shared by the graph
// model, the editor and the terminal front end.
//
// Canvas space is continuous (float64 pixels, origin top-left, y down).
// Cell space is the discrete grid of a terminal; Viewport converts
// between the two.
package geom

import (
	"fmt"
	"math"
)

// Point is a position in canvas space.
type Point struct {
	X float64
	Y float64
}

// Pt is shorthand for Point{x, y}.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Add returns p+q.
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Sub returns p-q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Scale returns p with both coordinates multiplied by f.
func (p Point) Scale(f float64) Point {
	return Point{X: p.X * f, Y: p.Y * f}
}

// Finite reports whether neither coordinate is NaN or infinite.
func (p Point) Finite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

func (p Point) String() string {
	return fmt.Sprintf("(%g,%g)", p.X, p.Y)
}

// Size is a width and height in canvas space.
type Size struct {
	W float64
	H float64
}

// Half returns the offset from a rect's corner to its centre.
func (s Size) Half() Point {
	return Point{X: s.W / 2, Y: s.H / 2}
}

// Empty reports whether either dimension is non-positive.
func (s Size) Empty() bool {
	return s.W <= 0 || s.H <= 0
}

// Rect is an axis-aligned rectangle anchored at its top-left corner.
// It contains the half-open range [Min, Min+Size).
type Rect struct {
	Min  Point
	Size Size
}

// RectAt returns the rect of size s anchored at p.
func RectAt(p Point, s Size) Rect {
	return Rect{Min: p, Size: s}
}

// Max returns the exclusive bottom-right corner.
func (r Rect) Max() Point {
	return Point{X: r.Min.X + r.Size.W, Y: r.Min.Y + r.Size.H}
}

// Contains reports whether p lies inside r.
func (r Rect) Contains(p Point) bool {
	max := r.Max()
	return p.X >= r.Min.X && p.X < max.X && p.Y >= r.Min.Y && p.Y < max.Y
}

// Center returns the centre point of r.
func (r Rect) Center() Point {
	return r.Min.Add(r.Size.Half())
}

// Segment is a straight line between two canvas points.
type Segment struct {
	From Point
	To   Point
}

// Centerline returns the segment joining the centres of a and b.
func Centerline(a, b Rect) Segment {
	return Segment{From: a.Center(), To: b.Center()}
}

// Snap rounds p to the nearest multiple of grid on both axes.
// A grid of zero or less leaves p untouched.
func Snap(p Point, grid float64) Point {
	if grid <= 0 {
		return p
	}
	return Point{
		X: math.Round(p.X/grid) * grid,
		Y: math.Round(p.Y/grid) * grid,
	}
}
