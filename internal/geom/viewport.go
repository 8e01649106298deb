package geom

import "math"

// Cell is a position on a terminal grid.
type Cell struct {
	Col int
	Row int
}

// Viewport maps a Cols×Rows terminal grid onto canvas space where every
// cell covers Cell.W×Cell.H canvas pixels.
//
// A cell maps to the canvas point at its centre, and a canvas point maps
// to the cell containing it, so ToCell(ToCanvas(c)) == c for every cell.
type Viewport struct {
	Cell Size
	Cols int
	Rows int
}

// Canvas returns the canvas dimensions covered by the viewport.
func (v Viewport) Canvas() Size {
	return Size{W: float64(v.Cols) * v.Cell.W, H: float64(v.Rows) * v.Cell.H}
}

// ToCanvas returns the canvas point at the centre of c.
func (v Viewport) ToCanvas(c Cell) Point {
	return Point{
		X: (float64(c.Col) + 0.5) * v.Cell.W,
		Y: (float64(c.Row) + 0.5) * v.Cell.H,
	}
}

// ToCell returns the cell containing p. The result may lie outside the grid.
func (v Viewport) ToCell(p Point) Cell {
	return Cell{
		Col: int(math.Floor(p.X / v.Cell.W)),
		Row: int(math.Floor(p.Y / v.Cell.H)),
	}
}

// InBounds reports whether c lies on the grid.
func (v Viewport) InBounds(c Cell) bool {
	return c.Col >= 0 && c.Col < v.Cols && c.Row >= 0 && c.Row < v.Rows
}

// Span returns the half-open cell range [from, to) of cells whose centres
// fall inside r. Clicking any cell of the span hits r. The range may be
// empty when r is smaller than a cell.
func (v Viewport) Span(r Rect) (from, to Cell) {
	max := r.Max()
	from = Cell{
		Col: int(math.Ceil(r.Min.X/v.Cell.W - 0.5)),
		Row: int(math.Ceil(r.Min.Y/v.Cell.H - 0.5)),
	}
	to = Cell{
		Col: int(math.Ceil(max.X/v.Cell.W - 0.5)),
		Row: int(math.Ceil(max.Y/v.Cell.H - 0.5)),
	}
	return from, to
}

// Line returns the cells on the straight line from a to b, both ends
// included, using Bresenham's algorithm.
func Line(a, b Cell) []Cell {
	dx := abs(b.Col - a.Col)
	dy := -abs(b.Row - a.Row)
	sx, sy := 1, 1
	if a.Col > b.Col {
		sx = -1
	}
	if a.Row > b.Row {
		sy = -1
	}

	cells := make([]Cell, 0, max(dx, -dy)+1)
	c := a
	e := dx + dy
	for {
		cells = append(cells, c)
		if c == b {
			return cells
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			c.Col += sx
		}
		if e2 <= dx {
			e += dx
			c.Row += sy
		}
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
