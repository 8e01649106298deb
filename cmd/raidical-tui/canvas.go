package main

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/raghurai/raidical-bjj/internal/editor"
	"github.com/raghurai/raidical-bjj/internal/geom"
)

// cellSize is the canvas area one terminal cell stands for. Terminal
// cells are about twice as tall as wide.
var cellSize = geom.Size{W: 10, H: 20}

// canvasTop is the first terminal row of the canvas: toolbar and divider
// sit above it.
const canvasTop = 2

const (
	edgeRune = '·'
	moveMark = "◆ "
)

// border is the set of runes a node box is drawn with.
type border struct {
	tl, tr, bl, br, h, v rune
}

var (
	plainBorder    = border{'┌', '┐', '└', '┘', '─', '│'}
	selectedBorder = border{'╔', '╗', '╚', '╝', '═', '║'}
	activeBorder   = border{'┏', '┓', '┗', '┛', '━', '┃'}
)

func borderFor(n editor.NodeView) border {
	switch {
	case n.Start || n.Dragged:
		return activeBorder
	case n.Selected:
		return selectedBorder
	default:
		return plainBorder
	}
}

// pointerEvent converts a mouse message into a controller event. Presses
// outside the canvas and buttons other than the left one are dropped;
// motion and releases are always forwarded so a drag can end anywhere.
func pointerEvent(msg tea.MouseMsg, vp geom.Viewport, top int) (editor.Event, bool) {
	cell := geom.Cell{Col: msg.X, Row: msg.Y - top}
	at := vp.ToCanvas(cell)

	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft || !vp.InBounds(cell) {
			return nil, false
		}
		return editor.PointerDown{At: at}, true
	case tea.MouseActionMotion:
		return editor.PointerMove{At: at}, true
	case tea.MouseActionRelease:
		return editor.PointerUp{At: at}, true
	}
	return nil, false
}

// grid is a Rows×Cols rune buffer that ignores writes outside it.
type grid struct {
	vp    geom.Viewport
	cells [][]rune
}

func newGrid(vp geom.Viewport) *grid {
	g := &grid{vp: vp, cells: make([][]rune, vp.Rows)}
	for i := range g.cells {
		g.cells[i] = []rune(strings.Repeat(" ", vp.Cols))
	}
	return g
}

func (g *grid) set(c geom.Cell, r rune) {
	if g.vp.InBounds(c) {
		g.cells[c.Row][c.Col] = r
	}
}

func (g *grid) text(c geom.Cell, s string, limit int) {
	i := 0
	for _, r := range s {
		if i >= limit {
			return
		}
		g.set(geom.Cell{Col: c.Col + i, Row: c.Row}, r)
		i++
	}
}

func (g *grid) String() string {
	lines := make([]string, len(g.cells))
	for i, row := range g.cells {
		lines[i] = string(row)
	}
	return strings.Join(lines, "\n")
}

// renderCanvas draws a scene onto the viewport: edges first, then node
// boxes in creation order so later nodes cover earlier ones.
func renderCanvas(s editor.Scene, vp geom.Viewport) string {
	g := newGrid(vp)

	for _, seg := range s.Segments {
		for _, c := range geom.Line(vp.ToCell(seg.From), vp.ToCell(seg.To)) {
			g.set(c, edgeRune)
		}
	}
	for _, n := range s.Nodes {
		drawNode(g, n)
	}
	return g.String()
}

func drawNode(g *grid, n editor.NodeView) {
	from, to := g.vp.Span(n.Rect)
	w, h := to.Col-from.Col, to.Row-from.Row
	if w < 1 || h < 1 {
		g.set(from, '□')
		return
	}

	label := n.Title
	if n.MoveID != "" {
		label = moveMark + label
	}
	if h < 3 || w < 3 {
		g.text(from, label, w)
		return
	}

	b := borderFor(n)
	for row := from.Row; row < to.Row; row++ {
		for col := from.Col; col < to.Col; col++ {
			r := ' '
			top, bottom := row == from.Row, row == to.Row-1
			left, right := col == from.Col, col == to.Col-1
			switch {
			case top && left:
				r = b.tl
			case top && right:
				r = b.tr
			case bottom && left:
				r = b.bl
			case bottom && right:
				r = b.br
			case top || bottom:
				r = b.h
			case left || right:
				r = b.v
			}
			g.set(geom.Cell{Col: col, Row: row}, r)
		}
	}

	mid := from.Row + h/2
	width := w - 4
	if width < 1 {
		width = w - 2
	}
	g.text(geom.Cell{Col: from.Col + (w-width)/2, Row: mid}, label, width)
}
