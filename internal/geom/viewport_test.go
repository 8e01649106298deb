package geom

import "testing"

var testViewport = Viewport{Cell: Size{W: 10, H: 20}, Cols: 80, Rows: 20}

func TestViewportCanvas(t *testing.T) {
	if got := testViewport.Canvas(); got != (Size{W: 800, H: 400}) {
		t.Errorf("Canvas() = %v, want 800x400", got)
	}
}

func TestViewportRoundTrip(t *testing.T) {
	for _, c := range []Cell{{0, 0}, {5, 3}, {79, 19}} {
		if got := testViewport.ToCell(testViewport.ToCanvas(c)); got != c {
			t.Errorf("ToCell(ToCanvas(%v)) = %v", c, got)
		}
	}
}

func TestViewportToCell(t *testing.T) {
	if got := testViewport.ToCell(Pt(105, 59)); got != (Cell{Col: 10, Row: 2}) {
		t.Errorf("ToCell(105,59) = %v, want {10 2}", got)
	}
	if got := testViewport.ToCell(Pt(-1, -1)); got != (Cell{Col: -1, Row: -1}) {
		t.Errorf("ToCell(-1,-1) = %v, want {-1 -1}", got)
	}
	if testViewport.InBounds(Cell{Col: -1, Row: 0}) {
		t.Error("InBounds accepted a negative column")
	}
}

// Every cell in a rect's span must map back into the rect, and the cells
// just outside must not.
func TestViewportSpanHitsRect(t *testing.T) {
	rects := []Rect{
		RectAt(Pt(100, 100), Size{W: 200, H: 60}),
		RectAt(Pt(108, 93), Size{W: 200, H: 60}),
		RectAt(Pt(0, 0), Size{W: 7, H: 7}),
	}
	for _, r := range rects {
		from, to := testViewport.Span(r)
		for row := from.Row - 1; row <= to.Row; row++ {
			for col := from.Col - 1; col <= to.Col; col++ {
				c := Cell{Col: col, Row: row}
				inSpan := col >= from.Col && col < to.Col && row >= from.Row && row < to.Row
				if hit := r.Contains(testViewport.ToCanvas(c)); hit != inSpan {
					t.Errorf("rect %v cell %v: hit=%v inSpan=%v", r, c, hit, inSpan)
				}
			}
		}
	}
}

func TestLine(t *testing.T) {
	tests := []struct {
		name string
		a, b Cell
		want int
	}{
		{"horizontal", Cell{0, 0}, Cell{4, 0}, 5},
		{"vertical", Cell{2, 5}, Cell{2, 1}, 5},
		{"diagonal", Cell{0, 0}, Cell{3, 3}, 4},
		{"single", Cell{1, 1}, Cell{1, 1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cells := Line(tt.a, tt.b)
			if len(cells) != tt.want {
				t.Fatalf("len = %d, want %d (%v)", len(cells), tt.want, cells)
			}
			if cells[0] != tt.a || cells[len(cells)-1] != tt.b {
				t.Errorf("endpoints = %v..%v, want %v..%v", cells[0], cells[len(cells)-1], tt.a, tt.b)
			}
		})
	}
}
