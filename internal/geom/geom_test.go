package geom

import (
	"math"
	"testing"
)

func TestRectContainsHalfOpen(t *testing.T) {
	r := RectAt(Pt(100, 100), Size{W: 200, H: 60})

	tests := []struct {
		p    Point
		want bool
	}{
		{Pt(100, 100), true},
		{Pt(299.9, 159.9), true},
		{Pt(300, 120), false},
		{Pt(150, 160), false},
		{Pt(99.9, 120), false},
	}
	for _, tt := range tests {
		if got := r.Contains(tt.p); got != tt.want {
			t.Errorf("Contains(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestCenterline(t *testing.T) {
	size := Size{W: 200, H: 60}
	seg := Centerline(RectAt(Pt(100, 100), size), RectAt(Pt(300, 100), size))

	if seg.From != Pt(200, 130) {
		t.Errorf("From = %v, want (200,130)", seg.From)
	}
	if seg.To != Pt(400, 130) {
		t.Errorf("To = %v, want (400,130)", seg.To)
	}
}

func TestSnap(t *testing.T) {
	if got := Snap(Pt(113, 88), 20); got != Pt(120, 80) {
		t.Errorf("Snap(113,88; 20) = %v, want (120,80)", got)
	}
	if got := Snap(Pt(113, 88), 0); got != Pt(113, 88) {
		t.Errorf("Snap with grid 0 = %v, want unchanged", got)
	}
}

func TestPointArithmetic(t *testing.T) {
	p := Pt(3, 4).Add(Pt(1, 1)).Sub(Pt(2, 0)).Scale(2)
	if p != Pt(4, 10) {
		t.Errorf("got %v, want (4,10)", p)
	}
}

func TestPointFinite(t *testing.T) {
	tests := []struct {
		p    Point
		want bool
	}{
		{Pt(0, 0), true},
		{Pt(-1e300, 1e300), true},
		{Pt(math.NaN(), 0), false},
		{Pt(0, math.NaN()), false},
		{Pt(math.Inf(1), 0), false},
		{Pt(0, math.Inf(-1)), false},
	}
	for _, tt := range tests {
		if got := tt.p.Finite(); got != tt.want {
			t.Errorf("%v.Finite() = %v, want %v", tt.p, got, tt.want)
		}
	}
}
