package kernel

import (
	"math"
	"testing"

	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
)

const eps = DefaultEpsilon

func near(a, b v2.Vec) bool {
	return math.Abs(a.X-b.X) < 1e-9 && math.Abs(a.Y-b.Y) < 1e-9
}

var xAxis = Line{Origin: v2.Vec{}, Direction: v2.Vec{X: 1}}

func TestLineParamAndAt(t *testing.T) {
	l := Line{Origin: v2.Vec{X: 1}, Direction: v2.Vec{X: 2}}
	if got := l.Param(v2.Vec{X: 4, Y: 5}); math.Abs(got-3) > 1e-12 {
		t.Errorf("Param = %g, want 3", got)
	}
	if got := l.At(3); !near(got, v2.Vec{X: 4}) {
		t.Errorf("At(3) = %v, want (4,0)", got)
	}
	if got := l.At(-1); !near(got, v2.Vec{}) {
		t.Errorf("At(-1) = %v, want origin", got)
	}
}

func TestDegenerate(t *testing.T) {
	if !(Line{Origin: v2.Vec{X: 3}}).Degenerate(eps) {
		t.Error("zero direction should be degenerate")
	}
	if Through(v2.Vec{}, v2.Vec{X: 1e-3}).Degenerate(eps) {
		t.Error("short direction is still a line")
	}
}

func TestProject(t *testing.T) {
	if got := Project(v2.Vec{X: 3, Y: 4}, xAxis); !near(got, v2.Vec{X: 3}) {
		t.Errorf("Project = %v, want (3,0)", got)
	}
	diag := Through(v2.Vec{}, v2.Vec{X: 1, Y: 1})
	if got := Project(v2.Vec{X: 2}, diag); !near(got, v2.Vec{X: 1, Y: 1}) {
		t.Errorf("Project onto diagonal = %v, want (1,1)", got)
	}
}

func TestIntersect(t *testing.T) {
	tests := []struct {
		name string
		a, b Line
		want v2.Vec
		ok   bool
	}{
		{
			name: "crossing",
			a:    xAxis,
			b:    Line{Origin: v2.Vec{X: 2, Y: -1}, Direction: v2.Vec{Y: 3}},
			want: v2.Vec{X: 2},
			ok:   true,
		},
		{
			name: "diagonals",
			a:    Through(v2.Vec{}, v2.Vec{X: 4, Y: 4}),
			b:    Through(v2.Vec{Y: 4}, v2.Vec{X: 4}),
			want: v2.Vec{X: 2, Y: 2},
			ok:   true,
		},
		{
			name: "parallel",
			a:    xAxis,
			b:    Line{Origin: v2.Vec{Y: 1}, Direction: v2.Vec{X: -5}},
		},
		{
			name: "coincident",
			a:    xAxis,
			b:    Line{Origin: v2.Vec{X: 7}, Direction: v2.Vec{X: 2}},
		},
		{
			name: "degenerate",
			a:    xAxis,
			b:    Line{Origin: v2.Vec{Y: 1}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Intersect(tt.a, tt.b, eps)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && !near(got, tt.want) {
				t.Errorf("Intersect = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClip(t *testing.T) {
	box := sdf.Box2{Min: v2.Vec{X: -10, Y: -5}, Max: v2.Vec{X: 10, Y: 5}}

	from, to, ok := Clip(xAxis, box, eps)
	if !ok {
		t.Fatal("x axis should cross the box")
	}
	if !near(from, v2.Vec{X: -10}) || !near(to, v2.Vec{X: 10}) {
		t.Errorf("Clip = %v..%v, want (-10,0)..(10,0)", from, to)
	}

	if _, _, ok := Clip(Line{Origin: v2.Vec{Y: 20}, Direction: v2.Vec{X: 1}}, box, eps); ok {
		t.Error("line above the box should miss")
	}
	if _, _, ok := Clip(Line{}, box, eps); ok {
		t.Error("degenerate line should not clip")
	}

	corner := sdf.Box2{Min: v2.Vec{}, Max: v2.Vec{X: 4, Y: 2}}
	from, to, ok = Clip(Through(v2.Vec{}, v2.Vec{X: 1, Y: 1}), corner, eps)
	if !ok || !near(from, v2.Vec{}) || !near(to, v2.Vec{X: 2, Y: 2}) {
		t.Errorf("diagonal Clip = %v..%v ok=%v, want (0,0)..(2,2)", from, to, ok)
	}
}

func TestClosestOnSegment(t *testing.T) {
	a, b := v2.Vec{}, v2.Vec{X: 10}
	tests := []struct {
		p, want v2.Vec
	}{
		{v2.Vec{X: 4, Y: 3}, v2.Vec{X: 4}},
		{v2.Vec{X: -5, Y: 1}, a},
		{v2.Vec{X: 15, Y: -1}, b},
	}
	for _, tt := range tests {
		if got := ClosestOnSegment(tt.p, a, b); !near(got, tt.want) {
			t.Errorf("ClosestOnSegment(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
	if got := ClosestOnSegment(v2.Vec{X: 1}, a, a); !near(got, a) {
		t.Errorf("zero-length segment = %v, want %v", got, a)
	}
}

func TestContainsIncludesEdges(t *testing.T) {
	box := sdf.Box2{Min: v2.Vec{}, Max: v2.Vec{X: 4, Y: 2}}
	for _, p := range []v2.Vec{{}, {X: 4, Y: 2}, {X: 2, Y: 1}} {
		if !Contains(box, p) {
			t.Errorf("Contains(%v) = false", p)
		}
	}
	if Contains(box, v2.Vec{X: 4.001, Y: 1}) {
		t.Error("point right of the box should be outside")
	}
}

func TestDistance(t *testing.T) {
	if got := Distance(v2.Vec{X: 1, Y: 1}, v2.Vec{X: 4, Y: 5}); got != 5 {
		t.Errorf("Distance = %g, want 5", got)
	}
}
