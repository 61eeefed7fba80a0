// Package kernel provides the planar line primitives the construction engine
// is built on: projection, line-line intersection and clipping to a box.
// Vectors and boxes are the sdfx types (vec/v2, sdf.Box2) so the rest of the
// module can hand them straight to sdfx transforms.
package kernel

import (
	"math"

	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
)

// DefaultEpsilon is the tolerance below which a direction is treated as
// zero-length or two unit directions as parallel.
const DefaultEpsilon = 1e-9

// Line is an infinite line given by a point on it and a direction vector.
// The direction need not be normalised.
type Line struct {
	Origin    v2.Vec `json:"origin"`
	Direction v2.Vec `json:"direction"`
}

// Degenerate reports whether the direction is too short to define a line.
func (l Line) Degenerate(eps float64) bool {
	return l.Direction.Length() < eps
}

// Unit returns the normalised direction. The caller must check Degenerate first.
func (l Line) Unit() v2.Vec {
	return l.Direction.Normalize()
}

// At returns the point at signed arclength t from the origin.
func (l Line) At(t float64) v2.Vec {
	return l.Origin.Add(l.Unit().MulScalar(t))
}

// Param returns the signed arclength of the projection of p onto l.
func (l Line) Param(p v2.Vec) float64 {
	return p.Sub(l.Origin).Dot(l.Unit())
}

// Through returns the line from a through b.
func Through(a, b v2.Vec) Line {
	return Line{Origin: a, Direction: b.Sub(a)}
}

// Project returns the orthogonal projection of p onto l.
func Project(p v2.Vec, l Line) v2.Vec {
	return l.At(l.Param(p))
}

// Intersect returns the unique intersection of a and b. ok is false when
// either line is degenerate or the lines are parallel or coincident.
func Intersect(a, b Line, eps float64) (v2.Vec, bool) {
	if a.Degenerate(eps) || b.Degenerate(eps) {
		return v2.Vec{}, false
	}
	da, db := a.Unit(), b.Unit()
	denom := da.Cross(db)
	if math.Abs(denom) < eps {
		return v2.Vec{}, false
	}
	s := b.Origin.Sub(a.Origin).Cross(db) / denom
	return a.Origin.Add(da.MulScalar(s)), true
}

// Clip intersects l with box and returns the visible segment. ok is false
// when the line misses the box or is degenerate.
func Clip(l Line, box sdf.Box2, eps float64) (from, to v2.Vec, ok bool) {
	if l.Degenerate(eps) {
		return v2.Vec{}, v2.Vec{}, false
	}
	// Liang-Barsky over an unbounded parameter range.
	t0, t1 := math.Inf(-1), math.Inf(1)
	clip := func(p, q float64) bool {
		if math.Abs(p) < eps {
			return q >= 0
		}
		r := q / p
		if p < 0 {
			if r > t1 {
				return false
			}
			if r > t0 {
				t0 = r
			}
		} else {
			if r < t0 {
				return false
			}
			if r < t1 {
				t1 = r
			}
		}
		return true
	}
	d := l.Direction
	o := l.Origin
	if !clip(-d.X, o.X-box.Min.X) || !clip(d.X, box.Max.X-o.X) ||
		!clip(-d.Y, o.Y-box.Min.Y) || !clip(d.Y, box.Max.Y-o.Y) {
		return v2.Vec{}, v2.Vec{}, false
	}
	if math.IsInf(t0, 0) || math.IsInf(t1, 0) {
		// Only reachable with an unbounded box.
		return v2.Vec{}, v2.Vec{}, false
	}
	return o.Add(d.MulScalar(t0)), o.Add(d.MulScalar(t1)), true
}

// ClosestOnSegment returns the point of segment ab closest to p.
func ClosestOnSegment(p, a, b v2.Vec) v2.Vec {
	ab := b.Sub(a)
	l2 := ab.Dot(ab)
	if l2 == 0 {
		return a
	}
	t := p.Sub(a).Dot(ab) / l2
	t = math.Max(0, math.Min(1, t))
	return a.Add(ab.MulScalar(t))
}

// Distance returns |a - b|.
func Distance(a, b v2.Vec) float64 {
	return a.Sub(b).Length()
}

// Contains reports whether p lies inside box, edges included.
func Contains(box sdf.Box2, p v2.Vec) bool {
	return p.X >= box.Min.X && p.X <= box.Max.X && p.Y >= box.Min.Y && p.Y <= box.Max.Y
}
