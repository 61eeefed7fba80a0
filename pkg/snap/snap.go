// Package snap answers "what is under the cursor" queries against the
// spatial hash: snapping a new point onto existing geometry and hit-testing
// for selection. Queries are pure; nothing is mutated.
package snap

import (
	"fmt"
	"math"

	"github.com/chazu/compass/pkg/graph"
	"github.com/chazu/compass/pkg/kernel"
	"github.com/chazu/compass/pkg/spatial"
	"github.com/chazu/compass/pkg/viewport"
	v2 "github.com/deadsy/sdfx/vec/v2"
)

// Pixel thresholds in actual space.
const (
	DefaultPointThreshold  = 10.0
	DefaultLineThreshold   = 6.0
	DefaultSelectThreshold = 5.0
)

// Thresholds are the snap distances in pixels. Point should exceed Line:
// lines need the tighter aim.
type Thresholds struct {
	Point float64 `json:"point" yaml:"point"`
	Line  float64 `json:"line" yaml:"line"`
}

// DefaultThresholds returns the stock snap distances.
func DefaultThresholds() Thresholds {
	return Thresholds{Point: DefaultPointThreshold, Line: DefaultLineThreshold}
}

// Index is the read side of the spatial hash.
type Index interface {
	NeighborsOf(p v2.Vec) []graph.Handle
}

var _ Index = (*spatial.Cache)(nil)

// Kind classifies a snap target.
type Kind int

const (
	KindNone Kind = iota
	KindPoint
	KindLine
	KindIntersection
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindPoint:
		return "point"
	case KindLine:
		return "line"
	case KindIntersection:
		return "intersection"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// MarshalText renders the kind by name.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Target is the result of a snap query.
type Target struct {
	Kind Kind `json:"kind"`

	// Handle is the snapped point or line; zero for intersections and none.
	Handle graph.Handle `json:"handle,omitempty"`
	// Lines holds the two lines of an intersection, lower handle first.
	Lines [2]graph.Handle `json:"lines,omitempty"`

	// Position is the snapped location in virtual space. For KindNone it is
	// the cursor itself.
	Position v2.Vec `json:"position"`
	// T is the signed arclength of Position along the snapped line.
	T float64 `json:"t,omitempty"`
	// Distance from the cursor in pixels.
	Distance float64 `json:"distance"`
}

// Definition returns the definition a new point placed at the target would
// get. Snapping onto an existing point yields nil: there is nothing to create.
func (t Target) Definition() graph.Definition {
	switch t.Kind {
	case KindLine:
		return graph.OnLine{Line: t.Handle, T: t.T}
	case KindIntersection:
		return graph.Intersection{A: t.Lines[0], B: t.Lines[1]}
	case KindNone:
		return graph.FreePoint{At: t.Position}
	default:
		return nil
	}
}

type lineHit struct {
	h    graph.Handle
	line kernel.Line // virtual
	at   v2.Vec      // closest point on the visible segment, actual
	dist float64
}

// Snap finds the target nearest to cursor (actual space). A point within
// th.Point wins; otherwise a line within th.Line; otherwise the intersection
// of two nearby lines within th.Point. Candidates are visited in ascending
// handle order and only a strictly smaller distance replaces the current
// best, so exact ties go to the lowest handle.
func Snap(cursor v2.Vec, idx Index, store *graph.Store, t viewport.Transform, th Thresholds) Target {
	none := Target{Kind: KindNone, Position: t.ToVirtual(cursor)}
	bounds := t.ActualBounds()

	var (
		best  *Target
		lines []lineHit
	)
	for _, h := range idx.NeighborsOf(cursor) {
		g, ok := store.Geometry(h)
		if !ok {
			continue
		}
		switch g.Kind {
		case graph.KindPoint:
			d := kernel.Distance(t.ToActual(g.Point), cursor)
			if d <= th.Point && (best == nil || d < best.Distance) {
				best = &Target{Kind: KindPoint, Handle: h, Position: g.Point, Distance: d}
			}
		case graph.KindLine:
			from, to, ok := kernel.Clip(spatial.ActualLine(t, g.Line), bounds, kernel.DefaultEpsilon)
			if !ok {
				continue
			}
			at := kernel.ClosestOnSegment(cursor, from, to)
			d := kernel.Distance(at, cursor)
			if d <= math.Max(th.Point, th.Line) {
				lines = append(lines, lineHit{h: h, line: g.Line, at: at, dist: d})
			}
		}
	}
	if best != nil {
		return *best
	}

	for _, l := range lines {
		if l.dist <= th.Line && (best == nil || l.dist < best.Distance) {
			pos := t.ToVirtual(l.at)
			best = &Target{
				Kind:     KindLine,
				Handle:   l.h,
				Position: pos,
				T:        l.line.Param(pos),
				Distance: l.dist,
			}
		}
	}
	if best != nil {
		return *best
	}

	for i := 0; i < len(lines); i++ {
		for j := i + 1; j < len(lines); j++ {
			p, ok := kernel.Intersect(lines[i].line, lines[j].line, kernel.DefaultEpsilon)
			if !ok {
				continue
			}
			d := kernel.Distance(t.ToActual(p), cursor)
			if d <= th.Point && (best == nil || d < best.Distance) {
				best = &Target{
					Kind:     KindIntersection,
					Lines:    [2]graph.Handle{lines[i].h, lines[j].h},
					Position: p,
					Distance: d,
				}
			}
		}
	}
	if best != nil {
		return *best
	}
	return none
}

// HitTest returns the object under cursor for selection: the closest point
// strictly within threshold, else the closest line strictly within it. Line
// distance is measured to the infinite line.
func HitTest(cursor v2.Vec, idx Index, store *graph.Store, t viewport.Transform, threshold float64) (graph.Handle, bool) {
	var (
		point, line         graph.Handle
		pointDist, lineDist = math.Inf(1), math.Inf(1)
	)
	for _, h := range idx.NeighborsOf(cursor) {
		g, ok := store.Geometry(h)
		if !ok {
			continue
		}
		switch g.Kind {
		case graph.KindPoint:
			d := kernel.Distance(t.ToActual(g.Point), cursor)
			if d < threshold && d < pointDist {
				point, pointDist = h, d
			}
		case graph.KindLine:
			al := spatial.ActualLine(t, g.Line)
			if al.Degenerate(kernel.DefaultEpsilon) {
				continue
			}
			d := kernel.Distance(kernel.Project(cursor, al), cursor)
			if d < threshold && d < lineDist {
				line, lineDist = h, d
			}
		}
	}
	if !point.IsZero() {
		return point, true
	}
	if !line.IsZero() {
		return line, true
	}
	return graph.NoHandle, false
}
