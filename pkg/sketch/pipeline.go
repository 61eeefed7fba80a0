package sketch

import (
	"fmt"

	"github.com/chazu/compass/pkg/graph"
	"github.com/chazu/compass/pkg/logging"
	"github.com/chazu/compass/pkg/metrics"
	"github.com/chazu/compass/pkg/snap"
	"github.com/chazu/compass/pkg/solver"
	v2 "github.com/deadsy/sdfx/vec/v2"
)

// Report describes what one Step did.
type Report struct {
	Frame   uint64        `json:"frame"`
	Solve   solver.Result `json:"solve"`
	Rebuilt bool          `json:"rebuilt"`
	Hover   *snap.Target  `json:"hover,omitempty"`
}

// Step runs one frame of the pipeline in its fixed order:
//
//  1. solve, if a definition changed
//  2. rebuild the spatial hash, if coordinates or the viewport changed
//  3. re-run the hover snap, if the cursor moved
//
// and then starts a fresh frame context. If the solver finds the store and
// dependency graph inconsistent the frame is abandoned: the error wraps
// solver.ErrInvariant and the dirty flags stay set.
func (s *Sketch) Step() (Report, error) {
	fc := s.fc
	rep := Report{Frame: fc.Frame}

	res, err := s.solver.Solve(fc, s.deps, s.store)
	if err != nil {
		return rep, fmt.Errorf("sketch: frame %d: %w", fc.Frame, err)
	}
	rep.Solve = res

	if !res.Skipped || fc.ViewportDirty {
		s.cache.Rebuild(s.vp, s.store)
		rep.Rebuilt = true
		// Coordinates under the cursor may have changed.
		fc.InputDirty = fc.InputDirty || s.hasCursor
	}

	if fc.InputDirty && s.hasCursor {
		s.hover = s.Snap(s.cursor)
		s.hasHover = true
		h := s.hover
		rep.Hover = &h
	}

	s.fc = fc.Next()
	logging.Logger().Debug("frame",
		"frame", rep.Frame,
		"visited", res.Visited,
		"rebuilt", rep.Rebuilt,
		"hover", rep.Hover != nil)
	return rep, nil
}

// Hover returns the last hover snap target computed by Step.
func (s *Sketch) Hover() (snap.Target, bool) { return s.hover, s.hasHover }

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// Object is one entry of the read-only view handed to renderers.
type Object struct {
	Handle     graph.Handle     `json:"handle"`
	Kind       graph.Kind       `json:"kind"`
	Definition string           `json:"definition"`
	Geometry   *graph.Geometry  `json:"geometry,omitempty"` // nil when absent
	Style      graph.Style      `json:"style"`
	Def        graph.Definition `json:"-"`
}

// Objects returns every object in ascending handle order with its resolved
// geometry, or nil geometry when absent.
func (s *Sketch) Objects() []Object {
	hs := s.store.Handles()
	out := make([]Object, 0, len(hs))
	for _, h := range hs {
		def, _ := s.store.Definition(h)
		st, _ := s.store.Style(h)
		o := Object{
			Handle:     h,
			Kind:       def.Kind(),
			Definition: def.Describe(),
			Style:      st,
			Def:        def,
		}
		if g, ok := s.store.Geometry(h); ok {
			o.Geometry = &g
		}
		out = append(out, o)
	}
	return out
}

// Len returns the number of objects.
func (s *Sketch) Len() int { return s.store.Len() }

// Has reports whether h exists.
func (s *Sketch) Has(h graph.Handle) bool { return s.store.Has(h) }

// Definition returns the symbolic definition of h.
func (s *Sketch) Definition(h graph.Handle) (graph.Definition, bool) {
	return s.store.Definition(h)
}

// Geometry returns the resolved geometry of h as of the last Step.
func (s *Sketch) Geometry(h graph.Handle) (graph.Geometry, bool) {
	return s.store.Geometry(h)
}

// Point returns the resolved position of point h.
func (s *Sketch) Point(h graph.Handle) (v2.Vec, bool) {
	g, ok := s.store.Geometry(h)
	if !ok || g.Kind != graph.KindPoint {
		return v2.Vec{}, false
	}
	return g.Point, true
}

// Store exposes the geometry store for read-only consumers such as the draw
// list. Mutating it directly bypasses the dependency graph.
func (s *Sketch) Store() *graph.Store { return s.store }

// Order returns the current topological order.
func (s *Sketch) Order() []graph.Handle { return s.deps.TopologicalOrder() }

// Dependents returns the objects that depend on h, directly or not.
func (s *Sketch) Dependents(h graph.Handle) []graph.Handle { return s.deps.Descendants(h) }

// Validate cross-checks the store and the dependency graph.
func (s *Sketch) Validate() []graph.ValidationError { return graph.Validate(s.store, s.deps) }

// Snap runs a snap query at cursor (actual space) against the state of the
// last Step.
func (s *Sketch) Snap(cursor v2.Vec) snap.Target {
	t := snap.Snap(cursor, s.cache, s.store, s.vp, s.opts.Thresholds)
	metrics.SnapQuery(t.Kind.String())
	return t
}

// HitTest returns the object a selection click at cursor would pick.
func (s *Sketch) HitTest(cursor v2.Vec) (graph.Handle, bool) {
	return snap.HitTest(cursor, s.cache, s.store, s.vp, s.opts.SelectThreshold)
}

// Neighbors returns the spatial hash candidates around cursor.
func (s *Sketch) Neighbors(cursor v2.Vec) []graph.Handle {
	return s.cache.NeighborsOf(cursor)
}
