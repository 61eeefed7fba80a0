// Package solver resolves symbolic definitions into concrete coordinates.
//
// A pass walks the dependency graph's topological order and recomputes every
// handle that is marked dirty in the store or has a parent recomputed in the
// same pass. Results are staged and committed only once the whole pass has
// succeeded, so an aborted pass leaves the store untouched.
package solver

import (
	"errors"
	"fmt"
	"time"

	"github.com/chazu/compass/pkg/frame"
	"github.com/chazu/compass/pkg/graph"
	"github.com/chazu/compass/pkg/kernel"
	"github.com/chazu/compass/pkg/logging"
	"github.com/chazu/compass/pkg/metrics"
)

// ErrInvariant reports that the store and dependency graph disagree. It
// indicates a bug in the editing layer, not a user error.
var ErrInvariant = errors.New("solver: invariant violated")

// Result summarises one pass.
type Result struct {
	Skipped  bool // SolverDirty was clear; nothing ran
	Visited  int  // handles recomputed
	Resolved int  // of those, how many have geometry
	Absent   int  // of those, how many are absent
}

// Solver recomputes coordinates. The zero value is not usable; call New.
type Solver struct {
	eps float64
}

// New returns a solver using eps as the degeneracy tolerance. A
// non-positive eps selects kernel.DefaultEpsilon.
func New(eps float64) *Solver {
	if eps <= 0 {
		eps = kernel.DefaultEpsilon
	}
	return &Solver{eps: eps}
}

// Epsilon returns the degeneracy tolerance in use.
func (s *Solver) Epsilon() float64 { return s.eps }

// Solve runs one pass if fc.SolverDirty is set. On success it clears the
// store's dirty marks and fc.SolverDirty. If the invariants do not hold it
// returns an error wrapping ErrInvariant and changes nothing.
func (s *Solver) Solve(fc *frame.Context, deps *graph.Deps, store *graph.Store) (Result, error) {
	if !fc.SolverDirty {
		metrics.SolveSkipped()
		return Result{Skipped: true}, nil
	}
	start := time.Now()

	if err := graph.Verify(store, deps); err != nil {
		metrics.SolveAborted()
		logging.Logger().Error("solve aborted", "frame", fc.Frame, "error", err)
		return Result{}, fmt.Errorf("%w: %v", ErrInvariant, err)
	}

	type staged struct {
		h   graph.Handle
		g   graph.Geometry
		abs bool
	}
	var (
		out     []staged
		touched = make(map[graph.Handle]int) // handle -> index in out
		res     Result
	)
	lookup := func(h graph.Handle) (graph.Geometry, bool) {
		if i, ok := touched[h]; ok {
			return out[i].g, !out[i].abs
		}
		return store.Geometry(h)
	}

	for _, h := range deps.TopologicalOrder() {
		if !s.needsPass(h, store, deps, touched) {
			continue
		}
		def, _ := store.Definition(h)
		g, ok, err := s.resolve(def, lookup)
		if err != nil {
			metrics.SolveAborted()
			return Result{}, fmt.Errorf("%w: %s: %v", ErrInvariant, h, err)
		}
		touched[h] = len(out)
		out = append(out, staged{h: h, g: g, abs: !ok})
		res.Visited++
		if ok {
			res.Resolved++
		} else {
			res.Absent++
		}
	}

	for _, st := range out {
		if st.abs {
			store.ClearGeometry(st.h)
		} else {
			store.SetGeometry(st.h, st.g)
		}
	}
	store.ClearDirty()
	fc.SolverDirty = false

	elapsed := time.Since(start)
	metrics.ObserveSolve(elapsed, res.Resolved, res.Absent)
	logging.Logger().Debug("solved",
		"frame", fc.Frame,
		"visited", res.Visited,
		"resolved", res.Resolved,
		"absent", res.Absent,
		"elapsed", elapsed)
	return res, nil
}

// Current returns the geometry h would have after the next pass, resolving
// it and its ancestors from their definitions. Nothing is written to the
// store. When no handle is dirty the cached geometry is returned as is.
func (s *Solver) Current(h graph.Handle, store *graph.Store) (graph.Geometry, bool, error) {
	if store.DirtyCount() == 0 {
		if !store.Has(h) {
			return graph.Geometry{}, false, fmt.Errorf("solver: %s: %w", h, graph.ErrUnknownHandle)
		}
		g, ok := store.Geometry(h)
		return g, ok, nil
	}

	type memo struct {
		g  graph.Geometry
		ok bool
	}
	seen := make(map[graph.Handle]memo)
	var firstErr error

	var eval func(h graph.Handle) (graph.Geometry, bool)
	eval = func(h graph.Handle) (graph.Geometry, bool) {
		if m, ok := seen[h]; ok {
			return m.g, m.ok
		}
		def, ok := store.Definition(h)
		if !ok {
			if firstErr == nil {
				firstErr = fmt.Errorf("solver: %s: %w", h, graph.ErrUnknownHandle)
			}
			return graph.Geometry{}, false
		}
		g, ok, err := s.resolve(def, eval)
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%w: %s: %v", ErrInvariant, h, err)
		}
		seen[h] = memo{g: g, ok: ok}
		return g, ok
	}

	g, ok := eval(h)
	if firstErr != nil {
		return graph.Geometry{}, false, firstErr
	}
	return g, ok, nil
}

func (s *Solver) needsPass(h graph.Handle, store *graph.Store, deps *graph.Deps, touched map[graph.Handle]int) bool {
	if store.IsDirty(h) {
		return true
	}
	for _, p := range deps.Parents(h) {
		if _, ok := touched[p]; ok {
			return true
		}
	}
	return false
}

// resolve computes the geometry of def. ok is false for absent geometry,
// which is not an error.
func (s *Solver) resolve(def graph.Definition, lookup func(graph.Handle) (graph.Geometry, bool)) (graph.Geometry, bool, error) {
	line := func(h graph.Handle) (kernel.Line, bool) {
		g, ok := lookup(h)
		if !ok || g.Kind != graph.KindLine {
			return kernel.Line{}, false
		}
		return g.Line, true
	}
	point := func(h graph.Handle) (graph.Geometry, bool) {
		g, ok := lookup(h)
		if !ok || g.Kind != graph.KindPoint {
			return graph.Geometry{}, false
		}
		return g, true
	}

	switch d := def.(type) {
	case graph.FreePoint:
		return graph.PointGeometry(d.At), true, nil

	case graph.OnLine:
		l, ok := line(d.Line)
		if !ok || l.Degenerate(s.eps) {
			return graph.Geometry{}, false, nil
		}
		return graph.PointGeometry(l.At(d.T)), true, nil

	case graph.Intersection:
		a, okA := line(d.A)
		b, okB := line(d.B)
		if !okA || !okB {
			return graph.Geometry{}, false, nil
		}
		p, ok := kernel.Intersect(a, b, s.eps)
		if !ok {
			return graph.Geometry{}, false, nil
		}
		return graph.PointGeometry(p), true, nil

	case graph.LineThrough:
		p, okP := point(d.From)
		q, okQ := point(d.Through)
		if !okP || !okQ {
			return graph.Geometry{}, false, nil
		}
		l := kernel.Through(p.Point, q.Point)
		if l.Degenerate(s.eps) {
			return graph.Geometry{}, false, nil
		}
		return graph.LineGeometry(l), true, nil

	case graph.FreeLine:
		l := kernel.Line{Origin: d.Origin, Direction: d.Direction}
		if l.Degenerate(s.eps) {
			return graph.Geometry{}, false, nil
		}
		return graph.LineGeometry(l), true, nil

	default:
		return graph.Geometry{}, false, fmt.Errorf("unsupported definition %T", def)
	}
}
