// Package sketch is the editing facade over the construction engine. A
// Sketch owns the geometry store, the dependency graph, the solver, the
// spatial hash and the viewport, and runs them as a fixed per-frame pipeline:
//
//	structural edits -> dependency graph -> solve -> spatial rebuild -> queries
//
// Edits are applied synchronously and rejected edits leave everything
// unchanged. A Sketch is not safe for concurrent use; its event channel is.
package sketch

import (
	"errors"
	"fmt"

	"github.com/chazu/compass/pkg/events"
	"github.com/chazu/compass/pkg/frame"
	"github.com/chazu/compass/pkg/graph"
	"github.com/chazu/compass/pkg/kernel"
	"github.com/chazu/compass/pkg/logging"
	"github.com/chazu/compass/pkg/metrics"
	"github.com/chazu/compass/pkg/snap"
	"github.com/chazu/compass/pkg/solver"
	"github.com/chazu/compass/pkg/spatial"
	"github.com/chazu/compass/pkg/viewport"
	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	"go.jetify.com/typeid/v2"
)

// IDPrefix is the typeid prefix of sketch IDs.
const IDPrefix = "sketch"

// ErrNotMovable is returned by MovePoint for objects whose position is fully
// determined by their parents.
var ErrNotMovable = errors.New("sketch: object cannot be moved directly")

// Options configures a Sketch.
type Options struct {
	CellSize        float64
	Epsilon         float64
	Thresholds      snap.Thresholds
	SelectThreshold float64

	// Viewport size in pixels and virtual units per pixel.
	Width, Height, Scale float64
}

// DefaultOptions returns the stock configuration.
func DefaultOptions() Options {
	return Options{
		CellSize:        spatial.DefaultCellSize,
		Epsilon:         kernel.DefaultEpsilon,
		Thresholds:      snap.DefaultThresholds(),
		SelectThreshold: snap.DefaultSelectThreshold,
		Width:           800,
		Height:          600,
		Scale:           1,
	}
}

// Sketch is one construction with its caches.
type Sketch struct {
	id   string
	opts Options

	store  *graph.Store
	deps   *graph.Deps
	solver *solver.Solver
	cache  *spatial.Cache
	vp     *viewport.Viewport

	fc *frame.Context

	cursor    v2.Vec
	hasCursor bool
	hover     snap.Target
	hasHover  bool

	events *events.Channel[Event]
}

// New returns an empty sketch.
func New(opts Options) (*Sketch, error) {
	vp, err := viewport.New(opts.Width, opts.Height, opts.Scale)
	if err != nil {
		return nil, fmt.Errorf("sketch: %w", err)
	}
	return &Sketch{
		id:     typeid.MustGenerate(IDPrefix).String(),
		opts:   opts,
		store:  graph.NewStore(),
		deps:   graph.NewDeps(),
		solver: solver.New(opts.Epsilon),
		cache:  spatial.New(opts.CellSize),
		vp:     vp,
		fc:     frame.New(1),
		events: events.NewChannel[Event](),
	}, nil
}

// ID returns the sketch's typeid.
func (s *Sketch) ID() string { return s.id }

// Options returns the configuration the sketch was built with.
func (s *Sketch) Options() Options { return s.opts }

// ---------------------------------------------------------------------------
// Structural edits
// ---------------------------------------------------------------------------

// CreateFreePoint adds an independent point at virtual coordinate at.
func (s *Sketch) CreateFreePoint(at v2.Vec) (graph.Handle, error) {
	return s.Create(graph.FreePoint{At: at}, graph.Style{})
}

// CreatePointOnLine adds a point at signed arclength t along line.
func (s *Sketch) CreatePointOnLine(line graph.Handle, t float64) (graph.Handle, error) {
	return s.Create(graph.OnLine{Line: line, T: t}, graph.Style{})
}

// CreateIntersectionPoint adds the intersection point of lines a and b.
func (s *Sketch) CreateIntersectionPoint(a, b graph.Handle) (graph.Handle, error) {
	return s.Create(graph.Intersection{A: a, B: b}, graph.Style{})
}

// CreateLine adds the line from point p through point q.
func (s *Sketch) CreateLine(p, q graph.Handle) (graph.Handle, error) {
	return s.Create(graph.LineThrough{From: p, Through: q}, graph.Style{})
}

// CreateFreeLine adds a line given directly by origin and direction.
func (s *Sketch) CreateFreeLine(origin, direction v2.Vec) (graph.Handle, error) {
	return s.Create(graph.FreeLine{Origin: origin, Direction: direction}, graph.Style{})
}

// Create adds an object with the given definition. A zero style is replaced
// by the default style for the definition's kind; a label is kept.
func (s *Sketch) Create(def graph.Definition, style graph.Style) (graph.Handle, error) {
	if err := s.store.Check(def); err != nil {
		return graph.NoHandle, s.reject("create", err)
	}
	if style.Color == "" {
		label := style.Label
		style = graph.DefaultStyle(def.Kind())
		style.Label = label
	}

	h := s.store.Allocate()
	if err := s.deps.OnInsert(h, def.Parents()); err != nil {
		return graph.NoHandle, s.reject("create", err)
	}
	if err := s.store.Insert(h, def, style); err != nil {
		if _, rerr := s.deps.OnRemove(h); rerr != nil {
			return graph.NoHandle, errors.Join(err, rerr)
		}
		return graph.NoHandle, s.reject("create", err)
	}

	s.fc.SolverDirty = true
	s.publish(EventCreated, h)
	logging.Logger().Debug("created", "handle", h, "definition", def.Describe())
	return h, nil
}

// Delete removes h and every object that depends on it. It returns the
// dependents that were removed along with h, in topological order.
func (s *Sketch) Delete(h graph.Handle) ([]graph.Handle, error) {
	removed, err := s.deps.OnRemove(h)
	if err != nil {
		return nil, s.reject("delete", err)
	}
	s.store.Remove(h)
	for _, d := range removed {
		s.store.Remove(d)
	}
	if s.hasHover && (s.hover.Handle == h || s.hover.Lines[0] == h || s.hover.Lines[1] == h) {
		s.hasHover = false
	}

	s.fc.SolverDirty = true
	s.publish(EventRemoved, h)
	for _, d := range removed {
		s.publish(EventRemoved, d)
	}
	logging.Logger().Debug("deleted", "handle", h, "cascade", len(removed))
	return removed, nil
}

// Redefine replaces the definition of h with one of the same kind, for
// example attaching a free point to a line. Edits that would close a cycle
// fail with a *graph.CycleError and change nothing.
func (s *Sketch) Redefine(h graph.Handle, def graph.Definition) error {
	old, ok := s.store.Definition(h)
	if !ok {
		return s.reject("redefine", fmt.Errorf("sketch: redefine %s: %w", h, graph.ErrUnknownHandle))
	}
	if def == nil || old.Kind() != def.Kind() {
		return s.reject("redefine", &graph.DefinitionError{
			Definition: old,
			Message:    fmt.Sprintf("cannot redefine %s with a different kind", h),
		})
	}
	if err := s.store.Check(def); err != nil {
		return s.reject("redefine", err)
	}
	if err := s.deps.OnRedefine(h, def.Parents()); err != nil {
		return s.reject("redefine", err)
	}
	if err := s.store.Redefine(h, def); err != nil {
		return s.reject("redefine", err)
	}
	s.fc.SolverDirty = true
	s.publish(EventRedefined, h)
	return nil
}

// MovePoint drags a point to the virtual coordinate to. A free point takes
// the new coordinate; a point on a line slides to the projection of to onto
// its line. Intersections cannot be moved.
func (s *Sketch) MovePoint(h graph.Handle, to v2.Vec) error {
	def, ok := s.store.Definition(h)
	if !ok {
		return s.reject("move", fmt.Errorf("sketch: move %s: %w", h, graph.ErrUnknownHandle))
	}

	var next graph.Definition
	switch d := def.(type) {
	case graph.FreePoint:
		next = graph.FreePoint{At: to}
	case graph.OnLine:
		// The line may have moved earlier in this frame.
		g, ok, err := s.solver.Current(d.Line, s.store)
		if err != nil {
			return s.reject("move", fmt.Errorf("sketch: move %s: %w", h, err))
		}
		if !ok {
			return s.reject("move", fmt.Errorf("sketch: move %s: line %s is unresolved: %w", h, d.Line, ErrNotMovable))
		}
		next = graph.OnLine{Line: d.Line, T: g.Line.Param(to)}
	default:
		return s.reject("move", fmt.Errorf("sketch: move %s (%s): %w", h, def.Describe(), ErrNotMovable))
	}

	if err := s.store.Redefine(h, next); err != nil {
		return s.reject("move", err)
	}
	s.fc.SolverDirty = true
	s.publish(EventMoved, h)
	return nil
}

// PlacePoint creates a point where a click at cursor (actual space) would put
// it: on the snap target if there is one, else a free point under the cursor.
// Clicking onto an existing point creates nothing and returns that point.
func (s *Sketch) PlacePoint(cursor v2.Vec) (graph.Handle, snap.Target, error) {
	target := s.Snap(cursor)
	if target.Kind == snap.KindPoint {
		return target.Handle, target, nil
	}
	h, err := s.Create(target.Definition(), graph.Style{})
	return h, target, err
}

// reject logs and counts a refused edit.
func (s *Sketch) reject(op string, err error) error {
	reason := "other"
	switch {
	case errors.Is(err, graph.ErrCycle):
		reason = "cycle"
	case errors.Is(err, graph.ErrDanglingReference):
		reason = "dangling_reference"
	case errors.Is(err, graph.ErrInvalidDefinition):
		reason = "invalid_definition"
	case errors.Is(err, graph.ErrUnknownHandle):
		reason = "unknown_handle"
	case errors.Is(err, ErrNotMovable):
		reason = "not_movable"
	}
	metrics.RejectedEdit(reason)
	logging.Logger().Warn("edit rejected", "op", op, "reason", reason, "error", err)
	return err
}

// ---------------------------------------------------------------------------
// Labels and selection
// ---------------------------------------------------------------------------

// SetLabel names h. Labels are unique; an empty label clears it.
func (s *Sketch) SetLabel(h graph.Handle, label string) error {
	st, ok := s.store.Style(h)
	if !ok {
		return fmt.Errorf("sketch: label %s: %w", h, graph.ErrUnknownHandle)
	}
	st.Label = label
	return s.store.SetStyle(h, st)
}

// Lookup returns the object carrying label.
func (s *Sketch) Lookup(label string) (graph.Handle, bool) {
	return s.store.Lookup(label)
}

// Select marks h as selected.
func (s *Sketch) Select(h graph.Handle) error { return s.setSelected(h, true) }

// Deselect clears the selection mark of h.
func (s *Sketch) Deselect(h graph.Handle) error { return s.setSelected(h, false) }

// ToggleSelect flips the selection mark of h.
func (s *Sketch) ToggleSelect(h graph.Handle) error {
	st, ok := s.store.Style(h)
	if !ok {
		return fmt.Errorf("sketch: select %s: %w", h, graph.ErrUnknownHandle)
	}
	return s.setSelected(h, !st.Selected)
}

// ClearSelection deselects everything.
func (s *Sketch) ClearSelection() {
	for _, h := range s.Selected() {
		_ = s.setSelected(h, false)
	}
}

// Selected returns the selected handles in ascending order.
func (s *Sketch) Selected() []graph.Handle {
	var out []graph.Handle
	for _, h := range s.store.Handles() {
		if st, _ := s.store.Style(h); st.Selected {
			out = append(out, h)
		}
	}
	return out
}

// SelectAt performs a selection click at cursor (actual space): the object
// under the cursor toggles, a click on empty space clears the selection.
func (s *Sketch) SelectAt(cursor v2.Vec) (graph.Handle, bool) {
	h, ok := s.HitTest(cursor)
	if !ok {
		s.ClearSelection()
		return graph.NoHandle, false
	}
	_ = s.ToggleSelect(h)
	return h, true
}

// SelectAll selects every object.
func (s *Sketch) SelectAll() {
	for _, h := range s.store.Handles() {
		_ = s.setSelected(h, true)
	}
}

// SelectInRect selects the resolved objects inside rect (actual space):
// points whose position lies in it and lines that cross it.
func (s *Sketch) SelectInRect(rect sdf.Box2) []graph.Handle {
	var picked []graph.Handle
	for _, h := range s.store.Handles() {
		g, ok := s.store.Geometry(h)
		if !ok {
			continue
		}
		switch g.Kind {
		case graph.KindPoint:
			ok = kernel.Contains(rect, s.vp.ToActual(g.Point))
		case graph.KindLine:
			_, _, ok = kernel.Clip(spatial.ActualLine(s.vp, g.Line), rect, s.opts.Epsilon)
		}
		if ok {
			_ = s.setSelected(h, true)
			picked = append(picked, h)
		}
	}
	return picked
}

// DeleteSelected deletes every selected object and its dependents. It
// returns everything removed, in deletion order.
func (s *Sketch) DeleteSelected() ([]graph.Handle, error) {
	var removed []graph.Handle
	for _, h := range s.Selected() {
		if !s.store.Has(h) {
			continue // already taken by an earlier cascade
		}
		deps, err := s.Delete(h)
		if err != nil {
			return removed, err
		}
		removed = append(removed, h)
		removed = append(removed, deps...)
	}
	return removed, nil
}

func (s *Sketch) setSelected(h graph.Handle, on bool) error {
	st, ok := s.store.Style(h)
	if !ok {
		return fmt.Errorf("sketch: select %s: %w", h, graph.ErrUnknownHandle)
	}
	if st.Selected == on {
		return nil
	}
	st.Selected = on
	if err := s.store.SetStyle(h, st); err != nil {
		return err
	}
	s.fc.InputDirty = true
	if on {
		s.publish(EventSelected, h)
	} else {
		s.publish(EventDeselected, h)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Viewport and input
// ---------------------------------------------------------------------------

// Viewport returns the sketch's camera. Change it through Pan, Zoom and
// Resize so the spatial hash is rebuilt.
func (s *Sketch) Viewport() *viewport.Viewport { return s.vp }

// Pan moves the view by a pixel delta.
func (s *Sketch) Pan(delta v2.Vec) {
	s.vp.Pan(delta)
	s.fc.ViewportDirty = true
}

// Zoom scales the view by factor around the pixel anchor.
func (s *Sketch) Zoom(factor float64, anchor v2.Vec) {
	s.vp.Zoom(factor, anchor)
	s.fc.ViewportDirty = true
}

// Resize changes the window size in pixels.
func (s *Sketch) Resize(width, height float64) error {
	if err := s.vp.Resize(width, height); err != nil {
		return err
	}
	s.fc.ViewportDirty = true
	return nil
}

// SetCursor records the cursor position in actual space.
func (s *Sketch) SetCursor(actual v2.Vec) {
	s.cursor = actual
	s.hasCursor = true
	s.fc.InputDirty = true
}

// ClearCursor forgets the cursor, as when it leaves the window.
func (s *Sketch) ClearCursor() {
	s.hasCursor = false
	s.hasHover = false
	s.fc.InputDirty = true
}

// MarkInputDirty asks the next Step to re-run the hover query.
func (s *Sketch) MarkInputDirty() { s.fc.InputDirty = true }

// MarkSolverDirty asks the next Step to recompute every object.
func (s *Sketch) MarkSolverDirty() {
	s.store.MarkAllDirty()
	s.fc.SolverDirty = true
}

// Context returns the current frame's context.
func (s *Sketch) Context() *frame.Context { return s.fc }

func (s *Sketch) publish(kind EventKind, h graph.Handle) {
	s.events.Publish(Event{Kind: kind, Handle: h, Frame: s.fc.Frame})
}

// Events returns the sketch's event channel.
func (s *Sketch) Events() *events.Channel[Event] { return s.events }
