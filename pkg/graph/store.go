package graph

import (
	"fmt"
	"maps"
	"slices"
)

// Store is the Geometry Store: an arena of handles plus parallel tables keyed
// by handle, one per attribute kind. Handles are the only cross references.
//
// A Store is not safe for concurrent use.
type Store struct {
	last Handle

	defs   map[Handle]Definition
	geom   map[Handle]Geometry // absent geometry has no entry
	styles map[Handle]Style
	labels map[string]Handle
	dirty  map[Handle]struct{}
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		defs:   make(map[Handle]Definition),
		geom:   make(map[Handle]Geometry),
		styles: make(map[Handle]Style),
		labels: make(map[string]Handle),
		dirty:  make(map[Handle]struct{}),
	}
}

// Allocate reserves a fresh handle. A handle whose insert is later rejected
// is simply never used.
func (s *Store) Allocate() Handle {
	s.last++
	return s.last
}

// Check validates def against the objects currently in the store: every
// parent must exist and have the kind the definition requires.
func (s *Store) Check(def Definition) error {
	switch d := def.(type) {
	case FreePoint, FreeLine:
		return nil
	case OnLine:
		return s.expectKind(def, d.Line, KindLine)
	case Intersection:
		if d.A == d.B {
			return &DefinitionError{Definition: def, Message: "needs two distinct lines"}
		}
		if err := s.expectKind(def, d.A, KindLine); err != nil {
			return err
		}
		return s.expectKind(def, d.B, KindLine)
	case LineThrough:
		if d.From == d.Through {
			return &DefinitionError{Definition: def, Message: "needs two distinct points"}
		}
		if err := s.expectKind(def, d.From, KindPoint); err != nil {
			return err
		}
		return s.expectKind(def, d.Through, KindPoint)
	case nil:
		return fmt.Errorf("graph: nil definition: %w", ErrInvalidDefinition)
	default:
		return &DefinitionError{Definition: def, Message: fmt.Sprintf("unsupported definition %T", def)}
	}
}

func (s *Store) expectKind(def Definition, h Handle, want Kind) error {
	parent, ok := s.defs[h]
	if !ok {
		return &DanglingReferenceError{Ref: h}
	}
	if parent.Kind() != want {
		return &DefinitionError{
			Definition: def,
			Message:    fmt.Sprintf("%s is a %s, want a %s", h, parent.Kind(), want),
		}
	}
	return nil
}

// Insert stores def under h and marks h dirty. The caller is responsible
// for having checked def and registered its edges.
func (s *Store) Insert(h Handle, def Definition, style Style) error {
	if h.IsZero() || h > s.last {
		return fmt.Errorf("graph: insert %s: %w", h, ErrUnknownHandle)
	}
	if _, ok := s.defs[h]; ok {
		return fmt.Errorf("graph: insert %s: %w", h, ErrDuplicateHandle)
	}
	if style.Label != "" {
		if other, taken := s.labels[style.Label]; taken {
			return fmt.Errorf("graph: label %q already names %s", style.Label, other)
		}
		s.labels[style.Label] = h
	}
	s.defs[h] = def
	s.styles[h] = style
	s.dirty[h] = struct{}{}
	return nil
}

// Has reports whether h is a live object.
func (s *Store) Has(h Handle) bool {
	_, ok := s.defs[h]
	return ok
}

// Len returns the number of live objects.
func (s *Store) Len() int { return len(s.defs) }

// Handles returns every live handle in ascending order.
func (s *Store) Handles() []Handle {
	return sortHandles(slices.Collect(maps.Keys(s.defs)))
}

// Definition returns the symbolic definition of h.
func (s *Store) Definition(h Handle) (Definition, bool) {
	d, ok := s.defs[h]
	return d, ok
}

// Redefine replaces the definition of h, keeping its kind, and marks it dirty.
// Structural changes must go through Deps.OnRedefine first.
func (s *Store) Redefine(h Handle, def Definition) error {
	old, ok := s.defs[h]
	if !ok {
		return fmt.Errorf("graph: redefine %s: %w", h, ErrUnknownHandle)
	}
	if old.Kind() != def.Kind() {
		return &DefinitionError{
			Definition: def,
			Message:    fmt.Sprintf("cannot turn %s %s into a %s", old.Kind(), h, def.Kind()),
		}
	}
	s.defs[h] = def
	s.dirty[h] = struct{}{}
	return nil
}

// Geometry returns the resolved geometry of h; ok is false when h is absent
// (unresolved, degenerate or unknown).
func (s *Store) Geometry(h Handle) (Geometry, bool) {
	g, ok := s.geom[h]
	return g, ok
}

// SetGeometry records resolved geometry for h.
func (s *Store) SetGeometry(h Handle, g Geometry) { s.geom[h] = g }

// ClearGeometry marks h as absent.
func (s *Store) ClearGeometry(h Handle) { delete(s.geom, h) }

// ResolvedCount returns how many objects currently have geometry.
func (s *Store) ResolvedCount() int { return len(s.geom) }

// Style returns the style of h.
func (s *Store) Style(h Handle) (Style, bool) {
	st, ok := s.styles[h]
	return st, ok
}

// SetStyle replaces the style of h, keeping the label index in step.
func (s *Store) SetStyle(h Handle, style Style) error {
	old, ok := s.styles[h]
	if !ok {
		return fmt.Errorf("graph: style %s: %w", h, ErrUnknownHandle)
	}
	if style.Label != old.Label {
		if style.Label != "" {
			if other, taken := s.labels[style.Label]; taken && other != h {
				return fmt.Errorf("graph: label %q already names %s", style.Label, other)
			}
			s.labels[style.Label] = h
		}
		if old.Label != "" {
			delete(s.labels, old.Label)
		}
	}
	s.styles[h] = style
	return nil
}

// Lookup returns the handle carrying label.
func (s *Store) Lookup(label string) (Handle, bool) {
	h, ok := s.labels[label]
	return h, ok
}

// Remove deletes h from every table.
func (s *Store) Remove(h Handle) {
	if st, ok := s.styles[h]; ok && st.Label != "" {
		delete(s.labels, st.Label)
	}
	delete(s.defs, h)
	delete(s.geom, h)
	delete(s.styles, h)
	delete(s.dirty, h)
}

// MarkDirty flags h for recomputation on the next solve.
func (s *Store) MarkDirty(h Handle) {
	if _, ok := s.defs[h]; ok {
		s.dirty[h] = struct{}{}
	}
}

// MarkAllDirty flags every object.
func (s *Store) MarkAllDirty() {
	for h := range s.defs {
		s.dirty[h] = struct{}{}
	}
}

// IsDirty reports whether h is flagged for recomputation.
func (s *Store) IsDirty(h Handle) bool {
	_, ok := s.dirty[h]
	return ok
}

// DirtyCount returns the number of flagged objects.
func (s *Store) DirtyCount() int { return len(s.dirty) }

// ClearDirty drops every recomputation flag.
func (s *Store) ClearDirty() { clear(s.dirty) }
