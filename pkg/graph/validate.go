package graph

import (
	"fmt"
	"slices"
)

// ValidationSeverity indicates whether a validation finding blocks solving
// or is merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // blocks solving
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	Handle   Handle             // which object has the problem (zero if graph-level)
	Message  string             // human-readable description
	Severity ValidationSeverity // error or warning
}

func (e ValidationError) Error() string {
	if e.Handle.IsZero() {
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] object %s: %s", e.Severity, e.Handle, e.Message)
}

// Validate checks that the store and its dependency graph agree and that the
// graph is acyclic with a usable topological order. An empty slice means the
// pair is consistent. Validate never mutates either argument.
func Validate(s *Store, d *Deps) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateDAG(d)...)
	errs = append(errs, validateReferences(s)...)
	errs = append(errs, validateEdges(s, d)...)
	errs = append(errs, validateOrder(d)...)
	errs = append(errs, validateLabels(s)...)
	errs = append(errs, validateResolved(s)...)
	return errs
}

// Verify returns the first error-severity finding of Validate, or nil.
func Verify(s *Store, d *Deps) error {
	for _, e := range Validate(s, d) {
		if e.Severity == SeverityError {
			return e
		}
	}
	return nil
}

// validateDAG walks the parent edges depth-first. Reaching a handle that is
// still on the current path means the edges close a cycle.
func validateDAG(d *Deps) []ValidationError {
	const (
		white = iota
		gray
		black
	)

	color := make(map[Handle]int)
	var errs []ValidationError

	var visit func(h Handle) bool
	visit = func(h Handle) bool {
		switch color[h] {
		case black:
			return false
		case gray:
			errs = append(errs, ValidationError{
				Handle:   h,
				Message:  fmt.Sprintf("cycle detected: %s is part of a cycle", h),
				Severity: SeverityError,
			})
			return true
		}

		color[h] = gray
		for _, c := range d.Children(h) {
			if visit(c) {
				return true
			}
		}
		color[h] = black
		return false
	}

	// Start from every handle to catch disconnected components. One cycle is
	// enough.
	for _, h := range sortHandles(d.handles()) {
		if color[h] == white && visit(h) {
			break
		}
	}
	return errs
}

// validateReferences checks that every handle named in a definition exists
// and has the expected kind.
func validateReferences(s *Store) []ValidationError {
	var errs []ValidationError
	for _, h := range s.Handles() {
		def, _ := s.Definition(h)
		if err := s.Check(def); err != nil {
			errs = append(errs, ValidationError{
				Handle:   h,
				Message:  err.Error(),
				Severity: SeverityError,
			})
		}
	}
	return errs
}

// validateEdges checks that the dependency graph holds exactly the objects of
// the store, with the edges their definitions imply.
func validateEdges(s *Store, d *Deps) []ValidationError {
	var errs []ValidationError
	for _, h := range s.Handles() {
		if !d.Has(h) {
			errs = append(errs, ValidationError{
				Handle:   h,
				Message:  "missing from the dependency graph",
				Severity: SeverityError,
			})
			continue
		}
		def, _ := s.Definition(h)
		want := dedupe(def.Parents())
		got := d.Parents(h)
		slices.Sort(want)
		slices.Sort(got)
		if !slices.Equal(want, got) {
			errs = append(errs, ValidationError{
				Handle:   h,
				Message:  fmt.Sprintf("edges %v do not match definition %s", got, def.Describe()),
				Severity: SeverityError,
			})
		}
	}
	for _, h := range sortHandles(d.handles()) {
		if !s.Has(h) {
			errs = append(errs, ValidationError{
				Handle:   h,
				Message:  "in the dependency graph but not in the store",
				Severity: SeverityError,
			})
		}
	}
	return errs
}

// validateOrder checks that the topological order lists every handle once
// and puts every parent before its children.
func validateOrder(d *Deps) []ValidationError {
	var errs []ValidationError
	pos := make(map[Handle]int, len(d.order))
	for i, h := range d.order {
		if _, dup := pos[h]; dup {
			errs = append(errs, ValidationError{
				Handle:   h,
				Message:  "listed twice in the topological order",
				Severity: SeverityError,
			})
			continue
		}
		pos[h] = i
	}
	for _, h := range d.order {
		for _, p := range d.parents[h] {
			if pp, ok := pos[p]; ok && pp >= pos[h] {
				errs = append(errs, ValidationError{
					Handle:   h,
					Message:  fmt.Sprintf("ordered before its parent %s", p),
					Severity: SeverityError,
				})
			}
		}
	}
	return errs
}

// validateLabels checks that the label index is injective and points at
// live objects.
func validateLabels(s *Store) []ValidationError {
	var errs []ValidationError
	for label, h := range s.labels {
		st, ok := s.styles[h]
		if !ok || st.Label != label {
			errs = append(errs, ValidationError{
				Message:  fmt.Sprintf("label %q points at %s which does not carry it", label, h),
				Severity: SeverityError,
			})
		}
	}
	return errs
}

// validateResolved warns about objects that currently have no geometry.
func validateResolved(s *Store) []ValidationError {
	var errs []ValidationError
	for _, h := range s.Handles() {
		if _, ok := s.Geometry(h); !ok {
			errs = append(errs, ValidationError{
				Handle:   h,
				Message:  "has no resolved geometry",
				Severity: SeverityWarning,
			})
		}
	}
	return errs
}

func (d *Deps) handles() []Handle {
	out := make([]Handle, 0, len(d.index))
	for h := range d.index {
		out = append(out, h)
	}
	return out
}

func dedupe(hs []Handle) []Handle {
	out := make([]Handle, 0, len(hs))
	for _, h := range hs {
		if !slices.Contains(out, h) {
			out = append(out, h)
		}
	}
	return out
}
