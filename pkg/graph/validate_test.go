package graph

import (
	"strings"
	"testing"

	v2 "github.com/deadsy/sdfx/vec/v2"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// buildValidConstruction creates two free points, the line through them and a
// point on that line, registered in both the store and the dependency graph.
func buildValidConstruction(t *testing.T) (*Store, *Deps) {
	t.Helper()
	s, d := NewStore(), NewDeps()
	add := func(def Definition) Handle {
		h := s.Allocate()
		if err := d.OnInsert(h, def.Parents()); err != nil {
			t.Fatalf("OnInsert: %v", err)
		}
		mustStore(t, s, h, def)
		return h
	}
	a := add(FreePoint{})
	b := add(FreePoint{At: v2.Vec{X: 10}})
	l := add(LineThrough{From: a, Through: b})
	add(OnLine{Line: l, T: 5})
	for _, h := range s.Handles() {
		s.SetGeometry(h, PointGeometry(v2.Vec{}))
	}
	return s, d
}

// hasError returns true if errs contains at least one error-severity finding
// whose message contains substr.
func hasError(errs []ValidationError, substr string) bool {
	for _, e := range errs {
		if e.Severity == SeverityError && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

// hasWarning returns true if errs contains at least one warning-severity
// finding whose message contains substr.
func hasWarning(errs []ValidationError, substr string) bool {
	for _, e := range errs {
		if e.Severity == SeverityWarning && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestValidateValidConstruction(t *testing.T) {
	s, d := buildValidConstruction(t)
	if errs := Validate(s, d); len(errs) != 0 {
		t.Errorf("expected no findings, got %v", errs)
	}
	if err := Verify(s, d); err != nil {
		t.Errorf("Verify = %v", err)
	}
}

func TestValidateEmpty(t *testing.T) {
	if errs := Validate(NewStore(), NewDeps()); len(errs) != 0 {
		t.Errorf("expected no findings, got %v", errs)
	}
}

func TestValidateDetectsCycle(t *testing.T) {
	s, d := buildValidConstruction(t)
	// Force a back edge past OnRedefine's guard.
	d.link(1, []Handle{4})

	errs := Validate(s, d)
	if !hasError(errs, "cycle detected") {
		t.Errorf("expected cycle error, got %v", errs)
	}
	if Verify(s, d) == nil {
		t.Error("Verify should fail on a cyclic graph")
	}
}

func TestValidateDetectsMissingFromDeps(t *testing.T) {
	s, d := buildValidConstruction(t)
	h := s.Allocate()
	mustStore(t, s, h, FreePoint{})
	s.SetGeometry(h, PointGeometry(v2.Vec{}))

	if errs := Validate(s, d); !hasError(errs, "missing from the dependency graph") {
		t.Errorf("expected missing error, got %v", errs)
	}
}

func TestValidateDetectsStaleDepsEntry(t *testing.T) {
	s, d := buildValidConstruction(t)
	if err := d.OnInsert(99, nil); err != nil {
		t.Fatal(err)
	}
	if errs := Validate(s, d); !hasError(errs, "not in the store") {
		t.Errorf("expected stale entry error, got %v", errs)
	}
}

func TestValidateDetectsEdgeMismatch(t *testing.T) {
	s, d := buildValidConstruction(t)
	// #4 is on-line(#3); point its edge at #1 instead.
	d.unlink(4)
	d.link(4, []Handle{1})

	if errs := Validate(s, d); !hasError(errs, "do not match definition") {
		t.Errorf("expected edge mismatch error, got %v", errs)
	}
}

func TestValidateDetectsDanglingDefinition(t *testing.T) {
	s, d := buildValidConstruction(t)
	s.Remove(3)

	errs := Validate(s, d)
	if !hasError(errs, "missing object #3") {
		t.Errorf("expected dangling reference error, got %v", errs)
	}
}

func TestValidateDetectsBadOrder(t *testing.T) {
	s, d := buildValidConstruction(t)
	d.order[2], d.order[3] = d.order[3], d.order[2]

	if errs := Validate(s, d); !hasError(errs, "before its parent") {
		t.Errorf("expected order error, got %v", errs)
	}
}

func TestValidateWarnsUnresolved(t *testing.T) {
	s, d := buildValidConstruction(t)
	s.ClearGeometry(4)

	errs := Validate(s, d)
	if !hasWarning(errs, "no resolved geometry") {
		t.Errorf("expected unresolved warning, got %v", errs)
	}
	if err := Verify(s, d); err != nil {
		t.Errorf("warnings must not fail Verify, got %v", err)
	}
}

func TestValidationErrorString(t *testing.T) {
	e := ValidationError{Handle: 3, Message: "boom", Severity: SeverityError}
	if got, want := e.Error(), "[error] object #3: boom"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	e = ValidationError{Message: "graph", Severity: SeverityWarning}
	if got, want := e.Error(), "[warning] graph"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
