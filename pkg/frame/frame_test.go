package frame

import "testing"

func TestNextClearsFlags(t *testing.T) {
	c := New(3)
	if c.Dirty() {
		t.Fatal("new context should be clean")
	}
	c.SolverDirty = true
	if !c.Dirty() {
		t.Fatal("SolverDirty should make the context dirty")
	}

	n := c.Next()
	if n.Frame != 4 {
		t.Errorf("Frame = %d, want 4", n.Frame)
	}
	if n.Dirty() {
		t.Error("next context should start clean")
	}
}
