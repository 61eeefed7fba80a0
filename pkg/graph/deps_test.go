package graph

import (
	"errors"
	"math/rand/v2"
	"slices"
	"testing"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// mustInsert adds h to d with the given parents and fails the test on error.
func mustInsert(t *testing.T, d *Deps, h Handle, parents ...Handle) {
	t.Helper()
	if err := d.OnInsert(h, parents); err != nil {
		t.Fatalf("OnInsert(%s, %v): %v", h, parents, err)
	}
}

// assertTopological fails if any parent appears at or after its child.
func assertTopological(t *testing.T, d *Deps) {
	t.Helper()
	order := d.TopologicalOrder()
	if len(order) != d.Len() {
		t.Fatalf("order has %d entries, graph has %d", len(order), d.Len())
	}
	pos := make(map[Handle]int, len(order))
	for i, h := range order {
		pos[h] = i
	}
	for _, h := range order {
		for _, p := range d.Parents(h) {
			if pos[p] >= pos[h] {
				t.Errorf("parent %s at %d not before child %s at %d", p, pos[p], h, pos[h])
			}
		}
	}
}

// construction builds:
//
//	#1 #2 free points
//	#3 line(#1, #2)
//	#4 free line
//	#5 intersect(#3, #4)
//	#6 on-line(#3)
func construction(t *testing.T) *Deps {
	t.Helper()
	d := NewDeps()
	mustInsert(t, d, 1)
	mustInsert(t, d, 2)
	mustInsert(t, d, 3, 1, 2)
	mustInsert(t, d, 4)
	mustInsert(t, d, 5, 3, 4)
	mustInsert(t, d, 6, 3)
	return d
}

// ---------------------------------------------------------------------------
// Insert
// ---------------------------------------------------------------------------

func TestDepsInsertAppendsInOrder(t *testing.T) {
	d := construction(t)
	want := []Handle{1, 2, 3, 4, 5, 6}
	if got := d.TopologicalOrder(); !slices.Equal(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
	assertTopological(t, d)

	if got := d.Children(3); !slices.Equal(got, []Handle{5, 6}) {
		t.Errorf("Children(#3) = %v, want [#5 #6]", got)
	}
	if got := d.Parents(5); !slices.Equal(got, []Handle{3, 4}) {
		t.Errorf("Parents(#5) = %v, want [#3 #4]", got)
	}
}

func TestDepsInsertDanglingParent(t *testing.T) {
	d := construction(t)
	before := d.TopologicalOrder()

	err := d.OnInsert(7, []Handle{3, 99})
	var dangling *DanglingReferenceError
	if !errors.As(err, &dangling) {
		t.Fatalf("err = %v, want *DanglingReferenceError", err)
	}
	if dangling.Ref != 99 {
		t.Errorf("Ref = %s, want #99", dangling.Ref)
	}
	if !errors.Is(err, ErrDanglingReference) {
		t.Error("errors.Is(err, ErrDanglingReference) = false")
	}
	if d.Has(7) {
		t.Error("rejected handle was added")
	}
	if got := d.TopologicalOrder(); !slices.Equal(got, before) {
		t.Errorf("order changed to %v", got)
	}
	if got := d.Children(3); !slices.Equal(got, []Handle{5, 6}) {
		t.Errorf("Children(#3) = %v after rejected insert", got)
	}
}

func TestDepsInsertSelfReference(t *testing.T) {
	d := NewDeps()
	mustInsert(t, d, 1)
	if err := d.OnInsert(2, []Handle{2}); !errors.Is(err, ErrCycle) {
		t.Fatalf("err = %v, want ErrCycle", err)
	}
	if d.Len() != 1 {
		t.Errorf("Len = %d, want 1", d.Len())
	}
}

func TestDepsInsertDuplicate(t *testing.T) {
	d := construction(t)
	if err := d.OnInsert(3, nil); !errors.Is(err, ErrDuplicateHandle) {
		t.Fatalf("err = %v, want ErrDuplicateHandle", err)
	}
	if got := d.Parents(3); !slices.Equal(got, []Handle{1, 2}) {
		t.Errorf("Parents(#3) = %v after rejected insert", got)
	}
}

func TestDepsInsertNullHandle(t *testing.T) {
	d := NewDeps()
	if err := d.OnInsert(NoHandle, nil); !errors.Is(err, ErrUnknownHandle) {
		t.Fatalf("err = %v, want ErrUnknownHandle", err)
	}
}

// ---------------------------------------------------------------------------
// Redefine
// ---------------------------------------------------------------------------

func TestDepsRedefineRejectsCycle(t *testing.T) {
	d := construction(t)
	before := d.TopologicalOrder()

	// #1 on-line(#3) while #3 is built through #1.
	err := d.OnRedefine(1, []Handle{3})
	var cyc *CycleError
	if !errors.As(err, &cyc) {
		t.Fatalf("err = %v, want *CycleError", err)
	}
	if cyc.Handle != 1 {
		t.Errorf("Handle = %s, want #1", cyc.Handle)
	}
	if want := []Handle{1, 3, 1}; !slices.Equal(cyc.Path, want) {
		t.Errorf("Path = %v, want %v", cyc.Path, want)
	}
	if got := d.TopologicalOrder(); !slices.Equal(got, before) {
		t.Errorf("order changed to %v", got)
	}
	if got := d.Parents(1); len(got) != 0 {
		t.Errorf("Parents(#1) = %v, want none", got)
	}
	if got := d.Children(3); !slices.Equal(got, []Handle{5, 6}) {
		t.Errorf("Children(#3) = %v, want [#5 #6]", got)
	}
}

func TestDepsRedefineRejectsTransitiveCycle(t *testing.T) {
	d := construction(t)
	// #5 descends from #2 through #3. Deps ignores kinds.
	if err := d.OnRedefine(2, []Handle{5}); !errors.Is(err, ErrCycle) {
		t.Fatalf("err = %v, want ErrCycle", err)
	}
	assertTopological(t, d)
}

func TestDepsRedefineRepairsOrder(t *testing.T) {
	d := NewDeps()
	mustInsert(t, d, 1)
	mustInsert(t, d, 2)
	mustInsert(t, d, 3) // free line, later rebuilt through #4 and #5
	mustInsert(t, d, 4)
	mustInsert(t, d, 5)
	mustInsert(t, d, 6, 3)

	if err := d.OnRedefine(3, []Handle{4, 5}); err != nil {
		t.Fatalf("OnRedefine: %v", err)
	}
	assertTopological(t, d)

	// Unrelated handles keep their relative order.
	want := []Handle{1, 2, 4, 5, 3, 6}
	if got := d.TopologicalOrder(); !slices.Equal(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestDepsRedefineDropsOldEdges(t *testing.T) {
	d := construction(t)
	if err := d.OnRedefine(6, []Handle{4}); err != nil {
		t.Fatalf("OnRedefine: %v", err)
	}
	if got := d.Children(3); !slices.Equal(got, []Handle{5}) {
		t.Errorf("Children(#3) = %v, want [#5]", got)
	}
	if got := d.Children(4); !slices.Equal(got, []Handle{5, 6}) {
		t.Errorf("Children(#4) = %v, want [#5 #6]", got)
	}
	assertTopological(t, d)
}

func TestDepsRedefineUnknown(t *testing.T) {
	d := NewDeps()
	if err := d.OnRedefine(4, nil); !errors.Is(err, ErrUnknownHandle) {
		t.Fatalf("err = %v, want ErrUnknownHandle", err)
	}
}

// ---------------------------------------------------------------------------
// Remove
// ---------------------------------------------------------------------------

func TestDepsRemoveReturnsDescendants(t *testing.T) {
	d := construction(t)

	got, err := d.OnRemove(1)
	if err != nil {
		t.Fatalf("OnRemove: %v", err)
	}
	if want := []Handle{3, 5, 6}; !slices.Equal(got, want) {
		t.Errorf("removed descendants = %v, want %v", got, want)
	}
	if want := []Handle{2, 4}; !slices.Equal(d.TopologicalOrder(), want) {
		t.Errorf("order = %v, want %v", d.TopologicalOrder(), want)
	}
	for _, h := range []Handle{1, 3, 5, 6} {
		if d.Has(h) {
			t.Errorf("%s still present", h)
		}
	}
	// No edge may reference a removed handle.
	for _, h := range d.TopologicalOrder() {
		for _, c := range d.Children(h) {
			if !d.Has(c) {
				t.Errorf("%s has dangling child %s", h, c)
			}
		}
		for _, p := range d.Parents(h) {
			if !d.Has(p) {
				t.Errorf("%s has dangling parent %s", h, p)
			}
		}
	}
}

func TestDepsRemoveLeaf(t *testing.T) {
	d := construction(t)
	got, err := d.OnRemove(6)
	if err != nil {
		t.Fatalf("OnRemove: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("descendants = %v, want none", got)
	}
	if got := d.Children(3); !slices.Equal(got, []Handle{5}) {
		t.Errorf("Children(#3) = %v, want [#5]", got)
	}
	assertTopological(t, d)
}

func TestDepsRemoveUnknown(t *testing.T) {
	d := construction(t)
	if _, err := d.OnRemove(42); !errors.Is(err, ErrUnknownHandle) {
		t.Fatalf("err = %v, want ErrUnknownHandle", err)
	}
	if d.Len() != 6 {
		t.Errorf("Len = %d, want 6", d.Len())
	}
}

func TestDepsDescendants(t *testing.T) {
	d := construction(t)
	if got, want := d.Descendants(2), []Handle{3, 5, 6}; !slices.Equal(got, want) {
		t.Errorf("Descendants(#2) = %v, want %v", got, want)
	}
	if got := d.Descendants(5); len(got) != 0 {
		t.Errorf("Descendants(#5) = %v, want none", got)
	}
}

func TestDepsDuplicateParentsCollapse(t *testing.T) {
	d := NewDeps()
	mustInsert(t, d, 1)
	mustInsert(t, d, 2, 1, 1)
	if got := d.Parents(2); !slices.Equal(got, []Handle{1}) {
		t.Errorf("Parents(#2) = %v, want [#1]", got)
	}
}

// ---------------------------------------------------------------------------
// Random edit sequences
// ---------------------------------------------------------------------------

type depsSnapshot struct {
	order    []Handle
	parents  map[Handle][]Handle
	children map[Handle][]Handle
}

func snapshot(d *Deps) depsSnapshot {
	s := depsSnapshot{
		order:    d.TopologicalOrder(),
		parents:  make(map[Handle][]Handle),
		children: make(map[Handle][]Handle),
	}
	for _, h := range s.order {
		s.parents[h] = slices.Clone(d.Parents(h))
		s.children[h] = slices.Clone(d.Children(h))
	}
	return s
}

func assertUnchanged(t *testing.T, before depsSnapshot, d *Deps, op string) {
	t.Helper()
	after := snapshot(d)
	if !slices.Equal(before.order, after.order) {
		t.Fatalf("%s: order changed from %v to %v", op, before.order, after.order)
	}
	for h, ps := range before.parents {
		if !slices.Equal(ps, after.parents[h]) {
			t.Fatalf("%s: parents of %s changed from %v to %v", op, h, ps, after.parents[h])
		}
		if !slices.Equal(before.children[h], after.children[h]) {
			t.Fatalf("%s: children of %s changed from %v to %v", op, h, before.children[h], after.children[h])
		}
	}
}

func assertNoDanglingEdges(t *testing.T, d *Deps) {
	t.Helper()
	for _, h := range d.TopologicalOrder() {
		for _, p := range d.Parents(h) {
			if !d.Has(p) {
				t.Fatalf("%s has removed parent %s", h, p)
			}
		}
		for _, c := range d.Children(h) {
			if !d.Has(c) {
				t.Fatalf("%s has removed child %s", h, c)
			}
		}
	}
}

func TestDepsRandomEditSequences(t *testing.T) {
	for seed := uint64(1); seed <= 20; seed++ {
		rng := rand.New(rand.NewPCG(seed, 7))
		d := NewDeps()
		var next Handle

		pick := func() Handle {
			order := d.TopologicalOrder()
			return order[rng.IntN(len(order))]
		}
		pickParents := func() []Handle {
			var ps []Handle
			if d.Len() == 0 {
				return ps
			}
			for i := rng.IntN(3); i > 0; i-- {
				ps = append(ps, pick())
			}
			return ps
		}

		for i := 0; i < 200; i++ {
			switch op := rng.IntN(10); {
			case op < 5 || d.Len() == 0:
				next++
				parents := pickParents()
				dangling := rng.IntN(8) == 0
				if dangling {
					parents = append(parents, next+1000)
				}
				before := snapshot(d)
				err := d.OnInsert(next, parents)
				if dangling {
					if !errors.Is(err, ErrDanglingReference) {
						t.Fatalf("seed %d: insert %s with dangling parent: err = %v", seed, next, err)
					}
					assertUnchanged(t, before, d, "dangling insert")
					continue
				}
				if err != nil {
					t.Fatalf("seed %d: insert %s %v: %v", seed, next, parents, err)
				}

			case op < 8:
				h := pick()
				parents := pickParents()
				closes := false
				for _, p := range parents {
					if p == h || slices.Contains(d.Descendants(h), p) {
						closes = true
					}
				}
				before := snapshot(d)
				err := d.OnRedefine(h, parents)
				if closes {
					if !errors.Is(err, ErrCycle) {
						t.Fatalf("seed %d: redefine %s onto %v: err = %v, want a cycle", seed, h, parents, err)
					}
					assertUnchanged(t, before, d, "cyclic redefine")
					continue
				}
				if err != nil {
					t.Fatalf("seed %d: redefine %s onto %v: %v", seed, h, parents, err)
				}

			default:
				h := pick()
				want := d.Descendants(h)
				got, err := d.OnRemove(h)
				if err != nil {
					t.Fatalf("seed %d: remove %s: %v", seed, h, err)
				}
				if !slices.Equal(got, want) {
					t.Fatalf("seed %d: remove %s returned %v, want %v", seed, h, got, want)
				}
				for _, g := range append(got, h) {
					if d.Has(g) {
						t.Fatalf("seed %d: %s survived removal of %s", seed, g, h)
					}
				}
				assertNoDanglingEdges(t, d)
			}
			assertTopological(t, d)
		}
	}
}
