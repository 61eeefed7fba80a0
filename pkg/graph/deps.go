package graph

import (
	"fmt"
	"slices"
)

// Deps is the Dependency Graph Cache. It records, for every handle, the set
// of handles it depends on (parents) and the reverse set (children), and
// maintains a topological order in which every parent precedes every child.
//
// Deps is purely structural: it never looks at coordinates.
type Deps struct {
	parents  map[Handle][]Handle
	children map[Handle]map[Handle]struct{}
	order    []Handle
	index    map[Handle]int // position of each handle in order
}

// NewDeps returns an empty dependency graph.
func NewDeps() *Deps {
	return &Deps{
		parents:  make(map[Handle][]Handle),
		children: make(map[Handle]map[Handle]struct{}),
		index:    make(map[Handle]int),
	}
}

// Len returns the number of handles in the graph.
func (d *Deps) Len() int { return len(d.order) }

// Has reports whether h is in the graph.
func (d *Deps) Has(h Handle) bool {
	_, ok := d.index[h]
	return ok
}

// Parents returns the handles h depends on.
func (d *Deps) Parents(h Handle) []Handle {
	return slices.Clone(d.parents[h])
}

// Children returns the handles that depend directly on h, ascending.
func (d *Deps) Children(h Handle) []Handle {
	out := make([]Handle, 0, len(d.children[h]))
	for c := range d.children[h] {
		out = append(out, c)
	}
	return sortHandles(out)
}

// TopologicalOrder returns every handle, parents before children. The order
// only changes on structural edits, so one solve pass sees a stable order.
func (d *Deps) TopologicalOrder() []Handle {
	return slices.Clone(d.order)
}

// Position returns the index of h in the topological order.
func (d *Deps) Position(h Handle) (int, bool) {
	i, ok := d.index[h]
	return i, ok
}

// Descendants returns every handle that depends on h directly or
// transitively, in topological order. h itself is not included.
func (d *Deps) Descendants(h Handle) []Handle {
	seen := d.reach(h)
	out := make([]Handle, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b Handle) int { return d.index[a] - d.index[b] })
	return out
}

// reach collects the transitive children of h.
func (d *Deps) reach(h Handle) map[Handle]struct{} {
	seen := make(map[Handle]struct{})
	stack := []Handle{h}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for c := range d.children[cur] {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			stack = append(stack, c)
		}
	}
	return seen
}

// OnInsert adds h with an edge to each of parents. It fails with a
// *DanglingReferenceError if a parent is unknown and a *CycleError if the
// edges would close a cycle; on failure the graph is unchanged.
func (d *Deps) OnInsert(h Handle, parents []Handle) error {
	if h.IsZero() {
		return fmt.Errorf("graph: insert null handle: %w", ErrUnknownHandle)
	}
	if d.Has(h) {
		return fmt.Errorf("graph: insert %s: %w", h, ErrDuplicateHandle)
	}
	if err := d.checkEdges(h, parents); err != nil {
		return err
	}
	d.link(h, parents)
	d.index[h] = len(d.order)
	d.order = append(d.order, h)
	return nil
}

// OnRedefine replaces the parent set of an existing handle. This is the one
// edit through which a cycle can be requested, e.g. attaching a point to a
// line that is itself built through that point.
func (d *Deps) OnRedefine(h Handle, parents []Handle) error {
	if !d.Has(h) {
		return fmt.Errorf("graph: redefine %s: %w", h, ErrUnknownHandle)
	}
	if err := d.checkEdges(h, parents); err != nil {
		return err
	}
	d.unlink(h)
	d.link(h, parents)

	pos := d.index[h]
	for _, p := range d.parents[h] {
		if d.index[p] > pos {
			d.reorder()
			break
		}
	}
	return nil
}

// OnRemove returns the transitive dependents of h in topological order, then
// removes h and all of those dependents together with their edges. The
// returned handles are exactly what the caller must cascade-delete.
func (d *Deps) OnRemove(h Handle) ([]Handle, error) {
	if !d.Has(h) {
		return nil, fmt.Errorf("graph: remove %s: %w", h, ErrUnknownHandle)
	}
	doomed := d.Descendants(h)
	gone := make(map[Handle]struct{}, len(doomed)+1)
	gone[h] = struct{}{}
	for _, c := range doomed {
		gone[c] = struct{}{}
	}
	for g := range gone {
		d.unlink(g)
		delete(d.children, g)
		delete(d.parents, g)
	}

	kept := d.order[:0]
	for _, o := range d.order {
		if _, ok := gone[o]; !ok {
			kept = append(kept, o)
		}
	}
	clear(d.order[len(kept):])
	d.order = kept
	clear(d.index)
	for i, o := range d.order {
		d.index[o] = i
	}
	return doomed, nil
}

// checkEdges verifies that every parent exists and that none of them is h or
// a descendant of h.
func (d *Deps) checkEdges(h Handle, parents []Handle) error {
	for _, p := range parents {
		if p == h {
			return &CycleError{Handle: h, Path: []Handle{h, h}}
		}
		if !d.Has(p) {
			return &DanglingReferenceError{Handle: h, Ref: p}
		}
	}
	if len(d.children[h]) == 0 {
		return nil
	}
	below := d.reach(h)
	for _, p := range parents {
		if _, ok := below[p]; ok {
			return &CycleError{Handle: h, Path: d.path(h, p)}
		}
	}
	return nil
}

// path returns a child-edge path from h down to target followed by the
// proposed edge back to h.
func (d *Deps) path(h, target Handle) []Handle {
	prev := map[Handle]Handle{h: NoHandle}
	queue := []Handle{h}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == target {
			break
		}
		for _, c := range d.Children(cur) {
			if _, ok := prev[c]; ok {
				continue
			}
			prev[c] = cur
			queue = append(queue, c)
		}
	}
	var rev []Handle
	for cur := target; cur != NoHandle; cur = prev[cur] {
		rev = append(rev, cur)
	}
	slices.Reverse(rev)
	return append(rev, h)
}

func (d *Deps) link(h Handle, parents []Handle) {
	ps := make([]Handle, 0, len(parents))
	for _, p := range parents {
		if slices.Contains(ps, p) {
			continue
		}
		ps = append(ps, p)
		if d.children[p] == nil {
			d.children[p] = make(map[Handle]struct{})
		}
		d.children[p][h] = struct{}{}
	}
	d.parents[h] = ps
}

func (d *Deps) unlink(h Handle) {
	for _, p := range d.parents[h] {
		delete(d.children[p], h)
		if len(d.children[p]) == 0 {
			delete(d.children, p)
		}
	}
	d.parents[h] = nil
}

// reorder rebuilds the topological order with Kahn's algorithm. Ready handles
// are taken in their previous order so unrelated objects keep their places.
func (d *Deps) reorder() {
	indeg := make(map[Handle]int, len(d.order))
	for _, h := range d.order {
		indeg[h] = len(d.parents[h])
	}
	prev := d.index
	ready := make([]Handle, 0, len(d.order))
	for _, h := range d.order {
		if indeg[h] == 0 {
			ready = append(ready, h)
		}
	}
	byPrev := func(a, b Handle) int { return prev[a] - prev[b] }

	order := make([]Handle, 0, len(d.order))
	for len(ready) > 0 {
		h := ready[0]
		ready = ready[1:]
		order = append(order, h)
		var freed []Handle
		for c := range d.children[h] {
			indeg[c]--
			if indeg[c] == 0 {
				freed = append(freed, c)
			}
		}
		if len(freed) > 0 {
			ready = append(ready, freed...)
			slices.SortFunc(ready, byPrev)
		}
	}

	index := make(map[Handle]int, len(order))
	for i, h := range order {
		index[h] = i
	}
	d.order = order
	d.index = index
}
