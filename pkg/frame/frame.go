// Package frame carries the per-frame dirty flags shared by the systems of
// one step. A Context is created at the start of a frame, mutated by edits
// and systems, and replaced by a fresh one when the frame ends.
package frame

// Context is the state of one frame.
type Context struct {
	Frame uint64

	InputDirty    bool // cursor or selection changed
	SolverDirty   bool // a definition changed and coordinates must be recomputed
	ViewportDirty bool // pan, zoom or resize changed the transform
}

// New returns the context of frame n with every flag clear.
func New(n uint64) *Context {
	return &Context{Frame: n}
}

// Next returns a fresh context for the following frame.
func (c *Context) Next() *Context {
	return New(c.Frame + 1)
}

// Dirty reports whether any system has work to do.
func (c *Context) Dirty() bool {
	return c.InputDirty || c.SolverDirty || c.ViewportDirty
}
