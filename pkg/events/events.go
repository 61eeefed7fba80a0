// Package events is a multi-reader event queue. Each listener registers a
// Reader with its own cursor into an append-only buffer; entries every reader
// has consumed are dropped.
package events

import "sync"

// Reader is one listener's position in a Channel.
type Reader struct {
	cursor int // absolute index of the next unread event
}

// Channel buffers events of one kind. It is safe for concurrent use.
type Channel[T any] struct {
	mu      sync.Mutex
	buf     []T
	base    int // absolute index of buf[0]
	readers map[*Reader]struct{}
}

// NewChannel returns an empty channel.
func NewChannel[T any]() *Channel[T] {
	return &Channel[T]{readers: make(map[*Reader]struct{})}
}

// Register adds a listener. It sees only events published after this call.
func (c *Channel[T]) Register() *Reader {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := &Reader{cursor: c.base + len(c.buf)}
	c.readers[r] = struct{}{}
	return r
}

// Unregister removes a listener; its unread events no longer pin the buffer.
func (c *Channel[T]) Unregister(r *Reader) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.readers, r)
	c.compact()
}

// Publish appends events. With no registered readers they are discarded.
func (c *Channel[T]) Publish(events ...T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.readers) == 0 {
		c.base += len(c.buf) + len(events)
		c.buf = c.buf[:0]
		return
	}
	c.buf = append(c.buf, events...)
}

// Read returns the events r has not seen yet and advances its cursor.
// Reading with an unregistered reader returns nil.
func (c *Channel[T]) Read(r *Reader) []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.readers[r]; !ok {
		return nil
	}
	start := r.cursor - c.base
	if start >= len(c.buf) {
		return nil
	}
	out := make([]T, len(c.buf)-start)
	copy(out, c.buf[start:])
	r.cursor = c.base + len(c.buf)
	c.compact()
	return out
}

// Pending returns how many events r has not read.
func (c *Channel[T]) Pending(r *Reader) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.readers[r]; !ok {
		return 0
	}
	return c.base + len(c.buf) - r.cursor
}

// Buffered returns how many events are retained for slow readers.
func (c *Channel[T]) Buffered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buf)
}

// compact drops the prefix every reader has consumed. Callers hold mu.
func (c *Channel[T]) compact() {
	end := c.base + len(c.buf)
	low := end
	for r := range c.readers {
		low = min(low, r.cursor)
	}
	n := low - c.base
	if n <= 0 {
		return
	}
	var zero T
	for i := range n {
		c.buf[i] = zero
	}
	c.buf = c.buf[n:]
	c.base = low
}
