// Package spatial buckets resolved objects into a uniform grid over actual
// (pixel) space so that proximity queries only look at nearby candidates.
//
// The cache is rebuilt from scratch whenever solved coordinates or the
// viewport change. Points land in the cell that contains them; lines are
// clipped to the visible area and inserted into every cell they cross.
package spatial

import (
	"math"
	"slices"
	"time"

	"github.com/chazu/compass/pkg/graph"
	"github.com/chazu/compass/pkg/kernel"
	"github.com/chazu/compass/pkg/logging"
	"github.com/chazu/compass/pkg/metrics"
	"github.com/chazu/compass/pkg/viewport"
	v2 "github.com/deadsy/sdfx/vec/v2"
)

// DefaultCellSize is the cell edge in pixels. It must be at least the largest
// snap threshold so that a 3x3 neighbourhood covers every candidate.
const DefaultCellSize = 20.0

// Cell is an integer grid coordinate, floor(actual / cell size).
type Cell struct {
	X, Y int
}

// Cache is the Spatial Hash Cache. It is not safe for concurrent use.
type Cache struct {
	size    float64
	cells   map[Cell][]graph.Handle
	indexed int
}

// New returns an empty cache. A non-positive cellSize selects DefaultCellSize.
func New(cellSize float64) *Cache {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	return &Cache{
		size:  cellSize,
		cells: make(map[Cell][]graph.Handle),
	}
}

// CellSize returns the cell edge in pixels.
func (c *Cache) CellSize() float64 { return c.size }

// Len returns how many objects the last rebuild indexed.
func (c *Cache) Len() int { return c.indexed }

// Cells returns the number of occupied cells.
func (c *Cache) Cells() int { return len(c.cells) }

// CellOf returns the cell containing the actual-space point p.
func (c *Cache) CellOf(p v2.Vec) Cell {
	return Cell{
		X: int(math.Floor(p.X / c.size)),
		Y: int(math.Floor(p.Y / c.size)),
	}
}

// Clear empties the cache.
func (c *Cache) Clear() {
	clear(c.cells)
	c.indexed = 0
}

// Rebuild clears the cache and indexes every resolved object of store under
// transform t. Absent objects are skipped.
func (c *Cache) Rebuild(t viewport.Transform, store *graph.Store) {
	start := time.Now()
	c.Clear()
	bounds := t.ActualBounds()

	for _, h := range store.Handles() {
		g, ok := store.Geometry(h)
		if !ok {
			continue
		}
		switch g.Kind {
		case graph.KindPoint:
			c.add(c.CellOf(t.ToActual(g.Point)), h)
			c.indexed++
		case graph.KindLine:
			from, to, ok := kernel.Clip(ActualLine(t, g.Line), bounds, kernel.DefaultEpsilon)
			if !ok {
				continue
			}
			c.walk(from, to, func(cell Cell) { c.add(cell, h) })
			c.indexed++
		}
	}

	elapsed := time.Since(start)
	metrics.ObserveRebuild(elapsed, len(c.cells))
	logging.Logger().Debug("spatial rebuild",
		"objects", c.indexed,
		"cells", len(c.cells),
		"elapsed", elapsed)
}

func (c *Cache) add(cell Cell, h graph.Handle) {
	c.cells[cell] = append(c.cells[cell], h)
}

// NeighborsOf returns the handles in the cell containing the actual-space
// point p and its eight neighbours, without duplicates, in ascending order.
func (c *Cache) NeighborsOf(p v2.Vec) []graph.Handle {
	if len(c.cells) == 0 {
		return nil
	}
	center := c.CellOf(p)
	seen := make(map[graph.Handle]struct{})
	var out []graph.Handle
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			for _, h := range c.cells[Cell{X: center.X + dx, Y: center.Y + dy}] {
				if _, ok := seen[h]; ok {
					continue
				}
				seen[h] = struct{}{}
				out = append(out, h)
			}
		}
	}
	slices.Sort(out)
	return out
}

// ActualLine maps a virtual line into actual space.
func ActualLine(t viewport.Transform, l kernel.Line) kernel.Line {
	o := t.ToActual(l.Origin)
	return kernel.Line{Origin: o, Direction: t.ToActual(l.Origin.Add(l.Direction)).Sub(o)}
}

// walk visits every cell crossed by segment ab, in order from a to b, using
// the Amanatides-Woo grid traversal.
func (c *Cache) walk(a, b v2.Vec, visit func(Cell)) {
	cur := c.CellOf(a)
	end := c.CellOf(b)
	d := b.Sub(a)
	stepX, tMaxX, tDeltaX := c.axis(a.X, d.X, cur.X)
	stepY, tMaxY, tDeltaY := c.axis(a.Y, d.Y, cur.Y)

	// Each step moves one cell along one axis, so the Manhattan distance
	// between the end cells bounds the walk.
	n := abs(end.X-cur.X) + abs(end.Y-cur.Y)
	visit(cur)
	for range n {
		if tMaxX < tMaxY {
			cur.X += stepX
			tMaxX += tDeltaX
		} else {
			cur.Y += stepY
			tMaxY += tDeltaY
		}
		visit(cur)
	}
}

// axis returns the step direction, the parameter at which the segment first
// crosses a cell boundary, and the parameter span of one cell.
func (c *Cache) axis(p, d float64, cell int) (step int, tMax, tDelta float64) {
	switch {
	case d > 0:
		return 1, (float64(cell+1)*c.size - p) / d, c.size / d
	case d < 0:
		return -1, (float64(cell)*c.size - p) / d, -c.size / d
	default:
		return 0, math.Inf(1), math.Inf(1)
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
