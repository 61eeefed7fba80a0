// Package drawlist walks a solved construction and produces the primitives
// a renderer needs, in actual (pixel) space and in draw order: lines first,
// then unselected points, then selected points on top.
package drawlist

import (
	"fmt"

	"github.com/chazu/compass/pkg/graph"
	"github.com/chazu/compass/pkg/kernel"
	"github.com/chazu/compass/pkg/spatial"
	"github.com/chazu/compass/pkg/viewport"
	v2 "github.com/deadsy/sdfx/vec/v2"
)

// ItemKind distinguishes draw primitives.
type ItemKind string

const (
	ItemSegment ItemKind = "segment"
	ItemDisc    ItemKind = "disc"
)

// Item is one draw primitive in actual space.
type Item struct {
	Kind   ItemKind     `json:"kind"`
	Handle graph.Handle `json:"handle"`
	Label  string       `json:"label,omitempty"`
	Color  string       `json:"color"`

	// Segment endpoints, clipped to the window.
	From v2.Vec `json:"from,omitempty"`
	To   v2.Vec `json:"to,omitempty"`
	// Disc centre.
	Center v2.Vec `json:"center,omitempty"`

	Radius   float64 `json:"radius,omitempty"`
	Width    float64 `json:"width,omitempty"`
	Selected bool    `json:"selected,omitempty"`
}

// Build returns the draw list for store under transform t. Absent objects and
// lines outside the window are skipped. Build never mutates the store.
func Build(store *graph.Store, t viewport.Transform) ([]Item, error) {
	if store == nil {
		return nil, nil
	}
	bounds := t.ActualBounds()

	var lines, points, selected []Item
	for _, h := range store.Handles() {
		g, ok := store.Geometry(h)
		if !ok {
			continue
		}
		st, _ := store.Style(h)

		switch g.Kind {
		case graph.KindLine:
			from, to, ok := kernel.Clip(spatial.ActualLine(t, g.Line), bounds, kernel.DefaultEpsilon)
			if !ok {
				continue
			}
			lines = append(lines, Item{
				Kind:     ItemSegment,
				Handle:   h,
				Label:    st.Label,
				Color:    st.Color,
				From:     from,
				To:       to,
				Width:    st.Width,
				Selected: st.Selected,
			})

		case graph.KindPoint:
			it := Item{
				Kind:     ItemDisc,
				Handle:   h,
				Label:    st.Label,
				Color:    st.Color,
				Center:   t.ToActual(g.Point),
				Radius:   st.Radius,
				Selected: st.Selected,
			}
			if st.Selected {
				selected = append(selected, it)
			} else {
				points = append(points, it)
			}

		default:
			return nil, fmt.Errorf("drawlist: %s has unknown geometry kind %v", h, g.Kind)
		}
	}

	items := make([]Item, 0, len(lines)+len(points)+len(selected))
	items = append(items, lines...)
	items = append(items, points...)
	items = append(items, selected...)
	return items, nil
}
