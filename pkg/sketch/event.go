package sketch

import (
	"fmt"

	"github.com/chazu/compass/pkg/graph"
)

// EventKind classifies sketch events.
type EventKind int

const (
	EventCreated EventKind = iota
	EventRemoved
	EventRedefined
	EventMoved
	EventSelected
	EventDeselected
)

func (k EventKind) String() string {
	switch k {
	case EventCreated:
		return "created"
	case EventRemoved:
		return "removed"
	case EventRedefined:
		return "redefined"
	case EventMoved:
		return "moved"
	case EventSelected:
		return "selected"
	case EventDeselected:
		return "deselected"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// MarshalText renders the kind by name.
func (k EventKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Event reports one change to a sketch.
type Event struct {
	Kind   EventKind    `json:"kind"`
	Handle graph.Handle `json:"handle"`
	Frame  uint64       `json:"frame"`
}
