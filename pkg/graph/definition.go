package graph

import (
	"fmt"

	"github.com/chazu/compass/pkg/kernel"
	v2 "github.com/deadsy/sdfx/vec/v2"
)

// Kind distinguishes points from lines.
type Kind int

const (
	KindPoint Kind = iota
	KindLine
)

func (k Kind) String() string {
	switch k {
	case KindPoint:
		return "point"
	case KindLine:
		return "line"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// MarshalText renders the kind by name.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText parses a kind name.
func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "point":
		*k = KindPoint
	case "line":
		*k = KindLine
	default:
		return fmt.Errorf("graph: unknown kind %q", b)
	}
	return nil
}

// Definition is the symbolic definition of an object. Implementations are
// the types in this file.
type Definition interface {
	// Kind is the kind of object the definition produces.
	Kind() Kind
	// Parents lists the handles the definition depends on, in argument order.
	Parents() []Handle
	// Describe renders the definition for logs and CLI output.
	Describe() string

	definition() // marker method restricting implementations to this package
}

// ---------------------------------------------------------------------------
// Points
// ---------------------------------------------------------------------------

// FreePoint is an independent, user-placed point.
type FreePoint struct {
	At v2.Vec `json:"at"`
}

func (FreePoint) Kind() Kind        { return KindPoint }
func (FreePoint) Parents() []Handle { return nil }
func (d FreePoint) Describe() string {
	return fmt.Sprintf("free(%g, %g)", d.At.X, d.At.Y)
}
func (FreePoint) definition() {}

// OnLine is a point at signed arclength T from the line's origin, measured
// along its normalised direction.
type OnLine struct {
	Line Handle  `json:"line"`
	T    float64 `json:"t"`
}

func (OnLine) Kind() Kind          { return KindPoint }
func (d OnLine) Parents() []Handle { return []Handle{d.Line} }
func (d OnLine) Describe() string  { return fmt.Sprintf("on-line(%s, %g)", d.Line, d.T) }
func (OnLine) definition()         {}

// Intersection is the intersection point of two lines. It resolves to absent
// when the lines are parallel or coincident.
type Intersection struct {
	A Handle `json:"a"`
	B Handle `json:"b"`
}

func (Intersection) Kind() Kind          { return KindPoint }
func (d Intersection) Parents() []Handle { return []Handle{d.A, d.B} }
func (d Intersection) Describe() string  { return fmt.Sprintf("intersect(%s, %s)", d.A, d.B) }
func (Intersection) definition()         {}

// ---------------------------------------------------------------------------
// Lines
// ---------------------------------------------------------------------------

// LineThrough is the line with origin at From passing through Through.
type LineThrough struct {
	From    Handle `json:"from"`
	Through Handle `json:"through"`
}

func (LineThrough) Kind() Kind          { return KindLine }
func (d LineThrough) Parents() []Handle { return []Handle{d.From, d.Through} }
func (d LineThrough) Describe() string  { return fmt.Sprintf("line(%s, %s)", d.From, d.Through) }
func (LineThrough) definition()         {}

// FreeLine is a line given directly by origin and direction.
type FreeLine struct {
	Origin    v2.Vec `json:"origin"`
	Direction v2.Vec `json:"direction"`
}

func (FreeLine) Kind() Kind        { return KindLine }
func (FreeLine) Parents() []Handle { return nil }
func (d FreeLine) Describe() string {
	return fmt.Sprintf("free-line(%g, %g; %g, %g)", d.Origin.X, d.Origin.Y, d.Direction.X, d.Direction.Y)
}
func (FreeLine) definition() {}

// ---------------------------------------------------------------------------
// Resolved geometry
// ---------------------------------------------------------------------------

// Geometry is the concrete, resolved form of an object: Point for points,
// Line for lines.
type Geometry struct {
	Kind  Kind        `json:"kind"`
	Point v2.Vec      `json:"point"`
	Line  kernel.Line `json:"line"`
}

// PointGeometry wraps a resolved point.
func PointGeometry(p v2.Vec) Geometry { return Geometry{Kind: KindPoint, Point: p} }

// LineGeometry wraps a resolved line.
func LineGeometry(l kernel.Line) Geometry { return Geometry{Kind: KindLine, Line: l} }

// ---------------------------------------------------------------------------
// Style
// ---------------------------------------------------------------------------

// Style is the rendering metadata of an object. The core never reads it
// beyond carrying it to the draw list.
type Style struct {
	Label    string  `json:"label,omitempty"`
	Color    string  `json:"color"`
	Radius   float64 `json:"radius,omitempty"` // points, in pixels
	Width    float64 `json:"width,omitempty"`  // lines, in pixels
	Selected bool    `json:"selected,omitempty"`
}

// DefaultStyle returns the style new objects of kind k start with.
func DefaultStyle(k Kind) Style {
	if k == KindLine {
		return Style{Color: "#000000", Width: 1}
	}
	return Style{Color: "#E74C3C", Radius: 5}
}
