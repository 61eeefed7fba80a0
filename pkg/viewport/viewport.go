// Package viewport maps between virtual (construction) coordinates and actual
// (screen pixel) coordinates. Virtual y grows upwards, actual y grows down.
package viewport

import (
	"fmt"

	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
)

// Transform is the pair of coordinate mappings consumed by the spatial hash
// and the snap helper, together with the visible area in actual space.
type Transform interface {
	ToActual(p v2.Vec) v2.Vec
	ToVirtual(p v2.Vec) v2.Vec
	ActualBounds() sdf.Box2
}

// Viewport is a pan/zoom camera over the construction plane.
type Viewport struct {
	center v2.Vec  // virtual point shown at the middle of the window
	size   v2.Vec  // window size in pixels
	scale  float64 // virtual units per pixel

	toActual  sdf.M33
	toVirtual sdf.M33
}

var _ Transform = (*Viewport)(nil)

// New returns a viewport of the given pixel size centred on the virtual
// origin. scale is in virtual units per pixel and must be positive.
func New(width, height, scale float64) (*Viewport, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("viewport: size must be positive, got %gx%g", width, height)
	}
	if scale <= 0 {
		return nil, fmt.Errorf("viewport: scale must be positive, got %g", scale)
	}
	vp := &Viewport{
		size:  v2.Vec{X: width, Y: height},
		scale: scale,
	}
	vp.update()
	return vp, nil
}

func (vp *Viewport) update() {
	half := vp.size.MulScalar(0.5)
	inv := 1 / vp.scale
	vp.toActual = sdf.Translate2d(half).
		Mul(sdf.Scale2d(v2.Vec{X: inv, Y: -inv})).
		Mul(sdf.Translate2d(vp.center.Neg()))
	vp.toVirtual = vp.toActual.Inverse()
}

// ToActual maps a virtual coordinate to pixels.
func (vp *Viewport) ToActual(p v2.Vec) v2.Vec { return vp.toActual.MulPosition(p) }

// ToVirtual maps a pixel coordinate to the construction plane.
func (vp *Viewport) ToVirtual(p v2.Vec) v2.Vec { return vp.toVirtual.MulPosition(p) }

// ActualBounds is the window rectangle in pixels.
func (vp *Viewport) ActualBounds() sdf.Box2 {
	return sdf.Box2{Min: v2.Vec{}, Max: vp.size}
}

// VirtualBounds is the visible part of the construction plane.
func (vp *Viewport) VirtualBounds() sdf.Box2 {
	a := vp.ToVirtual(v2.Vec{})
	b := vp.ToVirtual(vp.size)
	return sdf.Box2{
		Min: v2.Vec{X: min(a.X, b.X), Y: min(a.Y, b.Y)},
		Max: v2.Vec{X: max(a.X, b.X), Y: max(a.Y, b.Y)},
	}
}

// Center returns the virtual point at the middle of the window.
func (vp *Viewport) Center() v2.Vec { return vp.center }

// Size returns the window size in pixels.
func (vp *Viewport) Size() v2.Vec { return vp.size }

// Scale returns virtual units per pixel.
func (vp *Viewport) Scale() float64 { return vp.scale }

// Pan moves the view by a pixel delta, as when dragging the canvas.
func (vp *Viewport) Pan(delta v2.Vec) {
	vp.center = vp.center.Sub(v2.Vec{X: delta.X * vp.scale, Y: -delta.Y * vp.scale})
	vp.update()
}

// Zoom multiplies the magnification by factor, keeping the virtual point
// under anchor (pixels) fixed. Non-positive factors are ignored.
func (vp *Viewport) Zoom(factor float64, anchor v2.Vec) {
	if factor <= 0 {
		return
	}
	fixed := vp.ToVirtual(anchor)
	vp.scale /= factor
	vp.update()
	drift := vp.ToVirtual(anchor).Sub(fixed)
	vp.center = vp.center.Sub(drift)
	vp.update()
}

// Resize changes the window size, keeping the centre.
func (vp *Viewport) Resize(width, height float64) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("viewport: size must be positive, got %gx%g", width, height)
	}
	vp.size = v2.Vec{X: width, Y: height}
	vp.update()
	return nil
}
