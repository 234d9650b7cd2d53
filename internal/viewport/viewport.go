// Package viewport holds the pan/zoom state of the preview pane.
package viewport

import (
	"math"

	"sample-annotator/pkg/geometry"
)

const (
	// MinScale and MaxScale clamp the viewport zoom.
	MinScale = 0.4
	MaxScale = 6.0

	// wheelZoomRate converts wheel delta into an exponential zoom factor.
	wheelZoomRate = 0.0015

	// insetScale leaves a margin around the image after a reset so lasso
	// strokes can start beyond its edges.
	insetScale = 0.92
)

// Viewport is the pan/zoom transform applied to the displayed image.
// At most one pointer may pan at a time; a second pointer-down while
// panning is ignored.
type Viewport struct {
	scale  float64
	offset geometry.Point2D

	panning        bool
	panPointer     int64
	panStartOffset geometry.Point2D
	panStartPos    geometry.Point2D

	onChange func()
}

// New creates a viewport at identity.
func New() *Viewport {
	return &Viewport{scale: 1}
}

// OnChange registers a callback invoked synchronously after every state
// change, so the overlay stays aligned with the image during drags.
func (v *Viewport) OnChange(fn func()) {
	v.onChange = fn
}

func (v *Viewport) notify() {
	if v.onChange != nil {
		v.onChange()
	}
}

// Scale returns the current zoom factor.
func (v *Viewport) Scale() float64 { return v.scale }

// Offset returns the current translation in view pixels.
func (v *Viewport) Offset() geometry.Point2D { return v.offset }

// Panning reports whether a pan gesture is in progress.
func (v *Viewport) Panning() bool { return v.panning }

// BeginPan starts a pan gesture for the given pointer. Returns false if
// another pointer already owns the pan.
func (v *Viewport) BeginPan(pointerID int64, pos geometry.Point2D) bool {
	if v.panning {
		return false
	}
	v.panning = true
	v.panPointer = pointerID
	v.panStartOffset = v.offset
	v.panStartPos = pos
	return true
}

// Pan translates the offset by the pointer delta since pan start,
// mapping movement 1:1 with no acceleration.
func (v *Viewport) Pan(pointerID int64, pos geometry.Point2D) {
	if !v.panning || pointerID != v.panPointer {
		return
	}
	v.offset = v.panStartOffset.Add(pos.Sub(v.panStartPos))
	v.notify()
}

// EndPan finishes the pan gesture for the given pointer.
func (v *Viewport) EndPan(pointerID int64) {
	if !v.panning || pointerID != v.panPointer {
		return
	}
	v.panning = false
}

// CancelPan force-exits any in-progress pan.
func (v *Viewport) CancelPan() {
	v.panning = false
}

// Zoom applies a wheel delta at the given cursor position, keeping the
// point under the cursor fixed on screen. When the vertical delta is
// zero the horizontal delta is used, so shift-scroll still zooms.
func (v *Viewport) Zoom(cursor geometry.Point2D, deltaX, deltaY float64) {
	delta := deltaY
	if delta == 0 {
		delta = deltaX
	}
	if delta == 0 {
		return
	}

	newScale := v.scale * math.Exp(-delta*wheelZoomRate)
	newScale = clampScale(newScale)
	if newScale == v.scale {
		return
	}

	factor := newScale / v.scale
	v.offset = geometry.Point2D{
		X: cursor.X - factor*(cursor.X-v.offset.X),
		Y: cursor.Y - factor*(cursor.Y-v.offset.Y),
	}
	v.scale = newScale
	v.notify()
}

// Reset restores the default viewport: slightly inset and centered within
// the given view size, or identity when the view size is unknown.
func (v *Viewport) Reset(view geometry.Size) {
	v.panning = false
	if view.IsZero() {
		v.scale = 1
		v.offset = geometry.Point2D{}
	} else {
		v.scale = insetScale
		v.offset = geometry.Point2D{
			X: view.Width * (1 - insetScale) / 2,
			Y: view.Height * (1 - insetScale) / 2,
		}
	}
	v.notify()
}

// Transform returns the view transform: translate by offset, then scale.
// The same value is applied to the rendering surface and inverted for
// pointer coordinate mapping.
func (v *Viewport) Transform() geometry.AffineTransform {
	return geometry.Translation(v.offset.X, v.offset.Y).
		Compose(geometry.ScaleTransform(v.scale))
}

// ViewToContent maps a view-space point into content (pre-transform)
// coordinates.
func (v *Viewport) ViewToContent(p geometry.Point2D) geometry.Point2D {
	inv, ok := v.Transform().Inverse()
	if !ok {
		return p
	}
	return inv.Apply(p)
}

// ContentToView maps a content-space point into view coordinates.
func (v *Viewport) ContentToView(p geometry.Point2D) geometry.Point2D {
	return v.Transform().Apply(p)
}

func clampScale(s float64) float64 {
	if s < MinScale {
		return MinScale
	}
	if s > MaxScale {
		return MaxScale
	}
	return s
}
