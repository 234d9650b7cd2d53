// Package selection holds the per-image selection guide transform: a
// rectangle with 2D offset, uniform scale, and free 3D rotation that
// marks the true in-plane shape of the photographed sample.
package selection

import (
	"math"

	"sample-annotator/pkg/geometry"
	"sample-annotator/pkg/quaternion"
)

const (
	// MinScale and MaxScale clamp the guide's uniform scale.
	MinScale = 0.1
	MaxScale = 10.0

	// baseFraction sizes the guide's larger base dimension relative to
	// the smaller image-content axis.
	baseFraction = 0.22

	// maxAxisFraction caps either base dimension relative to its
	// content axis.
	maxAxisFraction = 0.9
)

// Dimensions are the externally supplied physical measurements of the
// sample. Only a selection with positive length and width is drawn.
type Dimensions struct {
	Length    float64 `json:"length"`
	Width     float64 `json:"width"`
	Thickness float64 `json:"thickness"`
}

// HasShape reports whether both in-plane measurements are present.
func (d Dimensions) HasShape() bool {
	return d.Length > 0 && d.Width > 0
}

// State is the persisted transform of one image's selection guide.
type State struct {
	Dimensions *Dimensions           `json:"dimensions,omitempty"`
	Offset     geometry.Point2D      `json:"offset"`
	Scale      float64               `json:"scale"`
	Rotation   quaternion.Quaternion `json:"rotation"`
}

// DefaultState returns a guide centered at its default position, unit
// scale, flat orientation.
func DefaultState() State {
	return State{
		Scale:    1,
		Rotation: quaternion.Identity(),
	}
}

// Drawable reports whether the guide should be rendered at all.
func (s State) Drawable() bool {
	return s.Dimensions != nil && s.Dimensions.HasShape()
}

// ClampScale limits a guide scale to the allowed range.
func ClampScale(s float64) float64 {
	if s < MinScale {
		return MinScale
	}
	if s > MaxScale {
		return MaxScale
	}
	return s
}

// BaseSize computes the guide's unscaled on-screen size: the larger base
// dimension occupies baseFraction of the smaller content axis, preserving
// the length:width aspect, then both dimensions are clamped so neither
// exceeds maxAxisFraction of its content axis. Returns a zero size when
// the dimensions or the content area are unusable.
func BaseSize(d Dimensions, content geometry.Size) geometry.Size {
	if content.IsZero() || !d.HasShape() {
		return geometry.Size{}
	}

	aspect := math.Max(d.Length, d.Width) / math.Min(d.Length, d.Width)
	shorter := math.Min(content.Width, content.Height)
	larger := baseFraction * shorter
	smaller := larger / aspect

	var w, h float64
	if d.Length >= d.Width {
		w, h = larger, smaller
	} else {
		w, h = smaller, larger
	}

	if w > maxAxisFraction*content.Width {
		ratio := maxAxisFraction * content.Width / w
		w *= ratio
		h *= ratio
	}
	if h > maxAxisFraction*content.Height {
		ratio := maxAxisFraction * content.Height / h
		w *= ratio
		h *= ratio
	}
	return geometry.Size{Width: w, Height: h}
}

// GuideRect returns the guide rectangle in overlay coordinates before
// rotation: base size scaled by the state's scale, centered in the
// content area and shifted by the state's offset. The second return is
// false when there is nothing to draw.
func GuideRect(s State, content geometry.Size) (geometry.Rect, bool) {
	if !s.Drawable() {
		return geometry.Rect{}, false
	}
	base := BaseSize(*s.Dimensions, content)
	if base.IsZero() {
		return geometry.Rect{}, false
	}

	w := base.Width * s.Scale
	h := base.Height * s.Scale
	cx := content.Width/2 + s.Offset.X
	cy := content.Height/2 + s.Offset.Y
	return geometry.Rect{X: cx - w/2, Y: cy - h/2, Width: w, Height: h}, true
}

// Descriptor is the normalized selection record handed to the
// report-submission pipeline.
type Descriptor struct {
	Shape    geometry.Size         `json:"shape"`
	Position geometry.Point2D      `json:"position"` // center, normalized to [0,1] x [0,1]
	Scale    float64               `json:"scale"`
	Rotation quaternion.Quaternion `json:"rotation"`
}

// Describe derives the normalized descriptor for a state within the given
// content area, or nil when no selection exists.
func Describe(s State, content geometry.Size) *Descriptor {
	rect, ok := GuideRect(s, content)
	if !ok || content.IsZero() {
		return nil
	}
	center := rect.Center()
	return &Descriptor{
		Shape:    geometry.Size{Width: rect.Width, Height: rect.Height},
		Position: geometry.Point2D{X: center.X / content.Width, Y: center.Y / content.Height},
		Scale:    s.Scale,
		Rotation: s.Rotation.Normalize(),
	}
}
