// Package compositor renders the annotation overlay: the image through
// the viewport transform, the mask tint over hidden regions, the
// in-progress lasso stroke, and the rotated selection guide, all into
// one aligned backing raster.
package compositor

import (
	"image"
	"log/slog"
	"math"
	"sync"

	"sample-annotator/internal/asset"
	"sample-annotator/internal/lasso"
	"sample-annotator/internal/selection"
	"sample-annotator/internal/viewport"
	"sample-annotator/pkg/geometry"
	"sample-annotator/pkg/quaternion"
)

const (
	// maxBackingDim caps either backing-store dimension; larger targets
	// are rendered at a proportionally reduced scale instead of failing.
	maxBackingDim = 4096

	// perspective is the stylized projection factor for the rotated
	// selection quad.
	perspective = 800.0
)

// Frame describes what the compositor should draw.
type Frame struct {
	ImageID          string
	View             geometry.Size // container size in CSS pixels
	MaskVisible      bool
	SelectionVisible bool
}

// Compositor owns the overlay backing store and the ordered draw steps.
// Repaints are coalesced: state changes mark the frame dirty, and the
// frame-driven Render call repaints at most once per frame with the most
// recent state.
type Compositor struct {
	assets     *asset.Store
	selections *selection.Store
	vp         *viewport.Viewport
	lassoCtl   *lasso.Controller
	logger     *slog.Logger

	mu      sync.Mutex
	frame   Frame
	dirty   bool
	backing *image.RGBA

	// stripe pattern cache, regenerated per distinct render scale
	stripe      *image.Alpha
	stripeScale float64
}

// New creates a compositor over the given stores and viewport.
func New(assets *asset.Store, selections *selection.Store, vp *viewport.Viewport, lassoCtl *lasso.Controller, logger *slog.Logger) *Compositor {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Compositor{
		assets:     assets,
		selections: selections,
		vp:         vp,
		lassoCtl:   lassoCtl,
		logger:     logger,
		dirty:      true,
	}
	vp.OnChange(c.MarkDirty)
	return c
}

// SetFrame updates the frame description and marks the compositor dirty
// when it changed.
func (c *Compositor) SetFrame(f Frame) {
	c.mu.Lock()
	if c.frame != f {
		c.frame = f
		c.dirty = true
	}
	c.mu.Unlock()
}

// MarkDirty schedules a repaint on the next Render call.
func (c *Compositor) MarkDirty() {
	c.mu.Lock()
	c.dirty = true
	c.mu.Unlock()
}

// FitRect returns the rectangle, in container CSS pixels, that the image
// occupies at viewport identity: fitted to the container preserving
// aspect, centered. Returns a zero rect when the asset isn't ready or
// the container has no size.
func (c *Compositor) FitRect(imageID string, view geometry.Size) geometry.Rect {
	a := c.assets.Get(imageID)
	if a == nil || view.IsZero() {
		return geometry.Rect{}
	}
	iw, ih := float64(a.Width()), float64(a.Height())
	scale := math.Min(view.Width/iw, view.Height/ih)
	w, h := iw*scale, ih*scale
	return geometry.Rect{
		X:      (view.Width - w) / 2,
		Y:      (view.Height - h) / 2,
		Width:  w,
		Height: h,
	}
}

// ContentSize returns the fitted image-content size used for selection
// guide layout.
func (c *Compositor) ContentSize(imageID string, view geometry.Size) geometry.Size {
	fit := c.FitRect(imageID, view)
	return geometry.Size{Width: fit.Width, Height: fit.Height}
}

// imageToView returns the transform from image pixels to container CSS
// pixels: fit placement composed with the viewport pan/zoom.
func (c *Compositor) imageToView(imageID string, view geometry.Size) (geometry.AffineTransform, bool) {
	a := c.assets.Get(imageID)
	if a == nil || view.IsZero() {
		return geometry.AffineTransform{}, false
	}
	fit := c.FitRect(imageID, view)
	fitScale := fit.Width / float64(a.Width())
	fitT := geometry.Translation(fit.X, fit.Y).Compose(geometry.ScaleTransform(fitScale))
	return c.vp.Transform().Compose(fitT), true
}

// ViewToImage maps a container CSS point into image pixel coordinates.
// Returns false when the asset isn't ready.
func (c *Compositor) ViewToImage(imageID string, view geometry.Size, p geometry.Point2D) (geometry.Point2D, bool) {
	t, ok := c.imageToView(imageID, view)
	if !ok {
		return geometry.Point2D{}, false
	}
	inv, ok := t.Inverse()
	if !ok {
		return geometry.Point2D{}, false
	}
	return inv.Apply(p), true
}

// GuideViewRect returns the selection guide's axis-aligned rectangle in
// container CSS pixels, before rotation. Used for hit-testing and to
// derive the arcball radius.
func (c *Compositor) GuideViewRect(imageID string, view geometry.Size) (geometry.Rect, bool) {
	st, ok := c.selections.Get(imageID)
	if !ok {
		return geometry.Rect{}, false
	}
	content := c.ContentSize(imageID, view)
	rect, ok := selection.GuideRect(st, content)
	if !ok {
		return geometry.Rect{}, false
	}
	fit := c.FitRect(imageID, view)
	tl := c.vp.Transform().Apply(geometry.Point2D{X: rect.X + fit.X, Y: rect.Y + fit.Y})
	s := c.vp.Scale()
	return geometry.Rect{X: tl.X, Y: tl.Y, Width: rect.Width * s, Height: rect.Height * s}, true
}

// GuideQuad returns the selection guide's corner points in container CSS
// pixels with the guide's rotation and perspective applied, clockwise
// from top-left. Shared by the guide renderer and pointer hit-testing.
func (c *Compositor) GuideQuad(imageID string, view geometry.Size) ([4]geometry.Point2D, bool) {
	st, ok := c.selections.Get(imageID)
	if !ok {
		return [4]geometry.Point2D{}, false
	}
	content := c.ContentSize(imageID, view)
	rect, ok := selection.GuideRect(st, content)
	if !ok {
		return [4]geometry.Point2D{}, false
	}
	fit := c.FitRect(imageID, view)
	viewT := c.vp.Transform()

	center := rect.Center()
	rotate := !st.Rotation.IsIdentity(1e-6)

	var quad [4]geometry.Point2D
	for i, corner := range rect.Corners() {
		p := corner
		if rotate {
			v := st.Rotation.RotateVec3(quaternion.Vec3{X: corner.X - center.X, Y: corner.Y - center.Y})
			denom := perspective - v.Z
			if denom < 1 {
				denom = 1
			}
			s := perspective / denom
			p = geometry.Point2D{X: center.X + v.X*s, Y: center.Y + v.Y*s}
		}
		quad[i] = viewT.Apply(p.Add(geometry.Point2D{X: fit.X, Y: fit.Y}))
	}
	return quad, true
}

// Render returns the overlay raster for a backing store of w x h device
// pixels. The cached backing is reused unless the frame is dirty or the
// target dimensions changed; reallocation happens only when the target
// pixel dimensions change.
func (c *Compositor) Render(w, h int) image.Image {
	c.mu.Lock()
	defer c.mu.Unlock()

	if w < 1 || h < 1 {
		if c.backing == nil {
			c.backing = image.NewRGBA(image.Rect(0, 0, 1, 1))
		}
		return c.backing
	}

	// Resource guard: render at a proportionally reduced scale rather
	// than allocating beyond the pixel cap.
	if w > maxBackingDim || h > maxBackingDim {
		ratio := math.Min(float64(maxBackingDim)/float64(w), float64(maxBackingDim)/float64(h))
		w = int(float64(w) * ratio)
		h = int(float64(h) * ratio)
	}

	if c.backing == nil || c.backing.Bounds().Dx() != w || c.backing.Bounds().Dy() != h {
		c.backing = image.NewRGBA(image.Rect(0, 0, w, h))
		c.dirty = true
	}
	if !c.dirty {
		return c.backing
	}
	c.dirty = false

	c.paint(w, h)
	return c.backing
}

// paint runs the draw pipeline into the backing store. Caller holds c.mu.
func (c *Compositor) paint(w, h int) {
	out := c.backing
	f := c.frame

	// Clear to the pane background (set alpha channel).
	for i := 0; i < len(out.Pix); i += 4 {
		out.Pix[i] = 0x1e
		out.Pix[i+1] = 0x1e
		out.Pix[i+2] = 0x22
		out.Pix[i+3] = 0xff
	}

	a := c.assets.Get(f.ImageID)
	if a == nil || f.View.IsZero() {
		return
	}

	renderScale := float64(w) / f.View.Width
	toView, ok := c.imageToView(f.ImageID, f.View)
	if !ok {
		return
	}
	// image pixels -> device pixels
	toDevice := geometry.ScaleTransform(renderScale).Compose(toView)
	fromDevice, ok := toDevice.Inverse()
	if !ok {
		return
	}

	c.drawImageAndMask(out, a, fromDevice, f.MaskVisible, renderScale)

	if g := c.lassoCtl.Active(); g != nil && g.ImageID == f.ImageID {
		c.drawLassoStroke(out, g, renderScale)
	}

	if f.SelectionVisible {
		c.drawGuide(out, f)
	}
}
