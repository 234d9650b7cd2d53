// Package lasso turns a pointer drag into a sampled polygon and applies
// it to the active image's visibility mask.
package lasso

import (
	"log/slog"
	"time"

	"sample-annotator/internal/asset"
	"sample-annotator/internal/undo"
	"sample-annotator/pkg/geometry"
)

const (
	// minSampleDistSq bounds oversampling on fast hardware: a new point
	// is recorded only after the pointer moved at least this far
	// (squared view pixels) from the last sample.
	minSampleDistSq = 1.0

	// maxSampleInterval bounds undersampling on slow pointer delivery: a
	// sample is recorded regardless of distance after this much time.
	maxSampleInterval = 45 * time.Millisecond

	// minCommitPoints is the smallest polygon worth applying; anything
	// shorter is a tap and is discarded without touching the mask.
	minCommitPoints = 3
)

// Gesture is an in-progress lasso polygon. It exists only between
// pointer-down and pointer-up/cancel on a mask tool.
type Gesture struct {
	Tool      asset.Tool
	ImageID   string
	pointerID int64

	imagePts   []geometry.Point2D // image-space, clamped to bitmap bounds
	viewPts    []geometry.Point2D // preview-space, for stroke rendering
	lastSample time.Time
}

// ViewPoints returns the preview-space samples for rendering the
// in-progress stroke.
func (g *Gesture) ViewPoints() []geometry.Point2D { return g.viewPts }

// Controller is the lasso gesture state machine: idle -> drawing -> idle.
type Controller struct {
	store  *asset.Store
	undos  *undo.Stack
	logger *slog.Logger

	gesture *Gesture // nil while idle

	now func() time.Time
}

// NewController creates an idle lasso controller.
func NewController(store *asset.Store, undos *undo.Stack, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		store:  store,
		undos:  undos,
		logger: logger,
		now:    time.Now,
	}
}

// Drawing reports whether a gesture is in progress.
func (c *Controller) Drawing() bool { return c.gesture != nil }

// Active returns the in-progress gesture, or nil while idle.
func (c *Controller) Active() *Gesture { return c.gesture }

// Begin starts a lasso gesture. toImage maps view coordinates into image
// space through the inverse of the current viewport transform. Returns
// false (no capture) when the controller is busy or the asset isn't ready.
func (c *Controller) Begin(tool asset.Tool, imageID string, pointerID int64, viewPos geometry.Point2D, toImage func(geometry.Point2D) geometry.Point2D) bool {
	if c.gesture != nil {
		return false
	}
	a := c.store.Get(imageID)
	if a == nil {
		return false
	}

	pt := geometry.ClampPoint(toImage(viewPos), float64(a.Width()), float64(a.Height()))
	c.gesture = &Gesture{
		Tool:       tool,
		ImageID:    imageID,
		pointerID:  pointerID,
		imagePts:   []geometry.Point2D{pt},
		viewPts:    []geometry.Point2D{viewPos},
		lastSample: c.now(),
	}
	return true
}

// Extend appends a sample to the gesture owned by pointerID. Samples
// closer than the distance threshold are skipped unless the interval
// timer has elapsed.
func (c *Controller) Extend(pointerID int64, viewPos geometry.Point2D, toImage func(geometry.Point2D) geometry.Point2D) {
	g := c.gesture
	if g == nil || g.pointerID != pointerID {
		return
	}

	last := g.viewPts[len(g.viewPts)-1]
	if viewPos.DistanceSq(last) < minSampleDistSq && c.now().Sub(g.lastSample) < maxSampleInterval {
		return
	}

	a := c.store.Get(g.ImageID)
	if a == nil {
		return
	}
	pt := geometry.ClampPoint(toImage(viewPos), float64(a.Width()), float64(a.Height()))
	g.imagePts = append(g.imagePts, pt)
	g.viewPts = append(g.viewPts, viewPos)
	g.lastSample = c.now()
}

// Commit closes and applies the polygon for the gesture owned by
// pointerID. Gestures with fewer than 3 points are silently discarded:
// no mask change, no undo entry. Returns true if the mask was edited.
func (c *Controller) Commit(pointerID int64) bool {
	g := c.gesture
	if g == nil || g.pointerID != pointerID {
		return false
	}
	c.gesture = nil

	if len(g.imagePts) < minCommitPoints {
		return false
	}

	before := c.store.SnapshotMask(g.ImageID)
	if before == nil {
		return false
	}
	c.store.ApplyPolygon(g.ImageID, g.imagePts, g.Tool)
	after := c.store.SnapshotMask(g.ImageID)

	desc := "Erase mask region"
	if g.Tool == asset.ToolRestore {
		desc = "Restore mask region"
	}
	id := g.ImageID
	c.undos.Push(undo.Action{
		Description: desc,
		Undo:        func() { c.store.RestoreMask(id, before) },
		Redo:        func() { c.store.RestoreMask(id, after) },
	})

	c.logger.Debug("lasso committed", "image", id, "tool", desc, "points", len(g.imagePts))
	return true
}

// Cancel force-exits the drawing state without applying the polygon.
// Used when the tool or the selected image changes mid-gesture.
func (c *Controller) Cancel() {
	c.gesture = nil
}
