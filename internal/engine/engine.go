// Package engine is the annotation facade: it owns the active tool and
// image, routes pointer and wheel events to the viewport, lasso, and
// selection subsystems, and exposes the outputs the submission pipeline
// reads.
package engine

import (
	"fmt"
	"image"
	"io"
	"log/slog"
	"sync"

	"sample-annotator/internal/asset"
	"sample-annotator/internal/compositor"
	"sample-annotator/internal/lasso"
	"sample-annotator/internal/selection"
	"sample-annotator/internal/undo"
	"sample-annotator/internal/viewport"
	"sample-annotator/pkg/geometry"
)

// Tool selects how pointer input is interpreted.
type Tool int

const (
	ToolNone Tool = iota
	ToolPan
	ToolTranslate
	ToolRotate
	ToolErase
	ToolRestore
)

// String returns the tool name used in logs and the toolbar.
func (t Tool) String() string {
	switch t {
	case ToolPan:
		return "pan"
	case ToolTranslate:
		return "move"
	case ToolRotate:
		return "rotate"
	case ToolErase:
		return "erase"
	case ToolRestore:
		return "restore"
	default:
		return "none"
	}
}

// selectionTool reports whether the tool operates on the selection guide.
func (t Tool) selectionTool() bool {
	return t == ToolTranslate || t == ToolRotate
}

// maskTool reports whether the tool edits the visibility mask.
func (t Tool) maskTool() bool {
	return t == ToolErase || t == ToolRestore
}

// PointerEvent is one pointer sample in container CSS coordinates.
type PointerEvent struct {
	ID  int64
	Pos geometry.Point2D

	// Secondary is set for right-button input, which flips the mask
	// tool for the duration of the gesture.
	Secondary bool

	// Modifier is set while the gesture modifier key is held. It turns
	// a translate drag into a scale drag and a rotate drag into a roll.
	Modifier bool
}

// WheelEvent is one wheel tick at a pointer position.
type WheelEvent struct {
	Pos    geometry.Point2D
	DeltaX float64
	DeltaY float64
}

// owner identifies which subsystem captured a pointer.
type owner int

const (
	ownerPan owner = iota
	ownerLasso
	ownerSelection
)

// Engine wires the annotation subsystems together. Each pointer is
// captured by at most one subsystem for the lifetime of its gesture;
// events for uncaptured pointers are dropped.
type Engine struct {
	assets     *asset.Store
	selections *selection.Store
	vp         *viewport.Viewport
	lassoCtl   *lasso.Controller
	gestures   *selection.Engine
	comp       *compositor.Compositor
	undos      *undo.Stack
	logger     *slog.Logger

	mu               sync.Mutex
	imageID          string
	tool             Tool
	view             geometry.Size
	maskVisible      bool
	selectionVisible bool

	captures map[int64]owner
}

// New assembles an engine and its subsystems around shared stores.
func New(assets *asset.Store, selections *selection.Store, undos *undo.Stack, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	vp := viewport.New()
	lassoCtl := lasso.NewController(assets, undos, logger)
	e := &Engine{
		assets:           assets,
		selections:       selections,
		vp:               vp,
		lassoCtl:         lassoCtl,
		gestures:         selection.NewEngine(selections, undos, logger),
		comp:             compositor.New(assets, selections, vp, lassoCtl, logger),
		undos:            undos,
		logger:           logger,
		tool:             ToolPan,
		maskVisible:      true,
		selectionVisible: true,
		captures:         make(map[int64]owner),
	}
	return e
}

// Compositor returns the overlay compositor for the rendering surface.
func (e *Engine) Compositor() *compositor.Compositor { return e.comp }

// Viewport returns the pan/zoom state.
func (e *Engine) Viewport() *viewport.Viewport { return e.vp }

// SetView records the container size in CSS pixels.
func (e *Engine) SetView(view geometry.Size) {
	e.mu.Lock()
	e.view = view
	e.mu.Unlock()
	e.syncFrame()
}

// View returns the last recorded container size.
func (e *Engine) View() geometry.Size {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.view
}

// SelectImage switches the active image, loading it on first use. Any
// in-flight gesture is cancelled and the viewport resets; the image's
// own mask and selection state carry over from previous sessions.
func (e *Engine) SelectImage(imageID, path string) error {
	if err := e.assets.Ensure(imageID, path); err != nil {
		return fmt.Errorf("select image %s: %w", imageID, err)
	}
	e.activate(imageID)
	return nil
}

// SelectImageReader is SelectImage for an already-open source, used by
// tests and drag-and-drop.
func (e *Engine) SelectImageReader(imageID string, r io.Reader) error {
	if err := e.assets.EnsureReader(imageID, r); err != nil {
		return fmt.Errorf("select image %s: %w", imageID, err)
	}
	e.activate(imageID)
	return nil
}

func (e *Engine) activate(imageID string) {
	e.cancelGestures()

	e.mu.Lock()
	e.imageID = imageID
	view := e.view
	e.mu.Unlock()

	e.vp.Reset(view)
	e.syncFrame()
	e.logger.Info("image activated", "image", imageID)
}

// ImageID returns the active image id, or "" when none is selected.
func (e *Engine) ImageID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.imageID
}

// SetTool switches the active tool, cancelling any in-flight gesture so
// a drag never straddles two interpretations.
func (e *Engine) SetTool(t Tool) {
	e.mu.Lock()
	if e.tool == t {
		e.mu.Unlock()
		return
	}
	e.tool = t
	e.mu.Unlock()

	e.cancelGestures()
	e.syncFrame()
}

// Tool returns the active tool.
func (e *Engine) Tool() Tool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tool
}

// SetMaskVisible toggles the mask indicator overlay.
func (e *Engine) SetMaskVisible(v bool) {
	e.mu.Lock()
	e.maskVisible = v
	e.mu.Unlock()
	e.syncFrame()
}

// SetSelectionVisible toggles the selection guide overlay.
func (e *Engine) SetSelectionVisible(v bool) {
	e.mu.Lock()
	e.selectionVisible = v
	e.mu.Unlock()
	e.syncFrame()
}

// SetDimensions updates the active image's sample measurements. Nil
// removes the selection entirely.
func (e *Engine) SetDimensions(d *selection.Dimensions) {
	id := e.ImageID()
	if id == "" {
		return
	}
	e.selections.SetDimensions(id, d)
	e.syncFrame()
	e.comp.MarkDirty()
}

// cancelGestures aborts everything in flight across all subsystems.
func (e *Engine) cancelGestures() {
	e.mu.Lock()
	e.captures = make(map[int64]owner)
	e.mu.Unlock()

	e.vp.CancelPan()
	e.lassoCtl.Cancel()
	e.gestures.CancelAll()
	e.comp.MarkDirty()
}

// syncFrame pushes the current display state to the compositor.
func (e *Engine) syncFrame() {
	e.mu.Lock()
	f := compositor.Frame{
		ImageID:          e.imageID,
		View:             e.view,
		MaskVisible:      e.maskVisible,
		SelectionVisible: e.selectionVisible,
	}
	e.mu.Unlock()
	e.comp.SetFrame(f)
}

// toImage returns the view-to-image mapping closure handed to the lasso
// controller, bound to the current viewport transform.
func (e *Engine) toImage(imageID string, view geometry.Size) func(geometry.Point2D) geometry.Point2D {
	return func(p geometry.Point2D) geometry.Point2D {
		mapped, ok := e.comp.ViewToImage(imageID, view, p)
		if !ok {
			return p
		}
		return mapped
	}
}

// PointerDown begins a gesture for the event's pointer according to the
// active tool. A pointer already captured by a gesture is left alone.
func (e *Engine) PointerDown(ev PointerEvent) {
	e.mu.Lock()
	tool := e.tool
	imageID := e.imageID
	view := e.view
	_, busy := e.captures[ev.ID]
	e.mu.Unlock()
	if busy || imageID == "" {
		return
	}

	switch {
	case tool == ToolPan:
		if e.vp.BeginPan(ev.ID, ev.Pos) {
			e.capture(ev.ID, ownerPan)
		}

	case tool.maskTool():
		mask := asset.ToolErase
		if tool == ToolRestore {
			mask = asset.ToolRestore
		}
		// Right button runs the opposite mask tool for one gesture.
		if ev.Secondary {
			if mask == asset.ToolErase {
				mask = asset.ToolRestore
			} else {
				mask = asset.ToolErase
			}
		}
		if e.lassoCtl.Begin(mask, imageID, ev.ID, ev.Pos, e.toImage(imageID, view)) {
			e.capture(ev.ID, ownerLasso)
			e.comp.MarkDirty()
		}

	case tool == ToolTranslate:
		// Only a press inside the projected guide quad grabs it.
		quad, ok := e.comp.GuideQuad(imageID, view)
		if !ok || !geometry.PointInPolygon(ev.Pos, quad[:]) {
			return
		}
		if e.gestures.BeginTranslate(imageID, ev.ID, ev.Pos) {
			e.capture(ev.ID, ownerSelection)
		}

	case tool == ToolRotate:
		rect, ok := e.comp.GuideViewRect(imageID, view)
		if !ok {
			return
		}
		center := rect.Center()
		radius := center.Distance(geometry.Point2D{X: rect.X, Y: rect.Y})
		if e.gestures.BeginRotate(imageID, ev.ID, ev.Pos, ev.Modifier, center, radius) {
			e.capture(ev.ID, ownerSelection)
		}
	}
}

func (e *Engine) capture(id int64, o owner) {
	e.mu.Lock()
	e.captures[id] = o
	e.mu.Unlock()
}

// PointerMove advances the gesture that captured the event's pointer.
func (e *Engine) PointerMove(ev PointerEvent) {
	e.mu.Lock()
	o, ok := e.captures[ev.ID]
	imageID := e.imageID
	view := e.view
	e.mu.Unlock()
	if !ok {
		return
	}

	switch o {
	case ownerPan:
		e.vp.Pan(ev.ID, ev.Pos)
	case ownerLasso:
		e.lassoCtl.Extend(ev.ID, ev.Pos, e.toImage(imageID, view))
		e.comp.MarkDirty()
	case ownerSelection:
		e.gestures.Update(ev.ID, ev.Pos, ev.Modifier, e.vp.Scale())
		e.comp.MarkDirty()
	}
}

// PointerUp completes the gesture that captured the event's pointer.
func (e *Engine) PointerUp(ev PointerEvent) {
	e.mu.Lock()
	o, ok := e.captures[ev.ID]
	if ok {
		delete(e.captures, ev.ID)
	}
	e.mu.Unlock()
	if !ok {
		return
	}

	switch o {
	case ownerPan:
		e.vp.EndPan(ev.ID)
	case ownerLasso:
		e.lassoCtl.Commit(ev.ID)
		e.comp.MarkDirty()
	case ownerSelection:
		e.gestures.End(ev.ID)
		e.comp.MarkDirty()
	}
}

// PointerCancel aborts the gesture that captured the event's pointer
// without applying it.
func (e *Engine) PointerCancel(ev PointerEvent) {
	e.mu.Lock()
	o, ok := e.captures[ev.ID]
	if ok {
		delete(e.captures, ev.ID)
	}
	e.mu.Unlock()
	if !ok {
		return
	}

	switch o {
	case ownerPan:
		e.vp.CancelPan()
	case ownerLasso:
		e.lassoCtl.Cancel()
	case ownerSelection:
		e.gestures.CancelAll()
	}
	e.comp.MarkDirty()
}

// Wheel routes a wheel tick: with a selection tool active and a drawable
// selection it scales the guide, otherwise it zooms the viewport toward
// the cursor.
func (e *Engine) Wheel(ev WheelEvent) {
	e.mu.Lock()
	tool := e.tool
	imageID := e.imageID
	e.mu.Unlock()
	if imageID == "" {
		return
	}

	if tool.selectionTool() {
		if st, ok := e.selections.Get(imageID); ok && st.Drawable() {
			e.gestures.WheelScale(imageID, ev.DeltaX, ev.DeltaY)
			e.comp.MarkDirty()
			return
		}
	}
	e.vp.Zoom(ev.Pos, ev.DeltaX, ev.DeltaY)
}

// ResetViewport restores the default pan/zoom for the current view.
func (e *Engine) ResetViewport() {
	e.vp.Reset(e.View())
}

// Undo reverts the most recent committed edit.
func (e *Engine) Undo() bool {
	ok := e.undos.Undo()
	if ok {
		e.comp.MarkDirty()
	}
	return ok
}

// Redo reapplies the most recently undone edit.
func (e *Engine) Redo() bool {
	ok := e.undos.Redo()
	if ok {
		e.comp.MarkDirty()
	}
	return ok
}

// CanUndo reports whether an edit is available to revert.
func (e *Engine) CanUndo() bool { return e.undos.CanUndo() }

// CanRedo reports whether an undone edit is available to reapply.
func (e *Engine) CanRedo() bool { return e.undos.CanRedo() }

// MaskImage returns the active image's visibility mask, or nil when the
// mask has never been edited so the submission can skip it entirely.
func (e *Engine) MaskImage() *image.Alpha {
	id := e.ImageID()
	if id == "" || !e.assets.MaskEdited(id) {
		return nil
	}
	return e.assets.Mask(id)
}

// SelectionDescriptor returns the active image's normalized selection
// record, or nil when no drawable selection exists.
func (e *Engine) SelectionDescriptor() *selection.Descriptor {
	e.mu.Lock()
	id := e.imageID
	view := e.view
	e.mu.Unlock()
	if id == "" {
		return nil
	}
	st, ok := e.selections.Get(id)
	if !ok || !st.Drawable() {
		return nil
	}
	return selection.Describe(st, e.comp.ContentSize(id, view))
}
