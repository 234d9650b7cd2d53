// Package annotator provides the annotation canvas widget: it renders
// the compositor's backing store and translates Fyne input events into
// engine pointer and wheel events.
package annotator

import (
	"image"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"sample-annotator/internal/engine"
	"sample-annotator/pkg/geometry"
)

// mousePointerID is the pointer id used for the single desktop mouse.
const mousePointerID = 1

// Canvas is the annotation surface. It draws through canvas.Raster,
// whose draw callback receives device pixel dimensions, so rendering is
// DPI-aware without consulting the scale factor directly.
type Canvas struct {
	widget.BaseWidget

	eng    *engine.Engine
	raster *fynecanvas.Raster

	// shiftHeld mirrors the modifier key while the canvas has focus; it
	// turns a move drag into a scale drag and an arcball into a roll.
	shiftHeld bool

	// secondary remembers the button that started the current drag so
	// Dragged events keep the same interpretation.
	secondary bool
}

// NewCanvas creates the annotation canvas for an engine.
func NewCanvas(eng *engine.Engine) *Canvas {
	c := &Canvas{eng: eng}
	c.raster = fynecanvas.NewRaster(func(w, h int) image.Image {
		return eng.Compositor().Render(w, h)
	})
	c.raster.ScaleMode = fynecanvas.ImageScaleFastest
	c.ExtendBaseWidget(c)
	return c
}

// CreateRenderer implements fyne.Widget.
func (c *Canvas) CreateRenderer() fyne.WidgetRenderer {
	return &canvasRenderer{canvas: c}
}

func pos(p fyne.Position) geometry.Point2D {
	return geometry.Point2D{X: float64(p.X), Y: float64(p.Y)}
}

// MouseDown implements desktop.Mouseable.
func (c *Canvas) MouseDown(ev *desktop.MouseEvent) {
	c.secondary = ev.Button == desktop.MouseButtonSecondary
	c.eng.PointerDown(engine.PointerEvent{
		ID:        mousePointerID,
		Pos:       pos(ev.Position),
		Secondary: c.secondary,
		Modifier:  c.shiftHeld,
	})
	c.raster.Refresh()
}

// MouseUp implements desktop.Mouseable.
func (c *Canvas) MouseUp(ev *desktop.MouseEvent) {
	c.eng.PointerUp(engine.PointerEvent{
		ID:        mousePointerID,
		Pos:       pos(ev.Position),
		Secondary: c.secondary,
		Modifier:  c.shiftHeld,
	})
	c.secondary = false
	c.raster.Refresh()
}

// Dragged implements fyne.Draggable.
func (c *Canvas) Dragged(ev *fyne.DragEvent) {
	c.eng.PointerMove(engine.PointerEvent{
		ID:        mousePointerID,
		Pos:       pos(ev.Position),
		Secondary: c.secondary,
		Modifier:  c.shiftHeld,
	})
	c.raster.Refresh()
}

// DragEnd implements fyne.Draggable. MouseUp carries the gesture end.
func (c *Canvas) DragEnd() {}

// Scrolled implements fyne.Scrollable. Fyne reports scroll-up as a
// positive DY; the engine expects the wheel convention where a positive
// delta moves away, so the sign flips here.
func (c *Canvas) Scrolled(ev *fyne.ScrollEvent) {
	c.eng.Wheel(engine.WheelEvent{
		Pos:    pos(ev.Position),
		DeltaX: -float64(ev.Scrolled.DX),
		DeltaY: -float64(ev.Scrolled.DY),
	})
	c.raster.Refresh()
}

// FocusGained implements fyne.Focusable.
func (c *Canvas) FocusGained() {}

// FocusLost implements fyne.Focusable. A modifier key released while
// unfocused would otherwise leave shiftHeld stuck.
func (c *Canvas) FocusLost() {
	c.shiftHeld = false
}

// TypedRune implements fyne.Focusable.
func (c *Canvas) TypedRune(rune) {}

// TypedKey implements fyne.Focusable.
func (c *Canvas) TypedKey(*fyne.KeyEvent) {}

// KeyDown implements desktop.Keyable.
func (c *Canvas) KeyDown(ev *fyne.KeyEvent) {
	if ev.Name == desktop.KeyShiftLeft || ev.Name == desktop.KeyShiftRight {
		c.shiftHeld = true
	}
}

// KeyUp implements desktop.Keyable.
func (c *Canvas) KeyUp(ev *fyne.KeyEvent) {
	if ev.Name == desktop.KeyShiftLeft || ev.Name == desktop.KeyShiftRight {
		c.shiftHeld = false
	}
}

// Refresh repaints the canvas.
func (c *Canvas) Refresh() {
	c.eng.Compositor().MarkDirty()
	c.raster.Refresh()
	c.BaseWidget.Refresh()
}

type canvasRenderer struct {
	canvas *Canvas
}

func (r *canvasRenderer) Layout(size fyne.Size) {
	r.canvas.raster.Resize(size)
	r.canvas.eng.SetView(geometry.Size{
		Width:  float64(size.Width),
		Height: float64(size.Height),
	})
}

func (r *canvasRenderer) MinSize() fyne.Size {
	return fyne.NewSize(400, 300)
}

func (r *canvasRenderer) Refresh() {
	r.canvas.raster.Refresh()
}

func (r *canvasRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.canvas.raster}
}

func (r *canvasRenderer) Destroy() {}
