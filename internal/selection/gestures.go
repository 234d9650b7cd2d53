package selection

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"sample-annotator/internal/undo"
	"sample-annotator/pkg/geometry"
	"sample-annotator/pkg/quaternion"
)

const (
	// dragScaleRate converts vertical drag movement into a scale factor
	// when the scale modifier is held during a translate gesture.
	dragScaleRate = -0.002

	// wheelScaleRate converts wheel delta into an exponential scale factor.
	wheelScaleRate = 0.0015

	// wheelUndoDelay coalesces a burst of wheel ticks into one undo entry.
	wheelUndoDelay = 150 * time.Millisecond

	// parallelTol guards the arcball against near-parallel sample vectors,
	// whose cross product would produce a degenerate rotation axis.
	parallelTol = 1e-9
)

type gestureKind int

const (
	gestureTranslate gestureKind = iota
	gestureArcball
	gestureRoll
)

func (k gestureKind) label() string {
	switch k {
	case gestureTranslate:
		return "Move selection"
	case gestureArcball, gestureRoll:
		return "Rotate selection"
	default:
		return "Edit selection"
	}
}

// tracker follows one pointer through a selection gesture.
type tracker struct {
	kind    gestureKind
	imageID string
	start   State

	startPos geometry.Point2D

	// arcball
	startVec quaternion.Vec3
	center   geometry.Point2D
	radius   float64

	// roll
	startAngle float64

	// set when the modifier turned the translate drag into a scale drag
	scaled bool
}

// Engine routes selection gestures through a pointer-id to tracker map,
// with exactly one active tracker per pointer.
type Engine struct {
	mu     sync.Mutex
	store  *Store
	undos  *undo.Stack
	logger *slog.Logger

	trackers map[int64]*tracker

	wheelImage string
	wheelStart State
	wheelTimer *time.Timer
}

// NewEngine creates a selection gesture engine.
func NewEngine(store *Store, undos *undo.Stack, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:    store,
		undos:    undos,
		logger:   logger,
		trackers: make(map[int64]*tracker),
	}
}

func (e *Engine) currentState(imageID string) State {
	st, ok := e.store.Get(imageID)
	if !ok {
		st = DefaultState()
	}
	return st
}

// BeginTranslate starts a translate gesture (or, with the scale modifier
// held during the drag, a scale gesture). Returns false if the pointer
// already owns a tracker.
func (e *Engine) BeginTranslate(imageID string, pointerID int64, pos geometry.Point2D) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.trackers[pointerID]; busy {
		return false
	}
	e.trackers[pointerID] = &tracker{
		kind:     gestureTranslate,
		imageID:  imageID,
		start:    e.currentState(imageID),
		startPos: pos,
	}
	return true
}

// BeginRotate starts a rotation gesture around the guide's screen-space
// center. roll selects the Z-axis roll sub-mode; otherwise the arcball
// maps the pointer onto a hemisphere of the given radius. Returns false
// if the pointer is busy or the radius is degenerate.
func (e *Engine) BeginRotate(imageID string, pointerID int64, pos geometry.Point2D, roll bool, center geometry.Point2D, radius float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.trackers[pointerID]; busy {
		return false
	}
	if radius <= 0 {
		return false
	}

	t := &tracker{
		imageID:  imageID,
		start:    e.currentState(imageID),
		startPos: pos,
		center:   center,
		radius:   radius,
	}
	if roll {
		t.kind = gestureRoll
		t.startAngle = math.Atan2(pos.Y-center.Y, pos.X-center.X)
	} else {
		t.kind = gestureArcball
		t.startVec = mapToSphere(pos, center, radius)
	}
	e.trackers[pointerID] = t
	return true
}

// Update advances the gesture owned by pointerID. viewportScale converts
// pointer movement into overlay content units so the guide tracks the
// cursor at any zoom level. modifier switches a translate drag into a
// proportional scale drag.
func (e *Engine) Update(pointerID int64, pos geometry.Point2D, modifier bool, viewportScale float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.trackers[pointerID]
	if !ok {
		return
	}

	st := e.currentState(t.imageID)
	switch t.kind {
	case gestureTranslate:
		if modifier {
			dy := pos.Y - t.startPos.Y
			st.Scale = ClampScale(t.start.Scale * (1 + dy*dragScaleRate))
			st.Offset = t.start.Offset
			t.scaled = true
		} else {
			if viewportScale <= 0 {
				viewportScale = 1
			}
			delta := pos.Sub(t.startPos).Scale(1 / viewportScale)
			st.Offset = t.start.Offset.Add(delta)
			st.Scale = t.start.Scale
			t.scaled = false
		}

	case gestureArcball:
		cur := mapToSphere(pos, t.center, t.radius)
		delta, ok := arcballDelta(t.startVec, cur)
		if !ok {
			return
		}
		st.Rotation = delta.Mul(t.start.Rotation).Normalize()

	case gestureRoll:
		angle := math.Atan2(pos.Y-t.center.Y, pos.X-t.center.X)
		swept := wrapAngle(angle - t.startAngle)
		delta := quaternion.FromAxisAngle(quaternion.Vec3{Z: 1}, swept)
		st.Rotation = delta.Mul(t.start.Rotation).Normalize()
	}

	e.store.SetTransient(t.imageID, st)
}

// End completes the gesture owned by pointerID, persisting the final
// state and pushing one undo entry when the state actually changed.
func (e *Engine) End(pointerID int64) {
	e.mu.Lock()
	t, ok := e.trackers[pointerID]
	if ok {
		delete(e.trackers, pointerID)
	}
	e.mu.Unlock()
	if !ok {
		return
	}

	after := e.currentState(t.imageID)
	e.store.Set(t.imageID, after)
	if statesEqual(t.start, after) {
		return
	}

	desc := t.kind.label()
	if t.kind == gestureTranslate && t.scaled {
		desc = "Scale selection"
	}
	id := t.imageID
	before := t.start
	e.undos.Push(undo.Action{
		Description: desc,
		Undo:        func() { e.store.Set(id, before) },
		Redo:        func() { e.store.Set(id, after) },
	})
	e.logger.Debug("selection gesture committed", "image", id, "kind", desc)
}

// WheelScale applies one wheel tick to the guide's scale. A burst of
// ticks is debounced into a single undo entry pushed shortly after the
// last tick.
func (e *Engine) WheelScale(imageID string, deltaX, deltaY float64) {
	delta := deltaY
	if delta == 0 {
		delta = deltaX
	}
	if delta == 0 {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.wheelTimer != nil && e.wheelImage != imageID {
		e.flushWheelLocked()
	}

	st := e.currentState(imageID)
	newScale := ClampScale(st.Scale * math.Exp(-delta*wheelScaleRate))
	if newScale == st.Scale {
		return
	}

	if e.wheelTimer == nil {
		e.wheelImage = imageID
		e.wheelStart = st
		e.wheelTimer = time.AfterFunc(wheelUndoDelay, e.commitWheel)
	} else {
		e.wheelTimer.Reset(wheelUndoDelay)
	}

	st.Scale = newScale
	e.store.SetTransient(imageID, st)
}

func (e *Engine) commitWheel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.flushWheelLocked()
}

// flushWheelLocked persists the pending wheel edit and pushes its single
// undo entry. Caller holds e.mu.
func (e *Engine) flushWheelLocked() {
	if e.wheelTimer == nil {
		return
	}
	e.wheelTimer.Stop()
	e.wheelTimer = nil

	id := e.wheelImage
	before := e.wheelStart
	after := e.currentState(id)
	e.store.Set(id, after)
	if statesEqual(before, after) {
		return
	}
	e.undos.Push(undo.Action{
		Description: "Scale selection",
		Undo:        func() { e.store.Set(id, before) },
		Redo:        func() { e.store.Set(id, after) },
	})
}

// CancelAll aborts every in-flight gesture, restoring each gesture's
// start state, and commits any pending wheel edit. Used when the tool or
// the selected image changes mid-gesture.
func (e *Engine) CancelAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, t := range e.trackers {
		e.store.SetTransient(t.imageID, t.start)
		delete(e.trackers, id)
	}
	e.flushWheelLocked()
}

// Active reports whether any pointer currently owns a tracker.
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.trackers) > 0
}

// mapToSphere projects a screen point onto a unit hemisphere centered on
// the guide. Points outside the sphere's silhouette land on its equator.
func mapToSphere(p, center geometry.Point2D, radius float64) quaternion.Vec3 {
	x := (p.X - center.X) / radius
	y := (p.Y - center.Y) / radius
	d2 := x*x + y*y
	if d2 > 1 {
		d := math.Sqrt(d2)
		return quaternion.Vec3{X: x / d, Y: y / d}
	}
	return quaternion.Vec3{X: x, Y: y, Z: math.Sqrt(1 - d2)}
}

// arcballDelta builds the incremental rotation between two hemisphere
// vectors. Returns false when the vectors are nearly parallel, in which
// case the rotation must stay unchanged rather than propagate a NaN.
func arcballDelta(from, to quaternion.Vec3) (quaternion.Quaternion, bool) {
	axis := from.Cross(to)
	if axis.Norm() < parallelTol {
		return quaternion.Quaternion{}, false
	}
	dot := from.Dot(to)
	if dot > 1 {
		dot = 1
	} else if dot < -1 {
		dot = -1
	}
	angle := math.Acos(dot)
	return quaternion.FromAxisAngle(axis, angle), true
}

// wrapAngle normalizes an angle into (-pi, pi].
func wrapAngle(a float64) float64 {
	for a <= -math.Pi {
		a += 2 * math.Pi
	}
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}

func statesEqual(a, b State) bool {
	if a.Offset != b.Offset || a.Scale != b.Scale || a.Rotation != b.Rotation {
		return false
	}
	if (a.Dimensions == nil) != (b.Dimensions == nil) {
		return false
	}
	if a.Dimensions != nil && *a.Dimensions != *b.Dimensions {
		return false
	}
	return true
}
