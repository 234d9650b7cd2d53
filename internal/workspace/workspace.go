// Package workspace tracks the set of open reference images and the
// session-level UI state around the annotation engine: which image is
// selected, which tool is active, and which overlays are shown.
package workspace

import (
	"fmt"
	"image"
	"path/filepath"
	"sync"

	"github.com/disintegration/imaging"

	"sample-annotator/internal/asset"
	"sample-annotator/internal/engine"
	"sample-annotator/internal/selection"
)

// thumbnail bounds for the image list sidebar
const (
	thumbWidth  = 96
	thumbHeight = 96
)

// Entry is one open image in the workspace.
type Entry struct {
	ID        string
	Path      string
	Name      string
	Thumbnail image.Image
}

// EventType identifies workspace change events.
type EventType int

const (
	EventImagesChanged EventType = iota
	EventImageSelected
	EventToolChanged
	EventOverlaysChanged
	EventDimensionsChanged
)

// EventListener receives workspace events.
type EventListener func(data interface{})

// Workspace is the session model behind the main window. Mutations go
// through its methods, which keep the engine in sync and notify
// registered listeners.
type Workspace struct {
	mu         sync.RWMutex
	entries    []*Entry
	engine     *engine.Engine
	assets     *asset.Store
	selections *selection.Store

	listeners map[EventType][]EventListener
}

// New creates an empty workspace around an engine and its stores.
func New(eng *engine.Engine, assets *asset.Store, selections *selection.Store) *Workspace {
	return &Workspace{
		engine:     eng,
		assets:     assets,
		selections: selections,
		listeners:  make(map[EventType][]EventListener),
	}
}

// On registers an event listener for the specified event type.
func (w *Workspace) On(event EventType, listener EventListener) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners[event] = append(w.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (w *Workspace) Emit(event EventType, data interface{}) {
	w.mu.RLock()
	listeners := w.listeners[event]
	w.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// Engine returns the annotation engine.
func (w *Workspace) Engine() *engine.Engine { return w.engine }

// Entries returns a snapshot of the open images in insertion order.
func (w *Workspace) Entries() []*Entry {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]*Entry, len(w.entries))
	copy(out, w.entries)
	return out
}

// Find returns the entry with the given id, or nil.
func (w *Workspace) Find(id string) *Entry {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, e := range w.entries {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// AddImage opens an image file, generates its sidebar thumbnail, and
// selects it. The image id is derived from the path; adding the same
// path twice just reselects the existing entry.
func (w *Workspace) AddImage(path string) (*Entry, error) {
	id := filepath.Base(path)
	if e := w.Find(id); e != nil {
		if err := w.SelectImage(id); err != nil {
			return nil, err
		}
		return e, nil
	}

	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image %q: %w", path, err)
	}

	e := &Entry{
		ID:        id,
		Path:      path,
		Name:      filepath.Base(path),
		Thumbnail: imaging.Fit(img, thumbWidth, thumbHeight, imaging.Lanczos),
	}

	w.mu.Lock()
	w.entries = append(w.entries, e)
	w.mu.Unlock()

	w.Emit(EventImagesChanged, nil)
	if err := w.SelectImage(id); err != nil {
		return nil, err
	}
	return e, nil
}

// RemoveImage closes an image, evicting its raster state and dropping
// its selection state together with the persisted record.
func (w *Workspace) RemoveImage(id string) {
	w.mu.Lock()
	idx := -1
	for i, e := range w.entries {
		if e.ID == id {
			idx = i
			break
		}
	}
	if idx >= 0 {
		w.entries = append(w.entries[:idx], w.entries[idx+1:]...)
	}
	remaining := make([]*Entry, len(w.entries))
	copy(remaining, w.entries)
	w.mu.Unlock()
	if idx < 0 {
		return
	}

	w.assets.Remove(id)
	w.selections.Remove(id)
	w.Emit(EventImagesChanged, nil)

	if w.engine.ImageID() == id {
		if len(remaining) > 0 {
			_ = w.SelectImage(remaining[0].ID)
		} else {
			w.Emit(EventImageSelected, "")
		}
	}
}

// SelectImage makes an open image the active annotation target.
func (w *Workspace) SelectImage(id string) error {
	e := w.Find(id)
	if e == nil {
		return fmt.Errorf("select image %s: not in workspace", id)
	}
	if err := w.engine.SelectImage(e.ID, e.Path); err != nil {
		return err
	}
	w.Emit(EventImageSelected, id)
	return nil
}

// SetTool switches the annotation tool.
func (w *Workspace) SetTool(t engine.Tool) {
	w.engine.SetTool(t)
	w.Emit(EventToolChanged, t)
}

// SetMaskVisible toggles the mask indicator overlay.
func (w *Workspace) SetMaskVisible(v bool) {
	w.engine.SetMaskVisible(v)
	w.Emit(EventOverlaysChanged, nil)
}

// SetSelectionVisible toggles the selection guide overlay.
func (w *Workspace) SetSelectionVisible(v bool) {
	w.engine.SetSelectionVisible(v)
	w.Emit(EventOverlaysChanged, nil)
}

// SetDimensions updates the active image's sample measurements.
func (w *Workspace) SetDimensions(d *selection.Dimensions) {
	w.engine.SetDimensions(d)
	w.Emit(EventDimensionsChanged, d)
}
