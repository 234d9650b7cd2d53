package workspace

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"sample-annotator/internal/asset"
	"sample-annotator/internal/engine"
	"sample-annotator/internal/prefs"
	"sample-annotator/internal/selection"
	"sample-annotator/internal/undo"
	"sample-annotator/pkg/geometry"
)

func writeTestImage(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return path
}

func newTestWorkspace(t *testing.T) *Workspace {
	t.Helper()
	ws, _ := newTestWorkspaceWithPrefs(t)
	return ws
}

func newTestWorkspaceWithPrefs(t *testing.T) (*Workspace, *prefs.Prefs) {
	t.Helper()
	store := prefs.NewInMemory()
	assets := asset.NewStore(nil)
	selections := selection.NewStore(store, nil)
	eng := engine.New(assets, selections, undo.NewStack(), nil)
	eng.SetView(geometry.Size{Width: 400, Height: 300})
	return New(eng, assets, selections), store
}

func TestAddImageSelects(t *testing.T) {
	ws := newTestWorkspace(t)
	path := writeTestImage(t, t.TempDir(), "board.png", 64, 64)

	e, err := ws.AddImage(path)
	if err != nil {
		t.Fatalf("AddImage: %v", err)
	}
	if e.Thumbnail == nil {
		t.Error("no thumbnail generated")
	}
	if tb := e.Thumbnail.Bounds(); tb.Dx() > 96 || tb.Dy() > 96 {
		t.Errorf("thumbnail %v exceeds bounds", tb)
	}
	if ws.Engine().ImageID() != e.ID {
		t.Errorf("active image %q, want %q", ws.Engine().ImageID(), e.ID)
	}
}

func TestAddImageTwiceReselects(t *testing.T) {
	ws := newTestWorkspace(t)
	dir := t.TempDir()
	first := writeTestImage(t, dir, "a.png", 32, 32)
	second := writeTestImage(t, dir, "b.png", 32, 32)

	ws.AddImage(first)
	ws.AddImage(second)
	if got := len(ws.Entries()); got != 2 {
		t.Fatalf("%d entries, want 2", got)
	}

	// Re-adding an open image selects it without duplicating.
	if _, err := ws.AddImage(first); err != nil {
		t.Fatalf("re-add: %v", err)
	}
	if got := len(ws.Entries()); got != 2 {
		t.Errorf("%d entries after re-add, want 2", got)
	}
	if ws.Engine().ImageID() != "a.png" {
		t.Errorf("active image %q, want a.png", ws.Engine().ImageID())
	}
}

func TestAddImageMissingFile(t *testing.T) {
	ws := newTestWorkspace(t)
	if _, err := ws.AddImage(filepath.Join(t.TempDir(), "nope.png")); err == nil {
		t.Error("expected error for missing file")
	}
	if len(ws.Entries()) != 0 {
		t.Error("failed add left an entry behind")
	}
}

func TestRemoveImageSelectsNext(t *testing.T) {
	ws := newTestWorkspace(t)
	dir := t.TempDir()
	ws.AddImage(writeTestImage(t, dir, "a.png", 32, 32))
	ws.AddImage(writeTestImage(t, dir, "b.png", 32, 32))

	ws.RemoveImage("b.png")
	if len(ws.Entries()) != 1 {
		t.Fatalf("%d entries after remove", len(ws.Entries()))
	}
	if ws.Engine().ImageID() != "a.png" {
		t.Errorf("active image %q after removing the selected one", ws.Engine().ImageID())
	}
}

func TestEventsFire(t *testing.T) {
	ws := newTestWorkspace(t)
	var imagesChanged, selected, toolChanged int
	ws.On(EventImagesChanged, func(interface{}) { imagesChanged++ })
	ws.On(EventImageSelected, func(interface{}) { selected++ })
	ws.On(EventToolChanged, func(interface{}) { toolChanged++ })

	ws.AddImage(writeTestImage(t, t.TempDir(), "a.png", 32, 32))
	ws.SetTool(engine.ToolErase)

	if imagesChanged != 1 {
		t.Errorf("EventImagesChanged fired %d times, want 1", imagesChanged)
	}
	if selected != 1 {
		t.Errorf("EventImageSelected fired %d times, want 1", selected)
	}
	if toolChanged != 1 {
		t.Errorf("EventToolChanged fired %d times, want 1", toolChanged)
	}
}

func TestRemoveImageDropsSelection(t *testing.T) {
	ws, store := newTestWorkspaceWithPrefs(t)
	path := writeTestImage(t, t.TempDir(), "a.png", 32, 32)

	ws.AddImage(path)
	ws.SetDimensions(&selection.Dimensions{Length: 40, Width: 20})
	if ws.Engine().SelectionDescriptor() == nil {
		t.Fatal("no selection before removal")
	}

	ws.RemoveImage("a.png")
	var rec selection.State
	if store.GetRecord("selection/a.png", &rec) {
		t.Error("persisted selection record survived image removal")
	}

	// Reopening the image starts with a clean slate.
	ws.AddImage(path)
	if ws.Engine().SelectionDescriptor() != nil {
		t.Error("removed selection came back on re-add")
	}
}

func TestSetDimensionsRoutesToEngine(t *testing.T) {
	ws := newTestWorkspace(t)
	ws.AddImage(writeTestImage(t, t.TempDir(), "a.png", 32, 32))

	ws.SetDimensions(&selection.Dimensions{Length: 10, Width: 5})
	if ws.Engine().SelectionDescriptor() == nil {
		t.Error("dimensions did not reach the engine")
	}
}
