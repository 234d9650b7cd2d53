package compositor

import (
	"bytes"
	"image"
	"image/png"
	"math"
	"testing"

	"sample-annotator/internal/asset"
	"sample-annotator/internal/lasso"
	"sample-annotator/internal/prefs"
	"sample-annotator/internal/selection"
	"sample-annotator/internal/undo"
	"sample-annotator/internal/viewport"
	"sample-annotator/pkg/geometry"
)

type fixture struct {
	comp       *Compositor
	assets     *asset.Store
	selections *selection.Store
	vp         *viewport.Viewport
}

func newFixture(t *testing.T, imgW, imgH int) *fixture {
	t.Helper()
	assets := asset.NewStore(nil)
	selections := selection.NewStore(prefs.NewInMemory(), nil)
	vp := viewport.New()
	undos := undo.NewStack()
	lassoCtl := lasso.NewController(assets, undos, nil)
	comp := New(assets, selections, vp, lassoCtl, nil)

	img := image.NewNRGBA(image.Rect(0, 0, imgW, imgH))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := assets.EnsureReader("img", bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatalf("EnsureReader: %v", err)
	}

	return &fixture{comp: comp, assets: assets, selections: selections, vp: vp}
}

func TestRenderCapsBackingStore(t *testing.T) {
	f := newFixture(t, 10, 10)
	f.comp.SetFrame(Frame{ImageID: "img", View: geometry.Size{Width: 2500, Height: 1500}})

	out := f.comp.Render(5000, 3000).(*image.RGBA)
	b := out.Bounds()
	if b.Dx() > maxBackingDim || b.Dy() > maxBackingDim {
		t.Fatalf("backing %dx%d exceeds cap %d", b.Dx(), b.Dy(), maxBackingDim)
	}
	// The reduction is proportional.
	want := float64(3000) / float64(5000)
	got := float64(b.Dy()) / float64(b.Dx())
	if math.Abs(got-want) > 0.01 {
		t.Errorf("aspect after clamp = %v, want %v", got, want)
	}
}

func TestRenderReusesBackingWhenClean(t *testing.T) {
	f := newFixture(t, 10, 10)
	f.comp.SetFrame(Frame{ImageID: "img", View: geometry.Size{Width: 400, Height: 300}})

	first := f.comp.Render(400, 300)
	second := f.comp.Render(400, 300)
	if first != second {
		t.Error("clean repaint replaced the backing store")
	}

	f.comp.MarkDirty()
	third := f.comp.Render(400, 300)
	if third != first {
		t.Error("dirty repaint allocated a new backing store of the same size")
	}
}

func TestRenderReallocatesOnResizeOnly(t *testing.T) {
	f := newFixture(t, 10, 10)
	f.comp.SetFrame(Frame{ImageID: "img", View: geometry.Size{Width: 400, Height: 300}})

	first := f.comp.Render(400, 300).(*image.RGBA)
	second := f.comp.Render(800, 600).(*image.RGBA)
	if first == second {
		t.Error("resize did not reallocate the backing store")
	}
	if second.Bounds().Dx() != 800 || second.Bounds().Dy() != 600 {
		t.Errorf("backing %v after resize", second.Bounds())
	}
}

func TestViewportChangeMarksDirty(t *testing.T) {
	f := newFixture(t, 10, 10)
	f.comp.SetFrame(Frame{ImageID: "img", View: geometry.Size{Width: 400, Height: 300}})
	f.comp.Render(400, 300)

	// A zoom must invalidate the cached frame via the change callback.
	f.vp.Zoom(geometry.Point2D{X: 200, Y: 150}, 0, -200)

	before := f.comp.Render(400, 300).(*image.RGBA)
	after := f.comp.Render(400, 300).(*image.RGBA)
	if before != after {
		t.Error("second clean render after zoom repainted again")
	}
}

func TestFitRectPreservesAspectAndCenters(t *testing.T) {
	f := newFixture(t, 100, 50)
	view := geometry.Size{Width: 400, Height: 400}

	fit := f.comp.FitRect("img", view)
	if math.Abs(fit.Width/fit.Height-2) > 1e-9 {
		t.Errorf("fit aspect = %v, want 2", fit.Width/fit.Height)
	}
	if math.Abs(fit.Width-400) > 1e-9 {
		t.Errorf("fit width = %v, want 400", fit.Width)
	}
	if math.Abs(fit.Y-(400-200)/2.0) > 1e-9 {
		t.Errorf("fit not vertically centered: y = %v", fit.Y)
	}
}

func TestFitRectUnready(t *testing.T) {
	f := newFixture(t, 10, 10)
	if r := f.comp.FitRect("missing", geometry.Size{Width: 100, Height: 100}); r != (geometry.Rect{}) {
		t.Errorf("unready asset produced fit rect %+v", r)
	}
}

func TestViewToImageRoundTrip(t *testing.T) {
	f := newFixture(t, 100, 50)
	view := geometry.Size{Width: 400, Height: 400}
	f.vp.Zoom(geometry.Point2D{X: 123, Y: 88}, 0, -300)

	imgPt, ok := f.comp.ViewToImage("img", view, geometry.Point2D{X: 200, Y: 200})
	if !ok {
		t.Fatal("ViewToImage not ready")
	}
	// Map back through the forward transform.
	fit := f.comp.FitRect("img", view)
	fitScale := fit.Width / 100
	css := f.vp.Transform().Apply(geometry.Point2D{
		X: imgPt.X*fitScale + fit.X,
		Y: imgPt.Y*fitScale + fit.Y,
	})
	if math.Abs(css.X-200) > 1e-6 || math.Abs(css.Y-200) > 1e-6 {
		t.Errorf("round trip landed at %+v, want (200,200)", css)
	}
}

func TestGuideViewRectScalesWithViewport(t *testing.T) {
	f := newFixture(t, 100, 100)
	view := geometry.Size{Width: 400, Height: 400}
	st := selection.DefaultState()
	st.Dimensions = &selection.Dimensions{Length: 40, Width: 20}
	f.selections.Set("img", st)

	base, ok := f.comp.GuideViewRect("img", view)
	if !ok {
		t.Fatal("guide rect unavailable")
	}

	f.vp.Zoom(geometry.Point2D{X: 200, Y: 200}, 0, -462) // roughly 2x
	zoomed, ok := f.comp.GuideViewRect("img", view)
	if !ok {
		t.Fatal("guide rect unavailable after zoom")
	}
	wantRatio := f.vp.Scale()
	if math.Abs(zoomed.Width/base.Width-wantRatio) > 1e-6 {
		t.Errorf("guide width ratio = %v, want %v", zoomed.Width/base.Width, wantRatio)
	}
}

func TestGuideViewRectNoSelection(t *testing.T) {
	f := newFixture(t, 100, 100)
	if _, ok := f.comp.GuideViewRect("img", geometry.Size{Width: 400, Height: 400}); ok {
		t.Error("guide rect reported for an image without a selection")
	}
}

func TestStripePatternCachedPerScale(t *testing.T) {
	f := newFixture(t, 10, 10)
	a := f.comp.stripeFor(1)
	b := f.comp.stripeFor(1)
	if a != b {
		t.Error("same render scale regenerated the stripe pattern")
	}
	c := f.comp.stripeFor(2)
	if c == a {
		t.Error("new render scale reused the old stripe pattern")
	}
	if c.Bounds().Dx() != 2*a.Bounds().Dx() {
		t.Errorf("stripe tile %d at 2x, want %d", c.Bounds().Dx(), 2*a.Bounds().Dx())
	}
}

func TestRenderTintsHiddenRegions(t *testing.T) {
	f := newFixture(t, 20, 20)
	view := geometry.Size{Width: 200, Height: 200}
	f.comp.SetFrame(Frame{ImageID: "img", View: view, MaskVisible: true})

	hidden := f.comp.Render(200, 200).(*image.RGBA)
	// Erase everything, then compare a pixel in the image area.
	full := []geometry.Point2D{{X: 0, Y: 0}, {X: 20, Y: 0}, {X: 20, Y: 20}, {X: 0, Y: 20}}
	f.assets.ApplyPolygon("img", full, asset.ToolErase)
	f.comp.MarkDirty()
	tinted := f.comp.Render(200, 200).(*image.RGBA)

	cx, cy := 100, 100
	if hidden.RGBAAt(cx, cy) == tinted.RGBAAt(cx, cy) {
		t.Error("hidden region rendered identically to visible region")
	}

	// With the indicator off the mask leaves no visible trace.
	f.comp.SetFrame(Frame{ImageID: "img", View: view, MaskVisible: false})
	plain := f.comp.Render(200, 200).(*image.RGBA)
	if plain.RGBAAt(cx, cy) != hidden.RGBAAt(cx, cy) {
		t.Error("mask visible with the indicator off")
	}
}
