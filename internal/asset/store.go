// Package asset owns the per-image raster state: the decoded bitmap,
// the mutable visibility mask, and the derived tint buffer.
package asset

import (
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"os"
	"sync"

	"sample-annotator/pkg/geometry"

	_ "github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/tiff"
	"golang.org/x/image/vector"
)

// Tool selects how a lasso polygon is applied to the mask.
type Tool int

const (
	ToolErase   Tool = iota // cut the polygon interior out of the mask
	ToolRestore             // paint the polygon interior back to opaque
)

// Asset is the raster state for one image. Mask and Tint are allocated
// at the bitmap's natural resolution and never resized afterwards.
type Asset struct {
	ID     string
	Bitmap *image.NRGBA
	Mask   *image.Alpha // 255 = visible, 0 = hidden
	Tint   *image.Alpha // inverse of Mask, rendering cache only
}

// Width returns the bitmap's natural width in pixels.
func (a *Asset) Width() int { return a.Bitmap.Bounds().Dx() }

// Height returns the bitmap's natural height in pixels.
func (a *Asset) Height() int { return a.Bitmap.Bounds().Dy() }

// Store holds assets keyed by image id, created lazily on first use and
// evicted when an image leaves the workspace.
type Store struct {
	mu     sync.RWMutex
	assets map[string]*Asset
	logger *slog.Logger
}

// NewStore creates an empty asset store.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		assets: make(map[string]*Asset),
		logger: logger,
	}
}

// Ensure decodes the image at path and allocates mask and tint rasters.
// Idempotent: a second call for an id that already loaded is a no-op.
// On decode failure the asset stays absent and callers see "not ready".
func (s *Store) Ensure(id, path string) error {
	s.mu.RLock()
	_, ok := s.assets[id]
	s.mu.RUnlock()
	if ok {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open image %q: %w", path, err)
	}
	defer f.Close()
	return s.EnsureReader(id, f)
}

// EnsureReader is Ensure for an already-open image source.
func (s *Store) EnsureReader(id string, r io.Reader) error {
	s.mu.RLock()
	_, ok := s.assets[id]
	s.mu.RUnlock()
	if ok {
		return nil
	}

	img, err := imaging.Decode(r)
	if err != nil {
		s.logger.Warn("image decode failed", "id", id, "err", err)
		return fmt.Errorf("decode image %s: %w", id, err)
	}
	bitmap := imaging.Clone(img)

	bounds := image.Rect(0, 0, bitmap.Bounds().Dx(), bitmap.Bounds().Dy())
	mask := image.NewAlpha(bounds)
	for i := range mask.Pix {
		mask.Pix[i] = 0xff
	}

	a := &Asset{
		ID:     id,
		Bitmap: bitmap,
		Mask:   mask,
		Tint:   image.NewAlpha(bounds),
	}
	recomputeTint(a)

	s.mu.Lock()
	// Another caller may have raced us here; keep the first asset so
	// Ensure stays idempotent.
	if _, ok := s.assets[id]; !ok {
		s.assets[id] = a
	}
	s.mu.Unlock()
	return nil
}

// Get returns the asset for id, or nil if it hasn't loaded.
func (s *Store) Get(id string) *Asset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.assets[id]
}

// Remove evicts the asset for id, releasing its rasters.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	delete(s.assets, id)
	s.mu.Unlock()
}

// Mask returns the current mask raster for id, or nil if not ready.
func (s *Store) Mask(id string) *image.Alpha {
	if a := s.Get(id); a != nil {
		return a.Mask
	}
	return nil
}

// Tint returns the current tint raster for id, or nil if not ready.
func (s *Store) Tint(id string) *image.Alpha {
	if a := s.Get(id); a != nil {
		return a.Tint
	}
	return nil
}

// BooleanMask samples the mask's alpha channel into a width x height
// visibility grid (true = visible). Returns nil if the asset isn't ready.
func (s *Store) BooleanMask(id string) [][]bool {
	a := s.Get(id)
	if a == nil {
		return nil
	}
	w, h := a.Width(), a.Height()
	grid := make([][]bool, h)
	for y := 0; y < h; y++ {
		row := make([]bool, w)
		for x := 0; x < w; x++ {
			row[x] = a.Mask.Pix[y*a.Mask.Stride+x] >= 0x80
		}
		grid[y] = row
	}
	return grid
}

// MaskEdited reports whether the mask differs from its fully-visible
// initial state. Callers must not export a no-op mask.
func (s *Store) MaskEdited(id string) bool {
	a := s.Get(id)
	if a == nil {
		return false
	}
	for _, v := range a.Mask.Pix {
		if v != 0xff {
			return true
		}
	}
	return false
}

// SnapshotMask returns a copy of the mask's pixels for undo bookkeeping.
func (s *Store) SnapshotMask(id string) []byte {
	a := s.Get(id)
	if a == nil {
		return nil
	}
	snap := make([]byte, len(a.Mask.Pix))
	copy(snap, a.Mask.Pix)
	return snap
}

// RestoreMask overwrites the mask with a previously taken snapshot and
// recomputes the tint. Mismatched snapshot sizes are ignored.
func (s *Store) RestoreMask(id string, snapshot []byte) {
	a := s.Get(id)
	if a == nil || len(snapshot) != len(a.Mask.Pix) {
		return
	}
	copy(a.Mask.Pix, snapshot)
	recomputeTint(a)
}

// ApplyPolygon composites a closed polygon into the mask: erase cuts the
// interior out of the alpha channel, restore paints it back to opaque.
// Points are in image space and are clamped to the bitmap bounds.
// Polygons with fewer than 3 points are ignored.
func (s *Store) ApplyPolygon(id string, points []geometry.Point2D, tool Tool) {
	a := s.Get(id)
	if a == nil || len(points) < 3 {
		return
	}

	w, h := a.Width(), a.Height()
	coverage := rasterizePolygon(points, w, h)

	for i, p := range coverage.Pix {
		if p == 0 {
			continue
		}
		m := a.Mask.Pix[i]
		switch tool {
		case ToolErase:
			// destination-out: keep mask only where the polygon isn't
			a.Mask.Pix[i] = uint8(uint32(m) * uint32(0xff-p) / 0xff)
		case ToolRestore:
			// source-over toward opaque
			a.Mask.Pix[i] = uint8(uint32(m) + uint32(p)*uint32(0xff-m)/0xff)
		}
	}
	recomputeTint(a)
}

// rasterizePolygon renders the polygon's anti-aliased coverage into an
// alpha raster of the given dimensions.
func rasterizePolygon(points []geometry.Point2D, w, h int) *image.Alpha {
	fw, fh := float64(w), float64(h)
	z := vector.NewRasterizer(w, h)
	z.DrawOp = draw.Src

	first := geometry.ClampPoint(points[0], fw, fh)
	z.MoveTo(float32(first.X), float32(first.Y))
	for _, p := range points[1:] {
		p = geometry.ClampPoint(p, fw, fh)
		z.LineTo(float32(p.X), float32(p.Y))
	}
	z.ClosePath()

	dst := image.NewAlpha(image.Rect(0, 0, w, h))
	z.Draw(dst, dst.Bounds(), image.Opaque, image.Point{})
	return dst
}

// recomputeTint derives the tint as the inverse alpha of the mask, so the
// overlay can darken exactly the hidden regions.
func recomputeTint(a *Asset) {
	for i, m := range a.Mask.Pix {
		a.Tint.Pix[i] = 0xff - m
	}
}
