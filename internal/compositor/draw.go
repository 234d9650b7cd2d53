package compositor

import (
	"image"
	"image/color"
	"math"

	"sample-annotator/internal/asset"
	"sample-annotator/internal/lasso"
	"sample-annotator/pkg/geometry"
)

const (
	// stripeTileCSS is the stripe pattern tile edge in CSS pixels; the
	// device-pixel tile scales with the render scale.
	stripeTileCSS = 36

	// tintStrength is how strongly hidden regions are darkened (0..255).
	tintStrength = 140

	// stripeStrength is how strongly the stripe lines read over the
	// darkened regions (0..255).
	stripeStrength = 90
)

var (
	eraseStrokeColor   = color.RGBA{R: 0xe0, G: 0x4a, B: 0x3a, A: 0xff}
	restoreStrokeColor = color.RGBA{R: 0x3a, G: 0xc0, B: 0x6a, A: 0xff}
	guideColor         = color.RGBA{R: 0x35, G: 0xa7, B: 0xff, A: 0xff}
	stripeTone         = uint32(0xd8)
)

// stripeFor returns the diagonal stripe tile for the given render scale,
// regenerating the cached pattern only when the scale changes.
func (c *Compositor) stripeFor(renderScale float64) *image.Alpha {
	if c.stripe != nil && c.stripeScale == renderScale {
		return c.stripe
	}

	tile := int(math.Round(stripeTileCSS * renderScale))
	if tile < 2 {
		tile = 2
	}
	lineWidth := tile / 4
	if lineWidth < 1 {
		lineWidth = 1
	}

	p := image.NewAlpha(image.Rect(0, 0, tile, tile))
	for y := 0; y < tile; y++ {
		for x := 0; x < tile; x++ {
			if (x+y)%tile < lineWidth {
				p.Pix[y*tile+x] = 0xff
			}
		}
	}
	c.stripe = p
	c.stripeScale = renderScale
	return p
}

// drawImageAndMask maps every backing pixel back into image space and
// samples the bitmap. With the mask indicator on, hidden regions are
// darkened and striped in proportion to the tint alpha, so anti-aliased
// lasso edges fade smoothly. With it off the raw bitmap is shown and
// the mask leaves no visible trace.
func (c *Compositor) drawImageAndMask(out *image.RGBA, a *asset.Asset, fromDevice geometry.AffineTransform, maskVisible bool, renderScale float64) {
	bm := a.Bitmap
	iw, ih := a.Width(), a.Height()
	bounds := out.Bounds()

	var stripe *image.Alpha
	var tile int
	if maskVisible {
		stripe = c.stripeFor(renderScale)
		tile = stripe.Bounds().Dx()
	}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		row := out.PixOffset(bounds.Min.X, y)
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			i := row + (x-bounds.Min.X)*4

			src := fromDevice.Apply(geometry.Point2D{X: float64(x) + 0.5, Y: float64(y) + 0.5})
			ix, iy := int(src.X), int(src.Y)
			if ix < 0 || ix >= iw || iy < 0 || iy >= ih {
				continue
			}

			si := bm.PixOffset(ix, iy)
			r := uint32(bm.Pix[si])
			g := uint32(bm.Pix[si+1])
			b := uint32(bm.Pix[si+2])
			if sa := uint32(bm.Pix[si+3]); sa < 0xff {
				// Transparent source pixels show the pane background.
				r = (r*sa + uint32(out.Pix[i])*(0xff-sa)) / 0xff
				g = (g*sa + uint32(out.Pix[i+1])*(0xff-sa)) / 0xff
				b = (b*sa + uint32(out.Pix[i+2])*(0xff-sa)) / 0xff
			}

			if maskVisible {
				if t := uint32(a.Tint.Pix[a.Tint.PixOffset(ix, iy)]); t > 0 {
					dim := 0xff - t*tintStrength/0xff
					r = r * dim / 0xff
					g = g * dim / 0xff
					b = b * dim / 0xff

					if stripe.Pix[(y%tile)*tile+x%tile] != 0 {
						sa := t * stripeStrength / 0xff
						r = (r*(0xff-sa) + stripeTone*sa) / 0xff
						g = (g*(0xff-sa) + stripeTone*sa) / 0xff
						b = (b*(0xff-sa) + stripeTone*sa) / 0xff
					}
				}
			}

			out.Pix[i] = uint8(r)
			out.Pix[i+1] = uint8(g)
			out.Pix[i+2] = uint8(b)
			out.Pix[i+3] = 0xff
		}
	}
}

// drawLassoStroke renders the in-progress lasso polyline in view space.
func (c *Compositor) drawLassoStroke(out *image.RGBA, g *lasso.Gesture, renderScale float64) {
	pts := g.ViewPoints()
	if len(pts) < 2 {
		return
	}

	col := eraseStrokeColor
	if g.Tool == asset.ToolRestore {
		col = restoreStrokeColor
	}
	thickness := int(math.Round(2 * renderScale))
	if thickness < 2 {
		thickness = 2
	}

	for i := 1; i < len(pts); i++ {
		p1 := pts[i-1].Scale(renderScale)
		p2 := pts[i].Scale(renderScale)
		drawLine(out, int(p1.X), int(p1.Y), int(p2.X), int(p2.Y), col, thickness)
	}
}

// drawGuide renders the projected selection quad as a translucent fill
// with a solid outline.
func (c *Compositor) drawGuide(out *image.RGBA, f Frame) {
	quad, ok := c.GuideQuad(f.ImageID, f.View)
	if !ok {
		return
	}
	renderScale := float64(out.Bounds().Dx()) / f.View.Width
	for i := range quad {
		quad[i] = quad[i].Scale(renderScale)
	}

	fillQuad(out, quad, guideColor, 46)

	thickness := int(math.Round(2 * renderScale))
	if thickness < 2 {
		thickness = 2
	}
	for i := 0; i < 4; i++ {
		p1 := quad[i]
		p2 := quad[(i+1)%4]
		drawLine(out, int(p1.X), int(p1.Y), int(p2.X), int(p2.Y), guideColor, thickness)
	}
}

// fillQuad fills a convex quad with a scanline pass, alpha-blending the
// fill color over the backing store.
func fillQuad(out *image.RGBA, quad [4]geometry.Point2D, col color.RGBA, alpha uint32) {
	bounds := out.Bounds()

	minY, maxY := quad[0].Y, quad[0].Y
	for _, p := range quad[1:] {
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}

	for y := int(minY); y <= int(maxY); y++ {
		if y < bounds.Min.Y || y >= bounds.Max.Y {
			continue
		}

		var xs []float64
		for i := 0; i < 4; i++ {
			p1 := quad[i]
			p2 := quad[(i+1)%4]
			if (p1.Y <= float64(y) && p2.Y > float64(y)) ||
				(p2.Y <= float64(y) && p1.Y > float64(y)) {
				t := (float64(y) - p1.Y) / (p2.Y - p1.Y)
				xs = append(xs, p1.X+t*(p2.X-p1.X))
			}
		}
		for i := 0; i < len(xs)-1; i++ {
			for j := i + 1; j < len(xs); j++ {
				if xs[j] < xs[i] {
					xs[i], xs[j] = xs[j], xs[i]
				}
			}
		}

		for i := 0; i+1 < len(xs); i += 2 {
			x1, x2 := int(xs[i]), int(xs[i+1])
			for x := x1; x <= x2; x++ {
				if x < bounds.Min.X || x >= bounds.Max.X {
					continue
				}
				pi := out.PixOffset(x, y)
				out.Pix[pi] = uint8((uint32(col.R)*alpha + uint32(out.Pix[pi])*(0xff-alpha)) / 0xff)
				out.Pix[pi+1] = uint8((uint32(col.G)*alpha + uint32(out.Pix[pi+1])*(0xff-alpha)) / 0xff)
				out.Pix[pi+2] = uint8((uint32(col.B)*alpha + uint32(out.Pix[pi+2])*(0xff-alpha)) / 0xff)
			}
		}
	}
}

// drawLine draws a thick line between two points using Bresenham's
// algorithm.
func drawLine(out *image.RGBA, x1, y1, x2, y2 int, col color.RGBA, thickness int) {
	bounds := out.Bounds()

	dx := x2 - x1
	dy := y2 - y1
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}

	sx := 1
	if x1 > x2 {
		sx = -1
	}
	sy := 1
	if y1 > y2 {
		sy = -1
	}

	err := dx - dy

	for {
		for t := -thickness / 2; t <= thickness/2; t++ {
			for s := -thickness / 2; s <= thickness/2; s++ {
				px, py := x1+s, y1+t
				if px >= bounds.Min.X && px < bounds.Max.X && py >= bounds.Min.Y && py < bounds.Max.Y {
					out.Set(px, py, col)
				}
			}
		}

		if x1 == x2 && y1 == y2 {
			break
		}

		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}
