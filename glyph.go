package tinsel

import (
	"fmt"
	"image"
	"math/rand/v2"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// glyphPoint is a lit pixel normalized to the unit square centered on the
// origin, Y up.
type glyphPoint struct {
	x, y float64
}

// GlyphRasterizer renders characters into an offscreen monochrome bitmap
// and caches their lit pixels.
type GlyphRasterizer struct {
	cfg   GlyphConfig
	face  font.Face
	img   *image.Alpha
	cache map[string][]glyphPoint
}

// NewGlyphRasterizer parses cfg.FontPath (or the embedded Go Bold face) and
// prepares the bitmap.
func NewGlyphRasterizer(cfg GlyphConfig) (*GlyphRasterizer, error) {
	data := gobold.TTF
	if cfg.FontPath != "" {
		raw, err := os.ReadFile(cfg.FontPath)
		if err != nil {
			return nil, fmt.Errorf("glyph font: %w", err)
		}
		data = raw
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("glyph font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    cfg.FontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("glyph face: %w", err)
	}
	return &GlyphRasterizer{
		cfg:   cfg,
		face:  face,
		img:   image.NewAlpha(image.Rect(0, 0, cfg.Resolution, cfg.Resolution)),
		cache: make(map[string][]glyphPoint),
	}, nil
}

// LitCount returns the number of lit pixels for char.
func (g *GlyphRasterizer) LitCount(char string) int {
	return len(g.litPoints(char))
}

// litPoints rasterizes char centered in the bitmap. Runes the face has no
// glyph for are skipped, so an unsupported character yields no points.
func (g *GlyphRasterizer) litPoints(char string) []glyphPoint {
	if pts, ok := g.cache[char]; ok {
		return pts
	}

	var supported []rune
	for _, r := range char {
		if _, ok := g.face.GlyphAdvance(r); ok {
			supported = append(supported, r)
		}
	}

	clear(g.img.Pix)
	var pts []glyphPoint
	if len(supported) > 0 {
		text := string(supported)
		res := g.cfg.Resolution
		d := font.Drawer{Dst: g.img, Src: image.Opaque, Face: g.face}
		m := g.face.Metrics()
		width := d.MeasureString(text)
		d.Dot = fixed.Point26_6{
			X: (fixed.I(res) - width) / 2,
			Y: fixed.I(res)/2 + (m.Ascent-m.Descent)/2,
		}
		d.DrawString(text)

		inv := 1.0 / float64(res)
		for y := 0; y < res; y++ {
			row := g.img.Pix[y*g.img.Stride : y*g.img.Stride+res]
			for x, a := range row {
				if a > g.cfg.Threshold {
					pts = append(pts, glyphPoint{
						x: float64(x)*inv - 0.5,
						y: 0.5 - float64(y)*inv,
					})
				}
			}
		}
	}
	g.cache[char] = pts
	return pts
}

// Positions fills dst with GLYPH formation targets for char, sampling lit
// pixels uniformly with replacement. With no lit pixels every target is the
// origin.
func (g *GlyphRasterizer) Positions(dst []Vec3, char string, rng *rand.Rand) {
	pts := g.litPoints(char)
	if len(pts) == 0 {
		clear(dst)
		return
	}
	scale := g.cfg.Scale
	for i := range dst {
		p := pts[rng.IntN(len(pts))]
		dst[i] = Vec3{
			X: p.x * scale,
			Y: p.y * scale,
			Z: (rng.Float64() - 0.5) * g.cfg.DepthJitter,
		}
	}
}
