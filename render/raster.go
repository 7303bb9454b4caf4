package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/width"

	"github.com/tsawler/redpen/model"
)

// rasterScale is the oversampling factor for rasterized text: boxes are
// planned in points but images are rendered at twice that resolution.
const rasterScale = 2

// lineSpacing matches Renderer.LineSpacing for image sizing.
const lineSpacing = 1.3

// FontRasterizer is the default Rasterizer, backed by an embedded
// OpenType font. Glyphs the font lacks (CJK in the default font) are
// measured by East Asian width class instead, so wrapping stays sane
// even when the glyph itself renders as a box.
type FontRasterizer struct {
	font *opentype.Font
}

// NewRasterizer creates the default rasterizer with the embedded Go
// Regular font.
func NewRasterizer() (*FontRasterizer, error) {
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing embedded font: %w", err)
	}
	return &FontRasterizer{font: f}, nil
}

// NewRasterizerFromFont creates a rasterizer from caller-supplied
// OpenType font data, e.g. a font with CJK coverage.
func NewRasterizerFromFont(ttf []byte) (*FontRasterizer, error) {
	f, err := opentype.Parse(ttf)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}
	return &FontRasterizer{font: f}, nil
}

// face creates a new font.Face at the given point size. Faces hold
// internal scratch buffers and are not safe to share, so each call gets
// its own.
func (fr *FontRasterizer) face(size float64) (font.Face, error) {
	return opentype.NewFace(fr.font, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// MeasureText returns the advance width of text at the given size, in
// points. fontName is accepted for interface compatibility; the default
// rasterizer carries a single font.
func (fr *FontRasterizer) MeasureText(text, fontName string, size float64) float64 {
	face, err := fr.face(size)
	if err != nil {
		return estimateWidth(text, size)
	}
	defer face.Close()

	// A rune the font lacks maps to glyph 0 (.notdef), whose advance
	// says nothing about the rune, so check coverage explicitly.
	var buf sfnt.Buffer
	var total float64
	for _, r := range text {
		gi, err := fr.font.GlyphIndex(&buf, r)
		if err != nil || gi == 0 {
			total += runeWidthEstimate(r, size)
			continue
		}
		if adv, ok := face.GlyphAdvance(r); ok {
			total += fixedToFloat(adv)
			continue
		}
		total += runeWidthEstimate(r, size)
	}
	return total
}

// RenderText rasterizes lines into one image at rasterScale resolution
// with a white background.
func (fr *FontRasterizer) RenderText(lines []string, fontName string, size float64, c model.Color) (image.Image, error) {
	face, err := fr.face(size * rasterScale)
	if err != nil {
		return nil, fmt.Errorf("creating font face: %w", err)
	}
	defer face.Close()

	widest := 0.0
	for _, line := range lines {
		if w := fr.MeasureText(line, fontName, size); w > widest {
			widest = w
		}
	}
	lineHeight := size * lineSpacing * rasterScale
	imgW := int(widest*rasterScale) + 2*rasterScale
	imgH := int(lineHeight * float64(len(lines)))
	if imgW < 1 {
		imgW = 1
	}
	if imgH < 1 {
		imgH = 1
	}

	img := image.NewRGBA(image.Rect(0, 0, imgW, imgH))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	src := image.NewUniform(color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xFF})
	ascent := fixedToFloat(face.Metrics().Ascent)
	for i, line := range lines {
		d := font.Drawer{
			Dst:  img,
			Src:  src,
			Face: face,
			Dot: fixed.Point26_6{
				X: fixed.I(rasterScale),
				Y: floatToFixed(float64(i)*lineHeight + ascent),
			},
		}
		d.DrawString(line)
	}
	return img, nil
}

// runeWidthEstimate approximates a missing glyph's advance from its
// East Asian width class: wide and fullwidth runes take a full em,
// everything else half.
func runeWidthEstimate(r rune, size float64) float64 {
	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return size
	default:
		return size * 0.5
	}
}

// estimateWidth approximates the whole string when no face is
// available.
func estimateWidth(text string, size float64) float64 {
	var total float64
	for _, r := range text {
		total += runeWidthEstimate(r, size)
	}
	return total
}

func fixedToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}

func floatToFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(v * 64)
}
