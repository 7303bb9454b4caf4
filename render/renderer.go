// Package render produces annotation content in drawable form: native
// styled text for structural targets, and measured, wrapped, rasterized
// text or images for geometric targets.
//
// Rasterization keeps score and signature rendering visually consistent
// and independent of viewer font availability. Comment text stays
// native only when it fits one line of Latin script; wrapped or
// non-Latin comments are rasterized too.
package render

import (
	"errors"
	"fmt"
	"image"
	"strings"
	"unicode"

	"github.com/tsawler/redpen/geometric"
	"github.com/tsawler/redpen/model"
)

// Rasterizer measures and rasterizes text. The default implementation
// (NewRasterizer) uses an embedded font; callers may inject their own.
type Rasterizer interface {
	// MeasureText returns the advance width, in points, of text drawn
	// at the given size. fontName may be empty for the default font.
	MeasureText(text, fontName string, size float64) float64
	// RenderText rasterizes the given lines into a single image.
	RenderText(lines []string, fontName string, size float64, c model.Color) (image.Image, error)
}

// Renderer turns annotations into geometric drawings.
type Renderer struct {
	ras Rasterizer

	// ScoreFontSize and CommentFontSize are in points.
	ScoreFontSize   float64
	CommentFontSize float64
	// CommentBudget is the preferred comment line width in points;
	// the planner may widen it when relocating overflowing comments.
	CommentBudget float64
	// LineSpacing multiplies font size to get line height.
	LineSpacing float64
}

// NewRenderer creates a renderer. The rasterizer is a required
// dependency; passing nil is a construction-time error, not a per-call
// runtime check.
func NewRenderer(ras Rasterizer) (*Renderer, error) {
	if ras == nil {
		return nil, errors.New("render: rasterizer is required")
	}
	return &Renderer{
		ras:             ras,
		ScoreFontSize:   16,
		CommentFontSize: 11,
		CommentBudget:   260,
		LineSpacing:     1.3,
	}, nil
}

// EstimateSize returns the annotation's preferred extent in points for
// layout planning. For signatures with a source image this is the
// image's natural pixel size taken as points.
func (r *Renderer) EstimateSize(a model.Annotation) model.Point {
	switch a.Category {
	case model.CategoryScore:
		w := r.ras.MeasureText(a.Text, a.FontName, r.ScoreFontSize)
		return model.Point{X: w + 4, Y: r.ScoreFontSize * r.LineSpacing}
	case model.CategorySignature:
		if a.Image != nil {
			b := a.Image.Bounds()
			return model.Point{X: float64(b.Dx()), Y: float64(b.Dy())}
		}
		w := r.ras.MeasureText(a.Text, a.FontName, r.ScoreFontSize)
		return model.Point{X: w + 4, Y: r.ScoreFontSize * r.LineSpacing}
	default:
		lines := r.wrap(a.Text, a.FontName, r.CommentFontSize, r.CommentBudget)
		widest := 0.0
		for _, line := range lines {
			if w := r.ras.MeasureText(line, a.FontName, r.CommentFontSize); w > widest {
				widest = w
			}
		}
		return model.Point{
			X: widest + 4,
			Y: float64(len(lines)) * r.CommentFontSize * r.LineSpacing,
		}
	}
}

// Render produces the drawing for one planned box. Comment text is
// re-wrapped against the final box width, which may differ from the
// estimate after overflow relocation.
func (r *Renderer) Render(a model.Annotation, box model.BBox) (geometric.Drawing, error) {
	d := geometric.Drawing{Box: box, Color: a.Color}

	switch a.Category {
	case model.CategoryScore:
		img, err := r.ras.RenderText([]string{a.Text}, a.FontName, r.ScoreFontSize, a.Color)
		if err != nil {
			return d, fmt.Errorf("rasterizing score: %w", err)
		}
		d.Image = img

	case model.CategorySignature:
		if a.Image != nil {
			d.Image = a.Image
			break
		}
		img, err := r.ras.RenderText([]string{a.Text}, a.FontName, r.ScoreFontSize, a.Color)
		if err != nil {
			return d, fmt.Errorf("rasterizing signature: %w", err)
		}
		d.Image = img

	default:
		lines := r.wrap(a.Text, a.FontName, r.CommentFontSize, box.Width)
		if len(lines) == 1 && isLatin(a.Text) {
			d.Text = a.Text
			d.FontSize = r.CommentFontSize
			break
		}
		img, err := r.ras.RenderText(lines, a.FontName, r.CommentFontSize, a.Color)
		if err != nil {
			return d, fmt.Errorf("rasterizing comment: %w", err)
		}
		d.Image = img
	}
	return d, nil
}

// isLatin reports whether text contains only Latin letters, digits,
// spaces, and common punctuation.
func isLatin(text string) bool {
	for _, r := range text {
		if r > unicode.MaxASCII && !unicode.Is(unicode.Latin, r) {
			return false
		}
	}
	return true
}

// NativeRun describes the styled text run injected into structural
// targets. The paragraph's other formatting is preserved by the
// mutator; only these overrides are applied.
type NativeRun struct {
	Text     string
	Color    model.Color
	FontName string
}

// NativeRuns returns the text runs for a structural target: one run per
// line of the annotation text.
func (r *Renderer) NativeRuns(a model.Annotation) []NativeRun {
	var runs []NativeRun
	for _, line := range strings.Split(a.Text, "\n") {
		runs = append(runs, NativeRun{Text: line, Color: a.Color, FontName: a.FontName})
	}
	return runs
}
