package render

import (
	"errors"
	"image"
	"strings"
	"testing"

	"github.com/tsawler/redpen/model"
)

var errFake = errors.New("raster failure")

// fixedWidthRasterizer measures every rune as 10 points and renders a
// 1x1 image, making wrap decisions deterministic.
type fixedWidthRasterizer struct {
	renderErr error
	rendered  [][]string
}

func (f *fixedWidthRasterizer) MeasureText(text, fontName string, size float64) float64 {
	n := 0
	for range text {
		n++
	}
	return float64(n) * 10
}

func (f *fixedWidthRasterizer) RenderText(lines []string, fontName string, size float64, c model.Color) (image.Image, error) {
	if f.renderErr != nil {
		return nil, f.renderErr
	}
	f.rendered = append(f.rendered, lines)
	return image.NewRGBA(image.Rect(0, 0, 1, 1)), nil
}

func newTestRenderer(t *testing.T, ras Rasterizer) *Renderer {
	t.Helper()
	r, err := NewRenderer(ras)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	return r
}

func TestNewRendererRequiresRasterizer(t *testing.T) {
	if _, err := NewRenderer(nil); err == nil {
		t.Error("NewRenderer(nil) succeeded, want error")
	}
}

func TestWrapBreaksAtWordBoundary(t *testing.T) {
	r := newTestRenderer(t, &fixedWidthRasterizer{})

	// 10pt per rune, 100pt budget: 10 runes per line.
	lines := r.wrap("alpha beta gamma", "", 11, 100)
	want := []string{"alpha beta", "gamma"}
	if len(lines) != len(want) {
		t.Fatalf("wrap() = %q, want %q", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestWrapBreaksCJKAtCharacterBoundary(t *testing.T) {
	r := newTestRenderer(t, &fixedWidthRasterizer{})

	lines := r.wrap("论点清晰论证充分", "", 11, 40)
	if len(lines) != 2 {
		t.Fatalf("wrap() = %q, want 2 lines", lines)
	}
	if lines[0] != "论点清晰" || lines[1] != "论证充分" {
		t.Errorf("wrap() = %q, want [论点清晰 论证充分]", lines)
	}
}

func TestWrapPreservesExplicitNewlines(t *testing.T) {
	r := newTestRenderer(t, &fixedWidthRasterizer{})

	lines := r.wrap("one\ntwo", "", 11, 400)
	if len(lines) != 2 || lines[0] != "one" || lines[1] != "two" {
		t.Errorf("wrap() = %q, want [one two]", lines)
	}
}

func TestRenderShortLatinCommentStaysNative(t *testing.T) {
	ras := &fixedWidthRasterizer{}
	r := newTestRenderer(t, ras)

	ann := model.Annotation{Category: model.CategoryComment, Text: "Good work.", Color: model.Red}
	d, err := r.Render(ann, model.NewBBox(100, 600, 300, 20))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if d.Image != nil {
		t.Error("single-line Latin comment was rasterized, want native text")
	}
	if d.Text != "Good work." {
		t.Errorf("drawing text = %q, want %q", d.Text, "Good work.")
	}
	if d.FontSize != r.CommentFontSize {
		t.Errorf("drawing font size = %v, want %v", d.FontSize, r.CommentFontSize)
	}
}

func TestRenderChineseCommentRasterized(t *testing.T) {
	ras := &fixedWidthRasterizer{}
	r := newTestRenderer(t, ras)

	ann := model.Annotation{Category: model.CategoryComment, Text: "论点清晰", Color: model.Red}
	d, err := r.Render(ann, model.NewBBox(100, 600, 300, 20))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if d.Image == nil {
		t.Error("non-Latin comment returned native text, want raster image")
	}
}

func TestRenderWrappedCommentRasterized(t *testing.T) {
	ras := &fixedWidthRasterizer{}
	r := newTestRenderer(t, ras)

	long := strings.Repeat("strong argument ", 10)
	ann := model.Annotation{Category: model.CategoryComment, Text: long, Color: model.Red}
	d, err := r.Render(ann, model.NewBBox(100, 500, 200, 100))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if d.Image == nil {
		t.Fatal("multi-line comment not rasterized")
	}
	// The comment is re-wrapped at the final box width (200pt = 20
	// runes per line).
	if len(ras.rendered) != 1 {
		t.Fatalf("RenderText called %d times, want 1", len(ras.rendered))
	}
	for _, line := range ras.rendered[0] {
		if ras.MeasureText(line, "", r.CommentFontSize) > 200 {
			t.Errorf("rendered line %q wider than box", line)
		}
	}
}

func TestRenderScoreAlwaysRasterized(t *testing.T) {
	ras := &fixedWidthRasterizer{}
	r := newTestRenderer(t, ras)

	ann := model.Annotation{Category: model.CategoryScore, Text: "95", Color: model.Red}
	d, err := r.Render(ann, model.NewBBox(100, 700, 40, 20))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if d.Image == nil {
		t.Error("score not rasterized")
	}
}

func TestRenderSignatureImagePassedThrough(t *testing.T) {
	ras := &fixedWidthRasterizer{}
	r := newTestRenderer(t, ras)

	sig := image.NewRGBA(image.Rect(0, 0, 80, 30))
	ann := model.Annotation{Category: model.CategorySignature, Image: sig, Color: model.Red}
	d, err := r.Render(ann, model.NewBBox(100, 100, 80, 30))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if d.Image != sig {
		t.Error("signature image replaced instead of passed through")
	}
}

func TestRenderPropagatesRasterizerError(t *testing.T) {
	ras := &fixedWidthRasterizer{renderErr: errFake}
	r := newTestRenderer(t, ras)

	ann := model.Annotation{Category: model.CategoryScore, Text: "95", Color: model.Red}
	if _, err := r.Render(ann, model.NewBBox(0, 0, 40, 20)); err == nil {
		t.Error("Render() succeeded with failing rasterizer")
	}
}

func TestEstimateSizeCommentUsesBudget(t *testing.T) {
	r := newTestRenderer(t, &fixedWidthRasterizer{})
	r.CommentBudget = 100

	// 22 runes at 10pt wrap into 3 lines under a 100pt budget.
	ann := model.Annotation{Category: model.CategoryComment, Text: "abcdefghij abcdefghij a"}
	got := r.EstimateSize(ann)

	wantH := 3 * r.CommentFontSize * r.LineSpacing
	if got.Y != wantH {
		t.Errorf("estimated height = %v, want %v", got.Y, wantH)
	}
	if got.X > 104 {
		t.Errorf("estimated width = %v, want <= 104", got.X)
	}
}

func TestNativeRunsOnePerLine(t *testing.T) {
	r := newTestRenderer(t, &fixedWidthRasterizer{})

	runs := r.NativeRuns(model.Annotation{Text: "line one\nline two", Color: model.Red})
	if len(runs) != 2 {
		t.Fatalf("NativeRuns() = %d runs, want 2", len(runs))
	}
	if runs[0].Text != "line one" || runs[1].Text != "line two" {
		t.Errorf("runs = %+v", runs)
	}
	if runs[0].Color != model.Red {
		t.Errorf("run color = %+v, want red", runs[0].Color)
	}
}
