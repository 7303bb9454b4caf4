package render

import (
	"image"
	"testing"

	"github.com/tsawler/redpen/model"
)

func TestMeasureTextPositiveAndMonotonic(t *testing.T) {
	fr, err := NewRasterizer()
	if err != nil {
		t.Fatalf("NewRasterizer: %v", err)
	}

	short := fr.MeasureText("ab", "", 12)
	long := fr.MeasureText("abcdef", "", 12)
	if short <= 0 {
		t.Errorf("MeasureText(\"ab\") = %v, want > 0", short)
	}
	if long <= short {
		t.Errorf("MeasureText longer text = %v, want > %v", long, short)
	}
}

func TestMeasureTextMissingGlyphsEstimated(t *testing.T) {
	fr, err := NewRasterizer()
	if err != nil {
		t.Fatalf("NewRasterizer: %v", err)
	}

	// Go Regular has no CJK glyphs; wide runes are estimated at a full
	// em each.
	got := fr.MeasureText("评分", "", 12)
	if got != 24 {
		t.Errorf("MeasureText(评分) = %v, want 24 (two full ems)", got)
	}
}

func TestRenderTextImageDimensions(t *testing.T) {
	fr, err := NewRasterizer()
	if err != nil {
		t.Fatalf("NewRasterizer: %v", err)
	}

	img, err := fr.RenderText([]string{"Score", "95"}, "", 12, model.Red)
	if err != nil {
		t.Fatalf("RenderText: %v", err)
	}
	b := img.Bounds()
	if b.Dx() < 1 || b.Dy() < 1 {
		t.Fatalf("RenderText image bounds = %v", b)
	}
	// Two lines at 12pt with 1.3 spacing, doubled by the raster scale.
	size := 12.0
	wantH := int(size * 1.3 * 2 * 2)
	if b.Dy() != wantH {
		t.Errorf("image height = %d, want %d", b.Dy(), wantH)
	}
}

func TestRenderTextUsesInkColor(t *testing.T) {
	fr, err := NewRasterizer()
	if err != nil {
		t.Fatalf("NewRasterizer: %v", err)
	}

	img, err := fr.RenderText([]string{"X"}, "", 16, model.Red)
	if err != nil {
		t.Fatalf("RenderText: %v", err)
	}

	found := false
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y && !found; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			if r > 0x8000 && g < 0x8000 && bl < 0x8000 {
				found = true
				break
			}
		}
	}
	if !found {
		t.Error("no red pixels in rendered text")
	}
}

func TestNewRasterizerFromFontRejectsGarbage(t *testing.T) {
	if _, err := NewRasterizerFromFont([]byte("not a font")); err == nil {
		t.Error("NewRasterizerFromFont accepted garbage")
	}
}

func TestRenderTextEmptyLine(t *testing.T) {
	fr, err := NewRasterizer()
	if err != nil {
		t.Fatalf("NewRasterizer: %v", err)
	}
	img, err := fr.RenderText([]string{""}, "", 12, model.Red)
	if err != nil {
		t.Fatalf("RenderText: %v", err)
	}
	if img.Bounds() == (image.Rectangle{}) {
		t.Error("RenderText returned empty image")
	}
}
