package geometric

import (
	"bytes"
	"image"
	_ "image/jpeg" // scanned pages arrive as JPEG or PNG
	_ "image/png"

	"github.com/tsawler/redpen/model"
)

// Word is one recognized word on a scanned page image, with its box in
// image pixel coordinates (top-left origin).
type Word struct {
	Text string
	Box  image.Rectangle
}

// Recognizer extracts positioned words from an encoded page image.
// The ocr package provides a Tesseract-backed implementation; a nil
// Recognizer simply disables the scanned-page pass.
type Recognizer interface {
	Words(imageData []byte) ([]Word, error)
}

// recognizedRuns converts OCR words from every image on the page into
// synthetic text runs in page coordinates. Recognition failures skip
// the image; a scanned page that yields nothing falls through to the
// caller's fallback path.
func (l *Locator) recognizedRuns(page *Page) []TextRun {
	var runs []TextRun
	for _, img := range page.Images {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(img.Data))
		if err != nil || cfg.Width == 0 || cfg.Height == 0 {
			continue
		}
		words, err := l.recognizer.Words(img.Data)
		if err != nil {
			continue
		}

		scaleX := img.Box.Width / float64(cfg.Width)
		scaleY := img.Box.Height / float64(cfg.Height)
		for _, w := range words {
			if w.Text == "" {
				continue
			}
			// Image pixel rows grow downward; page Y grows upward.
			x := img.Box.X + float64(w.Box.Min.X)*scaleX
			y := img.Box.Top() - float64(w.Box.Max.Y)*scaleY
			runs = append(runs, TextRun{
				Text:   w.Text,
				Origin: model.Point{X: x, Y: y},
				Width:  float64(w.Box.Dx()) * scaleX,
				Height: float64(w.Box.Dy()) * scaleY,
			})
		}
	}
	return runs
}
