// Package geometric provides the in-memory model for fixed-layout,
// absolute-position documents (one bounding box per text run, per page)
// and the locator that finds grading placeholders in it.
package geometric

import (
	"image"

	"github.com/tsawler/redpen/model"
)

// TextRun is one positioned run of text on a page. Origin is the
// bottom-left corner of the run in page coordinates.
type TextRun struct {
	Text   string
	Origin model.Point
	Width  float64
	Height float64
}

// BBox returns the run's bounding box.
func (r TextRun) BBox() model.BBox {
	return model.NewBBox(r.Origin.X, r.Origin.Y, r.Width, r.Height)
}

// PageImage is an embedded raster image placed on a page. Scanned
// documents typically consist of one full-page image and no text runs.
type PageImage struct {
	Data []byte // encoded image bytes (PNG, JPEG, ...)
	Box  model.BBox
}

// Drawing is annotation output placed on a page by the mutator: either
// rendered text or a rasterized image, at a planner-resolved box.
type Drawing struct {
	Box      model.BBox
	Image    image.Image
	Text     string
	FontSize float64
	Color    model.Color
}

// Page is one fixed-layout page: its dimensions, its ordered text runs,
// any embedded images, and the drawings added during annotation.
type Page struct {
	Index    int
	Width    float64
	Height   float64
	Runs     []TextRun
	Images   []PageImage
	Drawings []Drawing
}

// Bounds returns the page bounding box.
func (p *Page) Bounds() model.BBox {
	return model.NewBBox(0, 0, p.Width, p.Height)
}

// Model is the geometric document model: an ordered list of pages,
// created per annotation invocation.
type Model struct {
	Pages []*Page
}
