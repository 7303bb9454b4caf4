package redpen

import (
	"github.com/tsawler/redpen/geometric"
	"github.com/tsawler/redpen/keyword"
	"github.com/tsawler/redpen/render"
)

// Option configures an Annotator at construction time.
type Option func(*Annotator)

// WithKeywords replaces the default placeholder vocabulary. The default
// covers the common English and Chinese grading labels.
func WithKeywords(cfg keyword.Config) Option {
	return func(a *Annotator) {
		a.keywords = cfg
	}
}

// WithRasterizer replaces the default embedded-font rasterizer, e.g. to
// render with a handwriting-style or CJK-complete font.
func WithRasterizer(ras render.Rasterizer) Option {
	return func(a *Annotator) {
		a.rasterizer = ras
	}
}

// WithRecognizer enables locating placeholders on scanned pages. Pass
// an ocr.Client (built with the ocr tag) or any other implementation.
func WithRecognizer(rec geometric.Recognizer) Option {
	return func(a *Annotator) {
		a.recognizer = rec
	}
}

// WithSiblingTextLimit overrides the rune threshold below which the
// paragraph following a label is treated as its writable placeholder.
func WithSiblingTextLimit(runes int) Option {
	return func(a *Annotator) {
		a.siblingLimit = runes
	}
}

// WithCommentBudget overrides the preferred comment line width, in
// points, used when planning geometric comment boxes.
func WithCommentBudget(points float64) Option {
	return func(a *Annotator) {
		a.commentBudget = points
	}
}

// WithMargin overrides the page margin, in points, that planned
// annotation boxes are kept inside.
func WithMargin(points float64) Option {
	return func(a *Annotator) {
		a.margin = points
	}
}
