// Package redpen writes grading results into student documents. It
// locates placeholder labels ("Score", "Teacher Comments", "成绩", ...)
// in Word, Excel, HTML, and PDF files and injects the score, comment,
// and instructor signature next to them in red ink, preserving the
// document's existing formatting.
//
// Basic usage:
//
//	a, err := redpen.New()
//	if err != nil {
//	    // handle error
//	}
//	result, warnings, err := a.Annotate(data, "homework.docx", redpen.Content{
//	    Score:      "87 / 100",
//	    Comment:    "Good structure; cite your sources.",
//	    Instructor: "Dr. Chen",
//	})
//	if len(warnings) > 0 {
//	    log.Println("Warnings:", redpen.FormatWarnings(warnings))
//	}
//
// Annotate always produces a usable artifact for supported formats: if
// the document cannot be parsed, or no placeholder is found, the result
// is a standalone HTML grading report carrying the same content, with
// Result.Fallback set.
package redpen

import (
	"fmt"

	"github.com/tsawler/redpen/docx"
	"github.com/tsawler/redpen/fallback"
	"github.com/tsawler/redpen/format"
	"github.com/tsawler/redpen/geometric"
	"github.com/tsawler/redpen/htmldoc"
	"github.com/tsawler/redpen/keyword"
	"github.com/tsawler/redpen/layout"
	"github.com/tsawler/redpen/model"
	"github.com/tsawler/redpen/mutate"
	"github.com/tsawler/redpen/pdf"
	"github.com/tsawler/redpen/render"
	"github.com/tsawler/redpen/structural"
	"github.com/tsawler/redpen/xlsx"
)

// Content aliases model.Content so simple callers only import redpen.
type Content = model.Content

// Annotator locates grading placeholders and injects content. It is
// safe to reuse across documents.
type Annotator struct {
	keywords      keyword.Config
	rasterizer    render.Rasterizer
	recognizer    geometric.Recognizer
	siblingLimit  int
	commentBudget float64
	margin        float64

	index    *keyword.Index
	renderer *render.Renderer
	planner  *layout.Planner
}

// New creates an Annotator. Without options it uses the default
// English and Chinese keyword vocabulary and an embedded-font
// rasterizer.
func New(opts ...Option) (*Annotator, error) {
	a := &Annotator{
		keywords:     keyword.DefaultConfig(),
		siblingLimit: structural.DefaultSiblingTextLimit,
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.rasterizer == nil {
		ras, err := render.NewRasterizer()
		if err != nil {
			return nil, fmt.Errorf("building default rasterizer: %w", err)
		}
		a.rasterizer = ras
	}
	renderer, err := render.NewRenderer(a.rasterizer)
	if err != nil {
		return nil, err
	}
	if a.commentBudget > 0 {
		renderer.CommentBudget = a.commentBudget
	}
	a.renderer = renderer

	a.planner = layout.NewPlanner()
	if a.margin > 0 {
		a.planner.Margin = a.margin
	}

	a.index = keyword.NewIndex(a.keywords)
	return a, nil
}

// Result is the annotation artifact. Fallback is set when the data is
// the standalone HTML grading report rather than the mutated input
// document; Format then reports HTML regardless of the input format.
type Result struct {
	Data     []byte
	Format   format.Format
	Fallback bool
}

// Annotate writes the grading content into the document. hint is a
// filename or extension used alongside magic-byte sniffing to pick the
// codec. The only hard failure for a supported format is a partial
// mutation, which still returns the artifact alongside the error;
// anything else degrades to the fallback report with a warning.
func (a *Annotator) Annotate(data []byte, hint string, content model.Content) (Result, []Warning, error) {
	switch f := format.Detect(data, hint); f {
	case format.DOCX, format.XLSX, format.HTML:
		return a.annotateStructural(data, f, content)
	case format.PDF:
		return a.annotateGeometric(data, content)
	default:
		return Result{}, nil, fmt.Errorf("detecting format of %q: %w", hint, ErrUnsupportedFormat)
	}
}

// structuralDocument is what the DOCX, XLSX, and HTML codecs have in
// common: a structural tree plus format-preserving serialization.
type structuralDocument interface {
	Tree() *structural.Document
	Serialize() ([]byte, error)
}

func parseStructural(data []byte, f format.Format) (structuralDocument, error) {
	switch f {
	case format.DOCX:
		return docx.Parse(data)
	case format.XLSX:
		return xlsx.Parse(data)
	default:
		return htmldoc.Parse(data)
	}
}

// annotateStructural runs the tree locator and rewrites matched targets
// with native styled runs.
func (a *Annotator) annotateStructural(data []byte, f format.Format, content model.Content) (Result, []Warning, error) {
	var warnings []Warning

	doc, err := parseStructural(data, f)
	if err != nil {
		cerr := &CodecError{Format: f, Op: "parse", Err: err}
		return a.fallback(content, cerr.Error()), warnf(warnings, "%v; returning fallback report", cerr), nil
	}
	tree := doc.Tree()

	opts := []structural.LocatorOption{structural.WithSiblingTextLimit(a.siblingLimit)}
	if f == format.XLSX {
		opts = append(opts, structural.WithCellSynthesis())
	}
	matches := structural.NewLocator(a.index, opts...).Locate(tree)

	applied := 0
	var errs []error
	for _, m := range matches {
		ann, ok := content.Annotation(m.Category)
		if !ok {
			warnings = warnf(warnings, "located %s placeholder (%q) but content has nothing for it", m.Category, m.Keyword)
			continue
		}
		target, err := mutate.EnsureTarget(tree, m)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s placeholder: %w", m.Category, err))
			continue
		}
		if err := mutate.Apply(tree, target, a.renderer.NativeRuns(ann)); err != nil {
			errs = append(errs, fmt.Errorf("%s placeholder: %w", m.Category, err))
			continue
		}
		applied++
	}

	if applied == 0 {
		reason := "no grading placeholders found"
		if len(errs) > 0 {
			reason = fmt.Sprintf("no placeholder could be annotated: %v", errs[0])
		}
		return a.fallback(content, reason), warnf(warnings, "%s; returning fallback report", reason), nil
	}

	out, err := doc.Serialize()
	if err != nil {
		cerr := &CodecError{Format: f, Op: "serialize", Err: err}
		return a.fallback(content, cerr.Error()), warnf(warnings, "%v; returning fallback report", cerr), nil
	}

	res := Result{Data: out, Format: f}
	if len(errs) > 0 {
		return res, warnings, &PartialMutationError{Applied: applied, Errs: errs}
	}
	return res, warnings, nil
}

// annotateGeometric runs the page locator and draws planned content
// onto the pages, then appends the incremental update.
func (a *Annotator) annotateGeometric(data []byte, content model.Content) (Result, []Warning, error) {
	var warnings []Warning

	doc, err := pdf.Parse(data)
	if err != nil {
		cerr := &CodecError{Format: format.PDF, Op: "parse", Err: err}
		return a.fallback(content, cerr.Error()), warnf(warnings, "%v; returning fallback report", cerr), nil
	}
	m := doc.Model()

	if a.recognizer == nil {
		for _, page := range m.Pages {
			if len(page.Runs) == 0 && len(page.Images) > 0 {
				warnings = warnf(warnings, "page %d appears scanned and no OCR recognizer is configured", page.Index+1)
			}
		}
	}

	regions := geometric.NewLocator(a.index, a.recognizer).Locate(m)

	drawn := 0
	var skipped []error
	seen := map[model.Category]bool{}
	for _, region := range regions {
		if seen[region.Match.Category] {
			continue
		}
		ann, ok := content.Annotation(region.Match.Category)
		if !ok {
			warnings = warnf(warnings, "located %s placeholder (%q) but content has nothing for it",
				region.Match.Category, region.Match.Keyword)
			continue
		}
		seen[region.Match.Category] = true

		page := m.Pages[region.PageIndex]
		box := a.planner.Plan(region, a.renderer.EstimateSize(ann), page.Bounds())
		drawing, err := a.renderer.Render(ann, box)
		if err != nil {
			rerr := &RasterizationError{Category: region.Match.Category, Err: err}
			warnings = warnf(warnings, "%v; region skipped", rerr)
			skipped = append(skipped, rerr)
			continue
		}
		mutate.Draw(page, drawing)
		drawn++
	}

	if drawn == 0 {
		reason := "no grading placeholders found"
		if len(skipped) > 0 {
			reason = fmt.Sprintf("no placeholder could be annotated: %v", skipped[0])
		}
		return a.fallback(content, reason), warnf(warnings, "%s; returning fallback report", reason), nil
	}

	out, err := doc.Serialize()
	if err != nil {
		cerr := &CodecError{Format: format.PDF, Op: "serialize", Err: err}
		return a.fallback(content, cerr.Error()), warnf(warnings, "%v; returning fallback report", cerr), nil
	}
	return Result{Data: out, Format: format.PDF}, warnings, nil
}

// fallback builds the guaranteed-success HTML report artifact.
func (a *Annotator) fallback(content model.Content, reason string) Result {
	data := fallback.Generate(fallback.Report{
		Score:      content.Score,
		Comment:    content.Comment,
		Instructor: content.Instructor,
		Reason:     reason,
	})
	return Result{Data: data, Format: format.HTML, Fallback: true}
}
