// Package mutate applies rendered annotation content to document
// models. Structural writes are idempotent overwrites: the target's
// existing children are cleared before new content is inserted, with
// any formatting descriptor detached first and reattached after, so
// re-annotating a document replaces earlier content instead of
// stacking more runs onto it. Geometric writes trust the layout
// planner's boxes and perform no collision logic of their own.
package mutate

import (
	"fmt"

	"github.com/tsawler/redpen/geometric"
	"github.com/tsawler/redpen/render"
	"github.com/tsawler/redpen/structural"
)

// EnsureTarget resolves a structural match to a writable node. When the
// locator could not find an adjacent cell (grid documents with a ragged
// row), a new cell is synthesized after the label cell.
func EnsureTarget(doc *structural.Document, m structural.Match) (structural.ID, error) {
	if m.Target != structural.Invalid {
		return m.Target, nil
	}
	row := doc.Parent(m.Anchor)
	if row == structural.Invalid {
		return structural.Invalid, fmt.Errorf("label cell %d has no parent row", m.Anchor)
	}
	return doc.Add(row, structural.KindCell), nil
}

// Apply writes the annotation runs into the target node. Paragraph
// targets receive the runs directly; cell targets receive a fresh
// paragraph holding them.
func Apply(doc *structural.Document, target structural.ID, runs []render.NativeRun) error {
	switch doc.Kind(target) {
	case structural.KindParagraph:
		clearKeepingProps(doc, target)
		appendRuns(doc, target, runs)
	case structural.KindCell:
		clearKeepingProps(doc, target)
		para := doc.Add(target, structural.KindParagraph)
		appendRuns(doc, para, runs)
	default:
		return fmt.Errorf("unsupported target kind %s", doc.Kind(target))
	}
	return nil
}

// clearKeepingProps clears the node's children, holding on to its
// formatting descriptor so it can be reattached immediately after.
// Repeated annotation therefore neither duplicates runs nor loses the
// node-level style.
func clearKeepingProps(doc *structural.Document, id structural.ID) {
	props := structural.Invalid
	for _, c := range doc.Children(id) {
		if doc.Kind(c) == structural.KindProps {
			props = c
			break
		}
	}
	doc.ClearChildren(id)
	if props != structural.Invalid {
		doc.Attach(id, props)
	}
}

func appendRuns(doc *structural.Document, parent structural.ID, runs []render.NativeRun) {
	for _, r := range runs {
		run := doc.Add(parent, structural.KindRun)
		doc.SetText(run, r.Text)
		doc.SetAttr(run, structural.AttrColor, fmt.Sprintf("%02X%02X%02X", r.Color.R, r.Color.G, r.Color.B))
		if r.FontName != "" {
			doc.SetAttr(run, structural.AttrFont, r.FontName)
		}
	}
}

// Draw places a rendered drawing on a geometric page. The box comes
// from the layout planner and is applied as-is.
func Draw(page *geometric.Page, d geometric.Drawing) {
	page.Drawings = append(page.Drawings, d)
}
