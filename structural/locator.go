package structural

import (
	"strings"
	"unicode/utf8"

	"github.com/tsawler/redpen/keyword"
	"github.com/tsawler/redpen/model"
)

// DefaultSiblingTextLimit is the default maximum length, in runes, of a
// paragraph's existing text for it to be treated as a blank answer slot
// in the paragraph pass. This is a heuristic: a short sibling is assumed
// to be an empty or placeholder line rather than genuine body content.
const DefaultSiblingTextLimit = 20

// Match is one resolved placeholder in a structural document. Target is
// the node that receives annotation content. For grid documents the
// label cell may be the last cell of its row; Target is then Invalid and
// Anchor names the label cell so the mutator can synthesize the
// adjacent cell.
type Match struct {
	model.PlaceholderMatch
	Target ID
	Anchor ID
}

// Locator finds grading placeholders in structural documents.
type Locator struct {
	index            *keyword.Index
	siblingTextLimit int
	allowSynthesis   bool
}

// LocatorOption configures a Locator.
type LocatorOption func(*Locator)

// WithSiblingTextLimit overrides the blank-slot heuristic threshold for
// the paragraph pass.
func WithSiblingTextLimit(runes int) LocatorOption {
	return func(l *Locator) {
		l.siblingTextLimit = runes
	}
}

// WithCellSynthesis allows matches whose target cell does not exist yet.
// Grid codecs (spreadsheets) enable this; the mutator synthesizes the
// missing adjacent cell before writing.
func WithCellSynthesis() LocatorOption {
	return func(l *Locator) {
		l.allowSynthesis = true
	}
}

// NewLocator creates a locator using the given keyword index.
func NewLocator(idx *keyword.Index, opts ...LocatorOption) *Locator {
	l := &Locator{
		index:            idx,
		siblingTextLimit: DefaultSiblingTextLimit,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Locate runs the cell pass and then, for categories the cell pass did
// not resolve, the paragraph pass. Each document node is claimed by at
// most one match; a claimed node is excluded from all later testing.
func (l *Locator) Locate(doc *Document) []Match {
	claimed := make(map[ID]bool)
	resolved := make(map[model.Category]bool)

	matches := l.cellPass(doc, claimed, resolved)
	matches = append(matches, l.paragraphPass(doc, claimed, resolved)...)
	return matches
}

// cellPass tests every table cell's full text against each category.
// A matched cell targets its next sibling cell if that cell is
// unclaimed.
func (l *Locator) cellPass(doc *Document, claimed map[ID]bool, resolved map[model.Category]bool) []Match {
	var matches []Match

	for _, cell := range doc.NodesOfKind(KindCell) {
		if claimed[cell] {
			continue
		}
		text := doc.Text(cell)
		if text == "" {
			continue
		}
		for _, cat := range l.index.Categories() {
			m, ok := l.index.Match(cat, text)
			if !ok {
				continue
			}
			target := doc.NextSibling(cell)
			if target != Invalid && (doc.Kind(target) != KindCell || claimed[target]) {
				break
			}
			if target == Invalid && !l.allowSynthesis {
				break
			}
			matches = append(matches, Match{
				PlaceholderMatch: m,
				Target:           target,
				Anchor:           cell,
			})
			claimed[cell] = true
			if target != Invalid {
				claimed[target] = true
			}
			resolved[cat] = true
			break
		}
	}
	return matches
}

// paragraphPass handles labels that appear as standalone paragraphs
// ("Comments:" on its own line) for categories the cell pass left
// unresolved. The next sibling paragraph is targeted only when its
// existing text is within the blank-slot threshold, so genuine body
// content following a heading is not overwritten.
func (l *Locator) paragraphPass(doc *Document, claimed map[ID]bool, resolved map[model.Category]bool) []Match {
	var matches []Match

	for _, para := range doc.NodesOfKind(KindParagraph) {
		if claimed[para] || l.insideCell(doc, para) {
			continue
		}
		text := strings.TrimSpace(doc.Text(para))
		if text == "" {
			continue
		}
		for _, cat := range l.index.Categories() {
			if resolved[cat] {
				continue
			}
			kw, ok := l.labelKeyword(cat, text)
			if !ok {
				continue
			}
			sibling := doc.NextSibling(para)
			if sibling == Invalid || doc.Kind(sibling) != KindParagraph || claimed[sibling] {
				continue
			}
			over := utf8.RuneCountInString(strings.TrimSpace(doc.Text(sibling))) > l.siblingTextLimit
			if over && !injectedContent(doc, sibling) {
				continue
			}
			matches = append(matches, Match{
				PlaceholderMatch: model.PlaceholderMatch{
					Category: cat,
					Keyword:  kw,
					Priority: utf8.RuneCountInString(kw),
				},
				Target: sibling,
				Anchor: para,
			})
			claimed[para] = true
			claimed[sibling] = true
			resolved[cat] = true
			break
		}
	}
	return matches
}

// labelKeyword reports whether text is exactly a keyword of cat, with
// an optional trailing colon (ASCII or fullwidth).
func (l *Locator) labelKeyword(cat model.Category, text string) (string, bool) {
	for _, kw := range l.index.Keywords(cat) {
		if text == kw || text == kw+":" || text == kw+"：" {
			return kw, true
		}
	}
	return "", false
}

// injectedContent reports whether every run under id carries an ink
// color override. Codecs record run colors on parse, and original
// document text almost never colors every run of the slot paragraph, so
// a fully colored sibling is taken to be a previous annotation and may
// be overwritten regardless of length. This keeps re-annotation
// idempotent for comments longer than the blank-slot threshold.
func injectedContent(doc *Document, id ID) bool {
	runs := 0
	colored := true
	doc.Walk(id, func(n ID) bool {
		if doc.Kind(n) != KindRun {
			return true
		}
		runs++
		if doc.Attr(n, AttrColor) == "" {
			colored = false
			return false
		}
		return true
	})
	return runs > 0 && colored
}

// insideCell reports whether any ancestor of id is a table cell.
func (l *Locator) insideCell(doc *Document, id ID) bool {
	for p := doc.Parent(id); p != Invalid; p = doc.Parent(p) {
		if doc.Kind(p) == KindCell {
			return true
		}
	}
	return false
}
