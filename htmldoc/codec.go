// Package htmldoc is the structural codec for HTML documents (grading
// reports are frequently exported as HTML). The DOM is parsed with
// golang.org/x/net/html; table cells and paragraphs map onto the
// structural tree, and mutated nodes are rewritten in the DOM before
// re-rendering. Untouched DOM content round-trips through the parser's
// renderer.
package htmldoc

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/tsawler/redpen/structural"
)

// Document provides structural access to one parsed HTML document.
type Document struct {
	root *html.Node
	tree *structural.Document
	dom  map[structural.ID]*html.Node
}

// Parse parses HTML bytes and builds the structural tree.
func Parse(data []byte) (*Document, error) {
	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	d := &Document{
		root: root,
		tree: structural.NewDocument(),
		dom:  make(map[structural.ID]*html.Node),
	}
	d.build(root, d.tree.Root(), "")
	d.tree.Seal()
	return d, nil
}

// Tree returns the structural tree for location and mutation.
func (d *Document) Tree() *structural.Document {
	return d.tree
}

// build maps the DOM onto the structural tree. Tables, rows, and cells
// translate directly; p elements become paragraphs; text inside a
// mapped element becomes runs. The inherited CSS color is recorded on
// each run so previously injected annotation spans are recognizable on
// re-annotation.
func (d *Document) build(n *html.Node, parent structural.ID, color string) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			if c.Type == html.TextNode && mapped(d.tree.Kind(parent)) {
				text := c.Data
				if strings.TrimSpace(text) != "" {
					run := d.tree.Add(parent, structural.KindRun)
					d.tree.SetText(run, text)
					if color != "" {
						d.tree.SetAttr(run, structural.AttrColor, color)
					}
					d.dom[run] = c
				}
			}
			continue
		}

		childColor := color
		if hex := styleColor(c); hex != "" {
			childColor = hex
		}

		var kind structural.Kind
		switch c.DataAtom {
		case atom.Table:
			kind = structural.KindTable
		case atom.Tr:
			kind = structural.KindRow
		case atom.Td, atom.Th:
			kind = structural.KindCell
		case atom.P:
			kind = structural.KindParagraph
		default:
			// Transparent wrappers (tbody, div, span, ...) pass the
			// current structural parent through.
			d.build(c, parent, childColor)
			continue
		}

		id := d.tree.Add(parent, kind)
		d.dom[id] = c
		d.build(c, id, childColor)
	}
}

// styleColor extracts a hex color ("RRGGBB", no hash) from an element's
// inline style, or "".
func styleColor(n *html.Node) string {
	for _, a := range n.Attr {
		if a.Key != "style" {
			continue
		}
		for _, decl := range strings.Split(a.Val, ";") {
			k, v, ok := strings.Cut(decl, ":")
			if !ok || strings.TrimSpace(k) != "color" {
				continue
			}
			v = strings.TrimSpace(v)
			if strings.HasPrefix(v, "#") && len(v) == 7 {
				return strings.ToUpper(v[1:])
			}
		}
	}
	return ""
}

// mapped reports whether a structural kind accepts text runs directly.
func mapped(k structural.Kind) bool {
	return k == structural.KindCell || k == structural.KindParagraph
}

// Serialize applies mutated structural nodes back to the DOM and
// renders the document.
func (d *Document) Serialize() ([]byte, error) {
	d.applyDirty(d.tree.Root())

	var out bytes.Buffer
	if err := html.Render(&out, d.root); err != nil {
		return nil, fmt.Errorf("rendering HTML: %w", err)
	}
	return out.Bytes(), nil
}

// applyDirty rewrites the DOM node of each topmost dirty paragraph or
// cell from its structural children.
func (d *Document) applyDirty(id structural.ID) {
	kind := d.tree.Kind(id)
	if (kind == structural.KindParagraph || kind == structural.KindCell) && d.tree.DirtySubtree(id) {
		if n, ok := d.dom[id]; ok {
			d.rewrite(n, id)
			return
		}
	}
	for _, c := range d.tree.Children(id) {
		d.applyDirty(c)
	}
}

// rewrite replaces the DOM node's children with the structural node's
// runs, one styled span per run with <br> between lines.
func (d *Document) rewrite(n *html.Node, id structural.ID) {
	for n.FirstChild != nil {
		n.RemoveChild(n.FirstChild)
	}

	first := true
	d.tree.Walk(id, func(c structural.ID) bool {
		if d.tree.Kind(c) != structural.KindRun {
			return true
		}
		if !first {
			n.AppendChild(&html.Node{Type: html.ElementNode, DataAtom: atom.Br, Data: "br"})
		}
		first = false
		n.AppendChild(d.runNode(c))
		return true
	})
}

// runNode builds a span carrying the run's color and font overrides.
func (d *Document) runNode(run structural.ID) *html.Node {
	var style []string
	if color := d.tree.Attr(run, structural.AttrColor); color != "" {
		style = append(style, "color:#"+color)
	}
	if font := d.tree.Attr(run, structural.AttrFont); font != "" {
		style = append(style, "font-family:"+font)
	}

	span := &html.Node{Type: html.ElementNode, DataAtom: atom.Span, Data: "span"}
	if len(style) > 0 {
		span.Attr = []html.Attribute{{Key: "style", Val: strings.Join(style, ";")}}
	}
	span.AppendChild(&html.Node{Type: html.TextNode, Data: d.tree.Text(run)})
	return span
}
