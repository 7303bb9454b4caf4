package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"

	"github.com/tsawler/redpen/structural"
)

// Serialize writes the annotated document back to DOCX bytes. Mutated
// paragraphs and cells are regenerated from the tree; every other byte
// of word/document.xml and every other archive entry is copied
// unchanged.
func (d *Document) Serialize() ([]byte, error) {
	newXML := d.spliceDocument()

	zr, err := zip.NewReader(bytes.NewReader(d.source), int64(len(d.source)))
	if err != nil {
		return nil, fmt.Errorf("reopening ZIP archive: %w", err)
	}

	var out bytes.Buffer
	zw := zip.NewWriter(&out)
	for _, f := range zr.File {
		w, err := zw.Create(f.Name)
		if err != nil {
			return nil, fmt.Errorf("writing %s: %w", f.Name, err)
		}
		if f.Name == documentPath {
			if _, err := w.Write(newXML); err != nil {
				return nil, fmt.Errorf("writing %s: %w", f.Name, err)
			}
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", f.Name, err)
		}
		_, err = io.Copy(w, rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("copying %s: %w", f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("closing ZIP archive: %w", err)
	}
	return out.Bytes(), nil
}

type replacement struct {
	span byteRange
	xml  []byte
}

// spliceDocument regenerates the topmost dirty paragraph and cell nodes
// and splices them into the source XML at their recorded ranges.
func (d *Document) spliceDocument() []byte {
	var repls []replacement
	d.collectReplacements(d.tree.Root(), &repls)
	if len(repls) == 0 {
		return d.docXML
	}
	sort.Slice(repls, func(i, j int) bool {
		return repls[i].span.start < repls[j].span.start
	})

	var out bytes.Buffer
	var pos int64
	for _, r := range repls {
		out.Write(d.docXML[pos:r.span.start])
		out.Write(r.xml)
		pos = r.span.end
	}
	out.Write(d.docXML[pos:])
	return out.Bytes()
}

// collectReplacements descends the tree; the first dirty paragraph or
// cell on each path is regenerated whole, so nested dirt inside it
// needs no further handling.
func (d *Document) collectReplacements(id structural.ID, repls *[]replacement) {
	kind := d.tree.Kind(id)
	if (kind == structural.KindParagraph || kind == structural.KindCell) && d.tree.DirtySubtree(id) {
		if span, ok := d.ranges[id]; ok {
			*repls = append(*repls, replacement{span: span, xml: d.generate(id)})
			return
		}
	}
	for _, c := range d.tree.Children(id) {
		d.collectReplacements(c, repls)
	}
}

// generate builds the WordprocessingML for a node the mutator rebuilt.
// Preserved formatting descriptors are emitted verbatim.
func (d *Document) generate(id structural.ID) []byte {
	var out bytes.Buffer
	d.generateNode(id, &out)
	return out.Bytes()
}

func (d *Document) generateNode(id structural.ID, out *bytes.Buffer) {
	switch d.tree.Kind(id) {
	case structural.KindCell:
		out.WriteString("<w:tc>")
		for _, c := range d.tree.Children(id) {
			d.generateNode(c, out)
		}
		out.WriteString("</w:tc>")
	case structural.KindParagraph:
		out.WriteString("<w:p>")
		for _, c := range d.tree.Children(id) {
			d.generateNode(c, out)
		}
		out.WriteString("</w:p>")
	case structural.KindProps:
		out.WriteString(d.tree.Attr(id, structural.AttrRaw))
	case structural.KindRun:
		d.generateRun(id, out)
	}
}

// generateRun emits one injected run: color and optional font override,
// then the text with inner newlines as <w:br/>.
func (d *Document) generateRun(id structural.ID, out *bytes.Buffer) {
	color := d.tree.Attr(id, structural.AttrColor)
	font := d.tree.Attr(id, structural.AttrFont)

	out.WriteString("<w:r>")
	if color != "" || font != "" {
		out.WriteString("<w:rPr>")
		if font != "" {
			fmt.Fprintf(out, `<w:rFonts w:ascii="%s" w:hAnsi="%s" w:eastAsia="%s"/>`,
				escapeAttr(font), escapeAttr(font), escapeAttr(font))
		}
		if color != "" {
			fmt.Fprintf(out, `<w:color w:val="%s"/>`, escapeAttr(color))
		}
		out.WriteString("</w:rPr>")
	}
	text := d.tree.Text(id)
	for i, line := range bytes.Split([]byte(text), []byte("\n")) {
		if i > 0 {
			out.WriteString("<w:br/>")
		}
		out.WriteString(`<w:t xml:space="preserve">`)
		xml.EscapeText(out, line)
		out.WriteString("</w:t>")
	}
	out.WriteString("</w:r>")
}

func escapeAttr(s string) string {
	var buf bytes.Buffer
	xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
