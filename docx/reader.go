// Package docx is the structural codec for DOCX (Office Open XML)
// documents. Parsing builds a structural tree from word/document.xml
// while recording the byte range each paragraph and table cell occupies
// in the source XML. Serialization regenerates only the nodes the
// mutator touched and splices them back, so every untouched byte of
// the original document (styles, section properties, drawings,
// headers) survives annotation verbatim.
package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"

	"github.com/tsawler/redpen/structural"
)

const documentPath = "word/document.xml"

// byteRange is a half-open [start, end) span in the document XML.
type byteRange struct {
	start, end int64
}

// Document provides structural access to one parsed DOCX file.
type Document struct {
	source []byte
	docXML []byte
	tree   *structural.Document
	ranges map[structural.ID]byteRange
}

// Parse opens DOCX bytes and builds the structural tree.
func Parse(data []byte) (*Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening ZIP archive: %w", err)
	}

	docXML, err := fileContent(zr, documentPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", documentPath, err)
	}

	d := &Document{
		source: data,
		docXML: docXML,
		tree:   structural.NewDocument(),
		ranges: make(map[structural.ID]byteRange),
	}
	if err := d.buildTree(); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", documentPath, err)
	}
	d.tree.Seal()
	return d, nil
}

// Tree returns the structural tree for location and mutation.
func (d *Document) Tree() *structural.Document {
	return d.tree
}

// fileContent reads one archive entry.
func fileContent(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name == name {
			rc, err := f.Open()
			if err != nil {
				return nil, err
			}
			defer rc.Close()
			return io.ReadAll(rc)
		}
	}
	return nil, fmt.Errorf("file not found: %s", name)
}

// buildTree walks document.xml once, creating arena nodes for body
// paragraphs, tables, rows, and cells, and recording their byte ranges.
// Formatting descriptors (pPr, tcPr) are preserved as raw fragments.
func (d *Document) buildTree() error {
	dec := xml.NewDecoder(bytes.NewReader(d.docXML))

	type frame struct {
		local string
		node  structural.ID // Invalid for elements with no arena node
		arena structural.ID // arena parent for children of this element
	}
	stack := []frame{{local: "", node: structural.Invalid, arena: structural.Invalid}}
	inBody := false

	var prev int64
	for {
		tokStart := prev
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		prev = dec.InputOffset()

		switch t := tok.(type) {
		case xml.StartElement:
			parent := stack[len(stack)-1].arena
			f := frame{local: t.Name.Local, node: structural.Invalid, arena: parent}

			switch t.Name.Local {
			case "body":
				inBody = true
				f.arena = d.tree.Root()
			case "p":
				if inBody && d.isBlockParent(parent) {
					id := d.tree.Add(parent, structural.KindParagraph)
					d.ranges[id] = byteRange{start: tokStart}
					f.node = id
					f.arena = id
				}
			case "tbl":
				if inBody && d.isBlockParent(parent) {
					id := d.tree.Add(parent, structural.KindTable)
					d.ranges[id] = byteRange{start: tokStart}
					f.node = id
					f.arena = id
				}
			case "tr":
				if d.tree.Kind(parent) == structural.KindTable {
					id := d.tree.Add(parent, structural.KindRow)
					d.ranges[id] = byteRange{start: tokStart}
					f.node = id
					f.arena = id
				}
			case "tc":
				if d.tree.Kind(parent) == structural.KindRow {
					id := d.tree.Add(parent, structural.KindCell)
					d.ranges[id] = byteRange{start: tokStart}
					f.node = id
					f.arena = id
				}
			case "pPr", "tcPr":
				if parent != structural.Invalid {
					if err := dec.Skip(); err != nil {
						return err
					}
					end := dec.InputOffset()
					props := d.tree.Add(parent, structural.KindProps)
					d.tree.SetAttr(props, structural.AttrRaw, string(d.docXML[tokStart:end]))
					prev = end
					continue
				}
			case "r":
				if d.tree.Kind(parent) == structural.KindParagraph {
					text, color, end, err := d.readRunText(dec)
					if err != nil {
						return err
					}
					run := d.tree.Add(parent, structural.KindRun)
					d.tree.SetText(run, text)
					if color != "" {
						d.tree.SetAttr(run, structural.AttrColor, color)
					}
					prev = end
					continue
				}
			}
			stack = append(stack, f)

		case xml.EndElement:
			top := stack[len(stack)-1]
			if top.local == t.Name.Local {
				if top.node != structural.Invalid {
					r := d.ranges[top.node]
					r.end = dec.InputOffset()
					d.ranges[top.node] = r
				}
				if top.local == "body" {
					inBody = false
				}
				stack = stack[:len(stack)-1]
			}
		}
	}
}

// isBlockParent reports whether paragraphs and tables may attach here:
// the body root or a table cell.
func (d *Document) isBlockParent(id structural.ID) bool {
	if id == structural.Invalid {
		return false
	}
	k := d.tree.Kind(id)
	return k == structural.KindDocument || k == structural.KindCell
}

// readRunText consumes a <w:r> element, returning its literal text with
// tabs and breaks folded in, its color override if any, plus the byte
// offset just past </w:r>. The color lets the locator recognize
// previously injected annotation runs.
func (d *Document) readRunText(dec *xml.Decoder) (string, string, int64, error) {
	var sb bytes.Buffer
	var color string
	depth := 1
	inT := false
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return "", "", 0, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch t.Name.Local {
			case "t":
				inT = true
			case "tab":
				sb.WriteByte('\t')
			case "br":
				sb.WriteByte('\n')
			case "color":
				for _, a := range t.Attr {
					if a.Name.Local == "val" {
						color = a.Value
					}
				}
			}
		case xml.EndElement:
			depth--
			if t.Name.Local == "t" {
				inT = false
			}
		case xml.CharData:
			if inT {
				sb.Write(t)
			}
		}
	}
	return sb.String(), color, dec.InputOffset(), nil
}
