package xlsx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/tsawler/redpen/structural"
)

const stylesPath = "xl/styles.xml"

// Serialize writes the annotated workbook back to XLSX bytes. Mutated
// cells are regenerated as inline strings; rows that gained cells are
// rebuilt from their original cell bytes plus the new ones. Everything
// else, including shared strings and styles of untouched cells, is
// copied verbatim.
func (wb *Workbook) Serialize() ([]byte, error) {
	styles := wb.prepareStyles()

	sheetXML := make([][]byte, len(wb.sheets))
	for i := range wb.sheets {
		sheetXML[i] = wb.sheets[i].data
	}

	tables := wb.tree.Children(wb.tree.Root())
	for sheet, table := range tables {
		if sheet >= len(wb.sheets) {
			break
		}
		repls := wb.sheetReplacements(table, styles)
		if len(repls) > 0 {
			sheetXML[sheet] = splice(wb.sheets[sheet].data, repls)
		}
	}

	return wb.rebuildArchive(sheetXML, styles)
}

type replacement struct {
	span byteRange
	xml  []byte
}

// sheetReplacements computes the XML splices for one worksheet. A row
// is rebuilt whole when it gained cells; otherwise each mutated cell is
// replaced in place.
func (wb *Workbook) sheetReplacements(table structural.ID, styles *styleTable) []replacement {
	var repls []replacement
	for _, row := range wb.tree.Children(table) {
		info, ok := wb.rows[row]
		if !ok {
			continue
		}
		needsRebuild := false
		for _, cell := range wb.tree.Children(row) {
			if !wb.tree.DirtySubtree(cell) {
				continue
			}
			if ci, ok := wb.cells[cell]; !ok || !ci.present {
				needsRebuild = true
				break
			}
		}

		if needsRebuild {
			repls = append(repls, replacement{span: info.span, xml: wb.rebuildRow(row, info, styles)})
			continue
		}
		for _, cell := range wb.tree.Children(row) {
			if !wb.tree.DirtySubtree(cell) {
				continue
			}
			ci := wb.cells[cell]
			repls = append(repls, replacement{
				span: ci.span,
				xml:  wb.generateCell(cell, ci.col, info.index, ci.style, styles),
			})
		}
	}
	sort.Slice(repls, func(i, j int) bool {
		return repls[i].span.start < repls[j].span.start
	})
	return repls
}

// rebuildRow regenerates a <row> element: original cells keep their
// source bytes, mutated and synthesized cells are generated, and
// untouched padding placeholders are dropped.
func (wb *Workbook) rebuildRow(row structural.ID, info rowInfo, styles *styleTable) []byte {
	var out bytes.Buffer
	tag := info.startTag
	if strings.HasSuffix(tag, "/>") {
		tag = strings.TrimSuffix(tag, "/>") + ">"
	}
	out.WriteString(tag)

	for col, cell := range wb.tree.Children(row) {
		ci, known := wb.cells[cell]
		dirty := wb.tree.DirtySubtree(cell)
		switch {
		case known && ci.present && !dirty:
			out.Write(wb.sheets[ci.sheet].data[ci.span.start:ci.span.end])
		case dirty:
			column := col
			style := ""
			if known {
				column = ci.col
				style = ci.style
			}
			out.Write(wb.generateCell(cell, column, info.index, style, styles))
		}
	}
	out.WriteString("</row>")
	return out.Bytes()
}

// generateCell emits one mutated cell as an inline string. The original
// style index is preserved when present; otherwise the injected ink
// color's style is used.
func (wb *Workbook) generateCell(cell structural.ID, col, rowIdx int, style string, styles *styleTable) []byte {
	text := wb.tree.Text(cell)
	if style == "" {
		style = styles.styleFor(wb.cellColor(cell))
	}

	var out bytes.Buffer
	out.WriteString(`<c r="` + CellRef(col, rowIdx) + `"`)
	if style != "" {
		out.WriteString(` s="` + style + `"`)
	}
	out.WriteString(` t="inlineStr"><is><t xml:space="preserve">`)
	xml.EscapeText(&out, []byte(text))
	out.WriteString(`</t></is></c>`)
	return out.Bytes()
}

// cellColor returns the injected color of the first run in the cell.
func (wb *Workbook) cellColor(cell structural.ID) string {
	color := ""
	wb.tree.Walk(cell, func(id structural.ID) bool {
		if wb.tree.Kind(id) == structural.KindRun {
			color = wb.tree.Attr(id, structural.AttrColor)
			return false
		}
		return true
	})
	return color
}

// styleTable tracks the font styles injected into xl/styles.xml for
// annotation ink colors. Styles are allocated lazily as mutated cells
// are generated.
type styleTable struct {
	source   []byte
	indexFor map[string]string
	fonts    []string // hex colors, in injection order
	fontBase int
	xfBase   int
}

// prepareStyles loads styles.xml and reads the font and cellXfs counts
// that new style indices build on. A missing or unrecognized styles
// part disables style injection; cells are still written, unstyled.
func (wb *Workbook) prepareStyles() *styleTable {
	st := &styleTable{indexFor: make(map[string]string)}

	zr, err := zip.NewReader(bytes.NewReader(wb.source), int64(len(wb.source)))
	if err != nil {
		return st
	}
	st.source, _ = fileContent(zr, stylesPath)
	if st.source == nil {
		return st
	}

	fontCount, okF := countAttr(st.source, "<fonts ")
	xfCount, okX := countAttr(st.source, "<cellXfs ")
	if !okF || !okX {
		st.source = nil
		return st
	}
	st.fontBase = fontCount
	st.xfBase = xfCount
	return st
}

// styleFor returns the style index for a color, allocating one when the
// color is new. An empty return means styles cannot be injected and the
// cell goes unstyled.
func (st *styleTable) styleFor(color string) string {
	if color == "" || st.source == nil {
		return ""
	}
	if s, ok := st.indexFor[color]; ok {
		return s
	}
	s := fmt.Sprintf("%d", st.xfBase+len(st.fonts))
	st.indexFor[color] = s
	st.fonts = append(st.fonts, color)
	return s
}

// render returns the patched styles.xml, or nil when nothing changed.
func (st *styleTable) render() []byte {
	if st.source == nil || len(st.fonts) == 0 {
		return nil
	}
	out := string(st.source)

	var fontsXML, xfsXML strings.Builder
	for i, color := range st.fonts {
		fmt.Fprintf(&fontsXML, `<font><color rgb="FF%s"/></font>`, color)
		fmt.Fprintf(&xfsXML, `<xf numFmtId="0" fontId="%d" fillId="0" borderId="0" applyFont="1"/>`, st.fontBase+i)
	}
	out = strings.Replace(out, "</fonts>", fontsXML.String()+"</fonts>", 1)
	out = strings.Replace(out, "</cellXfs>", xfsXML.String()+"</cellXfs>", 1)
	out = bumpCount(out, "<fonts ", len(st.fonts))
	out = bumpCount(out, "<cellXfs ", len(st.fonts))
	return []byte(out)
}

// countAttr extracts the count attribute of the element starting with
// marker.
func countAttr(data []byte, marker string) (int, bool) {
	i := bytes.Index(data, []byte(marker))
	if i < 0 {
		return 0, false
	}
	seg := data[i:]
	j := bytes.Index(seg, []byte(`count="`))
	if j < 0 {
		return 0, false
	}
	var n int
	if _, err := fmt.Sscanf(string(seg[j+len(`count="`):]), "%d", &n); err != nil {
		return 0, false
	}
	return n, true
}

// bumpCount rewrites the count attribute of the element starting with
// marker, adding delta.
func bumpCount(data string, marker string, delta int) string {
	i := strings.Index(data, marker)
	if i < 0 {
		return data
	}
	j := strings.Index(data[i:], `count="`)
	if j < 0 {
		return data
	}
	start := i + j + len(`count="`)
	end := strings.Index(data[start:], `"`)
	if end < 0 {
		return data
	}
	var n int
	if _, err := fmt.Sscanf(data[start:start+end], "%d", &n); err != nil {
		return data
	}
	return data[:start] + fmt.Sprintf("%d", n+delta) + data[start+end:]
}

// rebuildArchive writes the output ZIP, substituting patched sheets and
// styles.
func (wb *Workbook) rebuildArchive(sheetXML [][]byte, styles *styleTable) ([]byte, error) {
	patched := make(map[string][]byte, len(wb.sheets)+1)
	for i, sf := range wb.sheets {
		patched[sf.name] = sheetXML[i]
	}
	if s := styles.render(); s != nil {
		patched[stylesPath] = s
	}

	zr, err := zip.NewReader(bytes.NewReader(wb.source), int64(len(wb.source)))
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
		if content, ok := patched[f.Name]; ok {
			if _, err := w.Write(content); err != nil {
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

// splice applies ordered, non-overlapping replacements to data.
func splice(data []byte, repls []replacement) []byte {
	var out bytes.Buffer
	var pos int64
	for _, r := range repls {
		out.Write(data[pos:r.span.start])
		out.Write(r.xml)
		pos = r.span.end
	}
	out.Write(data[pos:])
	return out.Bytes()
}
