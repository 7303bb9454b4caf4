package xlsx

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/tsawler/redpen/keyword"
	"github.com/tsawler/redpen/model"
	"github.com/tsawler/redpen/mutate"
	"github.com/tsawler/redpen/render"
	"github.com/tsawler/redpen/structural"
)

const (
	workbookXML = `<?xml version="1.0"?><workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><sheets><sheet name="Sheet1" sheetId="1"/></sheets></workbook>`

	stylesXML = `<?xml version="1.0"?><styleSheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">` +
		`<fonts count="1"><font><sz val="11"/><name val="Calibri"/></font></fonts>` +
		`<cellXfs count="1"><xf numFmtId="0" fontId="0" fillId="0" borderId="0"/></cellXfs>` +
		`</styleSheet>`

	sharedXML = `<?xml version="1.0"?><sst xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" count="2" uniqueCount="2"><si><t>Student</t></si><si><t>评分</t></si></sst>`

	// Row 1 is sparse: A1 and C1 with nothing at B1. Row 3 ends on the
	// label cell, so the score target has to be synthesized.
	sheetXML = `<?xml version="1.0"?><worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><sheetData>` +
		`<row r="1"><c r="A1" t="s"><v>0</v></c><c r="C1"><v>42</v></c></row>` +
		`<row r="3"><c r="A3" t="s"><v>1</v></c></row>` +
		`</sheetData></worksheet>`
)

// buildXlsx assembles a minimal XLSX archive from the given parts.
func buildXlsx(t *testing.T, parts map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range parts {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("creating %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing archive: %v", err)
	}
	return buf.Bytes()
}

func fixtureParts() map[string]string {
	return map[string]string{
		"xl/workbook.xml":          workbookXML,
		"xl/styles.xml":            stylesXML,
		"xl/sharedStrings.xml":     sharedXML,
		"xl/worksheets/sheet1.xml": sheetXML,
	}
}

func entryContent(t *testing.T, data []byte, name string) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("reopening archive: %v", err)
	}
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("opening %s: %v", name, err)
		}
		defer rc.Close()
		content, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("reading %s: %v", name, err)
		}
		return string(content)
	}
	t.Fatalf("entry %s not found", name)
	return ""
}

func TestParseBuildsPaddedGrid(t *testing.T) {
	wb, err := Parse(buildXlsx(t, fixtureParts()))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	tree := wb.Tree()

	tables := tree.Children(tree.Root())
	if len(tables) != 1 {
		t.Fatalf("parsed %d sheets, want 1", len(tables))
	}
	rows := tree.Children(tables[0])
	if len(rows) != 2 {
		t.Fatalf("parsed %d rows, want 2", len(rows))
	}

	// The gap at B1 is padded so C1 stays the third sibling.
	cells := tree.Children(rows[0])
	if len(cells) != 3 {
		t.Fatalf("row 1 has %d cells, want 3 (gap padded)", len(cells))
	}
	for i, want := range []string{"Student", "", "42"} {
		if got := tree.Text(cells[i]); got != want {
			t.Errorf("row 1 cell %d text = %q, want %q", i, got, want)
		}
	}

	labelRow := tree.Children(rows[1])
	if len(labelRow) != 1 {
		t.Fatalf("row 3 has %d cells, want 1", len(labelRow))
	}
	if got := tree.Text(labelRow[0]); got != "评分" {
		t.Errorf("label cell text = %q, want 评分 (shared string resolved)", got)
	}
}

func TestSerializeWithoutMutationIsVerbatim(t *testing.T) {
	wb, err := Parse(buildXlsx(t, fixtureParts()))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	out, err := wb.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if got := entryContent(t, out, "xl/worksheets/sheet1.xml"); got != sheetXML {
		t.Error("unmutated sheet1.xml changed during round trip")
	}
	if got := entryContent(t, out, "xl/styles.xml"); got != stylesXML {
		t.Error("unmutated styles.xml changed during round trip")
	}
}

// annotate locates the 评分 label and writes the score into the
// synthesized neighbor cell as a red run.
func annotate(t *testing.T, wb *Workbook) {
	t.Helper()
	tree := wb.Tree()
	idx := keyword.NewIndex(keyword.DefaultConfig())
	matches := structural.NewLocator(idx, structural.WithCellSynthesis()).Locate(tree)
	if len(matches) != 1 {
		t.Fatalf("Locate() = %d matches, want 1", len(matches))
	}
	if matches[0].Category != model.CategoryScore {
		t.Fatalf("category = %v, want score", matches[0].Category)
	}
	target, err := mutate.EnsureTarget(tree, matches[0])
	if err != nil {
		t.Fatalf("EnsureTarget: %v", err)
	}
	if err := mutate.Apply(tree, target, []render.NativeRun{{Text: "87 / 100", Color: model.Red}}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
}

func TestSerializeInjectsInlineString(t *testing.T) {
	wb, err := Parse(buildXlsx(t, fixtureParts()))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	annotate(t, wb)

	out, err := wb.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	sheet := entryContent(t, out, "xl/worksheets/sheet1.xml")
	want := `<c r="B3" s="1" t="inlineStr"><is><t xml:space="preserve">87 / 100</t></is></c>`
	if !strings.Contains(sheet, want) {
		t.Errorf("sheet1.xml missing injected cell %s\ngot: %s", want, sheet)
	}
	// The label cell keeps its original bytes inside the rebuilt row.
	if !strings.Contains(sheet, `<c r="A3" t="s"><v>1</v></c>`) {
		t.Error("label cell bytes changed during row rebuild")
	}
	// The sparse row was never touched.
	if !strings.Contains(sheet, `<row r="1"><c r="A1" t="s"><v>0</v></c><c r="C1"><v>42</v></c></row>`) {
		t.Error("untouched row changed; padding cells leaked into output")
	}
}

func TestSerializePatchesStyles(t *testing.T) {
	wb, err := Parse(buildXlsx(t, fixtureParts()))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	annotate(t, wb)

	out, err := wb.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	styles := entryContent(t, out, "xl/styles.xml")
	for _, want := range []string{
		`<fonts count="2">`,
		`<font><color rgb="FFFF0000"/></font>`,
		`<cellXfs count="2">`,
		`<xf numFmtId="0" fontId="1" fillId="0" borderId="0" applyFont="1"/>`,
	} {
		if !strings.Contains(styles, want) {
			t.Errorf("patched styles.xml missing %s", want)
		}
	}

	// Shared strings are never rewritten.
	if got := entryContent(t, out, "xl/sharedStrings.xml"); got != sharedXML {
		t.Error("sharedStrings.xml changed during serialization")
	}
}

func TestSerializeWithoutStylesPartWritesUnstyledCell(t *testing.T) {
	parts := fixtureParts()
	delete(parts, "xl/styles.xml")

	wb, err := Parse(buildXlsx(t, parts))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	annotate(t, wb)

	out, err := wb.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	sheet := entryContent(t, out, "xl/worksheets/sheet1.xml")
	if !strings.Contains(sheet, `<c r="B3" t="inlineStr">`) {
		t.Error("cell missing or unexpectedly styled without a styles part")
	}
}

func TestAnnotateTwiceIsIdempotent(t *testing.T) {
	first, err := Parse(buildXlsx(t, fixtureParts()))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	annotate(t, first)
	out1, err := first.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	second, err := Parse(out1)
	if err != nil {
		t.Fatalf("Parse(annotated): %v", err)
	}
	annotate(t, second)
	out2, err := second.Serialize()
	if err != nil {
		t.Fatalf("Serialize(annotated): %v", err)
	}

	for _, name := range []string{"xl/worksheets/sheet1.xml", "xl/styles.xml"} {
		if entryContent(t, out1, name) != entryContent(t, out2, name) {
			t.Errorf("second annotation changed %s", name)
		}
	}
}

func TestParseRejectsWorkbookWithoutSheets(t *testing.T) {
	data := buildXlsx(t, map[string]string{"xl/workbook.xml": workbookXML})
	if _, err := Parse(data); err == nil {
		t.Error("Parse() accepted a workbook without worksheets")
	}
}

func TestParseCellRef(t *testing.T) {
	tests := []struct {
		ref      string
		col, row int
		wantErr  bool
	}{
		{ref: "A1", col: 0, row: 0},
		{ref: "C7", col: 2, row: 6},
		{ref: "Z100", col: 25, row: 99},
		{ref: "AA1", col: 26, row: 0},
		{ref: "AB12", col: 27, row: 11},
		{ref: "", wantErr: true},
		{ref: "12", wantErr: true},
		{ref: "AB", wantErr: true},
		{ref: "A0", wantErr: true},
	}
	for _, tt := range tests {
		col, row, err := ParseCellRef(tt.ref)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseCellRef(%q) succeeded, want error", tt.ref)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseCellRef(%q): %v", tt.ref, err)
			continue
		}
		if col != tt.col || row != tt.row {
			t.Errorf("ParseCellRef(%q) = (%d, %d), want (%d, %d)", tt.ref, col, row, tt.col, tt.row)
		}
	}
}

func TestCellRefRoundTrip(t *testing.T) {
	for _, col := range []int{0, 1, 25, 26, 51, 701, 702} {
		ref := CellRef(col, 9)
		gotCol, gotRow, err := ParseCellRef(ref)
		if err != nil {
			t.Errorf("ParseCellRef(%q): %v", ref, err)
			continue
		}
		if gotCol != col || gotRow != 9 {
			t.Errorf("round trip of column %d through %q = (%d, %d)", col, ref, gotCol, gotRow)
		}
	}
	if got := IndexToColumn(-1); got != "" {
		t.Errorf("IndexToColumn(-1) = %q, want empty", got)
	}
}
