// Package xlsx is the grid codec for XLSX (Office Open XML) workbooks.
// Each worksheet maps onto the structural tree as one table: rows keep
// their sparse cells padded with empty placeholders so that the next
// sibling of a label cell is always its true grid neighbor.
// Serialization splices regenerated cells back into the worksheet XML
// and writes injected values as inline strings, leaving shared strings
// and every untouched cell's formatting exactly as they were.
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

// byteRange is a half-open [start, end) span in one worksheet's XML.
type byteRange struct {
	start, end int64
}

// cellInfo records where an arena cell came from in its worksheet.
type cellInfo struct {
	sheet    int
	row, col int
	span     byteRange
	style    string // original s attribute, kept on overwrite
	present  bool   // false for gap-padding placeholder cells
}

// rowInfo records one <row> element's location and start tag.
type rowInfo struct {
	sheet    int
	span     byteRange
	startTag string
	index    int // 0-indexed row number
}

// sheetFile is one parsed worksheet.
type sheetFile struct {
	name string
	data []byte
}

// Workbook provides structural access to one parsed XLSX file.
type Workbook struct {
	source []byte
	sheets []sheetFile
	shared []string

	tree  *structural.Document
	cells map[structural.ID]cellInfo
	rows  map[structural.ID]rowInfo
}

// Parse opens XLSX bytes and builds the structural tree.
func Parse(data []byte) (*Workbook, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening ZIP archive: %w", err)
	}

	wb := &Workbook{
		source: data,
		tree:   structural.NewDocument(),
		cells:  make(map[structural.ID]cellInfo),
		rows:   make(map[structural.ID]rowInfo),
	}

	if err := wb.parseSharedStrings(zr); err != nil {
		return nil, fmt.Errorf("parsing shared strings: %w", err)
	}

	var names []string
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "xl/worksheets/") && strings.HasSuffix(f.Name, ".xml") {
			names = append(names, f.Name)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no worksheets found")
	}
	sort.Strings(names)

	for i, name := range names {
		content, err := fileContent(zr, name)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		wb.sheets = append(wb.sheets, sheetFile{name: name, data: content})
		if err := wb.buildSheet(i); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
	}
	wb.tree.Seal()
	return wb, nil
}

// Tree returns the structural tree for location and mutation.
func (wb *Workbook) Tree() *structural.Document {
	return wb.tree
}

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

// sharedStringsXML mirrors xl/sharedStrings.xml: each <si> may hold one
// <t> or several rich-text runs.
type sharedStringsXML struct {
	Items []sharedStringItem `xml:"si"`
}

type sharedStringItem struct {
	Text string          `xml:"t"`
	Runs []sharedTextRun `xml:"r"`
}

type sharedTextRun struct {
	Text string `xml:"t"`
}

func (wb *Workbook) parseSharedStrings(zr *zip.Reader) error {
	data, err := fileContent(zr, "xl/sharedStrings.xml")
	if err != nil {
		// Optional part; workbooks with only inline or numeric cells
		// have no shared strings.
		return nil
	}
	var ss sharedStringsXML
	if err := xml.Unmarshal(data, &ss); err != nil {
		return err
	}
	wb.shared = make([]string, 0, len(ss.Items))
	for _, si := range ss.Items {
		if len(si.Runs) > 0 {
			var sb strings.Builder
			for _, r := range si.Runs {
				sb.WriteString(r.Text)
			}
			wb.shared = append(wb.shared, sb.String())
			continue
		}
		wb.shared = append(wb.shared, si.Text)
	}
	return nil
}

// buildSheet walks one worksheet, creating a table node with padded
// rows and recording byte ranges for cells and rows.
func (wb *Workbook) buildSheet(sheet int) error {
	data := wb.sheets[sheet].data
	dec := xml.NewDecoder(bytes.NewReader(data))

	table := wb.tree.Add(wb.tree.Root(), structural.KindTable)

	var (
		prev     int64
		rowID    = structural.Invalid
		rowStart int64
		rowTag   string
		rowIdx   = -1
		nextCol  int
	)

	closeRow := func(end int64) {
		if rowID == structural.Invalid {
			return
		}
		wb.rows[rowID] = rowInfo{
			sheet:    sheet,
			span:     byteRange{start: rowStart, end: end},
			startTag: rowTag,
			index:    rowIdx,
		}
		rowID = structural.Invalid
	}

	for {
		tokStart := prev
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		prev = dec.InputOffset()

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "row":
				rowID = wb.tree.Add(table, structural.KindRow)
				rowStart = tokStart
				rowTag = string(data[tokStart:prev])
				rowIdx++
				if r := attr(t, "r"); r != "" {
					var n int
					fmt.Sscanf(r, "%d", &n)
					if n > 0 {
						rowIdx = n - 1
					}
				}
				nextCol = 0
			case "c":
				if rowID == structural.Invalid {
					continue
				}
				col := nextCol
				if ref := attr(t, "r"); ref != "" {
					if c, _, err := ParseCellRef(ref); err == nil {
						col = c
					}
				}
				// Pad skipped columns so grid adjacency holds.
				for nextCol < col {
					pad := wb.tree.Add(rowID, structural.KindCell)
					wb.cells[pad] = cellInfo{sheet: sheet, row: rowIdx, col: nextCol}
					nextCol++
				}

				style := attr(t, "s")
				typ := attr(t, "t")
				text, end, err := wb.readCellValue(dec, typ)
				if err != nil {
					return err
				}
				prev = end

				cell := wb.tree.Add(rowID, structural.KindCell)
				if text != "" {
					run := wb.tree.Add(cell, structural.KindRun)
					wb.tree.SetText(run, text)
				}
				wb.cells[cell] = cellInfo{
					sheet:   sheet,
					row:     rowIdx,
					col:     col,
					span:    byteRange{start: tokStart, end: end},
					style:   style,
					present: true,
				}
				nextCol = col + 1
			}
		case xml.EndElement:
			if t.Name.Local == "row" {
				closeRow(prev)
			}
		}
	}
	return nil
}

// readCellValue consumes a <c> element and resolves its display text:
// shared-string index, inline string, or literal value.
func (wb *Workbook) readCellValue(dec *xml.Decoder, typ string) (string, int64, error) {
	var raw bytes.Buffer
	depth := 1
	capture := false
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return "", 0, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if t.Name.Local == "v" || t.Name.Local == "t" {
				capture = true
			}
		case xml.EndElement:
			depth--
			capture = false
		case xml.CharData:
			if capture {
				raw.Write(t)
			}
		}
	}
	end := dec.InputOffset()

	value := raw.String()
	if typ == "s" {
		var idx int
		if _, err := fmt.Sscanf(value, "%d", &idx); err == nil && idx >= 0 && idx < len(wb.shared) {
			return wb.shared[idx], end, nil
		}
		return "", end, nil
	}
	return value, end, nil
}

func attr(t xml.StartElement, name string) string {
	for _, a := range t.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}
