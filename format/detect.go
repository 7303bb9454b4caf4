// Package format identifies the document family of raw input bytes so
// the matching codec can be selected. Detection combines the caller's
// hint (a format name or file extension) with magic-byte inspection;
// the hint wins when both are usable.
package format

import (
	"archive/zip"
	"bytes"
	"strings"
)

// Format represents a supported document format.
type Format int

const (
	// Unknown indicates an unrecognized format.
	Unknown Format = iota
	// DOCX indicates a Microsoft Word (.docx) document.
	DOCX
	// XLSX indicates a Microsoft Excel (.xlsx) workbook.
	XLSX
	// HTML indicates an HTML document.
	HTML
	// PDF indicates a PDF document.
	PDF
)

// String returns the string representation of the format.
func (f Format) String() string {
	switch f {
	case DOCX:
		return "DOCX"
	case XLSX:
		return "XLSX"
	case HTML:
		return "HTML"
	case PDF:
		return "PDF"
	default:
		return "Unknown"
	}
}

// Extension returns the typical file extension for the format.
func (f Format) Extension() string {
	switch f {
	case DOCX:
		return ".docx"
	case XLSX:
		return ".xlsx"
	case HTML:
		return ".html"
	case PDF:
		return ".pdf"
	default:
		return ""
	}
}

// FromHint resolves a caller-supplied hint: a format name ("docx"), an
// extension (".docx"), or a filename ("essay.docx").
func FromHint(hint string) Format {
	hint = strings.ToLower(strings.TrimSpace(hint))
	if i := strings.LastIndex(hint, "."); i >= 0 {
		hint = hint[i+1:]
	}
	switch hint {
	case "docx", "doc":
		return DOCX
	case "xlsx", "xls":
		return XLSX
	case "html", "htm":
		return HTML
	case "pdf":
		return PDF
	default:
		return Unknown
	}
}

// Detect determines the format of data, preferring the hint when it
// names a known format.
func Detect(data []byte, hint string) Format {
	if f := FromHint(hint); f != Unknown {
		return f
	}
	return DetectFromMagic(data)
}

// DetectFromMagic inspects magic bytes, descending into ZIP archives to
// tell DOCX from XLSX.
func DetectFromMagic(data []byte) Format {
	if len(data) < 4 {
		return Unknown
	}

	// PDF magic: %PDF
	if bytes.HasPrefix(data, []byte("%PDF")) {
		return PDF
	}

	// ZIP magic: PK\x03\x04 (DOCX and XLSX are ZIP archives)
	if data[0] == 0x50 && data[1] == 0x4B && data[2] == 0x03 && data[3] == 0x04 {
		return detectZIPFormat(data)
	}

	if detectHTMLMagic(data) {
		return HTML
	}

	return Unknown
}

// detectZIPFormat inspects archive entries to tell the OOXML families
// apart.
func detectZIPFormat(data []byte) Format {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Unknown
	}
	for _, f := range zr.File {
		switch {
		case strings.HasPrefix(f.Name, "word/"):
			return DOCX
		case strings.HasPrefix(f.Name, "xl/"):
			return XLSX
		}
	}
	return Unknown
}

// detectHTMLMagic checks if the data looks like HTML content.
func detectHTMLMagic(data []byte) bool {
	start := 0
	for start < len(data) && (data[start] == ' ' || data[start] == '\t' || data[start] == '\n' || data[start] == '\r') {
		start++
	}
	if start >= len(data) {
		return false
	}

	head := data[start:]
	if len(head) > 512 {
		head = head[:512]
	}
	upper := strings.ToUpper(string(head))
	if strings.HasPrefix(upper, "<!DOCTYPE HTML") {
		return true
	}
	if strings.HasPrefix(upper, "<HTML") {
		return true
	}
	// XML declaration followed by html-like content could be XHTML.
	if strings.HasPrefix(upper, "<?XML") && strings.Contains(upper, "<HTML") {
		return true
	}
	return false
}
