package redpen

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/tsawler/redpen/format"
)

func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range map[string]string{
		"[Content_Types].xml": `<?xml version="1.0"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`,
		"word/document.xml":   documentXML,
	} {
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

const gradedEssayXML = `<?xml version="1.0"?>` +
	`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
	`<w:p><w:r><w:t>An essay about tides.</w:t></w:r></w:p>` +
	`<w:p><w:r><w:t>Teacher Comments:</w:t></w:r></w:p>` +
	`<w:p/>` +
	`<w:tbl><w:tr>` +
	`<w:tc><w:p><w:r><w:t>Score</w:t></w:r></w:p></w:tc>` +
	`<w:tc><w:p/></w:tc>` +
	`</w:tr></w:tbl>` +
	`</w:body></w:document>`

func buildPDF(t *testing.T) []byte {
	t.Helper()
	content := "BT /F1 12 Tf 72 700 Td (Score:) Tj ET"

	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	b.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	b.WriteString("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 /MediaBox [0 0 612 792] >>\nendobj\n")
	b.WriteString("3 0 obj\n<< /Type /Page /Parent 2 0 R /Contents 4 0 R >>\nendobj\n")
	fmt.Fprintf(&b, "4 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n", len(content), content)
	b.WriteString("trailer\n<< /Size 5 /Root 1 0 R >>\nstartxref\n400\n%%EOF\n")
	return b.Bytes()
}

func buildScannedPDF(t *testing.T) []byte {
	t.Helper()
	content := "q 612 0 0 792 0 0 cm /Im0 Do Q"
	imageData := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10}

	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	b.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	b.WriteString("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 /MediaBox [0 0 612 792] >>\nendobj\n")
	b.WriteString("3 0 obj\n<< /Type /Page /Parent 2 0 R /Contents 4 0 R /Resources << /XObject << /Im0 5 0 R >> >> >>\nendobj\n")
	fmt.Fprintf(&b, "4 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n", len(content), content)
	fmt.Fprintf(&b, "5 0 obj\n<< /Type /XObject /Subtype /Image /Width 1224 /Height 1584 /Filter /DCTDecode /Length %d >>\nstream\n", len(imageData))
	b.Write(imageData)
	b.WriteString("\nendstream\nendobj\n")
	b.WriteString("trailer\n<< /Size 6 /Root 1 0 R >>\nstartxref\n400\n%%EOF\n")
	return b.Bytes()
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

func newAnnotator(t *testing.T, opts ...Option) *Annotator {
	t.Helper()
	a, err := New(opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestAnnotateUnsupportedFormat(t *testing.T) {
	a := newAnnotator(t)
	res, _, err := a.Annotate([]byte("plain text notes"), "notes.txt", Content{Score: "5"})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
	if res.Data != nil {
		t.Error("unsupported format produced an artifact")
	}
}

func TestAnnotateDocx(t *testing.T) {
	a := newAnnotator(t)
	res, warnings, err := a.Annotate(buildDocx(t, gradedEssayXML), "essay.docx", Content{
		Score:   "95",
		Comment: "Clear thesis. Cite your sources.",
	})
	if err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	if res.Fallback {
		t.Fatal("document with placeholders took the fallback path")
	}
	if res.Format != format.DOCX {
		t.Errorf("format = %v, want DOCX", res.Format)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v, want none", warnings)
	}

	xmlOut := entryContent(t, res.Data, "word/document.xml")
	for _, want := range []string{
		`<w:color w:val="FF0000"/>`,
		`<w:t xml:space="preserve">95</w:t>`,
		`Cite your sources.`,
		`An essay about tides.`,
	} {
		if !strings.Contains(xmlOut, want) {
			t.Errorf("annotated document.xml missing %s", want)
		}
	}
}

func TestAnnotateWarnsWhenContentMissing(t *testing.T) {
	// The document asks for an instructor signature the content does
	// not provide; that placeholder is reported, the rest annotated.
	withSignature := strings.Replace(gradedEssayXML,
		`<w:p><w:r><w:t>Teacher Comments:</w:t></w:r></w:p>`,
		`<w:p><w:r><w:t>Teacher Comments:</w:t></w:r></w:p><w:p/><w:p><w:r><w:t>Instructor:</w:t></w:r></w:p><w:p/>`,
		1)

	a := newAnnotator(t)
	res, warnings, err := a.Annotate(buildDocx(t, withSignature), "essay.docx", Content{
		Score:   "95",
		Comment: "Good.",
	})
	if err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	if res.Fallback {
		t.Fatal("partially fillable document took the fallback path")
	}
	if !strings.Contains(FormatWarnings(warnings), "nothing for it") {
		t.Errorf("warnings = %q, want a missing-content warning", FormatWarnings(warnings))
	}
}

func TestAnnotateHTML(t *testing.T) {
	html := `<html><body><table><tr><td>成绩</td><td></td></tr></table></body></html>`

	a := newAnnotator(t)
	res, _, err := a.Annotate([]byte(html), "report.html", Content{Score: "87 / 100"})
	if err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	if res.Fallback || res.Format != format.HTML {
		t.Fatalf("result = %+v, want native HTML artifact", res)
	}
	if !strings.Contains(string(res.Data), `<span style="color:#FF0000">87 / 100</span>`) {
		t.Errorf("annotated HTML missing the red score span:\n%s", res.Data)
	}
}

func TestAnnotateFallbackWhenNoPlaceholders(t *testing.T) {
	a := newAnnotator(t)
	res, warnings, err := a.Annotate([]byte("<html><body><p>just an essay</p></body></html>"), "essay.html", Content{
		Score:   "87 / 100",
		Comment: "Good effort.",
	})
	if err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	if !res.Fallback {
		t.Fatal("placeholder-free document did not fall back")
	}
	if res.Format != format.HTML {
		t.Errorf("fallback format = %v, want HTML", res.Format)
	}
	if !strings.Contains(FormatWarnings(warnings), "fallback") {
		t.Errorf("warnings = %q, want fallback notice", FormatWarnings(warnings))
	}
	for _, want := range []string{"87 / 100", "Good effort."} {
		if !strings.Contains(string(res.Data), want) {
			t.Errorf("fallback report missing %q", want)
		}
	}
}

func TestAnnotateFallbackOnCorruptInput(t *testing.T) {
	// The extension promises DOCX but the bytes are garbage: the codec
	// error degrades to the fallback report, not a hard failure.
	a := newAnnotator(t)
	res, warnings, err := a.Annotate([]byte("definitely not a zip"), "essay.docx", Content{Score: "60"})
	if err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	if !res.Fallback {
		t.Fatal("unparseable document did not fall back")
	}
	if !strings.Contains(FormatWarnings(warnings), "parse") {
		t.Errorf("warnings = %q, want parse failure notice", FormatWarnings(warnings))
	}
}

func TestAnnotatePDF(t *testing.T) {
	src := buildPDF(t)
	a := newAnnotator(t)
	res, warnings, err := a.Annotate(src, "homework.pdf", Content{Score: "95"})
	if err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	if res.Fallback {
		t.Fatalf("PDF with a score label took the fallback path (warnings: %s)", FormatWarnings(warnings))
	}
	if res.Format != format.PDF {
		t.Errorf("format = %v, want PDF", res.Format)
	}
	// Incremental update: original bytes untouched, overlay appended.
	if !bytes.HasPrefix(res.Data, src) {
		t.Error("annotation rewrote the original PDF bytes")
	}
	if len(res.Data) <= len(src) {
		t.Error("no incremental update appended")
	}
}

func TestAnnotatePDFTwiceIsIdempotent(t *testing.T) {
	src := buildPDF(t)
	a := newAnnotator(t)
	content := Content{Score: "95"}

	first, _, err := a.Annotate(src, "homework.pdf", content)
	if err != nil {
		t.Fatalf("first Annotate: %v", err)
	}
	second, warnings, err := a.Annotate(first.Data, "homework.pdf", content)
	if err != nil {
		t.Fatalf("second Annotate: %v", err)
	}
	if second.Fallback {
		t.Fatalf("second pass took the fallback path (warnings: %s)", FormatWarnings(warnings))
	}

	// The second pass replaces the injected content: still one score
	// image over the original bytes, not a stacked copy.
	if got := bytes.Count(second.Data, []byte("/Subtype /Image")); got != 1 {
		t.Errorf("second pass carries %d injected images, want 1", got)
	}
	if !bytes.HasPrefix(second.Data, src) {
		t.Error("re-annotation did not preserve the original PDF bytes")
	}
	if len(second.Data) != len(first.Data) {
		t.Errorf("second pass is %d bytes, first was %d; injected content accumulated", len(second.Data), len(first.Data))
	}
}

func TestAnnotateScannedPDFWithoutOCR(t *testing.T) {
	a := newAnnotator(t)
	res, warnings, err := a.Annotate(buildScannedPDF(t), "scan.pdf", Content{Score: "70"})
	if err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	if !res.Fallback {
		t.Fatal("scanned PDF without OCR did not fall back")
	}
	if !strings.Contains(FormatWarnings(warnings), "scanned") {
		t.Errorf("warnings = %q, want scanned-page notice", FormatWarnings(warnings))
	}
}

func TestFormatWarnings(t *testing.T) {
	if got := FormatWarnings(nil); got != "" {
		t.Errorf("FormatWarnings(nil) = %q, want empty", got)
	}
	got := FormatWarnings([]Warning{{Message: "first"}, {Message: "second"}})
	if got != "first; second" {
		t.Errorf("FormatWarnings = %q", got)
	}
}

func TestErrorUnwrapping(t *testing.T) {
	base := errors.New("disk full")
	var err error = &CodecError{Format: format.DOCX, Op: "serialize", Err: base}
	if !errors.Is(err, base) {
		t.Error("CodecError does not unwrap to its cause")
	}

	partial := &PartialMutationError{Applied: 1, Errs: []error{base}}
	if !errors.Is(partial, base) {
		t.Error("PartialMutationError does not unwrap to its first cause")
	}
	if !strings.Contains(partial.Error(), "1 succeeded") {
		t.Errorf("partial error message = %q", partial.Error())
	}
}
