package pdf

import (
	"bytes"
	"math"
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/text/width"

	"github.com/tsawler/redpen/geometric"
	"github.com/tsawler/redpen/model"
)

// matrix is a PDF transformation matrix [a b c d e f].
type matrix [6]float64

var identity = matrix{1, 0, 0, 1, 0, 0}

// mul returns m applied first, then n.
func (m matrix) mul(n matrix) matrix {
	return matrix{
		m[0]*n[0] + m[1]*n[2],
		m[0]*n[1] + m[1]*n[3],
		m[2]*n[0] + m[3]*n[2],
		m[2]*n[1] + m[3]*n[3],
		m[4]*n[0] + m[5]*n[2] + n[4],
		m[4]*n[1] + m[5]*n[3] + n[5],
	}
}

func (m matrix) apply(x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

func translate(tx, ty float64) matrix {
	return matrix{1, 0, 0, 1, tx, ty}
}

// interpreter executes a page content stream, collecting positioned
// text runs and placed images.
type interpreter struct {
	res     Dict
	resolve func(Object) Object
	page    *geometric.Page

	ctm      matrix
	gsStack  []matrix
	tm, tlm  matrix
	fontSize float64
	leading  float64
	inText   bool
}

// interpretContent runs one page's (concatenated, decoded) content
// through the interpreter. Operators outside the text and image subset
// are ignored; a malformed stream yields whatever was collected before
// the damage.
func interpretContent(data []byte, res Dict, resolve func(Object) Object, page *geometric.Page) {
	in := &interpreter{
		res:     res,
		resolve: resolve,
		page:    page,
		ctm:     identity,
		tm:      identity,
		tlm:     identity,
	}

	lex := newLexer(data)
	var operands []Object
	for {
		t, err := lex.next()
		if err != nil || t.kind == tokEOF {
			return
		}
		switch t.kind {
		case tokNumber:
			operands = append(operands, Number(t.num))
		case tokName:
			operands = append(operands, Name(t.text))
		case tokString:
			operands = append(operands, String(t.bytes))
		case tokArrayOpen:
			arr, ok := readArray(lex)
			if !ok {
				return
			}
			operands = append(operands, arr)
		case tokDictOpen:
			dict, ok := readDict(lex)
			if !ok {
				return
			}
			operands = append(operands, dict)
		case tokKeyword:
			if t.text == "BI" {
				// Inline image: skip to EI.
				i := bytes.Index(data[lex.pos:], []byte("EI"))
				if i < 0 {
					return
				}
				lex.pos += i + 2
				operands = operands[:0]
				continue
			}
			in.op(t.text, operands)
			operands = operands[:0]
		default:
			operands = operands[:0]
		}
	}
}

// readArray and readDict parse direct objects inside a content stream,
// where indirect references cannot occur.
func readArray(lex *lexer) (Array, bool) {
	var arr Array
	for {
		t, err := lex.next()
		if err != nil || t.kind == tokEOF {
			return nil, false
		}
		switch t.kind {
		case tokArrayClose:
			return arr, true
		case tokNumber:
			arr = append(arr, Number(t.num))
		case tokName:
			arr = append(arr, Name(t.text))
		case tokString:
			arr = append(arr, String(t.bytes))
		case tokArrayOpen:
			inner, ok := readArray(lex)
			if !ok {
				return nil, false
			}
			arr = append(arr, inner)
		default:
			// tolerate keywords inside arrays
		}
	}
}

func readDict(lex *lexer) (Dict, bool) {
	dict := Dict{}
	for {
		t, err := lex.next()
		if err != nil || t.kind == tokEOF {
			return nil, false
		}
		if t.kind == tokDictClose {
			return dict, true
		}
		if t.kind != tokName {
			return nil, false
		}
		key := Name(t.text)
		v, err := lex.next()
		if err != nil {
			return nil, false
		}
		switch v.kind {
		case tokNumber:
			dict[key] = Number(v.num)
		case tokName:
			dict[key] = Name(v.text)
		case tokString:
			dict[key] = String(v.bytes)
		case tokArrayOpen:
			inner, ok := readArray(lex)
			if !ok {
				return nil, false
			}
			dict[key] = inner
		case tokDictOpen:
			inner, ok := readDict(lex)
			if !ok {
				return nil, false
			}
			dict[key] = inner
		default:
			dict[key] = Null{}
		}
	}
}

func popNumbers(operands []Object, n int) ([]float64, bool) {
	if len(operands) < n {
		return nil, false
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		num, ok := operands[len(operands)-n+i].(Number)
		if !ok {
			return nil, false
		}
		out[i] = float64(num)
	}
	return out, true
}

func (in *interpreter) op(name string, operands []Object) {
	switch name {
	case "q":
		in.gsStack = append(in.gsStack, in.ctm)
	case "Q":
		if n := len(in.gsStack); n > 0 {
			in.ctm = in.gsStack[n-1]
			in.gsStack = in.gsStack[:n-1]
		}
	case "cm":
		if v, ok := popNumbers(operands, 6); ok {
			in.ctm = matrix{v[0], v[1], v[2], v[3], v[4], v[5]}.mul(in.ctm)
		}
	case "BT":
		in.inText = true
		in.tm, in.tlm = identity, identity
	case "ET":
		in.inText = false
	case "Tf":
		if v, ok := popNumbers(operands, 1); ok {
			in.fontSize = v[0]
		}
	case "TL":
		if v, ok := popNumbers(operands, 1); ok {
			in.leading = v[0]
		}
	case "Td":
		if v, ok := popNumbers(operands, 2); ok {
			in.tlm = translate(v[0], v[1]).mul(in.tlm)
			in.tm = in.tlm
		}
	case "TD":
		if v, ok := popNumbers(operands, 2); ok {
			in.leading = -v[1]
			in.tlm = translate(v[0], v[1]).mul(in.tlm)
			in.tm = in.tlm
		}
	case "Tm":
		if v, ok := popNumbers(operands, 6); ok {
			in.tlm = matrix{v[0], v[1], v[2], v[3], v[4], v[5]}
			in.tm = in.tlm
		}
	case "T*":
		in.nextLine()
	case "Tj":
		if len(operands) >= 1 {
			if s, ok := operands[len(operands)-1].(String); ok {
				in.showText(s)
			}
		}
	case "'":
		if len(operands) >= 1 {
			if s, ok := operands[len(operands)-1].(String); ok {
				in.nextLine()
				in.showText(s)
			}
		}
	case "\"":
		if len(operands) >= 3 {
			if s, ok := operands[len(operands)-1].(String); ok {
				in.nextLine()
				in.showText(s)
			}
		}
	case "TJ":
		arr, ok := operandArray(operands)
		if !ok {
			return
		}
		for _, el := range arr {
			switch v := el.(type) {
			case String:
				in.showText(v)
			case Number:
				// Positioning adjustment in thousandths of text space.
				in.tm = translate(-float64(v)/1000*in.fontSize, 0).mul(in.tm)
			}
		}
	case "Do":
		if len(operands) >= 1 {
			if n, ok := operands[len(operands)-1].(Name); ok {
				in.placeXObject(n)
			}
		}
	}
}

func operandArray(operands []Object) (Array, bool) {
	if len(operands) == 0 {
		return nil, false
	}
	arr, ok := operands[len(operands)-1].(Array)
	return arr, ok
}

func (in *interpreter) nextLine() {
	in.tlm = translate(0, -in.leading).mul(in.tlm)
	in.tm = in.tlm
}

// showText emits one text run at the current text position and advances
// the text matrix by the estimated width.
func (in *interpreter) showText(s String) {
	text := decodeText(s)
	if text == "" {
		return
	}

	advance := 0.0
	for _, r := range text {
		advance += runeAdvance(r, in.fontSize)
	}

	trm := in.tm.mul(in.ctm)
	x0, y0 := trm.apply(0, 0)
	x1, y1 := trm.apply(advance, in.fontSize)

	box := model.NewBBox(math.Min(x0, x1), math.Min(y0, y1), math.Abs(x1-x0), math.Abs(y1-y0))
	in.page.Runs = append(in.page.Runs, geometric.TextRun{
		Text:   text,
		Origin: model.Point{X: box.X, Y: box.Y},
		Width:  box.Width,
		Height: box.Height,
	})

	in.tm = translate(advance, 0).mul(in.tm)
}

// decodeText converts a PDF string to UTF-8. UTF-16BE strings carry a
// BOM; everything else is treated as Latin-1, which covers the simple
// fonts this codec reads. CID-keyed text without a recognizable
// encoding decodes to garbage and simply never matches a keyword.
func decodeText(s String) string {
	if len(s) >= 2 && s[0] == 0xFE && s[1] == 0xFF {
		n := (len(s) - 2) / 2
		u16 := make([]uint16, n)
		for i := 0; i < n; i++ {
			u16[i] = uint16(s[2+i*2])<<8 | uint16(s[3+i*2])
		}
		return string(utf16.Decode(u16))
	}
	if utf8.Valid(s) {
		return string(s)
	}
	runes := make([]rune, len(s))
	for i, b := range s {
		runes[i] = rune(b)
	}
	return string(runes)
}

// runeAdvance estimates a glyph advance without font metrics: East
// Asian wide and fullwidth runes take a full em, everything else half.
func runeAdvance(r rune, size float64) float64 {
	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return size
	default:
		return 0.5 * size
	}
}

// placeXObject records an image XObject's placed bounds. Form XObjects
// and images in unsupported encodings are ignored.
func (in *interpreter) placeXObject(name Name) {
	xobjs, _ := in.resolve(in.res[Name("XObject")]).(Dict)
	if xobjs == nil {
		return
	}
	s, ok := in.resolve(xobjs[name]).(Stream)
	if !ok || s.Dict.Name("Subtype") != "Image" {
		return
	}

	// Image space is the unit square; the CTM places it on the page.
	x0, y0 := in.ctm.apply(0, 0)
	x1, y1 := in.ctm.apply(1, 1)
	box := model.NewBBox(math.Min(x0, x1), math.Min(y0, y1), math.Abs(x1-x0), math.Abs(y1-y0))

	// DCTDecode streams are JPEG bytes as-is; those are the only ones
	// the OCR path can decode.
	var data []byte
	if s.Dict.Name("Filter") == "DCTDecode" {
		data = s.Data
	}
	in.page.Images = append(in.page.Images, geometric.PageImage{Data: data, Box: box})
}
