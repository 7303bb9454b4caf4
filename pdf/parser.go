package pdf

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
	"regexp"
	"strconv"

	"github.com/tsawler/redpen/internal/filters"
)

// parser reads PDF object syntax with one-token lookahead for indirect
// references.
type parser struct {
	lex    *lexer
	peeked []token
}

func newParser(data []byte, pos int) *parser {
	l := newLexer(data)
	l.pos = pos
	return &parser{lex: l}
}

func (p *parser) next() (token, error) {
	if len(p.peeked) > 0 {
		t := p.peeked[0]
		p.peeked = p.peeked[1:]
		return t, nil
	}
	return p.lex.next()
}

func (p *parser) peek(i int) (token, error) {
	for len(p.peeked) <= i {
		t, err := p.lex.next()
		if err != nil {
			return token{}, err
		}
		p.peeked = append(p.peeked, t)
	}
	return p.peeked[i], nil
}

// parseValue reads one object, collapsing "N G R" into a Ref.
func (p *parser) parseValue() (Object, error) {
	t, err := p.next()
	if err != nil {
		return nil, err
	}
	return p.parseFrom(t)
}

func (p *parser) parseFrom(t token) (Object, error) {
	switch t.kind {
	case tokNumber:
		t1, err := p.peek(0)
		if err == nil && t1.kind == tokNumber {
			t2, err := p.peek(1)
			if err == nil && t2.kind == tokKeyword && t2.text == "R" {
				p.peeked = p.peeked[2:]
				return Ref{Num: int(t.num), Gen: int(t1.num)}, nil
			}
		}
		return Number(t.num), nil
	case tokName:
		return Name(t.text), nil
	case tokString:
		return String(t.bytes), nil
	case tokArrayOpen:
		var arr Array
		for {
			nt, err := p.next()
			if err != nil {
				return nil, err
			}
			if nt.kind == tokArrayClose {
				return arr, nil
			}
			el, err := p.parseFrom(nt)
			if err != nil {
				return nil, err
			}
			arr = append(arr, el)
		}
	case tokDictOpen:
		dict := Dict{}
		for {
			nt, err := p.next()
			if err != nil {
				return nil, err
			}
			if nt.kind == tokDictClose {
				return p.maybeStream(dict)
			}
			if nt.kind != tokName {
				return nil, fmt.Errorf("expected name key, got kind %d", nt.kind)
			}
			val, err := p.parseValue()
			if err != nil {
				return nil, err
			}
			dict[Name(nt.text)] = val
		}
	case tokKeyword:
		switch t.text {
		case "true":
			return Bool(true), nil
		case "false":
			return Bool(false), nil
		case "null":
			return Null{}, nil
		}
		return nil, fmt.Errorf("unexpected keyword %q", t.text)
	default:
		return nil, fmt.Errorf("unexpected token kind %d", t.kind)
	}
}

// maybeStream checks for stream data following a dictionary and
// captures the raw bytes up to endstream.
func (p *parser) maybeStream(dict Dict) (Object, error) {
	t, err := p.peek(0)
	if err != nil || t.kind != tokKeyword || t.text != "stream" {
		return dict, nil
	}
	p.peeked = p.peeked[1:]

	data := p.lex.data
	pos := p.lex.pos
	// An EOL follows the stream keyword: CRLF or LF.
	if pos < len(data) && data[pos] == '\r' {
		pos++
	}
	if pos < len(data) && data[pos] == '\n' {
		pos++
	}

	end := -1
	if n, ok := dict[Name("Length")].(Number); ok {
		candidate := pos + int(n)
		if candidate <= len(data) {
			end = candidate
		}
	}
	if end < 0 {
		// Length missing or indirect: scan for the terminator.
		i := bytes.Index(data[pos:], []byte("endstream"))
		if i < 0 {
			return nil, fmt.Errorf("unterminated stream")
		}
		end = pos + i
		for end > pos && (data[end-1] == '\n' || data[end-1] == '\r') {
			end--
		}
	}

	stream := Stream{Dict: dict, Data: data[pos:end]}
	// Position the lexer after endstream.
	i := bytes.Index(data[end:], []byte("endstream"))
	if i < 0 {
		return nil, fmt.Errorf("missing endstream")
	}
	p.lex.pos = end + i + len("endstream")
	p.peeked = nil
	return stream, nil
}

var objStartPattern = regexp.MustCompile(`(?m)(\d+)[ \t]+(\d+)[ \t]+obj\b`)

// scanObjects finds every "N G obj ... endobj" in the file and parses
// it. Matches that fall inside a previously parsed object's extent
// (stream data can contain anything) are skipped. Objects packed into
// object streams are not visible to this scan; documents relying
// exclusively on them parse with no pages and take the fallback path.
func scanObjects(data []byte) (map[int]Object, int, error) {
	objects := make(map[int]Object)
	maxObj := 0

	var lastEnd int
	for _, m := range objStartPattern.FindAllSubmatchIndex(data, -1) {
		if m[0] < lastEnd {
			continue
		}
		num, err := strconv.Atoi(string(data[m[2]:m[3]]))
		if err != nil {
			continue
		}

		p := newParser(data, m[1])
		obj, err := p.parseValue()
		if err != nil {
			continue
		}
		// Expect endobj; tolerate its absence.
		if t, err := p.peek(0); err == nil && t.kind == tokKeyword && t.text == "endobj" {
			p.peeked = p.peeked[1:]
		}
		lastEnd = p.lex.pos

		objects[num] = obj
		if num > maxObj {
			maxObj = num
		}
	}
	if len(objects) == 0 {
		return nil, 0, fmt.Errorf("no objects found")
	}
	return objects, maxObj, nil
}

// decodeStream returns the stream's decoded data. FlateDecode (with
// predictor DecodeParms) and ASCIIHexDecode are supported; anything
// else returns an error so the caller can skip the stream.
func decodeStream(s Stream, resolve func(Object) Object) ([]byte, error) {
	var names []Name
	switch f := resolve(s.Dict[Name("Filter")]).(type) {
	case nil:
		return s.Data, nil
	case Name:
		names = []Name{f}
	case Array:
		for _, el := range f {
			name, ok := resolve(el).(Name)
			if !ok {
				return nil, fmt.Errorf("unsupported filter chain")
			}
			names = append(names, name)
		}
	default:
		return nil, fmt.Errorf("unsupported filter object")
	}

	data := s.Data
	for i, name := range names {
		var err error
		switch name {
		case "FlateDecode":
			if data, err = inflate(data); err == nil {
				data, err = applyDecodeParms(data, decodeParms(s.Dict, resolve, i, len(names)))
			}
		case "ASCIIHexDecode":
			data, err = filters.ASCIIHexDecode(data)
		default:
			err = fmt.Errorf("unsupported filter %s", name)
		}
		if err != nil {
			return nil, err
		}
	}
	return data, nil
}

// decodeParms returns the DecodeParms dictionary for the i-th filter:
// a single dictionary when there is one filter, a parallel array
// entry otherwise.
func decodeParms(dict Dict, resolve func(Object) Object, i, n int) Dict {
	parms := resolve(dict[Name("DecodeParms")])
	if parms == nil {
		parms = resolve(dict[Name("DP")])
	}
	switch v := parms.(type) {
	case Dict:
		if n == 1 {
			return v
		}
	case Array:
		if i < len(v) {
			d, _ := resolve(v[i]).(Dict)
			return d
		}
	}
	return nil
}

func applyDecodeParms(data []byte, parms Dict) ([]byte, error) {
	if parms == nil {
		return data, nil
	}
	return filters.Predict(data,
		parms.Int("Predictor", 1),
		parms.Int("Columns", 1),
		parms.Int("Colors", 1),
		parms.Int("BitsPerComponent", 8))
}

func inflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening flate stream: %w", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil && len(out) == 0 {
		return nil, fmt.Errorf("inflating stream: %w", err)
	}
	return out, nil
}
