package pdf

import (
	"fmt"
	"strconv"
)

// lexer tokenizes PDF object syntax. It is shared by the object parser
// and the content stream interpreter.
type lexer struct {
	data []byte
	pos  int
}

func newLexer(data []byte) *lexer {
	return &lexer{data: data}
}

func isWhitespace(b byte) bool {
	switch b {
	case 0x00, 0x09, 0x0A, 0x0C, 0x0D, 0x20:
		return true
	}
	return false
}

func isDelimiter(b byte) bool {
	switch b {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

// skipSpace advances past whitespace and comments.
func (l *lexer) skipSpace() {
	for l.pos < len(l.data) {
		b := l.data[l.pos]
		if isWhitespace(b) {
			l.pos++
			continue
		}
		if b == '%' {
			for l.pos < len(l.data) && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
				l.pos++
			}
			continue
		}
		return
	}
}

// token is one lexical unit of object syntax.
type token struct {
	kind  tokenKind
	text  string  // keywords, names, operators
	num   float64 // numbers
	bytes []byte  // strings
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokName
	tokString
	tokKeyword    // obj, endobj, stream, R, true, false, null, operators
	tokDictOpen   // <<
	tokDictClose  // >>
	tokArrayOpen  // [
	tokArrayClose // ]
)

// next returns the next token.
func (l *lexer) next() (token, error) {
	l.skipSpace()
	if l.pos >= len(l.data) {
		return token{kind: tokEOF}, nil
	}

	b := l.data[l.pos]
	switch {
	case b == '<':
		if l.pos+1 < len(l.data) && l.data[l.pos+1] == '<' {
			l.pos += 2
			return token{kind: tokDictOpen}, nil
		}
		return l.hexString()
	case b == '>':
		if l.pos+1 < len(l.data) && l.data[l.pos+1] == '>' {
			l.pos += 2
			return token{kind: tokDictClose}, nil
		}
		return token{}, fmt.Errorf("unexpected '>' at %d", l.pos)
	case b == '[':
		l.pos++
		return token{kind: tokArrayOpen}, nil
	case b == ']':
		l.pos++
		return token{kind: tokArrayClose}, nil
	case b == '(':
		return l.literalString()
	case b == '/':
		return l.name()
	case b == '+' || b == '-' || b == '.' || (b >= '0' && b <= '9'):
		return l.number()
	default:
		return l.keyword()
	}
}

func (l *lexer) name() (token, error) {
	l.pos++ // slash
	start := l.pos
	for l.pos < len(l.data) && !isWhitespace(l.data[l.pos]) && !isDelimiter(l.data[l.pos]) {
		l.pos++
	}
	raw := string(l.data[start:l.pos])
	// #xx escapes
	if i := indexByte(raw, '#'); i >= 0 {
		var out []byte
		for j := 0; j < len(raw); j++ {
			if raw[j] == '#' && j+2 < len(raw) {
				if v, err := strconv.ParseUint(raw[j+1:j+3], 16, 8); err == nil {
					out = append(out, byte(v))
					j += 2
					continue
				}
			}
			out = append(out, raw[j])
		}
		raw = string(out)
	}
	return token{kind: tokName, text: raw}, nil
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

func (l *lexer) number() (token, error) {
	start := l.pos
	l.pos++
	for l.pos < len(l.data) {
		b := l.data[l.pos]
		if (b >= '0' && b <= '9') || b == '.' || b == '+' || b == '-' {
			l.pos++
			continue
		}
		break
	}
	f, err := strconv.ParseFloat(string(l.data[start:l.pos]), 64)
	if err != nil {
		return token{}, fmt.Errorf("bad number at %d: %w", start, err)
	}
	return token{kind: tokNumber, num: f}, nil
}

func (l *lexer) keyword() (token, error) {
	start := l.pos
	for l.pos < len(l.data) && !isWhitespace(l.data[l.pos]) && !isDelimiter(l.data[l.pos]) {
		l.pos++
	}
	if l.pos == start {
		l.pos++ // skip unknown delimiter byte
		return token{kind: tokKeyword, text: string(l.data[start:l.pos])}, nil
	}
	return token{kind: tokKeyword, text: string(l.data[start:l.pos])}, nil
}

// literalString reads a ( ... ) string with escapes and balanced
// parentheses.
func (l *lexer) literalString() (token, error) {
	l.pos++ // opening paren
	var out []byte
	depth := 1
	for l.pos < len(l.data) {
		b := l.data[l.pos]
		switch b {
		case '\\':
			l.pos++
			if l.pos >= len(l.data) {
				break
			}
			e := l.data[l.pos]
			switch e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '(', ')', '\\':
				out = append(out, e)
			case '\n':
				// line continuation
			default:
				if e >= '0' && e <= '7' {
					// up to three octal digits
					v := int(e - '0')
					for k := 0; k < 2 && l.pos+1 < len(l.data); k++ {
						c := l.data[l.pos+1]
						if c < '0' || c > '7' {
							break
						}
						v = v*8 + int(c-'0')
						l.pos++
					}
					out = append(out, byte(v))
				} else {
					out = append(out, e)
				}
			}
			l.pos++
		case '(':
			depth++
			out = append(out, b)
			l.pos++
		case ')':
			depth--
			l.pos++
			if depth == 0 {
				return token{kind: tokString, bytes: out}, nil
			}
			out = append(out, b)
		default:
			out = append(out, b)
			l.pos++
		}
	}
	return token{}, fmt.Errorf("unterminated string")
}

// hexString reads a < ... > string.
func (l *lexer) hexString() (token, error) {
	l.pos++ // opening angle
	var digits []byte
	for l.pos < len(l.data) {
		b := l.data[l.pos]
		if b == '>' {
			l.pos++
			if len(digits)%2 == 1 {
				digits = append(digits, '0')
			}
			out := make([]byte, len(digits)/2)
			for i := 0; i < len(out); i++ {
				v, err := strconv.ParseUint(string(digits[i*2:i*2+2]), 16, 8)
				if err != nil {
					return token{}, fmt.Errorf("bad hex string: %w", err)
				}
				out[i] = byte(v)
			}
			return token{kind: tokString, bytes: out}, nil
		}
		if !isWhitespace(b) {
			digits = append(digits, b)
		}
		l.pos++
	}
	return token{}, fmt.Errorf("unterminated hex string")
}
