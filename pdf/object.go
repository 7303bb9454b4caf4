// Package pdf is the geometric codec for PDF documents. Reading scans
// the file's indirect objects, resolves the page tree, and interprets
// page content streams into positioned text runs and images.
// Serialization appends an incremental update (overlay content
// streams, image XObjects, and updated page objects), so every byte of
// the original document is preserved and annotation output is layered
// on top.
package pdf

import (
	"bytes"
	"fmt"
	"strconv"
)

// Object is any PDF object: Name, Dict, Array, Ref, String, Number,
// Bool, Null, or Stream.
type Object interface{}

// Name is a PDF name object (/Type, /Page, ...) without the slash.
type Name string

// Dict is a PDF dictionary.
type Dict map[Name]Object

// Array is a PDF array.
type Array []Object

// Ref is an indirect object reference.
type Ref struct {
	Num, Gen int
}

// String is a PDF string's decoded bytes.
type String []byte

// Number is a PDF numeric object.
type Number float64

// Bool is a PDF boolean.
type Bool bool

// Null is the PDF null object.
type Null struct{}

// Stream is a stream object: its dictionary plus raw (still encoded)
// stream data.
type Stream struct {
	Dict Dict
	Data []byte
}

// Int returns a numeric entry as int, or the fallback.
func (d Dict) Int(key Name, fallback int) int {
	if n, ok := d[key].(Number); ok {
		return int(n)
	}
	return fallback
}

// Name returns a name entry, or "".
func (d Dict) Name(key Name) Name {
	if n, ok := d[key].(Name); ok {
		return n
	}
	return ""
}

// encodeObject serializes an object in PDF syntax.
func encodeObject(buf *bytes.Buffer, obj Object) {
	switch v := obj.(type) {
	case Name:
		buf.WriteByte('/')
		buf.WriteString(string(v))
	case Dict:
		encodeDict(buf, v)
	case Array:
		buf.WriteByte('[')
		for i, el := range v {
			if i > 0 {
				buf.WriteByte(' ')
			}
			encodeObject(buf, el)
		}
		buf.WriteByte(']')
	case Ref:
		fmt.Fprintf(buf, "%d %d R", v.Num, v.Gen)
	case String:
		buf.WriteByte('(')
		for _, b := range v {
			switch b {
			case '(', ')', '\\':
				buf.WriteByte('\\')
				buf.WriteByte(b)
			case '\n':
				buf.WriteString(`\n`)
			case '\r':
				buf.WriteString(`\r`)
			default:
				buf.WriteByte(b)
			}
		}
		buf.WriteByte(')')
	case Number:
		buf.WriteString(formatNumber(float64(v)))
	case Bool:
		if v {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case Null:
		buf.WriteString("null")
	case Stream:
		encodeDict(buf, v.Dict)
		buf.WriteString("\nstream\n")
		buf.Write(v.Data)
		buf.WriteString("\nendstream")
	default:
		buf.WriteString("null")
	}
}

func encodeDict(buf *bytes.Buffer, d Dict) {
	buf.WriteString("<<")
	for key, val := range d {
		buf.WriteByte('/')
		buf.WriteString(string(key))
		buf.WriteByte(' ')
		encodeObject(buf, val)
	}
	buf.WriteString(">>")
}

// formatNumber renders a float the way PDF producers do: integers
// without a decimal point, reals with up to four digits.
func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', 4, 64)
}
