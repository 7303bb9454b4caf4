package model

import "image"

// Category identifies the kind of grading content a placeholder receives.
type Category int

const (
	// CategoryScore marks a numeric grade placeholder ("Score", "评分").
	CategoryScore Category = iota
	// CategoryComment marks a feedback text placeholder ("Comments", "教师评语").
	CategoryComment
	// CategorySignature marks an instructor identity placeholder ("Signature", "签名").
	CategorySignature
)

// String returns the string representation of the category.
func (c Category) String() string {
	switch c {
	case CategoryScore:
		return "score"
	case CategoryComment:
		return "comment"
	case CategorySignature:
		return "signature"
	default:
		return "unknown"
	}
}

// Orientation classifies how a label is laid out on a page.
type Orientation int

const (
	// Horizontal is the normal left-to-right label layout.
	Horizontal Orientation = iota
	// Vertical marks rotated or stacked labels whose bounding box is
	// taller than wide.
	Vertical
)

// String returns the string representation of the orientation.
func (o Orientation) String() string {
	if o == Vertical {
		return "vertical"
	}
	return "horizontal"
}

// Color represents an RGB color.
type Color struct {
	R, G, B uint8
}

// Red is the conventional grading-ink color.
var Red = Color{R: 0xFF, G: 0x00, B: 0x00}

// PlaceholderMatch records one located grading label. Priority is the
// length in runes of the matched keyword; longer keywords are more
// specific and win at shared locations.
type PlaceholderMatch struct {
	Category Category
	Keyword  string
	Priority int
}

// LayoutRegion is a placeholder located in a geometric (absolute-position)
// document: the match plus the page it sits on and the union bounding box
// of the keyword's characters.
type LayoutRegion struct {
	Match       PlaceholderMatch
	PageIndex   int
	Box         BBox
	Orientation Orientation
}

// Annotation is one piece of content bound to a category, ready for
// rendering: literal text, ink color, an optional font override for
// decorative rendering, and an optional source image (signatures).
type Annotation struct {
	Category Category
	Text     string
	Color    Color
	FontName string
	Image    image.Image
}

// Content carries the computed grading results for one document.
// Signature and Instructor are optional.
type Content struct {
	Score      string
	Comment    string
	Instructor string
	Signature  image.Image
}

// Annotation returns the Annotation for the given category, or false if
// the content has nothing to place there.
func (c Content) Annotation(cat Category) (Annotation, bool) {
	switch cat {
	case CategoryScore:
		if c.Score == "" {
			return Annotation{}, false
		}
		return Annotation{Category: cat, Text: c.Score, Color: Red}, true
	case CategoryComment:
		if c.Comment == "" {
			return Annotation{}, false
		}
		return Annotation{Category: cat, Text: c.Comment, Color: Red}, true
	case CategorySignature:
		if c.Signature == nil && c.Instructor == "" {
			return Annotation{}, false
		}
		return Annotation{Category: cat, Text: c.Instructor, Color: Red, Image: c.Signature}, true
	}
	return Annotation{}, false
}
