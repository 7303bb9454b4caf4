package geometric

import (
	"strings"
	"unicode/utf8"

	"github.com/tsawler/redpen/keyword"
	"github.com/tsawler/redpen/model"
)

// verticalAspect is the height/width ratio above which a label's
// bounding box is classified as vertically oriented (rotated or
// stacked layouts).
const verticalAspect = 1.2

// charBox is one character of page text with its approximate extent.
// A run's width is divided evenly across its characters; the error for
// proportional fonts is acceptable because the boxes only feed
// bounding-box unions downstream.
type charBox struct {
	r   rune
	box model.BBox
}

// Locator finds grading placeholders in geometric documents.
type Locator struct {
	index      *keyword.Index
	recognizer Recognizer
}

// NewLocator creates a locator using the given keyword index. A nil
// recognizer disables the scanned-page pass.
func NewLocator(idx *keyword.Index, rec Recognizer) *Locator {
	return &Locator{index: idx, recognizer: rec}
}

// Locate scans every page for keyword occurrences and returns the
// accepted layout regions. Regions are accepted in keyword-priority
// order and a region whose box intersects an already accepted region on
// the same page is discarded, so no two returned regions on one page
// overlap and the most specific label wins at a shared location.
func (l *Locator) Locate(m *Model) []model.LayoutRegion {
	var regions []model.LayoutRegion
	for _, page := range m.Pages {
		regions = append(regions, l.locatePage(page)...)
	}
	return regions
}

func (l *Locator) locatePage(page *Page) []model.LayoutRegion {
	chars := l.pageChars(page)
	if len(chars) == 0 {
		return nil
	}

	runes := make([]rune, len(chars))
	for i, c := range chars {
		runes[i] = c.r
	}
	text := string(runes)

	// Byte offset of each rune in text, for mapping substring hits
	// back to character boxes.
	offsets := make([]int, len(runes)+1)
	pos := 0
	for i, r := range runes {
		offsets[i] = pos
		pos += utf8.RuneLen(r)
	}
	offsets[len(runes)] = pos

	var accepted []model.LayoutRegion
	for _, cat := range l.index.Categories() {
		for _, kw := range l.index.Keywords(cat) {
			for _, start := range allOccurrences(text, kw) {
				span := runeSpan(offsets, start, len(kw))
				box := unionBox(chars[span.start:span.end])
				if box.IsEmpty() {
					continue
				}
				if intersectsAny(box, accepted) {
					continue
				}
				orient := model.Horizontal
				if box.Height > verticalAspect*box.Width {
					orient = model.Vertical
				}
				accepted = append(accepted, model.LayoutRegion{
					Match: model.PlaceholderMatch{
						Category: cat,
						Keyword:  kw,
						Priority: utf8.RuneCountInString(kw),
					},
					PageIndex:   page.Index,
					Box:         box,
					Orientation: orient,
				})
			}
		}
	}
	return accepted
}

// pageChars flattens all text runs on a page into per-character boxes.
// Pages with no text runs but with embedded images go through the
// recognizer, if one is configured, so scanned pages still yield
// locatable characters.
func (l *Locator) pageChars(page *Page) []charBox {
	runs := page.Runs
	if len(runs) == 0 && len(page.Images) > 0 && l.recognizer != nil {
		runs = l.recognizedRuns(page)
	}

	var chars []charBox
	for _, run := range runs {
		n := utf8.RuneCountInString(run.Text)
		if n == 0 {
			continue
		}
		charWidth := run.Width / float64(n)
		i := 0
		for _, r := range run.Text {
			chars = append(chars, charBox{
				r: r,
				box: model.NewBBox(
					run.Origin.X+float64(i)*charWidth,
					run.Origin.Y,
					charWidth,
					run.Height,
				),
			})
			i++
		}
	}
	return chars
}

// allOccurrences returns the byte offsets of every occurrence of kw in
// text, including overlapping ones.
func allOccurrences(text, kw string) []int {
	if kw == "" {
		return nil
	}
	var hits []int
	from := 0
	for {
		i := strings.Index(text[from:], kw)
		if i < 0 {
			return hits
		}
		hits = append(hits, from+i)
		from += i + 1
	}
}

type span struct {
	start, end int // rune indices, half-open
}

// runeSpan converts a byte-offset hit of byteLen bytes into a rune
// index span using the precomputed offsets table.
func runeSpan(offsets []int, byteStart, byteLen int) span {
	s := span{}
	for i := 0; i < len(offsets)-1; i++ {
		if offsets[i] == byteStart {
			s.start = i
		}
		if offsets[i] == byteStart+byteLen {
			s.end = i
			return s
		}
	}
	s.end = len(offsets) - 1
	return s
}

// unionBox returns the union bounding box of a character span.
func unionBox(chars []charBox) model.BBox {
	if len(chars) == 0 {
		return model.BBox{}
	}
	box := chars[0].box
	for _, c := range chars[1:] {
		box = box.Union(c.box)
	}
	return box
}

func intersectsAny(box model.BBox, regions []model.LayoutRegion) bool {
	for _, r := range regions {
		if box.Intersects(r.Box) {
			return true
		}
	}
	return false
}
