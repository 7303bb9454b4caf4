package pdf

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"image"
	"sort"
)

const annotationFontRes = "RPF0"

// annotationBaseEntry is a private trailer key naming the byte length
// of the file an annotation update was appended to. Parse truncates
// the file back to that length before reading.
const annotationBaseEntry = Name("RPBase")

// Serialize appends an incremental update carrying the pages' drawings:
// image XObjects and overlay content streams, plus rewritten page
// objects referencing them. The original file's bytes are untouched; a
// document with no drawings round-trips unchanged. The update's trailer
// records the length of the file it was appended to, so a later Parse
// can drop the update and replace the injected content instead of
// stacking another copy on top.
func (d *Document) Serialize() ([]byte, error) {
	var newObjs []numbered
	next := d.maxObj + 1

	fontNum := 0
	for i, info := range d.pages {
		page := d.model.Pages[i]
		if len(page.Drawings) == 0 {
			continue
		}

		xobjects := Dict{}
		var content bytes.Buffer
		for j, dr := range page.Drawings {
			if dr.Image != nil {
				img, err := imageObject(dr.Image)
				if err != nil {
					return nil, fmt.Errorf("encoding drawing image: %w", err)
				}
				newObjs = append(newObjs, numbered{num: next, obj: img})
				resName := Name(fmt.Sprintf("RPIm%d", j))
				xobjects[resName] = Ref{Num: next}
				next++

				fmt.Fprintf(&content, "q %s 0 0 %s %s %s cm /%s Do Q\n",
					formatNumber(dr.Box.Width), formatNumber(dr.Box.Height),
					formatNumber(dr.Box.X), formatNumber(dr.Box.Y), resName)
				continue
			}
			if dr.Text == "" {
				continue
			}
			if fontNum == 0 {
				newObjs = append(newObjs, numbered{num: next, obj: Dict{
					"Type":     Name("Font"),
					"Subtype":  Name("Type1"),
					"BaseFont": Name("Helvetica"),
				}})
				fontNum = next
				next++
			}
			size := dr.FontSize
			if size <= 0 {
				size = 11
			}
			r := float64(dr.Color.R) / 255
			g := float64(dr.Color.G) / 255
			b := float64(dr.Color.B) / 255
			fmt.Fprintf(&content, "BT /%s %s Tf %s %s %s rg %s %s Td ",
				annotationFontRes, formatNumber(size),
				formatNumber(r), formatNumber(g), formatNumber(b),
				formatNumber(dr.Box.X), formatNumber(dr.Box.Y+size*0.2))
			encodeObject(&content, String(dr.Text))
			content.WriteString(" Tj ET\n")
		}
		if content.Len() == 0 {
			continue
		}

		overlay := Stream{
			Dict: Dict{"Length": Number(content.Len())},
			Data: content.Bytes(),
		}
		newObjs = append(newObjs, numbered{num: next, obj: overlay})
		overlayNum := next
		next++

		updated := d.updatedPage(info, overlayNum, xobjects, fontNum)
		newObjs = append(newObjs, numbered{num: info.objNum, obj: updated})
	}

	if len(newObjs) == 0 {
		return d.source, nil
	}
	return d.appendUpdate(newObjs, next), nil
}

type numbered struct {
	num int
	obj Object
}

// updatedPage clones the page dictionary with the overlay appended to
// /Contents and the annotation resources merged in.
func (d *Document) updatedPage(info pageInfo, overlayNum int, xobjects Dict, fontNum int) Dict {
	page := Dict{}
	for k, v := range info.dict {
		page[k] = v
	}

	var contents Array
	switch v := page[Name("Contents")].(type) {
	case Array:
		contents = append(contents, v...)
	case nil:
	default:
		contents = append(contents, v)
	}
	contents = append(contents, Ref{Num: overlayNum})
	page[Name("Contents")] = contents

	res := Dict{}
	for k, v := range info.resources {
		res[k] = v
	}
	if len(xobjects) > 0 {
		merged := Dict{}
		if existing, ok := d.resolve(res[Name("XObject")]).(Dict); ok {
			for k, v := range existing {
				merged[k] = v
			}
		}
		for k, v := range xobjects {
			merged[k] = v
		}
		res[Name("XObject")] = merged
	}
	if fontNum != 0 {
		fonts := Dict{}
		if existing, ok := d.resolve(res[Name("Font")]).(Dict); ok {
			for k, v := range existing {
				fonts[k] = v
			}
		}
		fonts[Name(annotationFontRes)] = Ref{Num: fontNum}
		res[Name("Font")] = fonts
	}
	page[Name("Resources")] = res
	return page
}

// imageObject encodes an image as a flate-compressed DeviceRGB XObject.
func imageObject(img image.Image) (Stream, error) {
	b := img.Bounds()
	raw := make([]byte, 0, b.Dx()*b.Dy()*3)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			raw = append(raw, byte(r>>8), byte(g>>8), byte(bl>>8))
		}
	}

	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	if _, err := zw.Write(raw); err != nil {
		return Stream{}, err
	}
	if err := zw.Close(); err != nil {
		return Stream{}, err
	}

	return Stream{
		Dict: Dict{
			"Type":             Name("XObject"),
			"Subtype":          Name("Image"),
			"Width":            Number(b.Dx()),
			"Height":           Number(b.Dy()),
			"ColorSpace":       Name("DeviceRGB"),
			"BitsPerComponent": Number(8),
			"Filter":           Name("FlateDecode"),
			"Length":           Number(compressed.Len()),
		},
		Data: compressed.Bytes(),
	}, nil
}

// appendUpdate writes the new objects after the original bytes with an
// xref section and trailer chaining back to the previous one.
func (d *Document) appendUpdate(objs []numbered, size int) []byte {
	out := bytes.NewBuffer(append([]byte(nil), d.source...))
	if out.Len() > 0 && d.source[len(d.source)-1] != '\n' {
		out.WriteByte('\n')
	}

	offsets := make(map[int]int64, len(objs))
	for _, o := range objs {
		offsets[o.num] = int64(out.Len())
		fmt.Fprintf(out, "%d 0 obj\n", o.num)
		encodeObject(out, o.obj)
		out.WriteString("\nendobj\n")
	}

	nums := make([]int, 0, len(offsets))
	for n := range offsets {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	xrefStart := int64(out.Len())
	out.WriteString("xref\n")
	for i := 0; i < len(nums); {
		j := i
		for j+1 < len(nums) && nums[j+1] == nums[j]+1 {
			j++
		}
		fmt.Fprintf(out, "%d %d\n", nums[i], j-i+1)
		for k := i; k <= j; k++ {
			fmt.Fprintf(out, "%s 00000 n \n", formatOffset(offsets[nums[k]]))
		}
		i = j + 1
	}

	trailer := Dict{
		"Size":              Number(size),
		annotationBaseEntry: Number(len(d.source)),
	}
	if d.rootRef.Num != 0 {
		trailer[Name("Root")] = d.rootRef
	}
	if d.prevXref > 0 {
		trailer[Name("Prev")] = Number(d.prevXref)
	}
	if info, ok := d.trailer[Name("Info")]; ok {
		trailer[Name("Info")] = info
	}

	out.WriteString("trailer\n")
	encodeObject(out, trailer)
	fmt.Fprintf(out, "\nstartxref\n%d\n%%%%EOF\n", xrefStart)
	return out.Bytes()
}
