package pdf

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/tsawler/redpen/geometric"
)

// pageInfo ties a geometric page to its source objects for the writer.
type pageInfo struct {
	objNum    int
	dict      Dict
	resources Dict
	resNum    int // object number of an indirect resources dict, or 0
}

// Document provides geometric access to one parsed PDF file.
type Document struct {
	source  []byte
	objects map[int]Object
	maxObj  int
	rootRef Ref
	trailer Dict
	prevXref int64

	pages []pageInfo
	model *geometric.Model
}

// Parse opens PDF bytes and builds the geometric model. Incremental
// updates appended by an earlier annotation pass are dropped first, so
// serializing again replaces the injected content rather than stacking
// a second copy onto the file.
func Parse(data []byte) (*Document, error) {
	return parse(stripAnnotationUpdates(data))
}

// stripAnnotationUpdates truncates trailing updates written by
// Serialize, identified by the trailer entry recording the length of
// the file each update was appended to.
func stripAnnotationUpdates(data []byte) []byte {
	for {
		i := bytes.LastIndex(data, []byte("trailer"))
		if i < 0 {
			return data
		}
		obj, err := newParser(data, i+len("trailer")).parseValue()
		if err != nil {
			return data
		}
		dict, ok := obj.(Dict)
		if !ok {
			return data
		}
		base, ok := dict[annotationBaseEntry].(Number)
		if !ok {
			return data
		}
		n := int(base)
		if n < len("%PDF") || n >= len(data) {
			return data
		}
		data = data[:n]
	}
}

func parse(data []byte) (*Document, error) {
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		return nil, fmt.Errorf("missing PDF header")
	}

	objects, maxObj, err := scanObjects(data)
	if err != nil {
		return nil, fmt.Errorf("scanning objects: %w", err)
	}

	d := &Document{
		source:  data,
		objects: objects,
		maxObj:  maxObj,
		model:   &geometric.Model{},
	}
	d.readTrailer()

	if err := d.buildPages(); err != nil {
		return nil, err
	}
	if len(d.pages) == 0 {
		return nil, fmt.Errorf("no pages found")
	}
	return d, nil
}

// Model returns the geometric model for location and mutation.
func (d *Document) Model() *geometric.Model {
	return d.model
}

// resolve dereferences indirect references, returning the target
// object or nil for dangling references.
func (d *Document) resolve(obj Object) Object {
	for i := 0; i < 32; i++ {
		ref, ok := obj.(Ref)
		if !ok {
			return obj
		}
		obj = d.objects[ref.Num]
	}
	return nil
}

// readTrailer locates the startxref offset and the document catalog.
// Classic trailers carry /Root; xref-stream documents put it on the
// stream dictionary; failing both, the catalog is found by type scan.
func (d *Document) readTrailer() {
	if i := bytes.LastIndex(d.source, []byte("startxref")); i >= 0 {
		p := newParser(d.source, i+len("startxref"))
		if t, err := p.next(); err == nil && t.kind == tokNumber {
			d.prevXref = int64(t.num)
		}
	}

	if i := bytes.LastIndex(d.source, []byte("trailer")); i >= 0 {
		p := newParser(d.source, i+len("trailer"))
		if obj, err := p.parseValue(); err == nil {
			if dict, ok := obj.(Dict); ok {
				d.trailer = dict
				if root, ok := dict[Name("Root")].(Ref); ok {
					d.rootRef = root
					return
				}
			}
		}
	}

	// xref-stream documents, or a damaged trailer: find the catalog
	// (or an xref stream carrying /Root) by scanning objects.
	for num, obj := range d.objects {
		switch v := obj.(type) {
		case Dict:
			if v.Name("Type") == "Catalog" {
				d.rootRef = Ref{Num: num}
			}
		case Stream:
			if v.Dict.Name("Type") == "XRef" {
				if root, ok := v.Dict[Name("Root")].(Ref); ok {
					d.rootRef = root
				}
			}
		}
	}
}

// buildPages walks the page tree and interprets each page's content.
func (d *Document) buildPages() error {
	var pageRefs []int
	var inherited []Dict

	root, _ := d.resolve(d.rootRef).(Dict)
	if root != nil {
		if pagesRef, ok := root[Name("Pages")].(Ref); ok {
			d.walkPageTree(pagesRef, Dict{}, &pageRefs, &inherited)
		}
	}
	if len(pageRefs) == 0 {
		// No usable catalog: collect /Type /Page objects in number
		// order.
		for num := 1; num <= d.maxObj; num++ {
			if dict, ok := d.objects[num].(Dict); ok && dict.Name("Type") == "Page" {
				pageRefs = append(pageRefs, num)
				inherited = append(inherited, Dict{})
			}
		}
	}

	for i, num := range pageRefs {
		dict, _ := d.objects[num].(Dict)
		if dict == nil {
			continue
		}
		d.buildPage(i, num, dict, inherited[i])
	}
	return nil
}

// walkPageTree descends /Pages nodes, carrying inheritable attributes.
func (d *Document) walkPageTree(ref Ref, inherit Dict, pageRefs *[]int, inherited *[]Dict) {
	node, _ := d.resolve(ref).(Dict)
	if node == nil {
		return
	}

	merged := Dict{}
	for k, v := range inherit {
		merged[k] = v
	}
	for _, key := range []Name{"MediaBox", "Resources"} {
		if v, ok := node[key]; ok {
			merged[key] = v
		}
	}

	switch node.Name("Type") {
	case "Pages":
		kids, _ := d.resolve(node[Name("Kids")]).(Array)
		for _, kid := range kids {
			if kidRef, ok := kid.(Ref); ok {
				d.walkPageTree(kidRef, merged, pageRefs, inherited)
			}
		}
	case "Page":
		*pageRefs = append(*pageRefs, ref.Num)
		*inherited = append(*inherited, merged)
	}
}

// buildPage interprets one page's content streams into text runs and
// images. Content that cannot be decoded leaves the page empty rather
// than failing the document.
func (d *Document) buildPage(index, objNum int, dict, inherit Dict) {
	width, height := 612.0, 792.0
	mediaBox := dict[Name("MediaBox")]
	if mediaBox == nil {
		mediaBox = inherit[Name("MediaBox")]
	}
	if arr, ok := d.resolve(mediaBox).(Array); ok && len(arr) == 4 {
		coords := make([]float64, 4)
		valid := true
		for i, el := range arr {
			n, ok := d.resolve(el).(Number)
			if !ok {
				valid = false
				break
			}
			coords[i] = float64(n)
		}
		if valid {
			width = coords[2] - coords[0]
			height = coords[3] - coords[1]
		}
	}

	page := &geometric.Page{Index: index, Width: width, Height: height}

	resObj := dict[Name("Resources")]
	if resObj == nil {
		resObj = inherit[Name("Resources")]
	}
	resNum := 0
	if ref, ok := resObj.(Ref); ok {
		resNum = ref.Num
	}
	resources, _ := d.resolve(resObj).(Dict)

	if content := d.contentBytes(dict[Name("Contents")]); len(content) > 0 {
		interpretContent(content, resources, d.resolve, page)
	}

	d.model.Pages = append(d.model.Pages, page)
	d.pages = append(d.pages, pageInfo{
		objNum:    objNum,
		dict:      dict,
		resources: resources,
		resNum:    resNum,
	})
}

// contentBytes concatenates and decodes the page's content streams.
func (d *Document) contentBytes(contents Object) []byte {
	var refs []Object
	switch v := d.resolve(contents).(type) {
	case Stream:
		refs = []Object{contents}
	case Array:
		refs = v
	default:
		return nil
	}

	var out bytes.Buffer
	for _, ref := range refs {
		s, ok := d.resolve(ref).(Stream)
		if !ok {
			continue
		}
		data, err := decodeStream(s, d.resolve)
		if err != nil {
			continue
		}
		out.Write(data)
		out.WriteByte('\n')
	}
	return out.Bytes()
}

// formatOffset renders a byte offset as the ten-digit field an xref
// entry requires.
func formatOffset(off int64) string {
	s := strconv.FormatInt(off, 10)
	for len(s) < 10 {
		s = "0" + s
	}
	return s
}
