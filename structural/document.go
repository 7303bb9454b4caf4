// Package structural provides the in-memory tree model for flowed
// documents (paragraphs, tables, cells) and the locator that finds
// grading placeholders in it.
//
// The tree is an owned arena: nodes live in a flat slice and refer to
// each other by index. Parent references exist for lookup only; the
// arena owns every node, so detaching a child never frees it and a
// detached node can be reattached later. Codecs build the arena from
// container bytes and map it back during serialization.
package structural

// ID identifies a node within one Document's arena.
type ID int

// Invalid is the null node ID. Locator matches use it to signal that a
// target cell does not exist yet and must be synthesized by the mutator.
const Invalid ID = -1

// Kind classifies a node in the document tree.
type Kind int

const (
	// KindDocument is the single root node.
	KindDocument Kind = iota
	// KindTable groups rows.
	KindTable
	// KindRow groups cells.
	KindRow
	// KindCell holds paragraphs inside a table or grid row.
	KindCell
	// KindParagraph holds runs and an optional properties node.
	KindParagraph
	// KindRun is a leaf carrying literal text and style attributes.
	KindRun
	// KindProps is an opaque formatting descriptor preserved verbatim
	// by the codec (e.g. a raw <w:pPr> fragment). It carries no text.
	KindProps
)

// String returns the string representation of the node kind.
func (k Kind) String() string {
	switch k {
	case KindDocument:
		return "document"
	case KindTable:
		return "table"
	case KindRow:
		return "row"
	case KindCell:
		return "cell"
	case KindParagraph:
		return "paragraph"
	case KindRun:
		return "run"
	case KindProps:
		return "props"
	default:
		return "unknown"
	}
}

type node struct {
	kind     Kind
	parent   ID
	children []ID
	text     string
	attrs    map[string]string
}

// Document is an owned arena of document nodes. It is created per
// annotation invocation and never shared between invocations.
//
// The arena tracks which nodes were modified after construction so a
// codec can serialize untouched regions of the source verbatim and
// regenerate only what the mutator changed.
type Document struct {
	nodes  []node
	dirty  map[ID]bool
	sealed bool
}

// NewDocument creates a document containing only the root node.
func NewDocument() *Document {
	return &Document{
		nodes: []node{{kind: KindDocument, parent: Invalid}},
		dirty: make(map[ID]bool),
	}
}

// Seal marks the end of codec construction. Modifications before Seal
// (the codec building the tree) are not tracked; modifications after it
// mark nodes dirty.
func (d *Document) Seal() {
	d.sealed = true
}

// Dirty reports whether the node was modified after Seal.
func (d *Document) Dirty(id ID) bool {
	return d.dirty[id]
}

// DirtySubtree reports whether the node or any of its descendants was
// modified after Seal.
func (d *Document) DirtySubtree(id ID) bool {
	found := false
	d.Walk(id, func(n ID) bool {
		if d.dirty[n] {
			found = true
			return false
		}
		return true
	})
	return found
}

func (d *Document) markDirty(id ID) {
	if d.sealed && d.valid(id) {
		d.dirty[id] = true
	}
}

// Root returns the root node ID.
func (d *Document) Root() ID {
	return 0
}

// valid reports whether id names a node in the arena.
func (d *Document) valid(id ID) bool {
	return id >= 0 && int(id) < len(d.nodes)
}

// Add creates a new node of the given kind and appends it to parent's
// children. It returns the new node's ID.
func (d *Document) Add(parent ID, kind Kind) ID {
	id := ID(len(d.nodes))
	d.nodes = append(d.nodes, node{kind: kind, parent: parent})
	if d.valid(parent) {
		p := &d.nodes[parent]
		p.children = append(p.children, id)
		d.markDirty(parent)
	}
	return id
}

// Attach appends an existing (detached) node to parent's children.
func (d *Document) Attach(parent, child ID) {
	if !d.valid(parent) || !d.valid(child) {
		return
	}
	d.nodes[child].parent = parent
	p := &d.nodes[parent]
	p.children = append(p.children, child)
	d.markDirty(parent)
}

// ClearChildren detaches all children of id. The detached nodes remain
// in the arena and may be reattached.
func (d *Document) ClearChildren(id ID) {
	if !d.valid(id) {
		return
	}
	for _, c := range d.nodes[id].children {
		d.nodes[c].parent = Invalid
	}
	d.nodes[id].children = nil
	d.markDirty(id)
}

// Kind returns the node's kind, or KindDocument for invalid IDs.
func (d *Document) Kind(id ID) Kind {
	if !d.valid(id) {
		return KindDocument
	}
	return d.nodes[id].kind
}

// Parent returns the node's parent, or Invalid for the root.
func (d *Document) Parent(id ID) ID {
	if !d.valid(id) {
		return Invalid
	}
	return d.nodes[id].parent
}

// Children returns the node's children. The returned slice is shared
// with the arena and must not be modified by the caller.
func (d *Document) Children(id ID) []ID {
	if !d.valid(id) {
		return nil
	}
	return d.nodes[id].children
}

// NextSibling returns the sibling immediately after id in its parent's
// child list, or Invalid if id is the last child or detached.
func (d *Document) NextSibling(id ID) ID {
	parent := d.Parent(id)
	if parent == Invalid {
		return Invalid
	}
	siblings := d.nodes[parent].children
	for i, sib := range siblings {
		if sib == id && i+1 < len(siblings) {
			return siblings[i+1]
		}
	}
	return Invalid
}

// SetText sets the literal text of a leaf node.
func (d *Document) SetText(id ID, text string) {
	if d.valid(id) {
		d.nodes[id].text = text
		d.markDirty(id)
	}
}

// Text returns the concatenated run text of the subtree rooted at id.
// Formatting descriptor nodes contribute nothing.
func (d *Document) Text(id ID) string {
	if !d.valid(id) {
		return ""
	}
	n := &d.nodes[id]
	if n.kind == KindProps {
		return ""
	}
	if n.kind == KindRun {
		return n.text
	}
	var out []byte
	for _, c := range n.children {
		out = append(out, d.Text(c)...)
	}
	return string(out)
}

// SetAttr sets a style attribute on a node (e.g. "color", "font", or a
// codec-private key such as a raw formatting fragment).
func (d *Document) SetAttr(id ID, key, value string) {
	if !d.valid(id) {
		return
	}
	if d.nodes[id].attrs == nil {
		d.nodes[id].attrs = make(map[string]string)
	}
	d.nodes[id].attrs[key] = value
}

// Attr returns a style attribute value, or "" if unset.
func (d *Document) Attr(id ID, key string) string {
	if !d.valid(id) {
		return ""
	}
	return d.nodes[id].attrs[key]
}

// Walk visits the subtree rooted at id in document order, calling fn
// for each node. If fn returns false the walk stops.
func (d *Document) Walk(id ID, fn func(ID) bool) bool {
	if !d.valid(id) {
		return true
	}
	if !fn(id) {
		return false
	}
	for _, c := range d.nodes[id].children {
		if !d.Walk(c, fn) {
			return false
		}
	}
	return true
}

// NodesOfKind returns all nodes of the given kind in document order.
func (d *Document) NodesOfKind(kind Kind) []ID {
	var out []ID
	d.Walk(d.Root(), func(id ID) bool {
		if d.Kind(id) == kind {
			out = append(out, id)
		}
		return true
	})
	return out
}
