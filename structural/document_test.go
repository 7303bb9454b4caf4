package structural

import "testing"

// buildRow creates doc -> table -> row with n cells, each holding one
// paragraph with one run of the given text.
func buildRow(texts ...string) (*Document, []ID) {
	doc := NewDocument()
	table := doc.Add(doc.Root(), KindTable)
	row := doc.Add(table, KindRow)
	cells := make([]ID, len(texts))
	for i, text := range texts {
		cell := doc.Add(row, KindCell)
		para := doc.Add(cell, KindParagraph)
		run := doc.Add(para, KindRun)
		doc.SetText(run, text)
		cells[i] = cell
	}
	return doc, cells
}

func TestTextConcatenatesSubtree(t *testing.T) {
	doc := NewDocument()
	para := doc.Add(doc.Root(), KindParagraph)
	props := doc.Add(para, KindProps)
	doc.SetAttr(props, AttrRaw, "<w:pPr/>")
	r1 := doc.Add(para, KindRun)
	doc.SetText(r1, "Score")
	r2 := doc.Add(para, KindRun)
	doc.SetText(r2, ": ")

	if got := doc.Text(para); got != "Score: " {
		t.Errorf("Text() = %q, want %q", got, "Score: ")
	}
}

func TestNextSibling(t *testing.T) {
	doc, cells := buildRow("a", "b", "c")

	if got := doc.NextSibling(cells[0]); got != cells[1] {
		t.Errorf("NextSibling(first) = %v, want %v", got, cells[1])
	}
	if got := doc.NextSibling(cells[2]); got != Invalid {
		t.Errorf("NextSibling(last) = %v, want Invalid", got)
	}
}

func TestDirtyTrackingStartsAtSeal(t *testing.T) {
	doc, cells := buildRow("Score", "")
	if doc.DirtySubtree(doc.Root()) {
		t.Fatal("nodes dirty before Seal")
	}

	doc.Seal()
	para := doc.Children(cells[1])[0]
	run := doc.Children(para)[0]
	doc.SetText(run, "95")

	if !doc.Dirty(run) {
		t.Error("mutated run not dirty")
	}
	if !doc.DirtySubtree(cells[1]) {
		t.Error("DirtySubtree(cell) = false after mutating its run")
	}
	if doc.DirtySubtree(cells[0]) {
		t.Error("untouched cell reported dirty")
	}
}

func TestClearChildrenAndReattach(t *testing.T) {
	doc := NewDocument()
	para := doc.Add(doc.Root(), KindParagraph)
	props := doc.Add(para, KindProps)
	run := doc.Add(para, KindRun)
	doc.SetText(run, "old")

	doc.ClearChildren(para)
	if len(doc.Children(para)) != 0 {
		t.Fatal("ClearChildren left children attached")
	}
	if doc.Parent(props) != Invalid {
		t.Error("detached node still has a parent")
	}

	doc.Attach(para, props)
	if got := doc.Children(para); len(got) != 1 || got[0] != props {
		t.Errorf("Children() after reattach = %v, want [%v]", got, props)
	}
	if doc.Parent(props) != para {
		t.Error("reattached node has wrong parent")
	}
}

func TestNodesOfKindDocumentOrder(t *testing.T) {
	doc, cells := buildRow("x", "y")
	got := doc.NodesOfKind(KindCell)
	if len(got) != 2 || got[0] != cells[0] || got[1] != cells[1] {
		t.Errorf("NodesOfKind(KindCell) = %v, want %v", got, cells)
	}
}

func TestAttrRoundTrip(t *testing.T) {
	doc := NewDocument()
	run := doc.Add(doc.Root(), KindRun)
	doc.SetAttr(run, AttrColor, "FF0000")

	if got := doc.Attr(run, AttrColor); got != "FF0000" {
		t.Errorf("Attr(color) = %q, want %q", got, "FF0000")
	}
	if got := doc.Attr(run, AttrFont); got != "" {
		t.Errorf("Attr(font) = %q, want empty", got)
	}
	if got := doc.Attr(Invalid, AttrColor); got != "" {
		t.Errorf("Attr(Invalid) = %q, want empty", got)
	}
}
