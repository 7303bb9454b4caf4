// Package layout resolves where annotation content is drawn on
// fixed-layout pages. The planner turns a located label region plus the
// desired content extent into a concrete draw box, handling right-edge
// overflow by relocating below the label and clamping so the result
// never leaves the page.
package layout

import (
	"math"

	"github.com/tsawler/redpen/model"
)

// Planner computes draw boxes for geometric annotation targets.
type Planner struct {
	// Margin is kept clear on every page edge where possible.
	Margin float64
	// ScoreGap is the horizontal offset between a score label's right
	// edge and the score content.
	ScoreGap float64
	// CommentGap separates comment content from its label.
	CommentGap float64
	// SignatureMaxWidth bounds signature images; aspect ratio is
	// preserved when scaling down.
	SignatureMaxWidth float64
	// SignatureMaxHeight caps signature height after width scaling.
	SignatureMaxHeight float64
}

// NewPlanner returns a planner with the default metrics (points).
func NewPlanner() *Planner {
	return &Planner{
		Margin:             36,
		ScoreGap:           10,
		CommentGap:         8,
		SignatureMaxWidth:  140,
		SignatureMaxHeight: 60,
	}
}

// Plan resolves the draw box for one region. desired is the content's
// preferred extent (width, height); for signatures it is the source
// image's natural size. page is the page bounding box. The returned box
// never exceeds page bounds on either axis.
func (p *Planner) Plan(region model.LayoutRegion, desired model.Point, page model.BBox) model.BBox {
	var box model.BBox
	switch region.Match.Category {
	case model.CategoryScore:
		box = p.planScore(region, desired)
	case model.CategorySignature:
		box = p.planSignature(region, desired)
	default:
		box = p.planComment(region, desired, page)
	}
	return p.clampToPage(box, page)
}

// planScore anchors score content at a fixed offset to the right of the
// label, bottom-aligned with it.
func (p *Planner) planScore(region model.LayoutRegion, desired model.Point) model.BBox {
	return model.NewBBox(
		region.Box.Right()+p.ScoreGap,
		region.Box.Y,
		desired.X,
		desired.Y,
	)
}

// planComment places comment content beside a horizontal label or
// stacked under a vertical one. When the preferred box would cross the
// page's right margin it relocates to a full-width box below the label
// instead.
func (p *Planner) planComment(region model.LayoutRegion, desired model.Point, page model.BBox) model.BBox {
	var box model.BBox
	if region.Orientation == model.Vertical {
		// Stacked: start at the label's left edge, below it.
		box = model.NewBBox(
			region.Box.X,
			region.Box.Bottom()-p.CommentGap-desired.Y,
			desired.X,
			desired.Y,
		)
	} else {
		// Beside: top-aligned with the label.
		box = model.NewBBox(
			region.Box.Right()+p.CommentGap,
			region.Box.Top()-desired.Y,
			desired.X,
			desired.Y,
		)
	}

	if box.Right() > page.Right()-p.Margin {
		// Overflow: full-page-width box below the label.
		width := page.Width - 2*p.Margin
		box = model.NewBBox(
			page.X+p.Margin,
			region.Box.Bottom()-p.CommentGap-desired.Y,
			width,
			desired.Y,
		)
	}
	return box
}

// planSignature anchors the signature to the right of the label, scaled
// to the width bound with preserved aspect ratio and a proportional
// height cap.
func (p *Planner) planSignature(region model.LayoutRegion, desired model.Point) model.BBox {
	w := desired.X
	h := desired.Y
	if w <= 0 || h <= 0 {
		w, h = p.SignatureMaxWidth, p.SignatureMaxHeight
	}
	if w > p.SignatureMaxWidth {
		scale := p.SignatureMaxWidth / w
		w = p.SignatureMaxWidth
		h *= scale
	}
	if h > p.SignatureMaxHeight {
		scale := p.SignatureMaxHeight / h
		h = p.SignatureMaxHeight
		w *= scale
	}

	// Vertically centered on the label.
	y := region.Box.Y + region.Box.Height/2 - h/2
	return model.NewBBox(region.Box.Right()+p.ScoreGap, y, w, h)
}

// clampToPage shifts the box inside the page, respecting the top
// margin, and truncates any dimension larger than the page itself.
func (p *Planner) clampToPage(box, page model.BBox) model.BBox {
	box.Width = math.Min(box.Width, page.Width)
	box.Height = math.Min(box.Height, page.Height)

	if box.Right() > page.Right() {
		box.X = page.Right() - box.Width
	}
	if box.X < page.X {
		box.X = page.X
	}

	// Content is never drawn above the top-of-page margin.
	maxTop := page.Top() - p.Margin
	if maxTop < box.Height {
		maxTop = page.Top()
	}
	if box.Top() > maxTop {
		box.Y = maxTop - box.Height
	}
	if box.Y < page.Y {
		box.Y = page.Y
	}
	return box
}
