// Package viewer keeps a paginated document view in step with citation clicks.
//
// Two paths move the view: citations pick a target page, and the viewer's own
// navigation moves its displayed page. Both write the same target so they
// never drift apart. The displayed page only follows a target once the
// document is loaded far enough to know its page count and the target lies
// within it.
package viewer

import (
	"math"

	"github.com/mfenderov/citedoc/pkg/models"
)

const (
	MinScale  = 0.5
	MaxScale  = 2.0
	ScaleStep = 0.2
)

// Cursor is the view state of one open document. It is not safe for
// concurrent use.
type Cursor struct {
	target int // shared page requested by citations and navigation
	page   int // page the viewer displays
	total  int // 0 until the document has loaded
	scale  float64
}

// NewCursor returns a cursor on page 1 of a document that has not loaded yet.
func NewCursor() *Cursor {
	return &Cursor{target: 1, page: 1, scale: 1.0}
}

// OnCitationClick moves the target to the citation's page. Citations without
// a page leave the cursor untouched. The target is recorded even when the
// viewer cannot show it yet. It reports whether the displayed page changed.
func (c *Cursor) OnCitationClick(citation models.Citation) bool {
	if !citation.HasPage() {
		return false
	}
	c.target = *citation.Page
	return c.sync()
}

// OnViewerPageChange applies navigation made inside the viewer. Pages outside
// [1, total] are ignored. It reports whether the displayed page changed.
func (c *Cursor) OnViewerPageChange(page int) bool {
	if page < 1 || page > c.total {
		return false
	}
	changed := page != c.page
	c.page = page
	c.target = page
	return changed
}

// OnDocumentLoaded records the page count reported by the viewer and applies
// any target that was waiting for it.
func (c *Cursor) OnDocumentLoaded(total int) bool {
	if total < 0 {
		total = 0
	}
	c.total = total
	return c.sync()
}

// Next moves one page forward.
func (c *Cursor) Next() bool { return c.OnViewerPageChange(c.page + 1) }

// Prev moves one page back.
func (c *Cursor) Prev() bool { return c.OnViewerPageChange(c.page - 1) }

// CanNext reports whether a next page exists.
func (c *Cursor) CanNext() bool { return c.page < c.total }

// CanPrev reports whether a previous page exists.
func (c *Cursor) CanPrev() bool { return c.page > 1 }

// Page is the displayed page.
func (c *Cursor) Page() int { return c.page }

// Target is the requested page, which may be ahead of the displayed one.
func (c *Cursor) Target() int { return c.target }

// TotalPages is the known page count, 0 before load.
func (c *Cursor) TotalPages() int { return c.total }

// Loaded reports whether the page count is known.
func (c *Cursor) Loaded() bool { return c.total > 0 }

// Pending reports whether a target is waiting to be displayed.
func (c *Cursor) Pending() bool { return c.target != c.page }

// Scale is the zoom factor.
func (c *Cursor) Scale() float64 { return c.scale }

// ZoomIn increases the zoom by one step up to MaxScale.
func (c *Cursor) ZoomIn() {
	c.scale = roundScale(math.Min(c.scale+ScaleStep, MaxScale))
}

// ZoomOut decreases the zoom by one step down to MinScale.
func (c *Cursor) ZoomOut() {
	c.scale = roundScale(math.Max(c.scale-ScaleStep, MinScale))
}

// sync adopts the target when it differs from the displayed page and fits
// within the known page count.
func (c *Cursor) sync() bool {
	if c.target < 1 || c.target == c.page || c.target > c.total {
		return false
	}
	c.page = c.target
	return true
}

func roundScale(s float64) float64 {
	return math.Round(s*10) / 10
}
