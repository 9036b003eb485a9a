package store

// Window is the absolute, inclusive row range of one page.
type Window struct {
	Page  int // effective page index
	Start int // first row, zero-based
	End   int // last row, inclusive; End < Start means the page is empty
}

// Size returns the number of rows covered by the window.
func (w Window) Size() int {
	if w.End < w.Start {
		return 0
	}
	return w.End - w.Start + 1
}

// PageWindow resolves [page*size, page*size+size-1] and clamps the end to
// total-1. A page that starts at or beyond total snaps back to page 0;
// recovered reports when that happened.
func PageWindow(page, size, total int) (w Window, recovered bool) {
	if size <= 0 {
		size = 1
	}
	if page < 0 {
		page = 0
		recovered = true
	}

	start := page * size
	if total > 0 && start >= total {
		page, start, recovered = 0, 0, true
	}

	end := start + size - 1
	if end > total-1 {
		end = total - 1
	}

	return Window{Page: page, Start: start, End: end}, recovered
}

// TotalPages returns ceil(total/size), with at least one page.
func TotalPages(total, size int) int {
	if size <= 0 || total <= 0 {
		return 1
	}
	return (total + size - 1) / size
}

// ClampPage keeps page within [0, TotalPages-1].
func ClampPage(page, size, total int) int {
	last := TotalPages(total, size) - 1
	switch {
	case page < 0:
		return 0
	case page > last:
		return last
	default:
		return page
	}
}

// ListParams bounds simple offset listings such as admin user lists.
type ListParams struct {
	Offset int
	Limit  int // defaults to 100, maximum 1000
}

// Normalize applies defaults and bounds.
func (p *ListParams) Normalize() {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 {
		p.Limit = 100
	}
	if p.Limit > 1000 {
		p.Limit = 1000
	}
}
