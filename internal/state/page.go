package state

import (
	"slices"
	"time"

	"github.com/five82/sentinel/internal/api"
)

// PageFilter narrows a table to a subset of rows.
type PageFilter string

const (
	FilterAll       PageFilter = ""
	FilterMalicious PageFilter = "malicious"
)

// Page is the paginated table half of a snapshot.
type Page[R any] struct {
	Items      []R
	TotalCount int
	Page       int
	PageSize   int
	Filter     PageFilter
	IsLoading  bool
	LastError  error
	FetchedAt  time.Time
}

func defaultPage[R any](pageSize int) Page[R] {
	return Page[R]{Page: 1, PageSize: pageSize}
}

// TotalPages is the number of pages needed to show TotalCount rows, never
// less than one.
func (p Page[R]) TotalPages() int {
	return TotalPages(p.TotalCount, p.PageSize)
}

// CanGoTo reports whether target is a navigable page for this table.
func (p Page[R]) CanGoTo(target int) bool {
	return CanGoTo(target, p.TotalCount, p.PageSize)
}

func (p Page[R]) clone() Page[R] {
	p.Items = slices.Clone(p.Items)
	return p
}

// TotalPages returns max(1, ceil(total/size)). A non-positive size counts as
// a single page.
func TotalPages(total, size int) int {
	if size <= 0 || total <= 0 {
		return 1
	}
	return (total + size - 1) / size
}

// CanGoTo reports whether target lies in [1, TotalPages(total, size)].
func CanGoTo(target, total, size int) bool {
	return target >= 1 && target <= TotalPages(total, size)
}

// pageFromResponse builds the table page for a successful fetch. Rows past
// PageSize are cut so len(Items) never exceeds PageSize; dropped is how many.
func pageFromResponse[R any](resp api.PageResponse[R], query api.PageQuery, filter PageFilter) (page Page[R], dropped int) {
	page = Page[R]{
		Items:      slices.Clone(resp.Items),
		TotalCount: nonNegative(resp.Total),
		Page:       resp.Page,
		PageSize:   resp.PageSize,
		Filter:     filter,
		FetchedAt:  time.Now(),
	}
	// Servers that omit paging fields echo the request.
	if page.Page < 1 {
		page.Page = query.Page
	}
	if page.PageSize < 1 {
		page.PageSize = query.PageSize
	}
	if page.PageSize > 0 && len(page.Items) > page.PageSize {
		dropped = len(page.Items) - page.PageSize
		page.Items = page.Items[:page.PageSize]
	}
	return page, dropped
}
