package domain

const (
	DefaultPage  = 1
	DefaultLimit = 20
)

// PageRequest is a 1-based page selection.
type PageRequest struct {
	Page  int
	Limit int
}

// Offset is the number of records to skip.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Pagination describes where a page sits. Page is 0 when the requested page holds
// no records, either because the listing is empty or the page is past its end.
type Pagination struct {
	Page      int `json:"page"`
	PageCount int `json:"pageCount"`
}

// Page is one slice of a listing.
type Page[T any] struct {
	Items      []T
	Pagination Pagination
}

// NewPage builds a page from the items of the requested slice and the total record count.
func NewPage[T any](req PageRequest, items []T, total int) Page[T] {
	if items == nil {
		items = []T{}
	}
	p := Pagination{Page: req.Page}
	if total == 0 || req.Offset() >= total {
		p.Page = 0
	}
	if req.Limit > 0 {
		p.PageCount = (total + req.Limit - 1) / req.Limit
	}
	return Page[T]{Items: items, Pagination: p}
}

// MapPage converts the items of a page, keeping its pagination.
func MapPage[T, U any](p Page[T], fn func(T) U) Page[U] {
	out := make([]U, 0, len(p.Items))
	for _, item := range p.Items {
		out = append(out, fn(item))
	}
	return Page[U]{Items: out, Pagination: p.Pagination}
}
