// Package pagination turns page/page_size query parameters into store
// limit/offset pairs.
package pagination

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Query is bound from the query string of list endpoints. Zero values fall
// back to the first page of DefaultPageSize items.
type Query struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// New returns the first page with the default size.
func New() *Query {
	return &Query{Page: 1, PageSize: DefaultPageSize}
}

// Limit returns the page size clamped to [1, MaxPageSize].
func (q *Query) Limit() int {
	switch {
	case q.PageSize < 1:
		return DefaultPageSize
	case q.PageSize > MaxPageSize:
		return MaxPageSize
	default:
		return q.PageSize
	}
}

// Offset returns the number of rows before the page.
func (q *Query) Offset() int {
	if q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * q.Limit()
}

// Number returns the 1-based page number.
func (q *Query) Number() int {
	if q.Page < 1 {
		return 1
	}
	return q.Page
}
