package shared

import "math"

// Pagination contains metadata for paginated listings. Total always counts
// the set the caller is allowed to see, never the raw table.
type Pagination struct {
	Page       int
	PerPage    int
	Total      int
	TotalPages int
}

// NewPagination computes pagination metadata.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = 15
	}
	if page <= 0 {
		page = 1
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// HasNext reports whether a later page exists.
func (p Pagination) HasNext() bool {
	return p.Page < p.TotalPages
}

// HasPrev reports whether an earlier page exists.
func (p Pagination) HasPrev() bool {
	return p.Page > 1
}

// NextPage returns the following page number, clamped to the last page.
func (p Pagination) NextPage() int {
	if p.HasNext() {
		return p.Page + 1
	}
	return p.Page
}

// PrevPage returns the preceding page number, clamped to the first page.
func (p Pagination) PrevPage() int {
	if p.HasPrev() {
		return p.Page - 1
	}
	return p.Page
}
