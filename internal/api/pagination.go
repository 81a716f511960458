package api

import (
	"net/http"
	"strconv"
)

// Issue lists are read on phones, so pages stay small
const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// PaginationParams holds the page and page size of a list request
type PaginationParams struct {
	Page    int
	PerPage int
}

// ParsePagination reads ?page= and ?per_page=. Garbage falls back to the
// defaults and per_page is capped at maxPerPage.
func ParsePagination(r *http.Request) PaginationParams {
	q := r.URL.Query()
	return PaginationParams{
		Page:    positiveInt(q.Get("page"), 1, 0),
		PerPage: positiveInt(q.Get("per_page"), defaultPerPage, maxPerPage),
	}
}

// Offset returns the number of rows to skip for the current page
func (p PaginationParams) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// TotalPages returns how many pages total rows fill
func (p PaginationParams) TotalPages(total int64) int {
	if p.PerPage <= 0 || total <= 0 {
		return 0
	}
	per := int64(p.PerPage)
	return int((total + per - 1) / per)
}

// NewPaginatedResponse wraps one page of items with its metadata
func NewPaginatedResponse(items interface{}, p PaginationParams, total int64) PaginatedResponse {
	return PaginatedResponse{
		Data: items,
		Pagination: PaginationMeta{
			Page:       p.Page,
			PerPage:    p.PerPage,
			Total:      total,
			TotalPages: p.TotalPages(total),
		},
	}
}

func positiveInt(raw string, def, max int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if max > 0 && n > max {
		return max
	}
	return n
}
