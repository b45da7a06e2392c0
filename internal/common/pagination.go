package common

import "net/http"

// Pagination describes a page of a list response.
type Pagination struct {
	Page    int `json:"page"`
	PerPage int `json:"perPage"`
	Total   int `json:"total"`
}

// Offset is the number of rows skipped before this page.
func (p Pagination) Offset() int { return (p.Page - 1) * p.PerPage }

// ParsePagination reads page and limit (or perPage) from the query. Missing or
// non-positive values fall back to page 1 and defaultPerPage; perPage is
// capped at maxPerPage when it is positive.
func ParsePagination(r *http.Request, defaultPerPage, maxPerPage int) Pagination {
	q := r.URL.Query()
	p := Pagination{Page: AtoiDefault(q.Get("page"), 1), PerPage: AtoiDefault(q.Get("limit"), 0)}
	if p.PerPage <= 0 {
		p.PerPage = AtoiDefault(q.Get("perPage"), defaultPerPage)
	}
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.PerPage <= 0 {
		p.PerPage = defaultPerPage
	}
	if maxPerPage > 0 && p.PerPage > maxPerPage {
		p.PerPage = maxPerPage
	}
	return p
}
