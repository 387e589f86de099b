package filtercache

import (
	"math"

	"github.com/unkn0wn-root/filtercache/dispatch"
)

// Source tells where a page came from.
type Source string

const (
	SourceLive  Source = "live"  // query engine, native pagination
	SourceCache Source = "cache" // populated entry
	SourceFresh Source = "fresh" // full query that also started a population
)

// Page is one page of rows plus length-aware pagination metadata.
type Page[V any] struct {
	Rows    []V    `json:"data"`
	Total   int    `json:"total"`
	Page    int    `json:"current_page"`
	PerPage int    `json:"per_page"`
	Source  Source `json:"source"`

	// Population is set only on SourceFresh pages.
	Population *dispatch.Task `json:"-"`
}

// LastPage is never below 1, even for an empty result.
func (p Page[V]) LastPage() int {
	if p.PerPage <= 0 || p.Total <= 0 {
		return 1
	}
	return (p.Total + p.PerPage - 1) / p.PerPage
}

func (p Page[V]) HasMore() bool { return p.Page < p.LastPage() }

// From is the 1-based position of the first row, 0 when the page is empty.
func (p Page[V]) From() int {
	if len(p.Rows) == 0 {
		return 0
	}
	return (p.Page-1)*p.PerPage + 1
}

// To is the 1-based position of the last row, 0 when the page is empty.
func (p Page[V]) To() int {
	if len(p.Rows) == 0 {
		return 0
	}
	return p.From() + len(p.Rows) - 1
}

// maxPage is the largest page whose row range [(page-1)*size, page*size) fits
// in an int.
func maxPage(size int) int {
	if size <= 0 {
		return 0
	}
	return math.MaxInt / size
}

// window slices the page out of an in-memory result.
func window[V any](rows []V, page, size int) []V {
	start := (page - 1) * size
	if start >= len(rows) {
		return []V{}
	}
	end := min(start+size, len(rows))
	return rows[start:end:end]
}
