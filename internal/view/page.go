package view

import "github.com/matchbase/marketplace/internal/search"

// PageSize is the fixed page size of batch and list reads.
const PageSize = search.DefaultHitsPerPage

// Page is the pagination block returned with every list read.
type Page struct {
	CurrentPage int `json:"currentPage"`
	Posts       int `json:"posts"`
	Pages       int `json:"pages"`
}

// Paginate slices ids into page p (zero-based) of size entries, preserving
// order. Out-of-range pages yield an empty slice.
func Paginate(ids []string, page, size int) ([]string, Page) {
	if size <= 0 {
		size = PageSize
	}
	if page < 0 {
		page = 0
	}
	n := len(ids)
	meta := Page{CurrentPage: page, Posts: n, Pages: (n + size - 1) / size}
	start := page * size
	if start >= n {
		return []string{}, meta
	}
	end := start + size
	if end > n {
		end = n
	}
	return ids[start:end], meta
}

// PageOf converts a search result into the pagination block.
func PageOf(page int, r *search.Result) Page {
	return Page{CurrentPage: page, Posts: r.TotalHits, Pages: r.TotalPages}
}
