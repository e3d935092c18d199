package humastar

import (
	"fmt"
	"strings"
)

// Pager is implemented by response bodies that carry pagination metadata.
// LinkTransformer turns its links into Link headers.
type Pager interface {
	PaginationLinks(basePath string) []string
}

// PageBody is a paginated response envelope.
type PageBody[T any] struct {
	Total  int `json:"total" doc:"Total number of items"`
	Offset int `json:"offset" doc:"Current offset"`
	Limit  int `json:"limit" doc:"Page size"`
	Data   []T `json:"data" doc:"Items"`
}

// Paginate cuts one page out of all. Offsets past the end give an empty page.
func Paginate[T any](all []T, offset, limit int) PageBody[T] {
	offset = max(offset, 0)
	if limit <= 0 {
		limit = len(all)
	}
	start := min(offset, len(all))
	end := min(start+limit, len(all))
	data := make([]T, end-start)
	copy(data, all[start:end])
	return PageBody[T]{Total: len(all), Offset: offset, Limit: limit, Data: data}
}

// PaginationLinks returns first, prev, next and last links; prev and next
// only when such a page exists. basePath may carry its own query.
func (p PageBody[T]) PaginationLinks(basePath string) []string {
	if p.Limit <= 0 {
		return nil
	}
	sep := "?"
	if strings.Contains(basePath, "?") {
		sep = "&"
	}
	link := func(offset int, rel string) string {
		return fmt.Sprintf(`<%s%soffset=%d&limit=%d>; rel="%s"`, basePath, sep, offset, p.Limit, rel)
	}

	links := []string{link(0, "first")}
	if p.Offset > 0 {
		links = append(links, link(max(p.Offset-p.Limit, 0), "prev"))
	}
	if p.Offset+p.Limit < p.Total {
		links = append(links, link(p.Offset+p.Limit, "next"))
	}
	last := max((p.Total-1)/p.Limit*p.Limit, 0)
	return append(links, link(last, "last"))
}
