package repository

import "strings"

// Paging bounds applied when a caller passes out-of-range values.
const (
	defaultPageSize = 25
	maxPageSize     = 200
	maxPage         = 1000000
)

func limitOffset(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return size, (page - 1) * size
}

// likePattern lower-cases the term and escapes LIKE wildcards so user input matches literally.
func likePattern(term string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(strings.ToLower(strings.TrimSpace(term))) + "%"
}
