// Package pagination normalizes offset-based page requests shared by list
// endpoints.
package pagination

import "fmt"

// PageSizeConfig configures page size normalization.
type PageSizeConfig struct {
	Default int
	Max     int
}

// DefaultPageSize is the feed page size used when callers omit one.
const DefaultPageSize = 20

// MaxPageSize caps any requested page size.
const MaxPageSize = 100

// DefaultConfig is the page size policy shared by list endpoints.
var DefaultConfig = PageSizeConfig{Default: DefaultPageSize, Max: MaxPageSize}

// Request is a normalized 1-based page request.
type Request struct {
	Page int
	Size int
}

// ClampPageSize applies defaults and limits for page sizes.
func ClampPageSize(value int, cfg PageSizeConfig) int {
	pageSize := value
	if pageSize <= 0 {
		pageSize = cfg.Default
	}
	if cfg.Max > 0 && pageSize > cfg.Max {
		pageSize = cfg.Max
	}
	if pageSize <= 0 {
		pageSize = 1
	}
	return pageSize
}

// Normalize validates the page number and clamps the page size.
// A zero page means the first page; negative pages are rejected.
func Normalize(page, size int, cfg PageSizeConfig) (Request, error) {
	if page < 0 {
		return Request{}, fmt.Errorf("invalid page: %d", page)
	}
	if page == 0 {
		page = 1
	}
	if size < 0 {
		return Request{}, fmt.Errorf("invalid page size: %d", size)
	}
	return Request{Page: page, Size: ClampPageSize(size, cfg)}, nil
}

// Offset returns the number of rows to skip for this page.
func (r Request) Offset() int {
	if r.Page <= 1 || r.Size <= 0 {
		return 0
	}
	return (r.Page - 1) * r.Size
}

// TotalPages returns ceil(total/size), or zero when there is nothing to page.
func TotalPages(total, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return (total + size - 1) / size
}
