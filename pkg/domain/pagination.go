package domain

// PaginatedResult is a page of items plus paging metadata.
type PaginatedResult[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"total_pages"`
}

// NewPaginatedResult builds a PaginatedResult.
func NewPaginatedResult[T any](items []T, total int64, page, limit int) PaginatedResult[T] {
	totalPages := 0
	if limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	if items == nil {
		items = []T{}
	}
	return PaginatedResult[T]{
		Items:      items,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}
}

// Paginate slices an in-memory result set. Pages are 1-based.
func Paginate[T any](all []T, page, limit int) PaginatedResult[T] {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = len(all)
	}
	start := (page - 1) * limit
	if start > len(all) {
		start = len(all)
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	window := make([]T, end-start)
	copy(window, all[start:end])
	return NewPaginatedResult(window, int64(len(all)), page, limit)
}
