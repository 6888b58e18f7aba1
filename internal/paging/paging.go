package paging

import "math"

const (
	DefaultLimit = 10
	MaxLimit     = 50
)

// Pagination describes where a page sits in the full result.
type Pagination struct {
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	Total       int  `json:"total"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
}

// Window clamps page and limit, then returns the [start, end) slice bounds
// for a result of size total together with its Pagination.
func Window(total, page, limit, defaultLimit int) (int, int, Pagination) {
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if page <= 0 {
		page = 1
	}

	totalPages := int(math.Ceil(float64(total) / float64(limit)))
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return start, end, Pagination{
		CurrentPage: page,
		TotalPages:  totalPages,
		Total:       total,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1,
	}
}
