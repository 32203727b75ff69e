package utils

import "math"

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

// PaginationParams holds pagination request parameters
type PaginationParams struct {
	Page  int `form:"page"`
	Limit int `form:"limit"`
}

// PaginationMeta holds pagination response metadata
type PaginationMeta struct {
	Page     int   `json:"page"`
	Limit    int   `json:"limit"`
	Total    int64 `json:"total"`
	Pages    int   `json:"pages"`
	HasMore  bool  `json:"hasMore"`
	NextPage *int  `json:"nextPage,omitempty"`
	PrevPage *int  `json:"prevPage,omitempty"`
}

// GetPaginationParams clamps page and limit: page >= 1, limit in [1, 200].
func GetPaginationParams(page, limit int) PaginationParams {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return PaginationParams{
		Page:  page,
		Limit: limit,
	}
}

// CalculateOffset returns the SQL offset
func (p PaginationParams) CalculateOffset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// CalculateMeta generates pagination metadata
func CalculateMeta(total int64, page, limit int) PaginationMeta {
	pages := int(math.Ceil(float64(total) / float64(limit)))
	if pages < 0 {
		pages = 0
	}

	meta := PaginationMeta{
		Page:    page,
		Limit:   limit,
		Total:   total,
		Pages:   pages,
		HasMore: page < pages,
	}
	if meta.HasMore {
		next := page + 1
		meta.NextPage = &next
	}
	if page > 1 {
		prev := page - 1
		meta.PrevPage = &prev
	}
	return meta
}
