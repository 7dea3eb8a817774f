package app

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// Paging is a normalized page request.
type Paging struct {
	Page    int
	PerPage int
	Offset  int
	Limit   int
}

// Pagination is the page envelope returned with listings.
type Pagination struct {
	Page       int  `json:"page"`
	PerPage    int  `json:"perPage"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
	Count      int  `json:"count"`
}

// ResolvePaging normalizes page and perPage; zero or negative values fall back to defaults.
func ResolvePaging(page, perPage int) Paging {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return Paging{
		Page:    page,
		PerPage: perPage,
		Offset:  (page - 1) * perPage,
		Limit:   perPage,
	}
}

// BuildPagination fills the envelope for a page holding count of total items.
func BuildPagination(total int, p Paging, count int) Pagination {
	perPage := p.PerPage
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	totalPages := (total + perPage - 1) / perPage
	if totalPages == 0 {
		totalPages = 1
	}
	return Pagination{
		Page:       p.Page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    p.Page < totalPages,
		HasPrev:    p.Page > 1,
		Count:      count,
	}
}
