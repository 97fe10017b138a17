package product

import "github.com/shopspring/decimal"

// Sort selects the ordering of a product listing.
type Sort string

const (
	SortNewest    Sort = "newest"
	SortPriceAsc  Sort = "price-asc"
	SortPriceDesc Sort = "price-desc"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
	MaxPage      = 1_000_000
)

// Filter selects a page of products. Every field is optional; the zero value
// lists the newest products.
type Filter struct {
	Search   string
	Category string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Sort     Sort
	Page     int
	Limit    int
}

// Normalized returns a copy of f with defaults applied and out-of-range
// paging clamped.
func (f Filter) Normalized() Filter {
	switch {
	case f.Page < 1:
		f.Page = 1
	case f.Page > MaxPage:
		f.Page = MaxPage
	}
	switch {
	case f.Limit < 1:
		f.Limit = DefaultLimit
	case f.Limit > MaxLimit:
		f.Limit = MaxLimit
	}
	switch f.Sort {
	case SortPriceAsc, SortPriceDesc:
	default:
		f.Sort = SortNewest
	}
	if f.Category == "all" {
		f.Category = ""
	}
	return f
}

// Offset returns the number of rows to skip for the current page.
func (f Filter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// Pagination describes the position of a page within a listing.
type Pagination struct {
	Total int
	Pages int
	Page  int
	Limit int
}

// Page is one page of a product listing.
type Page struct {
	Products   []Product
	Pagination Pagination
}
