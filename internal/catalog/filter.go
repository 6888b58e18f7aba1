package catalog

import (
	"sort"
	"strings"

	"github.com/imrishuroy/go-storefront-orders/internal/paging"
)

// Sort keys accepted by ListFilter.Sort.
const (
	SortNewest    = "newest"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortNameAsc   = "name_asc"
	SortNameDesc  = "name_desc"
)

// DefaultPageSize is the page size when ListFilter.Limit is unset.
const DefaultPageSize = 12

// ListFilter narrows a product listing. Zero values mean "no constraint".
type ListFilter struct {
	Category     string
	MinPrice     *float64
	MaxPrice     *float64
	Search       string
	FeaturedOnly bool
	Sort         string
	Page         int
	Limit        int
}

// ListResult is one page of products.
type ListResult struct {
	Products   []Product         `json:"products"`
	Pagination paging.Pagination `json:"pagination"`
}

// ApplyFilter filters, sorts and paginates products in memory.
func ApplyFilter(products []Product, f ListFilter) ListResult {
	search := strings.ToLower(strings.TrimSpace(f.Search))

	matched := make([]Product, 0, len(products))
	for _, p := range products {
		if !p.IsActive {
			continue
		}
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if f.FeaturedOnly && !p.Featured {
			continue
		}
		if f.MinPrice != nil && p.Price < *f.MinPrice {
			continue
		}
		if f.MaxPrice != nil && p.Price > *f.MaxPrice {
			continue
		}
		if search != "" && !matchesSearch(p, search) {
			continue
		}
		matched = append(matched, p)
	}

	sortProducts(matched, f.Sort)

	start, end, pagination := paging.Window(len(matched), f.Page, f.Limit, DefaultPageSize)
	return ListResult{Products: matched[start:end], Pagination: pagination}
}

func matchesSearch(p Product, search string) bool {
	if strings.Contains(strings.ToLower(p.Name), search) || strings.Contains(strings.ToLower(p.Description), search) {
		return true
	}
	for _, tag := range p.Tags {
		if strings.Contains(strings.ToLower(tag), search) {
			return true
		}
	}
	return false
}

func sortProducts(items []Product, key string) {
	var less func(i, j int) bool
	switch key {
	case SortPriceAsc:
		less = func(i, j int) bool { return items[i].Price < items[j].Price }
	case SortPriceDesc:
		less = func(i, j int) bool { return items[i].Price > items[j].Price }
	case SortNameAsc:
		less = func(i, j int) bool { return items[i].Name < items[j].Name }
	case SortNameDesc:
		less = func(i, j int) bool { return items[i].Name > items[j].Name }
	default:
		less = func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) }
	}
	sort.SliceStable(items, less)
}
