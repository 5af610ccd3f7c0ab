// Package service holds the storefront use cases. Services orchestrate the
// storer interfaces and translate store failures into domain errors that the
// transport layers can show to visitors.
package service

import (
	"context"
)

// Cache is a cache-aside store for read-mostly aggregates.
type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
}

// DefaultPageSize is the number of products per listing page.
const DefaultPageSize = 12

// ProductPage is one page of a product listing.
type ProductPage struct {
	Products    []ProductCard `json:"products"`
	Page        int           `json:"page"`
	PageSize    int           `json:"page_size"`
	TotalPages  int           `json:"total_pages"`
	TotalCount  int           `json:"total_count"`
	HasNext     bool          `json:"has_next"`
	HasPrevious bool          `json:"has_previous"`
}

func newProductPage(products []ProductCard, page, pageSize, total int) *ProductPage {
	pages := totalPages(total, pageSize)
	return &ProductPage{
		Products:    products,
		Page:        page,
		PageSize:    pageSize,
		TotalPages:  pages,
		TotalCount:  total,
		HasNext:     page < pages,
		HasPrevious: page > 1,
	}
}

func totalPages(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 1
	}
	return (total + pageSize - 1) / pageSize
}
