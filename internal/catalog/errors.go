package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrProductNotFound is returned when no product item exists for the id.
	ErrProductNotFound = errors.New("product not found")
	// ErrSizeNotFound is returned when the product has no entry for the size.
	ErrSizeNotFound = errors.New("size not found")
	// ErrProductInactive is returned when a reservation targets a soft-deleted product.
	ErrProductInactive = errors.New("product inactive")
)

// InsufficientStockError reports a size that cannot cover the requested quantity.
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Size        Size
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	name := e.ProductName
	if name == "" {
		name = e.ProductID
	}
	return fmt.Sprintf("insufficient stock for %s in size %s: requested %d, available %d", name, e.Size, e.Requested, e.Available)
}
