package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-storefront-orders/internal/apperr"
	"github.com/imrishuroy/go-storefront-orders/internal/catalog"
	"github.com/imrishuroy/go-storefront-orders/internal/validation"
)

const featuredLimit = 8

var categories = map[string]bool{
	catalog.CategoryCasual: true, catalog.CategoryFormal: true, catalog.CategoryEvening: true,
	catalog.CategoryWedding: true, catalog.CategoryCustom: true, catalog.CategoryAccessories: true,
}

var sorts = map[string]bool{
	catalog.SortNewest: true, catalog.SortPriceAsc: true, catalog.SortPriceDesc: true,
	catalog.SortNameAsc: true, catalog.SortNameDesc: true,
}

func priceParam(c *gin.Context, name string) (*float64, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return nil, apperr.New(apperr.KindValidation, "%s must be non-negative", name)
	}
	return &v, nil
}

func (h *handler) listProducts(c *gin.Context) {
	page, limit, err := pageParams(c)
	if err != nil {
		h.writeError(c, err)
		return
	}
	f := catalog.ListFilter{
		Category:     c.Query("category"),
		Search:       c.Query("search"),
		Sort:         c.DefaultQuery("sort", catalog.SortNewest),
		FeaturedOnly: c.Query("featured") == "true",
		Page:         page,
		Limit:        limit,
	}
	if f.Category != "" && !categories[f.Category] {
		h.writeError(c, apperr.New(apperr.KindValidation, "Invalid category"))
		return
	}
	if !sorts[f.Sort] {
		h.writeError(c, apperr.New(apperr.KindValidation, "Invalid sort"))
		return
	}
	if f.MinPrice, err = priceParam(c, "minPrice"); err != nil {
		h.writeError(c, err)
		return
	}
	if f.MaxPrice, err = priceParam(c, "maxPrice"); err != nil {
		h.writeError(c, err)
		return
	}

	res, err := h.catalog.List(c.Request.Context(), f)
	if err != nil {
		h.writeError(c, apperr.Wrap(apperr.KindStoreUnavailable, err, "Failed to retrieve products"))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":    "Products retrieved successfully",
		"products":   res.Products,
		"pagination": res.Pagination,
	})
}

func (h *handler) featuredProducts(c *gin.Context) {
	res, err := h.catalog.List(c.Request.Context(), catalog.ListFilter{
		FeaturedOnly: true,
		Sort:         catalog.SortNewest,
		Limit:        featuredLimit,
	})
	if err != nil {
		h.writeError(c, apperr.Wrap(apperr.KindStoreUnavailable, err, "Failed to retrieve featured products"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Featured products retrieved successfully", "products": res.Products})
}

func (h *handler) getProduct(c *gin.Context) {
	p, err := h.catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, apperr.Wrap(apperr.KindStoreUnavailable, err, "Failed to retrieve product"))
		return
	}
	if p == nil || !p.IsActive {
		h.writeError(c, apperr.New(apperr.KindNotFound, "Product not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product retrieved successfully", "product": p})
}

// adjustStock is the admin restock/correction route over the catalog guard.
func (h *handler) adjustStock(c *gin.Context) {
	var req validation.AdjustStockRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	productID := c.Param("id")
	size := catalog.Size(req.Size)

	level, err := h.catalog.AdjustStock(c.Request.Context(), productID, size, req.Delta)
	if err != nil {
		h.writeError(c, stockError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Stock updated successfully",
		"product": productID,
		"size":    size,
		"stock":   level,
	})
}

func stockError(err error) error {
	var ise *catalog.InsufficientStockError
	switch {
	case errors.As(err, &ise):
		return apperr.Wrap(apperr.KindInsufficientStock, err, "Insufficient stock for %s in size %s", ise.ProductName, ise.Size)
	case errors.Is(err, catalog.ErrProductNotFound):
		return apperr.Wrap(apperr.KindNotFound, err, "Product not found")
	case errors.Is(err, catalog.ErrSizeNotFound):
		return apperr.Wrap(apperr.KindNotFound, err, "Size not found for product")
	default:
		return apperr.Wrap(apperr.KindStoreUnavailable, err, "Failed to update stock")
	}
}
