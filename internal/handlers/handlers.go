package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/go-storefront-orders/internal/apperr"
	"github.com/imrishuroy/go-storefront-orders/internal/auth"
	"github.com/imrishuroy/go-storefront-orders/internal/catalog"
	"github.com/imrishuroy/go-storefront-orders/internal/customrequests"
	"github.com/imrishuroy/go-storefront-orders/internal/idempotency"
	"github.com/imrishuroy/go-storefront-orders/internal/logging"
	"github.com/imrishuroy/go-storefront-orders/internal/orders"
	"github.com/imrishuroy/go-storefront-orders/internal/validation"
)

// OrderService is the order workflow surface used by the HTTP layer.
type OrderService interface {
	Place(ctx context.Context, req orders.PlaceRequest) (*orders.Order, error)
	Cancel(ctx context.Context, actor orders.Actor, orderID string) (*orders.Order, error)
	SetStatus(ctx context.Context, actor orders.Actor, orderID string, status orders.Status, note string) (*orders.Order, error)
	Get(ctx context.Context, actor orders.Actor, orderID string) (*orders.Order, error)
	ListMine(ctx context.Context, userID string, q orders.ListQuery) (orders.ListResult, error)
}

// CatalogService is the product catalog surface used by the HTTP layer.
type CatalogService interface {
	List(ctx context.Context, f catalog.ListFilter) (catalog.ListResult, error)
	Get(ctx context.Context, productID string) (*catalog.Product, error)
	AdjustStock(ctx context.Context, productID string, size catalog.Size, delta int) (int, error)
}

// CustomRequestService is the custom request surface used by the HTTP layer.
type CustomRequestService interface {
	Submit(ctx context.Context, userID string, r customrequests.Request) (*customrequests.Request, error)
	ListMine(ctx context.Context, userID string, status customrequests.Status, page, limit int) (customrequests.ListResult, error)
	Get(ctx context.Context, actor customrequests.Actor, id string) (*customrequests.Request, error)
	AddCommunication(ctx context.Context, actor customrequests.Actor, id, message string) (*customrequests.Communication, error)
	SetStatus(ctx context.Context, actor customrequests.Actor, id string, status customrequests.Status, resp *customrequests.AdminResponse) (*customrequests.Request, error)
}

// IdempotencyStore records responses for replay under an Idempotency-Key.
type IdempotencyStore interface {
	CreateIfNotExists(ctx context.Context, key, orderID string) (bool, error)
	Get(ctx context.Context, key string) (*idempotency.IdempotencyRecord, error)
	MarkDone(ctx context.Context, key, responseBody string, responseStatus int) error
	MarkFailed(ctx context.Context, key, note string) error
	Reclaim(ctx context.Context, key string) (bool, error)
}

// HandlerConfig groups dependencies for the API handlers.
type HandlerConfig struct {
	Orders         OrderService
	Catalog        CatalogService
	CustomRequests CustomRequestService
	Idempotency    IdempotencyStore
	Auth           *auth.Verifier
	Logger         *slog.Logger
}

type handler struct {
	orders   OrderService
	catalog  CatalogService
	requests CustomRequestService
	idem     IdempotencyStore
	validate *validatorv10.Validate
	log      *slog.Logger
}

// RegisterRoutes registers every /api route on r.
func RegisterRoutes(r *gin.Engine, cfg HandlerConfig) {
	h := &handler{
		orders:   cfg.Orders,
		catalog:  cfg.Catalog,
		requests: cfg.CustomRequests,
		idem:     cfg.Idempotency,
		validate: validation.New(),
		log:      logging.OrDefault(cfg.Logger),
	}
	requireAuth := cfg.Auth.RequireAuth()

	api := r.Group("/api")

	products := api.Group("/products")
	products.GET("", h.listProducts)
	products.GET("/featured", h.featuredProducts)
	products.GET("/:id", h.getProduct)

	ord := api.Group("/orders", requireAuth)
	ord.POST("", h.createOrder)
	ord.GET("/my-orders", h.myOrders)
	ord.GET("/:id", h.getOrder)
	ord.PUT("/:id/cancel", h.cancelOrder)
	ord.PUT("/:id/status", auth.RequireAdmin(), h.updateOrderStatus)

	admin := api.Group("/admin", requireAuth, auth.RequireAdmin())
	admin.POST("/products/:id/stock", h.adjustStock)

	cr := api.Group("/custom-requests")
	cr.POST("", cfg.Auth.OptionalAuth(), h.createCustomRequest)
	cr.GET("/my-requests", requireAuth, h.myCustomRequests)
	cr.GET("/:id", requireAuth, h.getCustomRequest)
	cr.POST("/:id/communications", requireAuth, h.addCommunication)
	cr.PUT("/:id/status", requireAuth, auth.RequireAdmin(), h.updateCustomRequestStatus)
}

// writeError renders err in the {message, error} envelope. Causes are logged,
// never sent to the caller.
func (h *handler) writeError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	message := "Internal server error"
	var e *apperr.Error
	if errors.As(err, &e) {
		message = e.Message
	}

	attrs := []any{
		slog.String("path", c.FullPath()),
		slog.String("kind", string(kind)),
		slog.Any("error", err),
	}
	if status >= http.StatusInternalServerError {
		h.log.ErrorContext(c.Request.Context(), "request failed", attrs...)
	} else {
		h.log.DebugContext(c.Request.Context(), "request rejected", attrs...)
	}
	c.JSON(status, gin.H{"message": message, "error": string(kind)})
}

func (h *handler) orderActor(c *gin.Context) orders.Actor {
	u, _ := auth.CurrentUser(c)
	return orders.Actor{UserID: u.ID, Admin: u.IsAdmin()}
}

func (h *handler) requestActor(c *gin.Context) customrequests.Actor {
	u, _ := auth.CurrentUser(c)
	return customrequests.Actor{UserID: u.ID, Admin: u.IsAdmin()}
}

// pageParams reads page and limit; limit must be 1..50 when present.
func pageParams(c *gin.Context) (page, limit int, err error) {
	page, limit = 1, 0
	if raw := c.Query("page"); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, apperr.New(apperr.KindValidation, "Page must be a positive integer")
		}
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > 50 {
			return 0, 0, apperr.New(apperr.KindValidation, "Limit must be between 1 and 50")
		}
	}
	return page, limit, nil
}
