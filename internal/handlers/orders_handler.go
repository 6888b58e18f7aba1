package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-storefront-orders/internal/apperr"
	"github.com/imrishuroy/go-storefront-orders/internal/auth"
	"github.com/imrishuroy/go-storefront-orders/internal/catalog"
	"github.com/imrishuroy/go-storefront-orders/internal/idempotency"
	"github.com/imrishuroy/go-storefront-orders/internal/orders"
	"github.com/imrishuroy/go-storefront-orders/internal/validation"
)

// HeaderIdempotencyKey is the optional request header that makes a create replayable.
const HeaderIdempotencyKey = "Idempotency-Key"

func toAddress(a validation.AddressRequest) orders.Address {
	return orders.Address{
		Name: a.Name, Street: a.Street, City: a.City, State: a.State,
		ZipCode: a.ZipCode, Country: a.Country, Phone: a.Phone,
	}
}

func (h *handler) createOrder(c *gin.Context) {
	ctx := c.Request.Context()

	// Bind + validate request
	var req validation.CreateOrderRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		// BindAndValidate already wrote a 400
		return
	}

	user, _ := auth.CurrentUser(c)
	place := orders.PlaceRequest{
		UserID:          user.ID,
		ShippingAddress: toAddress(req.ShippingAddress),
		PaymentInfo:     orders.PaymentInfo{Method: req.PaymentInfo.Method, TransactionID: req.PaymentInfo.TransactionID},
	}
	if req.BillingAddress != nil {
		billing := toAddress(*req.BillingAddress)
		place.BillingAddress = &billing
	}
	for _, it := range req.Items {
		place.Lines = append(place.Lines, orders.Line{
			ProductID: it.Product,
			Quantity:  it.Quantity,
			Size:      catalog.Size(it.Size),
			Color:     it.Color,
		})
	}
	if key := c.GetHeader(HeaderIdempotencyKey); key != "" && h.idem != nil {
		place.IdempotencyKey = idempotency.ScopedKey(user.ID, key)
	}

	order, err := h.orders.Place(ctx, place)
	if apperr.Is(err, apperr.KindDuplicateRequest) {
		h.replay(c, place.IdempotencyKey)
		return
	}
	if err != nil {
		h.writeError(c, err)
		return
	}

	body := gin.H{"message": "Order created successfully", "order": order}
	if place.IdempotencyKey != "" {
		// store the response so duplicates replay it
		responseBody, _ := json.Marshal(body)
		if err := h.idem.MarkDone(ctx, place.IdempotencyKey, string(responseBody), http.StatusCreated); err != nil {
			h.log.WarnContext(ctx, "mark idempotency done failed",
				slog.String("order_id", order.OrderID), slog.Any("error", err))
		}
	}

	c.Header("Location", fmt.Sprintf("/api/orders/%s", order.OrderID))
	c.JSON(http.StatusCreated, body)
}

// replay answers a request whose idempotency key was already used: the
// stored response when done, 202 while the first attempt is in flight.
func (h *handler) replay(c *gin.Context, key string) {
	rec, err := h.idem.Get(c.Request.Context(), key)
	if err != nil {
		h.writeError(c, apperr.Wrap(apperr.KindStoreUnavailable, err, "Idempotency check failed"))
		return
	}
	if rec == nil {
		h.writeError(c, apperr.New(apperr.KindDuplicateRequest, "Request already processed"))
		return
	}
	switch rec.Status {
	case idempotency.StatusDone:
		if rec.ResponseBody != "" && json.Valid([]byte(rec.ResponseBody)) {
			c.Data(rec.ResponseStatus, "application/json; charset=utf-8", []byte(rec.ResponseBody))
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Request already processed", "orderId": rec.OrderID})
	case idempotency.StatusInProgress:
		body := gin.H{"message": "Request already in progress"}
		if rec.OrderID != "" {
			body["orderId"] = rec.OrderID
		}
		c.JSON(http.StatusAccepted, body)
	default:
		h.writeError(c, apperr.New(apperr.KindDuplicateRequest, "Previous attempt with this key failed; use a new key"))
	}
}

func (h *handler) myOrders(c *gin.Context) {
	page, limit, err := pageParams(c)
	if err != nil {
		h.writeError(c, err)
		return
	}
	user, _ := auth.CurrentUser(c)
	res, err := h.orders.ListMine(c.Request.Context(), user.ID, orders.ListQuery{
		Status: orders.Status(c.Query("status")),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":    "Orders retrieved successfully",
		"orders":     res.Orders,
		"pagination": res.Pagination,
	})
}

func (h *handler) getOrder(c *gin.Context) {
	order, err := h.orders.Get(c.Request.Context(), h.orderActor(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Order retrieved successfully", "order": order})
}

// cancelOrder is the customer route: only the owner may cancel here, admins
// cancel through the status route.
func (h *handler) cancelOrder(c *gin.Context) {
	actor := h.orderActor(c)
	actor.Admin = false
	order, err := h.orders.Cancel(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Order cancelled successfully", "order": order})
}

func (h *handler) updateOrderStatus(c *gin.Context) {
	var req validation.UpdateOrderStatusRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	order, err := h.orders.SetStatus(c.Request.Context(), h.orderActor(c), c.Param("id"), orders.Status(req.Status), req.Note)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Order status updated successfully", "order": order})
}
