package orders

import (
	"time"

	"github.com/imrishuroy/go-storefront-orders/internal/catalog"
	"github.com/imrishuroy/go-storefront-orders/internal/paging"
)

// Status is the lifecycle state of an order.
type Status string

// Order statuses
const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusReturned   Status = "returned"
)

// Statuses lists every accepted status.
var Statuses = []Status{
	StatusPending, StatusConfirmed, StatusProcessing, StatusShipped,
	StatusDelivered, StatusCancelled, StatusReturned,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Cancellable reports whether an order in s may still be cancelled.
func (s Status) Cancellable() bool {
	switch s {
	case StatusShipped, StatusDelivered, StatusCancelled:
		return false
	}
	return s.Valid()
}

// Payment methods
const (
	PaymentCreditCard     = "credit_card"
	PaymentDebitCard      = "debit_card"
	PaymentPayPal         = "paypal"
	PaymentBankTransfer   = "bank_transfer"
	PaymentCashOnDelivery = "cash_on_delivery"
)

// Address is a shipping or billing snapshot taken at order time.
type Address struct {
	Name    string `dynamodbav:"name" json:"name"`
	Street  string `dynamodbav:"street" json:"street"`
	City    string `dynamodbav:"city" json:"city"`
	State   string `dynamodbav:"state" json:"state"`
	ZipCode string `dynamodbav:"zip_code" json:"zipCode"`
	Country string `dynamodbav:"country" json:"country"`
	Phone   string `dynamodbav:"phone,omitempty" json:"phone,omitempty"`
}

// PaymentInfo records how the customer intends to pay.
type PaymentInfo struct {
	Method        string `dynamodbav:"method" json:"method"`
	TransactionID string `dynamodbav:"transaction_id,omitempty" json:"transactionId,omitempty"`
}

// Item is one ordered line. Price is the unit price captured at order time
// and never re-read from the catalog.
type Item struct {
	ProductID string       `dynamodbav:"product_id" json:"product"`
	Name      string       `dynamodbav:"name" json:"name"`
	Quantity  int          `dynamodbav:"quantity" json:"quantity"`
	Size      catalog.Size `dynamodbav:"size" json:"size"`
	Color     string       `dynamodbav:"color,omitempty" json:"color,omitempty"`
	Price     float64      `dynamodbav:"price" json:"price"`
}

// Pricing is the computed price breakdown.
type Pricing struct {
	Subtotal float64 `dynamodbav:"subtotal" json:"subtotal"`
	Tax      float64 `dynamodbav:"tax" json:"tax"`
	Shipping float64 `dynamodbav:"shipping" json:"shipping"`
	Total    float64 `dynamodbav:"total" json:"total"`
}

// Order represents the item stored in the orders table.
type Order struct {
	OrderID         string      `dynamodbav:"order_id" json:"id"` // PK
	OrderNumber     string      `dynamodbav:"order_number,omitempty" json:"orderNumber,omitempty"`
	UserID          string      `dynamodbav:"user_id" json:"user"` // GSI hash key
	Items           []Item      `dynamodbav:"items" json:"items"`
	ShippingAddress Address     `dynamodbav:"shipping_address" json:"shippingAddress"`
	BillingAddress  Address     `dynamodbav:"billing_address" json:"billingAddress"`
	PaymentInfo     PaymentInfo `dynamodbav:"payment_info" json:"paymentInfo"`
	Pricing         Pricing     `dynamodbav:"pricing" json:"pricing"`
	Status          Status      `dynamodbav:"status" json:"status"`
	Notes           string      `dynamodbav:"notes,omitempty" json:"notes,omitempty"`
	CancelledAt     *time.Time  `dynamodbav:"cancelled_at,omitempty" json:"cancelledAt,omitempty"`
	CreatedAt       time.Time   `dynamodbav:"created_at" json:"createdAt"` // GSI range key
	UpdatedAt       time.Time   `dynamodbav:"updated_at" json:"updatedAt"`
}

// Line is one cart entry as submitted by the client.
type Line struct {
	ProductID string
	Quantity  int
	Size      catalog.Size
	Color     string
}

// PlaceRequest is everything needed to place an order.
type PlaceRequest struct {
	UserID          string
	Lines           []Line
	ShippingAddress Address
	BillingAddress  *Address
	PaymentInfo     PaymentInfo
	// IdempotencyKey, when set, is claimed in the same transaction as the order.
	IdempotencyKey string
}

// Reservation is the stock taken from one product, merged across lines.
type Reservation struct {
	ProductID  string
	Quantities map[catalog.Size]int
}

// Actor is the authenticated caller of a workflow.
type Actor struct {
	UserID string
	Admin  bool
}

// ListQuery selects a page of a user's orders.
type ListQuery struct {
	Status Status
	Page   int
	Limit  int
}

// ListResult is one page of orders, newest first.
type ListResult struct {
	Orders     []Order           `json:"orders"`
	Pagination paging.Pagination `json:"pagination"`
}

// CancelResult is the outcome of a committed cancellation. Unreconciled
// holds reservations that could not be restored because the product item
// no longer exists.
type CancelResult struct {
	Order        *Order
	Unreconciled []Reservation
}

// reservationsFor merges order items into one reservation per product,
// keeping the order in which products first appear.
func reservationsFor(items []Item) []Reservation {
	index := map[string]int{}
	var out []Reservation
	for _, it := range items {
		i, ok := index[it.ProductID]
		if !ok {
			i = len(out)
			index[it.ProductID] = i
			out = append(out, Reservation{ProductID: it.ProductID, Quantities: map[catalog.Size]int{}})
		}
		out[i].Quantities[it.Size] += it.Quantity
	}
	return out
}
