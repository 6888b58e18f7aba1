package validation

import "time"

// AddressRequest is a shipping or billing address.
type AddressRequest struct {
	Name    string `json:"name" validate:"required"`
	Street  string `json:"street" validate:"required"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state" validate:"required"`
	ZipCode string `json:"zipCode" validate:"required"`
	Country string `json:"country" validate:"required"`
	Phone   string `json:"phone,omitempty"`
}

// OrderItemRequest is a single cart line.
type OrderItemRequest struct {
	Product  string `json:"product" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,min=1"`
	Size     string `json:"size" validate:"required,oneof=XS S M L XL XXL"`
	Color    string `json:"color,omitempty"`
}

// PaymentInfoRequest names the payment method.
type PaymentInfoRequest struct {
	Method        string `json:"method" validate:"required,oneof=credit_card debit_card paypal bank_transfer cash_on_delivery"`
	TransactionID string `json:"transactionId,omitempty"`
}

// CreateOrderRequest is the payload for POST /api/orders. Prices are never
// accepted from the client.
type CreateOrderRequest struct {
	Items           []OrderItemRequest `json:"items" validate:"required,min=1,max=50,dive"`
	ShippingAddress AddressRequest     `json:"shippingAddress"`
	BillingAddress  *AddressRequest    `json:"billingAddress,omitempty" validate:"omitempty"`
	PaymentInfo     PaymentInfoRequest `json:"paymentInfo"`
}

// UpdateOrderStatusRequest is the payload for PUT /api/orders/:id/status.
type UpdateOrderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending confirmed processing shipped delivered cancelled returned"`
	Note   string `json:"note,omitempty" validate:"max=500"`
}

// AdjustStockRequest is the payload for POST /api/admin/products/:id/stock.
type AdjustStockRequest struct {
	Size  string `json:"size" validate:"required,oneof=XS S M L XL XXL"`
	Delta int    `json:"delta" validate:"required,ne=0"`
}

type ContactInfoRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"required"`
}

type DressDetailsRequest struct {
	Type                string   `json:"type" validate:"required,oneof=wedding evening casual formal party other"`
	Occasion            string   `json:"occasion,omitempty"`
	PreferredStyle      string   `json:"preferredStyle,omitempty"`
	Description         string   `json:"description" validate:"required,min=10,max=1000"`
	Colors              []string `json:"colors,omitempty"`
	Materials           []string `json:"materials,omitempty"`
	SpecialRequirements string   `json:"specialRequirements,omitempty"`
}

type MeasurementRequest struct {
	Name  string  `json:"name" validate:"required"`
	Value float64 `json:"value" validate:"gt=0"`
	Unit  string  `json:"unit,omitempty" validate:"omitempty,oneof=cm inches"`
}

type MeasurementsRequest struct {
	Bust          float64              `json:"bust,omitempty" validate:"gte=0"`
	Waist         float64              `json:"waist,omitempty" validate:"gte=0"`
	Hips          float64              `json:"hips,omitempty" validate:"gte=0"`
	Height        float64              `json:"height,omitempty" validate:"gte=0"`
	ShoulderWidth float64              `json:"shoulderWidth,omitempty" validate:"gte=0"`
	ArmLength     float64              `json:"armLength,omitempty" validate:"gte=0"`
	DressLength   float64              `json:"dressLength,omitempty" validate:"gte=0"`
	Additional    []MeasurementRequest `json:"additionalMeasurements,omitempty" validate:"omitempty,dive"`
}

type BudgetRequest struct {
	Min      float64 `json:"min,omitempty" validate:"gte=0"`
	Max      float64 `json:"max,omitempty" validate:"gte=0"`
	Currency string  `json:"currency,omitempty"`
}

type TimelineRequest struct {
	PreferredDate *time.Time `json:"preferredDate,omitempty"`
	IsFlexible    *bool      `json:"isFlexible,omitempty"`
	Urgency       string     `json:"urgency,omitempty" validate:"omitempty,oneof=low medium high urgent"`
}

// CreateCustomRequest is the payload for POST /api/custom-requests.
type CreateCustomRequest struct {
	ContactInfo  ContactInfoRequest  `json:"contactInfo"`
	DressDetails DressDetailsRequest `json:"dressDetails"`
	Measurements MeasurementsRequest `json:"measurements"`
	Budget       BudgetRequest       `json:"budget"`
	Timeline     TimelineRequest     `json:"timeline"`
	Tags         []string            `json:"tags,omitempty"`
}

// AddCommunicationRequest is the payload for POST /api/custom-requests/:id/communications.
type AddCommunicationRequest struct {
	Message string `json:"message" validate:"required,max=1000"`
}

type QuoteLineRequest struct {
	Item string  `json:"item" validate:"required"`
	Cost float64 `json:"cost" validate:"gte=0"`
}

type QuoteRequest struct {
	Amount    float64            `json:"amount" validate:"gte=0"`
	Currency  string             `json:"currency,omitempty"`
	Breakdown []QuoteLineRequest `json:"breakdown,omitempty" validate:"omitempty,dive"`
}

type AdminResponseRequest struct {
	Quote               *QuoteRequest `json:"quote,omitempty" validate:"omitempty"`
	EstimatedCompletion *time.Time    `json:"estimatedCompletion,omitempty"`
	Notes               string        `json:"notes,omitempty" validate:"max=1000"`
}

// UpdateCustomRequestStatusRequest is the payload for PUT /api/custom-requests/:id/status.
type UpdateCustomRequestStatusRequest struct {
	Status        string                `json:"status" validate:"required,oneof=submitted reviewing quoted approved in_progress completed cancelled"`
	AdminResponse *AdminResponseRequest `json:"adminResponse,omitempty" validate:"omitempty"`
}
