package customrequests

import (
	"math"
	"time"
)

// Status is the lifecycle state of a custom request.
type Status string

const (
	StatusSubmitted  Status = "submitted"
	StatusReviewing  Status = "reviewing"
	StatusQuoted     Status = "quoted"
	StatusApproved   Status = "approved"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Statuses lists every accepted status.
var Statuses = []Status{
	StatusSubmitted, StatusReviewing, StatusQuoted, StatusApproved,
	StatusInProgress, StatusCompleted, StatusCancelled,
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

// Dress types
const (
	DressWedding = "wedding"
	DressEvening = "evening"
	DressCasual  = "casual"
	DressFormal  = "formal"
	DressParty   = "party"
	DressOther   = "other"
)

// Communication senders
const (
	FromCustomer = "customer"
	FromAdmin    = "admin"
)

const (
	defaultCurrency = "USD"
	defaultUrgency  = "medium"
	defaultPriority = "medium"
)

type ContactInfo struct {
	Name  string `dynamodbav:"name" json:"name"`
	Email string `dynamodbav:"email" json:"email"`
	Phone string `dynamodbav:"phone" json:"phone"`
}

type DressDetails struct {
	Type                string   `dynamodbav:"type" json:"type"`
	Occasion            string   `dynamodbav:"occasion,omitempty" json:"occasion,omitempty"`
	PreferredStyle      string   `dynamodbav:"preferred_style,omitempty" json:"preferredStyle,omitempty"`
	Description         string   `dynamodbav:"description" json:"description"`
	Colors              []string `dynamodbav:"colors,omitempty" json:"colors,omitempty"`
	Materials           []string `dynamodbav:"materials,omitempty" json:"materials,omitempty"`
	SpecialRequirements string   `dynamodbav:"special_requirements,omitempty" json:"specialRequirements,omitempty"`
}

// Measurement is a free-form named measurement.
type Measurement struct {
	Name  string  `dynamodbav:"name" json:"name"`
	Value float64 `dynamodbav:"value" json:"value"`
	Unit  string  `dynamodbav:"unit" json:"unit"` // cm or inches
}

type Measurements struct {
	Bust          float64       `dynamodbav:"bust,omitempty" json:"bust,omitempty"`
	Waist         float64       `dynamodbav:"waist,omitempty" json:"waist,omitempty"`
	Hips          float64       `dynamodbav:"hips,omitempty" json:"hips,omitempty"`
	Height        float64       `dynamodbav:"height,omitempty" json:"height,omitempty"`
	ShoulderWidth float64       `dynamodbav:"shoulder_width,omitempty" json:"shoulderWidth,omitempty"`
	ArmLength     float64       `dynamodbav:"arm_length,omitempty" json:"armLength,omitempty"`
	DressLength   float64       `dynamodbav:"dress_length,omitempty" json:"dressLength,omitempty"`
	Additional    []Measurement `dynamodbav:"additional,omitempty" json:"additionalMeasurements,omitempty"`
}

type Budget struct {
	Min      float64 `dynamodbav:"min,omitempty" json:"min,omitempty"`
	Max      float64 `dynamodbav:"max,omitempty" json:"max,omitempty"`
	Currency string  `dynamodbav:"currency" json:"currency"`
}

type Timeline struct {
	PreferredDate *time.Time `dynamodbav:"preferred_date,omitempty" json:"preferredDate,omitempty"`
	IsFlexible    bool       `dynamodbav:"is_flexible" json:"isFlexible"`
	Urgency       string     `dynamodbav:"urgency" json:"urgency"` // low, medium, high, urgent
}

type QuoteLine struct {
	Item string  `dynamodbav:"item" json:"item"`
	Cost float64 `dynamodbav:"cost" json:"cost"`
}

type Quote struct {
	Amount    float64     `dynamodbav:"amount" json:"amount"`
	Currency  string      `dynamodbav:"currency" json:"currency"`
	Breakdown []QuoteLine `dynamodbav:"breakdown,omitempty" json:"breakdown,omitempty"`
}

// AdminResponse is the shop's answer to a request. Updates are merged field
// by field into the stored response.
type AdminResponse struct {
	Quote               *Quote     `dynamodbav:"quote,omitempty" json:"quote,omitempty"`
	EstimatedCompletion *time.Time `dynamodbav:"estimated_completion,omitempty" json:"estimatedCompletion,omitempty"`
	Notes               string     `dynamodbav:"notes,omitempty" json:"notes,omitempty"`
	RespondedBy         string     `dynamodbav:"responded_by,omitempty" json:"respondedBy,omitempty"`
	RespondedAt         *time.Time `dynamodbav:"responded_at,omitempty" json:"respondedAt,omitempty"`
}

// merge overlays the non-zero fields of upd onto r.
func (r AdminResponse) merge(upd AdminResponse) AdminResponse {
	if upd.Quote != nil {
		q := *upd.Quote
		if q.Currency == "" {
			q.Currency = defaultCurrency
		}
		r.Quote = &q
	}
	if upd.EstimatedCompletion != nil {
		r.EstimatedCompletion = upd.EstimatedCompletion
	}
	if upd.Notes != "" {
		r.Notes = upd.Notes
	}
	return r
}

type Communication struct {
	From      string    `dynamodbav:"from" json:"from"`
	Message   string    `dynamodbav:"message" json:"message"`
	Timestamp time.Time `dynamodbav:"timestamp" json:"timestamp"`
}

// Request is the item stored in the custom requests table.
type Request struct {
	RequestID      string          `dynamodbav:"request_id" json:"id"` // PK
	RequestNumber  string          `dynamodbav:"request_number" json:"requestNumber"`
	UserID         string          `dynamodbav:"user_id,omitempty" json:"user,omitempty"` // sparse GSI hash key
	ContactInfo    ContactInfo     `dynamodbav:"contact_info" json:"contactInfo"`
	DressDetails   DressDetails    `dynamodbav:"dress_details" json:"dressDetails"`
	Measurements   Measurements    `dynamodbav:"measurements" json:"measurements"`
	Budget         Budget          `dynamodbav:"budget" json:"budget"`
	Timeline       Timeline        `dynamodbav:"timeline" json:"timeline"`
	Status         Status          `dynamodbav:"status" json:"status"`
	AdminResponse  *AdminResponse  `dynamodbav:"admin_response,omitempty" json:"adminResponse,omitempty"`
	Communications []Communication `dynamodbav:"communications" json:"communications"`
	Priority       string          `dynamodbav:"priority" json:"priority"`
	Tags           []string        `dynamodbav:"tags,omitempty" json:"tags,omitempty"`
	CreatedAt      time.Time       `dynamodbav:"created_at" json:"createdAt"` // GSI range key
	UpdatedAt      time.Time       `dynamodbav:"updated_at" json:"updatedAt"`
}

// DaysSinceSubmission counts started days since the request was created.
func (r *Request) DaysSinceSubmission(now time.Time) int {
	return int(math.Ceil(math.Abs(now.Sub(r.CreatedAt).Hours()) / 24))
}

// IsOverdue reports whether the preferred date has passed on an unfinished request.
func (r *Request) IsOverdue(now time.Time) bool {
	if r.Timeline.PreferredDate == nil {
		return false
	}
	return now.After(*r.Timeline.PreferredDate) && r.Status != StatusCompleted
}

// Actor is the caller of a custom request operation.
type Actor struct {
	UserID string
	Admin  bool
}
