package customrequests

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/imrishuroy/go-storefront-orders/internal/apperr"
	"github.com/imrishuroy/go-storefront-orders/internal/logging"
	"github.com/imrishuroy/go-storefront-orders/internal/paging"
	"github.com/imrishuroy/go-storefront-orders/internal/sequence"
)

const (
	requestNumberWidth = 4
	minDescription     = 10
	maxDescription     = 1000
	maxMessage         = 1000
	maxNotes           = 1000
)

// Repository persists custom requests.
type Repository interface {
	Create(ctx context.Context, r Request) error
	Get(ctx context.Context, id string) (*Request, error)
	ListByUser(ctx context.Context, userID string, status Status, page, limit int) (ListResult, error)
	AddCommunication(ctx context.Context, id string, c Communication) (*Request, error)
	UpdateStatus(ctx context.Context, id string, expected, next Status, resp *AdminResponse, notes []Communication) (*Request, error)
}

// NumberSource hands out per-key sequence numbers.
type NumberSource interface {
	Next(ctx context.Context, key string) (int64, error)
}

// Service handles custom tailoring requests.
type Service struct {
	repo    Repository
	numbers NumberSource
	log     *slog.Logger
	nowFunc func() time.Time
}

// NewService wires a Service. logger may be nil.
func NewService(repo Repository, numbers NumberSource, logger *slog.Logger) *Service {
	return &Service{repo: repo, numbers: numbers, log: logging.OrDefault(logger), nowFunc: time.Now}
}

// Submit stores a new request with status submitted. userID is empty for
// guest submissions.
func (s *Service) Submit(ctx context.Context, userID string, r Request) (*Request, error) {
	if err := validateSubmission(r); err != nil {
		return nil, err
	}

	now := s.nowFunc().UTC()
	key := sequence.PeriodKey("CR", now)
	seq, err := s.numbers.Next(ctx, key)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, err, "Failed to allocate request number")
	}

	r.RequestID = uuid.NewString()
	r.RequestNumber = sequence.Number(key, seq, requestNumberWidth)
	r.UserID = userID
	r.Status = StatusSubmitted
	r.AdminResponse = nil
	r.Communications = []Communication{}
	r.CreatedAt = now
	r.UpdatedAt = now
	if r.Budget.Currency == "" {
		r.Budget.Currency = defaultCurrency
	}
	if r.Timeline.Urgency == "" {
		r.Timeline.Urgency = defaultUrgency
	}
	if r.Priority == "" {
		r.Priority = defaultPriority
	}
	for i := range r.Measurements.Additional {
		if r.Measurements.Additional[i].Unit == "" {
			r.Measurements.Additional[i].Unit = "cm"
		}
	}

	if err := s.repo.Create(ctx, r); err != nil {
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, err, "Failed to submit custom request")
	}
	s.log.InfoContext(ctx, "custom request submitted",
		slog.String("request_id", r.RequestID),
		slog.String("request_number", r.RequestNumber),
		slog.Bool("guest", userID == ""),
	)
	return &r, nil
}

func validateSubmission(r Request) error {
	if strings.TrimSpace(r.ContactInfo.Name) == "" || strings.TrimSpace(r.ContactInfo.Phone) == "" || !strings.Contains(r.ContactInfo.Email, "@") {
		return apperr.New(apperr.KindValidation, "Name, valid email and phone are required")
	}
	switch r.DressDetails.Type {
	case DressWedding, DressEvening, DressCasual, DressFormal, DressParty, DressOther:
	default:
		return apperr.New(apperr.KindValidation, "Valid dress type is required")
	}
	n := utf8.RuneCountInString(strings.TrimSpace(r.DressDetails.Description))
	if n < minDescription || n > maxDescription {
		return apperr.New(apperr.KindValidation, "Description must be between %d and %d characters", minDescription, maxDescription)
	}
	if r.Budget.Min < 0 || r.Budget.Max < 0 {
		return apperr.New(apperr.KindValidation, "Budget cannot be negative")
	}
	return nil
}

// ListMine returns a page of userID's requests.
func (s *Service) ListMine(ctx context.Context, userID string, status Status, page, limit int) (ListResult, error) {
	if status != "" && !status.Valid() {
		return ListResult{}, apperr.New(apperr.KindValidation, "Invalid status %q", status)
	}
	if limit > paging.MaxLimit {
		limit = paging.MaxLimit
	}
	res, err := s.repo.ListByUser(ctx, userID, status, page, limit)
	if err != nil {
		return ListResult{}, apperr.Wrap(apperr.KindStoreUnavailable, err, "Failed to retrieve custom requests")
	}
	return res, nil
}

// Get returns a request visible to actor. Guest requests are visible to
// admins only.
func (s *Service) Get(ctx context.Context, actor Actor, id string) (*Request, error) {
	r, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, err, "Failed to retrieve custom request")
	}
	if r == nil {
		return nil, apperr.New(apperr.KindNotFound, "Custom request not found")
	}
	if !actor.Admin && (r.UserID == "" || r.UserID != actor.UserID) {
		return nil, apperr.New(apperr.KindForbidden, "Access denied")
	}
	return r, nil
}

// AddCommunication appends a message to the thread. The sender is recorded
// as admin or customer from the actor's role.
func (s *Service) AddCommunication(ctx context.Context, actor Actor, id, message string) (*Communication, error) {
	message = strings.TrimSpace(message)
	if n := utf8.RuneCountInString(message); n < 1 || n > maxMessage {
		return nil, apperr.New(apperr.KindValidation, "Message must be between 1 and %d characters", maxMessage)
	}
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}

	c := Communication{From: FromCustomer, Message: message, Timestamp: s.nowFunc().UTC()}
	if actor.Admin {
		c.From = FromAdmin
	}
	updated, err := s.repo.AddCommunication(ctx, id, c)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.New(apperr.KindNotFound, "Custom request not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, err, "Failed to add communication")
	}
	if n := len(updated.Communications); n > 0 {
		last := updated.Communications[n-1]
		return &last, nil
	}
	return &c, nil
}

// SetStatus is the admin status update. A changed status appends a
// "Status updated to: X" communication; resp is merged into the stored
// admin response and stamped with the responder.
func (s *Service) SetStatus(ctx context.Context, actor Actor, id string, status Status, resp *AdminResponse) (*Request, error) {
	if !actor.Admin {
		return nil, apperr.New(apperr.KindForbidden, "Admin access required")
	}
	if !status.Valid() {
		return nil, apperr.New(apperr.KindValidation, "Valid status is required")
	}
	if resp != nil && utf8.RuneCountInString(resp.Notes) > maxNotes {
		return nil, apperr.New(apperr.KindValidation, "Notes must be less than %d characters", maxNotes)
	}

	cur, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	now := s.nowFunc().UTC()
	var merged *AdminResponse
	if resp != nil {
		base := AdminResponse{}
		if cur.AdminResponse != nil {
			base = *cur.AdminResponse
		}
		m := base.merge(*resp)
		m.RespondedBy = actor.UserID
		m.RespondedAt = &now
		merged = &m
	}
	var notes []Communication
	if cur.Status != status {
		notes = append(notes, Communication{
			From:      FromAdmin,
			Message:   fmt.Sprintf("Status updated to: %s", status),
			Timestamp: now,
		})
	}

	updated, err := s.repo.UpdateStatus(ctx, id, cur.Status, status, merged, notes)
	if errors.Is(err, ErrStatusMismatch) {
		return nil, apperr.New(apperr.KindInvalidTransition, "Custom request status changed concurrently")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, err, "Failed to update custom request")
	}
	s.log.InfoContext(ctx, "custom request status updated",
		slog.String("request_id", id),
		slog.String("from", string(cur.Status)),
		slog.String("to", string(status)),
	)
	return updated, nil
}
