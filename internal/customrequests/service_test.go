package customrequests

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/imrishuroy/go-storefront-orders/internal/apperr"
)

type memRepo struct {
	mu       sync.Mutex
	requests map[string]Request
}

func newMemRepo() *memRepo { return &memRepo{requests: map[string]Request{}} }

func (m *memRepo) Create(ctx context.Context, r Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[r.RequestID] = r
	return nil
}

func (m *memRepo) Get(ctx context.Context, id string) (*Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *memRepo) ListByUser(ctx context.Context, userID string, status Status, page, limit int) (ListResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Request{}
	for _, r := range m.requests {
		if r.UserID == userID && (status == "" || r.Status == status) {
			out = append(out, r)
		}
	}
	return ListResult{Requests: out}, nil
}

func (m *memRepo) AddCommunication(ctx context.Context, id string, c Communication) (*Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	r.Communications = append(r.Communications, c)
	m.requests[id] = r
	return &r, nil
}

func (m *memRepo) UpdateStatus(ctx context.Context, id string, expected, next Status, resp *AdminResponse, notes []Communication) (*Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok || r.Status != expected {
		return nil, ErrStatusMismatch
	}
	r.Status = next
	if resp != nil {
		r.AdminResponse = resp
	}
	r.Communications = append(r.Communications, notes...)
	m.requests[id] = r
	return &r, nil
}

type counter struct {
	mu sync.Mutex
	n  map[string]int64
}

func (c *counter) Next(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.n == nil {
		c.n = map[string]int64{}
	}
	c.n[key]++
	return c.n[key], nil
}

func newTestService() (*Service, *memRepo) {
	repo := newMemRepo()
	svc := NewService(repo, &counter{}, nil)
	svc.nowFunc = func() time.Time { return time.Date(2025, 10, 15, 9, 0, 0, 0, time.UTC) }
	return svc, repo
}

func submission() Request {
	return Request{
		ContactInfo:  ContactInfo{Name: "Ana", Email: "ana@example.com", Phone: "555-0100"},
		DressDetails: DressDetails{Type: DressEvening, Description: "Silk gown, midnight blue"},
		Measurements: Measurements{Bust: 86, Additional: []Measurement{{Name: "neck", Value: 34}}},
	}
}

func TestSubmit_NumbersAndDefaults(t *testing.T) {
	svc, _ := newTestService()

	first, err := svc.Submit(context.Background(), "u1", submission())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	second, err := svc.Submit(context.Background(), "", submission())
	if err != nil {
		t.Fatalf("guest submit: %v", err)
	}
	if first.RequestNumber != "CR25100001" || second.RequestNumber != "CR25100002" {
		t.Fatalf("unexpected numbers %s %s", first.RequestNumber, second.RequestNumber)
	}
	if first.Status != StatusSubmitted || first.Budget.Currency != "USD" || first.Timeline.Urgency != "medium" || first.Priority != "medium" {
		t.Fatalf("defaults not applied: %+v", first)
	}
	if first.Measurements.Additional[0].Unit != "cm" {
		t.Fatalf("expected cm default unit")
	}
	if second.UserID != "" {
		t.Fatalf("guest request should have no user")
	}
}

func TestSubmit_Validation(t *testing.T) {
	svc, repo := newTestService()

	short := submission()
	short.DressDetails.Description = "too short"
	badType := submission()
	badType.DressDetails.Type = "gala"
	noEmail := submission()
	noEmail.ContactInfo.Email = "ana"

	for name, r := range map[string]Request{"short": short, "type": badType, "email": noEmail} {
		if _, err := svc.Submit(context.Background(), "u1", r); !apperr.Is(err, apperr.KindValidation) {
			t.Fatalf("%s: expected ValidationError, got %v", name, err)
		}
	}
	if len(repo.requests) != 0 {
		t.Fatalf("invalid submissions must not be stored")
	}
}

func TestGet_Access(t *testing.T) {
	svc, _ := newTestService()
	own, _ := svc.Submit(context.Background(), "u1", submission())
	guest, _ := svc.Submit(context.Background(), "", submission())

	if _, err := svc.Get(context.Background(), Actor{UserID: "u1"}, own.RequestID); err != nil {
		t.Fatalf("owner get: %v", err)
	}
	if _, err := svc.Get(context.Background(), Actor{UserID: "u2"}, own.RequestID); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected Forbidden, got %v", err)
	}
	if _, err := svc.Get(context.Background(), Actor{UserID: "u2"}, guest.RequestID); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("guest requests are admin-only, got %v", err)
	}
	if _, err := svc.Get(context.Background(), Actor{UserID: "a", Admin: true}, guest.RequestID); err != nil {
		t.Fatalf("admin get: %v", err)
	}
	if _, err := svc.Get(context.Background(), Actor{UserID: "u1"}, "missing"); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestAddCommunication(t *testing.T) {
	svc, _ := newTestService()
	r, _ := svc.Submit(context.Background(), "u1", submission())

	c, err := svc.AddCommunication(context.Background(), Actor{UserID: "u1"}, r.RequestID, "  Can it be sleeveless?  ")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if c.From != FromCustomer || c.Message != "Can it be sleeveless?" {
		t.Fatalf("unexpected communication %+v", c)
	}
	c, err = svc.AddCommunication(context.Background(), Actor{UserID: "a", Admin: true}, r.RequestID, "Yes")
	if err != nil || c.From != FromAdmin {
		t.Fatalf("admin reply: %+v %v", c, err)
	}
	if _, err := svc.AddCommunication(context.Background(), Actor{UserID: "u1"}, r.RequestID, "   "); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected ValidationError for empty message, got %v", err)
	}
	if _, err := svc.AddCommunication(context.Background(), Actor{UserID: "u1"}, r.RequestID, strings.Repeat("x", 1001)); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected ValidationError for long message, got %v", err)
	}
}

func TestSetStatus_AppendsCommunicationAndMergesResponse(t *testing.T) {
	svc, repo := newTestService()
	admin := Actor{UserID: "admin-1", Admin: true}
	r, _ := svc.Submit(context.Background(), "u1", submission())

	if _, err := svc.SetStatus(context.Background(), Actor{UserID: "u1"}, r.RequestID, StatusQuoted, nil); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected Forbidden, got %v", err)
	}

	updated, err := svc.SetStatus(context.Background(), admin, r.RequestID, StatusQuoted, &AdminResponse{Quote: &Quote{Amount: 750}})
	if err != nil {
		t.Fatalf("set status: %v", err)
	}
	if updated.Status != StatusQuoted {
		t.Fatalf("expected quoted, got %s", updated.Status)
	}
	last := updated.Communications[len(updated.Communications)-1]
	if last.From != FromAdmin || last.Message != "Status updated to: quoted" {
		t.Fatalf("unexpected communication %+v", last)
	}
	if updated.AdminResponse.Quote.Currency != "USD" || updated.AdminResponse.RespondedBy != "admin-1" || updated.AdminResponse.RespondedAt == nil {
		t.Fatalf("unexpected admin response %+v", updated.AdminResponse)
	}

	// same status with notes only: no new communication, quote kept
	updated, err = svc.SetStatus(context.Background(), admin, r.RequestID, StatusQuoted, &AdminResponse{Notes: "valid 30 days"})
	if err != nil {
		t.Fatalf("notes update: %v", err)
	}
	if len(updated.Communications) != 1 {
		t.Fatalf("unchanged status must not append, got %d", len(updated.Communications))
	}
	if updated.AdminResponse.Quote == nil || updated.AdminResponse.Notes != "valid 30 days" {
		t.Fatalf("admin response not merged: %+v", updated.AdminResponse)
	}

	if _, err := svc.SetStatus(context.Background(), admin, r.RequestID, "shipped", nil); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(repo.requests) != 1 {
		t.Fatalf("unexpected repo size %d", len(repo.requests))
	}
}

func TestRequest_DerivedFields(t *testing.T) {
	created := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	due := time.Date(2025, 10, 10, 0, 0, 0, 0, time.UTC)
	r := Request{CreatedAt: created, Status: StatusInProgress, Timeline: Timeline{PreferredDate: &due}}

	now := time.Date(2025, 10, 12, 0, 0, 0, 0, time.UTC)
	if got := r.DaysSinceSubmission(now); got != 11 {
		t.Fatalf("expected 11 days, got %d", got)
	}
	if !r.IsOverdue(now) {
		t.Fatalf("expected overdue")
	}
	r.Status = StatusCompleted
	if r.IsOverdue(now) {
		t.Fatalf("completed requests are never overdue")
	}
}
