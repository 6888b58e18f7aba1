package orders

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/imrishuroy/go-storefront-orders/internal/apperr"
	"github.com/imrishuroy/go-storefront-orders/internal/catalog"
	"github.com/imrishuroy/go-storefront-orders/internal/idempotency"
	"github.com/imrishuroy/go-storefront-orders/internal/logging"
	"github.com/imrishuroy/go-storefront-orders/internal/metrics"
	"github.com/imrishuroy/go-storefront-orders/internal/paging"
	"github.com/imrishuroy/go-storefront-orders/internal/sequence"
)

// Event types published after a workflow commits.
const (
	EventOrderPlaced        = "order.placed"
	EventOrderCancelled     = "order.cancelled"
	EventOrderStatusUpdated = "order.status_updated"
)

// MaxNoteLength bounds the admin note attached to a status change.
const MaxNoteLength = 500

// orderNumberWidth is the digit count after the ORyymm prefix.
const orderNumberWidth = 6

// Catalog is the read side of the product catalog.
type Catalog interface {
	Get(ctx context.Context, productID string) (*catalog.Product, error)
}

// Repository persists orders. Create and Cancel move stock in the same
// atomic unit as the order write.
type Repository interface {
	Create(ctx context.Context, order Order, reservations []Reservation, idempotencyKey string) error
	Get(ctx context.Context, orderID string) (*Order, error)
	ListByUser(ctx context.Context, userID string, q ListQuery) (ListResult, error)
	UpdateStatus(ctx context.Context, orderID string, expected, next Status, note string) (*Order, error)
	Cancel(ctx context.Context, order Order, note string) (*CancelResult, error)
}

// NumberSource hands out per-key sequence numbers.
type NumberSource interface {
	Next(ctx context.Context, key string) (int64, error)
}

// EventPublisher sends domain events after commit.
type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType string, payload any, attributes map[string]string) error
}

// MetricsRecorder records counters after commit.
type MetricsRecorder interface {
	Count(ctx context.Context, name string, value float64, dims map[string]string) error
}

// KeyLookup reads idempotency records so a reused key is answered before
// any catalog check.
type KeyLookup interface {
	Get(ctx context.Context, key string) (*idempotency.IdempotencyRecord, error)
}

// Service runs the order placement and cancellation workflows.
type Service struct {
	catalog Catalog
	repo    Repository
	keys    KeyLookup
	numbers NumberSource
	events  EventPublisher
	metrics MetricsRecorder
	log     *slog.Logger
	nowFunc func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithNumbers assigns human-readable order numbers from src.
func WithNumbers(src NumberSource) Option { return func(s *Service) { s.numbers = src } }

// WithKeyLookup checks idempotency keys before the stock pre-check. The
// claim inside the order transaction still decides concurrent duplicates.
func WithKeyLookup(k KeyLookup) Option { return func(s *Service) { s.keys = k } }

// WithEvents publishes workflow events to p.
func WithEvents(p EventPublisher) Option { return func(s *Service) { s.events = p } }

// WithMetrics records workflow counters to m.
func WithMetrics(m MetricsRecorder) Option { return func(s *Service) { s.metrics = m } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.log = l } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.nowFunc = now } }

// NewService wires a Service.
func NewService(cat Catalog, repo Repository, opts ...Option) *Service {
	s := &Service{catalog: cat, repo: repo, nowFunc: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logging.OrDefault(s.log)
	return s
}

// Place validates the cart against the catalog, prices it and persists the
// order together with its stock reservations. Either every reservation and
// the order commit, or nothing does.
func (s *Service) Place(ctx context.Context, req PlaceRequest) (*Order, error) {
	if req.UserID == "" {
		return nil, apperr.New(apperr.KindUnauthorized, "Authentication required")
	}
	if err := validateLines(req.Lines); err != nil {
		return nil, err
	}
	if req.IdempotencyKey != "" && s.keys != nil {
		rec, err := s.keys.Get(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindStoreUnavailable, err, "Idempotency check failed")
		}
		if rec != nil {
			return nil, apperr.New(apperr.KindDuplicateRequest, "Request already processed")
		}
	}

	products := map[string]*catalog.Product{}
	for _, line := range req.Lines {
		if _, seen := products[line.ProductID]; seen {
			continue
		}
		p, err := s.catalog.Get(ctx, line.ProductID)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindStoreUnavailable, err, "Failed to load product")
		}
		if p == nil || !p.IsActive {
			return nil, apperr.New(apperr.KindProductUnavailable, "Product %s is not available", line.ProductID)
		}
		products[line.ProductID] = p
	}

	items := make([]Item, 0, len(req.Lines))
	for _, line := range req.Lines {
		p := products[line.ProductID]
		items = append(items, Item{
			ProductID: p.ProductID,
			Name:      p.Name,
			Quantity:  line.Quantity,
			Size:      line.Size,
			Color:     line.Color,
			Price:     p.Price,
		})
	}
	reservations := reservationsFor(items)
	if len(reservations) > MaxProductsPerOrder {
		return nil, apperr.New(apperr.KindValidation, "An order may contain at most %d different products", MaxProductsPerOrder)
	}

	// Advisory pre-check in submission order so the caller learns which line
	// is short. The transactional write re-checks every size.
	for _, line := range req.Lines {
		p := products[line.ProductID]
		need := reservationOf(reservations, line.ProductID)[line.Size]
		if have, _ := p.Stock(line.Size); have < need {
			s.count(ctx, metrics.StockRejected, 1, map[string]string{"Stage": "check"})
			return nil, insufficientStock(p.Name, line.Size)
		}
	}

	now := s.nowFunc().UTC()
	billing := req.ShippingAddress
	if req.BillingAddress != nil {
		billing = *req.BillingAddress
	}
	order := Order{
		OrderID:         uuid.NewString(),
		UserID:          req.UserID,
		Items:           items,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  billing,
		PaymentInfo:     req.PaymentInfo,
		Pricing:         ComputePricing(items),
		Status:          StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if s.numbers != nil {
		key := sequence.PeriodKey("OR", now)
		seq, err := s.numbers.Next(ctx, key)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindStoreUnavailable, err, "Failed to allocate order number")
		}
		order.OrderNumber = sequence.Number(key, seq, orderNumberWidth)
	}

	if err := s.repo.Create(ctx, order, reservations, req.IdempotencyKey); err != nil {
		return nil, s.classifyCreate(ctx, err, products)
	}

	s.log.InfoContext(ctx, "order placed",
		slog.String("order_id", order.OrderID),
		slog.String("order_number", order.OrderNumber),
		slog.String("user_id", order.UserID),
		slog.Int("items", len(order.Items)),
		slog.Float64("total", order.Pricing.Total),
	)
	s.publish(ctx, EventOrderPlaced, order)
	s.count(ctx, metrics.OrdersPlaced, 1, nil)
	s.count(ctx, metrics.UnitsReserved, float64(unitCount(reservations)), nil)
	return &order, nil
}

func validateLines(lines []Line) error {
	if len(lines) == 0 {
		return apperr.New(apperr.KindValidation, "Order must contain at least one item")
	}
	for i, line := range lines {
		if line.ProductID == "" {
			return apperr.New(apperr.KindValidation, "Item %d: product is required", i+1)
		}
		if line.Quantity < 1 {
			return apperr.New(apperr.KindValidation, "Item %d: quantity must be at least 1", i+1)
		}
		if !line.Size.Valid() {
			return apperr.New(apperr.KindValidation, "Item %d: invalid size %q", i+1, line.Size)
		}
	}
	return nil
}

func reservationOf(rs []Reservation, productID string) map[catalog.Size]int {
	for _, r := range rs {
		if r.ProductID == productID {
			return r.Quantities
		}
	}
	return nil
}

func insufficientStock(name string, size catalog.Size) *apperr.Error {
	return apperr.New(apperr.KindInsufficientStock, "Insufficient stock for %s in size %s", name, size)
}

func (s *Service) classifyCreate(ctx context.Context, err error, products map[string]*catalog.Product) error {
	if errors.Is(err, ErrDuplicateRequest) {
		return apperr.Wrap(apperr.KindDuplicateRequest, err, "Request already processed")
	}
	var rerr *ReservationError
	if !errors.As(err, &rerr) {
		return apperr.Wrap(apperr.KindStoreUnavailable, err, "Failed to create order")
	}

	var ise *catalog.InsufficientStockError
	switch {
	case errors.As(err, &ise):
		s.count(ctx, metrics.StockRejected, 1, map[string]string{"Stage": "commit"})
		name := ise.ProductName
		if p := products[rerr.ProductID]; name == "" && p != nil {
			name = p.Name
		}
		return apperr.Wrap(apperr.KindInsufficientStock, err, "Insufficient stock for %s in size %s", name, ise.Size)
	case errors.Is(err, catalog.ErrProductInactive), errors.Is(err, catalog.ErrProductNotFound):
		return apperr.Wrap(apperr.KindProductUnavailable, err, "Product %s is not available", rerr.ProductID)
	default:
		return apperr.Wrap(apperr.KindStoreUnavailable, err, "Failed to create order")
	}
}

// Cancel moves the actor's own order to cancelled and restores its stock.
func (s *Service) Cancel(ctx context.Context, actor Actor, orderID string) (*Order, error) {
	return s.cancel(ctx, actor, orderID, "")
}

// cancelAttempts bounds retries when the order status moves between the read
// and the conditional write to another cancellable status.
const cancelAttempts = 3

func (s *Service) cancel(ctx context.Context, actor Actor, orderID, note string) (*Order, error) {
	for attempt := 0; attempt < cancelAttempts; attempt++ {
		order, err := s.load(ctx, actor, orderID)
		if err != nil {
			return nil, err
		}
		if !order.Status.Cancellable() {
			return nil, apperr.New(apperr.KindInvalidTransition, "Order cannot be cancelled in status %s", order.Status)
		}

		res, err := s.repo.Cancel(ctx, *order, note)
		if errors.Is(err, ErrStatusMismatch) {
			continue
		}
		if err != nil {
			return nil, apperr.Wrap(apperr.KindStoreUnavailable, err, "Failed to cancel order")
		}

		for _, r := range res.Unreconciled {
			s.log.WarnContext(ctx, "stock not restored: product no longer exists",
				slog.String("order_id", orderID),
				slog.String("product_id", r.ProductID),
				slog.Any("quantities", r.Quantities),
			)
		}
		s.log.InfoContext(ctx, "order cancelled",
			slog.String("order_id", orderID),
			slog.String("previous_status", string(order.Status)),
			slog.Bool("by_admin", actor.Admin),
		)
		s.publish(ctx, EventOrderCancelled, *res.Order)
		s.count(ctx, metrics.OrdersCancelled, 1, nil)
		s.count(ctx, metrics.UnitsRestored, float64(unitCount(reservationsFor(order.Items))-unitCount(res.Unreconciled)), nil)
		return res.Order, nil
	}
	return nil, apperr.New(apperr.KindInvalidTransition, "Order status changed concurrently")
}

// SetStatus is the admin status update. Any known status is accepted;
// cancelled runs the cancellation workflow so stock is restored, and a
// cancelled order cannot be moved back out of cancelled.
func (s *Service) SetStatus(ctx context.Context, actor Actor, orderID string, status Status, note string) (*Order, error) {
	if !actor.Admin {
		return nil, apperr.New(apperr.KindForbidden, "Admin access required")
	}
	if !status.Valid() {
		return nil, apperr.New(apperr.KindValidation, "Invalid status %q", status)
	}
	if len(note) > MaxNoteLength {
		return nil, apperr.New(apperr.KindValidation, "Note must be at most %d characters", MaxNoteLength)
	}
	if status == StatusCancelled {
		return s.cancel(ctx, actor, orderID, note)
	}

	order, err := s.load(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == StatusCancelled {
		return nil, apperr.New(apperr.KindInvalidTransition, "Cancelled orders cannot change status")
	}

	updated, err := s.repo.UpdateStatus(ctx, orderID, order.Status, status, note)
	if errors.Is(err, ErrStatusMismatch) {
		return nil, apperr.New(apperr.KindInvalidTransition, "Order status changed concurrently")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, err, "Failed to update order status")
	}
	s.log.InfoContext(ctx, "order status updated",
		slog.String("order_id", orderID),
		slog.String("from", string(order.Status)),
		slog.String("to", string(status)),
	)
	s.publish(ctx, EventOrderStatusUpdated, *updated)
	return updated, nil
}

// Get returns an order visible to actor.
func (s *Service) Get(ctx context.Context, actor Actor, orderID string) (*Order, error) {
	return s.load(ctx, actor, orderID)
}

func (s *Service) load(ctx context.Context, actor Actor, orderID string) (*Order, error) {
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, err, "Failed to load order")
	}
	if order == nil {
		return nil, apperr.New(apperr.KindNotFound, "Order not found")
	}
	if !actor.Admin && order.UserID != actor.UserID {
		return nil, apperr.New(apperr.KindForbidden, "Access denied")
	}
	return order, nil
}

// ListMine returns a page of userID's orders, newest first.
func (s *Service) ListMine(ctx context.Context, userID string, q ListQuery) (ListResult, error) {
	if userID == "" {
		return ListResult{}, apperr.New(apperr.KindUnauthorized, "Authentication required")
	}
	if q.Status != "" && !q.Status.Valid() {
		return ListResult{}, apperr.New(apperr.KindValidation, "Invalid status %q", q.Status)
	}
	if q.Limit > paging.MaxLimit {
		q.Limit = paging.MaxLimit
	}
	res, err := s.repo.ListByUser(ctx, userID, q)
	if err != nil {
		return ListResult{}, apperr.Wrap(apperr.KindStoreUnavailable, err, "Failed to list orders")
	}
	if res.Orders == nil {
		res.Orders = []Order{}
	}
	return res, nil
}

// publish and count run after commit; failures are logged, never returned.
func (s *Service) publish(ctx context.Context, eventType string, order Order) {
	if s.events == nil {
		return
	}
	attrs := map[string]string{"order_id": order.OrderID, "status": string(order.Status)}
	if err := s.events.PublishEvent(ctx, eventType, order, attrs); err != nil {
		s.log.WarnContext(ctx, "publish event failed",
			slog.String("event_type", eventType),
			slog.String("order_id", order.OrderID),
			slog.Any("error", err),
		)
	}
}

func (s *Service) count(ctx context.Context, name string, value float64, dims map[string]string) {
	if s.metrics == nil {
		return
	}
	if err := s.metrics.Count(ctx, name, value, dims); err != nil {
		s.log.WarnContext(ctx, "record metric failed", slog.String("metric", name), slog.Any("error", err))
	}
}

func unitCount(rs []Reservation) int {
	n := 0
	for _, r := range rs {
		for _, q := range r.Quantities {
			n += q
		}
	}
	return n
}
