package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	catalog "github.com/dmehra2102/storefront/internal/catalog/domain"
	identity "github.com/dmehra2102/storefront/internal/identity/domain"
	"github.com/dmehra2102/storefront/internal/order/domain"
	"github.com/dmehra2102/storefront/pkg/outbox"
	"github.com/dmehra2102/storefront/pkg/tracing"
)

const (
	ListLimit = 100

	// PaymentService is the caller identity of the payment event consumer.
	PaymentService = "payment-service"
	systemActor    = "system"
)

const compensationTimeout = 10 * time.Second

type LineItem struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
}

// Totals are the prices a client believes it is paying. They are compared
// against the computed prices and never stored.
type Totals struct {
	ItemsPrice    decimal.Decimal
	ShippingPrice decimal.Decimal
	TotalPrice    decimal.Decimal
}

type PlaceOrder struct {
	Items           []LineItem
	ShippingAddress domain.ShippingAddress
	PaymentMethod   string
	Claimed         *Totals
}

func (p PlaceOrder) validate() error {
	if len(p.Items) == 0 {
		return fmt.Errorf("%w: order must contain at least one item", domain.ErrValidation)
	}
	for _, it := range p.Items {
		if strings.TrimSpace(it.ProductID) == "" {
			return fmt.Errorf("%w: product_id is required", domain.ErrValidation)
		}
		if it.Quantity <= 0 {
			return fmt.Errorf("%w: quantity for %s must be positive", domain.ErrValidation, it.ProductID)
		}
	}
	if err := p.ShippingAddress.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(p.PaymentMethod) == "" {
		return fmt.Errorf("%w: payment_method is required", domain.ErrValidation)
	}
	return nil
}

type Option func(*Service)

// WithRestockOnFailure returns stock taken by earlier items when a later
// reservation fails.
func WithRestockOnFailure() Option { return func(s *Service) { s.restock = true } }

func WithShippingPolicy(p domain.ShippingPolicy) Option {
	return func(s *Service) { s.shipping = p }
}

// WithEvents records order lifecycle events into rec.
func WithEvents(rec EventRecorder) Option { return func(s *Service) { s.events = rec } }

type Service struct {
	log      *slog.Logger
	orders   OrderRepository
	catalog  Catalog
	events   EventRecorder
	shipping domain.ShippingPolicy
	restock  bool
	now      func() time.Time
}

func NewService(log *slog.Logger, orders OrderRepository, cat Catalog, opts ...Option) *Service {
	s := &Service{
		log:     log,
		orders:  orders,
		catalog: cat,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOrder prices the request from the catalog, stores a pending order and
// reserves stock item by item. The first item that cannot be reserved cancels
// the order and is reported as a *domain.RejectedError.
func (s *Service) CreateOrder(ctx context.Context, caller identity.Caller, req PlaceOrder) (domain.Order, error) {
	if err := req.validate(); err != nil {
		return domain.Order{}, err
	}

	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, line := range req.Items {
		p, err := s.catalog.GetByID(ctx, line.ProductID)
		if errors.Is(err, catalog.ErrProductNotFound) {
			return domain.Order{}, &domain.RejectedError{Reason: domain.RejectProductNotFound, ItemID: line.ProductID}
		}
		if err != nil {
			return domain.Order{}, fmt.Errorf("load product %s: %w", line.ProductID, err)
		}
		items = append(items, snapshot(p, line.Quantity))
	}

	o := domain.NewOrder(caller.ID, items, req.ShippingAddress, strings.TrimSpace(req.PaymentMethod), s.shipping, s.now())
	if c := req.Claimed; c != nil && !(c.ItemsPrice.Equal(o.ItemsPrice) && c.ShippingPrice.Equal(o.ShippingPrice) && c.TotalPrice.Equal(o.TotalPrice)) {
		s.log.Warn("client totals differ from computed totals",
			"user_id", caller.ID,
			"claimed_total", c.TotalPrice.String(),
			"computed_total", o.TotalPrice.String())
	}

	o, err := s.orders.Insert(ctx, o)
	if err != nil {
		return domain.Order{}, fmt.Errorf("insert order: %w", err)
	}

	for i, it := range o.Items {
		_, ok, err := s.catalog.DecrementStockAtomic(ctx, it.ProductID, it.Quantity)
		if err == nil && ok {
			continue
		}
		s.cancel(ctx, o, o.Items[:i])
		switch {
		case errors.Is(err, catalog.ErrProductNotFound):
			return domain.Order{}, &domain.RejectedError{Reason: domain.RejectProductNotFound, ItemID: it.ProductID, OrderID: o.ID}
		case err != nil:
			return domain.Order{}, fmt.Errorf("reserve stock for %s: %w", it.ProductID, err)
		}
		s.log.Info("order rejected", "order_id", o.ID, "product_id", it.ProductID, "reason", domain.RejectInsufficientStock)
		return domain.Order{}, &domain.RejectedError{Reason: domain.RejectInsufficientStock, ItemID: it.ProductID, OrderID: o.ID}
	}

	s.record(ctx, o.ID, domain.EventOrderCreated, domain.OrderCreated{
		OrderID:    o.ID,
		UserID:     o.UserID,
		TotalPrice: o.TotalPrice,
		Items:      o.Items,
	})
	s.log.Info("order created", "order_id", o.ID, "user_id", o.UserID, "total_price", o.TotalPrice.String())
	return o, nil
}

// cancel marks a pending order cancelled and, when configured, returns the
// stock already reserved for it. It outlives the request context, which may
// be the reason reservation stopped. Failures are logged; the caller is
// already reporting an error.
func (s *Service) cancel(ctx context.Context, o domain.Order, reserved []domain.OrderItem) {
	ctx, done := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer done()

	_, ok, err := s.orders.UpdateIfStatus(ctx, o.ID, domain.StatusPending, map[string]any{
		"status":     domain.StatusCancelled,
		"updated_at": s.now(),
	})
	switch {
	case err != nil:
		s.log.Error("cancel order failed", "order_id", o.ID, "err", err)
	case !ok:
		s.log.Warn("order left pending state before cancellation", "order_id", o.ID)
	default:
		s.record(ctx, o.ID, domain.EventOrderStatusChanged, domain.OrderStatusChanged{
			OrderID: o.ID, From: domain.StatusPending, To: domain.StatusCancelled, By: systemActor,
		})
	}

	if !s.restock {
		return
	}
	for _, it := range reserved {
		if _, err := s.catalog.IncrementStock(ctx, it.ProductID, it.Quantity); err != nil {
			s.log.Error("restock failed", "order_id", o.ID, "product_id", it.ProductID, "quantity", it.Quantity, "err", err)
		}
	}
}

func (s *Service) UpdateOrderStatus(ctx context.Context, caller identity.Caller, id, status string) (domain.Order, error) {
	if !caller.IsAdmin {
		return domain.Order{}, domain.ErrForbidden
	}
	next, err := domain.ParseStatus(status)
	if err != nil {
		return domain.Order{}, err
	}
	cur, err := s.orders.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if !cur.Status.CanTransitionTo(next) {
		return domain.Order{}, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, cur.Status, next)
	}

	now := s.now()
	set := map[string]any{"status": next, "updated_at": now}
	if next == domain.StatusDelivered {
		set["is_delivered"] = true
		set["delivered_at"] = now
	}
	o, ok, err := s.orders.UpdateIfStatus(ctx, id, cur.Status, set)
	if err != nil {
		return domain.Order{}, err
	}
	if !ok {
		return domain.Order{}, fmt.Errorf("%w: %s", domain.ErrConcurrentUpdate, id)
	}
	s.record(ctx, id, domain.EventOrderStatusChanged, domain.OrderStatusChanged{
		OrderID: id, From: cur.Status, To: next, By: caller.ID,
	})
	s.log.Info("order status changed", "order_id", id, "from", cur.Status, "to", next)
	return o, nil
}

// UpdatePaymentStatus is open to admins and to the payment service.
func (s *Service) UpdatePaymentStatus(ctx context.Context, caller identity.Caller, id string, isPaid bool) (domain.Order, error) {
	if !caller.IsAdmin && caller.Service != PaymentService {
		return domain.Order{}, domain.ErrForbidden
	}
	var paidAt *time.Time
	if isPaid {
		now := s.now()
		paidAt = &now
	}
	o, err := s.orders.Update(ctx, id, map[string]any{
		"is_paid":    isPaid,
		"paid_at":    paidAt,
		"updated_at": s.now(),
	})
	if err != nil {
		return domain.Order{}, err
	}
	by := caller.ID
	if caller.IsService() {
		by = caller.Service
	}
	s.record(ctx, id, domain.EventOrderPaymentUpdated, domain.OrderPaymentUpdated{
		OrderID: id, IsPaid: isPaid, PaidAt: paidAt, By: by,
	})
	s.log.Info("order payment updated", "order_id", id, "is_paid", isPaid, "by", by)
	return o, nil
}

func (s *Service) GetOrder(ctx context.Context, caller identity.Caller, id string) (domain.Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if !caller.Owns(o.UserID) {
		return domain.Order{}, domain.ErrForbidden
	}
	return o, nil
}

// ListOrders returns the caller's own orders, newest first.
func (s *Service) ListOrders(ctx context.Context, caller identity.Caller) ([]domain.Order, error) {
	return s.orders.ListByUser(ctx, caller.ID, ListLimit)
}

func (s *Service) record(ctx context.Context, orderID, eventType string, payload any) {
	if s.events == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		s.log.Error("encode order event failed", "order_id", orderID, "type", eventType, "err", err)
		return
	}
	_, err = s.events.Record(ctx, outbox.Event{
		AggregateType: domain.AggregateType,
		AggregateID:   orderID,
		Type:          eventType,
		Payload:       body,
		Traceparent:   tracing.Traceparent(ctx),
	})
	if err != nil {
		s.log.Error("record order event failed", "order_id", orderID, "type", eventType, "err", err)
	}
}

func snapshot(p catalog.Product, quantity int64) domain.OrderItem {
	var image *string
	if len(p.Images) > 0 {
		img := p.Images[0]
		image = &img
	}
	return domain.OrderItem{
		ProductID: p.ID,
		Name:      p.Name,
		Quantity:  quantity,
		Price:     p.Price,
		Image:     image,
	}
}
