package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dmehra2102/storefront/internal/cart/domain"
	catalog "github.com/dmehra2102/storefront/internal/catalog/domain"
	identity "github.com/dmehra2102/storefront/internal/identity/domain"
	orderapp "github.com/dmehra2102/storefront/internal/order/application"
	order "github.com/dmehra2102/storefront/internal/order/domain"
)

type Service struct {
	log     *slog.Logger
	carts   CartRepository
	catalog Catalog
	orders  OrderPlacer
	now     func() time.Time
}

func NewService(log *slog.Logger, carts CartRepository, cat Catalog, orders OrderPlacer) *Service {
	return &Service{
		log:     log,
		carts:   carts,
		catalog: cat,
		orders:  orders,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Get returns the caller's cart, creating an empty one on first access.
func (s *Service) Get(ctx context.Context, caller identity.Caller) (domain.Cart, error) {
	c, err := s.carts.Get(ctx, caller.ID)
	if !errors.Is(err, domain.ErrCartNotFound) {
		return c, err
	}
	c, err = s.carts.Create(ctx, domain.New(caller.ID, s.now()))
	if errors.Is(err, domain.ErrCartExists) {
		return s.carts.Get(ctx, caller.ID)
	}
	return c, err
}

func (s *Service) AddItem(ctx context.Context, caller identity.Caller, productID string, quantity int64) (domain.Cart, error) {
	if strings.TrimSpace(productID) == "" || quantity <= 0 {
		return domain.Cart{}, fmt.Errorf("%w: product_id and a positive quantity are required", domain.ErrValidation)
	}
	p, err := s.catalog.GetByID(ctx, productID)
	if err != nil {
		return domain.Cart{}, err
	}
	c, err := s.Get(ctx, caller)
	if err != nil {
		return domain.Cart{}, err
	}
	if want := c.Quantity(productID) + quantity; p.Stock < want {
		return domain.Cart{}, fmt.Errorf("%w: %d requested, %d available", catalog.ErrInsufficientStock, want, p.Stock)
	}
	if err := c.Add(productID, quantity, p.Price); err != nil {
		return domain.Cart{}, err
	}
	return s.save(ctx, c)
}

// UpdateQuantity sets the quantity of a line already in the cart. A quantity
// of zero or less removes the line.
func (s *Service) UpdateQuantity(ctx context.Context, caller identity.Caller, productID string, quantity int64) (domain.Cart, error) {
	if quantity <= 0 {
		return s.RemoveItem(ctx, caller, productID)
	}
	c, err := s.Get(ctx, caller)
	if err != nil {
		return domain.Cart{}, err
	}
	if err := c.SetQuantity(productID, quantity); err != nil {
		return domain.Cart{}, err
	}
	return s.save(ctx, c)
}

// RemoveItem is a no-op when the product is not in the cart.
func (s *Service) RemoveItem(ctx context.Context, caller identity.Caller, productID string) (domain.Cart, error) {
	c, err := s.Get(ctx, caller)
	if err != nil {
		return domain.Cart{}, err
	}
	if !c.Remove(productID) {
		return c, nil
	}
	return s.save(ctx, c)
}

func (s *Service) Clear(ctx context.Context, caller identity.Caller) (domain.Cart, error) {
	c, err := s.Get(ctx, caller)
	if err != nil {
		return domain.Cart{}, err
	}
	c.Clear()
	return s.save(ctx, c)
}

// Checkout places an order for the cart's lines and empties the cart once
// the order exists. A failed order leaves the cart untouched.
func (s *Service) Checkout(ctx context.Context, caller identity.Caller, addr order.ShippingAddress, paymentMethod string) (order.Order, error) {
	c, err := s.Get(ctx, caller)
	if err != nil {
		return order.Order{}, err
	}
	if c.Empty() {
		return order.Order{}, domain.ErrEmptyCart
	}

	lines := make([]orderapp.LineItem, 0, len(c.Items))
	for _, it := range c.Items {
		lines = append(lines, orderapp.LineItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	o, err := s.orders.CreateOrder(ctx, caller, orderapp.PlaceOrder{
		Items:           lines,
		ShippingAddress: addr,
		PaymentMethod:   paymentMethod,
	})
	if err != nil {
		return order.Order{}, err
	}

	c.Clear()
	if _, err := s.save(ctx, c); err != nil {
		s.log.Error("clear cart after checkout failed", "user_id", caller.ID, "order_id", o.ID, "err", err)
	}
	s.log.Info("cart checked out", "user_id", caller.ID, "order_id", o.ID)
	return o, nil
}

func (s *Service) save(ctx context.Context, c domain.Cart) (domain.Cart, error) {
	c.Recalculate()
	c.UpdatedAt = s.now()
	if err := s.carts.Save(ctx, c); err != nil {
		return domain.Cart{}, err
	}
	return c, nil
}
