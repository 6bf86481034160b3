package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	catalog "github.com/dmehra2102/storefront/internal/catalog/domain"
	"github.com/dmehra2102/storefront/pkg/apperr"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

var (
	ErrValidation        = apperr.New(apperr.Validation, "invalid order")
	ErrOrderNotFound     = apperr.New(apperr.NotFound, "order not found")
	ErrForbidden         = apperr.New(apperr.Forbidden, "not authorized to access this order")
	ErrInvalidTransition = apperr.New(apperr.Conflict, "invalid status transition")
	ErrConcurrentUpdate  = apperr.New(apperr.Conflict, "order was modified concurrently")
)

var transitions = map[OrderStatus][]OrderStatus{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
}

func ParseStatus(s string) (OrderStatus, error) {
	switch st := OrderStatus(s); st {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrValidation, s)
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further status change is allowed.
func (s OrderStatus) Terminal() bool { return len(transitions[s]) == 0 }

// OrderItem is the product snapshot taken when the order was placed.
type OrderItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int64           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Image     *string         `json:"image"`
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(i.Quantity))
}

type ShippingAddress struct {
	FullName   string  `json:"full_name"`
	Address    string  `json:"address"`
	City       string  `json:"city"`
	PostalCode string  `json:"postal_code"`
	Country    string  `json:"country"`
	PhoneNo    *string `json:"phone_no"`
}

func (a ShippingAddress) Validate() error {
	for _, f := range []struct{ name, v string }{
		{"full_name", a.FullName},
		{"address", a.Address},
		{"city", a.City},
		{"postal_code", a.PostalCode},
		{"country", a.Country},
	} {
		if strings.TrimSpace(f.v) == "" {
			return fmt.Errorf("%w: shipping_address.%s is required", ErrValidation, f.name)
		}
	}
	return nil
}

type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Items           []OrderItem     `json:"order_items"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	PaymentMethod   string          `json:"payment_method"`
	ItemsPrice      decimal.Decimal `json:"items_price"`
	ShippingPrice   decimal.Decimal `json:"shipping_price"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	Status          OrderStatus     `json:"status"`
	IsPaid          bool            `json:"is_paid"`
	PaidAt          *time.Time      `json:"paid_at"`
	IsDelivered     bool            `json:"is_delivered"`
	DeliveredAt     *time.Time      `json:"delivered_at"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// NewOrder prices items under policy and returns a pending order.
func NewOrder(userID string, items []OrderItem, addr ShippingAddress, paymentMethod string, policy ShippingPolicy, now time.Time) Order {
	itemsPrice := ItemsPrice(items)
	shipping := policy.Charge(itemsPrice)
	return Order{
		UserID:          userID,
		Items:           items,
		ShippingAddress: addr,
		PaymentMethod:   paymentMethod,
		ItemsPrice:      itemsPrice,
		ShippingPrice:   shipping,
		TotalPrice:      itemsPrice.Add(shipping),
		Status:          StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func ItemsPrice(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// ShippingPolicy charges FlatRate unless the items price reaches FreeOver.
// A zero FreeOver disables the free-shipping threshold.
type ShippingPolicy struct {
	FlatRate decimal.Decimal
	FreeOver decimal.Decimal
}

func (p ShippingPolicy) Charge(itemsPrice decimal.Decimal) decimal.Decimal {
	if p.FreeOver.IsPositive() && itemsPrice.GreaterThanOrEqual(p.FreeOver) {
		return decimal.Zero
	}
	return p.FlatRate
}

// Rejection says why an order could not be placed.
type Rejection string

const (
	RejectProductNotFound   Rejection = "product_not_found"
	RejectInsufficientStock Rejection = "insufficient_stock"
)

// RejectedError reports the first item that stopped an order. It unwraps to
// the matching catalog error so callers can classify it.
type RejectedError struct {
	Reason  Rejection
	ItemID  string
	OrderID string
}

func (e *RejectedError) Error() string {
	switch e.Reason {
	case RejectProductNotFound:
		return fmt.Sprintf("product %s not found", e.ItemID)
	case RejectInsufficientStock:
		return fmt.Sprintf("insufficient stock for product %s, order cancelled", e.ItemID)
	}
	return fmt.Sprintf("order rejected: %s", e.Reason)
}

func (e *RejectedError) Unwrap() error {
	switch e.Reason {
	case RejectProductNotFound:
		return catalog.ErrProductNotFound
	case RejectInsufficientStock:
		return catalog.ErrInsufficientStock
	}
	return nil
}

func AsRejected(err error) (*RejectedError, bool) {
	var re *RejectedError
	ok := errors.As(err, &re)
	return re, ok
}
