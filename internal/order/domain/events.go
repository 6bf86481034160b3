package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const AggregateType = "order"

const (
	EventOrderCreated        = "OrderCreated"
	EventOrderStatusChanged  = "OrderStatusChanged"
	EventOrderPaymentUpdated = "OrderPaymentUpdated"
)

type OrderCreated struct {
	OrderID    string          `json:"order_id"`
	UserID     string          `json:"user_id"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Items      []OrderItem     `json:"items"`
}

type OrderStatusChanged struct {
	OrderID string      `json:"order_id"`
	From    OrderStatus `json:"from"`
	To      OrderStatus `json:"to"`
	By      string      `json:"by"`
}

type OrderPaymentUpdated struct {
	OrderID string     `json:"order_id"`
	IsPaid  bool       `json:"is_paid"`
	PaidAt  *time.Time `json:"paid_at"`
	By      string     `json:"by"`
}
