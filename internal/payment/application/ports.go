package application

import (
	"context"

	identity "github.com/dmehra2102/storefront/internal/identity/domain"
	order "github.com/dmehra2102/storefront/internal/order/domain"
)

// OrderPayments is the order core's payment flag operation.
type OrderPayments interface {
	UpdatePaymentStatus(ctx context.Context, caller identity.Caller, id string, isPaid bool) (order.Order, error)
}
