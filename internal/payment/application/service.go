package application

import (
	"context"
	"log/slog"

	identity "github.com/dmehra2102/storefront/internal/identity/domain"
	orderapp "github.com/dmehra2102/storefront/internal/order/application"
	"github.com/dmehra2102/storefront/internal/payment/domain"
)

type Service struct {
	log    *slog.Logger
	orders OrderPayments
	caller identity.Caller
}

func NewService(log *slog.Logger, orders OrderPayments) *Service {
	return &Service{log: log, orders: orders, caller: identity.ServiceCaller(orderapp.PaymentService)}
}

// Apply records a payment notification against its order.
func (s *Service) Apply(ctx context.Context, n domain.Notification) error {
	if err := n.Validate(); err != nil {
		return err
	}
	o, err := s.orders.UpdatePaymentStatus(ctx, s.caller, n.OrderID, *n.IsPaid)
	if err != nil {
		return err
	}
	s.log.Info("payment applied", "order_id", o.ID, "is_paid", o.IsPaid)
	return nil
}
