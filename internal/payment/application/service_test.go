package application

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	identity "github.com/dmehra2102/storefront/internal/identity/domain"
	order "github.com/dmehra2102/storefront/internal/order/domain"
	"github.com/dmehra2102/storefront/internal/payment/domain"
)

type recordingOrders struct {
	caller identity.Caller
	id     string
	isPaid bool
}

func (r *recordingOrders) UpdatePaymentStatus(_ context.Context, caller identity.Caller, id string, isPaid bool) (order.Order, error) {
	r.caller, r.id, r.isPaid = caller, id, isPaid
	return order.Order{ID: id, IsPaid: isPaid}, nil
}

func TestApplyUsesPaymentServiceIdentity(t *testing.T) {
	orders := &recordingOrders{}
	svc := NewService(slog.New(slog.NewJSONHandler(io.Discard, nil)), orders)

	paid := true
	require.NoError(t, svc.Apply(context.Background(), domain.Notification{OrderID: "o1", IsPaid: &paid}))
	assert.True(t, orders.caller.IsService())
	assert.False(t, orders.caller.IsAdmin)
	assert.Equal(t, "o1", orders.id)
	assert.True(t, orders.isPaid)
}

func TestApplyRejectsIncompleteNotifications(t *testing.T) {
	svc := NewService(slog.New(slog.NewJSONHandler(io.Discard, nil)), &recordingOrders{})
	paid := false
	assert.ErrorIs(t, svc.Apply(context.Background(), domain.Notification{IsPaid: &paid}), domain.ErrInvalidNotification)
	assert.ErrorIs(t, svc.Apply(context.Background(), domain.Notification{OrderID: "o1"}), domain.ErrInvalidNotification)
}
