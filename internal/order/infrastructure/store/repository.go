package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dmehra2102/storefront/internal/order/application"
	"github.com/dmehra2102/storefront/internal/order/domain"
	"github.com/dmehra2102/storefront/pkg/docstore"
)

const ordersCollection = "orders"

type Repository struct {
	log    *slog.Logger
	orders *docstore.Collection[domain.Order]
}

var _ application.OrderRepository = (*Repository)(nil)

func NewRepository(log *slog.Logger, store docstore.Store) *Repository {
	return &Repository{log: log, orders: docstore.NewCollection[domain.Order](store, ordersCollection)}
}

func (r *Repository) Insert(ctx context.Context, o domain.Order) (domain.Order, error) {
	id, err := r.orders.Insert(ctx, o.ID, o)
	if err != nil {
		return domain.Order{}, err
	}
	o.ID = id
	return o, nil
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Order, error) {
	o, err := r.orders.Get(ctx, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return domain.Order{}, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
	}
	return o, err
}

func (r *Repository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Order, error) {
	return r.orders.Find(ctx, docstore.Filter{
		Equals: map[string]any{"user_id": userID},
		Order:  docstore.Newest,
	}, 0, limit)
}

func (r *Repository) UpdateIfStatus(ctx context.Context, id string, from domain.OrderStatus, set map[string]any) (domain.Order, bool, error) {
	return r.orders.ConditionalUpdate(ctx, id, []docstore.Condition{docstore.Eq("status", from)}, docstore.Mutation{Set: set})
}

func (r *Repository) Update(ctx context.Context, id string, set map[string]any) (domain.Order, error) {
	o, ok, err := r.orders.ConditionalUpdate(ctx, id, nil, docstore.Mutation{Set: set})
	if err != nil {
		return domain.Order{}, err
	}
	if !ok {
		return domain.Order{}, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
	}
	return o, nil
}
