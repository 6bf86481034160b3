package store

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dmehra2102/storefront/internal/cart/application"
	"github.com/dmehra2102/storefront/internal/cart/domain"
	"github.com/dmehra2102/storefront/pkg/docstore"
)

const cartsCollection = "carts"

type Repository struct {
	log   *slog.Logger
	carts *docstore.Collection[domain.Cart]
}

var _ application.CartRepository = (*Repository)(nil)

func NewRepository(log *slog.Logger, store docstore.Store) *Repository {
	return &Repository{log: log, carts: docstore.NewCollection[domain.Cart](store, cartsCollection)}
}

func (r *Repository) Get(ctx context.Context, userID string) (domain.Cart, error) {
	c, err := r.carts.Get(ctx, userID)
	if errors.Is(err, docstore.ErrNotFound) {
		return domain.Cart{}, domain.ErrCartNotFound
	}
	if err != nil {
		return domain.Cart{}, err
	}
	c.Recalculate()
	return c, nil
}

func (r *Repository) Create(ctx context.Context, c domain.Cart) (domain.Cart, error) {
	_, err := r.carts.Insert(ctx, c.UserID, c)
	if errors.Is(err, docstore.ErrDuplicate) {
		return domain.Cart{}, domain.ErrCartExists
	}
	if err != nil {
		return domain.Cart{}, err
	}
	c.ID = c.UserID
	return c, nil
}

func (r *Repository) Save(ctx context.Context, c domain.Cart) error {
	ok, err := r.carts.UpdateByID(ctx, c.UserID, docstore.Mutation{Set: map[string]any{
		"items":        c.Items,
		"total_amount": c.TotalAmount,
		"updated_at":   c.UpdatedAt,
	}})
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrCartNotFound
	}
	return nil
}
