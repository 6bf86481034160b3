package application

import (
	"context"
	"time"

	"github.com/dmehra2102/storefront/internal/catalog/domain"
)

type Query struct {
	Skip     int
	Limit    int
	Category string
	Search   string
}

type ProductRepository interface {
	Get(ctx context.Context, id string) (domain.Product, error)
	Find(ctx context.Context, q Query) ([]domain.Product, error)
	Insert(ctx context.Context, p domain.Product) (domain.Product, error)
	// Update returns domain.ErrProductNotFound when id is absent.
	Update(ctx context.Context, id string, set map[string]any) (domain.Product, error)
	Delete(ctx context.Context, id string) (bool, error)
	// AdjustStock adds delta to stock. With a negative delta the change is
	// applied only while stock >= -delta; ok=false means it was not applied.
	AdjustStock(ctx context.Context, id string, delta int64, now time.Time) (domain.Product, bool, error)
	Count(ctx context.Context) (int64, error)
	Categories(ctx context.Context) ([]string, error)
}
