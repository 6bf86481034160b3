package application

import (
	"context"

	catalog "github.com/dmehra2102/storefront/internal/catalog/domain"
	"github.com/dmehra2102/storefront/internal/order/domain"
	"github.com/dmehra2102/storefront/pkg/outbox"
)

// Catalog is the slice of the catalog service the order core needs.
type Catalog interface {
	GetByID(ctx context.Context, id string) (catalog.Product, error)
	DecrementStockAtomic(ctx context.Context, id string, quantity int64) (catalog.Product, bool, error)
	IncrementStock(ctx context.Context, id string, quantity int64) (catalog.Product, error)
}

type OrderRepository interface {
	Insert(ctx context.Context, o domain.Order) (domain.Order, error)
	// Get returns domain.ErrOrderNotFound when id is absent.
	Get(ctx context.Context, id string) (domain.Order, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.Order, error)
	// UpdateIfStatus applies set only while the stored status is still from.
	// ok=false means the order is missing or its status moved on.
	UpdateIfStatus(ctx context.Context, id string, from domain.OrderStatus, set map[string]any) (domain.Order, bool, error)
	// Update returns domain.ErrOrderNotFound when id is absent.
	Update(ctx context.Context, id string, set map[string]any) (domain.Order, error)
}

type EventRecorder interface {
	Record(ctx context.Context, e outbox.Event) (string, error)
}
