package application

import (
	"context"

	"github.com/dmehra2102/storefront/internal/cart/domain"
	catalog "github.com/dmehra2102/storefront/internal/catalog/domain"
	identity "github.com/dmehra2102/storefront/internal/identity/domain"
	orderapp "github.com/dmehra2102/storefront/internal/order/application"
	order "github.com/dmehra2102/storefront/internal/order/domain"
)

type Catalog interface {
	GetByID(ctx context.Context, id string) (catalog.Product, error)
}

// OrderPlacer turns checked-out cart lines into an order.
type OrderPlacer interface {
	CreateOrder(ctx context.Context, caller identity.Caller, req orderapp.PlaceOrder) (order.Order, error)
}

type CartRepository interface {
	// Get returns domain.ErrCartNotFound when the user has no cart yet.
	Get(ctx context.Context, userID string) (domain.Cart, error)
	// Create stores a new cart. It returns domain.ErrCartExists when another
	// request created it first.
	Create(ctx context.Context, c domain.Cart) (domain.Cart, error)
	// Save writes items, total_amount and updated_at in one update.
	Save(ctx context.Context, c domain.Cart) error
}
