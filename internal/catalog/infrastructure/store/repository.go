package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/dmehra2102/storefront/internal/catalog/application"
	"github.com/dmehra2102/storefront/internal/catalog/domain"
	"github.com/dmehra2102/storefront/pkg/docstore"
)

const productsCollection = "products"

var searchFields = []string{"name", "description"}

type Repository struct {
	log      *slog.Logger
	products *docstore.Collection[domain.Product]
}

var _ application.ProductRepository = (*Repository)(nil)

func NewRepository(log *slog.Logger, store docstore.Store) *Repository {
	return &Repository{log: log, products: docstore.NewCollection[domain.Product](store, productsCollection)}
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Product, error) {
	p, err := r.products.Get(ctx, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return domain.Product{}, fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
	}
	return p, err
}

func (r *Repository) Find(ctx context.Context, q application.Query) ([]domain.Product, error) {
	f := docstore.Filter{Order: docstore.ByID}
	if q.Category != "" {
		f.Equals = map[string]any{"category": q.Category}
	}
	if q.Search != "" {
		f.Match = &docstore.TextMatch{Term: q.Search, Fields: searchFields}
	}
	return r.products.Find(ctx, f, q.Skip, q.Limit)
}

func (r *Repository) Insert(ctx context.Context, p domain.Product) (domain.Product, error) {
	id, err := r.products.Insert(ctx, p.ID, p)
	if err != nil {
		return domain.Product{}, fmt.Errorf("insert product: %w", err)
	}
	p.ID = id
	return p, nil
}

func (r *Repository) Update(ctx context.Context, id string, set map[string]any) (domain.Product, error) {
	p, ok, err := r.products.ConditionalUpdate(ctx, id, nil, docstore.Mutation{Set: set})
	if err != nil {
		return domain.Product{}, err
	}
	if !ok {
		return domain.Product{}, fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
	}
	return p, nil
}

func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	return r.products.Delete(ctx, id)
}

func (r *Repository) AdjustStock(ctx context.Context, id string, delta int64, now time.Time) (domain.Product, bool, error) {
	var conds []docstore.Condition
	if delta < 0 {
		conds = []docstore.Condition{docstore.Gte("stock", -delta)}
	}
	return r.products.ConditionalUpdate(ctx, id, conds, docstore.Mutation{
		Set: map[string]any{"updated_at": now},
		Inc: map[string]int64{"stock": delta},
	})
}

func (r *Repository) Count(ctx context.Context) (int64, error) {
	return r.products.Count(ctx, docstore.Filter{})
}

func (r *Repository) Categories(ctx context.Context) ([]string, error) {
	all, err := r.products.Find(ctx, docstore.Filter{}, 0, 0)
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	out := []string{}
	for _, p := range all {
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		out = append(out, p.Category)
	}
	sort.Strings(out)
	return out, nil
}
