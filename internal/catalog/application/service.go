package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dmehra2102/storefront/internal/catalog/domain"
	identity "github.com/dmehra2102/storefront/internal/identity/domain"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
	searchLimit  = 100
)

type Service struct {
	log      *slog.Logger
	products ProductRepository
	now      func() time.Time
}

func NewService(log *slog.Logger, products ProductRepository) *Service {
	return &Service{log: log, products: products, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Product, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return s.products.Get(ctx, id)
}

// DecrementStockAtomic reserves quantity units. ok=false is the expected
// insufficient-stock outcome; err is reserved for faults and for a product
// that no longer exists.
func (s *Service) DecrementStockAtomic(ctx context.Context, id string, quantity int64) (domain.Product, bool, error) {
	if quantity <= 0 {
		return domain.Product{}, false, fmt.Errorf("%w: quantity must be positive", domain.ErrValidation)
	}
	p, ok, err := s.products.AdjustStock(ctx, id, -quantity, s.now())
	if err != nil || ok {
		return p, ok, err
	}
	if _, err := s.products.Get(ctx, id); err != nil {
		return domain.Product{}, false, err
	}
	return domain.Product{}, false, nil
}

func (s *Service) IncrementStock(ctx context.Context, id string, quantity int64) (domain.Product, error) {
	if quantity <= 0 {
		return domain.Product{}, fmt.Errorf("%w: quantity must be positive", domain.ErrValidation)
	}
	p, ok, err := s.products.AdjustStock(ctx, id, quantity, s.now())
	if err != nil {
		return domain.Product{}, err
	}
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p, nil
}

// Restock is the admin entry point for IncrementStock.
func (s *Service) Restock(ctx context.Context, caller identity.Caller, id string, quantity int64) (domain.Product, error) {
	if !caller.IsAdmin {
		return domain.Product{}, domain.ErrForbidden
	}
	p, err := s.IncrementStock(ctx, id, quantity)
	if err == nil {
		s.log.Info("product restocked", "product_id", id, "quantity", quantity, "stock", p.Stock)
	}
	return p, err
}

// Search is a case-insensitive substring match over name and description.
func (s *Service) Search(ctx context.Context, term string) ([]domain.Product, error) {
	return s.products.Find(ctx, Query{Search: term, Limit: searchLimit})
}

func (s *Service) List(ctx context.Context, q Query) ([]domain.Product, error) {
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	if q.Skip < 0 {
		return nil, fmt.Errorf("%w: skip must be >= 0", domain.ErrValidation)
	}
	if q.Limit < 1 || q.Limit > MaxLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", domain.ErrValidation, MaxLimit)
	}
	return s.products.Find(ctx, q)
}

func (s *Service) Categories(ctx context.Context) ([]string, error) {
	return s.products.Categories(ctx)
}

func (s *Service) Create(ctx context.Context, caller identity.Caller, d domain.Draft) (domain.Product, error) {
	if !caller.IsAdmin {
		return domain.Product{}, domain.ErrForbidden
	}
	if err := d.Validate(); err != nil {
		return domain.Product{}, err
	}
	p, err := s.products.Insert(ctx, d.Product("", s.now()))
	if err != nil {
		return domain.Product{}, err
	}
	s.log.Info("product created", "product_id", p.ID, "by", caller.ID)
	return p, nil
}

func (s *Service) Update(ctx context.Context, caller identity.Caller, id string, patch domain.Patch) (domain.Product, error) {
	if !caller.IsAdmin {
		return domain.Product{}, domain.ErrForbidden
	}
	set, err := patch.Fields()
	if err != nil {
		return domain.Product{}, err
	}
	set["updated_at"] = s.now()
	return s.products.Update(ctx, id, set)
}

func (s *Service) Delete(ctx context.Context, caller identity.Caller, id string) error {
	if !caller.IsAdmin {
		return domain.ErrForbidden
	}
	ok, err := s.products.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrProductNotFound
	}
	s.log.Info("product deleted", "product_id", id, "by", caller.ID)
	return nil
}

type SeedResult struct {
	Inserted   []string
	Categories []string
}

// Seed bulk-inserts drafts into an empty catalog.
func (s *Service) Seed(ctx context.Context, caller identity.Caller, drafts []domain.Draft) (SeedResult, error) {
	if !caller.IsAdmin {
		return SeedResult{}, domain.ErrForbidden
	}
	n, err := s.products.Count(ctx)
	if err != nil {
		return SeedResult{}, err
	}
	if n > 0 {
		return SeedResult{}, fmt.Errorf("%w: %d products present", domain.ErrCatalogNotEmpty, n)
	}

	var res SeedResult
	seen := map[string]bool{}
	now := s.now()
	for _, d := range drafts {
		if err := d.Validate(); err != nil {
			return res, fmt.Errorf("seed %q: %w", d.Name, err)
		}
		p, err := s.products.Insert(ctx, d.Product("", now))
		if err != nil {
			return res, err
		}
		res.Inserted = append(res.Inserted, p.ID)
		if !seen[p.Category] {
			seen[p.Category] = true
			res.Categories = append(res.Categories, p.Category)
		}
	}
	s.log.Info("catalog seeded", "count", len(res.Inserted))
	return res, nil
}
