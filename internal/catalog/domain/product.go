package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/dmehra2102/storefront/pkg/apperr"
)

var (
	ErrValidation        = apperr.New(apperr.Validation, "invalid product")
	ErrProductNotFound   = apperr.New(apperr.NotFound, "product not found")
	ErrInsufficientStock = apperr.New(apperr.Conflict, "insufficient stock")
	ErrCatalogNotEmpty   = apperr.New(apperr.Conflict, "catalog already contains products")
	ErrForbidden         = apperr.New(apperr.Forbidden, "not enough permissions")
)

const (
	maxNameLen = 200
	maxRating  = 5
)

// Product is owned by the catalog. Stock changes only through the atomic
// decrement and increment operations.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Brand       *string         `json:"brand"`
	Stock       int64           `json:"stock"`
	Images      []string        `json:"images"`
	Rating      float64         `json:"rating"`
	NumReviews  int64           `json:"num_reviews"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Draft is the writable shape of a new product.
type Draft struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Brand       *string         `json:"brand"`
	Stock       int64           `json:"stock"`
	Images      []string        `json:"images"`
	Rating      float64         `json:"rating"`
	NumReviews  int64           `json:"num_reviews"`
}

func (d Draft) Validate() error {
	if err := validName(d.Name); err != nil {
		return err
	}
	if err := validPrice(d.Price); err != nil {
		return err
	}
	if strings.TrimSpace(d.Category) == "" {
		return fmt.Errorf("%w: category is required", ErrValidation)
	}
	if d.Stock < 0 {
		return fmt.Errorf("%w: stock must not be negative", ErrValidation)
	}
	if err := validRating(d.Rating); err != nil {
		return err
	}
	if d.NumReviews < 0 {
		return fmt.Errorf("%w: num_reviews must not be negative", ErrValidation)
	}
	return nil
}

func (d Draft) Product(id string, now time.Time) Product {
	images := d.Images
	if images == nil {
		images = []string{}
	}
	return Product{
		ID:          id,
		Name:        strings.TrimSpace(d.Name),
		Description: d.Description,
		Price:       d.Price,
		Category:    strings.TrimSpace(d.Category),
		Brand:       d.Brand,
		Stock:       d.Stock,
		Images:      images,
		Rating:      d.Rating,
		NumReviews:  d.NumReviews,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Patch is a partial update. Nil fields are left unchanged. Stock is not
// patchable; use a restock instead.
type Patch struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Category    *string          `json:"category"`
	Brand       *string          `json:"brand"`
	Images      []string         `json:"images"`
	Rating      *float64         `json:"rating"`
	NumReviews  *int64           `json:"num_reviews"`
}

// Fields validates p and returns the document fields it sets.
func (p Patch) Fields() (map[string]any, error) {
	set := map[string]any{}
	if p.Name != nil {
		if err := validName(*p.Name); err != nil {
			return nil, err
		}
		set["name"] = strings.TrimSpace(*p.Name)
	}
	if p.Description != nil {
		set["description"] = *p.Description
	}
	if p.Price != nil {
		if err := validPrice(*p.Price); err != nil {
			return nil, err
		}
		set["price"] = *p.Price
	}
	if p.Category != nil {
		if strings.TrimSpace(*p.Category) == "" {
			return nil, fmt.Errorf("%w: category must not be empty", ErrValidation)
		}
		set["category"] = strings.TrimSpace(*p.Category)
	}
	if p.Brand != nil {
		set["brand"] = *p.Brand
	}
	if p.Images != nil {
		set["images"] = p.Images
	}
	if p.Rating != nil {
		if err := validRating(*p.Rating); err != nil {
			return nil, err
		}
		set["rating"] = *p.Rating
	}
	if p.NumReviews != nil {
		if *p.NumReviews < 0 {
			return nil, fmt.Errorf("%w: num_reviews must not be negative", ErrValidation)
		}
		set["num_reviews"] = *p.NumReviews
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("%w: no fields to update", ErrValidation)
	}
	return set, nil
}

func validName(name string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	if n == 0 || n > maxNameLen {
		return fmt.Errorf("%w: name must be 1-%d characters", ErrValidation, maxNameLen)
	}
	return nil
}

func validPrice(p decimal.Decimal) error {
	if !p.IsPositive() {
		return fmt.Errorf("%w: price must be greater than 0", ErrValidation)
	}
	return nil
}

func validRating(r float64) error {
	if r < 0 || r > maxRating {
		return fmt.Errorf("%w: rating must be between 0 and %d", ErrValidation, maxRating)
	}
	return nil
}
