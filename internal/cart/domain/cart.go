package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmehra2102/storefront/pkg/apperr"
)

var (
	ErrValidation    = apperr.New(apperr.Validation, "invalid cart request")
	ErrCartNotFound  = apperr.New(apperr.NotFound, "cart not found")
	ErrItemNotInCart = apperr.New(apperr.NotFound, "item not found in cart")
	ErrEmptyCart     = apperr.New(apperr.Validation, "cart is empty")
	ErrCartExists    = apperr.New(apperr.Conflict, "cart already exists")
)

type CartItem struct {
	ProductID string          `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// Cart belongs to one user and shares that user's id. TotalAmount is derived
// from Items by Recalculate and is never taken from storage or a client.
type Cart struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Items       []CartItem      `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func New(userID string, now time.Time) Cart {
	return Cart{ID: userID, UserID: userID, Items: []CartItem{}, TotalAmount: decimal.Zero, CreatedAt: now, UpdatedAt: now}
}

func (c *Cart) Recalculate() {
	total := decimal.Zero
	for i := range c.Items {
		it := &c.Items[i]
		it.Subtotal = it.Price.Mul(decimal.NewFromInt(it.Quantity))
		total = total.Add(it.Subtotal)
	}
	c.TotalAmount = total
}

func (c *Cart) index(productID string) int {
	for i, it := range c.Items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}

// Quantity is how many units of productID the cart holds.
func (c *Cart) Quantity(productID string) int64 {
	if i := c.index(productID); i >= 0 {
		return c.Items[i].Quantity
	}
	return 0
}

// Add merges quantity into the line for productID and refreshes its unit
// price.
func (c *Cart) Add(productID string, quantity int64, price decimal.Decimal) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}
	if i := c.index(productID); i >= 0 {
		c.Items[i].Quantity += quantity
		c.Items[i].Price = price
	} else {
		c.Items = append(c.Items, CartItem{ProductID: productID, Quantity: quantity, Price: price})
	}
	c.Recalculate()
	return nil
}

// SetQuantity replaces the quantity of an existing line. A quantity of zero
// or less removes the line.
func (c *Cart) SetQuantity(productID string, quantity int64) error {
	if quantity <= 0 {
		c.Remove(productID)
		return nil
	}
	i := c.index(productID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrItemNotInCart, productID)
	}
	c.Items[i].Quantity = quantity
	c.Recalculate()
	return nil
}

// Remove drops the line for productID and reports whether one was present.
func (c *Cart) Remove(productID string) bool {
	i := c.index(productID)
	if i < 0 {
		return false
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	c.Recalculate()
	return true
}

func (c *Cart) Clear() {
	c.Items = []CartItem{}
	c.Recalculate()
}

func (c *Cart) Empty() bool { return len(c.Items) == 0 }
