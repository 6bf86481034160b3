package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestAddMergesAndRefreshesPrice(t *testing.T) {
	c := New("u1", time.Now())
	require.NoError(t, c.Add("p1", 2, decimal.NewFromInt(10)))
	require.NoError(t, c.Add("p1", 1, decimal.NewFromInt(12)))

	require.Len(t, c.Items, 1)
	assert.Equal(t, int64(3), c.Items[0].Quantity)
	assert.Equal(t, "36", c.Items[0].Subtotal.String())
	assert.True(t, c.TotalAmount.Equal(c.Items[0].Subtotal))

	assert.ErrorIs(t, c.Add("p1", 0, decimal.NewFromInt(1)), ErrValidation)
}

func TestSetQuantity(t *testing.T) {
	c := New("u1", time.Now())
	require.NoError(t, c.Add("p1", 2, decimal.NewFromInt(10)))
	require.NoError(t, c.Add("p2", 1, decimal.NewFromInt(5)))

	require.NoError(t, c.SetQuantity("p2", 4))
	assert.Equal(t, "40", c.TotalAmount.String())

	assert.ErrorIs(t, c.SetQuantity("p9", 1), ErrItemNotInCart)

	require.NoError(t, c.SetQuantity("p1", 0))
	assert.Equal(t, int64(0), c.Quantity("p1"))
	assert.Equal(t, "20", c.TotalAmount.String())
}

func TestRemoveIsIdempotent(t *testing.T) {
	c := New("u1", time.Now())
	require.NoError(t, c.Add("p1", 1, decimal.NewFromInt(3)))

	assert.True(t, c.Remove("p1"))
	after := c
	assert.False(t, c.Remove("p1"))
	assert.Equal(t, after.Items, c.Items)
	assert.True(t, c.TotalAmount.IsZero())
	assert.True(t, c.Empty())
}

func TestTotalAlwaysMatchesItems(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		c := New("u", time.Now())
		products := []string{"a", "b", "c"}
		ops := rapid.IntRange(1, 40).Draw(t, "ops")
		for i := 0; i < ops; i++ {
			pid := rapid.SampledFrom(products).Draw(t, "product")
			switch rapid.IntRange(0, 3).Draw(t, "op") {
			case 0:
				price := decimal.New(rapid.Int64Range(1, 100000).Draw(t, "cents"), -2)
				_ = c.Add(pid, rapid.Int64Range(1, 20).Draw(t, "qty"), price)
			case 1:
				_ = c.SetQuantity(pid, rapid.Int64Range(-2, 20).Draw(t, "qty"))
			case 2:
				c.Remove(pid)
			case 3:
				c.TotalAmount = decimal.NewFromInt(-1)
				c.Recalculate()
			}

			sum := decimal.Zero
			seen := map[string]bool{}
			for _, it := range c.Items {
				if it.Quantity <= 0 {
					t.Fatalf("non-positive quantity %d for %s", it.Quantity, it.ProductID)
				}
				if seen[it.ProductID] {
					t.Fatalf("duplicate line for %s", it.ProductID)
				}
				seen[it.ProductID] = true
				if !it.Subtotal.Equal(it.Price.Mul(decimal.NewFromInt(it.Quantity))) {
					t.Fatalf("subtotal %s != %d x %s", it.Subtotal, it.Quantity, it.Price)
				}
				sum = sum.Add(it.Subtotal)
			}
			if !sum.Equal(c.TotalAmount) {
				t.Fatalf("total %s != sum %s", c.TotalAmount, sum)
			}
		}
	})
}
