package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDraft() Draft {
	return Draft{Name: "Mug", Price: decimal.RequireFromString("9.50"), Category: "Home", Stock: 3}
}

func TestDraftValidate(t *testing.T) {
	require.NoError(t, validDraft().Validate())

	cases := map[string]func(*Draft){
		"empty name":     func(d *Draft) { d.Name = " " },
		"zero price":     func(d *Draft) { d.Price = decimal.Zero },
		"negative stock": func(d *Draft) { d.Stock = -1 },
		"rating above 5": func(d *Draft) { d.Rating = 5.5 },
		"no category":    func(d *Draft) { d.Category = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			d := validDraft()
			mutate(&d)
			assert.ErrorIs(t, d.Validate(), ErrValidation)
		})
	}
}

func TestDraftProductDefaultsImages(t *testing.T) {
	now := time.Now().UTC()
	p := validDraft().Product("p1", now)
	assert.NotNil(t, p.Images)
	assert.Equal(t, now, p.UpdatedAt)
}

func TestPatchFields(t *testing.T) {
	_, err := Patch{}.Fields()
	assert.ErrorIs(t, err, ErrValidation)

	price := decimal.RequireFromString("-1")
	_, err = Patch{Price: &price}.Fields()
	assert.ErrorIs(t, err, ErrValidation)

	name := "  Big Mug "
	set, err := Patch{Name: &name}.Fields()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Big Mug"}, set)
}
