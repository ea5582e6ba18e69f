package domain

import (
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	catalog "github.com/dmehra2102/pos-order-engine/internal/catalog/domain"
)

var taxRate = decimal.RequireFromString("0.08")

func product(id catalog.ProductID, price string, stock int) catalog.Product {
	return catalog.Product{ID: id, Name: "p", Price: decimal.RequireFromString(price), StockQuantity: stock, IsActive: true}
}

func TestAddOrIncrement(t *testing.T) {
	c := New(taxRate)
	require.NoError(t, c.AddOrIncrement(product(1, "10.00", 5), 1))
	require.NoError(t, c.AddOrIncrement(product(1, "10.00", 5), 1))
	require.NoError(t, c.AddOrIncrement(product(2, "2.50", 5), 3))

	lines := c.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, catalog.ProductID(2), lines[1].ProductID)

	totals := c.Totals()
	assert.Equal(t, "27.5", totals.Subtotal.String())
	assert.Equal(t, "2.2", totals.Tax.String())
	assert.Equal(t, "29.7", totals.Total.String())
}

func TestPriceIsSnapshottedAtFirstAdd(t *testing.T) {
	c := New(taxRate)
	require.NoError(t, c.AddOrIncrement(product(1, "10.00", 5), 1))
	require.NoError(t, c.AddOrIncrement(product(1, "12.00", 5), 1))
	assert.Equal(t, "10", c.Lines()[0].UnitPrice.String())
}

func TestCapacityExceededLeavesCartUnchanged(t *testing.T) {
	c := New(taxRate)
	require.NoError(t, c.AddOrIncrement(product(1, "10.00", 3), 2))

	err := c.AddOrIncrement(product(1, "10.00", 3), 2)
	var capErr *CapacityError
	require.True(t, errors.As(err, &capErr))
	assert.Equal(t, &CapacityError{ProductID: 1, Requested: 4, Available: 3}, capErr)
	assert.Equal(t, 2, c.Lines()[0].Quantity)

	err = c.AddOrIncrement(product(2, "1.00", 0), 1)
	require.True(t, errors.As(err, &capErr))
	assert.Len(t, c.Lines(), 1)

	err = c.SetQuantity(1, 4)
	require.True(t, errors.As(err, &capErr))
	assert.Equal(t, 2, c.Lines()[0].Quantity)

	err = c.AddOrIncrement(product(1, "10.00", 3), math.MaxInt)
	require.True(t, errors.As(err, &capErr))
	assert.Equal(t, math.MaxInt, capErr.Requested)
	assert.Equal(t, 2, c.Lines()[0].Quantity)
	assert.Equal(t, "21.60", c.Totals().Total.StringFixed(2))
}

func TestSetQuantityAndRemove(t *testing.T) {
	c := New(taxRate)
	for id := catalog.ProductID(1); id <= 3; id++ {
		require.NoError(t, c.AddOrIncrement(product(id, "1.00", 10), 1))
	}

	require.NoError(t, c.SetQuantity(2, 5))
	assert.ErrorIs(t, c.SetQuantity(2, -1), ErrInvalidQuantity)
	assert.ErrorIs(t, c.SetQuantity(9, 1), ErrLineNotFound)

	require.NoError(t, c.SetQuantity(1, 0))
	lines := c.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, catalog.ProductID(2), lines[0].ProductID)
	assert.Equal(t, 5, lines[0].Quantity)

	assert.True(t, c.Remove(3))
	assert.False(t, c.Remove(3))
	require.NoError(t, c.SetQuantity(2, 6))
	assert.Equal(t, 6, c.Lines()[0].Quantity)

	c.Clear()
	assert.True(t, c.IsEmpty())
	assert.True(t, c.Totals().Total.IsZero())
}

func TestInvalidAdds(t *testing.T) {
	c := New(taxRate)
	assert.ErrorIs(t, c.AddOrIncrement(product(1, "1.00", 5), 0), ErrInvalidQuantity)
	inactive := product(2, "1.00", 5)
	inactive.IsActive = false
	assert.ErrorIs(t, c.AddOrIncrement(inactive, 1), ErrInactiveProduct)
	assert.True(t, c.IsEmpty())
}

func TestSnapshotIsDetached(t *testing.T) {
	c := New(taxRate)
	require.NoError(t, c.AddOrIncrement(product(1, "10.00", 5), 2))
	snap := c.Snapshot()
	require.NoError(t, c.SetQuantity(1, 5))

	assert.Equal(t, 2, snap.Lines[0].Quantity)
	assert.Equal(t, "21.6", snap.Totals().Total.String())
}

// Whatever the sequence of edits, the totals equal a fresh computation over
// the visible lines and no line exceeds its advisory bound.
func TestTotalsConsistentProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		c := New(taxRate)
		stock := map[catalog.ProductID]int{}
		prices := map[catalog.ProductID]string{}
		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			id := catalog.ProductID(rapid.IntRange(1, 4).Draw(t, "id"))
			if _, ok := stock[id]; !ok {
				stock[id] = rapid.IntRange(0, 8).Draw(t, "stock")
				prices[id] = rapid.SampledFrom([]string{"0.99", "1.25", "10.00", "3.33"}).Draw(t, "price")
			}
			switch rapid.IntRange(0, 2).Draw(t, "op") {
			case 0:
				_ = c.AddOrIncrement(product(id, prices[id], stock[id]), rapid.IntRange(1, 3).Draw(t, "qty"))
			case 1:
				_ = c.SetQuantity(id, rapid.IntRange(0, 9).Draw(t, "qty"))
			case 2:
				c.Remove(id)
			}
		}

		subtotal := decimal.Zero
		for _, l := range c.Lines() {
			if l.Quantity < 1 || l.Quantity > stock[l.ProductID] {
				t.Fatalf("line %d has quantity %d with stock %d", l.ProductID, l.Quantity, stock[l.ProductID])
			}
			subtotal = subtotal.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
		}
		got := c.Totals()
		if !got.Subtotal.Equal(subtotal) {
			t.Fatalf("subtotal %s, want %s", got.Subtotal, subtotal)
		}
		if !got.Total.Equal(got.Subtotal.Add(got.Tax)) {
			t.Fatalf("total %s != %s + %s", got.Total, got.Subtotal, got.Tax)
		}
	})
}
