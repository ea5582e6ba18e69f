package domain

import (
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalog "github.com/dmehra2102/pos-order-engine/internal/catalog/domain"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var rate = d("0.08")

func TestNewOrderTotals(t *testing.T) {
	o, err := NewOrder([]OrderItem{NewOrderItem(1, "burger", 2, d("10.00"))}, rate, decimal.Zero, PaymentCash, time.Now())
	require.NoError(t, err)
	assert.True(t, o.Subtotal.Equal(d("20.00")))
	assert.True(t, o.TaxAmount.Equal(d("1.60")))
	assert.True(t, o.TotalAmount.Equal(d("21.60")))
	require.NoError(t, o.Verify())
	assert.Equal(t, map[catalog.ProductID]int{1: 2}, o.Quantities())
}

func TestNewOrderDiscount(t *testing.T) {
	items := []OrderItem{NewOrderItem(1, "burger", 1, d("10.00"))}

	o, err := NewOrder(items, rate, d("0.80"), PaymentCard, time.Now())
	require.NoError(t, err)
	assert.True(t, o.TotalAmount.Equal(d("10.00")))
	require.NoError(t, o.Verify())

	_, err = NewOrder(items, rate, d("10.81"), PaymentCard, time.Now())
	assert.ErrorIs(t, err, ErrInvalidDiscount)
	_, err = NewOrder(items, rate, d("-1"), PaymentCard, time.Now())
	assert.ErrorIs(t, err, ErrInvalidDiscount)

	full, err := NewOrder(items, rate, d("10.80"), PaymentCard, time.Now())
	require.NoError(t, err)
	assert.True(t, full.TotalAmount.IsZero())
}

func TestNewOrderRejectsEmptyAndZeroQuantity(t *testing.T) {
	_, err := NewOrder(nil, rate, decimal.Zero, PaymentCash, time.Now())
	assert.ErrorIs(t, err, ErrInvalidCheckout)
	_, err = NewOrder([]OrderItem{NewOrderItem(1, "x", 0, d("1"))}, rate, decimal.Zero, PaymentCash, time.Now())
	assert.ErrorIs(t, err, ErrInvalidCheckout)
}

func TestVerifyCatchesTampering(t *testing.T) {
	base, err := NewOrder([]OrderItem{
		NewOrderItem(1, "burger", 2, d("10.00")),
		NewOrderItem(2, "soda", 1, d("1.50")),
	}, rate, decimal.Zero, PaymentCash, time.Now())
	require.NoError(t, err)

	mutations := map[string]func(o *Order){
		"total":    func(o *Order) { o.TotalAmount = o.TotalAmount.Add(d("0.01")) },
		"subtotal": func(o *Order) { o.Subtotal = d("1") },
		"line":     func(o *Order) { o.Items[0].TotalPrice = d("19.99") },
		"quantity": func(o *Order) { o.Items[1].Quantity = 0 },
		"discount": func(o *Order) { o.DiscountAmount = d("-1"); o.TotalAmount = o.TotalAmount.Add(d("1")) },
		"no items": func(o *Order) { o.Items = nil },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			o := base
			o.Items = append([]OrderItem(nil), base.Items...)
			mutate(&o)
			assert.ErrorIs(t, o.Verify(), ErrInvariantViolation)
		})
	}
}

func TestParsePaymentMethod(t *testing.T) {
	m, err := ParsePaymentMethod(" Card ")
	require.NoError(t, err)
	assert.Equal(t, PaymentCard, m)
	_, err = ParsePaymentMethod("bitcoin")
	assert.ErrorIs(t, err, ErrInvalidPaymentMethod)
}

func TestTimestampNumbers(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	a := TimestampNumbers{}.Next(now)
	b := TimestampNumbers{}.Next(now)
	assert.Regexp(t, regexp.MustCompile(`^ORD-20260314-092653-[0-9a-f]{8}$`), a)
	assert.NotEqual(t, a, b)
}

func TestStateTransitions(t *testing.T) {
	assert.True(t, StateBuilding.CanTransition(StateValidating))
	assert.True(t, StateValidating.CanTransition(StateRejected))
	assert.True(t, StateCommitting.CanTransition(StateFailed))
	assert.False(t, StateRejected.CanTransition(StateCommitting))
	assert.False(t, StateValidating.CanTransition(StateCommitted))
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateCommitting.Terminal())
}
