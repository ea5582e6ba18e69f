package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/pos-order-engine/internal/order/domain"
)

func order(t *testing.T, number string) domain.Order {
	t.Helper()
	o, err := domain.NewOrder([]domain.OrderItem{domain.NewOrderItem(1, "burger", 2, decimal.RequireFromString("10.00"))},
		decimal.RequireFromString("0.08"), decimal.Zero, domain.PaymentCash, time.Now())
	require.NoError(t, err)
	o.Number = number
	return o
}

func TestCreateAndGet(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	saved, err := s.CreateOrder(ctx, order(t, "ORD-1"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), saved.ID)
	assert.Equal(t, int64(1), saved.Items[0].OrderID)

	_, err = s.CreateOrder(ctx, order(t, "ORD-1"))
	assert.ErrorIs(t, err, domain.ErrDuplicateOrderNumber)
	assert.Equal(t, 1, s.Count())

	got, err := s.GetByNumber(ctx, "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, saved, got)

	got.Items[0].Quantity = 99
	again, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, again.Items[0].Quantity)

	_, err = s.Get(ctx, 7)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestCreateRejectsInconsistentTotals(t *testing.T) {
	s := NewStore()
	o := order(t, "ORD-2")
	o.TotalAmount = o.TotalAmount.Add(decimal.RequireFromString("1"))
	_, err := s.CreateOrder(context.Background(), o)
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)
	assert.Zero(t, s.Count())
}
