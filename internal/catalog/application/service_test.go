package application

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/pos-order-engine/internal/catalog/domain"
	"github.com/dmehra2102/pos-order-engine/pkg/logging"
)

type countingRepo struct {
	products []domain.Product
	calls    int
}

func (r *countingRepo) ListActive(context.Context) ([]domain.Product, error) {
	r.calls++
	return r.products, nil
}

type mapCache struct {
	val     []domain.Product
	ok      bool
	failGet bool
}

func (c *mapCache) Get(context.Context) ([]domain.Product, bool, error) {
	if c.failGet {
		return nil, false, errors.New("redis down")
	}
	return c.val, c.ok, nil
}

func (c *mapCache) Set(_ context.Context, p []domain.Product) error {
	c.val, c.ok = p, true
	return nil
}

func (c *mapCache) Invalidate(context.Context) error {
	c.val, c.ok = nil, false
	return nil
}

type notices []domain.Notice

func (n *notices) Broadcast(x domain.Notice) { *n = append(*n, x) }

func TestListActiveReadsThroughCache(t *testing.T) {
	repo := &countingRepo{products: []domain.Product{
		{ID: 1, Name: "burger", Price: decimal.RequireFromString("10.00"), StockQuantity: 2, IsActive: true},
		{ID: 2, Name: "fries", Price: decimal.RequireFromString("3.00"), StockQuantity: 50, IsActive: true},
	}}
	cache := &mapCache{}
	hub := &notices{}
	svc := NewService(logging.Discard(), repo, cache, hub)

	first, err := svc.ListActiveProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, domain.StatusVeryLow, first[0].Status)
	assert.Equal(t, domain.StatusInStock, first[1].Status)

	_, err = svc.ListActiveProducts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, repo.calls)

	svc.Refresh(context.Background(), 1)
	assert.False(t, cache.ok)
	assert.Equal(t, notices{{Type: domain.NoticeStockChanged, ProductIDs: []domain.ProductID{1}}}, *hub)

	_, err = svc.ListActiveProducts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, repo.calls)
}

func TestCacheFailureFallsBackToRepository(t *testing.T) {
	repo := &countingRepo{products: []domain.Product{{ID: 1, IsActive: true}}}
	svc := NewService(logging.Discard(), repo, &mapCache{failGet: true}, nil)

	got, err := svc.ListActiveProducts(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)
	svc.LowStock(context.Background(), 1)
}
