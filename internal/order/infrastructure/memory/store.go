// Package memory is the order store for STORE=memory. It enforces the same
// unique order number and totals constraints as the Postgres schema.
package memory

import (
	"context"
	"sync"

	"github.com/dmehra2102/pos-order-engine/internal/order/domain"
)

type Store struct {
	mu       sync.RWMutex
	nextID   int64
	orders   map[int64]domain.Order
	byNumber map[string]int64
}

func NewStore() *Store {
	return &Store{orders: make(map[int64]domain.Order), byNumber: make(map[string]int64)}
}

func (s *Store) CreateOrder(ctx context.Context, o domain.Order) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}
	if err := o.Verify(); err != nil {
		return domain.Order{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byNumber[o.Number]; taken {
		return domain.Order{}, domain.ErrDuplicateOrderNumber
	}
	s.nextID++
	o.ID = s.nextID
	o.Items = cloneItems(o.Items, o.ID)
	s.orders[o.ID] = o
	s.byNumber[o.Number] = o.ID
	return copyOrder(o), nil
}

func (s *Store) Get(ctx context.Context, id int64) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return copyOrder(o), nil
}

func (s *Store) GetByNumber(ctx context.Context, number string) (domain.Order, error) {
	s.mu.RLock()
	id, ok := s.byNumber[number]
	s.mu.RUnlock()
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return s.Get(ctx, id)
}

// Count reports how many orders exist.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

func copyOrder(o domain.Order) domain.Order {
	o.Items = cloneItems(o.Items, o.ID)
	return o
}

func cloneItems(items []domain.OrderItem, orderID int64) []domain.OrderItem {
	out := make([]domain.OrderItem, len(items))
	for i, it := range items {
		it.OrderID = orderID
		out[i] = it
	}
	return out
}
