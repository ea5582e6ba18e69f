package application

import (
	"context"

	"github.com/dmehra2102/pos-order-engine/internal/catalog/domain"
)

type Repository interface {
	ListActive(ctx context.Context) ([]domain.Product, error)
}

// Cache holds the last listing. A miss is (nil, false, nil).
type Cache interface {
	Get(ctx context.Context) ([]domain.Product, bool, error)
	Set(ctx context.Context, products []domain.Product) error
	Invalidate(ctx context.Context) error
}

type Broadcaster interface {
	Broadcast(n domain.Notice)
}
