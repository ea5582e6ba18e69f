package application

import (
	"context"

	catalog "github.com/dmehra2102/pos-order-engine/internal/catalog/domain"
	inventory "github.com/dmehra2102/pos-order-engine/internal/inventory/domain"
	"github.com/dmehra2102/pos-order-engine/internal/order/domain"
)

// StockLedger is the single admission and decrement point for checkout.
type StockLedger interface {
	TryReserveAndCommit(ctx context.Context, ref string, req inventory.Request) (inventory.CommitResult, error)
	AdjustStock(ctx context.Context, adj inventory.Adjustment) (int, error)
	// Committed reports whether the decrement for ref reached the ledger.
	Committed(ctx context.Context, ref string) (bool, error)
}

// OrderStore persists an order and its items as one atomic unit. A taken
// order number must surface as domain.ErrDuplicateOrderNumber.
type OrderStore interface {
	CreateOrder(ctx context.Context, o domain.Order) (domain.Order, error)
	Get(ctx context.Context, id int64) (domain.Order, error)
	GetByNumber(ctx context.Context, number string) (domain.Order, error)
}

// Refresher is told which products a committed order touched.
type Refresher interface {
	Refresh(ctx context.Context, ids ...catalog.ProductID)
}
