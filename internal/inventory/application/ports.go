package application

import (
	"context"

	catalog "github.com/dmehra2102/pos-order-engine/internal/catalog/domain"
	"github.com/dmehra2102/pos-order-engine/internal/inventory/domain"
)

// Ledger is the authoritative per-product stock store. TryReserveAndCommit and
// AdjustStock are its only mutators and share one serialization discipline.
type Ledger interface {
	Available(ctx context.Context, id catalog.ProductID) (int, error)
	TryReserveAndCommit(ctx context.Context, ref string, req domain.Request) (domain.CommitResult, error)
	AdjustStock(ctx context.Context, adj domain.Adjustment) (int, error)
	ListLowStock(ctx context.Context, threshold int) ([]catalog.Product, error)
	// Committed reports whether a checkout decrement for ref is on the journal.
	Committed(ctx context.Context, ref string) (bool, error)
}
