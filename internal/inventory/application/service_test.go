package application

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalog "github.com/dmehra2102/pos-order-engine/internal/catalog/domain"
	"github.com/dmehra2102/pos-order-engine/internal/inventory/domain"
	"github.com/dmehra2102/pos-order-engine/internal/inventory/infrastructure/memory"
	"github.com/dmehra2102/pos-order-engine/pkg/logging"
	"github.com/dmehra2102/pos-order-engine/pkg/retry"
)

// flakyLedger fails the first n mutating calls with err before delegating.
type flakyLedger struct {
	*memory.Ledger
	failures int
	err      error
	calls    int
}

func (f *flakyLedger) TryReserveAndCommit(ctx context.Context, ref string, req domain.Request) (domain.CommitResult, error) {
	f.calls++
	if f.calls <= f.failures {
		return domain.CommitResult{}, f.err
	}
	return f.Ledger.TryReserveAndCommit(ctx, ref, req)
}

func (f *flakyLedger) AdjustStock(ctx context.Context, adj domain.Adjustment) (int, error) {
	f.calls++
	if f.calls <= f.failures {
		return 0, f.err
	}
	return f.Ledger.AdjustStock(ctx, adj)
}

func fastPolicy(attempts int) retry.Policy {
	return retry.Policy{Attempts: attempts, Initial: time.Millisecond, Max: time.Millisecond, Multiplier: 1}
}

func newLedger() *memory.Ledger {
	return memory.NewLedger(catalog.Product{ID: 1, Name: "burger", StockQuantity: 5, IsActive: true})
}

func TestTryReserveRetriesTransientConflicts(t *testing.T) {
	l := &flakyLedger{Ledger: newLedger(), failures: 2, err: fmt.Errorf("lock: %w", domain.ErrTransient)}
	svc := NewService(logging.Discard(), l, fastPolicy(3), 3)

	res, err := svc.TryReserveAndCommit(context.Background(), "ORD-1", domain.Request{1: 2})
	require.NoError(t, err)
	assert.True(t, res.Committed)
	assert.Equal(t, 3, l.calls)

	qty, err := svc.GetAvailable(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, qty)
}

func TestTryReserveSurfacesExhaustedRetries(t *testing.T) {
	l := &flakyLedger{Ledger: newLedger(), failures: 5, err: domain.ErrTransient}
	svc := NewService(logging.Discard(), l, fastPolicy(3), 3)

	_, err := svc.TryReserveAndCommit(context.Background(), "ORD-1", domain.Request{1: 2})
	assert.ErrorIs(t, err, domain.ErrTransient)
	assert.Equal(t, 3, l.calls)
}

func TestTryReserveDoesNotRetryPermanentErrors(t *testing.T) {
	l := &flakyLedger{Ledger: newLedger(), failures: 5, err: errors.New("connection refused")}
	svc := NewService(logging.Discard(), l, fastPolicy(3), 3)

	_, err := svc.TryReserveAndCommit(context.Background(), "ORD-1", domain.Request{1: 2})
	assert.Error(t, err)
	assert.Equal(t, 1, l.calls)
}

func TestInvalidInputNeverReachesLedger(t *testing.T) {
	l := &flakyLedger{Ledger: newLedger()}
	svc := NewService(logging.Discard(), l, fastPolicy(3), 3)

	_, err := svc.TryReserveAndCommit(context.Background(), "x", domain.Request{1: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
	_, err = svc.AdjustStock(context.Background(), domain.Adjustment{ProductID: 1, Mode: domain.AdjustAdd, Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidAdjustment)
	assert.Zero(t, l.calls)
}

func TestAdjustStockRetriesAndLists(t *testing.T) {
	l := &flakyLedger{Ledger: newLedger(), failures: 1, err: domain.ErrTransient}
	svc := NewService(logging.Discard(), l, fastPolicy(2), 3)

	qty, err := svc.AdjustStock(context.Background(), domain.AdjustDelta(1, -3, "waste"))
	require.NoError(t, err)
	assert.Equal(t, 2, qty)

	low, err := svc.ListLowStock(context.Background())
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, catalog.ProductID(1), low[0].ID)
}
