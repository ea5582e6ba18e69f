// Package memory holds the in-process stock ledger used by STORE=memory and by
// tests. Each product carries its own mutex; batch commits take the locks in
// ascending product-id order so overlapping checkouts cannot deadlock.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	catalog "github.com/dmehra2102/pos-order-engine/internal/catalog/domain"
	"github.com/dmehra2102/pos-order-engine/internal/inventory/domain"
)

type entry struct {
	mu      sync.Mutex
	product catalog.Product
}

type Ledger struct {
	mu       sync.RWMutex
	products map[catalog.ProductID]*entry

	journalMu sync.Mutex
	journal   []domain.Movement

	now func() time.Time
}

func NewLedger(products ...catalog.Product) *Ledger {
	l := &Ledger{
		products: make(map[catalog.ProductID]*entry, len(products)),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, p := range products {
		l.Put(p)
	}
	return l
}

// Put inserts or replaces a catalog row. Stock changes for existing products
// must go through AdjustStock instead.
func (l *Ledger) Put(p catalog.Product) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.products[p.ID]; ok {
		e.mu.Lock()
		e.product = p
		e.mu.Unlock()
		return
	}
	l.products[p.ID] = &entry{product: p}
}

func (l *Ledger) lookup(id catalog.ProductID) (*entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.products[id]
	return e, ok
}

func (l *Ledger) Available(ctx context.Context, id catalog.ProductID) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	e, ok := l.lookup(id)
	if !ok {
		return 0, domain.ErrProductNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.product.IsActive {
		return 0, domain.ErrProductNotFound
	}
	return e.product.StockQuantity, nil
}

func (l *Ledger) TryReserveAndCommit(ctx context.Context, ref string, req domain.Request) (domain.CommitResult, error) {
	if err := req.Validate(); err != nil {
		return domain.CommitResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.CommitResult{}, err
	}

	ids := req.ProductIDs()
	entries := make([]*entry, len(ids))
	l.mu.RLock()
	for i, id := range ids {
		e, ok := l.products[id]
		if !ok {
			l.mu.RUnlock()
			return domain.CommitResult{}, domain.ErrProductNotFound
		}
		entries[i] = e
	}
	l.mu.RUnlock()

	for _, e := range entries {
		e.mu.Lock()
		defer e.mu.Unlock()
	}

	var shortfalls []domain.Shortfall
	for i, e := range entries {
		if !e.product.IsActive {
			return domain.CommitResult{}, domain.ErrProductNotFound
		}
		want := req[ids[i]]
		if e.product.StockQuantity < want {
			shortfalls = append(shortfalls, domain.Shortfall{
				ProductID: ids[i],
				Requested: want,
				Available: e.product.StockQuantity,
			})
		}
	}
	if len(shortfalls) > 0 {
		return domain.Rejected(shortfalls), nil
	}

	now := l.now()
	remaining := make(map[catalog.ProductID]int, len(ids))
	moves := make([]domain.Movement, 0, len(ids))
	for i, e := range entries {
		want := req[ids[i]]
		e.product.StockQuantity -= want
		remaining[ids[i]] = e.product.StockQuantity
		moves = append(moves, domain.Movement{
			ProductID:   ids[i],
			Delta:       -want,
			Resulting:   e.product.StockQuantity,
			Reason:      domain.ReasonCheckout,
			OrderNumber: ref,
			CreatedAt:   now,
		})
	}
	l.record(moves...)

	return domain.Committed(remaining), nil
}

func (l *Ledger) AdjustStock(ctx context.Context, adj domain.Adjustment) (int, error) {
	if err := adj.Validate(); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	e, ok := l.lookup(adj.ProductID)
	if !ok {
		return 0, domain.ErrProductNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	before := e.product.StockQuantity
	after, err := adj.Apply(before)
	if err != nil {
		return before, err
	}
	e.product.StockQuantity = after
	l.record(domain.Movement{
		ProductID:   adj.ProductID,
		Delta:       after - before,
		Resulting:   after,
		Reason:      adj.Reason,
		OrderNumber: adj.OrderNumber,
		CreatedAt:   l.now(),
	})
	return after, nil
}

func (l *Ledger) ListLowStock(ctx context.Context, threshold int) ([]catalog.Product, error) {
	all, err := l.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	low := make([]catalog.Product, 0)
	for _, p := range all {
		if p.IsLowStock(threshold) {
			low = append(low, p)
		}
	}
	return low, nil
}

// ListActive serves the catalog port in memory mode.
func (l *Ledger) ListActive(ctx context.Context) ([]catalog.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	entries := make([]*entry, 0, len(l.products))
	for _, e := range l.products {
		entries = append(entries, e)
	}
	l.mu.RUnlock()

	out := make([]catalog.Product, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		p := e.product
		e.mu.Unlock()
		if p.IsActive {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (l *Ledger) Get(ctx context.Context, id catalog.ProductID) (catalog.Product, error) {
	if err := ctx.Err(); err != nil {
		return catalog.Product{}, err
	}
	e, ok := l.lookup(id)
	if !ok {
		return catalog.Product{}, domain.ErrProductNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.product.IsActive {
		return catalog.Product{}, domain.ErrProductNotFound
	}
	return e.product, nil
}

func (l *Ledger) Committed(ctx context.Context, ref string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	l.journalMu.Lock()
	defer l.journalMu.Unlock()
	for _, m := range l.journal {
		if m.Reason == domain.ReasonCheckout && m.OrderNumber == ref {
			return true, nil
		}
	}
	return false, nil
}

func (l *Ledger) Movements() []domain.Movement {
	l.journalMu.Lock()
	defer l.journalMu.Unlock()
	out := make([]domain.Movement, len(l.journal))
	copy(out, l.journal)
	return out
}

func (l *Ledger) record(moves ...domain.Movement) {
	l.journalMu.Lock()
	l.journal = append(l.journal, moves...)
	l.journalMu.Unlock()
}
