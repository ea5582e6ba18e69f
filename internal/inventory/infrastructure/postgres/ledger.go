package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	catalog "github.com/dmehra2102/pos-order-engine/internal/catalog/domain"
	catalogpg "github.com/dmehra2102/pos-order-engine/internal/catalog/infrastructure/postgres"
	"github.com/dmehra2102/pos-order-engine/internal/inventory/domain"
	platform "github.com/dmehra2102/pos-order-engine/internal/platform/postgres"
	"github.com/dmehra2102/pos-order-engine/pkg/outbox"
	"github.com/dmehra2102/pos-order-engine/pkg/tracing"
)

const aggregateProduct = "product"

// Ledger keeps stock in the products table. Every mutation locks the affected
// rows with SELECT ... FOR UPDATE in product-id order and writes its movement
// journal and outbox events in the same transaction.
type Ledger struct {
	log          *slog.Logger
	pool         *pgxpool.Pool
	lockTimeout  time.Duration
	lowThreshold int
}

func NewLedger(log *slog.Logger, pool *pgxpool.Pool, lockTimeout time.Duration, lowThreshold int) *Ledger {
	return &Ledger{log: log, pool: pool, lockTimeout: lockTimeout, lowThreshold: lowThreshold}
}

func (l *Ledger) Available(ctx context.Context, id catalog.ProductID) (int, error) {
	var qty int
	err := l.pool.QueryRow(ctx, `SELECT stock_quantity FROM products WHERE product_id = $1 AND is_active`, int64(id)).Scan(&qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrProductNotFound
	}
	if err != nil {
		return 0, classify("available", err)
	}
	return qty, nil
}

type lockedRow struct {
	id     catalog.ProductID
	qty    int
	active bool
}

func (l *Ledger) TryReserveAndCommit(ctx context.Context, ref string, req domain.Request) (domain.CommitResult, error) {
	if err := req.Validate(); err != nil {
		return domain.CommitResult{}, err
	}
	ids := req.ProductIDs()
	raw := make([]int64, len(ids))
	qtys := make([]int32, len(ids))
	for i, id := range ids {
		raw[i] = int64(id)
		qtys[i] = int32(req[id])
	}

	tx, err := l.begin(ctx)
	if err != nil {
		return domain.CommitResult{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	locked, err := lockRows(ctx, tx, raw)
	if err != nil {
		return domain.CommitResult{}, classify("lock products", err)
	}
	if len(locked) != len(ids) {
		return domain.CommitResult{}, domain.ErrProductNotFound
	}

	before := make(map[catalog.ProductID]int, len(locked))
	var shortfalls []domain.Shortfall
	for _, row := range locked {
		if !row.active {
			return domain.CommitResult{}, domain.ErrProductNotFound
		}
		before[row.id] = row.qty
		if want := req[row.id]; row.qty < want {
			shortfalls = append(shortfalls, domain.Shortfall{ProductID: row.id, Requested: want, Available: row.qty})
		}
	}
	if len(shortfalls) > 0 {
		return domain.Rejected(shortfalls), nil
	}

	rows, err := tx.Query(ctx, `
		UPDATE products p SET stock_quantity = p.stock_quantity - r.qty
		FROM unnest($1::bigint[], $2::int[]) AS r(id, qty)
		WHERE p.product_id = r.id
		RETURNING p.product_id, p.stock_quantity`, raw, qtys)
	if err != nil {
		return domain.CommitResult{}, classify("decrement stock", err)
	}
	remaining := make(map[catalog.ProductID]int, len(ids))
	var id int64
	var qty int
	_, err = pgx.ForEachRow(rows, []any{&id, &qty}, func() error {
		remaining[catalog.ProductID(id)] = qty
		return nil
	})
	if err != nil {
		return domain.CommitResult{}, classify("decrement stock", err)
	}

	moves := make([]domain.Movement, 0, len(ids))
	for _, pid := range ids {
		moves = append(moves, domain.Movement{
			ProductID:   pid,
			Delta:       -req[pid],
			Resulting:   remaining[pid],
			Reason:      domain.ReasonCheckout,
			OrderNumber: ref,
		})
	}
	if err := insertMovements(ctx, tx, moves); err != nil {
		return domain.CommitResult{}, classify("journal", err)
	}

	events, err := l.commitEvents(ctx, ref, before, remaining)
	if err != nil {
		return domain.CommitResult{}, err
	}
	if err := outbox.Append(ctx, tx, events...); err != nil {
		return domain.CommitResult{}, classify("outbox", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.CommitResult{}, classify("commit", err)
	}
	return domain.Committed(remaining), nil
}

func (l *Ledger) AdjustStock(ctx context.Context, adj domain.Adjustment) (int, error) {
	if err := adj.Validate(); err != nil {
		return 0, err
	}

	tx, err := l.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	locked, err := lockRows(ctx, tx, []int64{int64(adj.ProductID)})
	if err != nil {
		return 0, classify("lock product", err)
	}
	if len(locked) != 1 {
		return 0, domain.ErrProductNotFound
	}
	current := locked[0].qty
	after, err := adj.Apply(current)
	if err != nil {
		return current, err
	}

	if _, err := tx.Exec(ctx, `UPDATE products SET stock_quantity = $2 WHERE product_id = $1`, int64(adj.ProductID), after); err != nil {
		return 0, classify("adjust stock", err)
	}
	if err := insertMovements(ctx, tx, []domain.Movement{{
		ProductID:   adj.ProductID,
		Delta:       after - current,
		Resulting:   after,
		Reason:      adj.Reason,
		OrderNumber: adj.OrderNumber,
	}}); err != nil {
		return 0, classify("journal", err)
	}

	ev, err := l.event(ctx, adj.ProductID, domain.EventStockAdjusted, domain.StockAdjusted{
		ProductID: adj.ProductID,
		Mode:      adj.Mode,
		Quantity:  adj.Quantity,
		Resulting: after,
		Reason:    adj.Reason,
	})
	if err != nil {
		return 0, err
	}
	events := []outbox.Event{ev}
	if domain.CrossedLowThreshold(current, after, l.lowThreshold) {
		low, err := l.event(ctx, adj.ProductID, domain.EventLowStock, domain.LowStock{ProductID: adj.ProductID, Available: after, Threshold: l.lowThreshold})
		if err != nil {
			return 0, err
		}
		events = append(events, low)
	}
	if err := outbox.Append(ctx, tx, events...); err != nil {
		return 0, classify("outbox", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, classify("commit", err)
	}
	return after, nil
}

func (l *Ledger) ListLowStock(ctx context.Context, threshold int) ([]catalog.Product, error) {
	rows, err := l.pool.Query(ctx, `SELECT `+catalogpg.ProductColumns+` FROM products
		WHERE is_active AND stock_quantity > 0 AND stock_quantity <= $1
		ORDER BY product_id`, threshold)
	if err != nil {
		return nil, classify("list low stock", err)
	}
	return catalogpg.CollectProducts(rows)
}

func (l *Ledger) Committed(ctx context.Context, ref string) (bool, error) {
	var found bool
	err := l.pool.QueryRow(ctx, `SELECT EXISTS (
		SELECT 1 FROM stock_movements WHERE order_number = $1 AND reason = $2)`, ref, domain.ReasonCheckout).Scan(&found)
	if err != nil {
		return false, classify("committed", err)
	}
	return found, nil
}

// Movements returns the journal for one product, newest first.
func (l *Ledger) Movements(ctx context.Context, id catalog.ProductID, limit int) ([]domain.Movement, error) {
	rows, err := l.pool.Query(ctx, `SELECT product_id, delta, resulting, reason, order_number, created_at
		FROM stock_movements WHERE product_id = $1 ORDER BY movement_id DESC LIMIT $2`, int64(id), limit)
	if err != nil {
		return nil, classify("movements", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Movement, error) {
		var m domain.Movement
		var pid int64
		err := row.Scan(&pid, &m.Delta, &m.Resulting, &m.Reason, &m.OrderNumber, &m.CreatedAt)
		m.ProductID = catalog.ProductID(pid)
		return m, err
	})
}

func (l *Ledger) begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := l.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, classify("begin", err)
	}
	if l.lockTimeout > 0 {
		ms := strconv.FormatInt(l.lockTimeout.Milliseconds(), 10) + "ms"
		if _, err := tx.Exec(ctx, `SELECT set_config('lock_timeout', $1, true)`, ms); err != nil {
			_ = tx.Rollback(ctx)
			return nil, classify("lock timeout", err)
		}
	}
	return tx, nil
}

func lockRows(ctx context.Context, tx pgx.Tx, ids []int64) ([]lockedRow, error) {
	rows, err := tx.Query(ctx, `SELECT product_id, stock_quantity, is_active FROM products
		WHERE product_id = ANY($1) ORDER BY product_id FOR UPDATE`, ids)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (lockedRow, error) {
		var r lockedRow
		var id int64
		err := row.Scan(&id, &r.qty, &r.active)
		r.id = catalog.ProductID(id)
		return r, err
	})
}

func insertMovements(ctx context.Context, tx pgx.Tx, moves []domain.Movement) error {
	batch := &pgx.Batch{}
	for _, m := range moves {
		batch.Queue(`INSERT INTO stock_movements (product_id, delta, resulting, reason, order_number) VALUES ($1,$2,$3,$4,$5)`,
			int64(m.ProductID), m.Delta, m.Resulting, m.Reason, m.OrderNumber)
	}
	return tx.SendBatch(ctx, batch).Close()
}

func (l *Ledger) commitEvents(ctx context.Context, ref string, before, after map[catalog.ProductID]int) ([]outbox.Event, error) {
	committed, err := outbox.NewEvent(aggregateProduct, ref, domain.EventStockCommitted, domain.StockCommitted{Remaining: after})
	if err != nil {
		return nil, err
	}
	committed.Traceparent = tracing.Traceparent(ctx)
	events := []outbox.Event{committed}
	for id, qty := range after {
		if !domain.CrossedLowThreshold(before[id], qty, l.lowThreshold) {
			continue
		}
		low, err := l.event(ctx, id, domain.EventLowStock, domain.LowStock{ProductID: id, Available: qty, Threshold: l.lowThreshold})
		if err != nil {
			return nil, err
		}
		events = append(events, low)
	}
	return events, nil
}

func (l *Ledger) event(ctx context.Context, id catalog.ProductID, eventType string, payload any) (outbox.Event, error) {
	ev, err := outbox.NewEvent(aggregateProduct, strconv.FormatInt(int64(id), 10), eventType, payload)
	if err != nil {
		return outbox.Event{}, err
	}
	ev.Traceparent = tracing.Traceparent(ctx)
	return ev, nil
}

func classify(op string, err error) error {
	if platform.IsTransient(err) {
		return fmt.Errorf("%s: %w: %v", op, domain.ErrTransient, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
