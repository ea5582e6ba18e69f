package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	catalog "github.com/dmehra2102/pos-order-engine/internal/catalog/domain"
	"github.com/dmehra2102/pos-order-engine/internal/order/domain"
	platform "github.com/dmehra2102/pos-order-engine/internal/platform/postgres"
	"github.com/dmehra2102/pos-order-engine/pkg/outbox"
	"github.com/dmehra2102/pos-order-engine/pkg/tracing"
)

const orderNumberConstraint = "orders_order_number_key"

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

// CreateOrder writes the order, its items and the OrderCommitted outbox event
// in one transaction.
func (r *Repository) CreateOrder(ctx context.Context, o domain.Order) (domain.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Order{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	err = tx.QueryRow(ctx, `INSERT INTO orders (order_number, subtotal, tax_amount, discount_amount, total_amount, payment_method, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING order_id`,
		o.Number, o.Subtotal, o.TaxAmount, o.DiscountAmount, o.TotalAmount, string(o.PaymentMethod), o.CreatedAt).Scan(&o.ID)
	if err != nil {
		return domain.Order{}, classify(err)
	}

	batch := &pgx.Batch{}
	for i := range o.Items {
		o.Items[i].OrderID = o.ID
		it := o.Items[i]
		batch.Queue(`INSERT INTO order_items (order_id, product_id, quantity, unit_price, total_price)
			VALUES ($1,$2,$3,$4,$5)`,
			o.ID, int64(it.ProductID), it.Quantity, it.UnitPrice, it.TotalPrice)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return domain.Order{}, fmt.Errorf("insert order items: %w", err)
	}

	ev, err := outbox.NewEvent("order", strconv.FormatInt(o.ID, 10), domain.EventOrderCommitted, domain.NewOrderCommitted(o))
	if err != nil {
		return domain.Order{}, err
	}
	ev.Traceparent = tracing.Traceparent(ctx)
	if err := outbox.Append(ctx, tx, ev); err != nil {
		return domain.Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, fmt.Errorf("commit order: %w", err)
	}
	return o, nil
}

func classify(err error) error {
	switch {
	case platform.IsUniqueViolation(err, orderNumberConstraint):
		return fmt.Errorf("%w: %v", domain.ErrDuplicateOrderNumber, err)
	case platform.IsCheckViolation(err):
		return fmt.Errorf("%w: %v", domain.ErrInvariantViolation, err)
	}
	return fmt.Errorf("insert order: %w", err)
}

func (r *Repository) Get(ctx context.Context, id int64) (domain.Order, error) {
	return r.get(ctx, `order_id = $1`, id)
}

func (r *Repository) GetByNumber(ctx context.Context, number string) (domain.Order, error) {
	return r.get(ctx, `order_number = $1`, number)
}

func (r *Repository) get(ctx context.Context, where string, arg any) (domain.Order, error) {
	var o domain.Order
	var method string
	err := r.pool.QueryRow(ctx, `SELECT order_id, order_number, subtotal, tax_amount, discount_amount, total_amount, payment_method, created_at
		FROM orders WHERE `+where, arg).
		Scan(&o.ID, &o.Number, &o.Subtotal, &o.TaxAmount, &o.DiscountAmount, &o.TotalAmount, &method, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}
	o.PaymentMethod = domain.PaymentMethod(method)

	rows, err := r.pool.Query(ctx, `SELECT oi.product_id, COALESCE(p.name, ''), oi.quantity, oi.unit_price, oi.total_price
		FROM order_items oi LEFT JOIN products p ON p.product_id = oi.product_id
		WHERE oi.order_id = $1 ORDER BY oi.order_item_id`, o.ID)
	if err != nil {
		return domain.Order{}, err
	}
	o.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.OrderItem, error) {
		it := domain.OrderItem{OrderID: o.ID}
		var pid int64
		err := row.Scan(&pid, &it.Name, &it.Quantity, &it.UnitPrice, &it.TotalPrice)
		it.ProductID = catalog.ProductID(pid)
		return it, err
	})
	if err != nil {
		return domain.Order{}, err
	}
	return o, nil
}
