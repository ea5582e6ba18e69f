package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS categories (
		category_id BIGSERIAL PRIMARY KEY,
		name        TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		product_id     BIGSERIAL PRIMARY KEY,
		name           TEXT NOT NULL,
		description    TEXT NOT NULL DEFAULT '',
		price          NUMERIC(12,2) NOT NULL CHECK (price >= 0),
		cost_price     NUMERIC(12,2) NOT NULL DEFAULT 0 CHECK (cost_price >= 0),
		stock_quantity INTEGER NOT NULL DEFAULT 0 CONSTRAINT products_stock_non_negative CHECK (stock_quantity >= 0),
		category_id    BIGINT REFERENCES categories(category_id),
		barcode        TEXT NOT NULL DEFAULT '',
		is_active      BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		order_id        BIGSERIAL PRIMARY KEY,
		order_number    TEXT NOT NULL CONSTRAINT orders_order_number_key UNIQUE,
		subtotal        NUMERIC(12,2) NOT NULL,
		tax_amount      NUMERIC(12,2) NOT NULL,
		discount_amount NUMERIC(12,2) NOT NULL DEFAULT 0 CHECK (discount_amount >= 0),
		total_amount    NUMERIC(12,2) NOT NULL,
		payment_method  TEXT NOT NULL CHECK (payment_method IN ('cash', 'card')),
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT orders_total_consistent CHECK (total_amount = subtotal + tax_amount - discount_amount)
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		order_item_id BIGSERIAL PRIMARY KEY,
		order_id      BIGINT NOT NULL REFERENCES orders(order_id),
		product_id    BIGINT NOT NULL REFERENCES products(product_id),
		quantity      INTEGER NOT NULL CHECK (quantity >= 1),
		unit_price    NUMERIC(12,2) NOT NULL,
		total_price   NUMERIC(12,2) NOT NULL,
		UNIQUE (order_id, product_id)
	)`,
	`CREATE TABLE IF NOT EXISTS stock_movements (
		movement_id  BIGSERIAL PRIMARY KEY,
		product_id   BIGINT NOT NULL REFERENCES products(product_id),
		delta        INTEGER NOT NULL,
		resulting    INTEGER NOT NULL,
		reason       TEXT NOT NULL,
		order_number TEXT NOT NULL DEFAULT '',
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS stock_movements_order_number_idx ON stock_movements (order_number) WHERE order_number <> ''`,
	`CREATE TABLE IF NOT EXISTS outbox (
		id             BIGSERIAL PRIMARY KEY,
		aggregate_type TEXT NOT NULL,
		aggregate_id   TEXT NOT NULL,
		type           TEXT NOT NULL,
		payload        JSONB NOT NULL,
		headers        JSONB NOT NULL DEFAULT '{}',
		traceparent    TEXT NOT NULL DEFAULT '',
		status         TEXT NOT NULL DEFAULT 'pending',
		relay_id       TEXT,
		lease_until    TIMESTAMPTZ,
		retry_count    INTEGER NOT NULL DEFAULT 0,
		last_error     TEXT,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS outbox_pending_idx ON outbox (id) WHERE status IN ('pending', 'in_progress')`,
}

// Migrate applies the schema idempotently.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
