package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/pos-order-engine/internal/catalog/domain"
)

// ProductColumns is the select list ScanProduct expects.
const ProductColumns = `product_id, name, description, price, cost_price, stock_quantity, category_id, barcode, is_active`

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) ListActive(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+ProductColumns+` FROM products WHERE is_active ORDER BY product_id`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return CollectProducts(rows)
}

func (r *Repository) Get(ctx context.Context, id domain.ProductID) (domain.Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+ProductColumns+` FROM products WHERE product_id = $1 AND is_active`, int64(id))
	if err != nil {
		return domain.Product{}, fmt.Errorf("get product %d: %w", id, err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, ScanProduct)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, domain.ErrProductNotFound
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("get product %d: %w", id, err)
	}
	return p, nil
}

// Upsert is used by seeding and integration tests.
func (r *Repository) Upsert(ctx context.Context, p domain.Product) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO products (`+ProductColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (product_id) DO UPDATE SET
			name=$2, description=$3, price=$4, cost_price=$5, category_id=$7, barcode=$8, is_active=$9`,
		int64(p.ID), p.Name, p.Description, p.Price, p.CostPrice, p.StockQuantity, p.CategoryID, p.Barcode, p.IsActive)
	if err != nil {
		return fmt.Errorf("upsert product %d: %w", p.ID, err)
	}
	return nil
}

func ScanProduct(row pgx.CollectableRow) (domain.Product, error) {
	var p domain.Product
	var id int64
	err := row.Scan(&id, &p.Name, &p.Description, &p.Price, &p.CostPrice, &p.StockQuantity, &p.CategoryID, &p.Barcode, &p.IsActive)
	p.ID = domain.ProductID(id)
	return p, err
}

func CollectProducts(rows pgx.Rows) ([]domain.Product, error) {
	products, err := pgx.CollectRows(rows, ScanProduct)
	if err != nil {
		return nil, fmt.Errorf("scan products: %w", err)
	}
	return products, nil
}
