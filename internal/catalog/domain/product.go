package domain

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrProductNotFound is returned by catalog lookups for unknown or inactive
// products.
var ErrProductNotFound = errors.New("product not found")

type ProductID int64

type Product struct {
	ID            ProductID       `json:"product_id" yaml:"product_id"`
	Name          string          `json:"name" yaml:"name"`
	Description   string          `json:"description,omitempty" yaml:"description"`
	Price         decimal.Decimal `json:"price" yaml:"price"`
	CostPrice     decimal.Decimal `json:"cost_price" yaml:"cost_price"`
	StockQuantity int             `json:"stock_quantity" yaml:"stock_quantity"`
	CategoryID    *int64          `json:"category_id,omitempty" yaml:"category_id"`
	Barcode       string          `json:"barcode,omitempty" yaml:"barcode"`
	IsActive      bool            `json:"is_active" yaml:"is_active"`
}

type StockStatus string

const (
	StatusOutOfStock StockStatus = "out_of_stock"
	StatusVeryLow    StockStatus = "very_low"
	StatusLow        StockStatus = "low"
	StatusInStock    StockStatus = "in_stock"
)

const (
	VeryLowStockLimit = 3
	LowStockLimit     = 10
)

func StatusFor(qty int) StockStatus {
	switch {
	case qty <= 0:
		return StatusOutOfStock
	case qty <= VeryLowStockLimit:
		return StatusVeryLow
	case qty <= LowStockLimit:
		return StatusLow
	default:
		return StatusInStock
	}
}

func (p Product) Status() StockStatus { return StatusFor(p.StockQuantity) }

func (p Product) InStock() bool { return p.StockQuantity > 0 }

// IsLowStock reports 0 < qty <= threshold; out-of-stock items are listed separately.
func (p Product) IsLowStock(threshold int) bool {
	return p.StockQuantity > 0 && p.StockQuantity <= threshold
}

// Listing is the catalog row shown to a cashier station.
type Listing struct {
	Product
	Status StockStatus `json:"status"`
}

func NewListing(p Product) Listing {
	return Listing{Product: p, Status: p.Status()}
}

const (
	NoticeStockChanged = "stock_changed"
	NoticeLowStock     = "low_stock"
)

// Notice is pushed to cashier stations so they reload the listed products.
type Notice struct {
	Type       string      `json:"type"`
	ProductIDs []ProductID `json:"product_ids"`
}
