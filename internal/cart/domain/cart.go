// Package domain models the cashier's cart: an in-memory staging area whose
// stock bounds are advisory and re-checked by the ledger at checkout.
package domain

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	catalog "github.com/dmehra2102/pos-order-engine/internal/catalog/domain"
	"github.com/dmehra2102/pos-order-engine/internal/money"
)

var (
	ErrInvalidQuantity = errors.New("quantity must not be negative")
	ErrLineNotFound    = errors.New("product is not in the cart")
	ErrInactiveProduct = errors.New("product is not available for sale")
)

// CapacityError reports that a line would exceed the last stock level the
// cart saw for it. The cart is left unchanged.
type CapacityError struct {
	ProductID catalog.ProductID
	Requested int
	Available int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("product %d: %d requested, only %d available", e.ProductID, e.Requested, e.Available)
}

type Line struct {
	ProductID catalog.ProductID `json:"product_id"`
	Name      string            `json:"name"`
	UnitPrice decimal.Decimal   `json:"unit_price"`
	Quantity  int               `json:"quantity"`
	// Available is the ledger quantity last seen for this product.
	Available int `json:"available"`
}

func (l Line) TotalPrice() decimal.Decimal {
	return money.LineTotal(l.UnitPrice, l.Quantity)
}

type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// ComputeTotals is the single formula for cart and order totals.
func ComputeTotals(lines []Line, taxRate decimal.Decimal) Totals {
	subtotal := money.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.TotalPrice())
	}
	tax := money.Tax(subtotal, taxRate)
	return Totals{Subtotal: subtotal, Tax: tax, Total: subtotal.Add(tax)}
}

// Cart is not safe for concurrent use; sessions serialize access to it.
type Cart struct {
	taxRate decimal.Decimal
	lines   []Line
	index   map[catalog.ProductID]int
}

func New(taxRate decimal.Decimal) *Cart {
	return &Cart{taxRate: taxRate, index: make(map[catalog.ProductID]int)}
}

// AddOrIncrement adds qty of p, snapshotting its price on first add. p's
// StockQuantity becomes the line's advisory bound.
func (c *Cart) AddOrIncrement(p catalog.Product, qty int) error {
	if qty < 1 {
		return fmt.Errorf("add %d of product %d: %w", qty, p.ID, ErrInvalidQuantity)
	}
	if !p.IsActive {
		return fmt.Errorf("product %d: %w", p.ID, ErrInactiveProduct)
	}

	if i, ok := c.index[p.ID]; ok {
		line := &c.lines[i]
		if qty > p.StockQuantity-line.Quantity {
			return &CapacityError{ProductID: p.ID, Requested: saturatingAdd(line.Quantity, qty), Available: p.StockQuantity}
		}
		line.Quantity += qty
		line.Available = p.StockQuantity
		return nil
	}

	if qty > p.StockQuantity {
		return &CapacityError{ProductID: p.ID, Requested: qty, Available: p.StockQuantity}
	}
	c.index[p.ID] = len(c.lines)
	c.lines = append(c.lines, Line{
		ProductID: p.ID,
		Name:      p.Name,
		UnitPrice: p.Price,
		Quantity:  qty,
		Available: p.StockQuantity,
	})
	return nil
}

func saturatingAdd(a, b int) int {
	if b > math.MaxInt-a {
		return math.MaxInt
	}
	return a + b
}

// SetQuantity replaces a line's quantity; zero removes the line.
func (c *Cart) SetQuantity(id catalog.ProductID, qty int) error {
	if qty < 0 {
		return fmt.Errorf("set product %d to %d: %w", id, qty, ErrInvalidQuantity)
	}
	i, ok := c.index[id]
	if !ok {
		return ErrLineNotFound
	}
	if qty == 0 {
		c.removeAt(i)
		return nil
	}
	line := &c.lines[i]
	if qty > line.Available {
		return &CapacityError{ProductID: id, Requested: qty, Available: line.Available}
	}
	line.Quantity = qty
	return nil
}

// Remove reports whether a line was removed.
func (c *Cart) Remove(id catalog.ProductID) bool {
	i, ok := c.index[id]
	if ok {
		c.removeAt(i)
	}
	return ok
}

func (c *Cart) removeAt(i int) {
	delete(c.index, c.lines[i].ProductID)
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	for j := i; j < len(c.lines); j++ {
		c.index[c.lines[j].ProductID] = j
	}
}

func (c *Cart) Clear() {
	c.lines = nil
	c.index = make(map[catalog.ProductID]int)
}

func (c *Cart) IsEmpty() bool { return len(c.lines) == 0 }

// Lines returns a copy in insertion order.
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) TaxRate() decimal.Decimal { return c.taxRate }

// Totals is recomputed on every call.
func (c *Cart) Totals() Totals {
	return ComputeTotals(c.lines, c.taxRate)
}

// Snapshot freezes lines and prices for checkout. Later cart edits or catalog
// price changes do not affect it.
type Snapshot struct {
	Lines   []Line          `json:"lines"`
	TaxRate decimal.Decimal `json:"tax_rate"`
}

func (c *Cart) Snapshot() Snapshot {
	return Snapshot{Lines: c.Lines(), TaxRate: c.taxRate}
}

func (s Snapshot) Totals() Totals { return ComputeTotals(s.Lines, s.TaxRate) }
