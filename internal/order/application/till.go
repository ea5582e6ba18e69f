package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	cart "github.com/dmehra2102/pos-order-engine/internal/cart/domain"
	catalog "github.com/dmehra2102/pos-order-engine/internal/catalog/domain"
	inventory "github.com/dmehra2102/pos-order-engine/internal/inventory/domain"
	"github.com/dmehra2102/pos-order-engine/internal/order/domain"
)

// Carts hands out frozen cart snapshots for checkout.
type Carts interface {
	BeginCheckout(id string) (cart.Snapshot, error)
	EndCheckout(id string, committed bool)
}

// Products prices lines for snapshot checkouts.
type Products interface {
	Get(ctx context.Context, id catalog.ProductID) (catalog.Product, error)
}

type LineRequest struct {
	ProductID catalog.ProductID `json:"product_id"`
	Quantity  int               `json:"quantity"`
}

// Till checks out either a station's cart or a caller-supplied list of lines.
// A station cart stays frozen for the whole checkout and is cleared only when
// the order commits.
type Till struct {
	carts     Carts
	products  Products
	taxRate   decimal.Decimal
	processor *Processor
}

func NewTill(carts Carts, products Products, taxRate decimal.Decimal, processor *Processor) *Till {
	return &Till{carts: carts, products: products, taxRate: taxRate, processor: processor}
}

func (t *Till) CheckoutCart(ctx context.Context, cartID string, method domain.PaymentMethod, discount decimal.Decimal) (Result, error) {
	snap, err := t.carts.BeginCheckout(cartID)
	if err != nil {
		return Result{State: domain.StateBuilding, Reason: err.Error()}, err
	}
	res, err := t.processor.Checkout(ctx, CheckoutRequest{Cart: snap, PaymentMethod: method, Discount: discount})
	t.carts.EndCheckout(cartID, res.State == domain.StateCommitted)
	return res, err
}

// CheckoutLines snapshots current catalog prices for lines and checks them
// out. Stock is not pre-checked here; shortfalls come back as Rejected.
func (t *Till) CheckoutLines(ctx context.Context, lines []LineRequest, method domain.PaymentMethod, discount decimal.Decimal) (Result, error) {
	snap := cart.Snapshot{Lines: make([]cart.Line, 0, len(lines)), TaxRate: t.taxRate}
	for _, l := range lines {
		p, err := t.products.Get(ctx, l.ProductID)
		if errors.Is(err, catalog.ErrProductNotFound) || errors.Is(err, inventory.ErrProductNotFound) {
			err = fmt.Errorf("%w: product %d: %w", domain.ErrInvalidCheckout, l.ProductID, err)
			return Result{State: domain.StateBuilding, Reason: err.Error()}, err
		}
		if err != nil {
			return Result{State: domain.StateBuilding, Reason: err.Error()}, err
		}
		snap.Lines = append(snap.Lines, cart.Line{
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: p.Price,
			Quantity:  l.Quantity,
			Available: p.StockQuantity,
		})
	}
	return t.processor.Checkout(ctx, CheckoutRequest{Cart: snap, PaymentMethod: method, Discount: discount})
}

func (t *Till) Order(ctx context.Context, id int64) (domain.Order, error) {
	return t.processor.Get(ctx, id)
}
