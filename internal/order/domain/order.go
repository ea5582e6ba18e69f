package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	catalog "github.com/dmehra2102/pos-order-engine/internal/catalog/domain"
	"github.com/dmehra2102/pos-order-engine/internal/money"
)

var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrDuplicateOrderNumber = errors.New("order number already used")
	ErrInvariantViolation   = errors.New("order totals are inconsistent")
	ErrInvalidCheckout      = errors.New("invalid checkout request")
	ErrInvalidPaymentMethod = errors.New("payment method must be cash or card")
	ErrInvalidDiscount      = errors.New("discount must be between zero and subtotal plus tax")
	ErrCheckoutTimeout      = errors.New("checkout deadline exceeded")
	ErrCompensationFailed   = errors.New("stock compensation failed")
)

type PaymentMethod string

const (
	PaymentCash PaymentMethod = "cash"
	PaymentCard PaymentMethod = "card"
)

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch PaymentMethod(strings.ToLower(strings.TrimSpace(s))) {
	case PaymentCash:
		return PaymentCash, nil
	case PaymentCard:
		return PaymentCard, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, s)
}

type OrderItem struct {
	OrderID    int64             `json:"order_id,omitempty"`
	ProductID  catalog.ProductID `json:"product_id"`
	Name       string            `json:"name"`
	Quantity   int               `json:"quantity"`
	UnitPrice  decimal.Decimal   `json:"unit_price"`
	TotalPrice decimal.Decimal   `json:"total_price"`
}

func NewOrderItem(id catalog.ProductID, name string, qty int, unit decimal.Decimal) OrderItem {
	return OrderItem{ProductID: id, Name: name, Quantity: qty, UnitPrice: unit, TotalPrice: money.LineTotal(unit, qty)}
}

// Order is immutable once committed; no update path exists.
type Order struct {
	ID             int64           `json:"order_id"`
	Number         string          `json:"order_number"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	PaymentMethod  PaymentMethod   `json:"payment_method"`
	CreatedAt      time.Time       `json:"created_at"`
	Items          []OrderItem     `json:"items"`
}

// NewOrder prices items with tax computed on the subtotal and the discount
// taken off the taxed amount.
func NewOrder(items []OrderItem, taxRate, discount decimal.Decimal, method PaymentMethod, now time.Time) (Order, error) {
	if len(items) == 0 {
		return Order{}, fmt.Errorf("%w: no items", ErrInvalidCheckout)
	}
	subtotal := money.Zero
	for _, it := range items {
		if it.Quantity < 1 {
			return Order{}, fmt.Errorf("%w: product %d quantity %d", ErrInvalidCheckout, it.ProductID, it.Quantity)
		}
		subtotal = subtotal.Add(it.TotalPrice)
	}
	tax := money.Tax(subtotal, taxRate)
	discount = money.Round(discount)
	if discount.IsNegative() || discount.GreaterThan(subtotal.Add(tax)) {
		return Order{}, fmt.Errorf("%w: %s", ErrInvalidDiscount, discount)
	}
	return Order{
		Subtotal:       subtotal,
		TaxAmount:      tax,
		DiscountAmount: discount,
		TotalAmount:    subtotal.Add(tax).Sub(discount),
		PaymentMethod:  method,
		CreatedAt:      now.UTC(),
		Items:          items,
	}, nil
}

// Verify checks the totals invariant: every line is unit × quantity, the
// subtotal is their sum, and total = subtotal + tax − discount.
func (o Order) Verify() error {
	if len(o.Items) == 0 {
		return fmt.Errorf("%w: order has no items", ErrInvariantViolation)
	}
	sum := money.Zero
	for _, it := range o.Items {
		if it.Quantity < 1 {
			return fmt.Errorf("%w: product %d has quantity %d", ErrInvariantViolation, it.ProductID, it.Quantity)
		}
		if want := money.LineTotal(it.UnitPrice, it.Quantity); !it.TotalPrice.Equal(want) {
			return fmt.Errorf("%w: product %d line total %s, want %s", ErrInvariantViolation, it.ProductID, it.TotalPrice, want)
		}
		sum = sum.Add(it.TotalPrice)
	}
	if !o.Subtotal.Equal(sum) {
		return fmt.Errorf("%w: subtotal %s, items sum to %s", ErrInvariantViolation, o.Subtotal, sum)
	}
	if o.DiscountAmount.IsNegative() {
		return fmt.Errorf("%w: negative discount %s", ErrInvariantViolation, o.DiscountAmount)
	}
	if want := sum.Add(o.TaxAmount).Sub(o.DiscountAmount); !o.TotalAmount.Equal(want) {
		return fmt.Errorf("%w: total %s, want %s", ErrInvariantViolation, o.TotalAmount, want)
	}
	return nil
}

// Quantities is the ledger request for this order.
func (o Order) Quantities() map[catalog.ProductID]int {
	q := make(map[catalog.ProductID]int, len(o.Items))
	for _, it := range o.Items {
		q[it.ProductID] += it.Quantity
	}
	return q
}
