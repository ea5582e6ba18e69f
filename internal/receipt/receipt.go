// Package receipt renders committed orders for the cashier. It is a pure
// projection: no I/O and no failure modes beyond missing input.
package receipt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	order "github.com/dmehra2102/pos-order-engine/internal/order/domain"
)

var ErrIncompleteOrder = errors.New("receipt needs a committed order with items")

const width = 40

type Line struct {
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

type Receipt struct {
	OrderNumber   string              `json:"order_number"`
	CreatedAt     time.Time           `json:"created_at"`
	Lines         []Line              `json:"lines"`
	Subtotal      decimal.Decimal     `json:"subtotal"`
	Tax           decimal.Decimal     `json:"tax"`
	Discount      decimal.Decimal     `json:"discount"`
	Total         decimal.Decimal     `json:"total"`
	PaymentMethod order.PaymentMethod `json:"payment_method"`
	Text          string              `json:"text"`
}

// Project builds the receipt for o.
func Project(o order.Order) (Receipt, error) {
	if o.Number == "" || len(o.Items) == 0 {
		return Receipt{}, ErrIncompleteOrder
	}
	lines := make([]Line, 0, len(o.Items))
	for _, it := range o.Items {
		name := it.Name
		if name == "" {
			name = fmt.Sprintf("Product #%d", it.ProductID)
		}
		lines = append(lines, Line{Name: name, Quantity: it.Quantity, UnitPrice: it.UnitPrice, TotalPrice: it.TotalPrice})
	}
	r := Receipt{
		OrderNumber:   o.Number,
		CreatedAt:     o.CreatedAt,
		Lines:         lines,
		Subtotal:      o.Subtotal,
		Tax:           o.TaxAmount,
		Discount:      o.DiscountAmount,
		Total:         o.TotalAmount,
		PaymentMethod: o.PaymentMethod,
	}
	r.Text = Format(r)
	return r, nil
}

// Format renders r as fixed-width text for a receipt printer or dialog.
func Format(r Receipt) string {
	var b strings.Builder
	rule := strings.Repeat("=", width)
	thin := strings.Repeat("-", width)

	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b, center("RECEIPT"))
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "Order#: %s\n", r.OrderNumber)
	fmt.Fprintf(&b, "Date:   %s\n", r.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintln(&b, thin)
	for _, l := range r.Lines {
		fmt.Fprintf(&b, "%s x%d @ %s\n", l.Name, l.Quantity, l.UnitPrice.StringFixed(2))
		fmt.Fprintln(&b, amount("", l.TotalPrice))
	}
	fmt.Fprintln(&b, thin)
	fmt.Fprintln(&b, amount("Subtotal:", r.Subtotal))
	fmt.Fprintln(&b, amount("Tax:", r.Tax))
	if r.Discount.IsPositive() {
		fmt.Fprintln(&b, amount("Discount:", r.Discount.Neg()))
	}
	fmt.Fprintln(&b, amount("TOTAL:", r.Total))
	fmt.Fprintf(&b, "Payment: %s\n", strings.ToUpper(string(r.PaymentMethod)))
	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b, center("Thank you!"))
	b.WriteString(rule)
	return b.String()
}

func amount(label string, d decimal.Decimal) string {
	v := d.StringFixed(2)
	pad := width - len(label) - len(v)
	if pad < 1 {
		pad = 1
	}
	return label + strings.Repeat(" ", pad) + v
}

func center(s string) string {
	pad := (width - len(s)) / 2
	if pad < 0 {
		pad = 0
	}
	return strings.Repeat(" ", pad) + s
}
