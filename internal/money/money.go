// Package money holds the rounding rules shared by cart and order totals.
package money

import "github.com/shopspring/decimal"

// Places is the currency precision amounts are stored with.
const Places = 2

var Zero = decimal.Zero

// Round rounds half away from zero to currency precision.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// Tax is subtotal × rate rounded to currency precision.
func Tax(subtotal, rate decimal.Decimal) decimal.Decimal {
	return Round(subtotal.Mul(rate))
}

func LineTotal(unit decimal.Decimal, qty int) decimal.Decimal {
	return Round(unit.Mul(decimal.NewFromInt(int64(qty))))
}
