package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestTax(t *testing.T) {
	cases := []struct{ subtotal, rate, want string }{
		{"20.00", "0.08", "1.6"},
		{"0.06", "0.08", "0"},
		{"0.07", "0.08", "0.01"},
		{"12.50", "0.08", "1"},
		{"19.99", "0.08", "1.6"},
	}
	for _, c := range cases {
		assert.True(t, Tax(d(c.subtotal), d(c.rate)).Equal(d(c.want)), "%s × %s", c.subtotal, c.rate)
	}
}

func TestLineTotal(t *testing.T) {
	assert.True(t, LineTotal(d("10.00"), 2).Equal(d("20")))
	assert.True(t, LineTotal(d("0.333"), 3).Equal(d("1")))
}
