// Package pricing computes order totals. Everything here is pure: totals are
// derived from the item lines and the optional adjustment on every call,
// never stored, so the displayed and the settled amount cannot drift apart.
package pricing

import (
	"github.com/cartapos/api/internal/enum"
	"github.com/shopspring/decimal"
)

// Line is one order line as priced: the snapshot unit price times quantity.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int32
}

// Adjustment is the single percentage discount or surcharge on an order.
type Adjustment struct {
	Kind    string
	Percent decimal.Decimal
}

var oneHundred = decimal.NewFromInt(100)

// Round2 rounds to 2 decimal places, half up.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ItemSubtotal sums unit_price * quantity over all lines and rounds the
// final sum only. Per-line rounding would compound the error.
func ItemSubtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.UnitPrice.Mul(decimal.NewFromInt32(l.Quantity)))
	}
	return Round2(sum)
}

// AdjustedTotal applies adj to the item subtotal. The adjustment amount is
// itself rounded to 2 decimals before it is added or subtracted.
func AdjustedTotal(lines []Line, adj *Adjustment) decimal.Decimal {
	subtotal := ItemSubtotal(lines)
	if adj == nil {
		return subtotal
	}
	amount := Round2(subtotal.Mul(adj.Percent).Div(oneHundred))
	if adj.Kind == enum.AdjustmentSurcharge {
		return Round2(subtotal.Add(amount))
	}
	return Round2(subtotal.Sub(amount))
}

// ClampPercent bounds p to [0, 100]. A clamped value of zero means "no
// adjustment": callers treat it as a clear.
func ClampPercent(p decimal.Decimal) decimal.Decimal {
	if p.IsNegative() {
		return decimal.Zero
	}
	if p.GreaterThan(oneHundred) {
		return oneHundred
	}
	return p
}
