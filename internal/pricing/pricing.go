// Package pricing computes bill totals for a checkout.
//
// All arithmetic is decimal and unrounded; Round2 is for display only.
package pricing

import "github.com/shopspring/decimal"

// TaxRate is the flat tax applied to the discounted subtotal.
var TaxRate = decimal.RequireFromString("0.05")

var hundred = decimal.NewFromInt(100)

type Line struct {
	MRP      decimal.Decimal
	Quantity int
}

type Totals struct {
	Subtotal          decimal.Decimal
	DiscountAmount    decimal.Decimal
	TotalSavings      decimal.Decimal
	SubtotalAfterDisc decimal.Decimal
	Tax               decimal.Decimal
	Total             decimal.Decimal
}

// Compute prices a bill. discountPercentage is expected in [0, 100]; range
// checks belong to the caller.
func Compute(lines []Line, discountPercentage decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(LineTotal(l.MRP, l.Quantity))
	}

	discount := subtotal.Mul(discountPercentage).Div(hundred)
	afterDiscount := subtotal.Sub(discount)
	tax := afterDiscount.Mul(TaxRate)

	return Totals{
		Subtotal:          subtotal,
		DiscountAmount:    discount,
		TotalSavings:      discount,
		SubtotalAfterDisc: afterDiscount,
		Tax:               tax,
		Total:             afterDiscount.Add(tax),
	}
}

func LineTotal(unit decimal.Decimal, quantity int) decimal.Decimal {
	return unit.Mul(decimal.NewFromInt(int64(quantity)))
}

// UnitPrice is the per-line price recorded on a sale item. Bill-level
// discounts are not spread over lines, so it equals the MRP.
func UnitPrice(mrp decimal.Decimal) decimal.Decimal {
	return mrp
}

// Round2 rounds half away from zero to two places.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ValidDiscount reports whether p lies in [0, 100].
func ValidDiscount(p decimal.Decimal) bool {
	return !p.IsNegative() && p.LessThanOrEqual(hundred)
}
