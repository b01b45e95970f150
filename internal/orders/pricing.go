package orders

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// ComputeTotals derives the service fee and final total from the subtotal and
// discount. The fee applies to the discounted amount and fractional cents
// truncate in the buyer's favor.
func ComputeTotals(subtotalCents, discountCents int64, serviceFeePercent decimal.Decimal) Totals {
	if discountCents > subtotalCents {
		discountCents = subtotalCents
	}
	base := subtotalCents - discountCents
	fee := decimal.NewFromInt(base).Mul(serviceFeePercent).Div(hundred).IntPart()
	return Totals{
		SubtotalCents:   subtotalCents,
		DiscountCents:   discountCents,
		ServiceFeeCents: fee,
		TotalCents:      base + fee,
	}
}
