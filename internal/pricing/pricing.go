// Package pricing computes line-item totals for recurring invoice templates.
//
// The functions here are pure and never touch storage; the service layer
// recomputes totals on every items change and the generator freezes them
// into ledger invoices.
package pricing

import (
	"github.com/shopspring/decimal"
)

// Item is the pricing-relevant slice of a template line item.
type Item struct {
	UnitPrice       decimal.Decimal
	Quantity        int32
	DiscountPercent decimal.Decimal
	TaxRatePercent  decimal.Decimal
}

// Totals holds the derived monetary fields of a template or invoice.
// Invariant: TotalAmount = Subtotal - TotalDiscount + TotalTax.
type Totals struct {
	Subtotal      decimal.Decimal
	TotalDiscount decimal.Decimal
	TotalTax      decimal.Decimal
	TotalAmount   decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// Compute derives totals from items.
//
// Per item: contribution = unitPrice * quantity,
// discount = contribution * discountPercent / 100,
// tax = (contribution - discount) * taxRatePercent / 100.
// Client-supplied totals are never trusted; this is the only source of the
// derived fields.
func Compute(items []Item) Totals {
	t := Totals{
		Subtotal:      decimal.Zero,
		TotalDiscount: decimal.Zero,
		TotalTax:      decimal.Zero,
		TotalAmount:   decimal.Zero,
	}

	for _, item := range items {
		contribution := item.UnitPrice.Mul(decimal.NewFromInt32(item.Quantity))
		discount := contribution.Mul(item.DiscountPercent).Div(hundred)
		tax := contribution.Sub(discount).Mul(item.TaxRatePercent).Div(hundred)

		t.Subtotal = t.Subtotal.Add(contribution)
		t.TotalDiscount = t.TotalDiscount.Add(discount)
		t.TotalTax = t.TotalTax.Add(tax)
	}

	t.TotalAmount = t.Subtotal.Sub(t.TotalDiscount).Add(t.TotalTax)
	return t
}
