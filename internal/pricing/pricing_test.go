package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimalEqual(t *testing.T, want, got decimal.Decimal, label string) {
	t.Helper()
	assert.True(t, want.Equal(got), "%s: want %s, got %s", label, want, got)
}

func TestCompute_SingleItemWithDiscountAndTax(t *testing.T) {
	// 2 units at 100.00, 10% discount, 18% tax:
	// subtotal 200, discount 20, tax (200-20)*0.18 = 32.4, total 212.4.
	totals := Compute([]Item{
		{
			UnitPrice:       dec("100.00"),
			Quantity:        2,
			DiscountPercent: dec("10"),
			TaxRatePercent:  dec("18"),
		},
	})

	assertDecimalEqual(t, dec("200"), totals.Subtotal, "subtotal")
	assertDecimalEqual(t, dec("20"), totals.TotalDiscount, "discount")
	assertDecimalEqual(t, dec("32.4"), totals.TotalTax, "tax")
	assertDecimalEqual(t, dec("212.4"), totals.TotalAmount, "total")
}

func TestCompute_MultipleItems(t *testing.T) {
	totals := Compute([]Item{
		{UnitPrice: dec("50.00"), Quantity: 1},
		{UnitPrice: dec("25.00"), Quantity: 4, DiscountPercent: dec("50")},
		{UnitPrice: dec("10.00"), Quantity: 3, TaxRatePercent: dec("10")},
	})

	// subtotals: 50 + 100 + 30 = 180
	// discounts: 0 + 50 + 0 = 50
	// tax: 0 + 0 + 3 = 3
	assertDecimalEqual(t, dec("180"), totals.Subtotal, "subtotal")
	assertDecimalEqual(t, dec("50"), totals.TotalDiscount, "discount")
	assertDecimalEqual(t, dec("3"), totals.TotalTax, "tax")
	assertDecimalEqual(t, dec("133"), totals.TotalAmount, "total")
}

func TestCompute_TaxAppliesAfterDiscount(t *testing.T) {
	totals := Compute([]Item{
		{
			UnitPrice:       dec("100"),
			Quantity:        1,
			DiscountPercent: dec("100"),
			TaxRatePercent:  dec("20"),
		},
	})

	// A fully discounted line carries no tax.
	assertDecimalEqual(t, dec("0"), totals.TotalTax, "tax")
	assertDecimalEqual(t, dec("0"), totals.TotalAmount, "total")
}

func TestCompute_FractionalPrices(t *testing.T) {
	totals := Compute([]Item{
		{UnitPrice: dec("19.99"), Quantity: 3},
	})

	assertDecimalEqual(t, dec("59.97"), totals.Subtotal, "subtotal")
	assertDecimalEqual(t, dec("59.97"), totals.TotalAmount, "total")
}

func TestCompute_EmptyItems(t *testing.T) {
	totals := Compute(nil)

	assertDecimalEqual(t, decimal.Zero, totals.Subtotal, "subtotal")
	assertDecimalEqual(t, decimal.Zero, totals.TotalAmount, "total")
}

func TestCompute_InvariantHolds(t *testing.T) {
	totals := Compute([]Item{
		{UnitPrice: dec("33.33"), Quantity: 7, DiscountPercent: dec("12.5"), TaxRatePercent: dec("7.25")},
		{UnitPrice: dec("0.01"), Quantity: 1000, TaxRatePercent: dec("18")},
	})

	want := totals.Subtotal.Sub(totals.TotalDiscount).Add(totals.TotalTax)
	assertDecimalEqual(t, want, totals.TotalAmount, "total = subtotal - discount + tax")
}
