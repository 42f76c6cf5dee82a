package billing

import (
	"github.com/shopspring/decimal"

	"durgatraders/m/domain"
)

// Totals are the monetary figures of a bill, rounded to paise.
type Totals struct {
	TotalAmount decimal.Decimal
	Discount    decimal.Decimal
	TaxAmount   decimal.Decimal
	FinalAmount decimal.Decimal
}

// ComputeTotals sums quantity * unit price over the lines and applies discount and tax.
// Line totals are filled in on items as a side effect.
func ComputeTotals(items []domain.LineItem, discount, tax decimal.Decimal) Totals {
	total := decimal.Zero
	for i := range items {
		line := items[i].UnitPrice.Mul(decimal.NewFromInt(items[i].Quantity))
		items[i].LineTotal = line.Round(2)
		total = total.Add(line)
	}
	total = total.Round(2)
	discount = discount.Round(2)
	tax = tax.Round(2)
	return Totals{
		TotalAmount: total,
		Discount:    discount,
		TaxAmount:   tax,
		FinalAmount: total.Sub(discount).Add(tax).Round(2),
	}
}
