package totals

import (
	"github.com/noah-isme/storeengine/internal/money"
)

// ItemTotals is the rounding policy shared by cart and order totals. When
// RoundAtSubtotal is set, line values keep full precision and only the
// aggregate is rounded.
type ItemTotals struct {
	RoundAtSubtotal bool
	TaxRounding     money.RoundingMode
}

// RoundItemSubtotal rounds a cents amount to a whole cent unless rounding is
// deferred to the subtotal.
func (r ItemTotals) RoundItemSubtotal(v money.Money) money.Money {
	if !r.RoundAtSubtotal {
		return money.Round(v, 0)
	}
	return v
}

// RoundLineTax rounds a cents tax amount using the tax rounding mode unless
// rounding is deferred to the subtotal.
func (r ItemTotals) RoundLineTax(v money.Money) money.Money {
	if !r.RoundAtSubtotal {
		return money.RoundTax(v, 0, r.TaxRounding)
	}
	return v
}

// RoundedItemsTotal sums values after applying RoundItemSubtotal to each.
func (r ItemTotals) RoundedItemsTotal(values []money.Money) money.Money {
	total := money.Zero
	for _, v := range values {
		total = total.Add(r.RoundItemSubtotal(v))
	}
	return total
}

// SumLineTaxes applies RoundLineTax to every rate and sums the result.
func (r ItemTotals) SumLineTaxes(taxes money.Taxes) money.Money {
	return taxes.Map(r.RoundLineTax).Sum()
}
