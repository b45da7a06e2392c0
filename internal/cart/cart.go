// Package cart holds the concrete cart fed to the totals engine: items, fees,
// coupons, the customer and the shipping packages built from them.
package cart

import (
	"context"
	"sort"

	"github.com/noah-isme/storeengine/internal/discount"
	"github.com/noah-isme/storeengine/internal/money"
	"github.com/noah-isme/storeengine/internal/shipping"
	"github.com/noah-isme/storeengine/internal/tax"
	"github.com/noah-isme/storeengine/internal/totals"
)

// Customer is the cart customer. It satisfies tax.Customer.
type Customer struct {
	VATExempt bool         `json:"vatExempt"`
	Billing   tax.Location `json:"billing"`
	Shipping  tax.Location `json:"shipping"`
}

func (c *Customer) IsVATExempt() bool              { return c.VATExempt }
func (c *Customer) BillingLocation() tax.Location  { return c.Billing }
func (c *Customer) ShippingLocation() tax.Location { return c.Shipping }

// Item is a cart line. UnitPrice is in display units.
type Item struct {
	Key           string      `json:"key" validate:"required,max=64"`
	ProductID     int64       `json:"productId"`
	Quantity      int         `json:"quantity" validate:"gte=0"`
	UnitPrice     money.Money `json:"unitPrice"`
	TaxClass      string      `json:"taxClass,omitempty"`
	Taxable       bool        `json:"taxable"`
	ShippingClass string      `json:"shippingClass,omitempty"`
	// Virtual items never ship.
	Virtual bool `json:"virtual,omitempty"`

	Totals totals.LineTotals `json:"totals"`
}

// Fee is an extra charge. A negative amount is a discount.
type Fee struct {
	Key      string      `json:"key" validate:"required,max=64"`
	Name     string      `json:"name"`
	Amount   money.Money `json:"amount"`
	Taxable  bool        `json:"taxable"`
	TaxClass string      `json:"taxClass,omitempty"`

	Totals totals.FeeTotals `json:"totals"`
}

// Result holds every computed cart total in display units.
type Result struct {
	Subtotal            money.Money            `json:"subtotal"`
	SubtotalTax         money.Money            `json:"subtotalTax"`
	DiscountTotal       money.Money            `json:"discountTotal"`
	DiscountTax         money.Money            `json:"discountTax"`
	CouponDiscounts     map[string]money.Money `json:"couponDiscounts,omitempty"`
	CouponDiscountTaxes map[string]money.Money `json:"couponDiscountTaxes,omitempty"`
	ContentsTotal       money.Money            `json:"contentsTotal"`
	ContentsTax         money.Money            `json:"contentsTax"`
	ContentsTaxes       money.Taxes            `json:"contentsTaxes,omitempty"`
	FeesTotal           money.Money            `json:"feesTotal"`
	FeesTax             money.Money            `json:"feesTax"`
	FeesTaxes           money.Taxes            `json:"feesTaxes,omitempty"`
	ShippingTotal       money.Money            `json:"shippingTotal"`
	ShippingTax         money.Money            `json:"shippingTax"`
	ShippingTaxes       money.Taxes            `json:"shippingTaxes,omitempty"`
	TotalTax            money.Money            `json:"totalTax"`
	Total               money.Money            `json:"total"`
}

// RateCalculator resolves shipping rates for packages.
type RateCalculator interface {
	CalculateShipping(ctx context.Context, sessionID string, packages []shipping.Package) []shipping.Package
}

// Cart implements totals.Cart.
type Cart struct {
	SessionID      string
	Lines          []Item
	FeeLines       []Fee
	AppliedCoupons []discount.Coupon
	Shopper        *Customer
	// DisplayPricesIncTax is the store display option free shipping
	// thresholds honour.
	DisplayPricesIncTax bool
	// ChosenRates holds the selected rate id of each package. Missing or
	// stale choices fall back to the first offered rate.
	ChosenRates []string
	Packages    []shipping.Package

	Result Result

	rates RateCalculator
}

var _ totals.Cart = (*Cart)(nil)

// Valid reports whether c can be totalled. A nil *Cart cannot.
func (c *Cart) Valid() bool { return c != nil }

// SetRateCalculator attaches the shipping rate source.
func (c *Cart) SetRateCalculator(rc RateCalculator) { c.rates = rc }

func (c *Cart) Items() []totals.Item {
	out := make([]totals.Item, 0, len(c.Lines))
	for _, it := range c.Lines {
		out = append(out, totals.Item{
			Key:       it.Key,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			TaxClass:  it.TaxClass,
			Taxable:   it.Taxable,
		})
	}
	return out
}

func (c *Cart) Fees(context.Context) []totals.Fee {
	out := make([]totals.Fee, 0, len(c.FeeLines))
	for _, f := range c.FeeLines {
		out = append(out, totals.Fee{Key: f.Key, Name: f.Name, Amount: f.Amount, Taxable: f.Taxable, TaxClass: f.TaxClass})
	}
	return out
}

func (c *Cart) Coupons() []discount.Coupon { return c.AppliedCoupons }

// Customer returns a nil interface, not a typed nil, when the cart has no
// customer.
func (c *Cart) Customer() tax.Customer {
	if c.Shopper == nil {
		return nil
	}
	return c.Shopper
}

// NeedsShipping reports whether any line has to be shipped.
func (c *Cart) NeedsShipping() bool {
	for _, it := range c.Lines {
		if it.Quantity > 0 && !it.Virtual {
			return true
		}
	}
	return false
}

func (c *Cart) ShowShipping() bool {
	return c.rates != nil && c.NeedsShipping()
}

// CalculateShipping builds the packages, resolves their rates and returns
// the chosen rate of every package that has one.
func (c *Cart) CalculateShipping(ctx context.Context) []totals.ShippingLine {
	c.Packages = nil
	if c.rates == nil {
		return nil
	}
	c.Packages = c.rates.CalculateShipping(ctx, c.SessionID, c.BuildPackages())

	chosen := make([]string, len(c.Packages))
	var lines []totals.ShippingLine
	for i, pkg := range c.Packages {
		if len(pkg.Rates) == 0 {
			continue
		}
		rate := pkg.Rates[0]
		if i < len(c.ChosenRates) {
			if r, ok := shipping.FindRate(pkg.Rates, c.ChosenRates[i]); ok {
				rate = r
			}
		}
		chosen[i] = rate.ID
		lines = append(lines, totals.ShippingLine{Key: rate.ID, Cost: rate.Cost, Taxes: rate.Taxes})
	}
	c.ChosenRates = chosen
	return lines
}

// BuildPackages groups every shippable line into a single package. Line
// totals must already be computed.
func (c *Cart) BuildPackages() []shipping.Package {
	if !c.NeedsShipping() {
		return nil
	}
	pkg := shipping.Package{
		ContentsCost: money.Zero,
		Cart: shipping.CartSummary{
			Subtotal:      c.Result.Subtotal,
			DiscountTotal: c.Result.DiscountTotal,
			DiscountTax:   c.Result.DiscountTax,
			DisplayIncTax: c.DisplayPricesIncTax,
		},
		Customer:       c.Customer(),
		CartTaxClasses: c.taxClasses(),
	}
	for _, it := range c.Lines {
		if it.Quantity <= 0 || it.Virtual {
			continue
		}
		pkg.Contents = append(pkg.Contents, shipping.Item{
			Key:           it.Key,
			ProductID:     it.ProductID,
			Quantity:      it.Quantity,
			LineTotal:     it.Totals.Total,
			LineTax:       it.Totals.TotalTax,
			TaxClass:      it.TaxClass,
			ShippingClass: it.ShippingClass,
		})
		pkg.ContentsCost = pkg.ContentsCost.Add(it.Totals.Total)
	}
	for _, cp := range c.AppliedCoupons {
		pkg.AppliedCoupons = append(pkg.AppliedCoupons, shipping.AppliedCoupon{Code: cp.Code, FreeShipping: cp.FreeShipping})
	}
	if c.Shopper != nil {
		loc := c.Shopper.Shipping
		pkg.Destination = shipping.Destination{Country: loc.Country, State: loc.State, Postcode: loc.Postcode, City: loc.City}
	}
	return []shipping.Package{pkg}
}

func (c *Cart) taxClasses() []string {
	seen := map[string]bool{}
	// Non-nil even when empty: no taxable items means no shipping tax.
	out := []string{}
	for _, it := range c.Lines {
		if !it.Taxable || it.Quantity <= 0 {
			continue
		}
		class := tax.NormalizeClass(it.TaxClass)
		if !seen[class] {
			seen[class] = true
			out = append(out, class)
		}
	}
	sort.Strings(out)
	return out
}

func (c *Cart) SetItemLine(key string, line totals.LineTotals) {
	for i := range c.Lines {
		if c.Lines[i].Key == key {
			c.Lines[i].Totals = line
			return
		}
	}
}

func (c *Cart) SetFeeLine(key string, fee totals.FeeTotals) {
	for i := range c.FeeLines {
		if c.FeeLines[i].Key == key {
			c.FeeLines[i].Totals = fee
			return
		}
	}
}

func (c *Cart) SetSubtotal(subtotal, taxTotal money.Money) {
	c.Result.Subtotal, c.Result.SubtotalTax = subtotal, taxTotal
}

func (c *Cart) SetDiscountTotals(total, taxTotal money.Money, byCoupon, taxByCoupon map[string]money.Money) {
	c.Result.DiscountTotal, c.Result.DiscountTax = total, taxTotal
	c.Result.CouponDiscounts, c.Result.CouponDiscountTaxes = byCoupon, taxByCoupon
}

func (c *Cart) SetContentsTotals(total, taxTotal money.Money, taxes money.Taxes) {
	c.Result.ContentsTotal, c.Result.ContentsTax, c.Result.ContentsTaxes = total, taxTotal, taxes
}

func (c *Cart) SetFeesTotals(total, taxTotal money.Money, taxes money.Taxes) {
	c.Result.FeesTotal, c.Result.FeesTax, c.Result.FeesTaxes = total, taxTotal, taxes
}

func (c *Cart) SetShippingTotals(total, taxTotal money.Money, taxes money.Taxes) {
	c.Result.ShippingTotal, c.Result.ShippingTax, c.Result.ShippingTaxes = total, taxTotal, taxes
}

func (c *Cart) SetTotalTax(v money.Money) { c.Result.TotalTax = v }

func (c *Cart) SetTotal(v money.Money) { c.Result.Total = v }

// Calculate runs the totals engine over the cart. Shipping is resolved
// between the item and fee phases through the attached rate calculator.
func (c *Cart) Calculate(ctx context.Context, calc *tax.Calculator, opts totals.Options) error {
	ct, err := totals.New(c, calc, opts)
	if err != nil {
		return err
	}
	ct.Calculate(ctx)
	return nil
}
