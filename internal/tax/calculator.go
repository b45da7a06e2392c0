package tax

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/storeengine/internal/money"
)

// Sources for the customer tax location.
const (
	BasedOnShipping = "shipping"
	BasedOnBilling  = "billing"
	BasedOnBase     = "base"
)

// InheritClass makes shipping inherit the tax class of the cart items.
const InheritClass = "inherit"

// ratePrecision is the number of decimals kept on a computed per-rate tax
// amount in the cents domain.
const ratePrecision = 6

var hundred = decimal.NewFromInt(100)

// Customer exposes the data needed to resolve a tax location.
type Customer interface {
	IsVATExempt() bool
	BillingLocation() Location
	ShippingLocation() Location
}

// Settings mirrors the store tax options.
type Settings struct {
	Enabled          bool
	PricesIncludeTax bool
	BasedOn          string
	ShippingTaxClass string
	Classes          []string
	Base             Location
	Rounding         money.RoundingMode
}

// Calculator resolves tax rates for locations and computes tax amounts.
type Calculator struct {
	Settings Settings
	Store    RateStore
	Logger   zerolog.Logger
}

// NewCalculator constructs a calculator backed by store.
func NewCalculator(settings Settings, store RateStore, logger zerolog.Logger) *Calculator {
	if settings.BasedOn == "" {
		settings.BasedOn = BasedOnShipping
	}
	if settings.ShippingTaxClass == "" {
		settings.ShippingTaxClass = InheritClass
	}
	return &Calculator{Settings: settings, Store: store, Logger: logger}
}

// Enabled reports whether taxes are calculated at all.
func (c *Calculator) Enabled() bool {
	return c != nil && c.Settings.Enabled
}

// PricesIncludeTax reports whether catalog prices are entered tax inclusive.
func (c *Calculator) PricesIncludeTax() bool {
	return c != nil && c.Settings.PricesIncludeTax
}

// Location returns the jurisdiction used for a customer. Without a customer,
// or when the chosen address has no country, the store base applies.
func (c *Calculator) Location(customer Customer) Location {
	if customer == nil {
		return c.Settings.Base
	}
	var loc Location
	switch c.Settings.BasedOn {
	case BasedOnBase:
		return c.Settings.Base
	case BasedOnBilling:
		loc = customer.BillingLocation()
	default:
		loc = customer.ShippingLocation()
	}
	if strings.TrimSpace(loc.Country) == "" {
		return c.Settings.Base
	}
	return loc
}

// FindRates returns the rates of class that apply to loc.
func (c *Calculator) FindRates(ctx context.Context, loc Location, class string) []MatchedRate {
	return c.find(ctx, loc, class, false)
}

// FindShippingRates is FindRates restricted to rates flagged for shipping.
func (c *Calculator) FindShippingRates(ctx context.Context, loc Location, class string) []MatchedRate {
	return c.find(ctx, loc, class, true)
}

func (c *Calculator) find(ctx context.Context, loc Location, class string, shippingOnly bool) []MatchedRate {
	if c == nil || c.Store == nil {
		return nil
	}
	class = NormalizeClass(class)
	rates, err := c.Store.RatesForClass(ctx, class)
	if err != nil {
		c.Logger.Warn().Err(err).Str("tax_class", class).Msg("load tax rates")
		return nil
	}
	return matchRates(rates, loc, shippingOnly)
}

// GetRates returns the rates of class for the customer's tax location.
func (c *Calculator) GetRates(ctx context.Context, class string, customer Customer) []MatchedRate {
	return c.FindRates(ctx, c.Location(customer), class)
}

// GetBaseTaxRates returns the rates of class at the store base location.
func (c *Calculator) GetBaseTaxRates(ctx context.Context, class string) []MatchedRate {
	return c.FindRates(ctx, c.Settings.Base, class)
}

// GetShippingTaxRates returns the rates applied to shipping. When class is
// nil and shipping inherits, the class is derived from cartClasses: a nil
// slice means there is no cart context, an empty one that no cart item is
// taxable.
func (c *Calculator) GetShippingTaxRates(ctx context.Context, class *string, customer Customer, cartClasses []string) []MatchedRate {
	if c == nil {
		return nil
	}
	if setting := strings.TrimSpace(c.Settings.ShippingTaxClass); setting != InheritClass {
		fixed := NormalizeClass(setting)
		class = &fixed
	}
	loc := c.Location(customer)

	var matched []MatchedRate
	switch {
	case class != nil:
		matched = c.FindShippingRates(ctx, loc, *class)
	case cartClasses != nil:
		classes := uniqueClasses(cartClasses)
		if len(classes) == 0 {
			return nil
		}
		if len(classes) > 1 && !contains(classes, StandardClass) {
			for _, candidate := range c.Settings.Classes {
				if contains(classes, NormalizeClass(candidate)) {
					matched = c.FindShippingRates(ctx, loc, candidate)
					break
				}
			}
		} else if len(classes) == 1 {
			matched = c.FindShippingRates(ctx, loc, classes[0])
		}
	}
	if len(matched) == 0 {
		matched = c.FindShippingRates(ctx, loc, StandardClass)
	}
	return matched
}

// CalcTax computes the tax of price for every rate. Inclusive prices have the
// tax backed out of them, exclusive prices have it added on top.
func CalcTax(price decimal.Decimal, rates []MatchedRate, inclusive bool) money.Taxes {
	if inclusive {
		return CalcInclusiveTax(price, rates)
	}
	return CalcExclusiveTax(price, rates)
}

// CalcShippingTax computes tax on a shipping cost, which is never tax inclusive.
func CalcShippingTax(price decimal.Decimal, rates []MatchedRate) money.Taxes {
	return CalcExclusiveTax(price, rates)
}

// CalcInclusiveTax backs the tax out of a tax inclusive price.
func CalcInclusiveTax(price decimal.Decimal, rates []MatchedRate) money.Taxes {
	if len(rates) == 0 {
		return nil
	}
	taxes := make(money.Taxes, 0, len(rates))
	var compound, regular []MatchedRate
	regularSum := decimal.Zero
	for _, r := range rates {
		taxes = append(taxes, money.Line{RateID: r.ID, Amount: decimal.Zero})
		if r.Compound {
			compound = append(compound, r)
			continue
		}
		regular = append(regular, r)
		regularSum = regularSum.Add(r.Rate)
	}
	regularTaxRate := decimal.NewFromInt(1).Add(regularSum.Div(hundred))

	nonCompoundPrice := price
	for i := len(compound) - 1; i >= 0; i-- {
		r := compound[i]
		divisor := decimal.NewFromInt(1).Add(r.Rate.Div(hundred))
		amount := nonCompoundPrice.Sub(nonCompoundPrice.Div(divisor))
		taxes = taxes.Add(r.ID, amount)
		nonCompoundPrice = nonCompoundPrice.Sub(amount)
	}
	for _, r := range regular {
		theRate := r.Rate.Div(hundred).Div(regularTaxRate)
		netPrice := price.Sub(theRate.Mul(nonCompoundPrice))
		taxes = taxes.Add(r.ID, price.Sub(netPrice))
	}
	return taxes.Map(roundRate)
}

// CalcExclusiveTax computes tax on top of a tax exclusive price. Compound
// rates apply to the price plus every tax computed before them.
func CalcExclusiveTax(price decimal.Decimal, rates []MatchedRate) money.Taxes {
	if len(rates) == 0 {
		return nil
	}
	taxes := make(money.Taxes, 0, len(rates))
	for _, r := range rates {
		taxes = append(taxes, money.Line{RateID: r.ID, Amount: decimal.Zero})
	}
	for _, r := range rates {
		if r.Compound {
			continue
		}
		taxes = taxes.Add(r.ID, price.Mul(r.Rate).Div(hundred))
	}
	preCompound := taxes.Sum()
	for _, r := range rates {
		if !r.Compound {
			continue
		}
		amount := price.Add(preCompound).Mul(r.Rate).Div(hundred)
		for i := range taxes {
			if taxes[i].RateID == r.ID {
				taxes[i].Amount = amount
			}
		}
		preCompound = taxes.Sum()
	}
	return taxes.Map(roundRate)
}

func roundRate(v decimal.Decimal) decimal.Decimal {
	return v.Round(ratePrecision)
}

func uniqueClasses(classes []string) []string {
	out := make([]string, 0, len(classes))
	for _, class := range classes {
		class = NormalizeClass(class)
		if !contains(out, class) {
			out = append(out, class)
		}
	}
	return out
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
