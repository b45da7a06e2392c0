package shipping_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storeengine/internal/money"
	"github.com/noah-isme/storeengine/internal/shipping"
	"github.com/noah-isme/storeengine/internal/tax"
)

type stubTax struct {
	enabled bool
	// rates per tax class; nil class uses "".
	rates map[string][]tax.MatchedRate
}

func (s stubTax) Enabled() bool { return s.enabled }

func (s stubTax) GetShippingTaxRates(_ context.Context, class *string, _ tax.Customer, _ []string) []tax.MatchedRate {
	key := ""
	if class != nil {
		key = *class
	}
	return s.rates[key]
}

type exemptCustomer struct{ exempt bool }

func (c exemptCustomer) IsVATExempt() bool              { return c.exempt }
func (c exemptCustomer) BillingLocation() tax.Location  { return tax.Location{} }
func (c exemptCustomer) ShippingLocation() tax.Location { return tax.Location{} }

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func requireMoney(t *testing.T, want string, got money.Money) {
	t.Helper()
	require.True(t, dec(want).Equal(got), "want %s got %s", want, got)
}

var tenPercent = stubTax{enabled: true, rates: map[string][]tax.MatchedRate{
	"":        {{ID: 1, Rate: dec("10"), Shipping: true}},
	"reduced": {{ID: 2, Rate: dec("5"), Shipping: true}},
}}

func build(t *testing.T, methodID string, settings map[string]string, taxes shipping.TaxResolver) shipping.Method {
	t.Helper()
	m, err := shipping.NewRegistry().Build(shipping.ZoneMethod{InstanceID: 7, MethodID: methodID, Enabled: true, Settings: settings},
		shipping.Deps{Tax: taxes, PriceDecimals: 2})
	require.NoError(t, err)
	return m
}

func pkgWith(items ...shipping.Item) *shipping.Package {
	return &shipping.Package{Contents: items, Destination: shipping.Destination{Country: "US"}}
}

func TestAddRateDefaultsAndDrops(t *testing.T) {
	ctx := context.Background()
	b := &shipping.BaseMethod{ID: "flat_rate", Instance: 3, MethodTitle: "Flat", Enabled: true, TaxStatus: shipping.TaxStatusTaxable, PriceDecimals: 2, Tax: tenPercent}

	b.AddRate(ctx, shipping.RateArgs{Cost: dec("5.005")})
	b.AddRate(ctx, shipping.RateArgs{ID: "flat_rate:3:express", Label: "Express", Cost: dec("9")})
	rates := b.Rates()
	require.Len(t, rates, 2)
	require.Equal(t, "flat_rate:3", rates[0].ID)
	require.Equal(t, "Flat", rates[0].Label)
	requireMoney(t, "5.01", rates[0].Cost)
	requireMoney(t, "0.5005", rates[0].TaxTotal())
	require.Equal(t, "flat_rate:3:express", rates[1].ID)

	// same id again replaces the first rate and keeps its position
	b.AddRate(ctx, shipping.RateArgs{Label: "Flat (updated)", Cost: dec("6")})
	rates = b.Rates()
	require.Len(t, rates, 2)
	require.Equal(t, "flat_rate:3", rates[0].ID)
	require.Equal(t, "Flat (updated)", rates[0].Label)
	requireMoney(t, "6", rates[0].Cost)

	unnamed := &shipping.BaseMethod{}
	unnamed.AddRate(ctx, shipping.RateArgs{Cost: dec("1")})
	require.Empty(t, unnamed.Rates())

	b.ResetRates()
	require.Empty(t, b.Rates())
}

func TestAddRateTaxRules(t *testing.T) {
	ctx := context.Background()
	newBase := func(status string, taxes shipping.TaxResolver) *shipping.BaseMethod {
		return &shipping.BaseMethod{ID: "m", MethodTitle: "M", TaxStatus: status, PriceDecimals: 2, Tax: taxes}
	}

	t.Run("not taxable status", func(t *testing.T) {
		b := newBase(shipping.TaxStatusNone, tenPercent)
		b.AddRate(ctx, shipping.RateArgs{Cost: dec("10")})
		require.Empty(t, b.Rates()[0].Taxes)
	})
	t.Run("taxes disabled", func(t *testing.T) {
		b := newBase(shipping.TaxStatusTaxable, stubTax{rates: tenPercent.rates})
		b.AddRate(ctx, shipping.RateArgs{Cost: dec("10")})
		require.Empty(t, b.Rates()[0].Taxes)
	})
	t.Run("vat exempt customer", func(t *testing.T) {
		b := newBase(shipping.TaxStatusTaxable, tenPercent)
		pkg := pkgWith()
		pkg.Customer = exemptCustomer{exempt: true}
		b.AddRate(ctx, shipping.RateArgs{Cost: dec("10"), Package: pkg})
		require.Empty(t, b.Rates()[0].Taxes)
	})
	t.Run("no tax flag", func(t *testing.T) {
		b := newBase(shipping.TaxStatusTaxable, tenPercent)
		b.AddRate(ctx, shipping.RateArgs{Cost: dec("10"), NoTax: true})
		require.Empty(t, b.Rates()[0].Taxes)
	})
	t.Run("explicit taxes kept", func(t *testing.T) {
		b := newBase(shipping.TaxStatusTaxable, tenPercent)
		b.AddRate(ctx, shipping.RateArgs{Cost: dec("10"), Taxes: money.Taxes{{RateID: 9, Amount: dec("3")}}})
		requireMoney(t, "3", b.Rates()[0].Taxes.Get(9))
	})
	t.Run("per order", func(t *testing.T) {
		b := newBase(shipping.TaxStatusTaxable, tenPercent)
		b.AddRate(ctx, shipping.RateArgs{Cost: dec("10")})
		requireMoney(t, "1", b.Rates()[0].Taxes.Get(1))
	})
	t.Run("per item uses item classes", func(t *testing.T) {
		b := newBase(shipping.TaxStatusTaxable, tenPercent)
		pkg := pkgWith(
			shipping.Item{Key: "a", Quantity: 1, TaxClass: ""},
			shipping.Item{Key: "b", Quantity: 1, TaxClass: "reduced"},
		)
		b.AddRate(ctx, shipping.RateArgs{
			CalcTax:   shipping.CalcTaxPerItem,
			ItemCosts: []shipping.ItemCost{{Key: "a", Cost: dec("10")}, {Key: "b", Cost: dec("20")}},
			Cost:      dec("999"),
			Package:   pkg,
		})
		r := b.Rates()[0]
		requireMoney(t, "30", r.Cost)
		requireMoney(t, "1", r.Taxes.Get(1))
		requireMoney(t, "1", r.Taxes.Get(2))
	})
}

func TestFlatRate(t *testing.T) {
	ctx := context.Background()
	pkg := pkgWith(
		shipping.Item{Key: "a", Quantity: 2, ShippingClass: "bulky"},
		shipping.Item{Key: "b", Quantity: 1, ShippingClass: "fragile"},
		shipping.Item{Key: "c", Quantity: 1},
	)
	cases := []struct {
		name     string
		settings map[string]string
		want     string
	}{
		{name: "fixed", settings: map[string]string{"cost": "5"}, want: "5"},
		{name: "per item", settings: map[string]string{"cost": "5", "per_item_cost": "1.25"}, want: "10"},
		{name: "per class", settings: map[string]string{"cost": "1", "class_cost_bulky": "4", "class_cost_fragile": "3", "no_class_cost": "2"}, want: "10"},
		{name: "per order highest class", settings: map[string]string{"type": "order", "class_cost_bulky": "4", "class_cost_fragile": "3", "no_class_cost": "2"}, want: "4"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := build(t, shipping.MethodFlatRate, tc.settings, nil)
			rates := shipping.RatesForPackage(ctx, m, pkg)
			require.Len(t, rates, 1)
			requireMoney(t, tc.want, rates[0].Cost)
			require.Equal(t, "flat_rate:7", rates[0].ID)
		})
	}

	t.Run("no costs configured", func(t *testing.T) {
		m := build(t, shipping.MethodFlatRate, nil, nil)
		require.Empty(t, shipping.RatesForPackage(ctx, m, pkg))
	})
	t.Run("invalid cost", func(t *testing.T) {
		_, err := shipping.NewFlatRate(shipping.ZoneMethod{MethodID: shipping.MethodFlatRate, Settings: map[string]string{"cost": "[qty] * 2"}}, shipping.Deps{})
		require.Error(t, err)
	})
	t.Run("disabled", func(t *testing.T) {
		m, err := shipping.NewFlatRate(shipping.ZoneMethod{MethodID: shipping.MethodFlatRate, Settings: map[string]string{"cost": "5"}}, shipping.Deps{})
		require.NoError(t, err)
		require.Empty(t, shipping.RatesForPackage(ctx, m, pkg))
	})
}

func TestFreeShippingRequirements(t *testing.T) {
	ctx := context.Background()
	withCart := func(subtotal, discount string, coupon bool) *shipping.Package {
		pkg := pkgWith(shipping.Item{Key: "a", Quantity: 1})
		pkg.Cart = shipping.CartSummary{Subtotal: dec(subtotal), DiscountTotal: dec(discount)}
		if coupon {
			pkg.AppliedCoupons = []shipping.AppliedCoupon{{Code: "SHIPFREE", FreeShipping: true}}
		}
		return pkg
	}
	cases := []struct {
		name     string
		settings map[string]string
		pkg      *shipping.Package
		want     bool
	}{
		{name: "always", settings: nil, pkg: withCart("1", "0", false), want: true},
		{name: "coupon missing", settings: map[string]string{"requires": "coupon"}, pkg: withCart("100", "0", false), want: false},
		{name: "coupon present", settings: map[string]string{"requires": "coupon"}, pkg: withCart("1", "0", true), want: true},
		{name: "min met", settings: map[string]string{"requires": "min_amount", "min_amount": "50"}, pkg: withCart("60", "5", false), want: true},
		{name: "min missed after discount", settings: map[string]string{"requires": "min_amount", "min_amount": "50"}, pkg: withCart("52", "5", false), want: false},
		{name: "min ignoring discounts", settings: map[string]string{"requires": "min_amount", "min_amount": "50", "ignore_discounts": "yes"}, pkg: withCart("52", "5", false), want: true},
		{name: "either", settings: map[string]string{"requires": "either", "min_amount": "50"}, pkg: withCart("10", "0", true), want: true},
		{name: "both missing min", settings: map[string]string{"requires": "both", "min_amount": "50"}, pkg: withCart("10", "0", true), want: false},
		{name: "both", settings: map[string]string{"requires": "both", "min_amount": "50"}, pkg: withCart("80", "0", true), want: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := build(t, shipping.MethodFreeShipping, tc.settings, tenPercent)
			require.Equal(t, tc.want, m.IsAvailable(tc.pkg))
			rates := shipping.RatesForPackage(ctx, m, tc.pkg)
			if !tc.want {
				require.Empty(t, rates)
				return
			}
			require.Len(t, rates, 1)
			require.True(t, rates[0].Cost.IsZero())
			require.Empty(t, rates[0].Taxes)
		})
	}

	_, err := shipping.NewFreeShipping(shipping.ZoneMethod{Settings: map[string]string{"requires": "moon_phase"}}, shipping.Deps{})
	require.Error(t, err)
}

func TestLocalPickup(t *testing.T) {
	m := build(t, shipping.MethodLocalPickup, map[string]string{"cost": "2", "title": "Collect in store"}, tenPercent)
	rates := shipping.RatesForPackage(context.Background(), m, pkgWith(shipping.Item{Key: "a", Quantity: 1}))
	require.Len(t, rates, 1)
	require.Equal(t, "Collect in store", rates[0].Label)
	requireMoney(t, "2", rates[0].Cost)
	requireMoney(t, "0.2", rates[0].TaxTotal())
}

func TestRegistry(t *testing.T) {
	reg := shipping.NewRegistry()
	require.Equal(t, []string{"flat_rate", "free_shipping", "local_pickup"}, reg.IDs())
	_, err := reg.Build(shipping.ZoneMethod{MethodID: "drone"}, shipping.Deps{})
	require.ErrorIs(t, err, shipping.ErrUnknownMethod)

	reg.Register("drone", shipping.NewLocalPickup)
	require.True(t, reg.Has("drone"))
	m, err := reg.Build(shipping.ZoneMethod{MethodID: "drone", Enabled: true}, shipping.Deps{})
	require.NoError(t, err)
	require.Equal(t, "drone", m.MethodID())
}

func TestMergeRatesFirstWins(t *testing.T) {
	a := shipping.Rate{ID: "flat_rate:1", Cost: dec("5")}
	b := shipping.Rate{ID: "flat_rate:1", Cost: dec("9")}
	c := shipping.Rate{ID: "local_pickup:2", Cost: dec("0")}
	merged := shipping.MergeRates(nil, a, b, c)
	require.Len(t, merged, 2)
	requireMoney(t, "5", merged[0].Cost)
	require.Equal(t, "local_pickup:2", merged[1].ID)
}
