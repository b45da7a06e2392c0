package shipping

import (
	"context"
	"strconv"
	"strings"

	"github.com/noah-isme/storeengine/internal/money"
	"github.com/noah-isme/storeengine/internal/tax"
)

// Features a method may declare.
const (
	FeatureShippingZones    = "shipping-zones"
	FeatureInstanceSettings = "instance-settings"
	FeatureSettings         = "settings"
)

// Tax calculation modes of AddRate.
const (
	CalcTaxPerOrder = "per_order"
	CalcTaxPerItem  = "per_item"
)

// TaxResolver resolves the tax rates applied to shipping costs.
type TaxResolver interface {
	Enabled() bool
	GetShippingTaxRates(ctx context.Context, class *string, customer tax.Customer, cartClasses []string) []tax.MatchedRate
}

// Method is a shipping method instance attached to a zone. CalculateShipping
// offers rates by calling AddRate on the embedded BaseMethod.
type Method interface {
	MethodID() string
	InstanceID() int64
	Title() string
	Supports(feature string) bool
	IsEnabled() bool
	IsAvailable(pkg *Package) bool
	CalculateShipping(ctx context.Context, pkg *Package)
	Rates() []Rate
	ResetRates()
}

// RatesForPackage resets m, lets it calculate when available and returns the
// rates it offered.
func RatesForPackage(ctx context.Context, m Method, pkg *Package) []Rate {
	m.ResetRates()
	if m.IsAvailable(pkg) {
		m.CalculateShipping(ctx, pkg)
	}
	return m.Rates()
}

// ItemCost is the shipping cost attributed to one package item.
type ItemCost struct {
	Key  string
	Cost money.Money
}

// RateArgs describes a rate passed to AddRate. Empty ID and Label default to
// the method rate id and title.
type RateArgs struct {
	ID    string
	Label string
	Cost  money.Money
	// ItemCosts, when set, replaces Cost with the sum of its entries. Per
	// item tax uses each item's tax class.
	ItemCosts []ItemCost
	// Taxes, when non-nil, is used as is.
	Taxes    money.Taxes
	NoTax    bool
	CalcTax  string
	MetaData map[string]string
	Package  *Package
}

// BaseMethod carries the state and helpers shared by every method.
type BaseMethod struct {
	ID            string
	Instance      int64
	MethodTitle   string
	Enabled       bool
	TaxStatus     string
	Features      []string
	PriceDecimals int32
	Tax           TaxResolver

	rates []Rate
}

// MethodID implements Method.
func (b *BaseMethod) MethodID() string { return b.ID }

// InstanceID implements Method.
func (b *BaseMethod) InstanceID() int64 { return b.Instance }

// Title implements Method.
func (b *BaseMethod) Title() string { return b.MethodTitle }

// IsEnabled implements Method.
func (b *BaseMethod) IsEnabled() bool { return b.Enabled }

// Rates implements Method.
func (b *BaseMethod) Rates() []Rate {
	out := make([]Rate, len(b.rates))
	copy(out, b.rates)
	return out
}

// ResetRates implements Method.
func (b *BaseMethod) ResetRates() { b.rates = nil }

// IsAvailable implements Method. Disabled methods offer nothing.
func (b *BaseMethod) IsAvailable(*Package) bool { return b.Enabled }

// Supports implements Method.
func (b *BaseMethod) Supports(feature string) bool {
	for _, f := range b.Features {
		if f == feature {
			return true
		}
	}
	return false
}

// RateID returns "method:instance" plus an optional ":suffix".
func (b *BaseMethod) RateID(suffix string) string {
	id := b.ID
	if b.Instance != 0 {
		id += ":" + strconv.FormatInt(b.Instance, 10)
	}
	if suffix != "" {
		id += ":" + suffix
	}
	return id
}

// IsTaxable reports whether rates of this method carry tax for customer.
func (b *BaseMethod) IsTaxable(customer tax.Customer) bool {
	if b.Tax == nil || !b.Tax.Enabled() || b.TaxStatus != TaxStatusTaxable {
		return false
	}
	return customer == nil || !customer.IsVATExempt()
}

// AddRate records a rate. Rates without an id or label are dropped and a rate
// with an id already recorded replaces it.
func (b *BaseMethod) AddRate(ctx context.Context, args RateArgs) {
	id := args.ID
	if id == "" {
		id = b.RateID("")
	}
	label := args.Label
	if label == "" {
		label = b.MethodTitle
	}
	if strings.TrimSpace(id) == "" || strings.TrimSpace(label) == "" {
		return
	}

	total := args.Cost
	if len(args.ItemCosts) > 0 {
		total = money.Zero
		for _, ic := range args.ItemCosts {
			total = total.Add(ic.Cost)
		}
	}

	taxes := args.Taxes
	var customer tax.Customer
	var cartClasses []string
	if args.Package != nil {
		customer = args.Package.Customer
		cartClasses = args.Package.CartTaxClasses
	}
	if taxes == nil && !args.NoTax && b.IsTaxable(customer) {
		if args.CalcTax == CalcTaxPerItem && len(args.ItemCosts) > 0 {
			taxes = b.taxesPerItem(ctx, args.ItemCosts, args.Package)
		} else {
			taxes = tax.CalcShippingTax(total, b.Tax.GetShippingTaxRates(ctx, nil, customer, cartClasses))
		}
	}

	rate := Rate{
		ID:         id,
		MethodID:   b.ID,
		InstanceID: b.Instance,
		Label:      label,
		Cost:       money.Round(total, b.PriceDecimals),
		Taxes:      taxes,
		TaxStatus:  b.TaxStatus,
		MetaData:   args.MetaData,
	}
	// a repeated id overwrites the earlier rate in place
	for i := range b.rates {
		if b.rates[i].ID == id {
			b.rates[i] = rate
			return
		}
	}
	b.rates = append(b.rates, rate)
}

func (b *BaseMethod) taxesPerItem(ctx context.Context, costs []ItemCost, pkg *Package) money.Taxes {
	var customer tax.Customer
	var cartClasses []string
	if pkg != nil {
		customer = pkg.Customer
		cartClasses = pkg.CartTaxClasses
	}
	var out money.Taxes
	for _, ic := range costs {
		class := tax.StandardClass
		if pkg != nil {
			if it, ok := pkg.Item(ic.Key); ok {
				class = it.TaxClass
			}
		}
		rates := b.Tax.GetShippingTaxRates(ctx, &class, customer, cartClasses)
		out = out.Merge(tax.CalcShippingTax(ic.Cost, rates))
	}
	return out
}
