package totals

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/storeengine/internal/discount"
	"github.com/noah-isme/storeengine/internal/money"
	"github.com/noah-isme/storeengine/internal/obs"
	"github.com/noah-isme/storeengine/internal/tax"
)

// ErrCartRequired is returned when totals are requested without a cart.
var ErrCartRequired = errors.New("totals: a cart is required")

// Keys of the totals exposed by CartTotals.
const (
	KeyItemsSubtotal    = "items_subtotal"
	KeyItemsSubtotalTax = "items_subtotal_tax"
	KeyItemsTotal       = "items_total"
	KeyItemsTotalTax    = "items_total_tax"
	KeyDiscountsTotal   = "discounts_total"
	KeyDiscountsTax     = "discounts_tax_total"
	KeyShippingTotal    = "shipping_total"
	KeyShippingTax      = "shipping_tax_total"
	KeyFeesTotal        = "fees_total"
	KeyFeesTax          = "fees_total_tax"
	KeyTotalTax         = "total_tax"
	KeyTotal            = "total"
)

const nonTaxable = "non-taxable"

// Item is a cart line as read from the cart. UnitPrice is in display units.
type Item struct {
	Key       string
	ProductID int64
	Quantity  int
	UnitPrice money.Money
	TaxClass  string
	Taxable   bool
}

// Fee is an extra cart charge. Negative amounts act as discounts.
type Fee struct {
	Key      string
	Name     string
	Amount   money.Money
	Taxable  bool
	TaxClass string
}

// ShippingLine is a chosen shipping rate for one package, in display units.
type ShippingLine struct {
	Key   string
	Cost  money.Money
	Taxes money.Taxes
}

// LineTotals is the computed cache written back onto a cart item.
type LineTotals struct {
	Subtotal      money.Money `json:"subtotal"`
	SubtotalTax   money.Money `json:"subtotalTax"`
	SubtotalTaxes money.Taxes `json:"subtotalTaxes,omitempty"`
	Total         money.Money `json:"total"`
	TotalTax      money.Money `json:"totalTax"`
	Taxes         money.Taxes `json:"taxes,omitempty"`
}

// FeeTotals is the computed cache written back onto a fee.
type FeeTotals struct {
	Total money.Money `json:"total"`
	Tax   money.Money `json:"tax"`
	Taxes money.Taxes `json:"taxes,omitempty"`
}

// Cart is the cart consumed by CartTotals. Results are pushed back through
// the setters, always in display units.
type Cart interface {
	Items() []Item
	Fees(ctx context.Context) []Fee
	Coupons() []discount.Coupon
	Customer() tax.Customer
	ShowShipping() bool
	CalculateShipping(ctx context.Context) []ShippingLine

	SetItemLine(key string, line LineTotals)
	SetFeeLine(key string, fee FeeTotals)
	SetSubtotal(subtotal, tax money.Money)
	SetDiscountTotals(total, tax money.Money, byCoupon, taxByCoupon map[string]money.Money)
	SetContentsTotals(total, tax money.Money, taxes money.Taxes)
	SetFeesTotals(total, tax money.Money, taxes money.Taxes)
	SetShippingTotals(total, tax money.Money, taxes money.Taxes)
	SetTotalTax(v money.Money)
	SetTotal(v money.Money)
}

// Options tune a CartTotals run.
type Options struct {
	Precision money.Precision
	Rounding  ItemTotals
	// AdjustNonBaseLocationPrices keeps tax inclusive prices identical for
	// customers outside the store base location.
	AdjustNonBaseLocationPrices bool
	SequentialDiscounts         bool
	// AdjustTotal may rewrite the grand total, in display units. The result
	// is floored at zero.
	AdjustTotal func(money.Money) money.Money
	Logger      zerolog.Logger
}

// DefaultOptions returns the store defaults.
func DefaultOptions() Options {
	return Options{
		Precision:                   money.DefaultPrecision,
		AdjustNonBaseLocationPrices: true,
		SequentialDiscounts:         true,
		Logger:                      zerolog.Nop(),
	}
}

type itemLine struct {
	key              string
	productID        int64
	quantity         int
	price            money.Money
	taxClass         string
	taxable          bool
	priceIncludesTax bool
	rates            []tax.MatchedRate

	subtotal      money.Money
	subtotalTax   money.Money
	subtotalTaxes money.Taxes
	total         money.Money
	totalTax      money.Money
	taxes         money.Taxes
}

type feeLine struct {
	key      string
	taxClass string
	taxable  bool
	total    money.Money
	totalTax money.Money
	taxes    money.Taxes
}

type shippingLine struct {
	key      string
	taxClass string
	total    money.Money
	totalTax money.Money
	taxes    money.Taxes
}

// CartTotals computes every cart total. Amounts are held in cents and
// converted to display units when written to the cart.
type CartTotals struct {
	cart         Cart
	calc         *tax.Calculator
	opts         Options
	calculateTax bool

	items    []*itemLine
	fees     []*feeLine
	shipping []*shippingLine

	itemTaxRates map[string][]tax.MatchedRate
	couponTotals map[string]money.Money
	couponTaxes  map[string]money.Money
	totals       map[string]money.Money
}

// validator is implemented by carts that can report themselves unusable,
// typically a pointer implementation holding a typed nil.
type validator interface {
	Valid() bool
}

// New constructs the totals engine for cart.
func New(cart Cart, calc *tax.Calculator, opts Options) (*CartTotals, error) {
	if cart == nil {
		return nil, ErrCartRequired
	}
	if v, ok := cart.(validator); ok && !v.Valid() {
		return nil, ErrCartRequired
	}
	customer := cart.Customer()
	return &CartTotals{
		cart:         cart,
		calc:         calc,
		opts:         opts,
		calculateTax: calc.Enabled() && (customer == nil || !customer.IsVATExempt()),
		itemTaxRates: make(map[string][]tax.MatchedRate),
	}, nil
}

// Calculate runs every phase and pushes the results onto the cart. Each run
// rebuilds its lines from the cart so repeated runs give identical results.
func (t *CartTotals) Calculate(ctx context.Context) {
	t.totals = make(map[string]money.Money)
	t.calculateItemTotals(ctx)
	t.calculateShippingTotals(ctx)
	t.calculateFeeTotals(ctx)
	t.calculateTotals()

	if obs.CartTotalsCalculationsTotal != nil {
		obs.CartTotalsCalculationsTotal.Inc()
	}
}

// CalculateTax reports whether this run computes taxes.
func (t *CartTotals) CalculateTax() bool {
	return t.calculateTax
}

// Total returns a named total in display units.
func (t *CartTotals) Total(key string) money.Money {
	return t.opts.Precision.Remove(t.totals[key])
}

// Totals returns every total in display units.
func (t *CartTotals) Totals() map[string]money.Money {
	out := make(map[string]money.Money, len(t.totals))
	for k, v := range t.totals {
		out[k] = t.opts.Precision.Remove(v)
	}
	return out
}

// MergedTaxes returns the per rate tax of items, fees and shipping in
// display units.
func (t *CartTotals) MergedTaxes() money.Taxes {
	return t.opts.Precision.RemoveTaxes(t.mergedTaxes(true, true, true))
}

// CouponDiscountTotals returns the discount of each coupon in display units.
func (t *CartTotals) CouponDiscountTotals() map[string]money.Money {
	out := make(map[string]money.Money, len(t.couponTotals))
	for code, v := range t.couponTotals {
		out[code] = t.opts.Precision.Remove(v)
	}
	return out
}

func (t *CartTotals) logger() *zerolog.Logger {
	return &t.opts.Logger
}

func (t *CartTotals) pricesIncludeTax() bool {
	return t.calc.Enabled() && t.calc.PricesIncludeTax()
}

func (t *CartTotals) vatExempt() bool {
	customer := t.cart.Customer()
	return customer != nil && customer.IsVATExempt()
}

func (t *CartTotals) ratesForItem(ctx context.Context, class string) []tax.MatchedRate {
	if !t.calc.Enabled() {
		return nil
	}
	if rates, ok := t.itemTaxRates[class]; ok {
		return rates
	}
	rates := t.calc.GetRates(ctx, class, t.cart.Customer())
	t.itemTaxRates[class] = rates
	return rates
}

func (t *CartTotals) itemsFromCart(ctx context.Context) {
	t.items = t.items[:0]
	includeTax := t.pricesIncludeTax()
	for _, it := range t.cart.Items() {
		if it.Quantity <= 0 {
			continue
		}
		line := &itemLine{
			key:              it.Key,
			productID:        it.ProductID,
			quantity:         it.Quantity,
			price:            t.opts.Precision.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))),
			taxClass:         tax.NormalizeClass(it.TaxClass),
			taxable:          it.Taxable,
			priceIncludesTax: includeTax,
		}
		if line.taxable {
			line.rates = t.ratesForItem(ctx, line.taxClass)
		}
		t.items = append(t.items, line)
	}
}

func (t *CartTotals) calculateItemTotals(ctx context.Context) {
	t.itemsFromCart(ctx)
	t.calculateItemSubtotals(ctx)
	byItem := t.calculateDiscounts()

	totals := make([]money.Money, 0, len(t.items))
	totalTax := money.Zero
	for _, item := range t.items {
		item.total = money.Max(money.Zero, item.price.Sub(byItem[item.key]))
		item.totalTax = money.Zero
		item.taxes = nil
		if t.calculateTax && item.taxable {
			item.taxes = tax.CalcTax(item.total, item.rates, item.priceIncludesTax)
			item.totalTax = t.opts.Rounding.SumLineTaxes(item.taxes)
			if item.priceIncludesTax {
				item.total = item.total.Sub(item.taxes.Sum())
			}
		}
		totals = append(totals, item.total)
		totalTax = totalTax.Add(item.totalTax)

		p := t.opts.Precision
		t.cart.SetItemLine(item.key, LineTotals{
			Subtotal:      p.Remove(item.subtotal),
			SubtotalTax:   p.Remove(item.subtotalTax),
			SubtotalTaxes: p.RemoveTaxes(item.subtotalTaxes),
			Total:         p.Remove(item.total),
			TotalTax:      p.Remove(item.totalTax),
			Taxes:         p.RemoveTaxes(item.taxes),
		})
	}
	t.totals[KeyItemsTotal] = t.opts.Rounding.RoundedItemsTotal(totals)
	t.totals[KeyItemsTotalTax] = totalTax

	merged := t.mergedTaxes(true, false, false)
	t.cart.SetContentsTotals(
		t.Total(KeyItemsTotal),
		t.opts.Precision.Remove(merged.Sum()),
		t.opts.Precision.RemoveTaxes(merged),
	)
}

func (t *CartTotals) calculateItemSubtotals(ctx context.Context) {
	subtotals := make([]money.Money, 0, len(t.items))
	subtotalTax := money.Zero
	for _, item := range t.items {
		if item.priceIncludesTax {
			if t.vatExempt() {
				t.removeItemBaseTaxes(ctx, item)
			} else if t.opts.AdjustNonBaseLocationPrices {
				t.adjustNonBaseLocationPrice(ctx, item)
			}
		}
		item.subtotal = item.price
		item.subtotalTax = money.Zero
		item.subtotalTaxes = nil
		if t.calculateTax && item.taxable {
			item.subtotalTaxes = tax.CalcTax(item.subtotal, item.rates, item.priceIncludesTax)
			item.subtotalTax = t.opts.Rounding.SumLineTaxes(item.subtotalTaxes)
			if item.priceIncludesTax {
				item.subtotal = item.subtotal.Sub(item.subtotalTaxes.Sum())
			}
		}
		subtotals = append(subtotals, item.subtotal)
		subtotalTax = subtotalTax.Add(item.subtotalTax)
	}
	t.totals[KeyItemsSubtotal] = t.opts.Rounding.RoundedItemsTotal(subtotals)
	t.totals[KeyItemsSubtotalTax] = subtotalTax
	t.cart.SetSubtotal(t.Total(KeyItemsSubtotal), t.Total(KeyItemsSubtotalTax))
}

// removeItemBaseTaxes strips the store base tax from an inclusive price so a
// tax exempt customer pays the net price.
func (t *CartTotals) removeItemBaseTaxes(ctx context.Context, item *itemLine) {
	if !item.taxable {
		return
	}
	base := item.rates
	if t.opts.AdjustNonBaseLocationPrices {
		base = t.calc.GetBaseTaxRates(ctx, item.taxClass)
	}
	taxes := tax.CalcTax(item.price, base, true)
	item.price = money.Round(item.price.Sub(taxes.Sum()), 0)
	item.priceIncludesTax = false
}

// adjustNonBaseLocationPrice re-prices an inclusive price with the
// customer's rates so the gross price matches the one shown at the base.
func (t *CartTotals) adjustNonBaseLocationPrice(ctx context.Context, item *itemLine) {
	if !item.taxable {
		return
	}
	base := t.calc.GetBaseTaxRates(ctx, item.taxClass)
	if tax.SameRates(item.rates, base) {
		return
	}
	baseTaxes := tax.CalcTax(item.price, base, true)
	net := item.price.Sub(baseTaxes.Sum())
	newTaxes := tax.CalcTax(net, item.rates, false)
	item.price = money.Round(net.Add(newTaxes.Sum()), 0)
}

func (t *CartTotals) itemByKey(key string) *itemLine {
	for _, item := range t.items {
		if item.key == key {
			return item
		}
	}
	return nil
}

// calculateDiscounts applies the cart coupons and returns the discount of
// every item in cents.
func (t *CartTotals) calculateDiscounts() map[string]money.Money {
	items := make([]discount.Item, 0, len(t.items))
	for _, item := range t.items {
		items = append(items, discount.Item{
			Key:       item.key,
			ProductID: item.productID,
			Quantity:  item.quantity,
			Price:     item.price,
		})
	}
	d := discount.New(items, t.opts.SequentialDiscounts, t.opts.Precision)

	coupons := append([]discount.Coupon(nil), t.cart.Coupons()...)
	discount.SortCoupons(coupons)
	for _, c := range coupons {
		if _, err := d.ApplyCoupon(c); err != nil {
			t.logger().Warn().Err(err).Str("coupon", c.Code).Msg("skip coupon")
		}
	}

	amounts := d.ByCoupon()
	taxAmounts := make(map[string]money.Money, len(amounts))
	if t.calculateTax {
		includeTax := t.pricesIncludeTax()
		for code, byItem := range d.Raw() {
			couponTax := money.Zero
			for key, amount := range byItem {
				item := t.itemByKey(key)
				if item == nil || !item.taxable {
					continue
				}
				itemTax := tax.CalcTax(amount, item.rates, item.priceIncludesTax).Sum()
				couponTax = couponTax.Add(t.opts.Rounding.RoundLineTax(itemTax))
			}
			taxAmounts[code] = couponTax
			if includeTax {
				amounts[code] = amounts[code].Sub(couponTax)
			}
		}
	}
	t.couponTotals = amounts
	t.couponTaxes = taxAmounts

	total, totalTax := money.Zero, money.Zero
	byCoupon := make(map[string]money.Money, len(amounts))
	taxByCoupon := make(map[string]money.Money, len(amounts))
	for code, v := range amounts {
		total = total.Add(v)
		byCoupon[code] = t.opts.Precision.Remove(v)
		tv := taxAmounts[code]
		totalTax = totalTax.Add(tv)
		taxByCoupon[code] = t.opts.Precision.Remove(tv)
	}
	t.totals[KeyDiscountsTotal] = total
	t.totals[KeyDiscountsTax] = totalTax
	t.cart.SetDiscountTotals(t.Total(KeyDiscountsTotal), t.Total(KeyDiscountsTax), byCoupon, taxByCoupon)

	return d.ByItem()
}

func (t *CartTotals) shippingTaxClass() string {
	class := tax.StandardClass
	if t.calc != nil {
		class = t.calc.Settings.ShippingTaxClass
	}
	if class == tax.InheritClass && len(t.items) > 0 {
		return t.items[0].taxClass
	}
	return tax.NormalizeClass(class)
}

func (t *CartTotals) calculateShippingTotals(ctx context.Context) {
	t.shipping = t.shipping[:0]
	if t.cart.ShowShipping() {
		class := t.shippingTaxClass()
		for _, rate := range t.cart.CalculateShipping(ctx) {
			line := &shippingLine{
				key:      rate.Key,
				taxClass: class,
				total:    t.opts.Precision.Add(rate.Cost),
				totalTax: money.Zero,
			}
			if t.calculateTax {
				for _, l := range rate.Taxes {
					line.taxes = line.taxes.Add(l.RateID, t.opts.Rounding.RoundItemSubtotal(t.opts.Precision.Add(l.Amount)))
				}
				line.totalTax = line.taxes.Sum()
			}
			t.shipping = append(t.shipping, line)
		}
	}

	total, totalTax := money.Zero, money.Zero
	for _, line := range t.shipping {
		total = total.Add(line.total)
		totalTax = totalTax.Add(line.totalTax)
	}
	t.totals[KeyShippingTotal] = total
	t.totals[KeyShippingTax] = totalTax

	merged := t.mergedTaxes(false, false, true)
	t.cart.SetShippingTotals(t.Total(KeyShippingTotal), t.Total(KeyShippingTax), t.opts.Precision.RemoveTaxes(merged))
}

func (t *CartTotals) calculateFeeTotals(ctx context.Context) {
	t.fees = t.fees[:0]
	running := money.Zero
	customer := t.cart.Customer()

	for _, fee := range t.cart.Fees(ctx) {
		line := &feeLine{
			key:      fee.Key,
			taxClass: tax.NormalizeClass(fee.TaxClass),
			taxable:  fee.Taxable,
			total:    t.opts.Precision.Add(fee.Amount),
		}
		// A negative fee can not take the order below zero.
		if line.total.IsNegative() {
			maxDiscount := money.Round(t.totals[KeyItemsTotal].Add(running).Add(t.totals[KeyShippingTotal]), 0).Neg()
			if line.total.LessThan(maxDiscount) {
				line.total = maxDiscount
			}
		}
		running = running.Add(line.total)

		if t.calculateTax {
			switch {
			case line.total.IsNegative():
				line.taxes = t.splitNegativeFeeTax(ctx, line.total, customer)
			case line.taxable:
				line.taxes = tax.CalcTax(line.total, t.calc.GetRates(ctx, line.taxClass, customer), false)
			}
		}
		line.totalTax = t.opts.Rounding.SumLineTaxes(line.taxes)
		t.fees = append(t.fees, line)

		t.cart.SetFeeLine(line.key, FeeTotals{
			Total: t.opts.Precision.Remove(line.total),
			Tax:   t.opts.Precision.Remove(line.totalTax),
			Taxes: t.opts.Precision.RemoveTaxes(line.taxes),
		})
	}

	total, totalTax := money.Zero, money.Zero
	for _, line := range t.fees {
		total = total.Add(line.total)
		totalTax = totalTax.Add(line.totalTax)
	}
	t.totals[KeyFeesTotal] = total
	t.totals[KeyFeesTax] = totalTax

	merged := t.mergedTaxes(false, true, false)
	t.cart.SetFeesTotals(t.Total(KeyFeesTotal), t.Total(KeyFeesTax), t.opts.Precision.RemoveTaxes(merged))
}

// splitNegativeFeeTax spreads the tax of a discount-like fee over the taxable
// cost classes in proportion to their share of the taxable cost.
func (t *CartTotals) splitNegativeFeeTax(ctx context.Context, amount money.Money, customer tax.Customer) money.Taxes {
	classes, costs := t.taxClassCosts()
	totalCost := money.Sum(costs...)
	if !totalCost.IsPositive() {
		return nil
	}
	var taxes money.Taxes
	for i, class := range classes {
		share := amount.Mul(costs[i]).Div(totalCost)
		taxes = taxes.Merge(tax.CalcTax(share, t.calc.GetRates(ctx, class, customer), false))
	}
	return taxes
}

// taxClassCosts returns the positive cost of every taxable class in first
// seen order. Non-taxable costs are left out.
func (t *CartTotals) taxClassCosts() ([]string, []money.Money) {
	var (
		classes []string
		costs   []money.Money
	)
	add := func(class string, cost money.Money) {
		if cost.IsNegative() || class == nonTaxable {
			return
		}
		for i := range classes {
			if classes[i] == class {
				costs[i] = costs[i].Add(cost)
				return
			}
		}
		classes = append(classes, class)
		costs = append(costs, cost)
	}
	for _, item := range t.items {
		if item.taxable {
			add(item.taxClass, item.total)
		}
	}
	for _, fee := range t.fees {
		if fee.taxable {
			add(fee.taxClass, fee.total)
		}
	}
	for _, line := range t.shipping {
		add(line.taxClass, line.total)
	}

	outClasses := classes[:0]
	outCosts := costs[:0]
	for i := range classes {
		if costs[i].IsPositive() {
			outClasses = append(outClasses, classes[i])
			outCosts = append(outCosts, costs[i])
		}
	}
	return outClasses, outCosts
}

// mergedTaxes merges the taxes of the selected line kinds, applying the line
// rounding policy to every rate amount. Amounts stay in cents.
func (t *CartTotals) mergedTaxes(items, fees, shipping bool) money.Taxes {
	var merged money.Taxes
	if items {
		for _, item := range t.items {
			merged = merged.Merge(item.taxes.Map(t.opts.Rounding.RoundLineTax))
		}
	}
	if fees {
		for _, fee := range t.fees {
			merged = merged.Merge(fee.taxes.Map(t.opts.Rounding.RoundLineTax))
		}
	}
	if shipping {
		for _, line := range t.shipping {
			merged = merged.Merge(line.taxes.Map(t.opts.Rounding.RoundLineTax))
		}
	}
	return merged
}

func (t *CartTotals) calculateTotals() {
	p := t.opts.Precision
	allTaxes := t.mergedTaxes(true, true, true)
	total := money.Round(money.Sum(
		t.totals[KeyItemsTotal],
		t.totals[KeyFeesTotal],
		t.totals[KeyShippingTotal],
		allTaxes.Sum(),
	), 0)

	// Item taxes carry their line rounding already; fee and shipping taxes
	// are rounded once as a group.
	itemsTax := p.Remove(t.mergedTaxes(true, false, false).Sum())
	otherTax := money.Round(p.Remove(t.mergedTaxes(false, true, true).Sum()), p.Decimals)
	totalTax := itemsTax.Add(otherTax)
	t.totals[KeyTotalTax] = p.Add(totalTax)
	t.cart.SetTotalTax(totalTax)

	grand := p.Remove(total)
	if t.opts.AdjustTotal != nil {
		grand = t.opts.AdjustTotal(grand)
	}
	grand = money.Max(money.Zero, grand)
	t.totals[KeyTotal] = p.Add(grand)
	t.cart.SetTotal(grand)
}

// CouponDiscountTaxTotals returns the tax given back by each coupon in
// display units.
func (t *CartTotals) CouponDiscountTaxTotals() map[string]money.Money {
	out := make(map[string]money.Money, len(t.couponTaxes))
	for code, v := range t.couponTaxes {
		out[code] = t.opts.Precision.Remove(v)
	}
	return out
}
