package discount

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/storeengine/internal/money"
)

// ErrUnsupportedCoupon is returned for unknown discount types.
var ErrUnsupportedCoupon = errors.New("unsupported coupon type")

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Item is a discountable line. Price is the line price (unit price times
// quantity) in cents.
type Item struct {
	Key       string
	ProductID int64
	Quantity  int
	Price     money.Money
}

func (i Item) unitPrice() money.Money {
	if i.Quantity <= 0 {
		return i.Price
	}
	return i.Price.Div(decimal.NewFromInt(int64(i.Quantity)))
}

// Discounts applies coupons to a set of items. Every amount is kept in whole
// cents.
type Discounts struct {
	items      []Item
	sequential bool
	precision  money.Precision
	applied    []string
	discounts  map[string]map[string]money.Money
}

// New builds a discount calculator over items. With sequential set, each
// coupon sees the price left over by the coupons applied before it.
func New(items []Item, sequential bool, precision money.Precision) *Discounts {
	sorted := make([]Item, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		pi, pj := sorted[i].unitPrice(), sorted[j].unitPrice()
		if !pi.Equal(pj) {
			return pi.GreaterThan(pj)
		}
		return sorted[i].Key < sorted[j].Key
	})
	return &Discounts{
		items:      sorted,
		sequential: sequential,
		precision:  precision,
		discounts:  make(map[string]map[string]money.Money),
	}
}

// Items returns the items in application order.
func (d *Discounts) Items() []Item {
	out := make([]Item, len(d.items))
	copy(out, d.items)
	return out
}

// ApplyCoupon applies c to the eligible items and returns the discount it
// produced in cents.
func (d *Discounts) ApplyCoupon(c Coupon) (money.Money, error) {
	if c.Sort() > 3 {
		return money.Zero, fmt.Errorf("%w: %q", ErrUnsupportedCoupon, c.Type)
	}
	if _, ok := d.discounts[c.Code]; !ok {
		d.discounts[c.Code] = make(map[string]money.Money, len(d.items))
		d.applied = append(d.applied, c.Code)
	}
	for _, item := range d.items {
		if _, ok := d.discounts[c.Code][item.Key]; !ok {
			d.discounts[c.Code][item.Key] = money.Zero
		}
	}
	if !c.Amount.IsPositive() {
		return money.Zero, nil
	}

	eligible := d.eligibleItems(c)
	switch c.Type {
	case Percent:
		return d.applyPercent(c, eligible), nil
	case FixedProduct:
		return d.applyFixedProduct(c, eligible, d.precision.Add(c.Amount)), nil
	default:
		return d.applyFixedCart(c, eligible, d.precision.Add(c.Amount).Floor()), nil
	}
}

// DiscountedPrice returns the line price of key less every discount applied
// so far.
func (d *Discounts) DiscountedPrice(key string) money.Money {
	for _, item := range d.items {
		if item.Key == key {
			return d.discountedPrice(item)
		}
	}
	return money.Zero
}

// ByCoupon returns the total discount of each coupon in cents.
func (d *Discounts) ByCoupon() map[string]money.Money {
	out := make(map[string]money.Money, len(d.discounts))
	for code, byItem := range d.discounts {
		total := money.Zero
		for _, v := range byItem {
			total = total.Add(v)
		}
		out[code] = total
	}
	return out
}

// ByItem returns the total discount of each item in cents.
func (d *Discounts) ByItem() map[string]money.Money {
	out := make(map[string]money.Money, len(d.items))
	for _, item := range d.items {
		out[item.Key] = d.itemDiscount(item.Key)
	}
	return out
}

// Raw returns coupon code to item key to discount in cents.
func (d *Discounts) Raw() map[string]map[string]money.Money {
	out := make(map[string]map[string]money.Money, len(d.discounts))
	for code, byItem := range d.discounts {
		inner := make(map[string]money.Money, len(byItem))
		for key, v := range byItem {
			inner[key] = v
		}
		out[code] = inner
	}
	return out
}

// Applied returns coupon codes in the order they were applied.
func (d *Discounts) Applied() []string {
	out := make([]string, len(d.applied))
	copy(out, d.applied)
	return out
}

func (d *Discounts) itemDiscount(key string) money.Money {
	total := money.Zero
	for _, byItem := range d.discounts {
		if v, ok := byItem[key]; ok {
			total = total.Add(v)
		}
	}
	return total
}

func (d *Discounts) discountedPrice(item Item) money.Money {
	return money.Max(money.Zero, item.Price.Sub(d.itemDiscount(item.Key)))
}

func (d *Discounts) priceToDiscount(item Item) money.Money {
	if d.sequential {
		return d.discountedPrice(item)
	}
	return item.Price.Round(0)
}

func (d *Discounts) eligibleItems(c Coupon) []Item {
	out := make([]Item, 0, len(d.items))
	for _, item := range d.items {
		if item.Quantity <= 0 || !item.Price.IsPositive() {
			continue
		}
		if d.discountedPrice(item).IsZero() {
			continue
		}
		if !c.AppliesTo(item.ProductID) {
			continue
		}
		out = append(out, item)
	}
	return out
}

// applyQuantity returns how many units of item the coupon may still touch.
func applyQuantity(c Coupon, item Item, appliedCount int) int {
	qty := item.Quantity
	if c.LimitUsageToXItems > 0 {
		qty = min(qty, c.LimitUsageToXItems-appliedCount)
	}
	return max(0, qty)
}

func (d *Discounts) add(code, key string, amount money.Money) {
	d.discounts[code][key] = d.discounts[code][key].Add(amount)
}

func (d *Discounts) applyPercent(c Coupon, items []Item) money.Money {
	pct := c.Amount.Div(hundred)
	total := money.Zero
	cartTotal := money.Zero
	appliedCount := 0

	for _, item := range items {
		discounted := d.discountedPrice(item)
		qty := applyQuantity(c, item, appliedCount)
		base := d.priceToDiscount(item).Div(decimal.NewFromInt(int64(item.Quantity))).Mul(decimal.NewFromInt(int64(qty)))

		amount := money.Min(discounted, base.Mul(pct).Floor())
		cartTotal = cartTotal.Add(base)
		total = total.Add(amount)
		appliedCount += qty
		d.add(c.Code, item.Key, amount)
	}

	want := money.Round(cartTotal.Mul(pct), 0)
	if total.LessThan(want) {
		total = total.Add(d.applyRemainder(c, items, want.Sub(total)))
	}
	return total
}

func (d *Discounts) applyFixedProduct(c Coupon, items []Item, amount money.Money) money.Money {
	total := money.Zero
	appliedCount := 0
	for _, item := range items {
		qty := applyQuantity(c, item, appliedCount)
		discount := money.Min(d.discountedPrice(item), amount.Mul(decimal.NewFromInt(int64(qty))))
		total = total.Add(discount)
		appliedCount += qty
		d.add(c.Code, item.Key, discount)
	}
	return total
}

func (d *Discounts) applyFixedCart(c Coupon, items []Item, amount money.Money) money.Money {
	priced := make([]Item, 0, len(items))
	count := 0
	for _, item := range items {
		if d.discountedPrice(item).IsPositive() {
			priced = append(priced, item)
			count += item.Quantity
		}
	}
	if count == 0 || !amount.IsPositive() {
		return money.Zero
	}

	perItem := amount.Div(decimal.NewFromInt(int64(count))).Truncate(0).Abs()
	if perItem.IsPositive() {
		total := d.applyFixedProduct(c, priced, perItem)
		if total.IsPositive() && total.LessThan(amount) {
			total = total.Add(d.applyFixedCart(c, priced, amount.Sub(total)))
		}
		return total
	}
	return d.applyRemainder(c, priced, amount)
}

// applyRemainder hands out amount one cent per unit until it is used up.
func (d *Discounts) applyRemainder(c Coupon, items []Item, amount money.Money) money.Money {
	total := money.Zero
	for _, item := range items {
		for i := 0; i < item.Quantity; i++ {
			discount := money.Min(d.discountedPrice(item), one)
			if !discount.IsPositive() {
				break
			}
			total = total.Add(discount)
			d.add(c.Code, item.Key, discount)
			if total.GreaterThanOrEqual(amount) {
				return total
			}
		}
	}
	return total
}
