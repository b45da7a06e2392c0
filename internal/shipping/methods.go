package shipping

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/storeengine/internal/money"
)

// Built in method ids.
const (
	MethodFlatRate     = "flat_rate"
	MethodFreeShipping = "free_shipping"
	MethodLocalPickup  = "local_pickup"
)

// Free shipping requirement values.
const (
	RequiresNone      = ""
	RequiresCoupon    = "coupon"
	RequiresMinAmount = "min_amount"
	RequiresEither    = "either"
	RequiresBoth      = "both"
)

// Flat rate class cost calculation types.
const (
	ClassCostPerClass = "class"
	ClassCostPerOrder = "order"
)

const classCostPrefix = "class_cost_"

func newBase(cfg ZoneMethod, deps Deps, defaultTitle string) BaseMethod {
	title := strings.TrimSpace(cfg.Settings["title"])
	if title == "" {
		title = defaultTitle
	}
	taxStatus := cfg.Settings["tax_status"]
	if taxStatus != TaxStatusNone {
		taxStatus = TaxStatusTaxable
	}
	return BaseMethod{
		ID:            cfg.MethodID,
		Instance:      cfg.InstanceID,
		MethodTitle:   title,
		Enabled:       cfg.Enabled,
		TaxStatus:     taxStatus,
		Features:      []string{FeatureShippingZones, FeatureInstanceSettings},
		PriceDecimals: deps.PriceDecimals,
		Tax:           deps.Tax,
	}
}

func settingMoney(settings map[string]string, key string) (money.Money, bool, error) {
	raw := strings.TrimSpace(settings[key])
	if raw == "" {
		return money.Zero, false, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return money.Zero, false, fmt.Errorf("setting %s: %w", key, err)
	}
	return v, true, nil
}

// FlatRate charges a fixed cost, an optional cost per item and optional
// shipping class costs.
type FlatRate struct {
	BaseMethod
	cost        money.Money
	hasCost     bool
	perItem     money.Money
	hasPerItem  bool
	classCosts  map[string]money.Money
	noClassCost *money.Money
	classType   string
}

// NewFlatRate is the flat_rate factory.
func NewFlatRate(cfg ZoneMethod, deps Deps) (Method, error) {
	m := &FlatRate{BaseMethod: newBase(cfg, deps, "Flat rate"), classCosts: map[string]money.Money{}}
	var err error
	if m.cost, m.hasCost, err = settingMoney(cfg.Settings, "cost"); err != nil {
		return nil, err
	}
	if m.perItem, m.hasPerItem, err = settingMoney(cfg.Settings, "per_item_cost"); err != nil {
		return nil, err
	}
	if v, ok, err := settingMoney(cfg.Settings, "no_class_cost"); err != nil {
		return nil, err
	} else if ok {
		m.noClassCost = &v
	}
	for key := range cfg.Settings {
		if !strings.HasPrefix(key, classCostPrefix) {
			continue
		}
		v, ok, err := settingMoney(cfg.Settings, key)
		if err != nil {
			return nil, err
		}
		if ok {
			m.classCosts[strings.TrimPrefix(key, classCostPrefix)] = v
		}
	}
	m.classType = cfg.Settings["type"]
	if m.classType != ClassCostPerOrder {
		m.classType = ClassCostPerClass
	}
	return m, nil
}

// CalculateShipping implements Method.
func (m *FlatRate) CalculateShipping(ctx context.Context, pkg *Package) {
	hasCosts := false
	cost := money.Zero
	if m.hasCost {
		hasCosts = true
		cost = cost.Add(m.cost)
	}
	if m.hasPerItem {
		hasCosts = true
		cost = cost.Add(m.perItem.Mul(decimal.NewFromInt(int64(pkg.ItemCount()))))
	}

	if len(m.classCosts) > 0 || m.noClassCost != nil {
		highest := money.Zero
		for _, class := range packageShippingClasses(pkg) {
			var (
				classCost money.Money
				ok        bool
			)
			if class == "" {
				if m.noClassCost != nil {
					classCost, ok = *m.noClassCost, true
				}
			} else {
				classCost, ok = m.classCosts[class]
			}
			if !ok {
				continue
			}
			hasCosts = true
			if m.classType == ClassCostPerClass {
				cost = cost.Add(classCost)
			} else if classCost.GreaterThan(highest) {
				highest = classCost
			}
		}
		if m.classType == ClassCostPerOrder {
			cost = cost.Add(highest)
		}
	}

	if !hasCosts {
		return
	}
	m.AddRate(ctx, RateArgs{Cost: cost, Package: pkg})
}

func packageShippingClasses(pkg *Package) []string {
	seen := map[string]bool{}
	var out []string
	for _, it := range pkg.Contents {
		if it.Quantity <= 0 || seen[it.ShippingClass] {
			continue
		}
		seen[it.ShippingClass] = true
		out = append(out, it.ShippingClass)
	}
	sort.Strings(out)
	return out
}

// FreeShipping offers a zero cost rate, optionally gated by a coupon and a
// minimum order amount.
type FreeShipping struct {
	BaseMethod
	requires        string
	minAmount       money.Money
	ignoreDiscounts bool
}

// NewFreeShipping is the free_shipping factory.
func NewFreeShipping(cfg ZoneMethod, deps Deps) (Method, error) {
	m := &FreeShipping{BaseMethod: newBase(cfg, deps, "Free shipping")}
	m.TaxStatus = TaxStatusNone
	switch req := cfg.Settings["requires"]; req {
	case RequiresNone, RequiresCoupon, RequiresMinAmount, RequiresEither, RequiresBoth:
		m.requires = req
	default:
		return nil, fmt.Errorf("free shipping: unknown requirement %q", req)
	}
	var err error
	if m.minAmount, _, err = settingMoney(cfg.Settings, "min_amount"); err != nil {
		return nil, err
	}
	m.ignoreDiscounts = cfg.Settings["ignore_discounts"] == "yes"
	return m, nil
}

// IsAvailable implements Method.
func (m *FreeShipping) IsAvailable(pkg *Package) bool {
	if !m.Enabled {
		return false
	}
	hasCoupon := false
	if m.requires == RequiresCoupon || m.requires == RequiresEither || m.requires == RequiresBoth {
		hasCoupon = pkg.HasFreeShippingCoupon()
	}
	metMin := false
	if m.requires == RequiresMinAmount || m.requires == RequiresEither || m.requires == RequiresBoth {
		total := pkg.Cart.Subtotal
		if pkg.Cart.DisplayIncTax {
			total = total.Sub(pkg.Cart.DiscountTax)
		}
		if !m.ignoreDiscounts {
			total = total.Sub(pkg.Cart.DiscountTotal)
		}
		total = money.Round(total, m.PriceDecimals)
		metMin = total.GreaterThanOrEqual(m.minAmount)
	}

	switch m.requires {
	case RequiresMinAmount:
		return metMin
	case RequiresCoupon:
		return hasCoupon
	case RequiresBoth:
		return metMin && hasCoupon
	case RequiresEither:
		return metMin || hasCoupon
	default:
		return true
	}
}

// CalculateShipping implements Method.
func (m *FreeShipping) CalculateShipping(ctx context.Context, pkg *Package) {
	m.AddRate(ctx, RateArgs{Cost: money.Zero, NoTax: true, Package: pkg})
}

// LocalPickup lets the customer collect the order for a fixed cost.
type LocalPickup struct {
	BaseMethod
	cost money.Money
}

// NewLocalPickup is the local_pickup factory.
func NewLocalPickup(cfg ZoneMethod, deps Deps) (Method, error) {
	m := &LocalPickup{BaseMethod: newBase(cfg, deps, "Local pickup")}
	var err error
	if m.cost, _, err = settingMoney(cfg.Settings, "cost"); err != nil {
		return nil, err
	}
	return m, nil
}

// CalculateShipping implements Method.
func (m *LocalPickup) CalculateShipping(ctx context.Context, pkg *Package) {
	m.AddRate(ctx, RateArgs{Cost: m.cost, Package: pkg})
}
