package discount

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Type is a coupon discount type.
type Type string

const (
	// FixedProduct takes a fixed amount off every eligible unit.
	FixedProduct Type = "fixed_product"
	// Percent takes a percentage off every eligible line.
	Percent Type = "percent"
	// FixedCart spreads a fixed amount over the whole cart.
	FixedCart Type = "fixed_cart"
)

// ParseType resolves a discount type, accepting the legacy aliases.
func ParseType(value string) (Type, error) {
	switch strings.TrimSpace(value) {
	case "fixed_product":
		return FixedProduct, nil
	case "percent", "percentage":
		return Percent, nil
	case "fixed_cart", "fixedAmount":
		return FixedCart, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedCoupon, value)
	}
}

// Coupon is an applied coupon. Amount is a percentage for Percent coupons and
// a display unit amount otherwise.
type Coupon struct {
	ID                 int64           `json:"id"`
	Code               string          `json:"code" validate:"required"`
	Type               Type            `json:"discountType" validate:"required"`
	Amount             decimal.Decimal `json:"amount"`
	ProductIDs         []int64         `json:"productIds,omitempty"`
	ExcludedProductIDs []int64         `json:"excludedProductIds,omitempty"`
	LimitUsageToXItems int             `json:"limitUsageToXItems,omitempty"`
	// FreeShipping unlocks free_shipping methods that require a coupon.
	FreeShipping bool `json:"freeShipping,omitempty"`
}

// Sort returns the stacking priority of the coupon type.
func (c Coupon) Sort() int {
	switch c.Type {
	case FixedProduct:
		return 1
	case Percent:
		return 2
	case FixedCart:
		return 3
	default:
		return 4
	}
}

// AppliesTo reports whether the product include and exclude lists allow the
// coupon on productID.
func (c Coupon) AppliesTo(productID int64) bool {
	for _, id := range c.ExcludedProductIDs {
		if id == productID {
			return false
		}
	}
	if len(c.ProductIDs) == 0 {
		return true
	}
	for _, id := range c.ProductIDs {
		if id == productID {
			return true
		}
	}
	return false
}

// SortCoupons orders coupons by type priority, then amount ascending, then id.
func SortCoupons(coupons []Coupon) {
	sort.SliceStable(coupons, func(i, j int) bool {
		a, b := coupons[i], coupons[j]
		if a.Sort() != b.Sort() {
			return a.Sort() < b.Sort()
		}
		if !a.Amount.Equal(b.Amount) {
			return a.Amount.LessThan(b.Amount)
		}
		return a.ID < b.ID
	})
}
