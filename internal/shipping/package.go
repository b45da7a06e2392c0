package shipping

import (
	"github.com/noah-isme/storeengine/internal/money"
	"github.com/noah-isme/storeengine/internal/tax"
)

// Destination is where a package ships to.
type Destination struct {
	Country  string `json:"country"`
	State    string `json:"state"`
	Postcode string `json:"postcode"`
	City     string `json:"city"`
	Address  string `json:"address,omitempty"`
	Address2 string `json:"address2,omitempty"`
}

// Item is one cart line inside a package. Amounts are in display units.
type Item struct {
	Key           string      `json:"key"`
	ProductID     int64       `json:"productId"`
	Quantity      int         `json:"quantity"`
	LineTotal     money.Money `json:"lineTotal"`
	LineTax       money.Money `json:"lineTax"`
	TaxClass      string      `json:"taxClass"`
	ShippingClass string      `json:"shippingClass,omitempty"`
}

// AppliedCoupon is a coupon present on the cart when the package was built.
type AppliedCoupon struct {
	Code         string `json:"code"`
	FreeShipping bool   `json:"freeShipping"`
}

// CartSummary carries the cart figures free shipping thresholds look at.
type CartSummary struct {
	Subtotal      money.Money `json:"subtotal"`
	DiscountTotal money.Money `json:"discountTotal"`
	DiscountTax   money.Money `json:"discountTax"`
	DisplayIncTax bool        `json:"displayIncTax"`
}

// Package is a group of items shipped together. Rates is filled by
// Shipping.CalculateShipping.
type Package struct {
	Contents       []Item          `json:"contents"`
	ContentsCost   money.Money     `json:"contentsCost"`
	AppliedCoupons []AppliedCoupon `json:"appliedCoupons"`
	Cart           CartSummary     `json:"cart"`
	Destination    Destination     `json:"destination"`
	UserID         string          `json:"userId,omitempty"`
	ShipVia        []string        `json:"shipVia,omitempty"`

	// Customer and CartTaxClasses feed shipping tax resolution. They are not
	// part of the package identity.
	Customer       tax.Customer `json:"-"`
	CartTaxClasses []string     `json:"-"`

	Rates []Rate `json:"rates,omitempty"`
}

// ItemCount sums the quantities of the package contents.
func (p *Package) ItemCount() int {
	n := 0
	for _, it := range p.Contents {
		if it.Quantity > 0 {
			n += it.Quantity
		}
	}
	return n
}

// Item returns the content line with key.
func (p *Package) Item(key string) (Item, bool) {
	for _, it := range p.Contents {
		if it.Key == key {
			return it, true
		}
	}
	return Item{}, false
}

// HasFreeShippingCoupon reports whether an applied coupon grants free shipping.
func (p *Package) HasFreeShippingCoupon() bool {
	for _, c := range p.AppliedCoupons {
		if c.FreeShipping {
			return true
		}
	}
	return false
}

// Location returns the destination as a tax location.
func (d Destination) Location() tax.Location {
	return tax.Location{Country: d.Country, State: d.State, Postcode: d.Postcode, City: d.City}
}
