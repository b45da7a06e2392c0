package shipping

import "github.com/noah-isme/storeengine/internal/money"

// Tax statuses of a shipping method.
const (
	TaxStatusTaxable = "taxable"
	TaxStatusNone    = "none"
)

// Rate is one shipping option offered for a package. Cost and taxes are in
// display units.
type Rate struct {
	ID         string            `json:"id"`
	MethodID   string            `json:"methodId"`
	InstanceID int64             `json:"instanceId"`
	Label      string            `json:"label"`
	Cost       money.Money       `json:"cost"`
	Taxes      money.Taxes       `json:"taxes,omitempty"`
	TaxStatus  string            `json:"taxStatus"`
	MetaData   map[string]string `json:"metaData,omitempty"`
}

// TaxTotal sums the rate taxes.
func (r Rate) TaxTotal() money.Money {
	return r.Taxes.Sum()
}

// MergeRates adds rates to dst keyed by rate id. Existing ids win and keep
// their position.
func MergeRates(dst []Rate, rates ...Rate) []Rate {
	for _, r := range rates {
		if indexOfRate(dst, r.ID) >= 0 {
			continue
		}
		dst = append(dst, r)
	}
	return dst
}

// FindRate returns the rate with id.
func FindRate(rates []Rate, id string) (Rate, bool) {
	if i := indexOfRate(rates, id); i >= 0 {
		return rates[i], true
	}
	return Rate{}, false
}

func indexOfRate(rates []Rate, id string) int {
	for i, r := range rates {
		if r.ID == id {
			return i
		}
	}
	return -1
}
