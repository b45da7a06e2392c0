package tax

import (
	"context"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/storeengine/internal/geo"
)

// StandardClass is the slug of the default tax class.
const StandardClass = ""

// Rate is a configured tax rate row.
type Rate struct {
	ID        int64           `json:"id"`
	Country   string          `json:"country"`
	State     string          `json:"state"`
	Postcodes []string        `json:"postcodes,omitempty"`
	Cities    []string        `json:"cities,omitempty"`
	Rate      decimal.Decimal `json:"rate"`
	Name      string          `json:"name"`
	Priority  int             `json:"priority"`
	Compound  bool            `json:"compound"`
	Shipping  bool            `json:"shipping"`
	Order     int             `json:"order"`
	Class     string          `json:"class"`
}

// MatchedRate is a rate selected for a location. Percentages are stored as
// whole numbers, so 20 means 20%.
type MatchedRate struct {
	ID       int64           `json:"id"`
	Rate     decimal.Decimal `json:"rate"`
	Label    string          `json:"label"`
	Compound bool            `json:"compound"`
	Shipping bool            `json:"shipping"`
}

// Location identifies a tax jurisdiction.
type Location struct {
	Country  string `json:"country"`
	State    string `json:"state"`
	Postcode string `json:"postcode"`
	City     string `json:"city"`
}

// RateStore loads the configured rates of a tax class.
type RateStore interface {
	RatesForClass(ctx context.Context, class string) ([]Rate, error)
}

// NormalizeClass maps the "standard" alias onto the empty standard slug.
func NormalizeClass(class string) string {
	class = strings.ToLower(strings.TrimSpace(class))
	if class == "standard" {
		return StandardClass
	}
	return class
}

// SameRates reports whether two matched rate lists are identical.
func SameRates(a, b []MatchedRate) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || !a[i].Rate.Equal(b[i].Rate) || a[i].Compound != b[i].Compound || a[i].Shipping != b[i].Shipping {
			return false
		}
	}
	return true
}

func matchRates(rates []Rate, loc Location, shippingOnly bool) []MatchedRate {
	country := strings.ToUpper(strings.TrimSpace(loc.Country))
	state := strings.ToUpper(strings.TrimSpace(loc.State))
	city := strings.ToUpper(strings.TrimSpace(loc.City))

	candidates := make([]Rate, 0, len(rates))
	for _, r := range rates {
		if shippingOnly && !r.Shipping {
			continue
		}
		if r.Country != "" && !strings.EqualFold(r.Country, country) {
			continue
		}
		if r.State != "" && !strings.EqualFold(r.State, state) {
			continue
		}
		if len(r.Postcodes) > 0 && !geo.MatchAny(loc.Postcode, country, r.Postcodes) {
			continue
		}
		if len(r.Cities) > 0 && !containsFold(r.Cities, city) {
			continue
		}
		candidates = append(candidates, r)
	}

	// More specific rates win inside a priority level.
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if sa, sb := specificity(a), specificity(b); sa != sb {
			return sa > sb
		}
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return a.ID < b.ID
	})

	seen := make(map[int]struct{})
	out := make([]MatchedRate, 0, len(candidates))
	for _, r := range candidates {
		if _, ok := seen[r.Priority]; ok {
			continue
		}
		seen[r.Priority] = struct{}{}
		out = append(out, MatchedRate{
			ID:       r.ID,
			Rate:     r.Rate,
			Label:    r.Name,
			Compound: r.Compound,
			Shipping: r.Shipping,
		})
	}
	return out
}

func specificity(r Rate) int {
	score := 0
	if r.Country != "" {
		score += 8
	}
	if r.State != "" {
		score += 4
	}
	if len(r.Postcodes) > 0 {
		score += 2
	}
	if len(r.Cities) > 0 {
		score++
	}
	return score
}

func containsFold(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(strings.TrimSpace(v), target) {
			return true
		}
	}
	return false
}
