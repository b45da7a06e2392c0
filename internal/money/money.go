package money

import (
	"github.com/shopspring/decimal"
)

// Money is a monetary amount. Engine code keeps amounts in the precision
// expanded domain (cents for a two decimal currency) and converts back to
// display units only when writing results out.
type Money = decimal.Decimal

// Zero is the zero amount.
var Zero = decimal.Zero

// RoundingMode controls how tax totals are rounded.
type RoundingMode int

const (
	// HalfUp rounds halves away from zero.
	HalfUp RoundingMode = iota
	// HalfDown rounds halves towards zero.
	HalfDown
)

// ParseRoundingMode maps a configuration value onto a rounding mode.
func ParseRoundingMode(value string) RoundingMode {
	switch value {
	case "half_down", "down":
		return HalfDown
	default:
		return HalfUp
	}
}

// Precision converts between display units and the precision expanded domain.
type Precision struct {
	Decimals int32
}

// DefaultPrecision is used for two decimal currencies.
var DefaultPrecision = Precision{Decimals: 2}

// Add expands a display amount into cents.
func (p Precision) Add(v Money) Money {
	return v.Shift(p.Decimals)
}

// Remove converts a cents amount back into display units.
func (p Precision) Remove(v Money) Money {
	return v.Shift(-p.Decimals)
}

// AddFloat expands a float display amount into cents.
func (p Precision) AddFloat(v float64) Money {
	return p.Add(decimal.NewFromFloat(v))
}

// RemoveTaxes converts every amount of a tax set back into display units.
func (p Precision) RemoveTaxes(in Taxes) Taxes {
	return in.Map(p.Remove)
}

// Round rounds half away from zero to the given number of places.
func Round(v Money, places int32) Money {
	return v.Round(places)
}

// RoundTax rounds a tax amount using the configured rounding mode.
func RoundTax(v Money, places int32, mode RoundingMode) Money {
	if mode == HalfDown {
		return roundHalfDown(v, places)
	}
	return v.Round(places)
}

func roundHalfDown(v Money, places int32) Money {
	shifted := v.Shift(places)
	whole := shifted.Truncate(0)
	frac := shifted.Sub(whole).Abs()
	if frac.Equal(decimal.NewFromFloat(0.5)) {
		return whole.Shift(-places)
	}
	return v.Round(places)
}

// Floor rounds down to a whole number of cents.
func Floor(v Money) Money {
	return v.Floor()
}

// Min returns the smaller amount.
func Min(a, b Money) Money {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Max returns the larger amount.
func Max(a, b Money) Money {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// Sum adds up a list of amounts.
func Sum(values ...Money) Money {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// Format renders an amount with a fixed number of decimals.
func Format(v Money, decimals int32) string {
	return v.StringFixed(decimals)
}

// FromString parses a display amount, returning zero for malformed input.
func FromString(value string) Money {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero
	}
	return d
}
