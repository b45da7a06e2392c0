// Package geo holds location helpers shared by tax rate and shipping zone
// matching: postcode normalisation, wildcard and range matching, continents.
package geo

import (
	"strings"
	"unicode"
)

// NormalizePostcode uppercases a postcode and strips spaces and dashes.
func NormalizePostcode(postcode string) string {
	upper := strings.ToUpper(strings.TrimSpace(postcode))
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '-' {
			return -1
		}
		return r
	}, upper)
}

// FormatPostcode applies the country specific display format used when
// expanding wildcards.
func FormatPostcode(postcode, country string) string {
	normalized := NormalizePostcode(postcode)
	switch strings.ToUpper(country) {
	case "GB", "IE", "CA":
		if len(normalized) > 3 {
			return normalized[:len(normalized)-3] + " " + normalized[len(normalized)-3:]
		}
	case "BR":
		if len(normalized) == 8 {
			return normalized[:5] + "-" + normalized[5:]
		}
	case "PL":
		if len(normalized) == 5 {
			return normalized[:2] + "-" + normalized[2:]
		}
	case "JP":
		if len(normalized) == 7 {
			return normalized[:3] + "-" + normalized[3:]
		}
	}
	return normalized
}

// WildcardPostcodes lists the postcode itself plus every prefix wildcard it
// satisfies, e.g. 90210 → 90210, 90210*, 9021*, 902*, 90*, 9*, *.
func WildcardPostcodes(postcode, country string) []string {
	formatted := FormatPostcode(postcode, country)
	runes := []rune(formatted)
	out := []string{strings.ToUpper(strings.TrimSpace(postcode)), formatted, NormalizePostcode(postcode), formatted + "*"}
	for i := 0; i < len(runes); i++ {
		out = append(out, string(runes[:len(runes)-i-1])+"*")
	}
	return out
}

// MakeNumericPostcode turns an alphanumeric postcode into a sortable number
// string: digits become two digit groups and letters their alphabet position.
func MakeNumericPostcode(postcode string) string {
	postcode = NormalizePostcode(postcode)
	var b strings.Builder
	for _, r := range postcode {
		switch {
		case r >= '0' && r <= '9':
			b.WriteByte('0')
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			pos := int(r-'A') + 1
			b.WriteByte(byte('0' + pos/10))
			b.WriteByte(byte('0' + pos%10))
		default:
			b.WriteString("00")
		}
	}
	return b.String()
}

// MatchPostcode reports whether postcode satisfies a single rule. Rules are
// exact values, prefix wildcards ending in "*" or ranges written "min...max".
func MatchPostcode(postcode, country, rule string) bool {
	rule = strings.ToUpper(strings.TrimSpace(rule))
	if rule == "" {
		return false
	}
	normalized := NormalizePostcode(postcode)
	if strings.Contains(rule, "...") {
		parts := strings.Split(rule, "...")
		if len(parts) != 2 {
			return false
		}
		lo, hi := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		compare := normalized
		if !isNumeric(lo) || !isNumeric(hi) {
			compare = MakeNumericPostcode(normalized)
			lo = padRight(MakeNumericPostcode(lo), len(compare))
			hi = padRight(MakeNumericPostcode(hi), len(compare))
		} else if !isNumeric(compare) {
			return false
		}
		return compareNumeric(compare, lo) >= 0 && compareNumeric(compare, hi) <= 0
	}
	if !strings.HasSuffix(rule, "*") {
		return NormalizePostcode(rule) == normalized
	}
	for _, candidate := range WildcardPostcodes(postcode, country) {
		if candidate == rule {
			return true
		}
	}
	return false
}

// MatchAny reports whether any of the rules matches the postcode.
func MatchAny(postcode, country string, rules []string) bool {
	for _, rule := range rules {
		if MatchPostcode(postcode, country, rule) {
			return true
		}
	}
	return false
}

func isNumeric(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func padRight(value string, length int) string {
	for len(value) < length {
		value += "0"
	}
	return value
}

// compareNumeric compares two digit strings by numeric value.
func compareNumeric(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}
