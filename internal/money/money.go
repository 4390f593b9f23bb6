// Package money provides integer-cent monetary arithmetic and ISO-date
// primitives shared by every other Solvency package. All amounts are stored
// and computed as signed 64-bit cents; floats only ever appear transiently
// at CSV-parse time.
package money

import (
	"fmt"
	"math"
)

// Cents is a signed integer amount of currency minor units (1 major unit = 100 cents).
type Cents int64

// RoundCents converts a float major-unit-scaled value (already multiplied by
// 100) into Cents using round-half-away-from-zero, the banker-safe rounding
// spec.md §3 requires for division results.
func RoundCents(v float64) Cents {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	if v >= 0 {
		return Cents(math.Floor(v + 0.5))
	}
	return Cents(math.Ceil(v - 0.5))
}

// FromMajor converts a major-unit float amount (e.g. dollars) to Cents,
// rounding once at the boundary.
func FromMajor(major float64) Cents {
	return RoundCents(major * 100)
}

// Major returns the amount as a major-unit float (for display only; never
// persisted).
func (c Cents) Major() float64 {
	return float64(c) / 100.0
}

// SaturatingAdd adds two Cents values, clamping to the int64 range instead of
// wrapping on overflow, per spec.md §4.5's saturating-addition requirement.
func SaturatingAdd(a, b Cents) Cents {
	ai, bi := int64(a), int64(b)
	if bi > 0 && ai > math.MaxInt64-bi {
		return Cents(math.MaxInt64)
	}
	if bi < 0 && ai < math.MinInt64-bi {
		return Cents(math.MinInt64)
	}
	return Cents(ai + bi)
}

// currencySymbols maps known currency codes to display symbols for
// FormatCents. Unknown codes fall back to the bare code plus a space.
var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"CHF": "CHF ",
}

// Locale selects thousands/decimal separator conventions for display
// formatting. This is a pure, template-free helper; the HTML templating
// layer that would call it is out of scope for this core (spec.md §1).
type Locale string

const (
	LocaleUS Locale = "en-US" // 1,234.56
	LocaleEU Locale = "de-DE" // 1.234,56
)

// FormatCents renders a Cents amount as a locale-formatted string with the
// currency's symbol, e.g. "$1,234.56" or "1.234,56 €".
func FormatCents(c Cents, currency string, locale Locale) string {
	neg := c < 0
	abs := c
	if neg {
		abs = -abs
	}
	whole := int64(abs) / 100
	frac := int64(abs) % 100

	wholeStr := groupThousands(whole, locale)
	var decimalSep string
	switch locale {
	case LocaleEU:
		decimalSep = ","
	default:
		decimalSep = "."
	}

	amount := fmt.Sprintf("%s%s%02d", wholeStr, decimalSep, frac)
	if neg {
		amount = "-" + amount
	}

	symbol, known := currencySymbols[currency]
	if !known {
		return amount + " " + currency
	}
	if locale == LocaleEU {
		return amount + " " + symbol
	}
	return symbol + amount
}

func groupThousands(n int64, locale Locale) string {
	sep := ","
	if locale == LocaleEU {
		sep = "."
	}
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var out []byte
	rem := len(s) % 3
	if rem > 0 {
		out = append(out, s[:rem]...)
	}
	for i := rem; i < len(s); i += 3 {
		if len(out) > 0 {
			out = append(out, sep...)
		}
		out = append(out, s[i:i+3]...)
	}
	return string(out)
}
