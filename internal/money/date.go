package money

import (
	"fmt"
	"time"
)

// dateLayout is the canonical ISO calendar-date layout used throughout
// persistence and the wire formats.
const dateLayout = "2006-01-02"

// Date is an ISO calendar date with no time-of-day or time-zone component.
// Lexicographic string comparison of the canonical form coincides with
// calendar order, which the carry-forward lookups in the portfolio package
// rely on (spec.md Design Notes).
type Date struct {
	t time.Time
}

// ParseDate parses a "YYYY-MM-DD" string into a Date.
func ParseDate(s string) (Date, error) {
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{t: t}, nil
}

// MustParseDate parses a date and panics on failure; reserved for constants
// and tests where the input is known-good.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// NewDate constructs a Date from calendar components.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// String returns the canonical "YYYY-MM-DD" representation.
func (d Date) String() string {
	return d.t.Format(dateLayout)
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool { return d.t.IsZero() }

// Before reports whether d is strictly before o.
func (d Date) Before(o Date) bool { return d.t.Before(o.t) }

// After reports whether d is strictly after o.
func (d Date) After(o Date) bool { return d.t.After(o.t) }

// Equal reports whether d and o denote the same calendar date.
func (d Date) Equal(o Date) bool { return d.t.Equal(o.t) }

// AddDays returns the date n calendar days later (n may be negative).
func (d Date) AddDays(n int) Date {
	return Date{t: d.t.AddDate(0, 0, n)}
}

// AddMonths returns the date n calendar months later.
func (d Date) AddMonths(n int) Date {
	return Date{t: d.t.AddDate(0, n, 0)}
}

// AddYears returns the date n calendar years later.
func (d Date) AddYears(n int) Date {
	return Date{t: d.t.AddDate(n, 0, 0)}
}

// DaysSince returns the number of calendar days between o and d (d - o).
func (d Date) DaysSince(o Date) int {
	return int(d.t.Sub(o.t).Hours() / 24)
}

// Year, Month, Day expose calendar components.
func (d Date) Year() int         { return d.t.Year() }
func (d Date) Month() time.Month { return d.t.Month() }
func (d Date) Day() int          { return d.t.Day() }

// Min returns the earlier of a, b.
func Min(a, b Date) Date {
	if a.Before(b) {
		return a
	}
	return b
}

// Max returns the later of a, b.
func Max(a, b Date) Date {
	if a.After(b) {
		return a
	}
	return b
}

// DaySequence returns every calendar date in [from, to] inclusive.
func DaySequence(from, to Date) []Date {
	if from.After(to) {
		return nil
	}
	n := to.DaysSince(from) + 1
	out := make([]Date, n)
	cur := from
	for i := 0; i < n; i++ {
		out[i] = cur
		cur = cur.AddDays(1)
	}
	return out
}

// FormatDate renders a Date for display under the given locale: LocaleEU
// as DD.MM.YYYY, every other locale as MM/DD/YYYY.
func FormatDate(d Date, locale Locale) string {
	switch locale {
	case LocaleEU:
		return d.t.Format("02.01.2006")
	default:
		return d.t.Format("01/02/2006")
	}
}

// DateRangePreset names a recurring reporting window, resolved relative to a
// reference "today" date. Supplements spec.md §2's "date-range presets with
// navigation" line, following the original Rust `date_utils.rs` enum.
type DateRangePreset string

const (
	PresetThisMonth   DateRangePreset = "this_month"
	PresetLastMonth    DateRangePreset = "last_month"
	PresetThisYear     DateRangePreset = "this_year"
	PresetLastYear     DateRangePreset = "last_year"
	PresetLast30Days   DateRangePreset = "last_30_days"
	PresetLast90Days   DateRangePreset = "last_90_days"
	PresetYearToDate   DateRangePreset = "year_to_date"
	PresetAllTime      DateRangePreset = "all_time"
	PresetCustom       DateRangePreset = "custom"
)

// Range is an inclusive [From, To] date window.
type Range struct {
	From Date
	To   Date
}

// Width returns the number of calendar days spanned by the range, inclusive.
func (r Range) Width() int {
	return r.To.DaysSince(r.From) + 1
}

// Resolve computes the (from, to) window for a preset relative to today.
// PresetAllTime and PresetCustom have no natural resolution and return the
// zero Range; callers substitute the ledger's actual min/max dates.
func Resolve(preset DateRangePreset, today Date) Range {
	switch preset {
	case PresetThisMonth:
		from := NewDate(today.Year(), today.Month(), 1)
		return Range{From: from, To: from.AddMonths(1).AddDays(-1)}
	case PresetLastMonth:
		firstOfThis := NewDate(today.Year(), today.Month(), 1)
		from := firstOfThis.AddMonths(-1)
		return Range{From: from, To: firstOfThis.AddDays(-1)}
	case PresetThisYear:
		from := NewDate(today.Year(), time.January, 1)
		return Range{From: from, To: NewDate(today.Year(), time.December, 31)}
	case PresetLastYear:
		from := NewDate(today.Year()-1, time.January, 1)
		return Range{From: from, To: NewDate(today.Year()-1, time.December, 31)}
	case PresetLast30Days:
		return Range{From: today.AddDays(-29), To: today}
	case PresetLast90Days:
		return Range{From: today.AddDays(-89), To: today}
	case PresetYearToDate:
		return Range{From: NewDate(today.Year(), time.January, 1), To: today}
	default:
		return Range{}
	}
}

// Next shifts a resolved range forward by its own width, for "nav=next"
// navigation over a date-range preset.
func (r Range) Next() Range {
	w := r.Width()
	return Range{From: r.From.AddDays(w), To: r.To.AddDays(w)}
}

// Prev shifts a resolved range backward by its own width, for "nav=prev"
// navigation.
func (r Range) Prev() Range {
	w := r.Width()
	return Range{From: r.From.AddDays(-w), To: r.To.AddDays(-w)}
}
