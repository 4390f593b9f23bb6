package portfolio

import (
	"sort"

	"github.com/adrianvollmer/solvency/internal/money"
)

// PriceSeries is a symbol's sorted date→close_price_cents map plus a
// fallback price derived from the most recent Buy/Sell unit price, per
// spec.md §4.4.
type PriceSeries struct {
	dates    []money.Date // sorted ascending
	prices   map[string]money.Cents
	fallback *money.Cents
}

// PriceLookup holds a PriceSeries per symbol.
type PriceLookup struct {
	series map[string]*PriceSeries
}

// NewPriceLookup builds a PriceLookup from market-data points and the
// trading-activity stream (for fallback prices).
func NewPriceLookup(points []MarketDataPoint, activities []Activity) *PriceLookup {
	l := &PriceLookup{series: make(map[string]*PriceSeries)}

	for _, p := range points {
		s := l.seriesFor(p.Symbol)
		if _, exists := s.prices[p.Date.String()]; !exists {
			s.dates = append(s.dates, p.Date)
		}
		s.prices[p.Date.String()] = p.ClosePriceCents
	}
	for sym, s := range l.series {
		_ = sym
		sort.Slice(s.dates, func(i, j int) bool { return s.dates[i].Before(s.dates[j]) })
	}

	// Fallback: most recent Buy/Sell unit price by date, per symbol.
	latestByDate := map[string]money.Date{}
	latestPrice := map[string]money.Cents{}
	for _, a := range activities {
		if a.Kind != Buy && a.Kind != Sell {
			continue
		}
		if a.UnitPriceCents == nil {
			continue
		}
		if prev, ok := latestByDate[a.Symbol]; !ok || a.Date.After(prev) {
			latestByDate[a.Symbol] = a.Date
			latestPrice[a.Symbol] = *a.UnitPriceCents
		}
	}
	for sym, price := range latestPrice {
		s := l.seriesFor(sym)
		p := price
		s.fallback = &p
	}

	return l
}

func (l *PriceLookup) seriesFor(symbol string) *PriceSeries {
	s, ok := l.series[symbol]
	if !ok {
		s = &PriceSeries{prices: make(map[string]money.Cents)}
		l.series[symbol] = s
	}
	return s
}

// MarketDataPoint is a single (symbol, date) closing price.
type MarketDataPoint struct {
	ID              int64
	Symbol          string
	Date            money.Date
	ClosePriceCents money.Cents
	Currency        string
}

// staleThresholdDays is the maximum carry-forward gap still considered
// "has current price" for display purposes (spec.md §4.4).
const staleThresholdDays = 5

// Lookup resolves a price for (symbol, on) per the 5-step contract in
// spec.md §4.4: no price for cash pseudo-symbols; exact match; carry
// forward; fallback; or none.
func (l *PriceLookup) Lookup(symbol string, on money.Date) (price money.Cents, stale bool, found bool) {
	if IsCashSymbol(symbol) {
		return 0, false, false
	}

	s, ok := l.series[symbol]
	if !ok {
		return 0, false, false
	}

	if exact, ok := s.prices[on.String()]; ok {
		return exact, false, true
	}

	// Carry forward: greatest date <= on.
	idx := sort.Search(len(s.dates), func(i int) bool { return s.dates[i].After(on) })
	if idx > 0 {
		best := s.dates[idx-1]
		gap := on.DaysSince(best)
		return s.prices[best.String()], gap > staleThresholdDays, true
	}

	if s.fallback != nil {
		return *s.fallback, true, true
	}

	return 0, false, false
}
