package portfolio

import (
	"sort"

	"github.com/adrianvollmer/solvency/internal/money"
)

// DailyExpense is one day's signed sum of transaction amounts.
type DailyExpense struct {
	Date  money.Date
	Cents money.Cents
}

// NetWorthPoint is one day's fused net-worth figure.
type NetWorthPoint struct {
	Date                money.Date
	NetWorthCents        money.Cents
	ExpenseComponent     money.Cents
	PortfolioComponent   money.Cents
}

// BuildNetWorthSeries runs the date sweep of spec.md §4.5: a cumulative
// cash-flow series fused with a per-symbol position ledger valued against
// the carry-forward price lookup.
func BuildNetWorthSeries(dailyExpenses []DailyExpense, activities []Activity, points []MarketDataPoint) []NetWorthPoint {
	if len(dailyExpenses) == 0 && len(activities) == 0 {
		return nil
	}

	cumulative := buildCumulativeExpenses(dailyExpenses)

	lookup := NewPriceLookup(points, activities)

	sortedActivities := make([]Activity, len(activities))
	copy(sortedActivities, activities)
	sort.Slice(sortedActivities, func(i, j int) bool {
		if !sortedActivities[i].Date.Equal(sortedActivities[j].Date) {
			return sortedActivities[i].Date.Before(sortedActivities[j].Date)
		}
		return sortedActivities[i].ID < sortedActivities[j].ID
	})

	earliest, latest, ok := dateBounds(dailyExpenses, sortedActivities)
	if !ok {
		return nil
	}

	engine := NewEngine()
	activityIdx := 0

	days := money.DaySequence(earliest, latest)
	out := make([]NetWorthPoint, 0, len(days))

	for _, d := range days {
		for activityIdx < len(sortedActivities) && !sortedActivities[activityIdx].Date.After(d) {
			engine.Apply(sortedActivities[activityIdx])
			activityIdx++
		}

		expenseComponent := floorLookup(cumulative, d)

		portfolioComponent := money.Cents(0)
		for symbol, st := range engine.States() {
			if IsCashSymbol(symbol) {
				portfolioComponent = money.SaturatingAdd(portfolioComponent, st.TotalCostCents)
				continue
			}
			if st.Quantity == 0 {
				continue
			}
			price, _, found := lookup.Lookup(symbol, d)
			if found {
				portfolioComponent = money.SaturatingAdd(portfolioComponent, money.RoundCents(st.Quantity*price.Major()*100))
			} else {
				portfolioComponent = money.SaturatingAdd(portfolioComponent, st.TotalCostCents)
			}
		}

		netWorth := money.SaturatingAdd(expenseComponent, portfolioComponent)

		out = append(out, NetWorthPoint{
			Date:               d,
			NetWorthCents:      netWorth,
			ExpenseComponent:   expenseComponent,
			PortfolioComponent: portfolioComponent,
		})
	}

	return out
}

// buildCumulativeExpenses returns a date-sorted running sum of daily
// transaction totals, mirroring the Rust BTreeMap<Date, i64>.
func buildCumulativeExpenses(daily []DailyExpense) []DailyExpense {
	byDate := map[string]money.Cents{}
	for _, d := range daily {
		byDate[d.Date.String()] = money.SaturatingAdd(byDate[d.Date.String()], d.Cents)
	}

	dates := make([]money.Date, 0, len(byDate))
	for _, d := range daily {
		if _, seen := findDate(dates, d.Date); !seen {
			dates = append(dates, d.Date)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	out := make([]DailyExpense, 0, len(dates))
	running := money.Cents(0)
	for _, d := range dates {
		running = money.SaturatingAdd(running, byDate[d.String()])
		out = append(out, DailyExpense{Date: d, Cents: running})
	}
	return out
}

func findDate(dates []money.Date, d money.Date) (int, bool) {
	for i, x := range dates {
		if x.Equal(d) {
			return i, true
		}
	}
	return -1, false
}

// floorLookup returns the greatest cumulative-expense entry with date <= on,
// or 0 if none exists.
func floorLookup(cumulative []DailyExpense, on money.Date) money.Cents {
	idx := sort.Search(len(cumulative), func(i int) bool { return cumulative[i].Date.After(on) })
	if idx == 0 {
		return 0
	}
	return cumulative[idx-1].Cents
}

func dateBounds(daily []DailyExpense, activities []Activity) (earliest, latest money.Date, ok bool) {
	has := false
	for _, d := range daily {
		if !has {
			earliest, latest = d.Date, d.Date
			has = true
			continue
		}
		earliest = money.Min(earliest, d.Date)
		latest = money.Max(latest, d.Date)
	}
	for _, a := range activities {
		if !has {
			earliest, latest = a.Date, a.Date
			has = true
			continue
		}
		earliest = money.Min(earliest, a.Date)
		latest = money.Max(latest, a.Date)
	}
	return earliest, latest, has
}

// DecimatePoints reduces series to at most approximately N points while
// always retaining the first, last, argmin, and argmax of NetWorthCents and
// every stride-th point, per spec.md §4.5's chart-decimation algorithm.
func DecimatePoints(series []NetWorthPoint, n int) []NetWorthPoint {
	if n <= 0 || len(series) <= n {
		return series
	}

	keep := map[int]bool{0: true, len(series) - 1: true}

	minIdx, maxIdx := 0, 0
	for i, p := range series {
		if p.NetWorthCents < series[minIdx].NetWorthCents {
			minIdx = i
		}
		if p.NetWorthCents > series[maxIdx].NetWorthCents {
			maxIdx = i
		}
	}
	keep[minIdx] = true
	keep[maxIdx] = true

	stride := len(series) / n
	if stride < 1 {
		stride = 1
	}
	for i := 0; i < len(series); i += stride {
		keep[i] = true
	}

	indices := make([]int, 0, len(keep))
	for i := range keep {
		indices = append(indices, i)
	}
	sort.Ints(indices)

	out := make([]NetWorthPoint, 0, len(indices))
	for _, i := range indices {
		out = append(out, series[i])
	}
	return out
}
