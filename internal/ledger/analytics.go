package ledger

import (
	"fmt"
	"sort"

	"github.com/adrianvollmer/solvency/internal/money"
)

const uncategorizedLabel = "Uncategorized"

// SpendingSummary aggregates a transaction set into total/average/extremes,
// grounded on original_source/src/services/analytics.rs's SpendingSummary.
type SpendingSummary struct {
	TotalCents       money.Cents `json:"total_cents"`
	TransactionCount int         `json:"transaction_count"`
	AverageCents     money.Cents `json:"average_cents"`
	MaxCents         money.Cents `json:"max_cents"`
	MinCents         money.Cents `json:"min_cents"`
}

// BuildSpendingSummary mirrors analytics.rs's SpendingSummary::from_transactions.
func BuildSpendingSummary(transactions []Transaction) SpendingSummary {
	if len(transactions) == 0 {
		return SpendingSummary{}
	}
	s := SpendingSummary{MaxCents: transactions[0].AmountCents, MinCents: transactions[0].AmountCents}
	for _, t := range transactions {
		s.TotalCents += t.AmountCents
		if t.AmountCents > s.MaxCents {
			s.MaxCents = t.AmountCents
		}
		if t.AmountCents < s.MinCents {
			s.MinCents = t.AmountCents
		}
	}
	s.TransactionCount = len(transactions)
	s.AverageCents = s.TotalCents / money.Cents(s.TransactionCount)
	return s
}

// CategoryBreakdown is one category's share of a transaction set, grounded
// on analytics.rs's CategoryBreakdown/spending_by_category.
type CategoryBreakdown struct {
	Category         string      `json:"category"`
	Color            string      `json:"color"`
	TotalCents       money.Cents `json:"total_cents"`
	Percentage       float64     `json:"percentage"`
	TransactionCount int         `json:"transaction_count"`
}

// BuildSpendingByCategory groups transactions by their direct category
// (no path materialization — a sibling view to the Sankey's full chain),
// labeling category-less rows "Uncategorized" and defaulting an unset color
// to the same neutral gray analytics.rs uses. Percentage is of the signed
// total across the whole set, matching the Rust implementation exactly
// (not of the sum of absolute values).
func BuildSpendingByCategory(transactions []Transaction, categories []Category) []CategoryBreakdown {
	byID := make(map[int64]Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}

	type accum struct {
		color string
		total money.Cents
		count int
	}
	byName := make(map[string]*accum)
	var order []string
	var grandTotal money.Cents

	for _, t := range transactions {
		name := uncategorizedLabel
		color := "#6b7280"
		if t.CategoryID != nil {
			if c, ok := byID[*t.CategoryID]; ok {
				name = c.Name
				if c.Color != "" {
					color = c.Color
				}
			}
		}
		a, ok := byName[name]
		if !ok {
			a = &accum{color: color}
			byName[name] = a
			order = append(order, name)
		}
		a.total += t.AmountCents
		a.count++
		grandTotal += t.AmountCents
	}

	out := make([]CategoryBreakdown, 0, len(order))
	for _, name := range order {
		a := byName[name]
		var pct float64
		if grandTotal != 0 {
			pct = float64(a.total) / float64(grandTotal) * 100.0
		}
		out = append(out, CategoryBreakdown{
			Category:         name,
			Color:            a.color,
			TotalCents:       a.total,
			Percentage:       pct,
			TransactionCount: a.count,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TotalCents > out[j].TotalCents })
	return out
}

// DailySpending is one calendar day's totals, grounded on analytics.rs's
// DailySpending/spending_by_day.
type DailySpending struct {
	Date             string      `json:"date"`
	TotalCents       money.Cents `json:"total_cents"`
	TransactionCount int         `json:"transaction_count"`
}

// BuildSpendingOverTime groups transactions by calendar date.
func BuildSpendingOverTime(transactions []Transaction) []DailySpending {
	type accum struct {
		total money.Cents
		count int
	}
	byDate := make(map[string]*accum)
	var order []string
	for _, t := range transactions {
		key := t.Date.String()
		a, ok := byDate[key]
		if !ok {
			a = &accum{}
			byDate[key] = a
			order = append(order, key)
		}
		a.total += t.AmountCents
		a.count++
	}
	sort.Strings(order)
	out := make([]DailySpending, 0, len(order))
	for _, key := range order {
		a := byDate[key]
		out = append(out, DailySpending{Date: key, TotalCents: a.total, TransactionCount: a.count})
	}
	return out
}

// MonthlySummary is one calendar month's totals, the monthly analogue of
// DailySpending that spec.md §6's monthly-summary chart needs but
// analytics.rs has no direct equivalent of (it only buckets by day).
type MonthlySummary struct {
	Month            string      `json:"month"` // "YYYY-MM"
	TotalCents       money.Cents `json:"total_cents"`
	TransactionCount int         `json:"transaction_count"`
}

// BuildMonthlySummary groups transactions by calendar month.
func BuildMonthlySummary(transactions []Transaction) []MonthlySummary {
	type accum struct {
		total money.Cents
		count int
	}
	byMonth := make(map[string]*accum)
	var order []string
	for _, t := range transactions {
		key := fmt.Sprintf("%04d-%02d", t.Date.Year(), int(t.Date.Month()))
		a, ok := byMonth[key]
		if !ok {
			a = &accum{}
			byMonth[key] = a
			order = append(order, key)
		}
		a.total += t.AmountCents
		a.count++
	}
	sort.Strings(order)
	out := make([]MonthlySummary, 0, len(order))
	for _, key := range order {
		a := byMonth[key]
		out = append(out, MonthlySummary{Month: key, TotalCents: a.total, TransactionCount: a.count})
	}
	return out
}

// MonthlyCategoryBreakdown is one month's per-category totals, the
// monthly-by-category chart's data shape.
type MonthlyCategoryBreakdown struct {
	Month      string              `json:"month"`
	Categories []CategoryBreakdown `json:"categories"`
}

// BuildMonthlyByCategory partitions transactions into calendar months and
// runs BuildSpendingByCategory within each month.
func BuildMonthlyByCategory(transactions []Transaction, categories []Category) []MonthlyCategoryBreakdown {
	byMonth := make(map[string][]Transaction)
	var order []string
	for _, t := range transactions {
		key := fmt.Sprintf("%04d-%02d", t.Date.Year(), int(t.Date.Month()))
		if _, ok := byMonth[key]; !ok {
			order = append(order, key)
		}
		byMonth[key] = append(byMonth[key], t)
	}
	sort.Strings(order)
	out := make([]MonthlyCategoryBreakdown, 0, len(order))
	for _, key := range order {
		out = append(out, MonthlyCategoryBreakdown{
			Month:      key,
			Categories: BuildSpendingByCategory(byMonth[key], categories),
		})
	}
	return out
}

// TopTransactions returns the n transactions with the largest absolute
// amount, ties broken by date descending then id descending, mirroring
// original_source/src/handlers/net_worth.rs's `ORDER BY ABS(amount_cents)
// DESC LIMIT 20` query.
func TopTransactions(transactions []Transaction, n int) []Transaction {
	out := make([]Transaction, len(transactions))
	copy(out, transactions)
	sort.Slice(out, func(i, j int) bool {
		ai, aj := abs(out[i].AmountCents), abs(out[j].AmountCents)
		if ai != aj {
			return ai > aj
		}
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID > out[j].ID
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func abs(c money.Cents) money.Cents {
	if c < 0 {
		return -c
	}
	return c
}
