// Package recurring implements the recurring-expense detector: counterparty
// grouping with prefix-merge, median-based amount filtering, and interval
// classification (spec.md §4.7).
package recurring

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/adrianvollmer/solvency/internal/money"
)

// Frequency is a classified recurrence interval.
type Frequency string

const (
	Weekly    Frequency = "Weekly"
	Monthly   Frequency = "Monthly"
	Quarterly Frequency = "Quarterly"
	Yearly    Frequency = "Yearly"
)

// annualMultiplier maps a Frequency to occurrences-per-year, for annualCost.
var annualMultiplier = map[Frequency]float64{
	Weekly:    52,
	Monthly:   12,
	Quarterly: 4,
	Yearly:    1,
}

// TransactionRow is the input shape for detection: one ledger transaction.
type TransactionRow struct {
	Date             money.Date
	AmountCents      money.Cents
	Description      string
	Payee            string
	CounterpartyIBAN string
}

// Group is one detected recurring expense.
type Group struct {
	DisplayName      string
	Frequency        Frequency
	MedianAmount     money.Cents
	LastDate         money.Date
	AnnualCost       money.Cents
	TotalSpent       money.Cents
	OccurrenceCount  int
	Inactive         bool
}

const (
	minOccurrences     = 3
	minKeyRawLength    = 5
	amountTolerancePct = 0.05
	amountToleranceAbs = 100 // $1.00 in cents
)

type keyKind int

const (
	keyIBAN keyKind = iota
	keyPayee
	keyDescription
)

type groupKey struct {
	kind keyKind
	raw  string // normalized, pre-merge
}

var trailingDigitsRe = regexp.MustCompile(`[\d\s]+$`)
var nonAlnumRe = regexp.MustCompile(`[^a-z0-9\s]`)
var whitespaceRe = regexp.MustCompile(`\s+`)

// normalizeDescription lowercases, drops non-alphanumeric/non-whitespace,
// collapses whitespace, and strips a trailing run of digits/spaces (invoice
// numbers, dates), per spec.md §4.7 step 1.
func normalizeDescription(s string) string {
	s = strings.ToLower(s)
	s = nonAlnumRe.ReplaceAllString(s, "")
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	s = trailingDigitsRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

func keyFor(t TransactionRow) (groupKey, bool) {
	if t.CounterpartyIBAN != "" {
		return groupKey{kind: keyIBAN, raw: t.CounterpartyIBAN}, true
	}
	if t.Payee != "" {
		norm := normalizeDescription(t.Payee)
		if norm == "" {
			return groupKey{}, false
		}
		return groupKey{kind: keyPayee, raw: norm}, true
	}
	norm := normalizeDescription(t.Description)
	if norm == "" {
		return groupKey{}, false
	}
	return groupKey{kind: keyDescription, raw: norm}, true
}

// unionFind implements prefix-merge via path-compressed union-find over
// group keys (§4.7 step 3). IBAN keys are never merged.
type unionFind struct {
	parent map[string]string
}

func newUnionFind() *unionFind {
	return &unionFind{parent: map[string]string{}}
}

func (u *unionFind) find(x string) string {
	if _, ok := u.parent[x]; !ok {
		u.parent[x] = x
		return x
	}
	if u.parent[x] != x {
		u.parent[x] = u.find(u.parent[x])
	}
	return u.parent[x]
}

func (u *unionFind) union(a, b string) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	// Prefer the shorter (more general) representative as root.
	if len(ra) <= len(rb) {
		u.parent[rb] = ra
	} else {
		u.parent[ra] = rb
	}
}

// mergeKeys merges keys of the same non-IBAN kind where one's raw part is a
// prefix of another's, both at least minKeyRawLength long.
func mergeKeys(keys []groupKey) map[groupKey]string {
	uf := newUnionFind()
	byKind := map[keyKind][]groupKey{}
	for _, k := range keys {
		if k.kind == keyIBAN {
			continue
		}
		byKind[k.kind] = append(byKind[k.kind], k)
		uf.find(k.raw)
	}

	for _, group := range byKind {
		for i := range group {
			for j := range group {
				if i == j {
					continue
				}
				a, b := group[i].raw, group[j].raw
				if len(a) < minKeyRawLength || len(b) < minKeyRawLength {
					continue
				}
				if strings.HasPrefix(b, a) {
					uf.union(a, b)
				}
			}
		}
	}

	canonical := map[groupKey]string{}
	for _, k := range keys {
		if k.kind == keyIBAN {
			canonical[k] = "iban:" + k.raw
			continue
		}
		canonical[k] = uf.find(k.raw)
	}
	return canonical
}

func median(cents []money.Cents) float64 {
	if len(cents) == 0 {
		return 0
	}
	vals := make([]float64, len(cents))
	for i, c := range cents {
		vals[i] = math.Abs(float64(c))
	}
	sort.Float64s(vals)
	return stat.Quantile(0.5, stat.Empirical, vals, nil)
}

func medianDays(intervals []int) float64 {
	if len(intervals) == 0 {
		return 0
	}
	vals := make([]float64, len(intervals))
	for i, v := range intervals {
		vals[i] = float64(v)
	}
	sort.Float64s(vals)
	return stat.Quantile(0.5, stat.Empirical, vals, nil)
}

func classifyFrequency(medianInterval float64) (Frequency, bool) {
	switch {
	case medianInterval >= 5 && medianInterval <= 9:
		return Weekly, true
	case medianInterval >= 28 && medianInterval <= 35:
		return Monthly, true
	case medianInterval >= 85 && medianInterval <= 100:
		return Quarterly, true
	case medianInterval >= 350 && medianInterval <= 380:
		return Yearly, true
	default:
		return "", false
	}
}

// Detect runs the full pipeline: key, group, prefix-merge, amount-filter,
// interval-classify, emit — sorted by annual cost descending.
func Detect(rows []TransactionRow, today money.Date) []Group {
	type keyed struct {
		row TransactionRow
		key groupKey
	}

	var keys []groupKey
	var keyedRows []keyed
	for _, r := range rows {
		k, ok := keyFor(r)
		if !ok {
			continue
		}
		keys = append(keys, k)
		keyedRows = append(keyedRows, keyed{row: r, key: k})
	}

	canonical := mergeKeys(keys)

	byCanonical := map[string][]TransactionRow{}
	for _, kr := range keyedRows {
		c := canonical[kr.key]
		byCanonical[c] = append(byCanonical[c], kr.row)
	}

	var groups []Group
	for _, rows := range byCanonical {
		if len(rows) < minOccurrences {
			continue
		}

		sort.Slice(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })

		amounts := make([]money.Cents, len(rows))
		for i, r := range rows {
			amounts[i] = r.AmountCents
		}
		med := median(amounts)
		tolerance := math.Max(med*amountTolerancePct, amountToleranceAbs)

		var filtered []TransactionRow
		for _, r := range rows {
			if math.Abs(math.Abs(float64(r.AmountCents))-med) <= tolerance {
				filtered = append(filtered, r)
			}
		}
		if len(filtered) < minOccurrences {
			continue
		}

		var intervals []int
		for i := 1; i < len(filtered); i++ {
			intervals = append(intervals, filtered[i].Date.DaysSince(filtered[i-1].Date))
		}
		freq, ok := classifyFrequency(medianDays(intervals))
		if !ok {
			continue
		}

		filteredAmounts := make([]money.Cents, len(filtered))
		var total money.Cents
		for i, r := range filtered {
			filteredAmounts[i] = r.AmountCents
			total = money.SaturatingAdd(total, r.AmountCents)
		}
		medianAmount := money.RoundCents(median(filteredAmounts))

		last := filtered[len(filtered)-1]
		displayName := last.Payee
		if displayName == "" {
			displayName = last.Description
		}

		groups = append(groups, Group{
			DisplayName:     displayName,
			Frequency:       freq,
			MedianAmount:    medianAmount,
			LastDate:        last.Date,
			AnnualCost:      money.RoundCents(float64(medianAmount) * annualMultiplier[freq]),
			TotalSpent:      total,
			OccurrenceCount: len(filtered),
			Inactive:        today.DaysSince(last.Date) > 365,
		})
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].AnnualCost > groups[j].AnnualCost })
	return groups
}
