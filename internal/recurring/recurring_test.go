package recurring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adrianvollmer/solvency/internal/money"
)

func spotifyRows() []TransactionRow {
	dates := []string{
		"2024-01-15", "2024-02-15", "2024-03-15",
		"2024-04-15", "2024-05-15", "2024-06-15",
	}
	rows := make([]TransactionRow, len(dates))
	for i, d := range dates {
		rows[i] = TransactionRow{
			Date:        money.MustParseDate(d),
			AmountCents: -999,
			Description: "SPOTIFY USA",
			Payee:       "Spotify",
		}
	}
	return rows
}

func TestDetect_SpotifyMonthlyScenario(t *testing.T) {
	today := money.MustParseDate("2024-07-01")
	groups := Detect(spotifyRows(), today)

	require.Len(t, groups, 1)
	g := groups[0]
	assert.Equal(t, "Spotify", g.DisplayName)
	assert.Equal(t, Monthly, g.Frequency)
	assert.Equal(t, money.Cents(999), g.MedianAmount)
	assert.Equal(t, 6, g.OccurrenceCount)
	assert.Equal(t, money.Cents(999*12), g.AnnualCost)
	assert.Equal(t, money.MustParseDate("2024-06-15"), g.LastDate)
	assert.False(t, g.Inactive)
}

func TestDetect_FewerThanThreeOccurrences(t *testing.T) {
	rows := spotifyRows()[:2]
	groups := Detect(rows, money.MustParseDate("2024-07-01"))
	assert.Empty(t, groups)
}

func TestDetect_InactiveAfterOneYear(t *testing.T) {
	groups := Detect(spotifyRows(), money.MustParseDate("2025-12-01"))
	require.Len(t, groups, 1)
	assert.True(t, groups[0].Inactive)
}

func TestDetect_AmountOutlierExcluded(t *testing.T) {
	rows := spotifyRows()
	rows = append(rows, TransactionRow{
		Date:        money.MustParseDate("2024-07-15"),
		AmountCents: -50000,
		Description: "SPOTIFY USA",
		Payee:       "Spotify",
	})
	groups := Detect(rows, money.MustParseDate("2024-08-01"))
	require.Len(t, groups, 1)
	assert.Equal(t, 6, groups[0].OccurrenceCount)
}

func TestDetect_IBANKeysNeverMerged(t *testing.T) {
	rows := []TransactionRow{
		{Date: money.MustParseDate("2024-01-01"), AmountCents: -500, CounterpartyIBAN: "DE0001"},
		{Date: money.MustParseDate("2024-02-01"), AmountCents: -500, CounterpartyIBAN: "DE0001"},
		{Date: money.MustParseDate("2024-03-01"), AmountCents: -500, CounterpartyIBAN: "DE0001"},
		{Date: money.MustParseDate("2024-01-01"), AmountCents: -500, CounterpartyIBAN: "DE00012"},
		{Date: money.MustParseDate("2024-02-01"), AmountCents: -500, CounterpartyIBAN: "DE00012"},
	}
	groups := Detect(rows, money.MustParseDate("2024-04-01"))
	require.Len(t, groups, 1)
	assert.Equal(t, 3, groups[0].OccurrenceCount)
}

func TestNormalizeDescription_StripsTrailingDigitsAndPunctuation(t *testing.T) {
	assert.Equal(t, "invoice payment", normalizeDescription("Invoice Payment #4471"))
	assert.Equal(t, "netflixcom", normalizeDescription("NETFLIX.COM 123456"))
}

func TestClassifyFrequency_Boundaries(t *testing.T) {
	cases := []struct {
		days float64
		want Frequency
		ok   bool
	}{
		{5, Weekly, true},
		{9, Weekly, true},
		{10, "", false},
		{28, Monthly, true},
		{35, Monthly, true},
		{85, Quarterly, true},
		{100, Quarterly, true},
		{350, Yearly, true},
		{380, Yearly, true},
		{400, "", false},
	}
	for _, c := range cases {
		got, ok := classifyFrequency(c.days)
		assert.Equal(t, c.ok, ok, "days=%v", c.days)
		if ok {
			assert.Equal(t, c.want, got, "days=%v", c.days)
		}
	}
}
