package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adrianvollmer/solvency/internal/money"
)

func intPtr(i int64) *int64 { return &i }

func TestBuildSpendingSummary_EmptySetReturnsZeroValue(t *testing.T) {
	assert.Equal(t, SpendingSummary{}, BuildSpendingSummary(nil))
}

func TestBuildSpendingSummary_AggregatesTotalsAndExtremes(t *testing.T) {
	txs := []Transaction{
		{AmountCents: -4200},
		{AmountCents: -1500},
		{AmountCents: 10000},
	}
	s := BuildSpendingSummary(txs)
	assert.EqualValues(t, 4300, s.TotalCents)
	assert.Equal(t, 3, s.TransactionCount)
	assert.EqualValues(t, 1433, s.AverageCents)
	assert.EqualValues(t, 10000, s.MaxCents)
	assert.EqualValues(t, -4200, s.MinCents)
}

func TestBuildSpendingByCategory_GroupsAndLabelsUncategorized(t *testing.T) {
	groceries := Category{ID: 1, Name: "Groceries", Color: "#ff0000"}
	categories := []Category{groceries}
	txs := []Transaction{
		{CategoryID: intPtr(1), AmountCents: -3000},
		{CategoryID: intPtr(1), AmountCents: -1000},
		{CategoryID: nil, AmountCents: -4000},
	}

	breakdown := BuildSpendingByCategory(txs, categories)
	require.Len(t, breakdown, 2)

	var groceriesRow, uncategorizedRow *CategoryBreakdown
	for i := range breakdown {
		switch breakdown[i].Category {
		case "Groceries":
			groceriesRow = &breakdown[i]
		case uncategorizedLabel:
			uncategorizedRow = &breakdown[i]
		}
	}
	require.NotNil(t, groceriesRow)
	require.NotNil(t, uncategorizedRow)
	assert.EqualValues(t, -4000, groceriesRow.TotalCents)
	assert.Equal(t, "#ff0000", groceriesRow.Color)
	assert.Equal(t, 2, groceriesRow.TransactionCount)
	assert.EqualValues(t, -4000, uncategorizedRow.TotalCents)
	assert.Equal(t, "#6b7280", uncategorizedRow.Color)
}

func TestBuildSpendingOverTime_GroupsByCalendarDateInOrder(t *testing.T) {
	txs := []Transaction{
		{Date: money.NewDate(2024, time.January, 5), AmountCents: -100},
		{Date: money.NewDate(2024, time.January, 1), AmountCents: -200},
		{Date: money.NewDate(2024, time.January, 1), AmountCents: -50},
	}
	daily := BuildSpendingOverTime(txs)
	require.Len(t, daily, 2)
	assert.Equal(t, "2024-01-01", daily[0].Date)
	assert.EqualValues(t, -250, daily[0].TotalCents)
	assert.Equal(t, 2, daily[0].TransactionCount)
	assert.Equal(t, "2024-01-05", daily[1].Date)
}

func TestBuildMonthlySummary_GroupsAcrossMonthsInOrder(t *testing.T) {
	txs := []Transaction{
		{Date: money.NewDate(2024, time.February, 5), AmountCents: -150},
		{Date: money.NewDate(2024, time.January, 1), AmountCents: -100},
		{Date: money.NewDate(2024, time.January, 20), AmountCents: -50},
	}
	monthly := BuildMonthlySummary(txs)
	require.Len(t, monthly, 2)
	assert.Equal(t, "2024-01", monthly[0].Month)
	assert.EqualValues(t, -150, monthly[0].TotalCents)
	assert.Equal(t, 2, monthly[0].TransactionCount)
	assert.Equal(t, "2024-02", monthly[1].Month)
}

func TestBuildMonthlyByCategory_PartitionsThenBreaksDownEachMonth(t *testing.T) {
	groceries := Category{ID: 1, Name: "Groceries"}
	txs := []Transaction{
		{Date: money.NewDate(2024, time.January, 1), CategoryID: intPtr(1), AmountCents: -100},
		{Date: money.NewDate(2024, time.February, 1), CategoryID: intPtr(1), AmountCents: -200},
	}
	byMonth := BuildMonthlyByCategory(txs, []Category{groceries})
	require.Len(t, byMonth, 2)
	assert.Equal(t, "2024-01", byMonth[0].Month)
	require.Len(t, byMonth[0].Categories, 1)
	assert.EqualValues(t, -100, byMonth[0].Categories[0].TotalCents)
	assert.Equal(t, "2024-02", byMonth[1].Month)
}
