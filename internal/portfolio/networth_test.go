package portfolio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adrianvollmer/solvency/internal/money"
)

func TestBuildNetWorthSeries_Fusion(t *testing.T) {
	day1 := money.MustParseDate("2024-01-01")
	day2 := money.MustParseDate("2024-01-02")
	day3 := money.MustParseDate("2024-01-03")

	depositPrice := money.Cents(20000_00)
	daily := []DailyExpense{{Date: day1, Cents: 10000_00}}
	activities := []Activity{
		{ID: 1, Date: day2, Symbol: "XYZ", Kind: Buy, Quantity: 1, UnitPriceCents: &depositPrice, Currency: "USD"},
	}
	points := []MarketDataPoint{
		{Symbol: "XYZ", Date: day3, ClosePriceCents: 25000_00},
	}

	series := BuildNetWorthSeries(daily, activities, points)
	require.Len(t, series, 3)

	assert.Equal(t, day1, series[0].Date)
	assert.Equal(t, money.Cents(10000_00), series[0].NetWorthCents)

	assert.Equal(t, day2, series[1].Date)
	assert.Equal(t, money.Cents(10000_00+20000_00), series[1].NetWorthCents)

	assert.Equal(t, day3, series[2].Date)
	assert.Equal(t, money.Cents(10000_00+25000_00), series[2].NetWorthCents)
	assert.Equal(t, money.Cents(25000_00), series[2].PortfolioComponent)
}

func TestBuildNetWorthSeries_LengthMatchesDateRange(t *testing.T) {
	from := money.MustParseDate("2024-01-01")
	to := money.MustParseDate("2024-01-10")
	daily := []DailyExpense{{Date: from, Cents: 100}, {Date: to, Cents: 200}}

	series := BuildNetWorthSeries(daily, nil, nil)
	assert.Equal(t, to.DaysSince(from)+1, len(series))

	for _, p := range series {
		assert.Equal(t, p.NetWorthCents, p.ExpenseComponent+p.PortfolioComponent)
	}
}

func TestBuildNetWorthSeries_Empty(t *testing.T) {
	series := BuildNetWorthSeries(nil, nil, nil)
	assert.Empty(t, series)
}

func TestDecimatePoints_RetainsExtremes(t *testing.T) {
	var series []NetWorthPoint
	base := money.MustParseDate("2024-01-01")
	for i := 0; i < 100; i++ {
		series = append(series, NetWorthPoint{Date: base.AddDays(i), NetWorthCents: money.Cents(i)})
	}
	series[50].NetWorthCents = 9999 // artificial max

	decimated := DecimatePoints(series, 10)
	assert.Equal(t, series[0].Date, decimated[0].Date)
	assert.Equal(t, series[len(series)-1].Date, decimated[len(decimated)-1].Date)

	foundMax := false
	for _, p := range decimated {
		if p.NetWorthCents == 9999 {
			foundMax = true
		}
	}
	assert.True(t, foundMax, "decimation must retain the argmax point")
}
