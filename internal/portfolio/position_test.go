package portfolio

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/adrianvollmer/solvency/internal/money"
)

func priceOf(cents int64) *money.Cents {
	c := money.Cents(cents)
	return &c
}

func TestEngine_PartialSell(t *testing.T) {
	e := NewEngine()
	buyPrice := priceOf(100_00)
	sellPrice := priceOf(120_00)

	e.ApplyAll([]Activity{
		{ID: 1, Date: money.MustParseDate("2024-01-01"), Symbol: "MSFT", Kind: Buy, Quantity: 10, UnitPriceCents: buyPrice},
		{ID: 2, Date: money.MustParseDate("2024-02-01"), Symbol: "MSFT", Kind: Sell, Quantity: 3, UnitPriceCents: sellPrice},
	})

	st := e.State("MSFT")
	assert.Equal(t, 7.0, st.Quantity)
	assert.Equal(t, money.Cents(70000), st.TotalCostCents)
}

func TestEngine_QuantityAndCostNeverNegative(t *testing.T) {
	e := NewEngine()
	price := priceOf(10_00)

	e.ApplyAll([]Activity{
		{ID: 1, Date: money.MustParseDate("2024-01-01"), Symbol: "ABC", Kind: Buy, Quantity: 5, UnitPriceCents: price},
		{ID: 2, Date: money.MustParseDate("2024-01-02"), Symbol: "ABC", Kind: Sell, Quantity: 100, UnitPriceCents: price},
	})

	st := e.State("ABC")
	assert.GreaterOrEqual(t, st.Quantity, 0.0)
	assert.GreaterOrEqual(t, int64(st.TotalCostCents), int64(0))
}

func TestEngine_CashPseudoSymbolSortsFirst(t *testing.T) {
	e := NewEngine()
	price := priceOf(1_00)
	e.ApplyAll([]Activity{
		{ID: 1, Date: money.MustParseDate("2024-01-01"), Symbol: "ZZZ", Kind: Buy, Quantity: 1, UnitPriceCents: price},
		{ID: 2, Date: money.MustParseDate("2024-01-01"), Symbol: CashSymbol("USD"), Kind: Deposit, Quantity: 100, UnitPriceCents: price},
		{ID: 3, Date: money.MustParseDate("2024-01-01"), Symbol: "AAA", Kind: Buy, Quantity: 1, UnitPriceCents: price},
	})

	positions := e.SortedPositions()
	assert.Equal(t, CashSymbol("USD"), positions[0].Symbol)
	assert.Equal(t, "AAA", positions[1].Symbol)
	assert.Equal(t, "ZZZ", positions[2].Symbol)
}

func TestIsCashSymbol(t *testing.T) {
	assert.True(t, IsCashSymbol("$CASH-USD"))
	assert.False(t, IsCashSymbol("AAPL"))
}
