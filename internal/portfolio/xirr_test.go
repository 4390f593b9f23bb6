package portfolio

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/adrianvollmer/solvency/internal/money"
)

func TestXIRR_TenPercentOverOneYear(t *testing.T) {
	flows := []CashFlow{
		{Date: money.MustParseDate("2023-01-01"), Cents: -1000_00},
		{Date: money.MustParseDate("2024-01-01"), Cents: 1100_00},
	}

	r, ok := XIRR(flows)
	assert.True(t, ok)
	assert.InDelta(t, 0.10, r, 0.001)
}

func TestXIRR_SameSignReturnsNoRate(t *testing.T) {
	flows := []CashFlow{
		{Date: money.MustParseDate("2023-01-01"), Cents: 1000_00},
		{Date: money.MustParseDate("2024-01-01"), Cents: 1100_00},
	}

	_, ok := XIRR(flows)
	assert.False(t, ok)
}

func TestXIRR_SingleFlowReturnsNoRate(t *testing.T) {
	flows := []CashFlow{
		{Date: money.MustParseDate("2023-01-01"), Cents: -1000_00},
	}
	_, ok := XIRR(flows)
	assert.False(t, ok)
}

func TestXIRR_ConvergedRateSatisfiesNPVTolerance(t *testing.T) {
	flows := []CashFlow{
		{Date: money.MustParseDate("2020-01-01"), Cents: -500_00},
		{Date: money.MustParseDate("2021-06-15"), Cents: -300_00},
		{Date: money.MustParseDate("2023-03-01"), Cents: 1200_00},
	}

	r, ok := XIRR(flows)
	assert.True(t, ok)
	assert.Greater(t, r, -0.99)
	assert.Less(t, r, 100.0)
	assert.InDelta(t, 0.0, npv(flows, money.MustParseDate("2020-01-01"), r), 1e-3)
}
