package csvparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanAmount(t *testing.T) {
	cases := map[string]string{
		"$50.00":   "50.00",
		"-$25.50":  "-25.50",
		"1,234.56": "1234.56",
		"€100":     "100",
		"1.234,56": "1234.56",
	}
	for in, want := range cases {
		assert.Equal(t, want, CleanAmount(in), "input %q", in)
	}
}

func TestCleanAmount_Idempotent(t *testing.T) {
	inputs := []string{"$50.00", "1,234.56", "1.234,56", "-25.50", "100"}
	for _, in := range inputs {
		once := CleanAmount(in)
		twice := CleanAmount(once)
		assert.Equal(t, once, twice, "clean(clean(%q)) must equal clean(%q)", in, in)
	}
}

func TestParseTransactions_Simple(t *testing.T) {
	csv := []byte("date,amount,description\n2024-01-15,50.00,Groceries\n2024-01-16,25.50,Coffee")

	result, err := ParseTransactions(csv)
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)
	assert.Empty(t, result.Errors)

	assert.Equal(t, "2024-01-15", result.Rows[0].Date)
	assert.Equal(t, "50.00", result.Rows[0].Amount)
	assert.Equal(t, "Groceries", result.Rows[0].Description)
}

func TestParseTransactions_EuropeanDecimal(t *testing.T) {
	csv := []byte("date,amount,description\n2024-01-15,\"1.234,56\",Test")

	result, err := ParseTransactions(csv)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "1234.56", result.Rows[0].Amount)
}

func TestParseTransactions_MissingRequiredColumn(t *testing.T) {
	csv := []byte("amount,description\n50.00,Groceries")
	_, err := ParseTransactions(csv)
	require.Error(t, err)
}

func TestParseTransactions_RowLevelErrorsDoNotAbort(t *testing.T) {
	csv := []byte("date,amount,description\n2024-01-15,notanumber,Bad row\n2024-01-16,25.50,Good row")

	result, err := ParseTransactions(csv)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Row 2")
}

func TestParseActivities_UnknownKind(t *testing.T) {
	csv := []byte("date,symbol,activityType\n2024-01-01,AAPL,NOTAKIND")
	result, err := ParseActivities(csv)
	require.NoError(t, err)
	assert.Empty(t, result.Rows)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "unknown activity kind")
}

func TestParseActivities_AliasColumns(t *testing.T) {
	csv := []byte("date,symbol,type,price\n2024-01-01,AAPL,BUY,150.00")
	result, err := ParseActivities(csv)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "BUY", result.Rows[0].Kind)
	assert.Equal(t, "150.00", result.Rows[0].UnitPrice)
}
