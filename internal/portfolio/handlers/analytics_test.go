package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adrianvollmer/solvency/internal/database"
	"github.com/adrianvollmer/solvency/internal/ledger"
	"github.com/adrianvollmer/solvency/internal/money"
	"github.com/adrianvollmer/solvency/internal/portfolio"
)

func newTestHandler(t *testing.T) (*Handler, *ledger.AccountRepository, *ledger.TransactionRepository, *portfolio.ActivityRepository) {
	t.Helper()
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	db, err := database.New(database.Config{Path: dsn, Profile: database.ProfileStandard, Name: "test"}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })

	accounts := ledger.NewAccountRepository(db.Conn(), zerolog.Nop())
	transactions := ledger.NewTransactionRepository(db.Conn(), zerolog.Nop())
	activities := portfolio.NewActivityRepository(db.Conn(), zerolog.Nop())
	marketData := portfolio.NewMarketDataRepository(db.Conn(), zerolog.Nop())

	h := NewHandler(activities, marketData, accounts, transactions, zerolog.Nop())
	return h, accounts, transactions, activities
}

func TestHandler_NetWorthChartData_ReturnsFlattenedParallelArrays(t *testing.T) {
	h, _, transactions, _ := newTestHandler(t)

	_, err := transactions.Create(ledger.Transaction{
		Date: money.MustParseDate("2024-01-01"), AmountCents: -1000, Description: "A",
	})
	require.NoError(t, err)

	r := chi.NewRouter()
	h.RegisterRoutes(r)

	req := httptest.NewRequest(http.MethodGet, "/analytics/net-worth/chart-data", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp netWorthChartResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Labels, 1)
	assert.Len(t, resp.NetWorth, 1)
	assert.Len(t, resp.TransactionComponent, 1)
	assert.Len(t, resp.PortfolioComponent, 1)
	assert.EqualValues(t, -1000, resp.NetWorth[0])
}

func TestHandler_AccountAllocation_CashLeafAndSecuritiesChildren(t *testing.T) {
	h, accounts, transactions, activities := newTestHandler(t)

	cash, err := accounts.Create(ledger.Account{Name: "Checking", Type: ledger.AccountCash, Active: true})
	require.NoError(t, err)
	_, err = transactions.Create(ledger.Transaction{
		Date: money.MustParseDate("2024-01-01"), AmountCents: 50000, Description: "Paycheck", AccountID: &cash.ID,
	})
	require.NoError(t, err)

	brokerage, err := accounts.Create(ledger.Account{Name: "Brokerage", Type: ledger.AccountSecurities, Active: true})
	require.NoError(t, err)
	price := money.Cents(15000)
	_, err = activities.Create(portfolio.Activity{
		Date: money.MustParseDate("2024-01-05"), Symbol: "AAPL", Kind: portfolio.Buy,
		Quantity: 10, UnitPriceCents: &price, Currency: "USD", AccountID: &brokerage.ID,
	})
	require.NoError(t, err)

	r := chi.NewRouter()
	h.RegisterRoutes(r)

	req := httptest.NewRequest(http.MethodGet, "/analytics/net-worth/account-allocation", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var nodes []portfolio.AllocationNode
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &nodes))
	require.Len(t, nodes, 2)

	var sawCashLeaf, sawSecuritiesParent bool
	for _, n := range nodes {
		if n.Name == "Checking" {
			sawCashLeaf = true
			require.NotNil(t, n.AmountCents)
			assert.EqualValues(t, 50000, *n.AmountCents)
		}
		if n.Name == "Brokerage" {
			sawSecuritiesParent = true
			require.Len(t, n.Children, 1)
			assert.Equal(t, "AAPL", n.Children[0].Name)
		}
	}
	assert.True(t, sawCashLeaf)
	assert.True(t, sawSecuritiesParent)
}

func TestHandler_TopTransactions_SortsByAbsoluteValueDescending(t *testing.T) {
	h, _, transactions, _ := newTestHandler(t)

	_, err := transactions.Create(ledger.Transaction{
		Date: money.MustParseDate("2024-01-01"), AmountCents: -500, Description: "Small",
	})
	require.NoError(t, err)
	_, err = transactions.Create(ledger.Transaction{
		Date: money.MustParseDate("2024-01-02"), AmountCents: 9000, Description: "Big",
	})
	require.NoError(t, err)

	r := chi.NewRouter()
	h.RegisterRoutes(r)

	req := httptest.NewRequest(http.MethodGet, "/analytics/net-worth/top-transactions?from_date=2023-01-01&to_date=2024-12-31", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var txs []ledger.Transaction
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &txs))
	require.Len(t, txs, 2)
	assert.Equal(t, "Big", txs[0].Description)
	assert.Equal(t, "Small", txs[1].Description)
}
