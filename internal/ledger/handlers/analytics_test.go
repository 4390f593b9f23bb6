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
)

func newTestHandler(t *testing.T) (*Handler, *ledger.TransactionRepository, *ledger.CategoryRepository) {
	t.Helper()
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	db, err := database.New(database.Config{Path: dsn, Profile: database.ProfileStandard, Name: "test"}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })

	accounts := ledger.NewAccountRepository(db.Conn(), zerolog.Nop())
	categories := ledger.NewCategoryRepository(db.Conn(), zerolog.Nop())
	tags := ledger.NewTagRepository(db.Conn(), zerolog.Nop())
	transactions := ledger.NewTransactionRepository(db.Conn(), zerolog.Nop())
	rules := ledger.NewRuleRepository(db.Conn(), zerolog.Nop())

	h := NewHandler(accounts, categories, tags, transactions, rules, zerolog.Nop())
	return h, transactions, categories
}

func TestHandler_FlowSankey_ReturnsNodesAndLinks(t *testing.T) {
	h, transactions, categories := newTestHandler(t)

	income, err := categories.Create(ledger.Category{Name: "Salary"})
	require.NoError(t, err)
	expense, err := categories.Create(ledger.Category{Name: "Rent"})
	require.NoError(t, err)

	_, err = transactions.Create(ledger.Transaction{
		Date: money.MustParseDate("2024-01-01"), AmountCents: 100000, Description: "Paycheck", CategoryID: &income.ID,
	})
	require.NoError(t, err)
	_, err = transactions.Create(ledger.Transaction{
		Date: money.MustParseDate("2024-01-05"), AmountCents: -30000, Description: "Rent", CategoryID: &expense.ID,
	})
	require.NoError(t, err)

	r := chi.NewRouter()
	h.RegisterRoutes(r)

	req := httptest.NewRequest(http.MethodGet, "/analytics/flow-sankey", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var diagram ledger.SankeyDiagram
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &diagram))
	assert.NotEmpty(t, diagram.Nodes)
	assert.NotEmpty(t, diagram.Links)
}

func TestHandler_SpendingByCategory_RespectsDateRange(t *testing.T) {
	h, transactions, categories := newTestHandler(t)

	groceries, err := categories.Create(ledger.Category{Name: "Groceries"})
	require.NoError(t, err)
	_, err = transactions.Create(ledger.Transaction{
		Date: money.MustParseDate("2024-06-15"), AmountCents: -5000, Description: "Food", CategoryID: &groceries.ID,
	})
	require.NoError(t, err)

	r := chi.NewRouter()
	h.RegisterRoutes(r)

	req := httptest.NewRequest(http.MethodGet, "/analytics/spending-by-category?from_date=2023-01-01&to_date=2023-12-31", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestHandler_MonthlySummary_GroupsByMonth(t *testing.T) {
	h, transactions, _ := newTestHandler(t)

	_, err := transactions.Create(ledger.Transaction{
		Date: money.MustParseDate("2024-01-10"), AmountCents: -1000, Description: "A",
	})
	require.NoError(t, err)
	_, err = transactions.Create(ledger.Transaction{
		Date: money.MustParseDate("2024-02-10"), AmountCents: -2000, Description: "B",
	})
	require.NoError(t, err)

	r := chi.NewRouter()
	h.RegisterRoutes(r)

	req := httptest.NewRequest(http.MethodGet, "/analytics/monthly-summary", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var months []ledger.MonthlySummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &months))
	require.Len(t, months, 2)
	assert.Equal(t, "2024-01", months[0].Month)
	assert.Equal(t, "2024-02", months[1].Month)
}
