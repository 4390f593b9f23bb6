// Package handlers provides the HTTP surface over internal/portfolio:
// trading-activity CRUD, current positions, the fused net-worth series, and
// the generic XIRR solver.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/adrianvollmer/solvency/internal/errs"
	"github.com/adrianvollmer/solvency/internal/httpx"
	"github.com/adrianvollmer/solvency/internal/ledger"
	"github.com/adrianvollmer/solvency/internal/money"
	"github.com/adrianvollmer/solvency/internal/portfolio"
)

// maxChartPoints caps the net-worth chart-data series at 500 points, the
// same decimation target original_source/src/handlers/net_worth.rs uses.
const maxChartPoints = 500

// maxSafeInteger is JavaScript's Number.MAX_SAFE_INTEGER (2^53 - 1); chart
// values are clamped to it so a browser chart library never loses precision.
const maxSafeInteger = 9_007_199_254_740_991

// topTransactionsLimit mirrors the original handler's `LIMIT 20`.
const topTransactionsLimit = 20

// Handler serves activities, positions, net worth, and XIRR over HTTP.
type Handler struct {
	activities   *portfolio.ActivityRepository
	marketData   *portfolio.MarketDataRepository
	accounts     *ledger.AccountRepository
	transactions *ledger.TransactionRepository
	log          zerolog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(activities *portfolio.ActivityRepository, marketData *portfolio.MarketDataRepository,
	accounts *ledger.AccountRepository, transactions *ledger.TransactionRepository, log zerolog.Logger) *Handler {
	return &Handler{
		activities:   activities,
		marketData:   marketData,
		accounts:     accounts,
		transactions: transactions,
		log:          log.With().Str("handler", "portfolio").Logger(),
	}
}

// RegisterRoutes mounts every portfolio route under r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/activities", func(r chi.Router) {
		r.Get("/", h.listActivities)
		r.Post("/", h.createActivity)
		r.Delete("/{id}", h.deleteActivity)
	})

	r.Get("/positions", h.listPositions)
	r.Get("/networth", h.netWorth)
	r.Post("/xirr", h.xirr)

	// Flat paths, not a nested r.Route group — see the matching comment in
	// internal/ledger/handlers for why.
	r.Get("/analytics/net-worth/chart-data", h.netWorthChartData)
	r.Get("/analytics/net-worth/account-allocation", h.accountAllocation)
	r.Get("/analytics/net-worth/top-transactions", h.topTransactions)
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errs.Validation(name, "%q is not a valid id", raw)
	}
	return id, nil
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")

	var activities []portfolio.Activity
	var err error
	if symbol != "" {
		activities, err = h.activities.GetBySymbol(symbol)
	} else {
		activities, err = h.activities.GetAll()
	}
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, h.log, http.StatusOK, activities)
}

func (h *Handler) createActivity(w http.ResponseWriter, r *http.Request) {
	var a portfolio.Activity
	if err := httpx.DecodeJSON(r, &a); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	created, err := h.activities.Create(a)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, h.log, http.StatusCreated, created)
}

func (h *Handler) deleteActivity(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	if err := h.activities.Delete(id); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// listPositions replays every trading activity through a fresh position
// Engine and returns the current, non-zero, sorted position list (§4.3).
func (h *Handler) listPositions(w http.ResponseWriter, r *http.Request) {
	activities, err := h.activities.GetAll()
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	engine := portfolio.NewEngine()
	engine.ApplyAll(activities)
	httpx.WriteJSON(w, h.log, http.StatusOK, engine.SortedPositions())
}

// buildNetWorthSeries loads every daily expense sum, trading activity, and
// market-data point and runs them through the §4.5 date sweep.
func (h *Handler) buildNetWorthSeries() ([]portfolio.NetWorthPoint, []portfolio.Activity, []portfolio.MarketDataPoint, error) {
	dailySums, err := h.transactions.DailySums()
	if err != nil {
		return nil, nil, nil, err
	}
	daily := make([]portfolio.DailyExpense, len(dailySums))
	for i, d := range dailySums {
		daily[i] = portfolio.DailyExpense{Date: d.Date, Cents: d.Cents}
	}

	activities, err := h.activities.GetAll()
	if err != nil {
		return nil, nil, nil, err
	}

	points, err := h.marketData.GetAll()
	if err != nil {
		return nil, nil, nil, err
	}

	return portfolio.BuildNetWorthSeries(daily, activities, points), activities, points, nil
}

// netWorth runs the §4.5 date sweep over every transaction's daily signed
// sum, every trading activity, and every stored market-data point.
func (h *Handler) netWorth(w http.ResponseWriter, r *http.Request) {
	series, _, _, err := h.buildNetWorthSeries()
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}

	if n := r.URL.Query().Get("points"); n != "" {
		if target, err := strconv.Atoi(n); err == nil && target > 0 {
			series = portfolio.DecimatePoints(series, target)
		}
	}

	httpx.WriteJSON(w, h.log, http.StatusOK, series)
}

// netWorthChartResponse flattens a net-worth series into parallel arrays,
// the shape original_source/src/handlers/net_worth.rs's NetWorthChartResponse
// serializes for the chart library.
type netWorthChartResponse struct {
	Labels               []string `json:"labels"`
	NetWorth             []int64  `json:"net_worth"`
	TransactionComponent []int64  `json:"transaction_component"`
	PortfolioComponent   []int64  `json:"portfolio_component"`
}

func clampSafeInteger(v money.Cents) int64 {
	n := int64(v)
	switch {
	case n > maxSafeInteger:
		return maxSafeInteger
	case n < -maxSafeInteger:
		return -maxSafeInteger
	default:
		return n
	}
}

// netWorthChartData returns the decimated, flattened-array form of the
// net-worth series a chart library renders directly.
func (h *Handler) netWorthChartData(w http.ResponseWriter, r *http.Request) {
	series, _, _, err := h.buildNetWorthSeries()
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	series = portfolio.DecimatePoints(series, maxChartPoints)

	resp := netWorthChartResponse{
		Labels:               make([]string, len(series)),
		NetWorth:             make([]int64, len(series)),
		TransactionComponent: make([]int64, len(series)),
		PortfolioComponent:   make([]int64, len(series)),
	}
	for i, p := range series {
		resp.Labels[i] = p.Date.String()
		resp.NetWorth[i] = clampSafeInteger(p.NetWorthCents)
		resp.TransactionComponent[i] = clampSafeInteger(p.ExpenseComponent)
		resp.PortfolioComponent[i] = clampSafeInteger(p.PortfolioComponent)
	}
	httpx.WriteJSON(w, h.log, http.StatusOK, resp)
}

// accountAllocation returns the sunburst tree of cash-account balances and
// securities-account positions, per original_source/src/handlers/net_worth.rs's
// account_allocation handler.
func (h *Handler) accountAllocation(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.GetAll()
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	cashBalances, err := h.transactions.BalanceByAccount()
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	activities, err := h.activities.GetAll()
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	points, err := h.marketData.GetAll()
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}

	today := money.NewDate(time.Now().Date())
	nodes := portfolio.BuildAccountAllocation(accounts, cashBalances, activities, points, today)
	httpx.WriteJSON(w, h.log, http.StatusOK, nodes)
}

// topTransactions returns the topTransactionsLimit largest-magnitude
// transactions within an optional [from_date, to_date] range.
func (h *Handler) topTransactions(w http.ResponseWriter, r *http.Request) {
	filter := ledger.Filter{}
	if from := r.URL.Query().Get("from_date"); from != "" {
		d, err := money.ParseDate(from)
		if err != nil {
			httpx.WriteError(w, h.log, errs.Validation("from_date", "%v", err))
			return
		}
		filter.From = &d
	}
	if to := r.URL.Query().Get("to_date"); to != "" {
		d, err := money.ParseDate(to)
		if err != nil {
			httpx.WriteError(w, h.log, errs.Validation("to_date", "%v", err))
			return
		}
		filter.To = &d
	}

	transactions, err := h.transactions.GetFiltered(filter, ledger.SortByDate, ledger.Descending)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, h.log, http.StatusOK, ledger.TopTransactions(transactions, topTransactionsLimit))
}

// xirrRequest is the generic cash-flow list spec.md §4.6's solver consumes;
// callers (e.g. a "per-security return" or "whole-portfolio return" view)
// assemble their own flow list and post it here.
type xirrRequest struct {
	Flows []struct {
		Date  string `json:"date"`
		Cents int64  `json:"cents"`
	} `json:"flows"`
}

type xirrResponse struct {
	Rate      float64 `json:"rate,omitempty"`
	Converged bool    `json:"converged"`
}

func (h *Handler) xirr(w http.ResponseWriter, r *http.Request) {
	var req xirrRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}

	flows := make([]portfolio.CashFlow, 0, len(req.Flows))
	for _, f := range req.Flows {
		d, err := money.ParseDate(f.Date)
		if err != nil {
			httpx.WriteError(w, h.log, errs.Validation("flows.date", "invalid date %q", f.Date))
			return
		}
		flows = append(flows, portfolio.CashFlow{Date: d, Cents: money.Cents(f.Cents)})
	}

	rate, ok := portfolio.XIRR(flows)
	httpx.WriteJSON(w, h.log, http.StatusOK, xirrResponse{Rate: rate, Converged: ok})
}
