// Package handlers provides the HTTP surface over internal/ledger:
// accounts, categories, tags, transactions, and the rule engine.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/adrianvollmer/solvency/internal/errs"
	"github.com/adrianvollmer/solvency/internal/httpx"
	"github.com/adrianvollmer/solvency/internal/ledger"
	"github.com/adrianvollmer/solvency/internal/money"
)

// Handler serves every ledger-owned entity over HTTP.
type Handler struct {
	accounts     *ledger.AccountRepository
	categories   *ledger.CategoryRepository
	tags         *ledger.TagRepository
	transactions *ledger.TransactionRepository
	rules        *ledger.RuleRepository
	log          zerolog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(accounts *ledger.AccountRepository, categories *ledger.CategoryRepository,
	tags *ledger.TagRepository, transactions *ledger.TransactionRepository, rules *ledger.RuleRepository,
	log zerolog.Logger) *Handler {
	return &Handler{
		accounts:     accounts,
		categories:   categories,
		tags:         tags,
		transactions: transactions,
		rules:        rules,
		log:          log.With().Str("handler", "ledger").Logger(),
	}
}

// RegisterRoutes mounts every ledger route under r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/accounts", func(r chi.Router) {
		r.Get("/", h.listAccounts)
		r.Post("/", h.createAccount)
		r.Put("/{id}", h.updateAccount)
		r.Delete("/{id}", h.deleteAccount)
	})

	r.Route("/categories", func(r chi.Router) {
		r.Get("/", h.listCategories)
		r.Post("/", h.createCategory)
		r.Put("/{id}", h.updateCategory)
		r.Delete("/{id}", h.deleteCategory)
	})

	r.Route("/tags", func(r chi.Router) {
		r.Get("/", h.listTags)
		r.Post("/", h.createTag)
		r.Put("/{id}", h.updateTag)
		r.Delete("/{id}", h.deleteTag)
	})

	r.Route("/transactions", func(r chi.Router) {
		r.Get("/", h.listTransactions)
		r.Post("/", h.createTransaction)
		r.Get("/{id}", h.getTransaction)
		r.Put("/{id}", h.updateTransaction)
		r.Delete("/{id}", h.deleteTransaction)
		r.Post("/{id}/tags/{tagID}", h.assignTag)
		r.Delete("/{id}/tags/{tagID}", h.removeTag)
	})

	r.Route("/rules", func(r chi.Router) {
		r.Get("/", h.listRules)
		r.Post("/", h.createRule)
		r.Put("/{id}", h.updateRule)
		r.Delete("/{id}", h.deleteRule)
		r.Get("/{id}/matches", h.ruleMatches)
		r.Post("/{id}/apply", h.applyRule)
	})

	// Registered as flat paths, not a nested r.Route group: internal/portfolio's
	// handler package mounts further /analytics/net-worth/* routes on this same
	// router, and two overlapping chi sub-router Mounts at "/analytics" would
	// conflict.
	r.Get("/analytics/spending-by-category", h.spendingByCategory)
	r.Get("/analytics/spending-over-time", h.spendingOverTime)
	r.Get("/analytics/monthly-summary", h.monthlySummary)
	r.Get("/analytics/monthly-by-category", h.monthlyByCategory)
	r.Get("/analytics/flow-sankey", h.flowSankey)
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errs.Validation(name, "%q is not a valid id", raw)
	}
	return id, nil
}

// -- accounts --

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.GetAll()
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, h.log, http.StatusOK, accounts)
}

func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	var a ledger.Account
	if err := httpx.DecodeJSON(r, &a); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	created, err := h.accounts.Create(a)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, h.log, http.StatusCreated, created)
}

func (h *Handler) updateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	var a ledger.Account
	if err := httpx.DecodeJSON(r, &a); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	a.ID = id
	updated, err := h.accounts.Update(a)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, h.log, http.StatusOK, updated)
}

func (h *Handler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	if err := h.accounts.Delete(id); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// -- categories --

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categories.GetAll()
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, h.log, http.StatusOK, ledger.WithPaths(categories))
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	var c ledger.Category
	if err := httpx.DecodeJSON(r, &c); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	created, err := h.categories.Create(c)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, h.log, http.StatusCreated, created)
}

func (h *Handler) updateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	var c ledger.Category
	if err := httpx.DecodeJSON(r, &c); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	c.ID = id
	updated, err := h.categories.Update(c)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, h.log, http.StatusOK, updated)
}

func (h *Handler) deleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	if err := h.categories.Delete(id); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// -- tags --

func (h *Handler) listTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.tags.GetAll()
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, h.log, http.StatusOK, tags)
}

func (h *Handler) createTag(w http.ResponseWriter, r *http.Request) {
	var t ledger.Tag
	if err := httpx.DecodeJSON(r, &t); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	created, err := h.tags.Create(t)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, h.log, http.StatusCreated, created)
}

func (h *Handler) updateTag(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	var t ledger.Tag
	if err := httpx.DecodeJSON(r, &t); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	t.ID = id
	updated, err := h.tags.Update(t)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, h.log, http.StatusOK, updated)
}

func (h *Handler) deleteTag(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	if err := h.tags.Delete(id); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// -- transactions --

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ledger.Filter{}
	if q.Get("uncategorized") == "true" {
		filter.Uncategorized = true
	}
	if catID := q.Get("category_id"); catID != "" {
		if id, err := strconv.ParseInt(catID, 10, 64); err == nil {
			filter.CategoryID = &id
		}
	}
	if acctID := q.Get("account_id"); acctID != "" {
		if id, err := strconv.ParseInt(acctID, 10, 64); err == nil {
			filter.AccountID = &id
		}
	}
	filter.DescriptionLike = q.Get("q")

	sortCol := ledger.ParseTransactionSortColumn(q.Get("sort"))
	dir := ledger.ParseSortDirection(q.Get("dir"), ledger.Descending)

	txs, err := h.transactions.GetFiltered(filter, sortCol, dir)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, h.log, http.StatusOK, txs)
}

func (h *Handler) createTransaction(w http.ResponseWriter, r *http.Request) {
	var t ledger.Transaction
	if err := httpx.DecodeJSON(r, &t); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	created, err := h.transactions.Create(t)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, h.log, http.StatusCreated, created)
}

func (h *Handler) getTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	t, err := h.transactions.GetByID(id)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, h.log, http.StatusOK, t)
}

func (h *Handler) updateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	var t ledger.Transaction
	if err := httpx.DecodeJSON(r, &t); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	t.ID = id
	updated, err := h.transactions.Update(t)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, h.log, http.StatusOK, updated)
}

func (h *Handler) deleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	if err := h.transactions.Delete(id); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) assignTag(w http.ResponseWriter, r *http.Request) {
	txID, err := pathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	tagID, err := pathID(r, "tagID")
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	if err := h.tags.AssignToTransaction(txID, tagID); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeTag(w http.ResponseWriter, r *http.Request) {
	txID, err := pathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	tagID, err := pathID(r, "tagID")
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	if err := h.tags.RemoveFromTransaction(txID, tagID); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// -- rules --

func (h *Handler) listRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.rules.GetAll()
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, h.log, http.StatusOK, rules)
}

func (h *Handler) createRule(w http.ResponseWriter, r *http.Request) {
	var rule ledger.Rule
	if err := httpx.DecodeJSON(r, &rule); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	created, err := h.rules.Create(rule)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, h.log, http.StatusCreated, created)
}

func (h *Handler) updateRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	var rule ledger.Rule
	if err := httpx.DecodeJSON(r, &rule); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	rule.ID = id
	updated, err := h.rules.Update(rule)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, h.log, http.StatusOK, updated)
}

func (h *Handler) deleteRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	if err := h.rules.Delete(id); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// -- analytics --

// rangeFilteredTransactions applies the optional from_date/to_date query
// parameters spec.md §6's analytics routes share, returning every
// transaction in range sorted by date. An empty range returns every row.
func (h *Handler) rangeFilteredTransactions(r *http.Request) ([]ledger.Transaction, error) {
	filter := ledger.Filter{}
	if from := r.URL.Query().Get("from_date"); from != "" {
		d, err := money.ParseDate(from)
		if err != nil {
			return nil, errs.Validation("from_date", "%v", err)
		}
		filter.From = &d
	}
	if to := r.URL.Query().Get("to_date"); to != "" {
		d, err := money.ParseDate(to)
		if err != nil {
			return nil, errs.Validation("to_date", "%v", err)
		}
		filter.To = &d
	}
	return h.transactions.GetFiltered(filter, ledger.SortByDate, ledger.Ascending)
}

func (h *Handler) spendingByCategory(w http.ResponseWriter, r *http.Request) {
	txs, err := h.rangeFilteredTransactions(r)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	categories, err := h.categories.GetAll()
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	result := ledger.BuildSpendingByCategory(txs, categories)
	if result == nil {
		result = []ledger.CategoryBreakdown{}
	}
	httpx.WriteJSON(w, h.log, http.StatusOK, result)
}

func (h *Handler) spendingOverTime(w http.ResponseWriter, r *http.Request) {
	txs, err := h.rangeFilteredTransactions(r)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	result := ledger.BuildSpendingOverTime(txs)
	if result == nil {
		result = []ledger.DailySpending{}
	}
	httpx.WriteJSON(w, h.log, http.StatusOK, result)
}

func (h *Handler) monthlySummary(w http.ResponseWriter, r *http.Request) {
	txs, err := h.rangeFilteredTransactions(r)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	result := ledger.BuildMonthlySummary(txs)
	if result == nil {
		result = []ledger.MonthlySummary{}
	}
	httpx.WriteJSON(w, h.log, http.StatusOK, result)
}

func (h *Handler) monthlyByCategory(w http.ResponseWriter, r *http.Request) {
	txs, err := h.rangeFilteredTransactions(r)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	categories, err := h.categories.GetAll()
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	result := ledger.BuildMonthlyByCategory(txs, categories)
	if result == nil {
		result = []ledger.MonthlyCategoryBreakdown{}
	}
	httpx.WriteJSON(w, h.log, http.StatusOK, result)
}

func (h *Handler) flowSankey(w http.ResponseWriter, r *http.Request) {
	txs, err := h.rangeFilteredTransactions(r)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	categories, err := h.categories.GetAll()
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, h.log, http.StatusOK, ledger.BuildSankey(txs, categories))
}

// ruleMatches previews which transactions a rule would affect, without
// applying it.
func (h *Handler) ruleMatches(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	rule, err := h.rules.GetByID(id)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	ids, err := h.rules.MatchingTransactionIDs(rule)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, h.log, http.StatusOK, map[string]any{"transaction_ids": ids})
}

// applyRuleRequest lets a caller override the rule's own action target
// (e.g. apply a different tag than the rule's stored ActionValue); an
// empty TargetID uses the rule's own ActionValue.
type applyRuleRequest struct {
	TargetID *int64 `json:"target_id,omitempty"`
}

// applyRule runs a rule's action against every currently-matching
// transaction and returns the number of rows affected, per spec.md §4.10.
func (h *Handler) applyRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	rule, err := h.rules.GetByID(id)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}

	var req applyRuleRequest
	_ = httpx.DecodeJSON(r, &req)

	target := rule.ActionValue
	if req.TargetID != nil {
		target = *req.TargetID
	}

	ids, err := h.rules.MatchingTransactionIDs(rule)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}

	var affected int64
	switch rule.ActionKind {
	case ledger.ActionAssignCategory:
		affected, err = h.transactions.ApplyRuleCategory(ids, target)
	case ledger.ActionAssignTag:
		affected, err = h.transactions.ApplyRuleTag(ids, target)
	default:
		err = errs.Validation("action_kind", "unknown rule action kind %q", rule.ActionKind)
	}
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, h.log, http.StatusOK, map[string]any{"affected": affected})
}
