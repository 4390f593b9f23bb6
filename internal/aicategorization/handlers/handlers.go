// Package handlers provides the HTTP surface over internal/aicategorization:
// starting a session, polling its progress, and applying/rejecting results.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/adrianvollmer/solvency/internal/aicategorization"
	"github.com/adrianvollmer/solvency/internal/errs"
	"github.com/adrianvollmer/solvency/internal/httpx"
)

// Handler serves the AI-categorization session lifecycle over HTTP.
type Handler struct {
	svc *aicategorization.Service
	log zerolog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(svc *aicategorization.Service, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, log: log.With().Str("handler", "aicategorization").Logger()}
}

// RegisterRoutes mounts every AI-categorization route under r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/ai-categorization", func(r chi.Router) {
		r.Post("/sessions", h.start)
		r.Get("/sessions/{id}", h.getSession)
		r.Post("/sessions/{id}/cancel", h.cancel)
		r.Get("/sessions/{id}/results", h.listResults)
		r.Post("/sessions/{id}/apply-all-pending", h.applyAllPending)
		r.Post("/results/{resultID}/apply", h.applyResult)
		r.Post("/results/{resultID}/reject", h.rejectResult)
	})
}

type startRequest struct {
	Scope string `json:"scope"`
}

// start creates the session synchronously and returns it right away; the
// categorization run itself continues in the background (spec.md §5).
// Callers poll GET /sessions/{id} for progress.
func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	scope := aicategorization.ScopeUncategorized
	if req.Scope == string(aicategorization.ScopeAll) {
		scope = aicategorization.ScopeAll
	}

	session, err := h.svc.StartAsync(scope)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, h.log, http.StatusAccepted, session)
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	session, err := h.svc.GetSession(id)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, h.log, http.StatusOK, session)
}

// cancel is the handler side of §5's cooperative-cancellation contract for
// AI-categorization sessions — unlike imports, this state machine has a
// genuine Cancelled state (see DESIGN.md).
func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Cancel(id); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listResults(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	limit := int64(100)
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.ParseInt(l, 10, 64); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	offset := int64(0)
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.ParseInt(o, 10, 64); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	results, err := h.svc.GetResults(id, limit, offset)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, h.log, http.StatusOK, results)
}

func resultID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "resultID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errs.Validation("resultID", "%q is not a valid id", raw)
	}
	return id, nil
}

func (h *Handler) applyResult(w http.ResponseWriter, r *http.Request) {
	id, err := resultID(r)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	if err := h.svc.ApplyResult(id); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) rejectResult(w http.ResponseWriter, r *http.Request) {
	id, err := resultID(r)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	if err := h.svc.RejectResult(id); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) applyAllPending(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	applied, err := h.svc.ApplyAllPending(id)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, h.log, http.StatusOK, map[string]any{"applied": applied})
}
