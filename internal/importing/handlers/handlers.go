// Package handlers provides the HTTP surface over internal/importing's
// CSV import-session state machine: upload, row review, confirm, cancel.
package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/adrianvollmer/solvency/internal/errs"
	"github.com/adrianvollmer/solvency/internal/httpx"
	"github.com/adrianvollmer/solvency/internal/importing"
)

// Handler serves the import-session lifecycle over HTTP.
type Handler struct {
	svc *importing.Service
	log zerolog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(svc *importing.Service, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, log: log.With().Str("handler", "importing").Logger()}
}

// RegisterRoutes mounts every import route under r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/imports", func(r chi.Router) {
		r.Post("/transactions", h.uploadTransactions)
		r.Post("/trading", h.uploadTrading)
		r.Get("/{id}", h.getSession)
		r.Get("/{id}/rows", h.listRows)
		r.Put("/{id}/rows/{rowID}/category", h.setRowCategory)
		r.Post("/{id}/confirm", h.confirm)
		r.Post("/{id}/cancel", h.cancel)
	})
}

const maxUploadBytes = 32 << 20 // 32 MiB, generous for a personal CSV export

func (h *Handler) readBody(r *http.Request) ([]byte, error) {
	content, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes+1))
	if err != nil {
		return nil, errs.Validation("body", "failed to read upload: %v", err)
	}
	if len(content) > maxUploadBytes {
		return nil, errs.Validation("body", "upload exceeds the %d byte limit", maxUploadBytes)
	}
	return content, nil
}

func (h *Handler) uploadTransactions(w http.ResponseWriter, r *http.Request) {
	content, err := h.readBody(r)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	session, err := h.svc.StartTransactionImport(content)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, h.log, http.StatusCreated, session)
}

func (h *Handler) uploadTrading(w http.ResponseWriter, r *http.Request) {
	content, err := h.readBody(r)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	session, err := h.svc.StartTradingImport(content)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, h.log, http.StatusCreated, session)
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

func (h *Handler) listRows(w http.ResponseWriter, r *http.Request) {
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

	rows, err := h.svc.GetRows(id, limit, offset)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, h.log, http.StatusOK, rows)
}

type setCategoryRequest struct {
	CategoryID int64 `json:"category_id"`
}

func (h *Handler) setRowCategory(w http.ResponseWriter, r *http.Request) {
	rowID, err := strconv.ParseInt(chi.URLParam(r, "rowID"), 10, 64)
	if err != nil {
		httpx.WriteError(w, h.log, errs.Validation("rowID", "invalid row id"))
		return
	}
	var req setCategoryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	if err := h.svc.SetRowCategory(rowID, req.CategoryID); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// confirm advances Preview -> Importing -> Completed. Per spec.md §5 this
// is a background task that outlives the request: the handler kicks off
// Confirm in its own goroutine and returns the session immediately in its
// current (pre-Importing) state; callers poll GET /{id} for progress.
func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	session, err := h.svc.GetSession(id)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}

	go func() {
		if err := h.svc.Confirm(id); err != nil {
			h.log.Error().Err(err).Str("session_id", id).Msg("import confirm failed")
		}
	}()

	httpx.WriteJSON(w, h.log, http.StatusAccepted, session)
}

// cancel is the handler side of §5's cooperative-cancellation contract: it
// sets the session to Failed; a concurrently running Confirm observes this
// at its next row boundary and stops without further writes.
func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Cancel(id); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
