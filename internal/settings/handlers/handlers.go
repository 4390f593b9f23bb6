// Package handlers provides the HTTP surface over internal/settings: the
// flat key/value store backing every settings-overridable config value.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/adrianvollmer/solvency/internal/errs"
	"github.com/adrianvollmer/solvency/internal/httpx"
	"github.com/adrianvollmer/solvency/internal/settings"
)

// Handler serves the settings table over HTTP.
type Handler struct {
	repo *settings.Repository
	log  zerolog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(repo *settings.Repository, log zerolog.Logger) *Handler {
	return &Handler{repo: repo, log: log.With().Str("handler", "settings").Logger()}
}

// RegisterRoutes mounts every settings route under r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/settings", func(r chi.Router) {
		r.Get("/", h.list)
		r.Put("/{key}", h.set)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	all, err := h.repo.GetAll()
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, h.log, http.StatusOK, all)
}

type setRequest struct {
	Value       string  `json:"value"`
	Description *string `json:"description,omitempty"`
}

// set writes a single key, one of the mutating routes the cache-invalidation
// middleware bumps the cache's global generation counter after (§4.12).
func (h *Handler) set(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		httpx.WriteError(w, h.log, errs.Validation("key", "key must not be empty"))
		return
	}
	var req setRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	if err := h.repo.Set(key, req.Value, req.Description); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
