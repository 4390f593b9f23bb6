// Package httpx provides the small set of HTTP-boundary helpers every
// handler package shares: JSON response writing and typed-error rendering,
// following aristath-sentinel's handlers.writeJSON idiom.
package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/adrianvollmer/solvency/internal/errs"
)

// WriteJSON encodes data as the response body with status and a JSON
// content type.
func WriteJSON(w http.ResponseWriter, log zerolog.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

// errorBody is the JSON shape of every error response this boundary emits.
type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// WriteError renders err at the status its errs.Kind maps to (§7's typed
// error taxonomy), logging 5xx kinds since those represent a bug or
// infrastructure failure rather than a client mistake.
func WriteError(w http.ResponseWriter, log zerolog.Logger, err error) {
	kind := errs.KindOf(err)
	status := errs.StatusCode(kind)

	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("kind", string(kind)).Msg("request failed")
	}

	body := errorBody{Error: err.Error()}
	var e *errs.Error
	if ee, ok := err.(*errs.Error); ok {
		e = ee
	}
	if e != nil {
		body.Field = e.Field
	}
	WriteJSON(w, log, status, body)
}

// DecodeJSON decodes the request body into dest, returning a Validation
// error on malformed JSON.
func DecodeJSON(r *http.Request, dest any) error {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return errs.Validation("body", "invalid JSON: %v", err)
	}
	return nil
}
