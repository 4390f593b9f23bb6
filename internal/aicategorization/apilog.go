package aicategorization

import (
	"database/sql"

	"github.com/rs/zerolog"

	"github.com/adrianvollmer/solvency/internal/errs"
)

// APILogRepository persists the api_logs table, the supplemented
// provider-call audit trail spec.md §4.15 requires ("AI provider errors ...
// recorded to a persisted API-log table"), grounded on
// original_source/src/db/queries/api_logs.rs's table shape.
type APILogRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewAPILogRepository constructs an APILogRepository.
func NewAPILogRepository(db *sql.DB, log zerolog.Logger) *APILogRepository {
	return &APILogRepository{db: db, log: log.With().Str("repo", "apilog").Logger()}
}

// Record appends one provider-call outcome.
func (r *APILogRepository) Record(sessionID, provider, requestSummary string, success bool, errorMessage string) error {
	var errMsg sql.NullString
	if errorMessage != "" {
		errMsg = sql.NullString{String: errorMessage, Valid: true}
	}
	_, err := r.db.Exec(`INSERT INTO api_logs (session_id, provider, request_summary, success, error_message)
		VALUES (?, ?, ?, ?, ?)`, sessionID, provider, requestSummary, success, errMsg)
	if err != nil {
		return errs.Database(err)
	}
	return nil
}
