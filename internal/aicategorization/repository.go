package aicategorization

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/adrianvollmer/solvency/internal/errs"
)

// Repository handles ai_categorization_sessions/ai_categorization_results
// persistence, grounded on original_source/src/db/queries/ai_categorization.rs.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository constructs a Repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{db: db, log: log.With().Str("repo", "aicategorization").Logger()}
}

// CreateSession starts a new session in state Pending.
func (r *Repository) CreateSession(scope Scope, totalRows int64) (Session, error) {
	id := uuid.NewString()
	_, err := r.db.Exec(`INSERT INTO ai_categorization_sessions (id, scope, status, total_rows)
		VALUES (?, ?, ?, ?)`, id, string(scope), string(StatusPending), totalRows)
	if err != nil {
		return Session{}, errs.Database(err)
	}
	r.log.Info().Str("session_id", id).Str("scope", string(scope)).Msg("created AI categorization session")
	return r.GetSession(id)
}

// GetSession returns a session by id.
func (r *Repository) GetSession(id string) (Session, error) {
	row := r.db.QueryRow(`SELECT id, scope, status, total_rows, processed_rows, error_count,
		errors_json, created, updated FROM ai_categorization_sessions WHERE id = ?`, id)

	var s Session
	var scope, status, errorsJSON, created, updated string
	if err := row.Scan(&s.ID, &scope, &status, &s.TotalRows, &s.ProcessedRows, &s.ErrorCount,
		&errorsJSON, &created, &updated); err != nil {
		if err == sql.ErrNoRows {
			return Session{}, errs.NotFound("AI categorization session %q not found", id)
		}
		return Session{}, errs.Database(err)
	}
	s.Scope = Scope(scope)
	s.Status = Status(status)
	_ = json.Unmarshal([]byte(errorsJSON), &s.Errors)
	s.Created, _ = time.Parse(time.RFC3339, created)
	s.Updated, _ = time.Parse(time.RFC3339, updated)
	return s, nil
}

// UpdateStatus transitions a session, rejecting illegal edges.
func (r *Repository) UpdateStatus(id string, newStatus Status) error {
	s, err := r.GetSession(id)
	if err != nil {
		return err
	}
	if !CanTransition(s.Status, newStatus) {
		return errs.Validation("status", "cannot transition AI categorization session from %s to %s", s.Status, newStatus)
	}
	_, err = r.db.Exec(`UPDATE ai_categorization_sessions SET status = ?, updated = datetime('now') WHERE id = ?`,
		string(newStatus), id)
	if err != nil {
		return errs.Database(err)
	}
	return nil
}

// UpdateProgress sets the processed-row counter.
func (r *Repository) UpdateProgress(id string, processed int64) error {
	_, err := r.db.Exec(`UPDATE ai_categorization_sessions SET processed_rows = ?, updated = datetime('now')
		WHERE id = ?`, processed, id)
	if err != nil {
		return errs.Database(err)
	}
	return nil
}

// AppendError increments the error count and appends a message.
func (r *Repository) AppendError(id string, message string) error {
	s, err := r.GetSession(id)
	if err != nil {
		return err
	}
	errorsList := append(s.Errors, message)
	errorsJSON, _ := json.Marshal(errorsList)
	_, err = r.db.Exec(`UPDATE ai_categorization_sessions SET error_count = error_count + 1, errors_json = ?,
		updated = datetime('now') WHERE id = ?`, string(errorsJSON), id)
	if err != nil {
		return errs.Database(err)
	}
	return nil
}

// DeleteSession removes a session; its results cascade per schema.
func (r *Repository) DeleteSession(id string) error {
	_, err := r.db.Exec(`DELETE FROM ai_categorization_sessions WHERE id = ?`, id)
	if err != nil {
		return errs.Database(err)
	}
	return nil
}

// CleanupOlderThan deletes every session created more than maxAge ago,
// returning the count removed — the janitor sweep referenced by spec.md §4.8's
// 24h default horizon, reused for AI sessions by §4.9's analogous lifecycle.
func (r *Repository) CleanupOlderThan(maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge).Format(time.RFC3339)
	res, err := r.db.Exec(`DELETE FROM ai_categorization_sessions WHERE datetime(created) < datetime(?)`, cutoff)
	if err != nil {
		return 0, errs.Database(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errs.Database(err)
	}
	if n > 0 {
		r.log.Info().Int64("count", n).Msg("cleaned up old AI categorization sessions")
	}
	return n, nil
}

// InsertResult records one transaction's AI suggestion (or skip/error).
func (r *Repository) InsertResult(sessionID string, txID int64, originalCategoryID, suggestedCategoryID *int64,
	confidence *float64, reasoning string, status ResultStatus) (int64, error) {
	res, err := r.db.Exec(`INSERT INTO ai_categorization_results
		(session_id, transaction_id, original_category_id, suggested_category_id, confidence, reasoning, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sessionID, txID, originalCategoryID, suggestedCategoryID, confidence, reasoning, string(status))
	if err != nil {
		return 0, errs.Database(err)
	}
	return res.LastInsertId()
}

// GetResult returns one result by id.
func (r *Repository) GetResult(id int64) (Result, error) {
	row := r.db.QueryRow(`SELECT id, session_id, transaction_id, original_category_id, suggested_category_id,
		confidence, reasoning, status FROM ai_categorization_results WHERE id = ?`, id)
	return scanResult(row)
}

// GetResultsPaginated returns a page of results for a session.
func (r *Repository) GetResultsPaginated(sessionID string, limit, offset int64) ([]Result, error) {
	rows, err := r.db.Query(`SELECT id, session_id, transaction_id, original_category_id, suggested_category_id,
		confidence, reasoning, status FROM ai_categorization_results
		WHERE session_id = ? ORDER BY id LIMIT ? OFFSET ?`, sessionID, limit, offset)
	if err != nil {
		return nil, errs.Database(err)
	}
	defer rows.Close()
	return scanResults(rows)
}

// GetPendingResults returns every result awaiting a decision for a session.
func (r *Repository) GetPendingResults(sessionID string) ([]Result, error) {
	rows, err := r.db.Query(`SELECT id, session_id, transaction_id, original_category_id, suggested_category_id,
		confidence, reasoning, status FROM ai_categorization_results
		WHERE session_id = ? AND status = ? ORDER BY confidence DESC, id`, sessionID, string(ResultPending))
	if err != nil {
		return nil, errs.Database(err)
	}
	defer rows.Close()
	return scanResults(rows)
}

func scanResult(rs interface{ Scan(dest ...any) error }) (Result, error) {
	var r Result
	var originalCategoryID, suggestedCategoryID sql.NullInt64
	var confidence sql.NullFloat64
	var reasoning sql.NullString
	var status string
	if err := rs.Scan(&r.ID, &r.SessionID, &r.TransactionID, &originalCategoryID, &suggestedCategoryID,
		&confidence, &reasoning, &status); err != nil {
		if err == sql.ErrNoRows {
			return Result{}, errs.NotFound("AI categorization result not found")
		}
		return Result{}, errs.Database(err)
	}
	if originalCategoryID.Valid {
		id := originalCategoryID.Int64
		r.OriginalCategoryID = &id
	}
	if suggestedCategoryID.Valid {
		id := suggestedCategoryID.Int64
		r.SuggestedCategoryID = &id
	}
	if confidence.Valid {
		c := confidence.Float64
		r.Confidence = &c
	}
	r.Reasoning = reasoning.String
	r.Status = ResultStatus(status)
	return r, nil
}

func scanResults(rows *sql.Rows) ([]Result, error) {
	var out []Result
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpdateResultStatus sets a result's status.
func (r *Repository) UpdateResultStatus(id int64, status ResultStatus) error {
	_, err := r.db.Exec(`UPDATE ai_categorization_results SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return errs.Database(err)
	}
	return nil
}

// CountResults returns the total result count for a session.
func (r *Repository) CountResults(sessionID string) (int64, error) {
	var n int64
	err := r.db.QueryRow(`SELECT COUNT(*) FROM ai_categorization_results WHERE session_id = ?`, sessionID).Scan(&n)
	if err != nil {
		return 0, errs.Database(err)
	}
	return n, nil
}
