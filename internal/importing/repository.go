package importing

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/adrianvollmer/solvency/internal/errs"
)

// Repository handles import_sessions/import_rows persistence, grounded on
// original_source/src/db/queries/import.rs's CRUD surface and
// aristath-sentinel's repository constructor shape.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository constructs a Repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{db: db, log: log.With().Str("repo", "importing").Logger()}
}

// CreateSession starts a new session in state Parsing with a fresh uuid.
func (r *Repository) CreateSession(kind Kind) (Session, error) {
	id := uuid.NewString()
	_, err := r.db.Exec(`INSERT INTO import_sessions (id, kind, status) VALUES (?, ?, ?)`,
		id, string(kind), string(StatusParsing))
	if err != nil {
		return Session{}, errs.Database(err)
	}
	r.log.Info().Str("session_id", id).Str("kind", string(kind)).Msg("created import session")
	return r.GetSession(id)
}

// GetSession returns a session by id.
func (r *Repository) GetSession(id string) (Session, error) {
	row := r.db.QueryRow(`SELECT id, kind, status, total_rows, processed_rows, error_count,
		errors_json, created, updated FROM import_sessions WHERE id = ?`, id)

	var s Session
	var kind, status, errorsJSON, created, updated string
	if err := row.Scan(&s.ID, &kind, &status, &s.TotalRows, &s.ProcessedRows, &s.ErrorCount,
		&errorsJSON, &created, &updated); err != nil {
		if err == sql.ErrNoRows {
			return Session{}, errs.NotFound("import session %q not found", id)
		}
		return Session{}, errs.Database(err)
	}
	s.Kind = Kind(kind)
	s.Status = Status(status)
	_ = json.Unmarshal([]byte(errorsJSON), &s.Errors)
	s.Created, _ = time.Parse(time.RFC3339, created)
	s.Updated, _ = time.Parse(time.RFC3339, updated)
	return s, nil
}

// UpdateStatus transitions a session to a new status. Returns a Validation
// error if the edge is not allowed by the state machine.
func (r *Repository) UpdateStatus(id string, newStatus Status) error {
	s, err := r.GetSession(id)
	if err != nil {
		return err
	}
	if !CanTransition(s.Status, newStatus) {
		return errs.Validation("status", "cannot transition import session from %s to %s", s.Status, newStatus)
	}
	_, err = r.db.Exec(`UPDATE import_sessions SET status = ?, updated = datetime('now') WHERE id = ?`,
		string(newStatus), id)
	if err != nil {
		return errs.Database(err)
	}
	return nil
}

// UpdateProgress sets total/processed row counters.
func (r *Repository) UpdateProgress(id string, total, processed int64) error {
	_, err := r.db.Exec(`UPDATE import_sessions SET total_rows = ?, processed_rows = ?,
		updated = datetime('now') WHERE id = ?`, total, processed, id)
	if err != nil {
		return errs.Database(err)
	}
	return nil
}

// AppendError increments the error count and appends a message to the
// session's error list.
func (r *Repository) AppendError(id string, message string) error {
	s, err := r.GetSession(id)
	if err != nil {
		return err
	}
	errors := append(s.Errors, message)
	errorsJSON, _ := json.Marshal(errors)
	_, err = r.db.Exec(`UPDATE import_sessions SET error_count = error_count + 1, errors_json = ?,
		updated = datetime('now') WHERE id = ?`, string(errorsJSON), id)
	if err != nil {
		return errs.Database(err)
	}
	return nil
}

// DeleteSession removes a session; its rows cascade per schema.
func (r *Repository) DeleteSession(id string) error {
	_, err := r.db.Exec(`DELETE FROM import_sessions WHERE id = ?`, id)
	if err != nil {
		return errs.Database(err)
	}
	return nil
}

// CleanupOlderThan deletes every session (and cascaded rows) created more
// than maxAge ago, returning the count removed. This is the janitor sweep
// of spec.md §4.8.
func (r *Repository) CleanupOlderThan(maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge).Format(time.RFC3339)
	res, err := r.db.Exec(`DELETE FROM import_sessions WHERE datetime(created) < datetime(?)`, cutoff)
	if err != nil {
		return 0, errs.Database(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errs.Database(err)
	}
	if n > 0 {
		r.log.Info().Int64("count", n).Msg("cleaned up old import sessions")
	}
	return n, nil
}

// InsertRow stages one parsed row under session.
func (r *Repository) InsertRow(sessionID string, rowNumber int64, payloadJSON string) (int64, error) {
	res, err := r.db.Exec(`INSERT INTO import_rows (session_id, row_number, payload_json, status)
		VALUES (?, ?, ?, ?)`, sessionID, rowNumber, payloadJSON, string(RowPending))
	if err != nil {
		return 0, errs.Database(err)
	}
	return res.LastInsertId()
}

// GetRowsPaginated returns a page of rows for a session, ordered by
// row_number, joined with the category's name for display.
func (r *Repository) GetRowsPaginated(sessionID string, limit, offset int64) ([]Row, error) {
	rows, err := r.db.Query(`SELECT r.id, r.session_id, r.row_number, r.payload_json, r.category_id,
		c.name, r.status, r.error_message, r.created_entity_id
		FROM import_rows r LEFT JOIN categories c ON r.category_id = c.id
		WHERE r.session_id = ? ORDER BY r.row_number LIMIT ? OFFSET ?`, sessionID, limit, offset)
	if err != nil {
		return nil, errs.Database(err)
	}
	defer rows.Close()
	return scanRows(rows)
}

// GetPendingRows returns every row still awaiting import for a session, in
// row_number order, the set the Importing-phase worker iterates.
func (r *Repository) GetPendingRows(sessionID string) ([]Row, error) {
	rows, err := r.db.Query(`SELECT r.id, r.session_id, r.row_number, r.payload_json, r.category_id,
		c.name, r.status, r.error_message, r.created_entity_id
		FROM import_rows r LEFT JOIN categories c ON r.category_id = c.id
		WHERE r.session_id = ? AND r.status = ? ORDER BY r.row_number`, sessionID, string(RowPending))
	if err != nil {
		return nil, errs.Database(err)
	}
	defer rows.Close()
	return scanRows(rows)
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	var out []Row
	for rows.Next() {
		var row Row
		var categoryID sql.NullInt64
		var categoryName sql.NullString
		var status string
		var errorMessage sql.NullString
		var createdEntityID sql.NullInt64

		if err := rows.Scan(&row.ID, &row.SessionID, &row.RowNumber, &row.PayloadJSON,
			&categoryID, &categoryName, &status, &errorMessage, &createdEntityID); err != nil {
			return nil, errs.Database(err)
		}
		if categoryID.Valid {
			id := categoryID.Int64
			row.CategoryID = &id
		}
		row.CategoryName = categoryName.String
		row.Status = RowStatus(status)
		row.ErrorMessage = errorMessage.String
		if createdEntityID.Valid {
			id := createdEntityID.Int64
			row.CreatedEntityID = &id
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// MarkRowImported sets a row to RowImported and records the id of the
// ledger/portfolio entity it produced.
func (r *Repository) MarkRowImported(rowID, createdEntityID int64) error {
	_, err := r.db.Exec(`UPDATE import_rows SET status = ?, created_entity_id = ? WHERE id = ?`,
		string(RowImported), createdEntityID, rowID)
	if err != nil {
		return errs.Database(err)
	}
	return nil
}

// MarkRowError sets a row to RowError with a message.
func (r *Repository) MarkRowError(rowID int64, message string) error {
	_, err := r.db.Exec(`UPDATE import_rows SET status = ?, error_message = ? WHERE id = ?`,
		string(RowError), message, rowID)
	if err != nil {
		return errs.Database(err)
	}
	return nil
}

// CountRows returns the total row count for a session.
func (r *Repository) CountRows(sessionID string) (int64, error) {
	var n int64
	err := r.db.QueryRow(`SELECT COUNT(*) FROM import_rows WHERE session_id = ?`, sessionID).Scan(&n)
	if err != nil {
		return 0, errs.Database(err)
	}
	return n, nil
}
