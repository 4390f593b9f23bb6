package ledger

import (
	"database/sql"

	"github.com/rs/zerolog"

	"github.com/adrianvollmer/solvency/internal/errs"
)

// TagRepository handles the tags table and the transaction_tags join.
type TagRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewTagRepository constructs a TagRepository.
func NewTagRepository(db *sql.DB, log zerolog.Logger) *TagRepository {
	return &TagRepository{db: db, log: log.With().Str("repo", "tag").Logger()}
}

func scanTag(rs rowScanner) (Tag, error) {
	var t Tag
	if err := rs.Scan(&t.ID, &t.Name, &t.Color, &t.Style); err != nil {
		return t, err
	}
	return t, nil
}

// Create inserts a new tag.
func (r *TagRepository) Create(t Tag) (Tag, error) {
	res, err := r.db.Exec(`INSERT INTO tags (name, color, style) VALUES (?, ?, ?)`,
		t.Name, t.Color, string(t.Style))
	if err != nil {
		return Tag{}, errs.Database(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Tag{}, errs.Database(err)
	}
	return r.GetByID(id)
}

// GetByID returns a tag by id.
func (r *TagRepository) GetByID(id int64) (Tag, error) {
	row := r.db.QueryRow(`SELECT id, name, color, style FROM tags WHERE id = ?`, id)
	t, err := scanTag(row)
	if err == sql.ErrNoRows {
		return Tag{}, errs.NotFound("tag %d not found", id)
	}
	if err != nil {
		return Tag{}, errs.Database(err)
	}
	return t, nil
}

// GetAll returns every tag ordered by name.
func (r *TagRepository) GetAll() ([]Tag, error) {
	rows, err := r.db.Query(`SELECT id, name, color, style FROM tags ORDER BY name`)
	if err != nil {
		return nil, errs.Database(err)
	}
	defer rows.Close()

	var out []Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, errs.Database(err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Update changes a tag's name, color, and style.
func (r *TagRepository) Update(t Tag) (Tag, error) {
	_, err := r.db.Exec(`UPDATE tags SET name = ?, color = ?, style = ? WHERE id = ?`,
		t.Name, t.Color, string(t.Style), t.ID)
	if err != nil {
		return Tag{}, errs.Database(err)
	}
	return r.GetByID(t.ID)
}

// Delete removes a tag; the transaction_tags join rows cascade per schema.
func (r *TagRepository) Delete(id int64) error {
	res, err := r.db.Exec(`DELETE FROM tags WHERE id = ?`, id)
	if err != nil {
		return errs.Database(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errs.Database(err)
	}
	if n == 0 {
		return errs.NotFound("tag %d not found", id)
	}
	return nil
}

// AssignToTransaction attaches a tag to a transaction, idempotently.
func (r *TagRepository) AssignToTransaction(transactionID, tagID int64) error {
	_, err := r.db.Exec(`INSERT OR IGNORE INTO transaction_tags (transaction_id, tag_id) VALUES (?, ?)`,
		transactionID, tagID)
	if err != nil {
		return errs.Database(err)
	}
	return nil
}

// RemoveFromTransaction detaches a tag from a transaction.
func (r *TagRepository) RemoveFromTransaction(transactionID, tagID int64) error {
	_, err := r.db.Exec(`DELETE FROM transaction_tags WHERE transaction_id = ? AND tag_id = ?`,
		transactionID, tagID)
	if err != nil {
		return errs.Database(err)
	}
	return nil
}

// TagsForTransaction returns every tag attached to a transaction.
func (r *TagRepository) TagsForTransaction(transactionID int64) ([]Tag, error) {
	rows, err := r.db.Query(`SELECT t.id, t.name, t.color, t.style
		FROM tags t JOIN transaction_tags tt ON tt.tag_id = t.id
		WHERE tt.transaction_id = ? ORDER BY t.name`, transactionID)
	if err != nil {
		return nil, errs.Database(err)
	}
	defer rows.Close()

	var out []Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, errs.Database(err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
