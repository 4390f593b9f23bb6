package ledger

import (
	"database/sql"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/adrianvollmer/solvency/internal/errs"
)

// RuleRepository handles the rules table. Rules are not run automatically
// on transaction insert (spec.md §4.10); they only describe a pattern for
// later, explicit batch application via TransactionRepository.
type RuleRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRuleRepository constructs a RuleRepository.
func NewRuleRepository(db *sql.DB, log zerolog.Logger) *RuleRepository {
	return &RuleRepository{db: db, log: log.With().Str("repo", "rule").Logger()}
}

func scanRule(rs rowScanner) (Rule, error) {
	var r Rule
	var created, updated string
	if err := rs.Scan(&r.ID, &r.Name, &r.Pattern, &r.ActionKind, &r.ActionValue, &created, &updated); err != nil {
		return r, err
	}
	r.Created, _ = time.Parse(time.RFC3339, created)
	r.Updated, _ = time.Parse(time.RFC3339, updated)
	return r, nil
}

// Create inserts a new rule.
func (r *RuleRepository) Create(rule Rule) (Rule, error) {
	res, err := r.db.Exec(`INSERT INTO rules (name, pattern, action_kind, action_value)
		VALUES (?, ?, ?, ?)`, rule.Name, rule.Pattern, string(rule.ActionKind), rule.ActionValue)
	if err != nil {
		return Rule{}, errs.Database(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Rule{}, errs.Database(err)
	}
	return r.GetByID(id)
}

// GetByID returns a rule by id.
func (r *RuleRepository) GetByID(id int64) (Rule, error) {
	row := r.db.QueryRow(`SELECT id, name, pattern, action_kind, action_value, created, updated
		FROM rules WHERE id = ?`, id)
	rule, err := scanRule(row)
	if err == sql.ErrNoRows {
		return Rule{}, errs.NotFound("rule %d not found", id)
	}
	if err != nil {
		return Rule{}, errs.Database(err)
	}
	return rule, nil
}

// GetAll returns every rule ordered by name.
func (r *RuleRepository) GetAll() ([]Rule, error) {
	rows, err := r.db.Query(`SELECT id, name, pattern, action_kind, action_value, created, updated
		FROM rules ORDER BY name`)
	if err != nil {
		return nil, errs.Database(err)
	}
	defer rows.Close()

	var out []Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, errs.Database(err)
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

// Update changes a rule's name, pattern, and action.
func (r *RuleRepository) Update(rule Rule) (Rule, error) {
	_, err := r.db.Exec(`UPDATE rules SET name = ?, pattern = ?, action_kind = ?, action_value = ?,
		updated = datetime('now') WHERE id = ?`,
		rule.Name, rule.Pattern, string(rule.ActionKind), rule.ActionValue, rule.ID)
	if err != nil {
		return Rule{}, errs.Database(err)
	}
	return r.GetByID(rule.ID)
}

// Delete removes a rule.
func (r *RuleRepository) Delete(id int64) error {
	res, err := r.db.Exec(`DELETE FROM rules WHERE id = ?`, id)
	if err != nil {
		return errs.Database(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errs.Database(err)
	}
	if n == 0 {
		return errs.NotFound("rule %d not found", id)
	}
	return nil
}

// escapeLike escapes SQLite LIKE metacharacters (%, _, the escape character
// itself) so an arbitrary rule pattern can be embedded in a LIKE clause
// without its characters being interpreted as wildcards.
func escapeLike(s string) string {
	r := strings.NewReplacer("\\", "\\\\", "%", "\\%", "_", "\\_")
	return r.Replace(s)
}

// MatchingTransactionIDs returns the ids of every transaction whose
// description contains rule.Pattern (case-insensitive substring), for the
// preview step before an explicit batch apply. This mirrors Rule.Matches'
// in-memory semantics but evaluated in SQL for scale.
func (r *RuleRepository) MatchingTransactionIDs(rule Rule) ([]int64, error) {
	rows, err := r.db.Query(`SELECT id FROM transactions WHERE LOWER(description) LIKE ? ESCAPE '\'`,
		"%"+strings.ToLower(escapeLike(rule.Pattern))+"%")
	if err != nil {
		return nil, errs.Database(err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, errs.Database(err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
