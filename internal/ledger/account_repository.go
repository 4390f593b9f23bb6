package ledger

import (
	"database/sql"
	"time"

	"github.com/rs/zerolog"

	"github.com/adrianvollmer/solvency/internal/errs"
)

// AccountRepository handles accounts CRUD, grounded on the repository
// shape of aristath-sentinel's cash_flows.Repository.
type AccountRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewAccountRepository constructs an AccountRepository.
func NewAccountRepository(db *sql.DB, log zerolog.Logger) *AccountRepository {
	return &AccountRepository{db: db, log: log.With().Str("repo", "account").Logger()}
}

// rowScanner abstracts over *sql.Row and *sql.Rows for shared scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(rs rowScanner) (Account, error) {
	var a Account
	var created, updated string
	if err := rs.Scan(&a.ID, &a.Name, &a.Type, &a.Active, &created, &updated); err != nil {
		return a, err
	}
	a.Created, _ = time.Parse(time.RFC3339, created)
	a.Updated, _ = time.Parse(time.RFC3339, updated)
	return a, nil
}

// Create inserts a new account.
func (r *AccountRepository) Create(a Account) (Account, error) {
	res, err := r.db.Exec(`INSERT INTO accounts (name, type, active) VALUES (?, ?, ?)`,
		a.Name, string(a.Type), a.Active)
	if err != nil {
		return Account{}, errs.Database(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Account{}, errs.Database(err)
	}
	return r.GetByID(id)
}

// GetByID returns an account by id.
func (r *AccountRepository) GetByID(id int64) (Account, error) {
	row := r.db.QueryRow(`SELECT id, name, type, active, created, updated FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return Account{}, errs.NotFound("account %d not found", id)
	}
	if err != nil {
		return Account{}, errs.Database(err)
	}
	return a, nil
}

// GetAll returns every account, active first then by name.
func (r *AccountRepository) GetAll() ([]Account, error) {
	rows, err := r.db.Query(`SELECT id, name, type, active, created, updated
		FROM accounts ORDER BY active DESC, name`)
	if err != nil {
		return nil, errs.Database(err)
	}
	defer rows.Close()

	var out []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, errs.Database(err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Update changes an account's name, type, and active flag.
func (r *AccountRepository) Update(a Account) (Account, error) {
	_, err := r.db.Exec(`UPDATE accounts SET name = ?, type = ?, active = ?, updated = datetime('now') WHERE id = ?`,
		a.Name, string(a.Type), a.Active, a.ID)
	if err != nil {
		return Account{}, errs.Database(err)
	}
	return r.GetByID(a.ID)
}

// Delete removes an account. The schema declares no ON DELETE action on the
// account_id references, so deleting an account that a transaction or
// trading activity still references fails with a database error.
func (r *AccountRepository) Delete(id int64) error {
	res, err := r.db.Exec(`DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return errs.Database(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errs.Database(err)
	}
	if n == 0 {
		return errs.NotFound("account %d not found", id)
	}
	return nil
}
