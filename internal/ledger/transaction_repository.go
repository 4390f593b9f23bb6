package ledger

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/adrianvollmer/solvency/internal/errs"
	"github.com/adrianvollmer/solvency/internal/money"
)

// TransactionRepository handles the transactions table, its tag join, and
// the batch rule-application operations of spec.md §4.10.
type TransactionRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewTransactionRepository constructs a TransactionRepository.
func NewTransactionRepository(db *sql.DB, log zerolog.Logger) *TransactionRepository {
	return &TransactionRepository{db: db, log: log.With().Str("repo", "transaction").Logger()}
}

const transactionColumns = `id, date, amount_cents, currency, description, category_id, account_id,
	notes, value_date, payer, payee, reference, transaction_type, counterparty_iban,
	creditor_id, mandate_reference, customer_reference, created, updated`

func scanTransaction(rs rowScanner) (Transaction, error) {
	var t Transaction
	var dateStr string
	var categoryID, accountID sql.NullInt64
	var notes, valueDate, payer, payee, reference, txType, iban, creditorID, mandateRef, customerRef sql.NullString
	var created, updated string

	if err := rs.Scan(&t.ID, &dateStr, &t.AmountCents, &t.Currency, &t.Description,
		&categoryID, &accountID, &notes, &valueDate, &payer, &payee, &reference, &txType,
		&iban, &creditorID, &mandateRef, &customerRef, &created, &updated); err != nil {
		return t, err
	}

	d, err := money.ParseDate(dateStr)
	if err != nil {
		return t, err
	}
	t.Date = d

	if categoryID.Valid {
		id := categoryID.Int64
		t.CategoryID = &id
	}
	if accountID.Valid {
		id := accountID.Int64
		t.AccountID = &id
	}
	if valueDate.Valid {
		vd, err := money.ParseDate(valueDate.String)
		if err == nil {
			t.ValueDate = &vd
		}
	}
	t.Notes = notes.String
	t.Payer = payer.String
	t.Payee = payee.String
	t.Reference = reference.String
	t.TransactionType = txType.String
	t.CounterpartyIBAN = iban.String
	t.CreditorID = creditorID.String
	t.MandateReference = mandateRef.String
	t.CustomerReference = customerRef.String
	t.Created, _ = time.Parse(time.RFC3339, created)
	t.Updated, _ = time.Parse(time.RFC3339, updated)
	return t, nil
}

// Filter narrows GetFiltered's result set. Zero values mean "no constraint".
type Filter struct {
	From             *money.Date
	To               *money.Date
	CategoryID       *int64
	AccountID        *int64
	Uncategorized    bool
	DescriptionLike  string
}

// Create inserts a new transaction.
func (r *TransactionRepository) Create(t Transaction) (Transaction, error) {
	var categoryID, accountID any
	if t.CategoryID != nil {
		categoryID = *t.CategoryID
	}
	if t.AccountID != nil {
		accountID = *t.AccountID
	}
	var valueDate any
	if t.ValueDate != nil {
		valueDate = t.ValueDate.String()
	}

	res, err := r.db.Exec(`INSERT INTO transactions
		(date, amount_cents, currency, description, category_id, account_id, notes, value_date,
		 payer, payee, reference, transaction_type, counterparty_iban, creditor_id,
		 mandate_reference, customer_reference)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Date.String(), int64(t.AmountCents), t.Currency, t.Description, categoryID, accountID,
		t.Notes, valueDate, t.Payer, t.Payee, t.Reference, t.TransactionType, t.CounterpartyIBAN,
		t.CreditorID, t.MandateReference, t.CustomerReference)
	if err != nil {
		return Transaction{}, errs.Database(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Transaction{}, errs.Database(err)
	}
	return r.GetByID(id)
}

// GetByID returns a transaction by id.
func (r *TransactionRepository) GetByID(id int64) (Transaction, error) {
	row := r.db.QueryRow(`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return Transaction{}, errs.NotFound("transaction %d not found", id)
	}
	if err != nil {
		return Transaction{}, errs.Database(err)
	}
	return t, nil
}

// Update overwrites every mutable field of an existing transaction.
func (r *TransactionRepository) Update(t Transaction) (Transaction, error) {
	var categoryID, accountID any
	if t.CategoryID != nil {
		categoryID = *t.CategoryID
	}
	if t.AccountID != nil {
		accountID = *t.AccountID
	}
	var valueDate any
	if t.ValueDate != nil {
		valueDate = t.ValueDate.String()
	}

	_, err := r.db.Exec(`UPDATE transactions SET date = ?, amount_cents = ?, currency = ?,
		description = ?, category_id = ?, account_id = ?, notes = ?, value_date = ?, payer = ?,
		payee = ?, reference = ?, transaction_type = ?, counterparty_iban = ?, creditor_id = ?,
		mandate_reference = ?, customer_reference = ?, updated = datetime('now') WHERE id = ?`,
		t.Date.String(), int64(t.AmountCents), t.Currency, t.Description, categoryID, accountID,
		t.Notes, valueDate, t.Payer, t.Payee, t.Reference, t.TransactionType, t.CounterpartyIBAN,
		t.CreditorID, t.MandateReference, t.CustomerReference, t.ID)
	if err != nil {
		return Transaction{}, errs.Database(err)
	}
	return r.GetByID(t.ID)
}

// Delete removes a transaction.
func (r *TransactionRepository) Delete(id int64) error {
	res, err := r.db.Exec(`DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return errs.Database(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errs.Database(err)
	}
	if n == 0 {
		return errs.NotFound("transaction %d not found", id)
	}
	return nil
}

// GetFiltered returns transactions matching f, sorted per spec.md §4.14's
// whitelisted-column ORDER BY construction.
func (r *TransactionRepository) GetFiltered(f Filter, sortCol TransactionSortColumn, dir SortDirection) ([]Transaction, error) {
	var where []string
	var args []any

	if f.From != nil {
		where = append(where, "date >= ?")
		args = append(args, f.From.String())
	}
	if f.To != nil {
		where = append(where, "date <= ?")
		args = append(args, f.To.String())
	}
	if f.Uncategorized {
		where = append(where, "category_id IS NULL")
	} else if f.CategoryID != nil {
		where = append(where, "category_id = ?")
		args = append(args, *f.CategoryID)
	}
	if f.AccountID != nil {
		where = append(where, "account_id = ?")
		args = append(args, *f.AccountID)
	}
	if f.DescriptionLike != "" {
		where = append(where, "LOWER(description) LIKE ?")
		args = append(args, "%"+strings.ToLower(f.DescriptionLike)+"%")
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " " + sortCol.OrderByClause(dir)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, errs.Database(err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, errs.Database(err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ApplyRuleCategory sets category_id for every transaction in txIDs,
// returning the number of affected rows, per spec.md §4.10.
func (r *TransactionRepository) ApplyRuleCategory(txIDs []int64, categoryID int64) (int64, error) {
	if len(txIDs) == 0 {
		return 0, nil
	}
	placeholders := make([]string, len(txIDs))
	args := make([]any, 0, len(txIDs)+1)
	args = append(args, categoryID)
	for i, id := range txIDs {
		placeholders[i] = "?"
		args = append(args, id)
	}
	query := fmt.Sprintf(`UPDATE transactions SET category_id = ?, updated = datetime('now')
		WHERE id IN (%s)`, strings.Join(placeholders, ","))

	res, err := r.db.Exec(query, args...)
	if err != nil {
		return 0, errs.Database(err)
	}
	return res.RowsAffected()
}

// ApplyRuleTag inserts (transaction_id, tag_id) for every id in txIDs using
// insert-or-ignore semantics, returning the number of rows actually
// inserted (pre-existing assignments are not counted), per spec.md §4.10.
func (r *TransactionRepository) ApplyRuleTag(txIDs []int64, tagID int64) (int64, error) {
	var affected int64
	for _, id := range txIDs {
		res, err := r.db.Exec(`INSERT OR IGNORE INTO transaction_tags (transaction_id, tag_id) VALUES (?, ?)`,
			id, tagID)
		if err != nil {
			return affected, errs.Database(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return affected, errs.Database(err)
		}
		affected += n
	}
	return affected, nil
}

// DailySum is one day's signed sum of transaction amounts, the form the
// net-worth engine's cumulative-expense sweep (spec.md §4.5 step 1) consumes.
type DailySum struct {
	Date  money.Date
	Cents money.Cents
}

// DailySums returns every day with at least one transaction, summed.
func (r *TransactionRepository) DailySums() ([]DailySum, error) {
	rows, err := r.db.Query(`SELECT date, SUM(amount_cents) FROM transactions GROUP BY date ORDER BY date`)
	if err != nil {
		return nil, errs.Database(err)
	}
	defer rows.Close()

	var out []DailySum
	for rows.Next() {
		var dateStr string
		var cents int64
		if err := rows.Scan(&dateStr, &cents); err != nil {
			return nil, errs.Database(err)
		}
		d, err := money.ParseDate(dateStr)
		if err != nil {
			return nil, errs.Database(err)
		}
		out = append(out, DailySum{Date: d, Cents: money.Cents(cents)})
	}
	return out, rows.Err()
}

// AccountBalance is one account's signed cash balance, the cents owner of
// account-allocation's cash leaf nodes.
type AccountBalance struct {
	AccountID int64
	Cents     money.Cents
}

// BalanceByAccount sums every transaction's signed amount per account,
// excluding rows with no assigned account.
func (r *TransactionRepository) BalanceByAccount() ([]AccountBalance, error) {
	rows, err := r.db.Query(`SELECT account_id, SUM(amount_cents) FROM transactions
		WHERE account_id IS NOT NULL GROUP BY account_id`)
	if err != nil {
		return nil, errs.Database(err)
	}
	defer rows.Close()

	var out []AccountBalance
	for rows.Next() {
		var accountID int64
		var cents int64
		if err := rows.Scan(&accountID, &cents); err != nil {
			return nil, errs.Database(err)
		}
		out = append(out, AccountBalance{AccountID: accountID, Cents: money.Cents(cents)})
	}
	return out, rows.Err()
}
