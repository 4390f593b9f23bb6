package portfolio

import (
	"database/sql"

	"github.com/rs/zerolog"

	"github.com/adrianvollmer/solvency/internal/database"
	"github.com/adrianvollmer/solvency/internal/errs"
	"github.com/adrianvollmer/solvency/internal/money"
)

// ActivityRepository handles trading_activities CRUD plus split
// reconciliation, grounded on the repository shape of
// position_repository.go adapted to Solvency's single embedded store.
type ActivityRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewActivityRepository constructs an ActivityRepository.
func NewActivityRepository(db *sql.DB, log zerolog.Logger) *ActivityRepository {
	return &ActivityRepository{db: db, log: log.With().Str("repo", "activity").Logger()}
}

// GetBySymbol returns every activity for a symbol ordered by (date, id).
func (r *ActivityRepository) GetBySymbol(symbol string) ([]Activity, error) {
	return r.query(`SELECT id, date, symbol, quantity, kind, unit_price_cents, currency,
		fee_cents, account_id, notes, created, updated
		FROM trading_activities WHERE symbol = ? ORDER BY date, id`, symbol)
}

// GetAll returns every activity ordered by (date, id), the order the
// position and net-worth engines require.
func (r *ActivityRepository) GetAll() ([]Activity, error) {
	return r.query(`SELECT id, date, symbol, quantity, kind, unit_price_cents, currency,
		fee_cents, account_id, notes, created, updated
		FROM trading_activities ORDER BY date, id`)
}

// GetUniqueSymbols returns every distinct symbol present in the ledger.
func (r *ActivityRepository) GetUniqueSymbols() ([]string, error) {
	rows, err := r.db.Query(`SELECT DISTINCT symbol FROM trading_activities ORDER BY symbol`)
	if err != nil {
		return nil, errs.Database(err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, errs.Database(err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *ActivityRepository) query(q string, args ...any) ([]Activity, error) {
	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, errs.Database(err)
	}
	defer rows.Close()

	var out []Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, errs.Database(err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanActivity(rs rowScanner) (Activity, error) {
	var a Activity
	var dateStr string
	var priceCents sql.NullInt64
	var accountID sql.NullInt64
	var notes sql.NullString
	var created, updated string

	if err := rs.Scan(&a.ID, &dateStr, &a.Symbol, &a.Quantity, &a.Kind, &priceCents,
		&a.Currency, &a.FeeCents, &accountID, &notes, &created, &updated); err != nil {
		return a, err
	}

	d, err := money.ParseDate(dateStr)
	if err != nil {
		return a, err
	}
	a.Date = d

	if priceCents.Valid {
		c := money.Cents(priceCents.Int64)
		a.UnitPriceCents = &c
	}
	if accountID.Valid {
		id := accountID.Int64
		a.AccountID = &id
	}
	a.Notes = notes.String

	return a, nil
}

// Create inserts a new activity, pre-adjusting it against any later-dated
// splits on the same symbol and, if it is itself a Split, rewriting every
// prior Buy/Sell row for the symbol. Runs inside a single transaction per
// spec.md §4.3's "these operations happen within a single database
// transaction" requirement.
func (r *ActivityRepository) Create(a Activity) (Activity, error) {
	var created Activity

	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if a.Kind != Split {
			// Pre-adjust a new Buy/Sell against every existing split dated
			// strictly after it, applying each ratio once, earliest first.
			if a.Kind == Buy || a.Kind == Sell {
				splits, err := splitsAfter(tx, a.Symbol, a.Date)
				if err != nil {
					return err
				}
				for _, sp := range splits {
					a.Quantity *= sp.ratio
					if a.UnitPriceCents != nil {
						adjusted := money.RoundCents(float64(*a.UnitPriceCents) / sp.ratio)
						a.UnitPriceCents = &adjusted
					}
				}
			}
		}

		id, err := insertActivity(tx, a)
		if err != nil {
			return err
		}
		a.ID = id

		if a.Kind == Split {
			if err := reconcileSplit(tx, a.Symbol, a.Date, a.Quantity); err != nil {
				return err
			}
		}

		created = a
		return nil
	})

	return created, err
}

// Delete removes an activity. If it is a Split, the split's effect on prior
// Buy/Sell rows is reversed first (dividing quantity by the ratio,
// multiplying price by the ratio), inside the same transaction.
func (r *ActivityRepository) Delete(id int64) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		var kind, symbol, dateStr string
		var ratio float64
		err := tx.QueryRow(`SELECT kind, symbol, date, quantity FROM trading_activities WHERE id = ?`, id).
			Scan(&kind, &symbol, &dateStr, &ratio)
		if err == sql.ErrNoRows {
			return errs.NotFound("activity %d not found", id)
		}
		if err != nil {
			return errs.Database(err)
		}

		if ActivityKind(kind) == Split {
			d, err := money.ParseDate(dateStr)
			if err != nil {
				return err
			}
			if err := reconcileSplit(tx, symbol, d, 1.0/ratio); err != nil {
				return err
			}
		}

		if _, err := tx.Exec(`DELETE FROM trading_activities WHERE id = ?`, id); err != nil {
			return errs.Database(err)
		}
		return nil
	})
}

func insertActivity(tx *sql.Tx, a Activity) (int64, error) {
	var priceCents any
	if a.UnitPriceCents != nil {
		priceCents = int64(*a.UnitPriceCents)
	}
	var accountID any
	if a.AccountID != nil {
		accountID = *a.AccountID
	}

	res, err := tx.Exec(`INSERT INTO trading_activities
		(date, symbol, quantity, kind, unit_price_cents, currency, fee_cents, account_id, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Date.String(), a.Symbol, a.Quantity, string(a.Kind), priceCents, a.Currency,
		int64(a.FeeCents), accountID, a.Notes)
	if err != nil {
		return 0, errs.Database(err)
	}
	return res.LastInsertId()
}

type splitRatio struct {
	date  money.Date
	ratio float64
}

// splitsAfter returns every Split activity for symbol dated strictly after
// cutoff, ordered earliest-first, for pre-adjusting a new historical row.
func splitsAfter(tx *sql.Tx, symbol string, cutoff money.Date) ([]splitRatio, error) {
	rows, err := tx.Query(`SELECT date, quantity FROM trading_activities
		WHERE symbol = ? AND kind = 'Split' AND date > ? ORDER BY date`,
		symbol, cutoff.String())
	if err != nil {
		return nil, errs.Database(err)
	}
	defer rows.Close()

	var out []splitRatio
	for rows.Next() {
		var dateStr string
		var ratio float64
		if err := rows.Scan(&dateStr, &ratio); err != nil {
			return nil, errs.Database(err)
		}
		d, err := money.ParseDate(dateStr)
		if err != nil {
			return nil, err
		}
		out = append(out, splitRatio{date: d, ratio: ratio})
	}
	return out, rows.Err()
}

// reconcileSplit rewrites every Buy/Sell row for symbol dated at or before
// splitDate: quantity *= ratio, price /= ratio (rounded), preserving total
// cost (qty·price is invariant to first order, exactly preserved in cents
// by rounding price rather than cost). Passing ratio = 1/R reverses a
// previously applied split of ratio R.
func reconcileSplit(tx *sql.Tx, symbol string, splitDate money.Date, ratio float64) error {
	if ratio == 1.0 {
		return nil // no-op split, per spec.md §8 boundary behavior
	}

	rows, err := tx.Query(`SELECT id, quantity, unit_price_cents FROM trading_activities
		WHERE symbol = ? AND kind IN ('Buy', 'Sell') AND date <= ?`,
		symbol, splitDate.String())
	if err != nil {
		return errs.Database(err)
	}

	type adjustment struct {
		id       int64
		quantity float64
		price    sql.NullInt64
	}
	var toAdjust []adjustment
	for rows.Next() {
		var adj adjustment
		if err := rows.Scan(&adj.id, &adj.quantity, &adj.price); err != nil {
			rows.Close()
			return errs.Database(err)
		}
		toAdjust = append(toAdjust, adj)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return errs.Database(err)
	}
	rows.Close()

	for _, adj := range toAdjust {
		newQty := adj.quantity * ratio
		var newPrice any
		if adj.price.Valid {
			newPrice = int64(money.RoundCents(float64(adj.price.Int64) / ratio))
		}
		if _, err := tx.Exec(`UPDATE trading_activities SET quantity = ?, unit_price_cents = ? WHERE id = ?`,
			newQty, newPrice, adj.id); err != nil {
			return errs.Database(err)
		}
	}

	return nil
}

