package portfolio

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/adrianvollmer/solvency/internal/errs"
	"github.com/adrianvollmer/solvency/internal/money"
)

// MarketDataRepository persists market_data_points, the §4.4 price lookup's
// backing store.
type MarketDataRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewMarketDataRepository constructs a MarketDataRepository.
func NewMarketDataRepository(db *sql.DB, log zerolog.Logger) *MarketDataRepository {
	return &MarketDataRepository{db: db, log: log.With().Str("repo", "marketdata").Logger()}
}

// GetAll returns every stored point, the form BuildNetWorthSeries and
// NewPriceLookup consume.
func (r *MarketDataRepository) GetAll() ([]MarketDataPoint, error) {
	rows, err := r.db.Query(`SELECT id, symbol, date, close_price_cents, currency FROM market_data_points
		ORDER BY symbol, date`)
	if err != nil {
		return nil, errs.Database(err)
	}
	defer rows.Close()

	var out []MarketDataPoint
	for rows.Next() {
		var p MarketDataPoint
		var dateStr string
		if err := rows.Scan(&p.ID, &p.Symbol, &dateStr, &p.ClosePriceCents, &p.Currency); err != nil {
			return nil, errs.Database(err)
		}
		p.Date, _ = money.ParseDate(dateStr)
		out = append(out, p)
	}
	return out, rows.Err()
}

// LatestDate returns the most recent stored date for symbol, or false if
// the symbol has no stored points yet.
func (r *MarketDataRepository) LatestDate(symbol string) (money.Date, bool, error) {
	var dateStr sql.NullString
	err := r.db.QueryRow(`SELECT MAX(date) FROM market_data_points WHERE symbol = ?`, symbol).Scan(&dateStr)
	if err != nil {
		return money.Date{}, false, errs.Database(err)
	}
	if !dateStr.Valid {
		return money.Date{}, false, nil
	}
	d, err := money.ParseDate(dateStr.String)
	if err != nil {
		return money.Date{}, false, errs.Database(err)
	}
	return d, true, nil
}

// Upsert inserts or replaces one (symbol, date) point, honoring the
// schema's UNIQUE(symbol, date) constraint.
func (r *MarketDataRepository) Upsert(p MarketDataPoint) error {
	_, err := r.db.Exec(`INSERT INTO market_data_points (symbol, date, close_price_cents, currency)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(symbol, date) DO UPDATE SET close_price_cents = excluded.close_price_cents,
			currency = excluded.currency, fetched_at = datetime('now')`,
		p.Symbol, p.Date.String(), int64(p.ClosePriceCents), p.Currency)
	if err != nil {
		return errs.Database(err)
	}
	return nil
}

// Quote is a single fetched (date, close_price_cents) pair, the Go
// analogue of spec.md §6's `fetch_quotes` result element.
type Quote struct {
	Date            money.Date
	ClosePriceCents money.Cents
}

// QuoteProvider is the opaque market-data collaborator of spec.md §6:
// `fetch_quotes(symbol, from, to) -> sequence of (date, close_price)`. Any
// concrete provider implements this against its own HTTP API.
type QuoteProvider interface {
	FetchQuotes(symbol string, from, to money.Date) ([]Quote, error)
}

// RefreshJob is the market-data refresh background task of spec.md §4.15 /
// §6: for each symbol the activity ledger references, fetch quotes since
// the latest stored point (or a fixed lookback if none exist) and upsert
// them, sleeping a rate-limit delay between symbols. A per-symbol failure
// is logged and the next symbol is attempted; it never aborts the run.
type RefreshJob struct {
	activities *ActivityRepository
	marketData *MarketDataRepository
	provider   QuoteProvider
	rateLimit  time.Duration
	lookback   time.Duration
	log        zerolog.Logger
}

// NewRefreshJob constructs a RefreshJob. rateLimit defaults to the 500ms
// spec.md §6 names; lookback bounds the initial fetch window for a symbol
// with no stored history yet.
func NewRefreshJob(activities *ActivityRepository, marketData *MarketDataRepository, provider QuoteProvider,
	rateLimit time.Duration, log zerolog.Logger) *RefreshJob {
	if rateLimit <= 0 {
		rateLimit = 500 * time.Millisecond
	}
	return &RefreshJob{
		activities: activities,
		marketData: marketData,
		provider:   provider,
		rateLimit:  rateLimit,
		lookback:   365 * 24 * time.Hour,
		log:        log.With().Str("job", "market_data_refresh").Logger(),
	}
}

// Name satisfies scheduler.Job.
func (j *RefreshJob) Name() string { return "market_data_refresh" }

// Run fetches and stores fresh quotes for every non-cash symbol the
// activity ledger references.
func (j *RefreshJob) Run() error {
	symbols, err := j.activities.GetUniqueSymbols()
	if err != nil {
		return err
	}

	now := time.Now()
	today := money.NewDate(now.Year(), now.Month(), now.Day())
	for i, symbol := range symbols {
		if IsCashSymbol(symbol) {
			continue
		}
		if err := j.refreshSymbol(symbol, today); err != nil {
			j.log.Error().Err(err).Str("symbol", symbol).Msg("market data refresh failed for symbol")
		}
		if i < len(symbols)-1 {
			time.Sleep(j.rateLimit)
		}
	}
	return nil
}

func (j *RefreshJob) refreshSymbol(symbol string, today money.Date) error {
	from := today.AddDays(-int(j.lookback.Hours() / 24))
	if latest, ok, err := j.marketData.LatestDate(symbol); err != nil {
		return err
	} else if ok {
		from = latest.AddDays(1)
	}
	if from.After(today) {
		return nil
	}

	quotes, err := j.provider.FetchQuotes(symbol, from, today)
	if err != nil {
		return fmt.Errorf("fetch quotes for %s: %w", symbol, err)
	}

	for _, q := range quotes {
		point := MarketDataPoint{Symbol: symbol, Date: q.Date, ClosePriceCents: q.ClosePriceCents, Currency: ""}
		if err := j.marketData.Upsert(point); err != nil {
			return err
		}
	}
	return nil
}
