package importing

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/adrianvollmer/solvency/internal/csvparse"
	"github.com/adrianvollmer/solvency/internal/errs"
	"github.com/adrianvollmer/solvency/internal/ledger"
	"github.com/adrianvollmer/solvency/internal/money"
	"github.com/adrianvollmer/solvency/internal/portfolio"
)

// Service drives the import-session state machine of spec.md §4.8,
// orchestrating csvparse, the session/row Repository, and the ledger/
// portfolio repositories that rows ultimately create entities in.
type Service struct {
	repo         *Repository
	transactions *ledger.TransactionRepository
	activities   *portfolio.ActivityRepository
	log          zerolog.Logger
}

// NewService constructs a Service.
func NewService(repo *Repository, transactions *ledger.TransactionRepository, activities *portfolio.ActivityRepository, log zerolog.Logger) *Service {
	return &Service{repo: repo, transactions: transactions, activities: activities, log: log.With().Str("component", "importing").Logger()}
}

// StartTransactionImport parses CSV bytes as ledger transactions, stages
// one pending Row per parsed record, and advances Parsing -> Preview (or
// straight to Failed on the "zero rows, errors present" edge case).
func (s *Service) StartTransactionImport(content []byte) (Session, error) {
	session, err := s.repo.CreateSession(KindTransactions)
	if err != nil {
		return Session{}, err
	}

	result, err := csvparse.ParseTransactions(content)
	if err != nil {
		_ = s.repo.UpdateStatus(session.ID, StatusFailed)
		_ = s.repo.AppendError(session.ID, err.Error())
		return s.repo.GetSession(session.ID)
	}

	for _, msg := range result.Errors {
		if err := s.repo.AppendError(session.ID, msg); err != nil {
			return Session{}, err
		}
	}
	for _, row := range result.Rows {
		payload, _ := json.Marshal(row)
		if _, err := s.repo.InsertRow(session.ID, int64(row.RowNumber), string(payload)); err != nil {
			return Session{}, err
		}
	}
	if err := s.repo.UpdateProgress(session.ID, int64(len(result.Rows)), 0); err != nil {
		return Session{}, err
	}

	return s.finishParsing(session.ID, len(result.Rows), len(result.Errors))
}

// StartTradingImport is StartTransactionImport's trading-activity sibling.
func (s *Service) StartTradingImport(content []byte) (Session, error) {
	session, err := s.repo.CreateSession(KindTrading)
	if err != nil {
		return Session{}, err
	}

	result, err := csvparse.ParseActivities(content)
	if err != nil {
		_ = s.repo.UpdateStatus(session.ID, StatusFailed)
		_ = s.repo.AppendError(session.ID, err.Error())
		return s.repo.GetSession(session.ID)
	}

	for _, msg := range result.Errors {
		if err := s.repo.AppendError(session.ID, msg); err != nil {
			return Session{}, err
		}
	}
	for _, row := range result.Rows {
		payload, _ := json.Marshal(row)
		if _, err := s.repo.InsertRow(session.ID, int64(row.RowNumber), string(payload)); err != nil {
			return Session{}, err
		}
	}
	if err := s.repo.UpdateProgress(session.ID, int64(len(result.Rows)), 0); err != nil {
		return Session{}, err
	}

	return s.finishParsing(session.ID, len(result.Rows), len(result.Errors))
}

// finishParsing implements "on completion advances to Preview; if zero
// rows and errors > 0, advances to Failed" (§4.8).
func (s *Service) finishParsing(sessionID string, rowCount, errorCount int) (Session, error) {
	next := StatusPreview
	if rowCount == 0 && errorCount > 0 {
		next = StatusFailed
	}
	if err := s.repo.UpdateStatus(sessionID, next); err != nil {
		return Session{}, err
	}
	return s.repo.GetSession(sessionID)
}

// GetSession returns a session by id.
func (s *Service) GetSession(id string) (Session, error) {
	return s.repo.GetSession(id)
}

// GetRows returns a page of a session's staged rows.
func (s *Service) GetRows(sessionID string, limit, offset int64) ([]Row, error) {
	return s.repo.GetRowsPaginated(sessionID, limit, offset)
}

// Cancel sets a session to Failed, the early-transition cancellation
// contract the Open Question resolution in DESIGN.md describes: a running
// Confirm observes this at its next row boundary and stops without further
// writes.
func (s *Service) Cancel(sessionID string) error {
	return s.repo.UpdateStatus(sessionID, StatusFailed)
}

// SetRowCategory assigns a category to a staged row during Preview; an
// idempotent per-row mutation, per §4.8.
func (s *Service) SetRowCategory(rowID, categoryID int64) error {
	_, err := s.repo.db.Exec(`UPDATE import_rows SET category_id = ? WHERE id = ?`, categoryID, rowID)
	if err != nil {
		return errs.Database(err)
	}
	return nil
}

// Confirm advances Preview -> Importing and walks every pending row,
// creating one Transaction or Activity per row inside the row's own
// atomic unit, then advances to Completed.
func (s *Service) Confirm(sessionID string) error {
	session, err := s.repo.GetSession(sessionID)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateStatus(sessionID, StatusImporting); err != nil {
		return err
	}

	rows, err := s.repo.GetPendingRows(sessionID)
	if err != nil {
		return err
	}

	var processed int64
	for _, row := range rows {
		// Cooperative cancellation: a concurrent handler may have flipped
		// this session to Failed between rows; stop without further
		// writes if so (spec.md §5's cancellation contract — the import
		// state machine has no separate Cancelled state, so cancellation
		// is expressed as an early transition to Failed).
		current, err := s.repo.GetSession(sessionID)
		if err != nil {
			return err
		}
		if current.Status == StatusFailed {
			return nil
		}

		var rowErr error
		switch session.Kind {
		case KindTransactions:
			rowErr = s.importTransactionRow(row)
		case KindTrading:
			rowErr = s.importActivityRow(row)
		}

		if rowErr != nil {
			_ = s.repo.MarkRowError(row.ID, rowErr.Error())
			_ = s.repo.AppendError(sessionID, fmt.Sprintf("row %d: %v", row.RowNumber, rowErr))
		}
		processed++
		if err := s.repo.UpdateProgress(sessionID, session.TotalRows, processed); err != nil {
			return err
		}
	}

	return s.repo.UpdateStatus(sessionID, StatusCompleted)
}

func (s *Service) importTransactionRow(row Row) error {
	var parsed csvparse.ParsedTransaction
	if err := json.Unmarshal([]byte(row.PayloadJSON), &parsed); err != nil {
		return err
	}

	d, err := money.ParseDate(parsed.Date)
	if err != nil {
		return err
	}
	amountDec, err := csvparse.ValidateDecimal(parsed.Amount)
	if err != nil {
		return err
	}
	amountMajor, _ := amountDec.Float64()
	amountCents := money.FromMajor(amountMajor)

	var categoryID *int64
	if row.CategoryID != nil {
		categoryID = row.CategoryID
	}

	created, err := s.transactions.Create(ledger.Transaction{
		Date:              d,
		AmountCents:       amountCents,
		Currency:          parsed.Currency,
		Description:       parsed.Description,
		CategoryID:        categoryID,
		Notes:             parsed.Notes,
		Payer:             parsed.Payer,
		Payee:             parsed.Payee,
		Reference:         parsed.Reference,
		TransactionType:   parsed.TransactionType,
		CounterpartyIBAN:  parsed.CounterpartyIBAN,
		CreditorID:        parsed.CreditorID,
		MandateReference:  parsed.MandateReference,
		CustomerReference: parsed.CustomerReference,
	})
	if err != nil {
		return err
	}
	return s.repo.MarkRowImported(row.ID, created.ID)
}

func (s *Service) importActivityRow(row Row) error {
	var parsed csvparse.ParsedActivity
	if err := json.Unmarshal([]byte(row.PayloadJSON), &parsed); err != nil {
		return err
	}

	d, err := money.ParseDate(parsed.Date)
	if err != nil {
		return err
	}

	var quantity float64
	if parsed.Quantity != "" {
		qDec, err := csvparse.ValidateDecimal(parsed.Quantity)
		if err != nil {
			return err
		}
		quantity, _ = qDec.Float64()
	}

	var priceCents *money.Cents
	if parsed.UnitPrice != "" {
		pDec, err := csvparse.ValidateDecimal(parsed.UnitPrice)
		if err != nil {
			return err
		}
		major, _ := pDec.Float64()
		c := money.FromMajor(major)
		priceCents = &c
	}

	var feeCents money.Cents
	if parsed.Fee != "" {
		fDec, err := csvparse.ValidateDecimal(parsed.Fee)
		if err != nil {
			return err
		}
		major, _ := fDec.Float64()
		feeCents = money.FromMajor(major)
	}

	created, err := s.activities.Create(portfolio.Activity{
		Date:           d,
		Symbol:         parsed.Symbol,
		Kind:           activityKindFromCSV(parsed.Kind),
		Quantity:       quantity,
		UnitPriceCents: priceCents,
		Currency:       parsed.Currency,
		FeeCents:       feeCents,
	})
	if err != nil {
		return err
	}
	return s.repo.MarkRowImported(row.ID, created.ID)
}

// csvActivityKinds maps csvparse's uppercase activity-type tokens to the
// canonical mixed-case ActivityKind the schema's CHECK constraint expects.
var csvActivityKinds = map[string]portfolio.ActivityKind{
	"BUY": portfolio.Buy, "SELL": portfolio.Sell, "DIVIDEND": portfolio.Dividend,
	"INTEREST": portfolio.Interest, "DEPOSIT": portfolio.Deposit, "WITHDRAWAL": portfolio.Withdrawal,
	"ADDHOLDING": portfolio.AddHolding, "REMOVEHOLDING": portfolio.RemoveHolding,
	"TRANSFERIN": portfolio.TransferIn, "TRANSFEROUT": portfolio.TransferOut,
	"FEE": portfolio.Fee, "TAX": portfolio.Tax, "SPLIT": portfolio.Split,
}

func activityKindFromCSV(raw string) portfolio.ActivityKind {
	return csvActivityKinds[raw]
}
