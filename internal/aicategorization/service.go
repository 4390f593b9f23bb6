package aicategorization

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/adrianvollmer/solvency/internal/ledger"
)

// Service drives the AI-categorization session state machine of spec.md
// §4.9: load categories and the target transaction list, batch into
// fixed-size chunks, invoke the Categorizer per chunk with a cooperative
// cancellation check, and record one result per transaction.
type Service struct {
	repo         *Repository
	apiLog       *APILogRepository
	transactions *ledger.TransactionRepository
	categories   *ledger.CategoryRepository
	categorizer  Categorizer
	log          zerolog.Logger

	batchSize int
	rateLimit time.Duration
	provider  string
}

// NewService constructs a Service. batchSize and rateLimit come from
// config.Config's AIBatchSize/AIRateLimitMs, settings-table overridable.
func NewService(repo *Repository, apiLog *APILogRepository, transactions *ledger.TransactionRepository,
	categories *ledger.CategoryRepository, categorizer Categorizer, batchSize int, rateLimitMs int,
	provider string, log zerolog.Logger) *Service {
	if batchSize <= 0 {
		batchSize = 5
	}
	return &Service{
		repo:         repo,
		apiLog:       apiLog,
		transactions: transactions,
		categories:   categories,
		categorizer:  categorizer,
		batchSize:    batchSize,
		rateLimit:    time.Duration(rateLimitMs) * time.Millisecond,
		provider:     provider,
		log:          log.With().Str("component", "aicategorization").Logger(),
	}
}

// Start loads the target transaction list for scope, creates a Pending
// session, and runs it to completion (or Failed) before returning. Callers
// wanting "background task that outlives the request" semantics (§5) invoke
// Start from a goroutine; Start itself is synchronous so tests can assert on
// the final session state without racing a goroutine.
func (s *Service) Start(scope Scope) (Session, error) {
	session, candidates, err := s.createSession(scope)
	if err != nil {
		return Session{}, err
	}
	if candidates == nil {
		return s.repo.GetSession(session.ID)
	}

	s.continueSession(session.ID, candidates)
	return s.repo.GetSession(session.ID)
}

// StartAsync creates the session synchronously (a fast DB-only step) and
// dispatches the categorization run itself in a goroutine, returning as soon
// as the session exists — the "background task that outlives the request"
// framing spec.md §5 describes. Callers poll GetSession/GetResults for
// progress. Session creation failures are still returned synchronously.
func (s *Service) StartAsync(scope Scope) (Session, error) {
	session, candidates, err := s.createSession(scope)
	if err != nil {
		return Session{}, err
	}
	if candidates == nil {
		return session, nil
	}

	go s.continueSession(session.ID, candidates)
	return session, nil
}

// createSession loads the candidate list and creates a Pending (or, for the
// zero-candidate edge case, already-Completed) session row. A nil candidates
// slice signals the zero-candidate fast path: the caller has nothing further
// to run.
func (s *Service) createSession(scope Scope) (Session, []TransactionCandidate, error) {
	candidates, err := s.loadCandidates(scope)
	if err != nil {
		return Session{}, nil, err
	}

	session, err := s.repo.CreateSession(scope, int64(len(candidates)))
	if err != nil {
		return Session{}, nil, err
	}

	if len(candidates) == 0 {
		if err := s.repo.UpdateStatus(session.ID, StatusCompleted); err != nil {
			return Session{}, nil, err
		}
		final, err := s.repo.GetSession(session.ID)
		return final, nil, err
	}

	return session, candidates, nil
}

// continueSession loads category options and runs every batch to
// completion (or Failed), the portion of Start done after session creation.
func (s *Service) continueSession(sessionID string, candidates []TransactionCandidate) {
	categories, err := s.loadCategoryOptions()
	if err != nil {
		_ = s.repo.UpdateStatus(sessionID, StatusFailed)
		_ = s.repo.AppendError(sessionID, err.Error())
		return
	}

	if err := s.repo.UpdateStatus(sessionID, StatusProcessing); err != nil {
		s.log.Error().Err(err).Str("session_id", sessionID).Msg("failed to mark session processing")
		return
	}

	s.run(sessionID, candidates, categories)
}

// run walks candidates in fixed-size batches, checking for cooperative
// cancellation at every chunk boundary per spec.md §5, and sleeping the
// configured rate-limit delay between batches.
func (s *Service) run(sessionID string, candidates []TransactionCandidate, categories []CategoryOption) {
	var processed int64
	for i := 0; i < len(candidates); i += s.batchSize {
		current, err := s.repo.GetSession(sessionID)
		if err != nil {
			return
		}
		if current.Status == StatusCancelled {
			return
		}

		end := i + s.batchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		batch := candidates[i:end]

		s.runBatch(sessionID, batch, categories)
		processed += int64(len(batch))
		if err := s.repo.UpdateProgress(sessionID, processed); err != nil {
			return
		}

		if end < len(candidates) && s.rateLimit > 0 {
			time.Sleep(s.rateLimit)
		}
	}

	_ = s.repo.UpdateStatus(sessionID, StatusCompleted)
}

// runBatch invokes the Categorizer for one chunk and records one result row
// per candidate: Pending if a suggestion came back, Skipped if the provider
// offered none, Error (plus an api_logs entry and a session error) if the
// provider call itself failed. A provider failure does not abort the
// session; the next batch is still attempted, per §4.15.
func (s *Service) runBatch(sessionID string, batch []TransactionCandidate, categories []CategoryOption) {
	suggestions, err := s.categorizer.Categorize(batch, categories)
	if err != nil {
		summary := fmt.Sprintf("batch of %d transactions starting at id %d", len(batch), batch[0].TransactionID)
		_ = s.apiLog.Record(sessionID, s.provider, summary, false, err.Error())
		_ = s.repo.AppendError(sessionID, fmt.Sprintf("batch starting at transaction %d: %v", batch[0].TransactionID, err))
		for _, c := range batch {
			if _, insErr := s.repo.InsertResult(sessionID, c.TransactionID, nil, nil, nil, "", ResultError); insErr != nil {
				s.log.Error().Err(insErr).Msg("failed to record error result")
			}
		}
		return
	}

	_ = s.apiLog.Record(sessionID, s.provider, fmt.Sprintf("batch of %d transactions", len(batch)), true, "")

	bySuggestion := make(map[int64]Suggestion, len(suggestions))
	for _, sug := range suggestions {
		bySuggestion[sug.TransactionID] = sug
	}

	for _, c := range batch {
		sug, ok := bySuggestion[c.TransactionID]
		status := ResultSkipped
		var suggestedID *int64
		var confidence *float64
		var reasoning string
		if ok && sug.CategoryID != nil {
			status = ResultPending
			suggestedID = sug.CategoryID
			conf := sug.Confidence
			confidence = &conf
			reasoning = sug.Reasoning
		}
		if _, err := s.repo.InsertResult(sessionID, c.TransactionID, nil, suggestedID, confidence, reasoning, status); err != nil {
			s.log.Error().Err(err).Int64("transaction_id", c.TransactionID).Msg("failed to record AI categorization result")
		}
	}
}

// GetSession returns a session by id.
func (s *Service) GetSession(id string) (Session, error) {
	return s.repo.GetSession(id)
}

// GetResults returns a page of a session's results.
func (s *Service) GetResults(sessionID string, limit, offset int64) ([]Result, error) {
	return s.repo.GetResultsPaginated(sessionID, limit, offset)
}

// ApplyResult updates the target transaction's category_id and marks the
// result Applied, the atomic unit spec.md §4.9 requires.
func (s *Service) ApplyResult(resultID int64) error {
	r, err := s.repo.GetResult(resultID)
	if err != nil {
		return err
	}
	if r.SuggestedCategoryID == nil {
		return fmt.Errorf("result %d has no suggested category to apply", resultID)
	}
	tx, err := s.repo.db.Begin()
	if err != nil {
		return fmt.Errorf("apply result %d: %w", resultID, err)
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`UPDATE transactions SET category_id = ?, updated = datetime('now') WHERE id = ?`,
		*r.SuggestedCategoryID, r.TransactionID); err != nil {
		return fmt.Errorf("apply result %d: %w", resultID, err)
	}
	if _, err := tx.Exec(`UPDATE ai_categorization_results SET status = ? WHERE id = ?`,
		string(ResultApplied), resultID); err != nil {
		return fmt.Errorf("apply result %d: %w", resultID, err)
	}
	return tx.Commit()
}

// RejectResult marks a result Rejected without touching its transaction.
func (s *Service) RejectResult(resultID int64) error {
	return s.repo.UpdateResultStatus(resultID, ResultRejected)
}

// ApplyAllPending walks every Pending result with a non-null suggestion for
// a session and applies them one by one, per §4.9's "apply all pending".
func (s *Service) ApplyAllPending(sessionID string) (int, error) {
	pending, err := s.repo.GetPendingResults(sessionID)
	if err != nil {
		return 0, err
	}
	var applied int
	for _, r := range pending {
		if r.SuggestedCategoryID == nil {
			continue
		}
		if err := s.ApplyResult(r.ID); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}

// Cancel transitions a session to Cancelled; the running task observes this
// at its next batch boundary and exits without further writes.
func (s *Service) Cancel(sessionID string) error {
	return s.repo.UpdateStatus(sessionID, StatusCancelled)
}

func (s *Service) loadCandidates(scope Scope) ([]TransactionCandidate, error) {
	filter := ledger.Filter{}
	if scope == ScopeUncategorized {
		filter.Uncategorized = true
	}
	txs, err := s.transactions.GetFiltered(filter, ledger.SortByDate, ledger.Ascending)
	if err != nil {
		return nil, err
	}
	out := make([]TransactionCandidate, 0, len(txs))
	for _, t := range txs {
		out = append(out, TransactionCandidate{
			TransactionID: t.ID,
			Description:   t.Description,
			AmountCents:   int64(t.AmountCents),
			Currency:      t.Currency,
		})
	}
	return out, nil
}

func (s *Service) loadCategoryOptions() ([]CategoryOption, error) {
	cats, err := s.categories.GetAll()
	if err != nil {
		return nil, err
	}
	withPaths := ledger.WithPaths(cats)
	out := make([]CategoryOption, 0, len(withPaths))
	for _, c := range withPaths {
		out = append(out, CategoryOption{ID: c.ID, Path: c.Path})
	}
	return out, nil
}
