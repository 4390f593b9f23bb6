package aicategorization

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adrianvollmer/solvency/internal/database"
	"github.com/adrianvollmer/solvency/internal/ledger"
	"github.com/adrianvollmer/solvency/internal/money"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	db, err := database.New(database.Config{
		Path:    dsn,
		Profile: database.ProfileStandard,
		Name:    "test",
	}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// fakeCategorizer suggests the first category option for every even-indexed
// (0, 2, ... by position in the batch) candidate, skips odd-indexed ones, and
// can be told to fail the entire batch instead.
type fakeCategorizer struct {
	fail      bool
	callCount int
	batches   [][]TransactionCandidate
}

func (f *fakeCategorizer) Categorize(batch []TransactionCandidate, categories []CategoryOption) ([]Suggestion, error) {
	f.callCount++
	f.batches = append(f.batches, batch)
	if f.fail {
		return nil, fmt.Errorf("provider unavailable")
	}
	if len(categories) == 0 {
		return nil, nil
	}
	var out []Suggestion
	for i, c := range batch {
		if i%2 != 0 {
			continue
		}
		catID := categories[0].ID
		out = append(out, Suggestion{TransactionID: c.TransactionID, CategoryID: &catID, Confidence: 0.9, Reasoning: "looks like it"})
	}
	return out, nil
}

func seedTransactions(t *testing.T, db *database.DB, n int) *ledger.TransactionRepository {
	t.Helper()
	txs := ledger.NewTransactionRepository(db.Conn(), zerolog.Nop())
	for i := 0; i < n; i++ {
		_, err := txs.Create(ledger.Transaction{
			Date:        money.MustParseDate("2024-01-01"),
			AmountCents: -1000,
			Currency:    "USD",
			Description: fmt.Sprintf("txn %d", i),
		})
		require.NoError(t, err)
	}
	return txs
}

func newTestService(t *testing.T, categorizer Categorizer, batchSize int) (*Service, *database.DB) {
	db := newTestDB(t)
	repo := NewRepository(db.Conn(), zerolog.Nop())
	apiLog := NewAPILogRepository(db.Conn(), zerolog.Nop())
	txs := ledger.NewTransactionRepository(db.Conn(), zerolog.Nop())
	cats := ledger.NewCategoryRepository(db.Conn(), zerolog.Nop())
	svc := NewService(repo, apiLog, txs, cats, categorizer, batchSize, 0, "fake", zerolog.Nop())
	return svc, db
}

func TestService_Start_FullLifecycleWithMixedSuggestions(t *testing.T) {
	categorizer := &fakeCategorizer{}
	svc, db := newTestService(t, categorizer, 2)
	seedTransactions(t, db, 5)

	session, err := svc.Start(ScopeAll)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, session.Status)
	assert.EqualValues(t, 5, session.TotalRows)
	assert.EqualValues(t, 5, session.ProcessedRows)

	assert.Equal(t, 3, categorizer.callCount) // batches of 2,2,1

	results, err := svc.repo.GetResultsPaginated(session.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, results, 5)

	var pending, skipped int
	for _, r := range results {
		switch r.Status {
		case ResultPending:
			pending++
			require.NotNil(t, r.SuggestedCategoryID)
		case ResultSkipped:
			skipped++
		}
	}
	assert.Equal(t, 3, pending)
	assert.Equal(t, 2, skipped)
}

func TestService_StartAsync_ReturnsImmediatelyThenCompletesInBackground(t *testing.T) {
	categorizer := &fakeCategorizer{}
	svc, db := newTestService(t, categorizer, 2)
	seedTransactions(t, db, 5)

	session, err := svc.StartAsync(ScopeAll)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, session.Status)
	assert.EqualValues(t, 5, session.TotalRows)
	assert.EqualValues(t, 0, session.ProcessedRows)

	assert.Eventually(t, func() bool {
		current, err := svc.GetSession(session.ID)
		return err == nil && current.Status == StatusCompleted
	}, time.Second, 5*time.Millisecond)
}

func TestService_StartAsync_NoTransactionsCompletesSynchronously(t *testing.T) {
	categorizer := &fakeCategorizer{}
	svc, _ := newTestService(t, categorizer, 5)

	session, err := svc.StartAsync(ScopeAll)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, session.Status)
	assert.EqualValues(t, 0, session.TotalRows)
	assert.Equal(t, 0, categorizer.callCount)
}

func TestService_Start_NoTransactionsCompletesImmediately(t *testing.T) {
	categorizer := &fakeCategorizer{}
	svc, _ := newTestService(t, categorizer, 5)

	session, err := svc.Start(ScopeAll)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, session.Status)
	assert.EqualValues(t, 0, session.TotalRows)
	assert.Equal(t, 0, categorizer.callCount)
}

func TestService_Start_ProviderFailureRecordsErrorResultsAndContinues(t *testing.T) {
	categorizer := &fakeCategorizer{fail: true}
	svc, db := newTestService(t, categorizer, 2)
	seedTransactions(t, db, 3)

	session, err := svc.Start(ScopeAll)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, session.Status)
	assert.Greater(t, len(session.Errors), 0)

	results, err := svc.repo.GetResultsPaginated(session.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.Equal(t, ResultError, r.Status)
	}
}

func TestService_Cancel_StopsAtNextBatchBoundary(t *testing.T) {
	categorizer := &fakeCategorizer{}
	svc, db := newTestService(t, categorizer, 1)
	seedTransactions(t, db, 3)

	candidates, err := svc.loadCandidates(ScopeAll)
	require.NoError(t, err)
	session, err := svc.repo.CreateSession(ScopeAll, int64(len(candidates)))
	require.NoError(t, err)
	require.NoError(t, svc.repo.UpdateStatus(session.ID, StatusProcessing))
	require.NoError(t, svc.Cancel(session.ID))

	categories, err := svc.loadCategoryOptions()
	require.NoError(t, err)
	svc.run(session.ID, candidates, categories)

	final, err := svc.repo.GetSession(session.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, final.Status)
	assert.Equal(t, 0, categorizer.callCount)
}

func TestService_ApplyResult_UpdatesTransactionAndMarksApplied(t *testing.T) {
	categorizer := &fakeCategorizer{}
	svc, db := newTestService(t, categorizer, 5)
	txs := seedTransactions(t, db, 1)
	cats := ledger.NewCategoryRepository(db.Conn(), zerolog.Nop())
	allCats, err := cats.GetAll()
	require.NoError(t, err)
	require.NotEmpty(t, allCats)
	targetCat := allCats[0].ID

	all, err := txs.GetFiltered(ledger.Filter{}, ledger.SortByDate, ledger.Ascending)
	require.NoError(t, err)
	require.Len(t, all, 1)

	session, err := svc.repo.CreateSession(ScopeAll, 1)
	require.NoError(t, err)
	resultID, err := svc.repo.InsertResult(session.ID, all[0].ID, nil, &targetCat, nil, "", ResultPending)
	require.NoError(t, err)

	require.NoError(t, svc.ApplyResult(resultID))

	updated, err := txs.GetByID(all[0].ID)
	require.NoError(t, err)
	require.NotNil(t, updated.CategoryID)
	assert.Equal(t, targetCat, *updated.CategoryID)

	result, err := svc.repo.GetResult(resultID)
	require.NoError(t, err)
	assert.Equal(t, ResultApplied, result.Status)
}

func TestService_ApplyAllPending_SkipsResultsWithoutSuggestion(t *testing.T) {
	categorizer := &fakeCategorizer{}
	svc, db := newTestService(t, categorizer, 5)
	txs := seedTransactions(t, db, 2)
	cats := ledger.NewCategoryRepository(db.Conn(), zerolog.Nop())
	allCats, err := cats.GetAll()
	require.NoError(t, err)
	targetCat := allCats[0].ID

	all, err := txs.GetFiltered(ledger.Filter{}, ledger.SortByDate, ledger.Ascending)
	require.NoError(t, err)
	require.Len(t, all, 2)

	session, err := svc.repo.CreateSession(ScopeAll, 2)
	require.NoError(t, err)
	_, err = svc.repo.InsertResult(session.ID, all[0].ID, nil, &targetCat, nil, "", ResultPending)
	require.NoError(t, err)
	_, err = svc.repo.InsertResult(session.ID, all[1].ID, nil, nil, nil, "", ResultSkipped)
	require.NoError(t, err)

	applied, err := svc.ApplyAllPending(session.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
}

func TestService_RejectResult_LeavesTransactionUntouched(t *testing.T) {
	categorizer := &fakeCategorizer{}
	svc, db := newTestService(t, categorizer, 5)
	txs := seedTransactions(t, db, 1)
	cats := ledger.NewCategoryRepository(db.Conn(), zerolog.Nop())
	allCats, err := cats.GetAll()
	require.NoError(t, err)
	targetCat := allCats[0].ID

	all, err := txs.GetFiltered(ledger.Filter{}, ledger.SortByDate, ledger.Ascending)
	require.NoError(t, err)

	session, err := svc.repo.CreateSession(ScopeAll, 1)
	require.NoError(t, err)
	resultID, err := svc.repo.InsertResult(session.ID, all[0].ID, nil, &targetCat, nil, "", ResultPending)
	require.NoError(t, err)

	require.NoError(t, svc.RejectResult(resultID))

	updated, err := txs.GetByID(all[0].ID)
	require.NoError(t, err)
	assert.Nil(t, updated.CategoryID)

	result, err := svc.repo.GetResult(resultID)
	require.NoError(t, err)
	assert.Equal(t, ResultRejected, result.Status)
}
