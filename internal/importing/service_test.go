package importing

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adrianvollmer/solvency/internal/database"
	"github.com/adrianvollmer/solvency/internal/ledger"
	"github.com/adrianvollmer/solvency/internal/portfolio"
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

func newTestService(t *testing.T) *Service {
	db := newTestDB(t)
	repo := NewRepository(db.Conn(), zerolog.Nop())
	txs := ledger.NewTransactionRepository(db.Conn(), zerolog.Nop())
	activities := portfolio.NewActivityRepository(db.Conn(), zerolog.Nop())
	return NewService(repo, txs, activities, zerolog.Nop())
}

const sampleTransactionsCSV = `date,amount,description
2024-01-01,-10.50,Coffee Shop
2024-01-02,-999.00,Spotify
`

func TestService_TransactionImport_FullLifecycle(t *testing.T) {
	s := newTestService(t)

	session, err := s.StartTransactionImport([]byte(sampleTransactionsCSV))
	require.NoError(t, err)
	assert.Equal(t, StatusPreview, session.Status)
	assert.EqualValues(t, 2, session.TotalRows)

	require.NoError(t, s.Confirm(session.ID))

	final, err := s.repo.GetSession(session.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, final.Status)
	assert.EqualValues(t, 2, final.ProcessedRows)

	rows, err := s.repo.GetRowsPaginated(session.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.Equal(t, RowImported, r.Status)
		require.NotNil(t, r.CreatedEntityID)
	}
}

func TestService_TransactionImport_ZeroRowsWithErrorsFailsImmediately(t *testing.T) {
	s := newTestService(t)

	badCSV := "date,amount,description\n,,\n"
	session, err := s.StartTransactionImport([]byte(badCSV))
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, session.Status)
	assert.EqualValues(t, 0, session.TotalRows)
	assert.Greater(t, len(session.Errors), 0)
}

func TestService_TradingImport_CreatesActivities(t *testing.T) {
	s := newTestService(t)

	csv := "date,symbol,activityType,quantity,unitPrice,currency\n" +
		"2024-01-01,AAPL,BUY,10,150.00,USD\n"
	session, err := s.StartTradingImport([]byte(csv))
	require.NoError(t, err)
	assert.Equal(t, StatusPreview, session.Status)

	require.NoError(t, s.Confirm(session.ID))
	final, err := s.repo.GetSession(session.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, final.Status)

	activities, err := s.activities.GetBySymbol("AAPL")
	require.NoError(t, err)
	require.Len(t, activities, 1)
	assert.Equal(t, portfolio.Buy, activities[0].Kind)
	assert.Equal(t, 10.0, activities[0].Quantity)
}

func TestCanTransition_RejectsIllegalEdges(t *testing.T) {
	assert.True(t, CanTransition(StatusParsing, StatusPreview))
	assert.True(t, CanTransition(StatusPreview, StatusImporting))
	assert.True(t, CanTransition(StatusImporting, StatusCompleted))
	assert.False(t, CanTransition(StatusCompleted, StatusPreview))
	assert.False(t, CanTransition(StatusParsing, StatusImporting))
}

func TestJanitorJob_RemovesOldSessions(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db.Conn(), zerolog.Nop())

	session, err := repo.CreateSession(KindTransactions)
	require.NoError(t, err)

	_, err = db.Conn().Exec(`UPDATE import_sessions SET created = ? WHERE id = ?`,
		time.Now().UTC().Add(-25*time.Hour).Format(time.RFC3339), session.ID)
	require.NoError(t, err)

	job := NewJanitorJob(repo)
	require.NoError(t, job.Run())

	_, err = repo.GetSession(session.ID)
	assert.Error(t, err)
}
