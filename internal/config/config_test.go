package config

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adrianvollmer/solvency/internal/database"
	"github.com/adrianvollmer/solvency/internal/settings"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SOLVENCY_HOST", "")
	t.Setenv("SOLVENCY_PORT", "")
	t.Setenv("SOLVENCY_DATABASE_URL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "./solvency.db", cfg.DatabaseURL)
	assert.Equal(t, 5, cfg.AIBatchSize)
	assert.Equal(t, 500, cfg.AIRateLimitMs)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SOLVENCY_PORT", "9090")
	t.Setenv("SOLVENCY_PASSWORD_HASH", "some-hash")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "some-hash", cfg.PasswordHash)
}

func TestUpdateFromSettings_TakesPrecedenceOverEnv(t *testing.T) {
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	db, err := database.New(database.Config{Path: dsn, Profile: database.ProfileStandard, Name: "test"}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })

	repo := settings.NewRepository(db.Conn(), zerolog.Nop())
	require.NoError(t, repo.Set("ai_batch_size", "10", nil))
	require.NoError(t, repo.Set("password_hash", "from-settings-db", nil))

	cfg := &Config{AIBatchSize: 5, PasswordHash: "from-env"}
	require.NoError(t, cfg.UpdateFromSettings(repo))

	assert.Equal(t, 10, cfg.AIBatchSize)
	assert.Equal(t, "from-settings-db", cfg.PasswordHash)
}

func TestUpdateFromSettings_EmptySettingKeepsEnvFallback(t *testing.T) {
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	db, err := database.New(database.Config{Path: dsn, Profile: database.ProfileStandard, Name: "test"}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })

	repo := settings.NewRepository(db.Conn(), zerolog.Nop())

	cfg := &Config{PasswordHash: "from-env"}
	require.NoError(t, cfg.UpdateFromSettings(repo))

	assert.Equal(t, "from-env", cfg.PasswordHash)
}
