// Package settings provides typed key/value access to the settings table,
// the store that lets runtime configuration (AI-provider credentials,
// batch/rate-limit tuning) be changed without a restart and take
// precedence over environment variables, per spec.md §4.1/§6.
package settings

import (
	"database/sql"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/adrianvollmer/solvency/internal/errs"
)

// Repository handles settings table reads/writes.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository constructs a Repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{db: db, log: log.With().Str("repo", "settings").Logger()}
}

// Get returns a setting's value, or nil if it does not exist.
func (r *Repository) Get(key string) (*string, error) {
	var value string
	err := r.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Database(fmt.Errorf("get setting %q: %w", key, err))
	}
	return &value, nil
}

// Set upserts a setting, with an optional description.
func (r *Repository) Set(key, value string, description *string) error {
	desc := ""
	if description != nil {
		desc = *description
	}
	_, err := r.db.Exec(`
		INSERT INTO settings (key, value, description)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			description = CASE WHEN excluded.description != '' THEN excluded.description ELSE settings.description END
	`, key, value, desc)
	if err != nil {
		return errs.Database(fmt.Errorf("set setting %q: %w", key, err))
	}
	return nil
}

// GetAll returns every setting as a map.
func (r *Repository) GetAll() (map[string]string, error) {
	rows, err := r.db.Query(`SELECT key, value FROM settings`)
	if err != nil {
		return nil, errs.Database(err)
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, errs.Database(err)
		}
		result[key] = value
	}
	return result, rows.Err()
}

// GetInt returns a setting as an int, or defaultValue if absent/unparsable.
func (r *Repository) GetInt(key string, defaultValue int) int {
	value, err := r.Get(key)
	if err != nil || value == nil {
		return defaultValue
	}
	n, err := strconv.Atoi(*value)
	if err != nil {
		r.log.Warn().Str("key", key).Str("value", *value).Msg("failed to parse int setting")
		return defaultValue
	}
	return n
}

// GetDurationMillis returns a setting as a duration in milliseconds, or
// defaultMillis if absent/unparsable.
func (r *Repository) GetDurationMillis(key string, defaultMillis int) int {
	return r.GetInt(key, defaultMillis)
}
