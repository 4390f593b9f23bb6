// Package database wraps the single embedded relational store Solvency uses
// for everything: the ledger, reference data, sessions, and market data. One
// store, one pool, WAL journaling and foreign-key enforcement mandatory.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver, no CGo

	"github.com/rs/zerolog"
)

// Profile selects a PRAGMA tuning preset for the store.
type Profile string

const (
	// ProfileLedger favors durability over throughput: full fsync, no
	// auto-vacuum shrink, for the primary on-disk store.
	ProfileLedger Profile = "ledger"
	// ProfileCache favors speed over durability, for ephemeral/derived data.
	ProfileCache Profile = "cache"
	// ProfileStandard is a balanced default.
	ProfileStandard Profile = "standard"
)

// Config configures a new store.
type Config struct {
	Path    string // filesystem path, or a "file:" URI for in-memory test DBs
	Profile Profile
	Name    string // friendly name for logging
}

// DB wraps *sql.DB with migration, transaction, and maintenance helpers.
type DB struct {
	conn    *sql.DB
	path    string
	profile Profile
	name    string
	log     zerolog.Logger
}

// New opens (and pings) a store with profile-tuned PRAGMAs and pool limits.
func New(cfg Config, log zerolog.Logger) (*DB, error) {
	if strings.HasPrefix(cfg.Path, "file:") {
		// in-memory / shared-cache test DSNs: used verbatim
	} else {
		absPath, err := filepath.Abs(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("resolve database path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		cfg.Path = absPath
	}

	if cfg.Profile == "" {
		cfg.Profile = ProfileStandard
	}

	connStr := buildConnectionString(cfg.Path, cfg.Profile)

	conn, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.Name, err)
	}

	configureConnectionPool(conn, cfg.Profile)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database %s: %w", cfg.Name, err)
	}

	return &DB{
		conn:    conn,
		path:    cfg.Path,
		profile: cfg.Profile,
		name:    cfg.Name,
		log:     log.With().Str("component", "database").Str("db", cfg.Name).Logger(),
	}, nil
}

func buildConnectionString(path string, profile Profile) string {
	connStr := path + "?_pragma=journal_mode(WAL)"

	switch profile {
	case ProfileLedger:
		connStr += "&_pragma=synchronous(FULL)"
		connStr += "&_pragma=auto_vacuum(NONE)"
	case ProfileCache:
		connStr += "&_pragma=synchronous(OFF)"
		connStr += "&_pragma=auto_vacuum(FULL)"
		connStr += "&_pragma=temp_store(MEMORY)"
	default:
		connStr += "&_pragma=synchronous(NORMAL)"
		connStr += "&_pragma=auto_vacuum(INCREMENTAL)"
		connStr += "&_pragma=temp_store(MEMORY)"
	}

	connStr += "&_pragma=foreign_keys(1)"
	connStr += "&_pragma=busy_timeout(5000)"
	connStr += "&_pragma=wal_autocheckpoint(1000)"
	connStr += "&_pragma=cache_size(-64000)"

	return connStr
}

func configureConnectionPool(conn *sql.DB, profile Profile) {
	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(24 * time.Hour)
	conn.SetConnMaxIdleTime(30 * time.Minute)

	if profile == ProfileCache {
		conn.SetMaxOpenConns(5)
		conn.SetMaxIdleConns(2)
	}
}

// Close closes the underlying connection pool.
func (db *DB) Close() error { return db.conn.Close() }

// Conn returns the underlying *sql.DB for repository use.
func (db *DB) Conn() *sql.DB { return db.conn }

// Name returns the store's friendly name.
func (db *DB) Name() string { return db.name }

// Path returns the store's filesystem path or DSN.
func (db *DB) Path() string { return db.path }

func findSchemasDir() (string, error) {
	_, currentFile, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("resolve caller for schema directory lookup")
	}
	absFile, err := filepath.Abs(currentFile)
	if err != nil {
		return "", err
	}
	dir := filepath.Join(filepath.Dir(absFile), "schemas")
	info, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("schemas directory not found at %s: %w", dir, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("schemas path is not a directory: %s", dir)
	}
	return dir, nil
}

// Migrate applies every *.sql file under schemas/ in lexicographic order,
// recording each in a _migrations table so re-application is a no-op.
func (db *DB) Migrate() error {
	if _, err := db.conn.Exec(`CREATE TABLE IF NOT EXISTS _migrations (
		filename   TEXT PRIMARY KEY,
		applied_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`); err != nil {
		return fmt.Errorf("create _migrations table: %w", err)
	}

	schemasDir, err := findSchemasDir()
	if err != nil {
		return fmt.Errorf("locate schemas: %w", err)
	}

	entries, err := os.ReadDir(schemasDir)
	if err != nil {
		return fmt.Errorf("read schemas directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		var applied int
		if err := db.conn.QueryRow(`SELECT COUNT(*) FROM _migrations WHERE filename = ?`, name).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if applied > 0 {
			continue
		}

		content, err := os.ReadFile(filepath.Join(schemasDir, name))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		if err := db.applyMigration(name, string(content)); err != nil {
			return err
		}
		db.log.Info().Str("migration", name).Msg("applied migration")
	}

	return nil
}

func (db *DB) applyMigration(name, sql string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", name, err)
	}

	if _, err := tx.Exec(sql); err != nil {
		_ = tx.Rollback()
		errStr := err.Error()
		if strings.Contains(errStr, "duplicate column") || strings.Contains(errStr, "already exists") {
			_, markErr := db.conn.Exec(`INSERT INTO _migrations (filename) VALUES (?)`, name)
			return markErr
		}
		return fmt.Errorf("apply migration %s: %w", name, err)
	}

	if _, err := tx.Exec(`INSERT INTO _migrations (filename) VALUES (?)`, name); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record migration %s: %w", name, err)
	}

	return tx.Commit()
}

// WithTransaction runs fn inside a transaction, committing on success and
// rolling back on error or panic. The panic is converted to an error and
// re-raised as a wrapped error, never left to propagate past this call.
func WithTransaction(conn *sql.DB, fn func(*sql.Tx) error) (err error) {
	if conn == nil {
		return fmt.Errorf("database connection is nil")
	}

	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			err = fmt.Errorf("panic in transaction: %v", p)
			return
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
			}
			return
		}
		err = tx.Commit()
	}()

	err = fn(tx)
	return err
}

// WithTransaction is the *DB convenience form of the package function.
func (db *DB) WithTransaction(fn func(*sql.Tx) error) error {
	return WithTransaction(db.conn, fn)
}

// HealthCheck runs PRAGMA integrity_check in addition to a ping.
func (db *DB) HealthCheck(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	var result string
	if err := db.conn.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}

// VacuumInto writes a self-consistent page-level snapshot of the store to
// destPath, used by the database export endpoint (§6).
func (db *DB) VacuumInto(destPath string) error {
	if _, err := db.conn.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("vacuum into %s: %w", destPath, err)
	}
	return nil
}

// Stats reports basic size/fragmentation figures for operational visibility.
type Stats struct {
	SizeBytes     int64
	WALSizeBytes  int64
	PageCount     int64
	PageSize      int64
	FreelistCount int64
}

// GetStats collects Stats via PRAGMAs and a stat() on the backing file.
func (db *DB) GetStats() (*Stats, error) {
	stats := &Stats{}

	if fi, err := os.Stat(db.path); err == nil {
		stats.SizeBytes = fi.Size()
	}
	if fi, err := os.Stat(db.path + "-wal"); err == nil {
		stats.WALSizeBytes = fi.Size()
	}
	if err := db.conn.QueryRow("PRAGMA page_count").Scan(&stats.PageCount); err != nil {
		return nil, fmt.Errorf("page_count: %w", err)
	}
	if err := db.conn.QueryRow("PRAGMA page_size").Scan(&stats.PageSize); err != nil {
		return nil, fmt.Errorf("page_size: %w", err)
	}
	if err := db.conn.QueryRow("PRAGMA freelist_count").Scan(&stats.FreelistCount); err != nil {
		return nil, fmt.Errorf("freelist_count: %w", err)
	}
	return stats, nil
}
