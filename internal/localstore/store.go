// Package localstore provides the durable device-local event cache.
//
// The store is SQLite-backed and survives process restarts. Every
// mutating call commits its transaction before returning, so a crash
// immediately after any call loses at most that call's own effect.
//
// Schema versions (PRAGMA user_version):
//
//	0 - fresh database, no schema yet
//	1 - legacy schema with a single nullable `time` column
//	2 - current schema with start_time/end_time
//
// A v1 database is migrated in place on open: the old time value is
// copied to both start_time and end_time (degenerate mapping).
package localstore

import (
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

const currentSchemaVersion = 2

// Store is the device-local event cache.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the timestamp source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Open creates or opens the local database at the given path, applying
// pragmas and schema migrations. Idempotent: safe to call on an existing
// database of any supported schema version.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, &PersistenceError{Op: "open", Err: err}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &PersistenceError{Op: "open", Err: err}
	}

	// SQLite supports one writer at a time; a single connection
	// serializes mutations at the pool level so interleaved snapshot
	// writes cannot lose updates.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, &PersistenceError{Op: "open", Err: err}
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, &PersistenceError{Op: "migrate", Err: err}
	}

	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

// migrate brings the database to the current schema version. Runs the
// legacy-column migration before the schema script so a v1 database is
// upgraded rather than shadowed.
func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 2 {
		if err := migrateLegacyTimeColumn(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// migrateLegacyTimeColumn upgrades a v1 events table (single `time`
// column) to the start/end pair, preserving existing rows. No-op for
// fresh databases and already-migrated ones.
func migrateLegacyTimeColumn(db *sql.DB) error {
	cols, err := tableColumns(db, "events")
	if err != nil {
		return err
	}
	if cols == nil {
		return nil // fresh database, schema script will create the table
	}
	if !cols["time"] || cols["start_time"] {
		return nil
	}

	stmts := []string{
		"ALTER TABLE events ADD COLUMN start_time TEXT",
		"ALTER TABLE events ADD COLUMN end_time TEXT",
		"UPDATE events SET start_time = time, end_time = time WHERE time IS NOT NULL",
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate legacy time column: %w", err)
		}
	}
	return nil
}

// tableColumns returns the column set of a table, or nil if the table
// does not exist.
func tableColumns(db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("table_info(%s): %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notnull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan table_info(%s): %w", table, err)
		}
		cols[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table_info(%s): %w", table, err)
	}
	if len(cols) == 0 {
		return nil, nil
	}
	return cols, nil
}
