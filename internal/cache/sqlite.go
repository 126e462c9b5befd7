// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite persists entries in a single-file database.
type SQLite struct {
	db     *sql.DB
	maxAge time.Duration
	now    func() time.Time
}

// OpenSQLite opens or creates the cache database at path and creates the
// schema if it does not exist.
func OpenSQLite(path string, maxAge time.Duration) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	s := &SQLite{db: db, maxAge: maxAge, now: time.Now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}
	return s, nil
}

func (s *SQLite) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS lookups (
			key TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			record TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_lookups_source ON lookups(source)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, key string) (Entry, bool, error) {
	var record, created string
	err := s.db.QueryRowContext(ctx,
		`SELECT record, created_at FROM lookups WHERE key = ?`, key,
	).Scan(&record, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("reading cache entry %s: %w", key, err)
	}

	at, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return Entry{}, false, fmt.Errorf("parsing cache timestamp for %s: %w", key, err)
	}
	if expired(at, s.maxAge, s.now()) {
		return Entry{}, false, nil
	}

	e, err := decode([]byte(record))
	if err != nil {
		return Entry{}, false, fmt.Errorf("cache entry %s: %w", key, err)
	}
	return e, true, nil
}

func (s *SQLite) Put(ctx context.Context, key string, e Entry) error {
	data, err := encode(e)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO lookups (key, source, record, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			source = excluded.source,
			record = excluded.record,
			created_at = excluded.created_at`,
		key, string(e.Record.Provider()), string(data), s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("writing cache entry %s: %w", key, err)
	}
	return nil
}

// Close releases the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}
