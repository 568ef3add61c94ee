// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/verte-zerg/typebook/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Store wraps SQLite access for books, progress and typing history.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Writes arrive from the engine writer and the HTTP server at once.
	db.SetMaxOpenConns(1)
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS books (
			id TEXT PRIMARY KEY,
			doc TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS chapters (
			book_id TEXT NOT NULL,
			key TEXT NOT NULL,
			doc TEXT NOT NULL,
			PRIMARY KEY (book_id, key)
		);`,
		`CREATE TABLE IF NOT EXISTS covers (
			book_id TEXT PRIMARY KEY,
			href TEXT NOT NULL,
			media_type TEXT NOT NULL,
			data BLOB NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS progress (
			user_id TEXT NOT NULL,
			book_id TEXT NOT NULL,
			doc TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (user_id, book_id)
		);`,
		`CREATE TABLE IF NOT EXISTS activity (
			user_id TEXT PRIMARY KEY,
			doc TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS sprints (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			book_id TEXT NOT NULL,
			chapter INTEGER NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			chars INTEGER NOT NULL,
			mistakes INTEGER NOT NULL,
			active_ms INTEGER NOT NULL,
			completed INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS sprint_char_stats (
			sprint_id TEXT NOT NULL,
			char TEXT NOT NULL,
			correct INTEGER NOT NULL,
			incorrect INTEGER NOT NULL,
			PRIMARY KEY (sprint_id, char)
		);`,
		`CREATE TABLE IF NOT EXISTS textgen_usage (
			user_id TEXT NOT NULL,
			day TEXT NOT NULL,
			count INTEGER NOT NULL,
			PRIMARY KEY (user_id, day)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sprints_ended_at ON sprints(ended_at);`,
		`CREATE INDEX IF NOT EXISTS idx_sprints_user ON sprints(user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_sprint_char_stats_char ON sprint_char_stats(char);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// getDoc decodes the JSON document selected by query into dst.
func getDoc(ctx context.Context, q querier, dst any, what, query string, args ...any) error {
	var raw string
	err := q.QueryRowContext(ctx, query, args...).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, model.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", what, err)
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("failed to decode %s: %w", what, err)
	}
	return nil
}

func rollback(tx *sql.Tx) {
	if rerr := tx.Rollback(); rerr != nil {
		// Best-effort rollback.
		_ = rerr
	}
}

func closeRows(rows *sql.Rows) {
	if cerr := rows.Close(); cerr != nil {
		// Best-effort rows close.
		_ = cerr
	}
}
