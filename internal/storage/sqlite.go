package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteManifest implements Manifest using SQLite.
type SQLiteManifest struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteManifest opens or creates a manifest database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteManifest(dbPath string) (*SQLiteManifest, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create manifest directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteManifest{db: db, now: time.Now}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS cache_entries (
		hash TEXT PRIMARY KEY,
		path TEXT NOT NULL,
		sentences INTEGER NOT NULL,
		tokens INTEGER NOT NULL,
		bytes INTEGER NOT NULL,
		format_version INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		last_used_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		hits INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_cache_entries_last_used ON cache_entries(last_used_at);
	`
	_, err := db.Exec(schema)
	return err
}

// Record inserts or replaces the entry for entry.Hash. The hit counter of an
// existing row survives an overwrite.
func (s *SQLiteManifest) Record(ctx context.Context, entry *CacheEntry) error {
	now := s.now().UTC()
	entry.CreatedAt = now
	entry.LastUsedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cache_entries (hash, path, sentences, tokens, bytes, format_version, created_at, last_used_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(hash) DO UPDATE SET
			path = excluded.path,
			sentences = excluded.sentences,
			tokens = excluded.tokens,
			bytes = excluded.bytes,
			format_version = excluded.format_version,
			created_at = excluded.created_at,
			last_used_at = excluded.last_used_at`,
		entry.Hash, entry.Path, entry.Sentences, entry.Tokens, entry.Bytes, entry.FormatVersion,
		entry.CreatedAt, entry.LastUsedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record cache entry: %w", err)
	}
	return nil
}

// Touch bumps the hit counter and last-used time. Unknown hashes are ignored.
func (s *SQLiteManifest) Touch(ctx context.Context, hash string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE cache_entries SET hits = hits + 1, last_used_at = ? WHERE hash = ?`,
		s.now().UTC(), hash,
	)
	return err
}

// Get returns the entry for hash.
func (s *SQLiteManifest) Get(ctx context.Context, hash string) (*CacheEntry, error) {
	var e CacheEntry
	err := s.db.QueryRowContext(ctx,
		`SELECT hash, path, sentences, tokens, bytes, format_version, created_at, last_used_at, hits
		 FROM cache_entries WHERE hash = ?`, hash,
	).Scan(&e.Hash, &e.Path, &e.Sentences, &e.Tokens, &e.Bytes, &e.FormatVersion, &e.CreatedAt, &e.LastUsedAt, &e.Hits)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, hash)
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// List returns all entries, most recently used first.
func (s *SQLiteManifest) List(ctx context.Context) ([]*CacheEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT hash, path, sentences, tokens, bytes, format_version, created_at, last_used_at, hits
		 FROM cache_entries ORDER BY last_used_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*CacheEntry
	for rows.Next() {
		var e CacheEntry
		if err := rows.Scan(&e.Hash, &e.Path, &e.Sentences, &e.Tokens, &e.Bytes, &e.FormatVersion, &e.CreatedAt, &e.LastUsedAt, &e.Hits); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// Delete removes the row for hash.
func (s *SQLiteManifest) Delete(ctx context.Context, hash string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE hash = ?`, hash)
	return err
}

// Count returns the number of recorded entries.
func (s *SQLiteManifest) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_entries`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteManifest) Close() error {
	return s.db.Close()
}
