// Package storage defines the bookkeeping interface for tokenization cache entries.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrEntryNotFound is returned when the manifest has no row for a hash.
var ErrEntryNotFound = errors.New("cache entry not found")

// CacheEntry describes one serialized batch on disk.
type CacheEntry struct {
	Hash          string    `json:"hash" db:"hash"`
	Path          string    `json:"path" db:"path"`
	Sentences     int       `json:"sentences" db:"sentences"`
	Tokens        int       `json:"tokens" db:"tokens"`
	Bytes         int64     `json:"bytes" db:"bytes"`
	FormatVersion int       `json:"format_version" db:"format_version"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	LastUsedAt    time.Time `json:"last_used_at" db:"last_used_at"`
	Hits          int64     `json:"hits" db:"hits"`
}

// Manifest records which cache entries exist and when they were last used.
type Manifest interface {
	Record(ctx context.Context, entry *CacheEntry) error
	Touch(ctx context.Context, hash string) error
	Get(ctx context.Context, hash string) (*CacheEntry, error)
	List(ctx context.Context) ([]*CacheEntry, error)
	Delete(ctx context.Context, hash string) error
	Count(ctx context.Context) (int64, error)

	Close() error
}
