package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"
)

// PruneReason says why an entry was evicted.
type PruneReason string

const (
	// PruneExpired marks entries unused for longer than MaxAge.
	PruneExpired PruneReason = "expired"
	// PruneOverBudget marks entries evicted to bring the cache under MaxBytes.
	PruneOverBudget PruneReason = "over_budget"
)

// PruneOptions bounds the cache directory. Zero values disable a bound.
type PruneOptions struct {
	MaxAge   time.Duration
	MaxBytes int64
	DryRun   bool
	// Now defaults to time.Now.
	Now func() time.Time
}

// PrunedEntry is an entry that Prune removed (or would remove in dry-run mode).
type PrunedEntry struct {
	*CacheEntry
	Reason PruneReason `json:"reason"`
}

// Prune evicts cache entries under dir: first everything unused for longer
// than MaxAge, then least recently used entries until the remaining total is
// at most MaxBytes. Manifest rows and lock files of removed entries are
// deleted as well. On error the returned slice holds the entries already removed.
func Prune(ctx context.Context, dir, prefix string, m Manifest, opts PruneOptions) ([]PrunedEntry, error) {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	entries, err := ScanEntries(ctx, dir, prefix, m)
	if err != nil {
		return nil, err
	}

	var pruned []PrunedEntry
	var kept []*CacheEntry
	var total int64
	cutoff := now().Add(-opts.MaxAge)
	for _, e := range entries {
		if opts.MaxAge > 0 && e.LastUsedAt.Before(cutoff) {
			pruned = append(pruned, PrunedEntry{CacheEntry: e, Reason: PruneExpired})
			continue
		}
		kept = append(kept, e)
		total += e.Bytes
	}

	// entries are ordered oldest use first
	for _, e := range kept {
		if opts.MaxBytes <= 0 || total <= opts.MaxBytes {
			break
		}
		pruned = append(pruned, PrunedEntry{CacheEntry: e, Reason: PruneOverBudget})
		total -= e.Bytes
	}

	if opts.DryRun {
		return pruned, nil
	}
	for i, p := range pruned {
		if err := ctx.Err(); err != nil {
			return pruned[:i], err
		}
		if err := removeIfExists(p.Path); err != nil {
			return pruned[:i], fmt.Errorf("failed to remove %s: %w", p.Path, err)
		}
		// The entry is gone from here on; later failures still report it.
		if err := removeIfExists(p.Path + LockExt); err != nil {
			return pruned[:i+1], fmt.Errorf("failed to remove lock file of %s: %w", p.Path, err)
		}
		if m != nil {
			if err := m.Delete(ctx, p.Hash); err != nil {
				return pruned[:i+1], fmt.Errorf("failed to delete manifest row %s: %w", p.Hash, err)
			}
		}
	}
	return pruned, nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
