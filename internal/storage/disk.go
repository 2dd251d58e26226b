package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// EntryExt is the file extension of serialized cache entries.
const EntryExt = ".bin"

// LockExt is appended to an entry path to name its writer lock file.
const LockExt = ".lock"

// DiskUsageBytes returns the total size in bytes of the given paths.
// Each path may be a file or a directory (recursively summed).
// Missing paths are skipped; errors during the walk are returned.
func DiskUsageBytes(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		err := filepath.WalkDir(p, func(_ string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			total += info.Size()
			return nil
		})
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return 0, err
		}
	}
	return total, nil
}

// ScanEntries lists the cache files <dir>/<prefix>*.bin, oldest use first.
// When m is non-nil its rows fill in sentence/token counts, hits and last use;
// otherwise the file modification time stands in for last use.
func ScanEntries(ctx context.Context, dir, prefix string, m Manifest) ([]*CacheEntry, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache directory: %w", err)
	}

	var entries []*CacheEntry
	for _, f := range files {
		name := f.Name()
		if f.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, EntryExt) {
			continue
		}
		info, err := f.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		e := &CacheEntry{
			Hash:       strings.TrimSuffix(strings.TrimPrefix(name, prefix), EntryExt),
			Path:       filepath.Join(dir, name),
			Bytes:      info.Size(),
			CreatedAt:  info.ModTime(),
			LastUsedAt: info.ModTime(),
		}
		if m != nil {
			rec, err := m.Get(ctx, e.Hash)
			switch {
			case err == nil:
				e.Sentences = rec.Sentences
				e.Tokens = rec.Tokens
				e.FormatVersion = rec.FormatVersion
				e.Hits = rec.Hits
				e.CreatedAt = rec.CreatedAt
				e.LastUsedAt = rec.LastUsedAt
			case !errors.Is(err, ErrEntryNotFound):
				return nil, err
			}
		}
		entries = append(entries, e)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].LastUsedAt.Before(entries[j].LastUsedAt)
	})
	return entries, nil
}
