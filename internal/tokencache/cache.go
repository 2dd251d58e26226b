// Package tokencache tokenizes batches of sentences and keeps the serialized
// result on disk, keyed by a content hash of the batch.
package tokencache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/hyperjump/tokcache/internal/nlp"
	"github.com/hyperjump/tokcache/internal/storage"
)

// DefaultPrefix is prepended to the hex digest in cache file names.
const DefaultPrefix = "doc_"

const lockRetryDelay = 50 * time.Millisecond

// Tokenizer turns raw strings into analysed documents. *nlp.Engine implements it.
// Fingerprint changes whenever the same input would be annotated differently.
type Tokenizer interface {
	Tokenize(sents []string) []*nlp.Doc
	Fingerprint() string
}

// Cache loads tokenized batches from disk or computes and stores them.
// Entries are never updated in place; a recompute overwrites the whole file.
type Cache struct {
	tokenizer        Tokenizer
	dir              string
	prefix           string
	logger           *zap.Logger
	manifest         storage.Manifest
	memory           *memoryCache
	recomputeCorrupt bool
	locking          bool
}

// Option configures a Cache.
type Option func(*Cache)

// WithPrefix sets the file name prefix. Empty keeps DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(c *Cache) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}

// WithLogger sets a logger for hit/miss events.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithManifest records writes and hits in m.
func WithManifest(m storage.Manifest) Option {
	return func(c *Cache) { c.manifest = m }
}

// WithMemoryEntries keeps up to n decoded batches in memory in front of the disk.
// Each hit gets its own Docs slice, but the Doc and Token values are shared
// between callers and must be treated as read-only.
func WithMemoryEntries(n int) Option {
	return func(c *Cache) { c.memory = newMemoryCache(n) }
}

// WithRecomputeCorrupt makes a corrupt or incompatible entry a cache miss
// instead of an error.
func WithRecomputeCorrupt(enabled bool) Option {
	return func(c *Cache) { c.recomputeCorrupt = enabled }
}

// WithLocking serializes writers of the same entry through a lock file next to it.
func WithLocking(enabled bool) Option {
	return func(c *Cache) { c.locking = enabled }
}

// New returns a Cache storing entries in dir. The directory must already exist.
func New(tokenizer Tokenizer, dir string, opts ...Option) *Cache {
	c := &Cache{
		tokenizer: tokenizer,
		dir:       dir,
		prefix:    DefaultPrefix,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Prefix returns the file name prefix.
func (c *Cache) Prefix() string {
	return c.prefix
}

// HashSents returns the hex MD5 digest of the UTF-8 bytes of sents, concatenated in order.
// It is a cache key only.
func HashSents(sents []string) string {
	h := md5.New()
	for _, s := range sents {
		_, _ = h.Write([]byte(s))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Path returns the entry file for hash: <dir>/<prefix><hash>.bin.
func (c *Cache) Path(hash string) string {
	return filepath.Join(c.dir, c.prefix+hash+storage.EntryExt)
}

// LoadOrCreate returns the tokenized batch for sents. With useCache set, an
// existing entry is decoded and returned; otherwise, or when no entry exists,
// the batch is tokenized and written to disk, replacing any previous file.
func (c *Cache) LoadOrCreate(ctx context.Context, sents []string, useCache bool) (*nlp.DocBin, error) {
	hash := HashSents(sents)
	path := c.Path(hash)

	if useCache {
		bin, ok, err := c.lookup(ctx, sents, hash, path)
		if err != nil {
			return nil, err
		}
		if ok {
			return bin, nil
		}
	}

	if c.locking {
		lock := flock.New(path + storage.LockExt)
		locked, err := lock.TryLockContext(ctx, lockRetryDelay)
		if err != nil {
			return nil, fmt.Errorf("failed to lock cache entry: %w", err)
		}
		if locked {
			defer func() { _ = lock.Unlock() }()
		}
		// Another writer may have finished while we waited.
		if useCache {
			bin, ok, err := c.lookup(ctx, sents, hash, path)
			if err != nil {
				return nil, err
			}
			if ok {
				return bin, nil
			}
		}
	}

	return c.create(ctx, sents, hash, path)
}

// lookup reports ok=false for a cache miss. An entry written for another
// batch with the same hash is a miss. Corrupt entries, and entries from an
// engine with a different fingerprint, are misses only when recomputeCorrupt is set.
func (c *Cache) lookup(ctx context.Context, sents []string, hash, path string) (*nlp.DocBin, bool, error) {
	if bin, ok := c.memory.Get(hash); ok {
		if bin.Engine == c.tokenizer.Fingerprint() && matches(bin, sents) {
			c.touch(ctx, hash)
			return bin, true, nil
		}
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}

	bin, err := nlp.DecodeDocBin(data)
	if err == nil {
		err = bin.CheckEngine(c.tokenizer.Fingerprint())
	}
	if err != nil {
		if c.recomputeCorrupt && (errors.Is(err, nlp.ErrCorruptDocBin) || errors.Is(err, nlp.ErrIncompatibleDocBin)) {
			c.logger.Warn("discarding unreadable cache entry",
				zap.String("path", path),
				zap.Error(err),
			)
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to decode cache entry %s: %w", path, err)
	}

	if !matches(bin, sents) {
		c.logger.Warn("cache entry holds a different batch with the same hash",
			zap.String("path", path),
			zap.Int("sentences", len(sents)),
			zap.Int("docs", bin.Len()),
		)
		return nil, false, nil
	}

	c.logger.Info("loaded tokenized documents from disk",
		zap.String("hash", hash),
		zap.Int("docs", bin.Len()),
	)
	c.memory.Set(hash, bin)
	c.touch(ctx, hash)
	return bin, true, nil
}

// matches reports whether bin holds one doc per sentence of sents, in order.
// The content hash alone cannot tell ["a ", "b"] from ["a", " b"].
func matches(bin *nlp.DocBin, sents []string) bool {
	if bin.Len() != len(sents) {
		return false
	}
	for i, d := range bin.Docs {
		if d == nil || d.Text != sents[i] {
			return false
		}
	}
	return true
}

func (c *Cache) create(ctx context.Context, sents []string, hash, path string) (*nlp.DocBin, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.logger.Info("tokenizing documents",
		zap.String("hash", hash),
		zap.Int("sentences", len(sents)),
	)
	bin := nlp.NewDocBin(c.tokenizer.Tokenize(sents)...)
	bin.Engine = c.tokenizer.Fingerprint()
	data, err := bin.Encode()
	if err != nil {
		return nil, err
	}
	if err := writeFileAtomic(path, data); err != nil {
		return nil, fmt.Errorf("failed to write cache entry: %w", err)
	}
	c.logger.Info("saved tokenized documents to disk",
		zap.String("path", path),
		zap.Int("bytes", len(data)),
	)

	if c.manifest != nil {
		entry := &storage.CacheEntry{
			Hash:          hash,
			Path:          path,
			Sentences:     len(sents),
			Tokens:        bin.TokenCount(),
			Bytes:         int64(len(data)),
			FormatVersion: int(nlp.FormatVersion),
		}
		if err := c.manifest.Record(ctx, entry); err != nil {
			c.logger.Warn("manifest record failed", zap.String("hash", hash), zap.Error(err))
		}
	}
	c.memory.Set(hash, bin)
	return bin, nil
}

func (c *Cache) touch(ctx context.Context, hash string) {
	if c.manifest == nil {
		return
	}
	if err := c.manifest.Touch(ctx, hash); err != nil {
		c.logger.Warn("manifest touch failed", zap.String("hash", hash), zap.Error(err))
	}
}

// writeFileAtomic writes data to a temp file in the destination directory
// and renames it over path.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
