package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
cache:
  dir: "./cache"
  prefix: "spacy_doc"
  memory_entries: 16
  locking: true
tokenizer:
  lower: true
  ignore: [stop, punct]
stats:
  top_n: 10
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	dir := filepath.Dir(path)
	if cfg.Cache.Dir != filepath.Join(dir, "cache") {
		t.Errorf("cache.dir = %q", cfg.Cache.Dir)
	}
	if cfg.Cache.Prefix != "spacy_doc" || cfg.Cache.MemoryEntries != 16 || !cfg.Cache.Locking {
		t.Errorf("unexpected cache config: %+v", cfg.Cache)
	}
	if !cfg.Tokenizer.Lower || cfg.Tokenizer.Lemma {
		t.Errorf("unexpected tokenizer config: %+v", cfg.Tokenizer)
	}
	if len(cfg.Tokenizer.Ignore) != 2 || cfg.Tokenizer.Ignore[0] != "stop" {
		t.Errorf("ignore = %v", cfg.Tokenizer.Ignore)
	}
	if cfg.Stats.TopN != 10 {
		t.Errorf("top_n = %d, want 10", cfg.Stats.TopN)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_debugTrue(t *testing.T) {
	cfg, err := Load(writeConfig(t, "debug: true\n"))
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
}

func TestLoad_invalidYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "cache: [unclosed\n")); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoad_manifestFollowsCacheDir(t *testing.T) {
	path := writeConfig(t, "cache:\n  dir: \"./entries\"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(filepath.Dir(path), "entries", "manifest.db")
	if cfg.Cache.ManifestPath != want {
		t.Errorf("manifest_path = %q, want %q", cfg.Cache.ManifestPath, want)
	}
}

func TestLoad_expandPathAbsoluteUnchanged(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "vectors.txt")
	path := writeConfig(t, "tokenizer:\n  vocabulary: \""+abs+"\"\nembeddings:\n  glove: \""+abs+"\"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Tokenizer.Vocabulary != abs {
		t.Errorf("vocabulary = %q, want %q", cfg.Tokenizer.Vocabulary, abs)
	}
	if cfg.Embeddings["glove"] != abs {
		t.Errorf("embeddings.glove = %q, want %q", cfg.Embeddings["glove"], abs)
	}
}

func TestLoad_expandPathHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	cfg, err := Load(writeConfig(t, "cache:\n  dir: \"~/.tokcache\"\n"))
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(home, ".tokcache"); cfg.Cache.Dir != want {
		t.Errorf("cache.dir = %q, want %q", cfg.Cache.Dir, want)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{Cache: CacheConfig{MemoryEntries: -3}}
	ApplyDefaults(cfg)
	if cfg.Cache.Dir != DefaultCacheDir {
		t.Errorf("cache.dir = %q, want %q", cfg.Cache.Dir, DefaultCacheDir)
	}
	if cfg.Cache.Prefix != "doc_" {
		t.Errorf("prefix = %q, want doc_", cfg.Cache.Prefix)
	}
	if !cfg.Cache.UseCacheOrDefault() {
		t.Error("use_cache should default to true")
	}
	if cfg.Cache.MemoryEntries != 0 {
		t.Errorf("memory_entries = %d, want 0", cfg.Cache.MemoryEntries)
	}
	if cfg.Stats.TopN != 5 {
		t.Errorf("top_n = %d, want 5", cfg.Stats.TopN)
	}
	if cfg.Tokenizer.Ignore == nil {
		t.Error("ignore should be an empty list, not nil")
	}
}

func TestApplyDefaults_keepsExplicitUseCache(t *testing.T) {
	f := false
	cfg := &Config{Cache: CacheConfig{UseCache: &f}}
	ApplyDefaults(cfg)
	if cfg.Cache.UseCacheOrDefault() {
		t.Error("explicit use_cache: false must survive defaults")
	}
}

func TestCacheConfig_pruneBounds(t *testing.T) {
	c := CacheConfig{PruneMaxAge: "720h", PruneMaxSize: "1MB"}
	age, err := c.MaxAge()
	if err != nil || age != 720*time.Hour {
		t.Errorf("MaxAge() = %v, %v", age, err)
	}
	size, err := c.MaxBytes()
	if err != nil || size != 1000*1000 {
		t.Errorf("MaxBytes() = %d, %v", size, err)
	}

	var empty CacheConfig
	if age, err := empty.MaxAge(); age != 0 || err != nil {
		t.Errorf("empty MaxAge() = %v, %v", age, err)
	}
	if size, err := empty.MaxBytes(); size != 0 || err != nil {
		t.Errorf("empty MaxBytes() = %d, %v", size, err)
	}

	bad := CacheConfig{PruneMaxAge: "a month", PruneMaxSize: "lots"}
	if _, err := bad.MaxAge(); err == nil {
		t.Error("expected error for invalid prune_max_age")
	}
	if _, err := bad.MaxBytes(); err == nil {
		t.Error("expected error for invalid prune_max_size")
	}
}

func TestSave_roundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")
	cfg := &Config{Cache: CacheConfig{Dir: "./cache", Prefix: "doc_"}, Stats: StatsConfig{TopN: 7}}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Stats.TopN != 7 {
		t.Errorf("top_n = %d, want 7", got.Stats.TopN)
	}
	if got.Cache.Dir != filepath.Join(dir, "nested", "cache") {
		t.Errorf("cache.dir = %q", got.Cache.Dir)
	}
}

func TestLoadOrDefault_missingFile(t *testing.T) {
	base := t.TempDir()
	cfg, err := LoadOrDefault(filepath.Join(base, "absent.yaml"), base)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(base, "tmp"); cfg.Cache.Dir != want {
		t.Errorf("cache.dir = %q, want %q", cfg.Cache.Dir, want)
	}
	if want := filepath.Join(base, "tmp", "manifest.db"); cfg.Cache.ManifestPath != want {
		t.Errorf("manifest_path = %q, want %q", cfg.Cache.ManifestPath, want)
	}
}

func TestLoadOrDefault_parseErrorNotMasked(t *testing.T) {
	path := writeConfig(t, "cache: [unclosed\n")
	if _, err := LoadOrDefault(path, filepath.Dir(path)); err == nil {
		t.Error("expected parse error")
	}
}
