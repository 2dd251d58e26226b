// Package config provides configuration loading and structs for tokcache.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool              `yaml:"debug"`
	Cache      CacheConfig       `yaml:"cache"`
	Tokenizer  TokenizerConfig   `yaml:"tokenizer"`
	Stats      StatsConfig       `yaml:"stats"`
	Embeddings map[string]string `yaml:"embeddings,omitempty"`
}

// CacheConfig holds the on-disk tokenization cache settings.
type CacheConfig struct {
	Dir              string `yaml:"dir"`
	Prefix           string `yaml:"prefix"`
	UseCache         *bool  `yaml:"use_cache"`
	RecomputeCorrupt bool   `yaml:"recompute_corrupt"`
	MemoryEntries    int    `yaml:"memory_entries"`
	Locking          bool   `yaml:"locking"`
	ManifestPath     string `yaml:"manifest_path,omitempty"`
	// PruneMaxAge is a Go duration such as "720h"; empty disables the age bound.
	PruneMaxAge string `yaml:"prune_max_age,omitempty"`
	// PruneMaxSize is a size such as "512MB"; empty disables the size bound.
	PruneMaxSize string `yaml:"prune_max_size,omitempty"`
}

// UseCacheOrDefault returns whether existing entries are read; defaults to true when unset.
func (c *CacheConfig) UseCacheOrDefault() bool {
	if c.UseCache != nil {
		return *c.UseCache
	}
	return true
}

// MaxAge parses PruneMaxAge. Empty yields 0.
func (c *CacheConfig) MaxAge() (time.Duration, error) {
	if c.PruneMaxAge == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.PruneMaxAge)
	if err != nil {
		return 0, fmt.Errorf("invalid prune_max_age %q: %w", c.PruneMaxAge, err)
	}
	return d, nil
}

// MaxBytes parses PruneMaxSize. Empty yields 0.
func (c *CacheConfig) MaxBytes() (int64, error) {
	if c.PruneMaxSize == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(c.PruneMaxSize)
	if err != nil {
		return 0, fmt.Errorf("invalid prune_max_size %q: %w", c.PruneMaxSize, err)
	}
	return int64(n), nil
}

// TokenizerConfig holds engine and token-extraction settings.
type TokenizerConfig struct {
	Pattern   string   `yaml:"pattern,omitempty"`
	StopWords []string `yaml:"stop_words,omitempty"`
	// Vocabulary is an embedding file whose words define Token.IsOOV.
	Vocabulary string   `yaml:"vocabulary,omitempty"`
	Lower      bool     `yaml:"lower"`
	Lemma      bool     `yaml:"lemma"`
	Ignore     []string `yaml:"ignore"`
}

// StatsConfig holds corpus statistics settings.
type StatsConfig struct {
	TopN int `yaml:"top_n"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	expandPaths(&cfg, filepath.Dir(path))
	return &cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields the defaults with
// "./" paths resolved against baseDir.
func LoadOrDefault(path, baseDir string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	cfg = &Config{}
	ApplyDefaults(cfg)
	expandPaths(cfg, baseDir)
	return cfg, nil
}

// Save writes the config to path, creating parent directories.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func expandPaths(cfg *Config, configDir string) {
	cfg.Cache.Dir = expandPath(cfg.Cache.Dir, configDir)
	if cfg.Cache.ManifestPath == "" {
		cfg.Cache.ManifestPath = filepath.Join(cfg.Cache.Dir, "manifest.db")
	} else {
		cfg.Cache.ManifestPath = expandPath(cfg.Cache.ManifestPath, configDir)
	}
	if cfg.Tokenizer.Vocabulary != "" {
		cfg.Tokenizer.Vocabulary = expandPath(cfg.Tokenizer.Vocabulary, configDir)
	}
	for name, p := range cfg.Embeddings {
		cfg.Embeddings[name] = expandPath(p, configDir)
	}
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// "~/" and other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	path = strings.TrimPrefix(path, "~/")
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
