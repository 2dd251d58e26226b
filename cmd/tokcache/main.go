// Package main is the tokcache CLI entry point.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/tokcache/internal/cli"
	"github.com/hyperjump/tokcache/internal/config"
	"github.com/hyperjump/tokcache/internal/nlp"
	"github.com/hyperjump/tokcache/internal/stats"
	"github.com/hyperjump/tokcache/internal/storage"
	"github.com/hyperjump/tokcache/internal/tokencache"
	"github.com/hyperjump/tokcache/internal/vocab"
	"github.com/hyperjump/tokcache/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/tokcache/config.yaml"

// maxSentenceBytes bounds one input line.
const maxSentenceBytes = 4 << 20

// loadConfig loads config from path. When path is the default, config.yaml in
// the current directory takes precedence, and a missing default file falls back
// to built-in defaults resolved against the current directory.
// Returns the config and the path that was actually loaded ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path != defaultConfigPath {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, "", err
		}
		return cfg, path, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get working directory: %w", err)
	}
	fallback := filepath.Join(cwd, "config.yaml")
	if _, statErr := os.Stat(fallback); statErr == nil {
		cfg, loadErr := config.Load(fallback)
		if loadErr != nil {
			return nil, "", loadErr
		}
		return cfg, fallback, nil
	}
	cfg, err := config.LoadOrDefault(path, cwd)
	if err != nil {
		return nil, "", err
	}
	if _, statErr := os.Stat(path); statErr != nil {
		return cfg, "", nil
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "tokenize":
		runTokenize(os.Args[2:])
	case "stats":
		runStats(os.Args[2:])
	case "cache":
		runCache(os.Args[2:])
	case "config":
		runConfig(os.Args[2:])
	case "version", "--version", "-v":
		fmt.Printf("tokcache version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func fail(what string, err error) {
	fmt.Fprintf(os.Stderr, "Failed to %s: %v\n", what, err)
	os.Exit(1)
}

// argsReorder moves any flags (and their values) that appear after the input
// path to the front, since flag.Parse stops at the first non-flag argument.
// A lone "-" is the stdin marker, not a flag.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 1 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// configPathFromArgs returns the value of -config/--config from args if present, else defaultPath.
func configPathFromArgs(args []string, defaultPath string) string {
	for i, a := range args {
		if (a == "-config" || a == "--config") && i+1 < len(args) {
			return args[i+1]
		}
		if v, ok := strings.CutPrefix(a, "-config="); ok {
			return v
		}
		if v, ok := strings.CutPrefix(a, "--config="); ok {
			return v
		}
	}
	return defaultPath
}

// splitList splits a comma-separated flag value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// readLines returns one sentence per non-blank line of r.
func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxSentenceBytes)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// readInput reads sentences from path, or from stdin when path is "-".
func readInput(path string) ([]string, error) {
	if path == "-" {
		return readLines(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readLines(f)
}

// Components holds the shared state of a command run.
type Components struct {
	Logger   *zap.Logger
	Manifest *storage.SQLiteManifest
	Engine   *nlp.Engine
	Cache    *tokencache.Cache
}

func (c *Components) Close() {
	if c.Manifest != nil {
		_ = c.Manifest.Close()
	}
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}
}

// initializeComponents creates the cache directory, opens the manifest and
// builds the engine and cache described by cfg.
func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	if err := os.MkdirAll(cfg.Cache.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	manifest, err := storage.NewSQLiteManifest(cfg.Cache.ManifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize manifest: %w", err)
	}

	engineOpts := []nlp.EngineOption{}
	if cfg.Tokenizer.Pattern != "" {
		engineOpts = append(engineOpts, nlp.WithPattern(cfg.Tokenizer.Pattern))
	}
	if len(cfg.Tokenizer.StopWords) > 0 {
		engineOpts = append(engineOpts, nlp.WithStopWords(cfg.Tokenizer.StopWords...))
	}
	if cfg.Tokenizer.Vocabulary != "" {
		lex, err := vocab.Load(cfg.Tokenizer.Vocabulary)
		if err != nil {
			_ = manifest.Close()
			return nil, err
		}
		logger.Info("vocabulary loaded",
			zap.String("path", cfg.Tokenizer.Vocabulary),
			zap.Int("words", lex.Len()))
		engineOpts = append(engineOpts, nlp.WithVocabulary(lex))
	}
	engine, err := nlp.NewEngine(engineOpts...)
	if err != nil {
		_ = manifest.Close()
		return nil, err
	}

	cache := tokencache.New(engine, cfg.Cache.Dir,
		tokencache.WithPrefix(cfg.Cache.Prefix),
		tokencache.WithLogger(logger),
		tokencache.WithManifest(manifest),
		tokencache.WithMemoryEntries(cfg.Cache.MemoryEntries),
		tokencache.WithRecomputeCorrupt(cfg.Cache.RecomputeCorrupt),
		tokencache.WithLocking(cfg.Cache.Locking),
	)
	return &Components{Logger: logger, Manifest: manifest, Engine: engine, Cache: cache}, nil
}

// setup loads config and logger and initializes components.
func setup(configPath string, debug bool) (*config.Config, *Components) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fail("load config", err)
	}
	debugMode := cfg.Debug || debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fail("create logger", err)
	}
	logger.Debug("config loaded",
		zap.String("config_path", resolved),
		zap.String("cache_dir", cfg.Cache.Dir),
		zap.Bool("debug", debugMode))

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		_ = logger.Sync()
		fail("initialize", err)
	}
	return cfg, components
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func parseFormat(s string) cli.OutputFormat {
	format, err := cli.ParseOutputFormat(s)
	if err != nil {
		fail("parse -output", err)
	}
	return format
}

func loadDefaultsFromArgs(args []string) *config.Config {
	cfg, _, err := loadConfig(configPathFromArgs(args, defaultConfigPath))
	if err != nil {
		fail("load config", err)
	}
	return cfg
}

func runTokenize(rawArgs []string) {
	args := argsReorder(rawArgs)
	defaults := loadDefaultsFromArgs(args)

	fs := flag.NewFlagSet("tokenize", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	noCache := fs.Bool("no-cache", !defaults.Cache.UseCacheOrDefault(), "ignore existing cache entries and re-tokenize")
	lower := fs.Bool("lower", defaults.Tokenizer.Lower, "lowercase tokens")
	lemma := fs.Bool("lemma", defaults.Tokenizer.Lemma, "emit lemmas instead of surface forms")
	ignore := fs.String("ignore", strings.Join(defaults.Tokenizer.Ignore, ","), "comma-separated attributes to drop (stop, punct, alpha, digit, like_num, oov)")
	outputFormat := fs.String("output", "text", "output format: text (one sentence per line) or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: tokcache tokenize [flags] <file|->\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(1)
	}
	format := parseFormat(*outputFormat)
	attrs, err := nlp.ParseAttrs(splitList(*ignore))
	if err != nil {
		fail("parse -ignore", err)
	}

	sents, err := readInput(fs.Arg(0))
	if err != nil {
		fail("read input", err)
	}

	_, components := setup(*configPath, *debug)
	defer components.Close()

	ctx, cancel := signalContext()
	defer cancel()

	start := time.Now()
	tokens, err := components.Cache.Tokenize(ctx, sents, tokencache.TokenOptions{
		Lower:    *lower,
		Lemma:    *lemma,
		Ignore:   attrs,
		UseCache: !*noCache,
	})
	if err != nil {
		components.Close()
		fail("tokenize", err)
	}
	components.Logger.Debug("tokenized",
		zap.Int("sentences", len(sents)),
		zap.Duration("elapsed", time.Since(start)))

	if err := cli.WriteTokens(os.Stdout, tokens, format); err != nil {
		components.Close()
		fail("write output", err)
	}
}

func runStats(rawArgs []string) {
	args := argsReorder(rawArgs)
	defaults := loadDefaultsFromArgs(args)

	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	noCache := fs.Bool("no-cache", !defaults.Cache.UseCacheOrDefault(), "ignore existing cache entries and re-tokenize")
	topN := fs.Int("top", defaults.Stats.TopN, "number of most common tokens to show")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: tokcache stats [flags] <file|->\n\n")
		fs.PrintDefaults()
		fmt.Fprintf(fs.Output(), "\nOut-of-vocabulary rates are reported for every file under \"embeddings\" in the config.\n")
	}
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(1)
	}
	format := parseFormat(*outputFormat)

	texts, err := readInput(fs.Arg(0))
	if err != nil {
		fail("read input", err)
	}

	cfg, components := setup(*configPath, *debug)
	defer components.Close()

	vocabs, err := vocab.LoadAll(cfg.Embeddings)
	if err != nil {
		components.Close()
		fail("load embeddings", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	var docs []*nlp.Doc
	if len(texts) > 0 {
		bin, err := components.Cache.LoadOrCreate(ctx, texts, !*noCache)
		if err != nil {
			components.Close()
			fail("tokenize", err)
		}
		docs = bin.Docs
	}

	summary, err := stats.Compute(texts, docs, vocabs, *topN)
	if err != nil {
		components.Close()
		fail("compute stats", err)
	}
	if err := cli.WriteSummary(os.Stdout, summary, format); err != nil {
		components.Close()
		fail("write output", err)
	}
}

func runCache(args []string) {
	if len(args) < 1 {
		printCacheUsage()
		os.Exit(1)
	}
	switch args[0] {
	case "list":
		runCacheList(args[1:])
	case "stats":
		runCacheStats(args[1:])
	case "prune":
		runCachePrune(args[1:])
	case "help", "--help", "-h":
		printCacheUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown cache command: %s\n", args[0])
		printCacheUsage()
		os.Exit(1)
	}
}

func printCacheUsage() {
	fmt.Println(`Usage: tokcache cache <list|stats|prune> [flags]

  list    List cache entries with size, last use and hits
  stats   Show entry count and disk usage
  prune   Remove entries by age (-max-age) and total size (-max-size)`)
}

func runCacheList(args []string) {
	fs := flag.NewFlagSet("cache list", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(args)
	format := parseFormat(*outputFormat)

	cfg, components := setup(*configPath, false)
	defer components.Close()

	entries, err := storage.ScanEntries(context.Background(), cfg.Cache.Dir, cfg.Cache.Prefix, components.Manifest)
	if err != nil {
		components.Close()
		fail("list cache", err)
	}
	if err := cli.WriteEntries(os.Stdout, entries, format); err != nil {
		components.Close()
		fail("write output", err)
	}
}

func runCacheStats(args []string) {
	fs := flag.NewFlagSet("cache stats", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(args)
	format := parseFormat(*outputFormat)

	cfg, components := setup(*configPath, false)
	defer components.Close()

	ctx := context.Background()
	entries, err := storage.ScanEntries(ctx, cfg.Cache.Dir, cfg.Cache.Prefix, components.Manifest)
	if err != nil {
		components.Close()
		fail("scan cache", err)
	}
	rows, err := components.Manifest.Count(ctx)
	if err != nil {
		components.Close()
		fail("count manifest rows", err)
	}
	usage, err := storage.DiskUsageBytes(cfg.Cache.Dir)
	if err != nil {
		components.Close()
		fail("measure disk usage", err)
	}
	s := cli.CacheStats{Dir: cfg.Cache.Dir, Entries: len(entries), Bytes: usage, Manifest: rows}
	if err := cli.WriteCacheStats(os.Stdout, s, format); err != nil {
		components.Close()
		fail("write output", err)
	}
}

func runCachePrune(rawArgs []string) {
	args := argsReorder(rawArgs)
	defaults := loadDefaultsFromArgs(args)

	fs := flag.NewFlagSet("cache prune", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	maxAge := fs.String("max-age", defaults.Cache.PruneMaxAge, "remove entries unused for longer than this (e.g. 720h)")
	maxSize := fs.String("max-size", defaults.Cache.PruneMaxSize, "evict least recently used entries until the cache fits (e.g. 512MB)")
	dryRun := fs.Bool("dry-run", false, "only report what would be removed")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(args)
	format := parseFormat(*outputFormat)

	bounds := config.CacheConfig{PruneMaxAge: *maxAge, PruneMaxSize: *maxSize}
	age, err := bounds.MaxAge()
	if err != nil {
		fail("parse -max-age", err)
	}
	size, err := bounds.MaxBytes()
	if err != nil {
		fail("parse -max-size", err)
	}
	if age == 0 && size == 0 {
		fail("prune", errors.New("set -max-age or -max-size (or prune_max_age / prune_max_size in config)"))
	}

	cfg, components := setup(*configPath, false)
	defer components.Close()

	ctx, cancel := signalContext()
	defer cancel()

	pruned, err := storage.Prune(ctx, cfg.Cache.Dir, cfg.Cache.Prefix, components.Manifest, storage.PruneOptions{
		MaxAge:   age,
		MaxBytes: size,
		DryRun:   *dryRun,
	})
	if err != nil {
		components.Close()
		fail("prune cache", err)
	}
	components.Logger.Info("cache pruned", zap.Int("entries", len(pruned)), zap.Bool("dry_run", *dryRun))
	if err := cli.WritePruneReport(os.Stdout, pruned, *dryRun, format); err != nil {
		components.Close()
		fail("write output", err)
	}
}

func runConfig(args []string) {
	if len(args) < 1 || args[0] != "init" {
		fmt.Println("Usage: tokcache config init [-force] [path]")
		os.Exit(1)
	}
	fs := flag.NewFlagSet("config init", flag.ExitOnError)
	force := fs.Bool("force", false, "overwrite an existing file")
	_ = fs.Parse(argsReorder(args[1:]))
	path := "config.yaml"
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}
	if err := initConfig(path, *force); err != nil {
		fail("write config", err)
	}
	fmt.Printf("Wrote %s\n", path)
}

// initConfig writes a config file holding the defaults.
func initConfig(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use -force to overwrite)", path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return config.Save(path, cfg)
}

func printUsage() {
	fmt.Println(`tokcache - Cached sentence tokenization and corpus statistics

Usage:
  tokcache tokenize [flags] <file|->   Tokenize one sentence per line
  tokcache stats [flags] <file|->      Print corpus statistics
  tokcache cache <list|stats|prune>    Inspect and bound the on-disk cache
  tokcache config init [path]          Write a config file with defaults
  tokcache version                     Show version
  tokcache help                        Show this help

Tokenize Flags:
  --config string    Config file path (default: /usr/local/etc/tokcache/config.yaml, or ./config.yaml if present)
  --no-cache         Re-tokenize even when a cache entry exists (the entry is rewritten)
  --lower            Lowercase tokens
  --lemma            Emit lemmas instead of surface forms
  --ignore string    Comma-separated attributes to drop: stop, punct, alpha, digit, like_num, oov
  --output string    Output format: text or json (default: text)

Stats Flags:
  --config string    Config file path
  --no-cache         Re-tokenize even when a cache entry exists
  --top int          Number of most common tokens (default from config, or 5)
  --output string    Output format: text or json (default: text)

Cache Prune Flags:
  --max-age string   Remove entries unused for longer than this duration
  --max-size string  Keep the cache under this size, evicting least recently used entries
  --dry-run          Only report what would be removed

Examples:
  tokcache tokenize sentences.txt
  cat sentences.txt | tokcache tokenize --lower --ignore stop,punct -
  tokcache tokenize --lemma --output json sentences.txt
  tokcache stats corpus.txt
  tokcache cache list
  tokcache cache prune --max-age 720h --max-size 512MB --dry-run`)
}
