package main

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/tokcache/internal/config"
	"github.com/hyperjump/tokcache/internal/tokencache"
)

func TestArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after input are moved first",
			args:     []string{"sentences.txt", "-lower", "-ignore", "stop"},
			expected: []string{"-lower", "-ignore", "stop", "sentences.txt"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-lemma", "sentences.txt"},
			expected: []string{"-lemma", "sentences.txt"},
		},
		{
			name:     "stdin marker is not a flag",
			args:     []string{"-", "-lower"},
			expected: []string{"-lower", "-"},
		},
		{
			name:     "stdin marker alone returns unchanged",
			args:     []string{"-"},
			expected: []string{"-"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := argsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("argsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestConfigPathFromArgs(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		defaultPath string
		want        string
	}{
		{"no config flag", []string{"-lower", "in.txt"}, "/default.yaml", "/default.yaml"},
		{"-config present", []string{"-config", "/custom.yaml", "in.txt"}, "/default.yaml", "/custom.yaml"},
		{"--config present", []string{"--config", "/other.yaml"}, "/default.yaml", "/other.yaml"},
		{"-config= form", []string{"-config=/eq.yaml", "in.txt"}, "/default.yaml", "/eq.yaml"},
		{"config at end", []string{"in.txt", "-config", "/end.yaml"}, "/default.yaml", "/end.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := configPathFromArgs(tt.args, tt.defaultPath)
			if got != tt.want {
				t.Errorf("configPathFromArgs() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" stop, punct,,like_num ")
	want := []string{"stop", "punct", "like_num"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("splitList() = %v, want %v", got, want)
	}
	if got := splitList(""); got != nil {
		t.Errorf("splitList(\"\") = %v, want nil", got)
	}
}

func TestReadLines(t *testing.T) {
	in := "The cat sat.\r\n\n   \nDogs run fast.\nlast line without newline"
	got, err := readLines(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"The cat sat.", "Dogs run fast.", "last line without newline"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("readLines() = %q, want %q", got, want)
	}
}

func TestInitializeComponents(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Cache.Dir = filepath.Join(dir, "cache")
	cfg.Cache.ManifestPath = filepath.Join(dir, "cache", "manifest.db")

	vocabPath := filepath.Join(dir, "vectors.txt")
	if err := os.WriteFile(vocabPath, []byte("cat 0.1 0.2\nsat 0.3 0.4\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg.Tokenizer.Vocabulary = vocabPath

	components, err := initializeComponents(cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer components.Close()

	if _, err := os.Stat(cfg.Cache.Dir); err != nil {
		t.Fatalf("cache directory not created: %v", err)
	}
	sents := []string{"The cat sat."}
	bin, err := components.Cache.LoadOrCreate(t.Context(), sents, true)
	if err != nil {
		t.Fatal(err)
	}
	var oov []string
	for _, tok := range bin.Docs[0].Tokens {
		if tok.IsOOV {
			oov = append(oov, tok.Text)
		}
	}
	// "The" and "." are missing from the vocabulary file.
	if !reflect.DeepEqual(oov, []string{"The", "."}) {
		t.Errorf("oov = %v", oov)
	}
	if _, err := os.Stat(components.Cache.Path(tokencache.HashSents(sents))); err != nil {
		t.Errorf("entry not written: %v", err)
	}
	n, err := components.Manifest.Count(t.Context())
	if err != nil || n != 1 {
		t.Errorf("manifest rows = %d, %v; want 1", n, err)
	}
}

func TestInitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := initConfig(path, false); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Cache.Prefix != tokencache.DefaultPrefix || cfg.Stats.TopN != 5 {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if err := initConfig(path, false); err == nil {
		t.Error("expected error when file exists")
	}
	if err := initConfig(path, true); err != nil {
		t.Errorf("force overwrite: %v", err)
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("debug: true\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while configPath from t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_defaultsWithoutFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != "" {
		t.Errorf("resolved = %q, want empty for defaults", resolved)
	}
	if filepath.Base(cfg.Cache.Dir) != "tmp" || !filepath.IsAbs(cfg.Cache.Dir) {
		t.Errorf("cache.dir = %q, want <cwd>/tmp", cfg.Cache.Dir)
	}
}

func TestLoadConfig_explicitPathMustExist(t *testing.T) {
	if _, _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}
