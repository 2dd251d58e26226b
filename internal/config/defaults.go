package config

// DefaultCacheDir is where entries go when no cache directory is configured.
const DefaultCacheDir = "./tmp"

// ApplyDefaults sets default values for any zero values in cfg. An empty
// manifest path is resolved next to the cache directory when paths are expanded.
func ApplyDefaults(cfg *Config) {
	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = DefaultCacheDir
	}
	if cfg.Cache.Prefix == "" {
		cfg.Cache.Prefix = "doc_"
	}
	if cfg.Cache.UseCache == nil {
		t := true
		cfg.Cache.UseCache = &t
	}
	if cfg.Cache.MemoryEntries < 0 {
		cfg.Cache.MemoryEntries = 0
	}
	if cfg.Stats.TopN == 0 {
		cfg.Stats.TopN = 5
	}
	if cfg.Tokenizer.Ignore == nil {
		cfg.Tokenizer.Ignore = []string{}
	}
}
