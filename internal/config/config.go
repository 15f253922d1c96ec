// Package config loads server configuration from the environment.
//
// Everything has a working default except the embedding credentials:
// without TRELLIS_EMBEDDING_API_KEY the indexing subsystem is disabled
// and the server still answers hierarchy questions from local scans.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all server settings.
type Config struct {
	// ScanRoot is the directory holding transcript files, laid out as
	// <root>/<workspace>/<task-id>.jsonl.
	ScanRoot string
	// DataDir holds the index journal database.
	DataDir string

	// PrefixLen is the canonical prefix length for hierarchy matching.
	PrefixLen int
	// Staleness is how long a cache snapshot is trusted before rescanning.
	Staleness time.Duration
	// StrictResolve disables heuristic disambiguation of ambiguous
	// prefix matches.
	StrictResolve bool
	// Watch enables filesystem notifications on ScanRoot.
	Watch bool

	// Embedding service settings.
	EmbeddingBaseURL string
	EmbeddingAPIKey  string
	EmbeddingModel   string
	EmbeddingDim     int

	// Vector store settings.
	StoreURL        string
	StoreAPIKey     string
	StoreCollection string
}

// Load reads configuration from TRELLIS_* environment variables,
// falling back to defaults.
func Load() Config {
	home, _ := os.UserHomeDir()
	cfg := Config{
		ScanRoot:         envStr("TRELLIS_SCAN_ROOT", filepath.Join(home, ".trellis", "transcripts")),
		DataDir:          envStr("TRELLIS_DATA_DIR", filepath.Join(home, ".trellis")),
		PrefixLen:        envInt("TRELLIS_PREFIX_LEN", 0),
		Staleness:        envDuration("TRELLIS_CACHE_STALENESS", 5*time.Minute),
		StrictResolve:    envBool("TRELLIS_STRICT_RESOLVE", false),
		Watch:            envBool("TRELLIS_WATCH", true),
		EmbeddingBaseURL: envStr("TRELLIS_EMBEDDING_BASE_URL", ""),
		EmbeddingAPIKey:  envStr("TRELLIS_EMBEDDING_API_KEY", ""),
		EmbeddingModel:   envStr("TRELLIS_EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingDim:     envInt("TRELLIS_EMBEDDING_DIM", 1536),
		StoreURL:         envStr("TRELLIS_STORE_URL", "http://localhost:6333"),
		StoreAPIKey:      envStr("TRELLIS_STORE_API_KEY", ""),
		StoreCollection:  envStr("TRELLIS_STORE_COLLECTION", "trellis_chunks"),
	}
	return cfg
}

// IndexingEnabled reports whether the embedding/upsert subsystem can be
// wired. Hierarchy tools work without it.
func (c Config) IndexingEnabled() bool {
	return c.EmbeddingAPIKey != ""
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
