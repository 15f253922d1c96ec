package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"TRELLIS_SCAN_ROOT", "TRELLIS_DATA_DIR", "TRELLIS_PREFIX_LEN",
		"TRELLIS_CACHE_STALENESS", "TRELLIS_STRICT_RESOLVE", "TRELLIS_WATCH",
		"TRELLIS_EMBEDDING_API_KEY", "TRELLIS_EMBEDDING_MODEL", "TRELLIS_EMBEDDING_DIM",
		"TRELLIS_STORE_URL", "TRELLIS_STORE_COLLECTION",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.ScanRoot == "" || cfg.DataDir == "" {
		t.Errorf("empty path defaults: %+v", cfg)
	}
	if cfg.Staleness != 5*time.Minute {
		t.Errorf("Staleness = %v, want 5m", cfg.Staleness)
	}
	if cfg.StrictResolve {
		t.Error("StrictResolve defaults to true, want false")
	}
	if !cfg.Watch {
		t.Error("Watch defaults to false, want true")
	}
	if cfg.EmbeddingModel != "text-embedding-3-small" || cfg.EmbeddingDim != 1536 {
		t.Errorf("embedding defaults = %s/%d", cfg.EmbeddingModel, cfg.EmbeddingDim)
	}
	if cfg.StoreURL != "http://localhost:6333" || cfg.StoreCollection != "trellis_chunks" {
		t.Errorf("store defaults = %s/%s", cfg.StoreURL, cfg.StoreCollection)
	}
	if cfg.IndexingEnabled() {
		t.Error("IndexingEnabled without an API key")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("TRELLIS_SCAN_ROOT", "/var/transcripts")
	t.Setenv("TRELLIS_PREFIX_LEN", "128")
	t.Setenv("TRELLIS_CACHE_STALENESS", "30s")
	t.Setenv("TRELLIS_STRICT_RESOLVE", "true")
	t.Setenv("TRELLIS_WATCH", "false")
	t.Setenv("TRELLIS_EMBEDDING_API_KEY", "sk-test")
	t.Setenv("TRELLIS_EMBEDDING_DIM", "768")
	t.Setenv("TRELLIS_STORE_URL", "http://qdrant:6333")

	cfg := Load()

	if cfg.ScanRoot != "/var/transcripts" {
		t.Errorf("ScanRoot = %s", cfg.ScanRoot)
	}
	if cfg.PrefixLen != 128 {
		t.Errorf("PrefixLen = %d, want 128", cfg.PrefixLen)
	}
	if cfg.Staleness != 30*time.Second {
		t.Errorf("Staleness = %v, want 30s", cfg.Staleness)
	}
	if !cfg.StrictResolve || cfg.Watch {
		t.Errorf("flags = strict:%v watch:%v, want strict:true watch:false", cfg.StrictResolve, cfg.Watch)
	}
	if cfg.EmbeddingDim != 768 {
		t.Errorf("EmbeddingDim = %d, want 768", cfg.EmbeddingDim)
	}
	if cfg.StoreURL != "http://qdrant:6333" {
		t.Errorf("StoreURL = %s", cfg.StoreURL)
	}
	if !cfg.IndexingEnabled() {
		t.Error("IndexingEnabled = false with an API key set")
	}
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("TRELLIS_PREFIX_LEN", "not-a-number")
	t.Setenv("TRELLIS_CACHE_STALENESS", "soon")
	t.Setenv("TRELLIS_WATCH", "maybe")

	cfg := Load()

	if cfg.PrefixLen != 0 {
		t.Errorf("PrefixLen = %d, want default 0", cfg.PrefixLen)
	}
	if cfg.Staleness != 5*time.Minute {
		t.Errorf("Staleness = %v, want default 5m", cfg.Staleness)
	}
	if !cfg.Watch {
		t.Error("Watch fell through to false, want default true")
	}
}
