package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadRetrievalDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("RAG_ALPHA", "")
	t.Setenv("RAG_DECAY_DAYS", "")
	t.Setenv("RAG_ANSWER_K", "")
	t.Setenv("RAG_SEARCH_K", "")
	t.Setenv("CHUNK_SIZE", "")
	t.Setenv("SESSION_TTL_MINUTES", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.RAGAlpha != 0.75 {
		t.Fatalf("expected default alpha 0.75, got %v", cfg.RAGAlpha)
	}
	if cfg.RAGDecayDays != 360 {
		t.Fatalf("expected default decay 360, got %v", cfg.RAGDecayDays)
	}
	if cfg.RAGAnswerK != 20 || cfg.RAGSearchK != 50 {
		t.Fatalf("expected k 20/50, got %d/%d", cfg.RAGAnswerK, cfg.RAGSearchK)
	}
	if cfg.ChunkSize != 400 {
		t.Fatalf("expected chunk size 400, got %d", cfg.ChunkSize)
	}
	if cfg.SessionTTL != time.Hour {
		t.Fatalf("expected session ttl 1h, got %v", cfg.SessionTTL)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("RAG_ALPHA", "0.6")
	t.Setenv("RAG_ANSWER_K", "8")
	t.Setenv("LLM_PROVIDER", "OpenAI")
	t.Setenv("INDEX_TIMEOUT_SECONDS", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.RAGAlpha != 0.6 {
		t.Fatalf("expected alpha override, got %v", cfg.RAGAlpha)
	}
	if cfg.RAGAnswerK != 8 {
		t.Fatalf("expected answer k 8, got %d", cfg.RAGAnswerK)
	}
	if cfg.LLMProvider != "openai" {
		t.Fatalf("expected lowercased provider, got %q", cfg.LLMProvider)
	}
	if cfg.IndexTimeout != 3*time.Second {
		t.Fatalf("expected index timeout 3s, got %v", cfg.IndexTimeout)
	}
}

func TestLoadFallsBackOnMalformedNumbers(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("RAG_ALPHA", "high")
	t.Setenv("RAG_SEARCH_K", "many")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.RAGAlpha != 0.75 || cfg.RAGSearchK != 50 {
		t.Fatalf("expected defaults on malformed values, got %v/%d", cfg.RAGAlpha, cfg.RAGSearchK)
	}
}

func TestLoadFileSitsBeneathEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "QDRANT_COLLECTION: campus\nrag_decay_days: 180\nSESSION_BACKEND: redis\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("QDRANT_COLLECTION", "")
	t.Setenv("RAG_DECAY_DAYS", "")
	t.Setenv("SESSION_BACKEND", "postgres")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.QdrantCollection != "campus" {
		t.Fatalf("expected collection from file, got %q", cfg.QdrantCollection)
	}
	if cfg.RAGDecayDays != 180 {
		t.Fatalf("expected decay from file, got %v", cfg.RAGDecayDays)
	}
	if cfg.SessionBackend != "postgres" {
		t.Fatalf("environment must win over file, got %q", cfg.SessionBackend)
	}
}

func TestLoadFilePathWinsOverConfigFileVariable(t *testing.T) {
	dir := t.TempDir()
	explicit := filepath.Join(dir, "explicit.yaml")
	ignored := filepath.Join(dir, "ignored.yaml")
	if err := os.WriteFile(explicit, []byte("QDRANT_COLLECTION: explicit\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := os.WriteFile(ignored, []byte("QDRANT_COLLECTION: ignored\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", ignored)
	t.Setenv("QDRANT_COLLECTION", "")

	cfg, err := LoadFile(explicit)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if cfg.QdrantCollection != "explicit" {
		t.Fatalf("expected collection from explicit file, got %q", cfg.QdrantCollection)
	}
	if got := os.Getenv("CONFIG_FILE"); got != ignored {
		t.Fatalf("CONFIG_FILE must be left alone, got %q", got)
	}
}

func TestLoadRejectsBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("a: [unclosed"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)

	if _, err := Load(); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestLoadResilienceSettings(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("RETRY_MAX_ATTEMPTS", "5")
	t.Setenv("RETRY_INITIAL_BACKOFF_MS", "20")
	t.Setenv("BREAKER_ENABLED", "false")
	t.Setenv("BREAKER_OPEN_TIMEOUT_SECONDS", "nope")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.RetryMaxAttempts != 5 || cfg.RetryInitialBackoff != 20*time.Millisecond {
		t.Fatalf("unexpected retry settings: %d %v", cfg.RetryMaxAttempts, cfg.RetryInitialBackoff)
	}
	if cfg.BreakerEnabled {
		t.Fatalf("expected breaker disabled")
	}
	if cfg.BreakerOpenTimeout != 30*time.Second {
		t.Fatalf("expected default open timeout on malformed value, got %v", cfg.BreakerOpenTimeout)
	}
}
