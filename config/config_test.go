package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	minimal := `{
  "storage": {"redis": {"host": "localhost", "port": "6379"}},
  "providers": {"embedding": {"api_key": "k"}, "llm": {"api_key": "k"}}
}`
	if err := os.WriteFile(path, []byte(minimal), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := LoadConfig(path)

	if cfg.Server.Address != ":8000" {
		t.Fatalf("unexpected server address %q", cfg.Server.Address)
	}
	if cfg.Storage.Uploads.Dir != "uploads" {
		t.Fatalf("unexpected uploads dir %q", cfg.Storage.Uploads.Dir)
	}
	if cfg.Providers.Embedding.Model != "BAAI/bge-base-en-v1.5" {
		t.Fatalf("unexpected embedding model %q", cfg.Providers.Embedding.Model)
	}
	if cfg.Providers.LLM.Timeout != 60*time.Second {
		t.Fatalf("unexpected llm timeout %v", cfg.Providers.LLM.Timeout)
	}
	if cfg.Vector.Collection != "pdf-collection" || cfg.Vector.TopK != 2 {
		t.Fatalf("unexpected vector config %+v", cfg.Vector)
	}
	if cfg.Worker.ChunkSize != 300 || cfg.Worker.ChunkOverlap != 0 || cfg.Worker.Concurrency != 5 {
		t.Fatalf("unexpected worker config %+v", cfg.Worker)
	}
	if cfg.Worker.MetricsAddress != ":9100" {
		t.Fatalf("worker metrics address must default on, got %q", cfg.Worker.MetricsAddress)
	}
}
