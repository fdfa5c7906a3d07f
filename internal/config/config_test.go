package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Scraper.RateLimitDelaySeconds != 2.0 {
		t.Errorf("rate_limit_delay_seconds = %v, want 2.0", cfg.Scraper.RateLimitDelaySeconds)
	}
	if cfg.Scraper.MaxRetries != 3 {
		t.Errorf("max_retries = %d, want 3", cfg.Scraper.MaxRetries)
	}
	if !cfg.Scraper.RespectRobots {
		t.Error("respect_robots should default to true")
	}
	if cfg.Ingest.ChunkSize != 1500 || cfg.Ingest.ChunkOverlap != 150 {
		t.Errorf("chunk size/overlap = %d/%d, want 1500/150", cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	}
	if got := cfg.Scraper.RateLimitDelay(); got != 2*time.Second {
		t.Errorf("RateLimitDelay() = %v, want 2s", got)
	}
	if got := cfg.Scraper.Timeout(); got != 30*time.Second {
		t.Errorf("Timeout() = %v, want 30s", got)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
scraper:
  user_agent: normascout-test/1.0
  rate_limit_delay_seconds: 0.5
  max_retries: 5
  timeout_seconds: 10
  max_concurrent_requests: 4
  respect_robots: false
ingest:
  chunk_size: 800
  chunk_overlap: 80
classify:
  explicit_critical:
    - "LEGGE 30 dicembre 2025, n. 199"
  topic_keywords:
    rottamazione: ["rottamazione", "definizione agevolata"]
db:
  dsn: postgres://localhost/normascout
  table: records
targets:
  gazzetta:
    source_id: gazzetta_ufficiale
    list_url: https://example.com/elenco?page={page}
    detail_url_template: https://example.com/atto/{id}
    section_filter: serie_generale
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("server.port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Scraper.RespectRobots {
		t.Error("respect_robots should be overridden to false")
	}
	if cfg.Ingest.ChunkSize != 800 {
		t.Errorf("chunk_size = %d, want 800", cfg.Ingest.ChunkSize)
	}
	if len(cfg.Classify.ExplicitCritical) != 1 {
		t.Fatalf("explicit_critical length = %d, want 1", len(cfg.Classify.ExplicitCritical))
	}
	target, ok := cfg.Targets["gazzetta"]
	if !ok {
		t.Fatal("missing gazzetta target")
	}
	if target.SourceID != "gazzetta_ufficiale" {
		t.Errorf("source_id = %q", target.SourceID)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	base := func() Config {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		return cfg
	}

	cfg := base()
	cfg.Scraper.MaxConcurrentRequests = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero max_concurrent_requests")
	}

	cfg = base()
	cfg.Ingest.ChunkOverlap = cfg.Ingest.ChunkSize
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for overlap >= chunk size")
	}

	cfg = base()
	cfg.Archive.Enabled = true
	cfg.Archive.Backend = "ftp"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unsupported archive backend")
	}

	cfg = base()
	cfg.Notify.Backend = "pubsub"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for pubsub backend without project/topic")
	}
}
