package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "zero max pages",
			mutate: func(cfg *Config) {
				cfg.MaxPages = 0
			},
			wantErr: "max pages",
		},
		{
			name: "empty search url",
			mutate: func(cfg *Config) {
				cfg.SearchURL = ""
			},
			wantErr: "search URL",
		},
		{
			name: "invalid url format",
			mutate: func(cfg *Config) {
				cfg.SearchURL = "http://"
			},
			wantErr: "search URL",
		},
		{
			name: "negative timeout",
			mutate: func(cfg *Config) {
				cfg.Timeout = -1 * time.Second
			},
			wantErr: "timeout",
		},
		{
			name: "no identities",
			mutate: func(cfg *Config) {
				cfg.Identities = nil
			},
			wantErr: "identity",
		},
		{
			name: "unknown mode",
			mutate: func(cfg *Config) {
				cfg.PriceDropMode = "ratio"
			},
			wantErr: "price drop mode",
		},
		{
			name: "negative threshold",
			mutate: func(cfg *Config) {
				cfg.PriceDropThreshold = -1
			},
			wantErr: "threshold",
		},
		{
			name: "unknown backend",
			mutate: func(cfg *Config) {
				cfg.StoreBackend = "parquet"
			},
			wantErr: "store backend",
		},
		{
			name: "webhook without host",
			mutate: func(cfg *Config) {
				cfg.WebhookURL = "/hook"
			},
			wantErr: "webhook",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestLoadFileOverlaysNamedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watch.json5")
	body := `{
  // unquoted keys and comments are fine
  search_terms: ["Kindle Fire"],
  product_urls: ["https://www.amazon.com/dp/B0BHZT5S12"],
  max_pages: 4,
  fetch_delay: "250ms",
  price_drop_mode: "value",
  price_drop_threshold: 5
}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := DefaultConfig()
	if err := LoadFile(path, cfg); err != nil {
		t.Fatalf("load file: %v", err)
	}

	if cfg.MaxPages != 4 {
		t.Fatalf("max pages = %d, want 4", cfg.MaxPages)
	}
	if cfg.FetchDelay != 250*time.Millisecond {
		t.Fatalf("fetch delay = %v, want 250ms", cfg.FetchDelay)
	}
	if cfg.PriceDropMode != ModeValue || cfg.PriceDropThreshold != 5 {
		t.Fatalf("mode/threshold = %s/%v, want value/5", cfg.PriceDropMode, cfg.PriceDropThreshold)
	}
	if len(cfg.SearchTerms) != 1 || cfg.SearchTerms[0] != "Kindle Fire" {
		t.Fatalf("search terms = %v", cfg.SearchTerms)
	}
	if len(cfg.Identities) != len(DefaultConfig().Identities) {
		t.Fatalf("identities should keep defaults, got %d", len(cfg.Identities))
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("loaded config should validate: %v", err)
	}
}

func TestLoadFileRejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watch.json5")
	if err := os.WriteFile(path, []byte(`{timeout: "soon"}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := LoadFile(path, DefaultConfig()); err == nil || !strings.Contains(err.Error(), "timeout") {
		t.Fatalf("expected timeout parse error, got %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("PRICEWATCH_PAGES", "7")
	t.Setenv("PRICEWATCH_DELAY", "2s")
	t.Setenv("PRICEWATCH_STORE_BACKEND", "SQLite")

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if cfg.MaxPages != 7 || cfg.FetchDelay != 2*time.Second || cfg.StoreBackend != "sqlite" {
		t.Fatalf("unexpected config after env: pages=%d delay=%v backend=%s", cfg.MaxPages, cfg.FetchDelay, cfg.StoreBackend)
	}

	t.Setenv("PRICEWATCH_PAGES", "many")
	if err := DefaultConfig().ApplyEnv(); err == nil {
		t.Fatalf("expected parse error for PRICEWATCH_PAGES")
	}
}
