package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/IshaanNene/ShopStalk/internal/types"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Scraper.Discovery.MaxAttempts != 5 {
		t.Errorf("expected 5 discovery attempts, got %d", cfg.Scraper.Discovery.MaxAttempts)
	}
	if cfg.Scraper.Discovery.Delay != 2*time.Second {
		t.Errorf("expected 2s discovery delay, got %v", cfg.Scraper.Discovery.Delay)
	}
	if cfg.Scraper.DedupLinks {
		t.Error("link dedup should be off by default")
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no placeholder", func(c *Config) { c.Scraper.SearchURL = "https://example.com/search" }},
		{"relative base", func(c *Config) { c.Scraper.BaseURL = "/flipkart" }},
		{"zero concurrency", func(c *Config) { c.Scraper.Concurrency = 0 }},
		{"zero attempts", func(c *Config) { c.Scraper.Discovery.MaxAttempts = 0 }},
		{"bad strategy", func(c *Config) { c.Scraper.Strategy = "regex" }},
		{"bad failure policy", func(c *Config) { c.Scraper.FailurePolicy = "retry" }},
		{"bad field policy", func(c *Config) { c.Scraper.FieldPolicy = "ignore" }},
		{"bad fetcher", func(c *Config) { c.Fetcher.Type = "curl" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }},
		{"negative job limit", func(c *Config) { c.API.JobLimit = -1 }},
		{"empty output", func(c *Config) { c.Storage.OutputPath = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestRequireIngest(t *testing.T) {
	cfg := DefaultConfig()
	err := RequireIngest(cfg)
	var cerr *types.ConfigurationError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if len(cerr.Missing) != 2 {
		t.Errorf("expected api key and database url missing, got %v", cerr.Missing)
	}

	cfg.OpenAI.APIKey = "sk-test"
	cfg.Ingest.DatabaseURL = "postgres://localhost/shopstalk"
	if err := RequireIngest(cfg); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := RequireChat(cfg); err != nil {
		t.Errorf("chat should not require redis: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shopstalk.yaml")
	content := []byte(`
scraper:
  concurrency: 4
  dedup_links: true
  discovery:
    max_attempts: 3
    delay: 500ms
storage:
  output_path: out/products.csv
selectors:
  title: h1.title
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Scraper.Concurrency != 4 || !cfg.Scraper.DedupLinks {
		t.Errorf("scraper section not applied: %+v", cfg.Scraper)
	}
	if cfg.Scraper.Discovery.MaxAttempts != 3 || cfg.Scraper.Discovery.Delay != 500*time.Millisecond {
		t.Errorf("discovery section not applied: %+v", cfg.Scraper.Discovery)
	}
	if cfg.Storage.OutputPath != "out/products.csv" {
		t.Errorf("unexpected output path %q", cfg.Storage.OutputPath)
	}
	if cfg.Selectors["title"] != "h1.title" {
		t.Errorf("selector override not applied: %v", cfg.Selectors)
	}
	if cfg.Scraper.UserAgent != DefaultUserAgent {
		t.Errorf("defaults should survive partial file, got UA %q", cfg.Scraper.UserAgent)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}
