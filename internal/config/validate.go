package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/IshaanNene/ShopStalk/internal/types"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	s := cfg.Scraper
	if !strings.Contains(s.SearchURL, "{q}") {
		return fmt.Errorf("scraper.search_url must contain the {q} placeholder, got %q", s.SearchURL)
	}
	if err := ValidateURL(s.BaseURL); err != nil {
		return fmt.Errorf("scraper.base_url: %w", err)
	}
	if s.LinkSelector == "" {
		return fmt.Errorf("scraper.link_selector must not be empty")
	}
	if s.Concurrency < 1 {
		return fmt.Errorf("scraper.concurrency must be >= 1, got %d", s.Concurrency)
	}
	if s.Concurrency > 64 {
		return fmt.Errorf("scraper.concurrency must be <= 64, got %d", s.Concurrency)
	}
	if s.RequestTimeout <= 0 {
		return fmt.Errorf("scraper.request_timeout must be > 0")
	}
	if s.Discovery.MaxAttempts < 1 {
		return fmt.Errorf("scraper.discovery.max_attempts must be >= 1, got %d", s.Discovery.MaxAttempts)
	}
	if s.Discovery.Delay < 0 {
		return fmt.Errorf("scraper.discovery.delay must be >= 0")
	}
	if s.PoliteDelay < 0 {
		return fmt.Errorf("scraper.politeness_delay must be >= 0")
	}
	if s.MaxBodySize <= 0 {
		return fmt.Errorf("scraper.max_body_size must be > 0")
	}
	if s.Strategy != "css" && s.Strategy != "xpath" {
		return fmt.Errorf("scraper.strategy must be 'css' or 'xpath', got %q", s.Strategy)
	}
	if s.FieldPolicy != "default" && s.FieldPolicy != "abort" {
		return fmt.Errorf("scraper.field_policy must be 'default' or 'abort', got %q", s.FieldPolicy)
	}
	if s.FailurePolicy != "abort" && s.FailurePolicy != "skip" {
		return fmt.Errorf("scraper.failure_policy must be 'abort' or 'skip', got %q", s.FailurePolicy)
	}

	if cfg.Fetcher.MaxRedirects < 0 {
		return fmt.Errorf("fetcher.max_redirects must be >= 0")
	}
	if cfg.Fetcher.Type != "http" && cfg.Fetcher.Type != "browser" {
		return fmt.Errorf("fetcher.type must be 'http' or 'browser', got %q", cfg.Fetcher.Type)
	}

	if cfg.Proxy.Enabled {
		if cfg.Proxy.Rotation != "round_robin" && cfg.Proxy.Rotation != "random" {
			return fmt.Errorf("proxy.rotation must be 'round_robin' or 'random', got %q", cfg.Proxy.Rotation)
		}
		for _, proxyURL := range cfg.Proxy.URLs {
			if _, err := url.Parse(proxyURL); err != nil {
				return fmt.Errorf("invalid proxy URL %q: %w", proxyURL, err)
			}
		}
	}

	if cfg.Storage.OutputPath == "" {
		return fmt.Errorf("storage.output_path must not be empty")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.API.JobLimit < 0 {
		return fmt.Errorf("api.job_limit must be >= 0, got %d", cfg.API.JobLimit)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	return nil
}

// RequireIngest reports the settings the ingestion stage cannot run without.
func RequireIngest(cfg *Config) error {
	var missing []string
	if cfg.OpenAI.APIKey == "" {
		missing = append(missing, "openai.api_key (OPENAI_API_KEY)")
	}
	if cfg.Ingest.DatabaseURL == "" {
		missing = append(missing, "ingest.database_url (DATABASE_URL)")
	}
	if cfg.Ingest.Table == "" {
		missing = append(missing, "ingest.table")
	}
	if len(missing) > 0 {
		return &types.ConfigurationError{Stage: "ingest", Missing: missing}
	}
	return nil
}

// RequireChat reports the settings the chat endpoint cannot run without.
// Redis is optional; without it sessions are not remembered.
func RequireChat(cfg *Config) error {
	var missing []string
	if cfg.OpenAI.APIKey == "" {
		missing = append(missing, "openai.api_key (OPENAI_API_KEY)")
	}
	if cfg.Ingest.DatabaseURL == "" {
		missing = append(missing, "ingest.database_url (DATABASE_URL)")
	}
	if cfg.Chat.Model == "" {
		missing = append(missing, "chat.model")
	}
	if len(missing) > 0 {
		return &types.ConfigurationError{Stage: "chat", Missing: missing}
	}
	return nil
}

// ValidateURL checks if a URL string is an absolute http(s) URL.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
