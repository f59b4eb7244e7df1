package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configuration from .env, file, and environment.
// Priority (highest to lowest): env vars > config file > defaults.
func Load(configPath string) (*Config, error) {
	// A missing .env is fine; anything else (bad syntax) is not.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("SHOPSTALK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindSecrets(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("shopstalk")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".shopstalk"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// bindSecrets maps the conventional unprefixed variables onto config keys.
func bindSecrets(v *viper.Viper) {
	_ = v.BindEnv("openai.api_key", "SHOPSTALK_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("openai.base_url", "SHOPSTALK_OPENAI_BASE_URL", "OPENAI_BASE_URL")
	_ = v.BindEnv("ingest.database_url", "SHOPSTALK_INGEST_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("chat.redis_url", "SHOPSTALK_CHAT_REDIS_URL", "REDIS_URL")
	_ = v.BindEnv("storage.mongo_uri", "SHOPSTALK_STORAGE_MONGO_URI", "MONGO_URI")
}

// setDefaults registers default values in viper.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("scraper.search_url", cfg.Scraper.SearchURL)
	v.SetDefault("scraper.base_url", cfg.Scraper.BaseURL)
	v.SetDefault("scraper.link_selector", cfg.Scraper.LinkSelector)
	v.SetDefault("scraper.user_agent", cfg.Scraper.UserAgent)
	v.SetDefault("scraper.accept_language", cfg.Scraper.AcceptLanguage)
	v.SetDefault("scraper.request_timeout", cfg.Scraper.RequestTimeout)
	v.SetDefault("scraper.concurrency", cfg.Scraper.Concurrency)
	v.SetDefault("scraper.dedup_links", cfg.Scraper.DedupLinks)
	v.SetDefault("scraper.strategy", cfg.Scraper.Strategy)
	v.SetDefault("scraper.field_policy", cfg.Scraper.FieldPolicy)
	v.SetDefault("scraper.failure_policy", cfg.Scraper.FailurePolicy)
	v.SetDefault("scraper.discovery.max_attempts", cfg.Scraper.Discovery.MaxAttempts)
	v.SetDefault("scraper.discovery.delay", cfg.Scraper.Discovery.Delay)
	v.SetDefault("scraper.max_body_size", cfg.Scraper.MaxBodySize)
	v.SetDefault("scraper.politeness_delay", cfg.Scraper.PoliteDelay)

	v.SetDefault("fetcher.type", cfg.Fetcher.Type)
	v.SetDefault("fetcher.follow_redirects", cfg.Fetcher.FollowRedirects)
	v.SetDefault("fetcher.max_redirects", cfg.Fetcher.MaxRedirects)
	v.SetDefault("fetcher.tls_insecure", cfg.Fetcher.TLSInsecure)
	v.SetDefault("fetcher.idle_conn_timeout", cfg.Fetcher.IdleConnTimeout)
	v.SetDefault("fetcher.max_idle_conns", cfg.Fetcher.MaxIdleConns)
	v.SetDefault("fetcher.headless", cfg.Fetcher.Headless)
	v.SetDefault("fetcher.browser_pages", cfg.Fetcher.BrowserPages)

	v.SetDefault("proxy.enabled", cfg.Proxy.Enabled)
	v.SetDefault("proxy.rotation", cfg.Proxy.Rotation)

	v.SetDefault("storage.output_path", cfg.Storage.OutputPath)
	v.SetDefault("storage.json_mirror", cfg.Storage.JSONMirror)
	v.SetDefault("storage.mongo_database", cfg.Storage.MongoDatabase)
	v.SetDefault("storage.mongo_collection", cfg.Storage.MongoCollection)

	v.SetDefault("ingest.table", cfg.Ingest.Table)
	v.SetDefault("ingest.embedding_model", cfg.Ingest.EmbeddingModel)
	v.SetDefault("ingest.dimensions", cfg.Ingest.Dimensions)
	v.SetDefault("ingest.batch_size", cfg.Ingest.BatchSize)
	v.SetDefault("ingest.workers", cfg.Ingest.Workers)

	v.SetDefault("chat.model", cfg.Chat.Model)
	v.SetDefault("chat.top_k", cfg.Chat.TopK)
	v.SetDefault("chat.temperature", cfg.Chat.Temperature)
	v.SetDefault("chat.session_ttl", cfg.Chat.SessionTTL)
	v.SetDefault("chat.history_limit", cfg.Chat.HistoryLimit)

	v.SetDefault("api.port", cfg.API.Port)
	v.SetDefault("api.job_limit", cfg.API.JobLimit)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.port", cfg.Metrics.Port)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}
