package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Default target-site settings.
const (
	DefaultSearchURL      = "https://www.flipkart.com/search?q={q}&otracker=search&otracker1=search&marketplace=FLIPKART&as-show=on&as=off"
	DefaultBaseURL        = "https://flipkart.com"
	DefaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/136.0.0.0 Safari/537.36"
	DefaultAcceptLanguage = "en-US,en;q=0.9"
	DefaultLinkSelector   = "a.CGtC98"
	DefaultOutputPath     = "data/flipkart_realtime_scrape.csv"
)

// Config is the root configuration for ShopStalk.
type Config struct {
	Scraper   ScraperConfig     `mapstructure:"scraper"   yaml:"scraper"`
	Fetcher   FetcherConfig     `mapstructure:"fetcher"   yaml:"fetcher"`
	Proxy     ProxyConfig       `mapstructure:"proxy"     yaml:"proxy"`
	Selectors map[string]string `mapstructure:"selectors" yaml:"selectors"`
	Storage   StorageConfig     `mapstructure:"storage"   yaml:"storage"`
	Ingest    IngestConfig      `mapstructure:"ingest"    yaml:"ingest"`
	Chat      ChatConfig        `mapstructure:"chat"      yaml:"chat"`
	OpenAI    OpenAIConfig      `mapstructure:"openai"    yaml:"openai"`
	API       APIConfig         `mapstructure:"api"       yaml:"api"`
	Logging   LoggingConfig     `mapstructure:"logging"   yaml:"logging"`
	Metrics   MetricsConfig     `mapstructure:"metrics"   yaml:"metrics"`
}

// ScraperConfig controls link discovery and product scraping.
type ScraperConfig struct {
	SearchURL      string          `mapstructure:"search_url"      yaml:"search_url"`
	BaseURL        string          `mapstructure:"base_url"        yaml:"base_url"`
	LinkSelector   string          `mapstructure:"link_selector"   yaml:"link_selector"`
	UserAgent      string          `mapstructure:"user_agent"      yaml:"user_agent"`
	AcceptLanguage string          `mapstructure:"accept_language" yaml:"accept_language"`
	RequestTimeout time.Duration   `mapstructure:"request_timeout" yaml:"request_timeout"`
	Concurrency    int             `mapstructure:"concurrency"     yaml:"concurrency"`
	DedupLinks     bool            `mapstructure:"dedup_links"     yaml:"dedup_links"`
	Strategy       string          `mapstructure:"strategy"        yaml:"strategy"`       // css, xpath
	FieldPolicy    string          `mapstructure:"field_policy"    yaml:"field_policy"`   // default, abort
	FailurePolicy  string          `mapstructure:"failure_policy"  yaml:"failure_policy"` // abort, skip
	Discovery      DiscoveryConfig `mapstructure:"discovery"       yaml:"discovery"`
	PoliteDelay    time.Duration   `mapstructure:"politeness_delay" yaml:"politeness_delay"`
	MaxBodySize    int64           `mapstructure:"max_body_size"   yaml:"max_body_size"`
}

// DiscoveryConfig controls the search-page retry loop.
type DiscoveryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	Delay       time.Duration `mapstructure:"delay"        yaml:"delay"`
}

// FetcherConfig controls the request fetcher.
type FetcherConfig struct {
	Type            string        `mapstructure:"type"              yaml:"type"`
	FollowRedirects bool          `mapstructure:"follow_redirects"  yaml:"follow_redirects"`
	MaxRedirects    int           `mapstructure:"max_redirects"     yaml:"max_redirects"`
	TLSInsecure     bool          `mapstructure:"tls_insecure"      yaml:"tls_insecure"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    yaml:"max_idle_conns"`
	Headless        bool          `mapstructure:"headless"          yaml:"headless"`
	BrowserPages    int           `mapstructure:"browser_pages"     yaml:"browser_pages"`
}

// ProxyConfig controls proxy rotation.
type ProxyConfig struct {
	Enabled  bool     `mapstructure:"enabled"  yaml:"enabled"`
	Rotation string   `mapstructure:"rotation" yaml:"rotation"`
	URLs     []string `mapstructure:"urls"     yaml:"urls"`
}

// StorageConfig controls where finalized datasets are written.
type StorageConfig struct {
	OutputPath      string `mapstructure:"output_path"      yaml:"output_path"`
	JSONMirror      string `mapstructure:"json_mirror"      yaml:"json_mirror"`
	MongoURI        string `mapstructure:"mongo_uri"        yaml:"mongo_uri"`
	MongoDatabase   string `mapstructure:"mongo_database"   yaml:"mongo_database"`
	MongoCollection string `mapstructure:"mongo_collection" yaml:"mongo_collection"`
}

// IngestConfig controls loading the dataset into the vector store.
type IngestConfig struct {
	DatabaseURL    string `mapstructure:"database_url"    yaml:"database_url"`
	Table          string `mapstructure:"table"           yaml:"table"`
	EmbeddingModel string `mapstructure:"embedding_model" yaml:"embedding_model"`
	Dimensions     int    `mapstructure:"dimensions"      yaml:"dimensions"`
	BatchSize      int    `mapstructure:"batch_size"      yaml:"batch_size"`
	Workers        int    `mapstructure:"workers"         yaml:"workers"`
}

// ChatConfig controls the retrieval chat endpoint.
type ChatConfig struct {
	Model        string        `mapstructure:"model"         yaml:"model"`
	TopK         int           `mapstructure:"top_k"         yaml:"top_k"`
	Temperature  float32       `mapstructure:"temperature"   yaml:"temperature"`
	RedisURL     string        `mapstructure:"redis_url"     yaml:"redis_url"`
	SessionTTL   time.Duration `mapstructure:"session_ttl"   yaml:"session_ttl"`
	HistoryLimit int           `mapstructure:"history_limit" yaml:"history_limit"`
}

// OpenAIConfig holds credentials for the embedding and chat models.
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"  yaml:"api_key"`
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// APIConfig controls the HTTP server.
type APIConfig struct {
	Port     int `mapstructure:"port"      yaml:"port"`
	JobLimit int `mapstructure:"job_limit" yaml:"job_limit"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Scraper: ScraperConfig{
			SearchURL:      DefaultSearchURL,
			BaseURL:        DefaultBaseURL,
			LinkSelector:   DefaultLinkSelector,
			UserAgent:      DefaultUserAgent,
			AcceptLanguage: DefaultAcceptLanguage,
			RequestTimeout: 30 * time.Second,
			Concurrency:    1,
			Strategy:       "css",
			FieldPolicy:    "default",
			FailurePolicy:  "abort",
			Discovery: DiscoveryConfig{
				MaxAttempts: 5,
				Delay:       2 * time.Second,
			},
			MaxBodySize: 10 * 1024 * 1024, // 10MB
		},
		Fetcher: FetcherConfig{
			Type:            "http",
			FollowRedirects: true,
			MaxRedirects:    10,
			IdleConnTimeout: 90 * time.Second,
			MaxIdleConns:    100,
			Headless:        true,
			BrowserPages:    2,
		},
		Proxy: ProxyConfig{
			Rotation: "round_robin",
		},
		Selectors: map[string]string{},
		Storage: StorageConfig{
			OutputPath:      DefaultOutputPath,
			MongoDatabase:   "shopstalk",
			MongoCollection: "products",
		},
		Ingest: IngestConfig{
			Table:          "product_documents",
			EmbeddingModel: "text-embedding-3-small",
			Dimensions:     1536,
			BatchSize:      64,
			Workers:        4,
		},
		Chat: ChatConfig{
			Model:        "gpt-4o-mini",
			TopK:         3,
			Temperature:  0.3,
			SessionTTL:   24 * time.Hour,
			HistoryLimit: 10,
		},
		API: APIConfig{
			Port:     8080,
			JobLimit: 256,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}
