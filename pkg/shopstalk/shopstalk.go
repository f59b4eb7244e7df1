// Package shopstalk wires the scraper, dataset, ingestion and chat
// components into one application object.
//
// Example usage:
//
//	cfg := config.DefaultConfig()
//	app, err := shopstalk.New(ctx, cfg, logger)
//	if err != nil {
//	    return err
//	}
//	defer app.Close()
//
//	ds, err := app.Scrape(ctx, "smart tv")
package shopstalk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/IshaanNene/ShopStalk/internal/api"
	"github.com/IshaanNene/ShopStalk/internal/chat"
	"github.com/IshaanNene/ShopStalk/internal/config"
	"github.com/IshaanNene/ShopStalk/internal/dataset"
	"github.com/IshaanNene/ShopStalk/internal/discover"
	"github.com/IshaanNene/ShopStalk/internal/embeddings"
	"github.com/IshaanNene/ShopStalk/internal/extract"
	"github.com/IshaanNene/ShopStalk/internal/fetcher"
	"github.com/IshaanNene/ShopStalk/internal/ingest"
	"github.com/IshaanNene/ShopStalk/internal/observability"
	"github.com/IshaanNene/ShopStalk/internal/scraper"
	"github.com/IshaanNene/ShopStalk/internal/storage"
	"github.com/IshaanNene/ShopStalk/internal/vectorstore"
)

// App is the high-level API for using ShopStalk as a library.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics

	fetcher    fetcher.Fetcher
	discoverer scraper.LinkDiscoverer
	scraper    *scraper.Scraper
	assembler  *dataset.Assembler

	mu        sync.Mutex
	store     ingest.VectorStore
	retriever chat.Retriever
	completer chat.Completer
	pg        *vectorstore.PGStore
	sessions  *chat.RedisSessionStore
	chat      *chat.Service
}

// Option configures an App.
type Option func(*App)

// WithFetcher replaces the configured fetcher.
func WithFetcher(f fetcher.Fetcher) Option {
	return func(a *App) { a.fetcher = f }
}

// WithDiscoverer replaces search-page link discovery.
func WithDiscoverer(d scraper.LinkDiscoverer) Option {
	return func(a *App) { a.discoverer = d }
}

// WithMetrics records pipeline metrics into m.
func WithMetrics(m *observability.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithVectorStore replaces the pgvector store used by Ingest.
func WithVectorStore(s ingest.VectorStore) Option {
	return func(a *App) { a.store = s }
}

// WithChatBackend replaces the retriever and model used by Chat.
func WithChatBackend(r chat.Retriever, c chat.Completer) Option {
	return func(a *App) {
		a.retriever = r
		a.completer = c
	}
}

// New validates cfg and builds the scrape pipeline. Ingestion and chat
// backends are connected on first use.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	a := &App{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(a)
	}

	if a.fetcher == nil {
		f, err := fetcher.New(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("create fetcher: %w", err)
		}
		a.fetcher = f
	}
	a.fetcher = fetcher.NewThrottledFetcher(a.fetcher, cfg.Scraper.PoliteDelay)
	if a.discoverer == nil {
		d, err := discover.New(a.fetcher, cfg, logger, discover.WithMetrics(a.metrics))
		if err != nil {
			a.fetcher.Close()
			return nil, fmt.Errorf("create discoverer: %w", err)
		}
		a.discoverer = d
	}

	ex, err := extract.New(cfg.Scraper.Strategy, cfg.Selectors)
	if err != nil {
		a.fetcher.Close()
		return nil, fmt.Errorf("create extractor: %w", err)
	}
	a.scraper = scraper.New(a.discoverer, a.fetcher, ex, &cfg.Scraper, logger, scraper.WithMetrics(a.metrics))

	dsOpts := []dataset.Option{dataset.WithMetrics(a.metrics)}
	if cfg.Storage.MongoURI != "" {
		mongo, err := storage.NewMongoStorage(ctx, cfg.Storage.MongoURI, cfg.Storage.MongoDatabase, cfg.Storage.MongoCollection, logger)
		if err != nil {
			a.fetcher.Close()
			return nil, err
		}
		dsOpts = append(dsOpts, dataset.WithMirror(mongo))
	}
	a.assembler = dataset.New(cfg, logger, dsOpts...)

	return a, nil
}

// Config returns the effective configuration.
func (a *App) Config() *config.Config { return a.cfg }

// Scrape discovers, scrapes and finalizes the dataset for category. When
// only persistence fails the dataset is returned with the error.
func (a *App) Scrape(ctx context.Context, category string) (*dataset.Dataset, error) {
	records, err := a.scraper.Run(ctx, category)
	if err != nil {
		return nil, err
	}
	return a.assembler.Finalize(ctx, records)
}

// Ingest loads the persisted dataset into the vector store.
func (a *App) Ingest(ctx context.Context) (*ingest.Result, error) {
	store, err := a.vectorStore(ctx)
	if err != nil {
		return nil, err
	}
	t := ingest.NewTransformer(a.cfg, a.logger, ingest.WithMetrics(a.metrics))
	return t.Run(ctx, store)
}

// Chat returns the question-answering service, connecting its backends on
// first use.
func (a *App) Chat(ctx context.Context) (*chat.Service, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.chat != nil {
		return a.chat, nil
	}

	if a.retriever == nil || a.completer == nil {
		if err := config.RequireChat(a.cfg); err != nil {
			return nil, err
		}
		pg, err := a.pgStoreLocked(ctx)
		if err != nil {
			return nil, err
		}
		a.retriever = pg
		a.completer = embeddings.NewOpenAIClient(a.cfg.OpenAI)
	}

	opts := []chat.Option{chat.WithMetrics(a.metrics)}
	if a.cfg.Chat.RedisURL != "" {
		sessions, err := chat.NewRedisSessionStore(ctx, a.cfg.Chat.RedisURL, a.cfg.Chat.SessionTTL, a.cfg.Chat.HistoryLimit)
		if err != nil {
			a.logger.Warn("chat sessions disabled", "error", err)
		} else {
			a.sessions = sessions
			opts = append(opts, chat.WithSessions(sessions))
		}
	}
	a.chat = chat.NewService(a.retriever, a.completer, a.cfg.Chat, a.logger, opts...)
	return a.chat, nil
}

// Server builds the HTTP API backed by this App.
func (a *App) Server() *api.Server {
	opts := []api.Option{
		api.WithIngester(a),
		api.WithJobLimit(a.cfg.API.JobLimit),
		api.WithChatLoader(func(ctx context.Context) (api.Answerer, error) {
			return a.Chat(ctx)
		}),
	}
	if a.metrics != nil {
		opts = append(opts, api.WithMetrics(a.metrics))
	}
	return api.NewServer(a.cfg.API.Port, a, a.logger, opts...)
}

// Close releases fetchers, database pools and sinks.
func (a *App) Close() error {
	var errs []error
	if err := a.fetcher.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.assembler.Close(); err != nil {
		errs = append(errs, err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pg != nil {
		a.pg.Close()
	}
	if a.sessions != nil {
		if err := a.sessions.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *App) vectorStore(ctx context.Context) (ingest.VectorStore, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.store != nil {
		return a.store, nil
	}
	if err := config.RequireIngest(a.cfg); err != nil {
		return nil, err
	}
	return a.pgStoreLocked(ctx)
}

// pgStoreLocked connects the pgvector store once. a.mu must be held.
func (a *App) pgStoreLocked(ctx context.Context) (*vectorstore.PGStore, error) {
	if a.pg != nil {
		return a.pg, nil
	}
	emb := embeddings.NewOpenAIEmbedder(embeddings.NewOpenAIClient(a.cfg.OpenAI), a.cfg.Ingest)
	pg, err := vectorstore.Connect(ctx, a.cfg.Ingest, emb, a.logger)
	if err != nil {
		return nil, err
	}
	a.pg = pg
	a.store = pg
	return pg, nil
}
