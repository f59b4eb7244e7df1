// Package scraper orchestrates one scrape run: discover links, fetch each
// product page and extract a record per link.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/IshaanNene/ShopStalk/internal/config"
	"github.com/IshaanNene/ShopStalk/internal/extract"
	"github.com/IshaanNene/ShopStalk/internal/fetcher"
	"github.com/IshaanNene/ShopStalk/internal/observability"
	"github.com/IshaanNene/ShopStalk/internal/types"
)

// Failure policies applied when a product cannot be scraped.
const (
	PolicyAbort = "abort"
	PolicySkip  = "skip"
)

// Field policies applied when one field extractor faults.
const (
	FieldPolicyDefault = "default"
	FieldPolicyAbort   = "abort"
)

// LinkDiscoverer finds product URLs for a category.
type LinkDiscoverer interface {
	Discover(ctx context.Context, category string) ([]string, error)
}

// Result is the outcome of scraping one discovered link.
type Result struct {
	Index  int
	Link   string
	Record types.ProductRecord
	Err    error
}

// Scraper runs discovery and product extraction for a category.
type Scraper struct {
	discoverer    LinkDiscoverer
	fetcher       fetcher.Fetcher
	extractor     extract.DocumentExtractor
	concurrency   int
	fieldPolicy   string
	failurePolicy string
	metrics       *observability.Metrics
	logger        *slog.Logger
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithMetrics records fetches, extraction faults and record counts.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Scraper) { s.metrics = m }
}

// New creates a Scraper.
func New(d LinkDiscoverer, f fetcher.Fetcher, ex extract.DocumentExtractor, cfg *config.ScraperConfig, logger *slog.Logger, opts ...Option) *Scraper {
	s := &Scraper{
		discoverer:    d,
		fetcher:       f,
		extractor:     ex,
		concurrency:   cfg.Concurrency,
		fieldPolicy:   cfg.FieldPolicy,
		failurePolicy: cfg.FailurePolicy,
		logger:        logger.With("component", "scraper"),
	}
	if s.concurrency < 1 {
		s.concurrency = 1
	}
	if s.fieldPolicy == "" {
		s.fieldPolicy = FieldPolicyDefault
	}
	if s.failurePolicy == "" {
		s.failurePolicy = PolicyAbort
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run discovers links for category and returns one record per link in
// discovery order. Under the abort policy the first failing product, by
// discovery order, ends the run with its error.
func (s *Scraper) Run(ctx context.Context, category string) ([]types.ProductRecord, error) {
	start := time.Now()
	links, err := s.discoverer.Discover(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("discover %q: %w", category, err)
	}
	if len(links) == 0 {
		s.logger.Warn("no products to scrape", "category", category)
		return []types.ProductRecord{}, nil
	}

	results := s.ScrapeLinks(ctx, links)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records, err := Reduce(results, s.failurePolicy, s.logger)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordsScraped(len(records))
	s.logger.Info("scrape complete",
		"category", category,
		"links", len(links),
		"records", len(records),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return records, nil
}

// ScrapeLinks scrapes every link with at most s.concurrency requests in
// flight. results[i] always belongs to links[i]. Under the abort policy
// the first failure stops new work from being dispatched.
func (s *Scraper) ScrapeLinks(ctx context.Context, links []string) []Result {
	results := make([]Result, len(links))
	for i, link := range links {
		results[i] = Result{Index: i, Link: link}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i := range links {
		if gctx.Err() != nil {
			for j := i; j < len(links); j++ {
				results[j].Err = gctx.Err()
			}
			break
		}
		g.Go(func() error {
			rec, err := s.scrapeOne(gctx, links[i])
			results[i].Record = rec
			results[i].Err = err
			if err != nil && s.failurePolicy == PolicyAbort {
				return err
			}
			return nil
		})
	}
	_ = g.Wait() // errors live in results

	return results
}

// scrapeOne fetches one product page and extracts its record.
func (s *Scraper) scrapeOne(ctx context.Context, link string) (types.ProductRecord, error) {
	// A slot freed by a failing product may still hand us a cancelled context.
	if err := ctx.Err(); err != nil {
		return types.ProductRecord{}, err
	}
	req, err := types.NewRequest(link)
	if err != nil {
		return types.ProductRecord{}, err
	}
	req.Tag = types.TagProduct

	start := time.Now()
	resp, err := s.fetcher.Fetch(ctx, req)
	if err != nil {
		s.metrics.FetchFailed(types.TagProduct)
		return types.ProductRecord{}, err
	}
	s.metrics.PageFetched(types.TagProduct, time.Since(start))

	doc, err := resp.Document()
	if err != nil {
		return types.ProductRecord{}, err
	}

	rec, err := extract.Apply(s.extractor, doc, link)
	if err != nil {
		for _, ee := range extractionErrors(err) {
			s.metrics.ExtractionError(ee.Field)
			s.logger.Warn("field extraction failed", "link", link, "field", ee.Field, "error", ee.Err)
		}
		if s.fieldPolicy == FieldPolicyAbort {
			return types.ProductRecord{}, fmt.Errorf("extract %s: %w", link, err)
		}
	}

	s.logger.Debug("product scraped", "link", link, "title", rec.Title)
	return rec, nil
}

// Reduce applies the failure policy to per-link results, keeping order.
//
// abort: any failure fails the whole run; the lowest-index failure that is
// not a cancellation caused by an earlier abort is returned.
// skip: failures are logged and left out.
func Reduce(results []Result, policy string, logger *slog.Logger) ([]types.ProductRecord, error) {
	records := make([]types.ProductRecord, 0, len(results))

	if policy == PolicySkip {
		for _, r := range results {
			if r.Err != nil {
				logger.Warn("product skipped", "link", r.Link, "error", r.Err)
				continue
			}
			records = append(records, r.Record)
		}
		return records, nil
	}

	var ctxErr error
	for _, r := range results {
		if r.Err == nil {
			continue
		}
		if errors.Is(r.Err, context.Canceled) || errors.Is(r.Err, context.DeadlineExceeded) {
			if ctxErr == nil {
				ctxErr = r.Err
			}
			continue
		}
		return nil, fmt.Errorf("scrape %s: %w", r.Link, r.Err)
	}
	if ctxErr != nil {
		return nil, ctxErr
	}

	for _, r := range results {
		records = append(records, r.Record)
	}
	return records, nil
}

func extractionErrors(err error) []*types.ExtractionError {
	var out []*types.ExtractionError
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			out = append(out, extractionErrors(e)...)
		}
		return out
	}
	var ee *types.ExtractionError
	if errors.As(err, &ee) {
		out = append(out, ee)
	}
	return out
}
