// Package discover finds product detail links on a marketplace search page.
package discover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/IshaanNene/ShopStalk/internal/config"
	"github.com/IshaanNene/ShopStalk/internal/fetcher"
	"github.com/IshaanNene/ShopStalk/internal/observability"
	"github.com/IshaanNene/ShopStalk/internal/retry"
	"github.com/IshaanNene/ShopStalk/internal/types"
)

// Discoverer turns a category into an ordered list of product URLs. The
// search page is flaky (rate limits, A/B markup, CAPTCHA walls), so an
// empty result is retried a bounded number of times.
type Discoverer struct {
	fetcher   fetcher.Fetcher
	searchURL string
	baseURL   string
	linkSel   goquery.Matcher
	policy    retry.Policy
	dedup     bool
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// Option configures a Discoverer.
type Option func(*Discoverer)

// WithSleep replaces the delay function between attempts.
func WithSleep(fn retry.SleepFunc) Option {
	return func(d *Discoverer) { d.policy.Sleep = fn }
}

// WithMetrics records attempts and exhaustion.
func WithMetrics(m *observability.Metrics) Option {
	return func(d *Discoverer) { d.metrics = m }
}

// New creates a Discoverer from the scraper settings in cfg.
func New(f fetcher.Fetcher, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Discoverer, error) {
	sel, err := cascadia.Compile(cfg.Scraper.LinkSelector)
	if err != nil {
		return nil, fmt.Errorf("compile link selector %q: %w", cfg.Scraper.LinkSelector, err)
	}

	d := &Discoverer{
		fetcher:   f,
		searchURL: cfg.Scraper.SearchURL,
		baseURL:   strings.TrimRight(cfg.Scraper.BaseURL, "/"),
		linkSel:   sel,
		policy: retry.Policy{
			MaxAttempts: cfg.Scraper.Discovery.MaxAttempts,
			Delay:       cfg.Scraper.Discovery.Delay,
		},
		dedup:  cfg.Scraper.DedupLinks,
		logger: logger.With("component", "discoverer"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// SearchURL fills the search template with the query-escaped category.
func (d *Discoverer) SearchURL(category string) string {
	return strings.ReplaceAll(d.searchURL, "{q}", url.QueryEscape(category))
}

// Discover fetches the search page for category and returns product URLs in
// page order.
//
// Zero links after every attempt is not an error: the result is empty and a
// warning is logged. A fetch error on an attempt is treated like an empty
// page and retried; only when every attempt failed to fetch is the last
// fetch error returned. Cancelling ctx aborts with ctx.Err().
func (d *Discoverer) Discover(ctx context.Context, category string) ([]string, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, errors.New("category must not be empty")
	}
	searchURL := d.SearchURL(category)
	logger := d.logger.With("category", category)

	out, err := retry.Until(ctx, d.policy,
		func(ctx context.Context, attempt int) ([]string, error) {
			d.metrics.DiscoveryAttempt()
			links, err := d.attempt(ctx, searchURL, attempt)
			switch {
			case err != nil:
				logger.Warn("search page fetch failed", "attempt", attempt, "error", err)
			case len(links) == 0:
				logger.Info("no links found, retrying", "attempt", attempt, "max_attempts", d.policy.MaxAttempts)
			}
			return links, err
		},
		func(links []string) bool { return len(links) > 0 },
	)

	switch {
	case err == nil:
	case errors.Is(err, retry.ErrExhausted):
		if out.Failures == out.Attempts && out.LastErr != nil {
			return nil, out.LastErr
		}
		d.metrics.DiscoveryExhausted()
		logger.Warn("no product links found", "attempts", out.Attempts, "reason", types.ErrDiscoveryExhausted)
		return []string{}, nil
	default:
		return nil, err
	}

	links := out.Value
	if d.dedup {
		before := len(links)
		links = Dedup(links)
		if dropped := before - len(links); dropped > 0 {
			logger.Debug("duplicate links removed", "count", dropped)
		}
	}

	logger.Info("product links found", "count", len(links), "attempts", out.Attempts)
	return links, nil
}

// attempt performs one fetch-and-parse of the search page.
func (d *Discoverer) attempt(ctx context.Context, searchURL string, attempt int) ([]string, error) {
	req, err := types.NewRequest(searchURL)
	if err != nil {
		return nil, err
	}
	req.Tag = types.TagSearch
	req.Attempt = attempt

	start := time.Now()
	resp, err := d.fetcher.Fetch(ctx, req)
	if err != nil {
		d.metrics.FetchFailed(types.TagSearch)
		return nil, err
	}
	d.metrics.PageFetched(types.TagSearch, time.Since(start))

	doc, err := resp.Document()
	if err != nil {
		return nil, err
	}

	links := ParseLinks(doc, d.linkSel, d.baseURL)
	if len(links) == 0 {
		if len(resp.Body) == 0 {
			d.logger.Debug("search page empty", "attempt", attempt, "error", types.ErrEmptyResponse)
		} else if kind, blocked := fetcher.DetectBlock(resp.Body); blocked {
			d.logger.Warn("search page looks blocked", "attempt", attempt, "kind", kind, "error", types.ErrBlockedPage)
		}
	}
	return links, nil
}

// ParseLinks returns the href of every anchor matched by sel, made absolute
// against base. Anchors without an href are skipped.
func ParseLinks(doc *goquery.Document, sel goquery.Matcher, base string) []string {
	var links []string
	doc.FindMatcher(sel).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		href = strings.TrimSpace(href)
		if !ok || href == "" {
			return
		}
		links = append(links, absolute(base, href))
	})
	return links
}

func absolute(base, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return base + href
}
