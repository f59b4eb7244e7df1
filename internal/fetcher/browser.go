package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/IshaanNene/ShopStalk/internal/config"
	"github.com/IshaanNene/ShopStalk/internal/types"
)

// BrowserFetcher implements Fetcher using a headless Chromium via Rod.
// Search pages that serve empty listings to plain HTTP clients usually
// render normally here.
type BrowserFetcher struct {
	browser        *rod.Browser
	logger         *slog.Logger
	pagePool       chan *rod.Page
	userAgent      string
	acceptLanguage string
	timeout        time.Duration
}

// NewBrowserFetcher launches a browser and returns a fetcher backed by it.
func NewBrowserFetcher(cfg *config.Config, logger *slog.Logger) (*BrowserFetcher, error) {
	maxPages := cfg.Fetcher.BrowserPages
	if maxPages < 1 {
		maxPages = 1
	}

	bf := &BrowserFetcher{
		logger:         logger.With("component", "browser_fetcher"),
		pagePool:       make(chan *rod.Page, maxPages),
		userAgent:      cfg.Scraper.UserAgent,
		acceptLanguage: cfg.Scraper.AcceptLanguage,
		timeout:        cfg.Scraper.RequestTimeout,
	}

	l := launcher.New().
		Headless(cfg.Fetcher.Headless).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-blink-features", "AutomationControlled")
	if cfg.Proxy.Enabled && len(cfg.Proxy.URLs) > 0 {
		proxyURL, err := NewProxyManager(&cfg.Proxy, logger).Next()
		if err != nil {
			return nil, fmt.Errorf("browser proxy: %w", err)
		}
		l = l.Proxy(proxyURL.String())
	}

	launchURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(launchURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	bf.browser = browser

	bf.logger.Info("browser fetcher ready", "max_pages", maxPages, "headless", cfg.Fetcher.Headless)
	return bf, nil
}

// Fetch navigates to the request URL and returns the rendered HTML.
func (bf *BrowserFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	start := time.Now()

	page, err := bf.getPage()
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err, Retryable: true}
	}
	defer bf.putPage(page)

	timeout := bf.timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	p := page.Context(ctx).Timeout(timeout)

	ua := bf.userAgent
	if v := req.Headers.Get("User-Agent"); v != "" {
		ua = v
	}
	if ua != "" {
		err := p.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      ua,
			AcceptLanguage: bf.acceptLanguage,
		})
		if err != nil {
			bf.logger.Warn("failed to set user agent", "error", err)
		}
	}

	headers := make([]string, 0, len(req.Headers)*2)
	for k, vals := range req.Headers {
		if k == "User-Agent" {
			continue
		}
		for _, v := range vals {
			headers = append(headers, k, v)
		}
	}
	if len(headers) > 0 {
		cleanup, err := p.SetExtraHeaders(headers)
		if err == nil {
			defer cleanup()
		}
	}

	// Navigation only yields the document status through network events.
	statusCode := 0
	wait := p.EachEvent(func(e *proto.NetworkResponseReceived) bool {
		if e.Type == proto.NetworkResourceTypeDocument {
			statusCode = e.Response.Status
			return true
		}
		return false
	})

	if err := p.Navigate(req.URLString()); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &types.FetchError{URL: req.URLString(), Err: err, Retryable: true}
	}
	wait()

	if err := p.WaitStable(300 * time.Millisecond); err != nil {
		bf.logger.Warn("page stability timeout, continuing", "url", req.URLString(), "error", err)
	}

	if statusCode != 0 && (statusCode < 200 || statusCode >= 300) {
		return nil, &types.FetchError{
			URL:        req.URLString(),
			StatusCode: statusCode,
			Err:        fmt.Errorf("HTTP %d", statusCode),
			Retryable:  statusCode == 429 || statusCode >= 500,
		}
	}
	if statusCode == 0 {
		statusCode = 200
	}

	html, err := p.HTML()
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err, Retryable: true}
	}

	finalURL := req.URLString()
	if info, err := p.Info(); err == nil && info != nil {
		finalURL = info.URL
	}

	duration := time.Since(start)
	resp := types.NewBrowserResponse(req, statusCode, []byte(html), finalURL, duration)

	bf.logger.Debug("browser fetch complete",
		"url", req.URLString(),
		"final_url", finalURL,
		"size", len(html),
		"duration", duration,
	)

	return resp, nil
}

// Close shuts down the browser and releases resources.
func (bf *BrowserFetcher) Close() error {
	close(bf.pagePool)
	for page := range bf.pagePool {
		_ = page.Close()
	}
	if bf.browser != nil {
		return bf.browser.Close()
	}
	return nil
}

// Type returns the fetcher type identifier.
func (bf *BrowserFetcher) Type() string {
	return "browser"
}

// getPage takes a stealth-patched page from the pool or opens a new one.
func (bf *BrowserFetcher) getPage() (*rod.Page, error) {
	select {
	case page := <-bf.pagePool:
		return page, nil
	default:
		page, err := stealth.Page(bf.browser)
		if err != nil {
			return nil, fmt.Errorf("stealth page: %w", err)
		}
		return page, nil
	}
}

// putPage returns a page to the pool.
func (bf *BrowserFetcher) putPage(page *rod.Page) {
	_ = page.Navigate("about:blank")

	select {
	case bf.pagePool <- page:
	default:
		_ = page.Close()
	}
}
