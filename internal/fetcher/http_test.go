package fetcher

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/IshaanNene/ShopStalk/internal/config"
	"github.com/IshaanNene/ShopStalk/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func newTestFetcher(t *testing.T) *HTTPFetcher {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Scraper.RequestTimeout = 5 * time.Second
	f, err := NewHTTPFetcher(cfg, testLogger)
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestHTTPFetcherSendsBrowserHeaders(t *testing.T) {
	var gotUA, gotLang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotLang = r.Header.Get("Accept-Language")
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	req, _ := types.NewRequest(srv.URL)
	resp, err := f.Fetch(context.Background(), req)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if gotUA != config.DefaultUserAgent {
		t.Errorf("unexpected user agent %q", gotUA)
	}
	if gotLang != "en-US,en;q=0.9" {
		t.Errorf("unexpected accept-language %q", gotLang)
	}
	if !resp.IsSuccess() {
		t.Errorf("expected success, got %d", resp.StatusCode)
	}
	doc, err := resp.Document()
	if err != nil {
		t.Fatalf("document: %v", err)
	}
	if doc.Find("body").Text() != "ok" {
		t.Errorf("unexpected body text %q", doc.Find("body").Text())
	}
}

func TestHTTPFetcherEmptyBodyIsAResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	req, _ := types.NewRequest(srv.URL)
	resp, err := f.Fetch(context.Background(), req)
	if err != nil {
		t.Fatalf("expected a response for an empty 200, got %v", err)
	}
	if len(resp.Body) != 0 || !resp.IsSuccess() {
		t.Errorf("unexpected response: status %d, %d bytes", resp.StatusCode, len(resp.Body))
	}
	doc, err := resp.Document()
	if err != nil {
		t.Fatalf("document: %v", err)
	}
	if doc.Find("span").Length() != 0 {
		t.Error("expected an empty document")
	}
}

func TestHTTPFetcherNon2xxIsFetchError(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{http.StatusNotFound, false},
		{http.StatusForbidden, false},
		{http.StatusTooManyRequests, true},
		{http.StatusServiceUnavailable, true},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			f := newTestFetcher(t)
			req, _ := types.NewRequest(srv.URL)
			_, err := f.Fetch(context.Background(), req)

			var fe *types.FetchError
			if !errors.As(err, &fe) {
				t.Fatalf("expected FetchError, got %v", err)
			}
			if fe.StatusCode != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, fe.StatusCode)
			}
			if fe.Retryable != tt.retryable {
				t.Errorf("expected retryable=%v", tt.retryable)
			}
		})
	}
}

func TestHTTPFetcherBrotli(t *testing.T) {
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	_, _ = w.Write([]byte("<html><span class=\"VU-ZEz\">TV A</span></html>"))
	_ = w.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Encoding", "br")
		_, _ = rw.Write(buf.Bytes())
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	req, _ := types.NewRequest(srv.URL)
	resp, err := f.Fetch(context.Background(), req)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	doc, _ := resp.Document()
	if got := doc.Find("span.VU-ZEz").Text(); got != "TV A" {
		t.Errorf("expected decompressed title, got %q", got)
	}
}

func TestDecompressReader(t *testing.T) {
	const page = "<html>TV A</html>"

	var gz, fl, br bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, _ = zw.Write([]byte(page))
	_ = zw.Close()
	fw, _ := flate.NewWriter(&fl, flate.DefaultCompression)
	_, _ = fw.Write([]byte(page))
	_ = fw.Close()
	bw := brotli.NewWriter(&br)
	_, _ = bw.Write([]byte(page))
	_ = bw.Close()

	tests := []struct {
		encoding string
		body     []byte
		want     string
	}{
		{"gzip", gz.Bytes(), page},
		{"gzip", nil, ""},
		{"deflate", fl.Bytes(), page},
		{"br", br.Bytes(), page},
		{"", []byte(page), page},
	}
	for _, tt := range tests {
		resp := &http.Response{Header: http.Header{}}
		if tt.encoding != "" {
			resp.Header.Set("Content-Encoding", tt.encoding)
		}
		rc, err := decompressReader(resp, bytes.NewReader(tt.body))
		if err != nil {
			t.Fatalf("%s (%d bytes): %v", tt.encoding, len(tt.body), err)
		}
		got, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("%s: read: %v", tt.encoding, err)
		}
		if err := rc.Close(); err != nil {
			t.Errorf("%s: close: %v", tt.encoding, err)
		}
		if string(got) != tt.want {
			t.Errorf("%s: got %q, want %q", tt.encoding, got, tt.want)
		}
	}
}

func TestHTTPFetcherCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	req, _ := types.NewRequest(srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := f.Fetch(ctx, req)
	var fe *types.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fe.Retryable {
		t.Error("cancelled fetch should not be retryable")
	}
}

func TestDetectBlock(t *testing.T) {
	tests := []struct {
		name string
		body string
		want BlockKind
		ok   bool
	}{
		{"recaptcha", `<div class="g-recaptcha" data-sitekey="abc"></div>`, BlockReCaptcha, true},
		{"turnstile", `<div class="cf-turnstile" data-sitekey="k"></div>`, BlockTurnstile, true},
		{"access wall", `<h1>Access Denied</h1>`, BlockAccessWall, true},
		{"listing", `<a class="CGtC98" href="/p/1">TV</a>`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DetectBlock([]byte(tt.body))
			if ok != tt.ok || got != tt.want {
				t.Errorf("DetectBlock = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	if d := parseRetryAfter("3"); d != 3*time.Second {
		t.Errorf("expected 3s, got %v", d)
	}
	if d := parseRetryAfter("999"); d != 120*time.Second {
		t.Errorf("expected cap at 120s, got %v", d)
	}
	if d := parseRetryAfter(""); d != 5*time.Second {
		t.Errorf("expected default 5s, got %v", d)
	}
}
