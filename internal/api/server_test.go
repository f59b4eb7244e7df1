package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/IshaanNene/ShopStalk/internal/dataset"
	"github.com/IshaanNene/ShopStalk/internal/ingest"
	"github.com/IshaanNene/ShopStalk/internal/observability"
	"github.com/IshaanNene/ShopStalk/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

type fakeScraper struct {
	ds       *dataset.Dataset
	err      error
	category string
}

func (f *fakeScraper) Scrape(_ context.Context, category string) (*dataset.Dataset, error) {
	f.category = category
	return f.ds, f.err
}

type fakeIngester struct {
	res *ingest.Result
	err error
}

func (f *fakeIngester) Ingest(context.Context) (*ingest.Result, error) { return f.res, f.err }

type fakeChat struct{ question, session string }

func (f *fakeChat) Answer(_ context.Context, sessionID, question string) (string, error) {
	f.question, f.session = question, sessionID
	return "Try TV A.", nil
}

func tvDataset() *dataset.Dataset {
	rec := types.NewProductRecord("https://flipkart.com/p/1")
	rec.Title = "TV A"
	return &dataset.Dataset{Records: []types.ProductRecord{rec}, Path: "data/x.csv"}
}

func do(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			// list endpoints return arrays
			out = nil
		}
	}
	return rec, out
}

func TestScrape(t *testing.T) {
	sc := &fakeScraper{ds: tvDataset()}
	s := NewServer(0, sc, testLogger)

	rec, body := do(t, s, http.MethodPost, "/api/scrape/Smart%20TV", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	if sc.category != "Smart TV" {
		t.Errorf("category = %q", sc.category)
	}
	if body["message"] != "Data scraped for Smart TV" {
		t.Errorf("message = %v", body["message"])
	}
	data := body["data"].([]any)
	first := data[0].(map[string]any)
	if len(data) != 1 || first["product_title"] != "TV A" || first["product_rating"] != "NA" {
		t.Errorf("data = %v", data)
	}
}

func TestScrapeFailure(t *testing.T) {
	sc := &fakeScraper{ds: tvDataset(), err: &types.StorageError{Backend: "csv", Err: errors.New("disk full")}}
	s := NewServer(0, sc, testLogger)

	rec, body := do(t, s, http.MethodPost, "/api/scrape/tv", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if msg, _ := body["error"].(string); !strings.HasPrefix(msg, "scrape failed: ") || !strings.Contains(msg, "disk full") {
		t.Errorf("error = %v", body["error"])
	}
	if body["data"] == nil {
		t.Error("records should still be returned when only persistence failed")
	}

	jobID := body["job_id"].(string)
	rec, job := do(t, s, http.MethodGet, "/api/jobs/"+jobID, "")
	if rec.Code != http.StatusOK || job["status"] != "failed" || job["kind"] != "scrape" {
		t.Errorf("job = %v", job)
	}
}

func TestChatUnavailableUntilLoaded(t *testing.T) {
	s := NewServer(0, &fakeScraper{}, testLogger)
	rec, body := do(t, s, http.MethodPost, "/api/chat", `{"query":"best tv?"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
	if msg, _ := body["error"].(string); !strings.HasPrefix(msg, "chat failed: ") {
		t.Errorf("error = %v", body["error"])
	}
}

func TestIngestLoadsChat(t *testing.T) {
	chat := &fakeChat{}
	loads := 0
	s := NewServer(0, &fakeScraper{}, testLogger,
		WithIngester(&fakeIngester{res: &ingest.Result{Documents: 2, IDs: []string{"a", "b"}}}),
		WithChatLoader(func(context.Context) (Answerer, error) {
			loads++
			return chat, nil
		}),
	)

	rec, body := do(t, s, http.MethodPost, "/api/ingest", "")
	if rec.Code != http.StatusOK || body["inserted"] != float64(2) {
		t.Fatalf("ingest: %d %v", rec.Code, body)
	}

	rec, body = do(t, s, http.MethodPost, "/api/chat", `{"query":"best tv?","session_id":"s1"}`)
	if rec.Code != http.StatusOK || body["response"] != "Try TV A." {
		t.Fatalf("chat: %d %v", rec.Code, body)
	}
	if chat.question != "best tv?" || chat.session != "s1" {
		t.Errorf("chat saw %q/%q", chat.question, chat.session)
	}
	if loads != 1 {
		t.Errorf("chat loaded %d times", loads)
	}
}

func TestIngestErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"config", &types.ConfigurationError{Stage: "ingest", Missing: []string{"OPENAI_API_KEY"}}, http.StatusServiceUnavailable},
		{"schema", &types.SchemaValidationError{Path: "x.csv", Missing: []string{"product_title"}}, http.StatusUnprocessableEntity},
		{"other", errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(0, &fakeScraper{}, testLogger, WithIngester(&fakeIngester{err: tt.err}))
			if rec, _ := do(t, s, http.MethodPost, "/api/ingest", ""); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}

	s := NewServer(0, &fakeScraper{}, testLogger)
	if rec, _ := do(t, s, http.MethodPost, "/api/ingest", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("unconfigured ingest status = %d", rec.Code)
	}
}

func TestChatBadRequests(t *testing.T) {
	s := NewServer(0, &fakeScraper{}, testLogger, WithChat(&fakeChat{}))
	for _, body := range []string{`{`, `{"query":"   "}`} {
		if rec, _ := do(t, s, http.MethodPost, "/api/chat", body); rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d", body, rec.Code)
		}
	}
}

func TestHealthAndMetrics(t *testing.T) {
	m := observability.NewMetrics(testLogger)
	m.RecordsScraped(3)
	s := NewServer(0, &fakeScraper{}, testLogger, WithMetrics(m))

	rec, body := do(t, s, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK || body["status"] != "ok" || body["chat_ready"] != false {
		t.Errorf("health = %v", body)
	}

	rec, _ = do(t, s, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "shopstalk_records_scraped_total 3") {
		t.Errorf("metrics output missing counter:\n%s", rec.Body)
	}
}

func TestJobsListing(t *testing.T) {
	s := NewServer(0, &fakeScraper{ds: tvDataset()}, testLogger)
	do(t, s, http.MethodPost, "/api/scrape/tv", "")
	do(t, s, http.MethodPost, "/api/scrape/phone", "")

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs", nil))
	var jobs []Job
	if err := json.Unmarshal(rec.Body.Bytes(), &jobs); err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 2 || jobs[0].Records != 1 || jobs[0].Status != "completed" {
		t.Errorf("jobs = %+v", jobs)
	}

	if rec, _ := do(t, s, http.MethodGet, "/api/jobs/nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing job status = %d", rec.Code)
	}
}

func TestJobsAreCapped(t *testing.T) {
	s := NewServer(0, &fakeScraper{ds: tvDataset()}, testLogger, WithJobLimit(2))

	var ids []string
	for _, c := range []string{"tv", "phone", "laptop"} {
		_, body := do(t, s, http.MethodPost, "/api/scrape/"+c, "")
		ids = append(ids, body["job_id"].(string))
	}

	if rec, _ := do(t, s, http.MethodGet, "/api/jobs/"+ids[0], ""); rec.Code != http.StatusNotFound {
		t.Errorf("oldest job should be evicted, status = %d", rec.Code)
	}
	for _, id := range ids[1:] {
		if rec, _ := do(t, s, http.MethodGet, "/api/jobs/"+id, ""); rec.Code != http.StatusOK {
			t.Errorf("job %s status = %d", id, rec.Code)
		}
	}
}

func TestRunningJobsAreNotEvicted(t *testing.T) {
	s := NewServer(0, &fakeScraper{}, testLogger, WithJobLimit(1))
	first := s.startJob("scrape", "tv")
	second := s.startJob("scrape", "phone")

	s.jobsMu.RLock()
	n := len(s.jobs)
	s.jobsMu.RUnlock()
	if n != 2 {
		t.Fatalf("expected both running jobs kept, got %d", n)
	}

	s.finishJobCount(first, 1, nil)
	s.finishJobCount(second, 1, nil)
	third := s.startJob("scrape", "laptop")

	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()
	if len(s.jobs) != 1 || s.jobs[third.ID] == nil {
		t.Errorf("expected only the running job left, got %d jobs", len(s.jobs))
	}
}
