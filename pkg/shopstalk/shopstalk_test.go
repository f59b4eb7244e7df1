package shopstalk

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/IshaanNene/ShopStalk/internal/config"
	"github.com/IshaanNene/ShopStalk/internal/ingest"
	"github.com/IshaanNene/ShopStalk/internal/observability"
	"github.com/IshaanNene/ShopStalk/internal/storage"
	"github.com/IshaanNene/ShopStalk/internal/types"
	"github.com/IshaanNene/ShopStalk/internal/vectorstore"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

const tvPage = `<html><body>
<span class="VU-ZEz">TV A</span>
<div class="Nx9bqj CxhGGd">₹10,000</div>
<div class="ZmyHeo">Great TV READ MORE 😀</div>
</body></html>`

const untitledPage = `<html><body><div class="Nx9bqj CxhGGd">₹5,000</div></body></html>`

type linkList []string

func (l linkList) Discover(context.Context, string) ([]string, error) { return l, nil }

func productServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/p/1", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(tvPage)) })
	mux.HandleFunc("/p/2", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(untitledPage)) })
	mux.HandleFunc("/p/empty", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Storage.OutputPath = filepath.Join(t.TempDir(), "flipkart_realtime_scrape.csv")
	return cfg
}

func TestSmartTVScenario(t *testing.T) {
	srv := productServer(t)
	cfg := testConfig(t)
	m := observability.NewMetrics(testLogger)

	app, err := New(context.Background(), cfg, testLogger,
		WithDiscoverer(linkList{srv.URL + "/p/1", srv.URL + "/p/2"}),
		WithMetrics(m),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer app.Close()

	ds, err := app.Scrape(context.Background(), "Smart TV")
	if err != nil {
		t.Fatal(err)
	}
	if ds.Len() != 1 || ds.Dropped != 1 {
		t.Fatalf("expected one kept record and one dropped, got %+v", ds)
	}
	want := types.ProductRecord{
		Title:       "TV A",
		Price:       "₹10,000",
		Rating:      types.Sentinel,
		Highlights:  types.Sentinel,
		Description: types.Sentinel,
		Reviews:     "Great TV",
		Link:        srv.URL + "/p/1",
	}
	if ds.Records[0] != want {
		t.Errorf("record = %+v\nwant     %+v", ds.Records[0], want)
	}

	back, err := storage.ReadCSV(cfg.Storage.OutputPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(back) != 1 || back[0] != want {
		t.Errorf("persisted = %+v", back)
	}
}

func TestEmptyProductPageIsDropped(t *testing.T) {
	srv := productServer(t)
	cfg := testConfig(t)

	app, err := New(context.Background(), cfg, testLogger,
		WithDiscoverer(linkList{srv.URL + "/p/empty", srv.URL + "/p/1"}),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer app.Close()

	ds, err := app.Scrape(context.Background(), "Smart TV")
	if err != nil {
		t.Fatalf("an empty page must not abort the run: %v", err)
	}
	if ds.Len() != 1 || ds.Dropped != 1 {
		t.Fatalf("expected one kept record and one dropped, got %+v", ds)
	}
	if ds.Records[0].Link != srv.URL+"/p/1" {
		t.Errorf("unexpected record %+v", ds.Records[0])
	}
}

type memoryStore struct{ docs []ingest.Document }

func (m *memoryStore) AddDocuments(_ context.Context, docs []ingest.Document) ([]string, error) {
	m.docs = append(m.docs, docs...)
	ids := make([]string, len(docs))
	for i := range docs {
		ids[i] = "doc"
	}
	return ids, nil
}

func (m *memoryStore) SimilaritySearch(_ context.Context, _ string, k int) ([]vectorstore.ScoredDocument, error) {
	var out []vectorstore.ScoredDocument
	for _, d := range m.docs {
		if len(out) == k {
			break
		}
		out = append(out, vectorstore.ScoredDocument{Document: d})
	}
	return out, nil
}

type echoModel struct{ prompt string }

func (e *echoModel) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	e.prompt = req.Messages[len(req.Messages)-1].Content
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{
		{Message: openai.ChatCompletionMessage{Content: "TV A is well reviewed."}},
	}}, nil
}

func TestScrapeIngestChat(t *testing.T) {
	srv := productServer(t)
	store := &memoryStore{}
	model := &echoModel{}

	app, err := New(context.Background(), testConfig(t), testLogger,
		WithDiscoverer(linkList{srv.URL + "/p/1", srv.URL + "/p/2"}),
		WithVectorStore(store),
		WithChatBackend(store, model),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer app.Close()

	if _, err := app.Scrape(context.Background(), "tv"); err != nil {
		t.Fatal(err)
	}
	res, err := app.Ingest(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Documents != 1 || store.docs[0].PageContent != "Great TV" {
		t.Fatalf("ingested %+v", store.docs)
	}
	if store.docs[0].Metadata[types.ColRating] != "" {
		t.Errorf("NA rating should be ingested as empty metadata, got %q", store.docs[0].Metadata[types.ColRating])
	}

	svc, err := app.Chat(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	answer, err := svc.Answer(context.Background(), "", "Which TV?")
	if err != nil {
		t.Fatal(err)
	}
	if answer != "TV A is well reviewed." || !strings.Contains(model.prompt, "Product: TV A") {
		t.Errorf("answer %q from prompt:\n%s", answer, model.prompt)
	}
}

func TestIngestAndChatRequireConfiguration(t *testing.T) {
	app, err := New(context.Background(), testConfig(t), testLogger, WithDiscoverer(linkList{}))
	if err != nil {
		t.Fatal(err)
	}
	defer app.Close()

	var ce *types.ConfigurationError
	if _, err := app.Ingest(context.Background()); !errors.As(err, &ce) || ce.Stage != "ingest" {
		t.Errorf("expected ingest ConfigurationError, got %v", err)
	}
	if _, err := app.Chat(context.Background()); !errors.As(err, &ce) || ce.Stage != "chat" {
		t.Errorf("expected chat ConfigurationError, got %v", err)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scraper.Concurrency = 0
	if _, err := New(context.Background(), cfg, testLogger); err == nil {
		t.Error("expected validation error")
	}
}

func TestScrapeNoProducts(t *testing.T) {
	cfg := testConfig(t)
	app, err := New(context.Background(), cfg, testLogger, WithDiscoverer(linkList{}))
	if err != nil {
		t.Fatal(err)
	}
	defer app.Close()

	ds, err := app.Scrape(context.Background(), "nothing")
	if err != nil {
		t.Fatal(err)
	}
	if ds.Len() != 0 {
		t.Errorf("expected empty dataset, got %d", ds.Len())
	}
	if _, err := os.Stat(cfg.Storage.OutputPath); err != nil {
		t.Errorf("empty dataset should still be written: %v", err)
	}
}
