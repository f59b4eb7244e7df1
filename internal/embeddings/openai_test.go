package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/IshaanNene/ShopStalk/internal/config"
)

func embeddingServer(t *testing.T, reverse bool) (*httptest.Server, *map[string]any) {
	t.Helper()
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		inputs := got["input"].([]any)
		data := make([]map[string]any, 0, len(inputs))
		for i := range inputs {
			idx := i
			if reverse {
				idx = len(inputs) - 1 - i
			}
			data = append(data, map[string]any{
				"object":    "embedding",
				"index":     idx,
				"embedding": []float32{float32(idx), 0.5},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  got["model"],
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func newEmbedder(srv *httptest.Server) *OpenAIEmbedder {
	client := NewOpenAIClient(config.OpenAIConfig{APIKey: "test", BaseURL: srv.URL})
	return NewOpenAIEmbedder(client, config.DefaultConfig().Ingest)
}

func TestEmbedKeepsInputOrder(t *testing.T) {
	srv, req := embeddingServer(t, true)
	vecs, err := newEmbedder(srv).Embed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vecs))
	}
	for i, v := range vecs {
		if v[0] != float32(i) {
			t.Errorf("vector %d belongs to input %v", i, v[0])
		}
	}
	if (*req)["model"] != "text-embedding-3-small" {
		t.Errorf("model = %v", (*req)["model"])
	}
	if (*req)["dimensions"] != float64(1536) {
		t.Errorf("dimensions = %v", (*req)["dimensions"])
	}
}

func TestEmbedEmpty(t *testing.T) {
	srv, _ := embeddingServer(t, false)
	vecs, err := newEmbedder(srv).Embed(context.Background(), nil)
	if err != nil || vecs != nil {
		t.Errorf("expected no call for empty input, got %v, %v", vecs, err)
	}
}

func TestEmbedAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	if _, err := newEmbedder(srv).Embed(context.Background(), []string{"a"}); err == nil {
		t.Error("expected API error")
	}
}
