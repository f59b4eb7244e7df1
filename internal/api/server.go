// Package api exposes scraping, ingestion and chat over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/IshaanNene/ShopStalk/internal/config"
	"github.com/IshaanNene/ShopStalk/internal/dataset"
	"github.com/IshaanNene/ShopStalk/internal/ingest"
	"github.com/IshaanNene/ShopStalk/internal/observability"
	"github.com/IshaanNene/ShopStalk/internal/types"
)

// Scraper runs one scrape and returns the finalized dataset. A dataset
// may come back together with a persistence error.
type Scraper interface {
	Scrape(ctx context.Context, category string) (*dataset.Dataset, error)
}

// Ingester loads the persisted dataset into the vector store.
type Ingester interface {
	Ingest(ctx context.Context) (*ingest.Result, error)
}

// Answerer answers a customer question.
type Answerer interface {
	Answer(ctx context.Context, sessionID, question string) (string, error)
}

// ChatLoader builds the chat backend. It is called after a successful
// ingest and on the first chat request.
type ChatLoader func(ctx context.Context) (Answerer, error)

// Job records one scrape or ingest request.
type Job struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Category   string    `json:"category,omitempty"`
	Status     string    `json:"status"`
	Records    int       `json:"records"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// Server provides the REST API.
type Server struct {
	mux    *http.ServeMux
	port   int
	logger *slog.Logger

	scraper  Scraper
	ingester Ingester
	metrics  *observability.Metrics

	chatMu     sync.Mutex
	chat       Answerer
	chatLoader ChatLoader

	jobs     map[string]*Job
	jobOrder []string // ids, oldest first
	jobLimit int
	jobsMu   sync.RWMutex
}

// DefaultJobLimit is how many jobs the server remembers.
const DefaultJobLimit = 256

// Option configures a Server.
type Option func(*Server)

// WithIngester enables POST /api/ingest.
func WithIngester(i Ingester) Option {
	return func(s *Server) { s.ingester = i }
}

// WithChat sets a ready chat backend.
func WithChat(a Answerer) Option {
	return func(s *Server) { s.chat = a }
}

// WithChatLoader sets how the chat backend is built on demand.
func WithChatLoader(l ChatLoader) Option {
	return func(s *Server) { s.chatLoader = l }
}

// WithMetrics serves the registry at GET /metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithJobLimit caps how many jobs are kept. Finished jobs are evicted
// oldest first; running jobs are never evicted.
func WithJobLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.jobLimit = n
		}
	}
}

// NewServer creates a new API server.
func NewServer(port int, scraper Scraper, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		mux:      http.NewServeMux(),
		port:     port,
		logger:   logger.With("component", "api_server"),
		scraper:  scraper,
		jobs:     make(map[string]*Job),
		jobLimit: DefaultJobLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerRoutes()
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.mux }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server starting", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("API server stopping")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	s.mux.HandleFunc("POST /api/scrape/{category}", s.handleScrape)
	s.mux.HandleFunc("POST /api/ingest", s.handleIngest)
	s.mux.HandleFunc("POST /api/chat", s.handleChat)

	s.mux.HandleFunc("GET /api/jobs", s.handleListJobs)
	s.mux.HandleFunc("GET /api/jobs/{id}", s.handleGetJob)

	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.chatMu.Lock()
	chatReady := s.chat != nil
	s.chatMu.Unlock()

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"version":    config.Version,
		"chat_ready": chatReady,
	})
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	category := strings.TrimSpace(r.PathValue("category"))
	if category == "" {
		s.errorResponse(w, http.StatusBadRequest, "scrape", errors.New("category is required"))
		return
	}

	job := s.startJob("scrape", category)
	ds, err := s.scraper.Scrape(r.Context(), category)
	s.finishJob(job, ds, err)

	if err != nil {
		s.logger.Error("scrape failed", "category", category, "error", err)
		body := map[string]any{"error": "scrape failed: " + err.Error(), "job_id": job.ID}
		if ds != nil {
			body["data"] = ds.Records
		}
		s.jsonResponse(w, http.StatusInternalServerError, body)
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"message": "Data scraped for " + category,
		"data":    ds.Records,
		"job_id":  job.ID,
	})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if s.ingester == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "ingest", errors.New("ingestion is not configured"))
		return
	}

	job := s.startJob("ingest", "")
	res, err := s.ingester.Ingest(r.Context())
	var n int
	if res != nil {
		n = len(res.IDs)
	}
	s.finishJobCount(job, n, err)
	if err != nil {
		s.logger.Error("ingest failed", "error", err)
		s.errorResponse(w, statusFor(err), "ingest", err)
		return
	}

	if _, err := s.loadChat(r.Context()); err != nil {
		s.logger.Warn("chat not available after ingest", "error", err)
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"message":  fmt.Sprintf("Successfully inserted %d documents", n),
		"inserted": n,
		"job_id":   job.ID,
	})
}

type chatRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var body chatRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "chat", errors.New("invalid JSON"))
		return
	}
	if strings.TrimSpace(body.Query) == "" {
		s.errorResponse(w, http.StatusBadRequest, "chat", errors.New("query is required"))
		return
	}

	chat, err := s.loadChat(r.Context())
	if err != nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "chat", err)
		return
	}

	answer, err := chat.Answer(r.Context(), body.SessionID, body.Query)
	if err != nil {
		s.logger.Error("chat failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "chat", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"response": answer})
}

// loadChat returns the chat backend, building it once through the loader.
func (s *Server) loadChat(ctx context.Context) (Answerer, error) {
	s.chatMu.Lock()
	defer s.chatMu.Unlock()
	if s.chat != nil {
		return s.chat, nil
	}
	if s.chatLoader == nil {
		return nil, errors.New("model and retriever not loaded, run ingest first")
	}
	chat, err := s.chatLoader(ctx)
	if err != nil {
		return nil, err
	}
	s.chat = chat
	return chat, nil
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	s.jobsMu.RLock()
	jobs := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, *j)
	}
	s.jobsMu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool { return jobs[i].StartedAt.After(jobs[j].StartedAt) })
	s.jsonResponse(w, http.StatusOK, jobs)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.jobsMu.RLock()
	job, ok := s.jobs[id]
	var snapshot Job
	if ok {
		snapshot = *job
	}
	s.jobsMu.RUnlock()

	if !ok {
		s.jsonResponse(w, http.StatusNotFound, map[string]string{"error": "job not found"})
		return
	}
	s.jsonResponse(w, http.StatusOK, snapshot)
}

func (s *Server) startJob(kind, category string) *Job {
	job := &Job{
		ID:        uuid.NewString(),
		Kind:      kind,
		Category:  category,
		Status:    "running",
		StartedAt: time.Now(),
	}
	s.jobsMu.Lock()
	s.jobs[job.ID] = job
	s.jobOrder = append(s.jobOrder, job.ID)
	s.evictJobsLocked()
	s.jobsMu.Unlock()
	return job
}

// evictJobsLocked drops the oldest finished jobs until the limit holds.
func (s *Server) evictJobsLocked() {
	excess := len(s.jobOrder) - s.jobLimit
	if excess <= 0 {
		return
	}
	kept := s.jobOrder[:0]
	for _, id := range s.jobOrder {
		if excess > 0 && s.jobs[id].Status != "running" {
			delete(s.jobs, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	s.jobOrder = kept
}

func (s *Server) finishJob(job *Job, ds *dataset.Dataset, err error) {
	n := 0
	if ds != nil {
		n = ds.Len()
	}
	s.finishJobCount(job, n, err)
}

func (s *Server) finishJobCount(job *Job, n int, err error) {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	job.Records = n
	job.FinishedAt = time.Now()
	job.Status = "completed"
	if err != nil {
		job.Status = "failed"
		job.Error = err.Error()
	}
}

func statusFor(err error) int {
	var ce *types.ConfigurationError
	var se *types.SchemaValidationError
	switch {
	case errors.As(err, &ce):
		return http.StatusServiceUnavailable
	case errors.As(err, &se):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) errorResponse(w http.ResponseWriter, status int, op string, err error) {
	s.jsonResponse(w, status, map[string]string{"error": op + " failed: " + err.Error()})
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
