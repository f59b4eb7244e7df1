package observability

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "shopstalk"

// Metrics holds the Prometheus collectors for scraping and ingestion.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	pagesFetched       *prometheus.CounterVec
	fetchFailures      *prometheus.CounterVec
	fetchDuration      *prometheus.HistogramVec
	discoveryAttempts  prometheus.Counter
	discoveryExhausted prometheus.Counter
	extractionErrors   *prometheus.CounterVec
	recordsScraped     prometheus.Counter
	recordsDropped     prometheus.Counter
	recordsPersisted   prometheus.Counter
	documentsIngested  prometheus.Counter
	chatRequests       *prometheus.CounterVec

	logger *slog.Logger
}

// NewMetrics creates a Metrics instance with its own registry.
func NewMetrics(logger *slog.Logger) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		pagesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_fetched_total",
			Help:      "Pages fetched successfully, by kind (search, product).",
		}, []string{"kind"}),
		fetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_failures_total",
			Help:      "Failed page fetches, by kind.",
		}, []string{"kind"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Page fetch latency, by kind.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		discoveryAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_attempts_total",
			Help:      "Search page fetch-and-parse attempts.",
		}),
		discoveryExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_exhausted_total",
			Help:      "Discovery runs that found no product links after every attempt.",
		}),
		extractionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_errors_total",
			Help:      "Unexpected field extraction faults, by field.",
		}, []string{"field"}),
		recordsScraped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_scraped_total",
			Help:      "Product records assembled from detail pages.",
		}),
		recordsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_dropped_total",
			Help:      "Records removed while finalizing a dataset.",
		}),
		recordsPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_persisted_total",
			Help:      "Records written to the dataset file.",
		}),
		documentsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_ingested_total",
			Help:      "Documents added to the vector store.",
		}),
		chatRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_requests_total",
			Help:      "Chat questions answered, by outcome.",
		}, []string{"outcome"}),
		logger: logger.With("component", "metrics"),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.pagesFetched,
		m.fetchFailures,
		m.fetchDuration,
		m.discoveryAttempts,
		m.discoveryExhausted,
		m.extractionErrors,
		m.recordsScraped,
		m.recordsDropped,
		m.recordsPersisted,
		m.documentsIngested,
		m.chatRequests,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) PageFetched(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.pagesFetched.WithLabelValues(kind).Inc()
	m.fetchDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *Metrics) FetchFailed(kind string) {
	if m == nil {
		return
	}
	m.fetchFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) DiscoveryAttempt() {
	if m == nil {
		return
	}
	m.discoveryAttempts.Inc()
}

func (m *Metrics) DiscoveryExhausted() {
	if m == nil {
		return
	}
	m.discoveryExhausted.Inc()
}

func (m *Metrics) ExtractionError(field string) {
	if m == nil {
		return
	}
	m.extractionErrors.WithLabelValues(field).Inc()
}

func (m *Metrics) RecordsScraped(n int) {
	if m == nil {
		return
	}
	m.recordsScraped.Add(float64(n))
}

func (m *Metrics) RecordsDropped(n int) {
	if m == nil {
		return
	}
	m.recordsDropped.Add(float64(n))
}

func (m *Metrics) RecordsPersisted(n int) {
	if m == nil {
		return
	}
	m.recordsPersisted.Add(float64(n))
}

func (m *Metrics) DocumentsIngested(n int) {
	if m == nil {
		return
	}
	m.documentsIngested.Add(float64(n))
}

func (m *Metrics) ChatRequest(outcome string) {
	if m == nil {
		return
	}
	m.chatRequests.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer starts a standalone metrics HTTP server and returns it so the
// caller can shut it down.
func (m *Metrics) StartServer(port int, path string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	m.logger.Info("metrics server starting", "addr", srv.Addr, "path", path)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("metrics server error", "error", err)
		}
	}()

	return srv
}
