// Package ingest turns the persisted product dataset into documents for
// the vector store.
package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/gocarina/gocsv"
	"golang.org/x/sync/errgroup"

	"github.com/IshaanNene/ShopStalk/internal/config"
	"github.com/IshaanNene/ShopStalk/internal/observability"
	"github.com/IshaanNene/ShopStalk/internal/types"
)

// NoReviews is the page content of a product without reviews.
const NoReviews = "No reviews available."

// MetadataKeys are the dataset columns carried as document metadata.
var MetadataKeys = []string{
	types.ColTitle,
	types.ColPrice,
	types.ColRating,
	types.ColHighlights,
	types.ColDescription,
	types.ColLink,
}

// missingValues are the cell spellings a dataframe reader treats as a
// missing value.
var missingValues = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

// IsMissing reports whether a CSV cell counts as missing.
func IsMissing(v string) bool {
	_, ok := missingValues[v]
	return ok
}

// Document is one retrievable unit: a product's reviews plus its details.
type Document struct {
	PageContent string            `json:"page_content"`
	Metadata    map[string]string `json:"metadata"`
}

// VectorStore persists documents and returns one id per document.
type VectorStore interface {
	AddDocuments(ctx context.Context, docs []Document) ([]string, error)
}

// Load reads the dataset at path. Every dataset column must be present in
// the header; extra columns are ignored.
func Load(path string) ([]types.ProductRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	header, err := csv.NewReader(f).Read()
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	if missing := missingColumns(header); len(missing) > 0 {
		return nil, &types.SchemaValidationError{Path: path, Missing: missing}
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind dataset: %w", err)
	}
	var rows []types.ProductRecord
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("decode dataset %s: %w", path, err)
	}
	return rows, nil
}

func missingColumns(header []string) []string {
	seen := make(map[string]bool, len(header))
	for _, h := range header {
		seen[h] = true
	}
	var missing []string
	for _, col := range types.Columns {
		if !seen[col] {
			missing = append(missing, col)
		}
	}
	return missing
}

// Transform maps each row to a Document, in row order. Missing metadata
// becomes "" and missing reviews become NoReviews.
func Transform(rows []types.ProductRecord) []Document {
	docs := make([]Document, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		meta := make(map[string]string, len(MetadataKeys))
		for _, key := range MetadataKeys {
			v := *row.Field(key)
			if IsMissing(v) {
				v = ""
			}
			meta[key] = v
		}
		content := row.Reviews
		if IsMissing(content) {
			content = NoReviews
		}
		docs = append(docs, Document{PageContent: content, Metadata: meta})
	}
	return docs
}

// Result summarizes one ingestion run.
type Result struct {
	Documents int      `json:"documents"`
	IDs       []string `json:"ids"`
}

// Transformer loads the dataset and hands its documents to a VectorStore.
type Transformer struct {
	path      string
	batchSize int
	workers   int
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// Option configures a Transformer.
type Option func(*Transformer)

// WithMetrics counts ingested documents.
func WithMetrics(m *observability.Metrics) Option {
	return func(t *Transformer) { t.metrics = m }
}

// WithPath reads the dataset from path instead of the configured output.
func WithPath(path string) Option {
	return func(t *Transformer) { t.path = path }
}

// NewTransformer creates a Transformer for the dataset at
// cfg.Storage.OutputPath.
func NewTransformer(cfg *config.Config, logger *slog.Logger, opts ...Option) *Transformer {
	t := &Transformer{
		path:      cfg.Storage.OutputPath,
		batchSize: cfg.Ingest.BatchSize,
		workers:   cfg.Ingest.Workers,
		logger:    logger.With("component", "ingest"),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.workers < 1 {
		t.workers = 1
	}
	return t
}

// Path returns the dataset path.
func (t *Transformer) Path() string { return t.path }

// Run loads, transforms and stores the dataset. Documents are sent in
// batches; returned ids follow document order.
func (t *Transformer) Run(ctx context.Context, store VectorStore) (*Result, error) {
	start := time.Now()
	rows, err := Load(t.path)
	if err != nil {
		return nil, err
	}
	docs := Transform(rows)

	batches := split(docs, t.batchSize)
	ids := make([][]string, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.workers)
	for i, batch := range batches {
		g.Go(func() error {
			got, err := store.AddDocuments(gctx, batch)
			if err != nil {
				return fmt.Errorf("add batch %d of %d: %w", i+1, len(batches), err)
			}
			ids[i] = got
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{Documents: len(docs), IDs: make([]string, 0, len(docs))}
	for _, batch := range ids {
		res.IDs = append(res.IDs, batch...)
	}
	t.metrics.DocumentsIngested(len(res.IDs))
	t.logger.Info("dataset ingested",
		"path", t.path,
		"documents", len(docs),
		"inserted", len(res.IDs),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return res, nil
}

func split(docs []Document, size int) [][]Document {
	if len(docs) == 0 {
		return nil
	}
	if size <= 0 || size > len(docs) {
		size = len(docs)
	}
	var out [][]Document
	for start := 0; start < len(docs); start += size {
		end := min(start+size, len(docs))
		out = append(out, docs[start:end])
	}
	return out
}
