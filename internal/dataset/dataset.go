// Package dataset turns raw scraped records into the persisted product
// dataset.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/IshaanNene/ShopStalk/internal/config"
	"github.com/IshaanNene/ShopStalk/internal/observability"
	"github.com/IshaanNene/ShopStalk/internal/pipeline"
	"github.com/IshaanNene/ShopStalk/internal/storage"
	"github.com/IshaanNene/ShopStalk/internal/types"
)

// Dataset is the cleaned, ordered record set of one scrape run.
type Dataset struct {
	Records []types.ProductRecord `json:"data"`
	Path    string                `json:"path"`
	Dropped int                   `json:"dropped"`
	Changes []Change              `json:"changes,omitempty"`
}

// Len returns the number of records kept.
func (d *Dataset) Len() int { return len(d.Records) }

// Assembler filters, cleans and persists scraped records.
type Assembler struct {
	csv     *storage.CSVStorage
	mirrors []storage.Storage
	sink    storage.Storage
	dedup   bool
	metrics *observability.Metrics
	logger  *slog.Logger
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithMirror adds a secondary sink written after the CSV file.
func WithMirror(s storage.Storage) Option {
	return func(a *Assembler) { a.mirrors = append(a.mirrors, s) }
}

// WithMetrics records dropped and persisted counts.
func WithMetrics(m *observability.Metrics) Option {
	return func(a *Assembler) { a.metrics = m }
}

// New creates an Assembler writing to cfg.Storage.OutputPath. A JSON
// mirror is added when cfg.Storage.JSONMirror is set.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Assembler {
	a := &Assembler{
		csv:    storage.NewCSVStorage(cfg.Storage.OutputPath, logger),
		dedup:  cfg.Scraper.DedupLinks,
		logger: logger.With("component", "dataset"),
	}
	if cfg.Storage.JSONMirror != "" {
		a.mirrors = append(a.mirrors, storage.NewJSONStorage(cfg.Storage.JSONMirror, logger))
	}
	for _, opt := range opts {
		opt(a)
	}
	backends := append([]storage.Storage{a.csv}, a.mirrors...)
	if len(backends) == 1 {
		a.sink = a.csv
	} else {
		a.sink = storage.NewMultiStorage(backends, logger)
	}
	return a
}

// Path returns the CSV output path.
func (a *Assembler) Path() string { return a.csv.Path() }

// Finalize drops untitled records, cleans review text and writes the
// result. The dataset is returned even when a write fails; the storage
// error is returned alongside it.
func (a *Assembler) Finalize(ctx context.Context, records []types.ProductRecord) (*Dataset, error) {
	p := pipeline.NewDatasetPipeline(a.logger, a.dedup)
	kept, dropped, err := p.ProcessAll(records)
	if err != nil {
		return nil, fmt.Errorf("clean records: %w", err)
	}
	a.metrics.RecordsDropped(dropped)

	ds := &Dataset{Records: kept, Path: a.csv.Path(), Dropped: dropped}
	ds.Changes = a.changesSince(kept)

	if err := a.sink.Store(ctx, kept); err != nil {
		a.logger.Error("dataset not persisted", "path", ds.Path, "error", err)
		return ds, err
	}

	a.metrics.RecordsPersisted(len(kept))
	a.logger.Info("dataset finalized", "path", ds.Path, "records", len(kept), "dropped", dropped, "changes", len(ds.Changes))
	return ds, nil
}

// changesSince compares records with the dataset currently on disk. A
// missing or unreadable previous file yields no changes.
func (a *Assembler) changesSince(records []types.ProductRecord) []Change {
	prev, err := storage.ReadCSV(a.csv.Path())
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			a.logger.Debug("previous dataset unreadable", "path", a.csv.Path(), "error", err)
		}
		return nil
	}
	return Compare(prev, records)
}

// Close releases every sink.
func (a *Assembler) Close() error {
	return a.sink.Close()
}
