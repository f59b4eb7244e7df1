package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gocarina/gocsv"

	"github.com/IshaanNene/ShopStalk/internal/types"
)

// --- CSV Storage ---

// CSVStorage writes the dataset as CSV with a header row. Each Store
// overwrites the file. Writes go to a temp file in the same directory and
// are renamed into place, so readers never see a half-written dataset.
//
// The lock is in-process only; two processes writing the same path race.
type CSVStorage struct {
	path   string
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewCSVStorage creates a new CSV file storage.
func NewCSVStorage(outputPath string, logger *slog.Logger) *CSVStorage {
	return &CSVStorage{
		path:   outputPath,
		logger: logger.With("component", "csv_storage"),
	}
}

func (s *CSVStorage) Name() string { return "csv" }

// Path returns the output file path.
func (s *CSVStorage) Path() string { return s.path }

func (s *CSVStorage) Store(ctx context.Context, records []types.ProductRecord) error {
	if err := ctx.Err(); err != nil {
		return &types.StorageError{Backend: s.Name(), Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := writeAtomic(s.path, func(f *os.File) error {
		if records == nil {
			records = []types.ProductRecord{}
		}
		return gocsv.Marshal(&records, f)
	})
	if err != nil {
		return &types.StorageError{Backend: s.Name(), Err: err}
	}

	s.count = len(records)
	s.logger.Info("CSV written", "path", s.path, "records", len(records))
	return nil
}

func (s *CSVStorage) Close() error {
	return nil
}

// ReadCSV loads a dataset previously written by CSVStorage.
func ReadCSV(path string) ([]types.ProductRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &types.StorageError{Backend: "csv", Err: err}
	}
	defer f.Close()

	var records []types.ProductRecord
	if err := gocsv.UnmarshalFile(f, &records); err != nil {
		return nil, &types.StorageError{Backend: "csv", Err: fmt.Errorf("decode %s: %w", path, err)}
	}
	return records, nil
}

// --- JSON Storage ---

// JSONStorage mirrors the dataset as an indented JSON array.
type JSONStorage struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
}

// NewJSONStorage creates a new JSON file storage.
func NewJSONStorage(outputPath string, logger *slog.Logger) *JSONStorage {
	return &JSONStorage{
		path:   outputPath,
		logger: logger.With("component", "json_storage"),
	}
}

func (s *JSONStorage) Name() string { return "json" }

func (s *JSONStorage) Store(ctx context.Context, records []types.ProductRecord) error {
	if err := ctx.Err(); err != nil {
		return &types.StorageError{Backend: s.Name(), Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if records == nil {
		records = []types.ProductRecord{}
	}
	err := writeAtomic(s.path, func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(records)
	})
	if err != nil {
		return &types.StorageError{Backend: s.Name(), Err: err}
	}

	s.logger.Info("JSON written", "path", s.path, "records", len(records))
	return nil
}

func (s *JSONStorage) Close() error {
	return nil
}

// writeAtomic writes via a temp file in the target directory and renames
// it over path.
func writeAtomic(path string, write func(*os.File) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}
