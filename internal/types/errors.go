package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for common failure modes.
var (
	ErrEmptyResponse      = errors.New("empty response body")
	ErrInvalidURL         = errors.New("invalid URL")
	ErrNoFetcher          = errors.New("no fetcher available for request")
	ErrProxyExhausted     = errors.New("all proxies exhausted")
	ErrDiscoveryExhausted = errors.New("no product links found after all attempts")
	ErrBlockedPage        = errors.New("search page served a captcha or block wall")
)

// FetchError wraps errors that occur during fetching. It is the transport
// error of the scrape pipeline: timeouts, DNS failures and non-2xx statuses.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
	Retryable  bool
	RetryAfter time.Duration // populated from Retry-After header on HTTP 429
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) IsRetryable() bool { return e.Retryable }

// ParseError wraps errors that occur while parsing a fetched page.
type ParseError struct {
	URL      string
	Selector string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Selector == "" {
		return fmt.Sprintf("parse error for %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("parse error for %s (selector=%q): %v", e.URL, e.Selector, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ExtractionError is raised when a field extractor hits an unexpected fault
// while locating or reading its element. A field that is simply absent is
// not an error; it yields the sentinel.
type ExtractionError struct {
	Field string
	Err   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("error fetching %s: %v", e.Field, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// SchemaValidationError reports dataset columns that are missing.
type SchemaValidationError struct {
	Path    string
	Missing []string
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("dataset %s is missing columns: %s", e.Path, strings.Join(e.Missing, ", "))
}

// ConfigurationError reports required settings that are not set.
type ConfigurationError struct {
	Stage   string
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: missing required settings: %s", e.Stage, strings.Join(e.Missing, ", "))
}

// StorageError wraps errors that occur during storage/export.
type StorageError struct {
	Backend string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s): %v", e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// PipelineError wraps errors that occur in the processing pipeline.
type PipelineError struct {
	Stage string
	Link  string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline error at stage %q for %s: %v", e.Stage, e.Link, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }
