package pipeline

import (
	"log/slog"

	"github.com/IshaanNene/ShopStalk/internal/types"
)

// Middleware processes a record and returns the (possibly modified) record.
// Return nil to drop the record from the pipeline.
type Middleware interface {
	// Name returns the middleware's identifier.
	Name() string

	// Process transforms a record. Return nil to drop it.
	Process(rec *types.ProductRecord) (*types.ProductRecord, error)
}

// Pipeline chains middleware processors together.
type Pipeline struct {
	middlewares []Middleware
	logger      *slog.Logger
}

// New creates a new Pipeline.
func New(logger *slog.Logger) *Pipeline {
	return &Pipeline{
		logger: logger.With("component", "pipeline"),
	}
}

// Use adds a middleware to the pipeline chain.
func (p *Pipeline) Use(mw Middleware) {
	p.middlewares = append(p.middlewares, mw)
	p.logger.Debug("middleware added", "name", mw.Name(), "position", len(p.middlewares))
}

// Process runs the record through all middleware in order.
func (p *Pipeline) Process(rec *types.ProductRecord) (*types.ProductRecord, error) {
	current := rec

	for _, mw := range p.middlewares {
		result, err := mw.Process(current)
		if err != nil {
			return nil, &types.PipelineError{
				Stage: mw.Name(),
				Link:  current.Link,
				Err:   err,
			}
		}
		if result == nil {
			p.logger.Debug("record dropped", "stage", mw.Name(), "link", rec.Link)
			return nil, nil
		}
		current = result
	}

	return current, nil
}

// ProcessAll runs every record through the chain, keeping input order.
// Records are copied, so the input slice is left untouched.
func (p *Pipeline) ProcessAll(records []types.ProductRecord) (kept []types.ProductRecord, dropped int, err error) {
	kept = make([]types.ProductRecord, 0, len(records))
	for i := range records {
		rec := records[i]
		out, err := p.Process(&rec)
		if err != nil {
			return nil, 0, err
		}
		if out == nil {
			dropped++
			continue
		}
		kept = append(kept, *out)
	}
	return kept, dropped, nil
}

// Len returns the number of middleware in the chain.
func (p *Pipeline) Len() int {
	return len(p.middlewares)
}

// NewDatasetPipeline returns the chain applied to scraped records before
// they are persisted: normalize blanks, drop untitled records, then clean
// review text. dedup additionally drops repeated links.
func NewDatasetPipeline(logger *slog.Logger, dedup bool) *Pipeline {
	p := New(logger)
	p.Use(&TrimMiddleware{})
	p.Use(&RequiredTitleMiddleware{})
	if dedup {
		p.Use(NewDedupMiddleware())
	}
	p.Use(&ReviewSanitizeMiddleware{})
	return p
}
