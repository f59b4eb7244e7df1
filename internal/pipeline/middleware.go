package pipeline

import (
	"strings"
	"sync"

	"github.com/IshaanNene/ShopStalk/internal/types"
)

// TrimMiddleware trims whitespace from every field and turns blank fields
// into the sentinel.
type TrimMiddleware struct{}

func (m *TrimMiddleware) Name() string { return "trim" }

func (m *TrimMiddleware) Process(rec *types.ProductRecord) (*types.ProductRecord, error) {
	for _, col := range types.Columns {
		if col == types.ColLink {
			continue
		}
		f := rec.Field(col)
		*f = strings.TrimSpace(*f)
		if *f == "" {
			*f = types.Sentinel
		}
	}
	rec.Link = strings.TrimSpace(rec.Link)
	return rec, nil
}

// RequiredTitleMiddleware drops records whose title is the sentinel.
// A product page without a title is almost always a removed listing or a
// block page.
type RequiredTitleMiddleware struct{}

func (m *RequiredTitleMiddleware) Name() string { return "required_title" }

func (m *RequiredTitleMiddleware) Process(rec *types.ProductRecord) (*types.ProductRecord, error) {
	if !rec.HasTitle() {
		return nil, nil
	}
	return rec, nil
}

// ReviewSanitizeMiddleware cleans the reviews field with SanitizeReviews.
type ReviewSanitizeMiddleware struct{}

func (m *ReviewSanitizeMiddleware) Name() string { return "review_sanitize" }

func (m *ReviewSanitizeMiddleware) Process(rec *types.ProductRecord) (*types.ProductRecord, error) {
	rec.Reviews = SanitizeReviews(rec.Reviews)
	return rec, nil
}

// DedupMiddleware drops records whose link was already seen.
type DedupMiddleware struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewDedupMiddleware() *DedupMiddleware {
	return &DedupMiddleware{seen: make(map[string]struct{})}
}

func (m *DedupMiddleware) Name() string { return "dedup" }

func (m *DedupMiddleware) Process(rec *types.ProductRecord) (*types.ProductRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.seen[rec.Link]; exists {
		return nil, nil
	}
	m.seen[rec.Link] = struct{}{}
	return rec, nil
}
