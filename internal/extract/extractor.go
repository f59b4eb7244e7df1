package extract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/ShopStalk/internal/types"
)

// DocumentExtractor reads each product field from a parsed page. A field
// that is absent yields types.Sentinel with a nil error; only unexpected
// faults return a *types.ExtractionError.
type DocumentExtractor interface {
	Title(doc *goquery.Document) (string, error)
	Price(doc *goquery.Document) (string, error)
	Rating(doc *goquery.Document) (string, error)
	Description(doc *goquery.Document) (string, error)
	Highlights(doc *goquery.Document) (string, error)
	Reviews(doc *goquery.Document) (string, error)
}

// New returns the extractor for strategy ("css" or "xpath") with the given
// selector overrides applied.
func New(strategy string, overrides map[string]string) (DocumentExtractor, error) {
	switch strategy {
	case "", "css":
		return NewCSSExtractor(overrides)
	case "xpath":
		return NewXPathExtractor(overrides)
	default:
		return nil, fmt.Errorf("unknown extraction strategy %q", strategy)
	}
}

// Apply runs every field extractor against doc and assembles a record for
// link. Fields whose extractor failed are left as types.Sentinel and their
// errors are joined into the returned error.
func Apply(ex DocumentExtractor, doc *goquery.Document, link string) (types.ProductRecord, error) {
	rec := types.NewProductRecord(link)

	steps := []struct {
		dst *string
		fn  func(*goquery.Document) (string, error)
	}{
		{&rec.Title, ex.Title},
		{&rec.Price, ex.Price},
		{&rec.Rating, ex.Rating},
		{&rec.Highlights, ex.Highlights},
		{&rec.Description, ex.Description},
		{&rec.Reviews, ex.Reviews},
	}

	var errs []error
	for _, s := range steps {
		v, err := s.fn(doc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		*s.dst = v
	}
	return rec, errors.Join(errs...)
}

// finish turns matched texts into a field value.
func finish(texts []string, multi bool) string {
	if len(texts) == 0 {
		return types.Sentinel
	}
	var v string
	if multi {
		v = strings.TrimSpace(strings.Join(texts, " "))
	} else {
		v = strings.TrimSpace(texts[0])
	}
	if v == "" {
		return types.Sentinel
	}
	return v
}

// guard converts a panic inside fn into an ExtractionError for field.
func guard(field Field, fn func() (string, error)) (v string, err error) {
	defer func() {
		if r := recover(); r != nil {
			v = types.Sentinel
			err = &types.ExtractionError{Field: string(field), Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	return fn()
}
