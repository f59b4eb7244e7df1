package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/IshaanNene/ShopStalk/internal/types"
)

type cssField struct {
	sel     Selector
	matcher goquery.Matcher
	err     error
}

// CSSExtractor extracts fields with goquery using the CSS selector table.
type CSSExtractor struct {
	fields map[Field]cssField
}

// NewCSSExtractor compiles the CSS table. A selector that does not compile
// is not fatal here; every extraction of that field reports it.
func NewCSSExtractor(overrides map[string]string) (*CSSExtractor, error) {
	table, err := withOverrides(Selectors, overrides)
	if err != nil {
		return nil, err
	}
	e := &CSSExtractor{fields: make(map[Field]cssField, len(table))}
	for f, s := range table {
		cf := cssField{sel: s}
		if m, err := cascadia.Compile(s.Expr); err != nil {
			cf.err = err
		} else {
			cf.matcher = m
		}
		e.fields[f] = cf
	}
	return e, nil
}

func (e *CSSExtractor) Title(doc *goquery.Document) (string, error) {
	return e.extract(doc, FieldTitle)
}

func (e *CSSExtractor) Price(doc *goquery.Document) (string, error) {
	return e.extract(doc, FieldPrice)
}

func (e *CSSExtractor) Rating(doc *goquery.Document) (string, error) {
	return e.extract(doc, FieldRating)
}

func (e *CSSExtractor) Description(doc *goquery.Document) (string, error) {
	return e.extract(doc, FieldDescription)
}

func (e *CSSExtractor) Highlights(doc *goquery.Document) (string, error) {
	return e.extract(doc, FieldHighlights)
}

func (e *CSSExtractor) Reviews(doc *goquery.Document) (string, error) {
	return e.extract(doc, FieldReviews)
}

func (e *CSSExtractor) extract(doc *goquery.Document, field Field) (string, error) {
	return guard(field, func() (string, error) {
		cf := e.fields[field]
		if cf.err != nil {
			return types.Sentinel, &types.ExtractionError{Field: string(field), Err: cf.err}
		}
		if doc == nil {
			return types.Sentinel, &types.ExtractionError{Field: string(field), Err: errNilDocument}
		}

		sel := doc.FindMatcher(cf.matcher)
		if !cf.sel.Multi {
			sel = sel.First()
		}
		texts := make([]string, 0, sel.Length())
		sel.Each(func(_ int, s *goquery.Selection) {
			texts = append(texts, strings.TrimSpace(s.Text()))
		})
		return finish(texts, cf.sel.Multi), nil
	})
}
