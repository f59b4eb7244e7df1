package extract

import (
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"

	"github.com/IshaanNene/ShopStalk/internal/types"
)

var errNilDocument = errors.New("nil document")

// XPathExtractor extracts fields with htmlquery. It is useful when the site
// serves markup where class-based CSS matching is awkward.
type XPathExtractor struct {
	table map[Field]Selector
}

// NewXPathExtractor returns an extractor over the XPath table.
func NewXPathExtractor(overrides map[string]string) (*XPathExtractor, error) {
	table, err := withOverrides(XPathSelectors, overrides)
	if err != nil {
		return nil, err
	}
	return &XPathExtractor{table: table}, nil
}

func (e *XPathExtractor) Title(doc *goquery.Document) (string, error) {
	return e.extract(doc, FieldTitle)
}

func (e *XPathExtractor) Price(doc *goquery.Document) (string, error) {
	return e.extract(doc, FieldPrice)
}

func (e *XPathExtractor) Rating(doc *goquery.Document) (string, error) {
	return e.extract(doc, FieldRating)
}

func (e *XPathExtractor) Description(doc *goquery.Document) (string, error) {
	return e.extract(doc, FieldDescription)
}

func (e *XPathExtractor) Highlights(doc *goquery.Document) (string, error) {
	return e.extract(doc, FieldHighlights)
}

func (e *XPathExtractor) Reviews(doc *goquery.Document) (string, error) {
	return e.extract(doc, FieldReviews)
}

func (e *XPathExtractor) extract(doc *goquery.Document, field Field) (string, error) {
	return guard(field, func() (string, error) {
		if doc == nil || len(doc.Nodes) == 0 {
			return types.Sentinel, &types.ExtractionError{Field: string(field), Err: errNilDocument}
		}
		sel := e.table[field]

		nodes, err := htmlquery.QueryAll(doc.Nodes[0], sel.Expr)
		if err != nil {
			return types.Sentinel, &types.ExtractionError{Field: string(field), Err: err}
		}
		if !sel.Multi && len(nodes) > 1 {
			nodes = nodes[:1]
		}
		texts := make([]string, 0, len(nodes))
		for _, n := range nodes {
			texts = append(texts, strings.TrimSpace(htmlquery.InnerText(n)))
		}
		return finish(texts, sel.Multi), nil
	})
}
