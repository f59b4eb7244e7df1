// Package extract pulls product fields out of a parsed product page.
package extract

import (
	"fmt"
	"strings"
)

// Field names a product attribute read from a detail page.
type Field string

const (
	FieldTitle       Field = "title"
	FieldPrice       Field = "price"
	FieldRating      Field = "rating"
	FieldHighlights  Field = "highlights"
	FieldDescription Field = "description"
	FieldReviews     Field = "reviews"
)

// Fields lists every extracted field in record order.
var Fields = []Field{
	FieldTitle,
	FieldPrice,
	FieldRating,
	FieldHighlights,
	FieldDescription,
	FieldReviews,
}

// Selector locates one field. Multi fields join the text of every match
// with a single space; single fields read the first match only.
type Selector struct {
	Expr  string
	Multi bool
}

// Selectors is the CSS selector table for the current product page markup.
var Selectors = map[Field]Selector{
	FieldTitle:       {Expr: "span.VU-ZEz"},
	FieldPrice:       {Expr: "div.Nx9bqj.CxhGGd"},
	FieldRating:      {Expr: "div.XQDdHH"},
	FieldDescription: {Expr: `div.yN\+eNk.w9jEaj`},
	FieldHighlights:  {Expr: "li._7eSDEz", Multi: true},
	FieldReviews:     {Expr: "div.ZmyHeo", Multi: true},
}

// XPathSelectors is the same table expressed as XPath.
var XPathSelectors = map[Field]Selector{
	FieldTitle:       {Expr: classXPath("span", "VU-ZEz")},
	FieldPrice:       {Expr: classXPath("div", "Nx9bqj", "CxhGGd")},
	FieldRating:      {Expr: classXPath("div", "XQDdHH")},
	FieldDescription: {Expr: classXPath("div", "yN+eNk", "w9jEaj")},
	FieldHighlights:  {Expr: classXPath("li", "_7eSDEz"), Multi: true},
	FieldReviews:     {Expr: classXPath("div", "ZmyHeo"), Multi: true},
}

// classXPath matches tag elements carrying every one of classes.
func classXPath(tag string, classes ...string) string {
	preds := make([]string, len(classes))
	for i, c := range classes {
		preds[i] = fmt.Sprintf("contains(concat(' ', normalize-space(@class), ' '), ' %s ')", c)
	}
	return "//" + tag + "[" + strings.Join(preds, " and ") + "]"
}

// withOverrides copies base and replaces expressions named in overrides.
// Unknown keys are reported so typos in config do not pass silently.
func withOverrides(base map[Field]Selector, overrides map[string]string) (map[Field]Selector, error) {
	table := make(map[Field]Selector, len(base))
	for f, s := range base {
		table[f] = s
	}
	for name, expr := range overrides {
		f := Field(strings.ToLower(strings.TrimSpace(name)))
		s, ok := table[f]
		if !ok {
			return nil, fmt.Errorf("unknown selector field %q", name)
		}
		s.Expr = expr
		table[f] = s
	}
	return table, nil
}
