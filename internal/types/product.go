package types

// Sentinel is the placeholder written for any field that could not be
// extracted or was empty after cleaning.
const Sentinel = "NA"

// Column names of the product dataset, in output order.
const (
	ColTitle       = "product_title"
	ColPrice       = "product_price"
	ColRating      = "product_rating"
	ColHighlights  = "product_highlights"
	ColDescription = "product_description"
	ColReviews     = "product_reviews"
	ColLink        = "product_link"
)

// Columns is the fixed dataset schema.
var Columns = []string{
	ColTitle,
	ColPrice,
	ColRating,
	ColHighlights,
	ColDescription,
	ColReviews,
	ColLink,
}

// ProductRecord is one scraped product. Every field is either real text or
// Sentinel, never empty.
type ProductRecord struct {
	Title       string `csv:"product_title" json:"product_title" bson:"product_title"`
	Price       string `csv:"product_price" json:"product_price" bson:"product_price"`
	Rating      string `csv:"product_rating" json:"product_rating" bson:"product_rating"`
	Highlights  string `csv:"product_highlights" json:"product_highlights" bson:"product_highlights"`
	Description string `csv:"product_description" json:"product_description" bson:"product_description"`
	Reviews     string `csv:"product_reviews" json:"product_reviews" bson:"product_reviews"`
	Link        string `csv:"product_link" json:"product_link" bson:"product_link"`
}

// NewProductRecord returns a record for link with every other field set to
// Sentinel.
func NewProductRecord(link string) ProductRecord {
	return ProductRecord{
		Title:       Sentinel,
		Price:       Sentinel,
		Rating:      Sentinel,
		Highlights:  Sentinel,
		Description: Sentinel,
		Reviews:     Sentinel,
		Link:        link,
	}
}

// Values returns the record's fields in Columns order.
func (p ProductRecord) Values() []string {
	return []string{p.Title, p.Price, p.Rating, p.Highlights, p.Description, p.Reviews, p.Link}
}

// Field returns a pointer to the field stored under the given column name,
// or nil for unknown columns.
func (p *ProductRecord) Field(column string) *string {
	switch column {
	case ColTitle:
		return &p.Title
	case ColPrice:
		return &p.Price
	case ColRating:
		return &p.Rating
	case ColHighlights:
		return &p.Highlights
	case ColDescription:
		return &p.Description
	case ColReviews:
		return &p.Reviews
	case ColLink:
		return &p.Link
	}
	return nil
}

// HasTitle reports whether the record carries a real title.
func (p ProductRecord) HasTitle() bool {
	return p.Title != "" && p.Title != Sentinel
}
