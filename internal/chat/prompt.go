package chat

import (
	"fmt"
	"strings"

	"github.com/IshaanNene/ShopStalk/internal/types"
	"github.com/IshaanNene/ShopStalk/internal/vectorstore"
)

// CustomerSupportPrompt is filled with {context} and {question}.
const CustomerSupportPrompt = `
You are an AI-powered Customer Support Assistant specializing in **product recommendations** and **troubleshooting** for an ecommerce platform.

Use the provided **product details, customer feedback, and contextual information** to generate **clear, relevant, and engaging responses** to customer inquiries.

CONTEXT:
{context}

CUSTOMER QUERY:
{question}

YOUR RESPONSE:
Provide a helpful, concise answer based on the product details and reviews. "Not more than 250 words."
If the inquiry involves product selection, highlight **key benefits** and **customer insights**.
If troubleshooting, suggest **step-by-step solutions** or direct the user to relevant resources.

Maintain a **friendly, professional tone**, ensuring the customer feels valued and informed.
`

// BuildPrompt fills the template. Placeholders inside context or question
// are left as-is.
func BuildPrompt(context, question string) string {
	r := strings.NewReplacer("{context}", context, "{question}", question)
	return r.Replace(CustomerSupportPrompt)
}

var contextFields = []struct {
	key, label string
}{
	{types.ColTitle, "Product"},
	{types.ColPrice, "Price"},
	{types.ColRating, "Rating"},
	{types.ColHighlights, "Highlights"},
	{types.ColDescription, "Description"},
	{types.ColLink, "Link"},
}

// FormatContext renders retrieved documents as numbered blocks.
func FormatContext(docs []vectorstore.ScoredDocument) string {
	if len(docs) == 0 {
		return "No matching products found."
	}
	var b strings.Builder
	for i, d := range docs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d]\n", i+1)
		for _, f := range contextFields {
			if v := d.Metadata[f.key]; v != "" {
				fmt.Fprintf(&b, "%s: %s\n", f.label, v)
			}
		}
		fmt.Fprintf(&b, "Reviews: %s", d.PageContent)
	}
	return b.String()
}
