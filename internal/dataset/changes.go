package dataset

import (
	"github.com/IshaanNene/ShopStalk/internal/types"
)

// ChangeType identifies what kind of change occurred.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeRemoved  ChangeType = "removed"
)

// Change is a difference between the previous dataset and the new one,
// keyed by product link.
type Change struct {
	Link     string     `json:"link"`
	Title    string     `json:"title"`
	Type     ChangeType `json:"type"`
	Field    string     `json:"field,omitempty"`
	OldValue string     `json:"old_value,omitempty"`
	NewValue string     `json:"new_value,omitempty"`
}

// trackedColumns are compared for products present in both datasets.
var trackedColumns = []string{types.ColPrice, types.ColRating}

// Compare reports products added, removed, or whose price or rating moved.
// Added and modified entries follow next's order; removed entries follow
// prev's order and come last.
func Compare(prev, next []types.ProductRecord) []Change {
	old := make(map[string]types.ProductRecord, len(prev))
	for _, r := range prev {
		old[r.Link] = r
	}
	seen := make(map[string]bool, len(next))

	var changes []Change
	for _, r := range next {
		seen[r.Link] = true
		before, ok := old[r.Link]
		if !ok {
			changes = append(changes, Change{Link: r.Link, Title: r.Title, Type: ChangeAdded})
			continue
		}
		for _, col := range trackedColumns {
			o, n := *before.Field(col), *r.Field(col)
			if o != n {
				changes = append(changes, Change{
					Link:     r.Link,
					Title:    r.Title,
					Type:     ChangeModified,
					Field:    col,
					OldValue: o,
					NewValue: n,
				})
			}
		}
	}
	for _, r := range prev {
		if !seen[r.Link] {
			seen[r.Link] = true
			changes = append(changes, Change{Link: r.Link, Title: r.Title, Type: ChangeRemoved})
		}
	}
	return changes
}
