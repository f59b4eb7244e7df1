package dataset

import (
	"context"
	"testing"

	"github.com/IshaanNene/ShopStalk/internal/types"
)

func product(link, price, rating string) types.ProductRecord {
	r := types.NewProductRecord(link)
	r.Title = "Product " + link
	r.Price = price
	r.Rating = rating
	return r
}

func TestCompare(t *testing.T) {
	prev := []types.ProductRecord{
		product("/p/1", "₹10,000", "4.1"),
		product("/p/2", "₹20,000", "4.5"),
		product("/p/3", "₹30,000", types.Sentinel),
	}
	next := []types.ProductRecord{
		product("/p/4", "₹5,000", "3.9"),
		product("/p/1", "₹9,499", "4.2"),
		product("/p/3", "₹30,000", types.Sentinel),
	}

	want := []Change{
		{Link: "/p/4", Title: "Product /p/4", Type: ChangeAdded},
		{Link: "/p/1", Title: "Product /p/1", Type: ChangeModified, Field: types.ColPrice, OldValue: "₹10,000", NewValue: "₹9,499"},
		{Link: "/p/1", Title: "Product /p/1", Type: ChangeModified, Field: types.ColRating, OldValue: "4.1", NewValue: "4.2"},
		{Link: "/p/2", Title: "Product /p/2", Type: ChangeRemoved},
	}

	got := Compare(prev, next)
	if len(got) != len(want) {
		t.Fatalf("got %d changes, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("change %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestCompareIdentical(t *testing.T) {
	records := []types.ProductRecord{product("/p/1", "₹1", "4")}
	if got := Compare(records, records); len(got) != 0 {
		t.Errorf("expected no changes, got %+v", got)
	}
	if got := Compare(nil, nil); len(got) != 0 {
		t.Errorf("expected no changes for empty datasets, got %+v", got)
	}
}

func TestFinalizeReportsChangesSincePreviousRun(t *testing.T) {
	a := New(testConfig(t), testLogger)
	defer a.Close()

	first, err := a.Finalize(context.Background(), []types.ProductRecord{product("/p/1", "₹100", "4.0")})
	if err != nil {
		t.Fatalf("first Finalize: %v", err)
	}
	if len(first.Changes) != 0 {
		t.Errorf("first run should report no changes, got %+v", first.Changes)
	}

	second, err := a.Finalize(context.Background(), []types.ProductRecord{product("/p/1", "₹90", "4.0")})
	if err != nil {
		t.Fatalf("second Finalize: %v", err)
	}
	if len(second.Changes) != 1 {
		t.Fatalf("expected 1 change, got %+v", second.Changes)
	}
	c := second.Changes[0]
	if c.Type != ChangeModified || c.Field != types.ColPrice || c.OldValue != "₹100" || c.NewValue != "₹90" {
		t.Errorf("unexpected change %+v", c)
	}
}
