package pantry

import (
	"reflect"
	"testing"
	"time"

	"pantrypal-api/internal/model"
)

func viewItems() []model.PantryItem {
	return []model.PantryItem{
		{ID: "1", Name: "banana", Category: "PRODUCE", Unit: "bunch", AddedAt: testNow.Add(-3 * time.Hour)},
		{ID: "2", Name: "Apple", Category: "PRODUCE", ExpirationDate: ptr(testNow.Add(day(5))), AddedAt: testNow.Add(-1 * time.Hour)},
		{ID: "3", Name: "Cheddar", Category: "DAIRY", Notes: "sharp, from the market", ExpirationDate: ptr(testNow.Add(day(1))), AddedAt: testNow.Add(-2 * time.Hour)},
		{ID: "4", Name: "Crackers", Category: "SNACKS", AddedAt: testNow},
	}
}

func ids(items []model.PantryItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestSearch(t *testing.T) {
	items := viewItems()

	tests := []struct {
		q    string
		want []string
	}{
		{"", []string{"1", "2", "3", "4"}},
		{"APPLE", []string{"2"}},
		{"produce", []string{"1", "2"}},
		{"bunch", []string{"1"}},
		{"market", []string{"3"}},
		{"zzz", []string{}},
	}
	for _, tt := range tests {
		if got := ids(Search(items, tt.q)); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Search(%q) = %v, want %v", tt.q, got, tt.want)
		}
	}
}

func TestSortItems(t *testing.T) {
	items := viewItems()

	tests := []struct {
		by        SortKey
		ascending bool
		want      []string
	}{
		{SortByName, true, []string{"2", "1", "3", "4"}},
		{SortByName, false, []string{"4", "3", "1", "2"}},
		{SortByCategory, true, []string{"3", "1", "2", "4"}},
		{SortByExpiration, true, []string{"3", "2", "1", "4"}},
		{SortByExpiration, false, []string{"4", "1", "2", "3"}},
		{SortByRecent, true, []string{"4", "2", "3", "1"}},
	}
	for _, tt := range tests {
		got := ids(SortItems(items, tt.by, tt.ascending))
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SortItems(%s, asc=%v) = %v, want %v", tt.by, tt.ascending, got, tt.want)
		}
	}

	if ids(items)[0] != "1" {
		t.Error("SortItems must not modify its input")
	}
}

func TestParseSortKey(t *testing.T) {
	if k, err := ParseSortKey(""); err != nil || k != SortByRecent {
		t.Errorf("empty key = %q, %v", k, err)
	}
	if k, err := ParseSortKey("Expiration"); err != nil || k != SortByExpiration {
		t.Errorf("Expiration = %q, %v", k, err)
	}
	if _, err := ParseSortKey("price"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestGroupByCategory(t *testing.T) {
	sections := GroupByCategory(viewItems())

	if len(sections) != 3 {
		t.Fatalf("got %d sections, want 3", len(sections))
	}
	if sections[0].Category != "PRODUCE" || len(sections[0].Items) != 2 {
		t.Errorf("first section = %+v", sections[0])
	}
	if sections[1].Category != "DAIRY" || sections[2].Category != "SNACKS" {
		t.Errorf("section order = %s, %s", sections[1].Category, sections[2].Category)
	}
}
