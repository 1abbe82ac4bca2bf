package pantry

import (
	"fmt"
	"sort"
	"strings"

	"pantrypal-api/internal/model"
)

// SortKey names an inventory ordering.
type SortKey string

const (
	SortByName       SortKey = "name"
	SortByCategory   SortKey = "category"
	SortByExpiration SortKey = "expiration"
	SortByRecent     SortKey = "recent"
)

// ParseSortKey validates a sort key. An empty key means SortByRecent.
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return SortByRecent, nil
	case SortByName, SortByCategory, SortByExpiration, SortByRecent:
		return k, nil
	default:
		return "", fmt.Errorf("unknown sort key %q", s)
	}
}

// Search returns the items whose name, category, unit or notes contain q,
// ignoring case. An empty query returns items unchanged.
func Search(items []model.PantryItem, q string) []model.PantryItem {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return items
	}
	out := make([]model.PantryItem, 0, len(items))
	for _, item := range items {
		if matches(item, q) {
			out = append(out, item)
		}
	}
	return out
}

func matches(item model.PantryItem, q string) bool {
	for _, field := range []string{item.Name, item.Category, item.Unit, item.Notes} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

// SortItems returns a sorted copy of items. The descending order of a key
// is the exact reverse of its ascending order.
func SortItems(items []model.PantryItem, by SortKey, ascending bool) []model.PantryItem {
	out := make([]model.PantryItem, len(items))
	copy(out, items)

	var less func(a, b model.PantryItem) bool
	switch by {
	case SortByName:
		less = func(a, b model.PantryItem) bool {
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		}
	case SortByCategory:
		less = func(a, b model.PantryItem) bool { return a.Category < b.Category }
	case SortByExpiration:
		// Items without a date go last.
		less = func(a, b model.PantryItem) bool {
			switch {
			case a.ExpirationDate == nil:
				return false
			case b.ExpirationDate == nil:
				return true
			}
			return a.ExpirationDate.Before(*b.ExpirationDate)
		}
	default:
		less = func(a, b model.PantryItem) bool { return a.AddedAt.After(b.AddedAt) }
	}

	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	if !ascending {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

// Section is one category group of the inventory.
type Section struct {
	Category string             `json:"category"`
	Items    []model.PantryItem `json:"items"`
}

// GroupByCategory splits items into sections in first-seen category order.
func GroupByCategory(items []model.PantryItem) []Section {
	index := make(map[string]int)
	var sections []Section
	for _, item := range items {
		i, ok := index[item.Category]
		if !ok {
			i = len(sections)
			index[item.Category] = i
			sections = append(sections, Section{Category: item.Category})
		}
		sections[i].Items = append(sections[i].Items, item)
	}
	return sections
}
