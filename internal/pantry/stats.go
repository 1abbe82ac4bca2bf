package pantry

import (
	"sort"
	"time"

	"pantrypal-api/internal/model"
)

const (
	// ExpiringSoonWindow is how far ahead an expiration counts as "soon".
	ExpiringSoonWindow = 7 * 24 * time.Hour

	// LowQuantityThreshold is the largest quantity counted as low stock.
	LowQuantityThreshold = 2

	// RecentlyAddedLimit caps the recently added list.
	RecentlyAddedLimit = 5
)

// Aggregate derives summary statistics from items relative to now.
// It has no side effects and returns the same stats for the same input.
func Aggregate(items []model.PantryItem, now time.Time) model.PantryStats {
	stats := model.EmptyStats()
	stats.TotalItems = len(items)

	horizon := now.Add(ExpiringSoonWindow)
	seen := make(map[string]struct{})

	for _, item := range items {
		switch {
		case item.IsExpired:
			stats.ExpiredCount++
		case item.ExpirationDate != nil && !item.ExpirationDate.After(horizon):
			stats.ExpiringSoonCount++
		}

		if item.Quantity <= LowQuantityThreshold {
			stats.LowQuantityCount++
		}

		if _, ok := seen[item.Category]; !ok {
			seen[item.Category] = struct{}{}
			stats.Categories = append(stats.Categories, item.Category)
		}
	}
	sort.Strings(stats.Categories)

	stats.RecentlyAdded = recentlyAdded(items, RecentlyAddedLimit)
	return stats
}

// recentlyAdded returns up to limit items, newest addedAt first.
// Ties keep their input order.
func recentlyAdded(items []model.PantryItem, limit int) []model.PantryItem {
	sorted := make([]model.PantryItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].AddedAt.After(sorted[j].AddedAt)
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}
