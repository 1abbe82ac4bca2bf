package model

import "time"

// DefaultCategory is assigned to items that arrive without a usable category.
const DefaultCategory = "UNCATEGORIZED"

// PantryItem is one grocery item owned by one user, in canonical form.
type PantryItem struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Quantity       int        `json:"quantity"`
	Unit           string     `json:"unit,omitempty"`
	Category       string     `json:"category"`
	ExpirationDate *time.Time `json:"expirationDate,omitempty"`
	IsExpired      bool       `json:"isExpired"`
	AddedAt        time.Time  `json:"addedAt"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      *time.Time `json:"updatedAt,omitempty"`
	ImageURL       string     `json:"imageUrl,omitempty"`
	Barcode        string     `json:"barcode,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	UserID         string     `json:"userId,omitempty"`
}

// PantryStats is derived from a collection of items and never persisted.
type PantryStats struct {
	TotalItems        int          `json:"totalItems"`
	ExpiredCount      int          `json:"expiredCount"`
	ExpiringSoonCount int          `json:"expiringSoonCount"`
	LowQuantityCount  int          `json:"lowQuantityCount"`
	Categories        []string     `json:"categories"`
	RecentlyAdded     []PantryItem `json:"recentlyAdded"`
}

// EmptyStats returns the all-zero baseline.
func EmptyStats() PantryStats {
	return PantryStats{
		Categories:    []string{},
		RecentlyAdded: []PantryItem{},
	}
}
