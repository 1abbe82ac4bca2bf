package model

import "time"

// ItemUpdate is a partial change to an item. Nil fields are left untouched.
type ItemUpdate struct {
	Name           *string    `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Quantity       *int       `json:"quantity,omitempty" validate:"omitempty,min=0"`
	Unit           *string    `json:"unit,omitempty" validate:"omitempty,max=50"`
	Category       *string    `json:"category,omitempty" validate:"omitempty,max=100"`
	ExpirationDate *time.Time `json:"expirationDate,omitempty"`
	IsExpired      *bool      `json:"isExpired,omitempty"`
	ImageURL       *string    `json:"imageUrl,omitempty" validate:"omitempty,url"`
	Barcode        *string    `json:"barcode,omitempty" validate:"omitempty,numeric,min=8,max=14"`
	Notes          *string    `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// Empty reports whether the update changes nothing.
func (u ItemUpdate) Empty() bool {
	return len(u.Fields()) == 0
}

// Fields returns the set fields keyed by document field name.
// expirationDate is returned as a time.Time.
func (u ItemUpdate) Fields() Fields {
	f := Fields{}
	if u.Name != nil {
		f["name"] = *u.Name
	}
	if u.Quantity != nil {
		f["quantity"] = *u.Quantity
	}
	if u.Unit != nil {
		f["unit"] = *u.Unit
	}
	if u.Category != nil {
		f["category"] = *u.Category
	}
	if u.ExpirationDate != nil {
		f["expirationDate"] = *u.ExpirationDate
	}
	if u.IsExpired != nil {
		f["isExpired"] = *u.IsExpired
	}
	if u.ImageURL != nil {
		f["imageUrl"] = *u.ImageURL
	}
	if u.Barcode != nil {
		f["barcode"] = *u.Barcode
	}
	if u.Notes != nil {
		f["notes"] = *u.Notes
	}
	return f
}
