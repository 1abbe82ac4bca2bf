package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"pantrypal-api/internal/clock"
	"pantrypal-api/internal/logging"
	"pantrypal-api/internal/model"
	"pantrypal-api/internal/pantry"
)

var (
	// ErrInvalidDate is returned for dates that are neither MM/DD/YYYY nor
	// YYYY-MM-DD, or that name a day that does not exist.
	ErrInvalidDate = errors.New("invalid date, use MM/DD/YYYY")

	// ErrNameRequired is returned when the item name is blank.
	ErrNameRequired = errors.New("item name is required")
)

// Quantity accepts either a JSON number or a string such as "3" or "500 g".
type Quantity string

// UnmarshalJSON keeps the raw text of numbers and strings alike.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*q = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*q = Quantity(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("quantity must be a number or string")
	}
	*q = Quantity(n.String())
	return nil
}

// UnmarshalTOML accepts TOML integers, floats and strings.
func (q *Quantity) UnmarshalTOML(v interface{}) error {
	switch v := v.(type) {
	case string:
		*q = Quantity(v)
	case int64:
		*q = Quantity(strconv.FormatInt(v, 10))
	case float64:
		*q = Quantity(strconv.FormatFloat(v, 'f', -1, 64))
	default:
		return fmt.Errorf("quantity must be a number or string")
	}
	return nil
}

// NewItem is the add-item form.
type NewItem struct {
	Name           string   `json:"name" yaml:"name" toml:"name" validate:"required,max=200"`
	Quantity       Quantity `json:"quantity" yaml:"quantity" toml:"quantity" validate:"max=20"`
	Unit           string   `json:"unit" yaml:"unit" toml:"unit" validate:"max=50"`
	Category       string   `json:"category" yaml:"category" toml:"category" validate:"max=100"`
	PurchaseDate   string   `json:"purchaseDate" yaml:"purchaseDate" toml:"purchaseDate"`
	ExpirationDate string   `json:"expirationDate" yaml:"expirationDate" toml:"expirationDate"`
	Barcode        string   `json:"barcode" yaml:"barcode" toml:"barcode" validate:"omitempty,numeric,min=8,max=14"`
	Notes          string   `json:"notes" yaml:"notes" toml:"notes" validate:"max=1000"`
	ImageURL       string   `json:"imageUrl" yaml:"imageUrl" toml:"imageUrl" validate:"omitempty,url"`
}

// ItemCreator stores new item documents.
type ItemCreator interface {
	Create(ctx context.Context, userID string, fields model.Fields) (string, error)
}

// ItemService builds item documents from the add-item form.
type ItemService struct {
	store ItemCreator
	clock clock.Clock
	log   logging.Logger
}

// NewItemService creates an item service.
func NewItemService(store ItemCreator, c clock.Clock, log logging.Logger) *ItemService {
	if c == nil {
		c = clock.Real{}
	}
	return &ItemService{store: store, clock: c, log: logging.For(log, "items")}
}

// Create stores the item for userID and returns its id.
func (s *ItemService) Create(ctx context.Context, userID string, in NewItem) (string, error) {
	fields, err := s.Document(in)
	if err != nil {
		return "", err
	}
	id, err := s.store.Create(ctx, userID, fields)
	if err != nil {
		return "", fmt.Errorf("creating item: %w", err)
	}
	s.log.Info("item added", "user_id", userID, "item_id", id)
	return id, nil
}

// Document converts the form to stored fields. The owner is stamped by
// the store.
func (s *ItemService) Document(in NewItem) (model.Fields, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	now := s.clock.Now()

	var expiration, purchase *time.Time
	if strings.TrimSpace(in.ExpirationDate) != "" {
		t, err := ParseDate(in.ExpirationDate, now)
		if err != nil {
			return nil, fmt.Errorf("expiration date: %w", err)
		}
		expiration = &t
	}
	if strings.TrimSpace(in.PurchaseDate) != "" {
		t, err := ParseDate(in.PurchaseDate, now)
		if err != nil {
			return nil, fmt.Errorf("purchase date: %w", err)
		}
		purchase = &t
	}

	stamp := model.TimestampFromTime(now)
	fields := model.Fields{
		"name":      name,
		"quantity":  pantry.ParseQuantity(string(in.Quantity)),
		"unit":      strings.TrimSpace(in.Unit),
		"category":  strings.TrimSpace(in.Category),
		"barcode":   strings.TrimSpace(in.Barcode),
		"notes":     in.Notes,
		"isExpired": expiration != nil && expiration.Before(now),
		"createdAt": stamp,
		"updatedAt": stamp,
	}
	if in.ImageURL != "" {
		fields["imageUrl"] = in.ImageURL
	}
	if expiration != nil {
		fields["expirationDate"] = model.TimestampFromTime(*expiration)
	}
	if purchase != nil {
		fields["purchaseDate"] = model.TimestampFromTime(*purchase)
	}
	return fields, nil
}

// ParseDate reads MM/DD/YYYY or YYYY-MM-DD. Two-digit years resolve to the
// current century unless that lands more than 50 years ahead of now.
func ParseDate(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}

	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return time.Time{}, ErrInvalidDate
	}
	month, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	day, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	yearText := strings.TrimSpace(parts[2])
	year, err3 := strconv.Atoi(yearText)
	if err1 != nil || err2 != nil || err3 != nil || year < 0 {
		return time.Time{}, ErrInvalidDate
	}
	if year < 100 {
		current := now.Year()
		year += current / 100 * 100
		if year > current+50 {
			year -= 100
		}
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow, so 02/30 would become March 1st.
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}
