// Package barcode looks up packaged food products by EAN/UPC code.
package barcode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"pantrypal-api/internal/cache"
	"pantrypal-api/internal/logging"

	"github.com/go-resty/resty/v2"
)

const (
	// DefaultBaseURL is the public Open Food Facts API.
	DefaultBaseURL = "https://world.openfoodfacts.org"

	defaultName     = "Unknown Product"
	defaultCategory = "Uncategorized"
	cacheKeyPrefix  = "pantrypal:barcode:"
)

var (
	// ErrInvalidBarcode is returned for codes that are not 8 to 14 digits.
	ErrInvalidBarcode = errors.New("barcode must be 8 to 14 digits")

	// ErrProductNotFound is returned when the database has no such product.
	ErrProductNotFound = errors.New("product not found")
)

// Product is the subset of product data used to prefill an item.
type Product struct {
	Barcode  string `json:"barcode"`
	Name     string `json:"name"`
	Category string `json:"category"`
	ImageURL string `json:"imageUrl,omitempty"`
	// Quantity is the raw package size, e.g. "500 g".
	Quantity string `json:"quantity,omitempty"`
	// Amount and Unit split Quantity on its first space.
	Amount string `json:"amount,omitempty"`
	Unit   string `json:"unit,omitempty"`
}

// Config configures a Client.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	CacheTTL  time.Duration
	UserAgent string
}

// Client queries the Open Food Facts product API.
type Client struct {
	http  *resty.Client
	cache cache.Cache
	ttl   time.Duration
	log   logging.Logger
}

// NewClient creates a lookup client. A nil cache disables caching.
func NewClient(cfg Config, c cache.Cache, log logging.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 24 * time.Hour
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "pantrypal-api/1.0"
	}
	rc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "application/json")

	return &Client{
		http:  rc,
		cache: c,
		ttl:   cfg.CacheTTL,
		log:   logging.For(log, "barcode"),
	}
}

// Lookup returns the product for code. Found products are cached;
// misses and failures are not.
func (c *Client) Lookup(ctx context.Context, code string) (*Product, error) {
	code = strings.TrimSpace(code)
	if !Valid(code) {
		return nil, ErrInvalidBarcode
	}

	if c.cache == nil {
		return c.fetch(ctx, code)
	}

	raw, err := c.cache.GetOrSet(ctx, cacheKeyPrefix+code, c.ttl, func() ([]byte, error) {
		p, err := c.fetch(ctx, code)
		if err != nil {
			return nil, err
		}
		return json.Marshal(p)
	})
	if err != nil {
		return nil, err
	}
	var p Product
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decoding cached product: %w", err)
	}
	return &p, nil
}

// Valid reports whether code looks like an EAN-8 to GTIN-14 barcode.
func Valid(code string) bool {
	if len(code) < 8 || len(code) > 14 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

type offResponse struct {
	Status  int `json:"status"`
	Product *struct {
		ProductName    string   `json:"product_name"`
		CategoriesTags []string `json:"categories_tags"`
		ImageURL       string   `json:"image_url"`
		Quantity       string   `json:"quantity"`
	} `json:"product"`
}

func (c *Client) fetch(ctx context.Context, code string) (*Product, error) {
	c.log.Debug("fetching product", "barcode", code)

	var body offResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("code", code).
		SetResult(&body).
		ForceContentType("application/json").
		Get("/api/v0/product/{code}.json")
	if err != nil {
		return nil, fmt.Errorf("product lookup failed: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, ErrProductNotFound
	}
	if resp.IsError() {
		return nil, fmt.Errorf("product lookup failed with status %d", resp.StatusCode())
	}

	if body.Status != 1 || body.Product == nil {
		c.log.Info("product not found", "barcode", code)
		return nil, ErrProductNotFound
	}

	src := body.Product
	p := &Product{
		Barcode:  code,
		Name:     strings.TrimSpace(src.ProductName),
		Category: categoryFromTags(src.CategoriesTags),
		ImageURL: src.ImageURL,
		Quantity: strings.TrimSpace(src.Quantity),
	}
	if p.Name == "" {
		p.Name = defaultName
	}
	p.Amount, p.Unit = splitQuantity(p.Quantity)
	c.log.Info("product found", "barcode", code, "name", p.Name)
	return p, nil
}

// categoryFromTags turns "en:plant-based-foods" into "plant based foods".
func categoryFromTags(tags []string) string {
	if len(tags) == 0 {
		return defaultCategory
	}
	_, name, ok := strings.Cut(tags[0], ":")
	if !ok || name == "" {
		return defaultCategory
	}
	return strings.ReplaceAll(name, "-", " ")
}

func splitQuantity(q string) (amount, unit string) {
	if q == "" {
		return "", ""
	}
	parts := strings.Split(q, " ")
	amount = parts[0]
	if len(parts) > 1 {
		unit = parts[1]
	}
	return amount, unit
}
