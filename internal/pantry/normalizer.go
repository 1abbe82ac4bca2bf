package pantry

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"pantrypal-api/internal/clock"
	"pantrypal-api/internal/logging"
	"pantrypal-api/internal/model"
)

// Discard reasons reported by the normalizer.
var (
	ErrNoData      = errors.New("document has no data")
	ErrInvalidName = errors.New("name is missing or not a string")
	ErrDuplicateID = errors.New("duplicate document id in batch")
)

// Result is the outcome of normalizing one document: either an item or
// the reason the document was discarded.
type Result struct {
	Item      model.PantryItem
	Discarded error
}

// OK reports whether the document produced an item.
func (r Result) OK() bool { return r.Discarded == nil }

// Rejection records a discarded document.
type Rejection struct {
	ID     string
	Reason error
}

// Report aggregates the results of a batch. Items keep input order.
type Report struct {
	Items    []model.PantryItem
	Rejected []Rejection
}

// Normalizer converts raw documents into canonical pantry items.
type Normalizer struct {
	clock clock.Clock
	log   logging.Logger
}

// NewNormalizer creates a normalizer. The clock supplies "now" for
// derived expiry and for missing creation times.
func NewNormalizer(c clock.Clock, log logging.Logger) *Normalizer {
	if c == nil {
		c = clock.Real{}
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Normalizer{clock: c, log: log}
}

// Normalize converts a single document.
func (n *Normalizer) Normalize(doc model.Document) Result {
	res := normalize(doc, n.clock.Now())
	n.logResult(doc.ID, res)
	return res
}

// NormalizeAll converts a batch. A malformed document never fails the batch;
// it is logged and listed in Report.Rejected.
func (n *Normalizer) NormalizeAll(docs []model.Document) Report {
	now := n.clock.Now()
	rep := Report{Items: make([]model.PantryItem, 0, len(docs))}
	seen := make(map[string]struct{}, len(docs))

	for _, doc := range docs {
		res := normalize(doc, now)
		if res.OK() {
			if _, dup := seen[doc.ID]; dup {
				res = Result{Discarded: ErrDuplicateID}
			} else {
				seen[doc.ID] = struct{}{}
			}
		}
		n.logResult(doc.ID, res)
		if !res.OK() {
			rep.Rejected = append(rep.Rejected, Rejection{ID: doc.ID, Reason: res.Discarded})
			continue
		}
		rep.Items = append(rep.Items, res.Item)
	}
	return rep
}

func (n *Normalizer) logResult(id string, res Result) {
	if res.OK() {
		n.log.Debug("item normalized", "id", id, "name", res.Item.Name, "category", res.Item.Category)
		return
	}
	n.log.Warn("item discarded", "id", id, "reason", res.Discarded)
}

func normalize(doc model.Document, now time.Time) Result {
	data := doc.Data
	if data == nil {
		return Result{Discarded: ErrNoData}
	}

	name, ok := data["name"].(string)
	if !ok || strings.TrimSpace(name) == "" {
		return Result{Discarded: ErrInvalidName}
	}

	item := model.PantryItem{
		ID:       doc.ID,
		Name:     name,
		Quantity: parseQuantity(data["quantity"]),
		Unit:     stringField(data, "unit"),
		Category: normalizeCategory(data["category"]),
		ImageURL: stringField(data, "imageUrl"),
		Barcode:  stringField(data, "barcode"),
		Notes:    stringField(data, "notes"),
		UserID:   stringField(data, "userId"),
	}

	if exp, ok := model.AsTime(data["expirationDate"]); ok {
		item.ExpirationDate = &exp
	}

	// An explicit flag wins, including false. Derivation happens once, here.
	if flag, ok := data["isExpired"].(bool); ok {
		item.IsExpired = flag
	} else {
		item.IsExpired = item.ExpirationDate != nil && item.ExpirationDate.Before(now)
	}

	created, ok := model.AsTime(data["createdAt"])
	if !ok {
		created = now
	}
	item.CreatedAt = created
	item.AddedAt = created

	if updated, ok := model.AsTime(data["updatedAt"]); ok {
		item.UpdatedAt = &updated
	}

	return Result{Item: item}
}

func stringField(data model.Fields, key string) string {
	s, _ := data[key].(string)
	return s
}

func normalizeCategory(v any) string {
	s, _ := v.(string)
	s = strings.TrimSpace(s)
	if s == "" {
		return model.DefaultCategory
	}
	return strings.ToUpper(s)
}

// parseQuantity accepts native numbers and numeric strings. Strings are read
// up to the first non-digit, so "12 pcs" is 12. The result is never negative.
func parseQuantity(v any) int {
	var q int64
	switch n := v.(type) {
	case int:
		q = int64(n)
	case int32:
		q = int64(n)
	case int64:
		q = n
	case float32:
		q = truncate(float64(n))
	case float64:
		q = truncate(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			q = i
		} else if f, err := n.Float64(); err == nil {
			q = truncate(f)
		}
	case string:
		q = leadingInt(n)
	}
	return clampQuantity(q)
}

// ParseQuantity reads the leading integer of a form value, so "500 g" is
// 500. Text without one is 0 and the result is never negative.
func ParseQuantity(s string) int {
	return clampQuantity(leadingInt(s))
}

func clampQuantity(q int64) int {
	if q < 0 {
		return 0
	}
	if q > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(q)
}

func truncate(f float64) int64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	return int64(f)
}

func leadingInt(s string) int64 {
	s = strings.TrimLeft(s, " \t\n\r")
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	i, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		// Out of range: treat as the largest representable quantity.
		if strings.HasPrefix(s, "-") {
			return 0
		}
		return math.MaxInt32
	}
	return i
}
