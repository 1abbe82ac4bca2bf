package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ItemsCollection is the name of the document collection holding pantry items.
const ItemsCollection = "items"

// Fields is a set of top-level document fields keyed by their camelCase name.
type Fields map[string]any

// Document is a raw record as stored, before normalization.
// A nil Data means the record carries no data at all.
type Document struct {
	ID   string
	Data Fields
}

// ItemQuery selects the documents belonging to one user.
type ItemQuery struct {
	Collection string
	UserID     string
	OrderBy    string
	Descending bool
}

// UserItemsQuery returns the canonical query: a user's items, newest first.
func UserItemsQuery(userID string) ItemQuery {
	return ItemQuery{
		Collection: ItemsCollection,
		UserID:     userID,
		OrderBy:    "createdAt",
		Descending: true,
	}
}

// Snapshot is one emission of a live query. A non-nil Err is terminal.
type Snapshot struct {
	Docs []Document
	Err  error
}

// Timestamp is the store-native point in time.
type Timestamp struct {
	Seconds int64
	Nanos   int32
}

// TimestampFromTime converts t to a Timestamp.
func TimestampFromTime(t time.Time) Timestamp {
	return Timestamp{Seconds: t.Unix(), Nanos: int32(t.Nanosecond())}
}

// ToDate converts the timestamp to a calendar time in UTC.
func (ts Timestamp) ToDate() time.Time {
	return time.Unix(ts.Seconds, int64(ts.Nanos)).UTC()
}

type timestampJSON struct {
	Seconds int64 `json:"_seconds"`
	Nanos   int32 `json:"_nanoseconds"`
}

// MarshalJSON encodes the timestamp as {"_seconds":N,"_nanoseconds":N}.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(timestampJSON{Seconds: ts.Seconds, Nanos: ts.Nanos})
}

// UnmarshalJSON decodes the object form written by MarshalJSON.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	var v timestampJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	ts.Seconds, ts.Nanos = v.Seconds, v.Nanos
	return nil
}

// timestampFromMap recognizes the encoded timestamp shape inside decoded JSON.
func timestampFromMap(m map[string]any) (Timestamp, bool) {
	if len(m) != 2 {
		return Timestamp{}, false
	}
	sec, ok := toInt64(m["_seconds"])
	if !ok {
		return Timestamp{}, false
	}
	nanos, ok := toInt64(m["_nanoseconds"])
	if !ok {
		return Timestamp{}, false
	}
	return Timestamp{Seconds: sec, Nanos: int32(nanos)}, true
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	}
	return 0, false
}

// EncodeFields serializes document fields for a JSON column.
func EncodeFields(f Fields) ([]byte, error) {
	if f == nil {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

// DecodeFields parses a JSON column back into fields. Numbers stay
// json.Number and encoded timestamps become Timestamp values again.
// A JSON null yields nil Fields.
func DecodeFields(data []byte) (Fields, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding document fields: %w", err)
	}
	if raw == nil {
		return nil, nil
	}

	f := make(Fields, len(raw))
	for k, v := range raw {
		if m, ok := v.(map[string]any); ok {
			if ts, ok := timestampFromMap(m); ok {
				f[k] = ts
				continue
			}
		}
		f[k] = v
	}
	return f, nil
}

// dateLayouts are tried in order when a date arrives as a string.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// AsTime converts a stored date value into a time. It understands values
// exposing ToDate, ISO-like strings, and time values. Anything else, or a
// string that does not parse, reports false.
func AsTime(v any) (time.Time, bool) {
	switch d := v.(type) {
	case interface{ ToDate() time.Time }:
		return d.ToDate(), true
	case time.Time:
		return d, !d.IsZero()
	case *time.Time:
		if d == nil || d.IsZero() {
			return time.Time{}, false
		}
		return *d, true
	case string:
		s := strings.TrimSpace(d)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}
