package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTimestampJSON(t *testing.T) {
	at := time.Date(2026, 2, 1, 9, 30, 15, 500, time.UTC)
	ts := TimestampFromTime(at)

	data, err := json.Marshal(ts)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `{"_seconds":1769938215,"_nanoseconds":500}` {
		t.Errorf("encoded = %s", data)
	}

	var back Timestamp
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !back.ToDate().Equal(at) {
		t.Errorf("ToDate = %v, want %v", back.ToDate(), at)
	}
}

func TestDecodeFields(t *testing.T) {
	at := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	raw, err := EncodeFields(Fields{
		"name":      "Flour",
		"quantity":  3,
		"createdAt": TimestampFromTime(at),
		"tags":      map[string]any{"_seconds": 1},
	})
	if err != nil {
		t.Fatalf("EncodeFields: %v", err)
	}

	f, err := DecodeFields(raw)
	if err != nil {
		t.Fatalf("DecodeFields: %v", err)
	}
	if f["name"] != "Flour" {
		t.Errorf("name = %v", f["name"])
	}
	if n, ok := f["quantity"].(json.Number); !ok || n.String() != "3" {
		t.Errorf("quantity = %#v, want json.Number 3", f["quantity"])
	}
	ts, ok := f["createdAt"].(Timestamp)
	if !ok || !ts.ToDate().Equal(at) {
		t.Errorf("createdAt = %#v", f["createdAt"])
	}
	if _, ok := f["tags"].(map[string]any); !ok {
		t.Errorf("partial timestamp shape should stay a map, got %#v", f["tags"])
	}

	f, err = DecodeFields([]byte("null"))
	if err != nil || f != nil {
		t.Errorf("null = %v, %v; want nil fields", f, err)
	}

	if _, err := DecodeFields([]byte("{")); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestAsTime(t *testing.T) {
	at := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)
	var nilTime *time.Time

	tests := []struct {
		name string
		in   any
		ok   bool
	}{
		{"timestamp", TimestampFromTime(at), true},
		{"rfc3339", "2026-05-04T00:00:00Z", true},
		{"date", "2026-05-04", true},
		{"time", at, true},
		{"zero time", time.Time{}, false},
		{"nil pointer", nilTime, false},
		{"garbage", "soon", false},
		{"number", 12.5, false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := AsTime(tt.in)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && !got.Equal(at) {
				t.Errorf("time = %v, want %v", got, at)
			}
		})
	}
}

func TestItemUpdateFields(t *testing.T) {
	if !(ItemUpdate{}).Empty() {
		t.Error("zero update should be empty")
	}

	name, qty := "Beans", 0
	exp := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	f := ItemUpdate{Name: &name, Quantity: &qty, ExpirationDate: &exp}.Fields()

	if len(f) != 3 {
		t.Fatalf("fields = %v", f)
	}
	if f["quantity"] != 0 {
		t.Errorf("explicit zero quantity must be kept, got %v", f["quantity"])
	}
	if got, ok := f["expirationDate"].(time.Time); !ok || !got.Equal(exp) {
		t.Errorf("expirationDate = %#v", f["expirationDate"])
	}
}

func TestUserItemsQuery(t *testing.T) {
	q := UserItemsQuery("u1")
	if q.Collection != "items" || q.UserID != "u1" || q.OrderBy != "createdAt" || !q.Descending {
		t.Errorf("query = %+v", q)
	}
}
