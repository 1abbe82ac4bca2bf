package handler

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pantrypal-api/internal/cache"
	"pantrypal-api/internal/pantry"
	"pantrypal-api/internal/repository"
	"pantrypal-api/internal/service"
	"pantrypal-api/internal/testutil"

	"github.com/go-chi/chi/v5"
)

type pantryFixture struct {
	hub    *pantry.Hub
	items  *service.ItemService
	router http.Handler
}

func newPantryFixture(t *testing.T) *pantryFixture {
	t.Helper()
	clk := testutil.NewStubClock(testNow)

	notifier := cache.NewMemoryNotifier()
	t.Cleanup(func() { notifier.Close() })
	live := repository.NewLiveStore(repository.NewSQLiteItemRepository(testutil.NewTestDB(t)), notifier, nop)

	hub := pantry.NewHub(live, pantry.NewNormalizer(clk, nop), clk, nop, pantry.HubConfig{ReapInterval: time.Hour})
	t.Cleanup(hub.Close)
	items := service.NewItemService(live, clk, nop)

	h := NewPantryHandler(hub, items, clk, nop)
	r := chi.NewRouter()
	r.Get("/pantry", h.Get)
	r.Get("/pantry/stats", h.Stats)
	r.Get("/pantry/events", h.Events)
	r.Post("/pantry/refresh", h.Refresh)
	r.Post("/pantry/items", h.Create)
	r.Patch("/pantry/items/{id}", h.Update)
	r.Delete("/pantry/items/{id}", h.Delete)

	return &pantryFixture{hub: hub, items: items, router: withUser("alice", r)}
}

func (f *pantryFixture) add(t *testing.T, item service.NewItem) string {
	t.Helper()
	rec := do(t, f.router, http.MethodPost, "/pantry/items", item)
	expectStatus(t, rec, http.StatusCreated)
	var created CreatedItem
	decodeData(t, rec, &created)
	if created.ID == "" {
		t.Fatal("empty id")
	}
	return created.ID
}

func (f *pantryFixture) get(t *testing.T, target string) PantryResponse {
	t.Helper()
	rec := do(t, f.router, http.MethodGet, target, nil)
	expectStatus(t, rec, http.StatusOK)
	var resp PantryResponse
	decodeData(t, rec, &resp)
	return resp
}

// eventually polls GET /pantry until cond holds.
func (f *pantryFixture) eventually(t *testing.T, cond func(PantryResponse) bool) PantryResponse {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp := f.get(t, "/pantry")
		if cond(resp) {
			return resp
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition not met, last response %+v", resp)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func names(resp PantryResponse) []string {
	out := make([]string, len(resp.Items))
	for i, it := range resp.Items {
		out[i] = it.Name
	}
	return out
}

func TestPantryGet(t *testing.T) {
	f := newPantryFixture(t)
	f.add(t, service.NewItem{Name: "Milk", Quantity: "1", Unit: "l", Category: "dairy", ExpirationDate: "04/30/24"})
	f.add(t, service.NewItem{Name: "Rice", Quantity: "5", Category: "grains", ExpirationDate: "2025-01-01"})
	f.add(t, service.NewItem{Name: "Yogurt", Quantity: "2", Category: "dairy", ExpirationDate: "05/04/24"})

	resp := f.get(t, "/pantry")
	if resp.Loading || resp.Error != "" {
		t.Fatalf("state not settled: %+v", resp)
	}
	if resp.Total != 3 || len(resp.Items) != 3 {
		t.Fatalf("items = %v", names(resp))
	}
	st := resp.Stats
	if st.TotalItems != 3 || st.ExpiredCount != 1 || st.ExpiringSoonCount != 1 || st.LowQuantityCount != 2 {
		t.Errorf("stats = %+v", st)
	}
	if strings.Join(st.Categories, ",") != "DAIRY,GRAINS" {
		t.Errorf("categories = %v", st.Categories)
	}

	t.Run("search and sort", func(t *testing.T) {
		resp := f.get(t, "/pantry?q=DAIRY&sort=name&order=desc")
		if got := strings.Join(names(resp), ","); got != "Yogurt,Milk" {
			t.Errorf("items = %s", got)
		}
		if resp.Stats.TotalItems != 3 {
			t.Errorf("stats must cover the whole pantry, got %d", resp.Stats.TotalItems)
		}
	})

	t.Run("grouped", func(t *testing.T) {
		resp := f.get(t, "/pantry?group=category&sort=name")
		if len(resp.Sections) != 2 || resp.Sections[0].Category != "DAIRY" || len(resp.Sections[0].Items) != 2 {
			t.Errorf("sections = %+v", resp.Sections)
		}
	})

	t.Run("stats endpoint", func(t *testing.T) {
		rec := do(t, f.router, http.MethodGet, "/pantry/stats", nil)
		expectStatus(t, rec, http.StatusOK)
		var sr StatsResponse
		decodeData(t, rec, &sr)
		if sr.Stats.TotalItems != 3 {
			t.Errorf("stats = %+v", sr.Stats)
		}
	})

	for _, target := range []string{"/pantry?sort=price", "/pantry?order=up", "/pantry?group=unit"} {
		t.Run("invalid "+target, func(t *testing.T) {
			rec := do(t, f.router, http.MethodGet, target, nil)
			expectStatus(t, rec, http.StatusBadRequest)
			if e := decodeError(t, rec); e.Code != "VALIDATION_ERROR" {
				t.Errorf("code = %s", e.Code)
			}
		})
	}
}

func TestPantryCreateValidation(t *testing.T) {
	f := newPantryFixture(t)

	tests := []struct {
		name  string
		body  interface{}
		field string
	}{
		{"blank name", map[string]string{"name": "   "}, "name"},
		{"missing name", map[string]string{"unit": "g"}, "name"},
		{"short barcode", map[string]string{"name": "Milk", "barcode": "123"}, "barcode"},
		{"bad date", map[string]string{"name": "Milk", "expirationDate": "13/45/24"}, "expirationDate"},
		{"bad purchase date", map[string]string{"name": "Milk", "purchaseDate": "yesterday"}, "purchaseDate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, f.router, http.MethodPost, "/pantry/items", tt.body)
			expectStatus(t, rec, http.StatusBadRequest)
			if e := decodeError(t, rec); !hasField(e, tt.field) {
				t.Errorf("details %+v lack %q", e.Details, tt.field)
			}
		})
	}
}

func TestPantryUpdate(t *testing.T) {
	f := newPantryFixture(t)
	id := f.add(t, service.NewItem{Name: "Milk", Quantity: "1", Category: "dairy"})
	f.get(t, "/pantry")

	rec := do(t, f.router, http.MethodPatch, "/pantry/items/"+id, map[string]interface{}{
		"quantity":       4,
		"expirationDate": "2024-04-01T00:00:00Z",
	})
	expectStatus(t, rec, http.StatusOK)

	resp := f.eventually(t, func(r PantryResponse) bool {
		return len(r.Items) == 1 && r.Items[0].Quantity == 4
	})
	item := resp.Items[0]
	if !item.IsExpired {
		t.Error("a past expiration date should mark the item expired")
	}
	if item.UpdatedAt == nil || !item.UpdatedAt.Equal(testNow) {
		t.Errorf("updatedAt = %v, want %v", item.UpdatedAt, testNow)
	}
	if resp.Stats.ExpiredCount != 1 {
		t.Errorf("stats = %+v", resp.Stats)
	}

	t.Run("missing item", func(t *testing.T) {
		rec := do(t, f.router, http.MethodPatch, "/pantry/items/nope", map[string]int{"quantity": 1})
		expectStatus(t, rec, http.StatusNotFound)
	})
	t.Run("empty update", func(t *testing.T) {
		rec := do(t, f.router, http.MethodPatch, "/pantry/items/"+id, map[string]int{})
		expectStatus(t, rec, http.StatusBadRequest)
	})
	t.Run("negative quantity", func(t *testing.T) {
		rec := do(t, f.router, http.MethodPatch, "/pantry/items/"+id, map[string]int{"quantity": -1})
		expectStatus(t, rec, http.StatusBadRequest)
	})
	t.Run("blank name", func(t *testing.T) {
		rec := do(t, f.router, http.MethodPatch, "/pantry/items/"+id, map[string]string{"name": "  "})
		expectStatus(t, rec, http.StatusBadRequest)
	})
}

func TestPantryDelete(t *testing.T) {
	f := newPantryFixture(t)
	keep := f.add(t, service.NewItem{Name: "Rice"})
	drop := f.add(t, service.NewItem{Name: "Milk"})
	if resp := f.get(t, "/pantry"); len(resp.Items) != 2 {
		t.Fatalf("items = %v", names(resp))
	}

	rec := do(t, f.router, http.MethodDelete, "/pantry/items/"+drop, nil)
	expectStatus(t, rec, http.StatusNoContent)

	resp := f.get(t, "/pantry")
	if len(resp.Items) != 1 || resp.Items[0].ID != keep {
		t.Errorf("items after delete = %v", names(resp))
	}

	// Deleting again is not an error.
	rec = do(t, f.router, http.MethodDelete, "/pantry/items/"+drop, nil)
	expectStatus(t, rec, http.StatusNoContent)
}

func TestPantryRefresh(t *testing.T) {
	f := newPantryFixture(t)
	f.add(t, service.NewItem{Name: "Rice"})

	rec := do(t, f.router, http.MethodPost, "/pantry/refresh", nil)
	expectStatus(t, rec, http.StatusOK)
	var resp PantryResponse
	decodeData(t, rec, &resp)
	if len(resp.Items) != 1 || resp.Loading {
		t.Errorf("refresh response = %+v", resp)
	}
}

func TestPantryRequiresUser(t *testing.T) {
	h := NewPantryHandler(nil, nil, nil, nop)
	for _, tc := range []struct {
		method string
		fn     http.HandlerFunc
	}{
		{http.MethodGet, h.Get},
		{http.MethodGet, h.Stats},
		{http.MethodPost, h.Refresh},
		{http.MethodPost, h.Create},
	} {
		rec := httptest.NewRecorder()
		tc.fn(rec, httptest.NewRequest(tc.method, "/pantry", strings.NewReader(`{"name":"x"}`)))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	}
}

func TestPantryEvents(t *testing.T) {
	f := newPantryFixture(t)
	f.add(t, service.NewItem{Name: "Rice"})

	srv := httptest.NewServer(f.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/pantry/events?sort=name", nil)
	if err != nil {
		t.Fatal(err)
	}
	res, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	defer res.Body.Close()

	if ct := res.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	lines := bufio.NewScanner(res.Body)
	lines.Buffer(make([]byte, 0, 64*1024), 1<<20)
	// waitFor reads events until one carries substr.
	waitFor := func(substr string) {
		t.Helper()
		var event string
		for lines.Scan() {
			line := lines.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				if event != "state" {
					t.Fatalf("event = %q, want state", event)
				}
				if strings.Contains(line, substr) {
					return
				}
			}
		}
		t.Fatalf("stream ended before %q: %v", substr, lines.Err())
	}

	waitFor(`"name":"Rice"`)

	if _, err := f.items.Create(context.Background(), "alice", service.NewItem{Name: "Beans"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	waitFor(`"name":"Beans"`)

	// Other users' changes never reach the stream.
	if _, err := f.items.Create(context.Background(), "bob", service.NewItem{Name: "Secret"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.items.Create(context.Background(), "alice", service.NewItem{Name: "Corn"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	var sawSecret bool
	var event string
	for lines.Scan() {
		line := lines.Text()
		if strings.HasPrefix(line, "event: ") {
			event = line
		}
		if strings.HasPrefix(line, "data: ") && event == "event: state" {
			if strings.Contains(line, "Secret") {
				sawSecret = true
			}
			if strings.Contains(line, `"name":"Corn"`) {
				break
			}
		}
	}
	if sawSecret {
		t.Error("stream leaked another user's item")
	}
}
