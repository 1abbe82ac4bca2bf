package handler

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pantrypal-api/internal/barcode"
	"pantrypal-api/internal/pantry"
	"pantrypal-api/internal/upload"

	"github.com/go-chi/chi/v5"
)

type fakeLookup struct {
	product *barcode.Product
	err     error
}

func (f fakeLookup) Lookup(ctx context.Context, code string) (*barcode.Product, error) {
	return f.product, f.err
}

func TestBarcodeLookup(t *testing.T) {
	tests := []struct {
		name   string
		lookup fakeLookup
		want   int
	}{
		{"found", fakeLookup{product: &barcode.Product{Barcode: "3017620422003", Name: "Nutella"}}, http.StatusOK},
		{"invalid", fakeLookup{err: barcode.ErrInvalidBarcode}, http.StatusBadRequest},
		{"not found", fakeLookup{err: barcode.ErrProductNotFound}, http.StatusNotFound},
		{"upstream down", fakeLookup{err: errors.New("connection refused")}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := chi.NewRouter()
			r.Get("/barcode/{code}", NewBarcodeHandler(tt.lookup, nop).Lookup)
			rec := do(t, r, http.MethodGet, "/barcode/3017620422003", nil)
			expectStatus(t, rec, tt.want)
			if tt.want == http.StatusOK {
				var p barcode.Product
				decodeData(t, rec, &p)
				if p.Name != "Nutella" {
					t.Errorf("product = %+v", p)
				}
			}
		})
	}
}

type fakeUploader struct {
	key, contentType string
	size             int
	err              error
}

func (f *fakeUploader) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.key, f.contentType, f.size = key, contentType, len(data)
	return "https://cdn.example.com/" + key, nil
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func multipartRequest(t *testing.T, field string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, "photo.png")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(data)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/uploads/image", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadImage(t *testing.T) {
	up := &fakeUploader{}
	h := withUser("alice", http.HandlerFunc(NewUploadHandler(up, nop).Image))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, multipartRequest(t, "image", pngBytes(t, 2048, 512)))
	expectStatus(t, rec, http.StatusCreated)

	var got UploadedImage
	decodeData(t, rec, &got)
	if got.Width != 1024 || got.Height != 256 {
		t.Errorf("size = %dx%d, want 1024x256", got.Width, got.Height)
	}
	if !strings.HasPrefix(up.key, "items/alice/") || !strings.HasSuffix(up.key, ".jpg") {
		t.Errorf("key = %q", up.key)
	}
	if up.contentType != "image/jpeg" || got.URL != "https://cdn.example.com/"+up.key {
		t.Errorf("content type %q, url %q", up.contentType, got.URL)
	}

	t.Run("not an image", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, multipartRequest(t, "image", []byte("GIF89a not really")))
		expectStatus(t, rec, http.StatusUnsupportedMediaType)
	})

	t.Run("missing field", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, multipartRequest(t, "photo", pngBytes(t, 4, 4)))
		expectStatus(t, rec, http.StatusBadRequest)
	})

	t.Run("not multipart", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/uploads/image", `{"image":"x"}`)
		expectStatus(t, rec, http.StatusBadRequest)
	})

	t.Run("disabled", func(t *testing.T) {
		h := withUser("alice", http.HandlerFunc(NewUploadHandler(upload.NopUploader{}, nop).Image))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, multipartRequest(t, "image", pngBytes(t, 4, 4)))
		expectStatus(t, rec, http.StatusServiceUnavailable)
	})

	t.Run("provider failure", func(t *testing.T) {
		h := withUser("alice", http.HandlerFunc(NewUploadHandler(&fakeUploader{err: errors.New("503")}, nop).Image))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, multipartRequest(t, "image", pngBytes(t, 4, 4)))
		expectStatus(t, rec, http.StatusBadGateway)
	})
}

func TestHealthProbes(t *testing.T) {
	healthy := New("PantryPal", "1.2.3", Probe{Name: "sqlite", Check: func(context.Context) error { return nil }})
	broken := New("PantryPal", "1.2.3", Probe{Name: "redis", Check: func(context.Context) error { return errors.New("dial tcp: refused") }})

	rec := do(t, http.HandlerFunc(healthy.Health), http.MethodGet, "/health", nil)
	expectStatus(t, rec, http.StatusOK)
	var hr HealthResponse
	decodeData(t, rec, &hr)
	if hr.Version != "1.2.3" {
		t.Errorf("version = %q", hr.Version)
	}

	rec = do(t, http.HandlerFunc(healthy.Ready), http.MethodGet, "/ready", nil)
	expectStatus(t, rec, http.StatusOK)

	rec = do(t, http.HandlerFunc(broken.Ready), http.MethodGet, "/ready", nil)
	expectStatus(t, rec, http.StatusServiceUnavailable)
	var rr ReadyResponse
	decodeData(t, rec, &rr)
	if rr.Ready || len(rr.Checks) != 2 || rr.Checks[1].Status != "error" {
		t.Errorf("ready = %+v", rr)
	}

	rec = do(t, http.HandlerFunc(broken.Status), http.MethodGet, "/api/status", nil)
	expectStatus(t, rec, http.StatusOK)
	var sr StatusResponse
	decodeData(t, rec, &sr)
	if sr.Service != "PantryPal" || sr.Status != "degraded" || sr.Checks.Database != "error" {
		t.Errorf("status = %+v", sr)
	}
}

type fakeStats struct{ err error }

func (f fakeStats) Stats(ctx context.Context) (map[string]interface{}, error) {
	if f.err != nil {
		return nil, f.err
	}
	return map[string]interface{}{"total_items": 3}, nil
}

type fakeUsers struct{}

func (fakeUsers) CountUsers(ctx context.Context) (int64, error) { return 2, nil }

type fakeSessions struct{}

func (fakeSessions) Stats() pantry.HubStats {
	return pantry.HubStats{Active: 1, UserIDs: []string{"alice"}}
}

func TestAdminStats(t *testing.T) {
	h := NewAdminHandler(fakeStats{err: errors.New("disk gone")}, fakeUsers{}, fakeSessions{}, "sqlite", "memory")
	rec := do(t, http.HandlerFunc(h.GetStats), http.MethodGet, "/admin/stats", nil)
	expectStatus(t, rec, http.StatusOK)

	var stats map[string]interface{}
	decodeData(t, rec, &stats)
	if stats["db_type"] != "sqlite" || stats["cache_type"] != "memory" {
		t.Errorf("types = %v / %v", stats["db_type"], stats["cache_type"])
	}
	users, _ := stats["users"].(map[string]interface{})
	if users["total"] != float64(2) {
		t.Errorf("users = %v", stats["users"])
	}
	sessions, _ := stats["sessions"].(map[string]interface{})
	if sessions["active"] != float64(1) {
		t.Errorf("sessions = %v", stats["sessions"])
	}
	store, _ := stats["item_store"].(map[string]interface{})
	if store["status"] != "error" {
		t.Errorf("item_store = %v", stats["item_store"])
	}
}
