package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pantrypal-api/internal/logging"
	"pantrypal-api/internal/middleware"
	"pantrypal-api/internal/model"
	"pantrypal-api/pkg/apierror"
)

var testNow = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

var nop = logging.NewNopLogger()

func tokenFor(userID string) *model.TokenData {
	return &model.TokenData{
		TokenID:   "jti-" + userID,
		UserID:    userID,
		Email:     userID + "@example.com",
		IssuedAt:  testNow,
		ExpiresAt: testNow.Add(time.Hour),
	}
}

// withUser marks requests as authenticated for userID, the way
// RequireAuth does.
func withUser(userID string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(middleware.WithTokenData(r.Context(), tokenFor(userID))))
	})
}

func do(t *testing.T, h http.Handler, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("encoding body: %v", err)
		}
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, rd)
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// decodeData unwraps the success envelope into dst.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decoding envelope %q: %v", rec.Body.String(), err)
	}
	if !env.Success {
		t.Fatalf("success = false: %s", rec.Body.String())
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("decoding data %s: %v", env.Data, err)
	}
}

// decodeError unwraps the failure envelope.
func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apierror.Error {
	t.Helper()
	var env struct {
		Success bool           `json:"success"`
		Error   apierror.Error `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decoding error envelope %q: %v", rec.Body.String(), err)
	}
	if env.Success {
		t.Fatalf("success = true for error response: %s", rec.Body.String())
	}
	return env.Error
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d: %s", rec.Code, want, rec.Body.String())
	}
}

func hasField(e apierror.Error, field string) bool {
	for _, d := range e.Details {
		if d.Field == field {
			return true
		}
	}
	return false
}

type decodeTarget struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password" validate:"omitempty,min=6"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		field  string
	}{
		{"valid", `{"name":"x"}`, 0, ""},
		{"empty body", ``, http.StatusBadRequest, ""},
		{"malformed", `{"name":`, http.StatusBadRequest, ""},
		{"missing required", `{}`, http.StatusBadRequest, "name"},
		{"bad email", `{"name":"x","email":"nope"}`, http.StatusBadRequest, "email"},
		{"short password", `{"name":"x","password":"abc"}`, http.StatusBadRequest, "password"},
		{"too large", `{"name":"` + strings.Repeat("a", maxBodyBytes) + `"}`, http.StatusRequestEntityTooLarge, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dst decodeTarget
			err := decodeJSON(httptest.NewRecorder(), req, &dst)
			if tt.status == 0 {
				if err != nil {
					t.Fatalf("decodeJSON: %v", err)
				}
				return
			}
			apiErr, ok := err.(*apierror.Error)
			if !ok {
				t.Fatalf("err = %v, want *apierror.Error", err)
			}
			if apiErr.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", apiErr.StatusCode, tt.status)
			}
			if tt.field != "" && !hasField(*apiErr, tt.field) {
				t.Errorf("details %+v lack field %q", apiErr.Details, tt.field)
			}
		})
	}
}
