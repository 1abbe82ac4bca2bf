package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"pantrypal-api/internal/model"
	"pantrypal-api/internal/service"
	"pantrypal-api/pkg/apierror"
)

// TokenDataKey is the key for storing token data in request context.
const TokenDataKey contextKey = "token_data"

// Authenticator resolves a bearer token.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.TokenData, error)
}

// RequireAuth rejects requests without a valid bearer token. EventSource
// clients cannot set headers, so an access_token query parameter is
// accepted as well.
func RequireAuth(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeError(w, apierror.Unauthorized("Authentication required. Use the Authorization: Bearer header."))
				return
			}

			tokenData, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				msg := "Invalid or expired token"
				if errors.Is(err, service.ErrTokenRevoked) {
					msg = "Token has been revoked"
				}
				writeError(w, apierror.Unauthorized(msg))
				return
			}

			ctx := context.WithValue(r.Context(), TokenDataKey, tokenData)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireLoginKey guards admin routes with the X-Login-Key header.
// An empty key disables the routes entirely.
func RequireLoginKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				writeError(w, apierror.Forbidden("Admin access is not configured"))
				return
			}
			got := r.Header.Get("X-Login-Key")
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				writeError(w, apierror.Unauthorized("Invalid login key"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("access_token")
}

// writeError writes an API error response.
func writeError(w http.ResponseWriter, err *apierror.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	w.Write(err.ToJSON())
}

// GetTokenDataFromContext retrieves token data from request context.
func GetTokenDataFromContext(ctx context.Context) *model.TokenData {
	if data, ok := ctx.Value(TokenDataKey).(*model.TokenData); ok {
		return data
	}
	return nil
}

// WithTokenData stores token data in ctx, for tests and internal callers.
func WithTokenData(ctx context.Context, data *model.TokenData) context.Context {
	return context.WithValue(ctx, TokenDataKey, data)
}
