package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"pantrypal-api/internal/cache"
	"pantrypal-api/internal/clock"
	"pantrypal-api/internal/model"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultTokenTTL is the default token lifetime.
	DefaultTokenTTL = 7 * 24 * time.Hour

	// revokedKeyPrefix is the cache key prefix for revoked token IDs.
	revokedKeyPrefix = "pantrypal:revoked:"
)

var (
	// ErrInvalidToken is returned for malformed, forged or expired tokens.
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrTokenRevoked is returned for tokens that were signed out.
	ErrTokenRevoked = errors.New("token has been revoked")
)

// Claims represents the JWT claims.
type Claims struct {
	UserID string `json:"uid"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// TokenService issues HS256 bearer tokens and tracks revoked ones.
type TokenService struct {
	secret  []byte
	ttl     time.Duration
	revoked cache.Cache
	clock   clock.Clock
}

// NewTokenService creates a token service. Revocations are kept in revoked
// until the token would have expired anyway.
func NewTokenService(secret string, ttl time.Duration, revoked cache.Cache, c clock.Clock) *TokenService {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	if c == nil {
		c = clock.Real{}
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, revoked: revoked, clock: c}
}

// GenerateToken creates a signed token for user with a unique JTI.
func (s *TokenService) GenerateToken(user *model.User) (string, *model.TokenData, error) {
	jti, err := randomHex(16)
	if err != nil {
		return "", nil, fmt.Errorf("generating JTI: %w", err)
	}

	now := s.clock.Now().Truncate(time.Second)
	claims := Claims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("signing token: %w", err)
	}
	return signed, claimsData(&claims), nil
}

// ValidateToken parses a token, checks its signature and expiry, and
// rejects revoked ones.
func (s *TokenService) ValidateToken(ctx context.Context, tokenStr string) (*model.TokenData, error) {
	if tokenStr == "" {
		return nil, ErrInvalidToken
	}

	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.clock.Now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" || claims.ID == "" {
		return nil, ErrInvalidToken
	}

	if s.revoked != nil {
		revoked, err := s.revoked.Exists(ctx, revokedKeyPrefix+claims.ID)
		if err != nil {
			return nil, fmt.Errorf("checking revocation: %w", err)
		}
		if revoked {
			return nil, ErrTokenRevoked
		}
	}
	return claimsData(claims), nil
}

// RevokeToken blocks the token until its natural expiry.
func (s *TokenService) RevokeToken(ctx context.Context, data *model.TokenData) error {
	if s.revoked == nil {
		return nil
	}
	ttl := data.ExpiresAt.Sub(s.clock.Now())
	if ttl <= 0 {
		return nil
	}
	if err := s.revoked.Set(ctx, revokedKeyPrefix+data.TokenID, []byte(data.UserID), ttl); err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	return nil
}

// TTL returns the lifetime of issued tokens.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

func claimsData(c *Claims) *model.TokenData {
	td := &model.TokenData{TokenID: c.ID, UserID: c.UserID, Email: c.Email}
	if c.IssuedAt != nil {
		td.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		td.ExpiresAt = c.ExpiresAt.Time
	}
	return td
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
