package model

import "time"

// TokenData describes an authenticated session carried by a bearer token.
type TokenData struct {
	TokenID   string    `json:"jti"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// User returns the minimal user identity the token carries.
func (t *TokenData) User() *User {
	return &User{ID: t.UserID, Email: t.Email}
}
