package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"pantrypal-api/internal/cache"
	"pantrypal-api/internal/clock"
	"pantrypal-api/internal/logging"
	"pantrypal-api/internal/mailer"
	"pantrypal-api/internal/model"
	"pantrypal-api/internal/repository"
	"pantrypal-api/pkg/uid"

	"golang.org/x/crypto/bcrypt"
)

const (
	// MinPasswordLength is the shortest accepted password.
	MinPasswordLength = 6

	// ResetTokenTTL is how long a password reset link stays valid.
	ResetTokenTTL = time.Hour

	resetKeyPrefix = "pantrypal:reset:"
)

var (
	// ErrInvalidCredentials is returned for an unknown email or wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrWeakPassword is returned for passwords shorter than MinPasswordLength.
	ErrWeakPassword = fmt.Errorf("password must be at least %d characters long", MinPasswordLength)

	// ErrInvalidResetToken is returned for unknown, used or expired reset tokens.
	ErrInvalidResetToken = errors.New("invalid or expired reset token")

	// ErrInvalidEmail is returned when an email address is blank.
	ErrInvalidEmail = errors.New("email is required")
)

// AuthConfig holds account settings.
type AuthConfig struct {
	AppName string
	// ResetURL is the page that receives the reset token as ?token=.
	ResetURL string
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

// AuthService manages accounts and sessions.
type AuthService struct {
	users  repository.UserRepository
	tokens *TokenService
	cache  cache.Cache
	mail   mailer.Mailer
	clock  clock.Clock
	log    logging.Logger
	cfg    AuthConfig
}

// NewAuthService wires the account service.
func NewAuthService(users repository.UserRepository, tokens *TokenService, c cache.Cache, m mailer.Mailer, clk clock.Clock, log logging.Logger, cfg AuthConfig) *AuthService {
	if clk == nil {
		clk = clock.Real{}
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.AppName == "" {
		cfg.AppName = "PantryPal"
	}
	return &AuthService{
		users:  users,
		tokens: tokens,
		cache:  c,
		mail:   m,
		clock:  clk,
		log:    logging.For(log, "auth"),
		cfg:    cfg,
	}
}

// Session is a signed-in user with a bearer token.
type Session struct {
	User      *model.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

// Register creates an account and signs it in.
func (s *AuthService) Register(ctx context.Context, email, password, displayName string) (*Session, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, ErrInvalidEmail
	}
	hash, err := s.hashPassword(password)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	u := &model.User{
		ID:           uid.New(),
		Email:        email,
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	s.log.Info("user registered", "user_id", u.ID)
	return s.issue(u)
}

// Login checks credentials and issues a token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		s.log.Warn("failed login", "user_id", u.ID)
		return nil, ErrInvalidCredentials
	}
	return s.issue(u)
}

// Logout revokes the presented token.
func (s *AuthService) Logout(ctx context.Context, token *model.TokenData) error {
	return s.tokens.RevokeToken(ctx, token)
}

// ChangePassword re-authenticates with the current password first.
func (s *AuthService) ChangePassword(ctx context.Context, userID, current, next string) error {
	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)) != nil {
		return ErrInvalidCredentials
	}
	hash, err := s.hashPassword(next)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}
	s.log.Info("password changed", "user_id", userID)
	return nil
}

// RequestPasswordReset mails a one-time reset link. Unknown addresses are
// accepted silently so the endpoint does not reveal which emails exist.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	u, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.log.Info("password reset for unknown email ignored")
			return nil
		}
		return err
	}

	token, err := randomHex(32)
	if err != nil {
		return fmt.Errorf("generating reset token: %w", err)
	}
	if err := s.cache.Set(ctx, resetKeyPrefix+token, []byte(u.ID), ResetTokenTTL); err != nil {
		return fmt.Errorf("storing reset token: %w", err)
	}

	msg := mailer.PasswordReset(s.cfg.AppName, u.Email, s.resetLink(token))
	if err := s.mail.Send(ctx, msg); err != nil {
		return fmt.Errorf("sending reset email: %w", err)
	}
	s.log.Info("password reset requested", "user_id", u.ID)
	return nil
}

// ResetPassword consumes a reset token and sets a new password.
func (s *AuthService) ResetPassword(ctx context.Context, token, password string) error {
	if len(password) < MinPasswordLength {
		return ErrWeakPassword
	}
	raw, err := s.cache.Take(ctx, resetKeyPrefix+token)
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return ErrInvalidResetToken
		}
		return err
	}
	hash, err := s.hashPassword(password)
	if err != nil {
		return err
	}
	userID := string(raw)
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}
	s.log.Info("password reset", "user_id", userID)
	return nil
}

// Authenticate resolves a bearer token to its session data.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*model.TokenData, error) {
	return s.tokens.ValidateToken(ctx, token)
}

// UserByEmail finds an account, for admin tooling.
func (s *AuthService) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.users.GetUserByEmail(ctx, normalizeEmail(email))
}

func (s *AuthService) issue(u *model.User) (*Session, error) {
	token, data, err := s.tokens.GenerateToken(u)
	if err != nil {
		return nil, err
	}
	return &Session{User: u, Token: token, ExpiresAt: data.ExpiresAt}, nil
}

func (s *AuthService) hashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

func (s *AuthService) resetLink(token string) string {
	if s.cfg.ResetURL == "" {
		return token
	}
	u, err := url.Parse(s.cfg.ResetURL)
	if err != nil {
		return s.cfg.ResetURL + "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
