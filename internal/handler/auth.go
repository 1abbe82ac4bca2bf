package handler

import (
	"context"
	"net/http"

	"pantrypal-api/internal/logging"
	"pantrypal-api/internal/middleware"
	"pantrypal-api/internal/model"
	"pantrypal-api/internal/service"
	"pantrypal-api/pkg/apierror"
	"pantrypal-api/pkg/response"
)

// Accounts is the account service used by AuthHandler.
type Accounts interface {
	Register(ctx context.Context, email, password, displayName string) (*service.Session, error)
	Login(ctx context.Context, email, password string) (*service.Session, error)
	Logout(ctx context.Context, token *model.TokenData) error
	ChangePassword(ctx context.Context, userID, current, next string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password string) error
}

// SessionReleaser closes a user's pantry session.
type SessionReleaser interface {
	Release(userID string)
}

// AuthHandler handles account HTTP requests.
type AuthHandler struct {
	accounts Accounts
	sessions SessionReleaser
	log      logging.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(accounts Accounts, sessions SessionReleaser, log logging.Logger) *AuthHandler {
	return &AuthHandler{accounts: accounts, sessions: sessions, log: logging.For(log, "auth_handler")}
}

// RegisterRequest is the sign-up body.
type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	Password    string `json:"password" validate:"required,min=6,max=72"`
	DisplayName string `json:"displayName" validate:"max=100"`
}

// LoginRequest is the sign-in body.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ChangePasswordRequest is the change-password body.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6,max=72"`
}

// ForgotPasswordRequest asks for a reset email.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest completes a password reset.
type ResetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// Register handles POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.Error(w, err)
		return
	}
	sess, err := h.accounts.Register(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.Created(w, sess)
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.Error(w, err)
		return
	}
	sess, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.OK(w, sess)
}

// Logout handles POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := middleware.GetTokenDataFromContext(r.Context())
	if token == nil {
		response.Error(w, apierror.Unauthorized(""))
		return
	}
	if err := h.accounts.Logout(r.Context(), token); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	h.sessions.Release(token.UserID)
	response.NoContent(w)
}

// ChangePassword handles PUT /api/v1/auth/password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	token := middleware.GetTokenDataFromContext(r.Context())
	if token == nil {
		response.Error(w, apierror.Unauthorized(""))
		return
	}
	var req ChangePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.Error(w, err)
		return
	}
	if err := h.accounts.ChangePassword(r.Context(), token.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.NoContent(w)
}

// ForgotPassword handles POST /api/v1/auth/password/forgot
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.Error(w, err)
		return
	}
	if err := h.accounts.RequestPasswordReset(r.Context(), req.Email); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.Accepted(w, map[string]string{
		"message": "If the address is registered, a reset link has been sent.",
	})
}

// ResetPassword handles POST /api/v1/auth/password/reset
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.Error(w, err)
		return
	}
	if err := h.accounts.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.NoContent(w)
}
