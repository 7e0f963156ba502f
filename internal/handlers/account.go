package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/garago/auth-service/internal/auth"
	pkghttp "github.com/garago/auth-service/pkg/http"
)

// PasswordServiceInterface defines the credential side flows
type PasswordServiceInterface interface {
	UpdatePassword(ctx context.Context, userID, currentPassword, newPassword, ipAddress string) error
	ForgotPassword(ctx context.Context, email string) bool
	ResetPassword(ctx context.Context, email, token, newPassword string) bool
	VerifyEmail(ctx context.Context, email, token string) bool
}

// AccountHandler handles password and email verification requests
type AccountHandler struct {
	passwords PasswordServiceInterface
	ipConfig  *pkghttp.IPConfig
	logger    *slog.Logger
}

func NewAccountHandler(passwords PasswordServiceInterface, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		passwords: passwords,
		ipConfig:  ipConfig,
		logger:    logger,
	}
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

type VerifyEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
	Token string `json:"token" validate:"required"`
}

// ChangePassword updates the authenticated caller's password
func (h *AccountHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)
	if err := h.passwords.UpdatePassword(r.Context(), claims.UserID, req.CurrentPassword, req.NewPassword, ipAddress); err != nil {
		pkghttp.WriteAuthError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ForgotPassword starts the reset loop. The response is identical for known
// and unknown addresses.
func (h *AccountHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	h.passwords.ForgotPassword(r.Context(), normalizeEmail(req.Email))

	pkghttp.WriteJSON(w, http.StatusOK, map[string]bool{"accepted": true})
}

// ResetPassword completes the reset loop with the emailed token
func (h *AccountHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if !h.passwords.ResetPassword(r.Context(), normalizeEmail(req.Email), req.Token, req.NewPassword) {
		pkghttp.WriteBadRequest(w, "Invalid or expired reset token")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// VerifyEmail confirms ownership of an email address
func (h *AccountHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if !h.passwords.VerifyEmail(r.Context(), normalizeEmail(req.Email), req.Token) {
		pkghttp.WriteBadRequest(w, "Invalid or expired verification token")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
