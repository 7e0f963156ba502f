package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/garago/auth-service/internal/auth"
	"github.com/garago/auth-service/internal/models"
	pkghttp "github.com/garago/auth-service/pkg/http"
)

// LoginServiceInterface defines the login orchestration the handler needs
type LoginServiceInterface interface {
	Login(ctx context.Context, username, password, ipAddress, userAgent string) (*models.Identity, error)
	RecordSession(ctx context.Context, userID, sessionToken string) error
}

// RefreshServiceInterface defines refresh-token issuance and validation
type RefreshServiceInterface interface {
	Rotate(ctx context.Context, userID, ipAddress, userAgent string) (string, error)
	Validate(ctx context.Context, tokenString, ipAddress, userAgent string) (*models.Identity, error)
	Revoke(ctx context.Context, tokenString, ipAddress string) error
	RevokeAllForUser(ctx context.Context, userID, ipAddress, reason string) (int64, error)
}

// BlacklistServiceInterface defines bearer-token revocation
type BlacklistServiceInterface interface {
	RevokeToken(ctx context.Context, token, userID, reason, ipAddress, userAgent string) (bool, error)
	RevokeAllUserTokens(ctx context.Context, userID, reason string) (int, error)
}

// AuthHandler handles login, token refresh, and logout requests
type AuthHandler struct {
	login     LoginServiceInterface
	refresh   RefreshServiceInterface
	blacklist BlacklistServiceInterface
	tokens    *auth.TokenManager
	ipConfig  *pkghttp.IPConfig
	logger    *slog.Logger
}

func NewAuthHandler(
	login LoginServiceInterface,
	refresh RefreshServiceInterface,
	blacklist BlacklistServiceInterface,
	tokens *auth.TokenManager,
	ipConfig *pkghttp.IPConfig,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		login:     login,
		refresh:   refresh,
		blacklist: blacklist,
		tokens:    tokens,
		ipConfig:  ipConfig,
		logger:    logger,
	}
}

// Request and response DTOs

type LoginRequest struct {
	Username string `json:"username" validate:"required,min=1,max=64"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

type AuthResponse struct {
	User         *models.Identity `json:"user"`
	AccessToken  string           `json:"access_token"`
	RefreshToken string           `json:"refresh_token"`
}

// Login authenticates a credential pair and issues the token pair
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)
	userAgent := r.Header.Get("User-Agent")

	identity, err := h.login.Login(r.Context(), req.Username, req.Password, ipAddress, userAgent)
	if err != nil {
		pkghttp.WriteAuthError(w, err)
		return
	}

	h.issueTokens(w, r, identity, ipAddress, userAgent)
}

// Refresh exchanges a valid refresh token for a new token pair. The old
// refresh token family is revoked by the rotation.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)
	userAgent := r.Header.Get("User-Agent")

	identity, err := h.refresh.Validate(r.Context(), req.RefreshToken, ipAddress, userAgent)
	if err != nil {
		h.logger.Error("refresh token validation failed", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "internal server error")
		return
	}
	if identity == nil {
		pkghttp.WriteAuthError(w, models.NewInvalidSession())
		return
	}

	h.issueTokens(w, r, identity, ipAddress, userAgent)
}

// Logout revokes the presented access token and, when supplied, the refresh
// token. Both revocations are idempotent.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)
	userAgent := r.Header.Get("User-Agent")

	accessToken := auth.BearerToken(r)
	if _, err := h.blacklist.RevokeToken(r.Context(), accessToken, claims.UserID, "logout", ipAddress, userAgent); err != nil {
		h.logger.Error("failed to revoke access token", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "internal server error")
		return
	}

	var req LogoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.RefreshToken != "" {
		if err := h.refresh.Revoke(r.Context(), req.RefreshToken, ipAddress); err != nil {
			h.logger.Warn("failed to revoke refresh token on logout", slog.Any("error", err))
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// LogoutAll signs the caller out of every device: all recorded sessions are
// closed and every refresh token is revoked.
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)
	userAgent := r.Header.Get("User-Agent")

	// The caller's own access token goes on the ledger so it dies with the
	// rest, not at its natural expiry.
	accessToken := auth.BearerToken(r)
	if _, err := h.blacklist.RevokeToken(r.Context(), accessToken, claims.UserID, "logout_all", ipAddress, userAgent); err != nil {
		h.logger.Error("failed to revoke access token", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "internal server error")
		return
	}

	sessions, err := h.blacklist.RevokeAllUserTokens(r.Context(), claims.UserID, "logout_all")
	if err != nil {
		h.logger.Error("failed to close user sessions", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "internal server error")
		return
	}

	if _, err := h.refresh.RevokeAllForUser(r.Context(), claims.UserID, ipAddress, "logout_all"); err != nil {
		h.logger.Warn("failed to revoke refresh tokens", slog.Any("error", err))
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]int{"sessions_closed": sessions})
}

func (h *AuthHandler) issueTokens(w http.ResponseWriter, r *http.Request, identity *models.Identity, ipAddress, userAgent string) {
	accessToken, err := h.tokens.GenerateAccessToken(identity.UserID, identity.Username, identity.Role)
	if err != nil {
		h.logger.Error("failed to issue access token", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "internal server error")
		return
	}

	refreshToken, err := h.refresh.Rotate(r.Context(), identity.UserID, ipAddress, userAgent)
	if err != nil {
		h.logger.Error("failed to issue refresh token", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "internal server error")
		return
	}

	// Session bookkeeping is best effort; a failed write must not undo an
	// authentication that already succeeded.
	if err := h.login.RecordSession(r.Context(), identity.UserID, accessToken); err != nil {
		h.logger.Warn("failed to record session", slog.Any("error", err))
	}

	pkghttp.WriteJSON(w, http.StatusOK, AuthResponse{
		User:         identity,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	})
}
