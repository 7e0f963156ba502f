package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/garago/auth-service/internal/auth"
	"github.com/garago/auth-service/internal/handlers"
	"github.com/garago/auth-service/internal/middleware"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	accountHandler *handlers.AccountHandler,
	tokenManager *auth.TokenManager,
	revocations auth.RevocationChecker,
) {
	loginLimit := middleware.DefaultLoginRateLimit()
	resetLimit := middleware.DefaultResetRateLimit()

	// Public routes - no authentication required
	router.With(middleware.RateLimitByIP(loginLimit)).Post("/auth/login", authHandler.Login)
	router.With(middleware.RateLimitByIP(loginLimit)).Post("/auth/refresh", authHandler.Refresh)
	router.With(middleware.RateLimitByIP(resetLimit)).Post("/auth/forgot-password", accountHandler.ForgotPassword)
	router.With(middleware.RateLimitByIP(resetLimit)).Post("/auth/reset-password", accountHandler.ResetPassword)
	router.With(middleware.RateLimitByIP(resetLimit)).Post("/auth/verify-email", accountHandler.VerifyEmail)

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(tokenManager, revocations))

		r.Post("/auth/logout", authHandler.Logout)
		r.Post("/auth/logout-all", authHandler.LogoutAll)
		r.Post("/auth/change-password", accountHandler.ChangePassword)
	})
}
