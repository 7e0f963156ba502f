package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/garago/auth-service/internal/auth"
	"github.com/garago/auth-service/internal/background"
	"github.com/garago/auth-service/internal/cache"
	"github.com/garago/auth-service/internal/config"
	"github.com/garago/auth-service/internal/database"
	"github.com/garago/auth-service/internal/handlers"
	middlewareCustom "github.com/garago/auth-service/internal/middleware"
	"github.com/garago/auth-service/internal/models"
	"github.com/garago/auth-service/internal/repositories"
	"github.com/garago/auth-service/internal/routes"
	"github.com/garago/auth-service/internal/services"
	pkgauth "github.com/garago/auth-service/pkg/auth"
	pkghttp "github.com/garago/auth-service/pkg/http"
	pkglogger "github.com/garago/auth-service/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	refreshTokenRepo := repositories.NewRefreshTokenRepository(db)
	revokedTokenRepo := repositories.NewRevokedTokenRepository(db)
	sessionRepo := repositories.NewSessionRepository(db)

	auditLogger := pkglogger.NewAuditLogger(logger)
	hasher := auth.NewPBKDF2Hasher()
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry)
	enumerationDelay := auth.NewEnumerationDelay(cfg.Auth.EnumerationDelayMin, cfg.Auth.EnumerationDelayMax)
	blacklistCache := cache.NewTTLCache(cfg.Auth.BlacklistCacheTTL)

	// Email delivery. SES needs AWS credentials; outside production a
	// log-only sender keeps the service bootable.
	var mailer services.NotificationSender
	if cfg.Server.Env == "production" {
		sesMailer, err := services.NewAWSSESEmailService(
			cfg.Email.AWSRegion,
			cfg.Email.FromAddress,
			cfg.Email.BaseURL,
			logger,
		)
		if err != nil {
			logger.Error("failed to initialize email service", slog.Any("error", err))
			os.Exit(1)
		}
		mailer = sesMailer
	} else {
		mailer = services.NewLogEmailService(logger)
	}

	// Async notification dispatcher
	dispatcher := services.NewDispatcher(64, logger)
	dispatcherCtx, dispatcherCancel := context.WithCancel(context.Background())
	defer dispatcherCancel()
	dispatcher.Start(dispatcherCtx)

	// Initialize services
	loginService := services.NewLoginService(
		userRepo,
		sessionRepo,
		hasher,
		mailer,
		dispatcher,
		enumerationDelay,
		services.LoginOptions{
			MaxFailedAttempts:       cfg.Auth.MaxFailedAttempts,
			LockoutDuration:         cfg.Auth.LockoutDuration,
			VerificationTokenExpiry: cfg.Auth.VerificationTokenExpiry,
		},
		logger,
		auditLogger,
	)

	refreshService := services.NewRefreshTokenService(
		refreshTokenRepo,
		userRepo,
		hasher,
		cfg.Auth.RefreshTokenExpiry,
		logger,
		auditLogger,
	)

	blacklistService := services.NewTokenBlacklistService(
		revokedTokenRepo,
		sessionRepo,
		blacklistCache,
		auth.NewJWTExpiryDecoder(),
		logger,
		auditLogger,
	)

	passwordService := services.NewPasswordService(
		userRepo,
		hasher,
		pkgauth.NewDefaultPolicy(),
		refreshService,
		mailer,
		dispatcher,
		services.PasswordOptions{
			ResetTokenExpiry:        cfg.Auth.ResetTokenExpiry,
			VerificationTokenExpiry: cfg.Auth.VerificationTokenExpiry,
		},
		logger,
		auditLogger,
	)

	// Expired rows are kept around for a day past expiry before the purge.
	cleanupManager := background.NewCleanupManager(
		blacklistService,
		refreshService,
		24*time.Hour,
		logger,
		cfg.Auth.CleanupInterval,
	)

	// Initialize handlers
	ipConfig := &pkghttp.IPConfig{}
	authHandler := handlers.NewAuthHandler(loginService, refreshService, blacklistService, tokenManager, ipConfig, logger)
	accountHandler := handlers.NewAccountHandler(passwordService, ipConfig, logger)

	// Bootstrap first admin user if configured
	bootstrapCtx, bootstrapCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminUser(bootstrapCtx, userRepo, hasher, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	bootstrapCancel()

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.RequestLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, authHandler, accountHandler, tokenManager, blacklistService)

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()
	dispatcherCancel()
	dispatcher.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// ensureAdminUser creates the first admin user if ADMIN_USERNAME and ADMIN_PASSWORD are set
func ensureAdminUser(ctx context.Context, userRepo *repositories.UserRepository, hasher auth.PasswordHasher, logger *slog.Logger) error {
	adminUsername := os.Getenv("ADMIN_USERNAME")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminUsername == "" || adminPassword == "" {
		logger.Info("no ADMIN_USERNAME or ADMIN_PASSWORD set, skipping admin user creation")
		return nil
	}

	_, err := userRepo.GetByUsername(ctx, adminUsername)
	if err == nil {
		logger.Info("admin user already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	salt, err := hasher.GenerateSalt()
	if err != nil {
		return fmt.Errorf("failed to generate admin salt: %w", err)
	}
	hash, err := hasher.Hash(adminPassword, salt)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := &models.User{
		Username:      adminUsername,
		Email:         os.Getenv("ADMIN_EMAIL"),
		PasswordHash:  hash,
		PasswordSalt:  salt,
		IsActive:      true,
		Role:          "admin",
		EmailVerified: true,
	}

	if _, err := userRepo.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("admin user created successfully")
	return nil
}
