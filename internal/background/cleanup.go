package background

import (
	"context"
	"log/slog"
	"time"
)

// BlacklistCleaner removes lapsed revocation ledger rows.
type BlacklistCleaner interface {
	CleanupExpired(ctx context.Context) (int, error)
}

// RefreshTokenCleaner purges refresh tokens expired longer than the
// retention window.
type RefreshTokenCleaner interface {
	CleanupExpired(ctx context.Context, retention time.Duration) (int64, error)
}

// CleanupManager periodically prunes the revocation ledger and the refresh
// token table so neither grows without bound.
type CleanupManager struct {
	blacklist        BlacklistCleaner
	refreshTokens    RefreshTokenCleaner
	refreshRetention time.Duration
	logger           *slog.Logger
	interval         time.Duration
	stopCh           chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(
	blacklist BlacklistCleaner,
	refreshTokens RefreshTokenCleaner,
	refreshRetention time.Duration,
	logger *slog.Logger,
	interval time.Duration,
) *CleanupManager {
	return &CleanupManager{
		blacklist:        blacklist,
		refreshTokens:    refreshTokens,
		refreshRetention: refreshRetention,
		logger:           logger,
		interval:         interval,
		stopCh:           make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	ledgerRows, err := cm.blacklist.CleanupExpired(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to clean revocation ledger", slog.Any("error", err))
	} else if ledgerRows > 0 {
		cm.logger.Info("revocation ledger cleaned", slog.Int("rows_deleted", ledgerRows))
	}

	refreshRows, err := cm.refreshTokens.CleanupExpired(cleanupCtx, cm.refreshRetention)
	if err != nil {
		cm.logger.Error("failed to clean refresh tokens", slog.Any("error", err))
	} else if refreshRows > 0 {
		cm.logger.Info("expired refresh tokens purged", slog.Int64("rows_deleted", refreshRows))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
