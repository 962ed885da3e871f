package service

import (
	"context"
	"time"

	domainservice "github.com/turtacn/authz/internal/domain/service"
	"github.com/turtacn/authz/pkg/logger"
)

// ExpiredTokenCleaner runs one expiry sweep.
type ExpiredTokenCleaner interface {
	CleanUpExpiredTokens(ctx context.Context) (domainservice.CleanupReport, error)
}

// TokenCleanupJob sweeps expired token records on a fixed interval, off the request path.
// TokenCleanupJob 按固定间隔清理过期令牌记录。
type TokenCleanupJob struct {
	cleaner  ExpiredTokenCleaner
	interval time.Duration
	logger   logger.Logger
}

// NewTokenCleanupJob creates the job. A non-positive interval defaults to ten minutes.
func NewTokenCleanupJob(cleaner ExpiredTokenCleaner, interval time.Duration, log logger.Logger) *TokenCleanupJob {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &TokenCleanupJob{cleaner: cleaner, interval: interval, logger: log.WithComponent("TokenCleanupJob")}
}

// Run sweeps every interval until ctx is cancelled. A failed run is logged and the
// next tick tries again.
func (j *TokenCleanupJob) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info(ctx, "token cleanup job started", logger.Duration("interval", j.interval))
	for {
		select {
		case <-ctx.Done():
			j.logger.Info(context.Background(), "token cleanup job stopped")
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep and returns its report.
func (j *TokenCleanupJob) RunOnce(ctx context.Context) domainservice.CleanupReport {
	report, err := j.cleaner.CleanUpExpiredTokens(ctx)
	if err != nil {
		j.logger.Error(ctx, "token cleanup failed", err,
			logger.Int("deleted", report.Deleted),
			logger.Int("failed", report.Failed),
		)
	}
	return report
}
