package service

import (
	"context"
	goerrors "errors"
	"fmt"

	"github.com/turtacn/authz/internal/domain/models"
	"github.com/turtacn/authz/internal/domain/repository"
	"github.com/turtacn/authz/pkg/constants"
	"github.com/turtacn/authz/pkg/errors"
	"github.com/turtacn/authz/pkg/logger"
)

// TokenTracker records issued tokens and their revocation state.
// TokenTracker 记录已签发令牌及其吊销状态。
type TokenTracker struct {
	dao    repository.AccessTokenDAO
	now    Clock
	logger logger.Logger
}

// CleanupReport summarises one expiry sweep.
type CleanupReport struct {
	Scanned int `json:"scanned"`
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

// NewTokenTracker creates a tracker over dao.
func NewTokenTracker(dao repository.AccessTokenDAO, now Clock, log logger.Logger) *TokenTracker {
	return &TokenTracker{dao: dao, now: clockOrNow(now), logger: log.WithComponent("TokenTracker")}
}

// StoreTokenInfo starts tracking a token as ACTIVE. Tracking an already tracked
// JTI is a no-op.
func (t *TokenTracker) StoreTokenInfo(ctx context.Context, req models.StoreTokenInfoRequest) error {
	created, err := t.dao.Create(ctx, &models.AccessTokenInfo{
		TokenID:   req.TokenID,
		Status:    constants.TokenStatusActive,
		IssuedAt:  req.IssuedAt,
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("track token %s: %w", req.TokenID, err)
	}
	if !created {
		t.logger.Debug(ctx, "token already tracked", logger.String("jti", req.TokenID))
	}
	return nil
}

// RetrieveTokenInfo returns the tracked record, nil when the JTI is untracked.
func (t *TokenTracker) RetrieveTokenInfo(ctx context.Context, jti string) (*models.AccessTokenInfo, error) {
	info, err := t.dao.FindByJTI(ctx, jti)
	if err != nil {
		return nil, fmt.Errorf("find token %s: %w", jti, err)
	}
	return info, nil
}

// RevokeToken moves a token from ACTIVE to REVOKED and reports whether it did.
// An untracked token is a no-op. Revoking an already revoked token fails with
// InvalidStateTransition; of two racing revocations exactly one succeeds.
func (t *TokenTracker) RevokeToken(ctx context.Context, jti string) (bool, error) {
	revoked, err := t.dao.MarkRevoked(ctx, jti, t.now())
	if err != nil {
		return false, fmt.Errorf("revoke token %s: %w", jti, err)
	}
	if revoked {
		t.logger.Info(ctx, "token revoked", logger.String("jti", jti))
		return true, nil
	}

	info, err := t.RetrieveTokenInfo(ctx, jti)
	if err != nil {
		return false, err
	}
	if info == nil {
		t.logger.Debug(ctx, "revocation of untracked token ignored", logger.String("jti", jti))
		return false, nil
	}
	return false, errors.ErrInvalidStateTransition(constants.TokenStatusActive, info.Status)
}

// CleanUpExpiredTokens deletes every record whose expiry has passed, whatever its
// status. A failed delete is counted and does not stop the sweep.
func (t *TokenTracker) CleanUpExpiredTokens(ctx context.Context) (CleanupReport, error) {
	var report CleanupReport

	ids, err := t.dao.FindExpired(ctx, t.now())
	if err != nil {
		return report, fmt.Errorf("list expired tokens: %w", err)
	}
	report.Scanned = len(ids)

	var failures []error
	for _, jti := range ids {
		if err := ctx.Err(); err != nil {
			failures = append(failures, err)
			break
		}
		if err := t.dao.DeleteByJTI(ctx, jti); err != nil {
			report.Failed++
			failures = append(failures, fmt.Errorf("delete token %s: %w", jti, err))
			continue
		}
		report.Deleted++
	}

	t.logger.Info(ctx, "expired token sweep finished",
		logger.Int("scanned", report.Scanned),
		logger.Int("deleted", report.Deleted),
		logger.Int("failed", report.Failed),
	)
	return report, goerrors.Join(failures...)
}
