package postgres

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/authz/internal/domain/models"
	"github.com/turtacn/authz/internal/domain/repository"
	"github.com/turtacn/authz/pkg/constants"
)

// runAccessTokenDAOContract exercises the behaviour every AccessTokenDAO must share.
func runAccessTokenDAOContract(t *testing.T, dao repository.AccessTokenDAO) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	info := func(jti string, expires time.Time) *models.AccessTokenInfo {
		return &models.AccessTokenInfo{
			TokenID:   jti,
			Status:    constants.TokenStatusActive,
			IssuedAt:  now,
			ExpiresAt: expires,
		}
	}

	t.Run("create is idempotent per jti", func(t *testing.T) {
		created, err := dao.Create(ctx, info("jti-1", now.Add(time.Hour)))
		require.NoError(t, err)
		assert.True(t, created)

		created, err = dao.Create(ctx, info("jti-1", now.Add(2*time.Hour)))
		require.NoError(t, err)
		assert.False(t, created)

		got, err := dao.FindByJTI(ctx, "jti-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, constants.TokenStatusActive, got.Status)
		assert.True(t, got.ExpiresAt.Equal(now.Add(time.Hour)))
		assert.Nil(t, got.RevokedAt)
	})

	t.Run("unknown jti is nil", func(t *testing.T) {
		got, err := dao.FindByJTI(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("revocation is exactly once under contention", func(t *testing.T) {
		_, err := dao.Create(ctx, info("jti-race", now.Add(time.Hour)))
		require.NoError(t, err)

		var wins int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := dao.MarkRevoked(ctx, "jti-race", now.Add(time.Minute))
				assert.NoError(t, err)
				if ok {
					atomic.AddInt32(&wins, 1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins)

		got, err := dao.FindByJTI(ctx, "jti-race")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, constants.TokenStatusRevoked, got.Status)
		require.NotNil(t, got.RevokedAt)
		assert.True(t, got.RevokedAt.Equal(now.Add(time.Minute)))
	})

	t.Run("revoking an untracked jti reports false", func(t *testing.T) {
		ok, err := dao.MarkRevoked(ctx, "missing", now)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("expired scan ignores status", func(t *testing.T) {
		_, err := dao.Create(ctx, info("old-active", now.Add(-2*time.Hour)))
		require.NoError(t, err)
		_, err = dao.Create(ctx, info("old-revoked", now.Add(-time.Hour)))
		require.NoError(t, err)
		_, err = dao.MarkRevoked(ctx, "old-revoked", now.Add(-90*time.Minute))
		require.NoError(t, err)

		jtis, err := dao.FindExpired(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, []string{"old-active", "old-revoked"}, jtis)
	})

	t.Run("delete is silent for unknown jti", func(t *testing.T) {
		require.NoError(t, dao.DeleteByJTI(ctx, "old-active"))
		require.NoError(t, dao.DeleteByJTI(ctx, "old-active"))

		got, err := dao.FindByJTI(ctx, "old-active")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}
