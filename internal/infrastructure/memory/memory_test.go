package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/authz/internal/domain/models"
	"github.com/turtacn/authz/pkg/constants"
)

func TestOngoingAuthorizationStore_DeleteIsExactlyOnce(t *testing.T) {
	ctx := context.Background()
	store := NewOngoingAuthorizationStore()
	require.NoError(t, store.Save(ctx, &models.OngoingAuthorization{AuthorizationCode: "ABC123", ClientID: "ui-1"}))

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			deleted, err := store.Delete(ctx, "ABC123")
			assert.NoError(t, err)
			if deleted {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
	oa, err := store.FindByCode(ctx, "ABC123")
	require.NoError(t, err)
	assert.Nil(t, oa)
}

func TestOngoingAuthorizationStore_SaveIsWriteOnce(t *testing.T) {
	ctx := context.Background()
	store := NewOngoingAuthorizationStore()
	first := &models.OngoingAuthorization{AuthorizationCode: "ABC123", ClientID: "ui-1", Scope: models.NewScopes("read:x")}
	require.NoError(t, store.Save(ctx, first))

	err := store.Save(ctx, &models.OngoingAuthorization{AuthorizationCode: "ABC123", ClientID: "ui-2"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collision")

	oa, err := store.FindByCode(ctx, "ABC123")
	require.NoError(t, err)
	require.NotNil(t, oa)
	assert.Equal(t, "ui-1", oa.ClientID)
	assert.Equal(t, 1, store.Len())
}

func TestAccessTokenDAO_Lifecycle(t *testing.T) {
	ctx := context.Background()
	dao := NewAccessTokenDAO()
	now := time.Now()

	created, err := dao.Create(ctx, &models.AccessTokenInfo{TokenID: "j1", Status: constants.TokenStatusActive, ExpiresAt: now.Add(time.Hour)})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = dao.Create(ctx, &models.AccessTokenInfo{TokenID: "j1", Status: constants.TokenStatusRevoked})
	require.NoError(t, err)
	assert.False(t, created)

	ok, err := dao.MarkRevoked(ctx, "j1", now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = dao.MarkRevoked(ctx, "j1", now)
	require.NoError(t, err)
	assert.False(t, ok)

	info, err := dao.FindByJTI(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, constants.TokenStatusRevoked, info.Status)
	require.NotNil(t, info.RevokedAt)

	expired, err := dao.FindExpired(ctx, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"j1"}, expired)
}

func TestClientRegistry_Lookups(t *testing.T) {
	ctx := context.Background()
	reg := NewClientRegistry(&models.OAuthClient{ClientID: "svc", Name: "svc", Audience: "https://svc"})

	c, err := reg.FindByAudience(ctx, "https://svc")
	require.NoError(t, err)
	assert.Equal(t, "svc", c.ClientID)

	c, err = reg.FindByClientID(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, c)
}
