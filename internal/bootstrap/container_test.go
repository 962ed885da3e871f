package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/authz/internal/config"
	"github.com/turtacn/authz/internal/domain/models"
	"github.com/turtacn/authz/internal/infrastructure/auth"
	"github.com/turtacn/authz/pkg/constants"
	"github.com/turtacn/authz/pkg/logger"
)

func testConfig() *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{Port: 8080},
		Database: config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:", AutoMigrate: true},
		JWT: config.JWTConfig{
			Issuer: "https://authz.test", AccessTokenTTL: time.Hour, KeySource: "generate", GeneratedBits: 2048,
		},
		OAuth:   config.OAuthConfig{AuthorizationCodeTTL: time.Minute, CodeStore: "memory"},
		Tracker: config.TrackerConfig{Backend: "gorm"},
		Cache:   config.CacheConfig{Enabled: true, ClientTTL: time.Minute},
	}
}

func seed(t *testing.T, c *Container) {
	t.Helper()
	ctx := context.Background()
	hash, err := auth.HashSecret("batch-secret")
	require.NoError(t, err)
	require.NoError(t, c.ClientStore.Save(ctx, &models.OAuthClient{
		ClientID: "batch-1", Name: "batch", ClientSecretHash: hash,
		ApplicationTypes: []constants.ApplicationType{constants.ApplicationTypeService},
		Audience:         "https://batch", RegisteredScopes: models.NewScopes("jobs"),
	}))
	require.NoError(t, c.ClientStore.Save(ctx, &models.OAuthClient{
		ClientID: "svc-1", Name: "svc",
		ApplicationTypes: []constants.ApplicationType{constants.ApplicationTypeService},
		Audience:         "https://svc", RegisteredScopes: models.NewScopes("read:x"),
		AllowedClients:   []models.ClientAllowRelation{{SourceClientName: "batch", AllowedScopes: models.NewScopes("read:x")}},
	}))
}

func TestContainer_SQLiteStack(t *testing.T) {
	ctx := context.Background()
	c, err := New(ctx, testConfig(), logger.NewNoopLogger())
	require.NoError(t, err)
	defer func() { assert.NoError(t, c.Close(ctx)) }()

	require.NotNil(t, c.DB)
	assert.Nil(t, c.Redis)
	assert.Nil(t, c.Publisher)
	assert.Nil(t, c.RevocationConsumer())
	assert.Equal(t, []string{"database"}, c.Health.Names())
	assert.True(t, c.Health.Check(ctx).Healthy)

	seed(t, c)
	client, err := c.ClientAuth.AuthenticateClient(ctx, "batch-1", "batch-secret")
	require.NoError(t, err)

	resp, err := c.Service.Token(ctx, &models.TokenRequest{
		GrantType: constants.GrantTypeClientCredentials, ClientID: client.ClientID,
		Audience: "https://svc", Scope: models.NewScopes("read:x"),
	})
	require.NoError(t, err)

	result, err := c.Service.Introspect(ctx, resp.AccessToken)
	require.NoError(t, err)
	assert.True(t, result.Active)
	assert.Equal(t, "batch-1", result.ClientID)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Metrics.TokenRequests.WithLabelValues("client_credentials", "success")))
	assert.Positive(t, testutil.ToFloat64(c.Metrics.ClientCacheRequests.WithLabelValues("miss")))
}

func TestContainer_RedisCodeStore(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.Database = config.DatabaseConfig{}
	cfg.Tracker.Backend = "memory"
	cfg.Redis = config.RedisConfig{Addresses: []string{mr.Addr()}, ConnectTimeout: time.Second}
	cfg.OAuth.CodeStore = "redis"
	cfg.OAuth.CodeKeyPrefix = "authz:code:"

	ctx := context.Background()
	c, err := New(ctx, cfg, logger.NewNoopLogger())
	require.NoError(t, err)
	defer c.Close(ctx)

	assert.Nil(t, c.DB)
	require.NotNil(t, c.Redis)
	assert.Equal(t, []string{"redis"}, c.Health.Names())
	assert.True(t, c.Health.Check(ctx).Healthy)

	mr.SetError("LOADING redis is loading the dataset")
	assert.False(t, c.Health.Check(ctx).Healthy)
}

func TestContainer_PgxTrackerNeedsPostgres(t *testing.T) {
	cfg := testConfig()
	cfg.Tracker.Backend = "pgx"
	_, err := New(context.Background(), cfg, logger.NewNoopLogger())
	assert.ErrorContains(t, err, "pgx")
}
