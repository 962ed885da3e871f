//go:build integration

package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/turtacn/authz/internal/config"
	"github.com/turtacn/authz/pkg/logger"
)

func startPostgres(t *testing.T) *DBConnection {
	t.Helper()
	if os.Getenv("SKIP_DOCKER_TESTS") == "true" {
		t.Skip("Skipping Docker-dependent tests")
	}
	ctx := context.Background()

	pgContainer, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("authz"),
		tcpostgres.WithUsername("authz"),
		tcpostgres.WithPassword("authz"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(2*time.Minute),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgContainer.Terminate(ctx) })

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	log := logger.NewNoopLogger()
	conn, err := NewDBConnection(ctx, &config.DatabaseConfig{
		Driver:         DriverPostgres,
		DSN:            dsn,
		MaxConns:       8,
		ConnectTimeout: 30 * time.Second,
	}, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	_, err = Migrate(ctx, conn, log)
	require.NoError(t, err)
	return conn
}

func TestPostgresAccessTokenDAOs(t *testing.T) {
	conn := startPostgres(t)

	t.Run("gorm", func(t *testing.T) {
		runAccessTokenDAOContract(t, NewGormAccessTokenDAO(conn.Gorm()))
	})

	require.NoError(t, conn.Gorm().Exec("DELETE FROM access_token_infos").Error)

	t.Run("pgx", func(t *testing.T) {
		require.NotNil(t, conn.Pool())
		runAccessTokenDAOContract(t, NewPgxAccessTokenDAO(conn.Pool(), logger.NewNoopLogger()))
	})
}
