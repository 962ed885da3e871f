package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"

	"github.com/turtacn/authz/pkg/logger"
)

// Each dialect has its own migration set; column types differ (TIMESTAMPTZ vs DATETIME).
//
//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var embedMigrations embed.FS

// Migrate applies all pending schema migrations and returns how many ran.
func Migrate(ctx context.Context, conn *DBConnection, log logger.Logger) (int, error) {
	dialect, dir := database.DialectPostgres, "migrations/postgres"
	if conn.Driver() == DriverSQLite {
		dialect, dir = database.DialectSQLite3, "migrations/sqlite"
	}

	migrationFS, err := fs.Sub(embedMigrations, dir)
	if err != nil {
		return 0, fmt.Errorf("failed to create sub filesystem: %w", err)
	}

	sqlDB, err := conn.SQLDB()
	if err != nil {
		return 0, err
	}

	provider, err := goose.NewProvider(dialect, sqlDB, migrationFS)
	if err != nil {
		return 0, fmt.Errorf("failed to create goose provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to apply migrations: %w", err)
	}
	for _, r := range results {
		log.Info(ctx, "migration applied",
			logger.Int64("version", r.Source.Version),
			logger.Duration("duration", r.Duration))
	}
	return len(results), nil
}
