// Package postgres provides relational persistence for authz: connection management,
// embedded schema migrations, and the GORM and pgx repository implementations.
// SQLite is supported through the same GORM models for single-node deployments and tests.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/turtacn/authz/internal/config"
	"github.com/turtacn/authz/pkg/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DBConnection owns the GORM handle and, for postgres, a pgx pool for raw SQL.
type DBConnection struct {
	db     *gorm.DB
	pool   *pgxpool.Pool
	config *config.DatabaseConfig
	logger logger.Logger
}

// NewDBConnection opens the database named by cfg and waits for it to answer,
// retrying with exponential backoff until cfg.ConnectTimeout elapses.
func NewDBConnection(ctx context.Context, cfg *config.DatabaseConfig, log logger.Logger) (*DBConnection, error) {
	if cfg == nil || !cfg.Enabled() {
		return nil, fmt.Errorf("database is not configured")
	}
	log = log.WithComponent("DBConnection")

	var dialector gorm.Dialector
	switch cfg.Driver {
	case DriverPostgres:
		dialector = postgres.Open(cfg.GetDSN())
	case DriverSQLite:
		dialector = sqlite.Open(cfg.GetDSN())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	log.Info(ctx, "Opening database",
		logger.String("driver", cfg.Driver),
		logger.String("host", cfg.Host),
		logger.String("database", cfg.Database),
	)

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Driver, err)
	}

	conn := &DBConnection{db: db, config: cfg, logger: log}
	if err := conn.configurePool(); err != nil {
		return nil, err
	}
	if err := conn.waitReady(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	if cfg.Driver == DriverPostgres {
		if err := conn.openPgxPool(ctx); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}

	log.Info(ctx, "Database connection established", logger.String("driver", cfg.Driver))
	return conn, nil
}

// NewDBConnectionFromGorm wraps an open GORM handle.
func NewDBConnectionFromGorm(db *gorm.DB, driver string, log logger.Logger) *DBConnection {
	return &DBConnection{db: db, config: &config.DatabaseConfig{Driver: driver}, logger: log.WithComponent("DBConnection")}
}

func (c *DBConnection) configurePool() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return fmt.Errorf("access sql.DB: %w", err)
	}
	if c.config.Driver == DriverSQLite {
		// one writer avoids "database is locked" under concurrent requests
		sqlDB.SetMaxOpenConns(1)
		return nil
	}
	if c.config.MaxConns > 0 {
		sqlDB.SetMaxOpenConns(c.config.MaxConns)
	}
	if c.config.MinConns > 0 {
		sqlDB.SetMaxIdleConns(c.config.MinConns)
	}
	sqlDB.SetConnMaxLifetime(c.config.MaxConnLifetime)
	sqlDB.SetConnMaxIdleTime(c.config.MaxConnIdleTime)
	return nil
}

func (c *DBConnection) waitReady(ctx context.Context) error {
	timeout := c.config.ConnectTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, c.Ping(ctx)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(timeout),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Warn(ctx, "database not reachable yet, retrying",
				logger.Err(err), logger.Duration("retry_in", next))
		}),
	)
	if err != nil {
		return fmt.Errorf("database not reachable: %w", err)
	}
	return nil
}

func (c *DBConnection) openPgxPool(ctx context.Context) error {
	poolConfig, err := pgxpool.ParseConfig(c.config.GetDSN())
	if err != nil {
		return fmt.Errorf("parse database dsn: %w", err)
	}
	if c.config.MaxConns > 0 {
		poolConfig.MaxConns = int32(c.config.MaxConns)
	}
	if c.config.MinConns > 0 {
		poolConfig.MinConns = int32(c.config.MinConns)
	}
	if c.config.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = c.config.MaxConnLifetime
	}
	if c.config.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = c.config.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("create pgx pool: %w", err)
	}
	c.pool = pool
	return nil
}

// Gorm returns the GORM handle.
func (c *DBConnection) Gorm() *gorm.DB {
	return c.db
}

// Pool returns the pgx pool, nil unless the driver is postgres.
func (c *DBConnection) Pool() *pgxpool.Pool {
	return c.pool
}

// Driver returns the configured driver name.
func (c *DBConnection) Driver() string {
	return c.config.Driver
}

// SQLDB returns the database/sql handle under GORM.
func (c *DBConnection) SQLDB() (*sql.DB, error) {
	return c.db.DB()
}

// Ping verifies the database answers. Latency above 100ms is logged.
func (c *DBConnection) Ping(ctx context.Context) error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	if latency := time.Since(start); latency > 100*time.Millisecond {
		c.logger.Warn(ctx, "High database latency detected", logger.Int64("latency_ms", latency.Milliseconds()))
	}
	return nil
}

// HealthCheck pings the database and reports pool statistics.
func (c *DBConnection) HealthCheck(ctx context.Context) (map[string]interface{}, error) {
	if err := c.Ping(ctx); err != nil {
		return nil, err
	}
	sqlDB, err := c.db.DB()
	if err != nil {
		return nil, err
	}
	stats := sqlDB.Stats()
	info := map[string]interface{}{
		"status":           "healthy",
		"driver":           c.config.Driver,
		"open_connections": stats.OpenConnections,
		"in_use":           stats.InUse,
		"idle":             stats.Idle,
		"wait_count":       stats.WaitCount,
	}
	if c.pool != nil {
		ps := c.pool.Stat()
		info["pgx_total_conns"] = ps.TotalConns()
		info["pgx_idle_conns"] = ps.IdleConns()
	}
	return info, nil
}

// Close releases both handles.
func (c *DBConnection) Close() error {
	if c.pool != nil {
		c.pool.Close()
	}
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
