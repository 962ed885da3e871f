// Package redis provides Redis connection management and client initialization.
// A single address connects standalone, several addresses a cluster, and a master
// name a sentinel-managed failover group.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"

	"github.com/turtacn/authz/internal/config"
	"github.com/turtacn/authz/pkg/logger"
)

// RedisConnection manages the Redis client lifecycle and health checks.
type RedisConnection struct {
	config *config.RedisConfig
	client redis.UniversalClient
	logger logger.Logger
}

// NewRedisConnection creates a connection manager. Call Connect before use.
func NewRedisConnection(cfg *config.RedisConfig, log logger.Logger) *RedisConnection {
	return &RedisConnection{config: cfg, logger: log.WithComponent("RedisConnection")}
}

// NewRedisConnectionFromClient wraps an existing client, e.g. one pointed at miniredis.
func NewRedisConnectionFromClient(client redis.UniversalClient, log logger.Logger) *RedisConnection {
	return &RedisConnection{config: &config.RedisConfig{}, client: client, logger: log.WithComponent("RedisConnection")}
}

// Connect builds the client and pings it, retrying with exponential backoff until
// ConnectTimeout elapses.
func (rc *RedisConnection) Connect(ctx context.Context) error {
	if rc.client != nil {
		return nil
	}
	if !rc.config.Enabled() {
		return fmt.Errorf("redis addresses not configured")
	}

	opts := &redis.UniversalOptions{
		Addrs:        rc.config.Addresses,
		MasterName:   rc.config.MasterName,
		Password:     rc.config.Password,
		DB:           rc.config.DB,
		PoolSize:     rc.config.PoolSize,
		MinIdleConns: rc.config.MinIdleConns,
		DialTimeout:  rc.config.DialTimeout,
	}
	if rc.config.EnableTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewUniversalClient(opts)

	timeout := rc.config.ConnectTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	_, err := backoff.Retry(ctx, func() (string, error) {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return client.Ping(pingCtx).Result()
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(timeout),
		backoff.WithNotify(func(err error, next time.Duration) {
			rc.logger.Warn(ctx, "redis not reachable yet, retrying",
				logger.Err(err), logger.Duration("retry_in", next))
		}),
	)
	if err != nil {
		_ = client.Close()
		return fmt.Errorf("redis ping failed: %w", err)
	}

	rc.client = client
	rc.logger.Info(ctx, "Redis connection established",
		logger.Strings("addresses", rc.config.Addresses),
		logger.Int("pool_size", rc.config.PoolSize),
	)
	return nil
}

// GetClient returns the client, nil before Connect.
func (rc *RedisConnection) GetClient() redis.UniversalClient {
	return rc.client
}

// Ping checks connectivity.
func (rc *RedisConnection) Ping(ctx context.Context) error {
	if rc.client == nil {
		return fmt.Errorf("redis connection not initialized")
	}
	return rc.client.Ping(ctx).Err()
}

// HealthCheck reports connectivity and pool statistics.
func (rc *RedisConnection) HealthCheck(ctx context.Context) (map[string]interface{}, error) {
	if rc.client == nil {
		return nil, fmt.Errorf("redis connection not initialized")
	}

	start := time.Now()
	err := rc.client.Ping(ctx).Err()
	health := map[string]interface{}{
		"connected":  err == nil,
		"latency_ms": time.Since(start).Milliseconds(),
	}
	if stats := rc.client.PoolStats(); stats != nil {
		health["total_conns"] = stats.TotalConns
		health["idle_conns"] = stats.IdleConns
	}
	return health, err
}

// Close releases the client.
func (rc *RedisConnection) Close() error {
	if rc.client == nil {
		return nil
	}
	err := rc.client.Close()
	rc.client = nil
	return err
}
