// Package bootstrap assembles the authz object graph from configuration. Both the
// server and the admin CLI build on it.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/segmentio/kafka-go"

	appservice "github.com/turtacn/authz/internal/application/service"
	"github.com/turtacn/authz/internal/config"
	"github.com/turtacn/authz/internal/domain/repository"
	"github.com/turtacn/authz/internal/domain/service"
	"github.com/turtacn/authz/internal/infrastructure/audit"
	"github.com/turtacn/authz/internal/infrastructure/auth"
	"github.com/turtacn/authz/internal/infrastructure/cache"
	"github.com/turtacn/authz/internal/infrastructure/consumers"
	"github.com/turtacn/authz/internal/infrastructure/crypto"
	"github.com/turtacn/authz/internal/infrastructure/memory"
	"github.com/turtacn/authz/internal/infrastructure/monitoring"
	"github.com/turtacn/authz/internal/infrastructure/persistence/postgres"
	redisconn "github.com/turtacn/authz/internal/infrastructure/persistence/redis"
	"github.com/turtacn/authz/internal/infrastructure/redis"
	"github.com/turtacn/authz/pkg/logger"
)

// Container holds every long-lived component. Optional backends are nil when
// not configured.
type Container struct {
	Config *config.Config
	Logger logger.Logger

	DB    *postgres.DBConnection
	Redis *redisconn.RedisConnection

	ClientStore repository.ClientRepository
	Clients     repository.ClientRegistry
	Users       repository.UserRepository
	Codes       repository.OngoingAuthorizationRepository
	TokenDAO    repository.AccessTokenDAO

	Keys       *crypto.KeyManager
	Tokens     *crypto.JWTTokenHandler
	Tracker    *service.TokenTracker
	Passwords  *auth.PasswordAuthenticator
	ClientAuth *auth.ClientAuthenticator

	Audit     service.AuditService
	Publisher *consumers.RevocationPublisher

	Registry *prometheus.Registry
	Metrics  *monitoring.Metrics
	Tracing  *monitoring.TracingManager
	Health   *monitoring.HealthChecker

	Service *appservice.AuthorizationService

	closers []func(context.Context) error
}

// New connects the configured backends and wires the engine.
func New(ctx context.Context, cfg *config.Config, log logger.Logger) (c *Container, err error) {
	c = &Container{
		Config:   cfg,
		Logger:   log,
		Registry: prometheus.NewRegistry(),
		Health:   monitoring.NewHealthChecker(2 * time.Second),
	}
	defer func() {
		if err != nil {
			_ = c.Close(context.Background())
		}
	}()

	c.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	c.Metrics = monitoring.NewMetrics(c.Registry)

	if c.Tracing, err = monitoring.NewTracingManager(&cfg.Tracing, log); err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	c.onClose(c.Tracing.Shutdown)

	if err = c.openStores(ctx); err != nil {
		return nil, err
	}
	if err = c.openKeys(ctx); err != nil {
		return nil, err
	}
	c.openMessaging()
	c.wireService()
	return c, nil
}

func (c *Container) openStores(ctx context.Context) error {
	cfg, log := c.Config, c.Logger

	if cfg.Database.Enabled() {
		db, err := postgres.NewDBConnection(ctx, &cfg.Database, log)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		c.DB = db
		c.onClose(func(context.Context) error { return db.Close() })
		c.Health.Register("database", db.Ping)

		if cfg.Database.AutoMigrate {
			if _, err := postgres.Migrate(ctx, db, log); err != nil {
				return fmt.Errorf("migrate database: %w", err)
			}
		}

		c.ClientStore = postgres.NewClientRegistry(db.Gorm())
		c.Users = postgres.NewUserRepository(db.Gorm())
	} else {
		log.Warn(ctx, "database not configured, clients and users live in memory")
		c.ClientStore = memory.NewClientRegistry()
		c.Users = memory.NewUserRepository()
	}

	c.Clients = c.ClientStore
	if cfg.Cache.Enabled {
		c.Clients = cache.NewCachedClientRegistry(c.ClientStore, cfg.Cache.ClientTTL, c.Metrics.ObserveClientCache)
	}

	if cfg.Redis.Enabled() {
		rc := redisconn.NewRedisConnection(&cfg.Redis, log)
		if err := rc.Connect(ctx); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		c.Redis = rc
		c.onClose(func(context.Context) error { return rc.Close() })
		c.Health.Register("redis", rc.Ping)
	}

	switch cfg.OAuth.CodeStore {
	case "redis":
		if c.Redis == nil {
			return errors.New("oauth.code_store redis needs a redis connection")
		}
		c.Codes = redis.NewOngoingAuthorizationStore(c.Redis.GetClient(), cfg.OAuth.CodeKeyPrefix, cfg.OAuth.CodeRetention)
	default:
		c.Codes = memory.NewOngoingAuthorizationStore()
	}

	switch cfg.Tracker.Backend {
	case "gorm":
		c.TokenDAO = postgres.NewGormAccessTokenDAO(c.DB.Gorm())
	case "pgx":
		if c.DB == nil || c.DB.Pool() == nil {
			return errors.New("tracker.backend pgx needs a postgres connection")
		}
		c.TokenDAO = postgres.NewPgxAccessTokenDAO(c.DB.Pool(), log)
	default:
		c.TokenDAO = memory.NewAccessTokenDAO()
	}
	c.Tracker = service.NewTokenTracker(c.TokenDAO, time.Now, log)
	return nil
}

func (c *Container) openKeys(ctx context.Context) error {
	source, err := crypto.NewKeySource(c.Config, c.Logger)
	if err != nil {
		return fmt.Errorf("init key source: %w", err)
	}
	// retired keys must keep verifying the tokens they signed
	c.Keys, err = crypto.NewKeyManager(ctx, source, c.Config.JWT.KeyID, c.Config.JWT.AccessTokenTTL, c.Logger)
	if err != nil {
		return fmt.Errorf("load signing key: %w", err)
	}
	c.Tokens = crypto.NewJWTTokenHandler(c.Keys, c.Config.JWT.Issuer, c.Config.JWT.AccessTokenTTL, time.Now, c.Logger)
	return nil
}

func (c *Container) openMessaging() {
	cfg := c.Config
	var sinks audit.Fanout
	if c.DB != nil {
		sinks = append(sinks, audit.NewGormAuditService(c.DB.Gorm()))
	}
	if cfg.Kafka.Enabled {
		if cfg.Kafka.InstanceID == "" {
			host, _ := os.Hostname()
			cfg.Kafka.InstanceID = host + "-" + uuid.NewString()[:8]
		}
		producer := audit.NewKafkaProducer(cfg.Kafka, c.Logger)
		c.onClose(func(context.Context) error { return producer.Close() })
		sinks = append(sinks, producer)

		c.Publisher = consumers.NewRevocationPublisher(cfg.Kafka)
		c.onClose(func(context.Context) error { return c.Publisher.Close() })

		brokers := cfg.Kafka.Brokers
		c.Health.Register("kafka", func(ctx context.Context) error {
			conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
			if err != nil {
				return err
			}
			return conn.Close()
		})
	}

	switch len(sinks) {
	case 0:
		c.Audit = audit.Noop{}
	case 1:
		c.Audit = sinks[0]
	default:
		c.Audit = sinks
	}
}

func (c *Container) wireService() {
	cfg, log := c.Config, c.Logger

	c.Passwords = auth.NewPasswordAuthenticator(c.Users, log)
	c.ClientAuth = auth.NewClientAuthenticator(c.Clients, log)

	verifiers := service.NewVerifierRegistry(c.Codes, time.Now)
	processors := service.NewProcessorRegistry(
		service.NewAuthorizationCodeProcessor(verifiers,
			service.NewOngoingAuthorizationFactory(cfg.OAuth.AuthorizationCodeTTL, time.Now), c.Codes, log),
		service.NewClientCredentialsProcessor(verifiers),
		service.NewPasswordProcessor(verifiers, c.Passwords, log),
	)

	deps := appservice.Dependencies{
		Contexts:   service.NewRequestContextFactory(c.Clients, c.Codes, log),
		Processors: processors,
		Tokens:     c.Tokens,
		Tracker:    c.Tracker,
		Audit:      c.Audit,
		Metrics:    c.Metrics,
		Tracing:    c.Tracing,
		Logger:     log,
	}
	if c.Publisher != nil {
		deps.Publisher = c.Publisher
	}
	c.Service = appservice.NewAuthorizationService(deps)
}

// RevocationConsumer builds the consumer that applies revocations from other
// instances, or nil when Kafka is disabled.
func (c *Container) RevocationConsumer() *consumers.RevocationConsumer {
	if !c.Config.Kafka.Enabled {
		return nil
	}
	return consumers.NewRevocationConsumer(c.Config.Kafka, c.Tracker, c.Logger)
}

func (c *Container) onClose(fn func(context.Context) error) {
	c.closers = append(c.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
