package config

import (
	"fmt"
	"strings"
	"time"
)

// Config holds the application's configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Vault      VaultConfig      `mapstructure:"vault"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	OAuth      OAuthConfig      `mapstructure:"oauth"`
	Tracker    TrackerConfig    `mapstructure:"tracker"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Log        LogConfig        `mapstructure:"log"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	GRPCPort        int           `mapstructure:"grpc_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// Addr returns the HTTP listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GRPCAddr returns the gRPC listen address.
func (c ServerConfig) GRPCAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.GRPCPort)
}

// DatabaseConfig selects the relational backend. Driver is "postgres" or "sqlite";
// for sqlite, DSN is a file path or "file::memory:?cache=shared".
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
}

// GetDSN returns the explicit DSN, or builds a postgres one from the parts.
func (c *DatabaseConfig) GetDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// Enabled reports whether a relational database is configured.
func (c *DatabaseConfig) Enabled() bool {
	return c.Driver != ""
}

type RedisConfig struct {
	Addresses      []string      `mapstructure:"addresses"`
	MasterName     string        `mapstructure:"master_name"`
	Password       string        `mapstructure:"password"`
	DB             int           `mapstructure:"db"`
	PoolSize       int           `mapstructure:"pool_size"`
	MinIdleConns   int           `mapstructure:"min_idle_conns"`
	DialTimeout    time.Duration `mapstructure:"dial_timeout"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	EnableTLS      bool          `mapstructure:"enable_tls"`
}

// Enabled reports whether a redis server is configured.
func (c *RedisConfig) Enabled() bool {
	return len(c.Addresses) > 0
}

type VaultConfig struct {
	Address   string `mapstructure:"address"`
	Token     string `mapstructure:"token"`
	MountPath string `mapstructure:"mount_path"`
}

// JWTConfig controls token minting. KeySource is "generate", "file" or "vault".
type JWTConfig struct {
	Issuer          string        `mapstructure:"issuer"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	KeySource       string        `mapstructure:"key_source"`
	PrivateKeyPath  string        `mapstructure:"private_key_path"`
	KeyID           string        `mapstructure:"key_id"`
	VaultSecretPath string        `mapstructure:"vault_secret_path"`
	VaultSecretKey  string        `mapstructure:"vault_secret_key"`
	GeneratedBits   int           `mapstructure:"generated_bits"`
}

// OAuthConfig controls the authorization-code lifecycle. CodeStore is "redis" or "memory".
type OAuthConfig struct {
	AuthorizationCodeTTL time.Duration `mapstructure:"authorization_code_ttl"`
	CodeRetention        time.Duration `mapstructure:"code_retention"`
	CodeStore            string        `mapstructure:"code_store"`
	CodeKeyPrefix        string        `mapstructure:"code_key_prefix"`
}

// TrackerConfig selects the token tracking backend: "gorm", "pgx" or "memory".
type TrackerConfig struct {
	Backend         string        `mapstructure:"backend"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	CleanupEnabled  bool          `mapstructure:"cleanup_enabled"`
}

type KafkaConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Brokers         []string      `mapstructure:"brokers"`
	AuditTopic      string        `mapstructure:"audit_topic"`
	RevocationTopic string        `mapstructure:"revocation_topic"`
	ConsumerGroup   string        `mapstructure:"consumer_group"`
	InstanceID      string        `mapstructure:"instance_id"`
	// AuditSigningKey, when set, adds an HMAC-SHA256 signature header to audit messages.
	AuditSigningKey string        `mapstructure:"audit_signing_key"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
}

type RateLimitConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	DefaultRPM int           `mapstructure:"default_rpm"`
	BurstSize  int           `mapstructure:"burst_size"`
	IdleExpiry time.Duration `mapstructure:"idle_expiry"`
}

type CacheConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	ClientTTL time.Duration `mapstructure:"client_ttl"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	SampleRate     float64 `mapstructure:"sample_rate"`
}

type MonitoringConfig struct {
	MetricsEnabled bool `mapstructure:"metrics_enabled"`
	PprofEnabled   bool `mapstructure:"pprof_enabled"`
}

// Validate checks cross-field rules.
func (c *Config) Validate() error {
	var problems []string

	if c.Server.Port <= 0 {
		problems = append(problems, "server.port must be positive")
	}

	switch c.Database.Driver {
	case "", "postgres", "sqlite":
	default:
		problems = append(problems, fmt.Sprintf("database.driver %q is not supported", c.Database.Driver))
	}

	switch c.JWT.KeySource {
	case "generate":
	case "file":
		if c.JWT.PrivateKeyPath == "" {
			problems = append(problems, "jwt.private_key_path is required when jwt.key_source is file")
		}
	case "vault":
		if c.Vault.Address == "" || c.JWT.VaultSecretPath == "" {
			problems = append(problems, "vault.address and jwt.vault_secret_path are required when jwt.key_source is vault")
		}
	default:
		problems = append(problems, fmt.Sprintf("jwt.key_source %q is not supported", c.JWT.KeySource))
	}
	if c.JWT.AccessTokenTTL <= 0 {
		problems = append(problems, "jwt.access_token_ttl must be positive")
	}

	switch c.OAuth.CodeStore {
	case "memory":
	case "redis":
		if !c.Redis.Enabled() {
			problems = append(problems, "redis.addresses is required when oauth.code_store is redis")
		}
	default:
		problems = append(problems, fmt.Sprintf("oauth.code_store %q is not supported", c.OAuth.CodeStore))
	}
	if c.OAuth.AuthorizationCodeTTL <= 0 {
		problems = append(problems, "oauth.authorization_code_ttl must be positive")
	}

	switch c.Tracker.Backend {
	case "memory":
	case "gorm":
		if !c.Database.Enabled() {
			problems = append(problems, "database.driver is required when tracker.backend is gorm")
		}
	case "pgx":
		if c.Database.Driver != "postgres" {
			problems = append(problems, "tracker.backend pgx requires database.driver postgres")
		}
	default:
		problems = append(problems, fmt.Sprintf("tracker.backend %q is not supported", c.Tracker.Backend))
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		problems = append(problems, "kafka.brokers is required when kafka is enabled")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
