package config

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"github.com/turtacn/authz/pkg/constants"
	"github.com/turtacn/authz/pkg/logger"
)

// EnvPrefix prefixes every environment override, e.g. AUTHZ_SERVER_PORT.
const EnvPrefix = "AUTHZ"

// Loader reads the configuration from file and environment and can watch the file.
type Loader struct {
	v      *viper.Viper
	mu     sync.Mutex
	config *Config
}

// NewLoader creates a loader. An empty path searches ./config.yaml and /etc/authz/config.yaml.
func NewLoader(path string) *Loader {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/authz/")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{v: v}
}

// LoadConfig loads and validates the configuration.
func LoadConfig(path string) (*Config, error) {
	return NewLoader(path).Load()
}

// Load reads the file, applies environment overrides and validates the result.
// A missing file is not an error; defaults and environment then apply.
func (l *Loader) Load() (*Config, error) {
	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg, err := l.decode()
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.config = cfg
	l.mu.Unlock()
	return cfg, nil
}

// ConfigFileUsed returns the file the configuration was read from, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// Watch re-reads the file on change and applies the new log level to log.
// Other settings need a restart.
func (l *Loader) Watch(ctx context.Context, log logger.Logger) {
	if l.v.ConfigFileUsed() == "" {
		return
	}

	l.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := l.decode()
		if err != nil {
			log.Error(ctx, "ignoring invalid configuration change", err, logger.String("file", e.Name))
			return
		}

		l.mu.Lock()
		previous := l.config
		l.config = cfg
		l.mu.Unlock()

		if previous == nil || previous.Log.Level != cfg.Log.Level {
			log.SetLevel(constants.LogLevel(cfg.Log.Level))
			log.Info(ctx, "log level changed", logger.String("level", cfg.Log.Level))
		}
	})
	l.v.WatchConfig()
}

// Current returns the most recently loaded configuration.
func (l *Loader) Current() *Config {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.config
}

func (l *Loader) decode() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.grpc_port", 50051)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", constants.DefaultShutdownTimeout)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("database.driver", "")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.connect_timeout", "30s")

	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.connect_timeout", "30s")

	v.SetDefault("vault.mount_path", "secret")

	v.SetDefault("jwt.issuer", "authz")
	v.SetDefault("jwt.access_token_ttl", constants.AccessTokenDefaultTTL)
	v.SetDefault("jwt.key_source", "generate")
	v.SetDefault("jwt.vault_secret_key", "private_key")
	v.SetDefault("jwt.generated_bits", 2048)

	v.SetDefault("oauth.authorization_code_ttl", constants.AuthorizationCodeDefaultTTL)
	v.SetDefault("oauth.code_retention", constants.AuthorizationCodeRetention)
	v.SetDefault("oauth.code_store", "memory")
	v.SetDefault("oauth.code_key_prefix", "authz:code:")

	v.SetDefault("tracker.backend", "memory")
	v.SetDefault("tracker.cleanup_interval", constants.CleanupDefaultInterval)
	v.SetDefault("tracker.cleanup_enabled", true)

	v.SetDefault("kafka.audit_topic", "authz.audit")
	v.SetDefault("kafka.revocation_topic", "authz.revocations")
	v.SetDefault("kafka.consumer_group", "authz-revocations")
	v.SetDefault("kafka.write_timeout", "10s")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.default_rpm", 600)
	v.SetDefault("rate_limit.burst_size", 50)
	v.SetDefault("rate_limit.idle_expiry", "10m")

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.client_ttl", "1m")

	v.SetDefault("log.level", string(constants.LogLevelInfo))
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "stdout")

	v.SetDefault("tracing.service_name", constants.ServiceName)
	v.SetDefault("tracing.sample_rate", 1.0)

	v.SetDefault("monitoring.metrics_enabled", true)
	v.SetDefault("monitoring.pprof_enabled", false)
}
