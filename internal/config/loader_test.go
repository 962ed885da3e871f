package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "server:\n  port: 9090\n"))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, time.Minute, cfg.OAuth.AuthorizationCodeTTL)
	assert.Equal(t, 5*time.Minute, cfg.OAuth.CodeRetention)
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTokenTTL)
	assert.Equal(t, "memory", cfg.Tracker.Backend)
	assert.Equal(t, "generate", cfg.JWT.KeySource)
}

func TestLoadConfig_DurationsAndEnvOverride(t *testing.T) {
	t.Setenv("AUTHZ_JWT_ACCESS_TOKEN_TTL", "90s")
	t.Setenv("AUTHZ_LOG_LEVEL", "debug")

	cfg, err := LoadConfig(writeConfig(t, `
oauth:
  authorization_code_ttl: 30s
tracker:
  cleanup_interval: 2m
`))
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.OAuth.AuthorizationCodeTTL)
	assert.Equal(t, 2*time.Minute, cfg.Tracker.CleanupInterval)
	assert.Equal(t, 90*time.Second, cfg.JWT.AccessTokenTTL)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfig_CrossFieldValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"file key without path", "jwt:\n  key_source: file\n", "jwt.private_key_path"},
		{"redis code store without redis", "oauth:\n  code_store: redis\n", "redis.addresses"},
		{"pgx tracker on sqlite", "database:\n  driver: sqlite\ntracker:\n  backend: pgx\n", "requires database.driver postgres"},
		{"gorm tracker without database", "tracker:\n  backend: gorm\n", "database.driver is required"},
		{"kafka without brokers", "kafka:\n  enabled: true\n", "kafka.brokers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDatabaseConfig_GetDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "authz", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=authz sslmode=disable", c.GetDSN())

	c.DSN = "file::memory:"
	assert.Equal(t, "file::memory:", c.GetDSN())
}
