package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/authz/internal/domain/models"
	"github.com/turtacn/authz/internal/infrastructure/auth"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	cfg := "database:\n" +
		"  driver: sqlite\n" +
		"  dsn: " + filepath.Join(dir, "authz.db") + "\n" +
		"tracker:\n" +
		"  backend: gorm\n" +
		"monitoring:\n" +
		"  metrics_enabled: false\n"
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}

func run(t *testing.T, cfgPath, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestClientCreate(t *testing.T) {
	cfgPath := writeConfig(t)

	out, err := run(t, cfgPath, "", "client", "create",
		"--id", "orders-1", "--name", "orders", "--type", "service",
		"--audience", "https://orders", "--registered-scopes", "read:x write:x",
		"--allow", "web=read:x")
	require.NoError(t, err)
	assert.Contains(t, out, "client_id:     orders-1")

	secret := regexp.MustCompile(`client_secret: (\S+)`).FindStringSubmatch(out)
	require.Len(t, secret, 2)

	opts := &adminOptions{configPath: cfgPath}
	c, err := opts.open(context.Background())
	require.NoError(t, err)
	defer c.Close(context.Background())

	stored, err := c.ClientStore.FindByClientID(context.Background(), "orders-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "https://orders", stored.Audience)
	assert.Equal(t, "read:x write:x", stored.RegisteredScopes.String())
	require.Len(t, stored.AllowedClients, 1)
	assert.Equal(t, "web", stored.AllowedClients[0].SourceClientName)
	assert.True(t, auth.VerifySecret(secret[1], stored.ClientSecretHash))
}

func TestClientCreate_Rejected(t *testing.T) {
	cfgPath := writeConfig(t)

	_, err := run(t, cfgPath, "", "client", "create", "--name", "web", "--type", "UI")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "callback")

	_, err = run(t, cfgPath, "", "client", "create", "--name", "web", "--type", "DESKTOP")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DESKTOP")

	_, err = run(t, cfgPath, "", "client", "create",
		"--name", "orders", "--type", "SERVICE", "--audience", "https://orders",
		"--registered-scopes", "read:x", "--allow", "web")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source=scope1,scope2")
}

func TestUserCreate(t *testing.T) {
	cfgPath := writeConfig(t)

	out, err := run(t, cfgPath, "s3cret\n", "user", "create",
		"--id", "u-42", "--username", "alice", "--email", "alice@example.com",
		"--authorities", "read:x", "--password-stdin")
	require.NoError(t, err)
	assert.Contains(t, out, "user_id: u-42")

	_, err = run(t, cfgPath, "", "user", "create", "--username", "alice", "--password", "other")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "taken")

	_, err = run(t, cfgPath, "", "user", "create", "--username", "bob")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password is required")

	opts := &adminOptions{configPath: cfgPath}
	c, err := opts.open(context.Background())
	require.NoError(t, err)
	defer c.Close(context.Background())

	principal, err := c.Passwords.Authenticate(context.Background(), "alice", "s3cret")
	require.NoError(t, err)
	user, ok := principal.(*models.UserPrincipal)
	require.True(t, ok)
	assert.Equal(t, "u-42", user.User.ID)
	assert.Equal(t, "read:x", user.Authorities.String())
}

func TestTokenMaintenance(t *testing.T) {
	cfgPath := writeConfig(t)

	out, err := run(t, cfgPath, "", "migrate")
	require.NoError(t, err)
	assert.Equal(t, "0 migrations applied\n", out)

	out, err = run(t, cfgPath, "", "token", "cleanup")
	require.NoError(t, err)
	assert.Equal(t, "scanned=0 deleted=0 failed=0\n", out)

	out, err = run(t, cfgPath, "", "token", "revoke", "no-such-jti")
	require.NoError(t, err)
	assert.Contains(t, out, "not tracked")

	out, err = run(t, cfgPath, "", "token", "introspect", "not-a-jwt")
	require.NoError(t, err)
	assert.JSONEq(t, `{"active":false}`, out)

	_, err = run(t, cfgPath, "", "token", "revoke")
	assert.Error(t, err)
}
