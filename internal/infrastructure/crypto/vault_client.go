package crypto

import (
	"context"
	"errors"
	"fmt"

	vault "github.com/hashicorp/vault/api"

	"github.com/turtacn/authz/internal/config"
	"github.com/turtacn/authz/pkg/logger"
)

// SecretData is the payload of a KV v2 secret.
type SecretData map[string]interface{}

// VaultClient reads and writes KV v2 secrets under one mount.
type VaultClient struct {
	client    *vault.Client
	mountPath string
	log       logger.Logger
}

// NewVaultClient creates a client for cfg.Address authenticated with cfg.Token.
func NewVaultClient(cfg *config.VaultConfig, log logger.Logger) (*VaultClient, error) {
	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = cfg.Address

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("create vault client: %w", err)
	}
	client.SetToken(cfg.Token)

	mount := cfg.MountPath
	if mount == "" {
		mount = "secret"
	}
	return &VaultClient{client: client, mountPath: mount, log: log.WithComponent("VaultClient")}, nil
}

// ReadSecret returns the latest version of the secret at path, nil when absent.
func (v *VaultClient) ReadSecret(ctx context.Context, path string) (SecretData, error) {
	secret, err := v.client.KVv2(v.mountPath).Get(ctx, path)
	if err != nil {
		if errors.Is(err, vault.ErrSecretNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("read vault secret %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, nil
	}
	return secret.Data, nil
}

// WriteSecret stores data as a new version of the secret at path.
func (v *VaultClient) WriteSecret(ctx context.Context, path string, data SecretData) error {
	if _, err := v.client.KVv2(v.mountPath).Put(ctx, path, data); err != nil {
		return fmt.Errorf("write vault secret %s: %w", path, err)
	}
	v.log.Info(ctx, "Vault secret written", logger.String("path", path))
	return nil
}

// Health reports whether Vault is initialized and unsealed.
func (v *VaultClient) Health(ctx context.Context) error {
	resp, err := v.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health: %w", err)
	}
	if resp.Sealed {
		return fmt.Errorf("vault is sealed")
	}
	return nil
}
