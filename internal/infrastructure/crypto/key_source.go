package crypto

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/turtacn/authz/internal/config"
	"github.com/turtacn/authz/pkg/logger"
)

const (
	KeySourceGenerate = "generate"
	KeySourceFile     = "file"
	KeySourceVault    = "vault"

	defaultRSABits = 2048
)

// KeySource yields the RSA private key tokens are signed with.
type KeySource interface {
	Name() string
	Load(ctx context.Context) (*rsa.PrivateKey, error)
}

// NewKeySource builds the source selected by jwt.key_source.
func NewKeySource(cfg *config.Config, log logger.Logger) (KeySource, error) {
	switch cfg.JWT.KeySource {
	case KeySourceGenerate, "":
		return &GeneratedKeySource{Bits: cfg.JWT.GeneratedBits}, nil
	case KeySourceFile:
		return &FileKeySource{Path: cfg.JWT.PrivateKeyPath}, nil
	case KeySourceVault:
		vc, err := NewVaultClient(&cfg.Vault, log)
		if err != nil {
			return nil, err
		}
		return NewVaultKeySource(vc, cfg.JWT.VaultSecretPath, cfg.JWT.VaultSecretKey, cfg.JWT.GeneratedBits), nil
	default:
		return nil, fmt.Errorf("unsupported key source %q", cfg.JWT.KeySource)
	}
}

// GeneratedKeySource creates a fresh key on every Load. Tokens do not survive a restart.
type GeneratedKeySource struct {
	Bits int
}

func (s *GeneratedKeySource) Name() string { return KeySourceGenerate }

func (s *GeneratedKeySource) Load(_ context.Context) (*rsa.PrivateKey, error) {
	return generateRSAKey(s.Bits)
}

// FileKeySource reads a PEM-encoded key (PKCS#1 or PKCS#8) from disk.
type FileKeySource struct {
	Path string
}

func (s *FileKeySource) Name() string { return KeySourceFile }

func (s *FileKeySource) Load(_ context.Context) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(s.Path) // #nosec G304 - path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}
	return ParseRSAPrivateKeyPEM(data)
}

// VaultKeySource keeps the PEM under one field of a KV v2 secret. When the secret
// does not exist yet a key is generated and written, so every instance pointed at
// the same path converges on one signing key.
type VaultKeySource struct {
	client *VaultClient
	path   string
	field  string
	bits   int
}

// NewVaultKeySource creates a source reading path/field.
func NewVaultKeySource(client *VaultClient, path, field string, bits int) *VaultKeySource {
	if field == "" {
		field = "private_key"
	}
	return &VaultKeySource{client: client, path: path, field: field, bits: bits}
}

func (s *VaultKeySource) Name() string { return KeySourceVault }

func (s *VaultKeySource) Load(ctx context.Context) (*rsa.PrivateKey, error) {
	data, err := s.client.ReadSecret(ctx, s.path)
	if err != nil {
		return nil, err
	}
	if data != nil {
		raw, ok := data[s.field].(string)
		if !ok || raw == "" {
			return nil, fmt.Errorf("vault secret %s has no %q field", s.path, s.field)
		}
		return ParseRSAPrivateKeyPEM([]byte(raw))
	}

	key, err := generateRSAKey(s.bits)
	if err != nil {
		return nil, err
	}
	if err := s.client.WriteSecret(ctx, s.path, SecretData{s.field: string(EncodeRSAPrivateKeyPEM(key))}); err != nil {
		return nil, err
	}
	return key, nil
}

func generateRSAKey(bits int) (*rsa.PrivateKey, error) {
	if bits <= 0 {
		bits = defaultRSABits
	}
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA key: %w", err)
	}
	return key, nil
}

// ParseRSAPrivateKeyPEM accepts "RSA PRIVATE KEY" (PKCS#1) and "PRIVATE KEY" (PKCS#8) blocks.
func ParseRSAPrivateKeyPEM(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block from signing key")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("signing key is %T, want RSA", parsed)
	}
	return key, nil
}

// EncodeRSAPrivateKeyPEM renders key as a PKCS#1 PEM block.
func EncodeRSAPrivateKeyPEM(key *rsa.PrivateKey) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
}
