// Package crypto provides token signing: RSA key custody (generated, file or Vault),
// rotation with a verification grace window, JWKS rendering and the RS256 token handler.
package crypto

import (
	"context"
	"crypto"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v4"

	"github.com/turtacn/authz/pkg/logger"
)

// SigningAlgorithm is the only JWS algorithm tokens are signed with.
const SigningAlgorithm = "RS256"

// SigningKey is an RSA key with the kid it is published under.
type SigningKey struct {
	ID        string
	Private   *rsa.PrivateKey
	CreatedAt time.Time
}

type retiredKey struct {
	public    *rsa.PublicKey
	retiredAt time.Time
}

// KeyManager holds the active signing key plus recently rotated-out public keys, so
// tokens signed before a rotation still verify until they expire.
type KeyManager struct {
	source      KeySource
	fixedKeyID  string
	gracePeriod time.Duration
	now         func() time.Time
	logger      logger.Logger

	mu      sync.RWMutex
	active  *SigningKey
	retired map[string]retiredKey
}

// NewKeyManager loads the initial key from source. A non-empty keyID pins the kid;
// otherwise the RFC 7638 thumbprint of the public key is used. gracePeriod bounds how
// long a rotated-out key keeps verifying and should be at least the token lifetime.
func NewKeyManager(ctx context.Context, source KeySource, keyID string, gracePeriod time.Duration, log logger.Logger) (*KeyManager, error) {
	km := &KeyManager{
		source:      source,
		fixedKeyID:  keyID,
		gracePeriod: gracePeriod,
		now:         time.Now,
		logger:      log.WithComponent("KeyManager"),
		retired:     make(map[string]retiredKey),
	}
	key, err := km.load(ctx)
	if err != nil {
		return nil, err
	}
	km.active = key

	km.logger.Info(ctx, "Signing key loaded",
		logger.String("source", source.Name()),
		logger.String("kid", key.ID),
		logger.Int("bits", key.Private.N.BitLen()),
	)
	return km, nil
}

func (km *KeyManager) load(ctx context.Context) (*SigningKey, error) {
	priv, err := km.source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load signing key from %s: %w", km.source.Name(), err)
	}
	kid := km.fixedKeyID
	if kid == "" {
		if kid, err = DeriveKeyID(&priv.PublicKey); err != nil {
			return nil, err
		}
	}
	return &SigningKey{ID: kid, Private: priv, CreatedAt: km.now()}, nil
}

// DeriveKeyID computes base64url(SHA-256(JWK canonical form)) per RFC 7638.
func DeriveKeyID(pub *rsa.PublicKey) (string, error) {
	jwk := jose.JSONWebKey{Key: pub}
	thumbprint, err := jwk.Thumbprint(crypto.SHA256)
	if err != nil {
		return "", fmt.Errorf("failed to compute key thumbprint: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(thumbprint), nil
}

// SigningKey returns the key new tokens are signed with.
func (km *KeyManager) SigningKey() *SigningKey {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return km.active
}

// PublicKey returns the verification key for kid.
func (km *KeyManager) PublicKey(kid string) (*rsa.PublicKey, error) {
	km.mu.RLock()
	defer km.mu.RUnlock()

	if km.active.ID == kid {
		return &km.active.Private.PublicKey, nil
	}
	if r, ok := km.retired[kid]; ok && km.now().Sub(r.retiredAt) <= km.gracePeriod {
		return r.public, nil
	}
	return nil, fmt.Errorf("unknown signing key %q", kid)
}

// Rotate reloads the key from its source. The previous key is kept for verification
// during the grace period. Rotating to the same kid is a no-op.
func (km *KeyManager) Rotate(ctx context.Context) (*SigningKey, error) {
	next, err := km.load(ctx)
	if err != nil {
		return nil, err
	}

	km.mu.Lock()
	defer km.mu.Unlock()

	if next.ID == km.active.ID {
		return km.active, nil
	}
	now := km.now()
	km.retired[km.active.ID] = retiredKey{public: &km.active.Private.PublicKey, retiredAt: now}
	for kid, r := range km.retired {
		if now.Sub(r.retiredAt) > km.gracePeriod {
			delete(km.retired, kid)
		}
	}
	previous := km.active.ID
	km.active = next

	km.logger.Info(ctx, "Signing key rotated",
		logger.String("previous_kid", previous),
		logger.String("kid", next.ID),
		logger.Duration("grace_period", km.gracePeriod),
	)
	return next, nil
}

// JWKS returns the public keys that currently verify, active key first.
func (km *KeyManager) JWKS() jose.JSONWebKeySet {
	km.mu.RLock()
	defer km.mu.RUnlock()

	set := jose.JSONWebKeySet{Keys: []jose.JSONWebKey{publicJWK(km.active.ID, &km.active.Private.PublicKey)}}
	now := km.now()
	for kid, r := range km.retired {
		if now.Sub(r.retiredAt) <= km.gracePeriod {
			set.Keys = append(set.Keys, publicJWK(kid, r.public))
		}
	}
	return set
}

func publicJWK(kid string, pub *rsa.PublicKey) jose.JSONWebKey {
	return jose.JSONWebKey{Key: pub, KeyID: kid, Algorithm: SigningAlgorithm, Use: "sig"}
}
