// Package auth authenticates resource owners and clients against bcrypt hashes.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt ignores input beyond 72 bytes
const maxSecretLength = 72

var ErrSecretTooLong = errors.New("secret exceeds 72 bytes")

// dummyHash is compared against when the account does not exist so that unknown
// and known usernames take the same time to reject.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("authz-timing-equalizer"), bcrypt.DefaultCost)

// HashSecret returns the bcrypt hash of a password or client secret.
func HashSecret(secret string) (string, error) {
	if len(secret) > maxSecretLength {
		return "", ErrSecretTooLong
	}
	h, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(h), nil
}

// VerifySecret reports whether secret matches hash. An empty hash never matches.
func VerifySecret(secret, hash string) bool {
	if hash == "" || len(secret) > maxSecretLength {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(secret))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

// GenerateSecret returns 32 random bytes, base64url encoded.
func GenerateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
