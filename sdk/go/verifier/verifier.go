// Package verifier lets a resource server validate authz access tokens offline
// against the server's published JWKS.
package verifier

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

var (
	ErrKidNotFound  = errors.New("kid not found in JWKS")
	ErrNoKeysFound  = errors.New("no usable keys in JWKS response")
	ErrInvalidToken = errors.New("invalid token")
	ErrMissingScope = errors.New("token lacks required scope")
	errMissingKeyID = errors.New("token header has no kid")
)

const defaultMinRefreshInterval = 30 * time.Second

// Claims is the verified body of an access token.
type Claims struct {
	Scope    string `json:"scope,omitempty"`
	Username string `json:"usr,omitempty"`
	Role     string `json:"rol,omitempty"`
	Name     string `json:"name,omitempty"`
	UserID   string `json:"uid,omitempty"`
	jwt.RegisteredClaims
}

// Scopes splits the space separated scope claim.
func (c *Claims) Scopes() []string {
	return strings.Fields(c.Scope)
}

// HasScope reports whether the token grants scope.
func (c *Claims) HasScope(scope string) bool {
	for _, s := range c.Scopes() {
		if s == scope {
			return true
		}
	}
	return false
}

// Config configures a Verifier.
type Config struct {
	// JWKSURL is the authz /.well-known/jwks endpoint.
	JWKSURL string
	// Issuer is matched against iss when set.
	Issuer string
	// Audience is matched against aud; a resource server passes its own audience.
	Audience string
	// Leeway tolerates clock skew on exp and iat.
	Leeway time.Duration
	// MinRefreshInterval bounds how often an unknown kid triggers a refetch. Default 30s.
	MinRefreshInterval time.Duration
	// HTTPClient defaults to a client with a 10s timeout.
	HTTPClient *http.Client
}

// Verifier caches the JWKS and refreshes it when a token names an unknown key.
// Verifier 缓存 JWKS，并在令牌引用未知 kid 时刷新。
type Verifier struct {
	cfg    Config
	client *http.Client
	parser *jwt.Parser
	group  singleflight.Group

	mu          sync.RWMutex
	keys        map[string]*rsa.PublicKey
	etag        string
	lastRefresh time.Time
	now         func() time.Time
}

// New creates a Verifier. Keys are fetched lazily on the first Verify.
func New(cfg Config) *Verifier {
	if cfg.MinRefreshInterval <= 0 {
		cfg.MinRefreshInterval = defaultMinRefreshInterval
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return &Verifier{
		cfg:    cfg,
		client: client,
		parser: jwt.NewParser(opts...),
		keys:   make(map[string]*rsa.PublicKey),
		now:    time.Now,
	}
}

// Verify checks the signature and registered claims of raw and returns its claims.
func (v *Verifier) Verify(ctx context.Context, raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := v.parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errMissingKeyID
		}
		return v.key(ctx, kid)
	})
	if err != nil {
		if errors.Is(err, ErrKidNotFound) || errors.Is(err, ErrNoKeysFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// VerifyScopes verifies raw and requires every listed scope.
func (v *Verifier) VerifyScopes(ctx context.Context, raw string, scopes ...string) (*Claims, error) {
	claims, err := v.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	for _, s := range scopes {
		if !claims.HasScope(s) {
			return nil, fmt.Errorf("%w: %s", ErrMissingScope, s)
		}
	}
	return claims, nil
}

func (v *Verifier) key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	k, ok := v.keys[kid]
	recent := !v.lastRefresh.IsZero() && v.now().Sub(v.lastRefresh) < v.cfg.MinRefreshInterval
	v.mu.RUnlock()
	if ok {
		return k, nil
	}
	if recent {
		return nil, ErrKidNotFound
	}

	if _, err, _ := v.group.Do("refresh", func() (any, error) { return nil, v.Refresh(ctx) }); err != nil {
		return nil, err
	}

	v.mu.RLock()
	defer v.mu.RUnlock()
	if k, ok := v.keys[kid]; ok {
		return k, nil
	}
	return nil, ErrKidNotFound
}

// Refresh fetches the JWKS, honouring ETag revalidation.
func (v *Verifier) Refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.cfg.JWKSURL, nil)
	if err != nil {
		return err
	}
	v.mu.RLock()
	if v.etag != "" {
		req.Header.Set("If-None-Match", v.etag)
	}
	v.mu.RUnlock()

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch JWKS: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotModified:
		v.mu.Lock()
		v.lastRefresh = v.now()
		v.mu.Unlock()
		return nil
	case http.StatusOK:
	default:
		return fmt.Errorf("fetch JWKS: status code %d", resp.StatusCode)
	}

	var set jose.JSONWebKeySet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return fmt.Errorf("decode JWKS: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, jwk := range set.Keys {
		if jwk.Use != "" && jwk.Use != "sig" {
			continue
		}
		if pub, ok := jwk.Key.(*rsa.PublicKey); ok && jwk.KeyID != "" {
			keys[jwk.KeyID] = pub
		}
	}
	if len(keys) == 0 {
		return ErrNoKeysFound
	}

	v.mu.Lock()
	v.keys = keys
	v.etag = resp.Header.Get("ETag")
	v.lastRefresh = v.now()
	v.mu.Unlock()
	return nil
}
