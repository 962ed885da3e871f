package verifier_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/authz/internal/domain/models"
	"github.com/turtacn/authz/internal/infrastructure/crypto"
	"github.com/turtacn/authz/internal/interfaces/http/handlers"
	"github.com/turtacn/authz/internal/interfaces/http/middleware"
	"github.com/turtacn/authz/pkg/logger"
	"github.com/turtacn/authz/sdk/go/verifier"
)

const issuer = "https://authz.example"

type jwksServer struct {
	*httptest.Server
	keys     *crypto.KeyManager
	requests atomic.Int32
}

func newJWKSServer(t *testing.T) *jwksServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	km, err := crypto.NewKeyManager(context.Background(), &crypto.GeneratedKeySource{Bits: 2048}, "", time.Hour, logger.NewNoopLogger())
	require.NoError(t, err)

	s := &jwksServer{keys: km}
	engine := gin.New()
	engine.GET("/.well-known/jwks", middleware.ETagCache(time.Minute), handlers.NewJWKSHandler(km).GetJWKS)
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		engine.ServeHTTP(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *jwksServer) url() string { return s.URL + "/.well-known/jwks" }

func (s *jwksServer) mint(t *testing.T, now func() time.Time, audience string, scopes ...string) string {
	t.Helper()
	h := crypto.NewJWTTokenHandler(s.keys, issuer, 10*time.Minute, now, logger.NewNoopLogger())
	claims := &models.TokenClaims{Subject: "batch-1", Audience: audience, Scope: models.NewScopes(scopes...)}
	resp, err := h.GenerateToken(context.Background(), &models.TokenRequest{}, claims, 0)
	require.NoError(t, err)
	return resp.AccessToken
}

func TestVerifier_Verify(t *testing.T) {
	srv := newJWKSServer(t)
	ctx := context.Background()
	raw := srv.mint(t, nil, "https://svc", "read:x")

	v := verifier.New(verifier.Config{JWKSURL: srv.url(), Issuer: issuer, Audience: "https://svc"})

	claims, err := v.Verify(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, "batch-1", claims.Subject)
	assert.True(t, claims.HasScope("read:x"))
	assert.False(t, claims.HasScope("write:x"))

	_, err = v.Verify(ctx, raw)
	require.NoError(t, err)
	assert.EqualValues(t, 1, srv.requests.Load(), "known kid is served from cache")

	_, err = v.VerifyScopes(ctx, raw, "read:x", "write:x")
	assert.ErrorIs(t, err, verifier.ErrMissingScope)

	other := verifier.New(verifier.Config{JWKSURL: srv.url(), Audience: "https://other"})
	_, err = other.Verify(ctx, raw)
	assert.ErrorIs(t, err, verifier.ErrInvalidToken)

	expired := srv.mint(t, func() time.Time { return time.Now().Add(-time.Hour) }, "https://svc", "read:x")
	_, err = v.Verify(ctx, expired)
	assert.ErrorIs(t, err, verifier.ErrInvalidToken)

	_, err = v.Verify(ctx, "not.a.jwt")
	assert.ErrorIs(t, err, verifier.ErrInvalidToken)
}

func TestVerifier_FollowsKeyRotation(t *testing.T) {
	srv := newJWKSServer(t)
	ctx := context.Background()

	throttled := verifier.New(verifier.Config{JWKSURL: srv.url(), Audience: "https://svc"})
	eager := verifier.New(verifier.Config{JWKSURL: srv.url(), Audience: "https://svc", MinRefreshInterval: time.Nanosecond})

	before := srv.mint(t, nil, "https://svc", "read:x")
	_, err := throttled.Verify(ctx, before)
	require.NoError(t, err)
	_, err = eager.Verify(ctx, before)
	require.NoError(t, err)

	_, err = srv.keys.Rotate(ctx)
	require.NoError(t, err)
	after := srv.mint(t, nil, "https://svc", "read:x")

	_, err = throttled.Verify(ctx, after)
	assert.ErrorIs(t, err, verifier.ErrKidNotFound)

	claims, err := eager.Verify(ctx, after)
	require.NoError(t, err)
	assert.Equal(t, "batch-1", claims.Subject)

	// unchanged key set revalidates with a 304
	require.NoError(t, eager.Refresh(ctx))
	_, err = eager.Verify(ctx, after)
	assert.NoError(t, err)
}

func TestVerifier_UnreachableJWKS(t *testing.T) {
	srv := newJWKSServer(t)
	raw := srv.mint(t, nil, "", "read:x")

	v := verifier.New(verifier.Config{JWKSURL: srv.URL + "/missing"})
	_, err := v.Verify(context.Background(), raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status code 404")
}
