package service_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/authz/internal/domain/models"
	"github.com/turtacn/authz/pkg/errors"
)

func TestAuthorizationCode_RedeemOnce(t *testing.T) {
	e := newEngine(t)

	resp, err := e.authorize(asAlice(), codeRequest("read:x"))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Code)
	assert.Equal(t, "xyz", resp.State)
	assert.Equal(t, uiCallback, resp.RedirectURI)

	claims, err := e.token(context.Background(), exchangeRequest(resp.Code))
	require.NoError(t, err)

	want := &models.TokenClaims{
		Subject:  "ui-1|uid=u-42",
		Scope:    models.Scopes{"read:x"},
		Audience: svcAudience,
		Username: "alice",
		Role:     "admin",
		Name:     "alice@example.com",
		UserID:   "u-42",
	}
	if diff := cmp.Diff(want, claims); diff != "" {
		t.Errorf("claims mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 0, e.store.Len())

	_, err = e.token(context.Background(), exchangeRequest(resp.Code))
	assert.True(t, errors.HasReason(err, errors.ReasonUnknownAuthorizationRequest), "got %v", err)
}

func TestAuthorizationCode_DefaultScopeIsNarrowedByRelation(t *testing.T) {
	e := newEngine(t)
	e.clients.Save(context.Background(), &models.OAuthClient{
		ClientID:         "svc-2",
		Name:             "svc2",
		Audience:         "https://svc2",
		RegisteredScopes: models.NewScopes("read:x", "write:x"),
		AllowedClients:   []models.ClientAllowRelation{{SourceClientName: "ui-app", AllowedScopes: models.NewScopes("read:x")}},
	})

	resp, err := e.authorize(asAlice(), codeRequest())
	require.NoError(t, err)

	req := exchangeRequest(resp.Code)
	req.Audience = "https://svc2"
	claims, err := e.token(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.Scopes{"read:x"}, claims.Scope)
}

func TestAuthorizationCode_DefaultScopeIsUserAuthority(t *testing.T) {
	e := newEngine(t)

	resp, err := e.authorize(asAlice(), codeRequest())
	require.NoError(t, err)

	oa, err := e.store.FindByCode(context.Background(), resp.Code)
	require.NoError(t, err)
	assert.Equal(t, models.Scopes{"read:x", "write:x"}, oa.Scope)
	assert.Equal(t, e.now.Add(time.Minute), oa.Expiration)
}

func TestAuthorizationCode_AuthorizePhaseFailuresPersistNothing(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.AuthorizationRequest)
		reason errors.Reason
	}{
		{"service client", func(r *models.AuthorizationRequest) { r.ClientID = "svc-1" }, errors.ReasonGrantNotPermitted},
		{"unknown client", func(r *models.AuthorizationRequest) { r.ClientID = "nope" }, errors.ReasonUnregisteredClient},
		{"unregistered callback", func(r *models.AuthorizationRequest) { r.RedirectURI = "https://evil/cb" }, errors.ReasonUnregisteredCallback},
		{"token response type", func(r *models.AuthorizationRequest) { r.ResponseType = "token" }, errors.ReasonInvalidResponseType},
		{"scope beyond authority", func(r *models.AuthorizationRequest) { r.Scope = models.NewScopes("admin:x") }, errors.ReasonScopeTooBroad},
		{"callback checked before response type", func(r *models.AuthorizationRequest) {
			r.RedirectURI = "https://evil/cb"
			r.ResponseType = "token"
		}, errors.ReasonUnregisteredCallback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(t)
			req := codeRequest()
			tt.mutate(req)

			_, err := e.authorize(asAlice(), req)
			assert.True(t, errors.HasReason(err, tt.reason), "got %v", err)
			assert.Equal(t, 0, e.store.Len())
		})
	}
}

func TestAuthorizationCode_RequiresAuthenticatedUser(t *testing.T) {
	e := newEngine(t)

	_, err := e.authorize(context.Background(), codeRequest())
	assert.True(t, errors.HasReason(err, errors.ReasonAuthenticationFailed))
}

func TestAuthorizationCode_InsufficientUserAuthority(t *testing.T) {
	e := newEngine(t)
	bob := alice()
	bob.Authorities = models.NewScopes("write:x")
	ctx := models.ContextWithPrincipal(context.Background(), bob)

	_, err := e.authorize(ctx, codeRequest())
	assert.True(t, errors.HasReason(err, errors.ReasonInsufficientUserAuthority))
	assert.Equal(t, 0, e.store.Len())
}

func TestAuthorizationCode_FailedExchangeDeletesRecord(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(e *engine, req *models.TokenRequest)
		reason  errors.Reason
	}{
		{"expired", func(e *engine, _ *models.TokenRequest) { e.now = e.now.Add(61 * time.Second) }, errors.ReasonAuthorizationExpired},
		{"redirect mismatch", func(_ *engine, r *models.TokenRequest) { r.RedirectURI = "https://app/other" }, errors.ReasonRedirectMismatch},
		{"client mismatch", func(_ *engine, r *models.TokenRequest) { r.ClientID = "batch-1" }, errors.ReasonClientMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(t)
			resp, err := e.authorize(asAlice(), codeRequest("read:x"))
			require.NoError(t, err)

			req := exchangeRequest(resp.Code)
			tt.prepare(e, req)

			_, err = e.token(context.Background(), req)
			assert.True(t, errors.HasReason(err, tt.reason), "got %v", err)
			assert.Equal(t, 0, e.store.Len())
		})
	}
}

func TestAuthorizationCode_ExpiresStrictlyAfterTTL(t *testing.T) {
	e := newEngine(t)
	resp, err := e.authorize(asAlice(), codeRequest("read:x"))
	require.NoError(t, err)

	e.now = e.now.Add(time.Minute)
	_, err = e.token(context.Background(), exchangeRequest(resp.Code))
	assert.NoError(t, err)
}

func TestAuthorizationCode_TokenPhaseRejections(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*models.TokenRequest)
		reason     errors.Reason
		keepRecord bool
	}{
		{"scope on exchange", func(r *models.TokenRequest) { r.Scope = models.NewScopes("read:x") }, errors.ReasonScopeMustNotBeSpecified, true},
		{"scope outside relation", func(r *models.TokenRequest) { r.Scope = models.NewScopes("admin:x") }, errors.ReasonScopeNotAllowed, true},
		{"missing redirect", func(r *models.TokenRequest) { r.RedirectURI = "" }, errors.ReasonMissingParameter, true},
		{"missing code", func(r *models.TokenRequest) { r.Code = "" }, errors.ReasonMissingParameter, true},
		{"unknown code", func(r *models.TokenRequest) { r.Code = "nope" }, errors.ReasonUnknownAuthorizationRequest, true},
		{"missing audience", func(r *models.TokenRequest) { r.Audience = "" }, errors.ReasonMissingParameter, true},
		{"unknown audience", func(r *models.TokenRequest) { r.Audience = "https://nowhere" }, errors.ReasonUnregisteredClient, true},
		{"no relation", func(r *models.TokenRequest) { r.ClientID = "stranger-1" }, errors.ReasonRelationNotAllowed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(t)
			resp, err := e.authorize(asAlice(), codeRequest("read:x"))
			require.NoError(t, err)

			req := exchangeRequest(resp.Code)
			tt.mutate(req)

			_, err = e.token(context.Background(), req)
			assert.True(t, errors.HasReason(err, tt.reason), "got %v", err)
			if tt.keepRecord {
				assert.Equal(t, 1, e.store.Len())
			}
		})
	}
}

func TestAuthorizationCode_ConcurrentRedemptionMintsOnce(t *testing.T) {
	e := newEngine(t)
	resp, err := e.authorize(asAlice(), codeRequest("read:x"))
	require.NoError(t, err)

	var successes, unknown int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.token(context.Background(), exchangeRequest(resp.Code))
			switch {
			case err == nil:
				atomic.AddInt32(&successes, 1)
			case errors.HasReason(err, errors.ReasonUnknownAuthorizationRequest):
				atomic.AddInt32(&unknown, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes)
	assert.Equal(t, int32(7), unknown)
}
