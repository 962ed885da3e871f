package service_test

import (
	"context"
	goerrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/authz/internal/domain/models"
	"github.com/turtacn/authz/pkg/constants"
	"github.com/turtacn/authz/pkg/errors"
)

func clientCredentialsRequest(clientID string, scope ...string) *models.TokenRequest {
	return &models.TokenRequest{
		GrantType: constants.GrantTypeClientCredentials,
		ClientID:  clientID,
		Audience:  svcAudience,
		Scope:     models.NewScopes(scope...),
	}
}

func TestClientCredentials_IssuesClientBoundClaims(t *testing.T) {
	e := newEngine(t)

	claims, err := e.token(context.Background(), clientCredentialsRequest("batch-1", "read:x"))
	require.NoError(t, err)
	assert.Equal(t, "batch-1", claims.Subject)
	assert.Equal(t, models.Scopes{"read:x"}, claims.Scope)
	assert.Equal(t, svcAudience, claims.Audience)
	assert.False(t, claims.IsUserBound())
}

func TestClientCredentials_EmptyScope(t *testing.T) {
	e := newEngine(t)

	_, err := e.token(context.Background(), clientCredentialsRequest("batch-1"))
	require.Error(t, err)
	assert.True(t, errors.HasReason(err, errors.ReasonMissingParameter))

	ae, ok := errors.AsAuthzError(err)
	require.True(t, ok)
	assert.Equal(t, "scope", ae.Metadata()["parameter"])
}

func TestClientCredentials_ScopeBeyondRelation(t *testing.T) {
	e := newEngine(t)

	_, err := e.token(context.Background(), clientCredentialsRequest("batch-1", "read:x", "write:x"))
	ae, ok := errors.AsAuthzError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ReasonScopeNotAllowed, ae.Reason())
	assert.Equal(t, "batch", ae.Metadata()["source_client"])
	assert.Equal(t, "svc", ae.Metadata()["target_client"])
	assert.Equal(t, []string{"write:x"}, ae.Metadata()["rejected_scopes"])
}

func TestClientCredentials_WithoutRelationNothingIsAllowed(t *testing.T) {
	e := newEngine(t)

	_, err := e.token(context.Background(), clientCredentialsRequest("stranger-1", "read:x"))
	assert.True(t, errors.HasReason(err, errors.ReasonScopeNotAllowed), "got %v", err)
}

func TestClientCredentials_UnknownClients(t *testing.T) {
	e := newEngine(t)

	_, err := e.token(context.Background(), clientCredentialsRequest("ghost", "read:x"))
	assert.True(t, errors.HasReason(err, errors.ReasonUnregisteredClient))

	req := clientCredentialsRequest("batch-1", "read:x")
	req.Audience = "https://ghost"
	_, err = e.token(context.Background(), req)
	assert.True(t, errors.HasReason(err, errors.ReasonUnregisteredClient))
}

func passwordRequest(scope ...string) *models.TokenRequest {
	return &models.TokenRequest{
		GrantType: constants.GrantTypePassword,
		ClientID:  "ui-1",
		Audience:  svcAudience,
		Username:  "alice",
		Password:  "s3cret",
		Scope:     models.NewScopes(scope...),
	}
}

func TestPassword_DefaultsToUserAuthority(t *testing.T) {
	e := newEngine(t)
	e.auth.On("Authenticate", mock.Anything, "alice", "s3cret").Return(alice(), nil)

	claims, err := e.token(context.Background(), passwordRequest())
	require.NoError(t, err)
	assert.Equal(t, "ui-1|uid=u-42", claims.Subject)
	assert.Equal(t, models.Scopes{"read:x", "write:x"}, claims.Scope)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "alice@example.com", claims.Name)
	e.auth.AssertExpectations(t)
}

func TestPassword_RequestedScopeIsBoundedByAuthority(t *testing.T) {
	e := newEngine(t)
	e.auth.On("Authenticate", mock.Anything, "alice", "s3cret").Return(alice(), nil)

	claims, err := e.token(context.Background(), passwordRequest("read:x"))
	require.NoError(t, err)
	assert.Equal(t, models.Scopes{"read:x"}, claims.Scope)

	_, err = e.token(context.Background(), passwordRequest("admin:x"))
	assert.True(t, errors.HasReason(err, errors.ReasonScopeTooBroad))
}

type servicePrincipal struct{}

func (servicePrincipal) Name() string          { return "robot" }
func (servicePrincipal) IsAuthenticated() bool { return true }

func TestPassword_AuthenticationOutcomes(t *testing.T) {
	unauthenticated := alice()
	unauthenticated.Authenticated = false

	tests := []struct {
		name      string
		principal models.Principal
		err       error
		reason    errors.Reason
	}{
		{"rejected credentials", nil, goerrors.New("bad password"), errors.ReasonAuthenticationFailed},
		{"unauthenticated principal", unauthenticated, nil, errors.ReasonAuthenticationFailed},
		{"principal without user details", servicePrincipal{}, nil, errors.ReasonMissingUserDetails},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(t)
			e.auth.On("Authenticate", mock.Anything, "alice", "s3cret").Return(tt.principal, tt.err)

			_, err := e.token(context.Background(), passwordRequest())
			assert.True(t, errors.HasReason(err, tt.reason), "got %v", err)
		})
	}
}

func TestPassword_MissingCredentialsSkipAuthentication(t *testing.T) {
	e := newEngine(t)
	req := passwordRequest()
	req.Password = ""

	_, err := e.token(context.Background(), req)
	assert.True(t, errors.HasReason(err, errors.ReasonMissingParameter))
	e.auth.AssertNotCalled(t, "Authenticate", mock.Anything, mock.Anything, mock.Anything)
}
