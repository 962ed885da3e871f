package auth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/authz/internal/domain/models"
	"github.com/turtacn/authz/internal/domain/service/mocks"
	"github.com/turtacn/authz/internal/infrastructure/memory"
	apperrors "github.com/turtacn/authz/pkg/errors"
	"github.com/turtacn/authz/pkg/logger"
)

func mustHash(t *testing.T, s string) string {
	t.Helper()
	h, err := HashSecret(s)
	require.NoError(t, err)
	return h
}

func TestHashAndVerifySecret(t *testing.T) {
	h := mustHash(t, "s3cret")
	assert.True(t, VerifySecret("s3cret", h))
	assert.False(t, VerifySecret("S3cret", h))
	assert.False(t, VerifySecret("s3cret", ""))

	_, err := HashSecret(strings.Repeat("x", 73))
	assert.ErrorIs(t, err, ErrSecretTooLong)

	a, err := GenerateSecret()
	require.NoError(t, err)
	b, err := GenerateSecret()
	require.NoError(t, err)
	assert.Len(t, a, 43)
	assert.NotEqual(t, a, b)
}

func TestPasswordAuthenticator(t *testing.T) {
	users := memory.NewUserRepository(
		&models.User{ID: "u-42", Username: "alice", Email: "alice@example.com", Role: "admin",
			PasswordHash: mustHash(t, "wonderland"), Authorities: models.NewScopes("read:x"), Enabled: true},
		&models.User{ID: "u-7", Username: "bob", PasswordHash: mustHash(t, "builder"), Enabled: false},
	)
	a := NewPasswordAuthenticator(users, logger.NewNoopLogger())
	ctx := context.Background()

	p, err := a.Authenticate(ctx, "alice", "wonderland")
	require.NoError(t, err)
	up, ok := p.(*models.UserPrincipal)
	require.True(t, ok)
	assert.True(t, up.IsAuthenticated())
	assert.Equal(t, "u-42", up.User.ID)
	assert.Equal(t, models.Scopes{"read:x"}, up.Authorities)

	for _, tc := range []struct{ name, user, pass string }{
		{"wrong password", "alice", "looking-glass"},
		{"unknown user", "mallory", "wonderland"},
		{"disabled account", "bob", "builder"},
		{"empty password", "alice", ""},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := a.Authenticate(ctx, tc.user, tc.pass)
			assert.True(t, apperrors.HasReason(err, apperrors.ReasonAuthenticationFailed))
		})
	}
}

func TestClientAuthenticator(t *testing.T) {
	clients := memory.NewClientRegistry(
		&models.OAuthClient{ClientID: "svc-1", Name: "svc", ClientSecretHash: mustHash(t, "svc-secret")},
		&models.OAuthClient{ClientID: "public-1", Name: "public"},
	)
	a := NewClientAuthenticator(clients, logger.NewNoopLogger())
	ctx := context.Background()

	c, err := a.AuthenticateClient(ctx, "svc-1", "svc-secret")
	require.NoError(t, err)
	assert.Equal(t, "svc", c.Name)

	for _, tc := range []struct{ id, secret string }{
		{"svc-1", "wrong"},
		{"nobody", "svc-secret"},
		{"public-1", "anything"},
		{"svc-1", ""},
	} {
		_, err := a.AuthenticateClient(ctx, tc.id, tc.secret)
		assert.True(t, apperrors.HasReason(err, apperrors.ReasonInvalidClient), "%s/%s", tc.id, tc.secret)
	}
}

func TestClientAuthenticator_StoreFailure(t *testing.T) {
	reg := new(mocks.MockClientRegistry)
	boom := errors.New("db down")
	reg.On("FindByClientID", mock.Anything, "svc-1").Return(nil, boom)

	_, err := NewClientAuthenticator(reg, logger.NewNoopLogger()).AuthenticateClient(context.Background(), "svc-1", "x")
	assert.ErrorIs(t, err, boom)
	assert.False(t, apperrors.HasReason(err, apperrors.ReasonInvalidClient))
}
