package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/turtacn/authz/internal/domain/models"
)

type MockAccessTokenDAO struct {
	mock.Mock
}

func (m *MockAccessTokenDAO) Create(ctx context.Context, info *models.AccessTokenInfo) (bool, error) {
	args := m.Called(ctx, info)
	return args.Bool(0), args.Error(1)
}

func (m *MockAccessTokenDAO) FindByJTI(ctx context.Context, jti string) (*models.AccessTokenInfo, error) {
	args := m.Called(ctx, jti)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AccessTokenInfo), args.Error(1)
}

func (m *MockAccessTokenDAO) MarkRevoked(ctx context.Context, jti string, revokedAt time.Time) (bool, error) {
	args := m.Called(ctx, jti, revokedAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockAccessTokenDAO) FindExpired(ctx context.Context, before time.Time) ([]string, error) {
	args := m.Called(ctx, before)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockAccessTokenDAO) DeleteByJTI(ctx context.Context, jti string) error {
	args := m.Called(ctx, jti)
	return args.Error(0)
}

type MockOngoingAuthorizationRepository struct {
	mock.Mock
}

func (m *MockOngoingAuthorizationRepository) Save(ctx context.Context, oa *models.OngoingAuthorization) error {
	args := m.Called(ctx, oa)
	return args.Error(0)
}

func (m *MockOngoingAuthorizationRepository) FindByCode(ctx context.Context, code string) (*models.OngoingAuthorization, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OngoingAuthorization), args.Error(1)
}

func (m *MockOngoingAuthorizationRepository) Delete(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

type MockClientRegistry struct {
	mock.Mock
}

func (m *MockClientRegistry) FindByClientID(ctx context.Context, clientID string) (*models.OAuthClient, error) {
	args := m.Called(ctx, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OAuthClient), args.Error(1)
}

func (m *MockClientRegistry) FindByAudience(ctx context.Context, audience string) (*models.OAuthClient, error) {
	args := m.Called(ctx, audience)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OAuthClient), args.Error(1)
}
