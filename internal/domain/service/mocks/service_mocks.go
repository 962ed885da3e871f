package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/turtacn/authz/internal/domain/models"
)

type MockTokenHandler struct {
	mock.Mock
}

func (m *MockTokenHandler) GenerateToken(ctx context.Context, req *models.TokenRequest, claims *models.TokenClaims, ttlOverride time.Duration) (*models.TokenResponse, error) {
	args := m.Called(ctx, req, claims, ttlOverride)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TokenResponse), args.Error(1)
}

func (m *MockTokenHandler) ParseToken(ctx context.Context, raw string) (*models.TokenClaims, error) {
	args := m.Called(ctx, raw)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TokenClaims), args.Error(1)
}

type MockUserAuthenticator struct {
	mock.Mock
}

func (m *MockUserAuthenticator) Authenticate(ctx context.Context, username, password string) (models.Principal, error) {
	args := m.Called(ctx, username, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(models.Principal), args.Error(1)
}

type MockAuditService struct {
	mock.Mock
}

func (m *MockAuditService) LogEvent(ctx context.Context, event models.AuditEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
