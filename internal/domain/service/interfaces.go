// Package service holds the authorization engine: request-context resolution, verifier
// chains, scope negotiation, grant-flow processing and access-token tracking.
package service

import (
	"context"
	"time"

	"github.com/turtacn/authz/internal/domain/models"
)

//go:generate mockery --name TokenHandler --output mocks --outpkg mocks
// TokenHandler turns claims into a signed bearer token and back.
// TokenHandler 负责将声明签名为承载令牌，以及将令牌解析回声明。
type TokenHandler interface {
	// GenerateToken mints a token for claims. The handler assigns TokenID, IssuedAt and
	// Expiration on claims. A zero ttlOverride selects the configured default lifetime.
	// GenerateToken 为声明签发令牌；ttlOverride 为零时使用默认有效期。
	GenerateToken(ctx context.Context, req *models.TokenRequest, claims *models.TokenClaims, ttlOverride time.Duration) (*models.TokenResponse, error)

	// ParseToken verifies signature, structure and expiry and returns the claims.
	// ParseToken 校验签名、结构与有效期并返回声明。
	ParseToken(ctx context.Context, raw string) (*models.TokenClaims, error)
}

//go:generate mockery --name UserAuthenticator --output mocks --outpkg mocks
// UserAuthenticator authenticates a resource owner by username and password.
// UserAuthenticator 通过用户名和密码认证资源所有者。
type UserAuthenticator interface {
	// Authenticate returns the principal for the credentials. An unauthenticated
	// principal or an error both mean the credentials were rejected.
	// Authenticate 返回凭据对应的主体；未认证主体或错误均表示凭据被拒绝。
	Authenticate(ctx context.Context, username, password string) (models.Principal, error)
}

//go:generate mockery --name AuditService --output mocks --outpkg mocks
// AuditService records security-relevant events.
// AuditService 记录与安全相关的事件。
type AuditService interface {
	LogEvent(ctx context.Context, event models.AuditEvent) error
}

// Clock returns the current time. Components take one so tests can pin time.
type Clock func() time.Time

func clockOrNow(c Clock) Clock {
	if c == nil {
		return time.Now
	}
	return c
}
