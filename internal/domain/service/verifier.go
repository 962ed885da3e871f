package service

import (
	"context"

	"github.com/turtacn/authz/internal/domain/models"
	"github.com/turtacn/authz/internal/domain/repository"
	"github.com/turtacn/authz/pkg/constants"
)

// Verifier accepts or rejects a request context.
// Verifier 对请求上下文进行接受或拒绝的判定。
type Verifier[C any] interface {
	Name() string
	Verify(ctx context.Context, c C) error
}

// AuthorizationVerifier checks the authorization phase of a grant.
type AuthorizationVerifier = Verifier[*models.AuthorizationContext]

// TokenVerifier checks the token phase of a grant.
type TokenVerifier = Verifier[*models.TokenContext]

// RunVerifiers runs chain in order and returns the first failure.
// Verifiers after a failing one are not run.
func RunVerifiers[C any](ctx context.Context, c C, chain []Verifier[C]) error {
	for _, v := range chain {
		if err := v.Verify(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

// VerifierRegistry maps a grant type to its ordered verifier chains.
// It is built once at startup and is read-only afterwards.
// VerifierRegistry 按授权类型保存有序的校验链，启动时构建一次，之后只读。
type VerifierRegistry struct {
	authorization map[constants.GrantType][]AuthorizationVerifier
	token         map[constants.GrantType][]TokenVerifier
}

// NewVerifierRegistry wires the chains of all supported grants.
func NewVerifierRegistry(ongoing repository.OngoingAuthorizationRepository, now Clock) *VerifierRegistry {
	return &VerifierRegistry{
		authorization: map[constants.GrantType][]AuthorizationVerifier{
			constants.GrantTypeAuthorizationCode: {
				UIClientVerifier{},
				CallbackVerifier{},
				ResponseTypeVerifier{},
				UserScopeVerifier{},
			},
		},
		token: map[constants.GrantType][]TokenVerifier{
			constants.GrantTypeAuthorizationCode: {
				ClientIDVerifier{},
				AudienceVerifier{},
				RelationScopeVerifier{},
				CodeParametersVerifier{},
				NewOngoingAuthorizationVerifier(ongoing, now),
			},
			constants.GrantTypeClientCredentials: {
				ClientIDVerifier{},
				AudienceVerifier{},
				RelationScopeVerifier{},
				ScopePresentVerifier{},
			},
			constants.GrantTypePassword: {
				ClientIDVerifier{},
				AudienceVerifier{},
				PasswordCredentialsVerifier{},
			},
		},
	}
}

// AuthorizationVerifiers returns the authorization-phase chain for grantType.
func (r *VerifierRegistry) AuthorizationVerifiers(grantType constants.GrantType) []AuthorizationVerifier {
	return r.authorization[grantType]
}

// TokenVerifiers returns the token-phase chain for grantType.
func (r *VerifierRegistry) TokenVerifiers(grantType constants.GrantType) []TokenVerifier {
	return r.token[grantType]
}
