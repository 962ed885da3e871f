package service

import (
	"context"

	"github.com/turtacn/authz/internal/domain/models"
	"github.com/turtacn/authz/pkg/constants"
	"github.com/turtacn/authz/pkg/errors"
	"github.com/turtacn/authz/pkg/logger"
)

// ClientCredentialsProcessor issues client-bound tokens.
type ClientCredentialsProcessor struct {
	verifiers  *VerifierRegistry
	negotiator ScopeNegotiator
}

// NewClientCredentialsProcessor creates the processor.
func NewClientCredentialsProcessor(verifiers *VerifierRegistry) *ClientCredentialsProcessor {
	return &ClientCredentialsProcessor{verifiers: verifiers}
}

func (p *ClientCredentialsProcessor) GrantType() constants.GrantType {
	return constants.GrantTypeClientCredentials
}

func (p *ClientCredentialsProcessor) ProcessTokenRequest(ctx context.Context, c *models.TokenContext) (*models.TokenClaims, error) {
	if err := RunVerifiers(ctx, c, p.verifiers.TokenVerifiers(p.GrantType())); err != nil {
		return nil, err
	}
	return &models.TokenClaims{
		Subject:  models.ClientSubject(c.Source.ClientID),
		Scope:    p.negotiator.ForClientCredentials(c),
		Audience: c.Request.Audience,
	}, nil
}

// PasswordProcessor issues user-bound tokens from resource-owner credentials.
type PasswordProcessor struct {
	verifiers     *VerifierRegistry
	negotiator    ScopeNegotiator
	authenticator UserAuthenticator
	logger        logger.Logger
}

// NewPasswordProcessor creates the processor.
func NewPasswordProcessor(verifiers *VerifierRegistry, authenticator UserAuthenticator, log logger.Logger) *PasswordProcessor {
	return &PasswordProcessor{
		verifiers:     verifiers,
		authenticator: authenticator,
		logger:        log.WithComponent("PasswordProcessor"),
	}
}

func (p *PasswordProcessor) GrantType() constants.GrantType {
	return constants.GrantTypePassword
}

func (p *PasswordProcessor) ProcessTokenRequest(ctx context.Context, c *models.TokenContext) (*models.TokenClaims, error) {
	if err := RunVerifiers(ctx, c, p.verifiers.TokenVerifiers(p.GrantType())); err != nil {
		return nil, err
	}

	principal, err := p.authenticator.Authenticate(ctx, c.Request.Username, c.Request.Password)
	if err != nil {
		if errors.HasReason(err, errors.ReasonAuthenticationFailed) {
			return nil, err
		}
		p.logger.Warn(ctx, "resource owner authentication failed",
			logger.String("client_id", c.Source.ClientID), logger.Err(err))
		return nil, errors.ErrAuthenticationFailed("invalid username or password").WithCause(err)
	}
	if principal == nil || !principal.IsAuthenticated() {
		return nil, errors.ErrAuthenticationFailed("invalid username or password")
	}

	user, ok := principal.(*models.UserPrincipal)
	if !ok {
		return nil, errors.ErrMissingUserDetails()
	}

	scope, err := p.negotiator.ForPassword(c.Request.Scope, user.Authorities)
	if err != nil {
		return nil, err
	}
	return models.NewUserClaims(c.Source.ClientID, user.User, scope, c.Request.Audience), nil
}
