package service

import (
	"context"
	"fmt"

	"github.com/turtacn/authz/internal/domain/models"
	"github.com/turtacn/authz/internal/domain/repository"
	"github.com/turtacn/authz/pkg/constants"
	"github.com/turtacn/authz/pkg/errors"
	"github.com/turtacn/authz/pkg/logger"
)

// AuthorizationCodeProcessor drives the authorization-code grant:
// REQUESTED -> AUTHORIZED (code issued) -> REDEEMED | EXPIRED | REJECTED.
type AuthorizationCodeProcessor struct {
	verifiers  *VerifierRegistry
	negotiator ScopeNegotiator
	factory    *OngoingAuthorizationFactory
	store      repository.OngoingAuthorizationRepository
	logger     logger.Logger
}

// NewAuthorizationCodeProcessor creates the processor.
func NewAuthorizationCodeProcessor(
	verifiers *VerifierRegistry,
	factory *OngoingAuthorizationFactory,
	store repository.OngoingAuthorizationRepository,
	log logger.Logger,
) *AuthorizationCodeProcessor {
	return &AuthorizationCodeProcessor{
		verifiers: verifiers,
		factory:   factory,
		store:     store,
		logger:    log.WithComponent("AuthorizationCodeProcessor"),
	}
}

var _ AuthorizationRequestProcessor = (*AuthorizationCodeProcessor)(nil)

func (p *AuthorizationCodeProcessor) GrantType() constants.GrantType {
	return constants.GrantTypeAuthorizationCode
}

// ProcessAuthorizationRequest issues a code. Nothing is persisted unless every
// verifier and the scope negotiation succeed.
func (p *AuthorizationCodeProcessor) ProcessAuthorizationRequest(ctx context.Context, c *models.AuthorizationContext) (*models.AuthorizationResponse, error) {
	if err := RunVerifiers(ctx, c, p.verifiers.AuthorizationVerifiers(p.GrantType())); err != nil {
		return nil, err
	}

	scope, err := p.negotiator.ForAuthorization(c)
	if err != nil {
		return nil, err
	}

	oa := p.factory.Create(c, scope)
	if err := p.store.Save(ctx, oa); err != nil {
		return nil, fmt.Errorf("save ongoing authorization: %w", err)
	}

	p.logger.Info(ctx, "authorization code issued",
		logger.String("client_id", oa.ClientID),
		logger.String("user_id", oa.UserInfo.ID),
		logger.String("scope", oa.Scope.String()),
		logger.Time("expires_at", oa.Expiration),
	)

	return &models.AuthorizationResponse{
		Code:        oa.AuthorizationCode,
		State:       c.Request.State,
		RedirectURI: oa.RedirectURI,
	}, nil
}

// ProcessTokenRequest redeems a code. The ongoing authorization is deleted only
// after the claims are assembled, and the delete decides the race between two
// concurrent redemptions of the same code.
func (p *AuthorizationCodeProcessor) ProcessTokenRequest(ctx context.Context, c *models.TokenContext) (*models.TokenClaims, error) {
	if err := RunVerifiers(ctx, c, p.verifiers.TokenVerifiers(p.GrantType())); err != nil {
		return nil, err
	}

	scope, err := p.negotiator.ForCodeExchange(c)
	if err != nil {
		return nil, err
	}

	claims := models.NewUserClaims(c.Source.ClientID, c.Ongoing.UserInfo, scope, c.Request.Audience)

	deleted, err := p.store.Delete(ctx, c.Ongoing.AuthorizationCode)
	if err != nil {
		return nil, fmt.Errorf("delete ongoing authorization: %w", err)
	}
	if !deleted {
		p.logger.Warn(ctx, "authorization code redeemed concurrently",
			logger.String("client_id", c.Source.ClientID))
		return nil, errors.ErrUnknownAuthorizationRequest()
	}
	return claims, nil
}
