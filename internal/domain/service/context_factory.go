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

// RequestContextFactory resolves the clients, relation, user and ongoing authorization a
// request refers to. Every context it returns is fresh and owned by one request.
type RequestContextFactory struct {
	clients repository.ClientRegistry
	ongoing repository.OngoingAuthorizationRepository
	logger  logger.Logger
}

// NewRequestContextFactory creates a factory.
func NewRequestContextFactory(clients repository.ClientRegistry, ongoing repository.OngoingAuthorizationRepository, log logger.Logger) *RequestContextFactory {
	return &RequestContextFactory{
		clients: clients,
		ongoing: ongoing,
		logger:  log.WithComponent("RequestContextFactory"),
	}
}

// ForAuthorization builds the context of an authorization request. The authenticated
// resource owner is taken from ctx.
func (f *RequestContextFactory) ForAuthorization(ctx context.Context, req *models.AuthorizationRequest) (*models.AuthorizationContext, error) {
	client, err := f.lookupClient(ctx, req.ClientID)
	if err != nil {
		return nil, err
	}

	user := models.PrincipalFromContext(ctx)
	if user == nil {
		return nil, errors.ErrAuthenticationFailed("resource owner is not authenticated")
	}

	return &models.AuthorizationContext{Request: req, Client: client, User: user}, nil
}

// ForToken builds the context of a token request.
//
// The target is resolved by audience for every grant except password. An empty audience
// leaves the target unresolved so the verifier chain reports the missing parameter.
// A missing relation is fatal only for the authorization-code grant.
func (f *RequestContextFactory) ForToken(ctx context.Context, req *models.TokenRequest) (*models.TokenContext, error) {
	source, err := f.lookupClient(ctx, req.ClientID)
	if err != nil {
		return nil, err
	}
	tc := &models.TokenContext{Request: req, Source: source}

	if req.GrantType == constants.GrantTypePassword || req.Audience == "" {
		return tc, nil
	}

	target, err := f.clients.FindByAudience(ctx, req.Audience)
	if err != nil {
		return nil, fmt.Errorf("lookup audience %q: %w", req.Audience, err)
	}
	if target == nil {
		return nil, errors.ErrUnregisteredClient(req.Audience)
	}
	tc.Target = target
	tc.Relation = target.RelationFor(source)

	if req.GrantType != constants.GrantTypeAuthorizationCode {
		return tc, nil
	}
	if tc.Relation == nil {
		return nil, errors.ErrRelationNotAllowed(source.Name, target.Name)
	}

	if req.Code != "" {
		oa, err := f.ongoing.FindByCode(ctx, req.Code)
		if err != nil {
			return nil, fmt.Errorf("lookup ongoing authorization: %w", err)
		}
		tc.Ongoing = oa
	}
	return tc, nil
}

func (f *RequestContextFactory) lookupClient(ctx context.Context, clientID string) (*models.OAuthClient, error) {
	if clientID == "" {
		return nil, errors.ErrMissingParameter("client_id")
	}
	client, err := f.clients.FindByClientID(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("lookup client %q: %w", clientID, err)
	}
	if client == nil {
		f.logger.Debug(ctx, "client not registered", logger.String("client_id", clientID))
		return nil, errors.ErrUnregisteredClient(clientID)
	}
	return client, nil
}
