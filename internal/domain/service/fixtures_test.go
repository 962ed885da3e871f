package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/turtacn/authz/internal/domain/models"
	"github.com/turtacn/authz/internal/domain/service"
	"github.com/turtacn/authz/internal/domain/service/mocks"
	"github.com/turtacn/authz/internal/infrastructure/memory"
	"github.com/turtacn/authz/pkg/constants"
	"github.com/turtacn/authz/pkg/logger"
)

const (
	uiCallback  = "https://app/cb"
	svcAudience = "https://svc"
)

func uiClient() *models.OAuthClient {
	return &models.OAuthClient{
		ClientID:         "ui-1",
		Name:             "ui-app",
		ApplicationTypes: []constants.ApplicationType{constants.ApplicationTypeUI},
		RequiredScopes:   models.NewScopes("read:x"),
		AllowedCallbacks: []string{uiCallback},
	}
}

func serviceClient() *models.OAuthClient {
	return &models.OAuthClient{
		ClientID:         "svc-1",
		Name:             "svc",
		ApplicationTypes: []constants.ApplicationType{constants.ApplicationTypeService},
		Audience:         svcAudience,
		RegisteredScopes: models.NewScopes("read:x", "write:x", "admin:x"),
		AllowedClients: []models.ClientAllowRelation{
			{SourceClientName: "ui-app", AllowedScopes: models.NewScopes("read:x", "write:x")},
			{SourceClientName: "batch", AllowedScopes: models.NewScopes("read:x")},
		},
	}
}

func batchClient() *models.OAuthClient {
	return &models.OAuthClient{
		ClientID:         "batch-1",
		Name:             "batch",
		ApplicationTypes: []constants.ApplicationType{constants.ApplicationTypeService},
		Audience:         "https://batch",
		RegisteredScopes: models.NewScopes("jobs"),
	}
}

func strangerClient() *models.OAuthClient {
	return &models.OAuthClient{
		ClientID:         "stranger-1",
		Name:             "stranger",
		ApplicationTypes: []constants.ApplicationType{constants.ApplicationTypeUI},
		AllowedCallbacks: []string{"https://stranger/cb"},
	}
}

func alice() *models.UserPrincipal {
	return &models.UserPrincipal{
		User:          models.UserInfo{ID: "u-42", Email: "alice@example.com", Username: "alice", Role: "admin"},
		Authorities:   models.NewScopes("read:x", "write:x"),
		Authenticated: true,
	}
}

// engine wires the domain services over in-memory stores and a pinned clock.
type engine struct {
	now        time.Time
	clients    *memory.ClientRegistry
	store      *memory.OngoingAuthorizationStore
	dao        *memory.AccessTokenDAO
	auth       *mocks.MockUserAuthenticator
	contexts   *service.RequestContextFactory
	processors *service.ProcessorRegistry
	tracker    *service.TokenTracker
}

func newEngine(t *testing.T) *engine {
	t.Helper()
	e := &engine{
		now:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		clients: memory.NewClientRegistry(uiClient(), serviceClient(), batchClient(), strangerClient()),
		store:   memory.NewOngoingAuthorizationStore(),
		dao:     memory.NewAccessTokenDAO(),
		auth:    new(mocks.MockUserAuthenticator),
	}
	clock := func() time.Time { return e.now }
	log := logger.NewNoopLogger()

	verifiers := service.NewVerifierRegistry(e.store, clock)
	factory := service.NewOngoingAuthorizationFactory(time.Minute, clock)

	e.contexts = service.NewRequestContextFactory(e.clients, e.store, log)
	e.processors = service.NewProcessorRegistry(
		service.NewAuthorizationCodeProcessor(verifiers, factory, e.store, log),
		service.NewClientCredentialsProcessor(verifiers),
		service.NewPasswordProcessor(verifiers, e.auth, log),
	)
	e.tracker = service.NewTokenTracker(e.dao, clock, log)
	return e
}

func (e *engine) authorize(ctx context.Context, req *models.AuthorizationRequest) (*models.AuthorizationResponse, error) {
	c, err := e.contexts.ForAuthorization(ctx, req)
	if err != nil {
		return nil, err
	}
	p, _ := e.processors.AuthorizationProcessor(req.GrantType())
	return p.ProcessAuthorizationRequest(ctx, c)
}

func (e *engine) token(ctx context.Context, req *models.TokenRequest) (*models.TokenClaims, error) {
	c, err := e.contexts.ForToken(ctx, req)
	if err != nil {
		return nil, err
	}
	p, _ := e.processors.TokenProcessor(req.GrantType)
	return p.ProcessTokenRequest(ctx, c)
}

func asAlice() context.Context {
	return models.ContextWithPrincipal(context.Background(), alice())
}

func codeRequest(scope ...string) *models.AuthorizationRequest {
	return &models.AuthorizationRequest{
		ResponseType: constants.ResponseTypeCode,
		ClientID:     "ui-1",
		RedirectURI:  uiCallback,
		State:        "xyz",
		Scope:        models.NewScopes(scope...),
	}
}

func exchangeRequest(code string) *models.TokenRequest {
	return &models.TokenRequest{
		GrantType:   constants.GrantTypeAuthorizationCode,
		ClientID:    "ui-1",
		Audience:    svcAudience,
		Code:        code,
		RedirectURI: uiCallback,
	}
}
