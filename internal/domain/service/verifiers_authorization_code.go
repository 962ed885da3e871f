package service

import (
	"context"

	"github.com/turtacn/authz/internal/domain/models"
	"github.com/turtacn/authz/internal/domain/repository"
	"github.com/turtacn/authz/pkg/constants"
	"github.com/turtacn/authz/pkg/errors"
)

// UIClientVerifier only lets UI clients drive the authorization-code flow.
type UIClientVerifier struct{}

func (UIClientVerifier) Name() string { return "ui_client" }

func (UIClientVerifier) Verify(_ context.Context, c *models.AuthorizationContext) error {
	if !c.Client.IsUI() {
		return errors.ErrGrantNotPermitted(c.Client.ClientID, constants.GrantTypeAuthorizationCode)
	}
	return nil
}

// CallbackVerifier requires redirect_uri to match a registered callback exactly.
type CallbackVerifier struct{}

func (CallbackVerifier) Name() string { return "callback" }

func (CallbackVerifier) Verify(_ context.Context, c *models.AuthorizationContext) error {
	if !c.Client.HasCallback(c.Request.RedirectURI) {
		return errors.ErrUnregisteredCallback(c.Request.RedirectURI)
	}
	return nil
}

// ResponseTypeVerifier requires response_type=code.
type ResponseTypeVerifier struct{}

func (ResponseTypeVerifier) Name() string { return "response_type" }

func (ResponseTypeVerifier) Verify(_ context.Context, c *models.AuthorizationContext) error {
	if c.Request.ResponseType != constants.ResponseTypeCode {
		return errors.ErrInvalidResponseType(c.Request.ResponseType)
	}
	return nil
}

// UserScopeVerifier requires a requested scope to be within the user's authority.
type UserScopeVerifier struct{}

func (UserScopeVerifier) Name() string { return "user_scope" }

func (UserScopeVerifier) Verify(_ context.Context, c *models.AuthorizationContext) error {
	if rejected := c.Request.Scope.Difference(c.User.Authorities); len(rejected) > 0 {
		return errors.ErrScopeTooBroad(rejected)
	}
	return nil
}

// CodeParametersVerifier requires code and redirect_uri on the token request.
type CodeParametersVerifier struct{}

func (CodeParametersVerifier) Name() string { return "code_parameters" }

func (CodeParametersVerifier) Verify(_ context.Context, c *models.TokenContext) error {
	if c.Request.Code == "" {
		return errors.ErrMissingParameter("code")
	}
	if c.Request.RedirectURI == "" {
		return errors.ErrMissingParameter("redirect_uri")
	}
	return nil
}

// OngoingAuthorizationVerifier matches the token request against the ongoing
// authorization behind the code. A record that fails the client, redirect or
// expiry check is deleted before the error is returned.
type OngoingAuthorizationVerifier struct {
	store repository.OngoingAuthorizationRepository
	now   Clock
}

// NewOngoingAuthorizationVerifier creates the verifier.
func NewOngoingAuthorizationVerifier(store repository.OngoingAuthorizationRepository, now Clock) *OngoingAuthorizationVerifier {
	return &OngoingAuthorizationVerifier{store: store, now: clockOrNow(now)}
}

func (*OngoingAuthorizationVerifier) Name() string { return "ongoing_authorization" }

func (v *OngoingAuthorizationVerifier) Verify(ctx context.Context, c *models.TokenContext) error {
	oa := c.Ongoing
	if oa == nil {
		return errors.ErrUnknownAuthorizationRequest()
	}

	var failure errors.AuthzError
	switch {
	case oa.ClientID != c.Request.ClientID:
		failure = errors.ErrClientMismatch(oa.ClientID, c.Request.ClientID)
	case oa.RedirectURI != c.Request.RedirectURI:
		failure = errors.ErrRedirectMismatch(oa.RedirectURI, c.Request.RedirectURI)
	case oa.IsExpired(v.now()):
		failure = errors.ErrAuthorizationExpired()
	default:
		return nil
	}

	if _, err := v.store.Delete(ctx, oa.AuthorizationCode); err != nil {
		return failure.WithCause(err)
	}
	return failure
}
