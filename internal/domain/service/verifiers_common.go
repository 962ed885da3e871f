package service

import (
	"context"

	"github.com/turtacn/authz/internal/domain/models"
	"github.com/turtacn/authz/pkg/errors"
)

// ClientIDVerifier requires a client_id.
type ClientIDVerifier struct{}

func (ClientIDVerifier) Name() string { return "client_id" }

func (ClientIDVerifier) Verify(_ context.Context, c *models.TokenContext) error {
	if c.Request.ClientID == "" {
		return errors.ErrMissingParameter("client_id")
	}
	return nil
}

// AudienceVerifier requires an audience.
type AudienceVerifier struct{}

func (AudienceVerifier) Name() string { return "audience" }

func (AudienceVerifier) Verify(_ context.Context, c *models.TokenContext) error {
	if c.Request.Audience == "" {
		return errors.ErrMissingParameter("audience")
	}
	return nil
}

// RelationScopeVerifier requires the requested scope to be within what the target
// allows the source. Without a relation nothing is allowed.
type RelationScopeVerifier struct{}

func (RelationScopeVerifier) Name() string { return "relation_scope" }

func (RelationScopeVerifier) Verify(_ context.Context, c *models.TokenContext) error {
	rejected := c.Request.Scope.Difference(c.AllowedScopes())
	if len(rejected) == 0 {
		return nil
	}
	return errors.ErrScopeNotAllowed(c.Source.Name, c.TargetName(), rejected)
}
