package service

import (
	"github.com/turtacn/authz/internal/domain/models"
	"github.com/turtacn/authz/pkg/errors"
)

// ScopeNegotiator computes the effective scope of a grant. Every result is a
// de-duplicated set that never exceeds the bounds of its phase.
// ScopeNegotiator 计算授权的最终权限范围，结果永远不会超出当前阶段的上界。
type ScopeNegotiator struct{}

// ForAuthorization negotiates the scope granted at the authorization endpoint.
// An explicit request is returned as is; the verifier chain has already bounded it by
// the user's authority. Otherwise the user must cover the client's required scopes
// and the user's full authority is granted.
func (ScopeNegotiator) ForAuthorization(c *models.AuthorizationContext) (models.Scopes, error) {
	authority := c.User.Authorities
	if !c.Request.Scope.IsEmpty() {
		if rejected := c.Request.Scope.Difference(authority); len(rejected) > 0 {
			return nil, errors.ErrScopeTooBroad(rejected)
		}
		return models.NewScopes(c.Request.Scope...), nil
	}

	if missing := c.Client.RequiredScopes.Difference(authority); len(missing) > 0 {
		return nil, errors.ErrInsufficientUserAuthority(missing)
	}
	return authority.Intersect(authority.Union(c.Client.RequiredScopes)), nil
}

// ForCodeExchange negotiates the scope of an authorization-code exchange:
// what was granted at authorization time, narrowed by the relation.
func (ScopeNegotiator) ForCodeExchange(c *models.TokenContext) (models.Scopes, error) {
	if !c.Request.Scope.IsEmpty() {
		return nil, errors.ErrScopeMustNotBeSpecified()
	}
	if c.Ongoing == nil {
		return nil, errors.ErrMissingOngoingAuthorization()
	}
	return c.Ongoing.Scope.Intersect(c.AllowedScopes()), nil
}

// ForClientCredentials returns the requested scope, already bounded by the relation.
func (ScopeNegotiator) ForClientCredentials(c *models.TokenContext) models.Scopes {
	return models.NewScopes(c.Request.Scope...)
}

// ForPassword returns the requested scope when it is within the user's authority,
// or the full authority when nothing was requested.
func (ScopeNegotiator) ForPassword(requested, authority models.Scopes) (models.Scopes, error) {
	if requested.IsEmpty() {
		return models.NewScopes(authority...), nil
	}
	if rejected := requested.Difference(authority); len(rejected) > 0 {
		return nil, errors.ErrScopeTooBroad(rejected)
	}
	return models.NewScopes(requested...), nil
}
