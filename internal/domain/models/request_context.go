package models

// AuthorizationContext is the request-scoped aggregate of an authorization call.
// It is built fresh per request and never shared.
type AuthorizationContext struct {
	Request *AuthorizationRequest
	Client  *OAuthClient
	User    *UserPrincipal
}

// TokenContext is the request-scoped aggregate of a token call.
// Target and Relation are nil for the password grant; Ongoing is only resolved
// for the authorization-code grant and may be nil when the code is unknown.
type TokenContext struct {
	Request  *TokenRequest
	Source   *OAuthClient
	Target   *OAuthClient
	Relation *ClientAllowRelation
	Ongoing  *OngoingAuthorization
}

// AllowedScopes returns the scopes the relation grants, empty without a relation.
func (c *TokenContext) AllowedScopes() Scopes {
	if c.Relation == nil {
		return Scopes{}
	}
	return c.Relation.AllowedScopes
}

// TargetName names the target client for error reporting.
func (c *TokenContext) TargetName() string {
	if c.Target != nil {
		return c.Target.Name
	}
	return c.Request.Audience
}
