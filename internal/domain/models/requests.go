package models

import (
	"time"

	"github.com/turtacn/authz/pkg/constants"
)

// AuthorizationRequest is a call to the authorization endpoint.
type AuthorizationRequest struct {
	ResponseType string
	ClientID     string
	RedirectURI  string
	State        string
	Scope        Scopes
}

// GrantType returns the grant the authorization endpoint drives.
func (r *AuthorizationRequest) GrantType() constants.GrantType {
	return constants.GrantTypeAuthorizationCode
}

// AuthorizationResponse is where the user agent is redirected after a successful authorization.
type AuthorizationResponse struct {
	Code        string
	State       string
	RedirectURI string
}

// TokenRequest is a call to the token endpoint after client authentication.
type TokenRequest struct {
	GrantType   constants.GrantType
	ClientID    string
	Audience    string
	Scope       Scopes
	Code        string
	RedirectURI string
	Username    string
	Password    string
}

// TokenResponse is a minted token plus the identifiers the tracker needs.
type TokenResponse struct {
	AccessToken string
	TokenType   string
	ExpiresIn   int64
	Scope       Scopes

	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// IntrospectionResult reports whether a token is live and whom it belongs to.
// All fields are empty when the token could not be parsed.
type IntrospectionResult struct {
	Active     bool
	ClientID   string
	Username   string
	Expiration *time.Time
}
