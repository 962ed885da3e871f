// Package dto holds the request and response shapes of the OAuth endpoints.
package dto

import (
	"time"

	"github.com/turtacn/authz/internal/domain/models"
	"github.com/turtacn/authz/pkg/constants"
)

// AuthorizeRequest 授权端点请求 DTO
type AuthorizeRequest struct {
	ResponseType string `form:"response_type" json:"response_type"`
	ClientID     string `form:"client_id" json:"client_id" validate:"max=128"`
	RedirectURI  string `form:"redirect_uri" json:"redirect_uri" validate:"omitempty,uri"`
	State        string `form:"state" json:"state" validate:"max=512"`
	Scope        string `form:"scope" json:"scope" validate:"scope"`
}

// ToModel converts the DTO into the engine request.
func (r *AuthorizeRequest) ToModel() *models.AuthorizationRequest {
	return &models.AuthorizationRequest{
		ResponseType: r.ResponseType,
		ClientID:     r.ClientID,
		RedirectURI:  r.RedirectURI,
		State:        r.State,
		Scope:        models.ParseScopes(r.Scope),
	}
}

// TokenRequest 令牌端点请求 DTO
type TokenRequest struct {
	GrantType   string `form:"grant_type" json:"grant_type" validate:"required"`
	ClientID    string `form:"client_id" json:"client_id" validate:"max=128"`
	Audience    string `form:"audience" json:"audience" validate:"max=255"`
	Scope       string `form:"scope" json:"scope" validate:"scope"`
	Code        string `form:"code" json:"code" validate:"max=128"`
	RedirectURI string `form:"redirect_uri" json:"redirect_uri"`
	Username    string `form:"username" json:"username" validate:"max=128"`
	Password    string `form:"password" json:"-" validate:"max=72"`
}

// ToModel converts the DTO into the engine request. clientID is the client
// authenticated by the boundary and overrides the form value.
func (r *TokenRequest) ToModel(clientID string) *models.TokenRequest {
	return &models.TokenRequest{
		GrantType:   constants.GrantType(r.GrantType),
		ClientID:    clientID,
		Audience:    r.Audience,
		Scope:       models.ParseScopes(r.Scope),
		Code:        r.Code,
		RedirectURI: r.RedirectURI,
		Username:    r.Username,
		Password:    r.Password,
	}
}

// TokenResponse 令牌响应 DTO
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Scope       string `json:"scope,omitempty"`
}

// NewTokenResponse renders a minted token.
func NewTokenResponse(resp *models.TokenResponse) *TokenResponse {
	return &TokenResponse{
		AccessToken: resp.AccessToken,
		TokenType:   resp.TokenType,
		ExpiresIn:   resp.ExpiresIn,
		Scope:       resp.Scope.String(),
	}
}

// TokenRequestForm carries the raw token of introspection and revocation calls.
type TokenRequestForm struct {
	Token         string `form:"token" json:"token" validate:"required"`
	TokenTypeHint string `form:"token_type_hint" json:"token_type_hint" validate:"omitempty,oneof=access_token"`
}

// IntrospectionResponse 令牌内省响应 DTO
type IntrospectionResponse struct {
	Active     bool       `json:"active"`
	ClientID   string     `json:"client_id,omitempty"`
	Username   string     `json:"username,omitempty"`
	Expiration *time.Time `json:"expiration,omitempty"`
}

// NewIntrospectionResponse renders an introspection result.
func NewIntrospectionResponse(r *models.IntrospectionResult) *IntrospectionResponse {
	return &IntrospectionResponse{
		Active:     r.Active,
		ClientID:   r.ClientID,
		Username:   r.Username,
		Expiration: r.Expiration,
	}
}

// UserInfoResponse 用户信息响应 DTO
type UserInfoResponse struct {
	Subject  string `json:"sub"`
	Username string `json:"usr,omitempty"`
	Name     string `json:"name,omitempty"`
	Role     string `json:"rol,omitempty"`
	UserID   string `json:"uid,omitempty"`
	Scope    string `json:"scope"`
}

// NewUserInfoResponse renders the claims of a live token.
func NewUserInfoResponse(c *models.TokenClaims) *UserInfoResponse {
	return &UserInfoResponse{
		Subject:  c.Subject,
		Username: c.Username,
		Name:     c.Name,
		Role:     c.Role,
		UserID:   c.UserID,
		Scope:    c.Scope.String(),
	}
}

// RevocationResponse reports whether the call changed the token's state.
type RevocationResponse struct {
	Revoked bool `json:"revoked"`
}

// HealthResponse is the body of the health endpoints.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}
