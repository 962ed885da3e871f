// Package models defines the domain models of the authz service.
package models

import (
	"time"

	"github.com/turtacn/authz/pkg/constants"
)

// OAuthClient is a registered client application. A SERVICE client exposes scopes under an
// audience, a UI client redirects users and needs scopes from them; a middle resource server is both.
// OAuthClient 是已注册的客户端应用。SERVICE 类型以 audience 暴露权限范围，
// UI 类型重定向用户并向用户申请权限范围；中间资源服务器可以同时具备两种类型。
type OAuthClient struct {
	// ClientID is the public identifier presented in client_id.
	// ClientID 是在 client_id 中出现的公开标识符。
	ClientID string `json:"client_id" gorm:"primaryKey;size:128"`

	// Name is the human-readable name; relations reference clients by this name.
	// Name 是可读名称；授权关系通过该名称引用来源客户端。
	Name string `json:"name" gorm:"size:128;uniqueIndex;not null"`

	// ApplicationTypes lists UI and/or SERVICE.
	// ApplicationTypes 列出 UI 和/或 SERVICE。
	ApplicationTypes []constants.ApplicationType `json:"application_types" gorm:"serializer:json"`

	// ClientSecretHash is the bcrypt hash of the client secret.
	// ClientSecretHash 是客户端密钥的 bcrypt 哈希。
	ClientSecretHash string `json:"-" gorm:"size:128"`

	// Audience identifies the resource server (SERVICE only).
	// Audience 标识资源服务器（仅 SERVICE）。
	Audience string `json:"audience,omitempty" gorm:"size:255;index"`

	// RegisteredScopes are the scopes a SERVICE exposes.
	// RegisteredScopes 是 SERVICE 暴露的权限范围。
	RegisteredScopes Scopes `json:"registered_scopes,omitempty" gorm:"serializer:json"`

	// RequiredScopes are the scopes a UI client needs from its users.
	// RequiredScopes 是 UI 客户端需要用户授予的权限范围。
	RequiredScopes Scopes `json:"required_scopes,omitempty" gorm:"serializer:json"`

	// AllowedCallbacks are the redirect URIs a UI client may use.
	// AllowedCallbacks 是 UI 客户端允许使用的回调地址。
	AllowedCallbacks []string `json:"allowed_callbacks,omitempty" gorm:"serializer:json"`

	// AllowedClients declares which source clients may request which of our scopes.
	// AllowedClients 声明哪些来源客户端可以申请本服务的哪些权限范围。
	AllowedClients []ClientAllowRelation `json:"allowed_clients,omitempty" gorm:"serializer:json"`

	// AccessTokenTTLSeconds overrides the server default token lifetime when positive.
	// AccessTokenTTLSeconds 为正数时覆盖服务器默认的令牌有效期。
	AccessTokenTTLSeconds int `json:"access_token_ttl_seconds,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName pins the table name for GORM
func (OAuthClient) TableName() string {
	return "oauth_clients"
}

// ClientAllowRelation grants a named source client a subset of the target's registered scopes.
// ClientAllowRelation 授予指定来源客户端目标服务已注册权限范围的一个子集。
type ClientAllowRelation struct {
	SourceClientName string `json:"source_client_name"`
	AllowedScopes    Scopes `json:"allowed_scopes"`
}

// HasType reports whether the client is of the given application type.
func (c *OAuthClient) HasType(t constants.ApplicationType) bool {
	for _, at := range c.ApplicationTypes {
		if at == t {
			return true
		}
	}
	return false
}

// IsUI reports whether the client may drive the authorization-code flow.
func (c *OAuthClient) IsUI() bool {
	return c.HasType(constants.ApplicationTypeUI)
}

// IsService reports whether the client is a resource server.
func (c *OAuthClient) IsService() bool {
	return c.HasType(constants.ApplicationTypeService)
}

// HasCallback reports whether uri exactly matches a registered callback.
func (c *OAuthClient) HasCallback(uri string) bool {
	for _, cb := range c.AllowedCallbacks {
		if cb == uri {
			return true
		}
	}
	return false
}

// RelationFor returns the relation naming source, or nil when the source is not listed.
func (c *OAuthClient) RelationFor(source *OAuthClient) *ClientAllowRelation {
	if source == nil {
		return nil
	}
	for i := range c.AllowedClients {
		if c.AllowedClients[i].SourceClientName == source.Name {
			rel := c.AllowedClients[i]
			return &rel
		}
	}
	return nil
}

// AccessTokenTTL returns the per-client lifetime override, zero when unset.
func (c *OAuthClient) AccessTokenTTL() time.Duration {
	if c.AccessTokenTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.AccessTokenTTLSeconds) * time.Second
}

// Validate checks the structural invariants of a registration.
func (c *OAuthClient) Validate() []string {
	var problems []string
	if c.ClientID == "" || c.Name == "" {
		problems = append(problems, "client_id and name are required")
	}
	if len(c.ApplicationTypes) == 0 {
		problems = append(problems, "at least one application type is required")
	}
	if c.IsService() {
		if c.Audience == "" {
			problems = append(problems, "a SERVICE client needs an audience")
		}
		if c.RegisteredScopes.IsEmpty() {
			problems = append(problems, "a SERVICE client needs registered scopes")
		}
		for _, rel := range c.AllowedClients {
			if extra := rel.AllowedScopes.Difference(c.RegisteredScopes); len(extra) > 0 {
				problems = append(problems, "relation for "+rel.SourceClientName+" allows unregistered scopes: "+extra.String())
			}
		}
	}
	if c.IsUI() && len(c.AllowedCallbacks) == 0 {
		problems = append(problems, "a UI client needs at least one callback")
	}
	return problems
}
