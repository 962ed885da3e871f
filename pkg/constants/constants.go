// Package constants defines system-wide constants for the authz service.
// This package provides type-safe constant definitions used across all modules.
package constants

import "time"

// ================================================================================
// Grant Type Constants
// ================================================================================

// GrantType represents the OAuth 2.0 grant type used to obtain a token
type GrantType string

const (
	// GrantTypeAuthorizationCode is the redirect-based authorization code grant
	GrantTypeAuthorizationCode GrantType = "authorization_code"

	// GrantTypeClientCredentials is the machine-to-machine grant
	GrantTypeClientCredentials GrantType = "client_credentials"

	// GrantTypePassword is the resource owner password credentials grant
	GrantTypePassword GrantType = "password"
)

// String returns the wire form of the grant type
func (g GrantType) String() string {
	return string(g)
}

// ResponseTypeCode is the only response_type accepted at the authorization endpoint
const ResponseTypeCode = "code"

// ================================================================================
// Client Application Constants
// ================================================================================

// ApplicationType distinguishes user-facing clients from resource servers
type ApplicationType string

const (
	// ApplicationTypeUI is a user-facing client that redirects users for consent
	ApplicationTypeUI ApplicationType = "UI"

	// ApplicationTypeService is a resource server that exposes scopes under an audience
	ApplicationTypeService ApplicationType = "SERVICE"
)

// ================================================================================
// Token Status Constants
// ================================================================================

// TokenStatus represents the tracked lifecycle status of an issued access token
type TokenStatus string

const (
	// TokenStatusActive indicates the token is tracked and usable
	TokenStatusActive TokenStatus = "ACTIVE"

	// TokenStatusRevoked indicates the token was explicitly revoked; irreversible
	TokenStatusRevoked TokenStatus = "REVOKED"
)

// TokenTypeBearer is the token_type returned by the token endpoint
const TokenTypeBearer = "Bearer"

// ================================================================================
// Lifetime Constants
// ================================================================================

const (
	// AccessTokenDefaultTTL is the default lifetime for access tokens (15 minutes)
	AccessTokenDefaultTTL = 15 * time.Minute

	// AuthorizationCodeDefaultTTL is the default lifetime of an ongoing authorization
	AuthorizationCodeDefaultTTL = 1 * time.Minute

	// AuthorizationCodeRetention keeps expired codes observable so that a late
	// redemption reports expiry instead of an unknown code
	AuthorizationCodeRetention = 5 * time.Minute

	// CleanupDefaultInterval is the default period of the expired token sweep
	CleanupDefaultInterval = 10 * time.Minute
)

// ================================================================================
// OAuth 2.0 Error Codes (RFC 6749 / RFC 6750 / RFC 7009)
// ================================================================================

// ErrorCode represents the OAuth 2.0 error code returned in the "error" field
type ErrorCode string

const (
	// ErrCodeInvalidRequest indicates a missing or malformed parameter
	ErrCodeInvalidRequest ErrorCode = "invalid_request"

	// ErrCodeInvalidClient indicates client authentication failed
	ErrCodeInvalidClient ErrorCode = "invalid_client"

	// ErrCodeInvalidGrant indicates the grant (code, credentials) is invalid or expired
	ErrCodeInvalidGrant ErrorCode = "invalid_grant"

	// ErrCodeUnauthorizedClient indicates the client may not use this grant or target
	ErrCodeUnauthorizedClient ErrorCode = "unauthorized_client"

	// ErrCodeUnsupportedGrantType indicates no processor handles the grant type
	ErrCodeUnsupportedGrantType ErrorCode = "unsupported_grant_type"

	// ErrCodeUnsupportedResponseType indicates response_type is not "code"
	ErrCodeUnsupportedResponseType ErrorCode = "unsupported_response_type"

	// ErrCodeInvalidScope indicates the scope is invalid or exceeds what may be granted
	ErrCodeInvalidScope ErrorCode = "invalid_scope"

	// ErrCodeAccessDenied indicates the resource owner could not be authenticated
	ErrCodeAccessDenied ErrorCode = "access_denied"

	// ErrCodeInvalidToken indicates a bearer token is malformed, expired or revoked
	ErrCodeInvalidToken ErrorCode = "invalid_token"

	// ErrCodeServerError indicates an unexpected server condition
	ErrCodeServerError ErrorCode = "server_error"

	// ErrCodeTemporarilyUnavailable indicates the server is overloaded
	ErrCodeTemporarilyUnavailable ErrorCode = "temporarily_unavailable"
)

// ================================================================================
// Logging Constants
// ================================================================================

// LogLevel represents the severity level of log messages
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
	LogLevelFatal LogLevel = "fatal"
)

// ================================================================================
// Context Keys
// ================================================================================

// ContextKey represents keys used in context.Context
type ContextKey string

const (
	// ContextKeyRequestID is the key for request ID in context
	ContextKeyRequestID ContextKey = "request_id"

	// ContextKeyPrincipal is the key for the authenticated resource owner
	ContextKeyPrincipal ContextKey = "principal"

	// ContextKeyClient is the key for the authenticated OAuth client
	ContextKeyClient ContextKey = "oauth_client"

	// ContextKeyClientIP is the key for client IP address in context
	ContextKeyClientIP ContextKey = "client_ip"
)

// HeaderRequestID is the header used to propagate request IDs
const HeaderRequestID = "X-Request-ID"

// ================================================================================
// Audit Event Types
// ================================================================================

// AuditEventType represents different types of auditable events
type AuditEventType string

const (
	EventTypeAuthorizationCodeIssued AuditEventType = "authorization_code_issued"
	EventTypeAuthorizationDenied     AuditEventType = "authorization_denied"
	EventTypeTokenIssued             AuditEventType = "token_issued"
	EventTypeTokenRequestDenied      AuditEventType = "token_request_denied"
	EventTypeTokenRevoked            AuditEventType = "token_revoked"
	EventTypeSigningKeyRotated       AuditEventType = "signing_key_rotated"
)

// ================================================================================
// Service Configuration Constants
// ================================================================================

const (
	// ServiceName identifies this service in traces, logs and audit events
	ServiceName = "authz"

	// DefaultShutdownTimeout is the graceful shutdown timeout (30 seconds)
	DefaultShutdownTimeout = 30 * time.Second

	// BcryptCost is the work factor for client secret and password hashes
	BcryptCost = 12
)
