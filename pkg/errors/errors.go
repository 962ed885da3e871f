// Package errors defines the structured error types of the authz service.
// Every authorization failure is a named Reason that maps onto an OAuth 2.0 error code
// and an HTTP status, so the boundary layer can render all of them in one response shape.
package errors

import (
	goerrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/turtacn/authz/pkg/constants"
)

// ================================================================================
// Reasons
// ================================================================================

// Reason names a specific failure variant. Tests and callers branch on the Reason,
// never on the message text.
type Reason string

const (
	ReasonUnregisteredClient          Reason = "UnregisteredClient"
	ReasonRelationNotAllowed          Reason = "RelationNotAllowed"
	ReasonGrantNotPermitted           Reason = "GrantNotPermitted"
	ReasonUnregisteredCallback        Reason = "UnregisteredCallback"
	ReasonInvalidResponseType         Reason = "InvalidResponseType"
	ReasonScopeTooBroad               Reason = "ScopeTooBroad"
	ReasonScopeNotAllowed             Reason = "ScopeNotAllowed"
	ReasonMissingParameter            Reason = "MissingParameter"
	ReasonUnknownAuthorizationRequest Reason = "UnknownAuthorizationRequest"
	ReasonClientMismatch              Reason = "ClientMismatch"
	ReasonRedirectMismatch            Reason = "RedirectMismatch"
	ReasonAuthorizationExpired        Reason = "AuthorizationExpired"
	ReasonInsufficientUserAuthority   Reason = "InsufficientUserAuthority"
	ReasonScopeMustNotBeSpecified     Reason = "ScopeMustNotBeSpecified"
	ReasonMissingOngoingAuthorization Reason = "MissingOngoingAuthorization"
	ReasonUnsupportedGrantType        Reason = "UnsupportedGrantType"
	ReasonAuthenticationFailed        Reason = "AuthenticationFailed"
	ReasonMissingUserDetails          Reason = "MissingUserDetails"
	ReasonInvalidStateTransition      Reason = "InvalidStateTransition"

	// boundary-only reasons
	ReasonInvalidClient  Reason = "InvalidClient"
	ReasonInvalidRequest Reason = "InvalidRequest"
	ReasonInvalidToken   Reason = "InvalidToken"
	ReasonRateLimited    Reason = "RateLimited"
	ReasonServerError    Reason = "ServerError"
)

// ================================================================================
// Base Error Interface
// ================================================================================

// AuthzError represents a structured error with additional metadata
type AuthzError interface {
	error

	// Code returns the OAuth 2.0 error code
	Code() constants.ErrorCode

	// Reason returns the named failure variant
	Reason() Reason

	// HTTPStatus returns the HTTP status code
	HTTPStatus() int

	// Description returns a human-readable description
	Description() string

	// Unwrap returns the underlying error for error chain support
	Unwrap() error

	// WithCause adds a cause error to the error chain
	WithCause(cause error) AuthzError

	// WithMetadata adds additional context metadata
	WithMetadata(key string, value interface{}) AuthzError

	// Metadata returns all metadata
	Metadata() map[string]interface{}
}

// ================================================================================
// Base Error Implementation
// ================================================================================

type baseError struct {
	code        constants.ErrorCode
	reason      Reason
	httpStatus  int
	description string
	cause       error
	metadata    map[string]interface{}
}

// Error implements the error interface
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.reason, e.description, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.reason, e.description)
}

func (e *baseError) Code() constants.ErrorCode { return e.code }
func (e *baseError) Reason() Reason             { return e.reason }
func (e *baseError) HTTPStatus() int            { return e.httpStatus }
func (e *baseError) Description() string        { return e.description }
func (e *baseError) Unwrap() error              { return e.cause }

// WithCause adds a cause error to the error chain
func (e *baseError) WithCause(cause error) AuthzError {
	e.cause = cause
	return e
}

// WithMetadata adds additional context metadata
func (e *baseError) WithMetadata(key string, value interface{}) AuthzError {
	if e.metadata == nil {
		e.metadata = make(map[string]interface{})
	}
	e.metadata[key] = value
	return e
}

// Metadata returns all metadata
func (e *baseError) Metadata() map[string]interface{} {
	return e.metadata
}

// ================================================================================
// Error Constructor
// ================================================================================

// NewError creates a new AuthzError with the specified parameters
func NewError(reason Reason, code constants.ErrorCode, httpStatus int, description string) AuthzError {
	return &baseError{
		code:        code,
		reason:      reason,
		httpStatus:  httpStatus,
		description: description,
		metadata:    make(map[string]interface{}),
	}
}

// ================================================================================
// Context Resolution Errors
// ================================================================================

// ErrUnregisteredClient is returned when a client ID or audience resolves to no client
func ErrUnregisteredClient(identifier string) AuthzError {
	return NewError(ReasonUnregisteredClient, constants.ErrCodeInvalidClient, http.StatusUnauthorized,
		fmt.Sprintf("client '%s' is not registered", identifier)).
		WithMetadata("client", identifier)
}

// ErrRelationNotAllowed is returned when the target client does not list the source client
func ErrRelationNotAllowed(source, target string) AuthzError {
	return NewError(ReasonRelationNotAllowed, constants.ErrCodeUnauthorizedClient, http.StatusBadRequest,
		fmt.Sprintf("client '%s' is not allowed to request tokens for '%s'", source, target)).
		WithMetadata("source_client", source).
		WithMetadata("target_client", target)
}

// ================================================================================
// Verification Errors
// ================================================================================

// ErrGrantNotPermitted is returned when the client type cannot use the grant
func ErrGrantNotPermitted(clientID string, grantType constants.GrantType) AuthzError {
	return NewError(ReasonGrantNotPermitted, constants.ErrCodeUnauthorizedClient, http.StatusBadRequest,
		fmt.Sprintf("client '%s' may not use the %s grant", clientID, grantType)).
		WithMetadata("client_id", clientID).
		WithMetadata("grant_type", string(grantType))
}

// ErrUnregisteredCallback is returned when redirect_uri is not a registered callback
func ErrUnregisteredCallback(redirectURI string) AuthzError {
	return NewError(ReasonUnregisteredCallback, constants.ErrCodeInvalidRequest, http.StatusBadRequest,
		fmt.Sprintf("redirect_uri '%s' is not registered for this client", redirectURI)).
		WithMetadata("redirect_uri", redirectURI)
}

// ErrInvalidResponseType is returned when response_type is not "code"
func ErrInvalidResponseType(responseType string) AuthzError {
	return NewError(ReasonInvalidResponseType, constants.ErrCodeUnsupportedResponseType, http.StatusBadRequest,
		fmt.Sprintf("response_type '%s' is not supported", responseType)).
		WithMetadata("response_type", responseType)
}

// ErrScopeTooBroad is returned when the requested scope exceeds the user's authority
func ErrScopeTooBroad(rejected []string) AuthzError {
	return NewError(ReasonScopeTooBroad, constants.ErrCodeInvalidScope, http.StatusBadRequest,
		fmt.Sprintf("requested scope exceeds the user's authority: %s", strings.Join(rejected, " "))).
		WithMetadata("rejected_scopes", rejected)
}

// ErrScopeNotAllowed is returned when the source client may not request a scope from the target
func ErrScopeNotAllowed(source, target string, rejected []string) AuthzError {
	return NewError(ReasonScopeNotAllowed, constants.ErrCodeInvalidScope, http.StatusBadRequest,
		fmt.Sprintf("client '%s' is not allowed scope [%s] of '%s'", source, strings.Join(rejected, " "), target)).
		WithMetadata("source_client", source).
		WithMetadata("target_client", target).
		WithMetadata("rejected_scopes", rejected)
}

// ErrMissingParameter is returned when a required request parameter is empty
func ErrMissingParameter(name string) AuthzError {
	return NewError(ReasonMissingParameter, constants.ErrCodeInvalidRequest, http.StatusBadRequest,
		fmt.Sprintf("missing required parameter: %s", name)).
		WithMetadata("parameter", name)
}

// ErrUnknownAuthorizationRequest is returned when no ongoing authorization matches the code
func ErrUnknownAuthorizationRequest() AuthzError {
	return NewError(ReasonUnknownAuthorizationRequest, constants.ErrCodeInvalidGrant, http.StatusBadRequest,
		"authorization code is unknown or has already been used")
}

// ErrClientMismatch is returned when the code was issued to another client
func ErrClientMismatch(expected, actual string) AuthzError {
	return NewError(ReasonClientMismatch, constants.ErrCodeInvalidGrant, http.StatusBadRequest,
		"authorization code was issued to another client").
		WithMetadata("expected", expected).
		WithMetadata("actual", actual)
}

// ErrRedirectMismatch is returned when redirect_uri differs from the authorization request
func ErrRedirectMismatch(expected, actual string) AuthzError {
	return NewError(ReasonRedirectMismatch, constants.ErrCodeInvalidGrant, http.StatusBadRequest,
		"redirect_uri does not match the authorization request").
		WithMetadata("expected", expected).
		WithMetadata("actual", actual)
}

// ErrAuthorizationExpired is returned when the authorization code is past its expiration
func ErrAuthorizationExpired() AuthzError {
	return NewError(ReasonAuthorizationExpired, constants.ErrCodeInvalidGrant, http.StatusBadRequest,
		"authorization code has expired")
}

// ================================================================================
// Scope Negotiation Errors
// ================================================================================

// ErrInsufficientUserAuthority is returned when the user cannot grant the client's required scopes
func ErrInsufficientUserAuthority(missing []string) AuthzError {
	return NewError(ReasonInsufficientUserAuthority, constants.ErrCodeInvalidScope, http.StatusBadRequest,
		fmt.Sprintf("user lacks the authority required by the client: %s", strings.Join(missing, " "))).
		WithMetadata("missing_scopes", missing)
}

// ErrScopeMustNotBeSpecified is returned when a code exchange carries a scope
func ErrScopeMustNotBeSpecified() AuthzError {
	return NewError(ReasonScopeMustNotBeSpecified, constants.ErrCodeInvalidScope, http.StatusBadRequest,
		"scope must not be specified when exchanging an authorization code")
}

// ErrMissingOngoingAuthorization is returned when scope negotiation has no ongoing authorization
func ErrMissingOngoingAuthorization() AuthzError {
	return NewError(ReasonMissingOngoingAuthorization, constants.ErrCodeInvalidGrant, http.StatusBadRequest,
		"no ongoing authorization is associated with this request")
}

// ================================================================================
// Grant Processing Errors
// ================================================================================

// ErrUnsupportedGrantType is returned when no processor is registered for the grant type
func ErrUnsupportedGrantType(grantType string) AuthzError {
	return NewError(ReasonUnsupportedGrantType, constants.ErrCodeUnsupportedGrantType, http.StatusBadRequest,
		fmt.Sprintf("grant type '%s' is not supported", grantType)).
		WithMetadata("grant_type", grantType)
}

// ErrAuthenticationFailed is returned when the resource owner could not be authenticated
func ErrAuthenticationFailed(reason string) AuthzError {
	return NewError(ReasonAuthenticationFailed, constants.ErrCodeInvalidGrant, http.StatusBadRequest,
		fmt.Sprintf("authentication failed: %s", reason))
}

// ErrMissingUserDetails is returned when the authenticated principal carries no user details
func ErrMissingUserDetails() AuthzError {
	return NewError(ReasonMissingUserDetails, constants.ErrCodeInvalidGrant, http.StatusBadRequest,
		"authenticated principal carries no user details")
}

// ================================================================================
// Tracking Errors
// ================================================================================

// ErrInvalidStateTransition is returned when a tracked token is not in the required state
func ErrInvalidStateTransition(required, actual constants.TokenStatus) AuthzError {
	return NewError(ReasonInvalidStateTransition, constants.ErrCodeInvalidRequest, http.StatusConflict,
		fmt.Sprintf("token must be %s but is %s", required, actual)).
		WithMetadata("required_state", string(required)).
		WithMetadata("actual_state", string(actual))
}

// ================================================================================
// Boundary Errors
// ================================================================================

// ErrInvalidClient is returned when client authentication fails
func ErrInvalidClient(message string) AuthzError {
	return NewError(ReasonInvalidClient, constants.ErrCodeInvalidClient, http.StatusUnauthorized, message)
}

// ErrInvalidRequest is returned for malformed requests
func ErrInvalidRequest(message string) AuthzError {
	return NewError(ReasonInvalidRequest, constants.ErrCodeInvalidRequest, http.StatusBadRequest, message)
}

// ErrInvalidToken is returned when a bearer token is unusable
func ErrInvalidToken(message string) AuthzError {
	return NewError(ReasonInvalidToken, constants.ErrCodeInvalidToken, http.StatusUnauthorized, message)
}

// ErrRateLimited is returned when a caller exceeds its request budget
func ErrRateLimited() AuthzError {
	return NewError(ReasonRateLimited, constants.ErrCodeTemporarilyUnavailable, http.StatusTooManyRequests,
		"rate limit exceeded, please try again later")
}

// ErrServerError wraps an unexpected failure
func ErrServerError(message string) AuthzError {
	return NewError(ReasonServerError, constants.ErrCodeServerError, http.StatusInternalServerError, message)
}

// ================================================================================
// Error Inspection Utilities
// ================================================================================

// AsAuthzError finds the first AuthzError in err's chain
func AsAuthzError(err error) (AuthzError, bool) {
	var authzErr AuthzError
	if goerrors.As(err, &authzErr) {
		return authzErr, true
	}
	return nil, false
}

// HasReason reports whether err's chain carries an AuthzError with the given reason
func HasReason(err error, reason Reason) bool {
	authzErr, ok := AsAuthzError(err)
	return ok && authzErr.Reason() == reason
}

// ReasonOf returns the reason of err, or ReasonServerError for foreign errors
func ReasonOf(err error) Reason {
	if authzErr, ok := AsAuthzError(err); ok {
		return authzErr.Reason()
	}
	return ReasonServerError
}

// ShouldLogError reports whether err indicates a server-side fault
func ShouldLogError(err error) bool {
	if authzErr, ok := AsAuthzError(err); ok {
		return authzErr.HTTPStatus() >= http.StatusInternalServerError
	}
	return true
}

// ================================================================================
// Error Response Builder
// ================================================================================

// ErrorResponse represents the JSON structure for error responses
type ErrorResponse struct {
	Error            string                 `json:"error"`
	ErrorDescription string                 `json:"error_description"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

// ToErrorResponse converts any error to an ErrorResponse and its HTTP status.
// Foreign errors never leak their message.
func ToErrorResponse(err error) (int, *ErrorResponse) {
	if authzErr, ok := AsAuthzError(err); ok {
		var metadata map[string]interface{}
		if len(authzErr.Metadata()) > 0 {
			metadata = authzErr.Metadata()
		}
		return authzErr.HTTPStatus(), &ErrorResponse{
			Error:            string(authzErr.Code()),
			ErrorDescription: authzErr.Description(),
			Metadata:         metadata,
		}
	}
	return http.StatusInternalServerError, &ErrorResponse{
		Error:            string(constants.ErrCodeServerError),
		ErrorDescription: "an unexpected error occurred",
	}
}
