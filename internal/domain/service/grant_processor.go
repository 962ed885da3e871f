package service

import (
	"context"

	"github.com/turtacn/authz/internal/domain/models"
	"github.com/turtacn/authz/pkg/constants"
)

// GrantFlowProcessor turns a verified token request into the claims of the token to mint.
// GrantFlowProcessor 将通过校验的令牌请求转换为待签发令牌的声明。
type GrantFlowProcessor interface {
	// GrantType names the grant this processor handles.
	GrantType() constants.GrantType

	// ProcessTokenRequest verifies the request, negotiates its scope and assembles claims.
	ProcessTokenRequest(ctx context.Context, c *models.TokenContext) (*models.TokenClaims, error)
}

// AuthorizationRequestProcessor is a grant that also has an authorization endpoint phase.
type AuthorizationRequestProcessor interface {
	GrantFlowProcessor

	// ProcessAuthorizationRequest verifies the request, then persists an ongoing
	// authorization and returns the redirect carrying its code.
	ProcessAuthorizationRequest(ctx context.Context, c *models.AuthorizationContext) (*models.AuthorizationResponse, error)
}

// ProcessorRegistry maps a grant type to its processor. It is built once at startup.
type ProcessorRegistry struct {
	processors map[constants.GrantType]GrantFlowProcessor
}

// NewProcessorRegistry registers processors by their grant type. A later processor
// for the same grant type replaces an earlier one.
func NewProcessorRegistry(processors ...GrantFlowProcessor) *ProcessorRegistry {
	r := &ProcessorRegistry{processors: make(map[constants.GrantType]GrantFlowProcessor, len(processors))}
	for _, p := range processors {
		r.processors[p.GrantType()] = p
	}
	return r
}

// TokenProcessor returns the processor for grantType.
func (r *ProcessorRegistry) TokenProcessor(grantType constants.GrantType) (GrantFlowProcessor, bool) {
	p, ok := r.processors[grantType]
	return p, ok
}

// AuthorizationProcessor returns the processor for grantType when it has an authorization phase.
func (r *ProcessorRegistry) AuthorizationProcessor(grantType constants.GrantType) (AuthorizationRequestProcessor, bool) {
	p, ok := r.processors[grantType].(AuthorizationRequestProcessor)
	return p, ok
}

// GrantTypes lists the registered grant types.
func (r *ProcessorRegistry) GrantTypes() []constants.GrantType {
	out := make([]constants.GrantType, 0, len(r.processors))
	for gt := range r.processors {
		out = append(out, gt)
	}
	return out
}
