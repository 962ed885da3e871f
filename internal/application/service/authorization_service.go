// Package service provides the application facade that the transport layers call into.
package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/turtacn/authz/internal/domain/models"
	domainservice "github.com/turtacn/authz/internal/domain/service"
	"github.com/turtacn/authz/internal/infrastructure/monitoring"
	"github.com/turtacn/authz/pkg/constants"
	"github.com/turtacn/authz/pkg/errors"
	"github.com/turtacn/authz/pkg/logger"
)

const resultSuccess = "success"

//go:generate mockery --name Metrics --output mocks --outpkg mocks
// Metrics receives the outcome of every facade operation.
// Metrics 接收门面每个操作的结果。
type Metrics interface {
	RecordTokenRequest(grantType, result string, duration time.Duration)
	RecordAuthorization(result string)
	RecordIntrospection(active bool)
	RecordRevocation(result string)
	RecordCleanup(deleted, failed int)
}

// RevocationPublisher announces a local revocation to the other instances.
type RevocationPublisher interface {
	PublishRevocation(ctx context.Context, jti string, expiresAt, revokedAt time.Time) error
}

// Dependencies are the collaborators of AuthorizationService. Audit, Publisher,
// Metrics and Tracing are optional.
type Dependencies struct {
	Contexts   *domainservice.RequestContextFactory
	Processors *domainservice.ProcessorRegistry
	Tokens     domainservice.TokenHandler
	Tracker    *domainservice.TokenTracker
	Audit      domainservice.AuditService
	Publisher  RevocationPublisher
	Metrics    Metrics
	Tracing    *monitoring.TracingManager
	Clock      domainservice.Clock
	Logger     logger.Logger
}

// AuthorizationService is the entry point of the authorization engine.
// AuthorizationService 是授权引擎的入口。
type AuthorizationService struct {
	contexts   *domainservice.RequestContextFactory
	processors *domainservice.ProcessorRegistry
	tokens     domainservice.TokenHandler
	tracker    *domainservice.TokenTracker
	audit      domainservice.AuditService
	publisher  RevocationPublisher
	metrics    Metrics
	tracing    *monitoring.TracingManager
	now        domainservice.Clock
	logger     logger.Logger
}

// NewAuthorizationService creates the facade.
func NewAuthorizationService(deps Dependencies) *AuthorizationService {
	s := &AuthorizationService{
		contexts:   deps.Contexts,
		processors: deps.Processors,
		tokens:     deps.Tokens,
		tracker:    deps.Tracker,
		audit:      deps.Audit,
		publisher:  deps.Publisher,
		metrics:    deps.Metrics,
		tracing:    deps.Tracing,
		now:        deps.Clock,
		logger:     deps.Logger.WithComponent("AuthorizationService"),
	}
	if s.metrics == nil {
		s.metrics = noopMetrics{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Authorize handles an authorization endpoint call for the resource owner found in ctx.
func (s *AuthorizationService) Authorize(ctx context.Context, req *models.AuthorizationRequest) (resp *models.AuthorizationResponse, err error) {
	ctx, span := s.tracing.StartSpan(ctx, "authz.Authorize", attribute.String("client_id", req.ClientID))
	defer func() {
		monitoring.EndSpan(span, err)
		s.metrics.RecordAuthorization(resultOf(err))
	}()

	ac, err := s.contexts.ForAuthorization(ctx, req)
	if err != nil {
		s.auditAuthorization(ctx, req, nil, err)
		return nil, err
	}
	processor, ok := s.processors.AuthorizationProcessor(req.GrantType())
	if !ok {
		err = errors.ErrUnsupportedGrantType(string(req.GrantType()))
		s.auditAuthorization(ctx, req, ac, err)
		return nil, err
	}

	resp, err = processor.ProcessAuthorizationRequest(ctx, ac)
	s.auditAuthorization(ctx, req, ac, err)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Token handles a token endpoint call: the processor for the grant produces claims,
// the TokenHandler mints them and the tracker starts tracking the new JTI.
func (s *AuthorizationService) Token(ctx context.Context, req *models.TokenRequest) (resp *models.TokenResponse, err error) {
	start := time.Now()
	ctx, span := s.tracing.StartSpan(ctx, "authz.Token",
		attribute.String("client_id", req.ClientID),
		attribute.String("grant_type", string(req.GrantType)))
	defer func() {
		monitoring.EndSpan(span, err)
		s.metrics.RecordTokenRequest(string(req.GrantType), resultOf(err), time.Since(start))
	}()

	claims, tc, err := s.claimsFor(ctx, req)
	if err != nil {
		s.auditTokenDenied(ctx, req, err)
		return nil, err
	}

	resp, err = s.tokens.GenerateToken(ctx, req, claims, tc.Source.AccessTokenTTL())
	if err != nil {
		s.logger.Error(ctx, "failed to mint token", err, logger.String("client_id", req.ClientID))
		err = errors.ErrServerError("failed to mint token").WithCause(err)
		s.auditTokenDenied(ctx, req, err)
		return nil, err
	}

	if err = s.tracker.StoreTokenInfo(ctx, models.StoreTokenInfoRequest{
		TokenID:   resp.TokenID,
		IssuedAt:  resp.IssuedAt,
		ExpiresAt: resp.ExpiresAt,
	}); err != nil {
		s.logger.Error(ctx, "failed to track issued token", err, logger.String("jti", resp.TokenID))
		err = errors.ErrServerError("failed to track issued token").WithCause(err)
		s.auditTokenDenied(ctx, req, err)
		return nil, err
	}

	event := models.NewAuditEvent(constants.EventTypeTokenIssued, req.ClientID, true)
	event.Subject = claims.Subject
	event.JTI = resp.TokenID
	event.GrantType = string(req.GrantType)
	s.record(ctx, event.WithMeta("audience", claims.Audience).WithMeta("scope", claims.Scope.String()))

	s.logger.Info(ctx, "token issued",
		logger.String("client_id", req.ClientID),
		logger.String("grant_type", string(req.GrantType)),
		logger.String("jti", resp.TokenID),
	)
	return resp, nil
}

func (s *AuthorizationService) claimsFor(ctx context.Context, req *models.TokenRequest) (*models.TokenClaims, *models.TokenContext, error) {
	tc, err := s.contexts.ForToken(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	processor, ok := s.processors.TokenProcessor(req.GrantType)
	if !ok {
		return nil, nil, errors.ErrUnsupportedGrantType(string(req.GrantType))
	}
	claims, err := processor.ProcessTokenRequest(ctx, tc)
	if err != nil {
		return nil, nil, err
	}
	return claims, tc, nil
}

// Introspect reports whether raw is live. A token that does not parse yields an
// inactive result with no fields; a parsed token always reports its client,
// username and expiration.
func (s *AuthorizationService) Introspect(ctx context.Context, raw string) (result *models.IntrospectionResult, err error) {
	ctx, span := s.tracing.StartSpan(ctx, "authz.Introspect")
	defer func() {
		monitoring.EndSpan(span, err)
		if err == nil {
			s.metrics.RecordIntrospection(result.Active)
		}
	}()

	claims, err := s.tokens.ParseToken(ctx, raw)
	if err != nil {
		s.logger.Debug(ctx, "introspected token does not parse", logger.Err(err))
		return &models.IntrospectionResult{}, nil
	}

	info, err := s.tracker.RetrieveTokenInfo(ctx, claims.TokenID)
	if err != nil {
		return nil, err
	}

	expiration := claims.Expiration
	return &models.IntrospectionResult{
		Active:     info != nil && info.IsActive(),
		ClientID:   claims.ClientID(),
		Username:   claims.Username,
		Expiration: &expiration,
	}, nil
}

// Revoke revokes the token raw on behalf of clientID and reports whether this call
// changed its state. A token that does not parse or is untracked is not an error.
// Revoking a revoked token fails with InvalidStateTransition.
func (s *AuthorizationService) Revoke(ctx context.Context, clientID, raw string) (revoked bool, err error) {
	ctx, span := s.tracing.StartSpan(ctx, "authz.Revoke", attribute.String("client_id", clientID))
	result := "untracked"
	defer func() {
		monitoring.EndSpan(span, err)
		if err != nil {
			result = resultOf(err)
		}
		s.metrics.RecordRevocation(result)
	}()

	claims, err := s.tokens.ParseToken(ctx, raw)
	if err != nil {
		s.logger.Debug(ctx, "revocation of unparsable token ignored", logger.Err(err))
		result = "invalid_token"
		return false, nil
	}

	revoked, err = s.tracker.RevokeToken(ctx, claims.TokenID)
	if err != nil {
		return false, err
	}
	if !revoked {
		return false, nil
	}
	result = "revoked"
	revokedAt := s.now().UTC()

	event := models.NewAuditEvent(constants.EventTypeTokenRevoked, clientID, true)
	event.Subject = claims.Subject
	event.JTI = claims.TokenID
	s.record(ctx, event)

	if s.publisher != nil {
		if perr := s.publisher.PublishRevocation(ctx, claims.TokenID, claims.Expiration, revokedAt); perr != nil {
			s.logger.Warn(ctx, "failed to publish revocation", logger.String("jti", claims.TokenID), logger.Err(perr))
		}
	}
	return true, nil
}

// RevokeByJTI revokes a tracked token by identifier. Used by operators, it neither
// publishes nor audits on behalf of a client.
func (s *AuthorizationService) RevokeByJTI(ctx context.Context, jti string) (bool, error) {
	revoked, err := s.tracker.RevokeToken(ctx, jti)
	if err != nil {
		s.metrics.RecordRevocation(resultOf(err))
		return false, err
	}
	if revoked {
		s.metrics.RecordRevocation("revoked")
	}
	return revoked, nil
}

// UserInfo returns the claims of a live bearer token.
func (s *AuthorizationService) UserInfo(ctx context.Context, raw string) (*models.TokenClaims, error) {
	claims, err := s.tokens.ParseToken(ctx, raw)
	if err != nil {
		return nil, err
	}
	info, err := s.tracker.RetrieveTokenInfo(ctx, claims.TokenID)
	if err != nil {
		return nil, err
	}
	if info == nil || !info.IsActive() {
		return nil, errors.ErrInvalidToken("token is not active")
	}
	return claims, nil
}

// CleanUpExpiredTokens runs one expiry sweep.
func (s *AuthorizationService) CleanUpExpiredTokens(ctx context.Context) (domainservice.CleanupReport, error) {
	report, err := s.tracker.CleanUpExpiredTokens(ctx)
	s.metrics.RecordCleanup(report.Deleted, report.Failed)
	return report, err
}

func (s *AuthorizationService) auditAuthorization(ctx context.Context, req *models.AuthorizationRequest, ac *models.AuthorizationContext, err error) {
	eventType := constants.EventTypeAuthorizationCodeIssued
	if err != nil {
		eventType = constants.EventTypeAuthorizationDenied
	}
	event := models.NewAuditEvent(eventType, req.ClientID, err == nil)
	event.GrantType = string(req.GrantType())
	if ac != nil && ac.User != nil {
		event.Subject = models.UserSubject(req.ClientID, ac.User.User.ID)
	}
	if err != nil {
		event.Reason = string(errors.ReasonOf(err))
	}
	s.record(ctx, event.WithMeta("redirect_uri", req.RedirectURI))
}

func (s *AuthorizationService) auditTokenDenied(ctx context.Context, req *models.TokenRequest, err error) {
	event := models.NewAuditEvent(constants.EventTypeTokenRequestDenied, req.ClientID, false)
	event.GrantType = string(req.GrantType)
	event.Reason = string(errors.ReasonOf(err))
	if req.Audience != "" {
		event = event.WithMeta("audience", req.Audience)
	}
	s.record(ctx, event)
}

// record never fails the request.
func (s *AuthorizationService) record(ctx context.Context, event models.AuditEvent) {
	if s.audit == nil {
		return
	}
	if err := s.audit.LogEvent(ctx, event); err != nil {
		s.logger.Warn(ctx, "failed to record audit event",
			logger.String("event_type", string(event.EventType)), logger.Err(err))
	}
}

func resultOf(err error) string {
	if err == nil {
		return resultSuccess
	}
	return string(errors.ReasonOf(err))
}

type noopMetrics struct{}

func (noopMetrics) RecordTokenRequest(string, string, time.Duration) {}
func (noopMetrics) RecordAuthorization(string)                      {}
func (noopMetrics) RecordIntrospection(bool)                        {}
func (noopMetrics) RecordRevocation(string)                         {}
func (noopMetrics) RecordCleanup(int, int)                          {}
