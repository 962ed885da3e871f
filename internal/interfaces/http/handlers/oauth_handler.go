// Package handlers provides HTTP request handlers.
package handlers

import (
	"context"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/authz/internal/application/dto"
	"github.com/turtacn/authz/internal/domain/models"
	"github.com/turtacn/authz/internal/interfaces/http/middleware"
	apperrors "github.com/turtacn/authz/pkg/errors"
	"github.com/turtacn/authz/pkg/logger"
	"github.com/turtacn/authz/pkg/utils"
)

// OAuthService is the engine behind the OAuth endpoints.
// OAuthService 是 OAuth 端点背后的授权引擎。
type OAuthService interface {
	Authorize(ctx context.Context, req *models.AuthorizationRequest) (*models.AuthorizationResponse, error)
	Token(ctx context.Context, req *models.TokenRequest) (*models.TokenResponse, error)
	Introspect(ctx context.Context, raw string) (*models.IntrospectionResult, error)
	Revoke(ctx context.Context, clientID, raw string) (bool, error)
	UserInfo(ctx context.Context, raw string) (*models.TokenClaims, error)
}

// OAuthHandler serves /oauth/*.
type OAuthHandler struct {
	service OAuthService
	logger  logger.Logger
}

// NewOAuthHandler creates a new OAuthHandler.
func NewOAuthHandler(svc OAuthService, log logger.Logger) *OAuthHandler {
	return &OAuthHandler{service: svc, logger: log.WithComponent("OAuthHandler")}
}

// Authorize 处理授权请求，成功后重定向到 redirect_uri?code=&state=。
func (h *OAuthHandler) Authorize(c *gin.Context) {
	var req dto.AuthorizeRequest
	if !h.bind(c, &req) {
		return
	}

	resp, err := h.service.Authorize(c.Request.Context(), req.ToModel())
	if err != nil {
		middleware.AbortWithError(c, err, h.logger)
		return
	}

	location, err := url.Parse(resp.RedirectURI)
	if err != nil {
		middleware.AbortWithError(c, apperrors.ErrServerError("registered callback is not a valid URL").WithCause(err), h.logger)
		return
	}
	q := location.Query()
	q.Set("code", resp.Code)
	if resp.State != "" {
		q.Set("state", resp.State)
	}
	location.RawQuery = q.Encode()

	c.Header("Cache-Control", "no-store")
	c.Redirect(http.StatusFound, location.String())
}

// Token 处理令牌请求。请求中的 client_id 以边界层认证的客户端为准。
func (h *OAuthHandler) Token(c *gin.Context) {
	var req dto.TokenRequest
	if !h.bind(c, &req) {
		return
	}

	client := middleware.AuthenticatedClient(c)
	if client == nil {
		middleware.AbortWithError(c, apperrors.ErrInvalidClient("client authentication required"), h.logger)
		return
	}

	resp, err := h.service.Token(c.Request.Context(), req.ToModel(client.ClientID))
	if err != nil {
		middleware.AbortWithError(c, err, h.logger)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(http.StatusOK, dto.NewTokenResponse(resp))
}

// Introspect reports whether a token is active. Unparsable tokens are inactive,
// not errors.
func (h *OAuthHandler) Introspect(c *gin.Context) {
	var form dto.TokenRequestForm
	if !h.bind(c, &form) {
		return
	}

	result, err := h.service.Introspect(c.Request.Context(), form.Token)
	if err != nil {
		middleware.AbortWithError(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, dto.NewIntrospectionResponse(result))
}

// Revoke revokes a token on behalf of the authenticated client.
func (h *OAuthHandler) Revoke(c *gin.Context) {
	var form dto.TokenRequestForm
	if !h.bind(c, &form) {
		return
	}

	client := middleware.AuthenticatedClient(c)
	if client == nil {
		middleware.AbortWithError(c, apperrors.ErrInvalidClient("client authentication required"), h.logger)
		return
	}

	revoked, err := h.service.Revoke(c.Request.Context(), client.ClientID, form.Token)
	if err != nil {
		middleware.AbortWithError(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, dto.RevocationResponse{Revoked: revoked})
}

// UserInfo returns the claims of the presented bearer token.
func (h *OAuthHandler) UserInfo(c *gin.Context) {
	claims, err := h.service.UserInfo(c.Request.Context(), middleware.BearerToken(c))
	if err != nil {
		middleware.AbortWithError(c, err, h.logger)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, dto.NewUserInfoResponse(claims))
}

func (h *OAuthHandler) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBind(dst); err != nil {
		middleware.AbortWithError(c, apperrors.ErrInvalidRequest("malformed request body").WithCause(err), h.logger)
		return false
	}
	if err := utils.ValidateStruct(dst); err != nil {
		middleware.AbortWithError(c, err, h.logger)
		return false
	}
	return true
}
