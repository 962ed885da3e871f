package middleware

import (
	"context"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/authz/internal/domain/models"
	"github.com/turtacn/authz/internal/domain/service"
	"github.com/turtacn/authz/pkg/constants"
	apperrors "github.com/turtacn/authz/pkg/errors"
	"github.com/turtacn/authz/pkg/logger"
)

const bearerTokenKey = "bearer_token"

// ClientAuthenticator verifies a client's credentials.
type ClientAuthenticator interface {
	AuthenticateClient(ctx context.Context, clientID, secret string) (*models.OAuthClient, error)
}

// ClientAuth 认证调用方客户端：优先使用 HTTP Basic，其次使用表单 client_id/client_secret。
// 表单中的 client_id 与已认证客户端不一致时返回 invalid_client。
func ClientAuth(authenticator ClientAuthenticator, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		formID := c.PostForm("client_id")

		clientID, secret, ok := basicCredentials(c)
		if !ok {
			clientID, secret = formID, c.PostForm("client_secret")
		}

		client, err := authenticator.AuthenticateClient(c.Request.Context(), clientID, secret)
		if err != nil {
			AbortWithError(c, err, log)
			return
		}
		if formID != "" && formID != client.ClientID {
			log.Warn(c.Request.Context(), "client_id does not match authenticated client",
				logger.String("client_id", client.ClientID), logger.String("form_client_id", formID))
			AbortWithError(c, apperrors.ErrInvalidClient("client_id does not match the authenticated client"), log)
			return
		}

		c.Set(string(constants.ContextKeyClient), client)
		c.Next()
	}
}

// AuthenticatedClient returns the client set by ClientAuth.
func AuthenticatedClient(c *gin.Context) *models.OAuthClient {
	v, _ := c.Get(string(constants.ContextKeyClient))
	client, _ := v.(*models.OAuthClient)
	return client
}

// ResourceOwnerAuth 使用 HTTP Basic 凭据认证资源所有者，并将主体放入请求上下文。
// 未携带凭据时直接放行，由授权流程报告 AuthenticationFailed。
func ResourceOwnerAuth(authenticator service.UserAuthenticator, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		username, password, ok := c.Request.BasicAuth()
		if !ok {
			c.Next()
			return
		}

		principal, err := authenticator.Authenticate(c.Request.Context(), username, password)
		if err != nil {
			c.Header("WWW-Authenticate", `Basic realm="authz"`)
			AbortWithError(c, err, log)
			return
		}
		if principal == nil || !principal.IsAuthenticated() {
			c.Header("WWW-Authenticate", `Basic realm="authz"`)
			AbortWithError(c, apperrors.ErrAuthenticationFailed("invalid credentials"), log)
			return
		}
		user, ok := principal.(*models.UserPrincipal)
		if !ok {
			AbortWithError(c, apperrors.ErrMissingUserDetails(), log)
			return
		}

		c.Request = c.Request.WithContext(models.ContextWithPrincipal(c.Request.Context(), user))
		c.Next()
	}
}

// RequireBearer extracts the bearer token from the Authorization header or fails
// with invalid_token.
func RequireBearer(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearer(c.GetHeader("Authorization"))
		if token == "" {
			AbortWithError(c, apperrors.ErrInvalidToken("bearer token required"), log)
			return
		}
		c.Set(bearerTokenKey, token)
		c.Next()
	}
}

// BearerToken returns the token extracted by RequireBearer.
func BearerToken(c *gin.Context) string {
	return c.GetString(bearerTokenKey)
}

func extractBearer(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// basicCredentials decodes HTTP Basic client credentials, which RFC 6749 form-encodes.
func basicCredentials(c *gin.Context) (string, string, bool) {
	id, secret, ok := c.Request.BasicAuth()
	if !ok {
		return "", "", false
	}
	if v, err := url.QueryUnescape(id); err == nil {
		id = v
	}
	if v, err := url.QueryUnescape(secret); err == nil {
		secret = v
	}
	return id, secret, true
}
