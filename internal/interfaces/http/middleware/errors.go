// Package middleware holds the gin middleware of the authz HTTP surface.
package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/turtacn/authz/pkg/constants"
	apperrors "github.com/turtacn/authz/pkg/errors"
	"github.com/turtacn/authz/pkg/logger"
)

// AbortWithError renders err in the OAuth error shape and stops the chain. Client
// and bearer authentication failures carry the matching WWW-Authenticate challenge.
func AbortWithError(c *gin.Context, err error, log logger.Logger) {
	status, body := apperrors.ToErrorResponse(err)
	switch constants.ErrorCode(body.Error) {
	case constants.ErrCodeInvalidClient:
		c.Header("WWW-Authenticate", `Basic realm="authz"`)
	case constants.ErrCodeInvalidToken:
		c.Header("WWW-Authenticate", `Bearer realm="authz", error="invalid_token"`)
	}
	if apperrors.ShouldLogError(err) && log != nil {
		log.Error(c.Request.Context(), "request failed", err, logger.String("path", c.FullPath()))
	}
	c.Header("Cache-Control", "no-store")
	c.AbortWithStatusJSON(status, body)
}
