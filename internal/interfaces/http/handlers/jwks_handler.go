package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-jose/go-jose/v4"
)

// JWKSProvider exposes the public half of the signing keys.
type JWKSProvider interface {
	JWKS() jose.JSONWebKeySet
}

// JWKSHandler serves /.well-known/jwks.
type JWKSHandler struct {
	keys JWKSProvider
}

// NewJWKSHandler creates a new JWKSHandler.
func NewJWKSHandler(keys JWKSProvider) *JWKSHandler {
	return &JWKSHandler{keys: keys}
}

// GetJWKS 返回当前及宽限期内的 RSA 公钥集合。
func (h *JWKSHandler) GetJWKS(c *gin.Context) {
	c.JSON(http.StatusOK, h.keys.JWKS())
}
