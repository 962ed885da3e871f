package crypto

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/turtacn/authz/internal/domain/models"
	"github.com/turtacn/authz/internal/domain/service"
	apperrors "github.com/turtacn/authz/pkg/errors"
	"github.com/turtacn/authz/pkg/logger"
)

// TokenTypeBearer is the token_type of every issued token.
const TokenTypeBearer = "Bearer"

// AccessTokenClaims is the JWT body of an access token.
type AccessTokenClaims struct {
	Scope    string `json:"scope,omitempty"`
	Username string `json:"usr,omitempty"`
	Role     string `json:"rol,omitempty"`
	Name     string `json:"name,omitempty"`
	UserID   string `json:"uid,omitempty"`
	jwt.RegisteredClaims
}

// JWTTokenHandler signs claims as RS256 JWTs with the KeyManager's active key and
// verifies them against the active or recently retired keys.
type JWTTokenHandler struct {
	keys       *KeyManager
	issuer     string
	defaultTTL time.Duration
	now        func() time.Time
	log        logger.Logger
}

// NewJWTTokenHandler creates the handler. now may be nil.
func NewJWTTokenHandler(keys *KeyManager, issuer string, defaultTTL time.Duration, now func() time.Time, log logger.Logger) *JWTTokenHandler {
	if now == nil {
		now = time.Now
	}
	return &JWTTokenHandler{
		keys:       keys,
		issuer:     issuer,
		defaultTTL: defaultTTL,
		now:        now,
		log:        log.WithComponent("JWTTokenHandler"),
	}
}

var _ service.TokenHandler = (*JWTTokenHandler)(nil)

// GenerateToken mints a signed token and stamps TokenID, IssuedAt and Expiration on claims.
func (h *JWTTokenHandler) GenerateToken(ctx context.Context, req *models.TokenRequest, claims *models.TokenClaims, ttlOverride time.Duration) (*models.TokenResponse, error) {
	ttl := h.defaultTTL
	if ttlOverride > 0 {
		ttl = ttlOverride
	}

	// JWT timestamps have second precision
	issuedAt := h.now().UTC().Truncate(time.Second)
	claims.TokenID = uuid.NewString()
	claims.IssuedAt = issuedAt
	claims.Expiration = issuedAt.Add(ttl)

	body := AccessTokenClaims{
		Scope:    claims.Scope.String(),
		Username: claims.Username,
		Role:     claims.Role,
		Name:     claims.Name,
		UserID:   claims.UserID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        claims.TokenID,
			Issuer:    h.issuer,
			Subject:   claims.Subject,
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			NotBefore: jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.Expiration),
		},
	}
	if claims.Audience != "" {
		body.Audience = jwt.ClaimStrings{claims.Audience}
	}

	key := h.keys.SigningKey()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, body)
	token.Header["kid"] = key.ID

	signed, err := token.SignedString(key.Private)
	if err != nil {
		h.log.Error(ctx, "Failed to sign JWT", err, logger.String("kid", key.ID))
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	h.log.Debug(ctx, "Access token minted",
		logger.String("jti", claims.TokenID),
		logger.String("grant_type", string(req.GrantType)),
		logger.String("kid", key.ID),
		logger.Duration("ttl", ttl),
	)

	return &models.TokenResponse{
		AccessToken: signed,
		TokenType:   TokenTypeBearer,
		ExpiresIn:   int64(ttl / time.Second),
		Scope:       claims.Scope,
		TokenID:     claims.TokenID,
		IssuedAt:    claims.IssuedAt,
		ExpiresAt:   claims.Expiration,
	}, nil
}

// ParseToken verifies signature, issuer and expiry and returns the claims.
func (h *JWTTokenHandler) ParseToken(ctx context.Context, raw string) (*models.TokenClaims, error) {
	var body AccessTokenClaims
	_, err := jwt.ParseWithClaims(raw, &body, func(token *jwt.Token) (interface{}, error) {
		kid, ok := token.Header["kid"].(string)
		if !ok {
			return nil, errors.New("token has no kid header")
		}
		return h.keys.PublicKey(kid)
	},
		jwt.WithValidMethods([]string{SigningAlgorithm}),
		jwt.WithIssuer(h.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(h.now),
	)
	if err != nil {
		msg := "token is malformed or has an invalid signature"
		if errors.Is(err, jwt.ErrTokenExpired) {
			msg = "token has expired"
		}
		return nil, apperrors.ErrInvalidToken(msg).WithCause(err)
	}

	claims := &models.TokenClaims{
		TokenID:  body.ID,
		Subject:  body.Subject,
		Scope:    models.ParseScopes(body.Scope),
		Username: body.Username,
		Role:     body.Role,
		Name:     body.Name,
		UserID:   body.UserID,
	}
	if len(body.Audience) > 0 {
		claims.Audience = body.Audience[0]
	}
	if body.IssuedAt != nil {
		claims.IssuedAt = body.IssuedAt.Time.UTC()
	}
	if body.ExpiresAt != nil {
		claims.Expiration = body.ExpiresAt.Time.UTC()
	}
	return claims, nil
}
