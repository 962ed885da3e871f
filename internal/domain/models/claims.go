package models

import (
	"strings"
	"time"
)

// SubjectUserSeparator joins the client ID and user ID in user-bound subjects.
const SubjectUserSeparator = "|uid="

// TokenClaims is the claim set of one issued token. Processors fill the identity and
// scope fields; the TokenHandler assigns TokenID, IssuedAt and Expiration when minting.
// TokenClaims 是一次签发令牌的声明集合。
type TokenClaims struct {
	TokenID    string
	Subject    string
	Scope      Scopes
	Audience   string
	Username   string
	Role       string
	Name       string
	UserID     string
	IssuedAt   time.Time
	Expiration time.Time
}

// ClientSubject returns the subject of a client-bound token.
func ClientSubject(clientID string) string {
	return clientID
}

// UserSubject returns the subject of a user-bound token: clientID|uid=<userID>.
func UserSubject(clientID, userID string) string {
	return clientID + SubjectUserSeparator + userID
}

// NewUserClaims assembles the claims of a user-bound token.
func NewUserClaims(clientID string, user UserInfo, scope Scopes, audience string) *TokenClaims {
	return &TokenClaims{
		Subject:  UserSubject(clientID, user.ID),
		Scope:    NewScopes(scope...),
		Audience: audience,
		Username: user.Username,
		Role:     user.Role,
		Name:     user.Email,
		UserID:   user.ID,
	}
}

// ClientID recovers the issuing client from the subject.
func (c *TokenClaims) ClientID() string {
	if i := strings.Index(c.Subject, SubjectUserSeparator); i >= 0 {
		return c.Subject[:i]
	}
	return c.Subject
}

// IsUserBound reports whether the token acts on behalf of a user.
func (c *TokenClaims) IsUserBound() bool {
	return strings.Contains(c.Subject, SubjectUserSeparator)
}
