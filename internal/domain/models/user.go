package models

import (
	"context"
	"time"

	"github.com/turtacn/authz/pkg/constants"
)

// User is a resource owner account.
// User 是资源所有者账户。
type User struct {
	// ID is the stable user identifier, embedded as uid in tokens.
	// ID 是稳定的用户标识符，以 uid 形式写入令牌。
	ID string `json:"id" gorm:"primaryKey;size:64"`

	// Username is the login name, embedded as usr in tokens.
	// Username 是登录名，以 usr 形式写入令牌。
	Username string `json:"username" gorm:"size:128;uniqueIndex;not null"`

	// Email is embedded as name in tokens.
	// Email 以 name 形式写入令牌。
	Email string `json:"email" gorm:"size:255"`

	// PasswordHash is the bcrypt hash of the password.
	// PasswordHash 是密码的 bcrypt 哈希。
	PasswordHash string `json:"-" gorm:"size:128"`

	// Role is embedded as rol in tokens.
	// Role 以 rol 形式写入令牌。
	Role string `json:"role" gorm:"size:64"`

	// Authorities is the set of scopes the user is entitled to grant.
	// Authorities 是用户有权授予的权限范围集合。
	Authorities Scopes `json:"authorities" gorm:"serializer:json"`

	Enabled   bool      `json:"enabled" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName pins the table name for GORM
func (User) TableName() string {
	return "users"
}

// Info returns the snapshot stored alongside an ongoing authorization.
func (u *User) Info() UserInfo {
	return UserInfo{ID: u.ID, Email: u.Email, Username: u.Username, Role: u.Role}
}

// UserInfo is the user snapshot carried by an ongoing authorization.
type UserInfo struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Principal is the outcome of an authentication attempt.
type Principal interface {
	Name() string
	IsAuthenticated() bool
}

// UserPrincipal is an authenticated resource owner with its authority set.
type UserPrincipal struct {
	User          UserInfo
	Authorities   Scopes
	Authenticated bool
}

// Name returns the username
func (p *UserPrincipal) Name() string { return p.User.Username }

// IsAuthenticated reports whether credentials were verified
func (p *UserPrincipal) IsAuthenticated() bool { return p != nil && p.Authenticated }

// NewUserPrincipal builds an authenticated principal from a stored user.
func NewUserPrincipal(u *User) *UserPrincipal {
	return &UserPrincipal{User: u.Info(), Authorities: NewScopes(u.Authorities...), Authenticated: true}
}

// ContextWithPrincipal attaches the authenticated resource owner to ctx.
func ContextWithPrincipal(ctx context.Context, p *UserPrincipal) context.Context {
	return context.WithValue(ctx, constants.ContextKeyPrincipal, p)
}

// PrincipalFromContext returns the authenticated resource owner, or nil.
func PrincipalFromContext(ctx context.Context) *UserPrincipal {
	p, _ := ctx.Value(constants.ContextKeyPrincipal).(*UserPrincipal)
	if !p.IsAuthenticated() {
		return nil
	}
	return p
}
