package models

import (
	"time"

	"github.com/turtacn/authz/pkg/constants"
)

// AccessTokenInfo is the tracking record of an issued access token, keyed by its JTI.
// Revocation is the only mutation and it is irreversible.
// AccessTokenInfo 是已签发访问令牌的跟踪记录，以 JTI 为键；撤销是唯一且不可逆的变更。
type AccessTokenInfo struct {
	// TokenID is the JTI of the signed token.
	// TokenID 是已签名令牌的 JTI。
	TokenID string `json:"token_id" gorm:"primaryKey;size:64"`

	// Status is ACTIVE or REVOKED.
	// Status 为 ACTIVE 或 REVOKED。
	Status constants.TokenStatus `json:"status" gorm:"size:16;not null;index"`

	IssuedAt time.Time `json:"issued_at"`

	// ExpiresAt drives the cleanup sweep.
	// ExpiresAt 决定清理任务何时删除该记录。
	ExpiresAt time.Time `json:"expires_at" gorm:"index"`

	// RevokedAt is set exactly once, on revocation.
	// RevokedAt 仅在撤销时设置一次。
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// TableName pins the table name for GORM
func (AccessTokenInfo) TableName() string {
	return "access_token_infos"
}

// IsActive reports whether the token may still be honoured.
func (a *AccessTokenInfo) IsActive() bool {
	return a != nil && a.Status == constants.TokenStatusActive
}

// IsExpired reports whether the record is past its expiry at now.
func (a *AccessTokenInfo) IsExpired(now time.Time) bool {
	return a.ExpiresAt.Before(now)
}

// StoreTokenInfoRequest carries what the tracker needs to start tracking a token.
type StoreTokenInfoRequest struct {
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
