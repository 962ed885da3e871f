package models

import "time"

// OngoingAuthorization backs an issued but not yet redeemed authorization code.
// It is written once, read by the matching token exchange and deleted exactly once.
// OngoingAuthorization 记录已签发但尚未兑换的授权码，只写一次、只删除一次。
type OngoingAuthorization struct {
	// AuthorizationCode is the opaque single-use code.
	// AuthorizationCode 是一次性的不透明授权码。
	AuthorizationCode string `json:"authorization_code"`

	// ClientID is the client the code was issued to.
	// ClientID 是授权码签发给的客户端。
	ClientID string `json:"client_id"`

	// RedirectURI must be repeated verbatim at the token endpoint.
	// RedirectURI 在令牌端点必须原样提交。
	RedirectURI string `json:"redirect_uri"`

	// UserInfo is the snapshot of the consenting user.
	// UserInfo 是授权用户的快照。
	UserInfo UserInfo `json:"user_info"`

	// Scope is the scope negotiated at authorization time.
	// Scope 是授权阶段协商得到的权限范围。
	Scope Scopes `json:"scope"`

	// Expiration is the absolute instant after which the code is unusable.
	// Expiration 是授权码失效的绝对时间。
	Expiration time.Time `json:"expiration"`
}

// IsExpired reports whether now is past the expiration.
func (o *OngoingAuthorization) IsExpired(now time.Time) bool {
	return now.After(o.Expiration)
}
