package audit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// SignatureHeader carries the HMAC of the message value.
const SignatureHeader = "x-authz-signature"

// Sign returns base64(HMAC-SHA256(key, payload)).
func Sign(payload []byte, key string) string {
	h := hmac.New(sha256.New, []byte(key))
	h.Write(payload)
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// VerifySignature reports whether signature matches payload under key.
func VerifySignature(payload []byte, signature, key string) bool {
	want, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	h := hmac.New(sha256.New, []byte(key))
	h.Write(payload)
	return hmac.Equal(h.Sum(nil), want)
}
