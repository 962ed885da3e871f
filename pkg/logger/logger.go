// Package logger provides the structured logging contract of the authz service.
// Implementations receive the request context so they can attach trace and request identifiers.
package logger

import (
	"context"
	"strings"
	"time"

	"github.com/turtacn/authz/pkg/constants"
)

// Logger 是上下文感知的结构化日志接口。
// Error 与 Fatal 单独接收 err，使错误始终以 "error" 字段输出。
type Logger interface {
	Debug(ctx context.Context, message string, fields ...Field)
	Info(ctx context.Context, message string, fields ...Field)
	Warn(ctx context.Context, message string, fields ...Field)
	Error(ctx context.Context, message string, err error, fields ...Field)
	// Fatal logs and exits the process.
	Fatal(ctx context.Context, message string, err error, fields ...Field)

	// WithFields returns a child logger that adds fields to every entry.
	WithFields(fields ...Field) Logger
	// WithComponent tags entries with component, e.g. "TokenTracker".
	WithComponent(component string) Logger

	SetLevel(level constants.LogLevel)
	GetLevel() constants.LogLevel
}

// Field is one key/value pair of a log entry. Values under credential-like keys
// are masked by Sanitize before they reach the sink.
type Field struct {
	Key   string
	Value interface{}
}

func String(key, value string) Field           { return Field{Key: key, Value: value} }
func Strings(key string, value []string) Field { return Field{Key: key, Value: value} }
func Int(key string, value int) Field          { return Field{Key: key, Value: value} }
func Int64(key string, value int64) Field      { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field        { return Field{Key: key, Value: value} }
func Any(key string, value interface{}) Field  { return Field{Key: key, Value: value} }

// Duration renders value as a Go duration string ("1m30s").
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

// Time renders value as RFC 3339 in UTC.
func Time(key string, value time.Time) Field {
	return Field{Key: key, Value: value.UTC().Format(time.RFC3339)}
}

// Err records err.Error() under "error"; a nil err records null.
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// credentialKeys name values that must never be logged in clear: client secrets,
// passwords, bearer tokens and authorization codes.
var credentialKeys = []string{"password", "secret", "token", "authorization", "code"}

// Sanitize masks the value of fields whose key names a credential.
// Identifiers such as "jti" or "client_id" pass through unchanged.
func Sanitize(key string, value interface{}) interface{} {
	lower := strings.ToLower(key)
	for _, k := range credentialKeys {
		if lower != k && !strings.HasSuffix(lower, "_"+k) {
			continue
		}
		if s, ok := value.(string); ok {
			return maskString(s)
		}
		return "***"
	}
	return value
}

// maskString keeps a short prefix and suffix of long values so operators can
// correlate entries without recovering the credential.
func maskString(s string) string {
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "***" + s[len(s)-2:]
}

// RequestIDFromContext returns the request ID set by the HTTP layer, if any.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(constants.ContextKeyRequestID).(string)
	return id
}

// ContextWithRequestID stores a request ID for downstream log entries.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, constants.ContextKeyRequestID, requestID)
}
