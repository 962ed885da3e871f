package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/turtacn/authz/internal/config"
	apperrors "github.com/turtacn/authz/pkg/errors"
	"github.com/turtacn/authz/pkg/logger"
)

// RateLimitRecorder counts rejected requests.
type RateLimitRecorder interface {
	RecordRateLimitHit(route string)
}

// IPRateLimiter holds one token bucket per client IP. Buckets idle for longer than
// the configured expiry are dropped.
type IPRateLimiter struct {
	limiters *gocache.Cache
	limit    rate.Limit
	burst    int
}

// NewIPRateLimiter creates a limiter allowing cfg.DefaultRPM requests per minute
// per IP with bursts of cfg.BurstSize.
func NewIPRateLimiter(cfg config.RateLimitConfig) *IPRateLimiter {
	expiry := cfg.IdleExpiry
	if expiry <= 0 {
		expiry = 10 * time.Minute
	}
	burst := cfg.BurstSize
	if burst <= 0 {
		burst = 1
	}
	return &IPRateLimiter{
		limiters: gocache.New(expiry, 2*expiry),
		limit:    rate.Limit(float64(cfg.DefaultRPM) / 60),
		burst:    burst,
	}
}

// Allow consumes one token from ip's bucket.
func (l *IPRateLimiter) Allow(ip string) bool {
	return l.limiter(ip).Allow()
}

func (l *IPRateLimiter) limiter(ip string) *rate.Limiter {
	if v, ok := l.limiters.Get(ip); ok {
		lim := v.(*rate.Limiter)
		l.limiters.SetDefault(ip, lim)
		return lim
	}
	lim := rate.NewLimiter(l.limit, l.burst)
	if err := l.limiters.Add(ip, lim, gocache.DefaultExpiration); err != nil {
		// lost the race to another request from the same IP
		if v, ok := l.limiters.Get(ip); ok {
			return v.(*rate.Limiter)
		}
	}
	return lim
}

// RateLimit 按客户端 IP 限流；超出限制时返回 429 及 Retry-After。
func RateLimit(limiter *IPRateLimiter, recorder RateLimitRecorder, log logger.Logger) gin.HandlerFunc {
	retryAfter := "60"
	if limiter.limit > 0 {
		retryAfter = strconv.Itoa(int(time.Duration(float64(time.Second)/float64(limiter.limit)).Seconds()) + 1)
	}
	return func(c *gin.Context) {
		if limiter.Allow(c.ClientIP()) {
			c.Next()
			return
		}
		route := c.FullPath()
		if recorder != nil {
			recorder.RecordRateLimitHit(route)
		}
		log.Warn(c.Request.Context(), "rate limit exceeded",
			logger.String("client_ip", c.ClientIP()), logger.String("route", route))
		c.Header("Retry-After", retryAfter)
		AbortWithError(c, apperrors.ErrRateLimited(), log)
	}
}
