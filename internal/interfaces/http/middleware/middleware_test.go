package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/turtacn/authz/internal/config"
	"github.com/turtacn/authz/internal/domain/models"
	"github.com/turtacn/authz/internal/infrastructure/auth"
	"github.com/turtacn/authz/internal/infrastructure/memory"
	"github.com/turtacn/authz/internal/infrastructure/monitoring"
	"github.com/turtacn/authz/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func hashed(t *testing.T, secret string) string {
	t.Helper()
	h, err := auth.HashSecret(secret)
	require.NoError(t, err)
	return h
}

func clientAuthRouter(t *testing.T) *gin.Engine {
	t.Helper()
	log := logger.NewNoopLogger()
	registry := memory.NewClientRegistry(&models.OAuthClient{ClientID: "svc-1", Name: "svc", ClientSecretHash: hashed(t, "s3cret")})
	r := gin.New()
	r.POST("/token", ClientAuth(auth.NewClientAuthenticator(registry, log), log), func(c *gin.Context) {
		c.String(http.StatusOK, AuthenticatedClient(c).ClientID)
	})
	return r
}

func postForm(r http.Handler, path string, form url.Values, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestClientAuth(t *testing.T) {
	r := clientAuthRouter(t)

	w := postForm(r, "/token", url.Values{}, func(req *http.Request) { req.SetBasicAuth("svc-1", "s3cret") })
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "svc-1", w.Body.String())

	w = postForm(r, "/token", url.Values{"client_id": {"svc-1"}, "client_secret": {"s3cret"}}, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = postForm(r, "/token", url.Values{"client_id": {"svc-1"}, "client_secret": {"wrong"}}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid_client", gjson.Get(w.Body.String(), "error").String())
	assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Basic")

	w = postForm(r, "/token", url.Values{"client_id": {"other"}}, func(req *http.Request) { req.SetBasicAuth("svc-1", "s3cret") })
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid_client", gjson.Get(w.Body.String(), "error").String())

	w = postForm(r, "/token", url.Values{}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestResourceOwnerAuth(t *testing.T) {
	log := logger.NewNoopLogger()
	users := memory.NewUserRepository(&models.User{
		ID: "u-42", Username: "alice", PasswordHash: hashed(t, "pw"), Enabled: true,
		Authorities: models.NewScopes("read:x"),
	})
	r := gin.New()
	r.POST("/authorize", ResourceOwnerAuth(auth.NewPasswordAuthenticator(users, log), log), func(c *gin.Context) {
		p := models.PrincipalFromContext(c.Request.Context())
		if p == nil {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.String(http.StatusOK, p.User.ID)
	})

	w := postForm(r, "/authorize", url.Values{}, func(req *http.Request) { req.SetBasicAuth("alice", "pw") })
	assert.Equal(t, "u-42", w.Body.String())

	w = postForm(r, "/authorize", url.Values{}, nil)
	assert.Equal(t, "anonymous", w.Body.String())

	w = postForm(r, "/authorize", url.Values{}, func(req *http.Request) { req.SetBasicAuth("alice", "nope") })
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_grant", gjson.Get(w.Body.String(), "error").String())
	assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Basic")
}

// servicePrincipal is authenticated but carries no user details.
type servicePrincipal struct{}

func (servicePrincipal) Name() string          { return "svc" }
func (servicePrincipal) IsAuthenticated() bool { return true }

type principalAuthenticator struct{ principal models.Principal }

func (a principalAuthenticator) Authenticate(context.Context, string, string) (models.Principal, error) {
	return a.principal, nil
}

func TestResourceOwnerAuth_PrincipalWithoutUserDetails(t *testing.T) {
	log := logger.NewNoopLogger()
	r := gin.New()
	r.POST("/authorize", ResourceOwnerAuth(principalAuthenticator{principal: servicePrincipal{}}, log), func(c *gin.Context) {
		c.String(http.StatusOK, "reached")
	})

	w := postForm(r, "/authorize", url.Values{}, func(req *http.Request) { req.SetBasicAuth("svc", "pw") })
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_grant", gjson.Get(w.Body.String(), "error").String())
	assert.Equal(t, "authenticated principal carries no user details", gjson.Get(w.Body.String(), "error_description").String())

	r = gin.New()
	r.POST("/authorize", ResourceOwnerAuth(principalAuthenticator{}, log), func(c *gin.Context) {
		c.String(http.StatusOK, "reached")
	})
	w = postForm(r, "/authorize", url.Values{}, func(req *http.Request) { req.SetBasicAuth("svc", "pw") })
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Basic")
}

func TestRequireBearer(t *testing.T) {
	r := gin.New()
	r.GET("/userinfo", RequireBearer(logger.NewNoopLogger()), func(c *gin.Context) {
		c.String(http.StatusOK, BearerToken(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/userinfo", nil)
	req.Header.Set("Authorization", "Bearer abc.def")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc.def", w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/userinfo", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Bearer")
}

type hitCounter struct{ routes []string }

func (h *hitCounter) RecordRateLimitHit(route string) { h.routes = append(h.routes, route) }

func TestRateLimit(t *testing.T) {
	hits := &hitCounter{}
	limiter := NewIPRateLimiter(config.RateLimitConfig{DefaultRPM: 60, BurstSize: 2})
	r := gin.New()
	r.POST("/oauth/token", RateLimit(limiter, hits, logger.NewNoopLogger()), func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, postForm(r, "/oauth/token", url.Values{}, nil).Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
	assert.Equal(t, []string{"/oauth/token"}, hits.routes)

	other := postForm(r, "/oauth/token", url.Values{}, func(req *http.Request) { req.RemoteAddr = "10.0.0.9:1234" })
	assert.Equal(t, http.StatusOK, other.Code)
}

func TestETagCache(t *testing.T) {
	r := gin.New()
	r.GET("/jwks", ETagCache(0), func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"keys": []string{}}) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/jwks", nil))
	require.Equal(t, http.StatusOK, w.Code)
	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)
	assert.JSONEq(t, `{"keys":[]}`, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/jwks", nil)
	req.Header.Set("If-None-Match", etag)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Zero(t, w.Body.Len())
}

func TestObservabilityAndRequestID(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)
	r := gin.New()
	r.Use(RequestID(), Observability(nil, metrics, logger.NewNoopLogger()), Recovery(logger.NewNoopLogger()))
	r.GET("/ok", func(c *gin.Context) {
		c.String(http.StatusOK, logger.RequestIDFromContext(c.Request.Context()))
	})
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-1", w.Body.String())
	assert.Equal(t, "req-1", w.Header().Get(RequestIDHeader))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "server_error", gjson.Get(w.Body.String(), "error").String())
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("GET", "/ok", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("GET", "/panic", "500")))
}
