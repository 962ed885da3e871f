// Package router assembles the gin engine of the authz HTTP surface.
package router

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/turtacn/authz/internal/config"
	"github.com/turtacn/authz/internal/domain/service"
	"github.com/turtacn/authz/internal/infrastructure/monitoring"
	"github.com/turtacn/authz/internal/interfaces/http/handlers"
	"github.com/turtacn/authz/internal/interfaces/http/middleware"
	"github.com/turtacn/authz/pkg/logger"
)

const jwksMaxAge = 5 * time.Minute

// Dependencies 路由器依赖
type Dependencies struct {
	OAuth       *handlers.OAuthHandler
	JWKS        *handlers.JWKSHandler
	Health      *handlers.HealthHandler
	Clients     middleware.ClientAuthenticator
	Users       service.UserAuthenticator
	RateLimiter *middleware.IPRateLimiter
	Metrics     *monitoring.Metrics
	Gatherer    prometheus.Gatherer
	Tracing     *monitoring.TracingManager
}

// Router HTTP 路由器
type Router struct {
	engine *gin.Engine
	config *config.Config
	deps   Dependencies
	logger logger.Logger
	server *http.Server
}

// NewRouter 创建路由器并注册全部路由
func NewRouter(cfg *config.Config, deps Dependencies, log logger.Logger) *Router {
	gin.SetMode(gin.ReleaseMode)
	r := &Router{
		engine: gin.New(),
		config: cfg,
		deps:   deps,
		logger: log.WithComponent("Router"),
	}
	r.setupRoutes()
	r.server = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           r.engine,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		MaxHeaderBytes:    1 << 20, // 1MB
	}
	return r
}

func (r *Router) setupRoutes() {
	// 全局中间件
	r.engine.Use(
		middleware.RequestID(),
		middleware.Observability(r.deps.Tracing, r.deps.Metrics, r.logger),
		middleware.Recovery(r.logger),
	)

	origins := r.config.Server.AllowedOrigins
	if len(origins) > 0 {
		r.engine.Use(cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
			ExposeHeaders:    []string{middleware.RequestIDHeader, "Retry-After"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	// 健康检查路由（不需要认证）
	r.engine.GET("/health/live", r.deps.Health.Live)
	r.engine.GET("/health/ready", r.deps.Health.Ready)

	if r.config.Monitoring.MetricsEnabled {
		gatherer := r.deps.Gatherer
		if gatherer == nil {
			gatherer = prometheus.DefaultGatherer
		}
		r.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	// Pprof 性能分析（仅在非生产环境）
	if r.config.Monitoring.PprofEnabled {
		pprof.Register(r.engine)
	}

	r.engine.GET("/.well-known/jwks", middleware.ETagCache(jwksMaxAge), r.deps.JWKS.GetJWKS)

	clientAuth := middleware.ClientAuth(r.deps.Clients, r.logger)
	oauth := r.engine.Group("/oauth")
	{
		oauth.POST("/authorize", middleware.ResourceOwnerAuth(r.deps.Users, r.logger), r.deps.OAuth.Authorize)

		token := []gin.HandlerFunc{}
		if r.config.RateLimit.Enabled && r.deps.RateLimiter != nil {
			token = append(token, middleware.RateLimit(r.deps.RateLimiter, r.deps.Metrics, r.logger))
		}
		token = append(token, clientAuth, r.deps.OAuth.Token)
		oauth.POST("/token", token...)

		oauth.POST("/introspect", clientAuth, r.deps.OAuth.Introspect)
		oauth.POST("/revoke", clientAuth, r.deps.OAuth.Revoke)
		oauth.GET("/userinfo", middleware.RequireBearer(r.logger), r.deps.OAuth.UserInfo)
	}

	// 404 处理
	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":             "not_found",
			"error_description": "The requested resource was not found",
		})
	})
}

// Start 启动 HTTP 服务器，阻塞直到 Stop 被调用。
// Stop 先于 Start 调用时 Start 立即返回 nil。
func (r *Router) Start() error {
	r.logger.Info(context.Background(), "Starting HTTP server", logger.String("address", r.server.Addr))
	if err := r.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop 停止 HTTP 服务器
func (r *Router) Stop(ctx context.Context) error {
	r.logger.Info(ctx, "Stopping HTTP server...")
	return r.server.Shutdown(ctx)
}

// Engine exposes the handler for tests and embedding.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}
