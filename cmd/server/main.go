// Command authz runs the authorization server: the OAuth HTTP endpoints, the gRPC
// health service and the background workers.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/turtacn/authz/internal/application"
	appservice "github.com/turtacn/authz/internal/application/service"
	"github.com/turtacn/authz/internal/bootstrap"
	"github.com/turtacn/authz/internal/config"
	"github.com/turtacn/authz/internal/infrastructure/monitoring"
	grpcserver "github.com/turtacn/authz/internal/interfaces/grpc"
	"github.com/turtacn/authz/internal/interfaces/http/handlers"
	"github.com/turtacn/authz/internal/interfaces/http/middleware"
	"github.com/turtacn/authz/internal/interfaces/http/router"
	"github.com/turtacn/authz/pkg/logger"
)

func main() {
	var configPath string
	cmd := &cobra.Command{
		Use:           "authz",
		Short:         "OAuth2 authorization server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config.yaml")

	if err := cmd.Execute(); err != nil {
		log.Fatalf("authz: %v", err)
	}
}

func run(parent context.Context, configPath string) error {
	// .env is optional
	_ = godotenv.Load()

	loader := config.NewLoader(configPath)
	cfg, err := loader.Load()
	if err != nil {
		return err
	}

	appLogger, err := monitoring.NewZapLogger(&cfg.Log)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader.Watch(ctx, appLogger)
	appLogger.Info(ctx, "Configuration loaded", logger.String("file", loader.ConfigFileUsed()))

	c, err := bootstrap.New(ctx, cfg, appLogger)
	if err != nil {
		return err
	}

	httpServer := router.NewRouter(cfg, router.Dependencies{
		OAuth:       handlers.NewOAuthHandler(c.Service, appLogger),
		JWKS:        handlers.NewJWKSHandler(c.Keys),
		Health:      handlers.NewHealthHandler(c.Health),
		Clients:     c.ClientAuth,
		Users:       c.Passwords,
		RateLimiter: middleware.NewIPRateLimiter(cfg.RateLimit),
		Metrics:     c.Metrics,
		Gatherer:    c.Registry,
		Tracing:     c.Tracing,
	}, appLogger)

	health := grpcserver.NewHealthServer(c.Health, 0, appLogger)
	grpcServer := grpcserver.NewServer(health, c.Tracing, appLogger)
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr())
	if err != nil {
		_ = c.Close(context.Background())
		return fmt.Errorf("listen for gRPC: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(httpServer.Start)
	g.Go(func() error {
		appLogger.Info(gctx, "gRPC server listening", logger.String("address", lis.Addr().String()))
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		health.Run(gctx)
		return nil
	})

	if cfg.Tracker.CleanupEnabled {
		job := appservice.NewTokenCleanupJob(c.Service, cfg.Tracker.CleanupInterval, appLogger)
		g.Go(func() error {
			job.Run(gctx)
			return nil
		})
	}

	if consumer := c.RevocationConsumer(); consumer != nil {
		g.Go(func() error { return consumer.Run(gctx) })
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	rotation := application.NewKeyRotationService(c.Keys, c.Audit, appLogger)
	g.Go(func() error {
		rotation.RotateOnSignal(gctx, hup)
		return nil
	})

	// 优雅关闭
	g.Go(func() error {
		<-gctx.Done()
		appLogger.Info(context.Background(), "Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		err := httpServer.Stop(shutdownCtx)
		stopGRPC(shutdownCtx, grpcServer.GracefulStop, grpcServer.Stop)
		return err
	})

	runErr := g.Wait()

	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.Close(closeCtx); err != nil {
		appLogger.Error(closeCtx, "Failed to release resources", err)
	}
	if syncer, ok := appLogger.(interface{ Sync() error }); ok {
		_ = syncer.Sync()
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

// stopGRPC drains in-flight RPCs and forces the stop once ctx expires.
func stopGRPC(ctx context.Context, graceful, force func()) {
	done := make(chan struct{})
	go func() {
		graceful()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		force()
	}
}
