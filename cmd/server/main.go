package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"thirdwatch.dev/watch/common/id"
	"thirdwatch.dev/watch/common/logger"
	"thirdwatch.dev/watch/common/metrics"
	"thirdwatch.dev/watch/common/otel"
	"thirdwatch.dev/watch/core/config"
	"thirdwatch.dev/watch/core/db"
	"thirdwatch.dev/watch/internal/checker"
	"thirdwatch.dev/watch/internal/http/middleware"
	httprouter "thirdwatch.dev/watch/internal/http/router"
	"thirdwatch.dev/watch/internal/model"
	"thirdwatch.dev/watch/internal/notify"
	"thirdwatch.dev/watch/internal/registry"
	"thirdwatch.dev/watch/internal/store"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeServer)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		// Can't use slog yet — OTel failed before logger setup
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "thirdwatch api starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)
	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	m := metrics.Init()

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	redisOpts, err := redis.ParseURL(cfg.Pipeline.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.InfoContext(ctx, "redis connected")

	stores := store.NewPostgres(database)

	var channels []model.ChannelConfig
	if cfg.Rules.ChannelsPath != "" {
		channels, err = notify.LoadChannels(cfg.Rules.ChannelsPath)
		if err != nil {
			slog.ErrorContext(ctx, "failed to load channel config", "error", err)
			os.Exit(1)
		}
		slog.InfoContext(ctx, "channels loaded", "count", len(channels))
	}

	// The on-demand check endpoint shares the worker's validator cache, so
	// a manual check keeps conditional-request state warm, not duplicated.
	runner, err := checker.BuildRunner(cfg, stores, registry.NewRedisValidatorCache(redisClient), channels, m)
	if err != nil {
		slog.ErrorContext(ctx, "failed to build check pipeline", "error", err)
		os.Exit(1)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, stores, runner)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func setupRouter(cfg config.Config, stores store.Stores, runner *checker.Runner) *gin.Engine {
	router := gin.New()

	// Dependency keys carry %2F-encoded identifiers (npm scoped packages);
	// raw-path matching keeps them a single path segment.
	router.UseRawPath = true

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, stores, runner, httprouter.RouterConfig{
		AdminAPIKey: cfg.AdminAPIKey,
	})

	return router
}

const banner = `
██╗    ██╗ █████╗ ████████╗ ██████╗██╗  ██╗     █████╗ ██████╗ ██╗
██║    ██║██╔══██╗╚══██╔══╝██╔════╝██║  ██║    ██╔══██╗██╔══██╗██║
██║ █╗ ██║███████║   ██║   ██║     ███████║    ███████║██████╔╝██║
██║███╗██║██╔══██║   ██║   ██║     ██╔══██║    ██╔══██║██╔═══╝ ██║
╚███╔███╔╝██║  ██║   ██║   ╚██████╗██║  ██║    ██║  ██║██║     ██║
 ╚══╝╚══╝ ╚═╝  ╚═╝   ╚═╝    ╚═════╝╚═╝  ╚═╝    ╚═╝  ╚═╝╚═╝     ╚═╝
`
