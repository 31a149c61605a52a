package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	connectapi "go.flowdeck.io/connect/api/echo"
	"go.flowdeck.io/connect/cache"
	redisstore "go.flowdeck.io/connect/cache/redis"
	"go.flowdeck.io/connect/config"
	"go.flowdeck.io/connect/internal/metrics"
	"go.flowdeck.io/connect/internal/provider"
	"go.flowdeck.io/connect/internal/server"
	"go.flowdeck.io/connect/log"
	"go.flowdeck.io/connect/services"
	"go.flowdeck.io/connect/tracing"
)

var (
	appLogger      log.Logger
	httpServer     *http.Server
	tracerProvider *sdktrace.TracerProvider
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		stdLog := zerolog.New(os.Stdout).With().Timestamp().Logger()
		stdLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logLevel, parseErr := zerolog.ParseLevel(cfg.LogLevel)
	if parseErr != nil {
		logLevel = zerolog.InfoLevel
	}
	appLogger = log.NewZerologAdapter(logLevel, cfg.LogPretty)
	ctx := context.Background()
	appLogger.Info(ctx, "Starting flowdeck-connect server...", map[string]interface{}{
		"http_port":    cfg.HTTPPort,
		"app_base_url": cfg.AppBaseURL,
		"redis":        cfg.RedisAddr != "",
		"log_level":    logLevel.String(),
	})

	tp, err := tracing.InitTracerProvider(cfg.OtelServiceName)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize TracerProvider", err, nil)
	}
	tracerProvider = tp

	metrics.InitCustomMetrics(prometheus.DefaultRegisterer)

	// Secure store: Redis when configured, process-local memory otherwise.
	var store cache.Store
	var memStore *cache.MemoryStore
	if cfg.RedisAddr != "" {
		rc := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := rc.Ping(ctx).Err(); err != nil {
			appLogger.Fatal(ctx, "Failed to connect to Redis", err, nil)
		}
		store = redisstore.NewStore(rc, "connect")
	} else {
		appLogger.Warn(ctx, "Using in-memory secure store; pending flows will not survive restarts or scale horizontally", nil)
		memStore = cache.NewMemoryStore()
		store = memStore
	}

	registry := buildRegistry(cfg)
	appLogger.Info(ctx, "Provider registry built", map[string]interface{}{
		"providers": registry.Names(),
	})

	registrar := services.NewRegistrationService(store, time.Duration(cfg.ClientCredsTTLHour)*time.Hour)
	flow := services.NewFlowService(
		registry,
		store,
		registrar,
		cfg.AppBaseURL,
		cfg.DefaultReturnPath,
		time.Duration(cfg.FlowContextTTLMin)*time.Minute,
	)

	api := connectapi.NewConnectAPI(flow, registry)
	httpServer = server.NewHTTPServer(cfg, appLogger, api)

	go func() {
		appLogger.Info(ctx, "HTTP server listening", map[string]interface{}{"addr": httpServer.Addr})
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal(ctx, "HTTP server failed", err, nil)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info(ctx, "Shutting down...", nil)

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "HTTP server shutdown failed", err, nil)
	}
	if memStore != nil {
		_ = memStore.Close()
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "TracerProvider shutdown failed", err, nil)
	}
	appLogger.Info(ctx, "Shutdown complete.", nil)
}

// buildRegistry registers every provider whose OAuth client is configured.
// The MCP provider needs no static client; it registers its own.
func buildRegistry(cfg *config.ServerConfig) *provider.Registry {
	registry := provider.NewRegistry()

	if cfg.Notion.ClientID != "" {
		registry.Register(provider.NewNotionProvider(cfg.Notion.ClientID, cfg.Notion.ClientSecret))
	}
	if cfg.Atlassian.ClientID != "" {
		registry.Register(provider.NewAtlassianProvider(cfg.Atlassian.ClientID, cfg.Atlassian.ClientSecret, cfg.Atlassian.Scopes))
	}
	if cfg.GitHub.ClientID != "" {
		registry.Register(provider.NewGitHubProvider(cfg.GitHub.ClientID, cfg.GitHub.ClientSecret, cfg.GitHub.Scopes))
	}
	if cfg.Figma.ClientID != "" {
		registry.Register(provider.NewFigmaProvider(cfg.Figma.ClientID, cfg.Figma.ClientSecret, cfg.Figma.Scopes))
	}
	if cfg.Slack.ClientID != "" {
		registry.Register(provider.NewSlackProvider(cfg.Slack.ClientID, cfg.Slack.ClientSecret, cfg.Slack.Scopes))
	}
	if cfg.Sentry.ClientID != "" {
		registry.Register(provider.NewSentryProvider(cfg.Sentry.ClientID, cfg.Sentry.ClientSecret, cfg.Sentry.Scopes))
	}
	registry.Register(provider.NewAtlassianMCPProvider(cfg.MCPClientName, cfg.Atlassian.Scopes))

	return registry
}
