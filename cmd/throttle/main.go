package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"throttle/internal/api"
	"throttle/internal/config"
	"throttle/internal/item"
	"throttle/internal/logger"
	"throttle/internal/models"
	"throttle/internal/observability"
	"throttle/internal/ratelimit"
	"throttle/internal/ratelimit/stats"
	"throttle/internal/storage"
	"throttle/internal/version"

	"github.com/redis/go-redis/v9"
)

var (
	configFile  = flag.String("config", "", "Path to configuration file")
	writeConfig = flag.String("write-example-config", "", "Write an example configuration file to this path and exit")
	showVersion = flag.Bool("version", false, "Print version information and exit")
)

func main() {
	flag.Parse()

	ver := version.GetInfo()
	if *showVersion {
		fmt.Println(ver.String())
		return
	}

	if *writeConfig != "" {
		if err := config.SaveExample(*writeConfig); err != nil {
			slog.Error("Failed to write example configuration", "error", err)
			os.Exit(1)
		}
		return
	}

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize structured logging
	log, closer, err := logger.Setup(cfg.Logging, ver)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}
	slog.SetDefault(log)

	// Initialize observability (OpenTelemetry)
	otelProvider, err := observability.Setup(cfg.Metrics, cfg.Observability, ver)
	if err != nil {
		slog.Error("Failed to initialize observability", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown observability", "error", err)
		}
	}()

	// Initialize storage
	storageInstance, err := storage.NewFactory().Create(cfg.Storage)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err, "type", cfg.Storage.Type)
		os.Exit(1)
	}
	defer storageInstance.Close()

	// Wrap storage with instrumentation if metrics are enabled
	var activeStorage storage.Storage = storageInstance
	if cfg.Metrics.Enabled || cfg.Observability.Tracing.Enabled {
		instrumented, err := observability.NewInstrumentedStorage(storageInstance)
		if err != nil {
			slog.Error("Failed to create instrumented storage", "error", err)
			os.Exit(1)
		}
		activeStorage = instrumented
	}

	itemService := item.NewService(activeStorage)

	handlerOpts := []api.HandlerOption{api.WithVersion(ver.Version)}
	routeOpts := []api.RouteOption{}
	if cfg.Observability.Tracing.Enabled {
		routeOpts = append(routeOpts, api.WithOTelMiddleware(cfg.Observability.ServiceName))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize rate limiter if enabled
	if cfg.Security.RateLimit.Enabled {
		registry, recorder, cleanup, err := setupRateLimiting(ctx, cfg)
		if err != nil {
			slog.Error("Failed to initialize rate limiting", "error", err)
			os.Exit(1)
		}
		defer cleanup()

		gateOpts := []ratelimit.GateOption{ratelimit.WithLogInterval(cfg.Security.RateLimit.LogInterval)}
		if recorder != nil {
			gateOpts = append(gateOpts, ratelimit.WithRecorder(recorder))
		}
		handlerOpts = append(handlerOpts, api.WithRegistry(registry))
		routeOpts = append(routeOpts, api.WithRateLimiter(registry, gateOpts...))

		slog.Info("Rate limiting enabled",
			"requests_per_window", registry.Capacity(),
			"window", registry.Window(),
			"idle_ttl", cfg.Security.RateLimit.IdleTTL)
	} else {
		slog.Warn("Rate limiting is disabled")
	}

	handlers := api.NewHandlers(itemService, handlerOpts...)
	router := api.SetupRoutes(handlers, cfg, routeOpts...)

	// Start metrics server if enabled
	var metricsServer *observability.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = observability.NewMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path, otelProvider)
		go func() {
			if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "addr", server.Addr, "storage", cfg.Storage.Type, "tls", cfg.Server.TLSEnabled)

		var err error
		if cfg.Server.TLSEnabled {
			err = server.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		slog.Error("Server failed", "error", err)
	}

	slog.Info("Shutting down server")

	// Create a deadline to wait for shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("Metrics server forced to shutdown", "error", err)
		}
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server shutdown complete")
}

// setupRateLimiting builds the limiter registry and the decision recorders.
// The returned cleanup stops the eviction loop and releases Redis.
func setupRateLimiting(ctx context.Context, cfg *models.Config) (*ratelimit.Registry, ratelimit.Recorder, func(), error) {
	rlCfg := cfg.Security.RateLimit

	registry, err := ratelimit.NewRegistry(rlCfg.RequestsPerWindow, ratelimit.DefaultWindow,
		ratelimit.WithIdleTTL(rlCfg.IdleTTL),
		ratelimit.WithCleanupInterval(rlCfg.CleanupInterval),
	)
	if err != nil {
		return nil, nil, nil, err
	}
	registry.Start(ctx)

	closers := []func(){registry.Close}
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var recorders ratelimit.MultiRecorder

	if cfg.Metrics.Enabled {
		metrics, err := observability.NewRateLimitMetrics(registry)
		if err != nil {
			cleanup()
			return nil, nil, nil, fmt.Errorf("rate limit metrics: %w", err)
		}
		closers = append(closers, func() { _ = metrics.Close() })
		recorders = append(recorders, metrics)
	}

	if cfg.Stats.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Stats.Redis.Addr,
			Password: cfg.Stats.Redis.Password,
			DB:       cfg.Stats.Redis.DB,
			PoolSize: cfg.Stats.Redis.PoolSize,
		})
		closers = append(closers, func() { _ = rdb.Close() })

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			// Stats are best effort; admission keeps working without Redis.
			slog.Warn("Redis stats backend unreachable", "addr", cfg.Stats.Redis.Addr, "error", err)
		}
		cancel()

		// Redis writes happen off the request path; the queue is drained
		// before the client is closed.
		async := ratelimit.NewAsyncRecorder(stats.NewRedisRecorder(rdb,
			stats.WithPrefix(cfg.Stats.Prefix),
			stats.WithTTL(cfg.Stats.TTL),
			stats.WithBucket(cfg.Stats.Bucket),
			stats.WithTrackKeys(cfg.Stats.TrackKeys),
		), cfg.Stats.BufferSize)
		closers = append(closers, func() {
			drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := async.Close(drainCtx); err != nil {
				slog.Warn("Rate limit stats not fully flushed", "error", err)
			}
		})
		recorders = append(recorders, async)
		slog.Info("Rate limit stats enabled", "redis", cfg.Stats.Redis.Addr, "prefix", cfg.Stats.Prefix)
	}

	if len(recorders) == 0 {
		return registry, nil, cleanup, nil
	}
	return registry, recorders, cleanup, nil
}
