// Command gateway starts the fabric's API gateway together with the
// schedule coordinator.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fairyhunter13/stock-signal-fabric/internal/adapter/cache"
	"github.com/fairyhunter13/stock-signal-fabric/internal/adapter/observability"
	"github.com/fairyhunter13/stock-signal-fabric/internal/config"
	"github.com/fairyhunter13/stock-signal-fabric/internal/coordinator"
	"github.com/fairyhunter13/stock-signal-fabric/internal/domain"
	"github.com/fairyhunter13/stock-signal-fabric/internal/gateway"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	declared, err := config.LoadServices(cfg.ServicesConfigPath)
	if err != nil {
		slog.Error("services registry load failed", slog.Any("error", err))
		os.Exit(1)
	}

	// Response cache: redis when configured, bounded local map otherwise.
	var kv domain.KVCache
	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedis(cfg.RedisURL)
		if err != nil {
			slog.Error("redis connect failed, falling back to local cache", slog.Any("error", err))
			kv = cache.NewLocal(cfg.LocalCacheMaxSize)
		} else {
			defer func() { _ = redisCache.Close() }()
			kv = redisCache
		}
	} else {
		kv = cache.NewLocal(cfg.LocalCacheMaxSize)
	}

	registry := gateway.NewRegistry(cfg, declared)
	forwarder := gateway.NewForwarder(registry, gateway.NewBalancer(), kv)
	srv := gateway.NewServer(registry, forwarder, kv)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	monitor := gateway.NewMonitor(registry, cfg.HealthInterval, cfg.HealthProbeTimeout)
	monitor.Start(ctx)

	coord := coordinator.New(registry, cfg.CoordinatorInterval, cfg.CoordinatorTimeout)
	coord.Start(ctx)

	handler := gateway.BuildRouter(cfg, srv)
	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("gateway starting", slog.Int("port", cfg.Port), slog.Int("services", len(declared)))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}
