// Command worker starts one fabric service selected by -service: an
// analysis worker (news, disclosure, chart, flow, report) or the user
// configuration service.
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

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fairyhunter13/stock-signal-fabric/internal/adapter/analysis"
	"github.com/fairyhunter13/stock-signal-fabric/internal/adapter/bus/redpanda"
	"github.com/fairyhunter13/stock-signal-fabric/internal/adapter/datasource"
	"github.com/fairyhunter13/stock-signal-fabric/internal/adapter/httpserver"
	"github.com/fairyhunter13/stock-signal-fabric/internal/adapter/llm"
	"github.com/fairyhunter13/stock-signal-fabric/internal/adapter/llm/stub"
	"github.com/fairyhunter13/stock-signal-fabric/internal/adapter/notify"
	"github.com/fairyhunter13/stock-signal-fabric/internal/adapter/observability"
	"github.com/fairyhunter13/stock-signal-fabric/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/stock-signal-fabric/internal/config"
	"github.com/fairyhunter13/stock-signal-fabric/internal/domain"
	"github.com/fairyhunter13/stock-signal-fabric/internal/marketclock"
	"github.com/fairyhunter13/stock-signal-fabric/internal/schedule"
	"github.com/fairyhunter13/stock-signal-fabric/internal/userconfig"
	"github.com/fairyhunter13/stock-signal-fabric/internal/worker"
)

// streamTickInterval drives the flow worker's subscription state machine.
const streamTickInterval = 30 * time.Second

func main() {
	serviceName := flag.String("service", "", "service to run: news|disclosure|chart|flow|report|user")
	flag.Parse()

	kind, err := domain.ParseServiceKind(*serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unknown -service %q\n", *serviceName)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger.With(slog.String("service", string(kind))))
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

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	users := userconfig.NewService(postgres.NewUserRepo(pool), userconfig.NewCache(cfg.UserCacheTTL))

	var handler http.Handler
	if kind == domain.ServiceUser {
		handler = buildUserRouter(users)
	} else {
		handler = buildAnalysisWorker(ctx, cfg, kind, users)
	}

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
		slog.Info("worker starting", slog.Int("port", cfg.Port))
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

// buildUserRouter serves the user-configuration surface directly; it has no
// analysis pipeline.
func buildUserRouter(users *userconfig.Service) http.Handler {
	r := chi.NewRouter()
	r.Use(httpserver.Recoverer())
	r.Use(httpserver.RequestID())
	r.Use(httpserver.AccessLog())
	r.Use(observability.HTTPMetricsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httpserver.WriteJSON(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"service":   string(domain.ServiceUser),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) { promhttp.Handler().ServeHTTP(w, r) })
	userconfig.NewAPI(users).Mount(r)

	return httpserver.SecurityHeaders(r)
}

// buildAnalysisWorker assembles the pipeline runtime for one analysis kind.
func buildAnalysisWorker(ctx context.Context, cfg config.Config, kind domain.ServiceKind, users *userconfig.Service) http.Handler {
	mgr := llm.NewManager(stub.All(), cfg.LLMPromptTokenBudget)
	source := datasource.NewFake()

	var notifier domain.NotificationAdapter
	if cfg.TelegramBotToken != "" {
		notifier = notify.NewTelegram(cfg.TelegramBotToken, "")
	} else {
		slog.Warn("no telegram token configured, notifications are recorded in memory")
		notifier = notify.NewRecorder()
	}

	var bus domain.SignalBus = redpanda.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := redpanda.NewProducer(ctx, cfg.KafkaBrokers)
		if err != nil {
			slog.Error("signal bus connect failed, publishing disabled", slog.Any("error", err))
		} else {
			bus = producer
			go func() {
				<-ctx.Done()
				_ = producer.Close()
			}()
		}
	}

	var ticks analysis.TickReader
	if kind == domain.ServiceFlow {
		lifecycle := worker.NewStreamLifecycle(source, datasource.NewStaticToken(time.Hour), marketclock.RealClock{}, time.Second)
		ticks = lifecycle
		go driveStream(ctx, cfg, lifecycle, users)
	}

	analyzer := analysis.ForKind(kind, mgr, source, ticks)
	w := worker.New(kind, schedule.PolicyFor(kind, cfg.PeakWindows()), users, analyzer, worker.Options{
		Notifier:      notifier,
		Bus:           bus,
		DefaultUserID: cfg.DefaultUserID,
		DefaultChatID: cfg.TelegramDefaultChatID,
	})
	return w.Routes()
}

// driveStream steps the flow subscription lifecycle on a fixed cadence,
// following the default user's watched tickers.
func driveStream(ctx context.Context, cfg config.Config, lifecycle *worker.StreamLifecycle, users *userconfig.Service) {
	ticker := time.NewTicker(streamTickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snapshot, err := users.GetConfig(ctx, cfg.DefaultUserID)
			if err != nil {
				slog.Warn("stream tick skipped, user config unavailable", slog.Any("error", err))
				continue
			}
			lifecycle.Tick(ctx, snapshot.WatchedTickers)
		}
	}
}
