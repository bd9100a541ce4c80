// Package worker hosts the per-service analysis runtime: schedule gating,
// user rebinding, the pipeline run-slot, the signal store and the HTTP
// surface the gateway fronts.
package worker

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fairyhunter13/stock-signal-fabric/internal/adapter/observability"
	"github.com/fairyhunter13/stock-signal-fabric/internal/domain"
	"github.com/fairyhunter13/stock-signal-fabric/internal/marketclock"
	"github.com/fairyhunter13/stock-signal-fabric/internal/schedule"
	"github.com/fairyhunter13/stock-signal-fabric/internal/signalstore"
	"github.com/fairyhunter13/stock-signal-fabric/internal/userconfig"
)

// RunResult summarizes one pipeline run.
type RunResult struct {
	UserID    string `json:"user_id"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
	Signals   int    `json:"signals"`
	Partial   bool   `json:"partial"`
}

// Worker is one analysis service's runtime. A worker never runs two
// pipelines concurrently; overlapping due ticks serialize on the run slot
// and only one performs the run.
type Worker struct {
	kind     domain.ServiceKind
	policy   schedule.Policy
	clock    marketclock.Clock
	store    *signalstore.Store
	provider userconfig.Provider
	analyzer domain.Analyzer
	notifier domain.NotificationAdapter
	bus      domain.SignalBus

	defaultUserID string
	defaultChatID string

	// current is the rebind slot: one pointer swap per user change, so a
	// pipeline run reads a single consistent snapshot.
	current atomic.Pointer[domain.UserConfig]

	runMu sync.Mutex

	schedMu  sync.Mutex
	lastExec time.Time
}

// Options carries the optional collaborators of a Worker.
type Options struct {
	Notifier      domain.NotificationAdapter
	Bus           domain.SignalBus
	Clock         marketclock.Clock
	DefaultUserID string
	DefaultChatID string
}

// New builds a worker for kind.
func New(kind domain.ServiceKind, policy schedule.Policy, provider userconfig.Provider, analyzer domain.Analyzer, opts Options) *Worker {
	w := &Worker{
		kind:          kind,
		policy:        policy,
		clock:         opts.Clock,
		store:         signalstore.New(signalstore.DefaultCapacity),
		provider:      provider,
		analyzer:      analyzer,
		notifier:      opts.Notifier,
		bus:           opts.Bus,
		defaultUserID: opts.DefaultUserID,
		defaultChatID: opts.DefaultChatID,
	}
	if w.clock == nil {
		w.clock = marketclock.RealClock{}
	}
	if w.defaultUserID == "" {
		w.defaultUserID = "1"
	}
	return w
}

// Kind returns the worker's service kind.
func (w *Worker) Kind() domain.ServiceKind { return w.kind }

// Store exposes the signal store for the HTTP surface.
func (w *Worker) Store() *signalstore.Store { return w.store }

// CheckResponse is the /check-schedule reply shape.
type CheckResponse struct {
	Executed bool       `json:"executed"`
	Message  string     `json:"message"`
	Details  *RunResult `json:"details,omitempty"`
}

// CheckSchedule consults the policy and, when due, performs a pipeline run
// under the default user. A check arriving while a run is in flight reports
// not-executed rather than queueing a second run.
func (w *Worker) CheckSchedule(ctx domain.Context) CheckResponse {
	now := w.clock.Now()
	w.schedMu.Lock()
	last := w.lastExec
	w.schedMu.Unlock()

	decision := w.policy.ShouldExecute(now, last)
	if !decision.Run {
		return CheckResponse{Executed: false, Message: decision.Reason}
	}
	if !w.runMu.TryLock() {
		return CheckResponse{Executed: false, Message: "이미 실행 중"}
	}
	defer w.runMu.Unlock()

	res, err := w.run(ctx, w.defaultUserID)
	if err != nil {
		return CheckResponse{Executed: false, Message: err.Error()}
	}
	w.schedMu.Lock()
	w.lastExec = now
	w.schedMu.Unlock()
	return CheckResponse{Executed: true, Message: decision.Reason, Details: &res}
}

// Execute forces a pipeline run for userID regardless of the schedule. It
// blocks until the run slot frees.
func (w *Worker) Execute(ctx domain.Context, userID string) (RunResult, error) {
	if userID == "" {
		userID = w.defaultUserID
	}
	w.runMu.Lock()
	defer w.runMu.Unlock()
	return w.run(ctx, userID)
}

// run rebinds to userID and executes the pipeline. Caller holds the run
// slot.
func (w *Worker) run(ctx domain.Context, userID string) (RunResult, error) {
	start := time.Now()
	cfg, err := w.Rebind(ctx, userID)
	if err != nil {
		observability.WorkerRunsTotal.WithLabelValues(string(w.kind), "rebind_error").Inc()
		return RunResult{}, fmt.Errorf("op=worker.run service=%s: %w", w.kind, err)
	}
	res := w.runPipeline(ctx, cfg)
	outcome := "ok"
	if res.Partial {
		outcome = "partial"
	}
	observability.WorkerRunsTotal.WithLabelValues(string(w.kind), outcome).Inc()
	observability.WorkerRunDuration.WithLabelValues(string(w.kind)).Observe(time.Since(start).Seconds())
	return res, nil
}

// Rebind ensures the worker's runtime view belongs to userID, fetching a
// fresh snapshot only when the user changes. The returned snapshot is what
// the caller's run must use throughout.
func (w *Worker) Rebind(ctx domain.Context, userID string) (domain.UserConfig, error) {
	if cur := w.current.Load(); cur != nil && cur.UserID == userID {
		return *cur, nil
	}
	cfg, err := w.provider.GetConfig(ctx, userID)
	if err != nil {
		return domain.UserConfig{}, fmt.Errorf("op=worker.Rebind user=%s: %w", userID, err)
	}
	w.current.Store(&cfg)
	return cfg, nil
}

// runPipeline analyzes every watched ticker under one config snapshot.
// A ticker's failure is logged and the run continues with the rest.
func (w *Worker) runPipeline(ctx domain.Context, cfg domain.UserConfig) RunResult {
	res := RunResult{UserID: cfg.UserID}
	if enabled, ok := cfg.EnabledServices[w.kind]; ok && !enabled {
		slog.Info("service disabled for user, skipping run",
			slog.String("service", string(w.kind)), slog.String("user_id", cfg.UserID))
		return res
	}
	for _, ticker := range cfg.WatchedTickers {
		signals, err := w.analyzer.Analyze(ctx, cfg, ticker)
		if err != nil {
			res.Failed++
			res.Partial = true
			slog.Error("ticker analysis failed",
				slog.String("service", string(w.kind)),
				slog.String("stock_code", ticker),
				slog.Any("error", err))
			continue
		}
		res.Processed++
		for _, sig := range signals {
			w.emit(ctx, cfg, sig)
			res.Signals++
		}
	}
	return res
}

// emit saves the signal first, then fans out. A notification or bus failure
// never un-saves the signal.
func (w *Worker) emit(ctx domain.Context, cfg domain.UserConfig, sig domain.Signal) {
	w.store.Append(sig)
	observability.SignalsEmittedTotal.WithLabelValues(string(w.kind)).Inc()

	if w.notifier != nil && cfg.Notify.Services[w.kind] {
		chatID := cfg.Notify.ChatID
		if chatID == "" {
			chatID = w.defaultChatID
		}
		if chatID != "" {
			if err := w.notifier.SendText(ctx, chatID, sig.Message); err != nil {
				slog.Error("notification send failed",
					slog.String("service", string(w.kind)),
					slog.String("stock_code", sig.StockCode),
					slog.Any("error", err))
			}
		}
	}
	if w.bus != nil {
		if err := w.bus.Publish(ctx, sig); err != nil {
			slog.Warn("signal publish failed",
				slog.String("service", string(w.kind)),
				slog.String("stock_code", sig.StockCode),
				slog.Any("error", err))
		}
	}
}
