// Package coordinator drives the fabric's schedule: a fixed-cadence loop
// that pings every enabled analysis worker's /check-schedule endpoint.
// Workers decide for themselves; the coordinator only knocks.
package coordinator

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/fairyhunter13/stock-signal-fabric/internal/domain"
	"github.com/fairyhunter13/stock-signal-fabric/internal/gateway"
)

// Coordinator ticks every interval and POSTs /check-schedule to each
// enabled analysis worker with a bounded deadline. Failures are logged and
// skipped; a paused coordinator leaves workers correct but idle.
type Coordinator struct {
	registry    *Registry
	client      *http.Client
	interval    time.Duration
	tickTimeout time.Duration
}

// Registry is the read surface the coordinator needs from the gateway's
// backend registry.
type Registry = gateway.Registry

// New builds a coordinator over the gateway's registry.
func New(registry *Registry, interval, tickTimeout time.Duration) *Coordinator {
	return &Coordinator{
		registry:    registry,
		client:      &http.Client{},
		interval:    interval,
		tickTimeout: tickTimeout,
	}
}

// Start runs the tick loop until ctx is cancelled. The first tick fires
// after one full interval so workers finish booting.
func (c *Coordinator) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		slog.Info("coordinator started", slog.Duration("interval", c.interval))
		for {
			select {
			case <-ctx.Done():
				slog.Info("coordinator stopped")
				return
			case <-ticker.C:
				c.TickAll(ctx)
			}
		}
	}()
}

// TickAll performs one coordination pass over every enabled analysis
// worker.
func (c *Coordinator) TickAll(ctx context.Context) {
	for _, kind := range domain.AnalysisKinds {
		svc, ok := c.registry.Get(kind)
		if !ok || !svc.Enabled() {
			continue
		}
		instances := svc.EligibleInstances()
		if len(instances) == 0 {
			slog.Warn("no instance to tick", slog.String("service", string(kind)))
			continue
		}
		c.tick(ctx, kind, instances[0])
	}
}

// tick POSTs one /check-schedule with the coordinator deadline.
func (c *Coordinator) tick(ctx context.Context, kind domain.ServiceKind, instance string) {
	ctx, cancel := context.WithTimeout(ctx, c.tickTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, instance+"/check-schedule", nil)
	if err != nil {
		slog.Error("tick request build failed", slog.String("service", string(kind)), slog.Any("error", err))
		return
	}
	resp, err := c.client.Do(req)
	if err != nil {
		slog.Warn("tick failed", slog.String("service", string(kind)), slog.Any("error", err))
		return
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil || resp.StatusCode != http.StatusOK {
		slog.Warn("tick returned error",
			slog.String("service", string(kind)), slog.Int("status", resp.StatusCode))
		return
	}
	var out struct {
		Executed bool   `json:"executed"`
		Message  string `json:"message"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		slog.Warn("tick response malformed", slog.String("service", string(kind)), slog.Any("error", err))
		return
	}
	if out.Executed {
		slog.Info("worker executed",
			slog.String("service", string(kind)), slog.String("message", out.Message))
	} else {
		slog.Debug("worker skipped",
			slog.String("service", string(kind)), slog.String("message", out.Message))
	}
}
