package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Monitor probes every enabled service's instances on a fixed cadence and
// records the aggregate per service. It is the sole writer of service
// health; forwarding only reads it.
type Monitor struct {
	registry     *Registry
	client       *http.Client
	interval     time.Duration
	probeTimeout time.Duration
}

// NewMonitor builds a health monitor. Construction performs no I/O; probing
// starts with Start.
func NewMonitor(registry *Registry, interval, probeTimeout time.Duration) *Monitor {
	return &Monitor{
		registry:     registry,
		client:       &http.Client{Timeout: probeTimeout},
		interval:     interval,
		probeTimeout: probeTimeout,
	}
}

// Start runs the probe loop until ctx is cancelled. The first pass runs
// immediately so the registry leaves HealthUnknown quickly.
func (m *Monitor) Start(ctx context.Context) {
	go func() {
		m.ProbeAll(ctx)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.ProbeAll(ctx)
			}
		}
	}()
}

// ProbeAll performs one probe pass over every enabled service.
func (m *Monitor) ProbeAll(ctx context.Context) {
	for _, svc := range m.registry.All() {
		if !svc.Enabled() {
			continue
		}
		instances := svc.Instances()
		healthy := make([]string, 0, len(instances))
		for _, inst := range instances {
			if m.probe(ctx, inst) {
				healthy = append(healthy, inst)
			}
		}
		var h Health
		switch {
		case len(healthy) == len(instances) && len(instances) > 0:
			h = HealthHealthy
		case len(healthy) > 0:
			h = HealthDegraded
		default:
			h = HealthUnhealthy
		}
		prev := svc.Health()
		svc.setHealth(h, healthy)
		if prev != h {
			slog.Info("service health changed",
				slog.String("service", string(svc.Kind)),
				slog.String("from", prev.String()),
				slog.String("to", h.String()),
				slog.Int("healthy_instances", len(healthy)))
		}
	}
}

// probe issues one GET /health against an instance.
func (m *Monitor) probe(ctx context.Context, instance string) bool {
	ctx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, instance+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}
