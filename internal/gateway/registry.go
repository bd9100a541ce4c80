// Package gateway implements the fabric's reverse proxy: backend registry,
// round-robin balancing, circuit breaking, response caching, health probing
// and the administrative surface.
package gateway

import (
	"sync"
	"time"

	"github.com/fairyhunter13/stock-signal-fabric/internal/adapter/observability"
	"github.com/fairyhunter13/stock-signal-fabric/internal/config"
	"github.com/fairyhunter13/stock-signal-fabric/internal/domain"
)

// Health is a service's aggregate probe result.
type Health int

const (
	// HealthUnknown means the prober has not completed a pass yet. All
	// instances are considered eligible until it has.
	HealthUnknown Health = iota
	// HealthHealthy means every instance answered the last probe.
	HealthHealthy
	// HealthDegraded means a strict subset answered.
	HealthDegraded
	// HealthUnhealthy means no instance answered.
	HealthUnhealthy
)

// String returns the lowercase health name used in admin responses.
func (h Health) String() string {
	switch h {
	case HealthHealthy:
		return "healthy"
	case HealthDegraded:
		return "degraded"
	case HealthUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Service is the runtime descriptor of one backend. Health fields are
// written by the prober only; enabled flips through Toggle.
type Service struct {
	Kind    domain.ServiceKind
	Breaker *Breaker

	mu        sync.RWMutex
	instances []string
	enabled   bool
	timeout   time.Duration
	cacheTTL  time.Duration
	health    Health
	healthy   []string
}

// Enabled reports whether the gateway routes to this service.
func (s *Service) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// Toggle flips the enabled flag and returns the new state.
func (s *Service) Toggle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = !s.enabled
	return s.enabled
}

// Instances returns all configured instance URLs.
func (s *Service) Instances() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.instances))
	copy(out, s.instances)
	return out
}

// EligibleInstances returns the instances forwarding may use. Before the
// first probe pass every instance is eligible; afterwards only those that
// answered the last probe.
func (s *Service) EligibleInstances() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.health == HealthUnknown {
		out := make([]string, len(s.instances))
		copy(out, s.instances)
		return out
	}
	out := make([]string, len(s.healthy))
	copy(out, s.healthy)
	return out
}

// Health returns the last aggregate probe result.
func (s *Service) Health() Health {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.health
}

// setHealth records one probe pass. Prober only.
func (s *Service) setHealth(h Health, healthy []string) {
	s.mu.Lock()
	s.health = h
	s.healthy = healthy
	s.mu.Unlock()
	observability.HealthyInstances.WithLabelValues(string(s.Kind)).Set(float64(len(healthy)))
}

// Timeout is the per-request upstream deadline.
func (s *Service) Timeout() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timeout
}

// CacheTTL is the response-cache lifetime for this service.
func (s *Service) CacheTTL() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cacheTTL
}

// Registry holds every configured backend, keyed by kind, in declaration
// order.
type Registry struct {
	services map[domain.ServiceKind]*Service
	order    []domain.ServiceKind
}

// NewRegistry builds the runtime registry from the loaded services file.
// Entries with an unknown kind were already rejected by the loader.
func NewRegistry(cfg config.Config, declared []config.ServiceConfig) *Registry {
	r := &Registry{services: make(map[domain.ServiceKind]*Service)}
	for _, sc := range declared {
		kind, err := domain.ParseServiceKind(sc.Name)
		if err != nil {
			continue
		}
		r.services[kind] = &Service{
			Kind:      kind,
			Breaker:   NewBreaker(cfg.BreakerFailMax, cfg.BreakerResetAfter),
			instances: sc.Instances,
			enabled:   sc.Enabled,
			timeout:   sc.Timeout(),
			cacheTTL:  sc.CacheTTL(cfg.CacheTTL),
		}
		r.order = append(r.order, kind)
	}
	return r
}

// Get returns the service for kind, if configured.
func (r *Registry) Get(kind domain.ServiceKind) (*Service, bool) {
	s, ok := r.services[kind]
	return s, ok
}

// All returns every service in declaration order.
func (r *Registry) All() []*Service {
	out := make([]*Service, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.services[k])
	}
	return out
}

// ServiceStatus is one entry of the admin health snapshot.
type ServiceStatus struct {
	Service          string   `json:"service"`
	Enabled          bool     `json:"enabled"`
	Health           string   `json:"health"`
	Instances        []string `json:"instances"`
	HealthyInstances []string `json:"healthy_instances"`
	BreakerState     string   `json:"breaker_state"`
	BreakerFailures  int      `json:"breaker_failures"`
}

// Snapshot returns the admin view of every service.
func (r *Registry) Snapshot() []ServiceStatus {
	out := make([]ServiceStatus, 0, len(r.order))
	for _, s := range r.All() {
		s.mu.RLock()
		st := ServiceStatus{
			Service:          string(s.Kind),
			Enabled:          s.enabled,
			Health:           s.health.String(),
			Instances:        append([]string(nil), s.instances...),
			HealthyInstances: append([]string(nil), s.healthy...),
		}
		s.mu.RUnlock()
		st.BreakerState = s.Breaker.State().String()
		st.BreakerFailures = s.Breaker.Failures()
		out = append(out, st)
	}
	return out
}
