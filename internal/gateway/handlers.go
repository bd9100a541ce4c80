package gateway

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fairyhunter13/stock-signal-fabric/internal/adapter/httpserver"
	"github.com/fairyhunter13/stock-signal-fabric/internal/domain"
)

// Server bundles the gateway's handlers: the proxy surface under /api and
// /users, and the admin surface at the root.
type Server struct {
	registry  *Registry
	forwarder *Forwarder
	cache     domain.KVCache
	startedAt time.Time
}

// NewServer builds the handler set.
func NewServer(registry *Registry, forwarder *Forwarder, cache domain.KVCache) *Server {
	return &Server{
		registry:  registry,
		forwarder: forwarder,
		cache:     cache,
		startedAt: time.Now(),
	}
}

// ProxyHandler forwards /api/{service}/* to the selected backend.
func (s *Server) ProxyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kindName := chi.URLParam(r, "service")
		rest := chi.URLParam(r, "*")
		s.forwarder.Forward(w, r, kindName, "/"+rest)
	}
}

// UsersProxyHandler forwards /users/* to the user service with the path
// preserved, so the user worker mounts the same routes it serves directly.
func (s *Server) UsersProxyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.forwarder.Forward(w, r, string(domain.ServiceUser), r.URL.Path)
	}
}

// RootHandler summarizes the fabric for GET /.
func (s *Server) RootHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpserver.WriteJSON(w, http.StatusOK, map[string]any{
			"service":        "stock-signal-fabric",
			"role":           "gateway",
			"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
			"services":       s.registry.Snapshot(),
		})
	}
}

// HealthHandler answers the gateway's own liveness.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpserver.WriteJSON(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// ServicesStatusHandler returns the per-service snapshot.
func (s *Server) ServicesStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpserver.WriteJSON(w, http.StatusOK, map[string]any{"services": s.registry.Snapshot()})
	}
}

// CacheStatsHandler reports the response-cache backend stats.
func (s *Server) CacheStatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := s.cache.Stats(r.Context())
		if err != nil {
			httpserver.WriteError(w, r, err)
			return
		}
		httpserver.WriteJSON(w, http.StatusOK, stats)
	}
}

// CacheClearHandler drops every cached response.
func (s *Server) CacheClearHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.cache.Clear(r.Context()); err != nil {
			httpserver.WriteError(w, r, err)
			return
		}
		httpserver.WriteJSON(w, http.StatusOK, map[string]any{"cleared": true})
	}
}

// CacheWarmUpHandler primes the cache from each enabled service's /health.
func (s *Server) CacheWarmUpHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		warmed := s.forwarder.WarmUp(r.Context())
		httpserver.WriteJSON(w, http.StatusOK, map[string]any{"warmed": warmed})
	}
}

// BreakerResetHandler force-closes one service's breaker.
func (s *Server) BreakerResetHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, err := domain.ParseServiceKind(chi.URLParam(r, "service"))
		if err != nil {
			httpserver.WriteError(w, r, err)
			return
		}
		svc, ok := s.registry.Get(kind)
		if !ok {
			httpserver.WriteError(w, r, domain.ErrNotFound)
			return
		}
		svc.Breaker.Reset()
		httpserver.WriteJSON(w, http.StatusOK, map[string]any{
			"service": string(kind),
			"state":   svc.Breaker.State().String(),
		})
	}
}

// BreakerStatusHandler reports every breaker's state and failure streak.
func (s *Server) BreakerStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out := make(map[string]any, len(s.registry.All()))
		for _, svc := range s.registry.All() {
			out[string(svc.Kind)] = map[string]any{
				"state":    svc.Breaker.State().String(),
				"failures": svc.Breaker.Failures(),
			}
		}
		httpserver.WriteJSON(w, http.StatusOK, map[string]any{"breakers": out})
	}
}

// ServiceToggleHandler flips one service's enabled flag.
func (s *Server) ServiceToggleHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, err := domain.ParseServiceKind(chi.URLParam(r, "service"))
		if err != nil {
			httpserver.WriteError(w, r, err)
			return
		}
		svc, ok := s.registry.Get(kind)
		if !ok {
			httpserver.WriteError(w, r, domain.ErrNotFound)
			return
		}
		enabled := svc.Toggle()
		httpserver.WriteJSON(w, http.StatusOK, map[string]any{
			"service": string(kind),
			"enabled": enabled,
		})
	}
}
