package gateway

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fairyhunter13/stock-signal-fabric/internal/adapter/httpserver"
	"github.com/fairyhunter13/stock-signal-fabric/internal/adapter/observability"
	"github.com/fairyhunter13/stock-signal-fabric/internal/config"
)

// ParseOrigins splits a comma-separated origin list, trimming spaces. Empty
// input allows everything.
func ParseOrigins(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return []string{"*"}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// BuildRouter constructs the gateway HTTP handler with all middlewares and
// routes.
func BuildRouter(cfg config.Config, srv *Server) http.Handler {
	r := chi.NewRouter()
	r.Use(httpserver.Recoverer())
	r.Use(httpserver.RequestID())
	r.Use(httpserver.TimeoutMiddleware(60 * time.Second))
	r.Use(httpserver.AccessLog())
	r.Use(observability.HTTPMetricsMiddleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   ParseOrigins(cfg.CORSAllowOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-Id", httpserver.HeaderGatewayRequestID},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Proxy surface.
	r.HandleFunc("/api/{service}/*", srv.ProxyHandler())
	r.HandleFunc("/users", srv.UsersProxyHandler())
	r.HandleFunc("/users/*", srv.UsersProxyHandler())

	// Admin surface; mutations are rate limited per client IP. httprate
	// treats a zero limit as reject-all, so a non-positive config value
	// falls back to the default.
	rateLimit := cfg.RateLimitPerMin
	if rateLimit <= 0 {
		rateLimit = 60
	}
	r.Get("/", srv.RootHandler())
	r.Get("/health", srv.HealthHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) { promhttp.Handler().ServeHTTP(w, r) })
	r.Get("/services/status", srv.ServicesStatusHandler())
	r.Get("/cache/stats", srv.CacheStatsHandler())
	r.Get("/circuit-breaker/status", srv.BreakerStatusHandler())
	r.Group(func(wr chi.Router) {
		wr.Use(httprate.LimitByIP(rateLimit, time.Minute))
		wr.Post("/cache/clear", srv.CacheClearHandler())
		wr.Post("/cache/warm-up", srv.CacheWarmUpHandler())
		wr.Post("/circuit-breaker/{service}/reset", srv.BreakerResetHandler())
		wr.Post("/services/{service}/toggle", srv.ServiceToggleHandler())
	})

	return httpserver.SecurityHeaders(r)
}
