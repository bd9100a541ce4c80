package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/stock-signal-fabric/internal/adapter/httpserver"
	"github.com/fairyhunter13/stock-signal-fabric/internal/adapter/observability"
	"github.com/fairyhunter13/stock-signal-fabric/internal/domain"
)

// hop-by-hop headers are stripped before forwarding.
var hopHeaders = []string{
	"Connection", "Proxy-Connection", "Keep-Alive", "Te", "Trailer",
	"Transfer-Encoding", "Upgrade",
}

// Forwarder sends client requests to backend instances through the
// balancer, breaker and response cache.
type Forwarder struct {
	registry *Registry
	balancer *Balancer
	cache    domain.KVCache
	client   *http.Client
}

// NewForwarder wires the forwarding pipeline over a pooled, traced client.
func NewForwarder(registry *Registry, balancer *Balancer, cache domain.KVCache) *Forwarder {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 30,
		IdleConnTimeout:     30 * time.Second,
	}
	return &Forwarder{
		registry: registry,
		balancer: balancer,
		cache:    cache,
		client:   &http.Client{Transport: otelhttp.NewTransport(transport)},
	}
}

// Forward routes one client request to the backend for kindName. The
// forwardPath is the backend-relative path (leading slash included); query
// and body pass through verbatim.
func (f *Forwarder) Forward(w http.ResponseWriter, r *http.Request, kindName, forwardPath string) {
	start := time.Now()
	kind, err := domain.ParseServiceKind(kindName)
	if err != nil {
		httpserver.WriteError(w, r, fmt.Errorf("op=gateway.Forward: unknown service %q: %w", kindName, domain.ErrNotFound))
		return
	}
	svc, ok := f.registry.Get(kind)
	if !ok {
		httpserver.WriteError(w, r, fmt.Errorf("op=gateway.Forward: service %q not configured: %w", kindName, domain.ErrNotFound))
		return
	}
	if !svc.Enabled() {
		httpserver.WriteError(w, r, fmt.Errorf("op=gateway.Forward: service %q: %w", kindName, domain.ErrServiceDisabled))
		return
	}

	cacheable := r.Method == http.MethodGet
	var key string
	if cacheable {
		key = Fingerprint(kind, r.Method, forwardPath, r.URL.Query())
		if cr := lookupCached(r.Context(), f.cache, key); cr != nil {
			observability.CacheHitsTotal.WithLabelValues(string(kind)).Inc()
			f.record(r.Method, kind, forwardPath, cr.Status, start)
			replay(w, cr)
			return
		}
		observability.CacheMissesTotal.WithLabelValues(string(kind)).Inc()
	}

	instances := svc.EligibleInstances()
	if len(instances) == 0 {
		f.record(r.Method, kind, forwardPath, http.StatusServiceUnavailable, start)
		httpserver.WriteError(w, r, fmt.Errorf("op=gateway.Forward: service %q has no healthy instances: %w", kindName, domain.ErrServiceUnavailable))
		return
	}
	instance := f.balancer.Next(kind, instances)

	if !svc.Breaker.Allow() {
		observability.BreakerState.WithLabelValues(string(kind)).Set(float64(svc.Breaker.State()))
		f.record(r.Method, kind, forwardPath, http.StatusServiceUnavailable, start)
		httpserver.WriteError(w, r, fmt.Errorf("op=gateway.Forward: service %q: %w", kindName, domain.ErrBreakerOpen))
		return
	}

	cr, err := f.send(r, svc, instance, forwardPath)
	observability.BreakerState.WithLabelValues(string(kind)).Set(float64(svc.Breaker.State()))
	if err != nil {
		f.record(r.Method, kind, forwardPath, http.StatusServiceUnavailable, start)
		httpserver.WriteError(w, r, err)
		return
	}

	if cacheable && cr.Status < http.StatusBadRequest {
		storeCached(r.Context(), f.cache, key, *cr, svc.CacheTTL())
	}
	f.record(r.Method, kind, forwardPath, cr.Status, start)
	replay(w, cr)
}

// send performs the upstream exchange and updates the breaker. The deadline
// is the earlier of the client's and the service timeout.
func (f *Forwarder) send(r *http.Request, svc *Service, instance, forwardPath string) (*cachedResponse, error) {
	ctx, cancel := context.WithTimeout(r.Context(), svc.Timeout())
	defer cancel()

	upstream := instance + forwardPath
	if r.URL.RawQuery != "" {
		upstream += "?" + r.URL.RawQuery
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, upstream, r.Body)
	if err != nil {
		return nil, fmt.Errorf("op=gateway.send: %w: %v", domain.ErrInternal, err)
	}
	req.Header = r.Header.Clone()
	for _, h := range hopHeaders {
		req.Header.Del(h)
	}
	req.Header.Set(httpserver.HeaderGatewayRequestID, httpserver.NewRequestID())
	if uid := r.Header.Get(httpserver.HeaderUserID); uid != "" {
		req.Header.Set(httpserver.HeaderUserID, uid)
	}

	backendStart := time.Now()
	resp, err := f.client.Do(req)
	observability.BackendResponseDuration.WithLabelValues(string(svc.Kind), instance).Observe(time.Since(backendStart).Seconds())
	if err != nil {
		svc.Breaker.Failure()
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("op=gateway.send: %s: %w", instance, domain.ErrUpstreamTimeout)
		}
		return nil, fmt.Errorf("op=gateway.send: %s: %w: %v", instance, domain.ErrServiceUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		svc.Breaker.Failure()
		return nil, fmt.Errorf("op=gateway.send: read %s: %w: %v", instance, domain.ErrServiceUnavailable, err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		svc.Breaker.Failure()
		return nil, fmt.Errorf("op=gateway.send: %s returned %d: %w", instance, resp.StatusCode, domain.ErrServiceUnavailable)
	}
	svc.Breaker.Success()
	return &cachedResponse{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// WarmUp primes the cache with each enabled service's /health response.
func (f *Forwarder) WarmUp(ctx context.Context) int {
	warmed := 0
	for _, svc := range f.registry.All() {
		if !svc.Enabled() {
			continue
		}
		instances := svc.EligibleInstances()
		if len(instances) == 0 {
			continue
		}
		r, err := http.NewRequestWithContext(ctx, http.MethodGet, instances[0]+"/health", nil)
		if err != nil {
			continue
		}
		cr, err := f.send(r, svc, f.balancer.Next(svc.Kind, instances), "/health")
		if err != nil || cr.Status >= http.StatusBadRequest {
			continue
		}
		key := Fingerprint(svc.Kind, http.MethodGet, "/health", nil)
		storeCached(ctx, f.cache, key, *cr, svc.CacheTTL())
		warmed++
	}
	return warmed
}

func (f *Forwarder) record(method string, kind domain.ServiceKind, path string, status int, start time.Time) {
	observability.GatewayRequestsTotal.WithLabelValues(method, string(kind), path, strconv.Itoa(status)).Inc()
	observability.GatewayRequestDuration.WithLabelValues(method, string(kind)).Observe(time.Since(start).Seconds())
}

func replay(w http.ResponseWriter, cr *cachedResponse) {
	if cr.ContentType != "" {
		w.Header().Set("Content-Type", cr.ContentType)
	}
	w.WriteHeader(cr.Status)
	_, _ = io.Copy(w, bytes.NewReader(cr.Body))
}
