package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/stock-signal-fabric/internal/config"
	"github.com/fairyhunter13/stock-signal-fabric/internal/domain"
)

func TestMonitorAllHealthy(t *testing.T) {
	t.Parallel()
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer ok.Close()

	reg := NewRegistry(testConfig(), []config.ServiceConfig{
		{Name: "chart", Instances: []string{ok.URL}, Enabled: true},
	})
	m := NewMonitor(reg, time.Minute, 2*time.Second)
	m.ProbeAll(context.Background())

	svc, _ := reg.Get(domain.ServiceChart)
	assert.Equal(t, HealthHealthy, svc.Health())
	assert.Equal(t, []string{ok.URL}, svc.EligibleInstances())
}

func TestMonitorDegraded(t *testing.T) {
	t.Parallel()
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ok.Close()

	reg := NewRegistry(testConfig(), []config.ServiceConfig{
		{Name: "chart", Instances: []string{ok.URL, "http://127.0.0.1:1"}, Enabled: true},
	})
	m := NewMonitor(reg, time.Minute, 2*time.Second)
	m.ProbeAll(context.Background())

	svc, _ := reg.Get(domain.ServiceChart)
	assert.Equal(t, HealthDegraded, svc.Health())
	assert.Equal(t, []string{ok.URL}, svc.EligibleInstances())
}

func TestMonitorUnhealthy(t *testing.T) {
	t.Parallel()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	reg := NewRegistry(testConfig(), []config.ServiceConfig{
		{Name: "chart", Instances: []string{bad.URL}, Enabled: true},
	})
	m := NewMonitor(reg, time.Minute, 2*time.Second)
	m.ProbeAll(context.Background())

	svc, _ := reg.Get(domain.ServiceChart)
	assert.Equal(t, HealthUnhealthy, svc.Health())
	assert.Empty(t, svc.EligibleInstances())
}

func TestMonitorSkipsDisabled(t *testing.T) {
	t.Parallel()
	reg := NewRegistry(testConfig(), []config.ServiceConfig{
		{Name: "chart", Instances: []string{"http://127.0.0.1:1"}, Enabled: false},
	})
	m := NewMonitor(reg, time.Minute, time.Second)
	m.ProbeAll(context.Background())

	svc, _ := reg.Get(domain.ServiceChart)
	assert.Equal(t, HealthUnknown, svc.Health())
}

func TestUnknownHealthKeepsAllEligible(t *testing.T) {
	t.Parallel()
	reg := NewRegistry(testConfig(), []config.ServiceConfig{
		{Name: "chart", Instances: []string{"http://a", "http://b"}, Enabled: true},
	})
	svc, ok := reg.Get(domain.ServiceChart)
	require.True(t, ok)
	assert.Equal(t, []string{"http://a", "http://b"}, svc.EligibleInstances())
}
