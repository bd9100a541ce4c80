package coordinator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fairyhunter13/stock-signal-fabric/internal/config"
	"github.com/fairyhunter13/stock-signal-fabric/internal/gateway"
)

func testRegistry(services ...config.ServiceConfig) *Registry {
	return gateway.NewRegistry(config.Config{
		BreakerFailMax:    3,
		BreakerResetAfter: time.Minute,
		CacheTTL:          300 * time.Second,
	}, services)
}

func TestTickAllHitsEnabledWorkers(t *testing.T) {
	t.Parallel()
	var chartTicks, newsTicks atomic.Int32
	chart := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/check-schedule", r.URL.Path)
		chartTicks.Add(1)
		_, _ = w.Write([]byte(`{"executed":true,"message":"첫 실행"}`))
	}))
	defer chart.Close()
	news := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		newsTicks.Add(1)
		_, _ = w.Write([]byte(`{"executed":false,"message":"대기 중"}`))
	}))
	defer news.Close()

	c := New(testRegistry(
		config.ServiceConfig{Name: "chart", Instances: []string{chart.URL}, Enabled: true},
		config.ServiceConfig{Name: "news", Instances: []string{news.URL}, Enabled: true},
	), time.Minute, 5*time.Second)

	c.TickAll(context.Background())
	assert.Equal(t, int32(1), chartTicks.Load())
	assert.Equal(t, int32(1), newsTicks.Load())
}

func TestTickAllSkipsDisabledAndUserService(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"executed":false,"message":"휴식 중"}`))
	}))
	defer backend.Close()

	c := New(testRegistry(
		config.ServiceConfig{Name: "chart", Instances: []string{backend.URL}, Enabled: false},
		config.ServiceConfig{Name: "user", Instances: []string{backend.URL}, Enabled: true},
	), time.Minute, 5*time.Second)

	c.TickAll(context.Background())
	// The disabled chart worker is skipped; the user service is not an
	// analysis worker and never ticked.
	assert.Equal(t, int32(0), hits.Load())
}

func TestTickFailureIsNonFatal(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"executed":false,"message":"대기 중"}`))
	}))
	defer ok.Close()

	c := New(testRegistry(
		config.ServiceConfig{Name: "news", Instances: []string{"http://127.0.0.1:1"}, Enabled: true},
		config.ServiceConfig{Name: "chart", Instances: []string{ok.URL}, Enabled: true},
	), time.Minute, 2*time.Second)

	// The unreachable news worker does not stop the pass.
	c.TickAll(context.Background())
	assert.Equal(t, int32(1), hits.Load())
}
