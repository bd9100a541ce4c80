package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.AppEnv)
	assert.True(t, cfg.IsDev())
	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, 300*time.Second, cfg.CacheTTL)
	assert.Equal(t, 1000, cfg.LocalCacheMaxSize)
	assert.Equal(t, 3, cfg.BreakerFailMax)
	assert.Equal(t, 60*time.Second, cfg.CoordinatorInterval)
	assert.Equal(t, "1", cfg.DefaultUserID)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("PORT", "9000")
	t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProd())
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
}

func TestPeakWindows(t *testing.T) {
	cfg := Config{NewsPeakWindows: "07:30-09:30,14:30-16:30"}
	ws := cfg.PeakWindows()
	require.Len(t, ws, 2)
	assert.Equal(t, 7, ws[0].StartHour)
	assert.Equal(t, 30, ws[0].StartMin)
	assert.Equal(t, 16, ws[1].EndHour)

	// Malformed entries are skipped.
	cfg = Config{NewsPeakWindows: "garbage,08:00-09:00"}
	ws = cfg.PeakWindows()
	require.Len(t, ws, 1)
	assert.Equal(t, 8, ws[0].StartHour)
}

func TestLoadServicesMissingFileFallsBack(t *testing.T) {
	svcs, err := LoadServices(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Len(t, svcs, 6)
	for _, s := range svcs {
		assert.True(t, s.Enabled)
		assert.NotEmpty(t, s.Instances)
	}
}

func TestLoadServicesFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "services.yaml")
	body := `
services:
  - name: chart
    instances: ["http://h:8003"]
    enabled: true
    timeout_ms: 5000
    cache_ttl_sec: 60
  - name: news
    instances: []
    enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	svcs, err := LoadServices(path)
	require.NoError(t, err)
	require.Len(t, svcs, 2)
	assert.Equal(t, "chart", svcs[0].Name)
	assert.Equal(t, 5*time.Second, svcs[0].Timeout())
	assert.Equal(t, 60*time.Second, svcs[0].CacheTTL(300*time.Second))
	assert.Equal(t, 300*time.Second, svcs[1].CacheTTL(300*time.Second))
}

func TestLoadServicesRejectsUnknownKind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "services.yaml")
	require.NoError(t, os.WriteFile(path, []byte("services:\n  - name: bogus\n    enabled: false\n"), 0o600))
	_, err := LoadServices(path)
	assert.Error(t, err)
}

func TestLoadServicesRejectsEnabledWithoutInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "services.yaml")
	require.NoError(t, os.WriteFile(path, []byte("services:\n  - name: chart\n    enabled: true\n"), 0o600))
	_, err := LoadServices(path)
	assert.Error(t, err)
}
