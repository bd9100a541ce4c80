package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fairyhunter13/stock-signal-fabric/internal/domain"
)

// ServiceConfig declares one backend service as the gateway sees it.
type ServiceConfig struct {
	Name      string   `yaml:"name"`
	Instances []string `yaml:"instances"`
	Enabled   bool     `yaml:"enabled"`
	TimeoutMS int      `yaml:"timeout_ms"`
	// RetryBudget is reserved for the forwarder; the gateway currently
	// fails fast and lets the breaker shape load.
	RetryBudget int `yaml:"retry_budget"`
	CacheTTLSec int `yaml:"cache_ttl_sec"`
}

// Timeout returns the per-request deadline for this service.
func (s ServiceConfig) Timeout() time.Duration {
	if s.TimeoutMS <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.TimeoutMS) * time.Millisecond
}

// CacheTTL returns the response-cache TTL for this service, falling back to
// fallback when unset.
func (s ServiceConfig) CacheTTL(fallback time.Duration) time.Duration {
	if s.CacheTTLSec <= 0 {
		return fallback
	}
	return time.Duration(s.CacheTTLSec) * time.Second
}

type servicesFile struct {
	Services []ServiceConfig `yaml:"services"`
}

// LoadServices reads the gateway's backend registry from a YAML file. A
// missing file yields the default local registry; a malformed file is an
// error.
func LoadServices(path string) ([]ServiceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultServices(), nil
		}
		return nil, fmt.Errorf("op=config.LoadServices: %w", err)
	}
	var f servicesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("op=config.LoadServices: %w", err)
	}
	for _, s := range f.Services {
		if _, err := domain.ParseServiceKind(s.Name); err != nil {
			return nil, fmt.Errorf("op=config.LoadServices: unknown service %q: %w", s.Name, domain.ErrInvalidArgument)
		}
		if s.Enabled && len(s.Instances) == 0 {
			return nil, fmt.Errorf("op=config.LoadServices: service %q enabled without instances: %w", s.Name, domain.ErrInvalidArgument)
		}
	}
	return f.Services, nil
}

// DefaultServices is the single-host development registry.
func DefaultServices() []ServiceConfig {
	ports := map[domain.ServiceKind]int{
		domain.ServiceNews:       8001,
		domain.ServiceDisclosure: 8002,
		domain.ServiceChart:      8003,
		domain.ServiceFlow:       8004,
		domain.ServiceReport:     8005,
		domain.ServiceUser:       8006,
	}
	out := make([]ServiceConfig, 0, len(domain.AllServiceKinds))
	for _, k := range domain.AllServiceKinds {
		out = append(out, ServiceConfig{
			Name:      string(k),
			Instances: []string{fmt.Sprintf("http://localhost:%d", ports[k])},
			Enabled:   true,
			TimeoutMS: 30000,
		})
	}
	return out
}
