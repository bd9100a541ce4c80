package gateway

import (
	"sync"

	"github.com/fairyhunter13/stock-signal-fabric/internal/domain"
)

// Balancer selects instances round-robin with a monotonic per-kind counter.
// The counter advances per selection regardless of the candidate set, so
// after a health change the rotation stays deterministic.
type Balancer struct {
	mu       sync.Mutex
	counters map[domain.ServiceKind]uint64
}

// NewBalancer returns an empty balancer.
func NewBalancer() *Balancer {
	return &Balancer{counters: make(map[domain.ServiceKind]uint64)}
}

// Next returns the next instance for kind, or "" when instances is empty.
func (b *Balancer) Next(kind domain.ServiceKind, instances []string) string {
	if len(instances) == 0 {
		return ""
	}
	b.mu.Lock()
	n := b.counters[kind]
	b.counters[kind] = n + 1
	b.mu.Unlock()
	return instances[n%uint64(len(instances))]
}
