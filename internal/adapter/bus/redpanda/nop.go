package redpanda

import "github.com/fairyhunter13/stock-signal-fabric/internal/domain"

// Nop is a SignalBus that drops everything. Deployments without a broker
// configured use it so the pipeline wiring stays uniform.
type Nop struct{}

// Publish discards the signal.
func (Nop) Publish(domain.Context, domain.Signal) error { return nil }

// Close is a no-op.
func (Nop) Close() error { return nil }
