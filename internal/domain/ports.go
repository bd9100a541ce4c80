package domain

import (
	"fmt"
	"time"
)

// UserConfigStore is the port to the durable per-user configuration store.
// Implementations must treat WatchedTickers and wanted services as sets.
type UserConfigStore interface {
	CreateUser(ctx Context, cfg UserConfig) (string, error)
	GetUserConfig(ctx Context, userID string) (UserConfig, error)
	UpdateUserConfig(ctx Context, userID string, patch UserConfigPatch) error
	GetUserStocks(ctx Context, userID string) ([]string, error)
	SetUserStocks(ctx Context, userID string, codes []string) error
	GetModelChoice(ctx Context, userID string) (LLMKind, error)
	SetModelChoice(ctx Context, userID string, kind LLMKind) error
	GetWantedServices(ctx Context, userID string) (map[ServiceKind]bool, error)
	SetWantedServices(ctx Context, userID string, services map[ServiceKind]bool) error
}

// LLMAdapter generates text for a single vendor.
type LLMAdapter interface {
	Kind() LLMKind
	Generate(ctx Context, prompt string, params GenerateParams) (string, error)
}

// GenerateParams tune a single generation call.
type GenerateParams struct {
	MaxTokens   int
	Temperature float64
}

// NotificationAdapter pushes messages to a chat channel.
type NotificationAdapter interface {
	SendText(ctx Context, chatID, message string) error
	SendDocument(ctx Context, chatID string, data []byte, filename, caption string) error
}

// KVCache is the gateway's response cache backend.
type KVCache interface {
	Get(ctx Context, key string) ([]byte, bool, error)
	Set(ctx Context, key string, value []byte, ttl time.Duration) error
	Clear(ctx Context) error
	Stats(ctx Context) (CacheStats, error)
}

// CacheStats is a point-in-time view of a KVCache.
type CacheStats struct {
	Backend string `json:"backend"`
	Entries int    `json:"entries"`
	Hits    int64  `json:"hits"`
	Misses  int64  `json:"misses"`
}

// DataSourceAdapter is the port to a market-data vendor. Subscribe delivers
// decoded tick messages until Unsubscribe or context cancellation.
type DataSourceAdapter interface {
	FetchHistory(ctx Context, stockCode string, start, end time.Time) ([]Bar, error)
	Subscribe(ctx Context, stockCode string, onMessage func(TickMessage)) error
	Unsubscribe(ctx Context, stockCode string) error
}

// TokenSource supplies the data source's approval token and its expiry.
type TokenSource interface {
	ApprovalToken(ctx Context) (token string, expiresAt time.Time, err error)
}

// Analyzer is the pipeline port of one analysis domain. A run calls Analyze
// once per watched ticker; failures are isolated per ticker.
type Analyzer interface {
	Analyze(ctx Context, cfg UserConfig, stockCode string) ([]Signal, error)
}

// SignalBus publishes emitted signals for push consumers. Publishing is
// best-effort; failures never abort a pipeline run.
type SignalBus interface {
	Publish(ctx Context, sig Signal) error
	Close() error
}

// AdapterError wraps a failure from an external adapter with the adapter
// kind, so pipeline logs can attribute it.
type AdapterError struct {
	Adapter string
	Err     error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("adapter %s: %v", e.Adapter, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// WrapAdapter builds an AdapterError unless err is nil.
func WrapAdapter(adapter string, err error) error {
	if err == nil {
		return nil
	}
	return &AdapterError{Adapter: adapter, Err: err}
}
