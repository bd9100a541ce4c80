package gateway

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/fairyhunter13/stock-signal-fabric/internal/domain"
)

// cachedResponse is the serialized form a cache entry stores. Status and
// content type ride along so a hit replays the response byte-identically.
type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// lookupCached returns a previously stored response, or nil. Cache failures
// degrade to a miss.
func lookupCached(ctx domain.Context, kv domain.KVCache, key string) *cachedResponse {
	raw, ok, err := kv.Get(ctx, key)
	if err != nil {
		slog.Warn("cache get failed", slog.Any("error", err))
		return nil
	}
	if !ok {
		return nil
	}
	var cr cachedResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		slog.Warn("cache entry corrupt, dropping", slog.Any("error", err))
		return nil
	}
	return &cr
}

// storeCached writes a response under key with the given TTL, best-effort.
func storeCached(ctx domain.Context, kv domain.KVCache, key string, cr cachedResponse, ttl time.Duration) {
	raw, err := json.Marshal(cr)
	if err != nil {
		return
	}
	if err := kv.Set(ctx, key, raw, ttl); err != nil {
		slog.Warn("cache set failed", slog.Any("error", err))
	}
}
