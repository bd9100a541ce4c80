package userconfig

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/stock-signal-fabric/internal/domain"
)

// memStore is an in-memory UserConfigStore for service tests.
type memStore struct {
	mu      sync.Mutex
	users   map[string]domain.UserConfig
	nextID  int
	getCnt  int
	phoneIx map[string]bool
}

func newMemStore() *memStore {
	return &memStore{users: make(map[string]domain.UserConfig), phoneIx: make(map[string]bool)}
}

func (m *memStore) CreateUser(_ domain.Context, cfg domain.UserConfig) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cfg.Phone != "" && m.phoneIx[cfg.Phone] {
		return "", fmt.Errorf("op=mem.create: %w", domain.ErrConflict)
	}
	m.nextID++
	cfg.UserID = fmt.Sprintf("%d", m.nextID)
	cfg.CreatedAt = time.Now().UTC()
	cfg.UpdatedAt = cfg.CreatedAt
	m.users[cfg.UserID] = cfg
	m.phoneIx[cfg.Phone] = true
	return cfg.UserID, nil
}

func (m *memStore) GetUserConfig(_ domain.Context, userID string) (domain.UserConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCnt++
	cfg, ok := m.users[userID]
	if !ok {
		return domain.UserConfig{}, fmt.Errorf("op=mem.get: %w", domain.ErrNotFound)
	}
	return cfg, nil
}

func (m *memStore) UpdateUserConfig(_ domain.Context, userID string, patch domain.UserConfigPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.users[userID]
	if !ok {
		return fmt.Errorf("op=mem.update: %w", domain.ErrNotFound)
	}
	if patch.Name != nil {
		cfg.Name = *patch.Name
	}
	if patch.Thresholds != nil {
		cfg.Thresholds = *patch.Thresholds
	}
	if patch.LLMChoice != nil {
		cfg.LLMChoice = *patch.LLMChoice
	}
	if patch.WatchedTickers != nil {
		cfg.WatchedTickers = *patch.WatchedTickers
	}
	cfg.UpdatedAt = time.Now().UTC()
	m.users[userID] = cfg
	return nil
}

func (m *memStore) GetUserStocks(_ domain.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.users[userID]
	if !ok {
		return nil, fmt.Errorf("op=mem.get_stocks: %w", domain.ErrNotFound)
	}
	return append([]string(nil), cfg.WatchedTickers...), nil
}

func (m *memStore) SetUserStocks(_ domain.Context, userID string, codes []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.users[userID]
	if !ok {
		return fmt.Errorf("op=mem.set_stocks: %w", domain.ErrNotFound)
	}
	cfg.WatchedTickers = append([]string(nil), codes...)
	m.users[userID] = cfg
	return nil
}

func (m *memStore) GetModelChoice(_ domain.Context, userID string) (domain.LLMKind, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.users[userID]
	if !ok {
		return "", fmt.Errorf("op=mem.get_model: %w", domain.ErrNotFound)
	}
	return cfg.LLMChoice, nil
}

func (m *memStore) SetModelChoice(_ domain.Context, userID string, kind domain.LLMKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.users[userID]
	if !ok {
		return fmt.Errorf("op=mem.set_model: %w", domain.ErrNotFound)
	}
	cfg.LLMChoice = kind
	m.users[userID] = cfg
	return nil
}

func (m *memStore) GetWantedServices(_ domain.Context, userID string) (map[domain.ServiceKind]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.users[userID]
	if !ok {
		return nil, fmt.Errorf("op=mem.get_services: %w", domain.ErrNotFound)
	}
	return cfg.EnabledServices, nil
}

func (m *memStore) SetWantedServices(_ domain.Context, userID string, services map[domain.ServiceKind]bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.users[userID]
	if !ok {
		return fmt.Errorf("op=mem.set_services: %w", domain.ErrNotFound)
	}
	cfg.EnabledServices = services
	m.users[userID] = cfg
	return nil
}

func newTestService() (*Service, *memStore) {
	store := newMemStore()
	return NewService(store, NewCache(time.Minute)), store
}

func TestRegisterAndGet(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	id, err := svc.Register(ctx, RegisterInput{Name: "kim", Phone: "010-1234-5678"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	cfg, err := svc.GetConfig(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "kim", cfg.Name)
	assert.Equal(t, domain.DefaultThresholds, cfg.Thresholds)
	assert.Equal(t, domain.LLMOpenAI, cfg.LLMChoice)
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Register(context.Background(), RegisterInput{Name: "", Phone: "short"})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestRegisterDuplicatePhone(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	_, err := svc.Register(ctx, RegisterInput{Name: "kim", Phone: "010-1234-5678"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, RegisterInput{Name: "lee", Phone: "010-1234-5678"})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestGetConfigUsesCache(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	id, _ := svc.Register(ctx, RegisterInput{Name: "kim", Phone: "010-1234-5678"})

	_, err := svc.GetConfig(ctx, id)
	require.NoError(t, err)
	first := store.getCnt
	_, err = svc.GetConfig(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, first, store.getCnt, "second read should hit the cache")
}

func TestMutationInvalidatesCache(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	id, _ := svc.Register(ctx, RegisterInput{Name: "kim", Phone: "010-1234-5678"})
	_, _ = svc.GetConfig(ctx, id)

	require.NoError(t, svc.SetModel(ctx, id, domain.LLMClaude))
	cfg, err := svc.GetConfig(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.LLMClaude, cfg.LLMChoice)
}

func TestStocksRoundTrip(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	id, _ := svc.Register(ctx, RegisterInput{Name: "kim", Phone: "010-1234-5678"})

	want := []string{"005930", "000660"}
	require.NoError(t, svc.SetStocks(ctx, id, want))
	got, err := svc.GetStocks(ctx, id)
	require.NoError(t, err)
	assert.ElementsMatch(t, want, got)
}

func TestSetStocksRejectsBadCode(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	id, _ := svc.Register(ctx, RegisterInput{Name: "kim", Phone: "010-1234-5678"})
	err := svc.SetStocks(ctx, id, []string{"bad!"})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestAddStocksMerges(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	id, _ := svc.Register(ctx, RegisterInput{Name: "kim", Phone: "010-1234-5678"})
	require.NoError(t, svc.SetStocks(ctx, id, []string{"005930"}))
	require.NoError(t, svc.AddStocks(ctx, id, []string{"005930", "000660"}))
	got, _ := svc.GetStocks(ctx, id)
	assert.ElementsMatch(t, []string{"005930", "000660"}, got)
}

func TestRemoveStock(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	id, _ := svc.Register(ctx, RegisterInput{Name: "kim", Phone: "010-1234-5678"})
	require.NoError(t, svc.SetStocks(ctx, id, []string{"005930", "000660"}))

	require.NoError(t, svc.RemoveStock(ctx, id, "005930"))
	got, _ := svc.GetStocks(ctx, id)
	assert.Equal(t, []string{"000660"}, got)

	err := svc.RemoveStock(ctx, id, "999999")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdatePatchReflected(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	id, _ := svc.Register(ctx, RegisterInput{Name: "kim", Phone: "010-1234-5678"})

	th := domain.Thresholds{Similarity: 0.9, Impact: 0.8, Relevance: 0.7}
	require.NoError(t, svc.Update(ctx, id, domain.UserConfigPatch{Thresholds: &th}))
	cfg, _ := svc.GetConfig(ctx, id)
	assert.Equal(t, th, cfg.Thresholds)
}

func TestUpdateRejectsBadThresholds(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	id, _ := svc.Register(ctx, RegisterInput{Name: "kim", Phone: "010-1234-5678"})
	th := domain.Thresholds{Similarity: 1.5}
	err := svc.Update(ctx, id, domain.UserConfigPatch{Thresholds: &th})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestSetModelRejectsUnknownVendor(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	id, _ := svc.Register(ctx, RegisterInput{Name: "kim", Phone: "010-1234-5678"})
	err := svc.SetModel(ctx, id, domain.LLMKind("bard"))
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}
