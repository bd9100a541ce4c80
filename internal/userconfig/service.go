package userconfig

import (
	"fmt"
	"log/slog"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/stock-signal-fabric/internal/domain"
)

// Provider is the narrow read surface workers rebind against.
type Provider interface {
	GetConfig(ctx domain.Context, userID string) (domain.UserConfig, error)
}

// Service fronts the durable store with the snapshot cache. All mutations
// invalidate the affected key before returning.
type Service struct {
	store    domain.UserConfigStore
	cache    *Cache
	validate *validator.Validate
}

// NewService constructs a Service over store with the given cache.
func NewService(store domain.UserConfigStore, cache *Cache) *Service {
	return &Service{store: store, cache: cache, validate: validator.New()}
}

var tickerPattern = regexp.MustCompile(`^[A-Z0-9]{6}$`)

// RegisterInput is the POST /users/profile payload.
type RegisterInput struct {
	Name   string `json:"name" validate:"required,min=1,max=64"`
	Phone  string `json:"phone" validate:"required,min=9,max=20"`
	ChatID string `json:"chat_id"`
}

// Register creates a profile with default thresholds and returns its id.
func (s *Service) Register(ctx domain.Context, in RegisterInput) (string, error) {
	if err := s.validate.Struct(in); err != nil {
		return "", fmt.Errorf("op=userconfig.Register: %v: %w", err, domain.ErrInvalidArgument)
	}
	cfg := domain.UserConfig{
		Name:       in.Name,
		Phone:      in.Phone,
		Thresholds: domain.DefaultThresholds,
		LLMChoice:  domain.LLMOpenAI,
		Notify:     domain.NotifyPrefs{ChatID: in.ChatID},
	}
	id, err := s.store.CreateUser(ctx, cfg)
	if err != nil {
		return "", err
	}
	slog.Info("user registered", slog.String("user_id", id))
	return id, nil
}

// GetConfig returns a cached snapshot, loading from the store on miss.
func (s *Service) GetConfig(ctx domain.Context, userID string) (domain.UserConfig, error) {
	if cfg, ok := s.cache.Get(userID); ok {
		return cfg, nil
	}
	cfg, err := s.store.GetUserConfig(ctx, userID)
	if err != nil {
		return domain.UserConfig{}, err
	}
	s.cache.Put(cfg)
	return cfg, nil
}

// Update applies a partial profile update and invalidates the snapshot.
func (s *Service) Update(ctx domain.Context, userID string, patch domain.UserConfigPatch) error {
	if patch.Thresholds != nil {
		if err := s.validate.Struct(*patch.Thresholds); err != nil {
			return fmt.Errorf("op=userconfig.Update: %v: %w", err, domain.ErrInvalidArgument)
		}
	}
	if patch.LLMChoice != nil {
		if _, err := domain.ParseLLMKind(string(*patch.LLMChoice)); err != nil {
			return err
		}
	}
	if patch.WatchedTickers != nil {
		if err := validateTickers(*patch.WatchedTickers); err != nil {
			return err
		}
	}
	if err := s.store.UpdateUserConfig(ctx, userID, patch); err != nil {
		return err
	}
	s.cache.Invalidate(userID)
	return nil
}

// GetStocks returns the watched ticker set.
func (s *Service) GetStocks(ctx domain.Context, userID string) ([]string, error) {
	return s.store.GetUserStocks(ctx, userID)
}

// SetStocks replaces the watched ticker set.
func (s *Service) SetStocks(ctx domain.Context, userID string, codes []string) error {
	if err := validateTickers(codes); err != nil {
		return err
	}
	if err := s.store.SetUserStocks(ctx, userID, codes); err != nil {
		return err
	}
	s.cache.Invalidate(userID)
	return nil
}

// AddStocks merges codes into the watched set.
func (s *Service) AddStocks(ctx domain.Context, userID string, codes []string) error {
	if err := validateTickers(codes); err != nil {
		return err
	}
	current, err := s.store.GetUserStocks(ctx, userID)
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(current))
	for _, c := range current {
		seen[c] = true
	}
	merged := current
	for _, c := range codes {
		if !seen[c] {
			merged = append(merged, c)
			seen[c] = true
		}
	}
	if err := s.store.SetUserStocks(ctx, userID, merged); err != nil {
		return err
	}
	s.cache.Invalidate(userID)
	return nil
}

// RemoveStock deletes one ticker from the watched set.
func (s *Service) RemoveStock(ctx domain.Context, userID, code string) error {
	current, err := s.store.GetUserStocks(ctx, userID)
	if err != nil {
		return err
	}
	out := current[:0]
	found := false
	for _, c := range current {
		if c == code {
			found = true
			continue
		}
		out = append(out, c)
	}
	if !found {
		return fmt.Errorf("op=userconfig.RemoveStock: %q: %w", code, domain.ErrNotFound)
	}
	if err := s.store.SetUserStocks(ctx, userID, out); err != nil {
		return err
	}
	s.cache.Invalidate(userID)
	return nil
}

// GetModel returns the user's LLM vendor.
func (s *Service) GetModel(ctx domain.Context, userID string) (domain.LLMKind, error) {
	return s.store.GetModelChoice(ctx, userID)
}

// SetModel updates the user's LLM vendor.
func (s *Service) SetModel(ctx domain.Context, userID string, kind domain.LLMKind) error {
	if _, err := domain.ParseLLMKind(string(kind)); err != nil {
		return err
	}
	if err := s.store.SetModelChoice(ctx, userID, kind); err != nil {
		return err
	}
	s.cache.Invalidate(userID)
	return nil
}

// GetWantedServices returns the per-service enablement map.
func (s *Service) GetWantedServices(ctx domain.Context, userID string) (map[domain.ServiceKind]bool, error) {
	return s.store.GetWantedServices(ctx, userID)
}

// SetWantedServices replaces the per-service enablement map.
func (s *Service) SetWantedServices(ctx domain.Context, userID string, services map[domain.ServiceKind]bool) error {
	for kind := range services {
		if _, err := domain.ParseServiceKind(string(kind)); err != nil {
			return fmt.Errorf("op=userconfig.SetWantedServices: %q: %w", kind, domain.ErrInvalidArgument)
		}
	}
	if err := s.store.SetWantedServices(ctx, userID, services); err != nil {
		return err
	}
	s.cache.Invalidate(userID)
	return nil
}

func validateTickers(codes []string) error {
	for _, c := range codes {
		if !tickerPattern.MatchString(c) {
			return fmt.Errorf("op=userconfig.validateTickers: %q: %w", c, domain.ErrInvalidArgument)
		}
	}
	return nil
}
