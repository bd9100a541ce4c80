// Package llm selects and guards language-model vendors.
//
// Analysis adapters ask the Manager for the vendor bound to the current
// user; the Manager enforces the prompt token budget before dispatch.
package llm

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"

	"github.com/fairyhunter13/stock-signal-fabric/internal/adapter/observability"
	"github.com/fairyhunter13/stock-signal-fabric/internal/domain"
)

// Manager holds one adapter per configured vendor.
type Manager struct {
	mu       sync.RWMutex
	adapters map[domain.LLMKind]domain.LLMAdapter
	budget   int
	enc      *tiktoken.Tiktoken
}

// NewManager builds a Manager over the given adapters with a prompt token
// budget (0 disables the check).
func NewManager(adapters []domain.LLMAdapter, promptTokenBudget int) *Manager {
	m := &Manager{adapters: make(map[domain.LLMKind]domain.LLMAdapter), budget: promptTokenBudget}
	for _, a := range adapters {
		m.adapters[a.Kind()] = a
	}
	// cl100k_base is a reasonable cross-vendor approximation for budgeting.
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		slog.Warn("tiktoken encoding unavailable; prompt budget disabled", slog.Any("error", err))
	}
	m.enc = enc
	return m
}

// Pick returns the adapter for kind, falling back to any configured vendor
// when the requested one is absent (graceful single-vendor degradation).
func (m *Manager) Pick(kind domain.LLMKind) (domain.LLMAdapter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if a, ok := m.adapters[kind]; ok {
		return a, nil
	}
	for fallbackKind, a := range m.adapters {
		slog.Warn("llm vendor not configured; falling back",
			slog.String("requested", string(kind)), slog.String("fallback", string(fallbackKind)))
		return a, nil
	}
	return nil, fmt.Errorf("op=llm.Pick: no vendors configured: %w", domain.ErrServiceUnavailable)
}

// Generate dispatches a prompt through the vendor bound to kind after
// checking the token budget.
func (m *Manager) Generate(ctx domain.Context, kind domain.LLMKind, prompt string, params domain.GenerateParams) (string, error) {
	if err := m.CheckBudget(prompt); err != nil {
		return "", err
	}
	a, err := m.Pick(kind)
	if err != nil {
		return "", err
	}
	observability.LLMRequestsTotal.WithLabelValues(string(a.Kind())).Inc()
	out, err := a.Generate(ctx, prompt, params)
	if err != nil {
		return "", domain.WrapAdapter("llm:"+string(a.Kind()), err)
	}
	return out, nil
}

// CheckBudget rejects prompts whose token count exceeds the budget. When
// the tiktoken encoding could not be loaded, a whitespace approximation is
// used instead of skipping the check.
func (m *Manager) CheckBudget(prompt string) error {
	if m.budget <= 0 {
		return nil
	}
	var n int
	if m.enc != nil {
		n = len(m.enc.Encode(prompt, nil, nil))
	} else {
		n = len(strings.Fields(prompt))
	}
	if n > m.budget {
		return fmt.Errorf("op=llm.CheckBudget: prompt is %d tokens, budget %d: %w", n, m.budget, domain.ErrInvalidArgument)
	}
	return nil
}

// Kinds lists the configured vendors.
func (m *Manager) Kinds() []domain.LLMKind {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.LLMKind, 0, len(m.adapters))
	for k := range m.adapters {
		out = append(out, k)
	}
	return out
}
