// Package stub provides deterministic LLM adapters for local runs and
// tests. Real vendor clients are wired in their place in production
// deployments.
package stub

import (
	"fmt"

	"github.com/fairyhunter13/stock-signal-fabric/internal/domain"
)

// Client is a fast, deterministic LLM adapter for one vendor kind.
type Client struct {
	kind domain.LLMKind
}

// New returns a stub adapter reporting the given kind.
func New(kind domain.LLMKind) *Client { return &Client{kind: kind} }

// Kind returns the vendor this stub impersonates.
func (c *Client) Kind() domain.LLMKind { return c.kind }

// Generate returns a deterministic summary derived from the prompt length.
func (c *Client) Generate(_ domain.Context, prompt string, _ domain.GenerateParams) (string, error) {
	return fmt.Sprintf("[%s] 분석 요약 (%d chars)", c.kind, len(prompt)), nil
}

// All returns one stub per vendor kind.
func All() []domain.LLMAdapter {
	return []domain.LLMAdapter{
		New(domain.LLMHyperClova),
		New(domain.LLMGemini),
		New(domain.LLMOpenAI),
		New(domain.LLMClaude),
	}
}
