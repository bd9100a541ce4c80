// Package domain holds the core entities and ports of the service fabric.
//
// It is free of transport and storage concerns; adapters implement the
// ports declared here and the gateway/worker runtimes consume them.
package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrServiceDisabled    = errors.New("service disabled")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrBreakerOpen        = errors.New("circuit breaker open")
	ErrUpstreamTimeout    = errors.New("upstream timeout")
	ErrInternal           = errors.New("internal error")
)

// ServiceKind identifies one analysis domain of the fabric.
type ServiceKind string

const (
	ServiceNews       ServiceKind = "news"
	ServiceDisclosure ServiceKind = "disclosure"
	ServiceChart      ServiceKind = "chart"
	ServiceFlow       ServiceKind = "flow"
	ServiceReport     ServiceKind = "report"
	ServiceUser       ServiceKind = "user"
)

// AllServiceKinds lists every routable service in registry order.
var AllServiceKinds = []ServiceKind{
	ServiceNews, ServiceDisclosure, ServiceChart, ServiceFlow, ServiceReport, ServiceUser,
}

// ParseServiceKind maps a path segment to a ServiceKind.
func ParseServiceKind(s string) (ServiceKind, error) {
	k := ServiceKind(s)
	switch k {
	case ServiceNews, ServiceDisclosure, ServiceChart, ServiceFlow, ServiceReport, ServiceUser:
		return k, nil
	}
	return "", fmt.Errorf("op=domain.ParseServiceKind: %q: %w", s, ErrNotFound)
}

// AnalysisKinds are the kinds the coordinator drives; the user service has
// no schedule.
var AnalysisKinds = []ServiceKind{
	ServiceNews, ServiceDisclosure, ServiceChart, ServiceFlow, ServiceReport,
}

// LLMKind selects the language-model vendor bound to a user.
type LLMKind string

const (
	LLMHyperClova LLMKind = "hyperclova"
	LLMGemini     LLMKind = "gemini"
	LLMOpenAI     LLMKind = "openai"
	LLMClaude     LLMKind = "claude"
)

// ParseLLMKind validates a vendor name.
func ParseLLMKind(s string) (LLMKind, error) {
	k := LLMKind(s)
	switch k {
	case LLMHyperClova, LLMGemini, LLMOpenAI, LLMClaude:
		return k, nil
	}
	return "", fmt.Errorf("op=domain.ParseLLMKind: %q: %w", s, ErrInvalidArgument)
}

// Thresholds are per-user analysis cutoffs, each in [0,1].
type Thresholds struct {
	Similarity float64 `json:"similarity" validate:"gte=0,lte=1"`
	Impact     float64 `json:"impact" validate:"gte=0,lte=1"`
	Relevance  float64 `json:"relevance" validate:"gte=0,lte=1"`
}

// DefaultThresholds are applied when a profile is registered without
// explicit values.
var DefaultThresholds = Thresholds{Similarity: 0.7, Impact: 0.5, Relevance: 0.5}

// NotifyPrefs controls where and for which services push messages go.
type NotifyPrefs struct {
	ChatID   string               `json:"chat_id,omitempty"`
	Services map[ServiceKind]bool `json:"services,omitempty"`
}

// UserConfig is a read-mostly snapshot of one user's personalization.
// Workers swap the whole value on rebind; a pipeline run never mixes
// fields from two versions.
type UserConfig struct {
	UserID          string               `json:"user_id"`
	Name            string               `json:"name"`
	Phone           string               `json:"phone"`
	WatchedTickers  []string             `json:"watched_tickers"`
	Thresholds      Thresholds           `json:"thresholds"`
	LLMChoice       LLMKind              `json:"llm_choice"`
	EnabledServices map[ServiceKind]bool `json:"enabled_services"`
	Notify          NotifyPrefs          `json:"notify"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

// UserConfigPatch carries partial profile updates; nil fields are untouched.
type UserConfigPatch struct {
	Name            *string               `json:"name,omitempty"`
	Phone           *string               `json:"phone,omitempty"`
	WatchedTickers  *[]string             `json:"watched_tickers,omitempty"`
	Thresholds      *Thresholds           `json:"thresholds,omitempty"`
	LLMChoice       *LLMKind              `json:"llm_choice,omitempty"`
	EnabledServices *map[ServiceKind]bool `json:"enabled_services,omitempty"`
	Notify          *NotifyPrefs          `json:"notify,omitempty"`
}

// Signal is one emission from a worker pipeline. Payload is a typed JSON
// document whose schema is owned by the emitting service (see the analysis
// adapters); the core treats it as opaque bytes.
type Signal struct {
	ID        string          `json:"id"`
	StockCode string          `json:"stock_code"`
	Kind      ServiceKind     `json:"kind"`
	EmittedAt time.Time       `json:"emitted_at"`
	Message   string          `json:"message"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Bar is one historical candle from a market-data source.
type Bar struct {
	StockCode string    `json:"stock_code"`
	At        time.Time `json:"at"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// TickMessage is one decoded message from a live subscription.
type TickMessage struct {
	StockCode string    `json:"stock_code"`
	At        time.Time `json:"at"`
	Price     float64   `json:"price"`
	Volume    int64     `json:"volume"`
}

// Context is an alias so ports read naturally without importing std context
// at every call site in this package.
type Context = context.Context
