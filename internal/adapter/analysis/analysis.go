// Package analysis holds the Analyzer implementations each worker runs per
// watched ticker. The text kinds (news, disclosure, report) score a fetched
// item against the user's thresholds and phrase the message through the LLM
// manager; chart and flow are numeric over market data. Item retrieval is
// stubbed deterministically so runs are reproducible without vendor feeds.
package analysis

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/stock-signal-fabric/internal/adapter/llm"
	"github.com/fairyhunter13/stock-signal-fabric/internal/domain"
	"github.com/fairyhunter13/stock-signal-fabric/internal/marketclock"
)

// Scores is the per-item relevance triple checked against user thresholds.
type Scores struct {
	Similarity float64 `json:"similarity"`
	Impact     float64 `json:"impact"`
	Relevance  float64 `json:"relevance"`
}

// scoreFor derives a stable score triple from the kind, ticker and KST date.
// Same inputs on the same day produce the same scores.
func scoreFor(kind domain.ServiceKind, stockCode string, at time.Time) Scores {
	day := at.In(marketclock.KST).Format("2006-01-02")
	sum := sha256.Sum256([]byte(string(kind) + "|" + stockCode + "|" + day))
	f := func(off int) float64 {
		v := binary.BigEndian.Uint32(sum[off : off+4])
		return float64(v) / float64(^uint32(0))
	}
	return Scores{Similarity: f(0), Impact: f(4), Relevance: f(8)}
}

func (s Scores) passes(t domain.Thresholds) bool {
	return s.Similarity >= t.Similarity && s.Impact >= t.Impact && s.Relevance >= t.Relevance
}

// Text analyzes one of the text-item kinds. The item score gates emission;
// the user's chosen LLM phrases the message.
type Text struct {
	kind domain.ServiceKind
	llm  *llm.Manager
	now  func() time.Time
}

// NewText builds a Text analyzer for kind. Valid kinds are news, disclosure
// and report.
func NewText(kind domain.ServiceKind, mgr *llm.Manager) *Text {
	return &Text{kind: kind, llm: mgr, now: time.Now}
}

// Analyze fetches today's item for stockCode, scores it and emits at most
// one signal when every score clears the user's threshold.
func (t *Text) Analyze(ctx domain.Context, cfg domain.UserConfig, stockCode string) ([]domain.Signal, error) {
	now := t.now()
	scores := scoreFor(t.kind, stockCode, now)
	if !scores.passes(cfg.Thresholds) {
		return nil, nil
	}
	prompt := fmt.Sprintf(
		"Summarize today's %s item for stock %s in one sentence for an investor alert. "+
			"Scores: similarity %.2f, impact %.2f, relevance %.2f.",
		t.kind, stockCode, scores.Similarity, scores.Impact, scores.Relevance)
	msg, err := t.llm.Generate(ctx, cfg.LLMChoice, prompt, domain.GenerateParams{MaxTokens: 256, Temperature: 0.2})
	if err != nil {
		return nil, fmt.Errorf("analyze %s %s: %w", t.kind, stockCode, err)
	}
	payload, _ := json.Marshal(scores)
	return []domain.Signal{{
		ID:        uuid.NewString(),
		StockCode: stockCode,
		Kind:      t.kind,
		EmittedAt: now,
		Message:   msg,
		Payload:   payload,
	}}, nil
}

// Chart detects short/long moving-average crossovers over recent history.
type Chart struct {
	source    domain.DataSourceAdapter
	shortSpan int
	longSpan  int
	now       func() time.Time
}

// NewChart builds a Chart analyzer over source with 5/20 day spans.
func NewChart(source domain.DataSourceAdapter) *Chart {
	return &Chart{source: source, shortSpan: 5, longSpan: 20, now: time.Now}
}

type chartPayload struct {
	ShortSMA float64 `json:"short_sma"`
	LongSMA  float64 `json:"long_sma"`
	Kind     string  `json:"cross"`
}

// Analyze pulls enough bars for the long span plus one and emits a signal
// when the short average crossed the long one on the latest bar.
func (c *Chart) Analyze(ctx domain.Context, cfg domain.UserConfig, stockCode string) ([]domain.Signal, error) {
	now := c.now()
	start := now.Add(-time.Duration(c.longSpan*2+7) * 24 * time.Hour)
	bars, err := c.source.FetchHistory(ctx, stockCode, start, now)
	if err != nil {
		return nil, fmt.Errorf("analyze chart %s: %w", stockCode, err)
	}
	if len(bars) < c.longSpan+1 {
		return nil, nil
	}
	shortNow := sma(bars, c.shortSpan, 0)
	longNow := sma(bars, c.longSpan, 0)
	shortPrev := sma(bars, c.shortSpan, 1)
	longPrev := sma(bars, c.longSpan, 1)

	var cross string
	switch {
	case shortPrev <= longPrev && shortNow > longNow:
		cross = "golden"
	case shortPrev >= longPrev && shortNow < longNow:
		cross = "dead"
	default:
		return nil, nil
	}
	payload, _ := json.Marshal(chartPayload{ShortSMA: shortNow, LongSMA: longNow, Kind: cross})
	msg := fmt.Sprintf("%s: %d/%d %s cross (%.2f / %.2f)",
		stockCode, c.shortSpan, c.longSpan, cross, shortNow, longNow)
	return []domain.Signal{{
		ID:        uuid.NewString(),
		StockCode: stockCode,
		Kind:      domain.ServiceChart,
		EmittedAt: now,
		Message:   msg,
		Payload:   payload,
	}}, nil
}

// sma averages the closes of the n bars ending `back` bars before the last.
func sma(bars []domain.Bar, n, back int) float64 {
	end := len(bars) - back
	var sum float64
	for _, b := range bars[end-n : end] {
		sum += b.Close
	}
	return sum / float64(n)
}

// TickReader exposes the recent tick window the flow stream has collected
// for one stock. The flow worker's stream lifecycle implements it.
type TickReader interface {
	RecentTicks(stockCode string) []domain.TickMessage
}

// Flow flags volume surges in the live tick window.
type Flow struct {
	ticks TickReader
	// surgeRatio is how many times the window-average volume the latest
	// tick must carry to count as a surge.
	surgeRatio float64
	now        func() time.Time
}

// NewFlow builds a Flow analyzer over the given tick window.
func NewFlow(ticks TickReader) *Flow {
	return &Flow{ticks: ticks, surgeRatio: 3, now: time.Now}
}

type flowPayload struct {
	LatestVolume int64   `json:"latest_volume"`
	MeanVolume   float64 `json:"mean_volume"`
	Ratio        float64 `json:"ratio"`
}

// Analyze compares the latest tick volume against the window mean and emits
// a surge signal when the ratio clears the configured multiple.
func (f *Flow) Analyze(_ domain.Context, cfg domain.UserConfig, stockCode string) ([]domain.Signal, error) {
	window := f.ticks.RecentTicks(stockCode)
	if len(window) < 2 {
		return nil, nil
	}
	latest := window[len(window)-1]
	var sum int64
	for _, tk := range window[:len(window)-1] {
		sum += tk.Volume
	}
	mean := float64(sum) / float64(len(window)-1)
	if mean <= 0 {
		return nil, nil
	}
	ratio := float64(latest.Volume) / mean
	if ratio < f.surgeRatio {
		return nil, nil
	}
	payload, _ := json.Marshal(flowPayload{LatestVolume: latest.Volume, MeanVolume: mean, Ratio: ratio})
	msg := fmt.Sprintf("%s: volume surge x%.1f at %.0f", stockCode, ratio, latest.Price)
	return []domain.Signal{{
		ID:        uuid.NewString(),
		StockCode: stockCode,
		Kind:      domain.ServiceFlow,
		EmittedAt: f.now(),
		Message:   msg,
		Payload:   payload,
	}}, nil
}

// ForKind returns the analyzer a worker of the given kind runs. The user
// service has no pipeline and returns nil.
func ForKind(kind domain.ServiceKind, mgr *llm.Manager, source domain.DataSourceAdapter, ticks TickReader) domain.Analyzer {
	switch kind {
	case domain.ServiceNews, domain.ServiceDisclosure, domain.ServiceReport:
		return NewText(kind, mgr)
	case domain.ServiceChart:
		return NewChart(source)
	case domain.ServiceFlow:
		return NewFlow(ticks)
	default:
		return nil
	}
}
