package worker

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/fairyhunter13/stock-signal-fabric/internal/domain"
	"github.com/fairyhunter13/stock-signal-fabric/internal/marketclock"
)

// StreamState is the flow worker's live-subscription state.
type StreamState int

const (
	// StreamOff means no subscription exists and none is wanted.
	StreamOff StreamState = iota
	// StreamSubscribing means subscribe calls are in flight.
	StreamSubscribing
	// StreamSubscribed means every watched ticker is live.
	StreamSubscribed
	// StreamReconnecting means the transport dropped and a retry is
	// scheduled with exponential backoff.
	StreamReconnecting
)

// String returns the lowercase state name for logs and the health surface.
func (s StreamState) String() string {
	switch s {
	case StreamOff:
		return "off"
	case StreamSubscribing:
		return "subscribing"
	case StreamSubscribed:
		return "subscribed"
	case StreamReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

const (
	// maxReconnectDelay caps the backoff schedule.
	maxReconnectDelay = 300 * time.Second
	// tokenRenewMargin renews the approval token before it gets this close
	// to expiry.
	tokenRenewMargin = 5 * time.Minute
	// tickRingCapacity bounds the per-ticker live window.
	tickRingCapacity = 100
)

// tickRing is a bounded per-ticker window of live tick messages.
type tickRing struct {
	buf []domain.TickMessage
}

func (r *tickRing) append(msg domain.TickMessage) {
	if len(r.buf) == tickRingCapacity {
		copy(r.buf, r.buf[1:])
		r.buf = r.buf[:tickRingCapacity-1]
	}
	r.buf = append(r.buf, msg)
}

// StreamLifecycle manages the flow worker's live market-data subscription.
// It is tick-driven: each Tick observes the market phase and moves the
// state machine, so tests step it with a fixed clock and no timers leak.
type StreamLifecycle struct {
	source domain.DataSourceAdapter
	tokens domain.TokenSource
	clock  marketclock.Clock

	mu         sync.Mutex
	state      StreamState
	subscribed []string
	rings      map[string]*tickRing
	token      string
	tokenExp   time.Time
	bo         *backoff.ExponentialBackOff
	nextRetry  time.Time
}

// NewStreamLifecycle builds an Off lifecycle. base seeds the reconnect
// backoff (delay doubles per attempt up to five minutes).
func NewStreamLifecycle(source domain.DataSourceAdapter, tokens domain.TokenSource, clock marketclock.Clock, base time.Duration) *StreamLifecycle {
	if clock == nil {
		clock = marketclock.RealClock{}
	}
	if base <= 0 {
		base = time.Second
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = base
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	bo.MaxInterval = maxReconnectDelay
	bo.MaxElapsedTime = 0
	bo.Reset()
	return &StreamLifecycle{
		source: source,
		tokens: tokens,
		clock:  clock,
		rings:  make(map[string]*tickRing),
		bo:     bo,
	}
}

// State returns the current stream state.
func (l *StreamLifecycle) State() StreamState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// NextRetryAt returns when a reconnect attempt becomes due.
func (l *StreamLifecycle) NextRetryAt() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.nextRetry
}

// RecentTicks returns a snapshot of the live window for stockCode,
// oldest first.
func (l *StreamLifecycle) RecentTicks(stockCode string) []domain.TickMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.rings[stockCode]
	if !ok {
		return nil
	}
	out := make([]domain.TickMessage, len(r.buf))
	copy(out, r.buf)
	return out
}

// Tick drives one state-machine step for the given watched tickers.
// During market hours it subscribes (or retries a due reconnect); outside
// them it tears the subscription down.
func (l *StreamLifecycle) Tick(ctx domain.Context, tickers []string) StreamState {
	now := l.clock.Now()
	phase := marketclock.PhaseAt(now)

	l.mu.Lock()
	state := l.state
	retryDue := !l.nextRetry.IsZero() && !now.Before(l.nextRetry)
	l.mu.Unlock()

	if phase != marketclock.MarketHours {
		if state != StreamOff {
			l.teardown(ctx)
		}
		return l.State()
	}

	switch state {
	case StreamOff:
		l.subscribe(ctx, now, tickers)
	case StreamReconnecting:
		if retryDue {
			l.subscribe(ctx, now, tickers)
		}
	}
	return l.State()
}

// OnDisconnect reports a transport-level drop. The next due Tick during
// market hours retries with backoff.
func (l *StreamLifecycle) OnDisconnect() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StreamOff {
		return
	}
	l.subscribed = nil
	l.scheduleRetryLocked(l.clock.Now())
	slog.Warn("stream disconnected",
		slog.Time("next_retry", l.nextRetry))
}

// subscribe attempts to go live on every ticker.
func (l *StreamLifecycle) subscribe(ctx domain.Context, now time.Time, tickers []string) {
	l.mu.Lock()
	l.state = StreamSubscribing
	l.mu.Unlock()

	if err := l.ensureToken(ctx, now); err != nil {
		slog.Error("approval token refresh failed", slog.Any("error", err))
		l.failSubscribe(ctx, now)
		return
	}

	var live []string
	for _, ticker := range tickers {
		err := l.source.Subscribe(ctx, ticker, func(msg domain.TickMessage) {
			l.appendTick(ticker, msg)
		})
		if err != nil {
			slog.Error("subscribe failed",
				slog.String("stock_code", ticker), slog.Any("error", err))
			for _, t := range live {
				_ = l.source.Unsubscribe(ctx, t)
			}
			l.failSubscribe(ctx, now)
			return
		}
		live = append(live, ticker)
	}

	l.mu.Lock()
	l.state = StreamSubscribed
	l.subscribed = live
	l.nextRetry = time.Time{}
	l.bo.Reset()
	l.mu.Unlock()
	slog.Info("stream subscribed", slog.Int("tickers", len(live)))
}

func (l *StreamLifecycle) failSubscribe(_ domain.Context, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subscribed = nil
	l.scheduleRetryLocked(now)
}

// scheduleRetryLocked moves to Reconnecting with the next backoff delay.
// Caller holds mu.
func (l *StreamLifecycle) scheduleRetryLocked(now time.Time) {
	l.state = StreamReconnecting
	delay := l.bo.NextBackOff()
	if delay < 0 || delay > maxReconnectDelay {
		delay = maxReconnectDelay
	}
	l.nextRetry = now.Add(delay)
}

// teardown unsubscribes everything and parks the lifecycle Off.
func (l *StreamLifecycle) teardown(ctx domain.Context) {
	l.mu.Lock()
	live := l.subscribed
	l.subscribed = nil
	l.state = StreamOff
	l.nextRetry = time.Time{}
	l.bo.Reset()
	l.mu.Unlock()

	for _, ticker := range live {
		if err := l.source.Unsubscribe(ctx, ticker); err != nil {
			slog.Warn("unsubscribe failed",
				slog.String("stock_code", ticker), slog.Any("error", err))
		}
	}
	slog.Info("stream torn down", slog.Int("tickers", len(live)))
}

// ensureToken renews the approval token when absent or expiring within the
// renewal margin.
func (l *StreamLifecycle) ensureToken(ctx domain.Context, now time.Time) error {
	l.mu.Lock()
	fresh := l.token != "" && l.tokenExp.Sub(now) >= tokenRenewMargin
	l.mu.Unlock()
	if fresh {
		return nil
	}
	token, exp, err := l.tokens.ApprovalToken(ctx)
	if err != nil {
		return fmt.Errorf("op=worker.ensureToken: %w", err)
	}
	l.mu.Lock()
	l.token = token
	l.tokenExp = exp
	l.mu.Unlock()
	return nil
}

func (l *StreamLifecycle) appendTick(ticker string, msg domain.TickMessage) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.rings[ticker]
	if !ok {
		r = &tickRing{}
		l.rings[ticker] = r
	}
	r.append(msg)
}
