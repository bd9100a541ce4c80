// Package datasource provides test and local implementations of the
// market-data ports. Real exchange clients live outside this repository and
// satisfy the same interfaces.
package datasource

import (
	"fmt"
	"sync"
	"time"

	"github.com/fairyhunter13/stock-signal-fabric/internal/domain"
)

// Fake is an in-memory DataSourceAdapter. Tests push ticks through Emit;
// FetchHistory synthesizes a flat candle series.
type Fake struct {
	mu          sync.Mutex
	subscribers map[string]func(domain.TickMessage)
	SubscribeN  int
	// UnsubscribeN counts teardown calls so lifecycle tests can assert no
	// leaked subscriptions.
	UnsubscribeN int
	FailWith     error
}

// NewFake returns an empty Fake.
func NewFake() *Fake {
	return &Fake{subscribers: make(map[string]func(domain.TickMessage))}
}

// FetchHistory returns one bar per day in [start, end).
func (f *Fake) FetchHistory(_ domain.Context, stockCode string, start, end time.Time) ([]domain.Bar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return nil, domain.WrapAdapter("datasource", f.FailWith)
	}
	var bars []domain.Bar
	for d := start; d.Before(end); d = d.Add(24 * time.Hour) {
		bars = append(bars, domain.Bar{
			StockCode: stockCode, At: d,
			Open: 100, High: 105, Low: 95, Close: 102, Volume: 10000,
		})
	}
	return bars, nil
}

// Subscribe registers onMessage for stockCode.
func (f *Fake) Subscribe(_ domain.Context, stockCode string, onMessage func(domain.TickMessage)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return domain.WrapAdapter("datasource", f.FailWith)
	}
	f.subscribers[stockCode] = onMessage
	f.SubscribeN++
	return nil
}

// Unsubscribe removes the stockCode subscription.
func (f *Fake) Unsubscribe(_ domain.Context, stockCode string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subscribers, stockCode)
	f.UnsubscribeN++
	return nil
}

// Emit delivers a tick to the stockCode subscriber, if any.
func (f *Fake) Emit(msg domain.TickMessage) {
	f.mu.Lock()
	cb := f.subscribers[msg.StockCode]
	f.mu.Unlock()
	if cb != nil {
		cb(msg)
	}
}

// ActiveSubscriptions returns the currently subscribed codes.
func (f *Fake) ActiveSubscriptions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers)
}

// StaticToken is a TokenSource with a fixed lifetime, renewed on demand.
// NowFunc lets tests anchor expiries to a simulated clock.
type StaticToken struct {
	mu       sync.Mutex
	lifetime time.Duration
	issued   int
	NowFunc  func() time.Time
}

// NewStaticToken returns a TokenSource whose tokens live for lifetime.
func NewStaticToken(lifetime time.Duration) *StaticToken {
	return &StaticToken{lifetime: lifetime}
}

// ApprovalToken mints a fresh token.
func (s *StaticToken) ApprovalToken(_ domain.Context) (string, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	now := time.Now()
	if s.NowFunc != nil {
		now = s.NowFunc()
	}
	return fmt.Sprintf("approval-%d", s.issued), now.Add(s.lifetime), nil
}

// Issued returns how many tokens have been minted.
func (s *StaticToken) Issued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issued
}
