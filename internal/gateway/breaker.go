package gateway

import (
	"sync"
	"time"
)

// BreakerState is the admission state of one backend's circuit breaker.
type BreakerState int

const (
	// StateClosed admits every request.
	StateClosed BreakerState = iota
	// StateOpen refuses admission until the reset timeout elapses.
	StateOpen
	// StateHalfOpen admits a probe request after the reset timeout.
	StateHalfOpen
)

// String returns the lowercase state name used in admin responses and logs.
func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker is a per-service circuit breaker. Transport failures and upstream
// 5xx responses count as failures; any response below 500 is a success.
// fail max consecutive failures open the circuit; after the reset timeout
// the next Allow admits a probe, whose outcome closes or re-opens it.
type Breaker struct {
	mu          sync.Mutex
	failMax     int
	resetAfter  time.Duration
	state       BreakerState
	probing     bool
	failures    int
	lastFailure time.Time
	now         func() time.Time
}

// NewBreaker builds a closed breaker.
func NewBreaker(failMax int, resetAfter time.Duration) *Breaker {
	if failMax <= 0 {
		failMax = 3
	}
	return &Breaker{failMax: failMax, resetAfter: resetAfter, now: time.Now}
}

// Allow reports whether a request may proceed. An open breaker whose reset
// timeout has elapsed transitions to half-open and admits a single probe;
// further requests are refused until the probe's outcome lands.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateClosed:
		return true
	case StateHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	case StateOpen:
		if b.now().Sub(b.lastFailure) >= b.resetAfter {
			b.state = StateHalfOpen
			b.probing = true
			return true
		}
		return false
	default:
		return false
	}
}

// Success records a response below 500. The failure streak resets; a
// half-open probe success closes the circuit.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	if b.state == StateHalfOpen {
		b.state = StateClosed
	}
	b.probing = false
}

// Failure records a transport failure or upstream 5xx. The circuit opens
// when the streak reaches failMax; a half-open probe failure re-opens it
// immediately.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.lastFailure = b.now()
	if b.state == StateHalfOpen || b.failures >= b.failMax {
		b.state = StateOpen
	}
	b.probing = false
}

// State returns the current admission state without transitioning it.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the current consecutive-failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Reset forces the breaker closed and clears counters. Administrative.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.probing = false
	b.failures = 0
	b.lastFailure = time.Time{}
}
