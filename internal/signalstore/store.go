// Package signalstore keeps each worker's most recent signals in memory.
package signalstore

import (
	"sync"

	"github.com/fairyhunter13/stock-signal-fabric/internal/domain"
)

// DefaultCapacity is the ring size used by every worker.
const DefaultCapacity = 100

// Store is a bounded ring of signals plus a latest slot. Writes come from a
// single pipeline at a time; reads may be concurrent. A mutex is plenty at
// the fabric's emission rate.
type Store struct {
	mu       sync.RWMutex
	capacity int
	buf      []domain.Signal
	latest   *domain.Signal
}

// New returns a Store with the given capacity; non-positive capacities fall
// back to DefaultCapacity.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{capacity: capacity, buf: make([]domain.Signal, 0, capacity)}
}

// Append records a signal, overwriting the oldest entry when the ring is
// full. The latest slot is overwritten unconditionally.
func (s *Store) Append(sig domain.Signal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) == s.capacity {
		copy(s.buf, s.buf[1:])
		s.buf[len(s.buf)-1] = sig
	} else {
		s.buf = append(s.buf, sig)
	}
	cp := sig
	s.latest = &cp
}

// Recent returns a copy of the buffered signals in insertion order,
// most-recent-last.
func (s *Store) Recent() []domain.Signal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Signal, len(s.buf))
	copy(out, s.buf)
	return out
}

// Latest returns the most recently appended signal, if any.
func (s *Store) Latest() (domain.Signal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return domain.Signal{}, false
	}
	return *s.latest, true
}

// Len returns the number of buffered signals.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.buf)
}
