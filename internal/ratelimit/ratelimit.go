// Package ratelimit caps how many messages one identity may send per window.
package ratelimit

import (
	"sync"
	"time"

	"github.com/dvloznov/finance-bot/internal/clock"
)

// Defaults used when no limit is configured.
const (
	DefaultLimit  = 30
	DefaultWindow = 60 * time.Second
)

// Limiter decides whether a request from key may proceed.
// Implementations must be safe for concurrent use.
type Limiter interface {
	Allow(key int64) bool
}

// Memory is a sliding-window limiter held in process memory. Each key keeps
// the timestamps of its accepted requests inside the window.
type Memory struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	clock  clock.Clock
	hits   map[int64][]time.Time
}

// NewMemory creates an in-memory limiter allowing limit requests per window.
func NewMemory(limit int, window time.Duration, c clock.Clock) *Memory {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if c == nil {
		c = clock.NewReal(time.UTC)
	}
	return &Memory{
		limit:  limit,
		window: window,
		clock:  c,
		hits:   make(map[int64][]time.Time),
	}
}

// Allow records a request for key and reports whether it is within the limit.
// Rejected requests are not recorded.
func (m *Memory) Allow(key int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	recent := expire(m.hits[key], now.Add(-m.window))
	if len(recent) >= m.limit {
		m.hits[key] = recent
		return false
	}
	m.hits[key] = append(recent, now)
	return true
}

// Sweep drops keys whose hits have all left the window.
func (m *Memory) Sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.clock.Now().Add(-m.window)
	for key, hits := range m.hits {
		if recent := expire(hits, cutoff); len(recent) == 0 {
			delete(m.hits, key)
		} else {
			m.hits[key] = recent
		}
	}
}

// Keys is the number of identities currently tracked.
func (m *Memory) Keys() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.hits)
}

// expire returns the suffix of hits strictly after cutoff. hits is in arrival order.
func expire(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	return hits[i:]
}

var _ Limiter = (*Memory)(nil)
