// Package testutil provides deterministic test doubles shared across
// packages: a fixed clock and an in-memory remote event service.
package testutil

import (
	"sync"
	"time"
)

// Clock is a settable time source for deterministic timestamps.
//
// Thread-safety: all methods are safe for concurrent use.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

// NewClock creates a clock fixed at start.
func NewClock(start time.Time) *Clock {
	return &Clock{t: start}
}

// Now returns the current fixed time. Pass c.Now as the store's clock.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
