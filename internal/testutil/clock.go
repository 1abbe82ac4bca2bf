package testutil

import (
	"sync"
	"time"
)

// StubClock returns a fixed time that tests can move forward.
type StubClock struct {
	mu sync.Mutex
	t  time.Time
}

// NewStubClock returns a clock frozen at t.
func NewStubClock(t time.Time) *StubClock {
	return &StubClock{t: t}
}

func (c *StubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance moves the clock forward by d.
func (c *StubClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// Set moves the clock to t.
func (c *StubClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}
