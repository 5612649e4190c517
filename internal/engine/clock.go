package engine

import "time"

// Clock supplies the current time for timestamps, trace durations and
// frequency windows.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock returns the same instant until Set or Advance is called.
// Not safe for concurrent mutation.
type FixedClock struct {
	t time.Time
}

// NewFixedClock creates a clock stopped at t.
func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{t: t}
}

// Now implements Clock.
func (c *FixedClock) Now() time.Time { return c.t }

// Set moves the clock to t.
func (c *FixedClock) Set(t time.Time) { c.t = t }

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) { c.t = c.t.Add(d) }
