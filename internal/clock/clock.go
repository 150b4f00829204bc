// Package clock provides the time sources used to order cache recency.
//
// Only monotonicity matters: timestamps never decrease, and later events
// usually get larger values. Wall-clock accuracy is irrelevant.
package clock

import (
	"sync"
	"time"
)

// Clock returns non-decreasing timestamps.
type Clock interface {
	Now() int64
}

// Logical is a counter-based clock. Every call to Now returns a value
// strictly greater than the previous one, so no two events tie.
type Logical struct {
	mu      sync.Mutex
	counter int64
}

// NewLogical creates a logical clock starting at zero.
func NewLogical() *Logical {
	return &Logical{}
}

// Now increments the clock and returns the new value.
func (c *Logical) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counter++
	return c.counter
}

// Current returns the last value handed out without advancing the clock.
func (c *Logical) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counter
}

// Monotonic reports wall-clock nanoseconds, clamped so that a clock step
// backwards never produces a smaller timestamp. Consecutive calls within the
// clock's resolution may return equal values.
type Monotonic struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewMonotonic creates a wall-clock backed time source.
func NewMonotonic() *Monotonic {
	return &Monotonic{now: time.Now}
}

// Now returns the current timestamp in nanoseconds.
func (c *Monotonic) Now() int64 {
	t := c.now().UnixNano()

	c.mu.Lock()
	defer c.mu.Unlock()
	if t < c.last {
		t = c.last
	}
	c.last = t
	return t
}
