package resilience

import (
	"sync"
	"time"
)

// Cooldown is a deadline gate: after a failure it is armed for a duration and
// denies every request until the deadline passes. Unlike a counting breaker it
// opens on the first arm; the caller decides the duration per failure class.
type Cooldown struct {
	mu    sync.Mutex
	until time.Time
	now   func() time.Time
}

// NewCooldown builds a gate; now may be nil to use time.Now.
func NewCooldown(now func() time.Time) *Cooldown {
	if now == nil {
		now = time.Now
	}
	return &Cooldown{now: now}
}

// Arm blocks requests until now+d. A shorter rearm never truncates an
// already-armed longer deadline.
func (c *Cooldown) Arm(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	deadline := c.now().Add(d)
	if deadline.After(c.until) {
		c.until = deadline
	}
}

// Allow reports whether the gate is currently open.
func (c *Cooldown) Allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.now().Before(c.until)
}

// Remaining returns how long until requests are allowed again (zero if open).
func (c *Cooldown) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r := c.until.Sub(c.now()); r > 0 {
		return r
	}
	return 0
}

// Clear opens the gate immediately.
func (c *Cooldown) Clear() {
	c.mu.Lock()
	c.until = time.Time{}
	c.mu.Unlock()
}
