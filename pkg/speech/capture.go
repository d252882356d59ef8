package speech

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/voxhire/voxhire/pkg/clock"
)

// Capture gates recognition results while the recruiter is speaking. Pause
// takes effect immediately; Resume waits out a grace period so the tail of
// the recruiter's own audio is not transcribed back as candidate speech.
type Capture struct {
	mu      sync.Mutex
	paused  bool
	pending clock.Timer

	clk    clock.Clock
	grace  time.Duration
	sink   func(Event)
	logger *slog.Logger
}

// DefaultResumeGrace is how long Resume waits before results flow again.
const DefaultResumeGrace = 400 * time.Millisecond

func NewCapture(clk clock.Clock, grace time.Duration, sink func(Event), logger *slog.Logger) *Capture {
	if clk == nil {
		clk = clock.Real()
	}
	if grace <= 0 {
		grace = DefaultResumeGrace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Capture{
		clk:    clk,
		grace:  grace,
		sink:   sink,
		logger: logger,
	}
}

// Pause stops result delivery immediately and cancels any pending resume.
func (c *Capture) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
	c.paused = true
}

// Resume schedules result delivery to restart after the grace period. A
// Pause during the grace window wins.
func (c *Capture) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.paused {
		return
	}
	if c.pending != nil {
		c.pending.Stop()
	}
	c.pending = c.clk.AfterFunc(c.grace, func() {
		c.mu.Lock()
		c.paused = false
		c.pending = nil
		c.mu.Unlock()
	})
}

// Paused reports whether results are currently being dropped.
func (c *Capture) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Deliver forwards a recognition event unless capture is paused.
func (c *Capture) Deliver(ev Event) {
	c.mu.Lock()
	paused := c.paused
	c.mu.Unlock()
	if paused {
		c.logger.Debug("dropping recognition event while paused", "final", ev.Final)
		return
	}
	if c.sink != nil {
		c.sink(ev)
	}
}

// FilterError decides what to do with a recognizer error. Recoverable
// conditions are logged and swallowed so the stream can be restarted.
func (c *Capture) FilterError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNoSpeech) || errors.Is(err, ErrAborted) {
		c.logger.Debug("recoverable recognizer condition", "err", err)
		return nil
	}
	return err
}
