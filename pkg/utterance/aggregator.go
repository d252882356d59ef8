package utterance

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/voxhire/voxhire/pkg/clock"
)

// DefaultSilenceWindow is how long the aggregator waits after the last final
// fragment before committing the buffered utterance.
const DefaultSilenceWindow = 1000 * time.Millisecond

type Config struct {
	SilenceWindow time.Duration
}

// Aggregator collects final recognition fragments into whole utterances. A
// fragment restarts the silence timer; when it fires, the joined text is
// committed downstream. Fragments arriving while the recruiter is speaking
// are discarded.
type Aggregator struct {
	mu    sync.Mutex
	parts []string
	timer clock.Timer

	cfg      Config
	clk      clock.Clock
	speaking func() bool
	commit   func(text string)
	logger   *slog.Logger
}

func New(cfg Config, clk clock.Clock, speaking func() bool, commit func(string), logger *slog.Logger) *Aggregator {
	if cfg.SilenceWindow <= 0 {
		cfg.SilenceWindow = DefaultSilenceWindow
	}
	if clk == nil {
		clk = clock.Real()
	}
	if speaking == nil {
		speaking = func() bool { return false }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		cfg:      cfg,
		clk:      clk,
		speaking: speaking,
		commit:   commit,
		logger:   logger,
	}
}

// AddFinal buffers a final recognition fragment and restarts the silence
// timer. Fragments received while the recruiter is speaking are dropped.
func (a *Aggregator) AddFinal(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if a.speaking() {
		a.logger.Debug("discarding fragment during recruiter speech")
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.parts = append(a.parts, text)
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = a.clk.AfterFunc(a.cfg.SilenceWindow, a.fire)
}

// CommitNow flushes the buffer immediately, bypassing the silence window.
// Used for manual text submissions.
func (a *Aggregator) CommitNow() {
	a.fire()
}

// Reset drops any buffered fragments and cancels the pending timer.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.drop()
}

// Pending returns the buffered text without committing it.
func (a *Aggregator) Pending() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return strings.Join(a.parts, " ")
}

func (a *Aggregator) fire() {
	a.mu.Lock()
	text := strings.Join(a.parts, " ")
	a.drop()
	a.mu.Unlock()

	if text == "" {
		return
	}
	if a.commit != nil {
		a.commit(text)
	}
}

// drop must be called with the mutex held.
func (a *Aggregator) drop() {
	a.parts = nil
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}
