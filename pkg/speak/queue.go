package speak

import (
	"context"
	"log/slog"
	"sync"

	"github.com/voxhire/voxhire/pkg/metrics"
)

// StateListener observes queue activity: speech starting when the queue goes
// from empty to busy, speech ending when it drains naturally.
type StateListener interface {
	SpeechStarted()
	// SpeechEnded fires only on natural drain, never on Cancel.
	SpeechEnded()
	UnitSpoken(unit Unit, err error)
}

// Queue plays units strictly in order, one at a time. A failed unit is
// skipped and playback continues with the next.
type Queue struct {
	mu        sync.Mutex
	items     []Unit
	busy      bool
	cancelled bool
	cancel    context.CancelFunc
	shutdown  bool
	nextID    uint64

	synth    Synthesizer
	listener StateListener
	observer metrics.Observer
	logger   *slog.Logger
	wg       sync.WaitGroup
}

func NewQueue(synth Synthesizer, listener StateListener, observer metrics.Observer, logger *slog.Logger) *Queue {
	if observer == nil {
		observer = metrics.NoopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		synth:    synth,
		listener: listener,
		observer: observer,
		logger:   logger,
	}
}

// Enqueue adds a unit to the tail of the queue, starting playback if idle.
func (q *Queue) Enqueue(unit Unit) {
	q.mu.Lock()
	if q.shutdown {
		q.mu.Unlock()
		return
	}
	q.nextID++
	unit.ID = q.nextID
	q.items = append(q.items, unit)
	start := !q.busy
	if start {
		q.busy = true
	}
	q.mu.Unlock()

	if start {
		if q.listener != nil {
			q.listener.SpeechStarted()
		}
		q.wg.Add(1)
		go q.run()
	}
}

// Cancel stops current playback and drops all pending units. It does not
// fire SpeechEnded; the caller decides what state follows a cancel.
func (q *Queue) Cancel() {
	q.mu.Lock()
	q.items = nil
	// The worker checks this flag so a cancel never reads as a natural
	// drain, even when it lands before the first unit is dequeued.
	q.cancelled = q.busy
	cancel := q.cancel
	q.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Busy reports whether a unit is playing or pending.
func (q *Queue) Busy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.busy
}

func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close cancels playback and waits for the worker to exit.
func (q *Queue) Close() {
	q.mu.Lock()
	q.shutdown = true
	q.items = nil
	cancel := q.cancel
	q.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	q.wg.Wait()
}

func (q *Queue) run() {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		if q.shutdown {
			q.busy = false
			q.cancelled = false
			q.cancel = nil
			q.mu.Unlock()
			return
		}
		if q.cancelled {
			q.cancelled = false
			restart := len(q.items) > 0
			if !restart {
				q.busy = false
				q.cancel = nil
			}
			q.mu.Unlock()
			if !restart {
				return
			}
			// Units enqueued after the cancel belong to a new burst.
			if q.listener != nil {
				q.listener.SpeechStarted()
			}
			continue
		}
		if len(q.items) == 0 {
			q.busy = false
			q.cancel = nil
			q.mu.Unlock()
			if q.listener != nil {
				q.listener.SpeechEnded()
			}
			return
		}
		unit := q.items[0]
		q.items = q.items[1:]
		ctx, cancel := context.WithCancel(context.Background())
		q.cancel = cancel
		q.mu.Unlock()

		err := q.synth.Speak(ctx, unit)
		interrupted := ctx.Err() != nil
		cancel()

		q.observer.Record(metrics.Event{
			Name:  metrics.EventSpeakUnit,
			Value: float64(len(unit.Text)),
			Tags:  map[string]string{"provider": q.synth.Name()},
		})
		if err != nil && !interrupted {
			q.logger.Warn("unit synthesis failed, skipping",
				"unit_id", unit.ID, "err", err)
		}
		if q.listener != nil {
			q.listener.UnitSpoken(unit, err)
		}
	}
}
