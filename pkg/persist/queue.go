package persist

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/voxhire/voxhire/pkg/metrics"
	"github.com/voxhire/voxhire/pkg/resilience"
)

// Writer persists snapshots off the turn path. Offer never blocks; when the
// buffer is full the oldest pending snapshot for that session is simply
// superseded on the next flush, since Save overwrites by session id.
type Writer struct {
	store    Store
	interval time.Duration
	retry    resilience.RetryPolicy
	observer metrics.Observer
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]Snapshot
	wake    chan struct{}
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

func NewWriter(store Store, interval time.Duration, observer metrics.Observer, logger *slog.Logger) *Writer {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if observer == nil {
		observer = metrics.NoopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	w := &Writer{
		store:    store,
		interval: interval,
		retry:    resilience.NewRetryPolicy(1, 100*time.Millisecond),
		observer: observer,
		logger:   logger,
		pending:  make(map[string]Snapshot),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w
}

// Offer queues a snapshot for the next flush. Later offers for the same
// session replace earlier unflushed ones.
func (w *Writer) Offer(snap Snapshot) {
	w.mu.Lock()
	w.pending[snap.SessionID] = snap
	w.mu.Unlock()
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Close flushes whatever is pending and stops the writer.
func (w *Writer) Close() error {
	w.once.Do(func() { close(w.done) })
	w.wg.Wait()
	w.flush()
	return w.store.Close()
}

func (w *Writer) loop() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.flush()
		case <-w.wake:
			w.flush()
		}
	}
}

func (w *Writer) flush() {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	batch := w.pending
	w.pending = make(map[string]Snapshot)
	w.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for id, snap := range batch {
		err := w.retry.Do(func() error {
			return w.store.Save(ctx, snap)
		})
		if err != nil {
			w.logger.Warn("snapshot save failed", "session_id", id, "err", err)
			w.observer.Record(metrics.Event{
				Name: metrics.EventPersistDrop,
				Tags: map[string]string{"session_id": id},
			})
		}
	}
}
