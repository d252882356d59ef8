package engine

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/voxhire/voxhire/pkg/clock"
	"github.com/voxhire/voxhire/pkg/logging"
	"github.com/voxhire/voxhire/pkg/metrics"
	"github.com/voxhire/voxhire/pkg/orchestrator"
	"github.com/voxhire/voxhire/pkg/persist"
	"github.com/voxhire/voxhire/pkg/redact"
	"github.com/voxhire/voxhire/pkg/session"
	"github.com/voxhire/voxhire/pkg/transport"
)

// Engine owns the process-wide pieces shared by all interview rooms: the
// metrics pipeline, the persistence writer and the provider configuration.
type Engine struct {
	cfg      Config
	logger   *slog.Logger
	observer metrics.Observer
	writer   *persist.Writer

	closers []io.Closer
}

func New(cfg Config, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	redact.SetEnabled(cfg.Privacy.RedactPII)

	e := &Engine{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "engine"),
	}

	e.observer = buildObserver(cfg.Observability, logger)

	store, err := buildStore(cfg.Persistence)
	if err != nil {
		return nil, err
	}
	e.writer = persist.NewWriter(store,
		time.Duration(cfg.Persistence.FlushIntervalMS)*time.Millisecond,
		e.observer, logger)

	return e, nil
}

func buildObserver(cfg ObservabilityConfig, logger *slog.Logger) metrics.Observer {
	switch cfg.Metrics {
	case "memory":
		return metrics.NewAsyncObserver(metrics.NewMemoryObserver(), 256)
	case "jsonl":
		w := io.Writer(os.Stdout)
		if cfg.MetricsPath != "" {
			if f, err := os.OpenFile(cfg.MetricsPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
				w = f
			} else {
				logger.Warn("cannot open metrics file, falling back to stdout", "err", err)
			}
		}
		return metrics.NewAsyncObserver(metrics.NewJSONLObserver(w), 256)
	default:
		return metrics.NoopObserver{}
	}
}

func buildStore(cfg PersistenceConfig) (persist.Store, error) {
	switch cfg.Driver {
	case "sqlite":
		return persist.NewSQLiteStore(cfg.Path)
	default:
		return persist.NewMemoryStore(), nil
	}
}

// Handler returns the websocket handler that opens a room per connection.
func (e *Engine) Handler() http.Handler {
	return transport.NewServer(e.openRoom, e.logger)
}

// Close flushes pending snapshots and releases shared resources.
func (e *Engine) Close() error {
	err := e.writer.Close()
	if a, ok := e.observer.(*metrics.AsyncObserver); ok {
		a.Close()
	}
	for _, c := range e.closers {
		_ = c.Close()
	}
	return err
}

func (e *Engine) openRoom(conn *transport.Conn, r *http.Request) (transport.Handler, error) {
	q := r.URL.Query()
	params := session.Params{
		Role:      q.Get("role"),
		Seniority: q.Get("seniority"),
		Company:   q.Get("company"),
		Language:  q.Get("language"),
	}
	if params.Role == "" {
		params.Role = "software engineer"
	}
	if params.Seniority == "" {
		params.Seniority = "mid-level"
	}

	room, err := newRoom(e, conn, params, clock.Real())
	if err != nil {
		return nil, err
	}
	e.logger.Info("room opened",
		"session_id", room.sess.ID(),
		"role", params.Role,
		"seniority", params.Seniority)
	return room, nil
}

// interviewConfig converts the millisecond config knobs into the
// orchestrator's durations.
func (e *Engine) interviewConfig() orchestrator.Config {
	iv := e.cfg.Interview
	return orchestrator.Config{
		MinWords:          iv.MinWords,
		MinChars:          iv.MinChars,
		DuplicateWindow:   time.Duration(iv.DuplicateWindowMS) * time.Millisecond,
		RateLimitCooldown: time.Duration(iv.RateLimitCooldownMS) * time.Millisecond,
		FailureCooldown:   time.Duration(iv.FailureCooldownMS) * time.Millisecond,
	}
}

type starter interface {
	Start(ctx context.Context) error
}
