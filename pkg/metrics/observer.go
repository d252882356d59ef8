package metrics

import "time"

// Event is one engine measurement or occurrence.
type Event struct {
	Name   string
	Time   time.Time
	Value  float64
	Tags   map[string]string
	Fields map[string]any
}

// Well-known event names emitted by the interview engine.
const (
	EventTurnRequest     = "turn_request"
	EventTurnDenied      = "turn_denied"
	EventTurnSuccess     = "turn_success"
	EventTurnFailure     = "turn_failure"
	EventRateLimit       = "rate_limit"
	EventUtteranceCommit = "utterance_commit"
	EventSpeakUnit       = "speak_unit"
	EventPersistDrop     = "persist_drop"
)

type Observer interface {
	Record(ev Event)
}

type Flusher interface {
	Flush() error
}

type NoopObserver struct{}

func (NoopObserver) Record(Event) {}
