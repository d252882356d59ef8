package speech

import (
	"strings"
	"time"
)

// ManualInput accepts typed candidate answers and turns them into final
// recognition events, bypassing the audio pipeline.
type ManualInput struct {
	out chan Event
	now func() time.Time
}

func NewManualInput(now func() time.Time) *ManualInput {
	if now == nil {
		now = time.Now
	}
	return &ManualInput{
		out: make(chan Event, 8),
		now: now,
	}
}

// Submit queues text as a final recognition event. Blank input is ignored.
// Returns false when the buffer is full.
func (m *ManualInput) Submit(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	select {
	case m.out <- Event{Text: text, Final: true, At: m.now()}:
		return true
	default:
		return false
	}
}

func (m *ManualInput) Events() <-chan Event {
	return m.out
}
