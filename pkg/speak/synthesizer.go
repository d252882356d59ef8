package speak

import "context"

// Unit is one sentence queued for synthesis and playback.
type Unit struct {
	ID       uint64
	Text     string
	Final    bool
	TurnID   uint64
	Metadata map[string]string
}

// Result reports the outcome of synthesizing and playing one unit.
type Result struct {
	Unit Unit
	Err  error
}

// Synthesizer turns one unit of text into played audio. Speak returns when
// the unit has finished playing or failed.
type Synthesizer interface {
	Name() string
	Speak(ctx context.Context, unit Unit) error
	Close() error
}
