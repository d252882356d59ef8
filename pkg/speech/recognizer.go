package speech

import (
	"context"
	"errors"
	"time"
)

// Recoverable recognizer outcomes. Providers map their own signalling onto
// these so the capture layer can treat them as routine restarts instead of
// surfacing them to the room.
var (
	ErrNoSpeech = errors.New("speech: no speech detected")
	ErrAborted  = errors.New("speech: recognition aborted")
)

// Event is one recognition result. Interim events carry partial text and may
// be revised; a Final event closes the fragment.
type Event struct {
	Text  string
	Final bool
	At    time.Time
}

// Stream is a live speech recognition session.
type Stream interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
	// Events delivers recognition results until the stream stops.
	Events() <-chan Event
	// Errs delivers fatal stream errors. Recoverable conditions are
	// reported as ErrNoSpeech or ErrAborted.
	Errs() <-chan error
}

// AudioSink accepts raw audio for recognition. Streams that pull audio
// themselves do not implement it.
type AudioSink interface {
	WriteAudio(p []byte) error
}
