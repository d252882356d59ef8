package session

import (
	"strings"
	"time"
)

// Subtitle is one recruiter caption paired with a display duration.
type Subtitle struct {
	Text     string
	Duration time.Duration
}

// SubtitleFor estimates how long a caption should stay visible based on
// word count, clamped to a readable range.
func SubtitleFor(text string) Subtitle {
	words := len(strings.Fields(text))
	d := time.Duration(words) * 350 * time.Millisecond
	if d < 1500*time.Millisecond {
		d = 1500 * time.Millisecond
	}
	if d > 8*time.Second {
		d = 8 * time.Second
	}
	return Subtitle{Text: text, Duration: d}
}
