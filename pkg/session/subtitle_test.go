package session

import (
	"testing"
	"time"
)

func TestSubtitleForClampsDuration(t *testing.T) {
	short := SubtitleFor("Hi.")
	if short.Duration != 1500*time.Millisecond {
		t.Fatalf("short duration = %v, want 1.5s", short.Duration)
	}

	long := SubtitleFor("one two three four five six seven eight nine ten " +
		"eleven twelve thirteen fourteen fifteen sixteen seventeen eighteen " +
		"nineteen twenty twentyone twentytwo twentythree twentyfour")
	if long.Duration != 8*time.Second {
		t.Fatalf("long duration = %v, want 8s", long.Duration)
	}

	mid := SubtitleFor("could you walk me through it")
	if mid.Duration != 6*350*time.Millisecond {
		t.Fatalf("mid duration = %v, want %v", mid.Duration, 6*350*time.Millisecond)
	}
}
