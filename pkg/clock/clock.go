package clock

import "time"

// Timer is the controllable half of a scheduled callback.
type Timer interface {
	Stop() bool
	Reset(d time.Duration) bool
}

// Clock abstracts wall time and timer scheduling so components that debounce
// or cool down can be tested without sleeping.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, fn func()) Timer {
	return realTimer{time.AfterFunc(d, fn)}
}

type realTimer struct{ t *time.Timer }

func (r realTimer) Stop() bool                 { return r.t.Stop() }
func (r realTimer) Reset(d time.Duration) bool { return r.t.Reset(d) }

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }
