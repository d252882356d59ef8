package speak

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type scriptedSynth struct {
	mu     sync.Mutex
	spoken []string
	fail   map[string]error
	block  chan struct{}
}

func (s *scriptedSynth) Name() string { return "scripted" }

func (s *scriptedSynth) Speak(ctx context.Context, unit Unit) error {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	s.spoken = append(s.spoken, unit.Text)
	s.mu.Unlock()
	if err, ok := s.fail[unit.Text]; ok {
		return err
	}
	return nil
}

func (s *scriptedSynth) Close() error { return nil }

func (s *scriptedSynth) spokenTexts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.spoken))
	copy(out, s.spoken)
	return out
}

type recordingListener struct {
	mu      sync.Mutex
	started int
	ended   int
	units   []Result
}

func (l *recordingListener) SpeechStarted() {
	l.mu.Lock()
	l.started++
	l.mu.Unlock()
}

func (l *recordingListener) SpeechEnded() {
	l.mu.Lock()
	l.ended++
	l.mu.Unlock()
}

func (l *recordingListener) UnitSpoken(unit Unit, err error) {
	l.mu.Lock()
	l.units = append(l.units, Result{Unit: unit, Err: err})
	l.mu.Unlock()
}

func (l *recordingListener) counts() (started, ended int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.started, l.ended
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestQueuePlaysInOrderAndDrains(t *testing.T) {
	synth := &scriptedSynth{}
	listener := &recordingListener{}
	q := NewQueue(synth, listener, nil, nil)
	defer q.Close()

	q.Enqueue(Unit{Text: "Hello there."})
	q.Enqueue(Unit{Text: "How are you?"})

	waitFor(t, func() bool { started, ended := listener.counts(); return started == 1 && ended == 1 })
	spoken := synth.spokenTexts()
	if len(spoken) != 2 || spoken[0] != "Hello there." || spoken[1] != "How are you?" {
		t.Fatalf("spoken = %v", spoken)
	}
	if q.Busy() {
		t.Fatal("queue still busy after drain")
	}
}

func TestQueueSkipsFailedUnit(t *testing.T) {
	synth := &scriptedSynth{fail: map[string]error{"bad": errors.New("synthesis failed")}}
	listener := &recordingListener{}
	q := NewQueue(synth, listener, nil, nil)
	defer q.Close()

	q.Enqueue(Unit{Text: "bad"})
	q.Enqueue(Unit{Text: "good"})

	waitFor(t, func() bool { _, ended := listener.counts(); return ended == 1 })
	spoken := synth.spokenTexts()
	if len(spoken) != 2 || spoken[1] != "good" {
		t.Fatalf("spoken = %v, want failure skipped and playback continued", spoken)
	}

	listener.mu.Lock()
	defer listener.mu.Unlock()
	if listener.units[0].Err == nil {
		t.Fatal("failed unit reported without error")
	}
	if listener.units[1].Err != nil {
		t.Fatalf("good unit reported error %v", listener.units[1].Err)
	}
}

func TestCancelDropsPendingWithoutSpeechEnded(t *testing.T) {
	synth := &scriptedSynth{block: make(chan struct{})}
	listener := &recordingListener{}
	q := NewQueue(synth, listener, nil, nil)
	defer q.Close()

	q.Enqueue(Unit{Text: "long running"})
	q.Enqueue(Unit{Text: "never played"})
	waitFor(t, func() bool { started, _ := listener.counts(); return started == 1 })

	q.Cancel()
	waitFor(t, func() bool { return !q.Busy() })

	_, ended := listener.counts()
	if ended != 0 {
		t.Fatal("SpeechEnded fired on cancel")
	}
	for _, text := range synth.spokenTexts() {
		if text == "never played" {
			t.Fatal("pending unit played after cancel")
		}
	}
}

func TestCancelBeforeFirstDequeueStaysSilent(t *testing.T) {
	// Race the cancel against the worker picking up the first unit. With a
	// blocking synthesizer neither interleaving may report a natural drain.
	for i := 0; i < 50; i++ {
		synth := &scriptedSynth{block: make(chan struct{})}
		listener := &recordingListener{}
		q := NewQueue(synth, listener, nil, nil)

		q.Enqueue(Unit{Text: "racing"})
		q.Cancel()
		waitFor(t, func() bool { return !q.Busy() })

		if _, ended := listener.counts(); ended != 0 {
			t.Fatalf("SpeechEnded fired on cancel (iteration %d)", i)
		}
		q.Close()
	}
}

func TestEnqueueDuringCancelStartsNewBurst(t *testing.T) {
	gate := make(chan struct{})
	synth := &scriptedSynth{block: gate}
	listener := &recordingListener{}
	q := NewQueue(synth, listener, nil, nil)
	defer q.Close()

	q.Enqueue(Unit{Text: "interrupted"})
	waitFor(t, func() bool { started, _ := listener.counts(); return started == 1 })

	q.Cancel()
	q.Enqueue(Unit{Text: "replacement"})
	close(gate)

	waitFor(t, func() bool { _, ended := listener.counts(); return ended == 1 })
	if started, _ := listener.counts(); started != 2 {
		t.Fatalf("started = %d, want a fresh burst after cancel", started)
	}
	spoken := synth.spokenTexts()
	if len(spoken) == 0 || spoken[len(spoken)-1] != "replacement" {
		t.Fatalf("spoken = %v, want replacement played", spoken)
	}
}

func TestEnqueueAfterCancelRestarts(t *testing.T) {
	synth := &scriptedSynth{}
	listener := &recordingListener{}
	q := NewQueue(synth, listener, nil, nil)
	defer q.Close()

	q.Enqueue(Unit{Text: "first"})
	waitFor(t, func() bool { _, ended := listener.counts(); return ended == 1 })
	q.Cancel()

	q.Enqueue(Unit{Text: "second"})
	waitFor(t, func() bool { _, ended := listener.counts(); return ended == 2 })
	spoken := synth.spokenTexts()
	if spoken[len(spoken)-1] != "second" {
		t.Fatalf("spoken = %v", spoken)
	}
}
