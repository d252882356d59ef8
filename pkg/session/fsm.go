package session

import (
	"fmt"
	"sync"
)

// RecruiterState is the externally visible state of the virtual recruiter.
type RecruiterState string

const (
	RecruiterIdle      RecruiterState = "idle"
	RecruiterThinking  RecruiterState = "thinking"
	RecruiterSpeaking  RecruiterState = "speaking"
	RecruiterListening RecruiterState = "listening"
)

// validTransitions is the allowed edge set of the recruiter state machine.
var validTransitions = map[RecruiterState][]RecruiterState{
	RecruiterIdle:      {RecruiterThinking},
	RecruiterThinking:  {RecruiterSpeaking, RecruiterIdle},
	RecruiterSpeaking:  {RecruiterListening, RecruiterIdle},
	RecruiterListening: {RecruiterThinking, RecruiterIdle},
}

// InvalidTransitionError reports a transition outside the allowed edge set.
type InvalidTransitionError struct {
	From RecruiterState
	To   RecruiterState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid recruiter transition %s -> %s", e.From, e.To)
}

// TransitionListener observes committed recruiter state changes.
type TransitionListener func(from, to RecruiterState)

// FSM tracks the recruiter state and notifies listeners on change.
// Listeners run synchronously while the transition lock is held, so they
// must not call back into the FSM.
type FSM struct {
	mu        sync.Mutex
	state     RecruiterState
	listeners []TransitionListener
}

func NewFSM() *FSM {
	return &FSM{state: RecruiterIdle}
}

func (f *FSM) State() RecruiterState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Subscribe registers a listener for committed transitions.
func (f *FSM) Subscribe(fn TransitionListener) {
	f.mu.Lock()
	f.listeners = append(f.listeners, fn)
	f.mu.Unlock()
}

// Transition moves to the requested state, failing when the edge is not in
// the allowed set. A self-transition is a no-op and never notifies.
func (f *FSM) Transition(to RecruiterState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	from := f.state
	if from == to {
		return nil
	}
	if !allowed(from, to) {
		return &InvalidTransitionError{From: from, To: to}
	}
	f.state = to
	for _, fn := range f.listeners {
		fn(from, to)
	}
	return nil
}

func allowed(from, to RecruiterState) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
