// Package mock provides in-memory providers for local development and tests.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/voxhire/voxhire/pkg/speak"
	"github.com/voxhire/voxhire/pkg/speech"
	"github.com/voxhire/voxhire/pkg/turnapi"
)

// Recognizer replays scripted recognition events.
type Recognizer struct {
	mu      sync.Mutex
	out     chan speech.Event
	errs    chan error
	started bool
}

func NewRecognizer() *Recognizer {
	return &Recognizer{
		out:  make(chan speech.Event, 64),
		errs: make(chan error, 8),
	}
}

func (r *Recognizer) Name() string { return "mock" }

func (r *Recognizer) Start(ctx context.Context) error {
	r.mu.Lock()
	r.started = true
	r.mu.Unlock()
	return nil
}

func (r *Recognizer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		r.started = false
		close(r.out)
	}
	return nil
}

func (r *Recognizer) Events() <-chan speech.Event { return r.out }
func (r *Recognizer) Errs() <-chan error          { return r.errs }

// Emit injects a recognition event, as if audio had been transcribed.
func (r *Recognizer) Emit(text string, final bool) {
	r.out <- speech.Event{Text: text, Final: final, At: time.Now()}
}

// Fail injects a recognizer error.
func (r *Recognizer) Fail(err error) {
	r.errs <- err
}

// Synthesizer pretends to play units, taking a fixed delay per unit.
type Synthesizer struct {
	Delay time.Duration

	mu     sync.Mutex
	spoken []speak.Unit
}

func NewSynthesizer(delay time.Duration) *Synthesizer {
	return &Synthesizer{Delay: delay}
}

func (s *Synthesizer) Name() string { return "mock" }

func (s *Synthesizer) Speak(ctx context.Context, unit speak.Unit) error {
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	s.spoken = append(s.spoken, unit)
	s.mu.Unlock()
	return nil
}

func (s *Synthesizer) Close() error { return nil }

// Spoken returns the units played so far.
func (s *Synthesizer) Spoken() []speak.Unit {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]speak.Unit, len(s.spoken))
	copy(out, s.spoken)
	return out
}

// Generator produces canned recruiter turns, cycling through questions.
type Generator struct {
	Questions []string

	mu   sync.Mutex
	turn int
}

func NewGenerator() *Generator {
	return &Generator{
		Questions: []string{
			"Welcome. Could you introduce yourself?",
			"Tell me about a project you are proud of.",
			"How would you design a rate limiter?",
			"What would you do differently next time?",
		},
	}
}

func (g *Generator) Name() string { return "mock" }

func (g *Generator) GenerateTurn(ctx context.Context, req turnapi.Request) (*turnapi.Envelope, error) {
	g.mu.Lock()
	question := g.Questions[g.turn%len(g.Questions)]
	g.turn++
	turn := g.turn
	g.mu.Unlock()

	score := func(v int) *int { return &v }
	return &turnapi.Envelope{
		OK: true,
		Data: &turnapi.TurnPayload{
			Say:        question,
			EndSession: turn > len(g.Questions),
			Evaluation: &turnapi.EvaluationPayload{
				TotalScore:          score(50 + turn*5),
				TechnicalScore:      score(50 + turn*5),
				CommunicationScore:  score(55 + turn*4),
				ProblemSolvingScore: score(45 + turn*6),
			},
		},
	}, nil
}

var _ speech.Stream = (*Recognizer)(nil)
var _ speak.Synthesizer = (*Synthesizer)(nil)
var _ turnapi.Generator = (*Generator)(nil)
