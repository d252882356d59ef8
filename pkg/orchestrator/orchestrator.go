package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/voxhire/voxhire/pkg/errorsx"
	"github.com/voxhire/voxhire/pkg/metrics"
	"github.com/voxhire/voxhire/pkg/redact"
	"github.com/voxhire/voxhire/pkg/resilience"
	"github.com/voxhire/voxhire/pkg/session"
	"github.com/voxhire/voxhire/pkg/speak"
	"github.com/voxhire/voxhire/pkg/speech"
	"github.com/voxhire/voxhire/pkg/turnapi"
)

// Denial and failure codes surfaced to the room client.
const (
	DenyBusy      = "busy"
	DenyCooldown  = "cooldown"
	DenySpeaking  = "recruiter_speaking"
	DenyTooShort  = "too_short"
	DenyDuplicate = "duplicate"
	DenyEnded     = "session_ended"
	DenyStarted   = "already_started"

	FailRateLimited = "rate_limited"
	FailBadResponse = "invalid_response"
	FailUpstream    = "upstream_error"
)

type Config struct {
	MinWords          int
	MinChars          int
	DuplicateWindow   time.Duration
	RateLimitCooldown time.Duration
	FailureCooldown   time.Duration
	TurnTimeout       time.Duration
}

func (c *Config) setDefaults() {
	if c.MinWords <= 0 {
		c.MinWords = 3
	}
	if c.MinChars <= 0 {
		c.MinChars = 12
	}
	if c.DuplicateWindow <= 0 {
		c.DuplicateWindow = 10 * time.Second
	}
	if c.RateLimitCooldown <= 0 {
		c.RateLimitCooldown = 30 * time.Second
	}
	if c.FailureCooldown <= 0 {
		c.FailureCooldown = 2 * time.Second
	}
	if c.TurnTimeout <= 0 {
		c.TurnTimeout = 60 * time.Second
	}
}

// TurnError is a denial or failure surfaced to the client.
type TurnError struct {
	Code    string
	Message string
	Hint    string
	RetryIn time.Duration
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("turn %s: %s", e.Code, e.Message)
}

// Deps are the collaborators an Orchestrator drives.
type Deps struct {
	Session   *session.Session
	FSM       *session.FSM
	Generator turnapi.Generator
	Synth     speak.Synthesizer
	Capture   *speech.Capture
	Cooldown  *resilience.Cooldown
	Observer  metrics.Observer
	Logger    *slog.Logger
	OnCaption func(session.Subtitle)
	OnError   func(*TurnError)
}

// Orchestrator owns the turn lifecycle: it admits candidate utterances
// through a guard chain, runs the backend exchange, applies the result to
// the session and plays the recruiter's reply.
type Orchestrator struct {
	cfg  Config
	deps Deps

	queue *speak.Queue

	mu         sync.Mutex
	endPending bool
}

func New(cfg Config, deps Deps) *Orchestrator {
	cfg.setDefaults()
	if deps.Observer == nil {
		deps.Observer = metrics.NoopObserver{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Cooldown == nil {
		deps.Cooldown = resilience.NewCooldown(nil)
	}
	o := &Orchestrator{cfg: cfg, deps: deps}
	o.queue = speak.NewQueue(deps.Synth, o, deps.Observer, deps.Logger)
	return o
}

// Queue exposes the playback queue for shutdown.
func (o *Orchestrator) Queue() *speak.Queue { return o.queue }

// Init runs the opening recruiter turn. The content guards are for
// candidate turns; everything else applies, and a session that already
// opened is not opened twice.
func (o *Orchestrator) Init() *TurnError {
	if o.deps.Session.Ended() {
		return o.deny(&TurnError{Code: DenyEnded, Message: "session has ended"}, false)
	}
	if o.deps.Session.Status() != session.StatusCreated {
		return o.deny(&TurnError{Code: DenyStarted, Message: "the interview has already started"}, false)
	}
	if !o.deps.Session.TryAcquire() {
		return o.deny(&TurnError{Code: DenyBusy, Message: "a turn is already in flight"}, false)
	}
	if !o.deps.Cooldown.Allow() {
		return o.deny(&TurnError{
			Code:    DenyCooldown,
			Message: "turns are temporarily paused",
			RetryIn: o.deps.Cooldown.Remaining(),
		}, true)
	}
	if o.deps.FSM.State() == session.RecruiterSpeaking {
		return o.deny(&TurnError{Code: DenySpeaking, Message: "the recruiter is speaking"}, true)
	}
	go o.runTurn("", true)
	return nil
}

// Submit admits a candidate utterance through the guard chain and, when
// admitted, runs the turn asynchronously. A non-nil TurnError is a denial;
// the utterance was not sent.
func (o *Orchestrator) Submit(text string) *TurnError {
	if o.deps.Session.Ended() {
		return o.deny(&TurnError{Code: DenyEnded, Message: "session has ended"}, false)
	}
	if !o.deps.Session.TryAcquire() {
		return o.deny(&TurnError{Code: DenyBusy, Message: "a turn is already in flight"}, false)
	}
	if !o.deps.Cooldown.Allow() {
		return o.deny(&TurnError{
			Code:    DenyCooldown,
			Message: "turns are temporarily paused",
			RetryIn: o.deps.Cooldown.Remaining(),
		}, true)
	}
	if o.deps.FSM.State() == session.RecruiterSpeaking {
		return o.deny(&TurnError{Code: DenySpeaking, Message: "the recruiter is speaking"}, true)
	}
	if WordCount(text) < o.cfg.MinWords || len(text) < o.cfg.MinChars {
		return o.deny(&TurnError{
			Code:    DenyTooShort,
			Message: "answer too short",
			Hint:    "say a little more before submitting",
		}, true)
	}
	fingerprint := Normalize(text)
	if o.deps.Session.SeenRecently(fingerprint, o.cfg.DuplicateWindow) {
		return o.deny(&TurnError{Code: DenyDuplicate, Message: "duplicate answer ignored"}, true)
	}
	o.deps.Session.RecordFingerprint(fingerprint)

	go o.runTurn(text, false)
	return nil
}

// Interrupt stops recruiter playback and returns the floor to the candidate.
func (o *Orchestrator) Interrupt() {
	o.queue.Cancel()
	if o.deps.FSM.State() == session.RecruiterSpeaking {
		if err := o.deps.FSM.Transition(session.RecruiterListening); err != nil {
			o.deps.Logger.Warn("interrupt transition rejected", "err", err)
		}
	}
	if o.deps.Capture != nil {
		o.deps.Capture.Resume()
	}
}

func (o *Orchestrator) deny(te *TurnError, release bool) *TurnError {
	if release {
		o.deps.Session.Release()
	}
	o.deps.Observer.Record(metrics.Event{
		Name: metrics.EventTurnDenied,
		Tags: map[string]string{"code": te.Code},
	})
	o.deps.Logger.Debug("turn denied", "code", te.Code)
	return te
}

func (o *Orchestrator) runTurn(text string, initial bool) {
	defer o.deps.Session.Release()

	if err := o.deps.FSM.Transition(session.RecruiterThinking); err != nil {
		o.deps.Logger.Error("cannot enter thinking state", "err", err)
		return
	}
	// Stale playback from a previous turn must not run over the new one.
	o.queue.Cancel()

	params := o.deps.Session.Params()
	req := turnapi.Request{
		SessionID: o.deps.Session.ID(),
		RequestID: o.deps.Session.NextRequestID(),
		Role:      params.Role,
		Seniority: params.Seniority,
		Company:   params.Company,
		Language:  params.Language,
		History:   o.deps.Session.History(),
		Utterance: text,
	}
	o.deps.Observer.Record(metrics.Event{
		Name: metrics.EventTurnRequest,
		Tags: map[string]string{"provider": o.deps.Generator.Name()},
	})
	o.deps.Logger.Info("turn request",
		"request_id", req.RequestID,
		"utterance", redact.Clip(redact.Text(text)))

	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.TurnTimeout)
	defer cancel()

	envelope, err := o.deps.Generator.GenerateTurn(ctx, req)
	var turn *turnapi.Turn
	if err == nil {
		turn, err = envelope.Turn()
	}
	if err != nil {
		o.fail(err)
		return
	}
	if o.deps.Session.Ended() {
		// The session ended while the turn was in flight. Discard the result.
		o.deps.Logger.Debug("turn result discarded", "request_id", req.RequestID)
		if ferr := o.deps.FSM.Transition(session.RecruiterIdle); ferr != nil {
			o.deps.Logger.Warn("idle transition rejected", "err", ferr)
		}
		return
	}

	// History mutates only after the response validated.
	if !initial {
		o.deps.Session.AppendCandidate(text)
	}
	o.deps.Session.AppendRecruiter(turn.Say)
	o.deps.Session.SetEvaluation(turn.Evaluation)
	if initial {
		o.deps.Session.MarkInitialized()
	}
	if turn.EndSession {
		o.mu.Lock()
		o.endPending = true
		o.mu.Unlock()
	}

	o.deps.Observer.Record(metrics.Event{Name: metrics.EventTurnSuccess})

	sentences := speak.Split(turn.Say)
	for i, sentence := range sentences {
		o.queue.Enqueue(speak.Unit{
			Text:   sentence,
			Final:  i == len(sentences)-1,
			TurnID: req.RequestID,
		})
	}
}

func (o *Orchestrator) fail(err error) {
	te := &TurnError{Code: FailUpstream, Message: "the interviewer could not respond"}
	switch {
	case resilience.IsRateLimit(err):
		te.Code = FailRateLimited
		te.Message = "the interviewer needs a moment"
		te.RetryIn = o.cfg.RateLimitCooldown
		o.deps.Cooldown.Arm(o.cfg.RateLimitCooldown)
		o.deps.Observer.Record(metrics.Event{Name: metrics.EventRateLimit})
	default:
		var se *turnapi.SchemaError
		if errors.As(err, &se) {
			te.Code = FailBadResponse
			te.Hint = "please repeat your answer"
		}
		te.RetryIn = o.cfg.FailureCooldown
		o.deps.Cooldown.Arm(o.cfg.FailureCooldown)
	}

	if ferr := o.deps.FSM.Transition(session.RecruiterIdle); ferr != nil {
		o.deps.Logger.Error("cannot leave thinking state", "err", ferr)
	}
	o.deps.Observer.Record(metrics.Event{
		Name: metrics.EventTurnFailure,
		Tags: map[string]string{"code": te.Code, "reason": string(errorsx.Reason(err))},
	})
	o.deps.Logger.Warn("turn failed", "code", te.Code, "err", err)
	if o.deps.OnError != nil {
		o.deps.OnError(te)
	}
}

// SpeechStarted pauses capture and moves the recruiter to speaking.
func (o *Orchestrator) SpeechStarted() {
	if o.deps.Capture != nil {
		o.deps.Capture.Pause()
	}
	if err := o.deps.FSM.Transition(session.RecruiterSpeaking); err != nil {
		o.deps.Logger.Warn("speaking transition rejected", "err", err)
	}
}

// SpeechEnded returns the recruiter to listening and resumes capture after
// the echo grace period.
func (o *Orchestrator) SpeechEnded() {
	if err := o.deps.FSM.Transition(session.RecruiterListening); err != nil {
		o.deps.Logger.Warn("listening transition rejected", "err", err)
	}
	if o.deps.Capture != nil {
		o.deps.Capture.Resume()
	}

	o.mu.Lock()
	end := o.endPending
	o.endPending = false
	o.mu.Unlock()
	if end {
		o.deps.Session.End()
		if err := o.deps.FSM.Transition(session.RecruiterIdle); err != nil {
			o.deps.Logger.Warn("end transition rejected", "err", err)
		}
	}
}

// UnitSpoken emits a caption for each unit that played.
func (o *Orchestrator) UnitSpoken(unit speak.Unit, err error) {
	if err != nil || o.deps.OnCaption == nil {
		return
	}
	o.deps.OnCaption(session.SubtitleFor(unit.Text))
}
