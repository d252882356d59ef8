package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle phase of an interview session.
type Status string

const (
	StatusCreated     Status = "created"
	StatusInitialized Status = "initialized"
	StatusEnded       Status = "ended"
)

// Speaker identifies who produced a conversation message.
type Speaker string

const (
	SpeakerRecruiter Speaker = "recruiter"
	SpeakerCandidate Speaker = "candidate"
)

// Message is one entry in the interview transcript.
type Message struct {
	Speaker Speaker   `json:"speaker"`
	Text    string    `json:"text"`
	At      time.Time `json:"at"`
}

// ScoreNote is one qualitative observation attached to an evaluation.
type ScoreNote struct {
	Label  string `json:"label"`
	Detail string `json:"detail"`
}

// Evaluation is the rolling candidate assessment returned by the turn
// backend after each exchange.
type Evaluation struct {
	TotalScore          int         `json:"total_score"`
	TechnicalScore      int         `json:"technical_score"`
	CommunicationScore  int         `json:"communication_score"`
	ProblemSolvingScore int         `json:"problem_solving_score"`
	Signals             []ScoreNote `json:"signals,omitempty"`
}

// Params describes the interview being run.
type Params struct {
	Role       string
	Seniority  string
	Company    string
	Language   string
	DurationMs int64
}

// Session holds all mutable interview state for one room. All access goes
// through its methods; callers never hold the lock across an await point.
type Session struct {
	mu sync.Mutex

	id        string
	params    Params
	status    Status
	startedAt time.Time
	now       func() time.Time

	history    []Message
	evaluation *Evaluation

	inFlight        bool
	lastFingerprint string
	lastFingerAt    time.Time
	requestSeq      uint64
}

func New(params Params, now func() time.Time) *Session {
	if now == nil {
		now = time.Now
	}
	return &Session{
		id:     uuid.NewString(),
		params: params,
		status: StatusCreated,
		now:    now,
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Params() Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// MarkInitialized records that the opening recruiter turn has completed and
// the interview clock starts now.
func (s *Session) MarkInitialized() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusCreated {
		return
	}
	s.status = StatusInitialized
	s.startedAt = s.now()
}

// End moves the session to its terminal status. Idempotent.
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusEnded
}

func (s *Session) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status == StatusEnded
}

// Elapsed reports time since initialization, zero before it.
func (s *Session) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startedAt.IsZero() {
		return 0
	}
	return s.now().Sub(s.startedAt)
}

// TryAcquire claims the single in-flight turn slot. It returns false when a
// turn request is already running.
func (s *Session) TryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return false
	}
	s.inFlight = true
	return true
}

// Release frees the in-flight slot claimed by TryAcquire.
func (s *Session) Release() {
	s.mu.Lock()
	s.inFlight = false
	s.mu.Unlock()
}

func (s *Session) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// SeenRecently reports whether fingerprint matches the previously recorded
// one within window.
func (s *Session) SeenRecently(fingerprint string, window time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastFingerprint == "" || s.lastFingerprint != fingerprint {
		return false
	}
	return s.now().Sub(s.lastFingerAt) < window
}

// RecordFingerprint remembers the normalized form of the last submitted
// utterance for duplicate detection.
func (s *Session) RecordFingerprint(fingerprint string) {
	s.mu.Lock()
	s.lastFingerprint = fingerprint
	s.lastFingerAt = s.now()
	s.mu.Unlock()
}

// NextRequestID hands out a monotonically increasing id for turn requests.
func (s *Session) NextRequestID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requestSeq++
	return s.requestSeq
}

// AppendCandidate adds a candidate message to the transcript. It is a no-op
// once the session has ended.
func (s *Session) AppendCandidate(text string) {
	s.append(SpeakerCandidate, text)
}

// AppendRecruiter adds a recruiter message to the transcript. It is a no-op
// once the session has ended.
func (s *Session) AppendRecruiter(text string) {
	s.append(SpeakerRecruiter, text)
}

func (s *Session) append(speaker Speaker, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusEnded {
		return
	}
	s.history = append(s.history, Message{
		Speaker: speaker,
		Text:    text,
		At:      s.now(),
	})
}

// History returns a copy of the transcript so far.
func (s *Session) History() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.history))
	copy(out, s.history)
	return out
}

// SetEvaluation replaces the rolling evaluation with the latest one.
func (s *Session) SetEvaluation(ev Evaluation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusEnded {
		return
	}
	cp := ev
	cp.Signals = append([]ScoreNote(nil), ev.Signals...)
	s.evaluation = &cp
}

// Evaluation returns the most recent evaluation, or nil before the first
// scored turn.
func (s *Session) Evaluation() *Evaluation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.evaluation == nil {
		return nil
	}
	cp := *s.evaluation
	cp.Signals = append([]ScoreNote(nil), s.evaluation.Signals...)
	return &cp
}
