package turnapi

import (
	"context"
	"fmt"

	"github.com/voxhire/voxhire/pkg/session"
)

// Error codes the turn backend may return.
const (
	CodeRateLimited = "rate_limited"
	CodeBadRequest  = "bad_request"
	CodeInternal    = "internal"
)

// Request is one turn exchange sent to the backend: the transcript so far
// plus the interview parameters.
type Request struct {
	SessionID string            `json:"session_id"`
	RequestID uint64            `json:"request_id"`
	Role      string            `json:"role"`
	Seniority string            `json:"seniority"`
	Company   string            `json:"company,omitempty"`
	Language  string            `json:"language,omitempty"`
	History   []session.Message `json:"history"`
	Utterance string            `json:"utterance"`
}

// EvaluationPayload mirrors the backend's evaluation object. Scores are
// pointers so a missing field is distinguishable from zero.
type EvaluationPayload struct {
	TotalScore          *int                `json:"total_score"`
	TechnicalScore      *int                `json:"technical_score"`
	CommunicationScore  *int                `json:"communication_score"`
	ProblemSolvingScore *int                `json:"problem_solving_score"`
	Signals             []session.ScoreNote `json:"signals"`
}

// TurnPayload is the data object of a successful envelope.
type TurnPayload struct {
	Say        string             `json:"say"`
	Evaluation *EvaluationPayload `json:"evaluation"`
	EndSession bool               `json:"end_session"`
}

// ErrorPayload is the error object of a failed envelope.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

// Envelope is the backend's response wrapper.
type Envelope struct {
	OK    bool          `json:"ok"`
	Data  *TurnPayload  `json:"data,omitempty"`
	Error *ErrorPayload `json:"error,omitempty"`
}

// Turn is a validated successful exchange ready to apply to the session.
type Turn struct {
	Say        string
	Evaluation session.Evaluation
	EndSession bool
}

// SchemaError reports an envelope that claims success but does not satisfy
// the response contract.
type SchemaError struct {
	Field string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("turn response missing or invalid field %q", e.Field)
}

// Turn validates a successful envelope and extracts the exchange. It returns
// a *SchemaError when a required field is absent or malformed.
func (e *Envelope) Turn() (*Turn, error) {
	if !e.OK {
		return nil, &SchemaError{Field: "ok"}
	}
	if e.Data == nil {
		return nil, &SchemaError{Field: "data"}
	}
	if e.Data.Say == "" {
		return nil, &SchemaError{Field: "data.say"}
	}
	ev := e.Data.Evaluation
	if ev == nil {
		return nil, &SchemaError{Field: "data.evaluation"}
	}
	for field, score := range map[string]*int{
		"data.evaluation.total_score":           ev.TotalScore,
		"data.evaluation.technical_score":       ev.TechnicalScore,
		"data.evaluation.communication_score":   ev.CommunicationScore,
		"data.evaluation.problem_solving_score": ev.ProblemSolvingScore,
	} {
		if score == nil {
			return nil, &SchemaError{Field: field}
		}
		if *score < 0 || *score > 100 {
			return nil, &SchemaError{Field: field}
		}
	}
	return &Turn{
		Say: e.Data.Say,
		Evaluation: session.Evaluation{
			TotalScore:          *ev.TotalScore,
			TechnicalScore:      *ev.TechnicalScore,
			CommunicationScore:  *ev.CommunicationScore,
			ProblemSolvingScore: *ev.ProblemSolvingScore,
			Signals:             ev.Signals,
		},
		EndSession: e.Data.EndSession,
	}, nil
}

// Generator produces the next recruiter turn for a candidate utterance.
type Generator interface {
	Name() string
	GenerateTurn(ctx context.Context, req Request) (*Envelope, error)
}
