package transport

import "github.com/voxhire/voxhire/pkg/session"

// Client-to-server message types.
const (
	ClientTranscript = "transcript"
	ClientManual     = "manual"
	ClientControl    = "control"
)

// Control actions.
const (
	ActionStart     = "start"
	ActionEnd       = "end"
	ActionInterrupt = "interrupt"
)

// Server-to-client message types.
const (
	ServerState      = "state"
	ServerCaption    = "caption"
	ServerError      = "error"
	ServerEvaluation = "evaluation"
	ServerEnded      = "ended"
)

// ClientMessage is a JSON frame from the browser. Binary frames carry raw
// candidate audio and bypass this envelope.
type ClientMessage struct {
	Type   string `json:"type"`
	Text   string `json:"text,omitempty"`
	Final  bool   `json:"final,omitempty"`
	Action string `json:"action,omitempty"`
}

// ServerMessage is a JSON frame to the browser. Interim marks a live
// candidate caption that later fragments will replace.
type ServerMessage struct {
	Type       string              `json:"type"`
	State      string              `json:"state,omitempty"`
	Text       string              `json:"text,omitempty"`
	Interim    bool                `json:"interim,omitempty"`
	ElapsedMs  int64               `json:"elapsed_ms,omitempty"`
	DurationMs int64               `json:"duration_ms,omitempty"`
	Code       string              `json:"code,omitempty"`
	Message    string              `json:"message,omitempty"`
	Hint       string              `json:"hint,omitempty"`
	RetryInMs  int64               `json:"retry_in_ms,omitempty"`
	Evaluation *session.Evaluation `json:"evaluation,omitempty"`
}
