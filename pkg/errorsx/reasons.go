package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	// ReasonRateLimit marks quota/rate-limit failures from the turn backend.
	ReasonRateLimit ReasonCode = "rate_limit"
	// ReasonTurnRequest marks transport or application failures of a turn call.
	ReasonTurnRequest ReasonCode = "turn_request"
	// ReasonBadPayload marks structurally invalid turn payloads.
	ReasonBadPayload ReasonCode = "bad_payload"

	ReasonRecognizer ReasonCode = "recognizer"
	ReasonSynthesis  ReasonCode = "synthesis"
	ReasonPersist    ReasonCode = "persist"
)
