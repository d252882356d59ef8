package resilience

import "errors"

// RateLimitError represents a provider rate limit or quota response.
type RateLimitError struct {
	Provider string
	Message  string
}

func (e RateLimitError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "rate limit"
}

// IsRateLimit returns true when the error chain contains a RateLimitError,
// by value or by pointer.
func IsRateLimit(err error) bool {
	var rl RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	var rlp *RateLimitError
	return errors.As(err, &rlp)
}
