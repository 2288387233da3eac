package scoring

import (
	"fmt"
	"time"
)

// ValidationError rejects a malformed request before any remote call is made.
// The HTTP layer maps it to a 400.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// OverloadedError is returned when the remote scorer answers with a
// bot-mitigation challenge (rate-limit status plus an HTML body). It is never
// answered with the local fallback; RetryAfter is the delay suggested to the
// caller.
type OverloadedError struct {
	RetryAfter time.Duration
}

func (e *OverloadedError) Error() string {
	return fmt.Sprintf("scoring service overloaded, retry after %s", e.RetryAfter)
}

// rateLimitError is an ordinary 429 with structured content: retry the same
// request. RetryAfter is zero when the server sent no hint.
type rateLimitError struct {
	RetryAfter time.Duration
}

func (e *rateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("remote scorer rate limited, server asked to wait %s", e.RetryAfter)
	}
	return "remote scorer rate limited"
}

// transientError covers failures worth retrying: timeouts, refused
// connections and 5xx responses.
type transientError struct {
	cause error
}

func (e *transientError) Error() string {
	return fmt.Sprintf("remote scorer unreachable: %v", e.cause)
}

func (e *transientError) Unwrap() error { return e.cause }
