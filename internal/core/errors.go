package core

import (
	"errors"
	"fmt"
	"time"
)

// TransientError wraps a failure worth retrying: rate limits, timeouts and
// 5xx-equivalent provider responses.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient api error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError wraps a failure retrying cannot fix: bad credentials,
// malformed requests, unsupported models.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent api error: %v", e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// ValidationError means the model replied but the payload did not conform to
// the requested schema, even after the corrective re-prompt.
type ValidationError struct {
	Output string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("model output failed validation: %v", e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// CircuitOpenError means the breaker rejected the call without contacting
// the model.
type CircuitOpenError struct {
	RetryAfter time.Duration
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit open, retry after %s", e.RetryAfter)
}

// GuardrailError means a drafted response was rejected by content checks.
type GuardrailError struct {
	Reason string
}

func (e *GuardrailError) Error() string {
	return fmt.Sprintf("guardrail rejected response: %s", e.Reason)
}

// ItemError wraps an unexpected failure for one email, caught at the
// pipeline boundary so the batch continues.
type ItemError struct {
	EmailID string
	Err     error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("processing email %s: %v", e.EmailID, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// IsTransient reports whether err should be retried by the gateway.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
