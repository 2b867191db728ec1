package hedge

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAllAttemptsFailed matches any *AllFailedError via errors.Is.
var ErrAllAttemptsFailed = errors.New("hedge: all attempts failed")

// ErrRaceCancelled matches any *RaceCancelledError via errors.Is.
var ErrRaceCancelled = errors.New("hedge: race cancelled")

// ConfigError reports an invalid hedging policy. It is returned by
// Config.Validate and by the constructors, never at call time.
type ConfigError struct {
	// Field is the offending Config field.
	Field string

	// Reason describes the violated constraint.
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("hedge: invalid config: %s %s", e.Field, e.Reason)
}

// AttemptError wraps the failure of a single attempt with its index in the
// race (0 is the primary, 1..N are hedges in fire order).
type AttemptError struct {
	// Attempt is the attempt index within the race.
	Attempt int

	// Err is the failure returned by the execute capability.
	Err error
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("attempt %d: %v", e.Attempt, e.Err)
}

func (e *AttemptError) Unwrap() error {
	return e.Err
}

// AllFailedError is the aggregate failure returned when every fired attempt
// failed and no further hedges remained scheduled. Causes holds one
// *AttemptError per fired attempt, in firing order; no failure is dropped.
type AllFailedError struct {
	// Destination is the destination key of the failed call.
	Destination string

	// Causes holds every attempt failure in firing order.
	Causes []error
}

func (e *AllFailedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "hedge: all %d attempts failed for %q", len(e.Causes), e.Destination)
	for _, cause := range e.Causes {
		b.WriteString("; ")
		b.WriteString(cause.Error())
	}
	return b.String()
}

// Unwrap exposes the individual attempt failures to errors.Is and errors.As.
func (e *AllFailedError) Unwrap() []error {
	return e.Causes
}

// Is reports a match for ErrAllAttemptsFailed.
func (e *AllFailedError) Is(target error) bool {
	return target == ErrAllAttemptsFailed
}

// RaceCancelledError is returned when the caller's context is cancelled
// before any attempt succeeds. It is distinct from AllFailedError so
// callers can tell "gave up" apart from "backend rejected".
type RaceCancelledError struct {
	// Destination is the destination key of the cancelled call.
	Destination string

	// Err is the context error that ended the race.
	Err error
}

func (e *RaceCancelledError) Error() string {
	return fmt.Sprintf("hedge: race cancelled for %q: %v", e.Destination, e.Err)
}

func (e *RaceCancelledError) Unwrap() error {
	return e.Err
}

// Is reports a match for ErrRaceCancelled.
func (e *RaceCancelledError) Is(target error) bool {
	return target == ErrRaceCancelled
}

// StatusError is the failure recorded for an HTTP attempt whose response
// the transport's classifier rejected (by default, status >= 500).
type StatusError struct {
	// StatusCode is the rejected HTTP status code.
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("hedge: response classified as failure: status %d", e.StatusCode)
}
