// Package crossthread error types, with cause chain support.
package crossthread

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrLoopAlreadyRunning is returned when Run() is called on a loop that is already running.
	ErrLoopAlreadyRunning = errors.New("crossthread: loop is already running")

	// ErrLoopTerminated is returned when operations are attempted on a terminated loop.
	ErrLoopTerminated = errors.New("crossthread: loop has been terminated")

	// ErrLoopNotRunning is returned when a blocking delivery targets a loop that
	// is not being driven (never started, or already shut down).
	ErrLoopNotRunning = errors.New("crossthread: loop is not running")

	// ErrReentrantRun is returned when Run() is called from within the loop itself.
	ErrReentrantRun = errors.New("crossthread: cannot call Run() from within the loop")

	// ErrSelfDelivery is returned when a blocking-queued invocation targets the
	// loop the caller is currently executing on. Honoring it would deadlock.
	ErrSelfDelivery = errors.New("crossthread: blocking delivery to the calling goroutine's own loop")

	// ErrSignalClosed is returned when connecting to a signal after Close().
	ErrSignalClosed = errors.New("crossthread: signal is closed")

	// ErrNotLoopGoroutine is returned when a loop-goroutine-only operation
	// (e.g. Pump on a running loop) is invoked from a foreign goroutine.
	ErrNotLoopGoroutine = errors.New("crossthread: operation requires the loop goroutine")
)

// InternalError represents a programmer or contract violation: a
// non-thread-safe operation invoked off its designated goroutine, a
// subscription against a torn-down signal, a malformed barrier configuration.
// It is never recovered from automatically; the offending operation is
// aborted and the error surfaced to the caller.
type InternalError struct {
	Cause   error
	Message string
}

// Error implements the error interface.
func (e *InternalError) Error() string {
	if e.Message == "" {
		return "internal error"
	}
	return e.Message
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *InternalError) Unwrap() error {
	return e.Cause
}

// TimeoutError represents an elapsed [WaitFor] deadline. Unlike
// [InternalError] it is an expected outcome under normal operation, and
// callers are expected to recover from it.
type TimeoutError struct {
	Cause   error
	Message string
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	if e.Message == "" {
		return "operation timed out"
	}
	return e.Message
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *TimeoutError) Unwrap() error {
	return e.Cause
}

// DeliveryError indicates that a marshaled invocation could not reach its
// target loop (terminated, or never running for a blocking delivery). The
// invocation is dropped; there are no retries.
type DeliveryError struct {
	Cause   error
	Message string
}

// Error implements the error interface.
func (e *DeliveryError) Error() string {
	if e.Message == "" {
		return "delivery failed"
	}
	return e.Message
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *DeliveryError) Unwrap() error {
	return e.Cause
}

// InvalidIdentifierError is returned by [CheckIdentifier] for names that are
// not valid identifiers.
type InvalidIdentifierError struct {
	Name string
}

// Error implements the error interface.
func (e *InvalidIdentifierError) Error() string {
	return fmt.Sprintf("invalid identifier %q", e.Name)
}

func newInternalError(message string, cause error) *InternalError {
	return &InternalError{Message: "crossthread: " + message, Cause: cause}
}

func newDeliveryError(message string, cause error) *DeliveryError {
	return &DeliveryError{Message: "crossthread: " + message, Cause: cause}
}
