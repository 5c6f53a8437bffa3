package lifecycle

import (
	"errors"
	"fmt"
)

var (
	// ErrRetryExhausted matches any *RetryExhaustedError via errors.Is.
	ErrRetryExhausted = errors.New("rfq: execution retries exhausted")
	// ErrCancelled matches any *CancelledError via errors.Is.
	ErrCancelled = errors.New("rfq: workflow cancelled")
	// ErrInvalidPolicy is returned before any attempt when a retry policy cannot be honoured.
	ErrInvalidPolicy = errors.New("rfq: invalid retry policy")
)

// RetryExhaustedError reports that every attempt failed with a transient error.
type RetryExhaustedError struct {
	QuoteID  string
	Attempts int
	Last     error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("execute quote %s: gave up after %d attempts: %v", e.QuoteID, e.Attempts, e.Last)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Last }

func (e *RetryExhaustedError) Is(target error) bool { return target == ErrRetryExhausted }

// ExecutionError reports a fatal execution failure. Attempts includes the failing call.
type ExecutionError struct {
	QuoteID  string
	Attempts int
	Err      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execute quote %s: attempt %d failed: %v", e.QuoteID, e.Attempts, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// CancelledError reports that the caller's context ended before the operation finished.
// It unwraps to both the context error and the last attempt error, if any.
type CancelledError struct {
	Operation string
	Attempts  int
	Err       error // ctx.Err()
	Last      error
}

func (e *CancelledError) Error() string {
	if e.Last != nil {
		return fmt.Sprintf("%s cancelled after %d attempts: %v (last error: %v)", e.Operation, e.Attempts, e.Err, e.Last)
	}
	return fmt.Sprintf("%s cancelled after %d attempts: %v", e.Operation, e.Attempts, e.Err)
}

func (e *CancelledError) Unwrap() []error {
	if e.Last == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Last}
}

func (e *CancelledError) Is(target error) bool { return target == ErrCancelled }
