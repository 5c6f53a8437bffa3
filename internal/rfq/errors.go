package rfq

import (
	"context"
	"errors"
	"fmt"
)

// maxErrorBody bounds how much response text is carried in error messages.
const maxErrorBody = 512

func truncate(s string) string {
	if len(s) <= maxErrorBody {
		return s
	}
	return s[:maxErrorBody] + "…"
}

// AuthError reports a failed credential exchange. It is never retried.
type AuthError struct {
	StatusCode int    // zero when no response was received
	Body       string // response text, if any
	Err        error  // underlying cause (transport or schema), if any
}

func (e *AuthError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("rfq auth: token endpoint returned %d: %s", e.StatusCode, truncate(e.Body))
	}
	return fmt.Sprintf("rfq auth: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// ServiceError reports a non-2xx response from the RFQ API.
type ServiceError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("rfq %s returned %d: %s", e.Operation, e.StatusCode, truncate(e.Body))
}

// Transient reports whether the status indicates a server-side fault (5xx).
// 4xx responses are the caller's fault and will not succeed on retry.
func (e *ServiceError) Transient() bool {
	return e.StatusCode >= 500 && e.StatusCode <= 599
}

// TransportError reports a call that produced no response at all.
type TransportError struct {
	Operation string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("rfq %s: transport failure: %v", e.Operation, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// SchemaError reports a 2xx response missing a required field or carrying an invalid value.
type SchemaError struct {
	Operation string
	Field     string
	Reason    string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("rfq %s: invalid response field %q: %s", e.Operation, e.Field, e.Reason)
}

// IsTransient classifies err as worth retrying: a 5xx ServiceError, or a
// TransportError that was not caused by the caller's own cancellation.
// A per-request timeout is transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Transient()
	}
	var trErr *TransportError
	return errors.As(err, &trErr)
}
