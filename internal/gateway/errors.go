package gateway

import (
	"errors"
	"fmt"
)

// ProviderError describes a failed call to an external service. Transient
// errors (timeouts, rate limits, 5xx) are retried with backoff; fatal ones
// surface immediately.
type ProviderError struct {
	Op        string
	Status    int
	Transient bool
	Err       error
}

func (e *ProviderError) Error() string {
	kind := "fatal"
	if e.Transient {
		kind = "transient"
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s provider error (HTTP %d): %v", e.Op, kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %s provider error: %v", e.Op, kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a retryable provider error.
func IsTransient(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Transient
	}
	return false
}
