package invocation

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport classifies I/O failures on the path to a member.
	// Retried unless the invocation is bound to a single connection or the
	// deadline has passed.
	ErrTransport = errors.New("transport failure")

	// ErrTargetNotActive signals the target member left or has not joined
	// yet. Retried; the cluster may reassign ownership in the meantime.
	ErrTargetNotActive = errors.New("target member not active")

	// ErrTargetDisconnected signals the connection that carried the request
	// went down with the outcome unknown. Retried only for messages marked
	// retryable, since the operation may already have executed.
	ErrTargetDisconnected = errors.New("target disconnected")
)

// RetryableError marks failure categories that are explicitly safe to
// retry beyond the built-in sentinel classes.
type RetryableError interface {
	error
	Retryable() bool
}

// ClientNotActiveError terminates an invocation because the client runtime
// shut down mid-flight. It wraps the failure that was being handled when
// shutdown was detected.
type ClientNotActiveError struct {
	Cause error
}

func (e *ClientNotActiveError) Error() string {
	if e.Cause == nil {
		return "client not active"
	}
	return fmt.Sprintf("client not active: %v", e.Cause)
}

func (e *ClientNotActiveError) Unwrap() error { return e.Cause }

// isRetrySafe reports whether a failure category is known to be safely
// retriable without compounding side effects. Target disconnection is
// deliberately absent: it is only conditionally retryable.
func isRetrySafe(err error) bool {
	if errors.Is(err, ErrTransport) || errors.Is(err, ErrTargetNotActive) {
		return true
	}
	var r RetryableError
	return errors.As(err, &r) && r.Retryable()
}
