package routing

import (
	"errors"
	"fmt"

	"github.com/yilinwei/hazelcast/core/invocation"
)

var (
	ErrTransportClosed  = errors.New("routing: transport closed")
	ErrConnectionClosed = errors.New("routing: connection closed")
	ErrNoMembers        = errors.New("routing: no known members")
)

func errRequired(field string) error {
	return fmt.Errorf("routing: %s is required", field)
}

// Wire codes for member-side failures. Categories must survive the trip
// back to the client so the retry decision can classify them.
const (
	codeTransport          = "transport"
	codeTargetNotActive    = "target_not_active"
	codeTargetDisconnected = "target_disconnected"
	codeRetryable          = "retryable"
	codeGeneric            = ""
)

// retryableError is a generic failure the member declared safe to retry.
type retryableError struct {
	msg string
}

func (e *retryableError) Error() string   { return e.msg }
func (e *retryableError) Retryable() bool { return true }

// EncodeError maps a member-side failure onto its wire code and message.
func EncodeError(err error) (code, msg string) {
	switch {
	case errors.Is(err, invocation.ErrTransport):
		code = codeTransport
	case errors.Is(err, invocation.ErrTargetNotActive):
		code = codeTargetNotActive
	case errors.Is(err, invocation.ErrTargetDisconnected):
		code = codeTargetDisconnected
	default:
		var r invocation.RetryableError
		if errors.As(err, &r) && r.Retryable() {
			code = codeRetryable
		}
	}
	return code, err.Error()
}

// DecodeError reconstructs the failure category on the client side.
func DecodeError(code, msg string) error {
	switch code {
	case codeTransport:
		return fmt.Errorf("%w: %s", invocation.ErrTransport, msg)
	case codeTargetNotActive:
		return fmt.Errorf("%w: %s", invocation.ErrTargetNotActive, msg)
	case codeTargetDisconnected:
		return fmt.Errorf("%w: %s", invocation.ErrTargetDisconnected, msg)
	case codeRetryable:
		return &retryableError{msg: msg}
	default:
		return errors.New(msg)
	}
}
