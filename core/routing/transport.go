package routing

import (
	"context"

	"github.com/yilinwei/hazelcast/core/invocation"
)

// Kind discriminates inbound frames.
type Kind int

const (
	// KindResponse closes a request with a result.
	KindResponse Kind = iota + 1
	// KindEvent is a server-pushed event of a long-lived stream; the
	// request stays open.
	KindEvent
	// KindFailure closes a request with a member-side failure.
	KindFailure
)

// Inbound is one frame arriving on a connection.
type Inbound struct {
	Kind          Kind
	CorrelationID int64
	Type          string
	Data          []byte
	// Err carries the classified failure for KindFailure frames.
	Err error
}

// Sink consumes the inbound frames of a connection. The transport invokes
// it from its read path, one frame at a time per connection.
type Sink func(in Inbound)

type (
	// Conn is one live link to a cluster member.
	Conn interface {
		invocation.Connection

		// Send enqueues one message for transmission. It fails
		// synchronously when the link is unusable.
		Send(msg invocation.Message) error

		Close() error
	}

	// Transport opens connections to members.
	Transport interface {
		// Connect opens a connection to the member at addr, delivering
		// inbound frames to sink.
		Connect(ctx context.Context, addr string, sink Sink) (Conn, error)

		Close() error
	}

	// Handler serves requests addressed to one member. push delivers
	// out-of-band events for the request's correlation id while the
	// stream stays open.
	Handler func(ctx context.Context, req invocation.Message, push func(event invocation.Message)) (*invocation.Message, error)
)
