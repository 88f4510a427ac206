package invocation

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yilinwei/hazelcast/core/metrics"
)

const (
	// DefaultTimeout bounds an invocation end to end, across all attempts.
	DefaultTimeout = 120 * time.Second
	// DefaultRetryWait is the fixed interval between attempts.
	DefaultRetryWait = time.Second
)

type (
	// Router resolves a binding to an actual transmission. Every method
	// either enqueues the message on a connection or fails synchronously.
	Router interface {
		InvokeOnConnection(inv *Invocation, conn Connection) error
		InvokeOnPartitionOwner(inv *Invocation, partitionID int32) error
		InvokeOnTarget(inv *Invocation, target string) error
		InvokeOnRandomTarget(inv *Invocation) error
	}

	// Sequence issues correlation ids under an admission-controlled budget.
	// Next may reject with the sequence's overload error; Renew is the fast
	// path for urgent traffic. Each issued id is released with exactly one
	// Complete call.
	Sequence interface {
		Next() (int64, error)
		Renew() (int64, error)
		Complete()
	}

	// Scheduler runs a task once after a delay. It may reject when
	// saturated or shut down.
	Scheduler interface {
		Schedule(task func(), delay time.Duration) error
	}

	// Lifecycle reports whether the client runtime is still active.
	Lifecycle interface {
		IsRunning() bool
	}

	// EventHandler consumes server-pushed events of a long-lived stream
	// opened by an invocation. It persists across retries and is
	// re-attached to whichever connection ultimately serves the request.
	EventHandler func(event *Message)
)

// Invocation drives one logical request: correlation-id assignment,
// routing, asynchronous completion and the retry decision. Instances are
// created through a [Service] and invoked at most once by the caller;
// retries re-enter internally.
type Invocation struct {
	svc      *Service
	log      *slog.Logger
	msg      *Message
	binding  Binding
	deadline time.Time
	future   *Future
	timer    metrics.Timer

	urgent     bool
	idAssigned atomic.Bool

	mu        sync.Mutex
	sendConn  Connection
	connBound chan struct{}
	handler   EventHandler
}

// Invoke assigns a correlation id, routes the message and returns the
// future. The only synchronous errors are a nil message and admission
// overload; any other failure is classified through the retry decision
// tree and surfaces via the future.
func (inv *Invocation) Invoke() (*Future, error) {
	return inv.invoke()
}

// InvokeUrgent is Invoke on the sequence's fast path, for control traffic
// (heartbeats, auth) that must not be starved by a saturated budget.
func (inv *Invocation) InvokeUrgent() (*Future, error) {
	inv.urgent = true
	return inv.invoke()
}

func (inv *Invocation) invoke() (*Future, error) {
	if inv.msg == nil {
		return nil, errors.New("invocation: message is required")
	}

	var (
		id  int64
		err error
	)
	if inv.urgent {
		id, err = inv.svc.sequence.Renew()
	} else {
		id, err = inv.svc.sequence.Next()
	}
	if err != nil {
		// Admission rejection propagates synchronously and is never
		// queued for retry.
		inv.svc.metrics.OverloadRejected(inv.msg.Type)
		return nil, err
	}
	inv.msg.CorrelationID = id
	inv.idAssigned.Store(true)
	inv.svc.metrics.AttemptStarted(inv.msg.Type)

	if err := inv.route(); err != nil {
		// Synchronous routing failures take the same path as
		// asynchronous ones.
		inv.NotifyError(err)
	}
	return inv.future, nil
}

// route resolves the binding in fixed priority order:
// connection > partition > target > none.
func (inv *Invocation) route() error {
	switch inv.binding.mode {
	case bindConnection:
		return inv.svc.router.InvokeOnConnection(inv, inv.binding.conn)
	case bindPartition:
		return inv.svc.router.InvokeOnPartitionOwner(inv, inv.binding.partitionID)
	case bindTarget:
		return inv.svc.router.InvokeOnTarget(inv, inv.binding.target)
	default:
		return inv.svc.router.InvokeOnRandomTarget(inv)
	}
}

// retry is the scheduled re-entry point. It releases the previous
// attempt's correlation id before assigning the next one. Failures here
// terminate the future; nothing escapes to the scheduler.
func (inv *Invocation) retry() {
	inv.releaseID()
	inv.resetAttempt()
	if _, err := inv.invoke(); err != nil {
		inv.completeWith(nil, err)
	}
}

// Notify completes the future with a response. A notification for an
// already-terminal future is a benign no-op; see the package documentation.
func (inv *Invocation) Notify(resp *Message) {
	if resp == nil {
		panic("invocation: response must not be nil")
	}
	inv.completeWith(resp, nil)
}

// NotifyError classifies a failed attempt and either schedules a retry or
// completes the future. See the package documentation for the decision
// tree.
func (inv *Invocation) NotifyError(err error) {
	if !inv.svc.lifecycle.IsRunning() {
		inv.completeWith(nil, &ClientNotActiveError{Cause: err})
		return
	}

	if (inv.binding.mode == bindConnection && errors.Is(err, ErrTransport)) ||
		time.Now().After(inv.deadline) {
		inv.completeWith(nil, err)
		return
	}

	if isRetrySafe(err) || inv.svc.redo ||
		(errors.Is(err, ErrTargetDisconnected) && inv.msg.Retryable) {
		if schedErr := inv.svc.scheduler.Schedule(inv.retry, inv.svc.retryWait); schedErr != nil {
			// The caller sees the failure that triggered the retry, not
			// the scheduler rejection.
			inv.log.Debug("retry could not be scheduled",
				slog.Int64("correlation_id", inv.msg.CorrelationID),
				slog.Any("error", schedErr),
			)
			inv.completeWith(nil, err)
			return
		}
		inv.svc.metrics.RetryScheduled(inv.msg.Type)
		inv.log.Debug("retry scheduled",
			slog.String("type", inv.msg.Type),
			slog.Int64("correlation_id", inv.msg.CorrelationID),
			slog.Any("cause", err),
		)
		return
	}

	inv.completeWith(nil, err)
}

// completeWith performs the terminal transition, at most once.
func (inv *Invocation) completeWith(resp *Message, err error) {
	if inv.future.complete(resp, err) {
		inv.svc.metrics.Completed(inv.msgType(), err == nil)
	}
}

// onTerminal runs exactly once, inside the future's winning transition.
func (inv *Invocation) onTerminal() {
	inv.releaseID()
	inv.timer.ObserveDuration()
}

// releaseID returns the currently assigned correlation id to the sequence,
// at most once per assignment.
func (inv *Invocation) releaseID() {
	if inv.idAssigned.CompareAndSwap(true, false) {
		inv.svc.sequence.Complete()
	}
}

// resetAttempt clears the send connection for the next attempt and arms a
// fresh bound signal.
func (inv *Invocation) resetAttempt() {
	inv.mu.Lock()
	inv.sendConn = nil
	inv.connBound = make(chan struct{})
	inv.mu.Unlock()
}

// SetSendConnection records the connection that carried the current
// attempt and wakes anyone blocked in AwaitSendConnection. Called by the
// routing layer, at most once per attempt.
func (inv *Invocation) SetSendConnection(conn Connection) {
	inv.mu.Lock()
	inv.sendConn = conn
	select {
	case <-inv.connBound:
	default:
		close(inv.connBound)
	}
	inv.mu.Unlock()
}

// SendConnection returns the connection of the current attempt, or nil if
// none is bound yet.
func (inv *Invocation) SendConnection() Connection {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.sendConn
}

// AwaitSendConnection blocks until a connection is bound for the in-flight
// attempt or the future turns terminal, returning (nil, nil) in the latter
// case. Collaborators use it to correlate out-of-band events against the
// connection that ultimately carried a possibly retried request.
func (inv *Invocation) AwaitSendConnection(ctx context.Context) (Connection, error) {
	for {
		inv.mu.Lock()
		conn, bound := inv.sendConn, inv.connBound
		inv.mu.Unlock()
		if conn != nil {
			return conn, nil
		}

		select {
		case <-bound:
		case <-inv.future.Done():
			inv.mu.Lock()
			conn = inv.sendConn
			inv.mu.Unlock()
			return conn, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Future returns the invocation's result holder.
func (inv *Invocation) Future() *Future { return inv.future }

// Message returns the message of this invocation. The correlation id on it
// belongs to the current attempt.
func (inv *Invocation) Message() *Message { return inv.msg }

// PartitionID returns the partition hint, or UnassignedPartition.
func (inv *Invocation) PartitionID() int32 { return inv.binding.partitionID }

// Deadline returns the absolute point after which no further retry is
// attempted. Fixed at construction.
func (inv *Invocation) Deadline() time.Time { return inv.deadline }

// EventHandler returns the attached event handler, or nil.
func (inv *Invocation) EventHandler() EventHandler {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.handler
}

// SetEventHandler attaches a handler for server-pushed events. Set it
// before Invoke.
func (inv *Invocation) SetEventHandler(h EventHandler) {
	inv.mu.Lock()
	inv.handler = h
	inv.mu.Unlock()
}

func (inv *Invocation) msgType() string {
	if inv.msg == nil {
		return ""
	}
	return inv.msg.Type
}
