package routing

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/yilinwei/hazelcast/core/invocation"
	"github.com/yilinwei/hazelcast/core/perkey"
)

// DefaultSweepInterval paces the housekeeping pass over in-flight attempts.
const DefaultSweepInterval = time.Second

type DispatcherOptions struct {
	Log *slog.Logger
	// SweepInterval paces deadline housekeeping. Zero means
	// DefaultSweepInterval; negative disables the sweeper (tests).
	SweepInterval time.Duration
}

// Dispatcher matches inbound frames to in-flight invocations by
// correlation id. Frames addressed to a correlation id that is no longer
// pending are stale and silently dropped. Event frames are delivered to
// the invocation's event handler, serialized per stream.
type Dispatcher struct {
	log    *slog.Logger
	events *perkey.Serializer[int64]

	mu       sync.RWMutex
	pending  map[int64]*attempt
	handlers map[int64]*invocation.Invocation

	stop chan struct{}
	once sync.Once
}

// attempt is one in-flight transmission: the invocation plus the
// connection that carried it.
type attempt struct {
	inv  *invocation.Invocation
	conn Conn
}

func NewDispatcher(opts DispatcherOptions) *Dispatcher {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	d := &Dispatcher{
		log:      log,
		events:   perkey.New[int64](),
		pending:  make(map[int64]*attempt),
		handlers: make(map[int64]*invocation.Invocation),
		stop:     make(chan struct{}),
	}

	interval := opts.SweepInterval
	if interval == 0 {
		interval = DefaultSweepInterval
	}
	if interval > 0 {
		go d.sweepLoop(interval)
	}
	return d
}

// Register tracks the current attempt of inv under its correlation id.
// Called by the router before the message leaves, so a reply can never
// beat its registration.
func (d *Dispatcher) Register(inv *invocation.Invocation, conn Conn) {
	id := inv.Message().CorrelationID
	d.mu.Lock()
	d.pending[id] = &attempt{inv: inv, conn: conn}
	if inv.EventHandler() != nil {
		d.handlers[id] = inv
	}
	d.mu.Unlock()
}

// Deregister forgets an attempt whose message never left the client.
func (d *Dispatcher) Deregister(correlationID int64) {
	d.mu.Lock()
	delete(d.pending, correlationID)
	delete(d.handlers, correlationID)
	d.mu.Unlock()
}

// Dispatch consumes one inbound frame. It is the Sink of every connection.
func (d *Dispatcher) Dispatch(in Inbound) {
	switch in.Kind {
	case KindResponse:
		a := d.take(in.CorrelationID)
		if a == nil {
			d.logStale("response", in.CorrelationID)
			return
		}
		a.inv.Notify(&invocation.Message{
			Type:          in.Type,
			Data:          in.Data,
			CorrelationID: in.CorrelationID,
		})

	case KindFailure:
		a := d.take(in.CorrelationID)
		if a == nil {
			d.logStale("failure", in.CorrelationID)
			return
		}
		// the stream (if any) died with the attempt
		d.removeHandler(in.CorrelationID)
		a.inv.NotifyError(in.Err)

	case KindEvent:
		d.mu.RLock()
		inv := d.handlers[in.CorrelationID]
		d.mu.RUnlock()
		if inv == nil {
			d.logStale("event", in.CorrelationID)
			return
		}
		h := inv.EventHandler()
		if h == nil {
			return
		}
		ev := &invocation.Message{
			Type:          in.Type,
			Data:          in.Data,
			CorrelationID: in.CorrelationID,
		}
		// per-stream order without stalling the read path
		if err := d.events.Submit(in.CorrelationID, func() { h(ev) }); err != nil {
			d.log.Debug("event dropped after dispatcher close", slog.Int64("correlation_id", in.CorrelationID))
		}

	default:
		d.log.Warn("unknown frame kind", slog.Int("kind", int(in.Kind)))
	}
}

// ConnectionClosed fails every attempt that is in flight on conn. Whether
// an invocation survives this is its own retry decision.
func (d *Dispatcher) ConnectionClosed(conn Conn) {
	var victims []*attempt
	d.mu.Lock()
	for id, a := range d.pending {
		if a.conn == conn {
			delete(d.pending, id)
			delete(d.handlers, id)
			victims = append(victims, a)
		}
	}
	d.mu.Unlock()

	if len(victims) == 0 {
		return
	}
	d.log.Debug("failing invocations on closed connection",
		slog.String("addr", conn.RemoteAddr()),
		slog.Int("count", len(victims)),
	)
	err := fmt.Errorf("%w: connection to %s closed", invocation.ErrTargetDisconnected, conn.RemoteAddr())
	for _, a := range victims {
		a.inv.NotifyError(err)
	}
}

// RemoveEventHandler stops event delivery for a stream, e.g. after a
// listener deregistration.
func (d *Dispatcher) RemoveEventHandler(correlationID int64) {
	d.removeHandler(correlationID)
}

// Pending reports the number of in-flight attempts.
func (d *Dispatcher) Pending() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.pending)
}

// Close stops housekeeping and event delivery. In-flight invocations are
// left to the lifecycle/shutdown path.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		close(d.stop)
		d.events.Close()
	})
}

func (d *Dispatcher) take(correlationID int64) *attempt {
	d.mu.Lock()
	defer d.mu.Unlock()
	a := d.pending[correlationID]
	if a != nil {
		delete(d.pending, correlationID)
	}
	return a
}

func (d *Dispatcher) removeHandler(correlationID int64) {
	d.mu.Lock()
	delete(d.handlers, correlationID)
	d.mu.Unlock()
}

func (d *Dispatcher) logStale(what string, correlationID int64) {
	d.log.Debug("stale frame discarded",
		slog.String("kind", what),
		slog.Int64("correlation_id", correlationID),
	)
}

func (d *Dispatcher) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			d.sweep(time.Now())
		}
	}
}

// sweep drops attempts whose future already completed elsewhere and fails
// those that outlived their deadline without any reply. The deadline check
// in the invocation's own decision tree then makes this terminal.
func (d *Dispatcher) sweep(now time.Time) {
	var expired []*attempt
	d.mu.Lock()
	for id, a := range d.pending {
		switch {
		case a.inv.Future().IsDone():
			delete(d.pending, id)
		case now.After(a.inv.Deadline()):
			delete(d.pending, id)
			delete(d.handlers, id)
			expired = append(expired, a)
		}
	}
	d.mu.Unlock()

	for _, a := range expired {
		a.inv.NotifyError(fmt.Errorf("%w: no response within deadline", invocation.ErrTargetDisconnected))
	}
}
