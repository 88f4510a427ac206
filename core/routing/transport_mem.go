package routing

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/yilinwei/hazelcast/core/invocation"
)

// MemoryTransport is an in-process Transport. Members register a Handler
// under their address; connections deliver requests to it on a fresh
// goroutine, mirroring the asynchronous delivery of a real wire.
type MemoryTransport struct {
	log *slog.Logger

	mu      sync.RWMutex
	closed  bool
	members map[string]Handler
}

func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{
		log:     slog.New(slog.DiscardHandler),
		members: make(map[string]Handler),
	}
}

func (t *MemoryTransport) WithLog(log *slog.Logger) *MemoryTransport {
	t.log = log.With(slog.String("transport", "mem"))
	return t
}

// Serve registers a member handler under addr. The returned function
// removes the member again, simulating it leaving the cluster.
func (t *MemoryTransport) Serve(addr string, h Handler) (func(), error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrTransportClosed
	}
	if _, dup := t.members[addr]; dup {
		return nil, fmt.Errorf("routing: member %s already registered", addr)
	}
	t.members[addr] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.members, addr)
			t.mu.Unlock()
			t.log.Debug("member removed", slog.String("addr", addr))
		})
	}, nil
}

func (t *MemoryTransport) Connect(ctx context.Context, addr string, sink Sink) (Conn, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		return nil, ErrTransportClosed
	}
	if _, ok := t.members[addr]; !ok {
		return nil, fmt.Errorf("routing: no member at %s", addr)
	}

	c := &memConn{
		t:    t,
		ctx:  ctx,
		id:   gonanoid.Must(8),
		addr: addr,
		sink: sink,
	}
	t.log.Debug("connected", slog.String("addr", addr), slog.String("conn", c.id))
	return c, nil
}

func (t *MemoryTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	for addr := range t.members {
		delete(t.members, addr)
	}
	t.log.Debug("closed")
	return nil
}

func (t *MemoryTransport) handlerFor(addr string) Handler {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return nil
	}
	return t.members[addr]
}

type memConn struct {
	t    *MemoryTransport
	ctx  context.Context
	id   string
	addr string
	sink Sink

	mu     sync.Mutex
	closed bool
}

func (c *memConn) RemoteAddr() string { return c.addr }

func (c *memConn) Send(msg invocation.Message) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrConnectionClosed
	}

	h := c.t.handlerFor(c.addr)
	if h == nil {
		return fmt.Errorf("routing: member %s gone", c.addr)
	}

	go c.serve(h, msg)
	return nil
}

func (c *memConn) serve(h Handler, msg invocation.Message) {
	push := func(event invocation.Message) {
		c.deliver(Inbound{
			Kind:          KindEvent,
			CorrelationID: msg.CorrelationID,
			Type:          event.Type,
			Data:          event.Data,
		})
	}

	resp, err := h(c.ctx, msg, push)
	if err != nil {
		// encode/decode roundtrip keeps failure classification identical
		// to what a remote member produces
		code, text := EncodeError(err)
		c.deliver(Inbound{
			Kind:          KindFailure,
			CorrelationID: msg.CorrelationID,
			Err:           DecodeError(code, text),
		})
		return
	}

	in := Inbound{Kind: KindResponse, CorrelationID: msg.CorrelationID}
	if resp != nil {
		in.Type = resp.Type
		in.Data = resp.Data
	}
	c.deliver(in)
}

func (c *memConn) deliver(in Inbound) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		c.t.log.Debug("dropping frame on closed connection",
			slog.String("conn", c.id),
			slog.Int64("correlation_id", in.CorrelationID),
		)
		return
	}
	c.sink(in)
}

func (c *memConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

var _ Transport = (*MemoryTransport)(nil)
