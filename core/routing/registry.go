package routing

import (
	"context"
	"log/slog"
	"sync"

	"github.com/yilinwei/hazelcast/core/sf"
)

type RegistryOptions struct {
	Log       *slog.Logger
	Transport Transport
	// Sink receives the inbound frames of every connection; typically the
	// dispatcher.
	Sink Sink
	// OnConnectionClosed fires when a cached connection is dropped, so
	// in-flight invocations on it can be failed over.
	OnConnectionClosed func(Conn)
}

// Registry caches one connection per member address. Concurrent callers
// racing to reach the same member share a single dial.
type Registry struct {
	log      *slog.Logger
	t        Transport
	sink     Sink
	onClosed func(Conn)

	dials sf.Group[Conn]

	mu     sync.Mutex
	conns  map[string]Conn
	closed bool
}

func NewRegistry(opts RegistryOptions) (*Registry, error) {
	if opts.Transport == nil {
		return nil, errRequired("RegistryOptions.Transport")
	}
	if opts.Sink == nil {
		return nil, errRequired("RegistryOptions.Sink")
	}
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		log:      log,
		t:        opts.Transport,
		sink:     opts.Sink,
		onClosed: opts.OnConnectionClosed,
		conns:    make(map[string]Conn),
	}, nil
}

// Get returns the live connection to addr, dialing if necessary.
func (r *Registry) Get(ctx context.Context, addr string) (Conn, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrTransportClosed
	}
	if c, ok := r.conns[addr]; ok {
		r.mu.Unlock()
		return c, nil
	}
	r.mu.Unlock()

	return r.dials.Do(addr, func() (Conn, error) {
		// losers of the singleflight race see the winner's connection
		r.mu.Lock()
		if c, ok := r.conns[addr]; ok {
			r.mu.Unlock()
			return c, nil
		}
		r.mu.Unlock()

		c, err := r.t.Connect(ctx, addr, r.sink)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			_ = c.Close()
			return nil, ErrTransportClosed
		}
		r.conns[addr] = c
		r.mu.Unlock()

		r.log.Debug("connection established", slog.String("addr", addr))
		return c, nil
	})
}

// Drop closes and forgets the connection to addr, notifying the close
// listener so pending invocations on it fail over.
func (r *Registry) Drop(addr string) {
	r.mu.Lock()
	c, ok := r.conns[addr]
	delete(r.conns, addr)
	r.mu.Unlock()
	if !ok {
		return
	}

	_ = c.Close()
	r.log.Debug("connection dropped", slog.String("addr", addr))
	if r.onClosed != nil {
		r.onClosed(c)
	}
}

// Close drops every cached connection and rejects further dials.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	conns := make([]Conn, 0, len(r.conns))
	for addr, c := range r.conns {
		conns = append(conns, c)
		delete(r.conns, addr)
	}
	r.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
		if r.onClosed != nil {
			r.onClosed(c)
		}
	}
	return nil
}
