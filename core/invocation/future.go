package invocation

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrFutureTimeout is returned by GetWithTimeout when no result arrived in
// time. The invocation itself keeps running; only the wait gave up.
var ErrFutureTimeout = errors.New("invocation: result not available in time")

// Executor runs completion callbacks. Callbacks must never run on the
// goroutine that delivers network events, so the default executor spawns a
// goroutine per callback.
type Executor func(task func())

func goExecutor(task func()) { go task() }

// Future is the single-completion result holder of one invocation. It
// transitions exactly once, from pending to either a response or an error;
// later transition attempts are dropped.
type Future struct {
	exec Executor

	mu        sync.Mutex
	completed bool
	resp      *Message
	err       error
	callbacks []func(*Message, error)
	onDone    func()

	done chan struct{}
}

func newFuture(exec Executor, onDone func()) *Future {
	if exec == nil {
		exec = goExecutor
	}
	return &Future{
		exec:   exec,
		onDone: onDone,
		done:   make(chan struct{}),
	}
}

// complete performs the one-shot transition. The first caller wins; every
// later call reports false and changes nothing.
func (f *Future) complete(resp *Message, err error) bool {
	f.mu.Lock()
	if f.completed {
		f.mu.Unlock()
		return false
	}
	f.completed = true
	f.resp, f.err = resp, err
	cbs := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	if f.onDone != nil {
		f.onDone()
	}
	for _, cb := range cbs {
		cb := cb
		f.exec(func() { cb(resp, err) })
	}
	return true
}

// Done is closed once the future is terminal.
func (f *Future) Done() <-chan struct{} { return f.done }

// IsDone reports whether the future reached a terminal state.
func (f *Future) IsDone() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Get blocks until the future completes or ctx is done.
func (f *Future) Get(ctx context.Context) (*Message, error) {
	select {
	case <-f.done:
		return f.result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// GetWithTimeout blocks for at most d, failing with ErrFutureTimeout.
func (f *Future) GetWithTimeout(d time.Duration) (*Message, error) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-f.done:
		return f.result()
	case <-t.C:
		return nil, ErrFutureTimeout
	}
}

// Then registers a continuation dispatched on the future's executor once
// the future completes. If the future is already terminal, the callback is
// dispatched immediately.
func (f *Future) Then(cb func(resp *Message, err error)) {
	f.mu.Lock()
	if !f.completed {
		f.callbacks = append(f.callbacks, cb)
		f.mu.Unlock()
		return
	}
	resp, err := f.resp, f.err
	f.mu.Unlock()

	f.exec(func() { cb(resp, err) })
}

func (f *Future) result() (*Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}
