// Package perkey serializes asynchronous work per key while letting work
// for different keys proceed in parallel.
//
// Typical use-case: delivering server-pushed events for one request stream
// in arrival order without stalling the network reader, or other streams.
package perkey

import (
	"errors"
	"sync"
)

// ErrSerializerClosed is returned by Submit after Close.
var ErrSerializerClosed = errors.New("perkey: serializer closed")

// Serializer runs submitted tasks such that, for any given key, tasks
// execute sequentially in submission order. Tasks never run on the
// submitting goroutine.
type Serializer[K comparable] struct {
	mu     sync.Mutex
	queues map[K]*keyQueue
	closed bool
	wg     sync.WaitGroup
}

type keyQueue struct {
	tasks []func()
}

func New[K comparable]() *Serializer[K] {
	return &Serializer[K]{queues: make(map[K]*keyQueue)}
}

// Submit enqueues fn behind any pending work for key and returns without
// waiting for it to run.
func (s *Serializer[K]) Submit(key K, fn func()) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSerializerClosed
	}
	q, active := s.queues[key]
	if !active {
		q = &keyQueue{}
		s.queues[key] = q
	}
	q.tasks = append(q.tasks, fn)
	if !active {
		s.wg.Add(1)
		go s.drain(key, q)
	}
	s.mu.Unlock()
	return nil
}

// drain owns the queue for key until it is empty. The map entry is removed
// under the same lock that guards appends, so at most one drain goroutine
// exists per key.
func (s *Serializer[K]) drain(key K, q *keyQueue) {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		if len(q.tasks) == 0 {
			delete(s.queues, key)
			s.mu.Unlock()
			return
		}
		fn := q.tasks[0]
		q.tasks = q.tasks[1:]
		s.mu.Unlock()

		fn()
	}
}

// Close rejects further submissions and waits for queued tasks to finish.
func (s *Serializer[K]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.wg.Wait()
}
