// Package scheduler runs delayed tasks, primarily invocation retries.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrStopped is returned by Schedule after the scheduler shut down.
	ErrStopped = errors.New("scheduler: stopped")
	// ErrSaturated is returned when the pending-task budget is exhausted.
	ErrSaturated = errors.New("scheduler: pending task budget exhausted")
)

type Options struct {
	Context context.Context // shutdown hook; stops the scheduler when done
	Log     *slog.Logger
	// MaxPending caps delayed plus running tasks. If <= 0, unlimited.
	MaxPending int
}

// Scheduler runs tasks after a delay. Shutdown cancels timers that have not
// fired yet, runs their tasks immediately and waits for tasks that are
// already running. Every accepted task runs exactly once.
type Scheduler struct {
	log     *slog.Logger
	max     int64
	pending atomic.Int64
	stopped atomic.Bool

	mu     sync.Mutex
	seq    int64
	timers map[int64]*delayed

	wg sync.WaitGroup
}

type delayed struct {
	timer *time.Timer
	task  func()
}

func New(opts Options) *Scheduler {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	s := &Scheduler{
		log:    log,
		max:    int64(opts.MaxPending),
		timers: make(map[int64]*delayed),
	}
	if opts.Context != nil {
		context.AfterFunc(opts.Context, s.Stop)
	}
	return s
}

// Schedule runs task after delay. It fails with ErrStopped after shutdown
// and with ErrSaturated when MaxPending tasks are already pending.
func (s *Scheduler) Schedule(task func(), delay time.Duration) error {
	if s.stopped.Load() {
		return ErrStopped
	}
	if s.pending.Add(1) > s.max && s.max > 0 {
		s.pending.Add(-1)
		return ErrSaturated
	}

	s.mu.Lock()
	if s.stopped.Load() {
		s.mu.Unlock()
		s.pending.Add(-1)
		return ErrStopped
	}
	s.seq++
	id := s.seq
	s.wg.Add(1)
	d := &delayed{task: task}
	d.timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, id)
		s.mu.Unlock()
		s.run(task)
	})
	s.timers[id] = d
	s.mu.Unlock()
	return nil
}

func (s *Scheduler) run(task func()) {
	defer s.wg.Done()
	defer s.pending.Add(-1)
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("scheduled task panicked", slog.Any("recovered", r))
		}
	}()
	task()
}

// Stop rejects new tasks, cancels not-yet-fired timers and waits for running
// tasks to finish. Cancelled tasks still run, once, before Stop returns:
// a task parked on a timer must observe shutdown instead of vanishing, or
// whoever waits on its outcome hangs forever. Stop is idempotent.
func (s *Scheduler) Stop() {
	if s.stopped.Swap(true) {
		return
	}

	var cancelled []func()
	s.mu.Lock()
	for id, d := range s.timers {
		if d.timer.Stop() {
			// timer never fired, the task is ours to run
			cancelled = append(cancelled, d.task)
		}
		delete(s.timers, id)
	}
	s.mu.Unlock()

	for _, task := range cancelled {
		s.run(task)
	}

	s.wg.Wait()
}

// Pending reports how many tasks are delayed or running.
func (s *Scheduler) Pending() int64 {
	return s.pending.Load()
}
