package invocation

import (
	"fmt"
	"log/slog"
	"time"
)

// Options wires the collaborators shared by all invocations of one client.
// Router, Sequence, Scheduler and Lifecycle are required; everything else
// has defaults.
type Options struct {
	Log       *slog.Logger
	Router    Router
	Sequence  Sequence
	Scheduler Scheduler
	Lifecycle Lifecycle
	Metrics   Metrics
	// Executor dispatches future continuations. Defaults to a goroutine
	// per callback.
	Executor Executor
	// Timeout bounds an invocation end to end. The deadline is computed
	// once at construction and never extended by retries.
	Timeout time.Duration
	// RetryWait is the fixed interval between attempts.
	RetryWait time.Duration
	// Redo blindly retries every operation after a retryable failure,
	// including non-idempotent ones. Off by default.
	Redo bool
}

// Service creates invocations against one cluster client.
type Service struct {
	log       *slog.Logger
	router    Router
	sequence  Sequence
	scheduler Scheduler
	lifecycle Lifecycle
	metrics   Metrics
	executor  Executor
	timeout   time.Duration
	retryWait time.Duration
	redo      bool
}

func NewService(opts Options) (*Service, error) {
	if opts.Router == nil {
		return nil, fmt.Errorf("invocation: Options.Router is required")
	}
	if opts.Sequence == nil {
		return nil, fmt.Errorf("invocation: Options.Sequence is required")
	}
	if opts.Scheduler == nil {
		return nil, fmt.Errorf("invocation: Options.Scheduler is required")
	}
	if opts.Lifecycle == nil {
		return nil, fmt.Errorf("invocation: Options.Lifecycle is required")
	}

	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	m := opts.Metrics
	if m == nil {
		m = NopMetrics()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	retryWait := opts.RetryWait
	if retryWait <= 0 {
		retryWait = DefaultRetryWait
	}

	return &Service{
		log:       log,
		router:    opts.Router,
		sequence:  opts.Sequence,
		scheduler: opts.Scheduler,
		lifecycle: opts.Lifecycle,
		metrics:   m,
		executor:  opts.Executor,
		timeout:   timeout,
		retryWait: retryWait,
		redo:      opts.Redo,
	}, nil
}

// New creates an invocation the router may send to any member.
func (s *Service) New(msg *Message) *Invocation {
	return s.newInvocation(msg, BindAny())
}

// NewOnPartition creates an invocation routed to a partition's owner.
func (s *Service) NewOnPartition(msg *Message, partitionID int32) *Invocation {
	return s.newInvocation(msg, BindPartition(partitionID))
}

// NewOnTarget creates an invocation routed to a specific member address.
func (s *Service) NewOnTarget(msg *Message, target string) *Invocation {
	return s.newInvocation(msg, BindTarget(target))
}

// NewOnConnection creates an invocation pinned to one connection. It never
// retries past a transport failure.
func (s *Service) NewOnConnection(msg *Message, conn Connection) *Invocation {
	return s.newInvocation(msg, BindConnection(conn))
}

func (s *Service) newInvocation(msg *Message, b Binding) *Invocation {
	msgType := ""
	if msg != nil {
		msgType = msg.Type
	}
	inv := &Invocation{
		svc:       s,
		log:       s.log,
		msg:       msg,
		binding:   b,
		deadline:  time.Now().Add(s.timeout),
		timer:     s.metrics.Duration(msgType),
		connBound: make(chan struct{}),
	}
	inv.future = newFuture(s.executor, inv.onTerminal)
	return inv
}
