package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/yilinwei/hazelcast/core/invocation"
	"github.com/yilinwei/hazelcast/core/routing"
	"github.com/yilinwei/hazelcast/core/scheduler"
	"github.com/yilinwei/hazelcast/core/sequence"
)

// ErrShutdown rejects operations on a client that has been shut down.
var ErrShutdown = errors.New("client: shut down")

type Config struct {
	Context context.Context
	Log     *slog.Logger

	// Name identifies the client in logs. Defaults to a random id.
	Name string

	// Transport opens connections to members. Required.
	Transport routing.Transport

	// Members seeds the member table. The table can be updated later via
	// UpdateMembers as the topology changes.
	Members []string

	// Partitions is the cluster's fixed partition count.
	Partitions uint32

	// Seed salts partition and ownership hashing. All clients and members
	// of one cluster must agree on it.
	Seed string

	// Timeout bounds every invocation end to end.
	Timeout time.Duration

	// RetryWait is the fixed pause between invocation attempts.
	RetryWait time.Duration

	// MaxConcurrentInvocations caps in-flight invocations; beyond it,
	// Invoke fails fast with sequence.ErrOverload.
	MaxConcurrentInvocations int64

	// SchedulerMaxPending caps retries waiting for their backoff.
	SchedulerMaxPending int

	// SweepInterval paces the dispatcher's deadline housekeeping.
	SweepInterval time.Duration

	// Redo retries every operation after a retryable failure, including
	// non-idempotent ones.
	Redo bool

	Metrics  invocation.Metrics
	Executor invocation.Executor
}

// Client is a cluster client. It is safe for concurrent use; Shutdown
// fails the invocations still in flight.
type Client struct {
	ctx     context.Context
	cancel  context.CancelFunc
	log     *slog.Logger
	name    string
	running atomic.Bool

	members    *routing.MemberTable
	sequence   *sequence.Sequence
	scheduler  *scheduler.Scheduler
	dispatcher *routing.Dispatcher
	registry   *routing.Registry
	router     *routing.Router
	svc        *invocation.Service
}

func New(cfg Config) (c *Client, err error) {
	if cfg.Transport == nil {
		return nil, fmt.Errorf("client: Config.Transport is required")
	}

	c = &Client{}

	// === identity and logging ===
	c.name = cfg.Name
	if c.name == "" {
		c.name = fmt.Sprintf("client-%s", gonanoid.Must(6))
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	c.log = log.With(slog.String("client", c.name))

	// === context ===
	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}
	c.ctx, c.cancel = context.WithCancel(ctx)

	// === routing ===
	c.members = routing.NewMemberTable(cfg.Members, cfg.Partitions, cfg.Seed)
	c.dispatcher = routing.NewDispatcher(routing.DispatcherOptions{
		Log:           c.log,
		SweepInterval: cfg.SweepInterval,
	})
	c.registry, err = routing.NewRegistry(routing.RegistryOptions{
		Log:                c.log,
		Transport:          cfg.Transport,
		Sink:               c.dispatcher.Dispatch,
		OnConnectionClosed: c.dispatcher.ConnectionClosed,
	})
	if err != nil {
		return nil, err
	}
	c.router, err = routing.NewRouter(routing.RouterOptions{
		Context:    c.ctx,
		Log:        c.log,
		Members:    c.members,
		Registry:   c.registry,
		Dispatcher: c.dispatcher,
	})
	if err != nil {
		return nil, err
	}

	// === invocations ===
	c.sequence = sequence.New(cfg.MaxConcurrentInvocations)
	c.scheduler = scheduler.New(scheduler.Options{
		Context:    c.ctx,
		Log:        c.log,
		MaxPending: cfg.SchedulerMaxPending,
	})
	c.svc, err = invocation.NewService(invocation.Options{
		Log:       c.log,
		Router:    c.router,
		Sequence:  c.sequence,
		Scheduler: c.scheduler,
		Lifecycle: c,
		Metrics:   cfg.Metrics,
		Executor:  cfg.Executor,
		Timeout:   cfg.Timeout,
		RetryWait: cfg.RetryWait,
		Redo:      cfg.Redo,
	})
	if err != nil {
		return nil, err
	}

	c.running.Store(true)
	c.log.Debug("client ready", slog.Int("members", len(cfg.Members)))
	return c, nil
}

// IsRunning reports whether the client accepts and retries invocations.
func (c *Client) IsRunning() bool { return c.running.Load() }

// Name returns the client's log identity.
func (c *Client) Name() string { return c.name }

// Invoke sends msg to any member and returns the pending result.
func (c *Client) Invoke(msg *invocation.Message) (*invocation.Future, error) {
	return c.svc.New(msg).Invoke()
}

// InvokeUrgent sends msg bypassing the concurrent-invocation budget.
// Reserved for internal traffic that must go out even under overload,
// such as heartbeats and auth.
func (c *Client) InvokeUrgent(msg *invocation.Message) (*invocation.Future, error) {
	return c.svc.New(msg).InvokeUrgent()
}

// InvokeOnKey sends msg to the owner of key's partition.
func (c *Client) InvokeOnKey(msg *invocation.Message, key string) (*invocation.Future, error) {
	return c.svc.NewOnPartition(msg, c.members.PartitionForKey(key)).Invoke()
}

// InvokeOnPartition sends msg to the owner of the partition.
func (c *Client) InvokeOnPartition(msg *invocation.Message, partitionID int32) (*invocation.Future, error) {
	return c.svc.NewOnPartition(msg, partitionID).Invoke()
}

// InvokeOnTarget sends msg to the member at target.
func (c *Client) InvokeOnTarget(msg *invocation.Message, target string) (*invocation.Future, error) {
	return c.svc.NewOnTarget(msg, target).Invoke()
}

// InvokeOnConnection pins msg to conn. Bound invocations are never
// retried on another connection.
func (c *Client) InvokeOnConnection(msg *invocation.Message, conn invocation.Connection) (*invocation.Future, error) {
	return c.svc.NewOnConnection(msg, conn).Invoke()
}

// Call is Invoke followed by a wait for the result.
func (c *Client) Call(ctx context.Context, msg *invocation.Message) (*invocation.Message, error) {
	f, err := c.Invoke(msg)
	if err != nil {
		return nil, err
	}
	return f.Get(ctx)
}

// CallOnKey is InvokeOnKey followed by a wait for the result.
func (c *Client) CallOnKey(ctx context.Context, msg *invocation.Message, key string) (*invocation.Message, error) {
	f, err := c.InvokeOnKey(msg, key)
	if err != nil {
		return nil, err
	}
	return f.Get(ctx)
}

// Listen registers handler for server-pushed events of this invocation
// and sends it. The handler persists across retries; events keep flowing
// after the registration response until RemoveListener.
func (c *Client) Listen(msg *invocation.Message, handler invocation.EventHandler) (*invocation.Future, error) {
	inv := c.svc.New(msg)
	inv.SetEventHandler(handler)
	return inv.Invoke()
}

// RemoveListener stops event delivery for the stream opened under
// correlationID.
func (c *Client) RemoveListener(correlationID int64) {
	c.dispatcher.RemoveEventHandler(correlationID)
}

// UpdateMembers replaces the known member list on a topology change.
func (c *Client) UpdateMembers(members []string) {
	c.members.Update(members)
	c.log.Debug("members updated", slog.Int("count", len(members)))
}

// Members returns the known member addresses.
func (c *Client) Members() []string { return c.members.Members() }

// PartitionForKey maps key onto its partition.
func (c *Client) PartitionForKey(key string) int32 {
	return c.members.PartitionForKey(key)
}

// Connection returns the live connection to addr, dialing if necessary.
func (c *Client) Connection(ctx context.Context, addr string) (routing.Conn, error) {
	if !c.running.Load() {
		return nil, ErrShutdown
	}
	return c.registry.Get(ctx, addr)
}

// Pending reports the number of in-flight invocation attempts.
func (c *Client) Pending() int { return c.dispatcher.Pending() }

// Shutdown stops the client. In-flight invocations fail with a
// client-not-active error; late replies are dropped.
func (c *Client) Shutdown(ctx context.Context) error {
	if !c.running.CompareAndSwap(true, false) {
		return nil
	}
	c.log.Debug("shutting down")

	// closing connections fails the in-flight attempts; with the
	// lifecycle already stopped they complete as client-not-active
	err := c.registry.Close()
	c.scheduler.Stop()
	c.dispatcher.Close()
	c.cancel()

	c.log.Info("client stopped")
	return err
}

var _ invocation.Lifecycle = (*Client)(nil)
