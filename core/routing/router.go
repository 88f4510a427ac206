package routing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yilinwei/hazelcast/core/invocation"
)

type RouterOptions struct {
	// Context bounds dials made on behalf of invocations.
	Context    context.Context
	Log        *slog.Logger
	Members    *MemberTable
	Registry   *Registry
	Dispatcher *Dispatcher
}

// Router implements invocation.Router on top of the member table, the
// connection registry and the dispatcher.
type Router struct {
	ctx        context.Context
	log        *slog.Logger
	members    *MemberTable
	registry   *Registry
	dispatcher *Dispatcher
}

func NewRouter(opts RouterOptions) (*Router, error) {
	if opts.Members == nil {
		return nil, errRequired("RouterOptions.Members")
	}
	if opts.Registry == nil {
		return nil, errRequired("RouterOptions.Registry")
	}
	if opts.Dispatcher == nil {
		return nil, errRequired("RouterOptions.Dispatcher")
	}
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	return &Router{
		ctx:        ctx,
		log:        log,
		members:    opts.Members,
		registry:   opts.Registry,
		dispatcher: opts.Dispatcher,
	}, nil
}

func (r *Router) InvokeOnConnection(inv *invocation.Invocation, conn invocation.Connection) error {
	c, ok := conn.(Conn)
	if !ok {
		return fmt.Errorf("routing: connection %T does not belong to this transport", conn)
	}
	return r.send(inv, c)
}

func (r *Router) InvokeOnPartitionOwner(inv *invocation.Invocation, partitionID int32) error {
	owner, err := r.members.OwnerOf(partitionID)
	if err != nil {
		return err
	}
	return r.sendToAddr(inv, owner)
}

func (r *Router) InvokeOnTarget(inv *invocation.Invocation, target string) error {
	if !r.members.Contains(target) {
		return fmt.Errorf("%w: %s is not a member", invocation.ErrTargetNotActive, target)
	}
	return r.sendToAddr(inv, target)
}

func (r *Router) InvokeOnRandomTarget(inv *invocation.Invocation) error {
	addr, err := r.members.Random()
	if err != nil {
		return err
	}
	return r.sendToAddr(inv, addr)
}

func (r *Router) sendToAddr(inv *invocation.Invocation, addr string) error {
	conn, err := r.registry.Get(r.ctx, addr)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", invocation.ErrTransport, addr, err)
	}
	return r.send(inv, conn)
}

// send registers the attempt before handing the message to the connection
// so a reply can never outrun its registration, then binds the send
// connection on the invocation.
func (r *Router) send(inv *invocation.Invocation, conn Conn) error {
	r.dispatcher.Register(inv, conn)
	msg := inv.Message()
	if err := conn.Send(*msg); err != nil {
		// the message never left; the attempt is not in flight
		r.dispatcher.Deregister(msg.CorrelationID)
		return fmt.Errorf("%w: send to %s: %v", invocation.ErrTransport, conn.RemoteAddr(), err)
	}
	inv.SetSendConnection(conn)

	r.log.Debug("sent",
		slog.String("type", msg.Type),
		slog.Int64("correlation_id", msg.CorrelationID),
		slog.String("addr", conn.RemoteAddr()),
	)
	return nil
}

var _ invocation.Router = (*Router)(nil)
