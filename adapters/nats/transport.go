// Package nats implements the routing transport over NATS subjects.
// Members subscribe on a per-address subject; clients publish requests
// there and receive response, event and failure frames on a per-connection
// inbox. Correlation ids demultiplex the inbox, so one subscription serves
// every in-flight request of a connection.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	natsgo "github.com/nats-io/nats.go"

	"github.com/yilinwei/hazelcast/core/invocation"
	"github.com/yilinwei/hazelcast/core/routing"
)

type TransportConfig struct {
	Connect       Connector    // Connect is used to create the underlying NATS connection. If nil, ConnectDefault() is used.
	Log           *slog.Logger // Log for diagnostics (optional)
	SubjectPrefix string       // SubjectPrefix for member subjects, e.g. "hzc" -> hzc.member.<addr>
}

type Transport struct {
	nc      *natsgo.Conn
	closeNc closeFunc
	log     *slog.Logger
	prefix  string

	mu   sync.Mutex
	subs map[*natsgo.Subscription]struct{}

	closed atomic.Bool
}

// frame is the wire encoding of one inbound unit on a reply inbox.
type frame struct {
	Kind          int    `json:"kind"`
	CorrelationID int64  `json:"correlation_id"`
	Type          string `json:"type,omitempty"`
	Data          []byte `json:"data,omitempty"`
	ErrCode       string `json:"err_code,omitempty"`
	ErrMsg        string `json:"err,omitempty"`
}

const (
	frameResponse = 1
	frameEvent    = 2
	frameFailure  = 3
)

// request carries one message to a member together with the inbox its
// frames come back on.
type request struct {
	ReplyTo string             `json:"reply_to"`
	Msg     invocation.Message `json:"msg"`
}

func NewTransport(cfg TransportConfig) (*Transport, error) {
	connFn := cfg.Connect
	if connFn == nil {
		connFn = ConnectDefault()
	}

	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	nc, closeNc, err := connFn()
	if err != nil {
		return nil, err
	}

	t := &Transport{
		nc:      nc,
		closeNc: closeNc,
		log:     log.With(slog.String("transport", "nats")),
		prefix:  cfg.SubjectPrefix,
		subs:    make(map[*natsgo.Subscription]struct{}),
	}

	return t, nil
}

var subjectEscaper = strings.NewReplacer(".", "_", ":", "_", " ", "_", ">", "_", "*", "_")

// subjectMember returns the subject a member listens on. Address bytes
// that are meaningful to NATS subjects are escaped.
func (t *Transport) subjectMember(addr string) string {
	p := t.prefix
	if p == "" {
		p = "hzc"
	}
	return p + ".member." + subjectEscaper.Replace(addr)
}

// Connect opens a logical connection to the member at addr. Frames
// arriving on the connection's inbox are handed to sink one at a time.
func (t *Transport) Connect(ctx context.Context, addr string, sink routing.Sink) (routing.Conn, error) {
	if t.closed.Load() {
		return nil, routing.ErrTransportClosed
	}

	c := &conn{
		t:     t,
		addr:  addr,
		subj:  t.subjectMember(addr),
		inbox: natsgo.NewInbox(),
	}

	sub, err := t.nc.Subscribe(c.inbox, func(msg *natsgo.Msg) {
		var f frame
		if err := json.Unmarshal(msg.Data, &f); err != nil {
			t.log.Error("failed to decode frame", slog.Any("error", err))
			return
		}
		sink(inboundFromFrame(f))
	})
	if err != nil {
		return nil, fmt.Errorf("nats: subscribe inbox: %w", err)
	}
	c.sub = sub

	t.mu.Lock()
	t.subs[sub] = struct{}{}
	t.mu.Unlock()

	t.log.Debug("connected", slog.String("addr", addr), slog.String("inbox", c.inbox))
	return c, nil
}

func inboundFromFrame(f frame) routing.Inbound {
	in := routing.Inbound{
		CorrelationID: f.CorrelationID,
		Type:          f.Type,
		Data:          f.Data,
	}
	switch f.Kind {
	case frameEvent:
		in.Kind = routing.KindEvent
	case frameFailure:
		in.Kind = routing.KindFailure
		in.Err = routing.DecodeError(f.ErrCode, f.ErrMsg)
	default:
		in.Kind = routing.KindResponse
	}
	return in
}

// Serve subscribes a member handler under addr. The returned function
// removes the subscription again. Requests are served concurrently, one
// goroutine per request; per-request event pushes stay ordered because
// the handler drives them.
func (t *Transport) Serve(ctx context.Context, addr string, h routing.Handler) (func(), error) {
	if t.closed.Load() {
		return nil, routing.ErrTransportClosed
	}

	subj := t.subjectMember(addr)
	sub, err := t.nc.Subscribe(subj, func(msg *natsgo.Msg) {
		var req request
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			t.log.Error("failed to decode request", slog.Any("error", err))
			return
		}
		go t.serve(ctx, req, h)
	})
	if err != nil {
		return nil, fmt.Errorf("nats: subscribe member: %w", err)
	}

	t.mu.Lock()
	t.subs[sub] = struct{}{}
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			_ = sub.Unsubscribe()
			t.mu.Lock()
			delete(t.subs, sub)
			t.mu.Unlock()
			t.log.Debug("member unsubscribed", slog.String("addr", addr))
		})
	}, nil
}

func (t *Transport) serve(ctx context.Context, req request, h routing.Handler) {
	id := req.Msg.CorrelationID
	push := func(event invocation.Message) {
		t.publishFrame(req.ReplyTo, frame{
			Kind:          frameEvent,
			CorrelationID: id,
			Type:          event.Type,
			Data:          event.Data,
		})
	}

	resp, err := h(ctx, req.Msg, push)
	if err != nil {
		code, text := routing.EncodeError(err)
		t.publishFrame(req.ReplyTo, frame{
			Kind:          frameFailure,
			CorrelationID: id,
			ErrCode:       code,
			ErrMsg:        text,
		})
		return
	}

	f := frame{Kind: frameResponse, CorrelationID: id}
	if resp != nil {
		f.Type = resp.Type
		f.Data = resp.Data
	}
	t.publishFrame(req.ReplyTo, f)
}

func (t *Transport) publishFrame(subj string, f frame) {
	b, err := json.Marshal(f)
	if err != nil {
		t.log.Error("failed to encode frame", slog.Any("error", err))
		return
	}
	if err := t.nc.Publish(subj, b); err != nil {
		t.log.Error("failed to publish frame", slog.Any("error", err))
	}
}

func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	t.mu.Lock()
	for s := range t.subs {
		_ = s.Unsubscribe()
	}
	t.subs = map[*natsgo.Subscription]struct{}{}
	t.mu.Unlock()
	if t.nc != nil {
		t.nc.Drain()
		t.closeNc()
	}
	return nil
}

// conn is one logical connection: a reply inbox plus the member subject
// it publishes to. A member that disappeared cannot be detected at publish
// time; unanswered requests surface through the invocation deadline.
type conn struct {
	t     *Transport
	addr  string
	subj  string
	inbox string
	sub   *natsgo.Subscription

	closed atomic.Bool
}

func (c *conn) RemoteAddr() string { return c.addr }

func (c *conn) Send(msg invocation.Message) error {
	if c.closed.Load() || c.t.closed.Load() {
		return routing.ErrConnectionClosed
	}

	payload, err := json.Marshal(request{ReplyTo: c.inbox, Msg: msg})
	if err != nil {
		return fmt.Errorf("nats: encode request: %w", err)
	}
	if err := c.t.nc.Publish(c.subj, payload); err != nil {
		return fmt.Errorf("nats: publish: %w", err)
	}
	return nil
}

func (c *conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	_ = c.sub.Unsubscribe()
	c.t.mu.Lock()
	delete(c.t.subs, c.sub)
	c.t.mu.Unlock()
	return nil
}

var _ routing.Transport = (*Transport)(nil)
