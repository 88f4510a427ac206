package nats

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yilinwei/hazelcast/core/client"
	"github.com/yilinwei/hazelcast/core/invocation"
	"github.com/yilinwei/hazelcast/core/routing"
)

func TestNats_Transport(t *testing.T) {
	slog.SetLogLoggerLevel(slog.LevelDebug)

	connectNatsC := ReuseConnection(NewTestContainer(t))

	t.Run("connect & close", func(t *testing.T) {
		nc, disconnect, err := connectNatsC()
		require.NoError(t, err)
		require.NotNil(t, nc)
		require.NoError(t, nc.Flush())
		disconnect()
	})

	t.Run("request & reply", func(t *testing.T) {
		tp, err := NewTransport(TransportConfig{
			Connect:       connectNatsC,
			Log:           slog.Default(),
			SubjectPrefix: "test",
		})
		require.NoError(t, err)
		t.Cleanup(func() { require.NoError(t, tp.Close()) })

		stop, err := tp.Serve(t.Context(), "10.0.0.1:5701", routing.EchoHandler())
		require.NoError(t, err)
		t.Cleanup(stop)

		inbound := make(chan routing.Inbound, 1)
		conn, err := tp.Connect(t.Context(), "10.0.0.1:5701", func(in routing.Inbound) { inbound <- in })
		require.NoError(t, err)
		t.Cleanup(func() { require.NoError(t, conn.Close()) })

		require.NoError(t, conn.Send(invocation.Message{
			Type:          "ping",
			Data:          []byte("hello"),
			CorrelationID: 23,
		}))

		select {
		case in := <-inbound:
			require.Equal(t, routing.KindResponse, in.Kind)
			require.Equal(t, int64(23), in.CorrelationID)
			require.Equal(t, "ping.ok", in.Type)
			require.Equal(t, "hello", string(in.Data))
		case <-time.After(5 * time.Second):
			t.Fatal("no reply")
		}
	})

	t.Run("failure classification survives the wire", func(t *testing.T) {
		tp, err := NewTransport(TransportConfig{
			Connect:       connectNatsC,
			SubjectPrefix: "test-err",
		})
		require.NoError(t, err)
		t.Cleanup(func() { require.NoError(t, tp.Close()) })

		h := func(context.Context, invocation.Message, func(invocation.Message)) (*invocation.Message, error) {
			return nil, invocation.ErrTargetNotActive
		}
		stop, err := tp.Serve(t.Context(), "10.0.0.1:5701", h)
		require.NoError(t, err)
		t.Cleanup(stop)

		inbound := make(chan routing.Inbound, 1)
		conn, err := tp.Connect(t.Context(), "10.0.0.1:5701", func(in routing.Inbound) { inbound <- in })
		require.NoError(t, err)
		t.Cleanup(func() { require.NoError(t, conn.Close()) })

		require.NoError(t, conn.Send(invocation.Message{Type: "ping", CorrelationID: 7}))

		select {
		case in := <-inbound:
			require.Equal(t, routing.KindFailure, in.Kind)
			require.ErrorIs(t, in.Err, invocation.ErrTargetNotActive)
		case <-time.After(5 * time.Second):
			t.Fatal("no reply")
		}
	})
}

func TestNats_Client(t *testing.T) {
	connectNatsC := ReuseConnection(NewTestContainer(t))

	tp, err := NewTransport(TransportConfig{
		Connect:       connectNatsC,
		SubjectPrefix: "e2e",
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, tp.Close()) })

	h := func(_ context.Context, req invocation.Message, push func(invocation.Message)) (*invocation.Message, error) {
		if req.Type == "listener.add" {
			push(invocation.Message{Type: "entry.added", Data: []byte("k1")})
		}
		return &invocation.Message{Type: req.Type + ".ok", Data: req.Data}, nil
	}

	addrs := []string{"10.0.0.1:5701", "10.0.0.2:5701"}
	for _, addr := range addrs {
		stop, err := tp.Serve(t.Context(), addr, h)
		require.NoError(t, err)
		t.Cleanup(stop)
	}

	c, err := client.New(client.Config{
		Context:   t.Context(),
		Transport: tp,
		Members:   addrs,
		Timeout:   10 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Shutdown(context.Background()) })

	resp, err := c.Call(t.Context(), &invocation.Message{Type: "map.get", Data: []byte("k")})
	require.NoError(t, err)
	require.Equal(t, "map.get.ok", resp.Type)

	resp, err = c.CallOnKey(t.Context(), &invocation.Message{Type: "map.put"}, "user:1")
	require.NoError(t, err)
	require.Equal(t, "map.put.ok", resp.Type)

	events := make(chan string, 1)
	f, err := c.Listen(&invocation.Message{Type: "listener.add"}, func(ev *invocation.Message) {
		events <- string(ev.Data)
	})
	require.NoError(t, err)
	_, err = f.Get(t.Context())
	require.NoError(t, err)

	select {
	case got := <-events:
		require.Equal(t, "k1", got)
	case <-time.After(5 * time.Second):
		t.Fatal("event never arrived")
	}
}
