package routing

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yilinwei/hazelcast/core/invocation"
)

func CreateMemoryTransport(t *testing.T) *MemoryTransport {
	tr := NewMemoryTransport()
	t.Cleanup(func() {
		require.NoError(t, tr.Close())
	})
	return tr
}

// EchoHandler answers every request with its own payload.
func EchoHandler() Handler {
	return func(_ context.Context, req invocation.Message, _ func(invocation.Message)) (*invocation.Message, error) {
		return &invocation.Message{Type: req.Type + ".ok", Data: req.Data}, nil
	}
}

// ServeMembers registers n members on tr, all running h, and returns their
// addresses.
func ServeMembers(t *testing.T, tr *MemoryTransport, h Handler, n int) []string {
	addrs := make([]string, 0, n)
	for i := 0; i < n; i++ {
		addr := fmt.Sprintf("127.0.0.1:%d", 5701+i)
		stop, err := tr.Serve(addr, h)
		require.NoError(t, err)
		t.Cleanup(stop)
		addrs = append(addrs, addr)
	}
	return addrs
}
