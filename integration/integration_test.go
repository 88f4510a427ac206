package integration

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yilinwei/hazelcast/core/client"
	"github.com/yilinwei/hazelcast/core/invocation"
	"github.com/yilinwei/hazelcast/core/routing"
	"github.com/yilinwei/hazelcast/ports/kv"
)

// mapMember serves a tiny key-value map backed by a kv.Store, the way a
// real member would serve its owned partitions.
func mapMember(store kv.Store) routing.Handler {
	return func(ctx context.Context, req invocation.Message, push func(invocation.Message)) (*invocation.Message, error) {
		key, _ := req.GetHeader("key")
		switch req.Type {
		case "map.put":
			version, err := store.Put(ctx, key, kv.Entry{Data: req.Data}, kv.PutOptions{})
			if err != nil {
				return nil, err
			}
			push(invocation.Message{Type: "entry.updated", Data: []byte(key)})
			return &invocation.Message{
				Type:    "map.put.ok",
				Headers: map[string]string{"version": strconv.FormatInt(version, 10)},
			}, nil
		case "map.get":
			entry, err := store.Get(ctx, key)
			if err != nil {
				return &invocation.Message{Type: "map.get.miss"}, nil
			}
			return &invocation.Message{
				Type:    "map.get.ok",
				Data:    entry.Data,
				Headers: map[string]string{"version": strconv.FormatInt(entry.Version, 10)},
			}, nil
		case "map.delete":
			if err := store.Delete(ctx, key); err != nil {
				return nil, err
			}
			return &invocation.Message{Type: "map.delete.ok"}, nil
		}
		return nil, fmt.Errorf("unknown operation %q", req.Type)
	}
}

func put(key, value string) *invocation.Message {
	return &invocation.Message{
		Type:      "map.put",
		Data:      []byte(value),
		Headers:   map[string]string{"key": key},
		Retryable: true,
	}
}

func get(key string) *invocation.Message {
	return &invocation.Message{
		Type:      "map.get",
		Headers:   map[string]string{"key": key},
		Retryable: true,
	}
}

func TestIntegration(t *testing.T) {
	slog.SetLogLoggerLevel(slog.LevelDebug)

	tr := routing.CreateMemoryTransport(t)

	// five members, each with its own store
	stores := make(map[string]*kv.MemStore)
	stops := make(map[string]func())
	addrs := make([]string, 0, 5)
	for i := range 5 {
		addr := fmt.Sprintf("10.0.0.%d:5701", i+1)
		store := kv.NewMemStore()
		stop, err := tr.Serve(addr, mapMember(store))
		require.NoError(t, err)
		t.Cleanup(stop)
		stores[addr] = store
		stops[addr] = stop
		addrs = append(addrs, addr)
	}

	c, err := client.New(client.Config{
		Context:   t.Context(),
		Transport: tr,
		Members:   addrs,
		Seed:      "foobar",
		Timeout:   5 * time.Second,
		RetryWait: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Shutdown(context.Background()) })

	// === put and read back across many keys ===
	for i := range 50 {
		key := fmt.Sprintf("tenant-%d", i)
		resp, err := c.CallOnKey(t.Context(), put(key, key+"-value"), key)
		require.NoError(t, err)
		version, _ := resp.GetHeader("version")
		require.Equal(t, "1", version, "first put of %s", key)
	}
	for i := range 50 {
		key := fmt.Sprintf("tenant-%d", i)
		resp, err := c.CallOnKey(t.Context(), get(key), key)
		require.NoError(t, err)
		require.Equal(t, "map.get.ok", resp.Type)
		require.Equal(t, key+"-value", string(resp.Data))
		version, _ := resp.GetHeader("version")
		require.Equal(t, "1", version)
	}

	// every key landed on its owner's store, nowhere else
	for i := range 50 {
		key := fmt.Sprintf("tenant-%d", i)
		owner := ownerOf(t, addrs, key, stores)
		for addr, store := range stores {
			_, err := store.Get(t.Context(), key)
			if addr == owner {
				require.NoError(t, err, "key %s missing on its owner %s", key, addr)
			} else {
				require.ErrorIs(t, err, kv.ErrNotFound, "key %s leaked to %s", key, addr)
			}
		}
	}

	// === member leaves: unowned keys fail over after a topology update ===
	gone := addrs[0]
	stops[gone]()
	c.UpdateMembers(addrs[1:])

	for i := range 50 {
		key := fmt.Sprintf("tenant-%d", i)
		_, err := c.CallOnKey(t.Context(), put(key, "v2"), key)
		require.NoError(t, err)
	}
}

// ownerOf finds the member whose store holds key.
func ownerOf(t *testing.T, addrs []string, key string, stores map[string]*kv.MemStore) string {
	t.Helper()
	for _, addr := range addrs {
		if _, err := stores[addr].Get(t.Context(), key); err == nil {
			return addr
		}
	}
	t.Fatalf("no member holds key %s", key)
	return ""
}

func TestIntegration_Listener(t *testing.T) {
	tr := routing.CreateMemoryTransport(t)
	store := kv.NewMemStore()
	stop, err := tr.Serve("10.0.0.1:5701", mapMember(store))
	require.NoError(t, err)
	t.Cleanup(stop)

	c, err := client.New(client.Config{
		Context:   t.Context(),
		Transport: tr,
		Members:   []string{"10.0.0.1:5701"},
		Timeout:   5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Shutdown(context.Background()) })

	updated := make(chan string, 1)
	f, err := c.Listen(put("watched", "v1"), func(ev *invocation.Message) {
		updated <- string(ev.Data)
	})
	require.NoError(t, err)

	resp, err := f.Get(t.Context())
	require.NoError(t, err)
	require.Equal(t, "map.put.ok", resp.Type)

	select {
	case key := <-updated:
		require.Equal(t, "watched", key)
	case <-time.After(2 * time.Second):
		t.Fatal("update event never arrived")
	}
}
