package invocation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFuture_CompletesOnce(t *testing.T) {
	f := newFuture(nil, nil)

	require.True(t, f.complete(&Message{Type: "first"}, nil))
	require.False(t, f.complete(&Message{Type: "second"}, nil))
	require.False(t, f.complete(nil, errors.New("late error")))

	resp, err := f.Get(t.Context())
	require.NoError(t, err)
	require.Equal(t, "first", resp.Type)
}

func TestFuture_RaceExactlyOneWinner(t *testing.T) {
	f := newFuture(nil, nil)

	var wins sync.Map
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			if f.complete(&Message{Type: fmt.Sprintf("r-%d", i)}, nil) {
				wins.Store(i, struct{}{})
			}
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			if f.complete(nil, fmt.Errorf("e-%d", i)) {
				wins.Store(-i-1, struct{}{})
			}
		}()
	}
	wg.Wait()

	n := 0
	wins.Range(func(_, _ any) bool { n++; return true })
	require.Equal(t, 1, n)
}

func TestFuture_ThenBeforeAndAfterCompletion(t *testing.T) {
	f := newFuture(nil, nil)

	early := make(chan *Message, 1)
	f.Then(func(resp *Message, err error) {
		require.NoError(t, err)
		early <- resp
	})

	f.complete(&Message{Type: "pong"}, nil)

	late := make(chan *Message, 1)
	f.Then(func(resp *Message, err error) {
		late <- resp
	})

	for _, ch := range []chan *Message{early, late} {
		select {
		case resp := <-ch:
			require.Equal(t, "pong", resp.Type)
		case <-time.After(2 * time.Second):
			t.Fatal("callback never ran")
		}
	}
}

func TestFuture_CustomExecutor(t *testing.T) {
	var tasks []func()
	exec := func(task func()) { tasks = append(tasks, task) }

	f := newFuture(exec, nil)
	got := make(chan error, 1)
	f.Then(func(_ *Message, err error) { got <- err })

	boom := errors.New("boom")
	f.complete(nil, boom)

	// callback is parked on the executor, not run inline
	require.Len(t, tasks, 1)
	require.Empty(t, got)
	tasks[0]()
	require.ErrorIs(t, <-got, boom)
}

func TestFuture_GetWithTimeout(t *testing.T) {
	f := newFuture(nil, nil)

	_, err := f.GetWithTimeout(10 * time.Millisecond)
	require.ErrorIs(t, err, ErrFutureTimeout)
	require.False(t, f.IsDone())

	f.complete(&Message{}, nil)
	_, err = f.GetWithTimeout(10 * time.Millisecond)
	require.NoError(t, err)
}

func TestFuture_GetHonoursContext(t *testing.T) {
	f := newFuture(nil, nil)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err := f.Get(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestFuture_OnDoneRunsOnce(t *testing.T) {
	calls := 0
	f := newFuture(nil, func() { calls++ })

	f.complete(nil, errors.New("x"))
	f.complete(&Message{}, nil)
	require.Equal(t, 1, calls)
}
