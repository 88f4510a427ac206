package perkey

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSerializer_OrderPerKey(t *testing.T) {
	s := New[string]()

	var (
		mu  sync.Mutex
		got []int
	)
	for i := 0; i < 100; i++ {
		i := i
		require.NoError(t, s.Submit("k", func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}))
	}
	s.Close()

	require.Len(t, got, 100)
	for i, v := range got {
		require.Equal(t, i, v)
	}
}

func TestSerializer_KeysRunIndependently(t *testing.T) {
	s := New[int]()

	release := make(chan struct{})
	var ran atomic.Bool

	// key 1 is blocked; key 2 must still make progress
	require.NoError(t, s.Submit(1, func() { <-release }))

	done := make(chan struct{})
	require.NoError(t, s.Submit(2, func() {
		ran.Store(true)
		close(done)
	}))

	<-done
	require.True(t, ran.Load())
	close(release)
	s.Close()
}

func TestSerializer_SubmitAfterClose(t *testing.T) {
	s := New[string]()
	s.Close()
	require.ErrorIs(t, s.Submit("k", func() {}), ErrSerializerClosed)
}
