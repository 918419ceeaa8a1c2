package lockmap

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompareAndSet(t *testing.T) {
	m := New()

	// Absent key is always eligible.
	require.True(t, m.CompareAndSet("k", true, func(held bool) bool { return !held }))

	// Held key fails the not-held predicate.
	require.False(t, m.CompareAndSet("k", true, func(held bool) bool { return !held }))

	// A predicate accepting the current value lets the write through.
	require.True(t, m.CompareAndSet("k", false, func(held bool) bool { return held }))

	v, ok := m.Get("k")
	require.True(t, ok)
	require.False(t, v)
}

func TestTryAcquireRelease(t *testing.T) {
	m := New()

	require.True(t, m.TryAcquire("a:b:t"))
	require.False(t, m.TryAcquire("a:b:t"))

	// Different triples never contend.
	require.True(t, m.TryAcquire("a:c:t"))
	require.Equal(t, 2, m.Len())

	m.Release("a:b:t")
	require.True(t, m.TryAcquire("a:b:t"))

	// Releasing an unseen key is a no-op.
	m.Release("never:held:key")
}

func TestMutualExclusion(t *testing.T) {
	m := New()
	const goroutines = 64

	var acquired int64
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if m.TryAcquire("contended") {
				atomic.AddInt64(&acquired, 1)
			}
		}()
	}

	close(start)
	wg.Wait()

	require.Equal(t, int64(1), acquired, "exactly one goroutine may win the lock")
}

func TestTransferKey(t *testing.T) {
	key := TransferKey("0xSender", "0xReceiver", "0xToken")
	require.Equal(t, "0xSender:0xReceiver:0xToken", key)
}
