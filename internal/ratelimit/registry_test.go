package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry_InvalidConfiguration(t *testing.T) {
	_, err := NewRegistry(0, time.Second)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = NewRegistry(5, 0)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestRegistry_GetOrCreate(t *testing.T) {
	reg, err := NewRegistry(5, time.Second)
	require.NoError(t, err)

	a1 := reg.GetOrCreate("10.0.0.1")
	a2 := reg.GetOrCreate("10.0.0.1")
	b := reg.GetOrCreate("10.0.0.2")

	assert.Same(t, a1, a2)
	assert.NotSame(t, a1, b)
	assert.Equal(t, 5, a1.Limit())
	assert.Equal(t, 2, reg.Len())
}

func TestRegistry_ConcurrentFirstAccess(t *testing.T) {
	reg, err := NewRegistry(5, time.Second)
	require.NoError(t, err)

	const workers = 100
	got := make([]*SlidingWindow, workers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			got[i] = reg.GetOrCreate("shared")
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 1; i < workers; i++ {
		require.Same(t, got[0], got[i], "worker %d saw a different limiter", i)
	}
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_ClientIsolation(t *testing.T) {
	reg, err := NewRegistry(5, time.Second)
	require.NoError(t, err)

	admitted := make(map[ClientKey]int)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, key := range []ClientKey{"client-a", "client-b"} {
		wg.Add(1)
		go func(key ClientKey) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				if reg.Acquire(key).Allowed {
					mu.Lock()
					admitted[key]++
					mu.Unlock()
				}
			}
		}(key)
	}
	wg.Wait()

	assert.Equal(t, 5, admitted["client-a"])
	assert.Equal(t, 5, admitted["client-b"])
	assert.Equal(t, 0, reg.GetOrCreate("client-a").Remaining())
	assert.Equal(t, 0, reg.GetOrCreate("client-b").Remaining())
}

func TestRegistry_ExhaustedClientDoesNotAffectOthers(t *testing.T) {
	reg, err := NewRegistry(3, time.Second)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		reg.Acquire("noisy")
	}

	d := reg.Acquire("quiet")
	assert.True(t, d.Allowed)
	assert.Equal(t, 2, d.Remaining)
}

func TestRegistry_AcquireSnapshot(t *testing.T) {
	clock := newFakeClock()
	reg, err := NewRegistry(3, time.Second, WithRegistryClock(clock))
	require.NoError(t, err)

	first := clock.Now()
	expected := []int{2, 1, 0}
	for _, remaining := range expected {
		d := reg.Acquire("k")
		assert.True(t, d.Allowed)
		assert.Equal(t, 3, d.Limit)
		assert.Equal(t, remaining, d.Remaining)
		assert.Equal(t, first.Add(time.Second), d.ResetAt)
		clock.Advance(10 * time.Millisecond)
	}

	d := reg.Acquire("k")
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
}

func TestRegistry_ConcurrentAcquireManyClients(t *testing.T) {
	reg, err := NewRegistry(5, time.Second)
	require.NoError(t, err)

	const clients = 20
	counts := make([]int, clients)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < clients*10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			idx := i % clients
			if reg.Acquire(ClientKey(fmt.Sprintf("client-%d", idx))).Allowed {
				mu.Lock()
				counts[idx]++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	for i, c := range counts {
		assert.Equal(t, 5, c, "client-%d", i)
	}
	assert.Equal(t, clients, reg.Len())
}

func TestRegistry_EvictIdle(t *testing.T) {
	clock := newFakeClock()
	reg, err := NewRegistry(5, time.Second, WithRegistryClock(clock), WithIdleTTL(2*time.Second))
	require.NoError(t, err)

	old := reg.GetOrCreate("idle")
	require.True(t, old.TryAcquire())
	reg.GetOrCreate("active")

	clock.Advance(time.Second)
	reg.GetOrCreate("active")
	clock.Advance(1500 * time.Millisecond)

	assert.Equal(t, 1, reg.evictIdle())
	assert.Equal(t, 1, reg.Len())

	fresh := reg.GetOrCreate("idle")
	assert.NotSame(t, old, fresh)
	assert.Equal(t, 5, fresh.Remaining())
}

func TestRegistry_EvictSkipsClientsWithAdmissionsInWindow(t *testing.T) {
	clock := newFakeClock()
	reg, err := NewRegistry(5, time.Second, WithRegistryClock(clock), WithIdleTTL(time.Second))
	require.NoError(t, err)

	w := reg.GetOrCreate("k")
	clock.Advance(time.Second)
	// Admission stamped now but without a registry lookup: lastSeen is stale.
	require.True(t, w.TryAcquire())

	assert.Equal(t, 0, reg.evictIdle())
	assert.Same(t, w, reg.GetOrCreate("k"))
}

func TestRegistry_AcquireRetriesRetiredLimiter(t *testing.T) {
	clock := newFakeClock()
	reg, err := NewRegistry(2, time.Second, WithRegistryClock(clock), WithIdleTTL(time.Second))
	require.NoError(t, err)

	stale := reg.GetOrCreate("k")
	clock.Advance(2 * time.Second)
	require.True(t, stale.retireIfIdle(clock.Now().Add(-time.Second)))

	// The retired limiter is still installed; Acquire must replace it.
	d := reg.Acquire("k")
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)
	assert.NotSame(t, stale, reg.GetOrCreate("k"))
	assert.Equal(t, 1, reg.Len())

	_, ok := stale.decide()
	assert.False(t, ok)
}

func TestRegistry_GetOrCreateSkipsRetiredLimiter(t *testing.T) {
	clock := newFakeClock()
	reg, err := NewRegistry(2, time.Second, WithRegistryClock(clock), WithIdleTTL(time.Second))
	require.NoError(t, err)

	stale := reg.GetOrCreate("k")
	clock.Advance(2 * time.Second)
	// Retired but still installed, as between retireIfIdle and CompareAndDelete.
	require.True(t, stale.retireIfIdle(clock.Now().Add(-time.Second)))

	w := reg.GetOrCreate("k")
	require.NotSame(t, stale, w)
	assert.Equal(t, 1, reg.Len())

	admitted := 0
	for i := 0; i < 5; i++ {
		if w.TryAcquire() {
			admitted++
		}
		if stale.TryAcquire() {
			admitted++
		}
	}
	for i := 0; i < 5; i++ {
		if reg.Acquire("k").Allowed {
			admitted++
		}
	}
	assert.Equal(t, 2, admitted)
	assert.Same(t, w, reg.GetOrCreate("k"))
}

func TestRegistry_ConcurrentLookupsDuringEviction(t *testing.T) {
	clock := newFakeClock()
	reg, err := NewRegistry(3, time.Second, WithRegistryClock(clock), WithIdleTTL(time.Second))
	require.NoError(t, err)

	for round := 0; round < 50; round++ {
		clock.Advance(5 * time.Second)

		var admitted atomic.Int64
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			reg.evictIdle()
		}()
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if reg.GetOrCreate("k").TryAcquire() {
					admitted.Add(1)
				}
			}()
		}
		wg.Wait()

		require.LessOrEqual(t, admitted.Load(), int64(3), "round %d", round)
	}
}

func TestRegistry_IdleTTLRaisedToWindow(t *testing.T) {
	reg, err := NewRegistry(5, 2*time.Second, WithIdleTTL(time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, reg.idleTTL)
	assert.Equal(t, 2*time.Second, reg.interval)
}

func TestRegistry_Janitor(t *testing.T) {
	reg, err := NewRegistry(5, 20*time.Millisecond,
		WithIdleTTL(20*time.Millisecond),
		WithCleanupInterval(10*time.Millisecond),
	)
	require.NoError(t, err)
	defer reg.Close()

	reg.Start(context.Background())
	reg.Acquire("ephemeral")
	require.Equal(t, 1, reg.Len())

	assert.Eventually(t, func() bool { return reg.Len() == 0 }, time.Second, 10*time.Millisecond)
}

func TestRegistry_StartWithoutEviction(t *testing.T) {
	reg, err := NewRegistry(5, time.Second)
	require.NoError(t, err)

	reg.Start(context.Background())
	reg.Acquire("k")
	reg.Close()
	// Double close must not panic.
	reg.Close()
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_StartStopsOnContext(t *testing.T) {
	reg, err := NewRegistry(5, 10*time.Millisecond, WithIdleTTL(10*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	reg.Start(ctx)
	reg.Start(ctx) // second start is a no-op
	cancel()
	reg.Close()
}
