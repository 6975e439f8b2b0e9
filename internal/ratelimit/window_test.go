package ratelimit

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced Clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestWindow(t *testing.T, capacity int, clock Clock) *SlidingWindow {
	t.Helper()
	w, err := NewSlidingWindow(capacity, time.Second, WithClock(clock))
	require.NoError(t, err)
	return w
}

func TestNewSlidingWindow_InvalidConfiguration(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		window   time.Duration
	}{
		{name: "zero capacity", capacity: 0, window: time.Second},
		{name: "negative capacity", capacity: -3, window: time.Second},
		{name: "zero window", capacity: 5, window: 0},
		{name: "negative window", capacity: 5, window: -time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := NewSlidingWindow(tt.capacity, tt.window)
			assert.Nil(t, w)
			assert.ErrorIs(t, err, ErrInvalidConfiguration)
		})
	}
}

func TestSlidingWindow_Limit(t *testing.T) {
	w := newTestWindow(t, 7, newFakeClock())
	assert.Equal(t, 7, w.Limit())
	assert.Equal(t, time.Second, w.Window())
}

func TestSlidingWindow_ExhaustsAfterCapacity(t *testing.T) {
	w := newTestWindow(t, 5, newFakeClock())

	results := make([]bool, 10)
	for i := range results {
		results[i] = w.TryAcquire()
	}

	assert.Equal(t, []bool{true, true, true, true, true, false, false, false, false, false}, results)
	assert.Equal(t, 0, w.Remaining())
}

func TestSlidingWindow_RecoversAfterWindow(t *testing.T) {
	w, err := NewSlidingWindow(5, time.Second)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		w.TryAcquire()
	}
	require.Equal(t, 0, w.Remaining())

	time.Sleep(1100 * time.Millisecond)

	assert.True(t, w.TryAcquire())
	assert.Equal(t, 4, w.Remaining())
}

func TestSlidingWindow_CapacityTwo(t *testing.T) {
	w := newTestWindow(t, 2, newFakeClock())

	assert.True(t, w.TryAcquire())
	assert.True(t, w.TryAcquire())
	assert.False(t, w.TryAcquire())
}

func TestSlidingWindow_ConcurrentAcquire(t *testing.T) {
	w, err := NewSlidingWindow(5, time.Second)
	require.NoError(t, err)

	var admitted atomic.Int64
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if w.TryAcquire() {
				admitted.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(5), admitted.Load())
	assert.Equal(t, 0, w.Remaining())
}

func TestSlidingWindow_SlidesPerAdmission(t *testing.T) {
	clock := newFakeClock()
	w := newTestWindow(t, 2, clock)

	require.True(t, w.TryAcquire()) // t0
	clock.Advance(600 * time.Millisecond)
	require.True(t, w.TryAcquire()) // t0+600ms
	clock.Advance(300 * time.Millisecond)
	assert.False(t, w.TryAcquire(), "window still holds two admissions")

	// t0+1000ms: the first admission sits exactly on the cutoff and still counts.
	clock.Advance(100 * time.Millisecond)
	assert.False(t, w.TryAcquire())

	// t0+1001ms: only the first admission has expired.
	clock.Advance(time.Millisecond)
	assert.True(t, w.TryAcquire())
	assert.False(t, w.TryAcquire())
	assert.Equal(t, 0, w.Remaining())
}

func TestSlidingWindow_NoBurstAcrossBoundary(t *testing.T) {
	clock := newFakeClock()
	w := newTestWindow(t, 5, clock)

	// Fill the window late in a second; a fixed window would reset at the
	// next second boundary and admit another five.
	clock.Advance(900 * time.Millisecond)
	for i := 0; i < 5; i++ {
		require.True(t, w.TryAcquire())
	}
	clock.Advance(200 * time.Millisecond)
	assert.False(t, w.TryAcquire())
}

func TestSlidingWindow_RemainingDoesNotConsume(t *testing.T) {
	w := newTestWindow(t, 3, newFakeClock())

	for i := 0; i < 10; i++ {
		assert.Equal(t, 3, w.Remaining())
	}
	assert.True(t, w.TryAcquire())
	assert.Equal(t, 2, w.Remaining())
	assert.Equal(t, 2, w.Remaining())
}

func TestSlidingWindow_NextReset(t *testing.T) {
	clock := newFakeClock()
	w := newTestWindow(t, 3, clock)

	assert.Equal(t, clock.Now().Add(time.Second), w.NextReset(), "empty window resets one window from now")

	oldest := clock.Now()
	require.True(t, w.TryAcquire())
	clock.Advance(250 * time.Millisecond)
	require.True(t, w.TryAcquire())

	assert.Equal(t, oldest.Add(time.Second), w.NextReset())

	// Once the oldest expires, the next one determines the reset.
	clock.Advance(800 * time.Millisecond)
	assert.Equal(t, oldest.Add(1250*time.Millisecond), w.NextReset())

	clock.Advance(time.Second)
	assert.Equal(t, clock.Now().Add(time.Second), w.NextReset())
}

func TestSlidingWindow_ClockRegression(t *testing.T) {
	clock := newFakeClock()
	w := newTestWindow(t, 2, clock)

	require.True(t, w.TryAcquire())
	require.True(t, w.TryAcquire())

	clock.Advance(-5 * time.Second)
	assert.NotPanics(t, func() {
		assert.False(t, w.TryAcquire(), "entries stamped in the future still count")
		assert.Equal(t, 0, w.Remaining())
		_ = w.NextReset()
	})
}

func TestSlidingWindow_CapacityBoundProperty(t *testing.T) {
	clock := newFakeClock()
	const capacity = 4
	w := newTestWindow(t, capacity, clock)
	rng := rand.New(rand.NewSource(42))

	var admitted []time.Time
	for i := 0; i < 5000; i++ {
		clock.Advance(time.Duration(rng.Intn(150)) * time.Millisecond)
		if w.TryAcquire() {
			admitted = append(admitted, clock.Now())
		}
		require.GreaterOrEqual(t, w.Remaining(), 0)
	}
	require.NotEmpty(t, admitted)

	// Any window of length 1s starting at an admission holds at most capacity admissions.
	for i := range admitted {
		count := 0
		for j := i; j < len(admitted) && admitted[j].Sub(admitted[i]) < time.Second; j++ {
			count++
		}
		assert.LessOrEqual(t, count, capacity, "window starting at admission %d", i)
	}
}

func TestSlidingWindow_MonotoneRecovery(t *testing.T) {
	clock := newFakeClock()
	w := newTestWindow(t, 3, clock)

	for w.TryAcquire() {
	}
	clock.Advance(time.Second + time.Nanosecond)
	assert.True(t, w.TryAcquire())
}

func TestSlidingWindow_StorageStaysBounded(t *testing.T) {
	clock := newFakeClock()
	w := newTestWindow(t, 5, clock)

	for i := 0; i < 1000; i++ {
		w.TryAcquire()
		clock.Advance(150 * time.Millisecond)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	assert.LessOrEqual(t, w.countLocked(), 5)
	assert.LessOrEqual(t, len(w.stamps), 10)
}
