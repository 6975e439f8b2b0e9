package ratelimit

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// SlidingWindow admits at most capacity requests in any trailing window.
// Admission timestamps are kept in insertion order so expiring them is a
// prefix trim. All methods are safe for concurrent use.
type SlidingWindow struct {
	capacity int
	window   time.Duration
	clock    Clock

	mu      sync.Mutex
	stamps  []time.Time
	head    int
	retired bool

	lastSeen atomic.Int64 // unix nanos of the last registry lookup
}

// WindowOption configures a SlidingWindow.
type WindowOption func(*SlidingWindow)

// WithClock replaces the system clock, mainly for tests.
func WithClock(c Clock) WindowOption {
	return func(w *SlidingWindow) {
		if c != nil {
			w.clock = c
		}
	}
}

// NewSlidingWindow creates a limiter admitting capacity requests per window.
func NewSlidingWindow(capacity int, window time.Duration, opts ...WindowOption) (*SlidingWindow, error) {
	if err := validate(capacity, window); err != nil {
		return nil, err
	}
	w := &SlidingWindow{
		capacity: capacity,
		window:   window,
		clock:    SystemClock,
		stamps:   make([]time.Time, 0, capacity),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

func validate(capacity int, window time.Duration) error {
	if capacity < 1 {
		return fmt.Errorf("%w: capacity must be at least 1, got %d", ErrInvalidConfiguration, capacity)
	}
	if window <= 0 {
		return fmt.Errorf("%w: window must be positive, got %s", ErrInvalidConfiguration, window)
	}
	return nil
}

// TryAcquire records an admission and returns true if the window has room,
// otherwise it returns false and leaves the window untouched. A window the
// registry has evicted admits nothing; look the client up again instead.
func (w *SlidingWindow) TryAcquire() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.retired {
		return false
	}
	return w.acquireLocked(w.clock.Now())
}

// Remaining returns how many admissions the current window still allows.
func (w *SlidingWindow) Remaining() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.purgeLocked(w.clock.Now())
	return w.remainingLocked()
}

// NextReset returns the instant at which the oldest counted admission leaves
// the window. With nothing counted it is one full window from now.
func (w *SlidingWindow) NextReset() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.clock.Now()
	w.purgeLocked(now)
	return w.resetLocked(now)
}

// Limit returns the configured capacity.
func (w *SlidingWindow) Limit() int {
	return w.capacity
}

// Window returns the rolling window size.
func (w *SlidingWindow) Window() time.Duration {
	return w.window
}

// decide runs one admission check and snapshots the resulting state under a
// single lock. ok is false when the window was retired by the registry and
// must not be used.
func (w *SlidingWindow) decide() (d Decision, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.retired {
		return Decision{}, false
	}
	now := w.clock.Now()
	allowed := w.acquireLocked(now)
	return Decision{
		Allowed:   allowed,
		Limit:     w.capacity,
		Remaining: w.remainingLocked(),
		ResetAt:   w.resetLocked(now),
		At:        now,
	}, true
}

func (w *SlidingWindow) alive() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.retired
}

// retireIfIdle marks the window unusable when it holds no admissions inside
// the window and has not been looked up since cutoff.
func (w *SlidingWindow) retireIfIdle(cutoff time.Time) bool {
	if w.lastSeen.Load() > cutoff.UnixNano() {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lastSeen.Load() > cutoff.UnixNano() {
		return false
	}
	w.purgeLocked(w.clock.Now())
	if w.countLocked() > 0 {
		return false
	}
	w.retired = true
	return true
}

func (w *SlidingWindow) touch(now time.Time) {
	w.lastSeen.Store(now.UnixNano())
}

func (w *SlidingWindow) acquireLocked(now time.Time) bool {
	w.purgeLocked(now)
	if w.countLocked() >= w.capacity {
		return false
	}
	w.stamps = append(w.stamps, now)
	return true
}

// purgeLocked drops admissions older than now-window from the front. It stops
// at the first entry still inside the window, so an entry stamped after a
// clock regression is kept rather than skipped over.
func (w *SlidingWindow) purgeLocked(now time.Time) {
	cutoff := now.Add(-w.window)
	for w.head < len(w.stamps) && w.stamps[w.head].Before(cutoff) {
		w.stamps[w.head] = time.Time{}
		w.head++
	}
	if w.head == len(w.stamps) {
		w.stamps = w.stamps[:0]
		w.head = 0
		return
	}
	if w.head > 0 && w.head*2 >= len(w.stamps) {
		n := copy(w.stamps, w.stamps[w.head:])
		w.stamps = w.stamps[:n]
		w.head = 0
	}
}

func (w *SlidingWindow) countLocked() int {
	return len(w.stamps) - w.head
}

func (w *SlidingWindow) remainingLocked() int {
	if r := w.capacity - w.countLocked(); r > 0 {
		return r
	}
	return 0
}

func (w *SlidingWindow) resetLocked(now time.Time) time.Time {
	if w.countLocked() == 0 {
		return now.Add(w.window)
	}
	return w.stamps[w.head].Add(w.window)
}
