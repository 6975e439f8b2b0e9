package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Registry maps client keys to their SlidingWindow. Lookups for different
// keys never contend; concurrent first lookups for the same key observe a
// single instance.
type Registry struct {
	capacity int
	window   time.Duration
	clock    Clock
	idleTTL  time.Duration
	interval time.Duration

	limiters sync.Map // ClientKey -> *SlidingWindow
	size     atomic.Int64

	mu      sync.Mutex
	done    chan struct{}
	started bool
	closed  bool
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryClock sets the clock handed to every limiter the registry creates.
func WithRegistryClock(c Clock) RegistryOption {
	return func(r *Registry) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithIdleTTL enables eviction of clients that have not been seen for ttl and
// have nothing left in their window. A ttl shorter than the window is raised
// to the window. Zero disables eviction.
func WithIdleTTL(ttl time.Duration) RegistryOption {
	return func(r *Registry) { r.idleTTL = ttl }
}

// WithCleanupInterval sets how often the janitor scans for idle clients.
// Defaults to the idle TTL.
func WithCleanupInterval(d time.Duration) RegistryOption {
	return func(r *Registry) { r.interval = d }
}

// NewRegistry creates a registry whose limiters admit capacity requests per window.
func NewRegistry(capacity int, window time.Duration, opts ...RegistryOption) (*Registry, error) {
	if err := validate(capacity, window); err != nil {
		return nil, err
	}
	r := &Registry{
		capacity: capacity,
		window:   window,
		clock:    SystemClock,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.idleTTL > 0 && r.idleTTL < window {
		r.idleTTL = window
	}
	if r.interval <= 0 {
		r.interval = r.idleTTL
	}
	return r, nil
}

// Capacity returns the per-client admission limit.
func (r *Registry) Capacity() int { return r.capacity }

// Window returns the rolling window size.
func (r *Registry) Window() time.Duration { return r.window }

// Len returns the number of clients currently tracked.
func (r *Registry) Len() int { return int(r.size.Load()) }

// GetOrCreate returns the limiter for key, creating it on first use. A
// limiter the janitor has retired but not yet unlinked is never returned.
func (r *Registry) GetOrCreate(key ClientKey) *SlidingWindow {
	for {
		now := r.clock.Now()
		v, ok := r.limiters.Load(key)
		if !ok {
			fresh := &SlidingWindow{
				capacity: r.capacity,
				window:   r.window,
				clock:    r.clock,
				stamps:   make([]time.Time, 0, r.capacity),
			}
			fresh.touch(now)
			if v, ok = r.limiters.LoadOrStore(key, fresh); !ok {
				r.size.Add(1)
				return fresh
			}
		}
		// Touch before checking: the janitor rereads lastSeen under the same
		// lock, so a limiter seen alive here stays alive for a full idle TTL.
		w := v.(*SlidingWindow)
		w.touch(now)
		if w.alive() {
			return w
		}
		r.unlink(key, w)
	}
}

// Acquire runs one admission check for key and returns the resulting state.
func (r *Registry) Acquire(key ClientKey) Decision {
	for {
		w := r.GetOrCreate(key)
		if d, ok := w.decide(); ok {
			return d
		}
		// Retired by the janitor between lookup and decision.
		r.unlink(key, w)
	}
}

func (r *Registry) unlink(key ClientKey, w *SlidingWindow) {
	if r.limiters.CompareAndDelete(key, w) {
		r.size.Add(-1)
	}
}

// Start launches the idle-client janitor. It is a no-op when eviction is
// disabled or the janitor is already running. The janitor stops when ctx is
// done or Close is called.
func (r *Registry) Start(ctx context.Context) {
	if r.idleTTL <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.closed {
		return
	}
	r.started = true
	go r.cleanup(ctx)
}

// Close stops the janitor.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.closed = true
		close(r.done)
	}
}

func (r *Registry) cleanup(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case <-ticker.C:
			if n := r.evictIdle(); n > 0 {
				slog.Debug("Evicted idle rate limit clients", "evicted", n, "tracked", r.Len())
			}
		}
	}
}

// evictIdle removes clients idle for longer than the idle TTL and returns
// how many were removed.
func (r *Registry) evictIdle() int {
	cutoff := r.clock.Now().Add(-r.idleTTL)
	evicted := 0
	r.limiters.Range(func(k, v any) bool {
		w := v.(*SlidingWindow)
		if w.retireIfIdle(cutoff) && r.limiters.CompareAndDelete(k, w) {
			r.size.Add(-1)
			evicted++
		}
		return true
	})
	return evicted
}
