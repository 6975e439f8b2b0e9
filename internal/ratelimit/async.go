package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
)

// DefaultAsyncBuffer is the queue length used when NewAsyncRecorder is given
// a non-positive size.
const DefaultAsyncBuffer = 1024

// ErrRecorderClosed is returned by AsyncRecorder.Record after Close.
var ErrRecorderClosed = errors.New("recorder closed")

// AsyncRecorder queues events for a wrapped Recorder and delivers them from a
// single background goroutine, so a slow stats backend never holds up a
// request. When the queue is full the event is dropped and counted.
type AsyncRecorder struct {
	next    Recorder
	events  chan Event
	dropped atomic.Int64

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewAsyncRecorder starts delivering queued events to next.
func NewAsyncRecorder(next Recorder, size int) *AsyncRecorder {
	if size <= 0 {
		size = DefaultAsyncBuffer
	}
	a := &AsyncRecorder{
		next:   next,
		events: make(chan Event, size),
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

// Record enqueues ev without blocking. The request context is not carried
// over: it ends with the request, usually before the event is delivered.
func (a *AsyncRecorder) Record(_ context.Context, ev Event) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrRecorderClosed
	}
	select {
	case a.events <- ev:
	default:
		a.dropped.Add(1)
	}
	return nil
}

// Dropped returns how many events were discarded because the queue was full.
func (a *AsyncRecorder) Dropped() int64 {
	return a.dropped.Load()
}

// Close stops accepting events and waits until the queued ones have been
// delivered or ctx is done.
func (a *AsyncRecorder) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.events)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if n := a.dropped.Load(); n > 0 {
		slog.Warn("Rate limit stats events dropped", "dropped", n)
	}
	return nil
}

func (a *AsyncRecorder) run() {
	defer close(a.done)
	for ev := range a.events {
		if err := a.next.Record(context.Background(), ev); err != nil {
			slog.Debug("Failed to record rate limit event", "key", string(ev.Key), "error", err)
		}
	}
}
