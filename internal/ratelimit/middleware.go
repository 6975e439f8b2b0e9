package ratelimit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"throttle/internal/models"

	"golang.org/x/time/rate"
)

// Response header names set on every gated request.
const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

type gate struct {
	registry *Registry
	keyFn    func(*http.Request) ClientKey
	skip     func(*http.Request) bool
	recorder Recorder

	logEvery   time.Duration
	logLimiter *rate.Sometimes
	suppressed atomic.Int64
}

// GateOption configures the rate limit middleware.
type GateOption func(*gate)

// WithRecorder attaches a best-effort statistics recorder.
func WithRecorder(rec Recorder) GateOption {
	return func(g *gate) { g.recorder = rec }
}

// WithSkipper exempts requests for which skip returns true.
func WithSkipper(skip func(*http.Request) bool) GateOption {
	return func(g *gate) { g.skip = skip }
}

// WithKeyFunc overrides ResolveClientKey.
func WithKeyFunc(fn func(*http.Request) ClientKey) GateOption {
	return func(g *gate) {
		if fn != nil {
			g.keyFn = fn
		}
	}
}

// WithLogInterval limits "Rate limit exceeded" warnings to one per interval.
// Zero logs every rejection.
func WithLogInterval(d time.Duration) GateOption {
	return func(g *gate) { g.logEvery = d }
}

// Middleware returns HTTP middleware that admits or rejects each request
// against the caller's sliding window. Admitted requests get the capacity
// headers and pass through unchanged; rejected ones get a 429 JSON body and
// never reach next.
func Middleware(registry *Registry, opts ...GateOption) func(http.Handler) http.Handler {
	g := &gate{
		registry: registry,
		keyFn:    ResolveClientKey,
		logEvery: time.Second,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logEvery > 0 {
		g.logLimiter = &rate.Sometimes{Interval: g.logEvery}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if g.skip != nil && g.skip(r) {
				next.ServeHTTP(w, r)
				return
			}

			key := g.keyFn(r)
			d := g.registry.Acquire(key)
			g.record(r, key, d)

			setHeaders(w, d)
			if d.Allowed {
				next.ServeHTTP(w, r)
				return
			}
			g.reject(w, key, d)
		})
	}
}

func setHeaders(w http.ResponseWriter, d Decision) {
	remaining := d.Remaining
	if !d.Allowed {
		remaining = 0
	}
	w.Header().Set(HeaderLimit, strconv.Itoa(d.Limit))
	w.Header().Set(HeaderRemaining, strconv.Itoa(remaining))
	w.Header().Set(HeaderReset, strconv.FormatInt(d.ResetAt.UnixMilli(), 10))
}

func (g *gate) reject(w http.ResponseWriter, key ClientKey, d Decision) {
	retryAfter := RetryAfterSeconds(g.registry.Window())

	w.Header().Set(HeaderRetryAfter, strconv.Itoa(retryAfter))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	resp := models.NewRateLimitResponse(RejectionMessage(d.Limit, g.registry.Window()), retryAfter)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to encode rate limit response", "error", err)
	}

	g.warn(key, d.Limit, retryAfter)
}

func (g *gate) warn(key ClientKey, limit, retryAfter int) {
	if g.logLimiter == nil {
		slog.Warn("Rate limit exceeded", "key", string(key), "limit", limit, "retry_after", retryAfter)
		return
	}
	logged := false
	g.logLimiter.Do(func() {
		logged = true
		slog.Warn("Rate limit exceeded",
			"key", string(key),
			"limit", limit,
			"retry_after", retryAfter,
			"suppressed", g.suppressed.Swap(0),
		)
	})
	if !logged {
		g.suppressed.Add(1)
	}
}

func (g *gate) record(r *http.Request, key ClientKey, d Decision) {
	if g.recorder == nil {
		return
	}
	ev := Event{
		Key:       key,
		Allowed:   d.Allowed,
		Remaining: d.Remaining,
		Method:    r.Method,
		Path:      r.URL.Path,
		At:        d.At,
	}
	if err := g.recorder.Record(r.Context(), ev); err != nil {
		slog.Debug("Failed to record rate limit event", "key", string(key), "error", err)
	}
}

// RetryAfterSeconds rounds the window to whole seconds, never below one.
func RetryAfterSeconds(window time.Duration) int {
	secs := int(math.Round(window.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// RejectionMessage is the human-readable text of a 429 response.
func RejectionMessage(limit int, window time.Duration) string {
	per := window.String()
	if window == time.Second {
		per = "second"
	}
	return fmt.Sprintf("Too many requests. Maximum %d requests per %s allowed.", limit, per)
}
