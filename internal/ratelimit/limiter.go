// Package ratelimit provides per-client admission control for HTTP requests
// using a true sliding window. Each client key owns one SlidingWindow inside a
// Registry; the Middleware resolves the key, asks the window for a decision
// and sets the standard rate limit response headers.
package ratelimit

import (
	"errors"
	"time"
)

// ErrInvalidConfiguration is returned when a limiter or registry is built
// with a non-positive capacity or window.
var ErrInvalidConfiguration = errors.New("invalid rate limit configuration")

// DefaultWindow is the rolling window shared by every limiter.
const DefaultWindow = time.Second

// ClientKey identifies the client a limiter belongs to.
type ClientKey string

// Clock supplies the current time. Implementations must be safe for
// concurrent use.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// Now returns time.Now, which carries a monotonic reading used by purge
// comparisons.
func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the default Clock.
var SystemClock Clock = systemClock{}

// Decision is a consistent snapshot of one admission check.
type Decision struct {
	Allowed   bool
	Limit     int       // Maximum admissions per window
	Remaining int       // Slots left in the current window, never negative
	ResetAt   time.Time // When the oldest counted admission leaves the window
	At        time.Time // Clock reading the decision was taken at
}
