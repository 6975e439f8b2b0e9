package ratelimit

import (
	"context"
	"errors"
	"time"
)

// Event describes one admission decision. Recorders must treat it as
// read-only.
type Event struct {
	Key       ClientKey
	Allowed   bool
	Remaining int
	Method    string
	Path      string
	At        time.Time
}

// Recorder receives admission decisions for statistics. Recording is
// best-effort: the gate logs errors and never changes its outcome because of
// them.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

// RecorderFunc adapts a function to the Recorder interface.
type RecorderFunc func(ctx context.Context, ev Event) error

// Record calls f(ctx, ev).
func (f RecorderFunc) Record(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// MultiRecorder fans an event out to every non-nil recorder and joins their errors.
type MultiRecorder []Recorder

// Record implements Recorder.
func (m MultiRecorder) Record(ctx context.Context, ev Event) error {
	var errs []error
	for _, rec := range m {
		if rec == nil {
			continue
		}
		if err := rec.Record(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
