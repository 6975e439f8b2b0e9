package observability

import (
	"context"

	"throttle/internal/ratelimit"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Decision outcomes recorded on ratelimit.decisions.
const (
	OutcomeAllowed  = "allowed"
	OutcomeRejected = "rejected"
)

// RateLimitMetrics records admission decisions as OpenTelemetry metrics. It
// implements ratelimit.Recorder. Client keys are never used as attributes.
type RateLimitMetrics struct {
	decisions    metric.Int64Counter
	registration metric.Registration
}

var _ ratelimit.Recorder = (*RateLimitMetrics)(nil)

// NewRateLimitMetrics registers the decision counter and, when registry is
// non-nil, an observable gauge of tracked clients.
func NewRateLimitMetrics(registry *ratelimit.Registry) (*RateLimitMetrics, error) {
	meter := otel.Meter("throttle/ratelimit")

	decisions, err := meter.Int64Counter(
		"ratelimit.decisions",
		metric.WithDescription("Admission decisions made by the request gate"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	m := &RateLimitMetrics{decisions: decisions}
	if registry == nil {
		return m, nil
	}

	clients, err := meter.Int64ObservableGauge(
		"ratelimit.clients",
		metric.WithDescription("Clients with a live sliding window"),
		metric.WithUnit("{client}"),
	)
	if err != nil {
		return nil, err
	}
	capacity, err := meter.Int64ObservableGauge(
		"ratelimit.capacity",
		metric.WithDescription("Requests admitted per client per window"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	m.registration, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(clients, int64(registry.Len()))
		o.ObserveInt64(capacity, int64(registry.Capacity()))
		return nil
	}, clients, capacity)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Record implements ratelimit.Recorder.
func (m *RateLimitMetrics) Record(ctx context.Context, ev ratelimit.Event) error {
	outcome := OutcomeAllowed
	if !ev.Allowed {
		outcome = OutcomeRejected
	}
	m.decisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("method", ev.Method),
	))
	return nil
}

// Close unregisters the gauge callback.
func (m *RateLimitMetrics) Close() error {
	if m.registration == nil {
		return nil
	}
	return m.registration.Unregister()
}
