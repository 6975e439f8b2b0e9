package observability

import (
	"context"
	"errors"
	"time"

	"throttle/internal/models"
	"throttle/internal/storage"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentedStorage wraps a storage.Storage implementation with
// OpenTelemetry tracing and metrics instrumentation.
type InstrumentedStorage struct {
	inner    storage.Storage
	tracer   trace.Tracer
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

var _ storage.Storage = (*InstrumentedStorage)(nil)

// NewInstrumentedStorage creates a new storage wrapper that records trace spans,
// operation latency histograms, and error counters for every storage method call.
func NewInstrumentedStorage(inner storage.Storage) (*InstrumentedStorage, error) {
	tracer := otel.Tracer("throttle/storage")
	meter := otel.Meter("throttle/storage")

	duration, err := meter.Float64Histogram(
		"storage.operation.duration",
		metric.WithDescription("Duration of storage operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	errCounter, err := meter.Int64Counter(
		"storage.operation.errors",
		metric.WithDescription("Number of storage operation errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedStorage{
		inner:    inner,
		tracer:   tracer,
		duration: duration,
		errors:   errCounter,
	}, nil
}

func (s *InstrumentedStorage) startSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "storage."+operation,
		trace.WithAttributes(append([]attribute.KeyValue{
			attribute.String("storage.operation", operation),
		}, attrs...)...),
	)
}

// record ends span. Missing items and duplicate IDs are normal outcomes of
// the item API, so they are tagged on the span but not counted as errors.
func (s *InstrumentedStorage) record(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	elapsed := time.Since(start).Seconds()
	attrs := metric.WithAttributes(attribute.String("operation", operation))

	s.duration.Record(ctx, elapsed, attrs)

	switch {
	case err == nil:
		span.SetStatus(codes.Ok, "")
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrConflict):
		span.SetAttributes(attribute.String("storage.outcome", err.Error()))
	default:
		s.errors.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	span.End()
}

func (s *InstrumentedStorage) ListItems(ctx context.Context, limit, offset int) ([]*models.Item, int, error) {
	ctx, span := s.startSpan(ctx, "ListItems",
		attribute.Int("limit", limit),
		attribute.Int("offset", offset),
	)
	start := time.Now()
	items, total, err := s.inner.ListItems(ctx, limit, offset)
	span.SetAttributes(attribute.Int("total", total))
	s.record(ctx, span, "ListItems", start, err)
	return items, total, err
}

func (s *InstrumentedStorage) GetItem(ctx context.Context, id string) (*models.Item, error) {
	ctx, span := s.startSpan(ctx, "GetItem", attribute.String("item_id", id))
	start := time.Now()
	result, err := s.inner.GetItem(ctx, id)
	s.record(ctx, span, "GetItem", start, err)
	return result, err
}

func (s *InstrumentedStorage) CreateItem(ctx context.Context, item *models.Item) error {
	ctx, span := s.startSpan(ctx, "CreateItem", attribute.String("item_id", item.ID))
	start := time.Now()
	err := s.inner.CreateItem(ctx, item)
	s.record(ctx, span, "CreateItem", start, err)
	return err
}

func (s *InstrumentedStorage) UpdateItem(ctx context.Context, item *models.Item) error {
	ctx, span := s.startSpan(ctx, "UpdateItem", attribute.String("item_id", item.ID))
	start := time.Now()
	err := s.inner.UpdateItem(ctx, item)
	s.record(ctx, span, "UpdateItem", start, err)
	return err
}

func (s *InstrumentedStorage) DeleteItem(ctx context.Context, id string) error {
	ctx, span := s.startSpan(ctx, "DeleteItem", attribute.String("item_id", id))
	start := time.Now()
	err := s.inner.DeleteItem(ctx, id)
	s.record(ctx, span, "DeleteItem", start, err)
	return err
}

func (s *InstrumentedStorage) Ping(ctx context.Context) error {
	ctx, span := s.startSpan(ctx, "Ping")
	start := time.Now()
	err := s.inner.Ping(ctx)
	s.record(ctx, span, "Ping", start, err)
	return err
}

func (s *InstrumentedStorage) Close() error {
	return s.inner.Close()
}
