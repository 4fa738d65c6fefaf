package otel

import (
	"context"
	"errors"
	"time"

	eventsourcing "github.com/jade/eventsourcing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// WithEventTelemetry wraps a standalone EventHandler with a span and the
// eventbus.duration histogram; it does not count handled events or errors.
// Use this when a handler is invoked outside an
// EventBus subscription (e.g. directly from a worker loop); handlers
// registered via EventBus.Subscribe are already covered by
// WithEventBusTelemetry.
func WithEventTelemetry(next eventsourcing.EventHandler) eventsourcing.EventHandler {
	return eventsourcing.NewEventHandlerFunc(func(ctx context.Context, event eventsourcing.Event) error {
		attrs := []attribute.KeyValue{
			AttrEventType.String(event.EventType()),
			AttrEventID.String(eventsourcing.EventIDFromContext(ctx).String()),
			AttrStreamID.String(eventsourcing.StreamIDFromContext(ctx)),
		}

		ctx, span := tracer.Start(ctx, "events.handle "+event.EventType(),
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(attrs...),
		)
		defer span.End()

		typeAttr := AttrEventType.String(event.EventType())
		start := time.Now()
		err := next.Handle(ctx, event)
		EventBusDuration.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(typeAttr))

		var skipped *eventsourcing.SkippedEvent
		switch {
		case err == nil:
			span.SetStatus(codes.Ok, "")
		case errors.As(err, &skipped):
			span.SetStatus(codes.Ok, "event skipped")
		default:
			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
		}
		return err
	})
}
