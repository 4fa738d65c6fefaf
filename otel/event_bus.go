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

var _ eventsourcing.EventBus = (*TelemetryEventBus)(nil)

// TelemetryEventBus wraps an EventBus so every Subscribe handler runs
// inside a span and reports eventbus.* metrics, without requiring each
// projection to instrument itself.
type TelemetryEventBus struct {
	next eventsourcing.EventBus
}

// WithEventBusTelemetry wraps next.
func WithEventBusTelemetry(next eventsourcing.EventBus) *TelemetryEventBus {
	return &TelemetryEventBus{next: next}
}

// Subscribe implements eventsourcing.EventBus.
func (t *TelemetryEventBus) Subscribe(ctx context.Context, name string, handler eventsourcing.EventHandler, filter ...string) error {
	return t.next.Subscribe(ctx, name, eventsourcing.NewEventHandlerFunc(func(ctx context.Context, event eventsourcing.Event) error {
		attrs := []attribute.KeyValue{
			AttrEventType.String(event.EventType()),
			AttrEventID.String(eventsourcing.EventIDFromContext(ctx).String()),
			AttrStreamID.String(eventsourcing.StreamIDFromContext(ctx)),
			AttrSubscriberName.String(name),
		}

		ctx, span := tracer.Start(ctx, "subscription.receive "+name,
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(attrs...),
		)
		defer span.End()

		typeAttr := AttrEventType.String(event.EventType())
		start := time.Now()
		err := handler.Handle(ctx, event)
		EventBusDuration.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(typeAttr))

		var skipped *eventsourcing.SkippedEvent
		switch {
		case err == nil:
			span.SetStatus(codes.Ok, "")
		case errors.As(err, &skipped):
			span.SetStatus(codes.Ok, "event skipped")
		default:
			EventBusErrors.Add(ctx, 1, metric.WithAttributes(typeAttr))
			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
		}
		EventBusHandled.Add(ctx, 1, metric.WithAttributes(typeAttr))
		return err
	}), filter...)
}

// Publish implements eventsourcing.EventBus.
func (t *TelemetryEventBus) Publish(ctx context.Context, env eventsourcing.Envelope) error {
	return t.next.Publish(ctx, env)
}

// Errors implements eventsourcing.EventBus.
func (t *TelemetryEventBus) Errors() <-chan error { return t.next.Errors() }

// Close implements eventsourcing.EventBus.
func (t *TelemetryEventBus) Close() error { return t.next.Close() }
