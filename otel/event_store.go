package otel

import (
	"context"
	"time"

	eventsourcing "github.com/jade/eventsourcing"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var _ eventsourcing.EventStore = (*TelemetryStore)(nil)

// TelemetryStore wraps an EventStore with tracing spans and the
// eventstore.* metrics.
type TelemetryStore struct {
	next eventsourcing.EventStore
}

// WithEventStoreTelemetry wraps next.
func WithEventStoreTelemetry(next eventsourcing.EventStore) eventsourcing.EventStore {
	return TelemetryStore{next: next}
}

// Save implements eventsourcing.EventStore.
func (t TelemetryStore) Save(ctx context.Context, events []eventsourcing.Envelope, revision eventsourcing.StreamState) (eventsourcing.AppendResult, error) {
	var streamID string
	if len(events) > 0 {
		streamID = events[0].StreamID
	}

	ctx, span := tracer.Start(ctx, "EventStore.Save",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			AttrOperation.String("save"),
			AttrStreamID.String(streamID),
			AttrEventCount.Int64(int64(len(events))),
		),
	)
	defer span.End()

	start := time.Now()
	result, err := t.next.Save(ctx, events, revision)
	EventStoreDuration.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(AttrOperation.String("save")))

	if err != nil {
		EventStoreErrors.Add(ctx, 1, metric.WithAttributes(AttrOperation.String("save")))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}

	EventsAppended.Add(ctx, int64(len(events)))
	span.SetStatus(codes.Ok, "")
	return result, nil
}

// LoadStream implements eventsourcing.EventStore.
func (t TelemetryStore) LoadStream(ctx context.Context, id string) (*eventsourcing.Iterator[eventsourcing.Envelope], error) {
	return t.loadTraced(ctx, "EventStore.LoadStream", id, func(ctx context.Context) (*eventsourcing.Iterator[eventsourcing.Envelope], error) {
		return t.next.LoadStream(ctx, id)
	})
}

// LoadStreamFrom implements eventsourcing.EventStore.
func (t TelemetryStore) LoadStreamFrom(ctx context.Context, id string, version uint64) (*eventsourcing.Iterator[eventsourcing.Envelope], error) {
	return t.loadTraced(ctx, "EventStore.LoadStreamFrom", id, func(ctx context.Context) (*eventsourcing.Iterator[eventsourcing.Envelope], error) {
		return t.next.LoadStreamFrom(ctx, id, version)
	})
}

func (t TelemetryStore) loadTraced(ctx context.Context, spanName, streamID string, load func(context.Context) (*eventsourcing.Iterator[eventsourcing.Envelope], error)) (*eventsourcing.Iterator[eventsourcing.Envelope], error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(AttrStreamID.String(streamID)),
	)

	iter, err := load(ctx)
	if err != nil {
		EventStoreErrors.Add(ctx, 1, metric.WithAttributes(AttrOperation.String("load")))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return iter, err
	}

	count := 0
	wrapped := eventsourcing.NewIteratorFunc(func(ctx context.Context) (eventsourcing.Envelope, bool, error) {
		if !iter.Next(ctx) {
			if iterErr := iter.Err(); iterErr != nil {
				EventStoreErrors.Add(ctx, 1, metric.WithAttributes(AttrOperation.String("load")))
				span.RecordError(iterErr)
				span.SetStatus(codes.Error, iterErr.Error())
			} else {
				span.SetAttributes(AttrEventCount.Int64(int64(count)))
				span.SetStatus(codes.Ok, "")
			}
			EventStoreDuration.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(AttrOperation.String("load")))
			span.End()
			var zero eventsourcing.Envelope
			return zero, false, iter.Err()
		}
		count++
		EventsLoaded.Add(ctx, 1)
		return iter.Value(), true, nil
	})
	return wrapped, nil
}

// Close implements eventsourcing.EventStore.
func (t TelemetryStore) Close() error { return t.next.Close() }
