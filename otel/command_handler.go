package otel

import (
	"context"
	"errors"
	"fmt"
	"time"

	eventsourcing "github.com/jade/eventsourcing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// WithCommandTelemetry wraps a CommandHandler with a trace span and the
// commands.* metrics: in-flight gauge, duration histogram, handled/failed
// counters, and a concurrency-conflict counter keyed off ErrConcurrency.
func WithCommandTelemetry[C eventsourcing.Command](next eventsourcing.CommandHandler[C]) eventsourcing.CommandHandler[C] {
	var zero C
	commandType := fmt.Sprintf("%T", zero)
	typeAttr := AttrCommandType.String(commandType)

	return func(ctx context.Context, cmd C) (eventsourcing.AppendResult, error) {
		attrs := []attribute.KeyValue{typeAttr, AttrAggregateID.String(cmd.AggregateID())}

		ctx, span := tracer.Start(ctx, fmt.Sprintf("command.handle %s", commandType),
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(attrs...),
		)
		defer span.End()

		CommandsInFlight.Add(ctx, 1, metric.WithAttributes(typeAttr))
		defer CommandsInFlight.Add(ctx, -1, metric.WithAttributes(typeAttr))

		start := time.Now()
		result, err := next(ctx, cmd)
		CommandsDuration.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(typeAttr))

		span.SetAttributes(AttrStreamVersion.Int64(int64(result.NextExpectedVersion)))

		if err != nil {
			if errors.Is(err, eventsourcing.ErrConcurrency) {
				ConcurrencyConflicts.Add(ctx, 1, metric.WithAttributes(typeAttr))
			}

			var rejection *eventsourcing.DomainRejection
			if errors.As(err, &rejection) {
				span.SetStatus(codes.Ok, fmt.Sprintf("domain rejection: %v", err))
				CommandsFailed.Add(ctx, 1, metric.WithAttributes(typeAttr))
				return result, err
			}

			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
			CommandsFailed.Add(ctx, 1, metric.WithAttributes(typeAttr))
			return result, err
		}

		span.SetStatus(codes.Ok, "")
		CommandsHandled.Add(ctx, 1, metric.WithAttributes(typeAttr))
		return result, nil
	}
}
