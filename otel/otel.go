// Package otel provides OpenTelemetry tracing and metrics middleware for
// the command pipeline, event bus, event store, and queue.
package otel

import (
	eventsourcing "github.com/jade/eventsourcing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/jade/eventsourcing"

// Semantic attribute keys, namespaced consistently with OpenTelemetry
// conventions for a custom instrumentation.
const (
	AttrCommandType = attribute.Key("eventsourcing.command.type")
	AttrAggregateID = attribute.Key("eventsourcing.aggregate.id")

	AttrStreamID      = attribute.Key("eventsourcing.stream.id")
	AttrStreamVersion = attribute.Key("eventsourcing.stream.version")

	AttrEventType  = attribute.Key("eventsourcing.event.type")
	AttrEventID    = attribute.Key("eventsourcing.event.id")
	AttrEventCount = attribute.Key("eventsourcing.events.count")

	AttrSubscriberName = attribute.Key("eventsourcing.subscriber.name")
	AttrOperation      = attribute.Key("eventsourcing.operation")
	AttrQueueName      = attribute.Key("eventsourcing.queue.name")
)

var (
	meter  = otel.Meter(instrumentationName)
	tracer = otel.Tracer(instrumentationName, trace.WithInstrumentationVersion(eventsourcing.Version))

	CommandsHandled, _ = meter.Int64Counter(
		"eventsourcing.commands.handled",
		metric.WithDescription("Total number of commands handled successfully"),
		metric.WithUnit("{command}"),
	)
	CommandsFailed, _ = meter.Int64Counter(
		"eventsourcing.commands.failed",
		metric.WithDescription("Number of commands that failed"),
		metric.WithUnit("{command}"),
	)
	CommandsDuration, _ = meter.Float64Histogram(
		"eventsourcing.commands.duration",
		metric.WithDescription("Command handling duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000),
	)
	CommandsInFlight, _ = meter.Int64UpDownCounter(
		"eventsourcing.commands.in_flight",
		metric.WithDescription("Number of commands currently being processed"),
		metric.WithUnit("{command}"),
	)

	EventsAppended, _ = meter.Int64Counter(
		"eventsourcing.events.appended",
		metric.WithDescription("Number of events appended to streams"),
		metric.WithUnit("{event}"),
	)
	EventsLoaded, _ = meter.Int64Counter(
		"eventsourcing.events.loaded",
		metric.WithDescription("Number of events loaded from streams"),
		metric.WithUnit("{event}"),
	)

	EventBusHandled, _ = meter.Int64Counter(
		"eventsourcing.eventbus.handled",
		metric.WithDescription("Number of events handled by subscribers"),
		metric.WithUnit("{event}"),
	)
	EventBusErrors, _ = meter.Int64Counter(
		"eventsourcing.eventbus.errors",
		metric.WithDescription("Number of event bus handler errors"),
		metric.WithUnit("{error}"),
	)
	EventBusDuration, _ = meter.Float64Histogram(
		"eventsourcing.eventbus.duration",
		metric.WithDescription("Event bus handler duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000),
	)

	EventStoreDuration, _ = meter.Float64Histogram(
		"eventsourcing.eventstore.duration",
		metric.WithDescription("Event store operation duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000),
	)
	EventStoreErrors, _ = meter.Int64Counter(
		"eventsourcing.eventstore.errors",
		metric.WithDescription("Number of event store errors"),
		metric.WithUnit("{error}"),
	)

	ConcurrencyConflicts, _ = meter.Int64Counter(
		"eventsourcing.concurrency.conflicts",
		metric.WithDescription("Number of optimistic concurrency conflicts"),
		metric.WithUnit("{conflict}"),
	)

	// Queue metrics. Enqueuer.Publish records QueueEnqueued and the Receiver
	// records QueueProcessed, QueueRedelivered and QueueDuration; nothing in
	// this module records QueueDepth.
	QueueDepth, _ = meter.Int64UpDownCounter(
		"eventsourcing.queue.depth",
		metric.WithDescription("Approximate number of visible, unclaimed tasks"),
		metric.WithUnit("{task}"),
	)
	QueueEnqueued, _ = meter.Int64Counter(
		"eventsourcing.queue.enqueued",
		metric.WithDescription("Number of tasks enqueued"),
		metric.WithUnit("{task}"),
	)
	QueueProcessed, _ = meter.Int64Counter(
		"eventsourcing.queue.processed",
		metric.WithDescription("Number of tasks processed to completion"),
		metric.WithUnit("{task}"),
	)
	QueueRedelivered, _ = meter.Int64Counter(
		"eventsourcing.queue.redelivered",
		metric.WithDescription("Number of tasks redelivered after their visibility timeout expired"),
		metric.WithUnit("{task}"),
	)
	QueueDuration, _ = meter.Float64Histogram(
		"eventsourcing.queue.duration",
		metric.WithDescription("Task processing duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000),
	)
)
