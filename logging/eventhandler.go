package logging

import (
	"context"

	"github.com/sirupsen/logrus"

	eventsourcing "github.com/jade/eventsourcing"
)

// WithEventLogging wraps an EventHandler with structured logging, pulling
// stream provenance off ctx (see eventsourcing.WithEnvelope) rather than
// requiring the caller to thread it through explicitly.
func WithEventLogging(logger *logrus.Entry, next eventsourcing.EventHandler) eventsourcing.EventHandler {
	return eventsourcing.NewEventHandlerFunc(func(ctx context.Context, event eventsourcing.Event) error {
		l := logger.WithFields(logrus.Fields{
			"streamId":    eventsourcing.StreamIDFromContext(ctx),
			"causationId": eventsourcing.CausationIDFromContext(ctx),
			"version":     eventsourcing.VersionFromContext(ctx),
			"aggregateId": eventsourcing.AggregateIDFromContext(ctx),
			"eventType":   event.EventType(),
		})
		l.Debug("event processing started")

		err := next.Handle(ctx, event)
		if err != nil {
			l.WithError(err).Error("event processing failed")
			return err
		}
		l.Debug("event processed")
		return nil
	})
}
