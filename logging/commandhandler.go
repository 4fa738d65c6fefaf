// Package logging provides logrus-based middleware for command and event
// handlers, matching the pattern the module uses throughout its pipeline.
package logging

import (
	"context"
	"reflect"

	"github.com/sirupsen/logrus"

	eventsourcing "github.com/jade/eventsourcing"
)

// WithCommandLogging wraps a CommandHandler with structured logging. It
// logs the command type and aggregate id before dispatch, and the error on
// failure.
func WithCommandLogging[C eventsourcing.Command](logger *logrus.Entry, next eventsourcing.CommandHandler[C]) eventsourcing.CommandHandler[C] {
	return func(ctx context.Context, command C) (eventsourcing.AppendResult, error) {
		cmdType := reflect.TypeOf(command).String()
		l := logger.WithFields(logrus.Fields{
			"command":     cmdType,
			"aggregateId": command.AggregateID(),
		})
		l.Debug("dispatching command")

		result, err := next(ctx, command)
		if err != nil {
			l.WithError(err).Error("command dispatch failed")
			return result, err
		}
		l.Debug("command dispatched")
		return result, nil
	}
}
