package logging_test

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	eventsourcing "github.com/jade/eventsourcing"
	"github.com/jade/eventsourcing/fixtures"
	"github.com/jade/eventsourcing/logging"
)

func TestWithEventLogging_LogsAndPassesThroughSuccess(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel) // the success path logs at Debug
	entry := logrus.NewEntry(logger)

	var received eventsourcing.Event
	next := eventsourcing.NewEventHandlerFunc(func(ctx context.Context, event eventsourcing.Event) error {
		received = event
		return nil
	})

	handler := logging.WithEventLogging(entry, next)
	ev := fixtures.NewTestEvent().WithType("widget.created").Build()
	if err := handler.Handle(context.Background(), ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if received != ev {
		t.Fatalf("expected the wrapped handler to receive the event")
	}

	var sawDebug bool
	for _, e := range hook.Entries {
		if e.Data["eventType"] == "widget.created" {
			sawDebug = true
		}
	}
	if !sawDebug {
		t.Fatal("expected a log entry carrying the event's type")
	}
}

func TestWithEventLogging_LogsErrorOnFailure(t *testing.T) {
	logger, hook := test.NewNullLogger()
	entry := logrus.NewEntry(logger)
	wantErr := errors.New("projection exploded")

	next := eventsourcing.NewEventHandlerFunc(func(ctx context.Context, event eventsourcing.Event) error {
		return wantErr
	})

	handler := logging.WithEventLogging(entry, next)
	err := handler.Handle(context.Background(), fixtures.NewTestEvent().Build())
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected the handler's error to pass through, got %v", err)
	}

	var sawError bool
	for _, e := range hook.Entries {
		if e.Level == logrus.ErrorLevel {
			sawError = true
		}
	}
	if !sawError {
		t.Fatal("expected a logged error entry")
	}
}
