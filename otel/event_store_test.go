package otel_test

import (
	"context"
	"errors"
	"testing"

	eventsourcing "github.com/jade/eventsourcing"
	"github.com/jade/eventsourcing/fixtures"
	esotel "github.com/jade/eventsourcing/otel"
)

func TestWithEventStoreTelemetry_SavePassesThrough(t *testing.T) {
	spy := fixtures.NewStoreSpy()
	store := esotel.WithEventStoreTelemetry(spy)

	env := eventsourcing.Envelope{StreamID: "widget-1", Event: fixtures.NewTestEvent().WithID("widget-1").Build()}
	result, err := store.Save(context.Background(), []eventsourcing.Envelope{env}, eventsourcing.NoStream{})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !result.Successful {
		t.Fatalf("unexpected result: %+v", result)
	}
	if spy.SaveCalls != 1 {
		t.Fatalf("expected the underlying store to see one Save call, got %d", spy.SaveCalls)
	}
}

func TestWithEventStoreTelemetry_SaveReportsError(t *testing.T) {
	wantErr := errors.New("disk full")
	spy := fixtures.NewStoreSpy().FailOnSave(wantErr)
	store := esotel.WithEventStoreTelemetry(spy)

	_, err := store.Save(context.Background(), []eventsourcing.Envelope{{StreamID: "widget-1"}}, eventsourcing.Any{})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected the underlying error to pass through, got %v", err)
	}
}

func TestWithEventStoreTelemetry_LoadStreamCountsEvents(t *testing.T) {
	store := esotel.WithEventStoreTelemetry(fixtures.StoreWithEvents("widget-1", 3))

	iter, err := store.LoadStream(context.Background(), "widget-1")
	if err != nil {
		t.Fatalf("load stream: %v", err)
	}
	events, err := iter.All(context.Background())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
}

func TestWithEventStoreTelemetry_CloseDelegates(t *testing.T) {
	spy := fixtures.NewStoreSpy()
	store := esotel.WithEventStoreTelemetry(spy)

	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if spy.CloseCalls != 1 {
		t.Fatalf("expected Close to delegate to the underlying store, got %d calls", spy.CloseCalls)
	}
}
