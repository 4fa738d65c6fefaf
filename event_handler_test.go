package eventsourcing

import (
	"context"
	"errors"
	"testing"
)

var _ Event = CartCreated{}
var _ Event = (*ItemAdded)(nil)
var _ Event = (*UnhandledEvent)(nil)

type CartCreated struct {
	ID string
}

func (c CartCreated) AggregateID() string { return c.ID }
func (c CartCreated) EventType() string   { return "urn:schema:jade:event:cart:created:1" }

type ItemAdded struct {
	ID string
}

func (i *ItemAdded) AggregateID() string { return i.ID }
func (i *ItemAdded) EventType() string   { return "urn:schema:jade:event:cart:item-added:1" }

type UnhandledEvent struct{}

func (o *UnhandledEvent) AggregateID() string { return "" }
func (o *UnhandledEvent) EventType() string   { return "urn:schema:jade:event:cart:unhandled:1" }

func TestNewEventHandlerFunc_ReceivesEveryType(t *testing.T) {
	var received []Event
	handler := NewEventHandlerFunc(func(ctx context.Context, ev Event) error {
		received = append(received, ev)
		return nil
	})

	_ = handler.Handle(context.Background(), CartCreated{ID: "c1"})
	_ = handler.Handle(context.Background(), &ItemAdded{ID: "i1"})

	if len(received) != 2 {
		t.Fatalf("expected 2 events, got %d", len(received))
	}
}

func TestTypedEventHandler_Handle_CorrectType(t *testing.T) {
	var called bool
	handler := OnEvent(func(ctx context.Context, ev CartCreated) error {
		called = true
		return nil
	})

	if err := handler.Handle(context.Background(), CartCreated{ID: "abc"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("handler should have been called")
	}
}

func TestTypedEventHandler_Handle_WrongType(t *testing.T) {
	handler := OnEvent(func(ctx context.Context, ev CartCreated) error {
		t.Fatal("should not be called")
		return nil
	})

	err := handler.Handle(context.Background(), &ItemAdded{ID: "xyz"})

	var skipped *SkippedEvent
	if !errors.As(err, &skipped) {
		t.Fatalf("expected *SkippedEvent, got %v", err)
	}
}

func TestEventGroupProcessor_RoutesEvents(t *testing.T) {
	var calledCart, calledItem bool

	group := NewEventGroupProcessor(
		OnEvent(func(ctx context.Context, ev CartCreated) error {
			calledCart = true
			return nil
		}),
		OnEvent(func(ctx context.Context, ev *ItemAdded) error {
			calledItem = true
			return nil
		}),
	)

	if err := group.Handle(context.Background(), CartCreated{ID: "c1"}); err != nil {
		t.Fatalf("CartCreated: unexpected error: %v", err)
	}
	if !calledCart || calledItem {
		t.Errorf("expected only calledCart, got cart=%v item=%v", calledCart, calledItem)
	}

	if err := group.Handle(context.Background(), &ItemAdded{ID: "i1"}); err != nil {
		t.Fatalf("ItemAdded: unexpected error: %v", err)
	}
	if !calledItem {
		t.Error("expected calledItem to be true")
	}
}

func TestEventGroupProcessor_SkippedEvent(t *testing.T) {
	group := NewEventGroupProcessor(
		OnEvent(func(ctx context.Context, ev CartCreated) error { return nil }),
	)

	err := group.Handle(context.Background(), &UnhandledEvent{})

	var skipped *SkippedEvent
	if !errors.As(err, &skipped) {
		t.Fatalf("expected *SkippedEvent, got %v", err)
	}
}

func TestEventGroupProcessor_DuplicateHandlerPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic on duplicate handler")
		}
	}()

	NewEventGroupProcessor(
		OnEvent(func(ctx context.Context, ev CartCreated) error { return nil }),
		OnEvent(func(ctx context.Context, ev CartCreated) error { return nil }),
	)
}

func TestEventGroupProcessor_StreamFilter_Sorted(t *testing.T) {
	group := NewEventGroupProcessor(
		OnEvent(func(ctx context.Context, ev *ItemAdded) error { return nil }),
		OnEvent(func(ctx context.Context, ev CartCreated) error { return nil }),
	)

	names := group.StreamFilter()
	expected := []string{
		"urn:schema:jade:event:cart:created:1",
		"urn:schema:jade:event:cart:item-added:1",
	}
	if len(names) != len(expected) {
		t.Fatalf("StreamFilter() = %v, want %v", names, expected)
	}
	for i := range expected {
		if names[i] != expected[i] {
			t.Errorf("StreamFilter()[%d] = %q, want %q", i, names[i], expected[i])
		}
	}
}
