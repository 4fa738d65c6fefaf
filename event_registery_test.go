package eventsourcing

import (
	"errors"
	"strconv"
	"sync"
	"testing"
)

type registryTestEvent struct {
	ID string
}

func (e *registryTestEvent) EventType() string   { return "urn:schema:jade:event:widget:created:1" }
func (e *registryTestEvent) AggregateID() string { return e.ID }

type registryTestCommand struct {
	ID string
}

func (c *registryTestCommand) AggregateID() string { return c.ID }

func TestRegistry_RegisterAndNewEvent(t *testing.T) {
	r := NewRegistry()

	if err := r.RegisterEvent(EventSchema("widget", "created", "1"), func() Event { return &registryTestEvent{} }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ev, schema, err := r.NewEvent("urn:schema:jade:event:widget:created:1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := ev.(*registryTestEvent); !ok {
		t.Fatalf("expected *registryTestEvent, got %T", ev)
	}
	if schema.Aggregate != "widget" {
		t.Errorf("expected aggregate widget, got %q", schema.Aggregate)
	}

	ev2, _, _ := r.NewEvent("urn:schema:jade:event:widget:created:1")
	if ev == ev2 {
		t.Fatal("factory should return a new instance each call")
	}
}

type registryTestEventV2 struct {
	ID string
}

func (e *registryTestEventV2) EventType() string   { return "urn:schema:jade:event:widget:created:1" }
func (e *registryTestEventV2) AggregateID() string { return e.ID }

func TestRegistry_RegisterEvent_OverwritesPrevious(t *testing.T) {
	r := NewRegistry()
	schema := EventSchema("widget", "created", "1")

	if err := r.RegisterEvent(schema, func() Event { return &registryTestEvent{} }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.RegisterEvent(schema, func() Event { return &registryTestEventV2{} }); err != nil {
		t.Fatalf("unexpected error on re-registration: %v", err)
	}

	ev, _, err := r.NewEvent(schema.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := ev.(*registryTestEventV2); !ok {
		t.Fatalf("expected the second registration to win, got %T", ev)
	}
}

func TestRegistry_RegisterEvent_NilFactory(t *testing.T) {
	r := NewRegistry()
	if err := r.RegisterEvent(EventSchema("widget", "created", "1"), nil); err == nil {
		t.Fatal("expected error for nil factory")
	}
}

func TestRegistry_NewCommand_UnknownSchema(t *testing.T) {
	r := NewRegistry()
	_, _, err := r.NewCommand("urn:schema:jade:command:widget:delete:1")
	if !errors.Is(err, ErrUnknownSchema) {
		t.Fatalf("expected ErrUnknownSchema, got %v", err)
	}
}

func TestRegistry_NewCommand_MalformedURN(t *testing.T) {
	r := NewRegistry()
	_, _, err := r.NewCommand("not-a-urn")
	if !errors.Is(err, ErrMalformedURN) {
		t.Fatalf("expected ErrMalformedURN, got %v", err)
	}
}

func TestRegistry_ConcurrentRegistration(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			schema := CommandSchema("widget", "action-"+strconv.Itoa(i), "1")
			_ = r.RegisterCommand(schema, func() Command { return &registryTestCommand{} })
		}(i)
	}
	wg.Wait()

	for i := 0; i < 100; i++ {
		urn := "urn:schema:jade:command:widget:action-" + strconv.Itoa(i) + ":1"
		if _, _, err := r.NewCommand(urn); err != nil {
			t.Fatalf("command %s not registered: %v", urn, err)
		}
	}
}

func TestRegistry_Schemas(t *testing.T) {
	r := NewRegistry()
	_ = r.RegisterCommand(CommandSchema("widget", "create", "1"), func() Command { return &registryTestCommand{} })
	_ = r.RegisterCommand(CommandSchema("widget", "update", "1"), func() Command { return &registryTestCommand{} })

	schemas := r.Schemas()
	if len(schemas) != 2 {
		t.Fatalf("expected 2 schemas, got %d: %v", len(schemas), schemas)
	}
}
