package eventsourcing

import (
	"context"
	"fmt"
	"sort"
)

// EventHandler is a projection's unit of work: one component consuming
// events appended to a stream.
type EventHandler interface {
	Handle(ctx context.Context, event Event) error
}

// NewEventHandlerFunc adapts a plain function to an EventHandler. Unlike
// OnEvent, it receives every event regardless of type; use it for sinks
// that branch on EventType() themselves (e.g. a generic audit log).
func NewEventHandlerFunc(fn func(ctx context.Context, event Event) error) EventHandler {
	return eventHandlerFunc(fn)
}

type eventHandlerFunc func(ctx context.Context, event Event) error

func (h eventHandlerFunc) Handle(ctx context.Context, event Event) error {
	return h(ctx, event)
}

// typedEventHandler routes only events whose concrete type matches T,
// identified by T's EventType() schema URN rather than Go reflection.
type typedEventHandler[T Event] struct {
	schema string
	fn     func(ctx context.Context, ev T) error
}

func (h typedEventHandler[T]) EventType() string { return h.schema }

func (h typedEventHandler[T]) Handle(ctx context.Context, event Event) error {
	ev, ok := event.(T)
	if !ok {
		return &SkippedEvent{EventType: event.EventType()}
	}
	return h.fn(ctx, ev)
}

// OnEvent builds a strongly-typed EventHandler for event type T. Register
// it with NewEventGroupProcessor; it's invoked only for events whose
// EventType() matches T's.
func OnEvent[T Event](fn func(ctx context.Context, ev T) error) EventHandler {
	var zero T
	return typedEventHandler[T]{schema: zero.EventType(), fn: fn}
}

// EventGroupProcessor routes an event to the one handler in the group
// whose EventType matches, built from a set of OnEvent handlers.
type EventGroupProcessor struct {
	handlers map[string]EventHandler
}

// NewEventGroupProcessor builds a group from typed handlers created with
// OnEvent. Panics if two handlers declare the same EventType, since that's
// a wiring mistake caught once at startup.
func NewEventGroupProcessor(handlers ...EventHandler) *EventGroupProcessor {
	m := make(map[string]EventHandler, len(handlers))
	for _, h := range handlers {
		typed, ok := h.(interface{ EventType() string })
		if !ok {
			panic(fmt.Sprintf("handler %T was not built with OnEvent", h))
		}
		name := typed.EventType()
		if _, exists := m[name]; exists {
			panic(fmt.Sprintf("duplicate handler for event %s: %v", name, ErrDuplicateHandler))
		}
		m[name] = h
	}
	return &EventGroupProcessor{handlers: m}
}

// Handle routes ev to its registered handler by EventType(). Returns
// *SkippedEvent if the group has no handler for ev's type.
func (p *EventGroupProcessor) Handle(ctx context.Context, ev Event) error {
	h, ok := p.handlers[ev.EventType()]
	if !ok {
		return &SkippedEvent{EventType: ev.EventType()}
	}
	return h.Handle(ctx, ev)
}

// StreamFilter returns the sorted schema URNs this group handles, for
// subscribing to only the streams it cares about.
func (p *EventGroupProcessor) StreamFilter() []string {
	out := make([]string, 0, len(p.handlers))
	for name := range p.handlers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
