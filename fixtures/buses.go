package fixtures

import (
	"context"
	"sync"

	es "github.com/jade/eventsourcing"
)

// Subscription captures one Subscribe call made against an EventBusSpy.
type Subscription struct {
	Name    string
	Handler es.EventHandler
	Filter  []string
}

// EventBusSpy is a configurable es.EventBus double for testing projection
// wiring without standing up eventbus/memory.
type EventBusSpy struct {
	mu sync.Mutex

	SubscribeFn func(ctx context.Context, name string, handler es.EventHandler, filter ...string) error
	PublishFn   func(ctx context.Context, env es.Envelope) error

	SubscribeCalls int
	PublishCalls   int
	CloseCalls     int
	Subscriptions  []Subscription
	Published      []es.Envelope

	subscribeErr error
	errCh        chan error
	closed       bool
}

// NewEventBusSpy builds an empty EventBusSpy.
func NewEventBusSpy() *EventBusSpy {
	return &EventBusSpy{errCh: make(chan error, 16)}
}

// FailOnSubscribe makes every Subscribe call return err.
func (b *EventBusSpy) FailOnSubscribe(err error) *EventBusSpy {
	b.subscribeErr = err
	return b
}

// Subscribe implements es.EventBus.
func (b *EventBusSpy) Subscribe(ctx context.Context, name string, handler es.EventHandler, filter ...string) error {
	b.mu.Lock()
	b.SubscribeCalls++
	b.Subscriptions = append(b.Subscriptions, Subscription{Name: name, Handler: handler, Filter: filter})
	b.mu.Unlock()

	if b.SubscribeFn != nil {
		return b.SubscribeFn(ctx, name, handler, filter...)
	}
	return b.subscribeErr
}

// Publish implements es.EventBus, recording env and optionally delivering
// it synchronously to every subscriber whose filter matches (mirroring
// eventbus/memory's semantics closely enough for assertions, without its
// concurrency).
func (b *EventBusSpy) Publish(ctx context.Context, env es.Envelope) error {
	b.mu.Lock()
	b.PublishCalls++
	b.Published = append(b.Published, env)
	subs := append([]Subscription(nil), b.Subscriptions...)
	b.mu.Unlock()

	if b.PublishFn != nil {
		return b.PublishFn(ctx, env)
	}

	for _, s := range subs {
		if !matchesFilter(s.Filter, env.Event.EventType()) {
			continue
		}
		if err := s.Handler.Handle(es.WithEnvelope(ctx, &env), env.Event); err != nil {
			select {
			case b.errCh <- err:
			default:
			}
		}
	}
	return nil
}

func matchesFilter(filter []string, eventType string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, f := range filter {
		if f == eventType {
			return true
		}
	}
	return false
}

// Errors implements es.EventBus.
func (b *EventBusSpy) Errors() <-chan error { return b.errCh }

// Close implements es.EventBus.
func (b *EventBusSpy) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.CloseCalls++
	if !b.closed {
		b.closed = true
		close(b.errCh)
	}
	return nil
}

// EventHandlerSpy is a configurable es.EventHandler double that records
// every event it receives.
type EventHandlerSpy struct {
	mu sync.Mutex

	HandleFn func(ctx context.Context, event es.Event) error

	HandleCalls    int
	ReceivedEvents []es.Event

	handleErr error
}

// NewEventHandlerSpy builds an EventHandlerSpy that succeeds by default.
func NewEventHandlerSpy() *EventHandlerSpy {
	return &EventHandlerSpy{}
}

// FailOnHandle makes every Handle call return err.
func (h *EventHandlerSpy) FailOnHandle(err error) *EventHandlerSpy {
	h.handleErr = err
	return h
}

// Handle implements es.EventHandler.
func (h *EventHandlerSpy) Handle(ctx context.Context, event es.Event) error {
	h.mu.Lock()
	h.HandleCalls++
	h.ReceivedEvents = append(h.ReceivedEvents, event)
	h.mu.Unlock()

	if h.HandleFn != nil {
		return h.HandleFn(ctx, event)
	}
	return h.handleErr
}

// LastEvent returns the most recently received event, or nil if none.
func (h *EventHandlerSpy) LastEvent() es.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.ReceivedEvents) == 0 {
		return nil
	}
	return h.ReceivedEvents[len(h.ReceivedEvents)-1]
}
