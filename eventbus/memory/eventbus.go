// Package memory is an in-process eventsourcing.EventBus: fire-and-forget
// fan-out to subscribed projections, with no cross-process delivery.
package memory

import (
	"context"
	"fmt"
	"sync"

	eventsourcing "github.com/jade/eventsourcing"
)

type subscriber struct {
	name    string
	filter  map[string]struct{} // empty means "everything"
	handler eventsourcing.EventHandler
	queue   chan eventsourcing.Envelope
	cancel  context.CancelFunc
}

func (s *subscriber) matches(env eventsourcing.Envelope) bool {
	if len(s.filter) == 0 {
		return true
	}
	_, ok := s.filter[env.Event.EventType()]
	return ok
}

// EventBus is an in-memory eventsourcing.EventBus.
type EventBus struct {
	mu         sync.RWMutex
	subs       map[string]*subscriber
	closed     bool
	errs       chan error
	wg         sync.WaitGroup
	bufferSize int
}

// NewEventBus builds an EventBus whose per-subscriber queues hold
// bufferSize envelopes before Publish starts dropping for that subscriber.
func NewEventBus(bufferSize int) *EventBus {
	return &EventBus{
		subs:       make(map[string]*subscriber),
		errs:       make(chan error, 64),
		bufferSize: bufferSize,
	}
}

// Subscribe implements eventsourcing.EventBus.
func (b *EventBus) Subscribe(ctx context.Context, name string, handler eventsourcing.EventHandler, filter ...string) error {
	if handler == nil {
		return fmt.Errorf("subscribe %q: handler is nil", name)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("subscribe %q: event bus is closed", name)
	}
	if _, exists := b.subs[name]; exists {
		return fmt.Errorf("subscribe %q: %w", name, eventsourcing.ErrDuplicateHandler)
	}

	filterSet := make(map[string]struct{}, len(filter))
	for _, f := range filter {
		filterSet[f] = struct{}{}
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	s := &subscriber{
		name:    name,
		filter:  filterSet,
		handler: handler,
		queue:   make(chan eventsourcing.Envelope, b.bufferSize),
		cancel:  cancel,
	}
	b.subs[name] = s

	b.wg.Add(1)
	go b.runSubscriber(workerCtx, s)

	go func() {
		<-ctx.Done()
		b.removeSubscriber(name)
	}()

	return nil
}

// Publish implements eventsourcing.EventBus.
func (b *EventBus) Publish(ctx context.Context, env eventsourcing.Envelope) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fmt.Errorf("publish to stream %q: event bus is closed", env.StreamID)
	}

	for _, s := range b.subs {
		if !s.matches(env) {
			continue
		}
		select {
		case s.queue <- env:
		default:
			select {
			case b.errs <- fmt.Errorf("subscriber %q: queue full, dropped event %s", s.name, env.EventID):
			default:
			}
		}
	}
	return nil
}

// Errors implements eventsourcing.EventBus.
func (b *EventBus) Errors() <-chan error {
	return b.errs
}

// Close implements eventsourcing.EventBus.
func (b *EventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for name, s := range b.subs {
		s.cancel()
		close(s.queue)
		delete(b.subs, name)
	}
	b.mu.Unlock()

	b.wg.Wait()
	close(b.errs)
	return nil
}

func (b *EventBus) runSubscriber(ctx context.Context, s *subscriber) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-s.queue:
			if !ok {
				return
			}
			handleCtx := eventsourcing.WithEnvelope(ctx, &env)
			if err := s.handler.Handle(handleCtx, env.Event); err != nil {
				select {
				case b.errs <- fmt.Errorf("subscriber %q: %w", s.name, err):
				default:
				}
			}
		}
	}
}

func (b *EventBus) removeSubscriber(name string) {
	b.mu.Lock()
	s, ok := b.subs[name]
	if !ok {
		b.mu.Unlock()
		return
	}
	delete(b.subs, name)
	b.mu.Unlock()

	s.cancel()
	close(s.queue)
}
