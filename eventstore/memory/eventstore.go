// Package memory is an in-process EventStore backed by a map of slices.
// It is meant for tests and local development, not production durability.
package memory

import (
	"context"
	"fmt"
	"sync"

	eventsourcing "github.com/jade/eventsourcing"
)

// EventStore is an in-memory eventsourcing.EventStore. Zero value is not
// usable; build one with NewEventStore.
type EventStore struct {
	mu     sync.RWMutex
	closed bool
	events map[string][]eventsourcing.Envelope
	bus    eventsourcing.EventBus
}

// Option configures an EventStore built by NewEventStore.
type Option func(*EventStore)

// WithEventBus makes Save publish each successfully appended event to bus,
// fire-and-forget, after the append lands. A publish failure never fails
// the Save that produced it; that's bus's contract to the projections
// subscribed to it, not this store's concern.
func WithEventBus(bus eventsourcing.EventBus) Option {
	return func(s *EventStore) { s.bus = bus }
}

// NewEventStore builds an empty EventStore.
func NewEventStore(opts ...Option) *EventStore {
	s := &EventStore{events: make(map[string][]eventsourcing.Envelope)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save implements eventsourcing.EventStore.
func (s *EventStore) Save(ctx context.Context, events []eventsourcing.Envelope, revision eventsourcing.StreamState) (eventsourcing.AppendResult, error) {
	if len(events) == 0 {
		return eventsourcing.AppendResult{Successful: true}, nil
	}

	streamID := events[0].StreamID
	for i, env := range events {
		if env.StreamID != streamID {
			return eventsourcing.AppendResult{}, fmt.Errorf("save to stream %q: event %d targets stream %q", streamID, i, env.StreamID)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return eventsourcing.AppendResult{}, fmt.Errorf("event store is closed")
	}

	current := uint64(len(s.events[streamID]))

	switch rev := revision.(type) {
	case eventsourcing.Any:
	case eventsourcing.NoStream:
		if current != 0 {
			return eventsourcing.AppendResult{}, fmt.Errorf("stream %q: %w", streamID, eventsourcing.ErrConcurrency)
		}
	case eventsourcing.StreamExists:
		if current == 0 {
			return eventsourcing.AppendResult{}, fmt.Errorf("stream %q: %w", streamID, eventsourcing.ErrConcurrency)
		}
	case eventsourcing.Revision:
		if current != uint64(rev) {
			return eventsourcing.AppendResult{}, fmt.Errorf("stream %q: expected revision %d, have %d: %w", streamID, uint64(rev), current, eventsourcing.ErrConcurrency)
		}
	default:
		return eventsourcing.AppendResult{}, fmt.Errorf("stream %q: unsupported revision type %T", streamID, revision)
	}

	s.events[streamID] = append(s.events[streamID], events...)
	current += uint64(len(events))

	if s.bus != nil {
		for _, env := range events {
			_ = s.bus.Publish(ctx, env)
		}
	}

	return eventsourcing.AppendResult{Successful: true, NextExpectedVersion: current}, nil
}

// LoadStream implements eventsourcing.EventStore.
func (s *EventStore) LoadStream(ctx context.Context, id string) (*eventsourcing.Iterator[eventsourcing.Envelope], error) {
	return s.LoadStreamFrom(ctx, id, 0)
}

// LoadStreamFrom implements eventsourcing.EventStore.
func (s *EventStore) LoadStreamFrom(ctx context.Context, id string, version uint64) (*eventsourcing.Iterator[eventsourcing.Envelope], error) {
	s.mu.RLock()
	events, exists := s.events[id]
	s.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("load stream %q: %w", id, eventsourcing.ErrNotFound)
	}

	index := int(version)
	return eventsourcing.NewIteratorFunc(func(ctx context.Context) (eventsourcing.Envelope, bool, error) {
		var zero eventsourcing.Envelope
		if ctx.Err() != nil {
			return zero, false, ctx.Err()
		}
		if index >= len(events) {
			return zero, false, nil
		}
		ev := events[index]
		index++
		return ev, true, nil
	}), nil
}

// Close implements eventsourcing.EventStore. Idempotent.
func (s *EventStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
