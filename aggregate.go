package eventsourcing

import "time"

// now is a seam for tests that need deterministic timestamps.
var now = time.Now

// Prefix is a short, validated stream-prefix token for one aggregate type
// (e.g. "customer", "order"). See ValidatePrefix for the grammar.
type Prefix string

// Creator decides which events a command produces when no stream exists
// yet for its aggregate id. Create must not require any state and must be
// free of I/O. Returning an empty slice is rejected by the
// pipeline as a DomainRejection — a fresh aggregate must come into being
// via at least one event.
type Creator[T any, C Command] func(cmd C) ([]Event, error)

// Decider decides which events a command produces against an aggregate
// that already has a stream. Returning an empty slice, nil or not, means
// the command was accepted as a no-op (idempotent replay, for instance).
type Decider[T any, C Command] func(state T, cmd C) ([]Event, error)

// Initializer builds the first aggregate state from the first event in a
// stream. It must accept any event that could legally be first.
type Initializer[T any] func(first Envelope) T

// Evolver folds one later event into the current aggregate state. It must
// be total: an event type Evolve does not recognize leaves state unchanged,
// so older readers tolerate new event variants (forward-compat).
type Evolver[T any] func(state T, env Envelope) T

// Aggregate is the 5-tuple every domain provides: a stream-prefix token
// plus the four pure functions that turn commands into events and events
// into state. Create and Decide are pure and free of I/O; all side effects
// live in repositories and handlers.
type Aggregate[T any, C Command] struct {
	Prefix Prefix
	Create Creator[T, C]
	Decide Decider[T, C]
	Init   Initializer[T]
	Evolve Evolver[T]
}

// StreamID returns the stream identifier for one instance of this
// aggregate type.
func (a Aggregate[T, C]) StreamID(aggregateID string) string {
	return StreamID(a.Prefix, aggregateID)
}
