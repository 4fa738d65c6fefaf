package eventsourcing

import "context"

// EventStore is the low-level contract for an append-only stream store.
// It knows nothing about aggregates, only about streams of
// envelopes identified by stream id. Repository wraps one of these to
// provide the per-aggregate GetByID/Save contract the pipeline uses.
//
// Implementations must guarantee:
//   - Per stream, versions are contiguous, strictly increasing, starting at 1.
//   - Events are never reordered, mutated, or deleted.
//   - Iteration order from Load* is deterministic, oldest to newest.
type EventStore interface {
	// Save appends events to the stream, all of which must share the same
	// StreamID. revision is the concurrency precondition; see StreamState.
	//
	// A unique-constraint or version-mismatch failure from the driver must
	// be translated to ErrConcurrency.
	Save(ctx context.Context, events []Envelope, revision StreamState) (AppendResult, error)

	// LoadStream loads every event for id, oldest first.
	LoadStream(ctx context.Context, id string) (*Iterator[Envelope], error)

	// LoadStreamFrom loads events for id starting strictly after version.
	LoadStreamFrom(ctx context.Context, id string, version uint64) (*Iterator[Envelope], error)

	// Close releases resources held by the store. Idempotent.
	Close() error
}

// AppendResult describes the outcome of an append operation.
type AppendResult struct {
	Successful          bool
	NextExpectedVersion uint64
}
