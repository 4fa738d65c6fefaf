package eventsourcing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Repository is the per-aggregate contract the command pipeline talks
// to. It wraps a raw EventStore, folding its stream into
// aggregate state with the aggregate's Init/Evolve pair and translating
// store errors into the repository error taxonomy.
type Repository[T any] struct {
	store  EventStore
	prefix Prefix
	init   Initializer[T]
	evolve Evolver[T]
}

// NewRepository builds a Repository backed by store for one aggregate type.
func NewRepository[T any](store EventStore, prefix Prefix, init Initializer[T], evolve Evolver[T]) *Repository[T] {
	return &Repository[T]{store: store, prefix: prefix, init: init, evolve: evolve}
}

// GetByID rehydrates the aggregate at aggregateID. It returns ErrNotFound
// (wrapped) when no stream exists yet; any other load failure is returned
// as a *StoreFailure. A panic from Init or Evolve is recovered and
// reported as *CorruptStream rather than propagating.
func (r *Repository[T]) GetByID(ctx context.Context, aggregateID string) (state T, version uint64, err error) {
	streamID := StreamID(r.prefix, aggregateID)

	defer func() {
		if rec := recover(); rec != nil {
			err = &CorruptStream{StreamID: streamID, Cause: rec}
		}
	}()

	iter, loadErr := r.store.LoadStream(ctx, streamID)
	if loadErr != nil {
		if errors.Is(loadErr, ErrNotFound) {
			var zero T
			return zero, 0, fmt.Errorf("repository: stream %q: %w", streamID, ErrNotFound)
		}
		var zero T
		return zero, 0, &StoreFailure{Err: fmt.Errorf("load stream %q: %w", streamID, loadErr)}
	}

	first := true
	for iter.Next(ctx) {
		env := iter.Value()
		if first {
			state = r.init(env)
			first = false
		} else {
			state = r.evolve(state, env)
		}
		version = env.Version
	}
	if iterErr := iter.Err(); iterErr != nil {
		var zero T
		return zero, 0, &StoreFailure{Err: fmt.Errorf("iterate stream %q: %w", streamID, iterErr)}
	}
	if first {
		// Stream existed but produced no events: treat the same as absent.
		var zero T
		return zero, 0, fmt.Errorf("repository: stream %q: %w", streamID, ErrNotFound)
	}

	return state, version, nil
}

// Save appends events to aggregateID's stream, expecting its current
// version to equal expectedVersion (0 means "no stream yet"). On success
// the store advances to expectedVersion+len(events).
func (r *Repository[T]) Save(ctx context.Context, aggregateID string, events []Event, metadata Metadata, expectedVersion uint64) (AppendResult, error) {
	streamID := StreamID(r.prefix, aggregateID)

	envelopes := make([]Envelope, len(events))
	ts := now()
	for i, ev := range events {
		envelopes[i] = Envelope{
			EventID:    uuid.New(),
			StreamID:   streamID,
			Metadata:   metadata.WithServerTimestamp(ts),
			Event:      ev,
			Version:    expectedVersion + uint64(i) + 1,
			OccurredAt: ts,
		}
	}

	var revision StreamState
	if expectedVersion == 0 {
		revision = NoStream{}
	} else {
		revision = Revision(expectedVersion)
	}

	result, err := r.store.Save(ctx, envelopes, revision)
	if err != nil {
		if errors.Is(err, ErrConcurrency) {
			return AppendResult{}, fmt.Errorf("repository: stream %q: %w", streamID, ErrConcurrency)
		}
		return AppendResult{}, &StoreFailure{Err: fmt.Errorf("save to stream %q: %w", streamID, err)}
	}
	return result, nil
}
