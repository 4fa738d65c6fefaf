package eventsourcing

import "context"

// Iterator is a lazy, single-pass iterator over T. Implementations of
// EventStore and Repository return one to stream events without loading an
// entire history into memory up front.
type Iterator[T any] struct {
	nextFunc func(ctx context.Context) (T, bool, error)
	current  T
	done     bool
	err      error
}

// Next advances the iterator. It returns false once the iterator is
// exhausted or an error occurred; callers should check Err() afterwards.
func (it *Iterator[T]) Next(ctx context.Context) bool {
	if it.err != nil || it.done {
		return false
	}

	val, ok, err := it.nextFunc(ctx)
	if err != nil {
		it.err = err
		return false
	}
	if !ok {
		it.done = true
		return false
	}
	it.current = val
	return true
}

// Value returns the element produced by the most recent successful Next call.
func (it *Iterator[T]) Value() T {
	return it.current
}

// Err returns the error that stopped iteration, if any.
func (it *Iterator[T]) Err() error {
	return it.err
}

// All drains the iterator into a slice.
func (it *Iterator[T]) All(ctx context.Context) ([]T, error) {
	var results []T
	for it.Next(ctx) {
		results = append(results, it.Value())
	}
	return results, it.Err()
}

// NewIteratorFunc builds an Iterator from a function that produces the next
// element. Return ok=false (zero error) when the sequence is exhausted.
func NewIteratorFunc[T any](nextFunc func(ctx context.Context) (T, bool, error)) *Iterator[T] {
	return &Iterator[T]{nextFunc: nextFunc}
}

// NewSliceIterator builds an Iterator that replays a pre-materialized slice,
// useful for in-memory adapters and test fixtures.
func NewSliceIterator[T any](items []T) *Iterator[T] {
	index := 0
	return NewIteratorFunc(func(ctx context.Context) (T, bool, error) {
		var zero T
		if ctx.Err() != nil {
			return zero, false, ctx.Err()
		}
		if index >= len(items) {
			return zero, false, nil
		}
		item := items[index]
		index++
		return item, true, nil
	})
}
