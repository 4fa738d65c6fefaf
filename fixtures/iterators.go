package fixtures

import (
	"context"

	es "github.com/jade/eventsourcing"
)

// EmptyIterator returns an iterator that yields no items.
func EmptyIterator() *es.Iterator[es.Envelope] {
	return es.NewSliceIterator[es.Envelope](nil)
}

// FailingIterator returns an iterator whose first Next call fails with err.
func FailingIterator(err error) *es.Iterator[es.Envelope] {
	return es.NewIteratorFunc(func(ctx context.Context) (es.Envelope, bool, error) {
		var zero es.Envelope
		return zero, false, err
	})
}

// SliceIterator builds an iterator replaying envelopes in order, matching
// what Repository.GetByID sees from a real EventStore.
func SliceIterator(envelopes []es.Envelope) *es.Iterator[es.Envelope] {
	return es.NewSliceIterator(envelopes)
}

// EnvelopeIteratorFromEvents builds an iterator over envelopes derived from
// events via EnvelopesFromEvents.
func EnvelopeIteratorFromEvents(events ...es.Event) *es.Iterator[es.Envelope] {
	return SliceIterator(EnvelopesFromEvents(events...))
}

// FailAfterNIterator yields the first n envelopes successfully, then fails
// with err — useful for exercising a store adapter's retry/backoff paths
// mid-stream.
func FailAfterNIterator(envelopes []es.Envelope, n int, err error) *es.Iterator[es.Envelope] {
	idx := 0
	return es.NewIteratorFunc(func(ctx context.Context) (es.Envelope, bool, error) {
		var zero es.Envelope
		if idx >= n {
			return zero, false, err
		}
		if idx >= len(envelopes) {
			return zero, false, nil
		}
		env := envelopes[idx]
		idx++
		return env, true, nil
	})
}
