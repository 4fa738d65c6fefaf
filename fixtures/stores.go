package fixtures

import (
	"context"
	"fmt"
	"sync"

	es "github.com/jade/eventsourcing"
)

// StoreSpy is a configurable es.EventStore double that tracks calls and
// lets a test inject failures, mirroring eventstore/memory's semantics
// closely enough to stand in for it in Repository tests that need to
// observe calls the real adapter hides.
type StoreSpy struct {
	mu sync.Mutex

	SaveFn           func(ctx context.Context, events []es.Envelope, revision es.StreamState) (es.AppendResult, error)
	LoadStreamFn     func(ctx context.Context, id string) (*es.Iterator[es.Envelope], error)
	LoadStreamFromFn func(ctx context.Context, id string, version uint64) (*es.Iterator[es.Envelope], error)

	SaveCalls       int
	LoadStreamCalls int
	CloseCalls      int

	LastSaveEvents   []es.Envelope
	LastSaveRevision es.StreamState

	events map[string][]es.Envelope

	loadErr error
	saveErr error
}

// NewStoreSpy builds an empty StoreSpy.
func NewStoreSpy() *StoreSpy {
	return &StoreSpy{events: make(map[string][]es.Envelope)}
}

// WithEvents pre-populates streamID with envelopes, as if they had already
// been appended.
func (s *StoreSpy) WithEvents(streamID string, envelopes ...es.Envelope) *StoreSpy {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[streamID] = envelopes
	return s
}

// FailOnLoad makes every load operation return err.
func (s *StoreSpy) FailOnLoad(err error) *StoreSpy {
	s.loadErr = err
	return s
}

// FailOnSave makes every Save call return err.
func (s *StoreSpy) FailOnSave(err error) *StoreSpy {
	s.saveErr = err
	return s
}

// LoadStream implements es.EventStore.
func (s *StoreSpy) LoadStream(ctx context.Context, id string) (*es.Iterator[es.Envelope], error) {
	return s.LoadStreamFrom(ctx, id, 0)
}

// LoadStreamFrom implements es.EventStore.
func (s *StoreSpy) LoadStreamFrom(ctx context.Context, id string, version uint64) (*es.Iterator[es.Envelope], error) {
	s.mu.Lock()
	s.LoadStreamCalls++
	s.mu.Unlock()

	if s.LoadStreamFromFn != nil {
		return s.LoadStreamFromFn(ctx, id, version)
	}
	if s.loadErr != nil {
		return nil, s.loadErr
	}

	s.mu.Lock()
	all, exists := s.events[id]
	s.mu.Unlock()
	if !exists {
		return nil, fmt.Errorf("load stream %q: %w", id, es.ErrNotFound)
	}

	var filtered []es.Envelope
	for _, env := range all {
		if env.Version > version {
			filtered = append(filtered, env)
		}
	}
	return es.NewSliceIterator(filtered), nil
}

// Save implements es.EventStore.
func (s *StoreSpy) Save(ctx context.Context, events []es.Envelope, revision es.StreamState) (es.AppendResult, error) {
	s.mu.Lock()
	s.SaveCalls++
	s.LastSaveEvents = events
	s.LastSaveRevision = revision
	s.mu.Unlock()

	if s.SaveFn != nil {
		return s.SaveFn(ctx, events, revision)
	}
	if s.saveErr != nil {
		return es.AppendResult{}, s.saveErr
	}
	if len(events) == 0 {
		return es.AppendResult{Successful: true}, nil
	}

	streamID := events[0].StreamID
	s.mu.Lock()
	s.events[streamID] = append(s.events[streamID], events...)
	next := uint64(len(s.events[streamID]))
	s.mu.Unlock()

	return es.AppendResult{Successful: true, NextExpectedVersion: next}, nil
}

// Close implements es.EventStore.
func (s *StoreSpy) Close() error {
	s.mu.Lock()
	s.CloseCalls++
	s.mu.Unlock()
	return nil
}

// Pre-built store scenarios.

// EmptyStore returns a StoreSpy with no events.
func EmptyStore() *StoreSpy { return NewStoreSpy() }

// StoreWithEvents returns a StoreSpy pre-populated with n test events on streamID.
func StoreWithEvents(streamID string, n int) *StoreSpy {
	events := NewTestEvent().WithID(streamID).BuildN(n)
	return NewStoreSpy().WithEvents(streamID, EnvelopesFromEvents(events...)...)
}

// FailingStore returns a StoreSpy that fails every operation with err.
func FailingStore(err error) *StoreSpy {
	return NewStoreSpy().FailOnLoad(err).FailOnSave(err)
}

// ConcurrencyConflictStore returns a StoreSpy whose Save always reports
// es.ErrConcurrency, for exercising the pipeline's retry/backoff path.
func ConcurrencyConflictStore(streamID string) *StoreSpy {
	store := NewStoreSpy()
	store.SaveFn = func(ctx context.Context, events []es.Envelope, revision es.StreamState) (es.AppendResult, error) {
		return es.AppendResult{}, fmt.Errorf("stream %q: %w", streamID, es.ErrConcurrency)
	}
	return store
}
