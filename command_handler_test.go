package eventsourcing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

// ---------------------- Test domain: a tiny counter aggregate ----------------------

type counterState struct {
	id    string
	count int
}

type counterCreated struct {
	ID string
}

func (e counterCreated) AggregateID() string { return e.ID }
func (e counterCreated) EventType() string   { return "urn:schema:jade:event:counter:created:1" }

type counterIncremented struct {
	ID string
	By int
}

func (e counterIncremented) AggregateID() string { return e.ID }
func (e counterIncremented) EventType() string   { return "urn:schema:jade:event:counter:incremented:1" }

type createCounter struct {
	ID string
}

func (c createCounter) AggregateID() string { return c.ID }

type incrementCounter struct {
	ID string
	By int
}

func (c incrementCounter) AggregateID() string { return c.ID }

type rejectEverything struct {
	ID string
}

func (c rejectEverything) AggregateID() string { return c.ID }

func counterInit(first Envelope) counterState {
	return counterState{id: first.StreamID}
}

func counterEvolve(state counterState, env Envelope) counterState {
	if inc, ok := env.Event.(counterIncremented); ok {
		state.count += inc.By
	}
	return state
}

func newCounterAggregate(create Creator[counterState, createCounter]) Aggregate[counterState, createCounter] {
	return Aggregate[counterState, createCounter]{
		Prefix: "counter",
		Create: create,
		Decide: func(state counterState, cmd createCounter) ([]Event, error) {
			return nil, nil
		},
		Init:   counterInit,
		Evolve: counterEvolve,
	}
}

// ---------------------- Tests ----------------------

func TestNewAggregateHandler_CreateSuccess(t *testing.T) {
	store := newMemStore()
	repo := NewRepository[counterState](store, "counter", counterInit, counterEvolve)
	agg := Aggregate[counterState, createCounter]{
		Prefix: "counter",
		Create: func(cmd createCounter) ([]Event, error) {
			return []Event{counterCreated{ID: cmd.ID}}, nil
		},
		Decide: func(state counterState, cmd createCounter) ([]Event, error) { return nil, nil },
		Init:   counterInit,
		Evolve: counterEvolve,
	}

	handler := NewAggregateHandler[counterState, createCounter](repo, agg)

	res, err := handler(context.Background(), createCounter{ID: "c1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Successful {
		t.Fatal("expected successful create")
	}
	if res.NextExpectedVersion != 1 {
		t.Fatalf("expected version 1, got %d", res.NextExpectedVersion)
	}
}

func TestNewAggregateHandler_CreateNoEventsIsRejection(t *testing.T) {
	store := newMemStore()
	repo := NewRepository[counterState](store, "counter", counterInit, counterEvolve)
	agg := Aggregate[counterState, createCounter]{
		Prefix: "counter",
		Create: func(cmd createCounter) ([]Event, error) { return nil, nil },
		Decide: func(state counterState, cmd createCounter) ([]Event, error) { return nil, nil },
		Init:   counterInit,
		Evolve: counterEvolve,
	}

	handler := NewAggregateHandler[counterState, createCounter](repo, agg)

	_, err := handler(context.Background(), createCounter{ID: "c2"})
	var rejection *DomainRejection
	if !errors.As(err, &rejection) {
		t.Fatalf("expected *DomainRejection, got %v", err)
	}
}

func TestNewAggregateHandler_CreateRejectedByDomain(t *testing.T) {
	store := newMemStore()
	repo := NewRepository[counterState](store, "counter", counterInit, counterEvolve)
	agg := Aggregate[counterState, createCounter]{
		Prefix: "counter",
		Create: func(cmd createCounter) ([]Event, error) {
			return nil, fmt.Errorf("id already taken")
		},
		Decide: func(state counterState, cmd createCounter) ([]Event, error) { return nil, nil },
		Init:   counterInit,
		Evolve: counterEvolve,
	}

	handler := NewAggregateHandler[counterState, createCounter](repo, agg)

	_, err := handler(context.Background(), createCounter{ID: "c3"})
	var rejection *DomainRejection
	if !errors.As(err, &rejection) {
		t.Fatalf("expected *DomainRejection, got %v", err)
	}
}

func TestNewAggregateHandler_EmptyAggregateID(t *testing.T) {
	store := newMemStore()
	repo := NewRepository[counterState](store, "counter", counterInit, counterEvolve)
	agg := newCounterAggregate(func(cmd createCounter) ([]Event, error) {
		return []Event{counterCreated{ID: cmd.ID}}, nil
	})

	handler := NewAggregateHandler[counterState, createCounter](repo, agg)

	_, err := handler(context.Background(), createCounter{ID: ""})
	if !errors.Is(err, ErrBadCommand) {
		t.Fatalf("expected ErrBadCommand, got %v", err)
	}
}

func TestNewAggregateHandler_DecideExistingAggregate(t *testing.T) {
	store := newMemStore()
	repo := NewRepository[counterState](store, "counter", counterInit, counterEvolve)

	createAgg := Aggregate[counterState, createCounter]{
		Prefix: "counter",
		Create: func(cmd createCounter) ([]Event, error) {
			return []Event{counterCreated{ID: cmd.ID}}, nil
		},
		Decide: func(state counterState, cmd createCounter) ([]Event, error) { return nil, nil },
		Init:   counterInit,
		Evolve: counterEvolve,
	}
	createHandler := NewAggregateHandler[counterState, createCounter](repo, createAgg)
	if _, err := createHandler(context.Background(), createCounter{ID: "c4"}); err != nil {
		t.Fatalf("setup create failed: %v", err)
	}

	incAgg := Aggregate[counterState, incrementCounter]{
		Prefix: "counter",
		Create: func(cmd incrementCounter) ([]Event, error) {
			t.Fatal("Create should not be called for an existing aggregate")
			return nil, nil
		},
		Decide: func(state counterState, cmd incrementCounter) ([]Event, error) {
			return []Event{counterIncremented{ID: cmd.ID, By: cmd.By}}, nil
		},
		Init:   counterInit,
		Evolve: counterEvolve,
	}
	incHandler := NewAggregateHandler[counterState, incrementCounter](repo, incAgg)

	res, err := incHandler(context.Background(), incrementCounter{ID: "c4", By: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.NextExpectedVersion != 2 {
		t.Fatalf("expected version 2, got %d", res.NextExpectedVersion)
	}
}

func TestNewAggregateHandler_DecideNoEventsIsSuccessfulNoop(t *testing.T) {
	store := newMemStore()
	repo := NewRepository[counterState](store, "counter", counterInit, counterEvolve)

	createAgg := Aggregate[counterState, createCounter]{
		Prefix: "counter",
		Create: func(cmd createCounter) ([]Event, error) {
			return []Event{counterCreated{ID: cmd.ID}}, nil
		},
		Decide: func(state counterState, cmd createCounter) ([]Event, error) { return nil, nil },
		Init:   counterInit,
		Evolve: counterEvolve,
	}
	createHandler := NewAggregateHandler[counterState, createCounter](repo, createAgg)
	if _, err := createHandler(context.Background(), createCounter{ID: "c5"}); err != nil {
		t.Fatalf("setup create failed: %v", err)
	}

	incAgg := Aggregate[counterState, incrementCounter]{
		Prefix: "counter",
		Create: func(cmd incrementCounter) ([]Event, error) { return nil, nil },
		Decide: func(state counterState, cmd incrementCounter) ([]Event, error) {
			return []Event{}, nil
		},
		Init:   counterInit,
		Evolve: counterEvolve,
	}
	incHandler := NewAggregateHandler[counterState, incrementCounter](repo, incAgg)

	res, err := incHandler(context.Background(), incrementCounter{ID: "c5", By: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Successful {
		t.Fatal("expected successful no-op")
	}
	if res.NextExpectedVersion != 1 {
		t.Fatalf("expected version to remain 1, got %d", res.NextExpectedVersion)
	}
}

func TestNewAggregateHandler_DecideRejectedByDomain(t *testing.T) {
	store := newMemStore()
	repo := NewRepository[counterState](store, "counter", counterInit, counterEvolve)

	createAgg := Aggregate[counterState, createCounter]{
		Prefix: "counter",
		Create: func(cmd createCounter) ([]Event, error) {
			return []Event{counterCreated{ID: cmd.ID}}, nil
		},
		Decide: func(state counterState, cmd createCounter) ([]Event, error) { return nil, nil },
		Init:   counterInit,
		Evolve: counterEvolve,
	}
	createHandler := NewAggregateHandler[counterState, createCounter](repo, createAgg)
	if _, err := createHandler(context.Background(), createCounter{ID: "c6"}); err != nil {
		t.Fatalf("setup create failed: %v", err)
	}

	incAgg := Aggregate[counterState, incrementCounter]{
		Prefix: "counter",
		Create: func(cmd incrementCounter) ([]Event, error) { return nil, nil },
		Decide: func(state counterState, cmd incrementCounter) ([]Event, error) {
			return nil, fmt.Errorf("cannot increment while frozen")
		},
		Init:   counterInit,
		Evolve: counterEvolve,
	}
	incHandler := NewAggregateHandler[counterState, incrementCounter](repo, incAgg)

	_, err := incHandler(context.Background(), incrementCounter{ID: "c6", By: 1})
	var rejection *DomainRejection
	if !errors.As(err, &rejection) {
		t.Fatalf("expected *DomainRejection, got %v", err)
	}
}

func TestNewAggregateHandler_RetriesOnConcurrencyConflict(t *testing.T) {
	store := newMemStore()
	repo := NewRepository[counterState](store, "counter", counterInit, counterEvolve)

	agg := newCounterAggregate(func(cmd createCounter) ([]Event, error) {
		return []Event{counterCreated{ID: cmd.ID}}, nil
	})
	createHandler := NewAggregateHandler[counterState, createCounter](repo, agg)
	if _, err := createHandler(context.Background(), createCounter{ID: "c7"}); err != nil {
		t.Fatalf("setup create failed: %v", err)
	}

	var attempts int
	incAgg := Aggregate[counterState, incrementCounter]{
		Prefix: "counter",
		Create: func(cmd incrementCounter) ([]Event, error) { return nil, nil },
		Decide: func(state counterState, cmd incrementCounter) ([]Event, error) {
			attempts++
			if attempts == 1 {
				// Simulate a racing writer landing between load and save by
				// appending directly to the store underneath the handler.
				streamID := StreamID("counter", cmd.ID)
				_, _ = store.Save(context.Background(), []Envelope{{
					EventID:    uuid.New(),
					StreamID:   streamID,
					Metadata:   NewMetadata("", "", ""),
					Event:      counterIncremented{ID: cmd.ID, By: 1},
					Version:    2,
					OccurredAt: time.Now(),
				}}, Revision(1))
			}
			return []Event{counterIncremented{ID: cmd.ID, By: cmd.By}}, nil
		},
		Init:   counterInit,
		Evolve: counterEvolve,
	}
	incHandler := NewAggregateHandler[counterState, incrementCounter](
		repo, incAgg,
		WithRetryStrategy(backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), 3)),
	)

	res, err := incHandler(context.Background(), incrementCounter{ID: "c7", By: 10})
	if err != nil {
		t.Fatalf("unexpected error after retry: %v", err)
	}
	if !res.Successful {
		t.Fatal("expected eventual success")
	}
	if attempts < 2 {
		t.Fatalf("expected at least 2 decide attempts, got %d", attempts)
	}
}

func TestNewAggregateHandler_NonConcurrencyStoreErrorIsPermanent(t *testing.T) {
	store := &failingSaveStore{err: errors.New("disk full")}
	repo := NewRepository[counterState](store, "counter", counterInit, counterEvolve)
	agg := newCounterAggregate(func(cmd createCounter) ([]Event, error) {
		return []Event{counterCreated{ID: cmd.ID}}, nil
	})

	handler := NewAggregateHandler[counterState, createCounter](
		repo, agg,
		WithRetryStrategy(&backoff.StopBackOff{}),
	)

	_, err := handler(context.Background(), createCounter{ID: "c8"})
	if err == nil {
		t.Fatal("expected error")
	}
	var storeFailure *StoreFailure
	if !errors.As(err, &storeFailure) {
		t.Fatalf("expected *StoreFailure, got %T: %v", err, err)
	}
}

func TestNewAggregateHandler_WithMetadataFunc(t *testing.T) {
	store := newMemStore()
	repo := NewRepository[counterState](store, "counter", counterInit, counterEvolve)
	agg := newCounterAggregate(func(cmd createCounter) ([]Event, error) {
		return []Event{counterCreated{ID: cmd.ID}}, nil
	})

	handler := NewAggregateHandler[counterState, createCounter](
		repo, agg,
		WithMetadataFunc(func(ctx context.Context, cmd Command) Metadata {
			return NewMetadata("corr-fixed", "cause-fixed", "user-fixed")
		}),
	)

	if _, err := handler(context.Background(), createCounter{ID: "c9"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	iter, err := store.LoadStream(context.Background(), StreamID("counter", "c9"))
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	envs, err := iter.All(context.Background())
	if err != nil {
		t.Fatalf("unexpected iterator error: %v", err)
	}
	if len(envs) != 1 {
		t.Fatalf("expected 1 envelope, got %d", len(envs))
	}
	if envs[0].Metadata.CorrelationID != "corr-fixed" {
		t.Fatalf("expected correlation id corr-fixed, got %q", envs[0].Metadata.CorrelationID)
	}
}

// ---------------------- Minimal in-memory store helper ----------------------

func newMemStore() *testCommandStore {
	return &testCommandStore{streams: map[string][]Envelope{}}
}

type testCommandStore struct {
	streams map[string][]Envelope
}

func (s *testCommandStore) Save(ctx context.Context, events []Envelope, revision StreamState) (AppendResult, error) {
	if len(events) == 0 {
		return AppendResult{Successful: true}, nil
	}
	streamID := events[0].StreamID
	existing := s.streams[streamID]

	switch rv := revision.(type) {
	case NoStream:
		if len(existing) != 0 {
			return AppendResult{}, fmt.Errorf("stream %q: %w", streamID, ErrConcurrency)
		}
	case Revision:
		if uint64(len(existing)) != uint64(rv) {
			return AppendResult{}, fmt.Errorf("stream %q: %w", streamID, ErrConcurrency)
		}
	}

	s.streams[streamID] = append(s.streams[streamID], events...)
	return AppendResult{Successful: true, NextExpectedVersion: events[len(events)-1].Version}, nil
}

func (s *testCommandStore) LoadStream(ctx context.Context, streamID string) (*Iterator[Envelope], error) {
	return s.LoadStreamFrom(ctx, streamID, 0)
}

func (s *testCommandStore) LoadStreamFrom(ctx context.Context, streamID string, version uint64) (*Iterator[Envelope], error) {
	envs, ok := s.streams[streamID]
	if !ok {
		return nil, fmt.Errorf("stream %q: %w", streamID, ErrNotFound)
	}
	var filtered []Envelope
	for _, e := range envs {
		if e.Version > version {
			filtered = append(filtered, e)
		}
	}
	return NewSliceIterator(filtered), nil
}

func (s *testCommandStore) Close() error { return nil }

type failingSaveStore struct {
	err error
}

func (s *failingSaveStore) Save(ctx context.Context, events []Envelope, revision StreamState) (AppendResult, error) {
	return AppendResult{}, s.err
}

func (s *failingSaveStore) LoadStream(ctx context.Context, streamID string) (*Iterator[Envelope], error) {
	return nil, fmt.Errorf("stream %q: %w", streamID, ErrNotFound)
}

func (s *failingSaveStore) LoadStreamFrom(ctx context.Context, streamID string, version uint64) (*Iterator[Envelope], error) {
	return s.LoadStream(ctx, streamID)
}

func (s *failingSaveStore) Close() error { return nil }
