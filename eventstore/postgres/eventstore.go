// Package postgres is the durable eventsourcing.EventStore of component
// 4.D: one append-only "events" table per module, with a unique
// (stream_id, version) constraint standing in for the optimistic-concurrency
// gate the in-memory adapter enforces in application code. Grounded on
// dmitrymomot-foundation/integration/database/pg's pgxpool/goose conventions,
// generalized from that package's raw SQL examples to the schema-URN-typed
// payload this module persists.
package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver goose migrates through
	"github.com/pressly/goose/v3"

	eventsourcing "github.com/jade/eventsourcing"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const insertEventSQL = `
	INSERT INTO events (stream_id, version, event_id, event_urn, payload, metadata, occurred_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

const selectStreamSQL = `
	SELECT event_id, event_urn, payload, metadata, version, occurred_at
	FROM events
	WHERE stream_id = $1 AND version > $2
	ORDER BY version ASC`

// EventStore is a pgx-backed eventsourcing.EventStore. Event payloads are
// stored as jsonb, decoded back into their concrete Go type through registry
// on read, the same registry the CloudEvents ingress uses for commands.
type EventStore struct {
	pool     *pgxpool.Pool
	registry *eventsourcing.Registry
	bus      eventsourcing.EventBus
}

// Option configures an EventStore built by NewEventStore.
type Option func(*EventStore)

// WithEventBus makes Save publish each event committed by a transaction to
// bus, fire-and-forget, after the commit succeeds — so a subscriber never
// sees an event that a concurrent writer's rollback later erased.
func WithEventBus(bus eventsourcing.EventBus) Option {
	return func(s *EventStore) { s.bus = bus }
}

// NewEventStore wraps an already-connected pool. Run Migrate before first use.
func NewEventStore(pool *pgxpool.Pool, registry *eventsourcing.Registry, opts ...Option) *EventStore {
	s := &EventStore{pool: pool, registry: registry}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate applies the embedded goose migrations, creating the events table
// if it does not already exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	db, err := goose.OpenDBWithDriver("pgx", pool.Config().ConnString())
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Save implements eventsourcing.EventStore. It checks the concurrency
// precondition and inserts the batch inside a single transaction, so a
// concurrent writer either loses the race on the version check or on the
// table's unique constraint, translating either outcome to ErrConcurrency.
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

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eventsourcing.AppendResult{}, &eventsourcing.StoreFailure{Err: err}
	}
	defer tx.Rollback(ctx)

	var current uint64
	const currentVersionSQL = `SELECT COALESCE(MAX(version), 0) FROM events WHERE stream_id = $1`
	if err := tx.QueryRow(ctx, currentVersionSQL, streamID).Scan(&current); err != nil {
		return eventsourcing.AppendResult{}, &eventsourcing.StoreFailure{Err: err}
	}

	if err := checkPrecondition(streamID, current, revision); err != nil {
		return eventsourcing.AppendResult{}, err
	}

	batch := &pgx.Batch{}
	next := current
	for _, env := range events {
		next++
		payload, err := json.Marshal(env.Event)
		if err != nil {
			return eventsourcing.AppendResult{}, fmt.Errorf("marshal event %s: %w", env.Event.EventType(), err)
		}
		metadata, err := json.Marshal(env.Metadata)
		if err != nil {
			return eventsourcing.AppendResult{}, fmt.Errorf("marshal metadata for event %s: %w", env.Event.EventType(), err)
		}
		batch.Queue(insertEventSQL, streamID, next, env.EventID, env.Event.EventType(), payload, metadata, env.OccurredAt)
	}

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			if isUniqueViolation(err) {
				return eventsourcing.AppendResult{}, fmt.Errorf("stream %q: %w", streamID, eventsourcing.ErrConcurrency)
			}
			return eventsourcing.AppendResult{}, &eventsourcing.StoreFailure{Err: err}
		}
	}
	if err := br.Close(); err != nil {
		return eventsourcing.AppendResult{}, &eventsourcing.StoreFailure{Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return eventsourcing.AppendResult{}, fmt.Errorf("stream %q: %w", streamID, eventsourcing.ErrConcurrency)
		}
		return eventsourcing.AppendResult{}, &eventsourcing.StoreFailure{Err: err}
	}

	if s.bus != nil {
		for _, env := range events {
			_ = s.bus.Publish(ctx, env)
		}
	}

	return eventsourcing.AppendResult{Successful: true, NextExpectedVersion: next}, nil
}

func checkPrecondition(streamID string, current uint64, revision eventsourcing.StreamState) error {
	switch rev := revision.(type) {
	case eventsourcing.Any:
		return nil
	case eventsourcing.NoStream:
		if current != 0 {
			return fmt.Errorf("stream %q: %w", streamID, eventsourcing.ErrConcurrency)
		}
	case eventsourcing.StreamExists:
		if current == 0 {
			return fmt.Errorf("stream %q: %w", streamID, eventsourcing.ErrConcurrency)
		}
	case eventsourcing.Revision:
		if current != uint64(rev) {
			return fmt.Errorf("stream %q: expected revision %d, have %d: %w", streamID, uint64(rev), current, eventsourcing.ErrConcurrency)
		}
	default:
		return fmt.Errorf("stream %q: unsupported revision type %T", streamID, revision)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// LoadStream implements eventsourcing.EventStore.
func (s *EventStore) LoadStream(ctx context.Context, id string) (*eventsourcing.Iterator[eventsourcing.Envelope], error) {
	return s.LoadStreamFrom(ctx, id, 0)
}

// LoadStreamFrom implements eventsourcing.EventStore. Rows stream lazily off
// the wire; the produced nextFunc calls rows.Close once it reports
// exhaustion or an error, so an iterator abandoned before then keeps its
// rows, and their pooled connection, open.
func (s *EventStore) LoadStreamFrom(ctx context.Context, id string, version uint64) (*eventsourcing.Iterator[eventsourcing.Envelope], error) {
	var exists bool
	const existsSQL = `SELECT EXISTS(SELECT 1 FROM events WHERE stream_id = $1)`
	if err := s.pool.QueryRow(ctx, existsSQL, id).Scan(&exists); err != nil {
		return nil, &eventsourcing.StoreFailure{Err: err}
	}
	if !exists {
		return nil, fmt.Errorf("load stream %q: %w", id, eventsourcing.ErrNotFound)
	}

	rows, err := s.pool.Query(ctx, selectStreamSQL, id, version)
	if err != nil {
		return nil, &eventsourcing.StoreFailure{Err: err}
	}

	return eventsourcing.NewIteratorFunc(func(ctx context.Context) (eventsourcing.Envelope, bool, error) {
		var zero eventsourcing.Envelope
		if !rows.Next() {
			rows.Close()
			if err := rows.Err(); err != nil {
				return zero, false, &eventsourcing.StoreFailure{Err: err}
			}
			return zero, false, nil
		}

		var env eventsourcing.Envelope
		var eventURN string
		var payload, metadata []byte
		if err := rows.Scan(&env.EventID, &eventURN, &payload, &metadata, &env.Version, &env.OccurredAt); err != nil {
			rows.Close()
			return zero, false, &eventsourcing.StoreFailure{Err: err}
		}

		ev, _, err := s.registry.NewEvent(eventURN)
		if err != nil {
			rows.Close()
			return zero, false, fmt.Errorf("decode stream %q: %w", id, err)
		}
		if err := json.Unmarshal(payload, ev); err != nil {
			rows.Close()
			return zero, false, &eventsourcing.MalformedPayload{Schema: eventURN, Err: err}
		}
		if err := json.Unmarshal(metadata, &env.Metadata); err != nil {
			rows.Close()
			return zero, false, &eventsourcing.StoreFailure{Err: err}
		}

		env.StreamID = id
		env.Event = ev
		return env, true, nil
	}), nil
}

// Close implements eventsourcing.EventStore. Idempotent; closes the pool.
func (s *EventStore) Close() error {
	s.pool.Close()
	return nil
}
