package eventsourcing

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"
)

// CommandHandler is the uniform shape every registered handler exposes to
// the bus, whether it wraps an Aggregate or a hand-written side effect.
type CommandHandler[C Command] func(ctx context.Context, command C) (AppendResult, error)

// CommandHandlerOption customizes NewAggregateHandler.
type CommandHandlerOption func(*handlerOptions)

type handlerOptions struct {
	RetryStrategy backoff.BackOff
	Metadata      func(ctx context.Context, cmd Command) Metadata
}

// WithRetryStrategy overrides the backoff strategy applied when Save fails
// with ErrConcurrency. The default retries a handful of times with a short
// exponential backoff, since concurrent writers to the same aggregate are
// expected to be rare but not exceptional.
func WithRetryStrategy(strategy backoff.BackOff) CommandHandlerOption {
	return func(cfg *handlerOptions) { cfg.RetryStrategy = strategy }
}

// WithMetadataFunc overrides how a handler derives the Metadata attached to
// events it appends. The default pulls correlation/causation/user off ctx
// (see WithEnvelope, MetadataFromContext) and falls back to a fresh
// Metadata when the context carries none.
func WithMetadataFunc(fn func(ctx context.Context, cmd Command) Metadata) CommandHandlerOption {
	return func(cfg *handlerOptions) { cfg.Metadata = fn }
}

func defaultRetryStrategy() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * b.InitialInterval / 100
	b.MaxElapsedTime = 0
	return backoff.WithMaxRetries(b, 5)
}

func defaultMetadataFunc(ctx context.Context, cmd Command) Metadata {
	if md := MetadataFromContext(ctx); md.ID != "" {
		return md
	}
	return NewMetadata("", "", "")
}

// NewAggregateHandler builds a CommandHandler around one Aggregate and its
// Repository, implementing the rehydration and command pipeline:
//
//  1. Reject a command with no aggregate id.
//  2. Load the aggregate. A missing stream routes to Create; an existing
//     one routes to Decide.
//  3. Create producing zero events is a DomainRejection: a fresh aggregate
//     must come into being via at least one event. Decide producing zero
//     events is a successful no-op.
//  4. Persist the produced events with an optimistic-concurrency
//     precondition matched to the path taken (NoStream for Create,
//     Revision(loadedVersion) for Decide).
//  5. On ErrConcurrency from Save, reload and retry per the configured
//     backoff strategy; every other error is returned as-is.
func NewAggregateHandler[T any, C Command](repo *Repository[T], aggregate Aggregate[T, C], opts ...CommandHandlerOption) CommandHandler[C] {
	cfg := &handlerOptions{
		RetryStrategy: defaultRetryStrategy(),
		Metadata:      defaultMetadataFunc,
	}
	for _, o := range opts {
		o(cfg)
	}

	return func(ctx context.Context, command C) (AppendResult, error) {
		id := command.AggregateID()
		if id == "" {
			return AppendResult{}, fmt.Errorf("aggregate handler: %w: empty AggregateID", ErrBadCommand)
		}
		metadata := cfg.Metadata(ctx, command)

		return backoff.RetryWithData(func() (AppendResult, error) {
			state, version, err := repo.GetByID(ctx, id)
			switch {
			case errors.Is(err, ErrNotFound):
				events, cerr := aggregate.Create(command)
				if cerr != nil {
					return AppendResult{}, backoff.Permanent(fmt.Errorf("create %s %q: %w", aggregate.Prefix, id, &DomainRejection{Msg: cerr.Error()}))
				}
				if len(events) == 0 {
					return AppendResult{}, backoff.Permanent(fmt.Errorf("create %s %q: %w", aggregate.Prefix, id, NewDomainRejection("create produced no events")))
				}
				result, serr := repo.Save(ctx, id, events, metadata, 0)
				return result, retriable(serr)

			case err != nil:
				return AppendResult{}, backoff.Permanent(err)

			default:
				events, derr := aggregate.Decide(state, command)
				if derr != nil {
					return AppendResult{}, backoff.Permanent(fmt.Errorf("decide %s %q: %w", aggregate.Prefix, id, &DomainRejection{Msg: derr.Error()}))
				}
				if len(events) == 0 {
					return AppendResult{Successful: true, NextExpectedVersion: version}, nil
				}
				result, serr := repo.Save(ctx, id, events, metadata, version)
				return result, retriable(serr)
			}
		}, cfg.RetryStrategy)
	}
}

// retriable marks err permanent unless it is an optimistic-concurrency
// conflict, which the caller's backoff loop should retry against a fresh load.
func retriable(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrConcurrency) {
		return err
	}
	return backoff.Permanent(err)
}
