package eventsourcing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ctxKey string

const (
	streamIDKey    ctxKey = "streamID"
	aggregateIDKey ctxKey = "aggregateID"
	eventIDKey     ctxKey = "eventID"
	versionKey     ctxKey = "version"
	occurredAtKey  ctxKey = "occurredAt"
	metadataKey    ctxKey = "metadata"
)

// WithEnvelope attaches an event envelope's provenance to ctx, for handlers
// and projections further down the call chain (e.g. structured logging).
func WithEnvelope(ctx context.Context, env *Envelope) context.Context {
	ctx = context.WithValue(ctx, streamIDKey, env.StreamID)
	ctx = context.WithValue(ctx, aggregateIDKey, env.Event.AggregateID())
	ctx = context.WithValue(ctx, eventIDKey, env.EventID)
	ctx = context.WithValue(ctx, versionKey, env.Version)
	ctx = context.WithValue(ctx, occurredAtKey, env.OccurredAt)
	ctx = context.WithValue(ctx, metadataKey, env.Metadata)
	return ctx
}

// WithMetadata attaches metadata to ctx ahead of dispatch, so a
// CommandHandler's metadata function (see defaultMetadataFunc) can recover
// the correlation/causation/user ids an ingress adapter derived from the
// inbound request rather than minting fresh ones.
func WithMetadata(ctx context.Context, md Metadata) context.Context {
	return context.WithValue(ctx, metadataKey, md)
}

// AggregateIDFromContext returns the AggregateID or "" if not present.
func AggregateIDFromContext(ctx context.Context) string {
	if v := ctx.Value(aggregateIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// StreamIDFromContext returns the StreamID or "" if not present.
func StreamIDFromContext(ctx context.Context) string {
	if v := ctx.Value(streamIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// EventIDFromContext returns the EventID or uuid.Nil if not present.
func EventIDFromContext(ctx context.Context) uuid.UUID {
	if v := ctx.Value(eventIDKey); v != nil {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}

// VersionFromContext returns the Version or 0 if not present.
func VersionFromContext(ctx context.Context) uint64 {
	if v := ctx.Value(versionKey); v != nil {
		if ver, ok := v.(uint64); ok {
			return ver
		}
	}
	return 0
}

// OccurredAtFromContext returns OccurredAt or zero time if not present.
func OccurredAtFromContext(ctx context.Context) time.Time {
	if v := ctx.Value(occurredAtKey); v != nil {
		if t, ok := v.(time.Time); ok {
			return t
		}
	}
	return time.Time{}
}

// CausationIDFromContext returns the causation id from the event's metadata,
// or "" if not present.
func CausationIDFromContext(ctx context.Context) string {
	return MetadataFromContext(ctx).CausationID
}

// MetadataFromContext returns the Metadata or its zero value if not present.
func MetadataFromContext(ctx context.Context) Metadata {
	if v := ctx.Value(metadataKey); v != nil {
		if md, ok := v.(Metadata); ok {
			return md
		}
	}
	return Metadata{}
}
