package fixtures

import (
	"time"

	"github.com/google/uuid"
	es "github.com/jade/eventsourcing"
)

// EnvelopeOption is a functional option for configuring an Envelope.
type EnvelopeOption func(*es.Envelope)

// NewEnvelope builds an Envelope wrapping event at version 1, with a fresh
// event id and metadata.
func NewEnvelope(event es.Event, opts ...EnvelopeOption) es.Envelope {
	env := es.Envelope{
		EventID:    uuid.New(),
		StreamID:   event.AggregateID(),
		Metadata:   es.NewMetadata("", "", ""),
		Event:      event,
		Version:    1,
		OccurredAt: time.Now(),
	}
	for _, opt := range opts {
		opt(&env)
	}
	return env
}

// WithEventID overrides the envelope's event id.
func WithEventID(id uuid.UUID) EnvelopeOption {
	return func(e *es.Envelope) { e.EventID = id }
}

// WithStreamID overrides the stream id (defaults to the event's AggregateID).
func WithStreamID(id string) EnvelopeOption {
	return func(e *es.Envelope) { e.StreamID = id }
}

// WithVersion overrides the stream version.
func WithVersion(v uint64) EnvelopeOption {
	return func(e *es.Envelope) { e.Version = v }
}

// WithTimestamp overrides the occurred-at timestamp.
func WithTimestamp(t time.Time) EnvelopeOption {
	return func(e *es.Envelope) { e.OccurredAt = t }
}

// WithEnvelopeMetadata overrides the envelope's metadata.
func WithEnvelopeMetadata(md es.Metadata) EnvelopeOption {
	return func(e *es.Envelope) { e.Metadata = md }
}

// EnvelopesFromEvents builds envelopes for events with sequential versions
// starting at 1, all sharing the first event's stream id, as if they had
// just come back from a successful Repository.Save.
func EnvelopesFromEvents(events ...es.Event) []es.Envelope {
	envelopes := make([]es.Envelope, len(events))
	baseTime := time.Now()

	for i, event := range events {
		envelopes[i] = es.Envelope{
			EventID:    uuid.New(),
			StreamID:   event.AggregateID(),
			Metadata:   es.NewMetadata("", "", ""),
			Event:      event,
			Version:    uint64(i + 1),
			OccurredAt: baseTime.Add(time.Duration(i) * time.Millisecond),
		}
	}
	return envelopes
}
