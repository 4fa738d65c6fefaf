package eventsourcing

import (
	"time"

	"github.com/google/uuid"
)

// Event is a domain event describing a change that has happened to an
// aggregate. EventType returns the event's schema URN, which is also the
// wire type tag the store adapter registers the variant under (component D).
type Event interface {
	AggregateID() string
	EventType() string
}

// Envelope is an event together with its stream position and provenance.
// Envelopes are immutable once appended; nothing in this package mutates
// one after Repository.Save returns successfully.
type Envelope struct {
	EventID    uuid.UUID
	StreamID   string
	Metadata   Metadata
	Event      Event
	Version    uint64
	OccurredAt time.Time
}
