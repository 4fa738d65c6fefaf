package eventsourcing

import (
	"time"

	"github.com/google/uuid"
)

// Metadata is the envelope carried by every command and, once persisted,
// every event. It lets a consumer trace a command back through the
// causally-related chain of commands and events that produced it.
type Metadata struct {
	// ID uniquely identifies this command or event.
	ID string `json:"id"`

	// CorrelationID groups a causally related interaction. All commands
	// and events stemming from a single originating request share one.
	CorrelationID string `json:"correlationId"`

	// CausationID is the ID of the command or event that caused this one.
	// Empty for the first command in an interaction.
	CausationID string `json:"causationId,omitempty"`

	// UserID identifies the acting user, if any.
	UserID string `json:"userId,omitempty"`

	// Timestamp records when the command was issued or the event occurred.
	// Left zero by a client, it is server-stamped at persistence time.
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// NewMetadata builds a Metadata envelope, generating an ID and stamping the
// current time. CorrelationID defaults to the new ID when empty, so a
// freestanding command still groups with whatever it causes.
func NewMetadata(correlationID, causationID, userID string) Metadata {
	id := uuid.New().String()
	if correlationID == "" {
		correlationID = id
	}
	return Metadata{
		ID:            id,
		CorrelationID: correlationID,
		CausationID:   causationID,
		UserID:        userID,
		Timestamp:     time.Now(),
	}
}

// WithServerTimestamp returns a copy of m with Timestamp set to now if it
// was left zero by the caller, so the server's clock is authoritative
// whenever a producer doesn't set its own.
func (m Metadata) WithServerTimestamp(now time.Time) Metadata {
	if m.Timestamp.IsZero() {
		m.Timestamp = now
	}
	return m
}
