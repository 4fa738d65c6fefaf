package eventsourcing

import (
	"errors"
	"fmt"
)

// Sentinel errors for the module's error taxonomy. Wrap with fmt.Errorf("...: %w", ...)
// or the typed structs below when a payload needs to travel with the error.
var (
	// ErrBadCommand is returned for a missing or invalid aggregate id, or
	// an otherwise unrecognizable command shape.
	ErrBadCommand = errors.New("bad command")

	// ErrNotFound is the repository's internal "no stream" signal. It
	// never crosses the pipeline boundary on its own — it only decides
	// whether the pipeline calls Create or Decide.
	ErrNotFound = errors.New("aggregate not found")

	// ErrConcurrency is an optimistic append conflict. The caller may retry.
	ErrConcurrency = errors.New("concurrency conflict")

	// ErrUnknownSchema means the registry has no mapping for a schema URN.
	ErrUnknownSchema = errors.New("unknown schema")

	// ErrNoHandler means the registry maps a schema to a command type but
	// no handler is registered for that type.
	ErrNoHandler = errors.New("no handler registered")

	// ErrMalformedURN is returned by ParseSchema when the grammar does not match.
	ErrMalformedURN = errors.New("malformed schema urn")

	// ErrInvalidPrefix is returned by ValidatePrefix for a bad stream prefix.
	ErrInvalidPrefix = errors.New("invalid stream prefix")

	// ErrEnvelopeInvalid is returned by CloudEvents envelope validation.
	ErrEnvelopeInvalid = errors.New("invalid cloudevents envelope")

	// ErrSkippedEvent is the Unwrap target of SkippedEvent.
	ErrSkippedEvent = errors.New("skipped event")

	// ErrDuplicateHandler is returned by an EventBus when a subscriber name
	// is already taken, and is named in the panic NewEventGroupProcessor
	// raises when two handlers in one group share an event type.
	ErrDuplicateHandler = errors.New("duplicate handler")

	// ErrBusStopped is returned by the command bus after Stop has been called.
	ErrBusStopped = errors.New("command bus is stopped")
)

// DomainRejection carries the aggregate's own rejection message: Create or
// Decide returned an error, or a custom handler's precondition failed.
type DomainRejection struct {
	Msg string
}

func (e *DomainRejection) Error() string { return "domain rejection: " + e.Msg }

// NewDomainRejection builds a DomainRejection with a formatted message.
func NewDomainRejection(format string, args ...any) *DomainRejection {
	return &DomainRejection{Msg: fmt.Sprintf(format, args...)}
}

// StoreFailure wraps a transport/driver error from the event store. The
// caller may retry.
type StoreFailure struct {
	Err error
}

func (e *StoreFailure) Error() string { return "store failure: " + e.Err.Error() }
func (e *StoreFailure) Unwrap() error { return e.Err }

// MalformedPayload is returned by the registry when a known schema's JSON
// payload fails to decode.
type MalformedPayload struct {
	Schema string
	Err    error
}

func (e *MalformedPayload) Error() string {
	return fmt.Sprintf("malformed payload for schema %q: %v", e.Schema, e.Err)
}
func (e *MalformedPayload) Unwrap() error { return e.Err }

// ExternalFailure wraps a custom handler's external side-effect failure. No
// event may be appended when this error is returned.
type ExternalFailure struct {
	Err error
}

func (e *ExternalFailure) Error() string { return "external failure: " + e.Err.Error() }
func (e *ExternalFailure) Unwrap() error { return e.Err }

// PublishError wraps a queue engine's rejection of an enqueue.
type PublishError struct {
	Err error
}

func (e *PublishError) Error() string { return "publish error: " + e.Err.Error() }
func (e *PublishError) Unwrap() error { return e.Err }

// CorruptStream is returned when Init or Evolve panics while rehydrating a
// stream. The panic is recovered at the pipeline boundary and reported as
// this typed error rather than propagating.
type CorruptStream struct {
	StreamID string
	Cause    any
}

func (e *CorruptStream) Error() string {
	return fmt.Sprintf("corrupt stream %q: %v", e.StreamID, e.Cause)
}

// SkippedEvent is returned by an EventHandler that does not recognize the
// event it was given. A group processor uses it internally to route by
// EventType; a handler returning it directly signals "not for me" rather
// than a real failure.
type SkippedEvent struct {
	EventType string
}

func (e *SkippedEvent) Error() string {
	return fmt.Sprintf("%v: %s", ErrSkippedEvent, e.EventType)
}
func (e *SkippedEvent) Unwrap() error { return ErrSkippedEvent }

// NoHandlerError carries the runtime command type name for diagnostics.
type NoHandlerError struct {
	TypeName string
}

func (e *NoHandlerError) Error() string {
	return fmt.Sprintf("%v: %s", ErrNoHandler, e.TypeName)
}
func (e *NoHandlerError) Unwrap() error { return ErrNoHandler }

// HandlerError wraps any error a registered handler returned, annotated
// with the command type name for diagnostics. The bus does not otherwise
// translate handler errors.
type HandlerError struct {
	TypeName string
	Err      error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler error for %s: %v", e.TypeName, e.Err)
}
func (e *HandlerError) Unwrap() error { return e.Err }
