package eventsourcing

import "context"

// EventBus distributes appended events to subscribed projections.
// Each event is delivered to every
// distinct subscriber name; within one subscriber, delivery is exactly one
// EventHandler.
type EventBus interface {
	// Subscribe registers handler under name. Subscribing a name that is
	// already registered fails with ErrDuplicateHandler and leaves the
	// existing handler in place. filter, when non-empty, restricts delivery to
	// events whose EventType() is in the list; an empty filter receives
	// everything.
	Subscribe(ctx context.Context, name string, handler EventHandler, filter ...string) error

	// Publish delivers env to every subscriber whose filter matches.
	// Handler errors are reported on Errors(), not returned here, since a
	// slow or failing subscriber must not block publication to the others.
	Publish(ctx context.Context, env Envelope) error

	// Errors returns the channel async handler errors are sent to.
	Errors() <-chan error

	// Close stops delivering to subscribers and waits for in-flight Handle
	// calls to finish.
	Close() error
}
