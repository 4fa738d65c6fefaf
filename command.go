package eventsourcing

// Command is the interface every command variant implements. The target
// aggregate is fully determined by the command's schema URN (see Schema),
// not by its Go type, so the interface itself stays minimal.
type Command interface {
	// AggregateID returns the id of the aggregate instance this command
	// targets. An empty string is a BadCommand.
	AggregateID() string
}

// SchemaTyped is implemented by command and event variants that declare a
// static schema URN association. The registry extracts the URN from the
// type via a zero-value instance, never from a live instance's field.
type SchemaTyped interface {
	Schema() Schema
}

// AnyCommand is the thin envelope carried at the bus/registry boundary. It
// pairs a concrete Command with the metadata envelope, replacing reflection
// at call sites with a compiled registry lookup.
type AnyCommand struct {
	Command  Command
	Metadata Metadata
}
