package eventsourcing

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// CommandFactory returns a new, zero-valued instance of a concrete Command
// type, ready to be unmarshaled into. Registered against a Schema so the
// CloudEvents ingress can turn a schema URN plus a JSON
// payload into a typed command without a giant switch statement.
type CommandFactory func() Command

// EventFactory is the Event equivalent of CommandFactory, used by event
// store adapters to decode persisted payloads back into concrete types.
type EventFactory func() Event

// Registry is the schema-keyed lookup table mapping schema URNs to typed
// factories, and command types to the handlers registered for them. One
// Registry typically serves both commands and events for a module, since
// schema URNs already disambiguate by Kind.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]CommandFactory
	events   map[string]EventFactory
	handlers map[string]func(ctx context.Context, cmd Command) (AppendResult, error)
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]CommandFactory),
		events:   make(map[string]EventFactory),
		handlers: make(map[string]func(ctx context.Context, cmd Command) (AppendResult, error)),
	}
}

// RegisterCommand associates schema with a factory for decoding commands of
// that schema. A second registration for the same schema overwrites the
// first; the overwrite is logged rather than rejected, since redeploying a
// module that re-registers its own schemas at startup is the common case,
// not a wiring mistake.
func (r *Registry) RegisterCommand(schema Schema, factory CommandFactory) error {
	if factory == nil {
		return fmt.Errorf("register command %s: factory is nil", schema)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := schema.String()
	if _, exists := r.commands[key]; exists {
		logrus.WithField("schema", key).Warn("overwriting previously registered command schema")
	}
	r.commands[key] = factory
	return nil
}

// RegisterEvent associates schema with a factory for decoding events of
// that schema. A second registration for the same schema overwrites the
// first; the overwrite is logged rather than rejected.
func (r *Registry) RegisterEvent(schema Schema, factory EventFactory) error {
	if factory == nil {
		return fmt.Errorf("register event %s: factory is nil", schema)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := schema.String()
	if _, exists := r.events[key]; exists {
		logrus.WithField("schema", key).Warn("overwriting previously registered event schema")
	}
	r.events[key] = factory
	return nil
}

// NewCommand looks up the schema URN and returns a fresh, unpopulated
// Command of the registered concrete type. ErrMalformedURN if urn doesn't
// parse, ErrUnknownSchema if no factory is registered for it.
func (r *Registry) NewCommand(urn string) (Command, Schema, error) {
	schema, err := ParseSchema(urn)
	if err != nil {
		return nil, Schema{}, err
	}
	r.mu.RLock()
	factory, ok := r.commands[schema.String()]
	r.mu.RUnlock()
	if !ok {
		return nil, schema, fmt.Errorf("registry: schema %s: %w", schema, ErrUnknownSchema)
	}
	return factory(), schema, nil
}

// DeserializeCommand looks up urn, builds a fresh command of its registered
// type, and unmarshals data into it. It is the decode half of the direct
// ingress pipeline: resolve type, then populate it, in one call.
func (r *Registry) DeserializeCommand(urn string, data []byte) (Command, Schema, error) {
	cmd, schema, err := r.NewCommand(urn)
	if err != nil {
		return nil, schema, err
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, cmd); err != nil {
			return nil, schema, &MalformedPayload{Schema: schema.String(), Err: err}
		}
	}
	return cmd, schema, nil
}

// TryGetType reports the runtime type name registered for urn's schema,
// without allocating a long-lived command instance for callers that only
// need the type token (e.g. to probe GetHandler before deserializing).
func (r *Registry) TryGetType(urn string) (string, Schema, error) {
	cmd, schema, err := r.NewCommand(urn)
	if err != nil {
		return "", schema, err
	}
	return fmt.Sprintf("%T", cmd), schema, nil
}

// GetHandler looks up the handler registered for a command's runtime type
// name, as produced by TryGetType or fmt.Sprintf("%T", cmd).
func (r *Registry) GetHandler(typeName string) (func(ctx context.Context, cmd Command) (AppendResult, error), bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[typeName]
	return h, ok
}

// RegisterHandler adds a typed command handler to the registry, keyed by
// C's concrete type. Panics if a handler is already registered for C,
// since that is a wiring mistake caught once at startup, not a runtime
// condition callers should need to handle.
func RegisterHandler[C Command](r *Registry, handler CommandHandler[C]) {
	var zero C
	cmdName := fmt.Sprintf("%T", zero)
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[cmdName]; exists {
		panic(fmt.Sprintf("handler already registered for command type %s", cmdName))
	}

	r.handlers[cmdName] = func(ctx context.Context, cmd Command) (AppendResult, error) {
		c, ok := cmd.(C)
		if !ok {
			return AppendResult{}, fmt.Errorf("expected command type %s but got %T", cmdName, cmd)
		}
		return handler(ctx, c)
	}
}

// NewEvent looks up the schema URN and returns a fresh, unpopulated Event
// of the registered concrete type.
func (r *Registry) NewEvent(urn string) (Event, Schema, error) {
	schema, err := ParseSchema(urn)
	if err != nil {
		return nil, Schema{}, err
	}
	r.mu.RLock()
	factory, ok := r.events[schema.String()]
	r.mu.RUnlock()
	if !ok {
		return nil, schema, fmt.Errorf("registry: schema %s: %w", schema, ErrUnknownSchema)
	}
	return factory(), schema, nil
}

// Schemas returns every command schema URN registered, for the
// GET /api/cloudevents/schemas discovery endpoint.
func (r *Registry) Schemas() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.commands))
	for k := range r.commands {
		out = append(out, k)
	}
	return out
}
