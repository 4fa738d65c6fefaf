package eventsourcing

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
)

// queuedCommand is one dispatch request waiting on a shard's queue.
type queuedCommand struct {
	Ctx        context.Context
	Command    Command
	ResponseCh chan<- commandResult
}

type commandResult struct {
	Result AppendResult
	Err    error
}

// CommandBus is the in-process command dispatcher. Handlers are held by its
// Registry, keyed per concrete command type; Dispatch routes by the runtime
// type of the Command it's given, not by inspecting a schema, since by the
// time a command reaches the bus it has already been decoded into its
// concrete Go type (by the CloudEvents ingress or a direct caller).
//
// Commands for the same AggregateID always land on the same shard, so a
// single aggregate never has two commands in flight against it
// concurrently within one bus; commands for different aggregates may run
// in parallel across shards.
type CommandBus struct {
	registry   *Registry
	queues     []chan queuedCommand
	stopCh     chan struct{}
	wg         sync.WaitGroup
	shardCount int
}

// NewCommandBus builds a CommandBus with shardCount worker goroutines, each
// reading from a queue of depth bufferSize, dispatching through registry's
// handler table. The workers start immediately.
func NewCommandBus(bufferSize int, shardCount int, registry *Registry) *CommandBus {
	if shardCount <= 0 {
		shardCount = 1
	}

	bus := &CommandBus{
		registry:   registry,
		queues:     make([]chan queuedCommand, shardCount),
		stopCh:     make(chan struct{}),
		shardCount: shardCount,
	}

	for i := 0; i < shardCount; i++ {
		bus.queues[i] = make(chan queuedCommand, bufferSize)
		go bus.worker(bus.queues[i])
	}

	return bus
}

// Dispatch routes cmd to its registered handler and blocks for the result.
// It returns *NoHandlerError if nothing is registered for cmd's concrete
// type, and ErrBusStopped once Stop has been called.
func (b *CommandBus) Dispatch(ctx context.Context, cmd Command) (AppendResult, error) {
	select {
	case <-b.stopCh:
		return AppendResult{}, ErrBusStopped
	default:
	}

	responseCh := make(chan commandResult, 1)
	b.wg.Add(1)
	defer b.wg.Done()

	shard := b.getShard(cmd.AggregateID())

	select {
	case b.queues[shard] <- queuedCommand{Ctx: ctx, Command: cmd, ResponseCh: responseCh}:
		select {
		case result := <-responseCh:
			return result.Result, result.Err
		case <-ctx.Done():
			return AppendResult{}, ctx.Err()
		}
	case <-ctx.Done():
		return AppendResult{}, ctx.Err()
	}
}

func (b *CommandBus) worker(queue chan queuedCommand) {
	for cmd := range queue {
		cmdName := fmt.Sprintf("%T", cmd.Command)

		h, exists := b.registry.GetHandler(cmdName)

		if !exists {
			cmd.ResponseCh <- commandResult{Err: &NoHandlerError{TypeName: cmdName}}
			continue
		}

		func() {
			defer func() {
				if r := recover(); r != nil {
					cmd.ResponseCh <- commandResult{Err: &HandlerError{TypeName: cmdName, Err: fmt.Errorf("panic: %v", r)}}
				}
			}()

			res, err := h(cmd.Ctx, cmd.Command)
			if err != nil {
				err = &HandlerError{TypeName: cmdName, Err: err}
			}
			cmd.ResponseCh <- commandResult{Result: res, Err: err}
		}()
	}
}

func (b *CommandBus) getShard(aggregateID string) int {
	hash := fnv.New32a()
	hash.Write([]byte(aggregateID))
	return int(hash.Sum32()) % b.shardCount
}

// Register adds a typed command handler to the bus's registry, keyed by C's
// concrete type. Panics if a handler is already registered for C, since
// that is a wiring mistake caught once at startup, not a runtime condition
// callers should need to handle.
func Register[C Command](b *CommandBus, handler CommandHandler[C]) {
	RegisterHandler(b.registry, handler)
}

// Stop closes every shard queue and waits for in-flight dispatches to
// finish. Dispatch called after Stop returns ErrBusStopped immediately.
func (b *CommandBus) Stop() {
	close(b.stopCh)
	for _, q := range b.queues {
		close(q)
	}
	b.wg.Wait()
}
