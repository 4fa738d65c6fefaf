package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	es "github.com/jade/eventsourcing"
	esotel "github.com/jade/eventsourcing/otel"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
)

// Enqueuer is the producer side of component H: it marshals a whole
// CloudEvent into a Task and hands it to storage. It never talks to the
// CommandBus directly — that is the Receiver's job.
type Enqueuer struct {
	repo       EnqueuerRepository
	maxRetries int
}

// NewEnqueuer builds an Enqueuer from cfg, backed by repo.
func NewEnqueuer(repo EnqueuerRepository, cfg Config) *Enqueuer {
	return &Enqueuer{repo: repo, maxRetries: cfg.MaxRetries}
}

// Publish serializes ce as JSON and stores it as a pending Task. The
// queue defaults to the {aggregate} segment of ce's DataSchema URN, per the
// naming rule a Receiver's Config.Queues uses to claim it; the whole
// CloudEvent travels as the task payload so a Receiver can decode it back
// and dispatch it through the same procedure the direct ingress uses.
func (e *Enqueuer) Publish(ctx context.Context, ce es.CloudEvent, opts ...EnqueueOption) error {
	schema, err := es.ParseSchema(ce.DataSchema)
	if err != nil {
		return &es.PublishError{Err: fmt.Errorf("parse dataschema %q: %w", ce.DataSchema, err)}
	}

	payload, err := json.Marshal(ce)
	if err != nil {
		return &es.PublishError{Err: fmt.Errorf("marshal cloudevent for schema %s: %w", schema, err)}
	}

	options := enqueueOptions{queue: schema.Aggregate, maxRetries: e.maxRetries, scheduledAt: time.Now()}
	for _, opt := range opts {
		opt(&options)
	}

	task := &Task{
		ID:          uuid.New(),
		Queue:       options.queue,
		SchemaURN:   schema.String(),
		Payload:     payload,
		Status:      TaskStatusPending,
		MaxRetries:  options.maxRetries,
		ScheduledAt: options.scheduledAt,
		CreatedAt:   time.Now(),
	}

	if err := e.repo.CreateTask(ctx, task); err != nil {
		return &es.PublishError{Err: fmt.Errorf("create task for schema %s: %w", schema, err)}
	}
	esotel.QueueEnqueued.Add(ctx, 1, metric.WithAttributes(esotel.AttrQueueName.String(task.Queue)))
	return nil
}

// EnqueueOption customizes one Publish call.
type EnqueueOption func(*enqueueOptions)

type enqueueOptions struct {
	queue       string
	maxRetries  int
	scheduledAt time.Time
}

// WithQueue routes the task to a non-default queue name, overriding the
// aggregate-derived default.
func WithQueue(queue string) EnqueueOption {
	return func(o *enqueueOptions) { o.queue = queue }
}

// WithDelay schedules the task for delay from now instead of immediately.
func WithDelay(delay time.Duration) EnqueueOption {
	return func(o *enqueueOptions) { o.scheduledAt = time.Now().Add(delay) }
}

// WithMaxRetries overrides the enqueuer's default retry budget for one task.
func WithMaxRetries(n int) EnqueueOption {
	return func(o *enqueueOptions) { o.maxRetries = n }
}
