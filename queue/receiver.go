package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	es "github.com/jade/eventsourcing"
	esotel "github.com/jade/eventsourcing/otel"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/metric"
)

// Receiver is the consumer side of the queue's at-least-once delivery path:
// it claims tasks from one or more queues under a visibility timeout,
// resolves the command through the registry, dispatches it through the
// bus, and resolves the task (complete, retry, or dead-letter) based on
// the outcome. Per-aggregate ordering across receivers is not enforced;
// the bus's own optimistic-concurrency retry is the ordering authority.
type Receiver struct {
	repo     WorkerRepository
	registry *es.Registry
	bus      *es.CommandBus
	cfg      Config
	workerID uuid.UUID
	logger   *logrus.Entry
}

// NewReceiver builds a Receiver. logger may be nil.
func NewReceiver(repo WorkerRepository, registry *es.Registry, bus *es.CommandBus, cfg Config, logger *logrus.Entry) *Receiver {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Receiver{
		repo:     repo,
		registry: registry,
		bus:      bus,
		cfg:      cfg,
		workerID: uuid.New(),
		logger:   logger,
	}
}

// Poll claims and processes at most one task. It returns false if no task
// was available to claim, so a caller can back off before polling again.
func (r *Receiver) Poll(ctx context.Context) (bool, error) {
	task, err := r.repo.ClaimTask(ctx, r.workerID, r.cfg.Queues, r.cfg.LockTimeout)
	if err != nil {
		return false, fmt.Errorf("claim task: %w", err)
	}
	if task == nil {
		return false, nil
	}

	r.process(ctx, task)
	return true, nil
}

func (r *Receiver) process(ctx context.Context, task *Task) {
	l := r.logger.WithFields(logrus.Fields{"taskId": task.ID, "schema": task.SchemaURN, "queue": task.Queue})
	attrs := metric.WithAttributes(esotel.AttrQueueName.String(task.Queue))
	start := time.Now()

	err := r.dispatch(ctx, task)

	esotel.QueueDuration.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)

	if err == nil {
		if cerr := r.repo.CompleteTask(ctx, task.ID); cerr != nil {
			l.WithError(cerr).Error("failed to mark task completed")
			return
		}
		esotel.QueueProcessed.Add(ctx, 1, attrs)
		l.Debug("task completed")
		return
	}

	var noHandler *es.NoHandlerError
	if errors.As(err, &noHandler) || task.RetryCount >= task.MaxRetries {
		l.WithError(err).Warn("task moved to dead letter queue")
		if derr := r.repo.MoveToDLQ(ctx, task.ID); derr != nil {
			l.WithError(derr).Error("failed to move task to dead letter queue")
		}
		return
	}

	l.WithError(err).Warn("task failed, will retry")
	if ferr := r.repo.FailTask(ctx, task.ID, err.Error()); ferr != nil {
		l.WithError(ferr).Error("failed to record task failure")
	}
	esotel.QueueRedelivered.Add(ctx, 1, attrs)
}

func (r *Receiver) dispatch(ctx context.Context, task *Task) error {
	var ce es.CloudEvent
	if err := json.Unmarshal(task.Payload, &ce); err != nil {
		return &es.MalformedPayload{Schema: task.SchemaURN, Err: err}
	}
	_, err := es.DispatchCloudEvent(ctx, r.registry, r.bus, ce)
	return err
}

// Run polls in a loop, sleeping cfg.PollInterval whenever a poll finds no
// task, until ctx is cancelled.
func (r *Receiver) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		found, err := r.Poll(ctx)
		if err != nil {
			r.logger.WithError(err).Error("poll failed")
		}
		if found {
			continue // drain the queue before waiting again
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
