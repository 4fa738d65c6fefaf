// Package queue implements the database-backed, at-least-once delivery path
// of components H/I/J: a command enqueued as a CloudEvent JSON body, claimed
// by a receiver under a visibility timeout, and dispatched through the same
// CommandBus the synchronous HTTP path uses. Grounded on
// dmitrymomot-foundation/core/queue's Task/Config/WorkerRepository shape,
// generalized from opaque task payloads to schema-URN-addressed commands.
package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TaskStatus tracks a task through its claim/complete/fail lifecycle.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Task is one queued command: a schema URN plus its CloudEvent JSON body,
// the same shape the CloudEvents ingress decodes from an HTTP request.
type Task struct {
	ID          uuid.UUID
	Queue       string
	SchemaURN   string
	Payload     []byte
	Status      TaskStatus
	RetryCount  int
	MaxRetries  int
	ScheduledAt time.Time
	LockedUntil *time.Time
	LockedBy    *uuid.UUID
	Error       *string
	CreatedAt   time.Time
}

// DefaultQueueName is used when a caller does not pick a queue.
const DefaultQueueName = "default"

// Config holds the environment-configurable knobs for the enqueuer, receiver
// and worker host, in the shape of dmitrymomot-foundation/core/queue's
// Config: visibility timeout maps to LockTimeout, poll interval to
// PollInterval.
type Config struct {
	PollInterval       time.Duration `env:"QUEUE_POLL_INTERVAL" envDefault:"5s"`
	LockTimeout        time.Duration `env:"QUEUE_LOCK_TIMEOUT" envDefault:"5m"`
	ShutdownTimeout    time.Duration `env:"QUEUE_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	MaxConcurrentTasks int           `env:"QUEUE_MAX_CONCURRENT_TASKS" envDefault:"10"`
	MaxRetries         int           `env:"QUEUE_MAX_RETRIES" envDefault:"5"`
	Queues             []string      `env:"QUEUE_WORKER_QUEUES" envDefault:"default" envSeparator:","`
}

// DefaultConfig returns sensible defaults for production use.
func DefaultConfig() Config {
	return Config{
		PollInterval:       5 * time.Second,
		LockTimeout:        5 * time.Minute,
		ShutdownTimeout:    30 * time.Second,
		MaxConcurrentTasks: 10,
		MaxRetries:         5,
		Queues:             []string{DefaultQueueName},
	}
}

// EnqueuerRepository is what the Enqueuer needs to create a task.
type EnqueuerRepository interface {
	CreateTask(ctx context.Context, task *Task) error
}

// WorkerRepository is what the Receiver needs to claim and resolve tasks.
// Matches the ClaimTask (SELECT ... FOR UPDATE SKIP LOCKED) / CompleteTask /
// FailTask shape of core/queue's WorkerRepository.
type WorkerRepository interface {
	ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*Task, error)
	CompleteTask(ctx context.Context, taskID uuid.UUID) error
	FailTask(ctx context.Context, taskID uuid.UUID, errMsg string) error
	MoveToDLQ(ctx context.Context, taskID uuid.UUID) error
}

// Storage combines both repositories so a single backing store can satisfy
// Enqueuer and Receiver alike.
type Storage interface {
	EnqueuerRepository
	WorkerRepository
}
