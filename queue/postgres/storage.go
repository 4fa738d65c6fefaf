// Package postgres is the durable queue.Storage of component N's queue
// half: a single "tasks" table, claimed through SELECT ... FOR UPDATE SKIP
// LOCKED so multiple worker-host processes can share one queue without
// double-claiming a task. Grounded on the claim/complete/fail/dead-letter
// shape of dmitrymomot-foundation/core/queue's WorkerRepository and the
// pgxpool/goose conventions of dmitrymomot-foundation/integration/database/pg.
package postgres

import (
	"context"
	"embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver goose migrates through
	"github.com/pressly/goose/v3"

	"github.com/jade/eventsourcing/queue"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Storage is a pgx-backed queue.Storage.
type Storage struct {
	pool *pgxpool.Pool
}

// NewStorage wraps an already-connected pool. Run Migrate before first use.
func NewStorage(pool *pgxpool.Pool) *Storage {
	return &Storage{pool: pool}
}

// Migrate applies the embedded goose migrations, creating the tasks table
// if it does not already exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	db, err := goose.OpenDBWithDriver("pgx", pool.Config().ConnString())
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// CreateTask implements queue.EnqueuerRepository.
func (s *Storage) CreateTask(ctx context.Context, task *queue.Task) error {
	const insertSQL = `
		INSERT INTO tasks (id, queue, schema_urn, payload, status, retry_count, max_retries, scheduled_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	status := task.Status
	if status == "" {
		status = queue.TaskStatusPending
	}
	createdAt := task.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.pool.Exec(ctx, insertSQL,
		task.ID, task.Queue, task.SchemaURN, task.Payload, status,
		task.RetryCount, task.MaxRetries, task.ScheduledAt, createdAt)
	return err
}

// ClaimTask implements queue.WorkerRepository using SELECT ... FOR UPDATE
// SKIP LOCKED so concurrent worker hosts never claim the same task.
func (s *Storage) ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*queue.Task, error) {
	if len(queues) == 0 {
		queues = []string{queue.DefaultQueueName}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	const selectSQL = `
		SELECT id, queue, schema_urn, payload, status, retry_count, max_retries, scheduled_at, locked_until, locked_by, error, created_at
		FROM tasks
		WHERE queue = ANY($1)
		  AND status NOT IN ('completed', 'failed')
		  AND scheduled_at <= now()
		  AND (locked_until IS NULL OR locked_until <= now())
		ORDER BY scheduled_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED`

	var task queue.Task
	row := tx.QueryRow(ctx, selectSQL, queues)
	if err := row.Scan(&task.ID, &task.Queue, &task.SchemaURN, &task.Payload, &task.Status,
		&task.RetryCount, &task.MaxRetries, &task.ScheduledAt, &task.LockedUntil, &task.LockedBy,
		&task.Error, &task.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	lockedUntil := time.Now().Add(lockDuration)
	const updateSQL = `UPDATE tasks SET status = $1, locked_until = $2, locked_by = $3 WHERE id = $4`
	if _, err := tx.Exec(ctx, updateSQL, queue.TaskStatusProcessing, lockedUntil, workerID, task.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	task.Status = queue.TaskStatusProcessing
	task.LockedUntil = &lockedUntil
	task.LockedBy = &workerID
	return &task, nil
}

// CompleteTask implements queue.WorkerRepository.
func (s *Storage) CompleteTask(ctx context.Context, taskID uuid.UUID) error {
	const updateSQL = `UPDATE tasks SET status = $1, locked_until = NULL, locked_by = NULL WHERE id = $2`
	_, err := s.pool.Exec(ctx, updateSQL, queue.TaskStatusCompleted, taskID)
	return err
}

// FailTask implements queue.WorkerRepository. It only records errMsg and
// bumps retry_count; locked_until is left as ClaimTask set it, so the row
// stays invisible to ClaimTask until that visibility timeout elapses.
func (s *Storage) FailTask(ctx context.Context, taskID uuid.UUID, errMsg string) error {
	const updateSQL = `
		UPDATE tasks
		SET retry_count = retry_count + 1, error = $1
		WHERE id = $2`
	_, err := s.pool.Exec(ctx, updateSQL, errMsg, taskID)
	return err
}

// MoveToDLQ implements queue.WorkerRepository.
func (s *Storage) MoveToDLQ(ctx context.Context, taskID uuid.UUID) error {
	const updateSQL = `UPDATE tasks SET status = $1, locked_until = NULL, locked_by = NULL WHERE id = $2`
	_, err := s.pool.Exec(ctx, updateSQL, queue.TaskStatusFailed, taskID)
	return err
}
