// Package memory provides an in-process queue.Storage, for tests and local
// development, in the same spirit as the module's eventstore/memory adapter.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jade/eventsourcing/queue"
)

// Storage is a mutex-guarded, in-memory implementation of queue.Storage.
// Claims are visible only within one process, so it is not suitable for a
// multi-instance worker host — use queue/postgres for that.
type Storage struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*queue.Task
}

// NewStorage builds an empty Storage.
func NewStorage() *Storage {
	return &Storage{tasks: make(map[uuid.UUID]*queue.Task)}
}

// CreateTask stores task as pending.
func (s *Storage) CreateTask(ctx context.Context, task *queue.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *task
	s.tasks[task.ID] = &cp
	return nil
}

// ClaimTask picks the oldest pending-or-expired task across queues, locking
// it for lockDuration. Returns (nil, nil) if nothing is claimable.
func (s *Storage) ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*queue.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wanted := make(map[string]bool, len(queues))
	for _, q := range queues {
		wanted[q] = true
	}

	now := time.Now()
	var candidates []*queue.Task
	for _, t := range s.tasks {
		if len(wanted) > 0 && !wanted[t.Queue] {
			continue
		}
		if t.Status == queue.TaskStatusCompleted || t.Status == queue.TaskStatusFailed {
			continue
		}
		if t.ScheduledAt.After(now) {
			continue
		}
		if t.LockedUntil != nil && t.LockedUntil.After(now) {
			continue
		}
		candidates = append(candidates, t)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ScheduledAt.Before(candidates[j].ScheduledAt) })

	claimed := candidates[0]
	lockedUntil := now.Add(lockDuration)
	claimed.Status = queue.TaskStatusProcessing
	claimed.LockedUntil = &lockedUntil
	id := workerID
	claimed.LockedBy = &id

	cp := *claimed
	return &cp, nil
}

// CompleteTask marks a task completed and releases its lock.
func (s *Storage) CompleteTask(ctx context.Context, taskID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return nil
	}
	t.Status = queue.TaskStatusCompleted
	t.LockedUntil = nil
	t.LockedBy = nil
	return nil
}

// FailTask increments the retry count and records the error. The task's
// existing lock is left untouched: it only becomes claimable again once
// LockedUntil naturally elapses, which is ClaimTask's only redelivery clock.
func (s *Storage) FailTask(ctx context.Context, taskID uuid.UUID, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return nil
	}
	t.RetryCount++
	t.Error = &errMsg
	return nil
}

// MoveToDLQ marks a task permanently failed.
func (s *Storage) MoveToDLQ(ctx context.Context, taskID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return nil
	}
	t.Status = queue.TaskStatusFailed
	t.LockedUntil = nil
	t.LockedBy = nil
	return nil
}
