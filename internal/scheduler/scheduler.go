// Package scheduler runs deferred jobs: work submitted now to execute no earlier
// than a given instant, delivered at least once.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Job is a unit of deferred work. ID is the idempotency key: enqueueing a job whose
// ID is already pending keeps the pending one.
type Job struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	RunAt     time.Time       `json:"runAt"`
	Attempts  int             `json:"attempts"`
	LastError string          `json:"lastError,omitempty"`
}

// Decode unmarshals the payload into v.
func (j Job) Decode(v any) error {
	if err := json.Unmarshal(j.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", j.Kind, err)
	}
	return nil
}

// Queue is the durable store behind the scheduler (Redis, in-memory, ...).
type Queue interface {
	// Enqueue stores the job unless a job with the same ID is pending.
	Enqueue(ctx context.Context, job Job) error
	// Claim hands out up to limit jobs due at now. Claimed jobs become invisible
	// until visibleAt, after which Requeue makes them due again.
	Claim(ctx context.Context, now, visibleAt time.Time, limit int) ([]Job, error)
	// Ack removes a finished job.
	Ack(ctx context.Context, jobID string) error
	// Retry puts a claimed job back to run at runAt.
	Retry(ctx context.Context, job Job, runAt time.Time) error
	// Fail moves a claimed job to the dead letter list.
	Fail(ctx context.Context, job Job) error
	// Requeue returns claimed jobs whose visibility expired before now.
	Requeue(ctx context.Context, now time.Time) (int, error)
}

// Scheduler submits jobs to a queue.
type Scheduler struct {
	queue Queue
	now   func() time.Time
}

func New(queue Queue) *Scheduler {
	return NewWithClock(queue, time.Now)
}

// NewWithClock allows deterministic run times in tests.
func NewWithClock(queue Queue, now func() time.Time) *Scheduler {
	return &Scheduler{queue: queue, now: now}
}

// Schedule enqueues a job of the given kind to run after delay. key identifies the
// job within its kind, so scheduling the same (kind, key) twice is collapsed.
func (s *Scheduler) Schedule(ctx context.Context, kind, key string, payload any, delay time.Duration) (Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Job{}, fmt.Errorf("encode %s payload: %w", kind, err)
	}
	if delay < 0 {
		delay = 0
	}
	job := Job{
		ID:      JobID(kind, key),
		Kind:    kind,
		Payload: raw,
		RunAt:   s.now().Add(delay),
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		return Job{}, fmt.Errorf("enqueue %s: %w", job.ID, err)
	}
	return job, nil
}

// JobID derives the idempotency key of a job.
func JobID(kind, key string) string {
	return kind + ":" + key
}
