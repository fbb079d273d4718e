package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"tenant-quiz-service/internal/scheduler"
)

// JobQueue is a process-local scheduler.Queue. Jobs do not survive a restart.
type JobQueue struct {
	mu      sync.Mutex
	pending map[string]scheduler.Job
	claimed map[string]claim
	failed  []scheduler.Job
}

type claim struct {
	job       scheduler.Job
	visibleAt time.Time
}

func NewJobQueue() *JobQueue {
	return &JobQueue{
		pending: make(map[string]scheduler.Job),
		claimed: make(map[string]claim),
	}
}

func (q *JobQueue) Enqueue(_ context.Context, job scheduler.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.pending[job.ID]; ok {
		return nil
	}
	if _, ok := q.claimed[job.ID]; ok {
		return nil
	}
	q.pending[job.ID] = job
	return nil
}

func (q *JobQueue) Claim(_ context.Context, now, visibleAt time.Time, limit int) ([]scheduler.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	due := make([]scheduler.Job, 0)
	for _, job := range q.pending {
		if !job.RunAt.After(now) {
			due = append(due, job)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].RunAt.Equal(due[j].RunAt) {
			return due[i].RunAt.Before(due[j].RunAt)
		}
		return due[i].ID < due[j].ID
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	for _, job := range due {
		delete(q.pending, job.ID)
		q.claimed[job.ID] = claim{job: job, visibleAt: visibleAt}
	}
	return due, nil
}

func (q *JobQueue) Ack(_ context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.claimed, jobID)
	return nil
}

func (q *JobQueue) Retry(_ context.Context, job scheduler.Job, runAt time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.claimed, job.ID)
	job.RunAt = runAt
	q.pending[job.ID] = job
	return nil
}

func (q *JobQueue) Fail(_ context.Context, job scheduler.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.claimed, job.ID)
	q.failed = append(q.failed, job)
	return nil
}

func (q *JobQueue) Requeue(_ context.Context, now time.Time) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for id, c := range q.claimed {
		if c.visibleAt.Before(now) {
			delete(q.claimed, id)
			q.pending[id] = c.job
			n++
		}
	}
	return n, nil
}

// Pending reports how many jobs wait to be claimed.
func (q *JobQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Failed returns the dead-lettered jobs.
func (q *JobQueue) Failed() []scheduler.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]scheduler.Job(nil), q.failed...)
}
