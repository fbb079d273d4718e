package scheduler_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"tenant-quiz-service/internal/infra/memory"
	"tenant-quiz-service/internal/scheduler"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestWorker(queue scheduler.Queue, c *clock, opts scheduler.Options) *scheduler.Worker {
	return scheduler.NewWorkerWithClock(queue, opts, slog.New(slog.NewTextHandler(io.Discard, nil)), c.Now)
}

func TestScheduleCollapsesSameKey(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: time.Unix(1700000000, 0).UTC()}
	queue := memory.NewJobQueue()
	s := scheduler.NewWithClock(queue, c.Now)

	first, err := s.Schedule(ctx, "ping", "k1", map[string]string{"n": "1"}, time.Minute)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if _, err := s.Schedule(ctx, "ping", "k1", map[string]string{"n": "2"}, time.Hour); err != nil {
		t.Fatalf("schedule again: %v", err)
	}
	if queue.Pending() != 1 {
		t.Fatalf("expected one pending job, got %d", queue.Pending())
	}
	if first.ID != scheduler.JobID("ping", "k1") {
		t.Fatalf("unexpected job id %q", first.ID)
	}
}

func TestWorkerRunsDueJobs(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: time.Unix(1700000000, 0).UTC()}
	queue := memory.NewJobQueue()
	s := scheduler.NewWithClock(queue, c.Now)
	w := newTestWorker(queue, c, scheduler.DefaultOptions())

	var got []string
	var mu sync.Mutex
	w.Handle("greet", func(ctx context.Context, job scheduler.Job) error {
		var p struct{ Name string }
		if err := job.Decode(&p); err != nil {
			return err
		}
		mu.Lock()
		got = append(got, p.Name)
		mu.Unlock()
		return nil
	})

	if _, err := s.Schedule(ctx, "greet", "a", struct{ Name string }{"ada"}, 10*time.Second); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if n, err := w.Tick(ctx); err != nil || n != 0 {
		t.Fatalf("expected nothing due, got %d (%v)", n, err)
	}

	c.Advance(10 * time.Second)
	if n, err := w.Tick(ctx); err != nil || n != 1 {
		t.Fatalf("expected one job, got %d (%v)", n, err)
	}
	if len(got) != 1 || got[0] != "ada" {
		t.Fatalf("unexpected handled payloads %v", got)
	}
	if queue.Pending() != 0 {
		t.Fatalf("expected the job to be acked")
	}
}

func TestWorkerRetriesThenDeadLetters(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: time.Unix(1700000000, 0).UTC()}
	queue := memory.NewJobQueue()
	s := scheduler.NewWithClock(queue, c.Now)
	opts := scheduler.DefaultOptions()
	opts.MaxAttempts = 2
	opts.Backoff = time.Second
	w := newTestWorker(queue, c, opts)

	calls := 0
	w.Handle("flaky", func(ctx context.Context, job scheduler.Job) error {
		calls++
		return errors.New("boom")
	})
	if _, err := s.Schedule(ctx, "flaky", "x", nil, 0); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	if _, err := w.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if queue.Pending() != 1 {
		t.Fatalf("expected the job back in the queue for a retry")
	}
	if n, _ := w.Tick(ctx); n != 0 {
		t.Fatalf("expected the retry to wait for its backoff")
	}

	c.Advance(time.Second)
	if _, err := w.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	failed := queue.Failed()
	if calls != 2 || len(failed) != 1 {
		t.Fatalf("expected 2 calls and a dead letter, got %d calls and %d failed", calls, len(failed))
	}
	if failed[0].Attempts != 2 || failed[0].LastError != "boom" {
		t.Fatalf("unexpected dead letter %+v", failed[0])
	}
}

func TestWorkerDropsWithoutRetry(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: time.Unix(1700000000, 0).UTC()}
	queue := memory.NewJobQueue()
	s := scheduler.NewWithClock(queue, c.Now)
	w := newTestWorker(queue, c, scheduler.DefaultOptions())
	w.Handle("drop", func(ctx context.Context, job scheduler.Job) error {
		return scheduler.ErrDrop
	})

	if _, err := s.Schedule(ctx, "drop", "x", nil, 0); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if _, err := w.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if queue.Pending() != 0 || len(queue.Failed()) != 0 {
		t.Fatalf("expected the job to be discarded")
	}
}

func TestWorkerRecoversExpiredClaims(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: time.Unix(1700000000, 0).UTC()}
	queue := memory.NewJobQueue()
	s := scheduler.NewWithClock(queue, c.Now)

	if _, err := s.Schedule(ctx, "orphan", "x", nil, 0); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	// A worker that crashed after claiming.
	claimed, err := queue.Claim(ctx, c.Now(), c.Now().Add(time.Second), 10)
	if err != nil || len(claimed) != 1 {
		t.Fatalf("claim: %v (%d jobs)", err, len(claimed))
	}

	done := 0
	w := newTestWorker(queue, c, scheduler.DefaultOptions())
	w.Handle("orphan", func(ctx context.Context, job scheduler.Job) error {
		done++
		return nil
	})
	if n, _ := w.Tick(ctx); n != 0 {
		t.Fatalf("expected the claim to hide the job")
	}
	c.Advance(2 * time.Second)
	if n, err := w.Tick(ctx); err != nil || n != 1 {
		t.Fatalf("expected the expired claim to be redelivered, got %d (%v)", n, err)
	}
	if done != 1 {
		t.Fatalf("expected one delivery, got %d", done)
	}
}
