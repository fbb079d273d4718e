package redis

import (
	"context"
	"testing"
	"time"

	"tenant-quiz-service/internal/scheduler"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestQueue(t *testing.T) (*JobQueue, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewJobQueue(client, "test:jobs"), mr
}

func TestJobQueueClaimsDueJobsOnce(t *testing.T) {
	ctx := context.Background()
	q, mr := newTestQueue(t)
	now := time.UnixMilli(1700000000000)

	job := scheduler.Job{ID: "end-attempt:t1:a1", Kind: "end-attempt", Payload: []byte(`{"attemptId":"a1"}`), RunAt: now.Add(time.Minute)}
	if err := q.Enqueue(ctx, job); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	dup := job
	dup.RunAt = now.Add(time.Hour)
	if err := q.Enqueue(ctx, dup); err != nil {
		t.Fatalf("enqueue duplicate: %v", err)
	}
	if !mr.Exists("test:jobs:delayed") || !mr.Exists("test:jobs:jobs") {
		t.Fatalf("expected delayed set and job hash to be written")
	}

	jobs, err := q.Claim(ctx, now, now.Add(30*time.Second), 10)
	if err != nil {
		t.Fatalf("claim early: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("expected nothing due yet, got %d", len(jobs))
	}

	later := now.Add(time.Minute)
	jobs, err = q.Claim(ctx, later, later.Add(30*time.Second), 10)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != job.ID || !jobs[0].RunAt.Equal(job.RunAt) {
		t.Fatalf("expected the first enqueued job, got %+v", jobs)
	}
	if again, _ := q.Claim(ctx, later, later.Add(30*time.Second), 10); len(again) != 0 {
		t.Fatalf("expected a claimed job to be invisible")
	}

	if err := q.Ack(ctx, job.ID); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if mr.Exists("test:jobs:jobs") {
		t.Fatalf("expected the job body to be removed")
	}
}

func TestJobQueueRequeuesExpiredClaims(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)
	now := time.UnixMilli(1700000000000)

	if err := q.Enqueue(ctx, scheduler.Job{ID: "j1", Kind: "k", RunAt: now}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if jobs, err := q.Claim(ctx, now, now.Add(time.Second), 1); err != nil || len(jobs) != 1 {
		t.Fatalf("claim: %v", err)
	}

	n, err := q.Requeue(ctx, now.Add(time.Second))
	if err != nil || n != 0 {
		t.Fatalf("expected a claim at its deadline to be kept, got %d (%v)", n, err)
	}
	n, err = q.Requeue(ctx, now.Add(2*time.Second))
	if err != nil || n != 1 {
		t.Fatalf("expected one requeued claim, got %d (%v)", n, err)
	}
	jobs, err := q.Claim(ctx, now.Add(2*time.Second), now.Add(time.Minute), 1)
	if err != nil || len(jobs) != 1 {
		t.Fatalf("expected the job to be claimable again: %v", err)
	}
}

func TestJobQueueRetryAndFail(t *testing.T) {
	ctx := context.Background()
	q, mr := newTestQueue(t)
	now := time.UnixMilli(1700000000000)

	if err := q.Enqueue(ctx, scheduler.Job{ID: "j1", Kind: "k", RunAt: now}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	jobs, _ := q.Claim(ctx, now, now.Add(time.Minute), 1)
	job := jobs[0]
	job.Attempts = 1
	job.LastError = "boom"
	if err := q.Retry(ctx, job, now.Add(5*time.Second)); err != nil {
		t.Fatalf("retry: %v", err)
	}

	jobs, _ = q.Claim(ctx, now.Add(5*time.Second), now.Add(time.Minute), 1)
	if len(jobs) != 1 || jobs[0].Attempts != 1 || jobs[0].LastError != "boom" {
		t.Fatalf("expected the retried job with its attempt count, got %+v", jobs)
	}
	if err := q.Fail(ctx, jobs[0]); err != nil {
		t.Fatalf("fail: %v", err)
	}
	failed, err := mr.List("test:jobs:failed")
	if err != nil || len(failed) != 1 {
		t.Fatalf("expected one dead letter, got %v (%v)", failed, err)
	}
	if mr.Exists("test:jobs:jobs") {
		t.Fatalf("expected the job body to be removed")
	}
}
