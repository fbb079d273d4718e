package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"tenant-quiz-service/internal/scheduler"
	"github.com/redis/go-redis/v9"
)

// JobQueue is a scheduler.Queue backed by Redis:
//
//	ZSET {prefix}:delayed  job id scored by run-at (unix ms)
//	ZSET {prefix}:active   claimed job id scored by visibility deadline (unix ms)
//	HASH {prefix}:jobs     job id -> JSON body
//	LIST {prefix}:failed   JSON bodies of dead-lettered jobs
type JobQueue struct {
	client redis.UniversalClient
	prefix string
}

func NewJobQueue(client redis.UniversalClient, prefix string) *JobQueue {
	if prefix == "" {
		prefix = "jobs"
	}
	return &JobQueue{client: client, prefix: prefix}
}

// enqueueScript stores the body only if the id is unknown, keeping the pending job.
var enqueueScript = redis.NewScript(`
if redis.call('HSETNX', KEYS[2], ARGV[1], ARGV[2]) == 1 then
  redis.call('ZADD', KEYS[1], ARGV[3], ARGV[1])
  return 1
end
return 0
`)

// moveDueScript moves ids scored at or below ARGV[1] from KEYS[1] to KEYS[2] with
// score ARGV[2], at most ARGV[3] of them.
var moveDueScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[3])
for _, id in ipairs(ids) do
  redis.call('ZREM', KEYS[1], id)
  redis.call('ZADD', KEYS[2], ARGV[2], id)
end
return ids
`)

// requeueScript returns expired claims to the delayed set, due immediately.
var requeueScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', '(' .. ARGV[1])
for _, id in ipairs(ids) do
  redis.call('ZREM', KEYS[1], id)
  redis.call('ZADD', KEYS[2], ARGV[1], id)
end
return #ids
`)

func (q *JobQueue) Enqueue(ctx context.Context, job scheduler.Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	keys := []string{q.delayedKey(), q.jobsKey()}
	if err := enqueueScript.Run(ctx, q.client, keys, job.ID, body, job.RunAt.UnixMilli()).Err(); err != nil {
		return fmt.Errorf("enqueue job %s: %w", job.ID, err)
	}
	return nil
}

func (q *JobQueue) Claim(ctx context.Context, now, visibleAt time.Time, limit int) ([]scheduler.Job, error) {
	if limit <= 0 {
		limit = 1
	}
	keys := []string{q.delayedKey(), q.activeKey()}
	ids, err := moveDueScript.Run(ctx, q.client, keys, now.UnixMilli(), visibleAt.UnixMilli(), limit).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("claim jobs: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	bodies, err := q.client.HMGet(ctx, q.jobsKey(), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("load claimed jobs: %w", err)
	}
	jobs := make([]scheduler.Job, 0, len(ids))
	for i, raw := range bodies {
		body, ok := raw.(string)
		if !ok {
			// Body vanished (acked concurrently); forget the claim.
			_ = q.client.ZRem(ctx, q.activeKey(), ids[i]).Err()
			continue
		}
		var job scheduler.Job
		if err := json.Unmarshal([]byte(body), &job); err != nil {
			return nil, fmt.Errorf("decode job %s: %w", ids[i], err)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (q *JobQueue) Ack(ctx context.Context, jobID string) error {
	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, q.activeKey(), jobID)
	pipe.HDel(ctx, q.jobsKey(), jobID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("ack job %s: %w", jobID, err)
	}
	return nil
}

func (q *JobQueue) Retry(ctx context.Context, job scheduler.Job, runAt time.Time) error {
	job.RunAt = runAt
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, q.jobsKey(), job.ID, body)
	pipe.ZRem(ctx, q.activeKey(), job.ID)
	pipe.ZAdd(ctx, q.delayedKey(), redis.Z{Score: float64(runAt.UnixMilli()), Member: job.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("retry job %s: %w", job.ID, err)
	}
	return nil
}

func (q *JobQueue) Fail(ctx context.Context, job scheduler.Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, q.activeKey(), job.ID)
	pipe.HDel(ctx, q.jobsKey(), job.ID)
	pipe.RPush(ctx, q.failedKey(), body)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("fail job %s: %w", job.ID, err)
	}
	return nil
}

func (q *JobQueue) Requeue(ctx context.Context, now time.Time) (int, error) {
	keys := []string{q.activeKey(), q.delayedKey()}
	n, err := requeueScript.Run(ctx, q.client, keys, strconv.FormatInt(now.UnixMilli(), 10)).Int()
	if err != nil {
		return 0, fmt.Errorf("requeue jobs: %w", err)
	}
	return n, nil
}

func (q *JobQueue) delayedKey() string { return q.prefix + ":delayed" }
func (q *JobQueue) activeKey() string  { return q.prefix + ":active" }
func (q *JobQueue) jobsKey() string    { return q.prefix + ":jobs" }
func (q *JobQueue) failedKey() string  { return q.prefix + ":failed" }
