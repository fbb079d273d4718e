package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrDrop tells the worker to retire a job without retrying it.
var ErrDrop = errors.New("drop job")

// Handler executes one job. Handlers must be idempotent: a job may be delivered
// more than once.
type Handler func(ctx context.Context, job Job) error

// Options tune the worker loop.
type Options struct {
	PollInterval time.Duration
	BatchSize    int
	Concurrency  int
	MaxAttempts  int
	Backoff      time.Duration
	MaxBackoff   time.Duration
	Visibility   time.Duration
}

// DefaultOptions mirror the config defaults.
func DefaultOptions() Options {
	return Options{
		PollInterval: time.Second,
		BatchSize:    50,
		Concurrency:  8,
		MaxAttempts:  5,
		Backoff:      2 * time.Second,
		MaxBackoff:   time.Minute,
		Visibility:   30 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.PollInterval <= 0 {
		o.PollInterval = def.PollInterval
	}
	if o.BatchSize <= 0 {
		o.BatchSize = def.BatchSize
	}
	if o.Concurrency <= 0 {
		o.Concurrency = def.Concurrency
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = def.MaxAttempts
	}
	if o.Backoff <= 0 {
		o.Backoff = def.Backoff
	}
	if o.MaxBackoff < o.Backoff {
		o.MaxBackoff = def.MaxBackoff
		if o.MaxBackoff < o.Backoff {
			o.MaxBackoff = o.Backoff
		}
	}
	if o.Visibility <= 0 {
		o.Visibility = def.Visibility
	}
	return o
}

// Worker consumes due jobs and dispatches them by kind.
type Worker struct {
	queue  Queue
	opts   Options
	now    func() time.Time
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewWorker(queue Queue, opts Options, logger *slog.Logger) *Worker {
	return NewWorkerWithClock(queue, opts, logger, time.Now)
}

// NewWorkerWithClock allows deterministic polling in tests.
func NewWorkerWithClock(queue Queue, opts Options, logger *slog.Logger, now func() time.Time) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		queue:    queue,
		opts:     opts.withDefaults(),
		now:      now,
		logger:   logger.With("component", "scheduler"),
		handlers: make(map[string]Handler),
	}
}

// Handle registers the handler for a job kind.
func (w *Worker) Handle(kind string, h Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[kind] = h
}

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	w.logger.Info("worker started", "poll_interval", w.opts.PollInterval, "concurrency", w.opts.Concurrency)
	for {
		if _, err := w.Tick(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error("poll failed", "error", err)
		}
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Tick runs one poll: recover expired claims, claim due jobs and process them.
// It returns the number of jobs processed.
func (w *Worker) Tick(ctx context.Context) (int, error) {
	now := w.now()
	if n, err := w.queue.Requeue(ctx, now); err != nil {
		return 0, err
	} else if n > 0 {
		w.logger.Warn("requeued expired jobs", "count", n)
	}

	jobs, err := w.queue.Claim(ctx, now, now.Add(w.opts.Visibility), w.opts.BatchSize)
	if err != nil {
		return 0, err
	}

	var g errgroup.Group
	g.SetLimit(w.opts.Concurrency)
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			return w.process(ctx, job)
		})
	}
	return len(jobs), g.Wait()
}

func (w *Worker) process(ctx context.Context, job Job) error {
	log := w.logger.With("job_id", job.ID, "kind", job.Kind)

	w.mu.RLock()
	handler, ok := w.handlers[job.Kind]
	w.mu.RUnlock()
	if !ok {
		log.Warn("unhandled job kind")
		return w.queue.Ack(ctx, job.ID)
	}

	err := handler(ctx, job)
	switch {
	case err == nil:
		log.Info("job completed")
		return w.queue.Ack(ctx, job.ID)
	case errors.Is(err, ErrDrop):
		log.Warn("job dropped", "reason", err)
		return w.queue.Ack(ctx, job.ID)
	}

	job.Attempts++
	job.LastError = err.Error()
	if job.Attempts >= w.opts.MaxAttempts {
		log.Error("job failed", "attempts", job.Attempts, "error", err)
		return w.queue.Fail(ctx, job)
	}
	runAt := w.now().Add(w.backoff(job.Attempts))
	log.Warn("job will be retried", "attempts", job.Attempts, "run_at", runAt, "error", err)
	return w.queue.Retry(ctx, job, runAt)
}

// backoff doubles the base delay per failed attempt, capped at MaxBackoff.
func (w *Worker) backoff(attempts int) time.Duration {
	d := w.opts.Backoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= w.opts.MaxBackoff {
			return w.opts.MaxBackoff
		}
	}
	return d
}
